package operator

import "github.com/nataneb/dealii/pkg/linalg"

// Operator is an opaque apply-inverse operator as produced by a
// preconditioner kernel. ApplyInverse overwrites dst with an approximation
// of the inverse applied to src, honoring the transpose flag.
type Operator interface {
	ApplyInverse(dst, src []float64) error
	SetUseTranspose(use bool) error
	UseTranspose() bool
	DomainRange() linalg.IndexRange
	RangeRange() linalg.IndexRange
}

// RowMatrix is the minimal contract a sparse matrix must satisfy to be
// preconditioned: row extraction, multiply, and its row partitioning.
type RowMatrix interface {
	NumRows() int
	NumCols() int
	RowRange() linalg.IndexRange

	// Row returns the column indices and values of row i in ascending
	// column order. The slices are borrowed and only valid until the next
	// Row call.
	Row(i int) (cols []int, vals []float64)

	MatVec(dst, src []float64)
	MatTransVec(dst, src []float64)
	Diagonal(dst []float64)
}
