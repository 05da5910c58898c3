package matrix

import (
	"math"

	"gonum.org/v1/gonum/mat"

	"github.com/nataneb/dealii/pkg/operator"
)

// FromRowMatrix materializes a CSR copy of any row-accessible matrix.
func FromRowMatrix(rm operator.RowMatrix) *CSR {
	if c, ok := rm.(*CSR); ok {
		return c
	}
	rng := rm.RowRange()
	b := NewBuilder(rm.NumRows(), rm.NumCols())
	for i := rng.First; i < rng.Last; i++ {
		cols, vals := rm.Row(i)
		for k, j := range cols {
			b.Add(i, j, vals[k])
		}
	}
	return b.Finish()
}

// FromMatrix copies an arbitrary matrix into CSR form, treating entries
// with magnitude at or below dropTolerance as structural zeros. This is the
// slow path for matrices that are not natively row-accessible.
func FromMatrix(a mat.Matrix, dropTolerance float64) *CSR {
	rows, cols := a.Dims()
	b := NewBuilder(rows, cols)
	for i := 0; i < rows; i++ {
		for j := 0; j < cols; j++ {
			v := a.At(i, j)
			if math.Abs(v) > dropTolerance {
				b.Add(i, j, v)
			}
		}
	}
	return b.Finish()
}
