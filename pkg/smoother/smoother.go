package smoother

import (
	"fmt"
	"math"

	"github.com/nataneb/dealii/pkg/linalg"
	"github.com/nataneb/dealii/pkg/operator"
)

// opBase carries the partitioning and transpose state shared by every
// kernel in this package.
type opBase struct {
	rng          linalg.IndexRange
	useTranspose bool
}

func (b *opBase) UseTranspose() bool             { return b.useTranspose }
func (b *opBase) DomainRange() linalg.IndexRange { return b.rng }
func (b *opBase) RangeRange() linalg.IndexRange  { return b.rng }

func checkSquare(m operator.RowMatrix) error {
	if m.NumRows() != m.NumCols() {
		return fmt.Errorf("matrix is %dx%d, preconditioner needs a square matrix", m.NumRows(), m.NumCols())
	}
	return nil
}

func checkLengths(n int, dst, src []float64) error {
	if len(dst) != n || len(src) != n {
		return fmt.Errorf("vector lengths %d and %d do not match operator size %d", len(dst), len(src), n)
	}
	return nil
}

// flooredInverseDiagonal extracts 1/a_ii with magnitudes below floor
// replaced by the floor, keeping the sign. A zero diagonal with floor zero
// stays zero and divides to infinity, which IEEE arithmetic carries through
// without faulting.
func flooredInverseDiagonal(m operator.RowMatrix, floor float64) []float64 {
	n := m.RowRange().Size()
	d := make([]float64, n)
	m.Diagonal(d)
	for i, v := range d {
		if math.Abs(v) < floor {
			if v < 0 {
				v = -floor
			} else {
				v = floor
			}
		}
		d[i] = 1 / v
	}
	return d
}

func signOf(v float64) float64 {
	if v < 0 {
		return -1
	}
	return 1
}

func zero(x []float64) {
	for i := range x {
		x[i] = 0
	}
}
