package smoother

import (
	"math"

	"gonum.org/v1/gonum/floats"

	"github.com/nataneb/dealii/pkg/operator"
)

// EstimateMaxEigenvalue runs the power method on the diagonally scaled
// operator D^-1 A and returns the magnitude of the dominant eigenvalue.
// The start vector is deterministic with mixed components.
func EstimateMaxEigenvalue(m operator.RowMatrix, invDiag []float64, steps int) float64 {
	n := m.RowRange().Size()
	if n == 0 {
		return 0
	}
	x := make([]float64, n)
	y := make([]float64, n)
	for i := range x {
		x[i] = 1 + 0.5*float64(i%3)
	}
	lambda := 0.0
	for s := 0; s < steps; s++ {
		nrm := floats.Norm(x, 2)
		if nrm == 0 {
			return 0
		}
		floats.Scale(1/nrm, x)
		m.MatVec(y, x)
		for i := range y {
			y[i] *= invDiag[i]
		}
		lambda = floats.Dot(x, y)
		x, y = y, x
	}
	return math.Abs(lambda)
}
