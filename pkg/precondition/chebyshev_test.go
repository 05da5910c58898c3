package precondition

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/nataneb/dealii/pkg/matrix"
)

func scaledIdentity(t *testing.T, d float64, n int) *matrix.CSR {
	t.Helper()
	b := matrix.NewBuilder(n, n)
	for i := 0; i < n; i++ {
		b.Add(i, i, d)
	}
	return b.Finish()
}

func TestChebyshevDegreeOne(t *testing.T) {
	// On 2I the scaled operator is the identity; with the interval [1, 2]
	// the degree one polynomial divides the scaled residual by 1.5.
	m := scaledIdentity(t, 2, 3)
	var p Chebyshev
	require.NoError(t, p.Initialize(m, ChebyshevData{
		Degree: 1, MaxEigenvalue: 2, MinEigenvalue: 1, MinDiagonal: 1e-12,
	}))

	dst := make([]float64, 3)
	require.NoError(t, p.VmultSlice(dst, []float64{3, 6, 9}))
	require.InDeltaSlice(t, []float64{1, 2, 3}, dst, 1e-14)
}

func TestChebyshevRatioPositionsInterval(t *testing.T) {
	m := scaledIdentity(t, 2, 3)
	rhs := []float64{3, 6, 9}

	// EigenvalueRatio 2 puts the lower bound at 1, the same interval the
	// explicit MinEigenvalue names, and the ratio wins when both are set.
	var ratio Chebyshev
	require.NoError(t, ratio.Initialize(m, ChebyshevData{
		Degree: 3, MaxEigenvalue: 2, EigenvalueRatio: 2, MinEigenvalue: 0.01, MinDiagonal: 1e-12,
	}))
	var explicit Chebyshev
	require.NoError(t, explicit.Initialize(m, ChebyshevData{
		Degree: 3, MaxEigenvalue: 2, MinEigenvalue: 1, MinDiagonal: 1e-12,
	}))

	a := make([]float64, 3)
	require.NoError(t, ratio.VmultSlice(a, rhs))
	b := make([]float64, 3)
	require.NoError(t, explicit.VmultSlice(b, rhs))
	require.InDeltaSlice(t, b, a, 1e-15)
}

func TestChebyshevNonzeroStarting(t *testing.T) {
	m := scaledIdentity(t, 2, 3)
	var p Chebyshev
	require.NoError(t, p.Initialize(m, ChebyshevData{
		Degree: 2, MaxEigenvalue: 2, MinEigenvalue: 1, MinDiagonal: 1e-12, NonzeroStarting: true,
	}))

	// The destination already holds the solution of 2x = b, so the
	// residual polynomial has nothing to correct.
	dst := []float64{1, 2, 3}
	require.NoError(t, p.VmultSlice(dst, []float64{2, 4, 6}))
	require.InDeltaSlice(t, []float64{1, 2, 3}, dst, 1e-15)
}

func TestChebyshevReducesPoissonResidual(t *testing.T) {
	n := 10
	m := tridiag(t, 2, -1, n)
	var p Chebyshev
	require.NoError(t, p.Initialize(m, ChebyshevData{
		Degree: 5, MaxEigenvalue: 4, EigenvalueRatio: 30, MinDiagonal: 1e-12,
	}))

	rhs := make([]float64, n)
	for i := range rhs {
		rhs[i] = 1
	}
	x := make([]float64, n)
	require.NoError(t, p.VmultSlice(x, rhs))

	r := make([]float64, n)
	m.MatVec(r, x)
	var norm2, rhs2 float64
	for i := range r {
		r[i] = rhs[i] - r[i]
		norm2 += r[i] * r[i]
		rhs2 += rhs[i] * rhs[i]
	}
	require.Less(t, norm2, rhs2)
}

func TestChebyshevRejectsBadData(t *testing.T) {
	m := scaledIdentity(t, 2, 3)
	var ce *ConfigError

	var p Chebyshev
	require.ErrorAs(t, p.Initialize(m, ChebyshevData{Degree: 0, MaxEigenvalue: 2, MinEigenvalue: 1}), &ce)
	require.ErrorAs(t, p.Initialize(m, ChebyshevData{Degree: 1, MaxEigenvalue: 0, MinEigenvalue: 1}), &ce)
	require.ErrorAs(t, p.Initialize(m, ChebyshevData{Degree: 1, MaxEigenvalue: 2}), &ce)
	require.False(t, p.Initialized())
}
