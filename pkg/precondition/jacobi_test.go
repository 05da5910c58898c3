package precondition

import (
	"math"
	"testing"

	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/floats"

	"github.com/nataneb/dealii/pkg/matrix"
)

func TestJacobiSweep(t *testing.T) {
	var p Jacobi
	require.NoError(t, p.Initialize(tridiag(t, 2, -1, 3), DefaultJacobiData()))

	dst := make([]float64, 3)
	require.NoError(t, p.VmultSlice(dst, []float64{1, 1, 1}))
	require.InDeltaSlice(t, []float64{0.5, 0.5, 0.5}, dst, 1e-15)
}

func TestJacobiOmega(t *testing.T) {
	var p Jacobi
	require.NoError(t, p.Initialize(tridiag(t, 2, -1, 3), JacobiData{Omega: 0.5, NSweeps: 1}))

	dst := make([]float64, 3)
	require.NoError(t, p.VmultSlice(dst, []float64{1, 1, 1}))
	require.InDeltaSlice(t, []float64{0.25, 0.25, 0.25}, dst, 1e-15)
}

func TestJacobiSweepCount(t *testing.T) {
	var p Jacobi
	require.NoError(t, p.Initialize(tridiag(t, 2, -1, 3), JacobiData{Omega: 1, NSweeps: 2}))

	// Sweep one gives x = b/2; sweep two adds the scaled residual of it.
	dst := make([]float64, 3)
	require.NoError(t, p.VmultSlice(dst, []float64{1, 1, 1}))
	require.InDeltaSlice(t, []float64{0.75, 1, 0.75}, dst, 1e-15)
}

func TestJacobiSweepsMatchChainedApplies(t *testing.T) {
	m := tridiag(t, 3, -1, 6)
	b := []float64{1, -2, 0, 2, 1, -1}
	const sweeps = 4

	var multi Jacobi
	require.NoError(t, multi.Initialize(m, JacobiData{Omega: 0.8, NSweeps: sweeps}))
	got := make([]float64, 6)
	require.NoError(t, multi.VmultSlice(got, b))

	// Chaining single sweeps by defect correction walks the same
	// recurrence as one multi-sweep application.
	var single Jacobi
	require.NoError(t, single.Initialize(m, JacobiData{Omega: 0.8, NSweeps: 1}))
	x := make([]float64, 6)
	r := make([]float64, 6)
	z := make([]float64, 6)
	for k := 0; k < sweeps; k++ {
		m.MatVec(r, x)
		floats.SubTo(r, b, r)
		require.NoError(t, single.VmultSlice(z, r))
		floats.Add(x, z)
	}
	require.InDeltaSlice(t, x, got, 1e-14)
}

func TestJacobiDiagonalFloor(t *testing.T) {
	b := matrix.NewBuilder(3, 3)
	b.Add(0, 0, 2)
	b.Add(1, 1, 0)
	b.Add(2, 2, 2)
	m := b.Finish()

	// Without a floor the zero diagonal divides through as infinity, but
	// the apply itself does not fail.
	var p Jacobi
	require.NoError(t, p.Initialize(m, JacobiData{Omega: 1, NSweeps: 1}))
	dst := make([]float64, 3)
	require.NoError(t, p.VmultSlice(dst, []float64{1, 1, 1}))
	require.True(t, math.IsInf(dst[1], 1))

	require.NoError(t, p.Initialize(m, JacobiData{Omega: 1, MinDiagonal: 0.5, NSweeps: 1}))
	require.NoError(t, p.VmultSlice(dst, []float64{1, 1, 1}))
	require.InDeltaSlice(t, []float64{0.5, 2, 0.5}, dst, 1e-15)
}

func TestJacobiRejectsBadData(t *testing.T) {
	m := tridiag(t, 2, -1, 3)
	var ce *ConfigError

	var p Jacobi
	require.ErrorAs(t, p.Initialize(m, JacobiData{Omega: 0, NSweeps: 1}), &ce)
	require.ErrorAs(t, p.Initialize(m, JacobiData{Omega: 1, NSweeps: 0}), &ce)
	require.ErrorAs(t, p.Initialize(m, JacobiData{Omega: 1, MinDiagonal: -1, NSweeps: 1}), &ce)
	require.False(t, p.Initialized())
}
