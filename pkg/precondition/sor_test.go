package precondition

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestSORSolvesLowerTriangular(t *testing.T) {
	var p SOR
	require.NoError(t, p.Initialize(lowerTri(t), DefaultSORData()))

	// A forward sweep is exact forward substitution here.
	dst := make([]float64, 3)
	require.NoError(t, p.VmultSlice(dst, []float64{2, 5, 3}))
	require.InDeltaSlice(t, []float64{1, 4.0 / 3, 13.0 / 12}, dst, 1e-14)
}

func TestSORTransposedSolvesUpperTriangular(t *testing.T) {
	var p SOR
	require.NoError(t, p.Initialize(lowerTri(t), DefaultSORData()))

	// The transposed matrix is upper triangular, so the transposed sweep
	// is exact backward substitution.
	dst := make([]float64, 3)
	require.NoError(t, p.TVmultSlice(dst, []float64{2, 5, 3}))
	require.InDeltaSlice(t, []float64{1.0 / 24, 23.0 / 12, 3.0 / 4}, dst, 1e-14)
}

func TestSSORIsSymmetric(t *testing.T) {
	m := tridiag(t, 4, -1, 4)
	var p SSOR
	require.NoError(t, p.Initialize(m, DefaultSSORData()))

	// For a symmetric matrix the forward-backward sweep applies a
	// symmetric operator: its matrix representation equals its transpose.
	var cols [4][]float64
	for j := 0; j < 4; j++ {
		e := make([]float64, 4)
		e[j] = 1
		cols[j] = make([]float64, 4)
		require.NoError(t, p.VmultSlice(cols[j], e))
	}
	for i := 0; i < 4; i++ {
		for j := 0; j < i; j++ {
			require.InDelta(t, cols[j][i], cols[i][j], 1e-14)
		}
	}
}

func TestSSORTransposeIsNoOpOnSymmetric(t *testing.T) {
	m := tridiag(t, 4, -1, 5)
	var p SSOR
	require.NoError(t, p.Initialize(m, SSORData{Omega: 1.2, NSweeps: 2}))

	rhs := []float64{1, -2, 0, 3, 1}
	fwd := make([]float64, 5)
	require.NoError(t, p.VmultSlice(fwd, rhs))
	tr := make([]float64, 5)
	require.NoError(t, p.TVmultSlice(tr, rhs))
	require.InDeltaSlice(t, fwd, tr, 1e-14)
}

func TestSORRejectsBadData(t *testing.T) {
	m := tridiag(t, 2, -1, 3)
	var ce *ConfigError

	var p SOR
	require.ErrorAs(t, p.Initialize(m, SORData{Omega: -1, NSweeps: 1}), &ce)
	require.ErrorAs(t, p.Initialize(m, SORData{Omega: 1, NSweeps: 0}), &ce)
	require.ErrorAs(t, p.Initialize(m, SORData{Omega: 1, NSweeps: 1, Overlap: -1}), &ce)

	var s SSOR
	require.ErrorAs(t, s.Initialize(m, SSORData{Omega: 0, NSweeps: 1}), &ce)
	require.ErrorAs(t, s.Initialize(m, SSORData{Omega: 1, NSweeps: 1, Overlap: -2}), &ce)
}
