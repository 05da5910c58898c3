package precondition

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestBlockJacobiSingletonsMatchPointJacobi(t *testing.T) {
	m := tridiag(t, 3, -1, 6)
	rhs := []float64{1, 0, -2, 4, 1, 1}

	var bj BlockJacobi
	require.NoError(t, bj.Initialize(m, DefaultBlockJacobiData()))
	var pj Jacobi
	require.NoError(t, pj.Initialize(m, DefaultJacobiData()))

	got := make([]float64, 6)
	require.NoError(t, bj.VmultSlice(got, rhs))
	want := make([]float64, 6)
	require.NoError(t, pj.VmultSlice(want, rhs))
	require.InDeltaSlice(t, want, got, 1e-14)
}

func TestBlockSORSingletonsMatchPointSOR(t *testing.T) {
	m := tridiag(t, 3, -1, 6)
	rhs := []float64{1, 0, -2, 4, 1, 1}

	var bs BlockSOR
	require.NoError(t, bs.Initialize(m, BlockSORData{
		BlockSize: 1, BlockCreation: BlockCreationLinear, Omega: 1, NSweeps: 2,
	}))
	var ps SOR
	require.NoError(t, ps.Initialize(m, SORData{Omega: 1, NSweeps: 2}))

	got := make([]float64, 6)
	require.NoError(t, bs.VmultSlice(got, rhs))
	want := make([]float64, 6)
	require.NoError(t, ps.VmultSlice(want, rhs))
	require.InDeltaSlice(t, want, got, 1e-13)
}

func TestBlockSSORSingletonsMatchPointSSOR(t *testing.T) {
	m := tridiag(t, 4, -1, 6)
	rhs := []float64{1, 0, -2, 4, 1, 1}

	var bs BlockSSOR
	require.NoError(t, bs.Initialize(m, DefaultBlockSSORData()))
	var ps SSOR
	require.NoError(t, ps.Initialize(m, DefaultSSORData()))

	got := make([]float64, 6)
	require.NoError(t, bs.VmultSlice(got, rhs))
	want := make([]float64, 6)
	require.NoError(t, ps.VmultSlice(want, rhs))
	require.InDeltaSlice(t, want, got, 1e-13)
}

func TestBlockJacobiSingleBlockIsExact(t *testing.T) {
	var p BlockJacobi
	require.NoError(t, p.Initialize(lowerTri(t), BlockJacobiData{
		BlockSize: 3, BlockCreation: BlockCreationLinear, Omega: 1, NSweeps: 1,
	}))

	// One block spanning all rows solves the system outright.
	dst := make([]float64, 3)
	require.NoError(t, p.VmultSlice(dst, []float64{2, 5, 3}))
	require.InDeltaSlice(t, []float64{1, 4.0 / 3, 13.0 / 12}, dst, 1e-14)
}

func TestBlockCreationStrategies(t *testing.T) {
	m := tridiag(t, 2, -1, 12)
	rhs := make([]float64, 12)
	for i := range rhs {
		rhs[i] = 1
	}

	for _, c := range []BlockCreation{BlockCreationLinear, BlockCreationGreedy, BlockCreationBisection} {
		var p BlockSSOR
		require.NoError(t, p.Initialize(m, BlockSSORData{
			BlockSize: 4, BlockCreation: c, Omega: 1, NSweeps: 1,
		}), c.String())
		dst := make([]float64, 12)
		require.NoError(t, p.VmultSlice(dst, rhs))
		for i, v := range dst {
			require.Greater(t, v, 0.0, "entry %d under %s", i, c)
		}
	}
}

func TestBlockCreationParsing(t *testing.T) {
	for name, want := range map[string]BlockCreation{
		"linear": BlockCreationLinear, "greedy": BlockCreationGreedy,
		"bisection": BlockCreationBisection, "metis": BlockCreationBisection,
	} {
		got, err := ParseBlockCreation(name)
		require.NoError(t, err)
		require.Equal(t, want, got)
	}
	_, err := ParseBlockCreation("random")
	var ce *ConfigError
	require.ErrorAs(t, err, &ce)
}

func TestBlockRejectsBadData(t *testing.T) {
	m := tridiag(t, 2, -1, 6)
	var ce *ConfigError

	var p BlockJacobi
	require.ErrorAs(t, p.Initialize(m, BlockJacobiData{BlockSize: 0, Omega: 1, NSweeps: 1}), &ce)
	require.ErrorAs(t, p.Initialize(m, BlockJacobiData{BlockSize: 2, Omega: 0, NSweeps: 1}), &ce)
	require.ErrorAs(t, p.Initialize(m, BlockJacobiData{BlockSize: 2, BlockCreation: BlockCreation(9), Omega: 1, NSweeps: 1}), &ce)

	var s BlockSOR
	require.ErrorAs(t, s.Initialize(m, BlockSORData{BlockSize: 2, Omega: 1, Overlap: -1, NSweeps: 1}), &ce)
	require.False(t, s.Initialized())
}
