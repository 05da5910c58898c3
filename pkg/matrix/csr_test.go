package matrix

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"
)

func testMatrix() *CSR {
	// [ 2 -1  0 ]
	// [-1  2 -1 ]
	// [ 0 -1  2 ]
	b := NewBuilder(3, 3)
	b.Add(0, 0, 2)
	b.Add(0, 1, -1)
	b.Add(1, 0, -1)
	b.Add(1, 1, 2)
	b.Add(1, 2, -1)
	b.Add(2, 1, -1)
	b.Add(2, 2, 2)
	return b.Finish()
}

func TestBuilderAccumulatesDuplicates(t *testing.T) {
	b := NewBuilder(2, 2)
	b.Add(0, 0, 1)
	b.Add(0, 0, 2.5)
	b.Add(1, 1, -1)
	m := b.Finish()

	require.Equal(t, 3.5, m.At(0, 0))
	require.Equal(t, -1.0, m.At(1, 1))
	require.Equal(t, 0.0, m.At(0, 1))
	require.Equal(t, 2, m.NNZ())
}

func TestRowOrderAndDiagonal(t *testing.T) {
	m := testMatrix()

	cols, vals := m.Row(1)
	require.Equal(t, []int{0, 1, 2}, cols)
	require.Equal(t, []float64{-1, 2, -1}, vals)

	diag := make([]float64, 3)
	m.Diagonal(diag)
	require.Equal(t, []float64{2, 2, 2}, diag)
}

func TestMatVec(t *testing.T) {
	m := testMatrix()
	dst := make([]float64, 3)

	m.MatVec(dst, []float64{1, 1, 1})
	require.Equal(t, []float64{1, 0, 1}, dst)

	m.MatTransVec(dst, []float64{1, 2, 3})
	require.Equal(t, []float64{0, 0, 4}, dst)
}

func TestTranspose(t *testing.T) {
	b := NewBuilder(2, 3)
	b.Add(0, 1, 5)
	b.Add(0, 2, -2)
	b.Add(1, 0, 3)
	m := b.Finish()

	tr := m.Transpose()
	require.Equal(t, 3, tr.NumRows())
	require.Equal(t, 2, tr.NumCols())
	require.Equal(t, 5.0, tr.At(1, 0))
	require.Equal(t, -2.0, tr.At(2, 0))
	require.Equal(t, 3.0, tr.At(0, 1))

	// Cached until a value changes.
	require.Same(t, tr, m.Transpose())
	require.NoError(t, m.Set(0, 1, 7))
	require.NotSame(t, tr, m.Transpose())
	require.Equal(t, 7.0, m.Transpose().At(1, 0))
}

func TestSetRejectsStructuralZero(t *testing.T) {
	m := testMatrix()
	require.Error(t, m.Set(0, 2, 1))
	require.NoError(t, m.Set(0, 1, -3))
	require.Equal(t, -3.0, m.At(0, 1))
}

func TestMul(t *testing.T) {
	m := testMatrix()

	// Identity leaves the matrix unchanged.
	ib := NewBuilder(3, 3)
	for i := 0; i < 3; i++ {
		ib.Add(i, i, 1)
	}
	eye := ib.Finish()

	p, err := m.Mul(eye)
	require.NoError(t, err)
	for i := 0; i < 3; i++ {
		for j := 0; j < 3; j++ {
			require.Equal(t, m.At(i, j), p.At(i, j))
		}
	}

	// Tridiagonal squared has bandwidth two.
	sq, err := m.Mul(m)
	require.NoError(t, err)
	require.Equal(t, 5.0, sq.At(0, 0))
	require.Equal(t, -4.0, sq.At(0, 1))
	require.Equal(t, 1.0, sq.At(0, 2))
	require.Equal(t, 6.0, sq.At(1, 1))

	_, err = m.Mul(eye)
	require.NoError(t, err)
	bad := NewBuilder(2, 2)
	bad.Add(0, 0, 1)
	_, err = m.Mul(bad.Finish())
	require.Error(t, err)
}

func TestFromMatrixDropsSmallEntries(t *testing.T) {
	d := mat.NewDense(2, 2, []float64{4, 1e-14, 1e-10, -3})
	m := FromMatrix(d, 1e-13)

	require.Equal(t, 3, m.NNZ())
	require.Equal(t, 4.0, m.At(0, 0))
	require.Equal(t, 0.0, m.At(0, 1))
	require.Equal(t, 1e-10, m.At(1, 0))
}

func TestFromRowMatrixIsIdentityForCSR(t *testing.T) {
	m := testMatrix()
	require.Same(t, m, FromRowMatrix(m))
}

const marketGeneral = `%%MatrixMarket matrix coordinate real general
% 3x3 tridiagonal
3 3 7
1 1 2.0
1 2 -1.0
2 1 -1.0
2 2 2.0
2 3 -1.0
3 2 -1.0
3 3 2.0
`

const marketSymmetric = `%%MatrixMarket matrix coordinate real symmetric
3 3 5
1 1 2.0
2 1 -1.0
2 2 2.0
3 2 -1.0
3 3 2.0
`

func TestReadMatrixMarket(t *testing.T) {
	want := testMatrix()

	for name, text := range map[string]string{"general": marketGeneral, "symmetric": marketSymmetric} {
		t.Run(name, func(t *testing.T) {
			m, err := ReadMatrixMarket(strings.NewReader(text))
			require.NoError(t, err)
			require.Equal(t, 3, m.NumRows())
			for i := 0; i < 3; i++ {
				for j := 0; j < 3; j++ {
					require.Equal(t, want.At(i, j), m.At(i, j))
				}
			}
		})
	}
}

func TestReadMatrixMarketErrors(t *testing.T) {
	cases := map[string]string{
		"empty":        "",
		"wrong header": "%%MatrixMarket tensor coordinate real general\n1 1 1\n1 1 2.0\n",
		"array format": "%%MatrixMarket matrix array real general\n2 2\n",
		"bad entry":    "%%MatrixMarket matrix coordinate real general\n2 2 1\n1 x 2.0\n",
		"out of range": "%%MatrixMarket matrix coordinate real general\n2 2 1\n3 1 2.0\n",
		"short count":  "%%MatrixMarket matrix coordinate real general\n2 2 2\n1 1 2.0\n",
	}
	for name, text := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := ReadMatrixMarket(strings.NewReader(text))
			require.Error(t, err)
		})
	}
}
