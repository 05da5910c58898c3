package smoother

import (
	"fmt"

	"github.com/edp1096/sparse"

	"github.com/nataneb/dealii/pkg/operator"
)

// Direct is an exact LU solve of the whole local matrix through the sparse
// backend, with Markowitz pivoting.
type Direct struct {
	opBase
	size   int
	matrix *sparse.Matrix
	rhs    []float64 // 1-based indexing
	config *sparse.Configuration
}

var _ operator.Operator = (*Direct)(nil)

func NewDirect(m operator.RowMatrix) (*Direct, error) {
	if err := checkSquare(m); err != nil {
		return nil, err
	}
	rng := m.RowRange()
	size := rng.Size()

	config := &sparse.Configuration{
		Real:                    true,
		Complex:                 false,
		SeparatedComplexVectors: false,
		Expandable:              true,
		Translate:               false,
		ModifiedNodal:           false,
		TiesMultiplier:          5,
		PrinterWidth:            140,
		Annotate:                0,
	}

	mat, err := sparse.Create(int64(size), config)
	if err != nil {
		return nil, fmt.Errorf("matrix creation failed: %v", err)
	}

	for i := 0; i < size; i++ {
		cols, vals := m.Row(i + rng.First)
		for k, j := range cols {
			element := mat.GetElement(int64(i+1), int64(j-rng.First+1))
			if element == nil {
				return nil, fmt.Errorf("element allocation failed at (%d, %d)", i+1, j+1)
			}
			element.Real += vals[k]
		}
	}

	if err := mat.Factor(); err != nil {
		return nil, fmt.Errorf("matrix factorization failed: %v", err)
	}

	d := &Direct{
		size:   size,
		matrix: mat,
		rhs:    make([]float64, size+1),
		config: config,
	}
	d.rng = rng
	return d, nil
}

func (d *Direct) SetUseTranspose(use bool) error {
	d.useTranspose = use
	return nil
}

func (d *Direct) ApplyInverse(dst, src []float64) error {
	if err := checkLengths(d.size, dst, src); err != nil {
		return err
	}
	copy(d.rhs[1:], src)

	var solution []float64
	var err error
	if d.useTranspose {
		solution, err = d.matrix.SolveTransposed(d.rhs)
	} else {
		solution, err = d.matrix.Solve(d.rhs)
	}
	if err != nil {
		return fmt.Errorf("matrix solve failed: %v", err)
	}
	copy(dst, solution[1:d.size+1])
	return nil
}

// Destroy releases the backend matrix. The operator must not be used
// afterwards.
func (d *Direct) Destroy() {
	if d.matrix != nil {
		d.matrix.Destroy()
		d.matrix = nil
	}
}
