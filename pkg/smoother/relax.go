package smoother

import (
	"fmt"

	"github.com/nataneb/dealii/pkg/matrix"
	"github.com/nataneb/dealii/pkg/operator"
)

type RelaxKind int

const (
	RelaxJacobi RelaxKind = iota
	RelaxGaussSeidel
	RelaxSymmetricGaussSeidel
)

func (k RelaxKind) String() string {
	switch k {
	case RelaxJacobi:
		return "Jacobi"
	case RelaxGaussSeidel:
		return "Gauss-Seidel"
	case RelaxSymmetricGaussSeidel:
		return "symmetric Gauss-Seidel"
	}
	return fmt.Sprintf("RelaxKind(%d)", int(k))
}

type RelaxOptions struct {
	Kind        RelaxKind
	Omega       float64
	MinDiagonal float64
	Sweeps      int

	// ZeroStart makes ApplyInverse overwrite dst; otherwise dst is taken
	// as the initial iterate and refined.
	ZeroStart bool
}

// Relaxation is a point relaxation sweep operator: damped Jacobi, SOR, or
// symmetric SOR depending on the kind.
type Relaxation struct {
	opBase
	m    operator.RowMatrix
	mt   *matrix.CSR // rows of the transposed matrix, built on first use
	inv  []float64
	opts RelaxOptions
	r    []float64
}

var _ operator.Operator = (*Relaxation)(nil)

func NewRelaxation(m operator.RowMatrix, opts RelaxOptions) (*Relaxation, error) {
	if err := checkSquare(m); err != nil {
		return nil, err
	}
	if opts.Omega <= 0 {
		return nil, fmt.Errorf("relaxation factor %g must be positive", opts.Omega)
	}
	if opts.Sweeps < 1 {
		return nil, fmt.Errorf("sweep count %d must be at least 1", opts.Sweeps)
	}
	if opts.MinDiagonal < 0 {
		return nil, fmt.Errorf("diagonal floor %g must not be negative", opts.MinDiagonal)
	}
	r := &Relaxation{
		m:    m,
		inv:  flooredInverseDiagonal(m, opts.MinDiagonal),
		opts: opts,
		r:    make([]float64, m.RowRange().Size()),
	}
	r.rng = m.RowRange()
	return r, nil
}

func (r *Relaxation) SetUseTranspose(use bool) error {
	if use && r.opts.Kind != RelaxJacobi && r.mt == nil {
		r.mt = matrix.FromRowMatrix(r.m).Transpose()
	}
	r.useTranspose = use
	return nil
}

func (r *Relaxation) ApplyInverse(dst, src []float64) error {
	n := r.rng.Size()
	if err := checkLengths(n, dst, src); err != nil {
		return err
	}
	startZero := r.opts.ZeroStart
	if startZero {
		zero(dst)
	}
	for s := 0; s < r.opts.Sweeps; s++ {
		switch r.opts.Kind {
		case RelaxJacobi:
			r.jacobiSweep(dst, src, startZero && s == 0)
		case RelaxGaussSeidel:
			// The adjoint of a forward sweep is a backward sweep over
			// the transposed rows.
			r.sorSweep(dst, src, r.useTranspose)
		case RelaxSymmetricGaussSeidel:
			r.sorSweep(dst, src, false)
			r.sorSweep(dst, src, true)
		}
	}
	return nil
}

func (r *Relaxation) jacobiSweep(x, b []float64, xIsZero bool) {
	if xIsZero {
		copy(r.r, b)
	} else {
		if r.useTranspose {
			r.m.MatTransVec(r.r, x)
		} else {
			r.m.MatVec(r.r, x)
		}
		for i := range r.r {
			r.r[i] = b[i] - r.r[i]
		}
	}
	for i := range x {
		x[i] += r.opts.Omega * r.inv[i] * r.r[i]
	}
}

// sorSweep runs one in-place SOR sweep, forward or backward. Entries ahead
// of the sweep direction still hold the previous iterate.
func (r *Relaxation) sorSweep(x, b []float64, backward bool) {
	rows := operator.RowMatrix(r.m)
	if r.useTranspose {
		rows = r.mt
	}
	n := r.rng.Size()
	first := r.rng.First
	update := func(i int) {
		cols, vals := rows.Row(i + first)
		s := b[i]
		for k, j := range cols {
			s -= vals[k] * x[j-first]
		}
		x[i] += r.opts.Omega * r.inv[i] * s
	}
	if backward {
		for i := n - 1; i >= 0; i-- {
			update(i)
		}
	} else {
		for i := 0; i < n; i++ {
			update(i)
		}
	}
}
