package smoother

import (
	"fmt"

	"gonum.org/v1/gonum/floats"

	"github.com/nataneb/dealii/pkg/operator"
)

type ChebyshevOptions struct {
	Degree          int
	MaxEigenvalue   float64
	EigenvalueRatio float64
	MinEigenvalue   float64
	MinDiagonal     float64

	// NonzeroStarting refines dst in place instead of overwriting it.
	NonzeroStarting bool
}

// Chebyshev is a polynomial smoother on the diagonally scaled operator.
// Degree counts the matrix-vector products spent per apply.
type Chebyshev struct {
	opBase
	m          operator.RowMatrix
	inv        []float64
	lmin, lmax float64
	opts       ChebyshevOptions
	r, z, d    []float64
}

var _ operator.Operator = (*Chebyshev)(nil)

func NewChebyshev(m operator.RowMatrix, opts ChebyshevOptions) (*Chebyshev, error) {
	if err := checkSquare(m); err != nil {
		return nil, err
	}
	if opts.Degree < 1 {
		return nil, fmt.Errorf("polynomial degree %d must be at least 1", opts.Degree)
	}
	if opts.MaxEigenvalue <= 0 {
		return nil, fmt.Errorf("largest eigenvalue bound %g must be positive", opts.MaxEigenvalue)
	}
	lmax := opts.MaxEigenvalue
	lmin := opts.MinEigenvalue
	if opts.EigenvalueRatio > 0 {
		lmin = lmax / opts.EigenvalueRatio
	}
	if lmin <= 0 || lmin >= lmax {
		return nil, fmt.Errorf("eigenvalue interval [%g, %g] is empty", lmin, lmax)
	}
	n := m.RowRange().Size()
	c := &Chebyshev{
		m:    m,
		inv:  flooredInverseDiagonal(m, opts.MinDiagonal),
		lmin: lmin,
		lmax: lmax,
		opts: opts,
		r:    make([]float64, n),
		z:    make([]float64, n),
		d:    make([]float64, n),
	}
	c.rng = m.RowRange()
	return c, nil
}

func (c *Chebyshev) SetUseTranspose(use bool) error {
	c.useTranspose = use
	return nil
}

func (c *Chebyshev) matVec(dst, src []float64) {
	if c.useTranspose {
		c.m.MatTransVec(dst, src)
	} else {
		c.m.MatVec(dst, src)
	}
}

func (c *Chebyshev) ApplyInverse(dst, src []float64) error {
	n := c.rng.Size()
	if err := checkLengths(n, dst, src); err != nil {
		return err
	}
	if c.opts.NonzeroStarting {
		c.matVec(c.r, dst)
		floats.SubTo(c.r, src, c.r)
	} else {
		zero(dst)
		copy(c.r, src)
	}

	theta := (c.lmax + c.lmin) / 2
	delta := (c.lmax - c.lmin) / 2
	sigma := theta / delta
	rho := 1 / sigma

	for i := range c.d {
		c.d[i] = c.inv[i] * c.r[i] / theta
	}
	floats.Add(dst, c.d)

	for k := 2; k <= c.opts.Degree; k++ {
		c.matVec(c.z, c.d)
		floats.Sub(c.r, c.z)
		rhoNew := 1 / (2*sigma - rho)
		for i := range c.d {
			c.d[i] = rhoNew*rho*c.d[i] + 2*rhoNew/delta*c.inv[i]*c.r[i]
		}
		rho = rhoNew
		floats.Add(dst, c.d)
	}
	return nil
}
