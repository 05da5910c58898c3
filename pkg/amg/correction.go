package amg

import (
	"gonum.org/v1/gonum/floats"

	"github.com/nataneb/dealii/pkg/linalg"
	"github.com/nataneb/dealii/pkg/matrix"
	"github.com/nataneb/dealii/pkg/operator"
)

// NewCorrection lifts an overwriting apply into the refining contract of a
// level smoother: every application adds inner(b - A x) to x. The inner
// operator is owned by the wrapper.
func NewCorrection(a *matrix.CSR, inner operator.Operator) operator.Operator {
	n := a.NumRows()
	return &correction{a: a, inner: inner, r: make([]float64, n), d: make([]float64, n)}
}

type correction struct {
	a     *matrix.CSR
	inner operator.Operator
	r, d  []float64
	trans bool
}

func (c *correction) ApplyInverse(x, b []float64) error {
	if c.trans {
		c.a.MatTransVec(c.r, x)
	} else {
		c.a.MatVec(c.r, x)
	}
	floats.SubTo(c.r, b, c.r)
	if err := c.inner.SetUseTranspose(c.trans); err != nil {
		return err
	}
	if err := c.inner.ApplyInverse(c.d, c.r); err != nil {
		return err
	}
	floats.Add(x, c.d)
	return nil
}

func (c *correction) SetUseTranspose(use bool) error {
	c.trans = use
	return nil
}

func (c *correction) UseTranspose() bool             { return c.trans }
func (c *correction) DomainRange() linalg.IndexRange { return c.a.RowRange() }
func (c *correction) RangeRange() linalg.IndexRange  { return c.a.RowRange() }
