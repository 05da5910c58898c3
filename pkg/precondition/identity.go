package precondition

import (
	"github.com/nataneb/dealii/pkg/linalg"
	"github.com/nataneb/dealii/pkg/operator"
)

// Identity is the do-nothing preconditioner: every apply copies the source
// into the destination unchanged. It turns a preconditioned solver into its
// unpreconditioned counterpart without touching the solver loop.
type Identity struct {
	Base
}

var _ Interface = (*Identity)(nil)

func (p *Identity) Initialize(m operator.RowMatrix) error {
	p.Clear()
	p.install(&identityKernel{rows: m.RowRange()}, commOf(m), nil)
	return nil
}

type identityKernel struct {
	rows  linalg.IndexRange
	trans bool
}

func (k *identityKernel) ApplyInverse(dst, src []float64) error {
	copy(dst, src)
	return nil
}

func (k *identityKernel) SetUseTranspose(use bool) error {
	k.trans = use
	return nil
}

func (k *identityKernel) UseTranspose() bool { return k.trans }

func (k *identityKernel) DomainRange() linalg.IndexRange { return k.rows }

func (k *identityKernel) RangeRange() linalg.IndexRange { return k.rows }
