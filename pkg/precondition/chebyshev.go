package precondition

import (
	"github.com/nataneb/dealii/pkg/operator"
	"github.com/nataneb/dealii/pkg/smoother"
)

// ChebyshevData configures a Chebyshev polynomial preconditioner. The
// polynomial damps the residual on the eigenvalue interval derived from
// MaxEigenvalue and either EigenvalueRatio or MinEigenvalue, so useful
// bounds matter more than the polynomial degree.
type ChebyshevData struct {
	// Degree is the polynomial degree; one application multiplies the
	// residual by a degree-Degree polynomial of the operator.
	Degree int
	// MaxEigenvalue bounds the spectrum of D^{-1}A from above.
	MaxEigenvalue float64
	// EigenvalueRatio positions the lower interval bound at
	// MaxEigenvalue/EigenvalueRatio. When zero, MinEigenvalue is used
	// directly.
	EigenvalueRatio float64
	// MinEigenvalue bounds the spectrum from below when EigenvalueRatio
	// is zero.
	MinEigenvalue float64
	// MinDiagonal floors the diagonal entries used for scaling.
	MinDiagonal float64
	// NonzeroStarting refines the destination vector instead of
	// overwriting it.
	NonzeroStarting bool
}

func DefaultChebyshevData() ChebyshevData {
	return ChebyshevData{
		Degree:          1,
		MaxEigenvalue:   10,
		EigenvalueRatio: 30,
		MinEigenvalue:   1,
		MinDiagonal:     1e-12,
		NonzeroStarting: false,
	}
}

// Chebyshev is the Chebyshev polynomial preconditioner.
type Chebyshev struct {
	Base
}

var _ Interface = (*Chebyshev)(nil)

func (p *Chebyshev) Initialize(m operator.RowMatrix, data ChebyshevData) error {
	p.Clear()
	krn, err := smoother.NewChebyshev(m, smoother.ChebyshevOptions{
		Degree:          data.Degree,
		MaxEigenvalue:   data.MaxEigenvalue,
		EigenvalueRatio: data.EigenvalueRatio,
		MinEigenvalue:   data.MinEigenvalue,
		MinDiagonal:     data.MinDiagonal,
		NonzeroStarting: data.NonzeroStarting,
	})
	if err != nil {
		return &ConfigError{Reason: err.Error()}
	}
	p.install(krn, commOf(m), nil)
	return nil
}
