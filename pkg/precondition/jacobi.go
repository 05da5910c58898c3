package precondition

import (
	"github.com/nataneb/dealii/pkg/operator"
	"github.com/nataneb/dealii/pkg/smoother"
)

// JacobiData configures damped point Jacobi relaxation.
type JacobiData struct {
	// Omega damps every update.
	Omega float64
	// MinDiagonal substitutes for diagonal entries of smaller magnitude,
	// keeping rows with vanishing pivots usable.
	MinDiagonal float64
	// NSweeps repeats the relaxation per application.
	NSweeps int
}

func DefaultJacobiData() JacobiData {
	return JacobiData{Omega: 1, MinDiagonal: 0, NSweeps: 1}
}

// Jacobi is the point Jacobi preconditioner.
type Jacobi struct {
	Base
}

var _ Interface = (*Jacobi)(nil)

func (p *Jacobi) Initialize(m operator.RowMatrix, data JacobiData) error {
	p.Clear()
	krn, err := smoother.NewRelaxation(m, smoother.RelaxOptions{
		Kind:        smoother.RelaxJacobi,
		Omega:       data.Omega,
		MinDiagonal: data.MinDiagonal,
		Sweeps:      data.NSweeps,
		ZeroStart:   true,
	})
	if err != nil {
		return &ConfigError{Reason: err.Error()}
	}
	p.install(krn, commOf(m), nil)
	return nil
}
