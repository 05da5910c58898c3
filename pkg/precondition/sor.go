package precondition

import (
	"fmt"

	"github.com/nataneb/dealii/pkg/operator"
	"github.com/nataneb/dealii/pkg/smoother"
)

// SORData configures successive overrelaxation. The plain application runs
// forward sweeps; the transposed application sweeps backward over the
// transposed rows.
type SORData struct {
	Omega       float64
	MinDiagonal float64
	// Overlap widens the coupling between row shards. With a single shard
	// it has no effect.
	Overlap int
	NSweeps int
}

func DefaultSORData() SORData {
	return SORData{Omega: 1, MinDiagonal: 0, Overlap: 0, NSweeps: 1}
}

// SOR is the point SOR preconditioner.
type SOR struct {
	Base
}

var _ Interface = (*SOR)(nil)

func (p *SOR) Initialize(m operator.RowMatrix, data SORData) error {
	p.Clear()
	if data.Overlap < 0 {
		return &ConfigError{Reason: fmt.Sprintf("overlap %d must not be negative", data.Overlap)}
	}
	krn, err := smoother.NewRelaxation(m, smoother.RelaxOptions{
		Kind:        smoother.RelaxGaussSeidel,
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

// SSORData configures symmetric successive overrelaxation.
type SSORData struct {
	Omega       float64
	MinDiagonal float64
	// Overlap widens the coupling between row shards. With a single shard
	// it has no effect.
	Overlap int
	NSweeps int
}

func DefaultSSORData() SSORData {
	return SSORData{Omega: 1, MinDiagonal: 0, Overlap: 0, NSweeps: 1}
}

// SSOR is the point SSOR preconditioner: every sweep runs forward and then
// backward, which keeps the applied operator symmetric for symmetric
// matrices.
type SSOR struct {
	Base
}

var _ Interface = (*SSOR)(nil)

func (p *SSOR) Initialize(m operator.RowMatrix, data SSORData) error {
	p.Clear()
	if data.Overlap < 0 {
		return &ConfigError{Reason: fmt.Sprintf("overlap %d must not be negative", data.Overlap)}
	}
	krn, err := smoother.NewRelaxation(m, smoother.RelaxOptions{
		Kind:        smoother.RelaxSymmetricGaussSeidel,
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
