package precondition

import (
	"fmt"

	"github.com/nataneb/dealii/pkg/operator"
	"github.com/nataneb/dealii/pkg/smoother"
)

// ILUData configures an incomplete LU factorization with level-of-fill
// control.
type ILUData struct {
	// Fill is the admitted fill level; zero factors on the sparsity
	// pattern of the matrix.
	Fill int
	// ATol and RTol perturb every pivot to atol*sign(a_ii) + rtol*a_ii
	// before elimination.
	ATol float64
	RTol float64
	// Overlap widens the coupling between row shards. With a single shard
	// it has no effect.
	Overlap int
}

func DefaultILUData() ILUData {
	return ILUData{Fill: 0, ATol: 0, RTol: 1, Overlap: 0}
}

// ILU is the incomplete LU preconditioner.
type ILU struct {
	Base
}

var _ Interface = (*ILU)(nil)

func (p *ILU) Initialize(m operator.RowMatrix, data ILUData) error {
	p.Clear()
	if data.Fill < 0 {
		return &ConfigError{Reason: fmt.Sprintf("fill level %d must not be negative", data.Fill)}
	}
	if data.Overlap < 0 {
		return &ConfigError{Reason: fmt.Sprintf("overlap %d must not be negative", data.Overlap)}
	}
	krn, err := smoother.NewILU(m, smoother.ILUOptions{
		Fill:    data.Fill,
		ATol:    data.ATol,
		RTol:    data.RTol,
		Overlap: data.Overlap,
	})
	if err != nil {
		return &BackendError{Op: "initialize", Err: err}
	}
	p.install(krn, commOf(m), nil)
	return nil
}

// ILUTData configures a threshold incomplete LU factorization.
type ILUTData struct {
	// Drop removes factor entries below Drop times the row norm.
	Drop float64
	// Fill bounds the kept entries per factor row beyond the original row
	// count.
	Fill float64
	ATol float64
	RTol float64
	// Overlap widens the coupling between row shards. With a single shard
	// it has no effect.
	Overlap int
}

func DefaultILUTData() ILUTData {
	return ILUTData{Drop: 0, Fill: 0, ATol: 0, RTol: 1, Overlap: 0}
}

// ILUT is the threshold incomplete LU preconditioner.
type ILUT struct {
	Base
}

var _ Interface = (*ILUT)(nil)

func (p *ILUT) Initialize(m operator.RowMatrix, data ILUTData) error {
	p.Clear()
	if data.Drop < 0 {
		return &ConfigError{Reason: fmt.Sprintf("drop threshold %g must not be negative", data.Drop)}
	}
	if data.Fill < 0 {
		return &ConfigError{Reason: fmt.Sprintf("fill bound %g must not be negative", data.Fill)}
	}
	if data.Overlap < 0 {
		return &ConfigError{Reason: fmt.Sprintf("overlap %d must not be negative", data.Overlap)}
	}
	krn, err := smoother.NewILUT(m, smoother.ILUTOptions{
		Drop:    data.Drop,
		Fill:    data.Fill,
		ATol:    data.ATol,
		RTol:    data.RTol,
		Overlap: data.Overlap,
	})
	if err != nil {
		return &BackendError{Op: "initialize", Err: err}
	}
	p.install(krn, commOf(m), nil)
	return nil
}
