package precondition

import (
	"fmt"

	"github.com/nataneb/dealii/pkg/operator"
	"github.com/nataneb/dealii/pkg/smoother"
)

// BlockwiseDirectData configures the blockwise direct preconditioner.
type BlockwiseDirectData struct {
	// Overlap widens the coupling between row shards. With a single shard
	// the preconditioner is an exact solve and Overlap has no effect.
	Overlap int
}

func DefaultBlockwiseDirectData() BlockwiseDirectData {
	return BlockwiseDirectData{Overlap: 0}
}

// BlockwiseDirect factors the owned rows with a sparse LU and applies the
// exact inverse of that block.
type BlockwiseDirect struct {
	Base
}

var _ Interface = (*BlockwiseDirect)(nil)

func (p *BlockwiseDirect) Initialize(m operator.RowMatrix, data BlockwiseDirectData) error {
	p.Clear()
	if data.Overlap < 0 {
		return &ConfigError{Reason: fmt.Sprintf("overlap %d must not be negative", data.Overlap)}
	}
	krn, err := smoother.NewDirect(m)
	if err != nil {
		return &BackendError{Op: "initialize", Err: err}
	}
	p.install(krn, commOf(m), krn.Destroy)
	return nil
}
