package precondition

import (
	"fmt"

	"github.com/nataneb/dealii/pkg/operator"
	"github.com/nataneb/dealii/pkg/smoother"
)

// BlockJacobiData configures block Jacobi relaxation: the rows are carved
// into blocks, every block is factored once, and each sweep solves all
// blocks against the same residual.
type BlockJacobiData struct {
	// BlockSize bounds the rows per block.
	BlockSize int
	// BlockCreation selects the partitioning strategy.
	BlockCreation BlockCreation
	Omega         float64
	MinDiagonal   float64
	NSweeps       int
}

func DefaultBlockJacobiData() BlockJacobiData {
	return BlockJacobiData{BlockSize: 1, BlockCreation: BlockCreationLinear, Omega: 1, NSweeps: 1}
}

// BlockJacobi is the block Jacobi preconditioner.
type BlockJacobi struct {
	Base
}

var _ Interface = (*BlockJacobi)(nil)

func (p *BlockJacobi) Initialize(m operator.RowMatrix, data BlockJacobiData) error {
	return initBlocks(&p.Base, m, blockConfig{
		size:        data.BlockSize,
		creation:    data.BlockCreation,
		mode:        smoother.SchwarzAdditive,
		omega:       data.Omega,
		minDiagonal: data.MinDiagonal,
		sweeps:      data.NSweeps,
	})
}

// BlockSORData configures block SOR relaxation: blocks are solved in
// order, each seeing the updates of its predecessors. Overlap lets blocks
// read rows beyond the ones they own.
type BlockSORData struct {
	BlockSize     int
	BlockCreation BlockCreation
	Omega         float64
	MinDiagonal   float64
	Overlap       int
	NSweeps       int
}

func DefaultBlockSORData() BlockSORData {
	return BlockSORData{BlockSize: 1, BlockCreation: BlockCreationLinear, Omega: 1, NSweeps: 1}
}

// BlockSOR is the block SOR preconditioner.
type BlockSOR struct {
	Base
}

var _ Interface = (*BlockSOR)(nil)

func (p *BlockSOR) Initialize(m operator.RowMatrix, data BlockSORData) error {
	return initBlocks(&p.Base, m, blockConfig{
		size:        data.BlockSize,
		creation:    data.BlockCreation,
		mode:        smoother.SchwarzMultiplicative,
		omega:       data.Omega,
		minDiagonal: data.MinDiagonal,
		overlap:     data.Overlap,
		sweeps:      data.NSweeps,
	})
}

// BlockSSORData configures symmetric block SOR relaxation.
type BlockSSORData struct {
	BlockSize     int
	BlockCreation BlockCreation
	Omega         float64
	MinDiagonal   float64
	Overlap       int
	NSweeps       int
}

func DefaultBlockSSORData() BlockSSORData {
	return BlockSSORData{BlockSize: 1, BlockCreation: BlockCreationLinear, Omega: 1, NSweeps: 1}
}

// BlockSSOR is the symmetric block SOR preconditioner: every sweep runs
// the blocks forward and then backward.
type BlockSSOR struct {
	Base
}

var _ Interface = (*BlockSSOR)(nil)

func (p *BlockSSOR) Initialize(m operator.RowMatrix, data BlockSSORData) error {
	return initBlocks(&p.Base, m, blockConfig{
		size:        data.BlockSize,
		creation:    data.BlockCreation,
		mode:        smoother.SchwarzSymmetric,
		omega:       data.Omega,
		minDiagonal: data.MinDiagonal,
		overlap:     data.Overlap,
		sweeps:      data.NSweeps,
	})
}

type blockConfig struct {
	size        int
	creation    BlockCreation
	mode        smoother.SchwarzMode
	omega       float64
	minDiagonal float64
	overlap     int
	sweeps      int
}

func initBlocks(b *Base, m operator.RowMatrix, cfg blockConfig) error {
	b.Clear()
	if !cfg.creation.valid() {
		return &ConfigError{Reason: fmt.Sprintf("unknown block creation type %q", cfg.creation)}
	}
	parts, err := smoother.Partition(m, cfg.size, cfg.creation.kernelKind())
	if err != nil {
		return &ConfigError{Reason: err.Error()}
	}
	krn, err := smoother.NewSchwarz(m, smoother.SchwarzOptions{
		Parts:       parts,
		Overlap:     cfg.overlap,
		Mode:        cfg.mode,
		Omega:       cfg.omega,
		MinDiagonal: cfg.minDiagonal,
		Sweeps:      cfg.sweeps,
		ZeroStart:   true,
	})
	if err != nil {
		return &ConfigError{Reason: err.Error()}
	}
	b.install(krn, commOf(m), nil)
	return nil
}
