package precondition

import (
	"fmt"

	"github.com/nataneb/dealii/pkg/operator"
	"github.com/nataneb/dealii/pkg/smoother"
)

// ICData configures an incomplete Cholesky factorization. The matrix must
// be symmetric positive definite for the factorization to exist.
type ICData struct {
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

func DefaultICData() ICData {
	return ICData{Fill: 0, ATol: 0, RTol: 1, Overlap: 0}
}

// IC is the incomplete Cholesky preconditioner.
type IC struct {
	Base
}

var _ Interface = (*IC)(nil)

func (p *IC) Initialize(m operator.RowMatrix, data ICData) error {
	p.Clear()
	if data.Fill < 0 {
		return &ConfigError{Reason: fmt.Sprintf("fill level %d must not be negative", data.Fill)}
	}
	if data.Overlap < 0 {
		return &ConfigError{Reason: fmt.Sprintf("overlap %d must not be negative", data.Overlap)}
	}
	krn, err := smoother.NewIC(m, smoother.ICOptions{
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
