package precondition

import (
	"fmt"

	"github.com/nataneb/dealii/internal/consts"
	"github.com/nataneb/dealii/pkg/amg"
	"github.com/nataneb/dealii/pkg/matrix"
	"github.com/nataneb/dealii/pkg/operator"
	"github.com/nataneb/dealii/pkg/smoother"
)

// SmootherType selects the level smoother of the multigrid hierarchy. The
// set is closed; names follow the smoothed aggregation conventions.
type SmootherType int

const (
	SmootherChebyshev SmootherType = iota
	SmootherSymmetricGaussSeidel
	SmootherGaussSeidel
	SmootherJacobi
	SmootherILU
)

func (t SmootherType) String() string {
	switch t {
	case SmootherChebyshev:
		return "Chebyshev"
	case SmootherSymmetricGaussSeidel:
		return "symmetric Gauss-Seidel"
	case SmootherGaussSeidel:
		return "Gauss-Seidel"
	case SmootherJacobi:
		return "Jacobi"
	case SmootherILU:
		return "ILU"
	}
	return fmt.Sprintf("SmootherType(%d)", int(t))
}

func (t SmootherType) valid() bool {
	return t >= SmootherChebyshev && t <= SmootherILU
}

// ParseSmootherType resolves a smoother name. The accepted names are the
// String values of the closed set.
func ParseSmootherType(name string) (SmootherType, error) {
	for t := SmootherChebyshev; t <= SmootherILU; t++ {
		if t.String() == name {
			return t, nil
		}
	}
	return 0, &ConfigError{Reason: fmt.Sprintf("unknown smoother type %q", name)}
}

// CoarseType selects the solver on the coarsest hierarchy level.
type CoarseType int

const (
	CoarseKLU CoarseType = iota
	CoarseChebyshev
	CoarseSymmetricGaussSeidel
	CoarseILU
)

func (t CoarseType) String() string {
	switch t {
	case CoarseKLU:
		return "Amesos-KLU"
	case CoarseChebyshev:
		return "Chebyshev"
	case CoarseSymmetricGaussSeidel:
		return "symmetric Gauss-Seidel"
	case CoarseILU:
		return "ILU"
	}
	return fmt.Sprintf("CoarseType(%d)", int(t))
}

func (t CoarseType) valid() bool {
	return t >= CoarseKLU && t <= CoarseILU
}

// ParseCoarseType resolves a coarse solver name.
func ParseCoarseType(name string) (CoarseType, error) {
	for t := CoarseKLU; t <= CoarseILU; t++ {
		if t.String() == name {
			return t, nil
		}
	}
	return 0, &ConfigError{Reason: fmt.Sprintf("unknown coarse solver type %q", name)}
}

// BlockCreation selects how block relaxation carves the rows into blocks.
type BlockCreation int

const (
	BlockCreationLinear BlockCreation = iota
	BlockCreationGreedy
	BlockCreationBisection
)

func (c BlockCreation) String() string {
	switch c {
	case BlockCreationLinear:
		return "linear"
	case BlockCreationGreedy:
		return "greedy"
	case BlockCreationBisection:
		return "bisection"
	}
	return fmt.Sprintf("BlockCreation(%d)", int(c))
}

func (c BlockCreation) valid() bool {
	return c >= BlockCreationLinear && c <= BlockCreationBisection
}

// ParseBlockCreation resolves a block creation name. The historical name
// "metis" maps to the bisection partitioner that replaced it.
func ParseBlockCreation(name string) (BlockCreation, error) {
	switch name {
	case "linear":
		return BlockCreationLinear, nil
	case "greedy":
		return BlockCreationGreedy, nil
	case "metis", "bisection":
		return BlockCreationBisection, nil
	}
	return 0, &ConfigError{Reason: fmt.Sprintf("unknown block creation type %q", name)}
}

func (c BlockCreation) kernelKind() smoother.Creation {
	switch c {
	case BlockCreationGreedy:
		return smoother.CreationGreedy
	case BlockCreationBisection:
		return smoother.CreationBisection
	default:
		return smoother.CreationLinear
	}
}

// smootherFactory maps a smoother selection to a hierarchy level factory.
func smootherFactory(t SmootherType, sweeps int) amg.SmootherFactory {
	switch t {
	case SmootherChebyshev:
		return nil // the hierarchy's own polynomial default
	case SmootherILU:
		return func(a *matrix.CSR) (operator.Operator, error) {
			inner, err := smoother.NewILU(a, smoother.ILUOptions{RTol: 1})
			if err != nil {
				return nil, err
			}
			// ILU overwrites; the hierarchy needs a refining smoother.
			return amg.NewCorrection(a, inner), nil
		}
	default:
		kind := smoother.RelaxSymmetricGaussSeidel
		switch t {
		case SmootherGaussSeidel:
			kind = smoother.RelaxGaussSeidel
		case SmootherJacobi:
			kind = smoother.RelaxJacobi
		}
		return func(a *matrix.CSR) (operator.Operator, error) {
			return smoother.NewRelaxation(a, smoother.RelaxOptions{
				Kind:   kind,
				Omega:  1,
				Sweeps: sweeps,
			})
		}
	}
}

// coarseFactory maps a coarse solver selection to a hierarchy factory.
func coarseFactory(t CoarseType, sweeps int) amg.SmootherFactory {
	switch t {
	case CoarseKLU:
		return func(a *matrix.CSR) (operator.Operator, error) {
			return smoother.NewDirect(a)
		}
	case CoarseILU:
		return func(a *matrix.CSR) (operator.Operator, error) {
			return smoother.NewILU(a, smoother.ILUOptions{RTol: 1})
		}
	case CoarseChebyshev:
		return func(a *matrix.CSR) (operator.Operator, error) {
			return chebyshevKernel(a, sweeps)
		}
	default:
		return func(a *matrix.CSR) (operator.Operator, error) {
			return smoother.NewRelaxation(a, smoother.RelaxOptions{
				Kind:   smoother.RelaxSymmetricGaussSeidel,
				Omega:  1,
				Sweeps: sweeps,
			})
		}
	}
}

func chebyshevKernel(a *matrix.CSR, degree int) (operator.Operator, error) {
	est := smoother.EstimateMaxEigenvalue(a, invDiagOf(a), consts.EIGEN_STEPS)
	if est <= 0 {
		est = 1
	}
	return smoother.NewChebyshev(a, smoother.ChebyshevOptions{
		Degree:          degree,
		MaxEigenvalue:   1.1 * est,
		EigenvalueRatio: 20,
		NonzeroStarting: true,
	})
}

func invDiagOf(a *matrix.CSR) []float64 {
	n := a.NumRows()
	d := make([]float64, n)
	a.Diagonal(d)
	inv := make([]float64, n)
	for i, v := range d {
		if v != 0 {
			inv[i] = 1 / v
		}
	}
	return inv
}
