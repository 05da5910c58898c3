package amg

import (
	"fmt"
	"io"
	"log/slog"

	"gonum.org/v1/gonum/floats"

	"github.com/nataneb/dealii/internal/consts"
	"github.com/nataneb/dealii/pkg/linalg"
	"github.com/nataneb/dealii/pkg/matrix"
	"github.com/nataneb/dealii/pkg/operator"
	"github.com/nataneb/dealii/pkg/smoother"
)

// SmootherFactory builds the level smoother for one hierarchy matrix. The
// returned operator must refine its first argument in place.
type SmootherFactory func(a *matrix.CSR) (operator.Operator, error)

type Options struct {
	// Elliptic selects smoothed aggregation with a polynomial smoother;
	// otherwise the tentative interpolation is used together with
	// symmetric Gauss-Seidel sweeps.
	Elliptic bool
	// HigherOrder seeds aggregates at the most strongly coupled rows
	// first, which keeps aggregates compact for wide stencils.
	HigherOrder bool
	NCycles     int
	WCycle      bool
	// AggregationThreshold declares a coupling strong when |a_ij| is at
	// least the threshold times sqrt(|a_ii * a_jj|).
	AggregationThreshold float64
	// NullSpace holds the near null space vectors over the fine rows.
	// Empty means a single constant vector.
	NullSpace      [][]float64
	SmootherSweeps int
	// SmootherOverlap widens smoother subdomains when the rows are
	// sharded. With a single shard it has no effect.
	SmootherOverlap int
	MaxLevels       int
	MaxCoarseSize   int
	Smoother        SmootherFactory
	Coarse          SmootherFactory
	Log             *slog.Logger
}

type level struct {
	a    *matrix.CSR
	p    *matrix.CSR // interpolation from the next coarser level
	p0   *matrix.CSR // tentative interpolation, kept for rebuilds
	agg  []int
	nAgg int

	smoother operator.Operator
	r, tmp   []float64 // fine sized scratch
	bc, xc   []float64 // coarse sized scratch
}

// Hierarchy is a smoothed aggregation multigrid operator: level matrices
// from Galerkin products, one smoother per level, and a direct solve on
// the coarsest level.
type Hierarchy struct {
	levels       []*level
	coarse       operator.Operator
	opts         Options
	rng          linalg.IndexRange
	useTranspose bool
	log          *slog.Logger
}

var _ operator.Operator = (*Hierarchy)(nil)

func Build(m *matrix.CSR, opts Options) (*Hierarchy, error) {
	if m.NumRows() != m.NumCols() {
		return nil, fmt.Errorf("matrix is %d by %d, not square", m.NumRows(), m.NumCols())
	}
	if opts.AggregationThreshold < 0 {
		return nil, fmt.Errorf("aggregation threshold %g must not be negative", opts.AggregationThreshold)
	}
	if opts.NCycles < 1 {
		opts.NCycles = 1
	}
	if opts.SmootherSweeps < 1 {
		opts.SmootherSweeps = 2
	}
	if opts.MaxLevels < 2 {
		opts.MaxLevels = consts.MAX_LEVELS
	}
	if opts.MaxCoarseSize < 1 {
		opts.MaxCoarseSize = consts.MAX_COARSE_SIZE
	}
	n := m.NumRows()
	ns := opts.NullSpace
	for k, v := range ns {
		if len(v) != n {
			return nil, fmt.Errorf("null space vector %d has length %d for %d rows", k, len(v), n)
		}
	}
	if len(ns) == 0 {
		ones := make([]float64, n)
		for i := range ones {
			ones[i] = 1
		}
		ns = [][]float64{ones}
	}

	h := &Hierarchy{opts: opts, rng: m.RowRange(), log: opts.Log}
	if h.log == nil {
		h.log = slog.New(slog.NewTextHandler(io.Discard, nil))
	}

	a := m
	for a.NumRows() > opts.MaxCoarseSize && len(h.levels) < opts.MaxLevels-1 {
		agg, nAgg := aggregate(a, opts.AggregationThreshold, opts.HigherOrder)
		if nAgg*len(ns) >= a.NumRows() {
			break
		}
		p0, coarseNS, err := tentative(agg, nAgg, ns)
		if err != nil {
			return nil, err
		}
		p := p0
		if opts.Elliptic {
			if p, err = smoothProlongator(a, p0); err != nil {
				return nil, err
			}
		}
		ac, err := galerkin(a, p)
		if err != nil {
			return nil, err
		}
		h.levels = append(h.levels, newLevel(a, p, p0, agg, nAgg, ac.NumRows()))
		h.log.Info("coarsened level",
			"level", len(h.levels)-1, "rows", a.NumRows(), "nnz", a.NNZ(),
			"aggregates", nAgg, "coarse_rows", ac.NumRows())
		a = ac
		ns = coarseNS
	}
	h.levels = append(h.levels, &level{a: a})
	h.log.Info("coarse level", "level", len(h.levels)-1, "rows", a.NumRows(), "nnz", a.NNZ())

	if err := h.buildSolvers(); err != nil {
		return nil, err
	}
	return h, nil
}

func newLevel(a, p, p0 *matrix.CSR, agg []int, nAgg, coarseRows int) *level {
	return &level{
		a: a, p: p, p0: p0, agg: agg, nAgg: nAgg,
		r:   make([]float64, a.NumRows()),
		tmp: make([]float64, a.NumRows()),
		bc:  make([]float64, coarseRows),
		xc:  make([]float64, coarseRows),
	}
}

func galerkin(a, p *matrix.CSR) (*matrix.CSR, error) {
	ap, err := a.Mul(p)
	if err != nil {
		return nil, fmt.Errorf("galerkin product: %w", err)
	}
	ac, err := p.Transpose().Mul(ap)
	if err != nil {
		return nil, fmt.Errorf("galerkin product: %w", err)
	}
	return ac, nil
}

func (h *Hierarchy) buildSolvers() error {
	sf := h.opts.Smoother
	if sf == nil {
		sf = defaultSmoother(h.opts)
	}
	for _, lv := range h.levels[:len(h.levels)-1] {
		s, err := sf(lv.a)
		if err != nil {
			return err
		}
		lv.smoother = s
	}
	cf := h.opts.Coarse
	if cf == nil {
		cf = func(a *matrix.CSR) (operator.Operator, error) {
			return smoother.NewDirect(a)
		}
	}
	coarse, err := cf(h.levels[len(h.levels)-1].a)
	if err != nil {
		return err
	}
	h.coarse = coarse
	return nil
}

func defaultSmoother(opts Options) SmootherFactory {
	if opts.Elliptic {
		return func(a *matrix.CSR) (operator.Operator, error) {
			est := smoother.EstimateMaxEigenvalue(a, inverseDiagonal(a), consts.EIGEN_STEPS)
			if est <= 0 {
				est = 1
			}
			return smoother.NewChebyshev(a, smoother.ChebyshevOptions{
				Degree:          opts.SmootherSweeps,
				MaxEigenvalue:   1.1 * est,
				EigenvalueRatio: 20,
				NonzeroStarting: true,
			})
		}
	}
	return func(a *matrix.CSR) (operator.Operator, error) {
		return smoother.NewRelaxation(a, smoother.RelaxOptions{
			Kind:   smoother.RelaxSymmetricGaussSeidel,
			Omega:  1,
			Sweeps: opts.SmootherSweeps,
		})
	}
}

// Levels reports the hierarchy depth including the coarse level.
func (h *Hierarchy) Levels() int { return len(h.levels) }

func (h *Hierarchy) SetUseTranspose(use bool) error {
	h.useTranspose = use
	return nil
}

func (h *Hierarchy) UseTranspose() bool             { return h.useTranspose }
func (h *Hierarchy) DomainRange() linalg.IndexRange { return h.rng }
func (h *Hierarchy) RangeRange() linalg.IndexRange  { return h.rng }

func (h *Hierarchy) ApplyInverse(dst, src []float64) error {
	n := h.rng.Size()
	if len(dst) != n || len(src) != n {
		return fmt.Errorf("vector lengths %d and %d do not match %d rows", len(dst), len(src), n)
	}
	for i := range dst {
		dst[i] = 0
	}
	for c := 0; c < h.opts.NCycles; c++ {
		if err := h.cycle(0, dst, src, h.useTranspose); err != nil {
			return err
		}
	}
	return nil
}

// cycle runs one multigrid cycle on level k, refining x toward the
// solution of A_k x = b. The transposed cycle keeps the same transfer
// operators, swaps the smoother phases and transposes every solve.
func (h *Hierarchy) cycle(k int, x, b []float64, trans bool) error {
	last := len(h.levels) - 1
	if k == last {
		return applyOp(h.coarse, x, b, trans)
	}
	lv := h.levels[k]

	if err := applyOp(lv.smoother, x, b, trans); err != nil {
		return err
	}
	gamma := 1
	if h.opts.WCycle && k+1 < last {
		gamma = 2
	}
	for c := 0; c < gamma; c++ {
		if trans {
			lv.a.MatTransVec(lv.r, x)
		} else {
			lv.a.MatVec(lv.r, x)
		}
		floats.SubTo(lv.r, b, lv.r)
		lv.p.MatTransVec(lv.bc, lv.r)
		for i := range lv.xc {
			lv.xc[i] = 0
		}
		if err := h.cycle(k+1, lv.xc, lv.bc, trans); err != nil {
			return err
		}
		lv.p.MatVec(lv.tmp, lv.xc)
		floats.Add(x, lv.tmp)
	}
	return applyOp(lv.smoother, x, b, trans)
}

func applyOp(op operator.Operator, x, b []float64, trans bool) error {
	if err := op.SetUseTranspose(trans); err != nil {
		return err
	}
	return op.ApplyInverse(x, b)
}

// Reinit rebuilds the hierarchy numerics for a matrix with the same
// sparsity pattern, reusing the aggregation and tentative interpolation
// of the previous build.
func (h *Hierarchy) Reinit(m *matrix.CSR) error {
	a := m
	for k := 0; k < len(h.levels)-1; k++ {
		lv := h.levels[k]
		if a.NumRows() != lv.a.NumRows() {
			return fmt.Errorf("matrix has %d rows, level %d was built with %d", a.NumRows(), k, lv.a.NumRows())
		}
		lv.a = a
		p := lv.p0
		if h.opts.Elliptic {
			var err error
			if p, err = smoothProlongator(a, lv.p0); err != nil {
				return err
			}
		}
		lv.p = p
		ac, err := galerkin(a, p)
		if err != nil {
			return err
		}
		a = ac
	}
	h.levels[len(h.levels)-1].a = a
	return h.buildSolvers()
}

// Destroy releases the coarse factorization.
func (h *Hierarchy) Destroy() {
	if d, ok := h.coarse.(*smoother.Direct); ok {
		d.Destroy()
	}
}

func (h *Hierarchy) MemoryBytes() int {
	total := 0
	for _, lv := range h.levels {
		if lv.a != nil {
			total += lv.a.MemoryBytes()
		}
		if lv.p != nil {
			total += lv.p.MemoryBytes()
		}
		if lv.p0 != nil && lv.p0 != lv.p {
			total += lv.p0.MemoryBytes()
		}
		total += 8 * (len(lv.r) + len(lv.tmp) + len(lv.bc) + len(lv.xc) + len(lv.agg))
	}
	return total
}
