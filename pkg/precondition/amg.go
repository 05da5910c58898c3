package precondition

import (
	"fmt"
	"log/slog"
	"slices"

	"gonum.org/v1/gonum/mat"

	"github.com/nataneb/dealii/internal/consts"
	"github.com/nataneb/dealii/pkg/amg"
	"github.com/nataneb/dealii/pkg/matrix"
	"github.com/nataneb/dealii/pkg/operator"
	"github.com/nataneb/dealii/pkg/params"
)

// DefaultDropTolerance is the magnitude below which InitializeCopy treats
// entries of the source matrix as structural zeros.
const DefaultDropTolerance = 1e-13

// AMGData configures the smoothed aggregation multigrid preconditioner.
// Start from DefaultAMGData and override individual fields.
type AMGData struct {
	// Elliptic selects the symmetric smoothed aggregation bundle with a
	// polynomial smoother. When false, the hierarchy keeps the tentative
	// interpolation and smooths with symmetric Gauss-Seidel sweeps, which
	// tolerates nonsymmetric operators.
	Elliptic bool
	// HigherOrderElements seeds aggregation at the most strongly coupled
	// rows first, keeping aggregates compact for wide stencils.
	HigherOrderElements bool
	// NCycles is the number of multigrid cycles per apply.
	NCycles int
	// WCycle revisits every coarse level twice per cycle.
	WCycle bool
	// AggregationThreshold declares a coupling strong when |a_ij| is at
	// least the threshold times sqrt(|a_ii * a_jj|).
	AggregationThreshold float64
	// ConstantModes marks per near null space component the rows it
	// spans; marked rows enter the mode with value one, the rest with
	// zero. Empty modes mean a single constant mode over all rows.
	ConstantModes [][]bool
	// ConstantModesValues carries explicit mode values instead of
	// indicators, as needed for rigid body modes.
	ConstantModesValues [][]float64
	// SmootherSweeps is the sweep count, or polynomial degree, of the
	// level smoothers.
	SmootherSweeps int
	// SmootherOverlap widens smoother subdomains when the rows are
	// sharded. With a single shard it has no effect.
	SmootherOverlap int
	// OutputDetails routes hierarchy construction diagnostics through the
	// default slog logger.
	OutputDetails bool
	SmootherType  SmootherType
	CoarseType    CoarseType
}

func DefaultAMGData() AMGData {
	return AMGData{
		Elliptic:             true,
		HigherOrderElements:  false,
		NCycles:              1,
		WCycle:               false,
		AggregationThreshold: 1e-4,
		SmootherSweeps:       2,
		SmootherOverlap:      0,
		OutputDetails:        false,
		SmootherType:         SmootherChebyshev,
		CoarseType:           CoarseKLU,
	}
}

// AMG is the smoothed aggregation algebraic multigrid preconditioner.
type AMG struct {
	Base
	h     *amg.Hierarchy
	owned *matrix.CSR // copy made by InitializeCopy, released by Clear
}

var _ Interface = (*AMG)(nil)
var _ MemoryReporter = (*AMG)(nil)

// Initialize builds the hierarchy for a native matrix. The matrix is
// referenced, not copied; it must outlive the preconditioner.
func (p *AMG) Initialize(m *matrix.CSR, data AMGData) error {
	p.Clear()
	l, err := data.toParams(m.NumRows())
	if err != nil {
		return err
	}
	return p.fromParams(m, l)
}

// InitializeRowMatrix builds the hierarchy for any row matrix, converting
// it to the native format first.
func (p *AMG) InitializeRowMatrix(rm operator.RowMatrix, data AMGData) error {
	return p.Initialize(matrix.FromRowMatrix(rm), data)
}

// InitializeCopy builds the hierarchy from a dense or otherwise foreign
// matrix, copying it into the native format. Entries with magnitude at
// most dropTolerance become structural zeros; DefaultDropTolerance is the
// customary value. The copy is owned by the preconditioner and released
// by Clear. This path exists for small problems and tests; sparse callers
// should assemble a native matrix instead.
func (p *AMG) InitializeCopy(a mat.Matrix, data AMGData, dropTolerance float64) error {
	p.Clear()
	if dropTolerance < 0 {
		return &ConfigError{Reason: fmt.Sprintf("drop tolerance %g must not be negative", dropTolerance)}
	}
	c := matrix.FromMatrix(a, dropTolerance)
	if err := p.Initialize(c, data); err != nil {
		return err
	}
	p.owned = c
	return nil
}

// InitializeParameters is the expert path: the caller assembles the
// parameter bundle directly. Caller keys win over derived ones; the near
// null space modes are injected by the same routine the convenience path
// uses, so the two paths cannot diverge on it.
func (p *AMG) InitializeParameters(m *matrix.CSR, l *params.List, modes ...[]float64) error {
	p.Clear()
	merged := l.Clone()
	if err := setNullSpace(merged, modes, m.NumRows()); err != nil {
		return err
	}
	return p.fromParams(m, merged)
}

func (p *AMG) fromParams(m *matrix.CSR, l *params.List) error {
	if m.NumRows() != m.NumCols() {
		return &ConfigError{Reason: fmt.Sprintf("matrix is %d by %d, not square", m.NumRows(), m.NumCols())}
	}
	opts, details, err := hierarchyOptions(l, m.NumRows())
	if err != nil {
		return err
	}
	if details {
		opts.Log = slog.Default()
	}
	h, err := amg.Build(m, opts)
	if err != nil {
		return &BackendError{Op: "initialize", Err: err}
	}
	p.h = h
	p.install(h, commOf(m), func() {
		h.Destroy()
		p.h = nil
		p.owned = nil
	})
	return nil
}

// Reinit refreshes the numeric content of the hierarchy for a matrix with
// the same sparsity pattern as the one Initialize saw, reusing the
// aggregation topology. Pattern changes are the caller's responsibility
// and are not detected.
func (p *AMG) Reinit(m operator.RowMatrix) error {
	if p.h == nil {
		return ErrNotInitialized
	}
	if err := p.h.Reinit(matrix.FromRowMatrix(m)); err != nil {
		return &BackendError{Op: "reinit", Err: err}
	}
	return nil
}

// MemoryConsumption reports the bytes held by the hierarchy, including
// the finest level matrix it references.
func (p *AMG) MemoryConsumption() int {
	if p.h == nil {
		return 0
	}
	return p.h.MemoryBytes()
}

// toParams assembles the parameter bundle the way the expert path would
// write it by hand.
func (d AMGData) toParams(rows int) (*params.List, error) {
	if !d.SmootherType.valid() {
		return nil, &ConfigError{Reason: fmt.Sprintf("unknown smoother type %q", d.SmootherType)}
	}
	if !d.CoarseType.valid() {
		return nil, &ConfigError{Reason: fmt.Sprintf("unknown coarse solver type %q", d.CoarseType)}
	}
	ns, err := d.nullSpace(rows)
	if err != nil {
		return nil, err
	}
	l := params.New()
	if d.Elliptic {
		l.Set("default values", "SA")
	} else {
		l.Set("default values", "NSSA")
	}
	if d.HigherOrderElements {
		l.Set("aggregation: type", "MIS")
	} else {
		l.Set("aggregation: type", "Uncoupled")
	}
	l.Set("aggregation: threshold", d.AggregationThreshold)
	l.Set("smoother: type", d.SmootherType.String())
	l.Set("smoother: sweeps", d.SmootherSweeps)
	l.Set("smoother: overlap", d.SmootherOverlap)
	l.Set("coarse: type", d.CoarseType.String())
	l.Set("coarse: max size", consts.MAX_COARSE_SIZE)
	l.Set("cycle applications", d.NCycles)
	if d.WCycle {
		l.Set("cycle type", "W")
	} else {
		l.Set("cycle type", "V")
	}
	if d.OutputDetails {
		l.Set("ML output", 10)
	} else {
		l.Set("ML output", 0)
	}
	if err := setNullSpace(l, ns, rows); err != nil {
		return nil, err
	}
	return l, nil
}

// nullSpace turns the mode description into dense vectors over the rows.
func (d AMGData) nullSpace(rows int) ([][]float64, error) {
	if len(d.ConstantModes) > 0 && len(d.ConstantModesValues) > 0 {
		return nil, &ConfigError{Reason: "constant modes and constant mode values are mutually exclusive"}
	}
	if len(d.ConstantModesValues) > 0 {
		ns := make([][]float64, len(d.ConstantModesValues))
		for k, v := range d.ConstantModesValues {
			if len(v) != rows {
				return nil, &ConfigError{Reason: fmt.Sprintf("constant mode %d has %d values for %d rows", k, len(v), rows)}
			}
			ns[k] = slices.Clone(v)
		}
		return ns, nil
	}
	ns := make([][]float64, 0, len(d.ConstantModes))
	for k, mode := range d.ConstantModes {
		if len(mode) != rows {
			return nil, &ConfigError{Reason: fmt.Sprintf("constant mode %d has %d entries for %d rows", k, len(mode), rows)}
		}
		v := make([]float64, rows)
		for i, on := range mode {
			if on {
				v[i] = 1
			}
		}
		ns = append(ns, v)
	}
	return ns, nil
}

// setNullSpace injects the near null space into a bundle without
// overriding caller supplied keys. An empty mode set leaves the bundle
// untouched, which the hierarchy reads as a single constant mode.
func setNullSpace(l *params.List, ns [][]float64, rows int) error {
	if len(ns) == 0 {
		return nil
	}
	for k, v := range ns {
		if len(v) != rows {
			return &ConfigError{Reason: fmt.Sprintf("null space vector %d has length %d for %d rows", k, len(v), rows)}
		}
	}
	l.SetDefault("null space: dimension", len(ns))
	l.SetDefault("null space: vectors", ns)
	return nil
}

// hierarchyOptions reads a parameter bundle back into engine options.
// Missing keys keep the DefaultAMGData values; unknown keys are ignored
// the way the original backend treats its bundles.
func hierarchyOptions(l *params.List, rows int) (amg.Options, bool, error) {
	o := amg.Options{
		Elliptic:             true,
		NCycles:              1,
		AggregationThreshold: 1e-4,
		SmootherSweeps:       2,
		MaxCoarseSize:        consts.MAX_COARSE_SIZE,
	}
	details := false
	if s, ok := l.String("default values"); ok {
		switch s {
		case "SA":
			o.Elliptic = true
		case "NSSA":
			o.Elliptic = false
		default:
			return o, false, &ConfigError{Reason: fmt.Sprintf("unknown default values %q", s)}
		}
	}
	if s, ok := l.String("aggregation: type"); ok {
		switch s {
		case "Uncoupled":
			o.HigherOrder = false
		case "MIS":
			o.HigherOrder = true
		default:
			return o, false, &ConfigError{Reason: fmt.Sprintf("unknown aggregation type %q", s)}
		}
	}
	if v, ok := l.Float("aggregation: threshold"); ok {
		if v < 0 {
			return o, false, &ConfigError{Reason: fmt.Sprintf("aggregation threshold %g must not be negative", v)}
		}
		o.AggregationThreshold = v
	}
	if v, ok := l.Int("cycle applications"); ok {
		if v < 1 {
			return o, false, &ConfigError{Reason: fmt.Sprintf("cycle applications %d must be positive", v)}
		}
		o.NCycles = v
	}
	if s, ok := l.String("cycle type"); ok {
		switch s {
		case "V":
			o.WCycle = false
		case "W":
			o.WCycle = true
		default:
			return o, false, &ConfigError{Reason: fmt.Sprintf("unknown cycle type %q", s)}
		}
	}
	if v, ok := l.Int("coarse: max size"); ok {
		if v < 1 {
			return o, false, &ConfigError{Reason: fmt.Sprintf("coarse max size %d must be positive", v)}
		}
		o.MaxCoarseSize = v
	}
	if v, ok := l.Int("smoother: sweeps"); ok {
		if v < 1 {
			return o, false, &ConfigError{Reason: fmt.Sprintf("smoother sweeps %d must be positive", v)}
		}
		o.SmootherSweeps = v
	}
	if v, ok := l.Int("smoother: overlap"); ok {
		if v < 0 {
			return o, false, &ConfigError{Reason: fmt.Sprintf("smoother overlap %d must not be negative", v)}
		}
		o.SmootherOverlap = v
	}
	st := SmootherChebyshev
	if s, ok := l.String("smoother: type"); ok {
		t, err := ParseSmootherType(s)
		if err != nil {
			return o, false, err
		}
		st = t
	}
	o.Smoother = smootherFactory(st, o.SmootherSweeps)
	ct := CoarseKLU
	if s, ok := l.String("coarse: type"); ok {
		t, err := ParseCoarseType(s)
		if err != nil {
			return o, false, err
		}
		ct = t
	}
	o.Coarse = coarseFactory(ct, o.SmootherSweeps)
	if ns, ok := l.Vectors("null space: vectors"); ok {
		if dim, found := l.Int("null space: dimension"); found && dim != len(ns) {
			return o, false, &ConfigError{Reason: fmt.Sprintf("null space dimension %d does not match %d vectors", dim, len(ns))}
		}
		for k, v := range ns {
			if len(v) != rows {
				return o, false, &ConfigError{Reason: fmt.Sprintf("null space vector %d has length %d for %d rows", k, len(v), rows)}
			}
		}
		o.NullSpace = ns
	}
	if v, ok := l.Int("ML output"); ok {
		details = v > 0
	}
	return o, details, nil
}
