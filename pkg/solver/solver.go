package solver

import (
	"fmt"

	"gonum.org/v1/gonum/floats"

	"github.com/nataneb/dealii/pkg/operator"
)

// Preconditioner applies an approximate inverse to a locally owned slice.
// Every initialized preconditioner kind satisfies it, so a kind value can
// be handed to the drivers directly.
type Preconditioner interface {
	VmultSlice(dst, src []float64) error
}

// Settings steers a single solve.
type Settings struct {
	// Tolerance is the relative residual target.
	Tolerance float64
	// MaxIterations caps the outer iteration count.
	MaxIterations int
	// History records the relative residual of every iteration, starting
	// with the initial one.
	History bool
}

func DefaultSettings() Settings {
	return Settings{Tolerance: 1e-10, MaxIterations: 1000}
}

// Result describes a finished solve. Residual is relative to the right
// hand side norm.
type Result struct {
	Iterations int
	Residual   float64
	History    []float64
}

// IterationError reports that the iteration cap was reached with the
// residual still above the tolerance.
type IterationError struct {
	Iterations int
	Residual   float64
}

func (e *IterationError) Error() string {
	return fmt.Sprintf("no convergence in %d iterations, relative residual %.3e", e.Iterations, e.Residual)
}

// BreakdownError reports a vanishing or sign violating inner product that
// stalls the recurrence.
type BreakdownError struct {
	Quantity string
	Value    float64
}

func (e *BreakdownError) Error() string {
	return fmt.Sprintf("solver breakdown: %s = %g", e.Quantity, e.Value)
}

func checkSystem(a operator.RowMatrix, x, b []float64) error {
	n := a.NumRows()
	if a.NumCols() != n {
		return fmt.Errorf("matrix is %d by %d, not square", n, a.NumCols())
	}
	if len(x) != n || len(b) != n {
		return fmt.Errorf("system has %d rows, got len(x)=%d len(b)=%d", n, len(x), len(b))
	}
	return nil
}

// residual writes b - A x into r.
func residual(a operator.RowMatrix, r, x, b []float64) {
	a.MatVec(r, x)
	floats.SubTo(r, b, r)
}

func zero(v []float64) {
	for i := range v {
		v[i] = 0
	}
}

// tracker folds residual norms into the convergence decision and the
// optional history.
type tracker struct {
	bnorm   float64
	tol     float64
	history []float64
}

func newTracker(bnorm float64, s Settings) *tracker {
	tr := &tracker{bnorm: bnorm, tol: s.Tolerance}
	if s.History {
		tr.history = make([]float64, 0, s.MaxIterations+1)
	}
	return tr
}

func (tr *tracker) record(rel float64) {
	if tr.history != nil {
		tr.history = append(tr.history, rel)
	}
}

func (tr *tracker) observe(rnorm float64) (rel float64, done bool) {
	rel = rnorm / tr.bnorm
	tr.record(rel)
	return rel, rel <= tr.tol
}
