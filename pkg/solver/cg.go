package solver

import (
	"fmt"

	"gonum.org/v1/gonum/floats"

	"github.com/nataneb/dealii/pkg/operator"
)

// CG solves a x = b with the preconditioned conjugate gradient method,
// refining x in place from its initial content. Matrix and preconditioner
// must both be symmetric positive definite for the recurrence to hold;
// violations surface as BreakdownError.
func CG(a operator.RowMatrix, x, b []float64, p Preconditioner, s Settings) (Result, error) {
	if err := checkSystem(a, x, b); err != nil {
		return Result{}, err
	}
	bnorm := floats.Norm(b, 2)
	if bnorm == 0 {
		zero(x)
		return Result{}, nil
	}

	n := len(b)
	r := make([]float64, n)
	z := make([]float64, n)
	d := make([]float64, n)
	ad := make([]float64, n)

	residual(a, r, x, b)
	tr := newTracker(bnorm, s)
	rel, done := tr.observe(floats.Norm(r, 2))
	if done {
		return Result{Residual: rel, History: tr.history}, nil
	}

	if err := p.VmultSlice(z, r); err != nil {
		return Result{}, fmt.Errorf("applying preconditioner: %w", err)
	}
	copy(d, z)
	rz := floats.Dot(r, z)
	if rz <= 0 {
		return Result{Residual: rel, History: tr.history},
			&BreakdownError{Quantity: "residual preconditioner product", Value: rz}
	}

	for iter := 1; iter <= s.MaxIterations; iter++ {
		a.MatVec(ad, d)
		dad := floats.Dot(d, ad)
		if dad <= 0 {
			return Result{Iterations: iter - 1, Residual: rel, History: tr.history},
				&BreakdownError{Quantity: "search direction energy", Value: dad}
		}
		alpha := rz / dad
		floats.AddScaled(x, alpha, d)
		floats.AddScaled(r, -alpha, ad)

		rel, done = tr.observe(floats.Norm(r, 2))
		if done {
			return Result{Iterations: iter, Residual: rel, History: tr.history}, nil
		}

		if err := p.VmultSlice(z, r); err != nil {
			return Result{}, fmt.Errorf("applying preconditioner: %w", err)
		}
		rzNext := floats.Dot(r, z)
		if rzNext <= 0 {
			return Result{Iterations: iter, Residual: rel, History: tr.history},
				&BreakdownError{Quantity: "residual preconditioner product", Value: rzNext}
		}
		beta := rzNext / rz
		for i := range d {
			d[i] = z[i] + beta*d[i]
		}
		rz = rzNext
	}

	return Result{Iterations: s.MaxIterations, Residual: rel, History: tr.history},
		&IterationError{Iterations: s.MaxIterations, Residual: rel}
}
