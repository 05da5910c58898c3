package solver

import (
	"fmt"

	"gonum.org/v1/gonum/floats"

	"github.com/nataneb/dealii/pkg/operator"
)

// BiCGStab solves a x = b for a general square matrix, refining x in
// place. The preconditioner is applied on the right, so the residuals the
// driver reports are the true ones.
func BiCGStab(a operator.RowMatrix, x, b []float64, p Preconditioner, s Settings) (Result, error) {
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
	residual(a, r, x, b)
	tr := newTracker(bnorm, s)
	rel, done := tr.observe(floats.Norm(r, 2))
	if done {
		return Result{Residual: rel, History: tr.history}, nil
	}

	// The shadow residual stays fixed at the initial residual.
	rhat := append([]float64(nil), r...)
	v := make([]float64, n)
	d := make([]float64, n)
	dhat := make([]float64, n)
	shat := make([]float64, n)
	t := make([]float64, n)
	rho, alpha, omega := 1.0, 1.0, 1.0

	for iter := 1; iter <= s.MaxIterations; iter++ {
		rhoNext := floats.Dot(rhat, r)
		if rhoNext == 0 {
			return Result{Iterations: iter - 1, Residual: rel, History: tr.history},
				&BreakdownError{Quantity: "shadow residual product", Value: rhoNext}
		}
		beta := (rhoNext / rho) * (alpha / omega)
		for i := range d {
			d[i] = r[i] + beta*(d[i]-omega*v[i])
		}

		if err := p.VmultSlice(dhat, d); err != nil {
			return Result{}, fmt.Errorf("applying preconditioner: %w", err)
		}
		a.MatVec(v, dhat)
		gamma := floats.Dot(rhat, v)
		if gamma == 0 {
			return Result{Iterations: iter - 1, Residual: rel, History: tr.history},
				&BreakdownError{Quantity: "shadow direction product", Value: gamma}
		}
		alpha = rhoNext / gamma

		// Half step: r now holds s = r - alpha v.
		floats.AddScaled(r, -alpha, v)
		if srel := floats.Norm(r, 2) / bnorm; srel <= s.Tolerance {
			floats.AddScaled(x, alpha, dhat)
			tr.record(srel)
			return Result{Iterations: iter, Residual: srel, History: tr.history}, nil
		}

		if err := p.VmultSlice(shat, r); err != nil {
			return Result{}, fmt.Errorf("applying preconditioner: %w", err)
		}
		a.MatVec(t, shat)
		tt := floats.Dot(t, t)
		if tt == 0 {
			return Result{Iterations: iter - 1, Residual: rel, History: tr.history},
				&BreakdownError{Quantity: "stabilizer norm", Value: tt}
		}
		omega = floats.Dot(t, r) / tt

		floats.AddScaled(x, alpha, dhat)
		floats.AddScaled(x, omega, shat)
		floats.AddScaled(r, -omega, t)

		rel, done = tr.observe(floats.Norm(r, 2))
		if done {
			return Result{Iterations: iter, Residual: rel, History: tr.history}, nil
		}
		if omega == 0 {
			return Result{Iterations: iter, Residual: rel, History: tr.history},
				&BreakdownError{Quantity: "stabilization weight", Value: omega}
		}
		rho = rhoNext
	}

	return Result{Iterations: s.MaxIterations, Residual: rel, History: tr.history},
		&IterationError{Iterations: s.MaxIterations, Residual: rel}
}
