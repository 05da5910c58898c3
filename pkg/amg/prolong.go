package amg

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/mat"

	"github.com/nataneb/dealii/internal/consts"
	"github.com/nataneb/dealii/pkg/matrix"
	"github.com/nataneb/dealii/pkg/smoother"
)

// tentative builds the aggregate-wise interpolation and the coarse null
// space. Every aggregate carries one coarse column per null space vector,
// orthonormalized over the aggregate rows so that the interpolated coarse
// null space reproduces the fine one exactly.
func tentative(agg []int, nAgg int, ns [][]float64) (*matrix.CSR, [][]float64, error) {
	n := len(agg)
	dim := len(ns)
	rowsOf := make([][]int, nAgg)
	for i, g := range agg {
		rowsOf[g] = append(rowsOf[g], i)
	}

	bld := matrix.NewBuilder(n, nAgg*dim)
	coarse := make([][]float64, dim)
	for t := range coarse {
		coarse[t] = make([]float64, nAgg*dim)
	}

	if dim == 1 {
		v := ns[0]
		for g, rows := range rowsOf {
			s := 0.0
			for _, i := range rows {
				s += v[i] * v[i]
			}
			nrm := math.Sqrt(s)
			if nrm == 0 {
				return nil, nil, fmt.Errorf("null space vector vanishes on aggregate %d", g)
			}
			for _, i := range rows {
				bld.Add(i, g, v[i]/nrm)
			}
			coarse[0][g] = nrm
		}
		return bld.Finish(), coarse, nil
	}

	for g, rows := range rowsOf {
		if len(rows) < dim {
			return nil, nil, fmt.Errorf("aggregate %d has %d rows for %d null space vectors", g, len(rows), dim)
		}
		b := mat.NewDense(len(rows), dim, nil)
		for ri, i := range rows {
			for t := 0; t < dim; t++ {
				b.Set(ri, t, ns[t][i])
			}
		}
		var qr mat.QR
		qr.Factorize(b)
		var q, r mat.Dense
		qr.QTo(&q)
		qr.RTo(&r)
		for t := 0; t < dim; t++ {
			if r.At(t, t) == 0 {
				return nil, nil, fmt.Errorf("null space block for aggregate %d is rank deficient", g)
			}
		}
		for ri, i := range rows {
			for t := 0; t < dim; t++ {
				if v := q.At(ri, t); v != 0 {
					bld.Add(i, g*dim+t, v)
				}
			}
		}
		for s := 0; s < dim; s++ {
			for t := 0; t < dim; t++ {
				coarse[t][g*dim+s] = r.At(s, t)
			}
		}
	}
	return bld.Finish(), coarse, nil
}

func inverseDiagonal(a *matrix.CSR) []float64 {
	n := a.NumRows()
	diag := make([]float64, n)
	a.Diagonal(diag)
	inv := make([]float64, n)
	for i, d := range diag {
		if d != 0 {
			inv[i] = 1 / d
		}
	}
	return inv
}

// smoothProlongator damps the tentative interpolation with one weighted
// Jacobi step, P = (I - omega D^-1 A) P0. The weight follows the largest
// eigenvalue of the scaled operator.
func smoothProlongator(a *matrix.CSR, p0 *matrix.CSR) (*matrix.CSR, error) {
	inv := inverseDiagonal(a)
	lambda := smoother.EstimateMaxEigenvalue(a, inv, consts.EIGEN_STEPS)
	if lambda <= 0 {
		lambda = 1
	}
	omega := consts.PROLONG_DAMPING / lambda

	n := a.NumRows()
	bld := matrix.NewBuilder(n, n)
	for i := 0; i < n; i++ {
		bld.Add(i, i, 1)
		cols, vals := a.Row(i)
		for k, j := range cols {
			bld.Add(i, j, -omega*inv[i]*vals[k])
		}
	}
	p, err := bld.Finish().Mul(p0)
	if err != nil {
		return nil, fmt.Errorf("prolongator smoothing: %w", err)
	}
	return p, nil
}
