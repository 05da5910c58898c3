package amg

import (
	"math"
	"slices"

	"github.com/nataneb/dealii/pkg/matrix"
)

// aggregate clusters rows along strong connections and returns the
// aggregate id per row plus the aggregate count. A connection is strong
// when |a_ij| >= threshold * sqrt(|a_ii * a_jj|). With degreeOrder the
// seeding visits the most strongly coupled rows first, which keeps
// aggregates compact for wide stencils.
func aggregate(a *matrix.CSR, threshold float64, degreeOrder bool) ([]int, int) {
	n := a.NumRows()
	diag := make([]float64, n)
	a.Diagonal(diag)
	strong := func(i, j int, v float64) bool {
		if j == i {
			return false
		}
		return math.Abs(v) >= threshold*math.Sqrt(math.Abs(diag[i]*diag[j]))
	}

	order := make([]int, n)
	for i := range order {
		order[i] = i
	}
	if degreeOrder {
		deg := make([]int, n)
		for i := 0; i < n; i++ {
			cols, vals := a.Row(i)
			for k, j := range cols {
				if strong(i, j, vals[k]) {
					deg[i]++
				}
			}
		}
		slices.SortStableFunc(order, func(p, q int) int { return deg[q] - deg[p] })
	}

	agg := make([]int, n)
	for i := range agg {
		agg[i] = -1
	}
	next := 0

	// Rows whose strong neighborhood is still untouched seed a new
	// aggregate together with that neighborhood.
	for _, i := range order {
		if agg[i] >= 0 {
			continue
		}
		cols, vals := a.Row(i)
		free := true
		for k, j := range cols {
			if strong(i, j, vals[k]) && agg[j] >= 0 {
				free = false
				break
			}
		}
		if !free {
			continue
		}
		agg[i] = next
		for k, j := range cols {
			if strong(i, j, vals[k]) {
				agg[j] = next
			}
		}
		next++
	}

	// Leftover rows join the strongest neighboring aggregate of the first
	// pass. The snapshot keeps these decisions order independent.
	snap := slices.Clone(agg)
	for i := 0; i < n; i++ {
		if agg[i] >= 0 {
			continue
		}
		best, bestV := -1, -1.0
		cols, vals := a.Row(i)
		for k, j := range cols {
			if !strong(i, j, vals[k]) || snap[j] < 0 {
				continue
			}
			if v := math.Abs(vals[k]); v > bestV {
				bestV, best = v, snap[j]
			}
		}
		if best >= 0 {
			agg[i] = best
		}
	}

	// Isolated rows become singleton aggregates.
	for i := 0; i < n; i++ {
		if agg[i] < 0 {
			agg[i] = next
			next++
		}
	}
	return agg, next
}
