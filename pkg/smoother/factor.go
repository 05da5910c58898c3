package smoother

import (
	"fmt"
	"math"
	"slices"
	"sort"

	"github.com/nataneb/dealii/pkg/operator"
)

// luFactor stores an incomplete LU factorization row-wise: the strictly
// lower part holds multipliers with an implicit unit diagonal, the rest is
// the upper factor including its diagonal.
type luFactor struct {
	rowPtr []int
	cols   []int
	vals   []float64
	diag   []int
}

func (f *luFactor) solve(x, b []float64) {
	n := len(f.diag)
	copy(x, b)
	for i := 0; i < n; i++ {
		s := x[i]
		for k := f.rowPtr[i]; k < f.diag[i]; k++ {
			s -= f.vals[k] * x[f.cols[k]]
		}
		x[i] = s
	}
	for i := n - 1; i >= 0; i-- {
		s := x[i]
		for k := f.diag[i] + 1; k < f.rowPtr[i+1]; k++ {
			s -= f.vals[k] * x[f.cols[k]]
		}
		x[i] = s / f.vals[f.diag[i]]
	}
}

// solveTranspose solves (LU)^T x = b by scattering rows: U^T is lower
// triangular, L^T upper with unit diagonal.
func (f *luFactor) solveTranspose(x, b []float64) {
	n := len(f.diag)
	copy(x, b)
	for i := 0; i < n; i++ {
		x[i] /= f.vals[f.diag[i]]
		for k := f.diag[i] + 1; k < f.rowPtr[i+1]; k++ {
			x[f.cols[k]] -= f.vals[k] * x[i]
		}
	}
	for j := n - 1; j >= 0; j-- {
		for k := f.rowPtr[j]; k < f.diag[j]; k++ {
			x[f.cols[k]] -= f.vals[k] * x[j]
		}
	}
}

func (f *luFactor) memoryBytes() int {
	return 8*(len(f.rowPtr)+len(f.cols)+len(f.diag)) + 8*len(f.vals)
}

// perturbDiagonal applies atol*sign(a_ii) + rtol*a_ii.
func perturbDiagonal(v, atol, rtol float64) float64 {
	return atol*signOf(v) + rtol*v
}

type ILUOptions struct {
	Fill    int
	ATol    float64
	RTol    float64
	Overlap int
}

// ILU is an incomplete LU factorization with level-of-fill control. Fill 0
// factors on the original sparsity pattern only.
type ILU struct {
	opBase
	f *luFactor
}

var _ operator.Operator = (*ILU)(nil)

func NewILU(m operator.RowMatrix, opts ILUOptions) (*ILU, error) {
	if err := checkSquare(m); err != nil {
		return nil, err
	}
	if opts.Fill < 0 {
		return nil, fmt.Errorf("fill level %d must not be negative", opts.Fill)
	}
	f, err := factorILU(m, opts)
	if err != nil {
		return nil, err
	}
	p := &ILU{f: f}
	p.rng = m.RowRange()
	return p, nil
}

func (p *ILU) SetUseTranspose(use bool) error {
	p.useTranspose = use
	return nil
}

func (p *ILU) ApplyInverse(dst, src []float64) error {
	if err := checkLengths(p.rng.Size(), dst, src); err != nil {
		return err
	}
	if p.useTranspose {
		p.f.solveTranspose(dst, src)
	} else {
		p.f.solve(dst, src)
	}
	return nil
}

// factorILU runs the row-wise elimination with fill levels: an entry enters
// the pattern when its level, one more than the sum of the levels that
// produced it, does not exceed the requested fill.
func factorILU(m operator.RowMatrix, opts ILUOptions) (*luFactor, error) {
	rng := m.RowRange()
	n := rng.Size()
	f := &luFactor{
		rowPtr: make([]int, n+1),
		diag:   make([]int, n),
	}
	levels := make([]int, 0)

	w := make([]float64, n)
	lv := make([]int, n)
	for i := range lv {
		lv[i] = -1
	}

	for i := 0; i < n; i++ {
		cols, vals := m.Row(i + rng.First)
		pat := make([]int, 0, len(cols)+opts.Fill*2)
		for k, j := range cols {
			v := vals[k]
			if j == i {
				v = perturbDiagonal(v, opts.ATol, opts.RTol)
			}
			w[j] = v
			lv[j] = 0
			pat = append(pat, j)
		}
		if lv[i] < 0 {
			w[i] = perturbDiagonal(0, opts.ATol, opts.RTol)
			lv[i] = 0
			at, _ := slices.BinarySearch(pat, i)
			pat = slices.Insert(pat, at, i)
		}

		for idx := 0; idx < len(pat); idx++ {
			k := pat[idx]
			if k >= i {
				break
			}
			lik := w[k] / f.vals[f.diag[k]]
			w[k] = lik
			levIK := lv[k]
			for p := f.diag[k] + 1; p < f.rowPtr[k+1]; p++ {
				j := f.cols[p]
				nl := levIK + levels[p] + 1
				if lv[j] >= 0 {
					w[j] -= lik * f.vals[p]
					if nl < lv[j] {
						lv[j] = nl
					}
				} else if nl <= opts.Fill {
					w[j] = -lik * f.vals[p]
					lv[j] = nl
					at, _ := slices.BinarySearch(pat, j)
					pat = slices.Insert(pat, at, j)
				}
			}
		}

		for _, j := range pat {
			if j == i {
				f.diag[i] = len(f.cols)
			}
			f.cols = append(f.cols, j)
			f.vals = append(f.vals, w[j])
			levels = append(levels, lv[j])
			lv[j] = -1
		}
		f.rowPtr[i+1] = len(f.cols)
		if f.vals[f.diag[i]] == 0 {
			return nil, fmt.Errorf("zero pivot in row %d", i)
		}
	}
	return f, nil
}

type ILUTOptions struct {
	Drop    float64
	Fill    float64
	ATol    float64
	RTol    float64
	Overlap int
}

// ILUT is a threshold incomplete LU: the elimination runs with unlimited
// structure, then each factor row keeps its largest entries. Fill bounds the
// kept entries beyond the original row count, Drop removes entries below
// Drop times the row norm.
type ILUT struct {
	opBase
	f *luFactor
}

var _ operator.Operator = (*ILUT)(nil)

func NewILUT(m operator.RowMatrix, opts ILUTOptions) (*ILUT, error) {
	if err := checkSquare(m); err != nil {
		return nil, err
	}
	if opts.Drop < 0 {
		return nil, fmt.Errorf("drop threshold %g must not be negative", opts.Drop)
	}
	if opts.Fill < 0 {
		return nil, fmt.Errorf("fill bound %g must not be negative", opts.Fill)
	}
	f, err := factorILUT(m, opts)
	if err != nil {
		return nil, err
	}
	p := &ILUT{f: f}
	p.rng = m.RowRange()
	return p, nil
}

func (p *ILUT) SetUseTranspose(use bool) error {
	p.useTranspose = use
	return nil
}

func (p *ILUT) ApplyInverse(dst, src []float64) error {
	if err := checkLengths(p.rng.Size(), dst, src); err != nil {
		return err
	}
	if p.useTranspose {
		p.f.solveTranspose(dst, src)
	} else {
		p.f.solve(dst, src)
	}
	return nil
}

func factorILUT(m operator.RowMatrix, opts ILUTOptions) (*luFactor, error) {
	rng := m.RowRange()
	n := rng.Size()
	f := &luFactor{
		rowPtr: make([]int, n+1),
		diag:   make([]int, n),
	}
	extra := int(opts.Fill)

	w := make([]float64, n)
	in := make([]bool, n)

	for i := 0; i < n; i++ {
		cols, vals := m.Row(i + rng.First)
		pat := make([]int, 0, 2*len(cols))
		origL, origU := 0, 0
		norm := 0.0
		for k, j := range cols {
			v := vals[k]
			if j == i {
				v = perturbDiagonal(v, opts.ATol, opts.RTol)
			}
			norm += v * v
			w[j] = v
			in[j] = true
			pat = append(pat, j)
			if j < i {
				origL++
			} else if j > i {
				origU++
			}
		}
		norm = math.Sqrt(norm)
		tau := opts.Drop * norm
		if !in[i] {
			w[i] = perturbDiagonal(0, opts.ATol, opts.RTol)
			in[i] = true
			at, _ := slices.BinarySearch(pat, i)
			pat = slices.Insert(pat, at, i)
		}

		for idx := 0; idx < len(pat); idx++ {
			k := pat[idx]
			if k >= i {
				break
			}
			lik := w[k] / f.vals[f.diag[k]]
			if math.Abs(lik) <= tau {
				w[k] = 0
				continue
			}
			w[k] = lik
			for p := f.diag[k] + 1; p < f.rowPtr[k+1]; p++ {
				j := f.cols[p]
				if in[j] {
					w[j] -= lik * f.vals[p]
				} else {
					w[j] = -lik * f.vals[p]
					in[j] = true
					at, _ := slices.BinarySearch(pat, j)
					pat = slices.Insert(pat, at, j)
				}
			}
		}

		var lower, upper []int
		for _, j := range pat {
			switch {
			case j == i:
			case j < i:
				if w[j] != 0 && math.Abs(w[j]) > tau {
					lower = append(lower, j)
				}
			default:
				if math.Abs(w[j]) > tau {
					upper = append(upper, j)
				}
			}
		}
		lower = keepLargest(lower, w, origL+extra)
		upper = keepLargest(upper, w, origU+extra)

		for _, j := range lower {
			f.cols = append(f.cols, j)
			f.vals = append(f.vals, w[j])
		}
		f.diag[i] = len(f.cols)
		f.cols = append(f.cols, i)
		f.vals = append(f.vals, w[i])
		for _, j := range upper {
			f.cols = append(f.cols, j)
			f.vals = append(f.vals, w[j])
		}
		f.rowPtr[i+1] = len(f.cols)

		for _, j := range pat {
			in[j] = false
			w[j] = 0
		}
		if f.vals[f.diag[i]] == 0 {
			return nil, fmt.Errorf("zero pivot in row %d", i)
		}
	}
	return f, nil
}

// keepLargest keeps the limit entries of largest magnitude, in column order.
func keepLargest(cols []int, w []float64, limit int) []int {
	if len(cols) <= limit {
		return cols
	}
	if limit <= 0 {
		return nil
	}
	sort.Slice(cols, func(p, q int) bool {
		return math.Abs(w[cols[p]]) > math.Abs(w[cols[q]])
	})
	cols = cols[:limit]
	sort.Ints(cols)
	return cols
}
