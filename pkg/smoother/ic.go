package smoother

import (
	"fmt"
	"math"
	"slices"

	"github.com/nataneb/dealii/pkg/operator"
)

type ICOptions struct {
	Fill    int
	ATol    float64
	RTol    float64
	Overlap int
}

// icFactor stores the upper Cholesky factor row-wise, diagonal first in
// every row.
type icFactor struct {
	rowPtr []int
	cols   []int
	vals   []float64
}

func (f *icFactor) solve(x, b []float64) {
	n := len(f.rowPtr) - 1
	copy(x, b)
	// U^T is lower triangular; scatter each finished row forward.
	for i := 0; i < n; i++ {
		x[i] /= f.vals[f.rowPtr[i]]
		for k := f.rowPtr[i] + 1; k < f.rowPtr[i+1]; k++ {
			x[f.cols[k]] -= f.vals[k] * x[i]
		}
	}
	for i := n - 1; i >= 0; i-- {
		s := x[i]
		for k := f.rowPtr[i] + 1; k < f.rowPtr[i+1]; k++ {
			s -= f.vals[k] * x[f.cols[k]]
		}
		x[i] = s / f.vals[f.rowPtr[i]]
	}
}

func (f *icFactor) memoryBytes() int {
	return 8*(len(f.rowPtr)+len(f.cols)) + 8*len(f.vals)
}

// IC is an incomplete Cholesky factorization with level-of-fill control for
// symmetric positive definite matrices. Only the upper triangle of the
// matrix is read.
type IC struct {
	opBase
	f *icFactor
}

var _ operator.Operator = (*IC)(nil)

func NewIC(m operator.RowMatrix, opts ICOptions) (*IC, error) {
	if err := checkSquare(m); err != nil {
		return nil, err
	}
	if opts.Fill < 0 {
		return nil, fmt.Errorf("fill level %d must not be negative", opts.Fill)
	}
	f, err := factorIC(m, opts)
	if err != nil {
		return nil, err
	}
	p := &IC{f: f}
	p.rng = m.RowRange()
	return p, nil
}

// SetUseTranspose is a no-op: the factorization is symmetric.
func (p *IC) SetUseTranspose(use bool) error {
	p.useTranspose = use
	return nil
}

func (p *IC) ApplyInverse(dst, src []float64) error {
	if err := checkLengths(p.rng.Size(), dst, src); err != nil {
		return err
	}
	p.f.solve(dst, src)
	return nil
}

// factorIC runs up-looking incomplete Cholesky. colRows[i] lists the rows
// whose next unconsumed entry sits in column i, so every update row is
// found without column storage.
func factorIC(m operator.RowMatrix, opts ICOptions) (*icFactor, error) {
	rng := m.RowRange()
	n := rng.Size()
	f := &icFactor{
		rowPtr: make([]int, n+1),
	}
	levels := make([]int, 0)
	colRows := make([][]int, n)
	pos := make([]int, n)

	w := make([]float64, n)
	lv := make([]int, n)
	for i := range lv {
		lv[i] = -1
	}

	advance := func(k int) {
		if pos[k] < f.rowPtr[k+1] {
			j := f.cols[pos[k]]
			colRows[j] = append(colRows[j], k)
		}
	}

	for i := 0; i < n; i++ {
		cols, vals := m.Row(i + rng.First)
		pat := make([]int, 0, len(cols))
		for k, j := range cols {
			if j < i {
				continue
			}
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
			pat = slices.Insert(pat, 0, i)
		}

		for _, k := range colRows[i] {
			p := pos[k]
			uki := f.vals[p]
			levKI := levels[p]
			for q := p; q < f.rowPtr[k+1]; q++ {
				j := f.cols[q]
				nl := levKI + levels[q] + 1
				if lv[j] >= 0 {
					w[j] -= uki * f.vals[q]
					if nl < lv[j] {
						lv[j] = nl
					}
				} else if nl <= opts.Fill {
					w[j] = -uki * f.vals[q]
					lv[j] = nl
					at, _ := slices.BinarySearch(pat, j)
					pat = slices.Insert(pat, at, j)
				}
			}
			pos[k] = p + 1
			advance(k)
		}

		d := w[i]
		if d <= 0 {
			return nil, fmt.Errorf("nonpositive pivot %g in row %d", d, i)
		}
		uii := math.Sqrt(d)

		f.rowPtr[i] = len(f.cols)
		f.cols = append(f.cols, i)
		f.vals = append(f.vals, uii)
		levels = append(levels, 0)
		lv[i] = -1
		for _, j := range pat {
			if j == i {
				continue
			}
			f.cols = append(f.cols, j)
			f.vals = append(f.vals, w[j]/uii)
			levels = append(levels, lv[j])
			lv[j] = -1
		}
		f.rowPtr[i+1] = len(f.cols)

		pos[i] = f.rowPtr[i] + 1
		advance(i)
	}
	return f, nil
}
