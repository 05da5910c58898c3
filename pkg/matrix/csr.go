package matrix

import (
	"fmt"
	"runtime"
	"sort"

	"golang.org/x/sync/errgroup"

	"github.com/nataneb/dealii/pkg/linalg"
	"github.com/nataneb/dealii/pkg/operator"
)

// CSR is a compressed sparse row matrix with ascending column indices in
// every row. The sparsity pattern is fixed once built; values may change.
type CSR struct {
	rowPtr []int
	colInd []int
	values []float64
	cols   int
	rng    linalg.IndexRange

	trans *CSR // cached transpose, dropped when values change
}

var _ operator.RowMatrix = (*CSR)(nil)

type entry struct {
	row, col int
	val      float64
}

// Builder accumulates coordinate entries. Duplicate coordinates are summed.
type Builder struct {
	rows, cols int
	entries    []entry
}

func NewBuilder(rows, cols int) *Builder {
	return &Builder{rows: rows, cols: cols}
}

func (b *Builder) Add(i, j int, v float64) {
	if i < 0 || i >= b.rows || j < 0 || j >= b.cols {
		panic(fmt.Sprintf("entry (%d, %d) outside %dx%d matrix", i, j, b.rows, b.cols))
	}
	b.entries = append(b.entries, entry{row: i, col: j, val: v})
}

func (b *Builder) Finish() *CSR {
	sort.Slice(b.entries, func(p, q int) bool {
		if b.entries[p].row != b.entries[q].row {
			return b.entries[p].row < b.entries[q].row
		}
		return b.entries[p].col < b.entries[q].col
	})

	m := &CSR{
		rowPtr: make([]int, b.rows+1),
		cols:   b.cols,
		rng:    linalg.CompleteRange(b.rows),
	}
	m.colInd = make([]int, 0, len(b.entries))
	m.values = make([]float64, 0, len(b.entries))

	row := 0
	for k := 0; k < len(b.entries); {
		e := b.entries[k]
		v := e.val
		k++
		for k < len(b.entries) && b.entries[k].row == e.row && b.entries[k].col == e.col {
			v += b.entries[k].val
			k++
		}
		for row < e.row {
			row++
			m.rowPtr[row] = len(m.colInd)
		}
		m.colInd = append(m.colInd, e.col)
		m.values = append(m.values, v)
	}
	for row < b.rows {
		row++
		m.rowPtr[row] = len(m.colInd)
	}
	return m
}

func (m *CSR) NumRows() int                { return m.rng.GlobalSize() }
func (m *CSR) NumCols() int                { return m.cols }
func (m *CSR) RowRange() linalg.IndexRange { return m.rng }
func (m *CSR) NNZ() int                    { return len(m.colInd) }

func (m *CSR) Row(i int) (cols []int, vals []float64) {
	li := i - m.rng.First
	return m.colInd[m.rowPtr[li]:m.rowPtr[li+1]], m.values[m.rowPtr[li]:m.rowPtr[li+1]]
}

func (m *CSR) At(i, j int) float64 {
	cols, vals := m.Row(i)
	k := sort.SearchInts(cols, j)
	if k < len(cols) && cols[k] == j {
		return vals[k]
	}
	return 0
}

// Set overwrites an existing entry. The pattern is fixed, so setting a
// structural zero fails.
func (m *CSR) Set(i, j int, v float64) error {
	li := i - m.rng.First
	cols := m.colInd[m.rowPtr[li]:m.rowPtr[li+1]]
	k := sort.SearchInts(cols, j)
	if k == len(cols) || cols[k] != j {
		return fmt.Errorf("entry (%d, %d) is not in the sparsity pattern", i, j)
	}
	m.values[m.rowPtr[li]+k] = v
	m.trans = nil
	return nil
}

func (m *CSR) MatVec(dst, src []float64) {
	for i := 0; i < m.rng.Size(); i++ {
		s := 0.0
		for k := m.rowPtr[i]; k < m.rowPtr[i+1]; k++ {
			s += m.values[k] * src[m.colInd[k]]
		}
		dst[i] = s
	}
}

func (m *CSR) MatTransVec(dst, src []float64) {
	for j := range dst {
		dst[j] = 0
	}
	for i := 0; i < m.rng.Size(); i++ {
		x := src[i]
		if x == 0 {
			continue
		}
		for k := m.rowPtr[i]; k < m.rowPtr[i+1]; k++ {
			dst[m.colInd[k]] += m.values[k] * x
		}
	}
}

func (m *CSR) Diagonal(dst []float64) {
	for i := 0; i < m.rng.Size(); i++ {
		dst[i] = m.At(i+m.rng.First, i+m.rng.First)
	}
}

// Transpose returns the transposed matrix. The result is cached and shared;
// it is recomputed after any Set.
func (m *CSR) Transpose() *CSR {
	if m.trans != nil {
		return m.trans
	}
	n := m.NumRows()
	t := &CSR{
		rowPtr: make([]int, m.cols+1),
		colInd: make([]int, len(m.colInd)),
		values: make([]float64, len(m.values)),
		cols:   n,
		rng:    linalg.CompleteRange(m.cols),
	}
	for _, j := range m.colInd {
		t.rowPtr[j+1]++
	}
	for j := 0; j < m.cols; j++ {
		t.rowPtr[j+1] += t.rowPtr[j]
	}
	next := make([]int, m.cols)
	copy(next, t.rowPtr[:m.cols])
	for i := 0; i < n; i++ {
		for k := m.rowPtr[i]; k < m.rowPtr[i+1]; k++ {
			j := m.colInd[k]
			t.colInd[next[j]] = i
			t.values[next[j]] = m.values[k]
			next[j]++
		}
	}
	m.trans = t
	return t
}

// Mul computes m*b. Rows of the result are computed in parallel.
func (m *CSR) Mul(b *CSR) (*CSR, error) {
	if m.cols != b.NumRows() {
		return nil, fmt.Errorf("product of %dx%d and %dx%d matrices", m.NumRows(), m.cols, b.NumRows(), b.cols)
	}
	n := m.NumRows()
	outCols := make([][]int, n)
	outVals := make([][]float64, n)

	var g errgroup.Group
	workers := runtime.NumCPU()
	chunk := (n + workers - 1) / workers
	for w := 0; w < workers; w++ {
		lo := w * chunk
		hi := min(lo+chunk, n)
		if lo >= hi {
			break
		}
		g.Go(func() error {
			marker := make([]int, b.cols)
			for j := range marker {
				marker[j] = -1
			}
			acc := make([]float64, b.cols)
			for i := lo; i < hi; i++ {
				var touched []int
				for k := m.rowPtr[i]; k < m.rowPtr[i+1]; k++ {
					aij := m.values[k]
					bi := m.colInd[k]
					for l := b.rowPtr[bi]; l < b.rowPtr[bi+1]; l++ {
						j := b.colInd[l]
						if marker[j] != i {
							marker[j] = i
							acc[j] = 0
							touched = append(touched, j)
						}
						acc[j] += aij * b.values[l]
					}
				}
				sort.Ints(touched)
				vals := make([]float64, len(touched))
				for p, j := range touched {
					vals[p] = acc[j]
				}
				outCols[i] = touched
				outVals[i] = vals
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	c := &CSR{
		rowPtr: make([]int, n+1),
		cols:   b.cols,
		rng:    linalg.CompleteRange(n),
	}
	nnz := 0
	for i := range outCols {
		nnz += len(outCols[i])
	}
	c.colInd = make([]int, 0, nnz)
	c.values = make([]float64, 0, nnz)
	for i := 0; i < n; i++ {
		c.colInd = append(c.colInd, outCols[i]...)
		c.values = append(c.values, outVals[i]...)
		c.rowPtr[i+1] = len(c.colInd)
	}
	return c, nil
}

// MemoryBytes estimates the heap held by the matrix.
func (m *CSR) MemoryBytes() int {
	b := 8*len(m.rowPtr) + 8*len(m.colInd) + 8*len(m.values)
	if m.trans != nil {
		b += m.trans.MemoryBytes()
	}
	return b
}
