package smoother

import (
	"fmt"
	"runtime"

	"github.com/RoaringBitmap/roaring/v2"
	"github.com/edp1096/sparse"
	"golang.org/x/sync/errgroup"
	"gonum.org/v1/gonum/mat"

	"github.com/nataneb/dealii/internal/consts"
	"github.com/nataneb/dealii/pkg/matrix"
	"github.com/nataneb/dealii/pkg/operator"
)

type SchwarzMode int

const (
	// SchwarzAdditive solves all blocks against the same residual.
	SchwarzAdditive SchwarzMode = iota
	// SchwarzMultiplicative sweeps the blocks in order, each seeing the
	// updates of its predecessors.
	SchwarzMultiplicative
	// SchwarzSymmetric runs a forward and a backward multiplicative sweep.
	SchwarzSymmetric
)

type SchwarzOptions struct {
	// Parts are the owned rows per block, a disjoint cover of the local
	// rows.
	Parts       [][]int
	Overlap     int
	Mode        SchwarzMode
	Omega       float64
	MinDiagonal float64
	Sweeps      int
	ZeroStart   bool

	// Direct factors each block with the sparse LU backend instead of a
	// dense factorization.
	Direct bool
}

type schwarzBlock struct {
	rows  []int // owned plus overlap, ascending
	owned []int // positions of the owned rows within rows

	lu   *mat.LU
	sp   *sparse.Matrix
	rhs  []float64 // 1-based scratch for the sparse backend
	bv   *mat.VecDense
	xv   *mat.VecDense
	bloc []float64
	xloc []float64
}

// Schwarz combines independent block solves into one operator. Overlap
// rows enter each block's solve, but only owned rows receive its update.
type Schwarz struct {
	opBase
	m    operator.RowMatrix
	mt   *matrix.CSR
	opts SchwarzOptions
	blks []schwarzBlock
	r    []float64
}

var _ operator.Operator = (*Schwarz)(nil)

func NewSchwarz(m operator.RowMatrix, opts SchwarzOptions) (*Schwarz, error) {
	if err := checkSquare(m); err != nil {
		return nil, err
	}
	if opts.Omega <= 0 {
		return nil, fmt.Errorf("relaxation factor %g must be positive", opts.Omega)
	}
	if opts.Sweeps < 1 {
		return nil, fmt.Errorf("sweep count %d must be at least 1", opts.Sweeps)
	}
	if opts.Overlap < 0 {
		return nil, fmt.Errorf("overlap %d must not be negative", opts.Overlap)
	}
	rng := m.RowRange()
	if err := checkCover(opts.Parts, rng.First, rng.Last); err != nil {
		return nil, err
	}

	s := &Schwarz{
		m:    m,
		opts: opts,
		blks: make([]schwarzBlock, len(opts.Parts)),
		r:    make([]float64, rng.Size()),
	}
	s.rng = rng

	g := new(errgroup.Group)
	g.SetLimit(runtime.NumCPU())
	for bi := range opts.Parts {
		g.Go(func() error {
			blk, err := buildBlock(m, opts, opts.Parts[bi])
			if err != nil {
				return err
			}
			s.blks[bi] = blk
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return s, nil
}

func checkCover(parts [][]int, first, last int) error {
	if len(parts) == 0 {
		return fmt.Errorf("block partition is empty")
	}
	seen := roaring.New()
	total := 0
	for _, part := range parts {
		for _, i := range part {
			if i < first || i >= last {
				return fmt.Errorf("row %d outside owned range [%d, %d)", i, first, last)
			}
			seen.AddInt(i)
		}
		total += len(part)
	}
	if total != last-first || int(seen.GetCardinality()) != last-first {
		return fmt.Errorf("block partition does not cover every row exactly once")
	}
	return nil
}

// expandRows grows the owned set by rows reachable within overlap hops
// through nonzero columns.
func expandRows(m operator.RowMatrix, owned []int, overlap int) []int {
	set := roaring.New()
	frontier := roaring.New()
	for _, i := range owned {
		set.AddInt(i)
		frontier.AddInt(i)
	}
	rng := m.RowRange()
	for h := 0; h < overlap; h++ {
		next := roaring.New()
		it := frontier.Iterator()
		for it.HasNext() {
			cols, _ := m.Row(int(it.Next()))
			for _, j := range cols {
				if rng.Contains(j) && !set.Contains(uint32(j)) {
					next.AddInt(j)
				}
			}
		}
		if next.IsEmpty() {
			break
		}
		set.Or(next)
		frontier = next
	}
	arr := set.ToArray()
	rows := make([]int, len(arr))
	for k, v := range arr {
		rows[k] = int(v)
	}
	return rows
}

func buildBlock(m operator.RowMatrix, opts SchwarzOptions, part []int) (schwarzBlock, error) {
	rows := expandRows(m, part, opts.Overlap)
	nb := len(rows)
	loc := make(map[int]int, nb)
	for p, i := range rows {
		loc[i] = p
	}
	ownedSet := make(map[int]bool, len(part))
	for _, i := range part {
		ownedSet[i] = true
	}
	blk := schwarzBlock{
		rows: rows,
		bloc: make([]float64, nb),
		xloc: make([]float64, nb),
	}
	for p, i := range rows {
		if ownedSet[i] {
			blk.owned = append(blk.owned, p)
		}
	}

	if opts.Direct {
		config := &sparse.Configuration{
			Real:                    true,
			Complex:                 false,
			SeparatedComplexVectors: false,
			Expandable:              true,
			Translate:               false,
			ModifiedNodal:           false,
			TiesMultiplier:          5,
			PrinterWidth:            140,
			Annotate:                0,
		}
		sp, err := sparse.Create(int64(nb), config)
		if err != nil {
			return blk, fmt.Errorf("matrix creation failed: %v", err)
		}
		for p, i := range rows {
			cols, vals := m.Row(i)
			for k, j := range cols {
				q, ok := loc[j]
				if !ok {
					continue
				}
				e := sp.GetElement(int64(p+1), int64(q+1))
				if e == nil {
					return blk, fmt.Errorf("element allocation failed at (%d, %d)", p+1, q+1)
				}
				e.Real += vals[k]
			}
		}
		blk.rhs = make([]float64, nb+1)
		if err := sp.OrderAndFactor(blk.rhs, consts.PIVOT_THRESHOLD, 0, true); err != nil {
			return blk, fmt.Errorf("matrix factorization failed: %v", err)
		}
		blk.sp = sp
		return blk, nil
	}

	dense := mat.NewDense(nb, nb, nil)
	for p, i := range rows {
		cols, vals := m.Row(i)
		for k, j := range cols {
			if q, ok := loc[j]; ok {
				dense.Set(p, q, vals[k])
			}
		}
	}
	for p := 0; p < nb; p++ {
		d := dense.At(p, p)
		if d >= 0 && d < opts.MinDiagonal {
			dense.Set(p, p, opts.MinDiagonal)
		} else if d < 0 && -d < opts.MinDiagonal {
			dense.Set(p, p, -opts.MinDiagonal)
		}
	}
	blk.lu = new(mat.LU)
	blk.lu.Factorize(dense)
	blk.bv = mat.NewVecDense(nb, blk.bloc)
	blk.xv = mat.NewVecDense(nb, blk.xloc)
	return blk, nil
}

func (blk *schwarzBlock) solve(trans bool) error {
	if blk.sp != nil {
		copy(blk.rhs[1:], blk.bloc)
		var sol []float64
		var err error
		if trans {
			sol, err = blk.sp.SolveTransposed(blk.rhs)
		} else {
			sol, err = blk.sp.Solve(blk.rhs)
		}
		if err != nil {
			return fmt.Errorf("matrix solve failed: %v", err)
		}
		copy(blk.xloc, sol[1:len(blk.xloc)+1])
		return nil
	}
	if err := blk.lu.SolveVecTo(blk.xv, trans, blk.bv); err != nil {
		return fmt.Errorf("block solve failed: %v", err)
	}
	return nil
}

func (s *Schwarz) SetUseTranspose(use bool) error {
	if use && s.mt == nil && s.opts.Mode != SchwarzAdditive {
		s.mt = matrix.FromRowMatrix(s.m).Transpose()
	}
	s.useTranspose = use
	return nil
}

func (s *Schwarz) ApplyInverse(dst, src []float64) error {
	n := s.rng.Size()
	if err := checkLengths(n, dst, src); err != nil {
		return err
	}
	startZero := s.opts.ZeroStart
	if startZero {
		zero(dst)
	}
	for sweep := 0; sweep < s.opts.Sweeps; sweep++ {
		xIsZero := startZero && sweep == 0
		var err error
		switch s.opts.Mode {
		case SchwarzAdditive:
			err = s.additiveSweep(dst, src, xIsZero)
		case SchwarzMultiplicative:
			err = s.multiplicativeSweep(dst, src, s.useTranspose)
		case SchwarzSymmetric:
			if err = s.multiplicativeSweep(dst, src, s.useTranspose); err == nil {
				err = s.multiplicativeSweep(dst, src, !s.useTranspose)
			}
		}
		if err != nil {
			return err
		}
	}
	return nil
}

func (s *Schwarz) additiveSweep(x, b []float64, xIsZero bool) error {
	if xIsZero {
		copy(s.r, b)
	} else {
		if s.useTranspose {
			s.m.MatTransVec(s.r, x)
		} else {
			s.m.MatVec(s.r, x)
		}
		for i := range s.r {
			s.r[i] = b[i] - s.r[i]
		}
	}
	first := s.rng.First
	for bi := range s.blks {
		blk := &s.blks[bi]
		for p, i := range blk.rows {
			blk.bloc[p] = s.r[i-first]
		}
		if err := blk.solve(s.useTranspose); err != nil {
			return err
		}
		for _, p := range blk.owned {
			x[blk.rows[p]-first] += s.opts.Omega * blk.xloc[p]
		}
	}
	return nil
}

// multiplicativeSweep updates the blocks in order against the current
// iterate. The reversed order with transposed solves is the transpose of
// the forward sweep.
func (s *Schwarz) multiplicativeSweep(x, b []float64, trans bool) error {
	rows := s.m
	if trans {
		if s.mt == nil {
			s.mt = matrix.FromRowMatrix(s.m).Transpose()
		}
		rows = s.mt
	}
	first := s.rng.First
	nb := len(s.blks)
	for step := 0; step < nb; step++ {
		bi := step
		if trans {
			bi = nb - 1 - step
		}
		blk := &s.blks[bi]
		for p, i := range blk.rows {
			cols, vals := rows.Row(i)
			r := b[i-first]
			for k, j := range cols {
				r -= vals[k] * x[j-first]
			}
			blk.bloc[p] = r
		}
		if err := blk.solve(trans); err != nil {
			return err
		}
		for _, p := range blk.owned {
			x[blk.rows[p]-first] += s.opts.Omega * blk.xloc[p]
		}
	}
	return nil
}
