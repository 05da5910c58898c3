package smoother

import (
	"fmt"

	"github.com/nataneb/dealii/pkg/operator"
)

// Creation selects how block relaxation carves the local rows into blocks.
type Creation int

const (
	// CreationLinear takes contiguous index chunks.
	CreationLinear Creation = iota
	// CreationGreedy grows each block along the sparsity graph.
	CreationGreedy
	// CreationBisection partitions the sparsity graph by recursive
	// level-set bisection.
	CreationBisection
)

func (c Creation) String() string {
	switch c {
	case CreationLinear:
		return "linear"
	case CreationGreedy:
		return "greedy"
	case CreationBisection:
		return "bisection"
	}
	return fmt.Sprintf("Creation(%d)", int(c))
}

func (c Creation) Valid() bool {
	return c >= CreationLinear && c <= CreationBisection
}

// Partition splits the locally owned rows into blocks of roughly blockSize
// rows. Every row lands in exactly one block.
func Partition(m operator.RowMatrix, blockSize int, kind Creation) ([][]int, error) {
	if blockSize < 1 {
		return nil, fmt.Errorf("block size %d must be at least 1", blockSize)
	}
	if !kind.Valid() {
		return nil, fmt.Errorf("unknown block creation kind %d", int(kind))
	}
	rng := m.RowRange()
	n := rng.Size()
	if n == 0 {
		return nil, nil
	}
	switch kind {
	case CreationGreedy:
		return greedyPartition(m, blockSize), nil
	case CreationBisection:
		all := make([]int, n)
		for i := range all {
			all[i] = i + rng.First
		}
		return bisect(m, all, blockSize), nil
	default:
		var parts [][]int
		for lo := rng.First; lo < rng.Last; lo += blockSize {
			hi := min(lo+blockSize, rng.Last)
			part := make([]int, hi-lo)
			for i := range part {
				part[i] = lo + i
			}
			parts = append(parts, part)
		}
		return parts, nil
	}
}

func greedyPartition(m operator.RowMatrix, blockSize int) [][]int {
	rng := m.RowRange()
	assigned := make([]bool, rng.Size())
	var parts [][]int
	for seed := rng.First; seed < rng.Last; seed++ {
		if assigned[seed-rng.First] {
			continue
		}
		part := []int{seed}
		assigned[seed-rng.First] = true
		frontier := []int{seed}
		for len(part) < blockSize && len(frontier) > 0 {
			var next []int
			for _, i := range frontier {
				cols, _ := m.Row(i)
				for _, j := range cols {
					if !rng.Contains(j) || assigned[j-rng.First] {
						continue
					}
					assigned[j-rng.First] = true
					part = append(part, j)
					next = append(next, j)
					if len(part) == blockSize {
						break
					}
				}
				if len(part) == blockSize {
					break
				}
			}
			frontier = next
		}
		parts = append(parts, part)
	}
	return parts
}

// bisect splits rows by breadth-first level sets from a pseudo-peripheral
// row and recurses until blocks fit.
func bisect(m operator.RowMatrix, rows []int, blockSize int) [][]int {
	if len(rows) <= blockSize {
		return [][]int{rows}
	}
	inSet := make(map[int]int, len(rows))
	for k, i := range rows {
		inSet[i] = k
	}

	order := levelOrder(m, rows, inSet, rows[0])
	// Restart from the farthest row to stretch the level structure.
	order = levelOrder(m, rows, inSet, order[len(order)-1])

	half := len(rows) / 2
	a := append([]int(nil), order[:half]...)
	b := append([]int(nil), order[half:]...)
	return append(bisect(m, a, blockSize), bisect(m, b, blockSize)...)
}

// levelOrder returns the rows of the subgraph in breadth-first order from
// start, with unreachable rows appended at the end.
func levelOrder(m operator.RowMatrix, rows []int, inSet map[int]int, start int) []int {
	seen := make([]bool, len(rows))
	order := make([]int, 0, len(rows))
	queue := []int{start}
	seen[inSet[start]] = true
	for len(queue) > 0 {
		i := queue[0]
		queue = queue[1:]
		order = append(order, i)
		cols, _ := m.Row(i)
		for _, j := range cols {
			k, ok := inSet[j]
			if !ok || seen[k] {
				continue
			}
			seen[k] = true
			queue = append(queue, j)
		}
	}
	for k, i := range rows {
		if !seen[k] {
			order = append(order, i)
		}
	}
	return order
}
