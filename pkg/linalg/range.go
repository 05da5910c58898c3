package linalg

import "fmt"

// IndexRange is a contiguous half-open range [First, Last) of locally owned
// indices within a global index space of size Extent.
type IndexRange struct {
	First  int
	Last   int
	Extent int
}

func NewIndexRange(first, last, extent int) (IndexRange, error) {
	if first < 0 || last < first || extent < last {
		return IndexRange{}, fmt.Errorf("invalid index range [%d, %d) with extent %d", first, last, extent)
	}
	return IndexRange{First: first, Last: last, Extent: extent}, nil
}

// CompleteRange owns every index of a global space of size n.
func CompleteRange(n int) IndexRange {
	return IndexRange{First: 0, Last: n, Extent: n}
}

func (r IndexRange) Size() int       { return r.Last - r.First }
func (r IndexRange) GlobalSize() int { return r.Extent }

func (r IndexRange) Contains(i int) bool {
	return i >= r.First && i < r.Last
}

// Complete reports whether the range owns the whole global space, which is
// the case for sequential execution.
func (r IndexRange) Complete() bool {
	return r.First == 0 && r.Last == r.Extent
}

func (r IndexRange) SameAs(o IndexRange) bool {
	return r.First == o.First && r.Last == o.Last && r.Extent == o.Extent
}

func (r IndexRange) String() string {
	return fmt.Sprintf("[%d, %d) of %d", r.First, r.Last, r.Extent)
}

// Comm identifies the process group a matrix or vector is partitioned over.
// Message passing happens inside the backend kernels, never here.
type Comm struct {
	rank int
	size int
}

// SelfComm is the single-process communicator.
func SelfComm() Comm { return Comm{rank: 0, size: 1} }

func (c Comm) Rank() int { return c.rank }

func (c Comm) Size() int {
	if c.size == 0 {
		return 1
	}
	return c.size
}

func (c Comm) SameAs(o Comm) bool {
	return c.Rank() == o.Rank() && c.Size() == o.Size()
}
