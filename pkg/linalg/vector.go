package linalg

import "fmt"

// Distributed is the contract a vector must satisfy to be used with the
// distributed apply paths: raw access to the locally owned entries and the
// partitioning they belong to.
type Distributed interface {
	LocalData() []float64
	Range() IndexRange
}

// MPIVector is the library's own partitioned vector. Entries outside the
// owned range are not stored.
type MPIVector struct {
	data []float64
	rng  IndexRange
	comm Comm
}

func NewMPIVector(rng IndexRange, comm Comm) *MPIVector {
	return &MPIVector{
		data: make([]float64, rng.Size()),
		rng:  rng,
		comm: comm,
	}
}

// NewSequentialVector is a complete single-process vector of global size n.
func NewSequentialVector(n int) *MPIVector {
	return NewMPIVector(CompleteRange(n), SelfComm())
}

func (v *MPIVector) LocalData() []float64 { return v.data }
func (v *MPIVector) Range() IndexRange    { return v.rng }
func (v *MPIVector) Comm() Comm           { return v.comm }
func (v *MPIVector) LocalSize() int       { return len(v.data) }
func (v *MPIVector) GlobalSize() int      { return v.rng.GlobalSize() }

// At reads the entry with global index i, which must be locally owned.
func (v *MPIVector) At(i int) float64 {
	if !v.rng.Contains(i) {
		panic(fmt.Sprintf("index %d outside owned range %s", i, v.rng))
	}
	return v.data[i-v.rng.First]
}

// Set writes the entry with global index i, which must be locally owned.
func (v *MPIVector) Set(i int, x float64) {
	if !v.rng.Contains(i) {
		panic(fmt.Sprintf("index %d outside owned range %s", i, v.rng))
	}
	v.data[i-v.rng.First] = x
}

func (v *MPIVector) Fill(x float64) {
	for i := range v.data {
		v.data[i] = x
	}
}

// CopyFrom overwrites the owned entries from src, which must share the same
// partitioning.
func (v *MPIVector) CopyFrom(src *MPIVector) error {
	if !v.rng.SameAs(src.rng) {
		return fmt.Errorf("copy between vectors with ranges %s and %s", v.rng, src.rng)
	}
	copy(v.data, src.data)
	return nil
}
