package precondition

import (
	"github.com/nataneb/dealii/pkg/linalg"
	"github.com/nataneb/dealii/pkg/operator"
)

// Interface is the surface every preconditioner kind offers: the inverse
// application in three vector forms, the transposed application, and the
// lifecycle queries. All methods are safe on a cleared value and report
// ErrNotInitialized instead of touching a released kernel.
type Interface interface {
	Vmult(dst, src *linalg.MPIVector) error
	TVmult(dst, src *linalg.MPIVector) error
	VmultSlice(dst, src []float64) error
	TVmultSlice(dst, src []float64) error
	VmultDistributed(dst, src linalg.Distributed) error
	TVmultDistributed(dst, src linalg.Distributed) error
	Transpose() error
	Clear()
	Initialized() bool
	DomainIndices() linalg.IndexRange
	RangeIndices() linalg.IndexRange
	Comm() linalg.Comm
}

// MemoryReporter is implemented by kinds that can account for the bytes
// held by their kernel.
type MemoryReporter interface {
	MemoryConsumption() int
}

// Base carries the kernel handle shared by every preconditioner kind. A
// kind embeds Base and installs its kernel during Initialize; the zero
// value is an empty preconditioner.
//
// A preconditioner has a single owner. Concurrent applies on one value
// need external coordination, matching the in place transpose toggling.
type Base struct {
	op      operator.Operator
	comm    linalg.Comm
	destroy func()
}

// install replaces the kernel handle. An earlier kernel is released first,
// so a repeated Initialize rebuilds from a clean slate.
func (b *Base) install(op operator.Operator, comm linalg.Comm, destroy func()) {
	b.Clear()
	b.op = op
	b.comm = comm
	b.destroy = destroy
}

func (b *Base) handle() (operator.Operator, error) {
	if b.op == nil {
		return nil, ErrNotInitialized
	}
	return b.op, nil
}

func (b *Base) Initialized() bool { return b.op != nil }

// Clear releases the kernel and returns to the empty state. Clearing an
// empty preconditioner does nothing.
func (b *Base) Clear() {
	if b.destroy != nil {
		b.destroy()
	}
	b.op = nil
	b.comm = linalg.Comm{}
	b.destroy = nil
}

// Transpose flips the persistent transpose state: every following Vmult
// applies the transposed inverse. A second call restores the original
// orientation.
func (b *Base) Transpose() error {
	op, err := b.handle()
	if err != nil {
		return err
	}
	if err := op.SetUseTranspose(!op.UseTranspose()); err != nil {
		return &BackendError{Op: "transpose", Err: err}
	}
	return nil
}

// DomainIndices returns the rows a source vector must own, honoring the
// current transpose state.
func (b *Base) DomainIndices() linalg.IndexRange {
	if b.op == nil {
		return linalg.IndexRange{}
	}
	dom, _ := effectiveRanges(b.op)
	return dom
}

// RangeIndices returns the rows a destination vector must own, honoring
// the current transpose state.
func (b *Base) RangeIndices() linalg.IndexRange {
	if b.op == nil {
		return linalg.IndexRange{}
	}
	_, rng := effectiveRanges(b.op)
	return rng
}

func (b *Base) Comm() linalg.Comm { return b.comm }

func effectiveRanges(op operator.Operator) (dom, rng linalg.IndexRange) {
	if op.UseTranspose() {
		return op.RangeRange(), op.DomainRange()
	}
	return op.DomainRange(), op.RangeRange()
}

func (b *Base) Vmult(dst, src *linalg.MPIVector) error {
	op, err := b.handle()
	if err != nil {
		return err
	}
	if err := checkLayout("vmult", op, dst.Range(), src.Range()); err != nil {
		return err
	}
	return apply(op, dst.LocalData(), src.LocalData())
}

func (b *Base) VmultDistributed(dst, src linalg.Distributed) error {
	op, err := b.handle()
	if err != nil {
		return err
	}
	if err := checkLayout("vmult", op, dst.Range(), src.Range()); err != nil {
		return err
	}
	return apply(op, dst.LocalData(), src.LocalData())
}

// VmultSlice applies the inverse to plain local arrays. This form is only
// valid when the calling rank owns the complete index range.
func (b *Base) VmultSlice(dst, src []float64) error {
	op, err := b.handle()
	if err != nil {
		return err
	}
	dom, rng := effectiveRanges(op)
	if !dom.Complete() || !rng.Complete() {
		return &ConfigError{Reason: "plain slices need a fully owned index range"}
	}
	if len(src) != dom.Size() {
		return &DimensionError{
			Op:     "vmult",
			Vector: "src",
			Want:   dom.String(),
			Got:    linalg.CompleteRange(len(src)).String(),
		}
	}
	if len(dst) != rng.Size() {
		return &DimensionError{
			Op:     "vmult",
			Vector: "dst",
			Want:   rng.String(),
			Got:    linalg.CompleteRange(len(dst)).String(),
		}
	}
	return apply(op, dst, src)
}

func (b *Base) TVmult(dst, src *linalg.MPIVector) error {
	return b.transposed(func() error { return b.Vmult(dst, src) })
}

func (b *Base) TVmultDistributed(dst, src linalg.Distributed) error {
	return b.transposed(func() error { return b.VmultDistributed(dst, src) })
}

func (b *Base) TVmultSlice(dst, src []float64) error {
	return b.transposed(func() error { return b.VmultSlice(dst, src) })
}

// transposed runs fn with the transpose state flipped and restores the
// previous state afterwards, also when fn fails.
func (b *Base) transposed(fn func() error) error {
	op, err := b.handle()
	if err != nil {
		return err
	}
	prev := op.UseTranspose()
	if err := op.SetUseTranspose(!prev); err != nil {
		return &BackendError{Op: "transpose", Err: err}
	}
	err = fn()
	if rerr := op.SetUseTranspose(prev); rerr != nil && err == nil {
		err = &BackendError{Op: "transpose", Err: rerr}
	}
	return err
}

func checkLayout(what string, op operator.Operator, dstRange, srcRange linalg.IndexRange) error {
	dom, rng := effectiveRanges(op)
	if !srcRange.SameAs(dom) {
		return &DimensionError{Op: what, Vector: "src", Want: dom.String(), Got: srcRange.String()}
	}
	if !dstRange.SameAs(rng) {
		return &DimensionError{Op: what, Vector: "dst", Want: rng.String(), Got: dstRange.String()}
	}
	return nil
}

func apply(op operator.Operator, dst, src []float64) error {
	if err := op.ApplyInverse(dst, src); err != nil {
		return &BackendError{Op: "apply", Err: err}
	}
	return nil
}

func commOf(m operator.RowMatrix) linalg.Comm {
	if c, ok := m.(interface{ Comm() linalg.Comm }); ok {
		return c.Comm()
	}
	return linalg.SelfComm()
}
