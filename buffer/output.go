// Package buffer provides the growable output buffers a running program writes
// into, the byte streams it reads from, and read-only views that snapshots
// share with the live buffers.
package buffer

import (
	"encoding/binary"
	"fmt"
	"math"
	"sync/atomic"

	"github.com/apache/arrow-go/v18/arrow/memory"

	"github.com/chazu/typedbuilder/dtype"
)

// Options control allocation and growth of output buffers.
type Options struct {
	// Allocator supplies raw memory. Nil means memory.DefaultAllocator.
	Allocator memory.Allocator
	// Initial is the element capacity reserved on first use.
	Initial int
	// Resize is the factor capacity grows by when an append does not fit.
	Resize float64
}

// DefaultOptions returns 1024 initial elements growing by a factor of 8.
func DefaultOptions() Options {
	return Options{Allocator: memory.DefaultAllocator, Initial: 1024, Resize: 8}
}

func (o Options) normalize() Options {
	if o.Allocator == nil {
		o.Allocator = memory.DefaultAllocator
	}
	if o.Initial <= 0 {
		o.Initial = 1024
	}
	if o.Resize <= 1 {
		o.Resize = 8
	}
	return o
}

// Output is a named, typed, append-only buffer.
//
// Bytes covered by a View are never written again: Truncate below the pinned
// extent and Reset continue in fresh memory instead.
//
// Writes need a single writer. View and Peek may run concurrently with each
// other but not with writes.
type Output struct {
	name   string
	dtype  dtype.DType
	size   int
	opts   Options
	buf    *memory.Buffer
	n      int          // elements
	pinned atomic.Int64 // elements visible to some View
}

// NewOutput creates an empty output buffer. Memory is reserved on first
// append.
func NewOutput(name string, d dtype.DType, opts Options) *Output {
	return &Output{name: name, dtype: d, size: d.ItemSize(), opts: opts.normalize()}
}

func (o *Output) Name() string { return o.name }

func (o *Output) DType() dtype.DType { return o.dtype }

// Len returns the number of elements written.
func (o *Output) Len() int { return o.n }

// Cap returns the number of elements that fit without reallocating.
func (o *Output) Cap() int {
	if o.buf == nil {
		return 0
	}
	return o.buf.Cap() / o.size
}

// grow makes room for extra more elements, moving to fresh memory.
func (o *Output) grow(extra int) {
	need := o.n + extra
	if o.buf != nil && need <= o.Cap() {
		return
	}
	newCap := o.opts.Initial
	if c := o.Cap(); c > 0 {
		newCap = int(math.Ceil(float64(c) * o.opts.Resize))
	}
	if newCap < need {
		newCap = need
	}
	o.moveTo(newCap, o.n)
}

// moveTo copies the first keep elements into a fresh buffer of capacity
// elements and drops the old buffer. Views retain their own reference.
func (o *Output) moveTo(capacity, keep int) {
	nb := memory.NewResizableBuffer(o.opts.Allocator)
	nb.Reserve(capacity * o.size)
	nb.ResizeNoShrink(keep * o.size)
	if o.buf != nil {
		copy(nb.Buf(), o.buf.Buf()[:keep*o.size])
		o.buf.Release()
	}
	o.buf = nb
	o.n = keep
	o.pinned.Store(0)
}

func (o *Output) slot() []byte {
	o.grow(1)
	off := o.n * o.size
	o.n++
	o.buf.ResizeNoShrink(o.n * o.size)
	return o.buf.Buf()[off : off+o.size]
}

// AppendInt64 appends v converted to the buffer's element type.
func (o *Output) AppendInt64(v int64) {
	putInt(o.slot(), o.dtype, v)
}

// AppendFloat64 appends v converted to the buffer's element type.
func (o *Output) AppendFloat64(v float64) {
	switch {
	case o.dtype.IsFloat() || o.dtype.IsComplex():
		putComplex(o.slot(), o.dtype, complex(v, 0))
	default:
		putInt(o.slot(), o.dtype, int64(v))
	}
}

// AppendComplex appends v; non-complex buffers keep the real part.
func (o *Output) AppendComplex(v complex128) {
	if o.dtype.IsComplex() || o.dtype.IsFloat() {
		putComplex(o.slot(), o.dtype, v)
		return
	}
	putInt(o.slot(), o.dtype, int64(real(v)))
}

// AddInt64 appends the last element plus v, or v when the buffer is empty.
func (o *Output) AddInt64(v int64) {
	if o.n > 0 {
		v += o.Int64At(o.n - 1)
	}
	o.AppendInt64(v)
}

// AppendBytes copies p into a byte-sized buffer.
func (o *Output) AppendBytes(p []byte) error {
	if o.size != 1 {
		return fmt.Errorf("output %s: cannot append raw bytes to %v", o.name, o.dtype)
	}
	if len(p) == 0 {
		return nil
	}
	o.grow(len(p))
	off := o.n
	o.n += len(p)
	o.buf.ResizeNoShrink(o.n)
	copy(o.buf.Buf()[off:], p)
	return nil
}

// Int64At reads element i as an integer.
func (o *Output) Int64At(i int) int64 {
	return getInt(o.buf.Buf()[i*o.size:], o.dtype)
}

// Truncate shortens the buffer to n elements.
func (o *Output) Truncate(n int) {
	if n >= o.n {
		return
	}
	if int64(n) < o.pinned.Load() {
		o.moveTo(max(n, o.opts.Initial), n)
		return
	}
	o.n = n
	o.buf.ResizeNoShrink(n * o.size)
}

// Reset empties the buffer.
func (o *Output) Reset() {
	if o.pinned.Load() > 0 {
		o.buf.Release()
		o.buf = nil
		o.pinned.Store(0)
	}
	o.n = 0
	if o.buf != nil {
		o.buf.ResizeNoShrink(0)
	}
}

// View returns a read-only view of the elements written so far and pins
// them. The view holds a reference to the memory until View.Release.
func (o *Output) View() View {
	if o.buf == nil || o.n == 0 {
		return View{dtype: o.dtype}
	}
	o.pin(int64(o.n))
	o.buf.Retain()
	return View{
		dtype: o.dtype,
		data:  o.buf.Buf()[:o.n*o.size],
		owner: o.buf,
	}
}

// Peek returns the elements written so far without pinning them or taking a
// reference. The view is only valid until the next write.
func (o *Output) Peek() View {
	if o.buf == nil || o.n == 0 {
		return View{dtype: o.dtype}
	}
	return View{dtype: o.dtype, data: o.buf.Buf()[:o.n*o.size]}
}

// pin raises the pinned extent to n.
func (o *Output) pin(n int64) {
	for {
		cur := o.pinned.Load()
		if cur >= n || o.pinned.CompareAndSwap(cur, n) {
			return
		}
	}
}

// Release drops the buffer's own reference to its memory.
func (o *Output) Release() {
	if o.buf != nil {
		o.buf.Release()
		o.buf = nil
	}
	o.n = 0
	o.pinned.Store(0)
}

// putInt stores v as d with Go conversion semantics: values outside d's range
// wrap. Builders reject out-of-range integers before they reach a leaf, and
// index and offset buffers are sized by their form.
func putInt(b []byte, d dtype.DType, v int64) {
	switch d {
	case dtype.Bool:
		if v != 0 {
			b[0] = 1
		} else {
			b[0] = 0
		}
	case dtype.Int8, dtype.Uint8:
		b[0] = byte(v)
	case dtype.Int16, dtype.Uint16:
		binary.LittleEndian.PutUint16(b, uint16(v))
	case dtype.Int32, dtype.Uint32:
		binary.LittleEndian.PutUint32(b, uint32(v))
	case dtype.Int64, dtype.Uint64:
		binary.LittleEndian.PutUint64(b, uint64(v))
	case dtype.Float32, dtype.Float64, dtype.Complex64, dtype.Complex128:
		putComplex(b, d, complex(float64(v), 0))
	}
}

func putComplex(b []byte, d dtype.DType, v complex128) {
	switch d {
	case dtype.Float32:
		binary.LittleEndian.PutUint32(b, math.Float32bits(float32(real(v))))
	case dtype.Float64:
		binary.LittleEndian.PutUint64(b, math.Float64bits(real(v)))
	case dtype.Complex64:
		binary.LittleEndian.PutUint32(b, math.Float32bits(float32(real(v))))
		binary.LittleEndian.PutUint32(b[4:], math.Float32bits(float32(imag(v))))
	case dtype.Complex128:
		binary.LittleEndian.PutUint64(b, math.Float64bits(real(v)))
		binary.LittleEndian.PutUint64(b[8:], math.Float64bits(imag(v)))
	}
}

func getInt(b []byte, d dtype.DType) int64 {
	switch d {
	case dtype.Bool, dtype.Uint8:
		return int64(b[0])
	case dtype.Int8:
		return int64(int8(b[0]))
	case dtype.Int16:
		return int64(int16(binary.LittleEndian.Uint16(b)))
	case dtype.Uint16:
		return int64(binary.LittleEndian.Uint16(b))
	case dtype.Int32:
		return int64(int32(binary.LittleEndian.Uint32(b)))
	case dtype.Uint32:
		return int64(binary.LittleEndian.Uint32(b))
	case dtype.Int64, dtype.Uint64:
		return int64(binary.LittleEndian.Uint64(b))
	default:
		return int64(real(getComplex(b, d)))
	}
}

func getComplex(b []byte, d dtype.DType) complex128 {
	switch d {
	case dtype.Float32:
		return complex(float64(math.Float32frombits(binary.LittleEndian.Uint32(b))), 0)
	case dtype.Float64:
		return complex(math.Float64frombits(binary.LittleEndian.Uint64(b)), 0)
	case dtype.Complex64:
		re := math.Float32frombits(binary.LittleEndian.Uint32(b))
		im := math.Float32frombits(binary.LittleEndian.Uint32(b[4:]))
		return complex(float64(re), float64(im))
	case dtype.Complex128:
		re := math.Float64frombits(binary.LittleEndian.Uint64(b))
		im := math.Float64frombits(binary.LittleEndian.Uint64(b[8:]))
		return complex(re, im)
	case dtype.Uint64:
		return complex(float64(binary.LittleEndian.Uint64(b)), 0)
	}
	if d.IsInteger() || d.IsBool() {
		return complex(float64(getInt(b, d)), 0)
	}
	return 0
}
