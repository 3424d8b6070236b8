package buffer

import (
	"encoding/binary"

	"github.com/apache/arrow-go/v18/arrow/memory"

	"github.com/chazu/typedbuilder/dtype"
)

// View is a read-only window on an Output's elements. It shares memory with
// the Output it came from and stays valid after the Output grows, is
// truncated or is reset.
type View struct {
	dtype dtype.DType
	data  []byte
	owner *memory.Buffer
}

// NewView wraps existing little-endian element bytes.
func NewView(d dtype.DType, data []byte) View {
	return View{dtype: d, data: data}
}

func (v View) DType() dtype.DType { return v.dtype }

// Len returns the number of elements.
func (v View) Len() int {
	if size := v.dtype.ItemSize(); size > 0 {
		return len(v.data) / size
	}
	return 0
}

// Bytes returns the underlying memory. Callers must not modify it.
func (v View) Bytes() []byte { return v.data }

func (v View) elem(i int) []byte {
	size := v.dtype.ItemSize()
	return v.data[i*size : (i+1)*size]
}

func (v View) Int64(i int) int64 { return getInt(v.elem(i), v.dtype) }

func (v View) Uint64(i int) uint64 {
	if v.dtype == dtype.Uint64 {
		return binary.LittleEndian.Uint64(v.elem(i))
	}
	return uint64(v.Int64(i))
}

func (v View) Float64(i int) float64 { return real(getComplex(v.elem(i), v.dtype)) }

func (v View) Complex128(i int) complex128 { return getComplex(v.elem(i), v.dtype) }

func (v View) Bool(i int) bool { return v.Int64(i) != 0 }

// Slice returns elements [start, stop) as a view on the same memory.
func (v View) Slice(start, stop int) View {
	size := v.dtype.ItemSize()
	return View{dtype: v.dtype, data: v.data[start*size : stop*size], owner: v.owner}
}

// Release gives up the view's reference to pooled memory. The view must not
// be used afterwards.
func (v *View) Release() {
	if v.owner != nil {
		v.owner.Release()
		v.owner = nil
	}
	v.data = nil
}
