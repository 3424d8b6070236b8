// Package content is the materialized array representation: nodes that wrap
// shared buffer views with the Form they were built under.
package content

import (
	"fmt"
	"sync"

	"github.com/chazu/typedbuilder/buffer"
	"github.com/chazu/typedbuilder/dtype"
	"github.com/chazu/typedbuilder/form"
)

// Content is one node of a materialized array.
type Content interface {
	Form() form.Form
	Len() int
	// Value materializes element i as a Go value: bool, int64, uint64,
	// float64 or complex128 for numbers, nil for a missing value, string or
	// []byte for string lists, []any for lists and tuples and map[string]any
	// for records.
	Value(i int) any
}

// ToList materializes every element of c.
func ToList(c Content) []any {
	out := make([]any, c.Len())
	for i := range out {
		out[i] = c.Value(i)
	}
	return out
}

// ============================================================================
// Leaves
// ============================================================================

type NumpyArray struct {
	F    *form.NumpyForm
	Data buffer.View
}

func (a *NumpyArray) Form() form.Form { return a.F }
func (a *NumpyArray) Len() int        { return a.Data.Len() }

func (a *NumpyArray) Value(i int) any {
	d := a.F.DType
	switch {
	case d.IsBool():
		return a.Data.Bool(i)
	case d.IsSigned():
		return a.Data.Int64(i)
	case d.IsUnsigned():
		return a.Data.Uint64(i)
	case d.IsFloat():
		return a.Data.Float64(i)
	case d.IsComplex():
		return a.Data.Complex128(i)
	}
	panic(fmt.Sprintf("content: numpy array of %v", d))
}

// RawArray holds opaque items of F.ItemSize bytes.
type RawArray struct {
	F    *form.RawForm
	Data buffer.View
}

func (a *RawArray) Form() form.Form { return a.F }
func (a *RawArray) Len() int        { return len(a.Data.Bytes()) / a.F.ItemSize }

func (a *RawArray) Value(i int) any {
	n := a.F.ItemSize
	return a.Data.Bytes()[i*n : (i+1)*n]
}

// EmptyArray has no elements. F may be nil for an untyped array.
type EmptyArray struct {
	F form.Form
}

func (a *EmptyArray) Form() form.Form {
	if a.F == nil {
		return form.Empty()
	}
	return a.F
}
func (a *EmptyArray) Len() int        { return 0 }
func (a *EmptyArray) Value(i int) any { panic(fmt.Sprintf("content: index %d of empty array", i)) }

// ============================================================================
// Lists
// ============================================================================

// ListOffsetArray element i spans Content[Offsets[i]:Offsets[i+1]].
type ListOffsetArray struct {
	F       *form.ListOffsetForm
	Offsets buffer.View
	Content Content
}

func (a *ListOffsetArray) Form() form.Form { return a.F }

func (a *ListOffsetArray) Len() int {
	if n := a.Offsets.Len(); n > 0 {
		return n - 1
	}
	return 0
}

func (a *ListOffsetArray) Value(i int) any {
	return sublist(a.F, a.Content, int(a.Offsets.Int64(i)), int(a.Offsets.Int64(i+1)))
}

// ListArray element i spans Content[Starts[i]:Stops[i]].
type ListArray struct {
	F       *form.ListForm
	Starts  buffer.View
	Stops   buffer.View
	Content Content
}

func (a *ListArray) Form() form.Form { return a.F }
func (a *ListArray) Len() int        { return min(a.Starts.Len(), a.Stops.Len()) }

func (a *ListArray) Value(i int) any {
	return sublist(a.F, a.Content, int(a.Starts.Int64(i)), int(a.Stops.Int64(i)))
}

// RegularArray groups Content into lists of Size elements.
type RegularArray struct {
	F       *form.RegularForm
	Length  int
	Content Content
}

func (a *RegularArray) Form() form.Form { return a.F }
func (a *RegularArray) Len() int        { return a.Length }

func (a *RegularArray) Value(i int) any {
	return sublist(a.F, a.Content, i*a.F.Size, (i+1)*a.F.Size)
}

func sublist(f form.Form, c Content, start, stop int) any {
	if form.IsString(f) || form.IsBytestring(f) {
		var raw []byte
		if n, ok := c.(*NumpyArray); ok {
			raw = n.Data.Bytes()[start:stop]
		} else {
			raw = make([]byte, 0, stop-start)
			for j := start; j < stop; j++ {
				raw = append(raw, byte(c.Value(j).(uint64)))
			}
		}
		if form.IsString(f) {
			return string(raw)
		}
		return raw
	}
	out := make([]any, stop-start)
	for j := range out {
		out[j] = c.Value(start + j)
	}
	return out
}

// ============================================================================
// Records
// ============================================================================

// RecordArray is a record or tuple of equal-length contents.
type RecordArray struct {
	F        *form.RecordForm
	Length   int
	Contents []Content
}

func (a *RecordArray) Form() form.Form { return a.F }
func (a *RecordArray) Len() int        { return a.Length }

func (a *RecordArray) Value(i int) any {
	if a.F.IsTuple() {
		out := make([]any, len(a.Contents))
		for j, c := range a.Contents {
			out[j] = c.Value(i)
		}
		return out
	}
	out := make(map[string]any, len(a.Contents))
	for j, c := range a.Contents {
		out[a.F.Fields[j]] = c.Value(i)
	}
	return out
}

// Field returns the content of a named field.
func (a *RecordArray) Field(name string) (Content, bool) {
	for j, f := range a.F.Fields {
		if f == name {
			return a.Contents[j], true
		}
	}
	return nil, false
}

// ============================================================================
// Indexed and option types
// ============================================================================

type IndexedArray struct {
	F       *form.IndexedForm
	Index   buffer.View
	Content Content
}

func (a *IndexedArray) Form() form.Form { return a.F }
func (a *IndexedArray) Len() int        { return a.Index.Len() }
func (a *IndexedArray) Value(i int) any { return a.Content.Value(int(a.Index.Int64(i))) }

// IndexedOptionArray treats negative indices as missing values.
type IndexedOptionArray struct {
	F       *form.IndexedOptionForm
	Index   buffer.View
	Content Content
}

func (a *IndexedOptionArray) Form() form.Form { return a.F }
func (a *IndexedOptionArray) Len() int        { return a.Index.Len() }

func (a *IndexedOptionArray) Value(i int) any {
	j := a.Index.Int64(i)
	if j < 0 {
		return nil
	}
	return a.Content.Value(int(j))
}

type ByteMaskedArray struct {
	F       *form.ByteMaskedForm
	Mask    buffer.View
	Content Content
}

func (a *ByteMaskedArray) Form() form.Form { return a.F }
func (a *ByteMaskedArray) Len() int        { return a.Mask.Len() }

// Valid reports whether element i is present.
func (a *ByteMaskedArray) Valid(i int) bool { return a.Mask.Bool(i) == a.F.ValidWhen }

func (a *ByteMaskedArray) Value(i int) any {
	if !a.Valid(i) {
		return nil
	}
	return a.Content.Value(i)
}

// BitMaskedArray keeps full mask bytes in Mask and the bits of a trailing
// partial byte in Tail.
type BitMaskedArray struct {
	F       *form.BitMaskedForm
	Mask    buffer.View
	Tail    byte
	Length  int
	Content Content
}

func (a *BitMaskedArray) Form() form.Form { return a.F }
func (a *BitMaskedArray) Len() int        { return a.Length }

// MaskByte returns mask byte j, including the partial tail byte.
func (a *BitMaskedArray) MaskByte(j int) byte {
	if j < a.Mask.Len() {
		return byte(a.Mask.Int64(j))
	}
	return a.Tail
}

func (a *BitMaskedArray) Valid(i int) bool {
	bit := uint(i % 8)
	if !a.F.LSBOrder {
		bit = 7 - bit
	}
	set := a.MaskByte(i/8)&(1<<bit) != 0
	return set == a.F.ValidWhen
}

func (a *BitMaskedArray) Value(i int) any {
	if !a.Valid(i) {
		return nil
	}
	return a.Content.Value(i)
}

// UnmaskedArray is an option type without missing values; it shares its
// content's buffers.
type UnmaskedArray struct {
	F       *form.UnmaskedForm
	Content Content
}

func (a *UnmaskedArray) Form() form.Form { return a.F }
func (a *UnmaskedArray) Len() int        { return a.Content.Len() }
func (a *UnmaskedArray) Value(i int) any { return a.Content.Value(i) }

// ============================================================================
// Unions and virtual arrays
// ============================================================================

// UnionArray element i is Contents[Tags[i]] at Index[i].
type UnionArray struct {
	F        *form.UnionForm
	Tags     buffer.View
	Index    buffer.View
	Contents []Content
}

func (a *UnionArray) Form() form.Form { return a.F }
func (a *UnionArray) Len() int        { return a.Tags.Len() }

func (a *UnionArray) Value(i int) any {
	return a.Contents[a.Tags.Int64(i)].Value(int(a.Index.Int64(i)))
}

// VirtualArray materializes its content on first use.
type VirtualArray struct {
	F        *form.VirtualForm
	Generate func() (Content, error)

	once  sync.Once
	array Content
	err   error
}

func (a *VirtualArray) Form() form.Form { return a.F }

// Array returns the materialized content, generating it once.
func (a *VirtualArray) Array() (Content, error) {
	a.once.Do(func() { a.array, a.err = a.Generate() })
	return a.array, a.err
}

func (a *VirtualArray) Len() int {
	c, err := a.Array()
	if err != nil {
		return 0
	}
	return c.Len()
}

func (a *VirtualArray) Value(i int) any {
	c, err := a.Array()
	if err != nil {
		panic(fmt.Sprintf("content: virtual array: %v", err))
	}
	return c.Value(i)
}

// DTypeOf returns the element type of a leaf, or dtype.Invalid.
func DTypeOf(c Content) dtype.DType {
	if n, ok := c.(*NumpyArray); ok {
		return n.F.DType
	}
	return dtype.Invalid
}
