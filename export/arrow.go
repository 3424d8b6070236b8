package export

import (
	"encoding/binary"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/array"
	"github.com/apache/arrow-go/v18/arrow/bitutil"
	"github.com/apache/arrow-go/v18/arrow/memory"

	"github.com/chazu/typedbuilder/buffer"
	"github.com/chazu/typedbuilder/content"
	"github.com/chazu/typedbuilder/dtype"
	"github.com/chazu/typedbuilder/form"
)

var arrowTypes = map[dtype.DType]arrow.DataType{
	dtype.Int8:    arrow.PrimitiveTypes.Int8,
	dtype.Int16:   arrow.PrimitiveTypes.Int16,
	dtype.Int32:   arrow.PrimitiveTypes.Int32,
	dtype.Int64:   arrow.PrimitiveTypes.Int64,
	dtype.Uint8:   arrow.PrimitiveTypes.Uint8,
	dtype.Uint16:  arrow.PrimitiveTypes.Uint16,
	dtype.Uint32:  arrow.PrimitiveTypes.Uint32,
	dtype.Uint64:  arrow.PrimitiveTypes.Uint64,
	dtype.Float32: arrow.PrimitiveTypes.Float32,
	dtype.Float64: arrow.PrimitiveTypes.Float64,
}

// ToArrow converts c to an Arrow array. Numeric data, int32 and int64
// offsets and string characters are shared with the snapshot; booleans,
// validity bitmaps and gathered option values are allocated from mem.
// The caller releases the result.
func ToArrow(c content.Content, mem memory.Allocator) (arrow.Array, error) {
	if mem == nil {
		mem = memory.DefaultAllocator
	}
	data, err := toData(c, mem)
	if err != nil {
		return nil, err
	}
	defer data.Release()
	return array.MakeFromData(data), nil
}

func toData(c content.Content, mem memory.Allocator) (arrow.ArrayData, error) {
	switch a := c.(type) {
	case *content.NumpyArray:
		return numpyData(a, mem)
	case *content.EmptyArray:
		return array.NewData(arrow.Null, 0, []*memory.Buffer{nil}, nil, 0, 0), nil
	case *content.ListOffsetArray:
		return listData(a, a.F.Offsets, a.Offsets, a.Content, a.Len(), mem)
	case *content.ListArray:
		offsets, err := contiguous(a)
		if err != nil {
			return nil, err
		}
		return listData(a, dtype.Int64, offsets, a.Content, a.Len(), mem)
	case *content.RegularArray:
		if form.IsString(a.F) || form.IsBytestring(a.F) {
			return nil, unsupported(c, "regular strings")
		}
		child, err := toData(a.Content, mem)
		if err != nil {
			return nil, err
		}
		defer child.Release()
		t := arrow.FixedSizeListOf(int32(a.F.Size), child.DataType())
		return array.NewData(t, a.Length, []*memory.Buffer{nil}, []arrow.ArrayData{child}, 0, 0), nil
	case *content.RecordArray:
		return structData(a, mem)
	case *content.ByteMaskedArray:
		return masked(a.Content, a.Len(), a.Valid, mem)
	case *content.BitMaskedArray:
		return masked(a.Content, a.Len(), a.Valid, mem)
	case *content.UnmaskedArray:
		return toData(a.Content, mem)
	case *content.IndexedOptionArray:
		return indexedOptionData(a, mem)
	case *content.VirtualArray:
		inner, err := a.Array()
		if err != nil {
			return nil, err
		}
		return toData(inner, mem)
	}
	return nil, unsupported(c, "no arrow equivalent")
}

func numpyData(a *content.NumpyArray, mem memory.Allocator) (arrow.ArrayData, error) {
	n := a.Len()
	if a.F.DType.IsBool() {
		bits := bitmap(n, a.Data.Bool, mem)
		defer bits.Release()
		return array.NewData(arrow.FixedWidthTypes.Boolean, n, []*memory.Buffer{nil, bits}, nil, 0, 0), nil
	}
	t, ok := arrowTypes[a.F.DType]
	if !ok {
		return nil, unsupported(a, a.F.DType.String())
	}
	values := memory.NewBufferBytes(a.Data.Bytes())
	defer values.Release()
	return array.NewData(t, n, []*memory.Buffer{nil, values}, nil, 0, 0), nil
}

// bitmap packs n booleans into a fresh Arrow bitmap.
func bitmap(n int, bit func(int) bool, mem memory.Allocator) *memory.Buffer {
	buf := memory.NewResizableBuffer(mem)
	buf.Resize(int(bitutil.BytesForBits(int64(n))))
	memory.Set(buf.Bytes(), 0)
	for i := range n {
		if bit(i) {
			bitutil.SetBit(buf.Bytes(), i)
		}
	}
	return buf
}

func listData(c content.Content, od dtype.DType, offsets buffer.View, inner content.Content, n int, mem memory.Allocator) (arrow.ArrayData, error) {
	large := od != dtype.Int32
	ob := offsetBuffer(od, offsets, n, mem)
	defer ob.Release()

	f := c.Form()
	if form.IsString(f) || form.IsBytestring(f) {
		chars, ok := inner.(*content.NumpyArray)
		if !ok {
			return nil, unsupported(c, "characters are not a flat buffer")
		}
		values := memory.NewBufferBytes(chars.Data.Bytes())
		defer values.Release()
		var t arrow.DataType
		switch {
		case form.IsString(f) && large:
			t = arrow.BinaryTypes.LargeString
		case form.IsString(f):
			t = arrow.BinaryTypes.String
		case large:
			t = arrow.BinaryTypes.LargeBinary
		default:
			t = arrow.BinaryTypes.Binary
		}
		return array.NewData(t, n, []*memory.Buffer{nil, ob, values}, nil, 0, 0), nil
	}

	child, err := toData(inner, mem)
	if err != nil {
		return nil, err
	}
	defer child.Release()
	var t arrow.DataType = arrow.ListOf(child.DataType())
	if large {
		t = arrow.LargeListOf(child.DataType())
	}
	return array.NewData(t, n, []*memory.Buffer{nil, ob}, []arrow.ArrayData{child}, 0, 0), nil
}

// offsetBuffer shares int32 and int64 offsets and widens the rest to int64.
// An empty list array still gets its single leading zero.
func offsetBuffer(od dtype.DType, offsets buffer.View, n int, mem memory.Allocator) *memory.Buffer {
	if offsets.Len() >= n+1 && (od == dtype.Int32 || od == dtype.Int64) {
		return memory.NewBufferBytes(offsets.Bytes())
	}
	width := 8
	if od == dtype.Int32 {
		width = 4
	}
	buf := memory.NewResizableBuffer(mem)
	buf.Resize((n + 1) * width)
	b := buf.Bytes()
	memory.Set(b, 0)
	for i := range min(offsets.Len(), n+1) {
		if width == 4 {
			binary.LittleEndian.PutUint32(b[i*4:], uint32(offsets.Int64(i)))
		} else {
			binary.LittleEndian.PutUint64(b[i*8:], uint64(offsets.Int64(i)))
		}
	}
	return buf
}

// contiguous turns starts and stops into offsets when every list begins
// where the previous one ended.
func contiguous(a *content.ListArray) (buffer.View, error) {
	n := a.Len()
	b := make([]byte, 8*(n+1))
	for i := range n {
		start := a.Starts.Int64(i)
		if i > 0 && start != a.Stops.Int64(i-1) {
			return buffer.View{}, unsupported(a, "lists are not contiguous")
		}
		binary.LittleEndian.PutUint64(b[i*8:], uint64(start))
	}
	if n > 0 {
		binary.LittleEndian.PutUint64(b[n*8:], uint64(a.Stops.Int64(n-1)))
	}
	return buffer.NewView(dtype.Int64, b), nil
}

func structData(a *content.RecordArray, mem memory.Allocator) (arrow.ArrayData, error) {
	if a.F.IsTuple() {
		return nil, unsupported(a, "tuples have no field names")
	}
	fields := make([]arrow.Field, len(a.Contents))
	children := make([]arrow.ArrayData, 0, len(a.Contents))
	defer func() {
		for _, c := range children {
			c.Release()
		}
	}()
	for i, c := range a.Contents {
		child, err := toData(c, mem)
		if err != nil {
			return nil, err
		}
		children = append(children, child)
		fields[i] = arrow.Field{Name: a.F.Fields[i], Type: child.DataType(), Nullable: nullable(c)}
	}
	return array.NewData(arrow.StructOf(fields...), a.Length, []*memory.Buffer{nil}, children, 0, 0), nil
}

func nullable(c content.Content) bool {
	switch c.(type) {
	case *content.ByteMaskedArray, *content.BitMaskedArray, *content.IndexedOptionArray:
		return true
	}
	return false
}

// masked gives the converted content a validity bitmap.
func masked(inner content.Content, n int, valid func(int) bool, mem memory.Allocator) (arrow.ArrayData, error) {
	d, err := toData(inner, mem)
	if err != nil {
		return nil, err
	}
	defer d.Release()
	return withValidity(d, n, valid, mem), nil
}

func withValidity(d arrow.ArrayData, n int, valid func(int) bool, mem memory.Allocator) arrow.ArrayData {
	nulls := 0
	for i := range n {
		if !valid(i) {
			nulls++
		}
	}
	bits := bitmap(n, valid, mem)
	defer bits.Release()
	buffers := append([]*memory.Buffer{bits}, d.Buffers()[1:]...)
	return array.NewData(d.DataType(), n, buffers, d.Children(), nulls, d.Offset())
}

// indexedOptionData gathers a numeric leaf into element order, leaving
// zeros under missing values.
func indexedOptionData(a *content.IndexedOptionArray, mem memory.Allocator) (arrow.ArrayData, error) {
	leaf, ok := a.Content.(*content.NumpyArray)
	if !ok || leaf.F.DType.IsBool() {
		return nil, unsupported(a, "only numeric leaves can be gathered")
	}
	t, ok := arrowTypes[leaf.F.DType]
	if !ok {
		return nil, unsupported(a, leaf.F.DType.String())
	}
	n := a.Len()
	size := leaf.F.DType.ItemSize()
	src := leaf.Data.Bytes()

	values := memory.NewResizableBuffer(mem)
	defer values.Release()
	values.Resize(n * size)
	dst := values.Bytes()
	memory.Set(dst, 0)
	valid := func(i int) bool { return a.Index.Int64(i) >= 0 }
	for i := range n {
		if j := int(a.Index.Int64(i)); j >= 0 {
			copy(dst[i*size:(i+1)*size], src[j*size:(j+1)*size])
		}
	}
	d := array.NewData(t, n, []*memory.Buffer{nil, values}, nil, 0, 0)
	defer d.Release()
	return withValidity(d, n, valid, mem), nil
}
