package form

import "github.com/chazu/typedbuilder/dtype"

// Constructors leave keys empty; AssignKeys fills them in.

func Numpy(d dtype.DType) *NumpyForm { return &NumpyForm{DType: d} }

func Raw(itemSize int) *RawForm { return &RawForm{ItemSize: itemSize} }

func Empty() *EmptyForm { return &EmptyForm{} }

// BitMasked wraps content in a bit-mask option; a set bit means valid and
// bits fill from the least significant end.
func BitMasked(content Form) *BitMaskedForm {
	return &BitMaskedForm{Content: content, ValidWhen: true, LSBOrder: true}
}

// ByteMasked wraps content in a byte-mask option; a nonzero byte means valid.
func ByteMasked(content Form) *ByteMaskedForm {
	return &ByteMaskedForm{Content: content, ValidWhen: true}
}

func Unmasked(content Form) *UnmaskedForm { return &UnmaskedForm{Content: content} }

func Indexed(content Form) *IndexedForm {
	return &IndexedForm{Index: dtype.Int64, Content: content}
}

func IndexedOption(content Form) *IndexedOptionForm {
	return &IndexedOptionForm{Index: dtype.Int64, Content: content}
}

func Regular(size int, content Form) *RegularForm {
	return &RegularForm{Size: size, Content: content}
}

func List(content Form) *ListForm {
	return &ListForm{Starts: dtype.Int64, Content: content}
}

func ListOffset(content Form) *ListOffsetForm {
	return &ListOffsetForm{Offsets: dtype.Int64, Content: content}
}

// Record builds a record form. fields and contents must have equal length.
func Record(fields []string, contents []Form) *RecordForm {
	if fields == nil {
		fields = []string{}
	}
	return &RecordForm{Fields: fields, Contents: contents}
}

// NamedRecord is a Record tagged with the "__record__" parameter.
func NamedRecord(name string, fields []string, contents []Form) *RecordForm {
	r := Record(fields, contents)
	r.Params = Parameters{ParamRecord: name}
	return r
}

func Tuple(contents ...Form) *RecordForm { return &RecordForm{Contents: contents} }

func Union(contents ...Form) *UnionForm {
	return &UnionForm{Tags: dtype.Int8, Index: dtype.Int64, Contents: contents}
}

func Virtual(f Form) *VirtualForm { return &VirtualForm{Form: f, HasLength: true} }

// String returns the Form of a UTF-8 string: a list of uint8 characters.
func String() *ListOffsetForm {
	chars := Numpy(dtype.Uint8)
	chars.Params = Parameters{ParamArray: ArrayChar}
	l := ListOffset(chars)
	l.Params = Parameters{ParamArray: ArrayString}
	return l
}

// Bytestring returns the Form of a byte string.
func Bytestring() *ListOffsetForm {
	bytes := Numpy(dtype.Uint8)
	bytes.Params = Parameters{ParamArray: ArrayByte}
	l := ListOffset(bytes)
	l.Params = Parameters{ParamArray: ArrayBytestring}
	return l
}
