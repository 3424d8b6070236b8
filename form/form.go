// Package form describes array layouts: an immutable tree of Forms, one node
// per layout kind, each carrying a key that namespaces the buffers generated
// for it.
package form

import (
	"fmt"

	"github.com/chazu/typedbuilder/dtype"
)

// Kind tags the layout of a Form node.
type Kind int

const (
	KindNumpy Kind = iota
	KindRaw
	KindEmpty
	KindBitMasked
	KindByteMasked
	KindUnmasked
	KindIndexed
	KindIndexedOption
	KindRegular
	KindList
	KindListOffset
	KindRecord
	KindUnion
	KindVirtual
)

var kindNames = map[Kind]string{
	KindNumpy:         "numpy",
	KindRaw:           "raw",
	KindEmpty:         "empty",
	KindBitMasked:     "bitmasked",
	KindByteMasked:    "bytemasked",
	KindUnmasked:      "unmasked",
	KindIndexed:       "indexed",
	KindIndexedOption: "indexedoption",
	KindRegular:       "regular",
	KindList:          "list",
	KindListOffset:    "listoffset",
	KindRecord:        "record",
	KindUnion:         "union",
	KindVirtual:       "virtual",
}

func (k Kind) String() string {
	if name, ok := kindNames[k]; ok {
		return name
	}
	return fmt.Sprintf("Kind(%d)", int(k))
}

// Recognized parameter names and values.
const (
	ParamArray  = "__array__"
	ParamRecord = "__record__"

	ArrayString     = "string"
	ArrayBytestring = "bytestring"
	ArrayChar       = "char"
	ArrayByte       = "byte"
)

// Parameters annotate a Form with classification hints for consumers.
type Parameters map[string]string

// Form is one node of a layout description. Forms are built once and are
// read-only afterwards; builders and snapshots share them by reference.
type Form interface {
	Kind() Kind
	Key() string
	Parameters() Parameters
	// Children returns the direct child Forms in declaration order.
	Children() []Form

	meta() *Meta
}

// Meta holds the attributes every Form kind carries.
type Meta struct {
	FormKey string
	Params  Parameters
}

func (m *Meta) Key() string { return m.FormKey }

func (m *Meta) Parameters() Parameters { return m.Params }

// Parameter returns a single parameter, or "" when it is not set.
func (m *Meta) Parameter(name string) string {
	if m.Params == nil {
		return ""
	}
	return m.Params[name]
}

func (m *Meta) meta() *Meta { return m }

// NumpyForm is a leaf of primitive elements.
type NumpyForm struct {
	Meta
	DType dtype.DType
}

func (f *NumpyForm) Kind() Kind       { return KindNumpy }
func (f *NumpyForm) Children() []Form { return nil }

// RawForm is a leaf of opaque fixed-size items.
type RawForm struct {
	Meta
	ItemSize int
}

func (f *RawForm) Kind() Kind       { return KindRaw }
func (f *RawForm) Children() []Form { return nil }

// EmptyForm is a layout with no elements and no type.
type EmptyForm struct {
	Meta
}

func (f *EmptyForm) Kind() Kind       { return KindEmpty }
func (f *EmptyForm) Children() []Form { return nil }

// BitMaskedForm is an option type whose validity is one bit per element.
type BitMaskedForm struct {
	Meta
	Content   Form
	ValidWhen bool
	LSBOrder  bool
}

func (f *BitMaskedForm) Kind() Kind       { return KindBitMasked }
func (f *BitMaskedForm) Children() []Form { return []Form{f.Content} }

// ByteMaskedForm is an option type whose validity is one byte per element.
type ByteMaskedForm struct {
	Meta
	Content   Form
	ValidWhen bool
}

func (f *ByteMaskedForm) Kind() Kind       { return KindByteMasked }
func (f *ByteMaskedForm) Children() []Form { return []Form{f.Content} }

// UnmaskedForm is an option type whose data is known to have no missing
// values.
type UnmaskedForm struct {
	Meta
	Content Form
}

func (f *UnmaskedForm) Kind() Kind       { return KindUnmasked }
func (f *UnmaskedForm) Children() []Form { return []Form{f.Content} }

// IndexedForm selects elements of Content through an index buffer.
type IndexedForm struct {
	Meta
	Index   dtype.DType
	Content Form
}

func (f *IndexedForm) Kind() Kind       { return KindIndexed }
func (f *IndexedForm) Children() []Form { return []Form{f.Content} }

// IndexedOptionForm is an IndexedForm where negative indices are missing
// values.
type IndexedOptionForm struct {
	Meta
	Index   dtype.DType
	Content Form
}

func (f *IndexedOptionForm) Kind() Kind       { return KindIndexedOption }
func (f *IndexedOptionForm) Children() []Form { return []Form{f.Content} }

// RegularForm is a list type whose lists all have Size elements.
type RegularForm struct {
	Meta
	Size    int
	Content Form
}

func (f *RegularForm) Kind() Kind       { return KindRegular }
func (f *RegularForm) Children() []Form { return []Form{f.Content} }

// ListForm is a variable-length list type encoded by starts and stops.
type ListForm struct {
	Meta
	Starts  dtype.DType
	Content Form
}

func (f *ListForm) Kind() Kind       { return KindList }
func (f *ListForm) Children() []Form { return []Form{f.Content} }

// ListOffsetForm is a variable-length list type encoded by cumulative
// offsets.
type ListOffsetForm struct {
	Meta
	Offsets dtype.DType
	Content Form
}

func (f *ListOffsetForm) Kind() Kind       { return KindListOffset }
func (f *ListOffsetForm) Children() []Form { return []Form{f.Content} }

// RecordForm is a record with named fields, or a tuple when Fields is nil.
type RecordForm struct {
	Meta
	Fields   []string
	Contents []Form
}

func (f *RecordForm) Kind() Kind       { return KindRecord }
func (f *RecordForm) Children() []Form { return f.Contents }

// IsTuple reports whether the fields are positional.
func (f *RecordForm) IsTuple() bool { return f.Fields == nil }

// Name returns the record name, the "__record__" parameter.
func (f *RecordForm) Name() string { return f.Parameter(ParamRecord) }

// UnionForm is a tagged union of alternatives.
type UnionForm struct {
	Meta
	Tags     dtype.DType
	Index    dtype.DType
	Contents []Form
}

func (f *UnionForm) Kind() Kind       { return KindUnion }
func (f *UnionForm) Children() []Form { return f.Contents }

// VirtualForm is materialized lazily from the layout of Form.
type VirtualForm struct {
	Meta
	Form      Form
	HasLength bool
}

func (f *VirtualForm) Kind() Kind       { return KindVirtual }
func (f *VirtualForm) Children() []Form { return []Form{f.Form} }

// IsString reports whether f is a list of UTF-8 characters.
func IsString(f Form) bool {
	return isListKind(f) && f.meta().Parameter(ParamArray) == ArrayString
}

// IsBytestring reports whether f is a list of bytes.
func IsBytestring(f Form) bool {
	return isListKind(f) && f.meta().Parameter(ParamArray) == ArrayBytestring
}

func isListKind(f Form) bool {
	switch f.(type) {
	case *ListOffsetForm, *ListForm:
		return true
	}
	return false
}
