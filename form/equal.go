package form

import (
	"maps"
	"slices"
)

// Equal reports whether a and b describe the same layout. Form keys are
// ignored; parameters, dtypes and children must match.
func Equal(a, b Form) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	if a.Kind() != b.Kind() || !maps.Equal(a.Parameters(), b.Parameters()) {
		return false
	}
	if !sameAttributes(a, b) {
		return false
	}
	ac, bc := a.Children(), b.Children()
	if len(ac) != len(bc) {
		return false
	}
	for i := range ac {
		if !Equal(ac[i], bc[i]) {
			return false
		}
	}
	return true
}

// sameAttributes compares the kind-specific fields of two forms of the same
// kind.
func sameAttributes(a, b Form) bool {
	switch x := a.(type) {
	case *NumpyForm:
		return x.DType == b.(*NumpyForm).DType
	case *RawForm:
		return x.ItemSize == b.(*RawForm).ItemSize
	case *BitMaskedForm:
		y := b.(*BitMaskedForm)
		return x.ValidWhen == y.ValidWhen && x.LSBOrder == y.LSBOrder
	case *ByteMaskedForm:
		return x.ValidWhen == b.(*ByteMaskedForm).ValidWhen
	case *IndexedForm:
		return x.Index == b.(*IndexedForm).Index
	case *IndexedOptionForm:
		return x.Index == b.(*IndexedOptionForm).Index
	case *RegularForm:
		return x.Size == b.(*RegularForm).Size
	case *ListForm:
		return x.Starts == b.(*ListForm).Starts
	case *ListOffsetForm:
		return x.Offsets == b.(*ListOffsetForm).Offsets
	case *RecordForm:
		y := b.(*RecordForm)
		return x.IsTuple() == y.IsTuple() && slices.Equal(x.Fields, y.Fields)
	case *UnionForm:
		y := b.(*UnionForm)
		return x.Tags == y.Tags && x.Index == y.Index
	case *VirtualForm:
		return x.HasLength == b.(*VirtualForm).HasLength
	}
	return true
}
