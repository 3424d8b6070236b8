package content

import "github.com/chazu/typedbuilder/buffer"

// Release gives back the buffer references held by every view under c,
// including the content of a virtual array and any appended array the
// snapshot shares. c must not be used afterwards.
func Release(c Content) {
	switch a := c.(type) {
	case *NumpyArray:
		a.Data.Release()
	case *RawArray:
		a.Data.Release()
	case *ListOffsetArray:
		release(&a.Offsets)
		Release(a.Content)
	case *ListArray:
		release(&a.Starts, &a.Stops)
		Release(a.Content)
	case *RegularArray:
		Release(a.Content)
	case *RecordArray:
		for _, x := range a.Contents {
			Release(x)
		}
	case *IndexedArray:
		release(&a.Index)
		Release(a.Content)
	case *IndexedOptionArray:
		release(&a.Index)
		Release(a.Content)
	case *ByteMaskedArray:
		release(&a.Mask)
		Release(a.Content)
	case *BitMaskedArray:
		release(&a.Mask)
		Release(a.Content)
	case *UnmaskedArray:
		Release(a.Content)
	case *UnionArray:
		release(&a.Tags, &a.Index)
		for _, x := range a.Contents {
			Release(x)
		}
	case *VirtualArray:
		if inner, err := a.Array(); err == nil {
			Release(inner)
		}
	}
}

func release(views ...*buffer.View) {
	for _, v := range views {
		v.Release()
	}
}
