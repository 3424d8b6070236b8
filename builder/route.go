package builder

import "github.com/chazu/typedbuilder/form"

// routed is where a value event lands after passing through option,
// indexed, virtual and union wrappers.
type routed struct {
	node    FormBuilder
	selects []int64       // union tags chosen on the way down
	through []indexedNode // indexed nodes that will number a built element
}

// accepts reports whether n can take ev as its next element.
func accepts(n FormBuilder, ev *event) bool {
	switch t := n.(type) {
	case *NumpyBuilder:
		return t.accepts(ev)
	case *RawBuilder:
		return ev.code == EventBytestring && len(ev.raw) == t.form.ItemSize
	case *ByteMaskedBuilder:
		return ev.code == EventNull || accepts(t.content, ev)
	case *BitMaskedBuilder:
		return ev.code == EventNull || accepts(t.content, ev)
	case *UnmaskedBuilder:
		return accepts(t.content, ev)
	case *IndexedBuilder:
		if ev.code == EventAppend {
			return appendFits(t, ev) == nil
		}
		return accepts(t.content, ev)
	case *IndexedOptionBuilder:
		if ev.code == EventAppend {
			return appendFits(t, ev) == nil
		}
		return ev.code == EventNull || accepts(t.content, ev)
	case *RegularBuilder:
		return ev.code == EventBeginList
	case *ListBuilder:
		return listAccepts(t.form, ev.code)
	case *ListOffsetBuilder:
		return listAccepts(t.form, ev.code)
	case *RecordBuilder:
		if t.form.IsTuple() {
			return ev.code == EventBeginTuple && ev.arity == len(t.contents)
		}
		return ev.code == EventBeginRecord
	case *UnionBuilder:
		return t.classify(ev) >= 0
	case *VirtualBuilder:
		return accepts(t.child(), ev)
	}
	return false
}

// appendFits checks that an appended array has the form of n's content.
// Keys may differ.
func appendFits(n indexedNode, ev *event) error {
	want, got := n.Form().Children()[0], ev.foreign.Form()
	if form.Equal(want, got) {
		return nil
	}
	kind := ErrStructure
	if want.Kind() == form.KindNumpy && got != nil && got.Kind() == form.KindNumpy {
		kind = ErrTypeMismatch
	}
	return newError(kind, n, ev.code.String(), "appended array is %s, want %s", describeForm(got), describeForm(want))
}

// listAccepts: string and bytestring lists take only their scalar event,
// other lists only beginlist.
func listAccepts(f form.Form, ev Event) bool {
	if se := stringEvent(f); se != EventNull {
		return ev == se
	}
	return ev == EventBeginList
}

// recordOf returns the record reached from n through pass-through wrappers.
func recordOf(n FormBuilder) *RecordBuilder {
	for {
		switch t := n.(type) {
		case *RecordBuilder:
			return t
		case *ByteMaskedBuilder:
			n = t.content
		case *BitMaskedBuilder:
			n = t.content
		case *UnmaskedBuilder:
			n = t.content
		case *IndexedBuilder:
			n = t.content
		case *IndexedOptionBuilder:
			n = t.content
		case *VirtualBuilder:
			n = t.child()
		default:
			return nil
		}
	}
}

// classify picks the first alternative that accepts ev. A named record
// prefers the alternative carrying that name.
func (b *UnionBuilder) classify(ev *event) int {
	if ev.code == EventBeginRecord && ev.named {
		for i, c := range b.contents {
			if r := recordOf(c); r != nil && r.Name() == ev.name && accepts(c, ev) {
				return i
			}
		}
	}
	for i, c := range b.contents {
		if accepts(c, ev) {
			return i
		}
	}
	return -1
}

// mismatch is the error kind for an event a node cannot take: scalars are
// type mismatches, anything else is structural.
func mismatch(ev Event) error {
	if ev.IsScalar() {
		return ErrTypeMismatch
	}
	return ErrStructure
}

// route walks from n to the node that consumes ev.
func route(n FormBuilder, ev *event) (routed, error) {
	var r routed
	for {
		switch t := n.(type) {
		case *ByteMaskedBuilder:
			if ev.code == EventNull {
				r.node = t
				return r, nil
			}
			n = t.content
		case *BitMaskedBuilder:
			if ev.code == EventNull {
				r.node = t
				return r, nil
			}
			n = t.content
		case *UnmaskedBuilder:
			n = t.content
		case *IndexedBuilder:
			if ev.code == EventAppend {
				r.node = t
				return r, nil
			}
			r.through = append(r.through, t)
			n = t.content
		case *IndexedOptionBuilder:
			if ev.code == EventNull || ev.code == EventAppend {
				r.node = t
				return r, nil
			}
			r.through = append(r.through, t)
			n = t.content
		case *VirtualBuilder:
			n = t.child()
		case *UnionBuilder:
			i := t.classify(ev)
			if i < 0 {
				return r, newError(mismatch(ev.code), t, ev.code.String(), "no alternative accepts %s", ev.code)
			}
			r.selects = append(r.selects, int64(i))
			n = t.contents[i]
		default:
			r.node = n
			return r, nil
		}
	}
}

// check validates ev against the node it was routed to. Nothing has been
// written yet when it fails.
func check(r routed, ev *event) error {
	op := ev.code.String()
	for _, ix := range r.through {
		if ix.binding().foreign != nil {
			return newError(ErrUnsupported, ix, op, "node is bound to an appended foreign array")
		}
	}
	switch t := r.node.(type) {
	case *NumpyBuilder:
		if t.accepts(ev) {
			return nil
		}
		if ev.code == EventInteger && !t.form.DType.Fits(ev.i) {
			return newError(ErrTypeMismatch, t, op, "%d out of range for %v", ev.i, t.form.DType)
		}
		return newError(mismatch(ev.code), t, op, "%v cannot hold %s", t.form.DType, ev.code)
	case *RawBuilder:
		if ev.code != EventBytestring {
			return newError(mismatch(ev.code), t, op, "raw items are bytestrings")
		}
		if len(ev.raw) != t.form.ItemSize {
			return newError(ErrTypeMismatch, t, op, "item is %d bytes, want %d", len(ev.raw), t.form.ItemSize)
		}
		return nil
	case *EmptyBuilder:
		return newError(ErrStructure, t, op, "empty array cannot hold values")
	case *ByteMaskedBuilder:
		return padCheck(t.content, op)
	case *BitMaskedBuilder:
		return padCheck(t.content, op)
	case indexedNode:
		if ev.code != EventAppend {
			return nil
		}
		if err := appendFits(t, ev); err != nil {
			return err
		}
		if !t.binding().bind(ev.foreign) {
			return newError(ErrUnsupported, t, op, "cannot mix appended arrays with built elements or another array")
		}
		return nil
	case *RegularBuilder:
		if ev.code != EventBeginList {
			return newError(mismatch(ev.code), t, op, "expected a list of %d", t.form.Size)
		}
		return nil
	case *ListBuilder, *ListOffsetBuilder:
		if !accepts(t, ev) {
			return newError(mismatch(ev.code), t, op, "expected a list")
		}
		return nil
	case *RecordBuilder:
		if t.form.IsTuple() {
			if ev.code != EventBeginTuple {
				return newError(mismatch(ev.code), t, op, "expected a tuple")
			}
			if ev.arity != len(t.contents) {
				return newError(ErrStructure, t, op, "tuple of %d, want %d", ev.arity, len(t.contents))
			}
			return nil
		}
		if ev.code != EventBeginRecord {
			return newError(mismatch(ev.code), t, op, "expected a record")
		}
		if ev.checked && ev.name != t.Name() {
			return newError(ErrFieldMismatch, t, op, "record %q, want %q", ev.name, t.Name())
		}
		return nil
	}
	return newError(ErrStructure, r.node, op, "cannot accept %s", ev.code)
}

// padPath visits every node a missing value pads below n.
func padPath(n FormBuilder, visit func(FormBuilder) error) error {
	for {
		if err := visit(n); err != nil {
			return err
		}
		switch t := n.(type) {
		case *ByteMaskedBuilder:
			n = t.content
		case *BitMaskedBuilder:
			n = t.content
		case *UnmaskedBuilder:
			n = t.content
		case *IndexedBuilder:
			n = t.content
		case *VirtualBuilder:
			n = t.child()
		case *UnionBuilder:
			n = t.contents[0]
		case *RegularBuilder:
			if t.form.Size == 0 {
				return nil
			}
			n = t.content
		case *RecordBuilder:
			for _, c := range t.contents {
				if err := padPath(c, visit); err != nil {
					return err
				}
			}
			return nil
		default:
			return nil
		}
	}
}

func padCheck(n FormBuilder, op string) error {
	return padPath(n, func(p FormBuilder) error {
		switch t := p.(type) {
		case *EmptyBuilder:
			return newError(ErrUnsupported, t, op, "cannot pad an empty array")
		case *IndexedBuilder:
			if t.foreign != nil {
				return newError(ErrUnsupported, t, op, "cannot pad an array bound to a foreign array")
			}
		}
		return nil
	})
}

func markPadded(n FormBuilder) {
	padPath(n, func(p FormBuilder) error {
		if t, ok := p.(*IndexedBuilder); ok {
			t.built = true
		}
		return nil
	})
}
