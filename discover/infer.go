// Package discover derives a form from sample values and replays values
// into a builder as events. Values are what ReadJSONLines produces, plus
// native Go numbers, strings, slices and maps.
package discover

import (
	"fmt"
	"slices"
	"sort"

	json "github.com/goccy/go-json"

	"github.com/chazu/typedbuilder/dtype"
	"github.com/chazu/typedbuilder/form"
)

type kind int

const (
	kindNone kind = iota // only nulls seen
	kindBool
	kindInt
	kindFloat
	kindString
	kindBytes
	kindList
	kindRecord
	kindUnion
)

// shape accumulates what was seen at one position of the values.
type shape struct {
	kind     kind
	nullable bool

	elem *shape // lists

	fields  []string // records, first-seen order
	members map[string]*shape
	present map[string]int
	seen    int

	alts []*shape // unions, one per kind
}

// Infer returns the form of an array holding values.
func Infer(values []any) (form.Form, error) {
	var s *shape
	for i, v := range values {
		vs, err := shapeOf(v)
		if err != nil {
			return nil, fmt.Errorf("discover: value %d: %w", i, err)
		}
		s = merge(s, vs)
	}
	if s == nil {
		return form.Empty(), nil
	}
	return s.form(), nil
}

func shapeOf(v any) (*shape, error) {
	switch v := v.(type) {
	case nil:
		return &shape{kind: kindNone, nullable: true}, nil
	case bool:
		return &shape{kind: kindBool}, nil
	case json.Number:
		if _, err := v.Int64(); err == nil {
			return &shape{kind: kindInt}, nil
		}
		if _, err := v.Float64(); err != nil {
			return nil, err
		}
		return &shape{kind: kindFloat}, nil
	case int, int8, int16, int32, int64, uint8, uint16, uint32:
		return &shape{kind: kindInt}, nil
	case float32, float64:
		return &shape{kind: kindFloat}, nil
	case string:
		return &shape{kind: kindString}, nil
	case []byte:
		return &shape{kind: kindBytes}, nil
	case []any:
		s := &shape{kind: kindList}
		for _, e := range v {
			es, err := shapeOf(e)
			if err != nil {
				return nil, err
			}
			s.elem = merge(s.elem, es)
		}
		return s, nil
	case *Object:
		return recordShape(v.Keys, v.Values)
	case map[string]any:
		keys := make([]string, 0, len(v))
		for k := range v {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		return recordShape(keys, v)
	}
	return nil, fmt.Errorf("cannot infer a form for %T", v)
}

func recordShape(keys []string, values map[string]any) (*shape, error) {
	s := &shape{kind: kindRecord, members: make(map[string]*shape), present: make(map[string]int), seen: 1}
	for _, k := range keys {
		ms, err := shapeOf(values[k])
		if err != nil {
			return nil, fmt.Errorf("field %q: %w", k, err)
		}
		s.fields = append(s.fields, k)
		s.members[k] = ms
		s.present[k] = 1
	}
	return s, nil
}

// merge combines two shapes; either may be nil.
func merge(a, b *shape) *shape {
	switch {
	case a == nil:
		return b
	case b == nil:
		return a
	case b.kind == kindNone:
		a.nullable = true
		return a
	case a.kind == kindNone:
		b.nullable = b.nullable || a.nullable
		return b
	}
	nullable := a.nullable || b.nullable

	if a.kind == kindUnion || b.kind == kindUnion {
		u := a
		if a.kind != kindUnion {
			u = &shape{kind: kindUnion}
			u.addAlt(a)
		}
		others := []*shape{b}
		if b.kind == kindUnion {
			others = b.alts
		}
		for _, o := range others {
			u.addAlt(o)
		}
		u.nullable = nullable
		return u
	}

	if numeric(a.kind) && numeric(b.kind) {
		a.kind = max(a.kind, b.kind)
		a.nullable = nullable
		return a
	}
	if a.kind != b.kind {
		u := &shape{kind: kindUnion}
		u.addAlt(a)
		u.addAlt(b)
		u.nullable = nullable
		return u
	}

	switch a.kind {
	case kindList:
		a.elem = merge(a.elem, b.elem)
	case kindRecord:
		for _, k := range b.fields {
			if m, ok := a.members[k]; ok {
				a.members[k] = merge(m, b.members[k])
			} else {
				a.fields = append(a.fields, k)
				a.members[k] = b.members[k]
			}
			a.present[k] += b.present[k]
		}
		a.seen += b.seen
	}
	a.nullable = nullable
	return a
}

func numeric(k kind) bool { return k == kindInt || k == kindFloat }

// addAlt merges o into the alternative of the same kind, or appends it.
func (u *shape) addAlt(o *shape) {
	if o.nullable {
		u.nullable = true
		o.nullable = false
	}
	for i, alt := range u.alts {
		if alt.kind == o.kind || (numeric(alt.kind) && numeric(o.kind)) {
			u.alts[i] = merge(alt, o)
			return
		}
	}
	u.alts = append(u.alts, o)
}

func (s *shape) form() form.Form {
	var f form.Form
	switch s.kind {
	case kindNone:
		return form.IndexedOption(form.Empty())
	case kindBool:
		f = form.Numpy(dtype.Bool)
	case kindInt:
		f = form.Numpy(dtype.Int64)
	case kindFloat:
		f = form.Numpy(dtype.Float64)
	case kindString:
		f = form.String()
	case kindBytes:
		f = form.Bytestring()
	case kindList:
		content := form.Form(form.Empty())
		if s.elem != nil {
			content = s.elem.form()
		}
		f = form.ListOffset(content)
	case kindRecord:
		contents := make([]form.Form, len(s.fields))
		for i, k := range s.fields {
			m := s.members[k]
			if s.present[k] < s.seen {
				m.nullable = true
			}
			contents[i] = m.form()
		}
		f = form.Record(slices.Clone(s.fields), contents)
	case kindUnion:
		contents := make([]form.Form, len(s.alts))
		for i, alt := range s.alts {
			contents[i] = alt.form()
		}
		f = form.Union(contents...)
	}
	if !s.nullable {
		return f
	}
	if _, ok := f.(*form.NumpyForm); ok {
		return form.ByteMasked(f)
	}
	return form.IndexedOption(f)
}
