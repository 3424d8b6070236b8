package discover

import (
	"fmt"

	json "github.com/goccy/go-json"

	"github.com/chazu/typedbuilder/builder"
	"github.com/chazu/typedbuilder/form"
)

// Replay appends v to b as one top-level element, walking b's form so
// that missing record fields become nulls and union alternatives are picked
// by the value's shape. An unbound builder takes scalars only.
func Replay(b *builder.TypedArrayBuilder, v any) error {
	if b.Form() == nil {
		return scalar(b, v)
	}
	return replay(b, b.Form(), v)
}

// ReplayAll replays every value in order.
func ReplayAll(b *builder.TypedArrayBuilder, values []any) error {
	for i, v := range values {
		if err := Replay(b, v); err != nil {
			return fmt.Errorf("discover: value %d: %w", i, err)
		}
	}
	return nil
}

func replay(b *builder.TypedArrayBuilder, f form.Form, v any) error {
	switch f := f.(type) {
	case *form.ByteMaskedForm:
		return option(b, f.Content, v)
	case *form.BitMaskedForm:
		return option(b, f.Content, v)
	case *form.IndexedOptionForm:
		return option(b, f.Content, v)
	case *form.UnmaskedForm:
		return replay(b, f.Content, v)
	case *form.IndexedForm:
		return replay(b, f.Content, v)
	case *form.VirtualForm:
		return replay(b, f.Form, v)
	case *form.UnionForm:
		for _, alt := range f.Contents {
			if matches(alt, v) {
				return replay(b, alt, v)
			}
		}
		return scalar(b, v)
	case *form.RecordForm:
		return record(b, f, v)
	case *form.ListOffsetForm, *form.ListForm, *form.RegularForm:
		items, ok := v.([]any)
		if !ok {
			return scalar(b, v)
		}
		content := f.Children()[0]
		if err := b.BeginList(); err != nil {
			return err
		}
		for _, item := range items {
			if err := replay(b, content, item); err != nil {
				return err
			}
		}
		return b.EndList()
	}
	return scalar(b, v)
}

func option(b *builder.TypedArrayBuilder, content form.Form, v any) error {
	if v == nil {
		return b.Null()
	}
	return replay(b, content, v)
}

func record(b *builder.TypedArrayBuilder, f *form.RecordForm, v any) error {
	if f.IsTuple() {
		items, ok := v.([]any)
		if !ok {
			return fmt.Errorf("discover: tuple from %T", v)
		}
		if err := b.BeginTuple(len(items)); err != nil {
			return err
		}
		for i, item := range items {
			if err := b.Index(i); err != nil {
				return err
			}
			if err := replay(b, f.Contents[i], item); err != nil {
				return err
			}
		}
		return b.EndTuple()
	}

	get, ok := lookup(v)
	if !ok {
		return fmt.Errorf("discover: record from %T", v)
	}
	if err := b.BeginRecord(); err != nil {
		return err
	}
	for i, name := range f.Fields {
		if err := b.FieldFast(name); err != nil {
			return err
		}
		val, _ := get(name)
		if err := replay(b, f.Contents[i], val); err != nil {
			return err
		}
	}
	return b.EndRecord()
}

func lookup(v any) (func(string) (any, bool), bool) {
	switch v := v.(type) {
	case *Object:
		return v.Get, true
	case map[string]any:
		return func(k string) (any, bool) {
			x, ok := v[k]
			return x, ok
		}, true
	}
	return nil, false
}

// matches reports whether v has the shape of f.
func matches(f form.Form, v any) bool {
	switch f := f.(type) {
	case *form.ByteMaskedForm:
		return v == nil || matches(f.Content, v)
	case *form.BitMaskedForm:
		return v == nil || matches(f.Content, v)
	case *form.IndexedOptionForm:
		return v == nil || matches(f.Content, v)
	case *form.UnmaskedForm:
		return matches(f.Content, v)
	case *form.IndexedForm:
		return matches(f.Content, v)
	case *form.VirtualForm:
		return matches(f.Form, v)
	case *form.NumpyForm:
		s, err := shapeOf(v)
		if err != nil {
			return false
		}
		switch s.kind {
		case kindBool:
			return f.DType.IsBool()
		case kindInt:
			return f.DType.IsInteger() || f.DType.IsFloat()
		case kindFloat:
			return f.DType.IsFloat()
		}
		return false
	case *form.RecordForm:
		if f.IsTuple() {
			items, ok := v.([]any)
			return ok && len(items) == len(f.Contents)
		}
		_, ok := lookup(v)
		return ok
	case *form.UnionForm:
		for _, alt := range f.Contents {
			if matches(alt, v) {
				return true
			}
		}
		return false
	}
	switch {
	case form.IsString(f):
		_, ok := v.(string)
		return ok
	case form.IsBytestring(f):
		_, ok := v.([]byte)
		return ok
	}
	switch f.(type) {
	case *form.ListOffsetForm, *form.ListForm, *form.RegularForm:
		_, ok := v.([]any)
		return ok
	case *form.RawForm:
		_, ok := v.([]byte)
		return ok
	}
	return false
}

// scalar emits the event for a primitive value.
func scalar(b *builder.TypedArrayBuilder, v any) error {
	switch v := v.(type) {
	case nil:
		return b.Null()
	case bool:
		return b.Boolean(v)
	case json.Number:
		if i, err := v.Int64(); err == nil {
			return b.Integer(i)
		}
		x, err := v.Float64()
		if err != nil {
			return fmt.Errorf("discover: number %s: %w", v, err)
		}
		return b.Real(x)
	case int:
		return b.Integer(int64(v))
	case int8:
		return b.Integer(int64(v))
	case int16:
		return b.Integer(int64(v))
	case int32:
		return b.Integer(int64(v))
	case int64:
		return b.Integer(v)
	case uint8:
		return b.Integer(int64(v))
	case uint16:
		return b.Integer(int64(v))
	case uint32:
		return b.Integer(int64(v))
	case float32:
		return b.Real(float64(v))
	case float64:
		return b.Real(v)
	case complex128:
		return b.Complex(v)
	case string:
		return b.StringValue(v)
	case []byte:
		return b.Bytestring(v)
	}
	return fmt.Errorf("discover: cannot replay %T", v)
}
