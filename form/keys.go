package form

import (
	"errors"
	"fmt"

	"github.com/chazu/typedbuilder/dtype"
)

// Walk visits every node of the tree in depth-first pre-order. Returning an
// error from fn stops the walk.
func Walk(root Form, fn func(Form) error) error {
	if root == nil {
		return nil
	}
	stack := []Form{root}
	for len(stack) > 0 {
		f := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		if err := fn(f); err != nil {
			return err
		}
		children := f.Children()
		for i := len(children) - 1; i >= 0; i-- {
			if children[i] != nil {
				stack = append(stack, children[i])
			}
		}
	}
	return nil
}

// AssignKeys gives every unkeyed node a key of the form "nodeN", numbering in
// pre-order and skipping keys that are already taken.
func AssignKeys(root Form) {
	used := make(map[string]bool)
	Walk(root, func(f Form) error {
		if k := f.Key(); k != "" {
			used[k] = true
		}
		return nil
	})

	n := 0
	Walk(root, func(f Form) error {
		m := f.meta()
		if m.FormKey != "" {
			return nil
		}
		for {
			key := fmt.Sprintf("node%d", n)
			n++
			if !used[key] {
				m.FormKey = key
				used[key] = true
				return nil
			}
		}
	})
}

// Validate reports every problem found in the tree, joined into one error.
func Validate(root Form) error {
	if root == nil {
		return errors.New("form is nil")
	}
	var errs []error
	seen := make(map[string]bool)
	Walk(root, func(f Form) error {
		key := f.Key()
		switch {
		case key == "":
			errs = append(errs, fmt.Errorf("%s form has no key", f.Kind()))
		case seen[key]:
			errs = append(errs, fmt.Errorf("duplicate form key %q", key))
		}
		seen[key] = true
		if err := validateNode(f); err != nil {
			errs = append(errs, fmt.Errorf("%s form %q: %w", f.Kind(), key, err))
		}
		return nil
	})
	return errors.Join(errs...)
}

func validateNode(f Form) error {
	for _, c := range f.Children() {
		if c == nil {
			return errors.New("missing content")
		}
	}
	switch f := f.(type) {
	case *NumpyForm:
		if !f.DType.Valid() {
			return fmt.Errorf("invalid dtype %v", f.DType)
		}
	case *RawForm:
		if f.ItemSize <= 0 {
			return fmt.Errorf("item size %d is not positive", f.ItemSize)
		}
	case *BitMaskedForm:
		if _, ok := f.Content.(*EmptyForm); ok {
			return errors.New("option over empty content")
		}
	case *ByteMaskedForm:
		if _, ok := f.Content.(*EmptyForm); ok {
			return errors.New("option over empty content")
		}
	case *IndexedForm:
		if !f.Index.IsInteger() {
			return fmt.Errorf("index type %v is not an integer", f.Index)
		}
	case *IndexedOptionForm:
		if !f.Index.IsSigned() {
			return fmt.Errorf("index type %v is not signed", f.Index)
		}
	case *RegularForm:
		if f.Size < 0 {
			return fmt.Errorf("negative size %d", f.Size)
		}
	case *ListForm:
		if !f.Starts.IsInteger() {
			return fmt.Errorf("starts type %v is not an integer", f.Starts)
		}
		return validateStringContent(f, f.Content)
	case *ListOffsetForm:
		if !f.Offsets.IsInteger() {
			return fmt.Errorf("offsets type %v is not an integer", f.Offsets)
		}
		return validateStringContent(f, f.Content)
	case *RecordForm:
		if f.Fields != nil && len(f.Fields) != len(f.Contents) {
			return fmt.Errorf("%d fields but %d contents", len(f.Fields), len(f.Contents))
		}
		names := make(map[string]bool, len(f.Fields))
		for _, name := range f.Fields {
			if names[name] {
				return fmt.Errorf("duplicate field %q", name)
			}
			names[name] = true
		}
	case *UnionForm:
		if len(f.Contents) == 0 {
			return errors.New("union has no alternatives")
		}
		if len(f.Contents) > 127 {
			return fmt.Errorf("%d alternatives do not fit an int8 tag", len(f.Contents))
		}
		if !f.Tags.IsSigned() || !f.Index.IsInteger() {
			return fmt.Errorf("tags %v / index %v are not integer types", f.Tags, f.Index)
		}
	}
	return nil
}

func validateStringContent(list Form, content Form) error {
	if !IsString(list) && !IsBytestring(list) {
		return nil
	}
	n, ok := content.(*NumpyForm)
	if !ok || n.DType != dtype.Uint8 {
		return errors.New("string content must be uint8")
	}
	return nil
}
