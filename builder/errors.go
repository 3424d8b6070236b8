package builder

import (
	"errors"
	"fmt"

	"github.com/chazu/typedbuilder/form"
)

// Error kinds. Every *Error unwraps to exactly one of these.
var (
	// ErrTypeMismatch: a scalar does not match the leaf's element type.
	ErrTypeMismatch = errors.New("type mismatch")
	// ErrStructure: the node cannot accept this kind of event at all.
	ErrStructure = errors.New("structural mismatch")
	// ErrLengthMismatch: a regular list closed with the wrong count.
	ErrLengthMismatch = errors.New("length mismatch")
	// ErrFieldMismatch: unknown, repeated or missing record field.
	ErrFieldMismatch = errors.New("field mismatch")
	// ErrUnsupported: the builder cannot perform the operation in its
	// current state.
	ErrUnsupported = errors.New("unsupported operation")
)

// Error describes a rejected event.
type Error struct {
	Kind error
	Node string // class name and form key of the node that rejected it
	Op   string // the event or facade call, e.g. "beginlist" or "connect"
	Msg  string
}

func (e *Error) Error() string {
	if e.Node == "" {
		return fmt.Sprintf("builder: %s: %v: %s", e.Op, e.Kind, e.Msg)
	}
	return fmt.Sprintf("builder: %s: %v at %s: %s", e.Op, e.Kind, e.Node, e.Msg)
}

func (e *Error) Unwrap() error { return e.Kind }

func newError(kind error, node FormBuilder, op string, format string, args ...any) *Error {
	e := &Error{Kind: kind, Op: op, Msg: fmt.Sprintf(format, args...)}
	if node != nil {
		e.Node = describe(node)
	}
	return e
}

func describe(node FormBuilder) string {
	if f := node.Form(); f != nil {
		return fmt.Sprintf("%s %s", node.ClassName(), f.Key())
	}
	return node.ClassName()
}

func describeForm(f form.Form) string {
	switch t := f.(type) {
	case nil:
		return "nothing"
	case *form.NumpyForm:
		return fmt.Sprintf("%s(%v)", t.Kind(), t.DType)
	}
	return f.Kind().String()
}
