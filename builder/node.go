package builder

import (
	"fmt"
	"strings"

	"github.com/chazu/typedbuilder/buffer"
	"github.com/chazu/typedbuilder/content"
	"github.com/chazu/typedbuilder/form"
	"github.com/chazu/typedbuilder/machine"
)

// FormBuilder is one node of the builder tree. Each node contributes output
// and variable declarations and word definitions to the generated program,
// and turns the finished buffers back into content.
type FormBuilder interface {
	// ClassName names the node kind, e.g. "ListOffsetArrayBuilder".
	ClassName() string
	// Form is the form this node builds, or nil for an unknown root.
	Form() form.Form

	// VMOutput declares the outputs and variables of this subtree.
	VMOutput() string
	// VMFunc defines the words of this subtree, children first.
	VMFunc() string
	// VMFuncName is the word that consumes one element.
	VMFuncName() string
	// VMFromStack is program text that writes the top of the stack as this
	// node's next element, or "" when the node cannot take one that way.
	VMFromStack() string

	// Snapshot wraps the current buffers as content without copying.
	Snapshot(Buffers) (content.Content, error)

	vmInit() string
	padName() string
	children() []FormBuilder
}

// Buffers gives a snapshot access to the program's outputs and variables.
type Buffers interface {
	Output(name string) (buffer.View, error)
	Variable(name string) (int64, error)
}

type programBuffers struct {
	prog machine.Program
}

func (p programBuffers) Output(name string) (buffer.View, error) {
	out, err := p.prog.Output(name)
	if err != nil {
		return buffer.View{}, err
	}
	return out.View(), nil
}

func (p programBuffers) Variable(name string) (int64, error) {
	return p.prog.Variable(name)
}

// peekBuffers reads the outputs without pinning them. The snapshot it builds
// is only good until the next event.
type peekBuffers struct {
	prog machine.Program
}

func (p peekBuffers) Output(name string) (buffer.View, error) {
	out, err := p.prog.Output(name)
	if err != nil {
		return buffer.View{}, err
	}
	return out.Peek(), nil
}

func (p peekBuffers) Variable(name string) (int64, error) {
	return p.prog.Variable(name)
}

// emptyBuffers stands in for a program that has not been compiled yet.
type emptyBuffers struct{}

func (emptyBuffers) Output(name string) (buffer.View, error) { return buffer.View{}, nil }
func (emptyBuffers) Variable(name string) (int64, error)     { return 0, nil }

// node holds what every builder derives from its form key.
type node struct {
	key string
}

func (n node) VMFuncName() string  { return n.key + "-fill" }
func (n node) VMFromStack() string { return "" }
func (n node) padName() string     { return n.key + "-pad" }
func (n node) vmInit() string      { return "" }
func (n node) name(suffix string) string {
	return n.key + "-" + suffix
}

// newBuilder builds the tree for a validated, keyed form.
func newBuilder(f form.Form) (FormBuilder, error) {
	n := node{key: f.Key()}
	switch f := f.(type) {
	case *form.NumpyForm:
		return &NumpyBuilder{node: n, form: f}, nil
	case *form.RawForm:
		return &RawBuilder{node: n, form: f}, nil
	case *form.EmptyForm:
		return &EmptyBuilder{node: n, form: f}, nil
	case *form.VirtualForm:
		return &VirtualBuilder{node: n, form: f}, nil
	}

	kids := make([]FormBuilder, len(f.Children()))
	for i, c := range f.Children() {
		kid, err := newBuilder(c)
		if err != nil {
			return nil, err
		}
		kids[i] = kid
	}

	switch f := f.(type) {
	case *form.BitMaskedForm:
		return &BitMaskedBuilder{node: n, form: f, content: kids[0]}, nil
	case *form.ByteMaskedForm:
		return &ByteMaskedBuilder{node: n, form: f, content: kids[0]}, nil
	case *form.UnmaskedForm:
		return &UnmaskedBuilder{node: n, form: f, content: kids[0]}, nil
	case *form.IndexedForm:
		return &IndexedBuilder{node: n, form: f, content: kids[0]}, nil
	case *form.IndexedOptionForm:
		return &IndexedOptionBuilder{node: n, form: f, content: kids[0]}, nil
	case *form.RegularForm:
		return &RegularBuilder{node: n, form: f, content: kids[0]}, nil
	case *form.ListForm:
		return &ListBuilder{node: n, form: f, content: kids[0]}, nil
	case *form.ListOffsetForm:
		return &ListOffsetBuilder{node: n, form: f, content: kids[0]}, nil
	case *form.RecordForm:
		return newRecordBuilder(n, f, kids), nil
	case *form.UnionForm:
		return &UnionBuilder{node: n, form: f, contents: kids}, nil
	}
	return nil, fmt.Errorf("builder: no builder for %v form", f.Kind())
}

// checkKeys rejects keys that cannot be spliced into program text.
func checkKeys(root form.Form) error {
	return form.Walk(root, func(f form.Form) error {
		k := f.Key()
		if strings.ContainsAny(k, " \t\r\n") {
			return fmt.Errorf("builder: form key %q contains whitespace", k)
		}
		return nil
	})
}

// walkBuilders visits the tree in pre-order.
func walkBuilders(root FormBuilder, fn func(FormBuilder)) {
	stack := []FormBuilder{root}
	for len(stack) > 0 {
		n := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		fn(n)
		kids := n.children()
		for i := len(kids) - 1; i >= 0; i-- {
			stack = append(stack, kids[i])
		}
	}
}

func childOutputs(kids []FormBuilder) string {
	var sb strings.Builder
	for _, k := range kids {
		sb.WriteString(k.VMOutput())
	}
	return sb.String()
}

func childFuncs(kids []FormBuilder) string {
	var sb strings.Builder
	for _, k := range kids {
		sb.WriteString(k.VMFunc())
	}
	return sb.String()
}

// word formats one definition on its own line.
func word(name string, body ...string) string {
	return fmt.Sprintf(": %s %s ;\n", name, strings.Join(body, " "))
}

func snapshotChildren(kids []FormBuilder, bufs Buffers) ([]content.Content, error) {
	out := make([]content.Content, len(kids))
	for i, k := range kids {
		c, err := k.Snapshot(bufs)
		if err != nil {
			return nil, err
		}
		out[i] = c
	}
	return out, nil
}
