package builder

import (
	"fmt"
	"strings"
	"sync"

	"github.com/chazu/typedbuilder/content"
	"github.com/chazu/typedbuilder/form"
)

// UnionBuilder writes a tag and a per-alternative index for each element.
// The facade picks the alternative and emits the select event.
type UnionBuilder struct {
	node
	form     *form.UnionForm
	contents []FormBuilder
}

func (b *UnionBuilder) ClassName() string       { return "UnionArrayBuilder" }
func (b *UnionBuilder) Form() form.Form         { return b.form }
func (b *UnionBuilder) children() []FormBuilder { return b.contents }
func (b *UnionBuilder) count(i int) string      { return b.name(fmt.Sprintf("count%d", i)) }

func (b *UnionBuilder) VMOutput() string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "output %s %s\noutput %s %s\n", b.name("tags"), b.form.Tags, b.name("index"), b.form.Index)
	for i := range b.contents {
		fmt.Fprintf(&sb, "variable %s\n", b.count(i))
	}
	sb.WriteString(childOutputs(b.contents))
	return sb.String()
}

func (b *UnionBuilder) next(i int) string {
	return fmt.Sprintf("%s @ %s <- stack 1 %s +!", b.count(i), b.name("index"), b.count(i))
}

func (b *UnionBuilder) VMFunc() string {
	cases := make([]string, len(b.contents))
	for i, c := range b.contents {
		cases[i] = fmt.Sprintf("%d of %s %s endof", i, b.next(i), c.VMFuncName())
	}
	return childFuncs(b.contents) +
		word(b.VMFuncName(),
			fmt.Sprintf("events i-> stack %d <> if 1 halt then", EventSelect),
			fmt.Sprintf("data q-> stack dup %s <- stack case", b.name("tags")),
			strings.Join(cases, " "), "2 halt endcase") +
		word(b.padName(), fmt.Sprintf("0 %s <- stack", b.name("tags")), b.next(0), b.contents[0].padName())
}

func (b *UnionBuilder) Snapshot(bufs Buffers) (content.Content, error) {
	tags, err := bufs.Output(b.name("tags"))
	if err != nil {
		return nil, err
	}
	index, err := bufs.Output(b.name("index"))
	if err != nil {
		return nil, err
	}
	kids, err := snapshotChildren(b.contents, bufs)
	if err != nil {
		return nil, err
	}
	return &content.UnionArray{F: b.form, Tags: tags, Index: index, Contents: kids}, nil
}

// VirtualBuilder defers building its content's subtree until the program
// is assembled or a value reaches it.
type VirtualBuilder struct {
	node
	form    *form.VirtualForm
	once    sync.Once
	content FormBuilder
	err     error
}

func (b *VirtualBuilder) ClassName() string { return "VirtualArrayBuilder" }
func (b *VirtualBuilder) Form() form.Form   { return b.form }

// child builds the content subtree on first use.
func (b *VirtualBuilder) child() FormBuilder {
	b.once.Do(func() {
		b.content, b.err = newBuilder(b.form.Form)
		if b.err != nil {
			log.Errorf("virtual %s: %v", b.key, b.err)
		}
	})
	if b.content == nil {
		return &EmptyBuilder{node: node{key: b.key + "-missing"}, form: form.Empty()}
	}
	return b.content
}

func (b *VirtualBuilder) children() []FormBuilder { return []FormBuilder{b.child()} }
func (b *VirtualBuilder) VMOutput() string        { return b.child().VMOutput() }
func (b *VirtualBuilder) VMFromStack() string     { return b.child().VMFromStack() }

func (b *VirtualBuilder) VMFunc() string {
	c := b.child()
	return c.VMFunc() + word(b.VMFuncName(), c.VMFuncName()) + word(b.padName(), c.padName())
}

// Snapshot takes the child's snapshot now so the generated array keeps the
// length it had at this point.
func (b *VirtualBuilder) Snapshot(bufs Buffers) (content.Content, error) {
	inner, err := b.child().Snapshot(bufs)
	if err != nil {
		return nil, err
	}
	return &content.VirtualArray{F: b.form, Generate: func() (content.Content, error) { return inner, nil }}, nil
}
