package builder

import (
	"fmt"
	"strings"

	"github.com/chazu/typedbuilder/content"
	"github.com/chazu/typedbuilder/form"
)

// NumpyBuilder appends scalars to one typed buffer.
type NumpyBuilder struct {
	node
	form *form.NumpyForm
}

func (b *NumpyBuilder) ClassName() string       { return "NumpyArrayBuilder" }
func (b *NumpyBuilder) Form() form.Form         { return b.form }
func (b *NumpyBuilder) children() []FormBuilder { return nil }
func (b *NumpyBuilder) dataName() string        { return b.name("data") }

func (b *NumpyBuilder) VMOutput() string {
	return fmt.Sprintf("output %s %s\n", b.dataName(), b.form.DType)
}

func (b *NumpyBuilder) VMFromStack() string {
	return b.dataName() + " <- stack"
}

func (b *NumpyBuilder) VMFunc() string {
	d := b.form.DType
	var cases []string
	add := func(ev Event, op string) {
		cases = append(cases, fmt.Sprintf("%d of data %s %s endof", ev, op, b.dataName()))
	}
	switch {
	case d.IsBool():
		add(EventBoolean, "q->")
	case d.IsInteger():
		add(EventInteger, "q->")
	case d.IsFloat():
		add(EventInteger, "q->")
		add(EventReal, "d->")
	case d.IsComplex():
		add(EventInteger, "q->")
		add(EventReal, "d->")
		add(EventComplex, "z->")
	}
	return word(b.VMFuncName(), "events i-> stack case", strings.Join(cases, " "), "1 halt endcase") +
		word(b.padName(), "0", b.VMFromStack())
}

// accepts reports whether a scalar event can be stored in this dtype.
func (b *NumpyBuilder) accepts(ev *event) bool {
	d := b.form.DType
	switch ev.code {
	case EventBoolean:
		return d.IsBool()
	case EventInteger:
		return (d.IsInteger() || d.IsFloat() || d.IsComplex()) && d.Fits(ev.i)
	case EventReal:
		return d.IsFloat() || d.IsComplex()
	case EventComplex:
		return d.IsComplex()
	}
	return false
}

func (b *NumpyBuilder) Snapshot(bufs Buffers) (content.Content, error) {
	v, err := bufs.Output(b.dataName())
	if err != nil {
		return nil, err
	}
	return &content.NumpyArray{F: b.form, Data: v}, nil
}

// RawBuilder stores fixed-size byte items taken from bytestring events.
type RawBuilder struct {
	node
	form *form.RawForm
}

func (b *RawBuilder) ClassName() string       { return "RawArrayBuilder" }
func (b *RawBuilder) Form() form.Form         { return b.form }
func (b *RawBuilder) children() []FormBuilder { return nil }
func (b *RawBuilder) dataName() string        { return b.name("data") }

func (b *RawBuilder) VMOutput() string {
	return fmt.Sprintf("output %s uint8\n", b.dataName())
}

func (b *RawBuilder) VMFunc() string {
	return word(b.VMFuncName(),
		fmt.Sprintf("events i-> stack %d <> if 1 halt then", EventBytestring),
		"data q-> stack data #B->", b.dataName()) +
		word(b.padName(),
			fmt.Sprintf("%d begin dup 0 > while 0 %s <- stack 1- repeat drop", b.form.ItemSize, b.dataName()))
}

func (b *RawBuilder) Snapshot(bufs Buffers) (content.Content, error) {
	v, err := bufs.Output(b.dataName())
	if err != nil {
		return nil, err
	}
	return &content.RawArray{F: b.form, Data: v}, nil
}

// EmptyBuilder accepts nothing.
type EmptyBuilder struct {
	node
	form *form.EmptyForm
}

func (b *EmptyBuilder) ClassName() string       { return "EmptyArrayBuilder" }
func (b *EmptyBuilder) Form() form.Form         { return b.form }
func (b *EmptyBuilder) children() []FormBuilder { return nil }
func (b *EmptyBuilder) VMOutput() string        { return "" }

func (b *EmptyBuilder) VMFunc() string {
	return word(b.VMFuncName(), "events i-> stack drop 1 halt") + word(b.padName(), "1 halt")
}

func (b *EmptyBuilder) Snapshot(Buffers) (content.Content, error) {
	return &content.EmptyArray{F: b.form}, nil
}

// UnknownBuilder is the root before a form is bound. It generates no
// program.
type UnknownBuilder struct{}

func (b *UnknownBuilder) ClassName() string       { return "UnknownBuilder" }
func (b *UnknownBuilder) Form() form.Form         { return nil }
func (b *UnknownBuilder) VMOutput() string        { return "" }
func (b *UnknownBuilder) VMFunc() string          { return "" }
func (b *UnknownBuilder) VMFuncName() string      { return "" }
func (b *UnknownBuilder) VMFromStack() string     { return "" }
func (b *UnknownBuilder) vmInit() string          { return "" }
func (b *UnknownBuilder) padName() string         { return "" }
func (b *UnknownBuilder) children() []FormBuilder { return nil }

func (b *UnknownBuilder) Snapshot(Buffers) (content.Content, error) {
	return &content.EmptyArray{}, nil
}
