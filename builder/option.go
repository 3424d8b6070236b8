package builder

import (
	"fmt"

	"github.com/chazu/typedbuilder/content"
	"github.com/chazu/typedbuilder/form"
)

func maskBytes(validWhen bool) (valid, invalid int) {
	if validWhen {
		return 1, 0
	}
	return 0, 1
}

// ByteMaskedBuilder keeps one mask byte per element. A missing element
// still pads its content so positions line up.
type ByteMaskedBuilder struct {
	node
	form    *form.ByteMaskedForm
	content FormBuilder
}

func (b *ByteMaskedBuilder) ClassName() string       { return "ByteMaskedArrayBuilder" }
func (b *ByteMaskedBuilder) Form() form.Form         { return b.form }
func (b *ByteMaskedBuilder) children() []FormBuilder { return []FormBuilder{b.content} }
func (b *ByteMaskedBuilder) maskName() string        { return b.name("mask") }

func (b *ByteMaskedBuilder) VMOutput() string {
	return fmt.Sprintf("output %s int8\n", b.maskName()) + b.content.VMOutput()
}

func (b *ByteMaskedBuilder) VMFunc() string {
	valid, invalid := maskBytes(b.form.ValidWhen)
	return b.content.VMFunc() +
		word(b.VMFuncName(),
			fmt.Sprintf("events peek %d = if events i-> stack drop %d %s <- stack %s", EventNull, invalid, b.maskName(), b.content.padName()),
			fmt.Sprintf("else %d %s <- stack %s then", valid, b.maskName(), b.content.VMFuncName())) +
		word(b.padName(), fmt.Sprintf("%d %s <- stack %s", invalid, b.maskName(), b.content.padName()))
}

func (b *ByteMaskedBuilder) Snapshot(bufs Buffers) (content.Content, error) {
	mask, err := bufs.Output(b.maskName())
	if err != nil {
		return nil, err
	}
	c, err := b.content.Snapshot(bufs)
	if err != nil {
		return nil, err
	}
	return &content.ByteMaskedArray{F: b.form, Mask: mask, Content: c}, nil
}

// BitMaskedBuilder packs validity bits eight to a byte. The byte being
// filled lives in a variable until it is full.
type BitMaskedBuilder struct {
	node
	form    *form.BitMaskedForm
	content FormBuilder
}

func (b *BitMaskedBuilder) ClassName() string       { return "BitMaskedArrayBuilder" }
func (b *BitMaskedBuilder) Form() form.Form         { return b.form }
func (b *BitMaskedBuilder) children() []FormBuilder { return []FormBuilder{b.content} }
func (b *BitMaskedBuilder) maskName() string        { return b.name("mask") }

func (b *BitMaskedBuilder) VMOutput() string {
	return fmt.Sprintf("output %s uint8\nvariable %s\nvariable %s\nvariable %s\n",
		b.maskName(), b.name("bits"), b.name("nbits"), b.name("length")) + b.content.VMOutput()
}

func (b *BitMaskedBuilder) VMFunc() string {
	bits, nbits, length := b.name("bits"), b.name("nbits"), b.name("length")
	shift := fmt.Sprintf("%s @ lshift", nbits)
	if !b.form.LSBOrder {
		shift = fmt.Sprintf("7 %s @ - lshift", nbits)
	}
	bit := b.name("bit")
	valid, invalid := maskBytes(b.form.ValidWhen)
	return b.content.VMFunc() +
		word(bit,
			shift, fmt.Sprintf("%s @ or %s !", bits, bits),
			fmt.Sprintf("1 %s +! 1 %s +!", nbits, length),
			fmt.Sprintf("%s @ 8 = if %s @ %s <- stack 0 %s ! 0 %s ! then", nbits, bits, b.maskName(), bits, nbits)) +
		word(b.VMFuncName(),
			fmt.Sprintf("events peek %d = if events i-> stack drop %d %s %s", EventNull, invalid, bit, b.content.padName()),
			fmt.Sprintf("else %d %s %s then", valid, bit, b.content.VMFuncName())) +
		word(b.padName(), fmt.Sprintf("%d %s %s", invalid, bit, b.content.padName()))
}

func (b *BitMaskedBuilder) Snapshot(bufs Buffers) (content.Content, error) {
	mask, err := bufs.Output(b.maskName())
	if err != nil {
		return nil, err
	}
	tail, err := bufs.Variable(b.name("bits"))
	if err != nil {
		return nil, err
	}
	length, err := bufs.Variable(b.name("length"))
	if err != nil {
		return nil, err
	}
	c, err := b.content.Snapshot(bufs)
	if err != nil {
		return nil, err
	}
	return &content.BitMaskedArray{F: b.form, Mask: mask, Tail: byte(tail), Length: int(length), Content: c}, nil
}

// UnmaskedBuilder is an option type with no missing values; everything
// passes through to the content.
type UnmaskedBuilder struct {
	node
	form    *form.UnmaskedForm
	content FormBuilder
}

func (b *UnmaskedBuilder) ClassName() string       { return "UnmaskedArrayBuilder" }
func (b *UnmaskedBuilder) Form() form.Form         { return b.form }
func (b *UnmaskedBuilder) children() []FormBuilder { return []FormBuilder{b.content} }
func (b *UnmaskedBuilder) VMOutput() string        { return b.content.VMOutput() }
func (b *UnmaskedBuilder) VMFromStack() string     { return b.content.VMFromStack() }

func (b *UnmaskedBuilder) VMFunc() string {
	return b.content.VMFunc() +
		word(b.VMFuncName(), b.content.VMFuncName()) +
		word(b.padName(), b.content.padName())
}

func (b *UnmaskedBuilder) Snapshot(bufs Buffers) (content.Content, error) {
	c, err := b.content.Snapshot(bufs)
	if err != nil {
		return nil, err
	}
	return &content.UnmaskedArray{F: b.form, Content: c}, nil
}

// foreignBinding tracks whether an indexed node's elements are built here
// or point into an appended foreign array. The two cannot be mixed.
type foreignBinding struct {
	foreign content.Content
	built   bool
}

func (f *foreignBinding) bind(array content.Content) bool {
	if f.built || (f.foreign != nil && f.foreign != array) {
		return false
	}
	return true
}

func (f *foreignBinding) reset() {
	f.foreign, f.built = nil, false
}

// IndexedBuilder writes one index per element. Built elements get
// consecutive indices into the content; appended elements index into a
// foreign array instead.
type IndexedBuilder struct {
	node
	foreignBinding
	form    *form.IndexedForm
	content FormBuilder
}

func (b *IndexedBuilder) ClassName() string       { return "IndexedArrayBuilder" }
func (b *IndexedBuilder) Form() form.Form         { return b.form }
func (b *IndexedBuilder) children() []FormBuilder { return []FormBuilder{b.content} }
func (b *IndexedBuilder) indexName() string       { return b.name("index") }
func (b *IndexedBuilder) binding() *foreignBinding {
	return &b.foreignBinding
}

func (b *IndexedBuilder) VMOutput() string {
	return fmt.Sprintf("output %s %s\nvariable %s\n", b.indexName(), b.form.Index, b.name("count")) + b.content.VMOutput()
}

func (b *IndexedBuilder) VMFromStack() string { return b.indexName() + " <- stack" }

func (b *IndexedBuilder) VMFunc() string {
	next := fmt.Sprintf("%s @ %s 1 %s +!", b.name("count"), b.VMFromStack(), b.name("count"))
	return b.content.VMFunc() +
		word(b.VMFuncName(),
			fmt.Sprintf("events peek %d = if events i-> stack drop data q-> stack %s", EventAppend, b.VMFromStack()),
			fmt.Sprintf("else %s %s then", next, b.content.VMFuncName())) +
		word(b.padName(), next, b.content.padName())
}

func (b *IndexedBuilder) Snapshot(bufs Buffers) (content.Content, error) {
	index, err := bufs.Output(b.indexName())
	if err != nil {
		return nil, err
	}
	c := b.foreign
	if c == nil {
		if c, err = b.content.Snapshot(bufs); err != nil {
			return nil, err
		}
	}
	return &content.IndexedArray{F: b.form, Index: index, Content: c}, nil
}

// IndexedOptionBuilder is an IndexedBuilder that writes -1 for a missing
// element.
type IndexedOptionBuilder struct {
	node
	foreignBinding
	form    *form.IndexedOptionForm
	content FormBuilder
}

func (b *IndexedOptionBuilder) ClassName() string       { return "IndexedOptionArrayBuilder" }
func (b *IndexedOptionBuilder) Form() form.Form         { return b.form }
func (b *IndexedOptionBuilder) children() []FormBuilder { return []FormBuilder{b.content} }
func (b *IndexedOptionBuilder) indexName() string       { return b.name("index") }
func (b *IndexedOptionBuilder) binding() *foreignBinding {
	return &b.foreignBinding
}

func (b *IndexedOptionBuilder) VMOutput() string {
	return fmt.Sprintf("output %s %s\nvariable %s\n", b.indexName(), b.form.Index, b.name("count")) + b.content.VMOutput()
}

func (b *IndexedOptionBuilder) VMFromStack() string { return b.indexName() + " <- stack" }

func (b *IndexedOptionBuilder) VMFunc() string {
	next := fmt.Sprintf("%s @ %s 1 %s +!", b.name("count"), b.VMFromStack(), b.name("count"))
	return b.content.VMFunc() +
		word(b.VMFuncName(),
			fmt.Sprintf("events peek %d = if events i-> stack drop -1 %s", EventNull, b.VMFromStack()),
			fmt.Sprintf("else events peek %d = if events i-> stack drop data q-> stack %s", EventAppend, b.VMFromStack()),
			fmt.Sprintf("else %s %s then then", next, b.content.VMFuncName())) +
		word(b.padName(), "-1", b.VMFromStack())
}

func (b *IndexedOptionBuilder) Snapshot(bufs Buffers) (content.Content, error) {
	index, err := bufs.Output(b.indexName())
	if err != nil {
		return nil, err
	}
	c := b.foreign
	if c == nil {
		if c, err = b.content.Snapshot(bufs); err != nil {
			return nil, err
		}
	}
	return &content.IndexedOptionArray{F: b.form, Index: index, Content: c}, nil
}

// indexedNode is implemented by both indexed builders.
type indexedNode interface {
	FormBuilder
	binding() *foreignBinding
}
