package builder

import (
	"fmt"

	"github.com/chazu/typedbuilder/content"
	"github.com/chazu/typedbuilder/form"
)

// stringEvent returns the scalar event a string or bytestring list accepts
// in place of a nested list, or EventNull when it accepts none.
func stringEvent(f form.Form) Event {
	switch {
	case form.IsString(f):
		return EventString
	case form.IsBytestring(f):
		return EventBytestring
	}
	return EventNull
}

// charData names the byte buffer a string list copies into.
func charData(c FormBuilder) string {
	if n, ok := c.(*NumpyBuilder); ok {
		return n.dataName()
	}
	return ""
}

// RegularBuilder counts fixed-size lists; the content holds the elements
// back to back.
type RegularBuilder struct {
	node
	form    *form.RegularForm
	content FormBuilder
}

func (b *RegularBuilder) ClassName() string       { return "RegularArrayBuilder" }
func (b *RegularBuilder) Form() form.Form         { return b.form }
func (b *RegularBuilder) children() []FormBuilder { return []FormBuilder{b.content} }

func (b *RegularBuilder) VMOutput() string {
	return fmt.Sprintf("variable %s\n", b.name("length")) + b.content.VMOutput()
}

func (b *RegularBuilder) VMFunc() string {
	return b.content.VMFunc() +
		word(b.VMFuncName(),
			fmt.Sprintf("events i-> stack %d <> if 1 halt then", EventBeginList),
			fmt.Sprintf("0 begin events peek %d <> while %s 1+ repeat", EventEndList, b.content.VMFuncName()),
			fmt.Sprintf("events i-> stack drop %d <> if 3 halt then", b.form.Size),
			fmt.Sprintf("1 %s +!", b.name("length"))) +
		word(b.padName(),
			fmt.Sprintf("%d begin dup 0 > while %s 1- repeat drop", b.form.Size, b.content.padName()),
			fmt.Sprintf("1 %s +!", b.name("length")))
}

func (b *RegularBuilder) Snapshot(bufs Buffers) (content.Content, error) {
	n, err := bufs.Variable(b.name("length"))
	if err != nil {
		return nil, err
	}
	c, err := b.content.Snapshot(bufs)
	if err != nil {
		return nil, err
	}
	return &content.RegularArray{F: b.form, Length: int(n), Content: c}, nil
}

// ListBuilder records a start and a stop per list.
type ListBuilder struct {
	node
	form    *form.ListForm
	content FormBuilder
}

func (b *ListBuilder) ClassName() string       { return "ListArrayBuilder" }
func (b *ListBuilder) Form() form.Form         { return b.form }
func (b *ListBuilder) children() []FormBuilder { return []FormBuilder{b.content} }

func (b *ListBuilder) VMOutput() string {
	return fmt.Sprintf("output %s %s\noutput %s %s\nvariable %s\n",
		b.name("starts"), b.form.Starts, b.name("stops"), b.form.Starts, b.name("cursor")) + b.content.VMOutput()
}

func (b *ListBuilder) VMFunc() string {
	cursor, starts, stops := b.name("cursor"), b.name("starts"), b.name("stops")
	open := fmt.Sprintf("%s @ %s <- stack", cursor, starts)
	closing := fmt.Sprintf("%s @ %s <- stack", cursor, stops)
	body := []string{
		fmt.Sprintf("events i-> stack dup %d = if drop %s", EventBeginList, open),
		fmt.Sprintf("begin events peek %d <> while %s 1 %s +! repeat", EventEndList, b.content.VMFuncName(), cursor),
		fmt.Sprintf("events i-> stack drop %s", closing),
	}
	if ev := stringEvent(b.form); ev != EventNull {
		body = append(body,
			fmt.Sprintf("else %d = if %s data q-> stack dup %s +! data #B-> %s %s", ev, open, cursor, charData(b.content), closing),
			"else 1 halt then then")
	} else {
		body = append(body, "else 1 halt then")
	}
	return b.content.VMFunc() +
		word(b.VMFuncName(), body...) +
		word(b.padName(), fmt.Sprintf("%s @ dup %s <- stack %s <- stack", cursor, starts, stops))
}

func (b *ListBuilder) Snapshot(bufs Buffers) (content.Content, error) {
	starts, err := bufs.Output(b.name("starts"))
	if err != nil {
		return nil, err
	}
	stops, err := bufs.Output(b.name("stops"))
	if err != nil {
		return nil, err
	}
	c, err := b.content.Snapshot(bufs)
	if err != nil {
		return nil, err
	}
	return &content.ListArray{F: b.form, Starts: starts, Stops: stops, Content: c}, nil
}

// ListOffsetBuilder records one running offset per list, starting from 0.
type ListOffsetBuilder struct {
	node
	form    *form.ListOffsetForm
	content FormBuilder
}

func (b *ListOffsetBuilder) ClassName() string       { return "ListOffsetArrayBuilder" }
func (b *ListOffsetBuilder) Form() form.Form         { return b.form }
func (b *ListOffsetBuilder) children() []FormBuilder { return []FormBuilder{b.content} }
func (b *ListOffsetBuilder) offsetsName() string     { return b.name("offsets") }

func (b *ListOffsetBuilder) VMOutput() string {
	return fmt.Sprintf("output %s %s\n", b.offsetsName(), b.form.Offsets) + b.content.VMOutput()
}

func (b *ListOffsetBuilder) VMFromStack() string { return b.offsetsName() + " +<- stack" }

func (b *ListOffsetBuilder) vmInit() string {
	return fmt.Sprintf("0 %s <- stack\n", b.offsetsName())
}

func (b *ListOffsetBuilder) VMFunc() string {
	body := []string{
		fmt.Sprintf("events i-> stack dup %d = if drop", EventBeginList),
		fmt.Sprintf("0 begin events peek %d <> while %s 1+ repeat", EventEndList, b.content.VMFuncName()),
		fmt.Sprintf("events i-> stack drop %s", b.VMFromStack()),
	}
	if ev := stringEvent(b.form); ev != EventNull {
		body = append(body,
			fmt.Sprintf("else %d = if data q-> stack dup %s data #B-> %s", ev, b.VMFromStack(), charData(b.content)),
			"else 1 halt then then")
	} else {
		body = append(body, "else 1 halt then")
	}
	return b.content.VMFunc() +
		word(b.VMFuncName(), body...) +
		word(b.padName(), "0", b.VMFromStack())
}

func (b *ListOffsetBuilder) Snapshot(bufs Buffers) (content.Content, error) {
	offsets, err := bufs.Output(b.offsetsName())
	if err != nil {
		return nil, err
	}
	c, err := b.content.Snapshot(bufs)
	if err != nil {
		return nil, err
	}
	return &content.ListOffsetArray{F: b.form, Offsets: offsets, Content: c}, nil
}
