package builder

import (
	"fmt"
	"strings"
	"unsafe"

	"github.com/chazu/typedbuilder/content"
	"github.com/chazu/typedbuilder/form"
)

// RecordBuilder fills one content per field; a tuple is a record whose
// fields are addressed by position.
type RecordBuilder struct {
	node
	form     *form.RecordForm
	contents []FormBuilder

	// keys caches the last string each field was looked up with, so a
	// caller that reuses the same key values hits on pointer identity.
	keys []string
	last int
}

func newRecordBuilder(n node, f *form.RecordForm, kids []FormBuilder) *RecordBuilder {
	b := &RecordBuilder{node: n, form: f, contents: kids, last: -1}
	if !f.IsTuple() {
		b.keys = append([]string(nil), f.Fields...)
	}
	return b
}

func (b *RecordBuilder) ClassName() string {
	if b.form.IsTuple() {
		return "TupleArrayBuilder"
	}
	return "RecordArrayBuilder"
}

func (b *RecordBuilder) Form() form.Form         { return b.form }
func (b *RecordBuilder) children() []FormBuilder { return b.contents }

// Fields returns the field names in form order; nil for a tuple.
func (b *RecordBuilder) Fields() []string { return b.form.Fields }

// Name is the record's __record__ parameter, or "".
func (b *RecordBuilder) Name() string { return b.form.Name() }

func (b *RecordBuilder) events() (open, sel, close Event) {
	if b.form.IsTuple() {
		return EventBeginTuple, EventIndex, EventEndTuple
	}
	return EventBeginRecord, EventField, EventEndRecord
}

func (b *RecordBuilder) VMOutput() string {
	return fmt.Sprintf("variable %s\n", b.name("length")) + childOutputs(b.contents)
}

func (b *RecordBuilder) VMFunc() string {
	open, sel, close := b.events()
	cases := make([]string, len(b.contents))
	pads := make([]string, len(b.contents))
	for i, c := range b.contents {
		cases[i] = fmt.Sprintf("%d of %s endof", i, c.VMFuncName())
		pads[i] = c.padName()
	}
	return childFuncs(b.contents) +
		word(b.VMFuncName(),
			fmt.Sprintf("events i-> stack %d <> if 1 halt then", open),
			fmt.Sprintf("begin events i-> stack dup %d <> while %d <> if 2 halt then", close, sel),
			"data q-> stack case", strings.Join(cases, " "), "2 halt endcase repeat drop",
			fmt.Sprintf("1 %s +!", b.name("length"))) +
		word(b.padName(), strings.Join(pads, " "), fmt.Sprintf("1 %s +!", b.name("length")))
}

func (b *RecordBuilder) Snapshot(bufs Buffers) (content.Content, error) {
	n, err := bufs.Variable(b.name("length"))
	if err != nil {
		return nil, err
	}
	kids, err := snapshotChildren(b.contents, bufs)
	if err != nil {
		return nil, err
	}
	return &content.RecordArray{F: b.form, Length: int(n), Contents: kids}, nil
}

// lookup finds the field for key, starting just after the previous hit so
// fields written in form order are found on the first probe. With identity
// set, a key whose bytes are the very string last used for a field matches
// without comparing text. A textual match caches the caller's key for the
// next identity probe.
func (b *RecordBuilder) lookup(key string, identity bool) (int, bool) {
	n := len(b.keys)
	if identity {
		p := unsafe.StringData(key)
		for j := 1; j <= n; j++ {
			i := (b.last + j) % n
			if k := b.keys[i]; len(k) == len(key) && unsafe.StringData(k) == p {
				b.last = i
				return i, true
			}
		}
	}
	for j := 1; j <= n; j++ {
		i := (b.last + j) % n
		if b.keys[i] == key {
			b.keys[i] = key
			b.last = i
			return i, true
		}
	}
	return -1, false
}
