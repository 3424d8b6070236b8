// Package builder turns a stream of structural events into typed columnar
// buffers whose layout is fixed in advance by a form.
//
// Each form node gets a FormBuilder. The builders generate one stack-machine
// program for the whole tree; the TypedArrayBuilder facade validates every
// event against the tree, writes it to the program's inputs and resumes the
// program, which appends to the output buffers. Snapshot wraps those buffers
// as content without copying.
package builder

import (
	"fmt"
	"strings"

	"github.com/tliron/commonlog"

	"github.com/chazu/typedbuilder/buffer"
	"github.com/chazu/typedbuilder/content"
	"github.com/chazu/typedbuilder/dtype"
	"github.com/chazu/typedbuilder/form"
	"github.com/chazu/typedbuilder/machine"
)

var log = commonlog.GetLogger("typedbuilder.builder")

type state int

const (
	stateUnbound state = iota
	stateBound
	stateConnected
)

func (s state) String() string {
	switch s {
	case stateUnbound:
		return "unbound"
	case stateBound:
		return "bound"
	}
	return "connected"
}

// frame is one open container on the cursor stack.
type frame struct {
	node     FormBuilder
	record   *RecordBuilder // records and tuples
	size     int            // regular lists, otherwise -1
	count    int
	field    int
	written  []bool
	nwritten int

	// cp is taken before the container's first event was written.
	cp machine.Checkpoint
	// undoCount and undoField restore the parent frame on rollback.
	undoCount int
	undoField int
}

func openFrame(n FormBuilder) frame {
	f := frame{node: n, size: -1, field: -1, undoField: -1}
	switch t := n.(type) {
	case *RegularBuilder:
		f.size = t.form.Size
	case *RecordBuilder:
		f.record = t
		f.written = make([]bool, len(t.contents))
	}
	return f
}

func (f *frame) checkpointed() bool { return f.size >= 0 || f.record != nil }

func opens(n FormBuilder, ev *event) bool {
	switch n.(type) {
	case *RegularBuilder, *ListBuilder, *ListOffsetBuilder:
		return ev.code == EventBeginList
	case *RecordBuilder:
		return ev.code == EventBeginRecord || ev.code == EventBeginTuple
	}
	return false
}

// TypedArrayBuilder is the event-driven facade over a builder tree.
//
// It is unbound until a form is applied (or inferred from the first
// event), bound once the tree exists, and connected once the generated
// program is compiled on a machine. Only a connected builder accepts
// events.
type TypedArrayBuilder struct {
	root    FormBuilder
	state   state
	machine machine.Machine
	prog    machine.Program
	program string

	events *buffer.Input
	data   *buffer.Input
	frames []frame

	// broken is set when the program stopped with nothing to roll back.
	broken error
}

// New returns a builder for f, or an unbound builder when f is nil. Keys
// are assigned to unkeyed form nodes.
func New(f form.Form, opts Options) (*TypedArrayBuilder, error) {
	b := &TypedArrayBuilder{
		root:    &UnknownBuilder{},
		machine: opts.Machine,
		events:  buffer.NewInput(),
		data:    buffer.NewInput(),
	}
	if f == nil {
		return b, nil
	}
	if err := b.Apply(f); err != nil {
		return nil, err
	}
	return b, nil
}

// Apply binds a form to an unbound builder.
func (b *TypedArrayBuilder) Apply(f form.Form) error {
	if b.state != stateUnbound {
		return newError(ErrUnsupported, b.root, "apply", "a form is already bound")
	}
	form.AssignKeys(f)
	if err := form.Validate(f); err != nil {
		return fmt.Errorf("builder: invalid form: %w", err)
	}
	if err := checkKeys(f); err != nil {
		return err
	}
	root, err := newBuilder(f)
	if err != nil {
		return err
	}
	b.root, b.state = root, stateBound
	log.Infof("bound %s", describe(root))
	if b.machine != nil {
		return b.Connect(b.machine)
	}
	return nil
}

// Connect compiles the program on m and runs its initialization. On an
// unbound builder m is kept until a form is bound.
func (b *TypedArrayBuilder) Connect(m machine.Machine) error {
	switch b.state {
	case stateUnbound:
		b.machine = m
		return nil
	case stateConnected:
		return newError(ErrUnsupported, b.root, "connect", "already connected")
	}
	prog, err := m.Compile(b.ToVM())
	if err != nil {
		return fmt.Errorf("builder: compile %s: %w", describe(b.root), err)
	}
	if err := prog.BindInput("events", b.events); err != nil {
		return err
	}
	if err := prog.BindInput("data", b.data); err != nil {
		return err
	}
	b.machine, b.prog, b.state = m, prog, stateConnected
	log.Infof("connected %s", describe(b.root))
	return b.resume("connect")
}

// Clear empties every buffer and returns to the state right after Connect.
// The form stays bound.
func (b *TypedArrayBuilder) Clear() error {
	b.frames = b.frames[:0]
	b.broken = nil
	walkBuilders(b.root, func(n FormBuilder) {
		if ix, ok := n.(indexedNode); ok {
			ix.binding().reset()
		}
	})
	b.events.Reset()
	b.data.Reset()
	log.Debugf("cleared %s", describe(b.root))
	if b.prog == nil {
		return nil
	}
	if err := b.prog.Reset(); err != nil {
		return err
	}
	return b.resume("clear")
}

// Snapshot returns the array built so far. It shares the program's buffers;
// later events never change it. content.Release gives the shared memory back.
// Snapshot and Length may run concurrently with each other but not with
// events.
func (b *TypedArrayBuilder) Snapshot() (content.Content, error) {
	var bufs Buffers = emptyBuffers{}
	if b.prog != nil {
		bufs = programBuffers{b.prog}
	}
	return b.root.Snapshot(bufs)
}

// Length is the number of completed top-level elements. It neither pins nor
// retains the program's buffers.
func (b *TypedArrayBuilder) Length() int {
	var bufs Buffers = emptyBuffers{}
	if b.prog != nil {
		bufs = peekBuffers{b.prog}
	}
	c, err := b.root.Snapshot(bufs)
	if err != nil {
		return 0
	}
	return c.Len()
}

// Form is the bound form, or nil.
func (b *TypedArrayBuilder) Form() form.Form { return b.root.Form() }

// Root is the root of the builder tree.
func (b *TypedArrayBuilder) Root() FormBuilder { return b.root }

// ToVM returns the generated program text, or "" while unbound.
func (b *TypedArrayBuilder) ToVM() string {
	if b.state == stateUnbound {
		return ""
	}
	if b.program == "" {
		b.program = assemble(b.root)
	}
	return b.program
}

func (b *TypedArrayBuilder) String() string {
	return fmt.Sprintf("TypedArrayBuilder(%s, %s, depth %d)", describe(b.root), b.state, len(b.frames))
}

// DebugStep logs and returns the facade and machine state.
func (b *TypedArrayBuilder) DebugStep() string {
	var sb strings.Builder
	sb.WriteString(b.String())
	for i, f := range b.frames {
		fmt.Fprintf(&sb, "\n  %d: %s count=%d field=%d", i, describe(f.node), f.count, f.field)
	}
	if b.prog != nil {
		sb.WriteString("\n")
		sb.WriteString(b.prog.String())
	}
	log.Infof("%s", sb.String())
	return sb.String()
}

// ============================================================================
// Event plumbing
// ============================================================================

// ready rejects events the builder cannot take in its current state.
func (b *TypedArrayBuilder) ready(op string) error {
	if b.broken != nil {
		return newError(ErrUnsupported, b.root, op, "program stopped (%v); Clear to recover", b.broken)
	}
	switch b.state {
	case stateUnbound:
		return newError(ErrUnsupported, b.root, op, "no form is bound")
	case stateBound:
		return newError(ErrUnsupported, b.root, op, "not connected to a machine")
	}
	return nil
}

// bindFor infers a form from the first event of an unbound builder. It
// only binds when a machine is waiting, so the event can be taken.
func (b *TypedArrayBuilder) bindFor(ev *event) error {
	if b.state != stateUnbound || b.machine == nil {
		return nil
	}
	var f form.Form
	switch ev.code {
	case EventBoolean:
		f = form.Numpy(dtype.Bool)
	case EventInteger:
		f = form.Numpy(dtype.Int64)
	case EventReal:
		f = form.Numpy(dtype.Float64)
	case EventComplex:
		f = form.Numpy(dtype.Complex128)
	case EventString:
		f = form.String()
	case EventBytestring:
		f = form.Bytestring()
	case EventAppend:
		f = form.Indexed(ev.foreign.Form())
	default:
		return newError(ErrUnsupported, b.root, ev.code.String(), "cannot infer a form from %s", ev.code)
	}
	return b.Apply(f)
}

// target is the node the next value goes to.
func (b *TypedArrayBuilder) target(op string) (FormBuilder, error) {
	if len(b.frames) == 0 {
		return b.root, nil
	}
	f := &b.frames[len(b.frames)-1]
	if f.record != nil {
		if f.field < 0 {
			return nil, newError(ErrStructure, f.node, op, "no field selected")
		}
		return f.record.contents[f.field], nil
	}
	return f.node.children()[0], nil
}

func (b *TypedArrayBuilder) value(ev *event) error {
	op := ev.code.String()
	if err := b.bindFor(ev); err != nil {
		return err
	}
	if err := b.ready(op); err != nil {
		return err
	}
	target, err := b.target(op)
	if err != nil {
		return err
	}
	r, err := route(target, ev)
	if err != nil {
		return err
	}
	if err := check(r, ev); err != nil {
		return err
	}
	return b.commit(r, ev)
}

// commit writes the field selector, union selects and the event itself as
// one batch, then runs the program over it.
func (b *TypedArrayBuilder) commit(r routed, ev *event) error {
	var fr frame
	open := opens(r.node, ev)
	if open {
		fr = openFrame(r.node)
		if fr.checkpointed() {
			fr.cp = b.prog.Checkpoint()
		}
	}
	if n := len(b.frames); n > 0 {
		p := &b.frames[n-1]
		fr.undoCount = p.count
		if p.record != nil {
			_, sel, _ := p.record.events()
			b.events.WriteInt32(int32(sel))
			b.data.WriteInt64(int64(p.field))
			p.written[p.field] = true
			p.nwritten++
			fr.undoField = p.field
			p.field = -1
		}
		p.count++
	}
	for _, tag := range r.selects {
		b.events.WriteInt32(int32(EventSelect))
		b.data.WriteInt64(tag)
	}
	b.write(ev)

	for _, ix := range r.through {
		ix.binding().built = true
	}
	switch t := r.node.(type) {
	case *ByteMaskedBuilder:
		markPadded(t.content)
	case *BitMaskedBuilder:
		markPadded(t.content)
	case indexedNode:
		if ev.code == EventAppend {
			t.binding().foreign = ev.foreign
		}
	}
	if open {
		b.frames = append(b.frames, fr)
	}
	return b.resume(ev.code.String())
}

func (b *TypedArrayBuilder) write(ev *event) {
	b.events.WriteInt32(int32(ev.code))
	switch ev.code {
	case EventBoolean:
		var v int64
		if ev.b {
			v = 1
		}
		b.data.WriteInt64(v)
	case EventInteger, EventAppend:
		b.data.WriteInt64(ev.i)
	case EventReal:
		b.data.WriteFloat64(ev.f)
	case EventComplex:
		b.data.WriteFloat64(real(ev.c))
		b.data.WriteFloat64(imag(ev.c))
	case EventString, EventBytestring:
		b.data.WriteInt64(int64(len(ev.raw)))
		b.data.WriteBytes(ev.raw)
	}
}

func (b *TypedArrayBuilder) resume(op string) error {
	if err := b.prog.Resume(); err != nil {
		return b.fail(op, err)
	}
	if len(b.frames) == 0 {
		b.events.Compact()
		b.data.Compact()
	}
	return nil
}

// fail handles a program that stopped: the innermost container with a
// checkpoint is rolled back, otherwise the builder is unusable until Clear.
func (b *TypedArrayBuilder) fail(op string, err error) error {
	for i := len(b.frames) - 1; i >= 0; i-- {
		if b.frames[i].cp == nil {
			continue
		}
		if rerr := b.rollback(i); rerr != nil {
			break
		}
		return fmt.Errorf("builder: %s: %w", op, err)
	}
	b.broken = err
	log.Errorf("%s: program stopped: %v", op, err)
	return fmt.Errorf("builder: %s: program stopped: %w", op, err)
}

// rollback discards frame i and everything written since it opened.
func (b *TypedArrayBuilder) rollback(i int) error {
	f := b.frames[i]
	if err := b.prog.Restore(f.cp); err != nil {
		return err
	}
	b.frames = b.frames[:i]
	if i > 0 {
		p := &b.frames[i-1]
		p.count = f.undoCount
		if f.undoField >= 0 {
			p.written[f.undoField] = false
			p.nwritten--
		}
	}
	log.Warningf("rolled back %s", describe(f.node))
	return nil
}

// reject rolls back the innermost container and returns err.
func (b *TypedArrayBuilder) reject(err *Error) error {
	if rerr := b.rollback(len(b.frames) - 1); rerr != nil {
		b.broken = rerr
		return fmt.Errorf("%w (rollback failed: %v)", err, rerr)
	}
	return err
}

func (b *TypedArrayBuilder) top(op string) (*frame, error) {
	if err := b.ready(op); err != nil {
		return nil, err
	}
	if len(b.frames) == 0 {
		return nil, newError(ErrStructure, b.root, op, "nothing is open")
	}
	return &b.frames[len(b.frames)-1], nil
}

func (b *TypedArrayBuilder) close(code Event) error {
	b.events.WriteInt32(int32(code))
	b.frames = b.frames[:len(b.frames)-1]
	return b.resume(code.String())
}

// ============================================================================
// Events
// ============================================================================

func (b *TypedArrayBuilder) Null() error { return b.value(&event{code: EventNull}) }

func (b *TypedArrayBuilder) Boolean(v bool) error {
	return b.value(&event{code: EventBoolean, b: v})
}

func (b *TypedArrayBuilder) Integer(v int64) error {
	return b.value(&event{code: EventInteger, i: v})
}

func (b *TypedArrayBuilder) Real(v float64) error {
	return b.value(&event{code: EventReal, f: v})
}

func (b *TypedArrayBuilder) Complex(v complex128) error {
	return b.value(&event{code: EventComplex, c: v})
}

func (b *TypedArrayBuilder) Bytestring(v []byte) error {
	return b.value(&event{code: EventBytestring, raw: v})
}

// StringValue appends a UTF-8 string. (String describes the builder.)
func (b *TypedArrayBuilder) StringValue(v string) error {
	return b.value(&event{code: EventString, raw: []byte(v)})
}

func (b *TypedArrayBuilder) BeginList() error {
	return b.value(&event{code: EventBeginList})
}

func (b *TypedArrayBuilder) EndList() error {
	const op = "endlist"
	f, err := b.top(op)
	if err != nil {
		return err
	}
	switch f.node.(type) {
	case *RegularBuilder, *ListBuilder, *ListOffsetBuilder:
	default:
		return newError(ErrStructure, f.node, op, "no list is open")
	}
	if f.size >= 0 && f.count != f.size {
		return b.reject(newError(ErrLengthMismatch, f.node, op, "list of %d, want %d", f.count, f.size))
	}
	return b.close(EventEndList)
}

// BeginTuple opens a tuple of n elements.
func (b *TypedArrayBuilder) BeginTuple(n int) error {
	return b.value(&event{code: EventBeginTuple, arity: n})
}

// Index selects the tuple element the next value fills.
func (b *TypedArrayBuilder) Index(i int) error {
	const op = "index"
	f, err := b.top(op)
	if err != nil {
		return err
	}
	if f.record == nil || !f.record.form.IsTuple() {
		return newError(ErrStructure, f.node, op, "no tuple is open")
	}
	if i < 0 || i >= len(f.written) {
		return b.reject(newError(ErrFieldMismatch, f.node, op, "index %d out of range for %d elements", i, len(f.written)))
	}
	if f.written[i] {
		return b.reject(newError(ErrFieldMismatch, f.node, op, "element %d written twice", i))
	}
	f.field = i
	return nil
}

func (b *TypedArrayBuilder) EndTuple() error {
	const op = "endtuple"
	f, err := b.top(op)
	if err != nil {
		return err
	}
	if f.record == nil || !f.record.form.IsTuple() {
		return newError(ErrStructure, f.node, op, "no tuple is open")
	}
	if f.nwritten != len(f.written) {
		return b.reject(newError(ErrFieldMismatch, f.node, op, "%d of %d elements written", f.nwritten, len(f.written)))
	}
	return b.close(EventEndTuple)
}

func (b *TypedArrayBuilder) BeginRecord() error {
	return b.value(&event{code: EventBeginRecord})
}

// BeginRecordFast opens a record named name without checking the name;
// inside a union the name picks the alternative.
func (b *TypedArrayBuilder) BeginRecordFast(name string) error {
	return b.value(&event{code: EventBeginRecord, name: name, named: true})
}

// BeginRecordCheck opens a record and requires its form to carry name.
func (b *TypedArrayBuilder) BeginRecordCheck(name string) error {
	return b.value(&event{code: EventBeginRecord, name: name, named: true, checked: true})
}

// FieldFast selects a field. Keys that are the same string values on every
// record are matched by identity.
func (b *TypedArrayBuilder) FieldFast(key string) error {
	return b.field("field_fast", key, true)
}

// FieldCheck selects a field by comparing its text.
func (b *TypedArrayBuilder) FieldCheck(key string) error {
	return b.field("field_check", key, false)
}

func (b *TypedArrayBuilder) field(op, key string, identity bool) error {
	f, err := b.top(op)
	if err != nil {
		return err
	}
	if f.record == nil || f.record.form.IsTuple() {
		return newError(ErrStructure, f.node, op, "no record is open")
	}
	i, ok := f.record.lookup(key, identity)
	if !ok {
		return b.reject(newError(ErrFieldMismatch, f.node, op, "no field %q", key))
	}
	if f.written[i] {
		return b.reject(newError(ErrFieldMismatch, f.node, op, "field %q written twice", key))
	}
	f.field = i
	return nil
}

func (b *TypedArrayBuilder) EndRecord() error {
	const op = "endrecord"
	f, err := b.top(op)
	if err != nil {
		return err
	}
	if f.record == nil || f.record.form.IsTuple() {
		return newError(ErrStructure, f.node, op, "no record is open")
	}
	if f.nwritten != len(f.written) {
		var missing []string
		for i, w := range f.written {
			if !w {
				missing = append(missing, f.record.form.Fields[i])
			}
		}
		return b.reject(newError(ErrFieldMismatch, f.node, op, "missing fields %s", strings.Join(missing, ", ")))
	}
	return b.close(EventEndRecord)
}

// Append adds element at of a foreign array by reference. Negative at
// counts from the end.
func (b *TypedArrayBuilder) Append(array content.Content, at int) error {
	n := array.Len()
	i := at
	if i < 0 {
		i += n
	}
	if i < 0 || i >= n {
		return newError(ErrStructure, b.root, "append", "index %d out of range for %d elements", at, n)
	}
	return b.AppendNowrap(array, i)
}

// AppendNowrap is Append without index resolution or bounds checks.
func (b *TypedArrayBuilder) AppendNowrap(array content.Content, at int) error {
	return b.value(&event{code: EventAppend, i: int64(at), foreign: array})
}

// Extend appends every element of array in order.
func (b *TypedArrayBuilder) Extend(array content.Content) error {
	for i := range array.Len() {
		if err := b.AppendNowrap(array, i); err != nil {
			return err
		}
	}
	return nil
}
