package forth

import (
	"encoding/binary"
	"errors"
	"fmt"
	"strings"

	"github.com/tliron/commonlog"

	"github.com/chazu/typedbuilder/buffer"
	"github.com/chazu/typedbuilder/dtype"
	"github.com/chazu/typedbuilder/machine"
)

var log = commonlog.GetLogger("typedbuilder.forth")

// HaltError is returned when a program executes halt.
type HaltError struct {
	Code   int64
	Offset int
	Word   string
}

func (e *HaltError) Error() string {
	if e.Word != "" {
		return fmt.Sprintf("forth: halt %d in %s at offset %d", e.Code, e.Word, e.Offset)
	}
	return fmt.Sprintf("forth: halt %d at offset %d", e.Code, e.Offset)
}

// ErrFinished is returned by Resume once the main code has run to its end.
var ErrFinished = errors.New("forth: program finished")

// fault aborts execution from deep inside an instruction; Resume recovers
// it into an error.
type fault struct{ err error }

// Program is a Chunk bound to its buffers and execution state. It
// implements machine.Program.
type Program struct {
	chunk *Chunk
	opts  Options

	inputs  []*buffer.Input
	outputs []*buffer.Output
	vars    []int64

	stack  []int64
	rstack []int
	ip     int
	done   bool
}

var _ machine.Program = (*Program)(nil)

// NewProgram allocates the outputs and variables a chunk declares.
func NewProgram(chunk *Chunk, opts Options) (*Program, error) {
	if err := chunk.Validate(); err != nil {
		return nil, err
	}
	opts = opts.normalize()
	p := &Program{
		chunk:  chunk,
		opts:   opts,
		inputs: make([]*buffer.Input, len(chunk.Inputs)),
		vars:   make([]int64, len(chunk.Variables)),
		stack:  make([]int64, 0, opts.StackDepth),
		rstack: make([]int, 0, opts.ReturnDepth),
		ip:     chunk.Main,
	}
	for _, decl := range chunk.Outputs {
		d, err := dtype.Parse(decl.DType)
		if err != nil {
			return nil, fmt.Errorf("output %s: %w", decl.Name, err)
		}
		p.outputs = append(p.outputs, buffer.NewOutput(decl.Name, d, opts.Buffers))
	}
	return p, nil
}

// Chunk returns the compiled code the program runs.
func (p *Program) Chunk() *Chunk { return p.chunk }

func (p *Program) BindInput(name string, in *buffer.Input) error {
	i := p.chunk.InputIndex(name)
	if i < 0 {
		return fmt.Errorf("forth: no input named %q", name)
	}
	p.inputs[i] = in
	return nil
}

func (p *Program) Output(name string) (*buffer.Output, error) {
	i := p.chunk.OutputIndex(name)
	if i < 0 {
		return nil, fmt.Errorf("forth: no output named %q", name)
	}
	return p.outputs[i], nil
}

func (p *Program) Outputs() []string {
	names := make([]string, len(p.chunk.Outputs))
	for i, o := range p.chunk.Outputs {
		names[i] = o.Name
	}
	return names
}

func (p *Program) Variable(name string) (int64, error) {
	i := p.chunk.VariableIndex(name)
	if i < 0 {
		return 0, fmt.Errorf("forth: no variable named %q", name)
	}
	return p.vars[i], nil
}

// Stack returns a copy of the data stack, bottom first.
func (p *Program) Stack() []int64 {
	return append([]int64(nil), p.stack...)
}

// Done reports whether the main code has run to its end.
func (p *Program) Done() bool { return p.done }

// Resume runs until an input read finds too few bytes, pause executes, or
// the program ends or halts. A read that cannot complete leaves the
// instruction pointer on the read, so the next Resume retries it.
func (p *Program) Resume() (err error) {
	if p.done {
		return ErrFinished
	}
	for i, in := range p.inputs {
		if in == nil {
			return fmt.Errorf("forth: input %q is not bound", p.chunk.Inputs[i])
		}
	}
	defer func() {
		if r := recover(); r != nil {
			f, ok := r.(fault)
			if !ok {
				panic(r)
			}
			err = f.err
		}
	}()
	return p.run()
}

func (p *Program) run() error {
	code := p.chunk.Code
	for {
		start := p.ip
		op := Opcode(code[p.ip])
		p.ip++

		if p.opts.Trace {
			log.Debugf("[%04X] %-10s stack=%v", start, op, p.stack)
		}

		switch op {
		// ============ Stack ============
		case OpNop:

		case OpLit:
			p.push(int64(binary.BigEndian.Uint64(code[p.ip:])))
			p.ip += 8

		case OpDup:
			p.push(p.top())

		case OpDrop:
			p.pop()

		case OpSwap:
			b, a := p.pop(), p.pop()
			p.push(b)
			p.push(a)

		case OpOver:
			b, a := p.pop(), p.pop()
			p.push(a)
			p.push(b)
			p.push(a)

		case OpRot:
			// a b c -> b c a
			c, b, a := p.pop(), p.pop(), p.pop()
			p.push(b)
			p.push(c)
			p.push(a)

		// ============ Arithmetic ============
		case OpAdd, OpSub, OpMul, OpDiv, OpMod, OpLShift, OpRShift, OpAnd, OpOr,
			OpEq, OpNe, OpLt, OpGt, OpLe, OpGe:
			b, a := p.pop(), p.pop()
			p.push(p.binary(op, a, b, start))

		case OpNegate:
			p.push(-p.pop())

		case OpIncr:
			p.push(p.pop() + 1)

		case OpDecr:
			p.push(p.pop() - 1)

		case OpZeroEq:
			p.push(flag(p.pop() == 0))

		case OpInvert:
			p.push(^p.pop())

		// ============ Variables ============
		case OpFetch:
			p.push(p.vars[p.operand(0)])
			p.ip += 2

		case OpStore:
			p.vars[p.operand(0)] = p.pop()
			p.ip += 2

		case OpAddStore:
			p.vars[p.operand(0)] += p.pop()
			p.ip += 2

		// ============ Control ============
		case OpBranch:
			p.ip += 4 + int(int32(binary.BigEndian.Uint32(code[p.ip:])))

		case OpZBranch:
			delta := int(int32(binary.BigEndian.Uint32(code[p.ip:])))
			p.ip += 4
			if p.pop() == 0 {
				p.ip += delta
			}

		case OpCall:
			word := p.chunk.Words[p.operand(0)]
			p.ip += 2
			if len(p.rstack) >= p.opts.ReturnDepth {
				return fmt.Errorf("forth: return stack overflow calling %s at offset %d", word.Name, start)
			}
			p.rstack = append(p.rstack, p.ip)
			p.ip = word.Offset

		case OpExit:
			if len(p.rstack) == 0 {
				p.done = true
				return nil
			}
			p.ip = p.rstack[len(p.rstack)-1]
			p.rstack = p.rstack[:len(p.rstack)-1]

		case OpHalt:
			return &HaltError{Code: p.pop(), Offset: start, Word: p.currentWord(start)}

		case OpPause:
			return nil

		// ============ Input ============
		case OpReadI32:
			v, ok := p.inputs[p.operand(0)].ReadInt32()
			if !ok {
				p.ip = start
				return nil
			}
			p.ip += 2
			p.push(int64(v))

		case OpPeekI32:
			v, ok := p.inputs[p.operand(0)].PeekInt32()
			if !ok {
				p.ip = start
				return nil
			}
			p.ip += 2
			p.push(int64(v))

		case OpReadI64:
			v, ok := p.inputs[p.operand(0)].ReadInt64()
			if !ok {
				p.ip = start
				return nil
			}
			p.ip += 2
			p.push(v)

		case OpCopyI64:
			v, ok := p.inputs[p.operand(0)].ReadInt64()
			if !ok {
				p.ip = start
				return nil
			}
			p.outputs[p.operand(2)].AppendInt64(v)
			p.ip += 4

		case OpCopyF64:
			v, ok := p.inputs[p.operand(0)].ReadFloat64()
			if !ok {
				p.ip = start
				return nil
			}
			p.outputs[p.operand(2)].AppendFloat64(v)
			p.ip += 4

		case OpCopyC128:
			v, ok := p.inputs[p.operand(0)].ReadComplex()
			if !ok {
				p.ip = start
				return nil
			}
			p.outputs[p.operand(2)].AppendComplex(v)
			p.ip += 4

		case OpCopyBytes:
			n := p.top()
			bytes, ok := p.inputs[p.operand(0)].ReadBytes(int(n))
			if !ok {
				if n < 0 {
					return fmt.Errorf("forth: negative byte count %d at offset %d", n, start)
				}
				p.ip = start
				return nil
			}
			p.pop()
			out := p.outputs[p.operand(2)]
			if err := out.AppendBytes(bytes); err != nil {
				return fmt.Errorf("forth: offset %d: %w", start, err)
			}
			p.ip += 4

		// ============ Output ============
		case OpPush:
			p.outputs[p.operand(0)].AppendInt64(p.pop())
			p.ip += 2

		case OpAddPush:
			p.outputs[p.operand(0)].AddInt64(p.pop())
			p.ip += 2

		case OpLen:
			p.push(int64(p.outputs[p.operand(0)].Len()))
			p.ip += 2

		default:
			return fmt.Errorf("forth: unknown opcode 0x%02x at offset %d", byte(op), start)
		}
	}
}

func flag(b bool) int64 {
	if b {
		return 1
	}
	return 0
}

func (p *Program) binary(op Opcode, a, b int64, at int) int64 {
	switch op {
	case OpAdd:
		return a + b
	case OpSub:
		return a - b
	case OpMul:
		return a * b
	case OpDiv, OpMod:
		if b == 0 {
			panic(fault{fmt.Errorf("forth: division by zero at offset %d", at)})
		}
		if op == OpDiv {
			return a / b
		}
		return a % b
	case OpLShift:
		return a << uint64(b)
	case OpRShift:
		return int64(uint64(a) >> uint64(b))
	case OpAnd:
		return a & b
	case OpOr:
		return a | b
	case OpEq:
		return flag(a == b)
	case OpNe:
		return flag(a != b)
	case OpLt:
		return flag(a < b)
	case OpGt:
		return flag(a > b)
	case OpLe:
		return flag(a <= b)
	default:
		return flag(a >= b)
	}
}

// Stack helpers

func (p *Program) push(v int64) {
	if len(p.stack) >= p.opts.StackDepth {
		panic(fault{fmt.Errorf("forth: stack overflow at offset %d", p.ip-1)})
	}
	p.stack = append(p.stack, v)
}

func (p *Program) pop() int64 {
	v := p.top()
	p.stack = p.stack[:len(p.stack)-1]
	return v
}

func (p *Program) top() int64 {
	if len(p.stack) == 0 {
		panic(fault{fmt.Errorf("forth: stack underflow at offset %d", p.ip-1)})
	}
	return p.stack[len(p.stack)-1]
}

// operand reads the u16 operand at byte i of the current instruction.
func (p *Program) operand(i int) int {
	return int(binary.BigEndian.Uint16(p.chunk.Code[p.ip+i:]))
}

// currentWord names the word containing offset, for diagnostics.
func (p *Program) currentWord(offset int) string {
	best, name := -1, ""
	for _, w := range p.chunk.Words {
		if w.Offset <= offset && w.Offset > best && offset < p.chunk.Main {
			best, name = w.Offset, w.Name
		}
	}
	return name
}

// ============================================================================
// Checkpoints
// ============================================================================

type checkpoint struct {
	owner   *Program
	ip      int
	done    bool
	stack   []int64
	rstack  []int
	vars    []int64
	lengths []int
	inPos   []int
	inLen   []int
}

func (p *Program) Checkpoint() machine.Checkpoint {
	cp := &checkpoint{
		owner:   p,
		ip:      p.ip,
		done:    p.done,
		stack:   append([]int64(nil), p.stack...),
		rstack:  append([]int(nil), p.rstack...),
		vars:    append([]int64(nil), p.vars...),
		lengths: make([]int, len(p.outputs)),
		inPos:   make([]int, len(p.inputs)),
		inLen:   make([]int, len(p.inputs)),
	}
	for i, out := range p.outputs {
		cp.lengths[i] = out.Len()
	}
	for i, in := range p.inputs {
		if in != nil {
			cp.inPos[i], cp.inLen[i] = in.Pos(), in.Len()
		}
	}
	return cp
}

func (p *Program) Restore(c machine.Checkpoint) error {
	cp, ok := c.(*checkpoint)
	if !ok || cp.owner != p {
		return fmt.Errorf("forth: checkpoint %T does not belong to this program", c)
	}
	for i, in := range p.inputs {
		if in == nil {
			continue
		}
		if err := in.Rewind(cp.inPos[i], cp.inLen[i]); err != nil {
			return fmt.Errorf("forth: restore input %s: %w", p.chunk.Inputs[i], err)
		}
	}
	for i, out := range p.outputs {
		out.Truncate(cp.lengths[i])
	}
	p.ip, p.done = cp.ip, cp.done
	p.stack = append(p.stack[:0], cp.stack...)
	p.rstack = append(p.rstack[:0], cp.rstack...)
	copy(p.vars, cp.vars)
	return nil
}

func (p *Program) Reset() error {
	for _, out := range p.outputs {
		out.Reset()
	}
	for _, in := range p.inputs {
		if in != nil {
			in.Reset()
		}
	}
	clear(p.vars)
	p.stack = p.stack[:0]
	p.rstack = p.rstack[:0]
	p.ip = p.chunk.Main
	p.done = false
	return nil
}

func (p *Program) String() string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "ip=0x%04X", p.ip)
	if w := p.currentWord(p.ip); w != "" {
		fmt.Fprintf(&sb, " (%s)", w)
	}
	fmt.Fprintf(&sb, " stack=%v rdepth=%d", p.stack, len(p.rstack))
	if p.done {
		sb.WriteString(" done")
	}
	for i, in := range p.inputs {
		if in != nil {
			fmt.Fprintf(&sb, " %s:%d/%d", p.chunk.Inputs[i], in.Pos(), in.Len())
		}
	}
	return sb.String()
}
