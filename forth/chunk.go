package forth

import (
	"encoding/binary"
	"fmt"
)

// ChunkVersion is the current bytecode format version.
// Increment when making incompatible changes to the format.
const ChunkVersion uint16 = 1

// OutputDecl declares a named, typed output buffer.
type OutputDecl struct {
	Name  string `cbor:"1,keyasint"`
	DType string `cbor:"2,keyasint"`
}

// WordDecl maps a word name to the offset of its body. Offset is -1 until
// the definition has been compiled.
type WordDecl struct {
	Name   string `cbor:"1,keyasint"`
	Offset int    `cbor:"2,keyasint"`
}

// Chunk is a compiled program: word bodies followed by the main code, plus
// the declarations the instructions refer to by index.
type Chunk struct {
	Version   uint16       `cbor:"1,keyasint"`
	Code      []byte       `cbor:"2,keyasint"`
	Inputs    []string     `cbor:"3,keyasint"`
	Outputs   []OutputDecl `cbor:"4,keyasint"`
	Variables []string     `cbor:"5,keyasint"`
	Words     []WordDecl   `cbor:"6,keyasint"`
	// Main is the offset of the first top-level instruction.
	Main int `cbor:"7,keyasint"`
}

// NewChunk creates a new empty chunk with the current version.
func NewChunk() *Chunk {
	return &Chunk{
		Version: ChunkVersion,
		Code:    make([]byte, 0, 256),
	}
}

func indexOf(names []string, name string) int {
	for i, n := range names {
		if n == name {
			return i
		}
	}
	return -1
}

// InputIndex returns the index of a declared input, or -1.
func (c *Chunk) InputIndex(name string) int { return indexOf(c.Inputs, name) }

// VariableIndex returns the index of a declared variable, or -1.
func (c *Chunk) VariableIndex(name string) int { return indexOf(c.Variables, name) }

// OutputIndex returns the index of a declared output, or -1.
func (c *Chunk) OutputIndex(name string) int {
	for i, o := range c.Outputs {
		if o.Name == name {
			return i
		}
	}
	return -1
}

// WordAt returns the name of the word whose body starts at offset.
func (c *Chunk) WordAt(offset int) (string, bool) {
	for _, w := range c.Words {
		if w.Offset == offset {
			return w.Name, true
		}
	}
	return "", false
}

// Validate checks that every word is defined and every operand is in range.
func (c *Chunk) Validate() error {
	if c.Version > ChunkVersion {
		return fmt.Errorf("bytecode version %d is newer than supported version %d", c.Version, ChunkVersion)
	}
	for _, w := range c.Words {
		if w.Offset < 0 || w.Offset >= len(c.Code) {
			return fmt.Errorf("word %q is not defined", w.Name)
		}
	}
	if c.Main < 0 || c.Main > len(c.Code) {
		return fmt.Errorf("main offset %d outside code of %d bytes", c.Main, len(c.Code))
	}
	for offset := 0; offset < len(c.Code); {
		op := Opcode(c.Code[offset])
		if _, ok := opcodeInfoTable[op]; !ok {
			return fmt.Errorf("unknown opcode 0x%02X at offset %d", byte(op), offset)
		}
		if offset+op.InstructionLen() > len(c.Code) {
			return fmt.Errorf("truncated %s at offset %d", op, offset)
		}
		if err := c.checkOperands(op, offset+1); err != nil {
			return fmt.Errorf("%s at offset %d: %w", op, offset, err)
		}
		offset += op.InstructionLen()
	}
	return nil
}

func (c *Chunk) checkOperands(op Opcode, at int) error {
	u16 := func(i int) int { return int(binary.BigEndian.Uint16(c.Code[at+i:])) }
	switch op {
	case OpFetch, OpStore, OpAddStore:
		if u16(0) >= len(c.Variables) {
			return fmt.Errorf("variable %d out of range", u16(0))
		}
	case OpCall:
		if u16(0) >= len(c.Words) {
			return fmt.Errorf("word %d out of range", u16(0))
		}
	case OpReadI32, OpReadI64, OpPeekI32:
		if u16(0) >= len(c.Inputs) {
			return fmt.Errorf("input %d out of range", u16(0))
		}
	case OpCopyI64, OpCopyF64, OpCopyC128, OpCopyBytes:
		if u16(0) >= len(c.Inputs) || u16(2) >= len(c.Outputs) {
			return fmt.Errorf("input %d / output %d out of range", u16(0), u16(2))
		}
	case OpPush, OpAddPush, OpLen:
		if u16(0) >= len(c.Outputs) {
			return fmt.Errorf("output %d out of range", u16(0))
		}
	case OpBranch, OpZBranch:
		target := at + 4 + int(int32(binary.BigEndian.Uint32(c.Code[at:])))
		if target < 0 || target > len(c.Code) {
			return fmt.Errorf("jump target %d out of range", target)
		}
	}
	return nil
}

// ============================================================================
// Emission
// ============================================================================

// emitter appends instructions to one code buffer. Word bodies and the main
// code are compiled through separate emitters and concatenated; all jumps
// are relative, so no relocation is needed.
type emitter struct {
	code []byte
}

func (e *emitter) offset() int { return len(e.code) }

func (e *emitter) emit(op Opcode) {
	e.code = append(e.code, byte(op))
}

func (e *emitter) emitU16(op Opcode, operands ...int) {
	e.code = append(e.code, byte(op))
	for _, v := range operands {
		e.code = binary.BigEndian.AppendUint16(e.code, uint16(v))
	}
}

func (e *emitter) emitLit(v int64) {
	e.code = append(e.code, byte(OpLit))
	e.code = binary.BigEndian.AppendUint64(e.code, uint64(v))
}

// emitJump emits a jump with a placeholder offset and returns the offset of
// the placeholder for later patching.
func (e *emitter) emitJump(op Opcode) int {
	e.code = append(e.code, byte(op), 0xFF, 0xFF, 0xFF, 0xFF)
	return len(e.code) - 4
}

// patchJump points the jump at placeholder to the current position.
func (e *emitter) patchJump(placeholder int) {
	e.patchJumpTo(placeholder, len(e.code))
}

func (e *emitter) patchJumpTo(placeholder, target int) {
	delta := target - (placeholder + 4)
	binary.BigEndian.PutUint32(e.code[placeholder:], uint32(int32(delta)))
}

// emitLoop emits a backward jump to start.
func (e *emitter) emitLoop(op Opcode, start int) {
	at := e.emitJump(op)
	e.patchJumpTo(at, start)
}
