package forth

import "fmt"

// Opcode is a single bytecode instruction.
// Opcodes are grouped into ranges by category.
type Opcode byte

const (
	// ========================================================================
	// Stack manipulation (0x00-0x0F)
	// ========================================================================

	OpNop  Opcode = 0x00 // No operation
	OpLit  Opcode = 0x01 // Push literal: OpLit <value:i64>
	OpDup  Opcode = 0x02 // a -> a a
	OpDrop Opcode = 0x03 // a ->
	OpSwap Opcode = 0x04 // a b -> b a
	OpOver Opcode = 0x05 // a b -> a b a
	OpRot  Opcode = 0x06 // a b c -> b c a

	// ========================================================================
	// Arithmetic (0x10-0x1F)
	// ========================================================================

	OpAdd    Opcode = 0x10
	OpSub    Opcode = 0x11 // a - b where b is TOS
	OpMul    Opcode = 0x12
	OpDiv    Opcode = 0x13
	OpMod    Opcode = 0x14
	OpNegate Opcode = 0x15
	OpIncr   Opcode = 0x16 // 1+
	OpDecr   Opcode = 0x17 // 1-

	// ========================================================================
	// Comparison (0x20-0x27), pushing 1 or 0
	// ========================================================================

	OpEq     Opcode = 0x20
	OpNe     Opcode = 0x21
	OpLt     Opcode = 0x22
	OpGt     Opcode = 0x23
	OpLe     Opcode = 0x24
	OpGe     Opcode = 0x25
	OpZeroEq Opcode = 0x26

	// ========================================================================
	// Bitwise (0x28-0x2F)
	// ========================================================================

	OpAnd    Opcode = 0x28
	OpOr     Opcode = 0x29
	OpInvert Opcode = 0x2A
	OpLShift Opcode = 0x2B
	OpRShift Opcode = 0x2C

	// ========================================================================
	// Variables (0x30-0x3F)
	// ========================================================================

	OpFetch    Opcode = 0x30 // Push variable: OpFetch <var:u16>
	OpStore    Opcode = 0x31 // Pop into variable: OpStore <var:u16>
	OpAddStore Opcode = 0x32 // Pop and add to variable: OpAddStore <var:u16>

	// ========================================================================
	// Control flow (0x40-0x4F)
	// ========================================================================

	OpBranch  Opcode = 0x40 // Unconditional jump: OpBranch <offset:i32>
	OpZBranch Opcode = 0x41 // Pop, jump if zero: OpZBranch <offset:i32>
	OpCall    Opcode = 0x42 // Call word: OpCall <word:u16>
	OpExit    Opcode = 0x43 // Return from word; ends the program at top level
	OpHalt    Opcode = 0x44 // Pop an error code and stop
	OpPause   Opcode = 0x45 // Return control to the caller

	// ========================================================================
	// Input (0x50-0x5F)
	// ========================================================================

	OpReadI32   Opcode = 0x50 // Push next int32: OpReadI32 <in:u16>
	OpReadI64   Opcode = 0x51 // Push next int64: OpReadI64 <in:u16>
	OpPeekI32   Opcode = 0x52 // Push next int32 without consuming: OpPeekI32 <in:u16>
	OpCopyI64   Opcode = 0x53 // int64 input to output: OpCopyI64 <in:u16> <out:u16>
	OpCopyF64   Opcode = 0x54 // float64 input to output
	OpCopyC128  Opcode = 0x55 // two float64 inputs to one complex output
	OpCopyBytes Opcode = 0x56 // Pop n, copy n input bytes to output

	// ========================================================================
	// Output (0x60-0x6F)
	// ========================================================================

	OpPush    Opcode = 0x60 // Pop into output: OpPush <out:u16>
	OpAddPush Opcode = 0x61 // Pop, append last element plus value: OpAddPush <out:u16>
	OpLen     Opcode = 0x62 // Push output length: OpLen <out:u16>
)

// OpcodeInfo provides metadata about each opcode for debugging and validation.
type OpcodeInfo struct {
	Name       string // Program-text spelling or descriptive name
	StackPop   int
	StackPush  int
	OperandLen int // Number of operand bytes following the opcode
}

var opcodeInfoTable = map[Opcode]OpcodeInfo{
	OpNop:  {"NOP", 0, 0, 0},
	OpLit:  {"LIT", 0, 1, 8},
	OpDup:  {"DUP", 1, 2, 0},
	OpDrop: {"DROP", 1, 0, 0},
	OpSwap: {"SWAP", 2, 2, 0},
	OpOver: {"OVER", 2, 3, 0},
	OpRot:  {"ROT", 3, 3, 0},

	OpAdd:    {"ADD", 2, 1, 0},
	OpSub:    {"SUB", 2, 1, 0},
	OpMul:    {"MUL", 2, 1, 0},
	OpDiv:    {"DIV", 2, 1, 0},
	OpMod:    {"MOD", 2, 1, 0},
	OpNegate: {"NEGATE", 1, 1, 0},
	OpIncr:   {"INCR", 1, 1, 0},
	OpDecr:   {"DECR", 1, 1, 0},

	OpEq:     {"EQ", 2, 1, 0},
	OpNe:     {"NE", 2, 1, 0},
	OpLt:     {"LT", 2, 1, 0},
	OpGt:     {"GT", 2, 1, 0},
	OpLe:     {"LE", 2, 1, 0},
	OpGe:     {"GE", 2, 1, 0},
	OpZeroEq: {"ZERO_EQ", 1, 1, 0},

	OpAnd:    {"AND", 2, 1, 0},
	OpOr:     {"OR", 2, 1, 0},
	OpInvert: {"INVERT", 1, 1, 0},
	OpLShift: {"LSHIFT", 2, 1, 0},
	OpRShift: {"RSHIFT", 2, 1, 0},

	OpFetch:    {"FETCH", 0, 1, 2},
	OpStore:    {"STORE", 1, 0, 2},
	OpAddStore: {"ADD_STORE", 1, 0, 2},

	OpBranch:  {"BRANCH", 0, 0, 4},
	OpZBranch: {"ZBRANCH", 1, 0, 4},
	OpCall:    {"CALL", 0, 0, 2},
	OpExit:    {"EXIT", 0, 0, 0},
	OpHalt:    {"HALT", 1, 0, 0},
	OpPause:   {"PAUSE", 0, 0, 0},

	OpReadI32:   {"READ_I32", 0, 1, 2},
	OpReadI64:   {"READ_I64", 0, 1, 2},
	OpPeekI32:   {"PEEK_I32", 0, 1, 2},
	OpCopyI64:   {"COPY_I64", 0, 0, 4},
	OpCopyF64:   {"COPY_F64", 0, 0, 4},
	OpCopyC128:  {"COPY_C128", 0, 0, 4},
	OpCopyBytes: {"COPY_BYTES", 1, 0, 4},

	OpPush:    {"PUSH", 1, 0, 2},
	OpAddPush: {"ADD_PUSH", 1, 0, 2},
	OpLen:     {"LEN", 0, 1, 2},
}

// GetOpcodeInfo returns metadata for an opcode.
// Returns a zero OpcodeInfo with name "UNKNOWN" if the opcode is not recognized.
func GetOpcodeInfo(op Opcode) OpcodeInfo {
	if info, ok := opcodeInfoTable[op]; ok {
		return info
	}
	return OpcodeInfo{Name: fmt.Sprintf("UNKNOWN(0x%02X)", byte(op))}
}

func (op Opcode) String() string {
	return GetOpcodeInfo(op).Name
}

func (op Opcode) OperandLen() int {
	return GetOpcodeInfo(op).OperandLen
}

// InstructionLen returns the total length of an instruction (1 + operand bytes).
func (op Opcode) InstructionLen() int {
	return 1 + op.OperandLen()
}

func (op Opcode) IsJump() bool {
	return op == OpBranch || op == OpZBranch
}

// IsInput reports whether op reads from an input and may pause.
func (op Opcode) IsInput() bool {
	return op >= OpReadI32 && op <= OpCopyBytes
}

// AllOpcodes returns a slice of all defined opcodes.
func AllOpcodes() []Opcode {
	opcodes := make([]Opcode, 0, len(opcodeInfoTable))
	for op := range opcodeInfoTable {
		opcodes = append(opcodes, op)
	}
	return opcodes
}
