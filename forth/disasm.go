package forth

import (
	"encoding/binary"
	"fmt"
	"strings"
)

// Disassemble returns a human-readable bytecode listing for the chunk.
func (c *Chunk) Disassemble() string {
	var sb strings.Builder

	sb.WriteString(fmt.Sprintf("; forth bytecode v%d, %d bytes\n", c.Version, len(c.Code)))
	for _, in := range c.Inputs {
		sb.WriteString(fmt.Sprintf("; input    %s\n", in))
	}
	for _, out := range c.Outputs {
		sb.WriteString(fmt.Sprintf("; output   %s %s\n", out.Name, out.DType))
	}
	for _, v := range c.Variables {
		sb.WriteString(fmt.Sprintf("; variable %s\n", v))
	}
	sb.WriteString("\n")

	offset := 0
	for offset < len(c.Code) {
		if name, ok := c.WordAt(offset); ok {
			sb.WriteString(fmt.Sprintf("%s:\n", name))
		}
		if offset == c.Main {
			sb.WriteString("main:\n")
		}
		line, n := c.disassembleInstruction(offset)
		sb.WriteString(fmt.Sprintf("%04X  %s\n", offset, line))
		if n == 0 {
			break
		}
		offset += n
	}
	return sb.String()
}

// disassembleInstruction formats the instruction at offset and returns its
// length.
func (c *Chunk) disassembleInstruction(offset int) (string, int) {
	op := Opcode(c.Code[offset])
	info := GetOpcodeInfo(op)
	n := op.InstructionLen()
	if offset+n > len(c.Code) {
		return fmt.Sprintf("%s <truncated>", info.Name), 0
	}
	u16 := func(i int) int { return int(binary.BigEndian.Uint16(c.Code[offset+1+i:])) }
	name := func(names []string, i int) string {
		if i < len(names) {
			return names[i]
		}
		return fmt.Sprintf("#%d?", i)
	}
	output := func(i int) string {
		if i < len(c.Outputs) {
			return c.Outputs[i].Name
		}
		return fmt.Sprintf("#%d?", i)
	}

	switch op {
	case OpLit:
		return fmt.Sprintf("%-12s %d", info.Name, int64(binary.BigEndian.Uint64(c.Code[offset+1:]))), n
	case OpFetch, OpStore, OpAddStore:
		return fmt.Sprintf("%-12s %s", info.Name, name(c.Variables, u16(0))), n
	case OpCall:
		i := u16(0)
		if i < len(c.Words) {
			return fmt.Sprintf("%-12s %s", info.Name, c.Words[i].Name), n
		}
		return fmt.Sprintf("%-12s #%d?", info.Name, i), n
	case OpBranch, OpZBranch:
		delta := int(int32(binary.BigEndian.Uint32(c.Code[offset+1:])))
		return fmt.Sprintf("%-12s %+d -> %04X", info.Name, delta, offset+n+delta), n
	case OpReadI32, OpReadI64, OpPeekI32:
		return fmt.Sprintf("%-12s %s", info.Name, name(c.Inputs, u16(0))), n
	case OpCopyI64, OpCopyF64, OpCopyC128, OpCopyBytes:
		return fmt.Sprintf("%-12s %s -> %s", info.Name, name(c.Inputs, u16(0)), output(u16(2))), n
	case OpPush, OpAddPush, OpLen:
		return fmt.Sprintf("%-12s %s", info.Name, output(u16(0))), n
	default:
		return info.Name, n
	}
}
