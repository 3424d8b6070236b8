package buffer

import (
	"encoding/binary"
	"fmt"
	"math"
)

// Input is an append-only byte stream with a read cursor. Writers append
// whole records; readers either consume a complete item or leave the cursor
// where it was.
type Input struct {
	data []byte
	pos  int
}

func NewInput() *Input { return &Input{} }

func (in *Input) WriteInt32(v int32) {
	in.data = binary.LittleEndian.AppendUint32(in.data, uint32(v))
}

func (in *Input) WriteInt64(v int64) {
	in.data = binary.LittleEndian.AppendUint64(in.data, uint64(v))
}

func (in *Input) WriteFloat64(v float64) {
	in.data = binary.LittleEndian.AppendUint64(in.data, math.Float64bits(v))
}

func (in *Input) WriteBytes(p []byte) {
	in.data = append(in.data, p...)
}

// Len returns the number of bytes written.
func (in *Input) Len() int { return len(in.data) }

// Pos returns the read cursor.
func (in *Input) Pos() int { return in.pos }

// Remaining returns the number of unread bytes.
func (in *Input) Remaining() int { return len(in.data) - in.pos }

func (in *Input) PeekInt32() (int32, bool) {
	if in.Remaining() < 4 {
		return 0, false
	}
	return int32(binary.LittleEndian.Uint32(in.data[in.pos:])), true
}

func (in *Input) ReadInt32() (int32, bool) {
	v, ok := in.PeekInt32()
	if ok {
		in.pos += 4
	}
	return v, ok
}

func (in *Input) ReadInt64() (int64, bool) {
	if in.Remaining() < 8 {
		return 0, false
	}
	v := int64(binary.LittleEndian.Uint64(in.data[in.pos:]))
	in.pos += 8
	return v, true
}

func (in *Input) ReadFloat64() (float64, bool) {
	if in.Remaining() < 8 {
		return 0, false
	}
	v := math.Float64frombits(binary.LittleEndian.Uint64(in.data[in.pos:]))
	in.pos += 8
	return v, true
}

// ReadComplex reads two float64 values, or neither.
func (in *Input) ReadComplex() (complex128, bool) {
	if in.Remaining() < 16 {
		return 0, false
	}
	re, _ := in.ReadFloat64()
	im, _ := in.ReadFloat64()
	return complex(re, im), true
}

// ReadBytes returns the next n bytes without copying.
func (in *Input) ReadBytes(n int) ([]byte, bool) {
	if n < 0 || in.Remaining() < n {
		return nil, false
	}
	p := in.data[in.pos : in.pos+n]
	in.pos += n
	return p, true
}

// Rewind moves the cursor back to pos and drops everything written after
// end.
func (in *Input) Rewind(pos, end int) error {
	if end > len(in.data) || pos > end || pos < 0 {
		return fmt.Errorf("rewind to %d/%d outside input of %d bytes", pos, end, len(in.data))
	}
	in.data = in.data[:end]
	in.pos = pos
	return nil
}

// Compact discards the input when everything written has been read.
func (in *Input) Compact() {
	if in.pos == len(in.data) {
		in.Reset()
	}
}

// Reset empties the input, keeping its capacity.
func (in *Input) Reset() {
	in.data = in.data[:0]
	in.pos = 0
}
