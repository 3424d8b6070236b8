package forth

import (
	"errors"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/chazu/typedbuilder/buffer"
)

// ============================================================================
// Helpers
// ============================================================================

func mustProgram(t *testing.T, source string) *Program {
	t.Helper()
	chunk, err := Compile(source)
	if err != nil {
		t.Fatalf("Compile failed: %v", err)
	}
	p, err := NewProgram(chunk, DefaultOptions())
	if err != nil {
		t.Fatalf("NewProgram failed: %v", err)
	}
	return p
}

func outputInts(t *testing.T, p *Program, name string) []int64 {
	t.Helper()
	out, err := p.Output(name)
	if err != nil {
		t.Fatalf("Output(%q) failed: %v", name, err)
	}
	v := out.View()
	got := make([]int64, v.Len())
	for i := range got {
		got[i] = v.Int64(i)
	}
	return got
}

// ============================================================================
// Lexer
// ============================================================================

func TestTokenize(t *testing.T) {
	src := "input data ( a comment )\n: w \\ line comment\n  -12 data q-> stack ;"
	tokens, err := Tokenize(src)
	if err != nil {
		t.Fatalf("Tokenize failed: %v", err)
	}
	var lits []string
	for _, tok := range tokens {
		lits = append(lits, tok.Literal)
	}
	want := []string{"input", "data", ":", "w", "-12", "data", "q->", "stack", ";"}
	if diff := cmp.Diff(want, lits); diff != "" {
		t.Errorf("tokens mismatch (-want +got):\n%s", diff)
	}
	if tokens[4].Type != TokenNumber || tokens[4].Value != -12 {
		t.Errorf("token 4 = %+v, want number -12", tokens[4])
	}
	if tokens[2].Pos.Line != 2 || tokens[2].Pos.Column != 1 {
		t.Errorf(": at %s, want 2:1", tokens[2].Pos)
	}
}

func TestTokenizeUnterminatedComment(t *testing.T) {
	_, err := Tokenize("1 ( never closed")
	var ce *CompileError
	if !errors.As(err, &ce) {
		t.Fatalf("expected CompileError, got %v", err)
	}
}

// ============================================================================
// Compiler
// ============================================================================

func TestCompileErrors(t *testing.T) {
	tests := []struct {
		name string
		src  string
		want string
	}{
		{"undefined word", ": a b ;", `"b" is used but never defined`},
		{"missing semicolon", ": a 1", "missing ;"},
		{"unclosed if", ": a 1 if ;", "unclosed if"},
		{"then without if", "then", "without an open structure"},
		{"bad dtype", "output x int128", "unknown dtype"},
		{"redeclare", "variable x variable x", "already declared"},
		{"bad variable op", "variable x x 1", "expected @, ! or +!"},
		{"bad output op", "output o int64 o stack", "unknown output operation"},
		{"undeclared output", "input i i q-> nowhere", "undeclared output"},
		{"peek to output", "input i output o int8 i i-> o", "unknown input operation"},
		{"declaration in word", ": a variable x ;", "inside a definition"},
		{"defined twice", ": a ; : a ;", "defined twice"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Compile(tt.src)
			if err == nil {
				t.Fatal("expected compile error")
			}
			if !strings.Contains(err.Error(), tt.want) {
				t.Errorf("error = %q, want substring %q", err, tt.want)
			}
		})
	}
}

func TestCompileForwardReference(t *testing.T) {
	chunk, err := Compile(": a b ; : b 1 ; a")
	if err != nil {
		t.Fatalf("Compile failed: %v", err)
	}
	if len(chunk.Words) != 2 || chunk.Words[0].Name != "a" || chunk.Words[1].Name != "b" {
		t.Errorf("words = %+v", chunk.Words)
	}
}

// ============================================================================
// Execution
// ============================================================================

func TestArithmeticAndControl(t *testing.T) {
	p := mustProgram(t, `
		output o int64
		: classify ( n -- )
		  case
		    1 of 100 o <- stack endof
		    2 of 200 o <- stack endof
		    dup o <- stack
		  endcase ;
		7 3 - o <- stack
		7 3 mod o <- stack
		1 4 lshift 2 or o <- stack
		5 0= 0 0= + o <- stack
		1 classify 2 classify 9 classify
		3 begin dup 0 > while dup o <- stack 1- repeat drop
		0 begin 1+ dup 3 = until o <- stack
		-1 0 < if 11 else 22 then o <- stack
		1 2 3 rot o <- stack o <- stack o <- stack
		1 2 over o <- stack o <- stack o <- stack
	`)
	if err := p.Resume(); err != nil {
		t.Fatalf("Resume failed: %v", err)
	}
	if !p.Done() {
		t.Error("program should have finished")
	}
	want := []int64{4, 1, 18, 1, 100, 200, 9, 3, 2, 1, 3, 11, 1, 3, 2, 1, 2, 1}
	if diff := cmp.Diff(want, outputInts(t, p, "o")); diff != "" {
		t.Errorf("output mismatch (-want +got):\n%s", diff)
	}
	if len(p.Stack()) != 0 {
		t.Errorf("stack not empty: %v", p.Stack())
	}
}

func TestVariables(t *testing.T) {
	p := mustProgram(t, `
		variable n
		output o int32
		5 n ! 3 n +! n @ o <- stack
	`)
	if err := p.Resume(); err != nil {
		t.Fatalf("Resume failed: %v", err)
	}
	v, err := p.Variable("n")
	if err != nil || v != 8 {
		t.Errorf("n = %d, %v; want 8", v, err)
	}
	if _, err := p.Variable("missing"); err == nil {
		t.Error("expected error for missing variable")
	}
}

func TestPauseOnStarvedInput(t *testing.T) {
	p := mustProgram(t, `
		input events
		input data
		output o int64
		output f float64
		: one events i-> stack case
		    2 of data q-> o endof
		    3 of data d-> f endof
		    1 halt
		  endcase ;
		begin one again
	`)
	events, data := buffer.NewInput(), buffer.NewInput()
	p.BindInput("events", events)
	p.BindInput("data", data)

	if err := p.Resume(); err != nil {
		t.Fatalf("Resume on empty input failed: %v", err)
	}

	// The code arrives before its payload.
	events.WriteInt32(2)
	if err := p.Resume(); err != nil {
		t.Fatalf("Resume failed: %v", err)
	}
	if got := outputInts(t, p, "o"); len(got) != 0 {
		t.Fatalf("wrote %v before payload arrived", got)
	}
	data.WriteInt64(42)
	events.WriteInt32(3)
	data.WriteFloat64(1.5)
	if err := p.Resume(); err != nil {
		t.Fatalf("Resume failed: %v", err)
	}
	if diff := cmp.Diff([]int64{42}, outputInts(t, p, "o")); diff != "" {
		t.Errorf("o mismatch (-want +got):\n%s", diff)
	}
	f, _ := p.Output("f")
	if f.Len() != 1 || f.View().Float64(0) != 1.5 {
		t.Errorf("f = len %d", f.Len())
	}

	events.WriteInt32(9)
	err := p.Resume()
	var he *HaltError
	if !errors.As(err, &he) || he.Code != 1 || he.Word != "one" {
		t.Fatalf("expected halt 1 in one, got %v", err)
	}
}

func TestUnboundInput(t *testing.T) {
	p := mustProgram(t, "input events events i-> stack drop")
	if err := p.Resume(); err == nil {
		t.Fatal("expected error for unbound input")
	}
}

func TestStackUnderflow(t *testing.T) {
	p := mustProgram(t, "drop")
	err := p.Resume()
	if err == nil || !strings.Contains(err.Error(), "underflow") {
		t.Fatalf("expected underflow, got %v", err)
	}
}

func TestCopyBytes(t *testing.T) {
	p := mustProgram(t, `
		input data
		output chars uint8
		output offsets int64
		0 offsets <- stack
		begin data q-> stack dup offsets +<- stack data #B-> chars again
	`)
	data := buffer.NewInput()
	p.BindInput("data", data)
	data.WriteInt64(3)
	data.WriteBytes([]byte("abc"))
	data.WriteInt64(2)
	if err := p.Resume(); err != nil {
		t.Fatalf("Resume failed: %v", err)
	}
	chars, _ := p.Output("chars")
	if chars.Len() != 3 {
		t.Fatalf("copied %d bytes before the payload arrived", chars.Len())
	}
	data.WriteBytes([]byte("de"))
	if err := p.Resume(); err != nil {
		t.Fatalf("Resume failed: %v", err)
	}
	if got := string(chars.View().Bytes()); got != "abcde" {
		t.Errorf("chars = %q, want abcde", got)
	}
	if diff := cmp.Diff([]int64{0, 3, 5}, outputInts(t, p, "offsets")); diff != "" {
		t.Errorf("offsets mismatch (-want +got):\n%s", diff)
	}
}

func TestCheckpointRestore(t *testing.T) {
	p := mustProgram(t, `
		input events
		output o int64
		variable n
		begin events i-> stack o <- stack 1 n +! again
	`)
	events := buffer.NewInput()
	p.BindInput("events", events)
	events.WriteInt32(1)
	p.Resume()

	cp := p.Checkpoint()
	events.WriteInt32(2)
	events.WriteInt32(3)
	p.Resume()
	if diff := cmp.Diff([]int64{1, 2, 3}, outputInts(t, p, "o")); diff != "" {
		t.Fatalf("before restore (-want +got):\n%s", diff)
	}

	if err := p.Restore(cp); err != nil {
		t.Fatalf("Restore failed: %v", err)
	}
	if n, _ := p.Variable("n"); n != 1 {
		t.Errorf("n after restore = %d, want 1", n)
	}
	if events.Remaining() != 0 || events.Len() != 4 {
		t.Errorf("events after restore: len %d remaining %d", events.Len(), events.Remaining())
	}
	events.WriteInt32(4)
	p.Resume()
	if diff := cmp.Diff([]int64{1, 4}, outputInts(t, p, "o")); diff != "" {
		t.Errorf("after restore (-want +got):\n%s", diff)
	}

	other := mustProgram(t, "1 drop")
	if err := other.Restore(cp); err == nil {
		t.Error("expected error restoring a foreign checkpoint")
	}
}

func TestReset(t *testing.T) {
	p := mustProgram(t, `
		input events
		output o int64
		7 o <- stack
		begin events i-> stack o <- stack again
	`)
	events := buffer.NewInput()
	p.BindInput("events", events)
	p.Resume()
	events.WriteInt32(5)
	p.Resume()

	if err := p.Reset(); err != nil {
		t.Fatalf("Reset failed: %v", err)
	}
	p.Resume()
	if diff := cmp.Diff([]int64{7}, outputInts(t, p, "o")); diff != "" {
		t.Errorf("after reset (-want +got):\n%s", diff)
	}
}

func TestMachineCompile(t *testing.T) {
	m := New(DefaultOptions())
	prog, err := m.Compile("output o int8 3 o <- stack")
	if err != nil {
		t.Fatalf("Compile failed: %v", err)
	}
	if err := prog.Resume(); err != nil {
		t.Fatalf("Resume failed: %v", err)
	}
	if err := prog.Resume(); !errors.Is(err, ErrFinished) {
		t.Errorf("second Resume = %v, want ErrFinished", err)
	}
	if diff := cmp.Diff([]string{"o"}, prog.Outputs()); diff != "" {
		t.Errorf("outputs mismatch (-want +got):\n%s", diff)
	}
	if _, err := m.Compile(": broken"); err == nil {
		t.Error("expected compile error")
	}
}

// ============================================================================
// Disassembly and wire format
// ============================================================================

func TestDisassemble(t *testing.T) {
	chunk, err := Compile("input events output o int64 : w events i-> stack o <- stack ; begin w again")
	if err != nil {
		t.Fatalf("Compile failed: %v", err)
	}
	listing := chunk.Disassemble()
	for _, want := range []string{"w:", "main:", "READ_I32     events", "PUSH         o", "CALL         w", "; output   o int64"} {
		if !strings.Contains(listing, want) {
			t.Errorf("listing missing %q:\n%s", want, listing)
		}
	}
}

func TestChunkWireRoundTrip(t *testing.T) {
	chunk, err := Compile("input events output o float32 variable v : w events i-> stack v ! ; begin w again")
	if err != nil {
		t.Fatalf("Compile failed: %v", err)
	}
	data, err := MarshalChunk(chunk)
	if err != nil {
		t.Fatalf("MarshalChunk failed: %v", err)
	}
	again, err := MarshalChunk(chunk)
	if err != nil || string(again) != string(data) {
		t.Error("canonical encoding is not deterministic")
	}
	got, err := UnmarshalChunk(data)
	if err != nil {
		t.Fatalf("UnmarshalChunk failed: %v", err)
	}
	if diff := cmp.Diff(chunk, got); diff != "" {
		t.Errorf("chunk mismatch (-want +got):\n%s", diff)
	}

	if _, err := UnmarshalChunk([]byte{0xff}); err == nil {
		t.Error("expected error for garbage input")
	}
}
