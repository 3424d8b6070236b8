package forth

import (
	"fmt"

	"github.com/chazu/typedbuilder/dtype"
)

// CompileError reports a problem in program text.
type CompileError struct {
	Pos Position
	Msg string
}

func (e *CompileError) Error() string {
	return fmt.Sprintf("forth: %s: %s", e.Pos, e.Msg)
}

var simpleOps = map[string]Opcode{
	"dup":    OpDup,
	"drop":   OpDrop,
	"swap":   OpSwap,
	"over":   OpOver,
	"rot":    OpRot,
	"+":      OpAdd,
	"-":      OpSub,
	"*":      OpMul,
	"/":      OpDiv,
	"mod":    OpMod,
	"negate": OpNegate,
	"1+":     OpIncr,
	"1-":     OpDecr,
	"=":      OpEq,
	"<>":     OpNe,
	"<":      OpLt,
	">":      OpGt,
	"<=":     OpLe,
	">=":     OpGe,
	"0=":     OpZeroEq,
	"and":    OpAnd,
	"or":     OpOr,
	"invert": OpInvert,
	"lshift": OpLShift,
	"rshift": OpRShift,
	"halt":   OpHalt,
	"pause":  OpPause,
	"exit":   OpExit,
}

type controlKind int

const (
	ctrlIf controlKind = iota
	ctrlElse
	ctrlBegin
	ctrlWhile
	ctrlCase
	ctrlOf
)

var controlNames = map[controlKind]string{
	ctrlIf: "if", ctrlElse: "else", ctrlBegin: "begin",
	ctrlWhile: "while", ctrlCase: "case", ctrlOf: "of",
}

// control is an open control structure awaiting its closing word.
type control struct {
	kind    controlKind
	pos     Position
	at      int   // jump placeholder, or loop start for begin
	begin   int   // loop start, for while
	pending []int // endof jumps, for case
}

// compiler turns a token stream into a Chunk.
type compiler struct {
	tokens []Token
	next   int

	chunk *Chunk
	defs  emitter
	main  emitter
	cur   *emitter

	inDef   bool
	defName Token
	words   map[string]int
	control []control
}

// Compile translates program text into a validated Chunk.
func Compile(source string) (*Chunk, error) {
	tokens, err := Tokenize(source)
	if err != nil {
		return nil, err
	}
	c := &compiler{
		tokens: tokens,
		chunk:  NewChunk(),
		words:  make(map[string]int),
	}
	c.cur = &c.main
	if err := c.compile(); err != nil {
		return nil, err
	}
	return c.chunk, nil
}

func (c *compiler) errorf(pos Position, format string, args ...any) error {
	return &CompileError{Pos: pos, Msg: fmt.Sprintf(format, args...)}
}

func (c *compiler) advance() (Token, bool) {
	if c.next >= len(c.tokens) {
		return Token{}, false
	}
	tok := c.tokens[c.next]
	c.next++
	return tok, true
}

// expectWord reads the next token, which must be a word.
func (c *compiler) expectWord(after Token, what string) (Token, error) {
	tok, ok := c.advance()
	if !ok {
		return Token{}, c.errorf(after.Pos, "expected %s after %q", what, after.Literal)
	}
	if tok.Type != TokenWord {
		return Token{}, c.errorf(tok.Pos, "expected %s, got number %s", what, tok.Literal)
	}
	return tok, nil
}

func (c *compiler) declared(name string) bool {
	if _, isOp := simpleOps[name]; isOp {
		return true
	}
	return c.chunk.InputIndex(name) >= 0 || c.chunk.OutputIndex(name) >= 0 ||
		c.chunk.VariableIndex(name) >= 0
}

func (c *compiler) compile() error {
	for {
		tok, ok := c.advance()
		if !ok {
			break
		}
		if err := c.compileToken(tok); err != nil {
			return err
		}
	}
	if c.inDef {
		return c.errorf(c.defName.Pos, "definition of %q is missing ;", c.defName.Literal)
	}
	if err := c.checkControlClosed(); err != nil {
		return err
	}
	c.main.emit(OpExit)

	c.chunk.Main = c.defs.offset()
	c.chunk.Code = append(c.defs.code, c.main.code...)
	for _, w := range c.chunk.Words {
		if w.Offset < 0 {
			return &CompileError{Msg: fmt.Sprintf("word %q is used but never defined", w.Name)}
		}
	}
	return c.chunk.Validate()
}

func (c *compiler) checkControlClosed() error {
	if n := len(c.control); n > 0 {
		open := c.control[n-1]
		return c.errorf(open.pos, "unclosed %s", controlNames[open.kind])
	}
	return nil
}

func (c *compiler) compileToken(tok Token) error {
	if tok.Type == TokenNumber {
		c.cur.emitLit(tok.Value)
		return nil
	}
	switch tok.Literal {
	case "input", "output", "variable":
		return c.declare(tok)
	case ":":
		return c.beginDefinition(tok)
	case ";":
		return c.endDefinition(tok)
	case "if", "else", "then", "begin", "while", "repeat", "until", "again",
		"case", "of", "endof", "endcase":
		return c.compileControl(tok)
	}
	if op, ok := simpleOps[tok.Literal]; ok {
		c.cur.emit(op)
		return nil
	}
	if i := c.chunk.VariableIndex(tok.Literal); i >= 0 {
		return c.compileVariable(tok, i)
	}
	if i := c.chunk.InputIndex(tok.Literal); i >= 0 {
		return c.compileInput(tok, i)
	}
	if i := c.chunk.OutputIndex(tok.Literal); i >= 0 {
		return c.compileOutput(tok, i)
	}
	c.cur.emitU16(OpCall, c.wordIndex(tok.Literal))
	return nil
}

// wordIndex returns the word table slot for name, reserving one for a
// forward reference.
func (c *compiler) wordIndex(name string) int {
	if i, ok := c.words[name]; ok {
		return i
	}
	i := len(c.chunk.Words)
	c.chunk.Words = append(c.chunk.Words, WordDecl{Name: name, Offset: -1})
	c.words[name] = i
	return i
}

func (c *compiler) declare(tok Token) error {
	if c.inDef {
		return c.errorf(tok.Pos, "%q inside a definition", tok.Literal)
	}
	name, err := c.expectWord(tok, "a name")
	if err != nil {
		return err
	}
	if c.declared(name.Literal) {
		return c.errorf(name.Pos, "%q is already declared", name.Literal)
	}
	if _, isWord := c.words[name.Literal]; isWord {
		return c.errorf(name.Pos, "%q is already a word", name.Literal)
	}
	switch tok.Literal {
	case "input":
		c.chunk.Inputs = append(c.chunk.Inputs, name.Literal)
	case "variable":
		c.chunk.Variables = append(c.chunk.Variables, name.Literal)
	case "output":
		dt, err := c.expectWord(name, "a dtype")
		if err != nil {
			return err
		}
		if _, err := dtype.Parse(dt.Literal); err != nil {
			return c.errorf(dt.Pos, "%v", err)
		}
		c.chunk.Outputs = append(c.chunk.Outputs, OutputDecl{Name: name.Literal, DType: dt.Literal})
	}
	return nil
}

func (c *compiler) beginDefinition(tok Token) error {
	if c.inDef {
		return c.errorf(tok.Pos, "nested definition inside %q", c.defName.Literal)
	}
	if err := c.checkControlClosed(); err != nil {
		return err
	}
	name, err := c.expectWord(tok, "a word name")
	if err != nil {
		return err
	}
	if c.declared(name.Literal) {
		return c.errorf(name.Pos, "cannot redefine %q", name.Literal)
	}
	i := c.wordIndex(name.Literal)
	if c.chunk.Words[i].Offset >= 0 {
		return c.errorf(name.Pos, "word %q is defined twice", name.Literal)
	}
	c.chunk.Words[i].Offset = c.defs.offset()
	c.inDef = true
	c.defName = name
	c.cur = &c.defs
	return nil
}

func (c *compiler) endDefinition(tok Token) error {
	if !c.inDef {
		return c.errorf(tok.Pos, "; outside a definition")
	}
	if err := c.checkControlClosed(); err != nil {
		return err
	}
	c.defs.emit(OpExit)
	c.inDef = false
	c.cur = &c.main
	return nil
}

func (c *compiler) compileVariable(tok Token, i int) error {
	op, err := c.expectWord(tok, "@, ! or +!")
	if err != nil {
		return err
	}
	switch op.Literal {
	case "@":
		c.cur.emitU16(OpFetch, i)
	case "!":
		c.cur.emitU16(OpStore, i)
	case "+!":
		c.cur.emitU16(OpAddStore, i)
	default:
		return c.errorf(op.Pos, "expected @, ! or +! after variable %q", tok.Literal)
	}
	return nil
}

func (c *compiler) compileInput(tok Token, in int) error {
	op, err := c.expectWord(tok, "an input operation")
	if err != nil {
		return err
	}
	if op.Literal == "peek" {
		c.cur.emitU16(OpPeekI32, in)
		return nil
	}
	dest, err := c.expectWord(op, "stack or an output")
	if err != nil {
		return err
	}
	if dest.Literal == "stack" {
		switch op.Literal {
		case "i->":
			c.cur.emitU16(OpReadI32, in)
		case "q->":
			c.cur.emitU16(OpReadI64, in)
		default:
			return c.errorf(op.Pos, "%s cannot target the stack", op.Literal)
		}
		return nil
	}
	out := c.chunk.OutputIndex(dest.Literal)
	if out < 0 {
		return c.errorf(dest.Pos, "undeclared output %q", dest.Literal)
	}
	switch op.Literal {
	case "q->":
		c.cur.emitU16(OpCopyI64, in, out)
	case "d->":
		c.cur.emitU16(OpCopyF64, in, out)
	case "z->":
		c.cur.emitU16(OpCopyC128, in, out)
	case "#B->":
		c.cur.emitU16(OpCopyBytes, in, out)
	default:
		return c.errorf(op.Pos, "unknown input operation %q", op.Literal)
	}
	return nil
}

func (c *compiler) compileOutput(tok Token, out int) error {
	op, err := c.expectWord(tok, "an output operation")
	if err != nil {
		return err
	}
	switch op.Literal {
	case "len":
		c.cur.emitU16(OpLen, out)
		return nil
	case "<-", "+<-":
	default:
		return c.errorf(op.Pos, "unknown output operation %q", op.Literal)
	}
	src, err := c.expectWord(op, "stack")
	if err != nil {
		return err
	}
	if src.Literal != "stack" {
		return c.errorf(src.Pos, "expected stack after %s", op.Literal)
	}
	if op.Literal == "<-" {
		c.cur.emitU16(OpPush, out)
	} else {
		c.cur.emitU16(OpAddPush, out)
	}
	return nil
}

// ============================================================================
// Control structures
// ============================================================================

func (c *compiler) push(ctl control) { c.control = append(c.control, ctl) }

func (c *compiler) pop(tok Token, kinds ...controlKind) (control, error) {
	if n := len(c.control); n > 0 {
		top := c.control[n-1]
		for _, k := range kinds {
			if top.kind == k {
				c.control = c.control[:n-1]
				return top, nil
			}
		}
		return control{}, c.errorf(tok.Pos, "%s does not match open %s", tok.Literal, controlNames[top.kind])
	}
	return control{}, c.errorf(tok.Pos, "%s without an open structure", tok.Literal)
}

func (c *compiler) compileControl(tok Token) error {
	e := c.cur
	switch tok.Literal {
	case "if":
		c.push(control{kind: ctrlIf, pos: tok.Pos, at: e.emitJump(OpZBranch)})

	case "else":
		open, err := c.pop(tok, ctrlIf)
		if err != nil {
			return err
		}
		skip := e.emitJump(OpBranch)
		e.patchJump(open.at)
		c.push(control{kind: ctrlElse, pos: tok.Pos, at: skip})

	case "then":
		open, err := c.pop(tok, ctrlIf, ctrlElse)
		if err != nil {
			return err
		}
		e.patchJump(open.at)

	case "begin":
		c.push(control{kind: ctrlBegin, pos: tok.Pos, at: e.offset()})

	case "while":
		open, err := c.pop(tok, ctrlBegin)
		if err != nil {
			return err
		}
		c.push(control{kind: ctrlWhile, pos: tok.Pos, at: e.emitJump(OpZBranch), begin: open.at})

	case "repeat":
		open, err := c.pop(tok, ctrlWhile)
		if err != nil {
			return err
		}
		e.emitLoop(OpBranch, open.begin)
		e.patchJump(open.at)

	case "until":
		open, err := c.pop(tok, ctrlBegin)
		if err != nil {
			return err
		}
		e.emitLoop(OpZBranch, open.at)

	case "again":
		open, err := c.pop(tok, ctrlBegin)
		if err != nil {
			return err
		}
		e.emitLoop(OpBranch, open.at)

	case "case":
		c.push(control{kind: ctrlCase, pos: tok.Pos})

	case "of":
		if n := len(c.control); n == 0 || c.control[n-1].kind != ctrlCase {
			return c.errorf(tok.Pos, "of outside case")
		}
		e.emit(OpOver)
		e.emit(OpEq)
		at := e.emitJump(OpZBranch)
		e.emit(OpDrop)
		c.push(control{kind: ctrlOf, pos: tok.Pos, at: at})

	case "endof":
		open, err := c.pop(tok, ctrlOf)
		if err != nil {
			return err
		}
		exit := e.emitJump(OpBranch)
		e.patchJump(open.at)
		cs := &c.control[len(c.control)-1]
		cs.pending = append(cs.pending, exit)

	case "endcase":
		open, err := c.pop(tok, ctrlCase)
		if err != nil {
			return err
		}
		e.emit(OpDrop)
		for _, at := range open.pending {
			e.patchJump(at)
		}
	}
	return nil
}
