package forth

import (
	"fmt"
	"strconv"
	"unicode"
	"unicode/utf8"
)

// ---------------------------------------------------------------------------
// Tokens
// ---------------------------------------------------------------------------

// TokenType represents the type of a token.
type TokenType int

const (
	TokenEOF TokenType = iota
	TokenWord
	TokenNumber
)

// Position is a location in program text.
type Position struct {
	Offset int // byte offset (0-based)
	Line   int // line number (1-based)
	Column int // column number (1-based)
}

func (p Position) String() string {
	return fmt.Sprintf("%d:%d", p.Line, p.Column)
}

// Token is a whitespace-delimited word of program text.
type Token struct {
	Type    TokenType
	Literal string
	Value   int64 // for TokenNumber
	Pos     Position
}

func (t Token) String() string {
	if t.Type == TokenEOF {
		return "EOF"
	}
	return fmt.Sprintf("%q at %s", t.Literal, t.Pos)
}

// ---------------------------------------------------------------------------
// Lexer
// ---------------------------------------------------------------------------

// Lexer splits program text into words, skipping ( ... ) and \ comments.
type Lexer struct {
	input   string
	pos     int  // current position in input
	readPos int  // reading position (after current char)
	ch      rune // current character
	line    int
	col     int
}

// NewLexer creates a new lexer for the given input.
func NewLexer(input string) *Lexer {
	l := &Lexer{input: input, line: 1}
	l.readChar()
	return l
}

func (l *Lexer) readChar() {
	if l.readPos >= len(l.input) {
		l.ch = 0
		l.pos = l.readPos
		return
	}
	r, size := utf8.DecodeRuneInString(l.input[l.readPos:])
	if l.ch == '\n' {
		l.line++
		l.col = 0
	}
	l.ch = r
	l.pos = l.readPos
	l.readPos += size
	l.col++
}

func (l *Lexer) peekChar() rune {
	if l.readPos >= len(l.input) {
		return 0
	}
	r, _ := utf8.DecodeRuneInString(l.input[l.readPos:])
	return r
}

func (l *Lexer) position() Position {
	return Position{Offset: l.pos, Line: l.line, Column: l.col}
}

func isSpace(r rune) bool { return r == 0 || unicode.IsSpace(r) }

// NextToken returns the next token, or an error for an unterminated comment.
func (l *Lexer) NextToken() (Token, error) {
	if err := l.skipWhitespaceAndComments(); err != nil {
		return Token{}, err
	}
	pos := l.position()
	if l.ch == 0 {
		return Token{Type: TokenEOF, Pos: pos}, nil
	}

	start := l.pos
	for !isSpace(l.ch) {
		l.readChar()
	}
	lit := l.input[start:l.pos]

	if n, err := strconv.ParseInt(lit, 10, 64); err == nil {
		return Token{Type: TokenNumber, Literal: lit, Value: n, Pos: pos}, nil
	}
	return Token{Type: TokenWord, Literal: lit, Pos: pos}, nil
}

func (l *Lexer) skipWhitespaceAndComments() error {
	for {
		for l.ch != 0 && unicode.IsSpace(l.ch) {
			l.readChar()
		}
		switch {
		case l.ch == '(' && isSpace(l.peekChar()):
			pos := l.position()
			for l.ch != ')' {
				if l.ch == 0 {
					return &CompileError{Pos: pos, Msg: "unterminated ( comment"}
				}
				l.readChar()
			}
			l.readChar()
		case l.ch == '\\' && isSpace(l.peekChar()):
			for l.ch != '\n' && l.ch != 0 {
				l.readChar()
			}
		default:
			return nil
		}
	}
}

// Tokenize returns all tokens of input up to EOF.
func Tokenize(input string) ([]Token, error) {
	l := NewLexer(input)
	var tokens []Token
	for {
		tok, err := l.NextToken()
		if err != nil {
			return nil, err
		}
		if tok.Type == TokenEOF {
			return tokens, nil
		}
		tokens = append(tokens, tok)
	}
}
