package parser

import (
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/roach88/flwor/internal/expr"
)

const eof = -1

// lexer splits query text into tokens. It scans the whole input up front;
// the parser then works on the token slice with arbitrary lookahead.
type lexer struct {
	input string
	start int
	pos   int
	width int

	line, col           int
	startLine, startCol int
}

// tokenize scans input. Errors carry ErrSyntax and the position of the
// offending character.
func tokenize(input string) ([]token, error) {
	l := &lexer{input: input, line: 1, col: 1}
	var toks []token
	for {
		t, err := l.next()
		if err != nil {
			return nil, err
		}
		toks = append(toks, t)
		if t.kind == tokEOF {
			return toks, nil
		}
	}
}

func (l *lexer) next() (token, error) {
	if err := l.skipSpaceAndComments(); err != nil {
		return token{}, err
	}
	l.start, l.startLine, l.startCol = l.pos, l.line, l.col

	ch := l.nextRune()
	switch {
	case ch == eof:
		return l.emit(tokEOF, ""), nil
	case ch == '"' || ch == '\'':
		return l.scanString(ch)
	case ch == '$':
		return l.scanVariable()
	case isDigit(ch), ch == '.' && isDigit(l.peek()):
		l.backup()
		return l.scanNumber()
	case isNameStart(ch):
		l.backup()
		return l.emit(tokName, l.scanName()), nil
	}

	l.backup()
	rest := l.input[l.pos:]
	for _, sym := range symbols {
		if strings.HasPrefix(rest, sym) {
			for range sym {
				l.nextRune()
			}
			return l.emit(tokSymbol, sym), nil
		}
	}
	return token{}, l.errorf("unexpected character %q", ch)
}

func (l *lexer) emit(kind tokenKind, text string) token {
	return token{kind: kind, text: text, loc: expr.Location{Line: l.startLine, Column: l.startCol}}
}

func (l *lexer) errorf(format string, args ...any) error {
	return expr.StaticError(expr.ErrSyntax, expr.Location{Line: l.line, Column: l.col}, format, args...)
}

func (l *lexer) nextRune() rune {
	if l.pos >= len(l.input) {
		l.width = 0
		return eof
	}
	r, w := utf8.DecodeRuneInString(l.input[l.pos:])
	l.width = w
	l.pos += w
	if r == '\n' {
		l.line++
		l.col = 1
	} else {
		l.col++
	}
	return r
}

// backup steps back one rune. It may be called once per nextRune and
// never after a newline.
func (l *lexer) backup() {
	l.pos -= l.width
	if l.width > 0 {
		l.col--
	}
}

func (l *lexer) peek() rune {
	if l.pos >= len(l.input) {
		return eof
	}
	r, _ := utf8.DecodeRuneInString(l.input[l.pos:])
	return r
}

func (l *lexer) peekString(s string) bool {
	return strings.HasPrefix(l.input[l.pos:], s)
}

// skipSpaceAndComments skips whitespace and (: nested :) comments.
func (l *lexer) skipSpaceAndComments() error {
	for {
		switch {
		case l.peekString("(:"):
			if err := l.skipComment(); err != nil {
				return err
			}
		case unicode.IsSpace(l.peek()):
			l.nextRune()
		default:
			return nil
		}
	}
}

func (l *lexer) skipComment() error {
	startLine, startCol := l.line, l.col
	depth := 0
	for {
		switch {
		case l.peekString("(:"):
			l.nextRune()
			l.nextRune()
			depth++
		case l.peekString(":)"):
			l.nextRune()
			l.nextRune()
			depth--
			if depth == 0 {
				return nil
			}
		case l.nextRune() == eof:
			return expr.StaticError(expr.ErrSyntax, expr.Location{Line: startLine, Column: startCol}, "unterminated comment")
		}
	}
}

// scanString reads a literal delimited by quote. A doubled quote stands for
// itself, and the five predefined entity references are expanded.
func (l *lexer) scanString(quote rune) (token, error) {
	var sb strings.Builder
	for {
		ch := l.nextRune()
		switch ch {
		case eof:
			return token{}, expr.StaticError(expr.ErrSyntax,
				expr.Location{Line: l.startLine, Column: l.startCol}, "unterminated string literal")
		case quote:
			if l.peek() != quote {
				return l.emit(tokString, sb.String()), nil
			}
			l.nextRune()
			sb.WriteRune(quote)
		case '&':
			s, err := l.scanEntity()
			if err != nil {
				return token{}, err
			}
			sb.WriteString(s)
		default:
			sb.WriteRune(ch)
		}
	}
}

var entities = map[string]string{
	"lt":   "<",
	"gt":   ">",
	"amp":  "&",
	"quot": "\"",
	"apos": "'",
}

func (l *lexer) scanEntity() (string, error) {
	end := strings.IndexByte(l.input[l.pos:], ';')
	if end < 0 {
		return "", l.errorf("unterminated entity reference")
	}
	name := l.input[l.pos : l.pos+end]
	s, ok := entities[name]
	if !ok {
		return "", l.errorf("unknown entity reference &%s;", name)
	}
	for range end + 1 {
		l.nextRune()
	}
	return s, nil
}

func (l *lexer) scanVariable() (token, error) {
	if !isNameStart(l.peek()) {
		return token{}, l.errorf("expected variable name after $")
	}
	return l.emit(tokVariable, l.scanName()), nil
}

// scanNumber reads an integer, a decimal or a double literal. Decimals and
// doubles both become Double items.
func (l *lexer) scanNumber() (token, error) {
	kind := tokInteger
	l.acceptDigits()
	if l.peek() == '.' {
		l.nextRune()
		kind = tokDouble
		l.acceptDigits()
	}
	if r := l.peek(); r == 'e' || r == 'E' {
		l.nextRune()
		kind = tokDouble
		if r := l.peek(); r == '+' || r == '-' {
			l.nextRune()
		}
		if !isDigit(l.peek()) {
			return token{}, l.errorf("malformed exponent")
		}
		l.acceptDigits()
	}
	if isNameStart(l.peek()) {
		return token{}, l.errorf("unexpected %q after number", l.peek())
	}
	return l.emit(kind, l.input[l.start:l.pos]), nil
}

func (l *lexer) acceptDigits() {
	for isDigit(l.peek()) {
		l.nextRune()
	}
}

// scanName reads a name, optionally prefixed ("xs:integer"). Names may
// contain hyphens, so "a-b" is one name.
func (l *lexer) scanName() string {
	start := l.pos
	l.acceptNameChars()
	if l.peek() == ':' && l.pos+1 < len(l.input) {
		r, _ := utf8.DecodeRuneInString(l.input[l.pos+1:])
		if isNameStart(r) {
			l.nextRune()
			l.acceptNameChars()
		}
	}
	return l.input[start:l.pos]
}

func (l *lexer) acceptNameChars() {
	for {
		r := l.peek()
		if !isNameStart(r) && !isDigit(r) && r != '-' && r != '.' {
			return
		}
		l.nextRune()
	}
}

func isDigit(r rune) bool {
	return r >= '0' && r <= '9'
}

func isNameStart(r rune) bool {
	return r == '_' || unicode.IsLetter(r)
}
