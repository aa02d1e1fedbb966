package parser

import (
	"fmt"

	"github.com/roach88/flwor/internal/expr"
)

// tokenKind classifies a token. Keywords are not separate kinds: XQuery
// keywords are reserved only in context, so the parser matches names.
type tokenKind uint8

const (
	tokEOF tokenKind = iota
	tokName
	tokVariable
	tokString
	tokInteger
	tokDouble
	tokSymbol
)

func (k tokenKind) String() string {
	switch k {
	case tokEOF:
		return "end of query"
	case tokName:
		return "name"
	case tokVariable:
		return "variable"
	case tokString:
		return "string literal"
	case tokInteger, tokDouble:
		return "number"
	case tokSymbol:
		return "symbol"
	}
	return fmt.Sprintf("token(%d)", int(k))
}

// token is one lexical unit. Text holds the name without "$" for
// variables and the unescaped value for strings.
type token struct {
	kind tokenKind
	text string
	loc  expr.Location
}

func (t token) String() string {
	switch t.kind {
	case tokEOF:
		return "end of query"
	case tokVariable:
		return fmt.Sprintf("$%s", t.text)
	case tokString:
		return fmt.Sprintf("string %q", t.text)
	}
	return fmt.Sprintf("%q", t.text)
}

// is reports whether t is the symbol or name s.
func (t token) is(s string) bool {
	return (t.kind == tokSymbol || t.kind == tokName) && t.text == s
}

// symbols lists the punctuation tokens, longest first for each lead byte.
var symbols = []string{
	":=", "!=", "<=", ">=",
	"(", ")", "[", "]", "{", "}", ",", ";", ":", ".", "?", "/",
	"=", "<", ">", "+", "-", "*",
}
