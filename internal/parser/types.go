package parser

import (
	"github.com/roach88/flwor/internal/expr"
	"github.com/roach88/flwor/internal/ir"
)

// parseOptionalType parses "as SequenceType" when present.
func (p *parser) parseOptionalType() (*ir.SequenceType, error) {
	if !p.peek().is("as") {
		return nil, nil
	}
	p.advance()
	st, err := p.parseSequenceType()
	if err != nil {
		return nil, err
	}
	return &st, nil
}

// parseSequenceType parses "empty-sequence()" or an item type followed by
// an optional occurrence indicator.
func (p *parser) parseSequenceType() (ir.SequenceType, error) {
	t := p.peek()
	if t.kind != tokName {
		return ir.SequenceType{}, p.unexpected("a sequence type")
	}
	p.advance()

	name := t.text
	if p.peek().is("(") {
		p.advance()
		if p.peek().is("*") {
			p.advance()
			name += "(*)"
		} else {
			name += "()"
		}
		if err := p.expect(")"); err != nil {
			return ir.SequenceType{}, err
		}
	}
	if name == "empty-sequence()" {
		return ir.EmptySequence, nil
	}
	item, ok := ir.ParseItemType(name)
	if !ok {
		return ir.SequenceType{}, expr.StaticError(expr.ErrSyntax, t.loc, "unknown type %s", name)
	}

	occ := ir.ExactlyOne
	switch {
	case p.peek().is("?"):
		occ = ir.ZeroOrOne
	case p.peek().is("*"):
		occ = ir.ZeroOrMore
	case p.peek().is("+"):
		occ = ir.OneOrMore
	}
	if occ != ir.ExactlyOne {
		p.advance()
	}
	return ir.NewSequenceType(item, occ), nil
}
