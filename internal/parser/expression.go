package parser

import (
	"strconv"

	"github.com/roach88/flwor/internal/expr"
	"github.com/roach88/flwor/internal/ir"
)

var generalOps = map[string]expr.CompareOp{
	"=":  expr.OpEq,
	"!=": expr.OpNe,
	"<":  expr.OpLt,
	"<=": expr.OpLe,
	">":  expr.OpGt,
	">=": expr.OpGe,
}

var valueOps = map[string]expr.CompareOp{
	"eq": expr.OpEq,
	"ne": expr.OpNe,
	"lt": expr.OpLt,
	"le": expr.OpLe,
	"gt": expr.OpGt,
	"ge": expr.OpGe,
}

var multiplicativeOps = map[string]expr.ArithOp{
	"*":    expr.OpMul,
	"div":  expr.OpDiv,
	"idiv": expr.OpIDiv,
	"mod":  expr.OpMod,
}

// parseExpr parses ExprSingle ("," ExprSingle)*.
func (p *parser) parseExpr() (expr.Expression, error) {
	loc := p.peek().loc
	first, err := p.parseExprSingle()
	if err != nil {
		return nil, err
	}
	if !p.peek().is(",") {
		return first, nil
	}
	items := []expr.Expression{first}
	for p.peek().is(",") {
		p.advance()
		e, err := p.parseExprSingle()
		if err != nil {
			return nil, err
		}
		items = append(items, e)
	}
	return expr.NewSequenceExpr(items, loc), nil
}

func (p *parser) parseExprSingle() (expr.Expression, error) {
	t, next := p.peek(), p.peekAt(1)
	switch {
	case t.is("for") && (next.kind == tokVariable || next.is("tumbling") || next.is("sliding")):
		return p.parseFLWOR()
	case t.is("let") && next.kind == tokVariable:
		return p.parseFLWOR()
	case t.is("if") && next.is("("):
		return p.parseIf()
	}
	return p.parseOr()
}

func (p *parser) parseIf() (expr.Expression, error) {
	loc := p.advance().loc
	if err := p.expect("("); err != nil {
		return nil, err
	}
	cond, err := p.parseExpr()
	if err != nil {
		return nil, err
	}
	if err := p.expect(")"); err != nil {
		return nil, err
	}
	if err := p.expect("then"); err != nil {
		return nil, err
	}
	then, err := p.parseExprSingle()
	if err != nil {
		return nil, err
	}
	if err := p.expect("else"); err != nil {
		return nil, err
	}
	els, err := p.parseExprSingle()
	if err != nil {
		return nil, err
	}
	return expr.NewIf(cond, then, els, loc), nil
}

func (p *parser) parseOr() (expr.Expression, error) {
	lhs, err := p.parseAnd()
	if err != nil {
		return nil, err
	}
	for p.peek().is("or") {
		loc := p.advance().loc
		rhs, err := p.parseAnd()
		if err != nil {
			return nil, err
		}
		lhs = expr.NewOr(lhs, rhs, loc)
	}
	return lhs, nil
}

func (p *parser) parseAnd() (expr.Expression, error) {
	lhs, err := p.parseComparison()
	if err != nil {
		return nil, err
	}
	for p.peek().is("and") {
		loc := p.advance().loc
		rhs, err := p.parseComparison()
		if err != nil {
			return nil, err
		}
		lhs = expr.NewAnd(lhs, rhs, loc)
	}
	return lhs, nil
}

// parseComparison parses one optional comparison; comparisons do not
// chain.
func (p *parser) parseComparison() (expr.Expression, error) {
	lhs, err := p.parseRange()
	if err != nil {
		return nil, err
	}
	t := p.peek()
	if op, ok := generalOps[t.text]; ok && t.kind == tokSymbol {
		p.advance()
		rhs, err := p.parseRange()
		if err != nil {
			return nil, err
		}
		return expr.NewGeneralComparison(op, lhs, rhs, t.loc), nil
	}
	if op, ok := valueOps[t.text]; ok && t.kind == tokName {
		p.advance()
		rhs, err := p.parseRange()
		if err != nil {
			return nil, err
		}
		return expr.NewValueComparison(op, lhs, rhs, t.loc), nil
	}
	return lhs, nil
}

func (p *parser) parseRange() (expr.Expression, error) {
	lhs, err := p.parseAdditive()
	if err != nil {
		return nil, err
	}
	if !p.peek().is("to") {
		return lhs, nil
	}
	loc := p.advance().loc
	rhs, err := p.parseAdditive()
	if err != nil {
		return nil, err
	}
	return expr.NewRange(lhs, rhs, loc), nil
}

func (p *parser) parseAdditive() (expr.Expression, error) {
	lhs, err := p.parseMultiplicative()
	if err != nil {
		return nil, err
	}
	for {
		t := p.peek()
		var op expr.ArithOp
		switch {
		case t.kind == tokSymbol && t.text == "+":
			op = expr.OpAdd
		case t.kind == tokSymbol && t.text == "-":
			op = expr.OpSub
		default:
			return lhs, nil
		}
		p.advance()
		rhs, err := p.parseMultiplicative()
		if err != nil {
			return nil, err
		}
		lhs = expr.NewArithmetic(op, lhs, rhs, t.loc)
	}
}

func (p *parser) parseMultiplicative() (expr.Expression, error) {
	lhs, err := p.parseUnary()
	if err != nil {
		return nil, err
	}
	for {
		t := p.peek()
		op, ok := multiplicativeOps[t.text]
		if !ok || (t.kind != tokSymbol && t.kind != tokName) || (t.kind == tokSymbol) != (t.text == "*") {
			return lhs, nil
		}
		p.advance()
		rhs, err := p.parseUnary()
		if err != nil {
			return nil, err
		}
		lhs = expr.NewArithmetic(op, lhs, rhs, t.loc)
	}
}

// parseUnary parses a run of sign prefixes. "+" is the identity here.
func (p *parser) parseUnary() (expr.Expression, error) {
	t := p.peek()
	negate := false
	for p.peek().kind == tokSymbol && (p.peek().text == "-" || p.peek().text == "+") {
		if p.advance().text == "-" {
			negate = !negate
		}
	}
	e, err := p.parsePath()
	if err != nil {
		return nil, err
	}
	if negate {
		return expr.NewNegate(e, t.loc), nil
	}
	return e, nil
}

// parsePath parses Postfix ("/" Step)*.
func (p *parser) parsePath() (expr.Expression, error) {
	e, err := p.parsePostfix()
	if err != nil {
		return nil, err
	}
	for p.peek().kind == tokSymbol && p.peek().text == "/" {
		loc := p.advance().loc
		step, err := p.parseStep()
		if err != nil {
			return nil, err
		}
		e = expr.NewPath(e, step, loc)
	}
	return e, nil
}

// parseStep parses the right side of "/": a field name, "*" for every
// member, or any postfix expression evaluated with each item as focus.
func (p *parser) parseStep() (expr.Expression, error) {
	t := p.peek()
	switch {
	case t.kind == tokName && !p.peekAt(1).is("("):
		p.advance()
		return p.parsePostfixOps(expr.NewLookup(nil, expr.LookupKey{Name: t.text}, t.loc))
	case t.kind == tokSymbol && t.text == "*":
		p.advance()
		return p.parsePostfixOps(expr.NewLookup(nil, expr.LookupKey{Wildcard: true}, t.loc))
	}
	return p.parsePostfix()
}

func (p *parser) parsePostfix() (expr.Expression, error) {
	e, err := p.parsePrimary()
	if err != nil {
		return nil, err
	}
	return p.parsePostfixOps(e)
}

// parsePostfixOps applies trailing "[predicate]" filters and "?key"
// lookups to e.
func (p *parser) parsePostfixOps(e expr.Expression) (expr.Expression, error) {
	for {
		t := p.peek()
		switch {
		case t.kind == tokSymbol && t.text == "[":
			p.advance()
			pred, err := p.parseExpr()
			if err != nil {
				return nil, err
			}
			if err := p.expect("]"); err != nil {
				return nil, err
			}
			e = expr.NewFilter(e, pred, t.loc)
		case t.kind == tokSymbol && t.text == "?":
			p.advance()
			key, err := p.parseKeySpecifier()
			if err != nil {
				return nil, err
			}
			e = expr.NewLookup(e, key, t.loc)
		default:
			return e, nil
		}
	}
}

// parseKeySpecifier parses the part after "?": a name, a 1-based integer
// index or "*".
func (p *parser) parseKeySpecifier() (expr.LookupKey, error) {
	t := p.peek()
	switch {
	case t.kind == tokName:
		p.advance()
		return expr.LookupKey{Name: t.text}, nil
	case t.kind == tokString:
		p.advance()
		return expr.LookupKey{Name: t.text}, nil
	case t.kind == tokInteger:
		p.advance()
		n, err := strconv.Atoi(t.text)
		if err != nil || n < 1 {
			return expr.LookupKey{}, expr.StaticError(expr.ErrSyntax, t.loc, "invalid array index %s", t.text)
		}
		return expr.LookupKey{Index: n}, nil
	case t.kind == tokSymbol && t.text == "*":
		p.advance()
		return expr.LookupKey{Wildcard: true}, nil
	}
	return expr.LookupKey{}, p.unexpected("a key after ?")
}

func (p *parser) parsePrimary() (expr.Expression, error) {
	t := p.peek()
	switch t.kind {
	case tokString:
		p.advance()
		return stringLiteral(t.text, t.loc), nil
	case tokInteger:
		p.advance()
		n, err := strconv.ParseInt(t.text, 10, 64)
		if err != nil {
			return nil, expr.StaticError(expr.ErrSyntax, t.loc, "integer literal %s out of range", t.text)
		}
		return expr.NewLiteral(ir.Sequence{ir.Int(n)}, t.loc), nil
	case tokDouble:
		p.advance()
		f, err := strconv.ParseFloat(t.text, 64)
		if err != nil {
			return nil, expr.StaticError(expr.ErrSyntax, t.loc, "invalid number %s", t.text)
		}
		return expr.NewLiteral(ir.Sequence{ir.Double(f)}, t.loc), nil
	case tokVariable:
		p.advance()
		return p.resolveVariable(t)
	case tokName:
		return p.parseNamed()
	case tokSymbol:
		switch t.text {
		case "(":
			return p.parseParenthesized()
		case ".":
			p.advance()
			return expr.NewContextItem(t.loc), nil
		case "?":
			p.advance()
			key, err := p.parseKeySpecifier()
			if err != nil {
				return nil, err
			}
			return expr.NewLookup(nil, key, t.loc), nil
		case "[":
			return p.parseSquareArray()
		}
	}
	return nil, p.unexpected("an expression")
}

func (p *parser) parseParenthesized() (expr.Expression, error) {
	loc := p.advance().loc
	if p.peek().is(")") {
		p.advance()
		return expr.EmptySequence(loc), nil
	}
	e, err := p.parseExpr()
	if err != nil {
		return nil, err
	}
	if err := p.expect(")"); err != nil {
		return nil, err
	}
	return e, nil
}

// parseNamed parses the primaries that start with a name: constructors,
// function calls, and bare field names, which select from the context
// item like "?name".
func (p *parser) parseNamed() (expr.Expression, error) {
	t, next := p.peek(), p.peekAt(1)
	switch {
	case t.text == "map" && next.is("{"):
		return p.parseMap()
	case t.text == "array" && next.is("{"):
		return p.parseCurlyArray()
	case next.kind == tokSymbol && next.text == "(":
		return p.parseFunctionCall()
	}
	p.advance()
	return expr.NewLookup(nil, expr.LookupKey{Name: t.text}, t.loc), nil
}

func (p *parser) parseFunctionCall() (expr.Expression, error) {
	name := p.advance()
	p.advance()
	var args []expr.Expression
	if !p.peek().is(")") {
		for {
			arg, err := p.parseExprSingle()
			if err != nil {
				return nil, err
			}
			args = append(args, arg)
			if !p.peek().is(",") {
				break
			}
			p.advance()
		}
	}
	if err := p.expect(")"); err != nil {
		return nil, err
	}
	fn, err := p.resolveFunction(name, len(args))
	if err != nil {
		return nil, err
	}
	return expr.NewFunctionCall(fn, args, name.loc), nil
}

// parseMap parses map { k : v, ... }.
func (p *parser) parseMap() (expr.Expression, error) {
	loc := p.advance().loc
	p.advance()
	var keys, values []expr.Expression
	if !p.peek().is("}") {
		for {
			k, err := p.parseExprSingle()
			if err != nil {
				return nil, err
			}
			if err := p.expect(":"); err != nil {
				return nil, err
			}
			v, err := p.parseExprSingle()
			if err != nil {
				return nil, err
			}
			keys = append(keys, k)
			values = append(values, v)
			if !p.peek().is(",") {
				break
			}
			p.advance()
		}
	}
	if err := p.expect("}"); err != nil {
		return nil, err
	}
	return expr.NewMapConstructor(keys, values, loc), nil
}

// parseSquareArray parses [a, b, ...]. Members are flattened, so [a, b] and
// array { a, b } build the same array.
func (p *parser) parseSquareArray() (expr.Expression, error) {
	loc := p.advance().loc
	if p.peek().is("]") {
		p.advance()
		return expr.NewArrayConstructor(nil, loc), nil
	}
	content, err := p.parseExpr()
	if err != nil {
		return nil, err
	}
	if err := p.expect("]"); err != nil {
		return nil, err
	}
	return expr.NewArrayConstructor(content, loc), nil
}

func (p *parser) parseCurlyArray() (expr.Expression, error) {
	loc := p.advance().loc
	p.advance()
	if p.peek().is("}") {
		p.advance()
		return expr.NewArrayConstructor(nil, loc), nil
	}
	content, err := p.parseExpr()
	if err != nil {
		return nil, err
	}
	if err := p.expect("}"); err != nil {
		return nil, err
	}
	return expr.NewArrayConstructor(content, loc), nil
}
