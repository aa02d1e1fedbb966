package parser

import (
	"github.com/roach88/flwor/internal/expr"
	"github.com/roach88/flwor/internal/flwor"
	"github.com/roach88/flwor/internal/ir"
)

// flworScope tracks the variables bound by the clauses of one FLWOR
// expression. A group by clause rebinds them.
type flworScope struct {
	bound []*expr.Binding
}

// parseFLWOR parses an initial for or let clause, any further clauses and
// the return expression. The clauses share one scope that ends with the
// return expression.
func (p *parser) parseFLWOR() (expr.Expression, error) {
	loc := p.peek().loc
	p.vars.Enter()
	defer p.vars.Exit()

	fs := &flworScope{}
	var clauses []flwor.Clause
	for {
		t, next := p.peek(), p.peekAt(1)
		var (
			cls []flwor.Clause
			err error
		)
		switch {
		case t.is("for") && next.kind == tokVariable:
			cls, err = p.parseForClauses(fs)
		case t.is("for") && (next.is("tumbling") || next.is("sliding")):
			cls, err = p.parseWindowClause(fs)
		case t.is("let") && next.kind == tokVariable:
			cls, err = p.parseLetClauses(fs)
		case t.is("where"):
			cls, err = p.parseWhereClause()
		case t.is("order") && next.is("by"), t.is("stable") && next.is("order"):
			cls, err = p.parseOrderByClause()
		case t.is("group") && next.is("by"):
			cls, err = p.parseGroupByClause(fs)
		case t.is("count") && next.kind == tokVariable:
			cls, err = p.parseCountClause(fs)
		case t.is("return"):
			p.advance()
			ret, err := p.parseExprSingle()
			if err != nil {
				return nil, err
			}
			return flwor.New(clauses, ret, loc), nil
		default:
			return nil, p.unexpected(`a FLWOR clause or "return"`)
		}
		if err != nil {
			return nil, err
		}
		clauses = append(clauses, cls...)
	}
}

// declare binds a variable of the current FLWOR expression.
func (p *parser) declare(fs *flworScope, t token, typ *ir.SequenceType) *expr.Binding {
	b := p.vars.Declare(t.text, typ)
	fs.bound = append(fs.bound, b)
	return b
}

// parseForClauses parses "for $x [as T] [allowing empty] [at $p] in E, ...".
// Each binding becomes its own clause.
func (p *parser) parseForClauses(fs *flworScope) ([]flwor.Clause, error) {
	p.advance()
	var clauses []flwor.Clause
	for {
		v, err := p.expectVariable()
		if err != nil {
			return nil, err
		}
		typ, err := p.parseOptionalType()
		if err != nil {
			return nil, err
		}
		allowingEmpty := false
		if p.peek().is("allowing") {
			p.advance()
			if err := p.expect("empty"); err != nil {
				return nil, err
			}
			allowingEmpty = true
		}
		var pos token
		if p.peek().is("at") {
			p.advance()
			if pos, err = p.expectVariable(); err != nil {
				return nil, err
			}
			if pos.text == v.text {
				return nil, expr.StaticError(expr.ErrSyntax, pos.loc,
					"positional variable $%s has the same name as the range variable", pos.text)
			}
		}
		if err := p.expect("in"); err != nil {
			return nil, err
		}
		in, err := p.parseExprSingle()
		if err != nil {
			return nil, err
		}

		b := p.declare(fs, v, typ)
		var pb *expr.Binding
		if pos.kind == tokVariable {
			pb = p.declare(fs, pos, nil)
		}
		clauses = append(clauses, flwor.NewForClause(b, pb, in, allowingEmpty, v.loc))

		if !p.peek().is(",") {
			return clauses, nil
		}
		p.advance()
	}
}

// parseLetClauses parses "let $x [as T] := E, ...".
func (p *parser) parseLetClauses(fs *flworScope) ([]flwor.Clause, error) {
	p.advance()
	var clauses []flwor.Clause
	for {
		v, err := p.expectVariable()
		if err != nil {
			return nil, err
		}
		typ, err := p.parseOptionalType()
		if err != nil {
			return nil, err
		}
		if err := p.expect(":="); err != nil {
			return nil, err
		}
		value, err := p.parseExprSingle()
		if err != nil {
			return nil, err
		}
		clauses = append(clauses, flwor.NewLetClause(p.declare(fs, v, typ), value, v.loc))

		if !p.peek().is(",") {
			return clauses, nil
		}
		p.advance()
	}
}

// parseWindowClause parses
//
//	for tumbling|sliding window $w [as T] in E
//	  start [$s] [at $sp] [previous $sprev] [next $snext] when C
//	  [[only] end [$e] [at $ep] [previous $eprev] [next $enext] when C]
//
// Start variables are visible in both conditions, end variables in the end
// condition, and $w only after the clause.
func (p *parser) parseWindowClause(fs *flworScope) ([]flwor.Clause, error) {
	p.advance()
	loc := p.peek().loc
	sliding := p.advance().text == "sliding"
	if err := p.expect("window"); err != nil {
		return nil, err
	}
	v, err := p.expectVariable()
	if err != nil {
		return nil, err
	}
	typ, err := p.parseOptionalType()
	if err != nil {
		return nil, err
	}
	if err := p.expect("in"); err != nil {
		return nil, err
	}
	in, err := p.parseExprSingle()
	if err != nil {
		return nil, err
	}

	if err := p.expect("start"); err != nil {
		return nil, err
	}
	start, err := p.parseWindowCondition(fs)
	if err != nil {
		return nil, err
	}

	var end *flwor.WindowCondition
	onlyEnd := false
	if p.peek().is("only") {
		p.advance()
		onlyEnd = true
		if !p.peek().is("end") {
			return nil, p.unexpected(`"end"`)
		}
	}
	if p.peek().is("end") {
		p.advance()
		if end, err = p.parseWindowCondition(fs); err != nil {
			return nil, err
		}
	}

	w := p.declare(fs, v, typ)
	return []flwor.Clause{flwor.NewWindowClause(sliding, w, in, start, end, onlyEnd, loc)}, nil
}

func (p *parser) parseWindowCondition(fs *flworScope) (*flwor.WindowCondition, error) {
	var item, pos, prev, next *expr.Binding
	if p.peek().kind == tokVariable {
		item = p.declare(fs, p.advance(), nil)
	}
	optional := []struct {
		keyword string
		b       **expr.Binding
	}{
		{"at", &pos},
		{"previous", &prev},
		{"next", &next},
	}
	for _, o := range optional {
		if !p.peek().is(o.keyword) {
			continue
		}
		p.advance()
		t, err := p.expectVariable()
		if err != nil {
			return nil, err
		}
		*o.b = p.declare(fs, t, nil)
	}
	if err := p.expect("when"); err != nil {
		return nil, err
	}
	when, err := p.parseExprSingle()
	if err != nil {
		return nil, err
	}
	return flwor.NewWindowCondition(item, pos, prev, next, when), nil
}

func (p *parser) parseWhereClause() ([]flwor.Clause, error) {
	loc := p.advance().loc
	pred, err := p.parseExprSingle()
	if err != nil {
		return nil, err
	}
	return []flwor.Clause{flwor.NewWhereClause(pred, loc)}, nil
}

// parseOrderByClause parses "[stable] order by E [ascending|descending]
// [empty greatest|least] [collation URI], ...". The empty sequence sorts
// least unless stated otherwise.
func (p *parser) parseOrderByClause() ([]flwor.Clause, error) {
	loc := p.peek().loc
	stable := false
	if p.peek().is("stable") {
		p.advance()
		stable = true
	}
	p.advance()
	if err := p.expect("by"); err != nil {
		return nil, err
	}

	var keys []flwor.SortKey
	for {
		e, err := p.parseExprSingle()
		if err != nil {
			return nil, err
		}
		key := flwor.SortKey{Key: expr.NewOperand(e), EmptyLeast: true}
		switch {
		case p.peek().is("ascending"):
			p.advance()
		case p.peek().is("descending"):
			p.advance()
			key.Descending = true
		}
		if p.peek().is("empty") {
			p.advance()
			switch {
			case p.peek().is("greatest"):
				key.EmptyLeast = false
			case p.peek().is("least"):
			default:
				return nil, p.unexpected(`"greatest" or "least"`)
			}
			p.advance()
		}
		if key.Collation, err = p.parseOptionalCollation(); err != nil {
			return nil, err
		}
		keys = append(keys, key)

		if !p.peek().is(",") {
			return []flwor.Clause{flwor.NewOrderByClause(keys, stable, loc)}, nil
		}
		p.advance()
	}
}

func (p *parser) parseOptionalCollation() (string, error) {
	if !p.peek().is("collation") {
		return "", nil
	}
	p.advance()
	t := p.peek()
	if t.kind != tokString {
		return "", p.unexpected("a collation URI")
	}
	p.advance()
	return t.text, nil
}

// parseGroupByClause parses "group by $k [as T] [:= E] [collation URI],
// ...". A grouping variable without ":=" groups by the variable of that
// name. Afterwards every other variable of the FLWOR expression is rebound
// to the concatenation of its values across the group.
func (p *parser) parseGroupByClause(fs *flworScope) ([]flwor.Clause, error) {
	loc := p.advance().loc
	p.advance()

	type pending struct {
		name token
		typ  *ir.SequenceType
		key  expr.Expression
		coll string
	}
	var specs []pending
	for {
		v, err := p.expectVariable()
		if err != nil {
			return nil, err
		}
		spec := pending{name: v}
		if spec.typ, err = p.parseOptionalType(); err != nil {
			return nil, err
		}
		if p.peek().is(":=") {
			p.advance()
			if spec.key, err = p.parseExprSingle(); err != nil {
				return nil, err
			}
		} else {
			if spec.key, err = p.resolveVariable(v); err != nil {
				return nil, err
			}
		}
		if spec.coll, err = p.parseOptionalCollation(); err != nil {
			return nil, err
		}
		specs = append(specs, spec)

		if !p.peek().is(",") {
			break
		}
		p.advance()
	}

	grouping := make(map[string]bool, len(specs))
	for _, s := range specs {
		grouping[s.name.text] = true
	}
	var retained []flwor.RetainedVar
	for _, b := range fs.bound {
		if grouping[b.Name] {
			continue
		}
		if visible, _ := p.vars.Lookup(b.Name); visible != b {
			continue
		}
		retained = append(retained, flwor.RetainedVar{
			From: expr.NewOperand(expr.NewVarRef(b, loc)),
		})
	}

	fs.bound = nil
	groupingSpecs := make([]flwor.GroupingSpec, len(specs))
	for i, s := range specs {
		groupingSpecs[i] = flwor.GroupingSpec{
			Var:       p.declare(fs, s.name, s.typ),
			Key:       expr.NewOperand(s.key),
			Collation: s.coll,
		}
	}
	for i := range retained {
		from := retained[i].From.Expr.(*expr.VarRef).Binding
		// The retained value is a concatenation, so no declared type carries over.
		retained[i].To = p.declare(fs, token{kind: tokVariable, text: from.Name, loc: loc}, nil)
	}
	return []flwor.Clause{flwor.NewGroupByClause(groupingSpecs, retained, loc)}, nil
}

func (p *parser) parseCountClause(fs *flworScope) ([]flwor.Clause, error) {
	p.advance()
	v, err := p.expectVariable()
	if err != nil {
		return nil, err
	}
	return []flwor.Clause{flwor.NewCountClause(p.declare(fs, v, nil), v.loc)}, nil
}
