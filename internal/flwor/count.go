package flwor

import (
	"github.com/roach88/flwor/internal/expr"
	"github.com/roach88/flwor/internal/ir"
)

// CountClause is "count $c": it numbers the tuples that reach it from 1.
type CountClause struct {
	loc expr.Location
	Var *expr.Binding
}

// NewCountClause creates a count clause.
func NewCountClause(v *expr.Binding, loc expr.Location) *CountClause {
	return &CountClause{loc: loc, Var: v}
}

func (n *CountClause) Kind() Kind { return KindCount }

func (n *CountClause) Location() expr.Location { return n.loc }

func (n *CountClause) Copy(r *expr.Rebinder) Clause {
	return NewCountClause(r.Bind(n.Var), n.loc)
}

func (n *CountClause) TypeCheck(*expr.StaticContext, ir.ItemType) error {
	if n.Var.Typed && !n.Var.Declared.Subsumes(ir.SingleInteger) {
		return expr.StaticError(expr.ErrTypeMismatch, n.loc,
			"count variable %s cannot have type %s", n.Var, n.Var.Declared)
	}
	return nil
}

func (n *CountClause) Optimize(*expr.StaticContext, ir.ItemType) error {
	return nil
}

func (n *CountClause) RangeVariables() []*expr.Binding {
	return []*expr.Binding{n.Var}
}

func (n *CountClause) GatherVariableReferences(*expr.Binding, *[]*expr.VarRef) {}

func (n *CountClause) RefineVariableType(b *expr.Binding, refs []*expr.VarRef) {
	if b == n.Var {
		refineAll(refs, ir.SingleInteger)
	}
}

func (n *CountClause) ContainsNonInlineableVariableReference(*expr.Binding) bool {
	return false
}

func (n *CountClause) Operands() []*expr.Operand {
	return nil
}

func (n *CountClause) Explain(w *expr.ExplainWriter) {
	w.Line("count " + n.Var.String())
}

func (n *CountClause) PullStream(_ *expr.Context, base PullStream) PullStream {
	return &countPull{clause: n, base: base}
}

func (n *CountClause) PushStream(_ *expr.Context, dest PushStream) PushStream {
	return &countPush{clause: n, dest: dest}
}

type countPull struct {
	clause *CountClause
	base   PullStream
	n      int64
}

func (s *countPull) Next(c *expr.Context) (bool, error) {
	ok, err := s.base.Next(c)
	if err != nil || !ok {
		return false, err
	}
	s.n++
	c.SetSequence(s.clause.Var.Slot, ir.Ints(s.n))
	return true, nil
}

func (s *countPull) Close(c *expr.Context) error {
	return s.base.Close(c)
}

type countPush struct {
	clause *CountClause
	dest   PushStream
	n      int64
}

func (s *countPush) Process(c *expr.Context) error {
	s.n++
	c.SetSequence(s.clause.Var.Slot, ir.Ints(s.n))
	return s.dest.Process(c)
}

func (s *countPush) Close(c *expr.Context) error {
	return s.dest.Close(c)
}
