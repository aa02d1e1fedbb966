package flwor

import (
	"github.com/roach88/flwor/internal/expr"
	"github.com/roach88/flwor/internal/ir"
)

// LetClause is "let $x := E".
type LetClause struct {
	loc   expr.Location
	Var   *expr.Binding
	Value expr.Operand

	// Mode and captured are set by the owning Expression from the
	// references to Var; see expr.BindValue.
	Mode     expr.EvalMode
	captured []int
}

// NewLetClause creates a let clause. Until the owning expression is checked
// the value is bound lazily with memoization.
func NewLetClause(v *expr.Binding, value expr.Expression, loc expr.Location) *LetClause {
	return &LetClause{loc: loc, Var: v, Value: expr.NewOperand(value), Mode: expr.EvalMemo, captured: expr.ReferencedSlots(value)}
}

func (l *LetClause) Kind() Kind { return KindLet }

func (l *LetClause) Location() expr.Location { return l.loc }

func (l *LetClause) Copy(r *expr.Rebinder) Clause {
	value := l.Value.Expr.Copy(r)
	nl := NewLetClause(r.Bind(l.Var), value, l.loc)
	nl.Mode = l.Mode
	return nl
}

func (l *LetClause) TypeCheck(sc *expr.StaticContext, contextItemType ir.ItemType) error {
	if err := typeCheckOperands(sc, l.Operands(), contextItemType); err != nil {
		return err
	}
	value, err := checkBinding(l.Value.Expr, l.Var, l.Var.Declared)
	if err != nil {
		return err
	}
	l.Value.Expr = value
	return nil
}

func (l *LetClause) Optimize(sc *expr.StaticContext, contextItemType ir.ItemType) error {
	return optimizeOperands(sc, l.Operands(), contextItemType)
}

func (l *LetClause) RangeVariables() []*expr.Binding {
	return []*expr.Binding{l.Var}
}

func (l *LetClause) GatherVariableReferences(b *expr.Binding, refs *[]*expr.VarRef) {
	gatherReferences(l.Operands(), b, refs)
}

func (l *LetClause) RefineVariableType(b *expr.Binding, refs []*expr.VarRef) {
	if b == l.Var {
		refineAll(refs, l.Value.Expr.StaticType())
	}
}

func (l *LetClause) ContainsNonInlineableVariableReference(*expr.Binding) bool {
	return false
}

func (l *LetClause) Operands() []*expr.Operand {
	return []*expr.Operand{&l.Value}
}

func (l *LetClause) Explain(w *expr.ExplainWriter) {
	w.Begin("let " + l.Var.String() + " (" + l.Mode.String() + ")")
	l.Value.Expr.Explain(w)
	w.End()
}

// setMode fixes how the value is bound.
func (l *LetClause) setMode(mode expr.EvalMode) {
	l.Mode = mode
	l.captured = expr.ReferencedSlots(l.Value.Expr)
}

func (l *LetClause) bind(c *expr.Context) error {
	return expr.BindValue(c, l.Var, l.Value.Expr, l.Mode, l.captured)
}

func (l *LetClause) PullStream(_ *expr.Context, base PullStream) PullStream {
	return &letPull{clause: l, base: base}
}

func (l *LetClause) PushStream(_ *expr.Context, dest PushStream) PushStream {
	return &letPush{clause: l, dest: dest}
}

type letPull struct {
	clause *LetClause
	base   PullStream
}

func (s *letPull) Next(c *expr.Context) (bool, error) {
	ok, err := s.base.Next(c)
	if err != nil || !ok {
		return false, err
	}
	return true, s.clause.bind(c)
}

func (s *letPull) Close(c *expr.Context) error {
	return s.base.Close(c)
}

type letPush struct {
	clause *LetClause
	dest   PushStream
}

func (s *letPush) Process(c *expr.Context) error {
	if err := s.clause.bind(c); err != nil {
		return err
	}
	return s.dest.Process(c)
}

func (s *letPush) Close(c *expr.Context) error {
	return s.dest.Close(c)
}
