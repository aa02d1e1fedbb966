package flwor

import (
	"github.com/roach88/flwor/internal/expr"
	"github.com/roach88/flwor/internal/ir"
)

// WhereClause is "where E". It drops the tuples for which E is false.
type WhereClause struct {
	loc       expr.Location
	Predicate expr.Operand

	// Deferred is set on a where term that the optimizer moved ahead of the
	// clauses it was written after. A dynamic error from the predicate then
	// keeps the tuple and is stored in Deferred's slot, to be raised by the
	// where clause left at the term's original position once a tuple reaches
	// it. A true predicate stores true.
	Deferred *expr.Binding
}

// newDeferredWhere creates the pair of clauses for a where term moved to
// the front: the moved term, and the check that stays in its place.
func newDeferredWhere(term expr.Expression, guard *expr.Binding) (moved, check *WhereClause) {
	moved = NewWhereClause(term, term.Location())
	moved.Deferred = guard
	check = NewWhereClause(expr.NewVarRef(guard, term.Location()), term.Location())
	return moved, check
}

// NewWhereClause creates a where clause.
func NewWhereClause(pred expr.Expression, loc expr.Location) *WhereClause {
	return &WhereClause{loc: loc, Predicate: expr.NewOperand(pred)}
}

func (w *WhereClause) Kind() Kind { return KindWhere }

func (w *WhereClause) Location() expr.Location { return w.loc }

func (w *WhereClause) Copy(r *expr.Rebinder) Clause {
	nw := NewWhereClause(w.Predicate.Expr.Copy(r), w.loc)
	nw.Deferred = r.Bind(w.Deferred)
	return nw
}

func (w *WhereClause) TypeCheck(sc *expr.StaticContext, contextItemType ir.ItemType) error {
	return typeCheckOperands(sc, w.Operands(), contextItemType)
}

func (w *WhereClause) Optimize(sc *expr.StaticContext, contextItemType ir.ItemType) error {
	return optimizeOperands(sc, w.Operands(), contextItemType)
}

func (w *WhereClause) RangeVariables() []*expr.Binding {
	if w.Deferred != nil {
		return []*expr.Binding{w.Deferred}
	}
	return nil
}

func (w *WhereClause) GatherVariableReferences(b *expr.Binding, refs *[]*expr.VarRef) {
	gatherReferences(w.Operands(), b, refs)
}

func (w *WhereClause) RefineVariableType(*expr.Binding, []*expr.VarRef) {}

func (w *WhereClause) ContainsNonInlineableVariableReference(*expr.Binding) bool {
	return false
}

func (w *WhereClause) Operands() []*expr.Operand {
	return []*expr.Operand{&w.Predicate}
}

func (w *WhereClause) Explain(ew *expr.ExplainWriter) {
	ew.Begin(Label(w))
	w.Predicate.Expr.Explain(ew)
	ew.End()
}

// test evaluates the predicate for the current tuple.
func (w *WhereClause) test(c *expr.Context) (bool, error) {
	keep, err := w.Predicate.Expr.EffectiveBooleanValue(c)
	if w.Deferred == nil {
		return keep, err
	}
	if err != nil {
		if _, ok := expr.CodeOf(err); !ok || expr.IsStaticError(err) {
			return false, err
		}
		c.SetValue(w.Deferred.Slot, failedValue{err: err})
		return true, nil
	}
	if keep {
		c.SetSequence(w.Deferred.Slot, ir.Sequence{ir.Bool(true)})
	}
	return keep, nil
}

// failedValue is a slot value whose evaluation failed.
type failedValue struct {
	err error
}

func (v failedValue) Force() (ir.Sequence, error) {
	return nil, v.err
}

func (w *WhereClause) PullStream(_ *expr.Context, base PullStream) PullStream {
	return &wherePull{clause: w, base: base}
}

func (w *WhereClause) PushStream(_ *expr.Context, dest PushStream) PushStream {
	return &wherePush{clause: w, dest: dest}
}

type wherePull struct {
	clause *WhereClause
	base   PullStream
}

func (s *wherePull) Next(c *expr.Context) (bool, error) {
	for {
		ok, err := s.base.Next(c)
		if err != nil || !ok {
			return false, err
		}
		keep, err := s.clause.test(c)
		if err != nil {
			return false, err
		}
		if keep {
			return true, nil
		}
	}
}

func (s *wherePull) Close(c *expr.Context) error {
	return s.base.Close(c)
}

type wherePush struct {
	clause *WhereClause
	dest   PushStream
}

func (s *wherePush) Process(c *expr.Context) error {
	keep, err := s.clause.test(c)
	if err != nil || !keep {
		return err
	}
	return s.dest.Process(c)
}

func (s *wherePush) Close(c *expr.Context) error {
	return s.dest.Close(c)
}
