package flwor

import (
	"github.com/roach88/flwor/internal/expr"
	"github.com/roach88/flwor/internal/ir"
)

// Expression is a FLWOR expression: clauses followed by a return
// expression. It implements expr.Expression.
type Expression struct {
	loc     expr.Location
	Clauses []Clause
	Return  expr.Operand
}

// New creates a FLWOR expression. Clauses are in textual order.
func New(clauses []Clause, ret expr.Expression, loc expr.Location) *Expression {
	e := &Expression{loc: loc, Clauses: clauses, Return: expr.NewOperand(ret)}
	e.refresh()
	return e
}

func (e *Expression) Location() expr.Location {
	return e.loc
}

// Iterate evaluates the expression in pull mode.
func (e *Expression) Iterate(c *expr.Context) (expr.Iterator, error) {
	var stream PullStream = &singularityPull{}
	for _, cl := range e.Clauses {
		stream = cl.PullStream(c, stream)
	}
	return &returnIterator{c: c, stream: stream, ret: e.Return.Expr}, nil
}

// Process evaluates the expression in push mode, appending results to out.
func (e *Expression) Process(c *expr.Context, out expr.Receiver) error {
	var stream PushStream = &returnPush{ret: e.Return.Expr, out: out}
	for i := len(e.Clauses) - 1; i >= 0; i-- {
		stream = e.Clauses[i].PushStream(c, stream)
	}
	err := stream.Process(c)
	if cerr := stream.Close(c); err == nil {
		err = cerr
	}
	return err
}

// Evaluate materializes the result, in push mode when the environment
// prefers it.
func (e *Expression) Evaluate(c *expr.Context) (ir.Sequence, error) {
	if c.Env().PreferPush {
		var out expr.SequenceReceiver
		if err := e.Process(c, &out); err != nil {
			return nil, err
		}
		return out.Items, nil
	}
	it, err := e.Iterate(c)
	if err != nil {
		return nil, err
	}
	return expr.Drain(it)
}

// EffectiveBooleanValue pulls at most two items.
func (e *Expression) EffectiveBooleanValue(c *expr.Context) (bool, error) {
	it, err := e.Iterate(c)
	if err != nil {
		return false, err
	}
	defer it.Close()
	var head ir.Sequence
	for len(head) < 2 {
		item, err := it.Next()
		if err != nil {
			return false, err
		}
		if item == nil {
			break
		}
		head = append(head, item)
	}
	b, err := ir.EffectiveBooleanValue(head)
	if err != nil {
		return false, expr.DynamicError(expr.ErrInvalidArgument, e.loc, "%v", err)
	}
	return b, nil
}

func (e *Expression) StaticType() ir.SequenceType {
	ret := e.Return.Expr.StaticType()
	for _, cl := range e.Clauses {
		if cl.Kind() != KindLet && cl.Kind() != KindTrace {
			if ret.Occurrence == ir.Empty {
				return ret
			}
			return ir.NewSequenceType(ret.Item, ir.ZeroOrMore)
		}
	}
	return ret
}

func (e *Expression) Operands() []*expr.Operand {
	var ops []*expr.Operand
	for _, cl := range e.Clauses {
		ops = append(ops, cl.Operands()...)
	}
	return append(ops, &e.Return)
}

// Copy deep-copies the expression. Variables declared by its clauses are
// rebound, so the copy shares no bindings with the original.
func (e *Expression) Copy(r *expr.Rebinder) expr.Expression {
	clauses := make([]Clause, len(e.Clauses))
	for i, cl := range e.Clauses {
		clauses[i] = cl.Copy(r)
	}
	return New(clauses, e.Return.Expr.Copy(r), e.loc)
}

func (e *Expression) Explain(w *expr.ExplainWriter) {
	w.Begin("flwor")
	for _, cl := range e.Clauses {
		cl.Explain(w)
	}
	w.Begin("return")
	e.Return.Expr.Explain(w)
	w.End()
	w.End()
}

// TypeCheck checks each clause in order. After a clause is checked, the
// references to its variables in later clauses and the return expression
// are refined, so those are checked with the sharper types.
func (e *Expression) TypeCheck(sc *expr.StaticContext, contextItemType ir.ItemType) (expr.Expression, error) {
	for i, cl := range e.Clauses {
		if err := cl.TypeCheck(sc, contextItemType); err != nil {
			return nil, err
		}
		for _, op := range cl.Operands() {
			if expr.IsUpdating(op.Expr) {
				return nil, expr.StaticError(expr.ErrUpdatingExpression, op.Expr.Location(),
					"updating expression not allowed in %s clause", cl.Kind())
			}
		}
		for _, b := range cl.RangeVariables() {
			cl.RefineVariableType(b, e.referencesAfter(i, b))
		}
	}
	ret, err := expr.TypeCheck(sc, e.Return.Expr, contextItemType)
	if err != nil {
		return nil, err
	}
	e.Return.Expr = ret
	e.refresh()
	return e, nil
}

// InsertTraceClauses adds a trace clause after every clause. It is a no-op
// when the expression already has trace clauses.
func (e *Expression) InsertTraceClauses() {
	for _, cl := range e.Clauses {
		if cl.Kind() == KindTrace {
			return
		}
	}
	clauses := make([]Clause, 0, 2*len(e.Clauses))
	for _, cl := range e.Clauses {
		clauses = append(clauses, cl, NewTraceClause(Label(cl), cl.Location()))
	}
	e.Clauses = clauses
}

// referencesAfter returns the references to b in the clauses after index i
// and in the return expression.
func (e *Expression) referencesAfter(i int, b *expr.Binding) []*expr.VarRef {
	var refs []*expr.VarRef
	for _, cl := range e.Clauses[i+1:] {
		cl.GatherVariableReferences(b, &refs)
	}
	return append(refs, expr.References(e.Return.Expr, b)...)
}

// refresh recomputes the state derived from the clause list: the tuple
// layouts of order by clauses, the retained variables of group by clauses
// and the evaluation modes of let clauses. It runs whenever the clause list
// or the references to its variables change.
func (e *Expression) refresh() {
	var scope []*expr.Binding
	for i, cl := range e.Clauses {
		switch x := cl.(type) {
		case *OrderByClause:
			x.tuple = newTupleLayout(scope)
		case *GroupByClause:
			x.retain(func(rv RetainedVar) bool {
				return len(e.referencesAfter(i, rv.To)) > 0
			})
		}
		if cl.Kind() == KindGroupBy {
			scope = append([]*expr.Binding(nil), cl.RangeVariables()...)
		} else {
			scope = append(scope, cl.RangeVariables()...)
		}
	}
	for i, cl := range e.Clauses {
		if l, ok := cl.(*LetClause); ok {
			refs := len(e.referencesAfter(i, l.Var))
			l.setMode(expr.ChooseEvalMode(l.Value.Expr, refs, e.loopingAfter(i, l.Var)))
		}
	}
}

func (e *Expression) indexOf(cl Clause) int {
	for i, c := range e.Clauses {
		if c == cl {
			return i
		}
	}
	return -1
}
