package flwor

import (
	"github.com/roach88/flwor/internal/expr"
	"github.com/roach88/flwor/internal/ir"
)

// Optimize rewrites the expression. It may return a different expression:
// a nest of expr.For and expr.Let when only plain for and let clauses
// remain, wrapped in "let $ctx := ." when where clauses read the context
// item.
func (e *Expression) Optimize(sc *expr.StaticContext, contextItemType ir.ItemType) (expr.Expression, error) {
	for _, cl := range e.Clauses {
		if err := cl.Optimize(sc, contextItemType); err != nil {
			return nil, err
		}
	}
	ret, err := expr.Optimize(sc, e.Return.Expr, contextItemType)
	if err != nil {
		return nil, err
	}
	e.Return.Expr = ret

	e.inlineLets()

	var ctxVar *expr.Binding
	if e.whereFocusDependencies()&(expr.DepPosition|expr.DepLast) == 0 {
		ctxVar = e.factorContextItem(sc, contextItemType)
		if err := e.rewriteWhereClauses(sc); err != nil {
			return nil, err
		}
	}
	e.refresh()

	var result expr.Expression = e
	if collapsed, ok := e.collapse(); ok {
		result = collapsed
	}
	if ctxVar != nil {
		result = expr.NewLet(ctxVar, expr.NewContextItem(e.loc), result, e.loc)
	}
	sc.Log().Debug("optimized flwor",
		"clauses", len(e.Clauses),
		"collapsed", result != expr.Expression(e))
	return result, nil
}

func (e *Expression) whereFocusDependencies() expr.Deps {
	var deps expr.Deps
	for _, cl := range e.Clauses {
		if w, ok := cl.(*WhereClause); ok {
			deps |= expr.FocusDependencies(w.Predicate.Expr)
		}
	}
	return deps
}

// factorContextItem replaces "." in where predicates with a reference to a
// new variable, which the caller binds to the context item around the whole
// expression. Where terms can then move into predicates, which change the
// focus. Returns nil when no where clause reads the context item.
func (e *Expression) factorContextItem(sc *expr.StaticContext, contextItemType ir.ItemType) *expr.Binding {
	if e.whereFocusDependencies()&expr.DepContextItem == 0 {
		return nil
	}
	ctxVar := expr.NewBinding("ctx", sc.Slots.Allocate())
	t := ir.NewSequenceType(contextItemType, ir.ExactlyOne)
	for _, cl := range e.Clauses {
		w, ok := cl.(*WhereClause)
		if !ok {
			continue
		}
		w.Predicate.Expr = expr.ReplaceContextItem(w.Predicate.Expr, func(ci *expr.ContextItem) expr.Expression {
			ref := expr.NewVarRef(ctxVar, ci.Location())
			ref.Refine(t)
			return ref
		})
	}
	return ctxVar
}

// inlineLets substitutes the value of a let variable for its only
// reference when that reference is evaluated at most once per binding and
// no clause in between captures variables by slot.
func (e *Expression) inlineLets() {
	for i := 0; i < len(e.Clauses); i++ {
		l, ok := e.Clauses[i].(*LetClause)
		if !ok || !e.inlineable(i, l) {
			continue
		}
		value := l.Value.Expr
		for _, op := range e.Operands() {
			op.Expr = expr.ReplaceVariable(op.Expr, l.Var, func(*expr.VarRef) expr.Expression {
				return value
			})
		}
		e.Clauses = append(e.Clauses[:i], e.Clauses[i+1:]...)
		i--
	}
}

func (e *Expression) inlineable(i int, l *LetClause) bool {
	value := l.Value.Expr
	if l.Var.Typed || expr.IsNonDeterministic(value) || expr.DependsOnFocus(value) || expr.IsUpdating(value) {
		return false
	}
	if len(e.referencesAfter(i, l.Var)) != 1 || e.loopingAfter(i, l.Var) {
		return false
	}
	for _, cl := range e.Clauses[i+1:] {
		if cl.ContainsNonInlineableVariableReference(l.Var) {
			return false
		}
		var refs []*expr.VarRef
		cl.GatherVariableReferences(l.Var, &refs)
		if len(refs) > 0 {
			break
		}
	}
	return true
}

// rewriteWhereClauses moves every where term next to the clause it depends
// on, absorbing it into a for clause's source sequence where possible.
//
// Clauses are tracked by identity, not index, since the list changes while
// terms move. Terms of one where clause are processed right to left and
// each is inserted directly after its dependency, which keeps terms that
// land on the same clause in their original order. A term that moves to
// the front leaves a check at its old place, so an error it raises surfaces
// only if a tuple would have reached it.
func (e *Expression) rewriteWhereClauses(sc *expr.StaticContext) error {
	var wheres []*WhereClause
	for _, cl := range e.Clauses {
		if w, ok := cl.(*WhereClause); ok {
			wheres = append(wheres, w)
		}
	}
	for _, w := range wheres {
		i := e.indexOf(w)
		var anchor Clause
		if i > 0 {
			anchor = e.Clauses[i-1]
		}
		e.Clauses = append(e.Clauses[:i], e.Clauses[i+1:]...)

		terms := expr.SplitAnd(w.Predicate.Expr)
		for t := len(terms) - 1; t >= 0; t-- {
			term := terms[t]
			if lit, ok := term.(*expr.Literal); ok && isTrue(lit) {
				continue
			}
			dep := e.dependency(anchor, term)
			if f, ok := dep.(*ForClause); ok && !f.AllowingEmpty {
				elsewhere := f.Position != nil && e.positionReferenced(f.Position, terms[:t])
				absorbed, err := f.AddPredicate(sc, term, elsewhere)
				if err != nil {
					return err
				}
				if absorbed {
					continue
				}
			}
			if dep == nil && anchor != nil {
				moved, check := newDeferredWhere(term, expr.NewBinding("guard", sc.Slots.Allocate()))
				e.insertAfter(anchor, check)
				e.insertAfter(nil, moved)
				continue
			}
			e.insertAfter(dep, NewWhereClause(term, term.Location()))
		}
	}
	return nil
}

func isTrue(lit *expr.Literal) bool {
	if len(lit.Value) != 1 {
		return false
	}
	b, ok := lit.Value[0].(ir.Bool)
	return ok && bool(b)
}

// dependency returns the rightmost clause at or before anchor that term
// depends on. A count clause is a barrier: terms never move before it.
// Terms with side effects stay at anchor. Returns nil when term may move to
// the front.
func (e *Expression) dependency(anchor Clause, term expr.Expression) Clause {
	if anchor == nil || expr.IsNonDeterministic(term) {
		return anchor
	}
	for j := e.indexOf(anchor); j >= 0; j-- {
		cl := e.Clauses[j]
		if cl.Kind() == KindCount || expr.DependsOnAny(term, cl.RangeVariables()) {
			return cl
		}
	}
	return nil
}

// positionReferenced reports whether p is referenced by any clause, the
// return expression or one of the pending terms.
func (e *Expression) positionReferenced(p *expr.Binding, pending []expr.Expression) bool {
	if len(e.referencesAfter(-1, p)) > 0 {
		return true
	}
	for _, t := range pending {
		if expr.DependsOnVariable(t, p) {
			return true
		}
	}
	return false
}

func (e *Expression) insertAfter(dep Clause, cl Clause) {
	i := 0
	if dep != nil {
		i = e.indexOf(dep) + 1
	}
	e.Clauses = append(e.Clauses, nil)
	copy(e.Clauses[i+1:], e.Clauses[i:])
	e.Clauses[i] = cl
}

// collapse turns an expression made only of plain for clauses and let
// clauses into nested expr.For and expr.Let primitives.
func (e *Expression) collapse() (expr.Expression, bool) {
	for _, cl := range e.Clauses {
		switch x := cl.(type) {
		case *ForClause:
			if x.Position != nil || x.AllowingEmpty {
				return nil, false
			}
		case *LetClause:
		default:
			return nil, false
		}
	}
	body := e.Return.Expr
	for i := len(e.Clauses) - 1; i >= 0; i-- {
		switch x := e.Clauses[i].(type) {
		case *ForClause:
			body = expr.NewFor(x.Var, x.Sequence.Expr, body, x.loc)
		case *LetClause:
			l := expr.NewLet(x.Var, x.Value.Expr, body, x.loc)
			l.Mode = x.Mode
			body = l
		}
	}
	return body, true
}
