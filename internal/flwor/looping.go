package flwor

import "github.com/roach88/flwor/internal/expr"

// loopingAfter reports whether some reference to b in the clauses after
// index i or in the return expression may be evaluated more than once per
// binding of b. A reference is looping when a for, window or group by clause
// sits between the declaration and the reference, or when the reference is
// looping within its own clause expression.
func (e *Expression) loopingAfter(i int, b *expr.Binding) bool {
	looped := false
	for _, cl := range e.Clauses[i+1:] {
		for _, op := range cl.Operands() {
			if !expr.DependsOnVariable(op.Expr, b) {
				continue
			}
			if looped || op.Looping || expr.IsLoopingReference(op.Expr, b) {
				return true
			}
		}
		if cl.Kind().loops() {
			looped = true
		}
	}
	if !expr.DependsOnVariable(e.Return.Expr, b) {
		return false
	}
	return looped || expr.IsLoopingReference(e.Return.Expr, b)
}

// HasLoopingVariableReference reports whether a reference to b, a variable
// declared outside this expression, is evaluated repeatedly during one
// evaluation of the expression.
func (e *Expression) HasLoopingVariableReference(b *expr.Binding) bool {
	return e.loopingAfter(-1, b)
}

// HasLoopingSubexpression reports whether child, a subexpression of one of
// the clauses or of the return expression, is evaluated repeatedly during
// one evaluation of the expression.
func (e *Expression) HasLoopingSubexpression(child expr.Expression) bool {
	looped := false
	for _, cl := range e.Clauses {
		for _, op := range cl.Operands() {
			if contains(op.Expr, child) {
				return looped || op.Looping
			}
		}
		if cl.Kind().loops() {
			looped = true
		}
	}
	return looped
}

func contains(root, target expr.Expression) bool {
	found := false
	expr.Walk(root, func(n expr.Expression) bool {
		if n == target {
			found = true
		}
		return !found
	})
	return found
}
