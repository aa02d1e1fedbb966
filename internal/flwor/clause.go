package flwor

import (
	"github.com/roach88/flwor/internal/expr"
	"github.com/roach88/flwor/internal/ir"
)

// Kind tags the clause variants.
type Kind int

const (
	KindFor Kind = iota
	KindLet
	KindWindow
	KindGroupBy
	KindCount
	KindOrderBy
	KindWhere
	KindTrace
)

var kindNames = map[Kind]string{
	KindFor:     "for",
	KindLet:     "let",
	KindWindow:  "window",
	KindGroupBy: "group by",
	KindCount:   "count",
	KindOrderBy: "order by",
	KindWhere:   "where",
	KindTrace:   "trace",
}

func (k Kind) String() string {
	if name, ok := kindNames[k]; ok {
		return name
	}
	return "unknown"
}

// loops reports whether a clause of this kind can emit more tuples than it
// receives, so expressions after it are evaluated repeatedly.
func (k Kind) loops() bool {
	return k == KindFor || k == KindWindow || k == KindGroupBy
}

// Clause is one clause of a FLWOR expression.
type Clause interface {
	Kind() Kind
	Location() expr.Location

	// Copy deep-copies the clause. Variables the clause declares get fresh
	// bindings registered with r so that later clauses and the return
	// expression of the copy refer to them.
	Copy(r *expr.Rebinder) Clause

	// TypeCheck checks the clause's expressions against the declared types
	// of the variables it binds, possibly wrapping them in run-time checks.
	TypeCheck(sc *expr.StaticContext, contextItemType ir.ItemType) error

	// Optimize optimizes the clause's expressions.
	Optimize(sc *expr.StaticContext, contextItemType ir.ItemType) error

	// RangeVariables returns the variables the clause declares, in binding
	// order.
	RangeVariables() []*expr.Binding

	// GatherVariableReferences appends the references to b found in the
	// clause's expressions.
	GatherVariableReferences(b *expr.Binding, refs *[]*expr.VarRef)

	// RefineVariableType sharpens the static type at the references of b,
	// one of the clause's range variables, from what the clause knows about
	// the values it binds.
	RefineVariableType(b *expr.Binding, refs []*expr.VarRef)

	// PullStream wraps base with this clause's pull stage.
	PullStream(c *expr.Context, base PullStream) PullStream

	// PushStream wraps dest with this clause's push stage.
	PushStream(c *expr.Context, dest PushStream) PushStream

	// ContainsNonInlineableVariableReference reports whether substituting the
	// value of b for its references would be unsound across this clause.
	ContainsNonInlineableVariableReference(b *expr.Binding) bool

	// Operands returns the clause's expressions.
	Operands() []*expr.Operand

	// Explain writes the clause for plan output.
	Explain(w *expr.ExplainWriter)
}

// Label names a clause in plan output, logs and trace events.
func Label(cl Clause) string {
	label := cl.Kind().String()
	for _, b := range cl.RangeVariables() {
		label += " " + b.String()
	}
	return label
}

func gatherReferences(ops []*expr.Operand, b *expr.Binding, refs *[]*expr.VarRef) {
	for _, op := range ops {
		*refs = append(*refs, expr.References(op.Expr, b)...)
	}
}

func typeCheckOperands(sc *expr.StaticContext, ops []*expr.Operand, contextItemType ir.ItemType) error {
	for _, op := range ops {
		e, err := expr.TypeCheck(sc, op.Expr, contextItemType)
		if err != nil {
			return err
		}
		op.Expr = e
	}
	return nil
}

func optimizeOperands(sc *expr.StaticContext, ops []*expr.Operand, contextItemType ir.ItemType) error {
	for _, op := range ops {
		e, err := expr.Optimize(sc, op.Expr, contextItemType)
		if err != nil {
			return err
		}
		op.Expr = e
	}
	return nil
}

// checkBinding verifies the type of an expression bound to b.
func checkBinding(e expr.Expression, b *expr.Binding, required ir.SequenceType) (expr.Expression, error) {
	if !b.Typed {
		return e, nil
	}
	return expr.StaticCheck(e, required, "variable "+b.String())
}

func refineAll(refs []*expr.VarRef, t ir.SequenceType) {
	for _, ref := range refs {
		ref.Refine(t)
	}
}
