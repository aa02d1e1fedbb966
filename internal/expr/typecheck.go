package expr

import (
	"github.com/roach88/flwor/internal/ir"
)

// StaticCheck verifies that e can produce a value of the required type. It
// returns e unchanged when its static type already conforms, a wrapper that
// checks at run time when conformance is possible but not certain, or an
// XPTY0004 static error when no value of e's static type can conform. role
// names the checked position in error messages, e.g. "variable $x".
func StaticCheck(e Expression, required ir.SequenceType, role string) (Expression, error) {
	st := e.StaticType()
	if required.Subsumes(st) {
		return e, nil
	}
	if impossible(st, required) {
		return nil, StaticError(ErrTypeMismatch, e.Location(),
			"%s requires %s, expression has type %s", role, required, st)
	}
	out := e
	if st.Occurrence != ir.Empty && !required.Item.Subsumes(st.Item) {
		out = &ItemTypeCheck{node: node{loc: e.Location()}, Operand: NewOperand(out), Required: required.Item, Role: role}
	}
	if !required.Occurrence.Subsumes(st.Occurrence) {
		out = &CardinalityCheck{node: node{loc: e.Location()}, Operand: NewOperand(out), Required: required.Occurrence, Role: role}
	}
	return out, nil
}

// impossible reports whether no sequence of type st can match required.
func impossible(st, required ir.SequenceType) bool {
	if st.Occurrence == ir.Empty {
		return !required.Occurrence.AllowsZero()
	}
	if required.Occurrence == ir.Empty {
		return !st.Occurrence.AllowsZero()
	}
	disjoint := !required.Item.Subsumes(st.Item) && !st.Item.Subsumes(required.Item)
	return disjoint && !(st.Occurrence.AllowsZero() && required.Occurrence.AllowsZero())
}

// ItemTypeCheck fails at run time when an item of its operand is not an
// instance of the required item type.
type ItemTypeCheck struct {
	node
	Operand  Operand
	Required ir.ItemType
	Role     string
}

func (t *ItemTypeCheck) Evaluate(c *Context) (ir.Sequence, error) {
	seq, err := t.Operand.Expr.Evaluate(c)
	if err != nil {
		return nil, err
	}
	for _, it := range seq {
		if !t.Required.Matches(it) {
			return nil, DynamicError(ErrTypeMismatch, t.loc,
				"%s requires %s, got %s", t.Role, t.Required, ir.TypeName(it))
		}
	}
	return seq, nil
}

func (t *ItemTypeCheck) Iterate(c *Context) (Iterator, error) {
	return iterateEvaluated(t, c)
}

func (t *ItemTypeCheck) Process(c *Context, out Receiver) error {
	return processEvaluated(t, c, out)
}

func (t *ItemTypeCheck) EffectiveBooleanValue(c *Context) (bool, error) {
	return ebvEvaluated(t, c)
}

func (t *ItemTypeCheck) StaticType() ir.SequenceType {
	st := t.Operand.Expr.StaticType()
	st.Item = t.Required
	return st
}

func (t *ItemTypeCheck) Operands() []*Operand {
	return []*Operand{&t.Operand}
}

func (t *ItemTypeCheck) Copy(r *Rebinder) Expression {
	nt := *t
	nt.Operand = NewOperand(t.Operand.Expr.Copy(r))
	return &nt
}

func (t *ItemTypeCheck) Explain(w *ExplainWriter) {
	w.Begin("treat as " + t.Required.String())
	t.Operand.Expr.Explain(w)
	w.End()
}

// CardinalityCheck fails at run time when its operand's length does not
// satisfy the required occurrence.
type CardinalityCheck struct {
	node
	Operand  Operand
	Required ir.Occurrence
	Role     string
}

func (t *CardinalityCheck) Evaluate(c *Context) (ir.Sequence, error) {
	seq, err := t.Operand.Expr.Evaluate(c)
	if err != nil {
		return nil, err
	}
	if !t.Required.Permits(len(seq)) {
		return nil, DynamicError(ErrTypeMismatch, t.loc,
			"%s requires %s, got a sequence of %d items", t.Role, t.StaticType(), len(seq))
	}
	return seq, nil
}

func (t *CardinalityCheck) Iterate(c *Context) (Iterator, error) {
	return iterateEvaluated(t, c)
}

func (t *CardinalityCheck) Process(c *Context, out Receiver) error {
	return processEvaluated(t, c, out)
}

func (t *CardinalityCheck) EffectiveBooleanValue(c *Context) (bool, error) {
	return ebvEvaluated(t, c)
}

func (t *CardinalityCheck) StaticType() ir.SequenceType {
	return t.Operand.Expr.StaticType().WithOccurrence(t.Required)
}

func (t *CardinalityCheck) Operands() []*Operand {
	return []*Operand{&t.Operand}
}

func (t *CardinalityCheck) Copy(r *Rebinder) Expression {
	nt := *t
	nt.Operand = NewOperand(t.Operand.Expr.Copy(r))
	return &nt
}

func (t *CardinalityCheck) Explain(w *ExplainWriter) {
	w.Begin("check cardinality " + t.StaticType().String())
	t.Operand.Expr.Explain(w)
	w.End()
}
