package expr

import (
	"github.com/roach88/flwor/internal/ir"
)

// MapConstructor is "map { k1 : v1, ... }" (also written "{ k1 : v1 }").
// A value of zero items becomes null and a value of several items becomes an
// array.
type MapConstructor struct {
	node
	// Entries alternates key and value operands.
	Entries []Operand
}

// NewMapConstructor creates a map constructor from parallel key and value
// lists.
func NewMapConstructor(keys, values []Expression, loc Location) *MapConstructor {
	m := &MapConstructor{node: node{loc: loc}}
	for i := range keys {
		m.Entries = append(m.Entries, NewOperand(keys[i]), NewOperand(values[i]))
	}
	return m
}

func (m *MapConstructor) Evaluate(c *Context) (ir.Sequence, error) {
	obj := make(ir.Object, len(m.Entries)/2)
	for i := 0; i < len(m.Entries); i += 2 {
		keyExpr := m.Entries[i].Expr
		key, err := EvaluateAtomic(keyExpr, c)
		if err != nil {
			return nil, err
		}
		if key == nil {
			return nil, DynamicError(ErrTypeMismatch, keyExpr.Location(), "map key is empty")
		}
		name := ir.StringValue(key)
		if _, dup := obj[name]; dup {
			return nil, DynamicError(ErrTypeMismatch, keyExpr.Location(), "duplicate map key %q", name)
		}
		val, err := m.Entries[i+1].Expr.Evaluate(c)
		if err != nil {
			return nil, err
		}
		switch len(val) {
		case 0:
			obj[name] = ir.Null{}
		case 1:
			obj[name] = val[0]
		default:
			obj[name] = ir.Array(val)
		}
	}
	return ir.Sequence{obj}, nil
}

func (m *MapConstructor) Iterate(c *Context) (Iterator, error) {
	return iterateEvaluated(m, c)
}

func (m *MapConstructor) Process(c *Context, out Receiver) error {
	return processEvaluated(m, c, out)
}

func (m *MapConstructor) EffectiveBooleanValue(c *Context) (bool, error) {
	return ebvEvaluated(m, c)
}

func (m *MapConstructor) StaticType() ir.SequenceType {
	return ir.NewSequenceType(ir.MapType, ir.ExactlyOne)
}

func (m *MapConstructor) Operands() []*Operand {
	ops := make([]*Operand, len(m.Entries))
	for i := range m.Entries {
		ops[i] = &m.Entries[i]
	}
	return ops
}

func (m *MapConstructor) Copy(r *Rebinder) Expression {
	nm := &MapConstructor{node: m.node, Entries: make([]Operand, len(m.Entries))}
	for i, op := range m.Entries {
		nm.Entries[i] = NewOperand(op.Expr.Copy(r))
	}
	return nm
}

func (m *MapConstructor) Explain(w *ExplainWriter) {
	w.Begin("map")
	for _, op := range m.Entries {
		op.Expr.Explain(w)
	}
	w.End()
}

// ArrayConstructor is "[ content ]"; every item of content becomes a member.
type ArrayConstructor struct {
	node
	Content Operand
}

// NewArrayConstructor creates [content]. A nil content builds [].
func NewArrayConstructor(content Expression, loc Location) *ArrayConstructor {
	if content == nil {
		content = EmptySequence(loc)
	}
	return &ArrayConstructor{node: node{loc: loc}, Content: NewOperand(content)}
}

func (a *ArrayConstructor) Evaluate(c *Context) (ir.Sequence, error) {
	seq, err := a.Content.Expr.Evaluate(c)
	if err != nil {
		return nil, err
	}
	arr := make(ir.Array, len(seq))
	copy(arr, seq)
	return ir.Sequence{arr}, nil
}

func (a *ArrayConstructor) Iterate(c *Context) (Iterator, error) {
	return iterateEvaluated(a, c)
}

func (a *ArrayConstructor) Process(c *Context, out Receiver) error {
	return processEvaluated(a, c, out)
}

func (a *ArrayConstructor) EffectiveBooleanValue(c *Context) (bool, error) {
	return ebvEvaluated(a, c)
}

func (a *ArrayConstructor) StaticType() ir.SequenceType {
	return ir.NewSequenceType(ir.ArrayType, ir.ExactlyOne)
}

func (a *ArrayConstructor) Operands() []*Operand {
	return []*Operand{&a.Content}
}

func (a *ArrayConstructor) Copy(r *Rebinder) Expression {
	return NewArrayConstructor(a.Content.Expr.Copy(r), a.loc)
}

func (a *ArrayConstructor) Explain(w *ExplainWriter) {
	w.Begin("array")
	a.Content.Expr.Explain(w)
	w.End()
}
