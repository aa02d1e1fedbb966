package expr

import (
	"github.com/roach88/flwor/internal/ir"
)

// Literal is a constant sequence.
type Literal struct {
	node
	Value ir.Sequence
}

// NewLiteral creates a literal.
func NewLiteral(value ir.Sequence, loc Location) *Literal {
	return &Literal{node: node{loc: loc}, Value: value}
}

// EmptySequence returns the literal ().
func EmptySequence(loc Location) *Literal {
	return NewLiteral(nil, loc)
}

func (l *Literal) Evaluate(*Context) (ir.Sequence, error) {
	return l.Value, nil
}

func (l *Literal) Iterate(*Context) (Iterator, error) {
	return SequenceIterator(l.Value), nil
}

func (l *Literal) Process(_ *Context, out Receiver) error {
	return appendAll(out, l.Value)
}

func (l *Literal) EffectiveBooleanValue(*Context) (bool, error) {
	return effectiveBooleanValue(l.Value, l.loc)
}

func (l *Literal) StaticType() ir.SequenceType {
	switch len(l.Value) {
	case 0:
		return ir.EmptySequence
	case 1:
		return ir.NewSequenceType(ir.ItemTypeOf(l.Value[0]), ir.ExactlyOne)
	}
	t := ir.ItemTypeOf(l.Value[0])
	for _, it := range l.Value[1:] {
		t = ir.CommonSupertype(t, ir.ItemTypeOf(it))
	}
	return ir.NewSequenceType(t, ir.OneOrMore)
}

func (l *Literal) Operands() []*Operand {
	return nil
}

func (l *Literal) Copy(*Rebinder) Expression {
	nl := *l
	return &nl
}

func (l *Literal) Explain(w *ExplainWriter) {
	w.Line("literal " + l.Value.String())
}

// ContextItem is the expression ".".
type ContextItem struct {
	node
	itemType ir.ItemType
}

// NewContextItem creates a context item expression.
func NewContextItem(loc Location) *ContextItem {
	return &ContextItem{node: node{loc: loc}, itemType: ir.AnyItem}
}

func (ci *ContextItem) Evaluate(c *Context) (ir.Sequence, error) {
	f := c.Focus()
	if f == nil {
		return nil, DynamicError(ErrContextAbsent, ci.loc, "context item is absent")
	}
	return ir.Sequence{f.Item}, nil
}

func (ci *ContextItem) Iterate(c *Context) (Iterator, error) {
	return iterateEvaluated(ci, c)
}

func (ci *ContextItem) Process(c *Context, out Receiver) error {
	return processEvaluated(ci, c, out)
}

func (ci *ContextItem) EffectiveBooleanValue(c *Context) (bool, error) {
	return ebvEvaluated(ci, c)
}

func (ci *ContextItem) StaticType() ir.SequenceType {
	return ir.NewSequenceType(ci.itemType, ir.ExactlyOne)
}

func (ci *ContextItem) Operands() []*Operand {
	return nil
}

func (ci *ContextItem) Copy(*Rebinder) Expression {
	n := *ci
	return &n
}

func (ci *ContextItem) Explain(w *ExplainWriter) {
	w.Line("context-item")
}

// TypeCheck records the static type of the focus.
func (ci *ContextItem) TypeCheck(_ *StaticContext, contextItemType ir.ItemType) (Expression, error) {
	ci.itemType = contextItemType
	return ci, nil
}

// SequenceExpr is the comma operator.
type SequenceExpr struct {
	node
	Items []Operand
}

// NewSequenceExpr creates (a, b, ...).
func NewSequenceExpr(items []Expression, loc Location) *SequenceExpr {
	s := &SequenceExpr{node: node{loc: loc}}
	for _, e := range items {
		s.Items = append(s.Items, NewOperand(e))
	}
	return s
}

func (s *SequenceExpr) Evaluate(c *Context) (ir.Sequence, error) {
	var out ir.Sequence
	for _, op := range s.Items {
		seq, err := op.Expr.Evaluate(c)
		if err != nil {
			return nil, err
		}
		out = append(out, seq...)
	}
	return out, nil
}

func (s *SequenceExpr) Iterate(c *Context) (Iterator, error) {
	return &concatIterator{c: c, ops: s.Items}, nil
}

func (s *SequenceExpr) Process(c *Context, out Receiver) error {
	for _, op := range s.Items {
		if err := op.Expr.Process(c, out); err != nil {
			return err
		}
	}
	return nil
}

func (s *SequenceExpr) EffectiveBooleanValue(c *Context) (bool, error) {
	return ebvEvaluated(s, c)
}

func (s *SequenceExpr) StaticType() ir.SequenceType {
	if len(s.Items) == 0 {
		return ir.EmptySequence
	}
	t := s.Items[0].Expr.StaticType()
	for _, op := range s.Items[1:] {
		ot := op.Expr.StaticType()
		occ := t.Occurrence.Concat(ot.Occurrence)
		item := t.Item
		switch {
		case t.Occurrence == ir.Empty:
			item = ot.Item
		case ot.Occurrence != ir.Empty:
			item = ir.CommonSupertype(t.Item, ot.Item)
		}
		t = ir.NewSequenceType(item, occ)
	}
	return t
}

func (s *SequenceExpr) Operands() []*Operand {
	ops := make([]*Operand, len(s.Items))
	for i := range s.Items {
		ops[i] = &s.Items[i]
	}
	return ops
}

func (s *SequenceExpr) Copy(r *Rebinder) Expression {
	ns := &SequenceExpr{node: s.node, Items: make([]Operand, len(s.Items))}
	for i, op := range s.Items {
		ns.Items[i] = Operand{Expr: op.Expr.Copy(r)}
	}
	return ns
}

func (s *SequenceExpr) Explain(w *ExplainWriter) {
	w.Begin("sequence")
	for _, op := range s.Items {
		op.Expr.Explain(w)
	}
	w.End()
}

// concatIterator pulls each member expression in turn.
type concatIterator struct {
	c   *Context
	ops []Operand
	cur Iterator
}

func (it *concatIterator) Next() (ir.Item, error) {
	for {
		if it.cur == nil {
			if len(it.ops) == 0 {
				return nil, nil
			}
			inner, err := it.ops[0].Expr.Iterate(it.c)
			if err != nil {
				return nil, err
			}
			it.cur = inner
			it.ops = it.ops[1:]
		}
		item, err := it.cur.Next()
		if err != nil || item != nil {
			return item, err
		}
		if err := it.cur.Close(); err != nil {
			return nil, err
		}
		it.cur = nil
	}
}

func (it *concatIterator) Close() error {
	it.ops = nil
	if it.cur != nil {
		err := it.cur.Close()
		it.cur = nil
		return err
	}
	return nil
}

// Range is "lo to hi".
type Range struct {
	node
	Low  Operand
	High Operand
}

// NewRange creates lo to hi.
func NewRange(lo, hi Expression, loc Location) *Range {
	return &Range{node: node{loc: loc}, Low: NewOperand(lo), High: NewOperand(hi)}
}

func (r *Range) bounds(c *Context) (int64, int64, bool, error) {
	lo, err := r.bound(c, r.Low.Expr)
	if err != nil || lo == nil {
		return 0, 0, false, err
	}
	hi, err := r.bound(c, r.High.Expr)
	if err != nil || hi == nil {
		return 0, 0, false, err
	}
	return *lo, *hi, true, nil
}

func (r *Range) bound(c *Context, e Expression) (*int64, error) {
	it, err := EvaluateAtomic(e, c)
	if err != nil || it == nil {
		return nil, err
	}
	switch v := it.(type) {
	case ir.Int:
		n := int64(v)
		return &n, nil
	case ir.Double:
		if f := float64(v); f == float64(int64(f)) {
			n := int64(f)
			return &n, nil
		}
	}
	return nil, DynamicError(ErrTypeMismatch, e.Location(), "range bound must be an integer, got %s", ir.TypeName(it))
}

func (r *Range) Evaluate(c *Context) (ir.Sequence, error) {
	lo, hi, ok, err := r.bounds(c)
	if err != nil || !ok || lo > hi {
		return nil, err
	}
	out := make(ir.Sequence, 0, hi-lo+1)
	for i := lo; i <= hi; i++ {
		out = append(out, ir.Int(i))
	}
	return out, nil
}

func (r *Range) Iterate(c *Context) (Iterator, error) {
	lo, hi, ok, err := r.bounds(c)
	if err != nil {
		return nil, err
	}
	if !ok {
		return SequenceIterator(nil), nil
	}
	return &rangeIterator{next: lo, hi: hi}, nil
}

func (r *Range) Process(c *Context, out Receiver) error {
	lo, hi, ok, err := r.bounds(c)
	if err != nil || !ok {
		return err
	}
	for i := lo; i <= hi; i++ {
		if err := out.Append(ir.Int(i)); err != nil {
			return err
		}
	}
	return nil
}

func (r *Range) EffectiveBooleanValue(c *Context) (bool, error) {
	return ebvEvaluated(r, c)
}

func (r *Range) StaticType() ir.SequenceType {
	return ir.NewSequenceType(ir.IntegerType, ir.ZeroOrMore)
}

func (r *Range) Operands() []*Operand {
	return []*Operand{&r.Low, &r.High}
}

func (r *Range) Copy(rb *Rebinder) Expression {
	return &Range{node: r.node, Low: NewOperand(r.Low.Expr.Copy(rb)), High: NewOperand(r.High.Expr.Copy(rb))}
}

func (r *Range) Explain(w *ExplainWriter) {
	w.Begin("range")
	r.Low.Expr.Explain(w)
	r.High.Expr.Explain(w)
	w.End()
}

type rangeIterator struct {
	next, hi int64
	done     bool
}

func (it *rangeIterator) Next() (ir.Item, error) {
	if it.done || it.next > it.hi {
		it.done = true
		return nil, nil
	}
	v := ir.Int(it.next)
	if it.next == it.hi {
		it.done = true
	} else {
		it.next++
	}
	return v, nil
}

func (it *rangeIterator) Close() error {
	it.done = true
	return nil
}
