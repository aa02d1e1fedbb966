package expr

import (
	"github.com/roach88/flwor/internal/ir"
)

// If is "if (cond) then a else b".
type If struct {
	node
	Cond Operand
	Then Operand
	Else Operand
}

// NewIf creates a conditional.
func NewIf(cond, then, els Expression, loc Location) *If {
	return &If{node: node{loc: loc}, Cond: NewOperand(cond), Then: NewOperand(then), Else: NewOperand(els)}
}

func (i *If) branch(c *Context) (Expression, error) {
	b, err := i.Cond.Expr.EffectiveBooleanValue(c)
	if err != nil {
		return nil, err
	}
	if b {
		return i.Then.Expr, nil
	}
	return i.Else.Expr, nil
}

func (i *If) Evaluate(c *Context) (ir.Sequence, error) {
	e, err := i.branch(c)
	if err != nil {
		return nil, err
	}
	return e.Evaluate(c)
}

func (i *If) Iterate(c *Context) (Iterator, error) {
	e, err := i.branch(c)
	if err != nil {
		return nil, err
	}
	return e.Iterate(c)
}

func (i *If) Process(c *Context, out Receiver) error {
	e, err := i.branch(c)
	if err != nil {
		return err
	}
	return e.Process(c, out)
}

func (i *If) EffectiveBooleanValue(c *Context) (bool, error) {
	e, err := i.branch(c)
	if err != nil {
		return false, err
	}
	return e.EffectiveBooleanValue(c)
}

func (i *If) StaticType() ir.SequenceType {
	t, e := i.Then.Expr.StaticType(), i.Else.Expr.StaticType()
	item := ir.CommonSupertype(t.Item, e.Item)
	switch {
	case t.Occurrence == ir.Empty:
		item = e.Item
	case e.Occurrence == ir.Empty:
		item = t.Item
	}
	return ir.NewSequenceType(item, t.Occurrence.Union(e.Occurrence))
}

func (i *If) Operands() []*Operand {
	return []*Operand{&i.Cond, &i.Then, &i.Else}
}

func (i *If) Copy(r *Rebinder) Expression {
	return NewIf(i.Cond.Expr.Copy(r), i.Then.Expr.Copy(r), i.Else.Expr.Copy(r), i.loc)
}

func (i *If) Explain(w *ExplainWriter) {
	w.Begin("if")
	i.Cond.Expr.Explain(w)
	i.Then.Expr.Explain(w)
	i.Else.Expr.Explain(w)
	w.End()
}

func (i *If) optimizeSelf(*StaticContext) (Expression, error) {
	lit, ok := i.Cond.Expr.(*Literal)
	if !ok {
		return i, nil
	}
	b, err := ir.EffectiveBooleanValue(lit.Value)
	if err != nil {
		// Leave the error to run time.
		return i, nil
	}
	if b {
		return i.Then.Expr, nil
	}
	return i.Else.Expr, nil
}

// For is the single-variable "for $v in seq return body" primitive. FLWOR
// expressions made only of plain for and let clauses collapse into nests of
// For and Let.
type For struct {
	node
	Var    *Binding
	In     Operand
	Return Operand
}

// NewFor creates a for primitive.
func NewFor(v *Binding, in, ret Expression, loc Location) *For {
	return &For{node: node{loc: loc}, Var: v, In: NewOperand(in), Return: Operand{Expr: ret, Looping: true}}
}

func (f *For) Evaluate(c *Context) (ir.Sequence, error) {
	var out ir.Sequence
	err := f.each(c, func() error {
		seq, err := f.Return.Expr.Evaluate(c)
		out = append(out, seq...)
		return err
	})
	return out, err
}

func (f *For) each(c *Context, body func() error) error {
	it, err := f.In.Expr.Iterate(c)
	if err != nil {
		return err
	}
	defer it.Close()
	for {
		item, err := it.Next()
		if err != nil {
			return err
		}
		if item == nil {
			return nil
		}
		c.SetSequence(f.Var.Slot, ir.Sequence{item})
		if err := body(); err != nil {
			return err
		}
	}
}

func (f *For) Iterate(c *Context) (Iterator, error) {
	return iterateEvaluated(f, c)
}

func (f *For) Process(c *Context, out Receiver) error {
	return f.each(c, func() error {
		return f.Return.Expr.Process(c, out)
	})
}

func (f *For) EffectiveBooleanValue(c *Context) (bool, error) {
	return ebvEvaluated(f, c)
}

func (f *For) StaticType() ir.SequenceType {
	in, ret := f.In.Expr.StaticType(), f.Return.Expr.StaticType()
	if in.Occurrence == ir.Empty {
		return ir.EmptySequence
	}
	if in.Occurrence == ir.ExactlyOne {
		return ret
	}
	return ir.NewSequenceType(ret.Item, ir.ZeroOrMore)
}

func (f *For) Operands() []*Operand {
	return []*Operand{&f.In, &f.Return}
}

func (f *For) Copy(r *Rebinder) Expression {
	in := f.In.Expr.Copy(r)
	v := r.Bind(f.Var)
	return NewFor(v, in, f.Return.Expr.Copy(r), f.loc)
}

func (f *For) Explain(w *ExplainWriter) {
	w.Begin("for " + f.Var.String())
	f.In.Expr.Explain(w)
	f.Return.Expr.Explain(w)
	w.End()
}

// TypeCheck checks the input, sharpens the variable's references, then
// checks the body.
func (f *For) TypeCheck(sc *StaticContext, contextItemType ir.ItemType) (Expression, error) {
	in, err := TypeCheck(sc, f.In.Expr, contextItemType)
	if err != nil {
		return nil, err
	}
	f.In.Expr = in
	itemType := in.StaticType().Item
	for _, ref := range References(f.Return.Expr, f.Var) {
		ref.Refine(ir.NewSequenceType(itemType, ir.ExactlyOne))
	}
	ret, err := TypeCheck(sc, f.Return.Expr, contextItemType)
	if err != nil {
		return nil, err
	}
	f.Return.Expr = ret
	return f, nil
}

// Let is the single-variable "let $v := value return body" primitive.
type Let struct {
	node
	Var    *Binding
	Value  Operand
	Return Operand

	// Mode and Captured control how the value is bound; see BindValue.
	Mode     EvalMode
	Captured []int
}

// NewLet creates a let primitive with memoized lazy evaluation.
func NewLet(v *Binding, value, ret Expression, loc Location) *Let {
	l := &Let{node: node{loc: loc}, Var: v, Value: NewOperand(value), Return: NewOperand(ret), Mode: EvalMemo}
	l.Captured = ReferencedSlots(value)
	return l
}

func (l *Let) bind(c *Context) error {
	return BindValue(c, l.Var, l.Value.Expr, l.Mode, l.Captured)
}

func (l *Let) Evaluate(c *Context) (ir.Sequence, error) {
	if err := l.bind(c); err != nil {
		return nil, err
	}
	return l.Return.Expr.Evaluate(c)
}

func (l *Let) Iterate(c *Context) (Iterator, error) {
	if err := l.bind(c); err != nil {
		return nil, err
	}
	return l.Return.Expr.Iterate(c)
}

func (l *Let) Process(c *Context, out Receiver) error {
	if err := l.bind(c); err != nil {
		return err
	}
	return l.Return.Expr.Process(c, out)
}

func (l *Let) EffectiveBooleanValue(c *Context) (bool, error) {
	if err := l.bind(c); err != nil {
		return false, err
	}
	return l.Return.Expr.EffectiveBooleanValue(c)
}

func (l *Let) StaticType() ir.SequenceType {
	return l.Return.Expr.StaticType()
}

func (l *Let) Operands() []*Operand {
	return []*Operand{&l.Value, &l.Return}
}

func (l *Let) Copy(r *Rebinder) Expression {
	value := l.Value.Expr.Copy(r)
	v := r.Bind(l.Var)
	nl := NewLet(v, value, l.Return.Expr.Copy(r), l.loc)
	nl.Mode = l.Mode
	return nl
}

func (l *Let) Explain(w *ExplainWriter) {
	w.Begin("let " + l.Var.String() + " (" + l.Mode.String() + ")")
	l.Value.Expr.Explain(w)
	l.Return.Expr.Explain(w)
	w.End()
}

// TypeCheck checks the value, sharpens the variable's references, then
// checks the body.
func (l *Let) TypeCheck(sc *StaticContext, contextItemType ir.ItemType) (Expression, error) {
	value, err := TypeCheck(sc, l.Value.Expr, contextItemType)
	if err != nil {
		return nil, err
	}
	l.Value.Expr = value
	l.Captured = ReferencedSlots(value)
	for _, ref := range References(l.Return.Expr, l.Var) {
		ref.Refine(value.StaticType())
	}
	ret, err := TypeCheck(sc, l.Return.Expr, contextItemType)
	if err != nil {
		return nil, err
	}
	l.Return.Expr = ret
	return l, nil
}
