package expr

import (
	"strconv"

	"github.com/roach88/flwor/internal/ir"
)

// Filter is "base[predicate]". A predicate whose value is a single number
// selects by position; anything else is a condition on each item. With
// Boolean set the predicate is always a condition, which the optimizer uses
// when it turns a where clause into a filter.
type Filter struct {
	node
	Base      Operand
	Predicate Operand
	Boolean   bool
}

// NewFilter creates base[pred].
func NewFilter(base, pred Expression, loc Location) *Filter {
	return &Filter{
		node:      node{loc: loc},
		Base:      NewOperand(base),
		Predicate: Operand{Expr: pred, FocusChanging: true, Looping: true},
	}
}

// NewBooleanFilter creates base[boolean(pred)].
func NewBooleanFilter(base, pred Expression, loc Location) *Filter {
	f := NewFilter(base, pred, loc)
	f.Boolean = true
	return f
}

func (f *Filter) Evaluate(c *Context) (ir.Sequence, error) {
	items, err := f.Base.Expr.Evaluate(c)
	if err != nil {
		return nil, err
	}
	var out ir.Sequence
	for i, item := range items {
		keep, err := f.matches(c.WithFocus(item, i+1, len(items)))
		if err != nil {
			return nil, err
		}
		if keep {
			out = append(out, item)
		}
	}
	return out, nil
}

// matches evaluates the predicate for the item in focus.
func (f *Filter) matches(fc *Context) (bool, error) {
	if f.Boolean {
		return f.Predicate.Expr.EffectiveBooleanValue(fc)
	}
	seq, err := f.Predicate.Expr.Evaluate(fc)
	if err != nil {
		return false, err
	}
	if len(seq) == 1 && ir.IsNumeric(seq[0]) {
		n, _ := ir.ToFloat(seq[0])
		return n == float64(fc.Focus().Position), nil
	}
	return effectiveBooleanValue(seq, f.Predicate.Expr.Location())
}

func (f *Filter) Iterate(c *Context) (Iterator, error) {
	return iterateEvaluated(f, c)
}

func (f *Filter) Process(c *Context, out Receiver) error {
	return processEvaluated(f, c, out)
}

func (f *Filter) EffectiveBooleanValue(c *Context) (bool, error) {
	return ebvEvaluated(f, c)
}

func (f *Filter) StaticType() ir.SequenceType {
	t := f.Base.Expr.StaticType()
	if t.Occurrence == ir.Empty {
		return t
	}
	occ := ir.ZeroOrMore
	if !t.Occurrence.AllowsMany() {
		occ = ir.ZeroOrOne
	}
	return ir.NewSequenceType(t.Item, occ)
}

func (f *Filter) Operands() []*Operand {
	return []*Operand{&f.Base, &f.Predicate}
}

func (f *Filter) Copy(r *Rebinder) Expression {
	nf := NewFilter(f.Base.Expr.Copy(r), f.Predicate.Expr.Copy(r), f.loc)
	nf.Boolean = f.Boolean
	return nf
}

func (f *Filter) Explain(w *ExplainWriter) {
	if f.Boolean {
		w.Begin("filter boolean")
	} else {
		w.Begin("filter")
	}
	f.Base.Expr.Explain(w)
	f.Predicate.Expr.Explain(w)
	w.End()
}

func (f *Filter) optimizeSelf(*StaticContext) (Expression, error) {
	if lit, ok := f.Predicate.Expr.(*Literal); ok && !f.Boolean {
		if b, ok := literalCondition(lit); ok {
			if b {
				return f.Base.Expr, nil
			}
			return EmptySequence(f.loc), nil
		}
	}
	return f, nil
}

// literalCondition reports the constant truth of a non-numeric literal
// predicate.
func literalCondition(lit *Literal) (bool, bool) {
	if len(lit.Value) == 1 && ir.IsNumeric(lit.Value[0]) {
		return false, false
	}
	b, err := ir.EffectiveBooleanValue(lit.Value)
	return b, err == nil
}

// Path is "base/step": the step is evaluated once for every item of base,
// with that item as the focus, and the results are concatenated.
type Path struct {
	node
	Base Operand
	Step Operand
}

// NewPath creates base/step.
func NewPath(base, step Expression, loc Location) *Path {
	return &Path{
		node: node{loc: loc},
		Base: NewOperand(base),
		Step: Operand{Expr: step, FocusChanging: true, Looping: true},
	}
}

func (p *Path) Evaluate(c *Context) (ir.Sequence, error) {
	items, err := p.Base.Expr.Evaluate(c)
	if err != nil {
		return nil, err
	}
	var out ir.Sequence
	for i, item := range items {
		seq, err := p.Step.Expr.Evaluate(c.WithFocus(item, i+1, len(items)))
		if err != nil {
			return nil, err
		}
		out = append(out, seq...)
	}
	return out, nil
}

func (p *Path) Iterate(c *Context) (Iterator, error) {
	return iterateEvaluated(p, c)
}

func (p *Path) Process(c *Context, out Receiver) error {
	return processEvaluated(p, c, out)
}

func (p *Path) EffectiveBooleanValue(c *Context) (bool, error) {
	return ebvEvaluated(p, c)
}

func (p *Path) StaticType() ir.SequenceType {
	b, s := p.Base.Expr.StaticType(), p.Step.Expr.StaticType()
	if b.Occurrence == ir.Empty || s.Occurrence == ir.Empty {
		return ir.EmptySequence
	}
	if b.Occurrence == ir.ExactlyOne {
		return s
	}
	return ir.NewSequenceType(s.Item, ir.ZeroOrMore)
}

func (p *Path) Operands() []*Operand {
	return []*Operand{&p.Base, &p.Step}
}

func (p *Path) Copy(r *Rebinder) Expression {
	return NewPath(p.Base.Expr.Copy(r), p.Step.Expr.Copy(r), p.loc)
}

func (p *Path) Explain(w *ExplainWriter) {
	w.Begin("path")
	p.Base.Expr.Explain(w)
	p.Step.Expr.Explain(w)
	w.End()
}

// LookupKey selects members of an object or array.
type LookupKey struct {
	// Name selects an object field.
	Name string
	// Index selects a 1-based array member when Name is empty.
	Index int
	// Wildcard selects every member.
	Wildcard bool
}

func (k LookupKey) String() string {
	switch {
	case k.Wildcard:
		return "*"
	case k.Name != "":
		return k.Name
	}
	return strconv.Itoa(k.Index)
}

// Lookup is "base?key". With a nil base (the unary form "?key") the context
// item is used. The step form "base/name" parses to a Path whose step is a
// unary Lookup.
type Lookup struct {
	node
	Base Operand
	Key  LookupKey
}

// NewLookup creates base?key.
func NewLookup(base Expression, key LookupKey, loc Location) *Lookup {
	if base == nil {
		base = NewContextItem(loc)
	}
	return &Lookup{node: node{loc: loc}, Base: NewOperand(base), Key: key}
}

// IsUnary reports whether the lookup applies to the context item.
func (l *Lookup) IsUnary() bool {
	_, ok := l.Base.Expr.(*ContextItem)
	return ok
}

func (l *Lookup) Evaluate(c *Context) (ir.Sequence, error) {
	items, err := l.Base.Expr.Evaluate(c)
	if err != nil {
		return nil, err
	}
	var out ir.Sequence
	for _, item := range items {
		out, err = l.appendMembers(out, item)
		if err != nil {
			return nil, err
		}
	}
	return out, nil
}

func (l *Lookup) appendMembers(out ir.Sequence, item ir.Item) (ir.Sequence, error) {
	switch v := item.(type) {
	case ir.Object:
		if l.Key.Wildcard {
			for _, k := range v.SortedKeys() {
				out = append(out, v[k])
			}
			return out, nil
		}
		if l.Key.Name == "" {
			return out, nil
		}
		if m, ok := v[l.Key.Name]; ok {
			out = append(out, m)
		}
		return out, nil
	case ir.Array:
		if l.Key.Wildcard {
			return append(out, v...), nil
		}
		if l.Key.Name != "" {
			return out, nil
		}
		if l.Key.Index >= 1 && l.Key.Index <= len(v) {
			out = append(out, v[l.Key.Index-1])
		}
		return out, nil
	}
	return nil, DynamicError(ErrTypeMismatch, l.loc, "lookup ?%s on %s", l.Key, ir.TypeName(item))
}

func (l *Lookup) Iterate(c *Context) (Iterator, error) {
	return iterateEvaluated(l, c)
}

func (l *Lookup) Process(c *Context, out Receiver) error {
	return processEvaluated(l, c, out)
}

func (l *Lookup) EffectiveBooleanValue(c *Context) (bool, error) {
	return ebvEvaluated(l, c)
}

func (l *Lookup) StaticType() ir.SequenceType {
	return ir.AnySequence
}

func (l *Lookup) Operands() []*Operand {
	return []*Operand{&l.Base}
}

func (l *Lookup) Copy(r *Rebinder) Expression {
	return &Lookup{node: l.node, Base: NewOperand(l.Base.Expr.Copy(r)), Key: l.Key}
}

func (l *Lookup) Explain(w *ExplainWriter) {
	if l.IsUnary() {
		w.Line("lookup ?" + l.Key.String())
		return
	}
	w.Begin("lookup ?" + l.Key.String())
	l.Base.Expr.Explain(w)
	w.End()
}
