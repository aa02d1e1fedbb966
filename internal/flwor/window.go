package flwor

import (
	"github.com/roach88/flwor/internal/expr"
	"github.com/roach88/flwor/internal/ir"
)

// WindowCondition is the start or end condition of a window clause:
// "[$cur] [at $pos] [previous $prev] [next $next] when E". Any of the
// variables may be nil.
type WindowCondition struct {
	Item     *expr.Binding
	Position *expr.Binding
	Previous *expr.Binding
	Next     *expr.Binding
	When     expr.Operand
}

func (wc *WindowCondition) vars() []*expr.Binding {
	var vars []*expr.Binding
	for _, b := range []*expr.Binding{wc.Item, wc.Position, wc.Previous, wc.Next} {
		if b != nil {
			vars = append(vars, b)
		}
	}
	return vars
}

// bind binds the condition variables for the item at index i.
func (wc *WindowCondition) bind(c *expr.Context, items ir.Sequence, i int) {
	at := func(j int) ir.Sequence {
		if j < 0 || j >= len(items) {
			return nil
		}
		return ir.Sequence{items[j]}
	}
	if wc.Item != nil {
		c.SetSequence(wc.Item.Slot, at(i))
	}
	if wc.Position != nil {
		c.SetSequence(wc.Position.Slot, ir.Ints(int64(i+1)))
	}
	if wc.Previous != nil {
		c.SetSequence(wc.Previous.Slot, at(i-1))
	}
	if wc.Next != nil {
		c.SetSequence(wc.Next.Slot, at(i+1))
	}
}

// holds binds the variables for index i and evaluates the condition.
func (wc *WindowCondition) holds(c *expr.Context, items ir.Sequence, i int) (bool, error) {
	wc.bind(c, items, i)
	return wc.When.Expr.EffectiveBooleanValue(c)
}

func (wc *WindowCondition) copy(r *expr.Rebinder) *WindowCondition {
	nc := &WindowCondition{
		Item:     r.Bind(wc.Item),
		Position: r.Bind(wc.Position),
		Previous: r.Bind(wc.Previous),
		Next:     r.Bind(wc.Next),
	}
	nc.When = conditionOperand(wc.When.Expr.Copy(r))
	return nc
}

// conditionOperand wraps a window condition, which is evaluated once per
// item of the window source.
func conditionOperand(e expr.Expression) expr.Operand {
	return expr.Operand{Expr: e, Looping: true}
}

// NewWindowCondition creates a window condition. Any of the variables may
// be nil.
func NewWindowCondition(item, position, previous, next *expr.Binding, when expr.Expression) *WindowCondition {
	return &WindowCondition{Item: item, Position: position, Previous: previous, Next: next, When: conditionOperand(when)}
}

func (wc *WindowCondition) refine(b *expr.Binding, refs []*expr.VarRef, item ir.ItemType) bool {
	switch b {
	case wc.Item:
		refineAll(refs, ir.NewSequenceType(item, ir.ExactlyOne))
	case wc.Position:
		refineAll(refs, ir.SingleInteger)
	case wc.Previous, wc.Next:
		refineAll(refs, ir.NewSequenceType(item, ir.ZeroOrOne))
	default:
		return false
	}
	return true
}

func (wc *WindowCondition) explain(w *expr.ExplainWriter, label string) {
	for _, b := range wc.vars() {
		label += " " + b.String()
	}
	w.Begin(label)
	wc.When.Expr.Explain(w)
	w.End()
}

// WindowClause is "for tumbling|sliding window $w in E start ... [only] end
// ...". For each input tuple it evaluates E once, computes every window over
// the result, and emits one tuple per window in order of window start.
type WindowClause struct {
	loc      expr.Location
	Sliding  bool
	Var      *expr.Binding
	Sequence expr.Operand
	Start    *WindowCondition

	// End is nil for a tumbling window without an end condition: each
	// window then ends before the next start.
	End     *WindowCondition
	OnlyEnd bool
}

// NewWindowClause creates a window clause.
func NewWindowClause(sliding bool, v *expr.Binding, seq expr.Expression, start, end *WindowCondition, onlyEnd bool, loc expr.Location) *WindowClause {
	return &WindowClause{loc: loc, Sliding: sliding, Var: v, Sequence: expr.NewOperand(seq), Start: start, End: end, OnlyEnd: onlyEnd}
}

func (w *WindowClause) Kind() Kind { return KindWindow }

func (w *WindowClause) Location() expr.Location { return w.loc }

func (w *WindowClause) Copy(r *expr.Rebinder) Clause {
	seq := w.Sequence.Expr.Copy(r)
	start := w.Start.copy(r)
	var end *WindowCondition
	if w.End != nil {
		end = w.End.copy(r)
	}
	return NewWindowClause(w.Sliding, r.Bind(w.Var), seq, start, end, w.OnlyEnd, w.loc)
}

func (w *WindowClause) TypeCheck(sc *expr.StaticContext, contextItemType ir.ItemType) error {
	if err := typeCheckOperands(sc, w.Operands(), contextItemType); err != nil {
		return err
	}
	if w.Sliding && w.End == nil {
		return expr.StaticError(expr.ErrSyntax, w.loc, "sliding window %s requires an end condition", w.Var)
	}
	required := ir.NewSequenceType(w.Var.Declared.Item, ir.ZeroOrMore)
	seq, err := checkBinding(w.Sequence.Expr, w.Var, required)
	if err != nil {
		return err
	}
	w.Sequence.Expr = seq
	return nil
}

func (w *WindowClause) Optimize(sc *expr.StaticContext, contextItemType ir.ItemType) error {
	return optimizeOperands(sc, w.Operands(), contextItemType)
}

func (w *WindowClause) RangeVariables() []*expr.Binding {
	vars := []*expr.Binding{w.Var}
	vars = append(vars, w.Start.vars()...)
	if w.End != nil {
		vars = append(vars, w.End.vars()...)
	}
	return vars
}

func (w *WindowClause) GatherVariableReferences(b *expr.Binding, refs *[]*expr.VarRef) {
	gatherReferences(w.Operands(), b, refs)
}

func (w *WindowClause) RefineVariableType(b *expr.Binding, refs []*expr.VarRef) {
	item := w.Sequence.Expr.StaticType().Item
	if b == w.Var {
		refineAll(refs, ir.NewSequenceType(item, ir.OneOrMore))
		return
	}
	if w.Start.refine(b, refs, item) {
		return
	}
	if w.End != nil {
		w.End.refine(b, refs, item)
	}
}

func (w *WindowClause) ContainsNonInlineableVariableReference(*expr.Binding) bool {
	return false
}

func (w *WindowClause) Operands() []*expr.Operand {
	ops := []*expr.Operand{&w.Sequence, &w.Start.When}
	if w.End != nil {
		ops = append(ops, &w.End.When)
	}
	return ops
}

func (w *WindowClause) Explain(ew *expr.ExplainWriter) {
	kind := "tumbling"
	if w.Sliding {
		kind = "sliding"
	}
	ew.Begin("for " + kind + " window " + w.Var.String())
	w.Sequence.Expr.Explain(ew)
	w.Start.explain(ew, "start")
	if w.End != nil {
		label := "end"
		if w.OnlyEnd {
			label = "only end"
		}
		w.End.explain(ew, label)
	}
	ew.End()
}

// span is a window as inclusive item indexes.
type span struct {
	first, last int
}

// windows computes the windows over items. Condition variables are left
// bound to arbitrary values; bindSpan rebinds them.
func (w *WindowClause) windows(c *expr.Context, items ir.Sequence) ([]span, error) {
	var spans []span
	n := len(items)
	for i := 0; i < n; {
		if err := c.Err(); err != nil {
			return nil, err
		}
		ok, err := w.Start.holds(c, items, i)
		if err != nil {
			return nil, err
		}
		if !ok {
			i++
			continue
		}
		if w.End == nil {
			j := i + 1
			for ; j < n; j++ {
				next, err := w.Start.holds(c, items, j)
				if err != nil {
					return nil, err
				}
				if next {
					break
				}
			}
			spans = append(spans, span{i, j - 1})
			i = j
			continue
		}
		w.Start.bind(c, items, i)
		last := -1
		for j := i; j < n; j++ {
			end, err := w.End.holds(c, items, j)
			if err != nil {
				return nil, err
			}
			if end {
				last = j
				break
			}
		}
		switch {
		case last >= 0:
			spans = append(spans, span{i, last})
		case !w.OnlyEnd:
			spans = append(spans, span{i, n - 1})
		}
		if w.Sliding {
			i++
		} else if last >= 0 {
			i = last + 1
		} else {
			i = n
		}
	}
	return spans, nil
}

// bindSpan binds the window variable and the condition variables of one
// window.
func (w *WindowClause) bindSpan(c *expr.Context, items ir.Sequence, s span) {
	c.SetSequence(w.Var.Slot, items[s.first:s.last+1])
	w.Start.bind(c, items, s.first)
	if w.End != nil {
		w.End.bind(c, items, s.last)
	}
}

// windowsFor evaluates the source sequence for the current tuple and
// computes its windows.
func (w *WindowClause) windowsFor(c *expr.Context) (ir.Sequence, []span, error) {
	items, err := w.Sequence.Expr.Evaluate(c)
	if err != nil {
		return nil, nil, err
	}
	spans, err := w.windows(c, items)
	return items, spans, err
}

func (w *WindowClause) PullStream(_ *expr.Context, base PullStream) PullStream {
	return &windowPull{clause: w, base: base}
}

func (w *WindowClause) PushStream(_ *expr.Context, dest PushStream) PushStream {
	return &windowPush{clause: w, dest: dest}
}

// windowPull materializes the windows of one upstream tuple before
// emitting the first of them. Condition evaluation rebinds variables of this
// clause only, so upstream bindings stay intact for every window.
type windowPull struct {
	clause *WindowClause
	base   PullStream
	items  ir.Sequence
	spans  []span
	next   int
}

func (s *windowPull) Next(c *expr.Context) (bool, error) {
	for s.next >= len(s.spans) {
		ok, err := s.base.Next(c)
		if err != nil || !ok {
			return false, err
		}
		s.items, s.spans, err = s.clause.windowsFor(c)
		if err != nil {
			return false, err
		}
		s.next = 0
	}
	s.clause.bindSpan(c, s.items, s.spans[s.next])
	s.next++
	return true, nil
}

func (s *windowPull) Close(c *expr.Context) error {
	s.items, s.spans = nil, nil
	return s.base.Close(c)
}

type windowPush struct {
	clause *WindowClause
	dest   PushStream
}

func (s *windowPush) Process(c *expr.Context) error {
	items, spans, err := s.clause.windowsFor(c)
	if err != nil {
		return err
	}
	for _, sp := range spans {
		s.clause.bindSpan(c, items, sp)
		if err := s.dest.Process(c); err != nil {
			return err
		}
	}
	return nil
}

func (s *windowPush) Close(c *expr.Context) error {
	return s.dest.Close(c)
}
