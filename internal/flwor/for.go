package flwor

import (
	"github.com/roach88/flwor/internal/expr"
	"github.com/roach88/flwor/internal/ir"
)

// ForClause is "for $x [at $p] [allowing empty] in E".
type ForClause struct {
	loc      expr.Location
	Var      *expr.Binding
	Position *expr.Binding
	Sequence expr.Operand

	// AllowingEmpty gives outer-join semantics: an empty source yields one
	// tuple with $x bound to () and $p to 0.
	AllowingEmpty bool

	// absorbed is the filter built by AddPredicate, which later absorbed
	// terms are and-ed into.
	absorbed *expr.Filter
}

// NewForClause creates a for clause. position may be nil.
func NewForClause(v, position *expr.Binding, seq expr.Expression, allowingEmpty bool, loc expr.Location) *ForClause {
	return &ForClause{loc: loc, Var: v, Position: position, Sequence: expr.NewOperand(seq), AllowingEmpty: allowingEmpty}
}

func (f *ForClause) Kind() Kind { return KindFor }

func (f *ForClause) Location() expr.Location { return f.loc }

func (f *ForClause) Copy(r *expr.Rebinder) Clause {
	seq := f.Sequence.Expr.Copy(r)
	return NewForClause(r.Bind(f.Var), r.Bind(f.Position), seq, f.AllowingEmpty, f.loc)
}

func (f *ForClause) TypeCheck(sc *expr.StaticContext, contextItemType ir.ItemType) error {
	if err := typeCheckOperands(sc, f.Operands(), contextItemType); err != nil {
		return err
	}
	required := ir.NewSequenceType(f.Var.Declared.Item, ir.ZeroOrMore)
	seq, err := checkBinding(f.Sequence.Expr, f.Var, required)
	if err != nil {
		return err
	}
	f.Sequence.Expr = seq
	return nil
}

func (f *ForClause) Optimize(sc *expr.StaticContext, contextItemType ir.ItemType) error {
	return optimizeOperands(sc, f.Operands(), contextItemType)
}

func (f *ForClause) RangeVariables() []*expr.Binding {
	if f.Position == nil {
		return []*expr.Binding{f.Var}
	}
	return []*expr.Binding{f.Var, f.Position}
}

func (f *ForClause) GatherVariableReferences(b *expr.Binding, refs *[]*expr.VarRef) {
	gatherReferences(f.Operands(), b, refs)
}

func (f *ForClause) RefineVariableType(b *expr.Binding, refs []*expr.VarRef) {
	switch b {
	case f.Var:
		occ := ir.ExactlyOne
		if f.AllowingEmpty {
			occ = ir.ZeroOrOne
		}
		st := f.Sequence.Expr.StaticType()
		if st.Occurrence == ir.Empty {
			refineAll(refs, ir.EmptySequence)
			return
		}
		refineAll(refs, ir.NewSequenceType(st.Item, occ))
	case f.Position:
		refineAll(refs, ir.SingleInteger)
	}
}

func (f *ForClause) ContainsNonInlineableVariableReference(*expr.Binding) bool {
	return false
}

func (f *ForClause) Operands() []*expr.Operand {
	return []*expr.Operand{&f.Sequence}
}

func (f *ForClause) Explain(w *expr.ExplainWriter) {
	label := "for " + f.Var.String()
	if f.Position != nil {
		label += " at " + f.Position.String()
	}
	if f.AllowingEmpty {
		label += " allowing empty"
	}
	w.Begin(label)
	f.Sequence.Expr.Explain(w)
	w.End()
}

func (f *ForClause) bind(c *expr.Context, item ir.Item, pos int) {
	if item == nil {
		c.SetSequence(f.Var.Slot, nil)
	} else {
		c.SetSequence(f.Var.Slot, ir.Sequence{item})
	}
	if f.Position != nil {
		c.SetSequence(f.Position.Slot, ir.Ints(int64(pos)))
	}
}

func (f *ForClause) PullStream(_ *expr.Context, base PullStream) PullStream {
	return &forPull{clause: f, base: base}
}

func (f *ForClause) PushStream(_ *expr.Context, dest PushStream) PushStream {
	return &forPush{clause: f, dest: dest}
}

// forPull iterates the source sequence once per tuple of the base stream.
type forPull struct {
	clause  *ForClause
	base    PullStream
	it      expr.Iterator
	pending ir.Item
	pos     int
}

func (s *forPull) Next(c *expr.Context) (bool, error) {
	for {
		if err := c.Err(); err != nil {
			return false, err
		}
		if s.it == nil {
			ok, err := s.base.Next(c)
			if err != nil || !ok {
				return false, err
			}
			it, err := s.clause.Sequence.Expr.Iterate(c)
			if err != nil {
				return false, err
			}
			s.it, s.pos = it, 0
			if s.clause.AllowingEmpty {
				first, err := it.Next()
				if err != nil {
					return false, err
				}
				if first == nil {
					if err := s.closeSource(); err != nil {
						return false, err
					}
					s.clause.bind(c, nil, 0)
					return true, nil
				}
				s.pending = first
			}
		}
		item := s.pending
		s.pending = nil
		if item == nil {
			var err error
			if item, err = s.it.Next(); err != nil {
				return false, err
			}
		}
		if item == nil {
			if err := s.closeSource(); err != nil {
				return false, err
			}
			continue
		}
		s.pos++
		s.clause.bind(c, item, s.pos)
		return true, nil
	}
}

func (s *forPull) closeSource() error {
	if s.it == nil {
		return nil
	}
	err := s.it.Close()
	s.it = nil
	return err
}

func (s *forPull) Close(c *expr.Context) error {
	err := s.closeSource()
	if berr := s.base.Close(c); err == nil {
		err = berr
	}
	return err
}

// forPush forwards one tuple per source item for every tuple it receives.
type forPush struct {
	clause *ForClause
	dest   PushStream
}

func (s *forPush) Process(c *expr.Context) error {
	it, err := s.clause.Sequence.Expr.Iterate(c)
	if err != nil {
		return err
	}
	defer it.Close()
	pos := 0
	for {
		if err := c.Err(); err != nil {
			return err
		}
		item, err := it.Next()
		if err != nil {
			return err
		}
		if item == nil {
			break
		}
		pos++
		s.clause.bind(c, item, pos)
		if err := s.dest.Process(c); err != nil {
			return err
		}
	}
	if pos == 0 && s.clause.AllowingEmpty {
		s.clause.bind(c, nil, 0)
		return s.dest.Process(c)
	}
	return nil
}

func (s *forPush) Close(c *expr.Context) error {
	return s.dest.Close(c)
}

// AddPredicate tries to absorb a where term that depends on this clause into
// a filter on the source sequence. positionUsedElsewhere reports whether the
// position variable is referenced outside term. It returns false, leaving
// the clause unchanged, when no rewrite applies.
//
// Three shapes are tried in order:
//  1. "$p op E" with E independent of $x, $p and the focus becomes the
//     predicate "position() op E", and $p is dropped.
//  2. Terms whose references to $x are not under a predicate or path step
//     become a predicate with "." in place of $x.
//  3. Other terms become "let $dot := . return term[$x := $dot]".
//
// Shapes 2 and 3 change positions, so they are refused while a position
// variable exists.
func (f *ForClause) AddPredicate(sc *expr.StaticContext, term expr.Expression, positionUsedElsewhere bool) (bool, error) {
	if f.AllowingEmpty || expr.DependsOnFocus(term) || expr.IsNonDeterministic(term) {
		return false, nil
	}
	if f.Position != nil {
		if positionUsedElsewhere {
			return false, nil
		}
		return f.absorbPositional(sc, term)
	}
	if !expr.DependsOnVariable(term, f.Var) {
		return false, nil
	}

	var pred expr.Expression
	if !expr.ReferencedUnderFocusChange(term, f.Var) {
		pred = expr.ReplaceVariable(term, f.Var, func(ref *expr.VarRef) expr.Expression {
			return expr.NewContextItem(ref.Location())
		})
	} else {
		dot := expr.NewBinding("dot", sc.Slots.Allocate())
		itemType := ir.NewSequenceType(f.Sequence.Expr.StaticType().Item, ir.ExactlyOne)
		body := expr.ReplaceVariable(term, f.Var, func(ref *expr.VarRef) expr.Expression {
			nr := expr.NewVarRef(dot, ref.Location())
			nr.Refine(itemType)
			return nr
		})
		let := expr.NewLet(dot, expr.NewContextItem(term.Location()), body, term.Location())
		let.Mode = expr.EvalEager
		pred = let
	}
	f.attachCondition(pred)
	return true, nil
}

// absorbPositional implements shape 1.
func (f *ForClause) absorbPositional(sc *expr.StaticContext, term expr.Expression) (bool, error) {
	cmp, ok := term.(expr.Comparison)
	if !ok {
		return false, nil
	}
	lhs, rhs := cmp.Sides()
	var other expr.Expression
	positionOnLeft := false
	switch {
	case f.isPositionRef(lhs.Expr):
		other, positionOnLeft = rhs.Expr, true
	case f.isPositionRef(rhs.Expr):
		other = lhs.Expr
	default:
		return false, nil
	}
	if expr.DependsOnAny(other, []*expr.Binding{f.Var, f.Position}) || expr.DependsOnFocus(other) {
		return false, nil
	}
	fn, ok := sc.Functions.Lookup("position", 0)
	if !ok {
		expr.Internalf("function library has no position()")
	}
	position := expr.NewFunctionCall(fn, nil, term.Location())
	var pred expr.Expression
	if positionOnLeft {
		pred = cmp.WithSides(position, other)
	} else {
		pred = cmp.WithSides(other, position)
	}
	f.Sequence.Expr = expr.NewFilter(f.Sequence.Expr, pred, term.Location())
	f.Position = nil
	f.absorbed = nil
	return true, nil
}

func (f *ForClause) isPositionRef(e expr.Expression) bool {
	ref, ok := e.(*expr.VarRef)
	return ok && ref.Binding == f.Position
}

// attachCondition filters the source sequence by a boolean predicate. A path
// source "base/step" gets the filter on its last step.
func (f *ForClause) attachCondition(pred expr.Expression) {
	if f.absorbed != nil && f.Sequence.Expr == expr.Expression(f.absorbed) {
		f.absorbed.Predicate.Expr = expr.NewAnd(pred, f.absorbed.Predicate.Expr, pred.Location())
		return
	}
	if path, ok := f.Sequence.Expr.(*expr.Path); ok {
		filter := expr.NewBooleanFilter(path.Step.Expr, pred, pred.Location())
		path.Step.Expr = filter
		f.absorbed = nil
		return
	}
	filter := expr.NewBooleanFilter(f.Sequence.Expr, pred, pred.Location())
	folded := expr.FoldCollectionFilter(filter)
	f.Sequence.Expr = folded
	if folded == expr.Expression(filter) {
		f.absorbed = filter
	} else {
		f.absorbed = nil
	}
}
