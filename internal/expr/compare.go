package expr

import (
	"errors"

	"github.com/roach88/flwor/internal/ir"
)

// CompareOp is a comparison operator.
type CompareOp int

const (
	OpEq CompareOp = iota
	OpNe
	OpLt
	OpLe
	OpGt
	OpGe
)

var (
	generalOpNames = [...]string{"=", "!=", "<", "<=", ">", ">="}
	valueOpNames   = [...]string{"eq", "ne", "lt", "le", "gt", "ge"}
)

func (op CompareOp) String() string {
	return generalOpNames[op]
}

// Inverse returns the operator with swapped operands: a op b == b op.Inverse() a.
func (op CompareOp) Inverse() CompareOp {
	switch op {
	case OpLt:
		return OpGt
	case OpLe:
		return OpGe
	case OpGt:
		return OpLt
	case OpGe:
		return OpLe
	}
	return op
}

// CompareItems applies op to two atomic items.
// Equality between null and a non-null item is false rather than an error;
// any comparison involving NaN is false except !=.
func CompareItems(op CompareOp, a, b ir.Item, coll ir.Collation, loc Location) (bool, error) {
	if ir.IsNaN(a) || ir.IsNaN(b) {
		if !ir.IsNumeric(a) || !ir.IsNumeric(b) {
			return false, DynamicError(ErrTypeMismatch, loc, "cannot compare %s with %s", ir.TypeName(a), ir.TypeName(b))
		}
		return op == OpNe, nil
	}
	if op == OpEq || op == OpNe {
		eq, err := ir.Equal(a, b, coll)
		if err != nil {
			return false, compareError(err, loc)
		}
		return eq == (op == OpEq), nil
	}
	cmp, err := ir.Compare(a, b, coll)
	if err != nil {
		return false, compareError(err, loc)
	}
	switch op {
	case OpLt:
		return cmp < 0, nil
	case OpLe:
		return cmp <= 0, nil
	case OpGt:
		return cmp > 0, nil
	default:
		return cmp >= 0, nil
	}
}

func compareError(err error, loc Location) error {
	if errors.Is(err, ir.ErrIncomparable) {
		return DynamicError(ErrTypeMismatch, loc, "%v", err)
	}
	return err
}

// GeneralComparison is an existential comparison (=, !=, <, ...) over two
// sequences: true if any pair of atomized items satisfies the operator.
type GeneralComparison struct {
	node
	Op  CompareOp
	LHS Operand
	RHS Operand
}

// NewGeneralComparison creates lhs op rhs.
func NewGeneralComparison(op CompareOp, lhs, rhs Expression, loc Location) *GeneralComparison {
	return &GeneralComparison{node: node{loc: loc}, Op: op, LHS: NewOperand(lhs), RHS: NewOperand(rhs)}
}

func (g *GeneralComparison) EffectiveBooleanValue(c *Context) (bool, error) {
	ls, err := g.atomized(c, g.LHS.Expr)
	if err != nil || len(ls) == 0 {
		return false, err
	}
	rs, err := g.atomized(c, g.RHS.Expr)
	if err != nil {
		return false, err
	}
	for _, a := range ls {
		for _, b := range rs {
			ok, err := CompareItems(g.Op, a, b, nil, g.loc)
			if err != nil {
				return false, err
			}
			if ok {
				return true, nil
			}
		}
	}
	return false, nil
}

func (g *GeneralComparison) atomized(c *Context, e Expression) (ir.Sequence, error) {
	seq, err := e.Evaluate(c)
	if err != nil {
		return nil, err
	}
	return Atomize(seq, e.Location())
}

func (g *GeneralComparison) Evaluate(c *Context) (ir.Sequence, error) {
	b, err := g.EffectiveBooleanValue(c)
	if err != nil {
		return nil, err
	}
	return ir.Sequence{ir.Bool(b)}, nil
}

func (g *GeneralComparison) Iterate(c *Context) (Iterator, error) {
	return iterateEvaluated(g, c)
}

func (g *GeneralComparison) Process(c *Context, out Receiver) error {
	return processEvaluated(g, c, out)
}

func (g *GeneralComparison) StaticType() ir.SequenceType {
	return ir.SingleBoolean
}

func (g *GeneralComparison) Operands() []*Operand {
	return []*Operand{&g.LHS, &g.RHS}
}

func (g *GeneralComparison) Copy(r *Rebinder) Expression {
	return NewGeneralComparison(g.Op, g.LHS.Expr.Copy(r), g.RHS.Expr.Copy(r), g.loc)
}

func (g *GeneralComparison) Explain(w *ExplainWriter) {
	w.Begin("compare " + g.Op.String())
	g.LHS.Expr.Explain(w)
	g.RHS.Expr.Explain(w)
	w.End()
}

// ValueComparison compares two singletons (eq, ne, lt, ...). An empty operand
// yields the empty sequence.
type ValueComparison struct {
	node
	Op  CompareOp
	LHS Operand
	RHS Operand
}

// NewValueComparison creates lhs op rhs.
func NewValueComparison(op CompareOp, lhs, rhs Expression, loc Location) *ValueComparison {
	return &ValueComparison{node: node{loc: loc}, Op: op, LHS: NewOperand(lhs), RHS: NewOperand(rhs)}
}

func (v *ValueComparison) Evaluate(c *Context) (ir.Sequence, error) {
	a, err := EvaluateAtomic(v.LHS.Expr, c)
	if err != nil || a == nil {
		return nil, err
	}
	b, err := EvaluateAtomic(v.RHS.Expr, c)
	if err != nil || b == nil {
		return nil, err
	}
	ok, err := CompareItems(v.Op, a, b, nil, v.loc)
	if err != nil {
		return nil, err
	}
	return ir.Sequence{ir.Bool(ok)}, nil
}

func (v *ValueComparison) Iterate(c *Context) (Iterator, error) {
	return iterateEvaluated(v, c)
}

func (v *ValueComparison) Process(c *Context, out Receiver) error {
	return processEvaluated(v, c, out)
}

func (v *ValueComparison) EffectiveBooleanValue(c *Context) (bool, error) {
	return ebvEvaluated(v, c)
}

func (v *ValueComparison) StaticType() ir.SequenceType {
	lt, rt := v.LHS.Expr.StaticType(), v.RHS.Expr.StaticType()
	if lt.Occurrence == ir.ExactlyOne && rt.Occurrence == ir.ExactlyOne {
		return ir.SingleBoolean
	}
	return ir.NewSequenceType(ir.BooleanType, ir.ZeroOrOne)
}

func (v *ValueComparison) Operands() []*Operand {
	return []*Operand{&v.LHS, &v.RHS}
}

func (v *ValueComparison) Copy(r *Rebinder) Expression {
	return NewValueComparison(v.Op, v.LHS.Expr.Copy(r), v.RHS.Expr.Copy(r), v.loc)
}

func (v *ValueComparison) Explain(w *ExplainWriter) {
	w.Begin("compare " + valueOpNames[v.Op])
	v.LHS.Expr.Explain(w)
	v.RHS.Expr.Explain(w)
	w.End()
}

// Comparison is implemented by both comparison kinds; the optimizer uses it
// to recognise positional predicates.
type Comparison interface {
	Expression
	Operator() CompareOp
	Sides() (lhs, rhs *Operand)
	// WithSides builds the same kind of comparison over new operands.
	WithSides(lhs, rhs Expression) Expression
}

func (g *GeneralComparison) Operator() CompareOp {
	return g.Op
}

func (g *GeneralComparison) Sides() (*Operand, *Operand) {
	return &g.LHS, &g.RHS
}

func (v *ValueComparison) Operator() CompareOp {
	return v.Op
}

func (v *ValueComparison) Sides() (*Operand, *Operand) {
	return &v.LHS, &v.RHS
}

func (g *GeneralComparison) WithSides(lhs, rhs Expression) Expression {
	return NewGeneralComparison(g.Op, lhs, rhs, g.loc)
}

func (v *ValueComparison) WithSides(lhs, rhs Expression) Expression {
	return NewValueComparison(v.Op, lhs, rhs, v.loc)
}

// Logical is "and" / "or" with short-circuit evaluation.
type Logical struct {
	node
	And bool
	LHS Operand
	RHS Operand
}

// NewAnd creates lhs and rhs.
func NewAnd(lhs, rhs Expression, loc Location) *Logical {
	return &Logical{node: node{loc: loc}, And: true, LHS: NewOperand(lhs), RHS: NewOperand(rhs)}
}

// NewOr creates lhs or rhs.
func NewOr(lhs, rhs Expression, loc Location) *Logical {
	return &Logical{node: node{loc: loc}, LHS: NewOperand(lhs), RHS: NewOperand(rhs)}
}

func (l *Logical) EffectiveBooleanValue(c *Context) (bool, error) {
	lb, err := l.LHS.Expr.EffectiveBooleanValue(c)
	if err != nil {
		return false, err
	}
	if lb != l.And {
		return lb, nil
	}
	return l.RHS.Expr.EffectiveBooleanValue(c)
}

func (l *Logical) Evaluate(c *Context) (ir.Sequence, error) {
	b, err := l.EffectiveBooleanValue(c)
	if err != nil {
		return nil, err
	}
	return ir.Sequence{ir.Bool(b)}, nil
}

func (l *Logical) Iterate(c *Context) (Iterator, error) {
	return iterateEvaluated(l, c)
}

func (l *Logical) Process(c *Context, out Receiver) error {
	return processEvaluated(l, c, out)
}

func (l *Logical) StaticType() ir.SequenceType {
	return ir.SingleBoolean
}

func (l *Logical) Operands() []*Operand {
	return []*Operand{&l.LHS, &l.RHS}
}

func (l *Logical) Copy(r *Rebinder) Expression {
	return &Logical{node: l.node, And: l.And, LHS: NewOperand(l.LHS.Expr.Copy(r)), RHS: NewOperand(l.RHS.Expr.Copy(r))}
}

func (l *Logical) Explain(w *ExplainWriter) {
	if l.And {
		w.Begin("and")
	} else {
		w.Begin("or")
	}
	l.LHS.Expr.Explain(w)
	l.RHS.Expr.Explain(w)
	w.End()
}

// SplitAnd flattens a tree of "and" into its terms, left to right.
func SplitAnd(e Expression) []Expression {
	l, ok := e.(*Logical)
	if !ok || !l.And {
		return []Expression{e}
	}
	return append(SplitAnd(l.LHS.Expr), SplitAnd(l.RHS.Expr)...)
}

// JoinAnd rebuilds a left-deep "and" over terms. Returns nil for no terms.
func JoinAnd(terms []Expression) Expression {
	if len(terms) == 0 {
		return nil
	}
	out := terms[0]
	for _, t := range terms[1:] {
		out = NewAnd(out, t, t.Location())
	}
	return out
}
