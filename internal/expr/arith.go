package expr

import (
	"math"

	"github.com/roach88/flwor/internal/ir"
)

// ArithOp is an arithmetic operator.
type ArithOp int

const (
	OpAdd ArithOp = iota
	OpSub
	OpMul
	OpDiv
	OpIDiv
	OpMod
)

var arithOpNames = [...]string{"+", "-", "*", "div", "idiv", "mod"}

func (op ArithOp) String() string {
	return arithOpNames[op]
}

// Arithmetic is a binary arithmetic expression.
type Arithmetic struct {
	node
	Op  ArithOp
	LHS Operand
	RHS Operand
}

// NewArithmetic creates lhs op rhs.
func NewArithmetic(op ArithOp, lhs, rhs Expression, loc Location) *Arithmetic {
	return &Arithmetic{node: node{loc: loc}, Op: op, LHS: NewOperand(lhs), RHS: NewOperand(rhs)}
}

func (a *Arithmetic) Evaluate(c *Context) (ir.Sequence, error) {
	lv, err := EvaluateAtomic(a.LHS.Expr, c)
	if err != nil || lv == nil {
		return nil, err
	}
	rv, err := EvaluateAtomic(a.RHS.Expr, c)
	if err != nil || rv == nil {
		return nil, err
	}
	res, err := Arith(a.Op, lv, rv, a.loc)
	if err != nil {
		return nil, err
	}
	return ir.Sequence{res}, nil
}

// Arith applies op to two atomic items.
func Arith(op ArithOp, lv, rv ir.Item, loc Location) (ir.Item, error) {
	if !ir.IsNumeric(lv) || !ir.IsNumeric(rv) {
		return nil, DynamicError(ErrTypeMismatch, loc, "arithmetic %s on %s and %s",
			op, ir.TypeName(lv), ir.TypeName(rv))
	}
	li, lInt := lv.(ir.Int)
	ri, rInt := rv.(ir.Int)
	if lInt && rInt {
		return intArith(op, int64(li), int64(ri), loc)
	}
	lf, _ := ir.ToFloat(lv)
	rf, _ := ir.ToFloat(rv)
	switch op {
	case OpAdd:
		return ir.Double(lf + rf), nil
	case OpSub:
		return ir.Double(lf - rf), nil
	case OpMul:
		return ir.Double(lf * rf), nil
	case OpDiv:
		return ir.Double(lf / rf), nil
	case OpIDiv:
		if rf == 0 {
			return nil, DynamicError(ErrDivisionByZero, loc, "integer division by zero")
		}
		q := math.Trunc(lf / rf)
		if math.IsNaN(q) || math.IsInf(q, 0) {
			return nil, DynamicError(ErrInvalidArgument, loc, "idiv result is not a finite number")
		}
		return ir.Int(int64(q)), nil
	default:
		return ir.Double(math.Mod(lf, rf)), nil
	}
}

func intArith(op ArithOp, l, r int64, loc Location) (ir.Item, error) {
	switch op {
	case OpAdd:
		return ir.Int(l + r), nil
	case OpSub:
		return ir.Int(l - r), nil
	case OpMul:
		return ir.Int(l * r), nil
	case OpDiv:
		if r == 0 {
			return nil, DynamicError(ErrDivisionByZero, loc, "division by zero")
		}
		if l%r == 0 {
			return ir.Int(l / r), nil
		}
		return ir.Double(float64(l) / float64(r)), nil
	case OpIDiv:
		if r == 0 {
			return nil, DynamicError(ErrDivisionByZero, loc, "integer division by zero")
		}
		return ir.Int(l / r), nil
	default:
		if r == 0 {
			return nil, DynamicError(ErrDivisionByZero, loc, "modulus by zero")
		}
		return ir.Int(l % r), nil
	}
}

func (a *Arithmetic) Iterate(c *Context) (Iterator, error) {
	return iterateEvaluated(a, c)
}

func (a *Arithmetic) Process(c *Context, out Receiver) error {
	return processEvaluated(a, c, out)
}

func (a *Arithmetic) EffectiveBooleanValue(c *Context) (bool, error) {
	return ebvEvaluated(a, c)
}

func (a *Arithmetic) StaticType() ir.SequenceType {
	lt, rt := a.LHS.Expr.StaticType(), a.RHS.Expr.StaticType()
	item := ir.DoubleType
	if lt.Item == ir.IntegerType && rt.Item == ir.IntegerType && a.Op != OpDiv {
		item = ir.IntegerType
	}
	occ := ir.ZeroOrOne
	if lt.Occurrence == ir.ExactlyOne && rt.Occurrence == ir.ExactlyOne {
		occ = ir.ExactlyOne
	}
	return ir.NewSequenceType(item, occ)
}

func (a *Arithmetic) Operands() []*Operand {
	return []*Operand{&a.LHS, &a.RHS}
}

func (a *Arithmetic) Copy(r *Rebinder) Expression {
	return NewArithmetic(a.Op, a.LHS.Expr.Copy(r), a.RHS.Expr.Copy(r), a.loc)
}

func (a *Arithmetic) Explain(w *ExplainWriter) {
	w.Begin("arith " + a.Op.String())
	a.LHS.Expr.Explain(w)
	a.RHS.Expr.Explain(w)
	w.End()
}

// Negate is unary minus.
type Negate struct {
	node
	Operand Operand
}

// NewNegate creates -e.
func NewNegate(e Expression, loc Location) *Negate {
	return &Negate{node: node{loc: loc}, Operand: NewOperand(e)}
}

func (n *Negate) Evaluate(c *Context) (ir.Sequence, error) {
	v, err := EvaluateAtomic(n.Operand.Expr, c)
	if err != nil || v == nil {
		return nil, err
	}
	switch x := v.(type) {
	case ir.Int:
		return ir.Sequence{-x}, nil
	case ir.Double:
		return ir.Sequence{-x}, nil
	}
	return nil, DynamicError(ErrTypeMismatch, n.loc, "unary minus on %s", ir.TypeName(v))
}

func (n *Negate) Iterate(c *Context) (Iterator, error) {
	return iterateEvaluated(n, c)
}

func (n *Negate) Process(c *Context, out Receiver) error {
	return processEvaluated(n, c, out)
}

func (n *Negate) EffectiveBooleanValue(c *Context) (bool, error) {
	return ebvEvaluated(n, c)
}

func (n *Negate) StaticType() ir.SequenceType {
	t := n.Operand.Expr.StaticType()
	item := ir.DoubleType
	if t.Item == ir.IntegerType {
		item = ir.IntegerType
	}
	occ := ir.ZeroOrOne
	if t.Occurrence == ir.ExactlyOne {
		occ = ir.ExactlyOne
	}
	return ir.NewSequenceType(item, occ)
}

func (n *Negate) Operands() []*Operand {
	return []*Operand{&n.Operand}
}

func (n *Negate) Copy(r *Rebinder) Expression {
	return NewNegate(n.Operand.Expr.Copy(r), n.loc)
}

func (n *Negate) Explain(w *ExplainWriter) {
	w.Begin("negate")
	n.Operand.Expr.Explain(w)
	w.End()
}
