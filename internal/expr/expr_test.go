package expr

import (
	"context"
	"fmt"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/flwor/internal/ir"
)

var loc = Location{Line: 1, Column: 1}

func lit(items ...ir.Item) *Literal {
	return NewLiteral(ir.Sequence(items), loc)
}

func newTestContext(frameSize int) *Context {
	return NewContext(context.Background(), &Env{}, frameSize)
}

func TestArith(t *testing.T) {
	tests := []struct {
		name    string
		op      ArithOp
		l, r    ir.Item
		want    ir.Item
		wantErr ErrorCode
	}{
		{"int add", OpAdd, ir.Int(2), ir.Int(3), ir.Int(5), ""},
		{"int sub", OpSub, ir.Int(2), ir.Int(3), ir.Int(-1), ""},
		{"promote", OpMul, ir.Int(2), ir.Double(1.5), ir.Double(3), ""},
		{"exact div", OpDiv, ir.Int(6), ir.Int(3), ir.Int(2), ""},
		{"inexact div", OpDiv, ir.Int(1), ir.Int(4), ir.Double(0.25), ""},
		{"idiv", OpIDiv, ir.Int(7), ir.Int(2), ir.Int(3), ""},
		{"mod", OpMod, ir.Int(7), ir.Int(2), ir.Int(1), ""},
		{"double div by zero", OpDiv, ir.Double(1), ir.Int(0), ir.Double(math.Inf(1)), ""},
		{"int div by zero", OpDiv, ir.Int(1), ir.Int(0), nil, ErrDivisionByZero},
		{"idiv by zero", OpIDiv, ir.Double(1), ir.Double(0), nil, ErrDivisionByZero},
		{"mod by zero", OpMod, ir.Int(1), ir.Int(0), nil, ErrDivisionByZero},
		{"string operand", OpAdd, ir.String("a"), ir.Int(1), nil, ErrTypeMismatch},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Arith(tt.op, tt.l, tt.r, loc)
			if tt.wantErr != "" {
				assert.True(t, HasCode(err, tt.wantErr), "got %v", err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestArithmetic_EmptyOperand(t *testing.T) {
	e := NewArithmetic(OpAdd, EmptySequence(loc), lit(ir.Int(1)), loc)
	got, err := e.Evaluate(newTestContext(0))
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestCompareItems(t *testing.T) {
	nan := ir.Double(math.NaN())
	tests := []struct {
		name string
		op   CompareOp
		a, b ir.Item
		want bool
	}{
		{"int eq double", OpEq, ir.Int(2), ir.Double(2), true},
		{"lt", OpLt, ir.Int(1), ir.Int(2), true},
		{"ge", OpGe, ir.Int(1), ir.Int(2), false},
		{"strings", OpLt, ir.String("a"), ir.String("b"), true},
		{"nan eq", OpEq, nan, nan, false},
		{"nan ne", OpNe, nan, ir.Int(1), true},
		{"nan lt", OpLt, nan, ir.Int(1), false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := CompareItems(tt.op, tt.a, tt.b, ir.CodepointCollation, loc)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}

	_, err := CompareItems(OpEq, nan, ir.String("x"), ir.CodepointCollation, loc)
	assert.True(t, HasCode(err, ErrTypeMismatch))
}

func TestCompareOp_Inverse(t *testing.T) {
	assert.Equal(t, OpGt, OpLt.Inverse())
	assert.Equal(t, OpLe, OpGe.Inverse())
	assert.Equal(t, OpEq, OpEq.Inverse())
	assert.Equal(t, OpNe, OpNe.Inverse())
}

func TestLibrary(t *testing.T) {
	lib := NewLibrary()
	impl := func(*Context, []ir.Sequence, Location) (ir.Sequence, error) { return nil, nil }

	require.NoError(t, lib.Register(&Function{Name: "f", MinArgs: 0, MaxArgs: 1, Impl: impl}))
	require.NoError(t, lib.Register(&Function{Name: "f", MinArgs: 2, MaxArgs: 2, Impl: impl}))
	assert.Error(t, lib.Register(&Function{Name: "f", MinArgs: 1, MaxArgs: -1, Impl: impl}), "overlapping arity")
	assert.Error(t, lib.Register(&Function{Name: "g"}), "missing implementation")

	fn, ok := lib.Lookup("f", 2)
	require.True(t, ok)
	assert.Equal(t, 2, fn.MinArgs)
	_, ok = lib.Lookup("f", 3)
	assert.False(t, ok)

	clone := lib.Clone()
	require.NoError(t, clone.Register(&Function{Name: "h", MaxArgs: 0, Impl: impl}))
	_, ok = lib.Lookup("h", 0)
	assert.False(t, ok, "clone must not share registrations")
	assert.Equal(t, []string{"f", "h"}, clone.Names())
}

func TestLibrary_Suggest(t *testing.T) {
	lib := DefaultLibrary()
	assert.Equal(t, "upper-case", lib.Suggest("uper-case"))
	assert.Equal(t, "string-join", lib.Suggest("strin-join"))
	assert.Equal(t, "", lib.Suggest("xxxxxxxxxxxxxxxx"))
	assert.Equal(t, "", lib.Suggest("count"), "exact names are not suggestions")
}

func TestFunctionCall(t *testing.T) {
	calls := 0
	fn := &Function{
		Name: "twice", MinArgs: 1, MaxArgs: 1, Result: ir.AnySequence,
		Impl: func(_ *Context, args []ir.Sequence, _ Location) (ir.Sequence, error) {
			calls++
			return append(append(ir.Sequence{}, args[0]...), args[0]...), nil
		},
	}
	call := NewFunctionCall(fn, []Expression{lit(ir.Int(1), ir.Int(2))}, loc)

	got, err := call.Evaluate(newTestContext(0))
	require.NoError(t, err)
	assert.Equal(t, ir.Ints(1, 2, 1, 2), got)
	assert.Equal(t, 1, calls)
}

func TestClosure_Memo(t *testing.T) {
	calls := 0
	fn := &Function{
		Name: "tick", MaxArgs: 0, Result: ir.SingleInteger, NonDeterministic: true,
		Impl: func(*Context, []ir.Sequence, Location) (ir.Sequence, error) {
			calls++
			return ir.Ints(int64(calls)), nil
		},
	}
	c := newTestContext(0)

	memo := NewClosure(c, NewFunctionCall(fn, nil, loc), nil, true)
	first, err := memo.Force()
	require.NoError(t, err)
	second, err := memo.Force()
	require.NoError(t, err)
	assert.Equal(t, first, second)
	assert.Equal(t, 1, calls)

	calls = 0
	plain := NewClosure(c, NewFunctionCall(fn, nil, loc), nil, false)
	_, _ = plain.Force()
	again, err := plain.Force()
	require.NoError(t, err)
	assert.Equal(t, ir.Ints(2), again)
}

func TestClosure_SnapshotsCapturedSlots(t *testing.T) {
	b := NewBinding("x", 0)
	c := newTestContext(1)
	c.SetSequence(0, ir.Ints(1))

	cl := NewClosure(c, NewVarRef(b, loc), []int{0}, true)
	c.SetSequence(0, ir.Ints(2))

	got, err := cl.Force()
	require.NoError(t, err)
	assert.Equal(t, ir.Ints(1), got, "closure reads the value at creation time")
}

func TestStaticCheck(t *testing.T) {
	one := lit(ir.Int(1))
	got, err := StaticCheck(one, ir.SingleInteger, "variable $x")
	require.NoError(t, err)
	assert.Same(t, one, got, "conforming expression is returned unchanged")

	_, err = StaticCheck(lit(ir.String("a")), ir.SingleInteger, "variable $x")
	require.Error(t, err)
	assert.True(t, HasCode(err, ErrTypeMismatch))
	assert.True(t, IsStaticError(err))
	assert.Contains(t, err.Error(), "variable $x")

	_, err = StaticCheck(EmptySequence(loc), ir.SingleInteger, "argument 1")
	assert.True(t, HasCode(err, ErrTypeMismatch))

	wrapped, err := StaticCheck(lit(ir.Int(1), ir.Int(2)), ir.SingleInteger, "variable $x")
	require.NoError(t, err)
	require.IsType(t, &CardinalityCheck{}, wrapped)
	_, err = wrapped.Evaluate(newTestContext(0))
	assert.True(t, HasCode(err, ErrTypeMismatch))
	assert.False(t, IsStaticError(err))
}

func TestVisit(t *testing.T) {
	x := NewBinding("x", 0)
	y := NewBinding("y", 1)
	e := NewArithmetic(OpAdd, NewVarRef(x, loc), NewArithmetic(OpMul, NewVarRef(x, loc), NewVarRef(y, loc), loc), loc)

	assert.Equal(t, 2, CountReferences(e, x))
	assert.True(t, DependsOnVariable(e, y))
	assert.True(t, DependsOnAny(e, []*Binding{NewBinding("z", 2), y}))
	assert.Equal(t, []int{0, 1}, ReferencedSlots(e))
	assert.False(t, DependsOnFocus(e))

	replaced := ReplaceVariable(e, x, func(*VarRef) Expression { return lit(ir.Int(10)) })
	assert.Equal(t, 0, CountReferences(replaced, x))

	c := newTestContext(2)
	c.SetSequence(1, ir.Ints(3))
	got, err := replaced.Evaluate(c)
	require.NoError(t, err)
	assert.Equal(t, ir.Ints(40), got)
}

func TestReplaceContextItem(t *testing.T) {
	e := NewArithmetic(OpAdd, NewContextItem(loc), lit(ir.Int(1)), loc)
	assert.True(t, DependsOnFocus(e))

	got := ReplaceContextItem(e, func(*ContextItem) Expression { return lit(ir.Int(4)) })
	assert.False(t, DependsOnFocus(got))

	seq, err := got.Evaluate(newTestContext(0))
	require.NoError(t, err)
	assert.Equal(t, ir.Ints(5), seq)
}

func TestErrors(t *testing.T) {
	err := fmt.Errorf("evaluate: %w", DynamicError(ErrUserError, Location{Line: 2, Column: 7}, "custom %s", "failure"))

	code, ok := CodeOf(err)
	require.True(t, ok)
	assert.Equal(t, ErrUserError, code)
	assert.False(t, IsStaticError(err))
	assert.Contains(t, err.Error(), "FOER0000 at 2:7: custom failure")

	_, ok = CodeOf(assert.AnError)
	assert.False(t, ok)

	assert.Equal(t, "XPST0003: bad", StaticError(ErrSyntax, Location{}, "bad").Error())
}

func TestInternalf(t *testing.T) {
	defer func() {
		r := recover()
		ie, ok := r.(*InternalError)
		require.True(t, ok, "panic value is *InternalError")
		assert.Equal(t, "internal error: slot 3 unbound", ie.Error())
	}()
	Internalf("slot %d unbound", 3)
}

func TestExplain(t *testing.T) {
	e := NewArithmetic(OpAdd, lit(ir.Int(1)), lit(ir.Int(2)), loc)
	plan := Explain(e)
	assert.Contains(t, plan, "literal")
	assert.Contains(t, plan, "+")
}
