package flwor

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/roach88/flwor/internal/expr"
	"github.com/roach88/flwor/internal/ir"
)

var loc = expr.Location{Line: 1, Column: 1}

// fixture builds expressions by hand and evaluates them in both modes.
type fixture struct {
	t     *testing.T
	lib   *expr.Library
	slots *expr.SlotAllocator
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	return &fixture{t: t, lib: expr.DefaultLibrary(), slots: &expr.SlotAllocator{}}
}

func (f *fixture) bind(name string) *expr.Binding {
	return expr.NewBinding(name, f.slots.Allocate())
}

func (f *fixture) call(name string, args ...expr.Expression) expr.Expression {
	fn, ok := f.lib.Lookup(name, len(args))
	require.True(f.t, ok, "function %s#%d", name, len(args))
	return expr.NewFunctionCall(fn, args, loc)
}

func ref(b *expr.Binding) expr.Expression {
	return expr.NewVarRef(b, loc)
}

func lit(seq ir.Sequence) expr.Expression {
	return expr.NewLiteral(seq, loc)
}

func ints(vals ...int64) expr.Expression {
	return lit(ir.Ints(vals...))
}

func span1to(n int64) expr.Expression {
	return expr.NewRange(ints(1), ints(n), loc)
}

func eq(lhs, rhs expr.Expression) expr.Expression {
	return expr.NewValueComparison(expr.OpEq, lhs, rhs, loc)
}

func arith(op expr.ArithOp, lhs, rhs expr.Expression) expr.Expression {
	return expr.NewArithmetic(op, lhs, rhs, loc)
}

func seq(items ...expr.Expression) expr.Expression {
	return expr.NewSequenceExpr(items, loc)
}

// compile type-checks e and, when optimize is set, optimizes it.
func (f *fixture) compile(e expr.Expression, optimize bool) expr.Expression {
	f.t.Helper()
	sc := expr.NewStaticContext(f.lib, f.slots)
	checked, err := expr.TypeCheck(sc, e, ir.AnyItem)
	require.NoError(f.t, err)
	if !optimize {
		return checked
	}
	opt, err := expr.Optimize(sc, checked, ir.AnyItem)
	require.NoError(f.t, err)
	return opt
}

func (f *fixture) context(env *expr.Env) *expr.Context {
	return expr.NewContext(context.Background(), env, f.slots.Size())
}

func (f *fixture) pull(e expr.Expression, env *expr.Env) (ir.Sequence, error) {
	it, err := e.Iterate(f.context(env))
	if err != nil {
		return nil, err
	}
	return expr.Drain(it)
}

func (f *fixture) push(e expr.Expression, env *expr.Env) (ir.Sequence, error) {
	var out expr.SequenceReceiver
	if err := e.Process(f.context(env), &out); err != nil {
		return nil, err
	}
	return out.Items, nil
}

// eval evaluates e in pull and push mode, requires both to agree and
// returns the result.
func (f *fixture) eval(e expr.Expression) ir.Sequence {
	f.t.Helper()
	pulled, err := f.pull(e, nil)
	require.NoError(f.t, err)
	pushed, err := f.push(e, nil)
	require.NoError(f.t, err)
	require.Equal(f.t, pulled, pushed, "pull and push results differ")
	return pulled
}

// forEachMode runs fn on a freshly built expression, once unoptimized and
// once optimized.
func forEachMode(t *testing.T, build func(f *fixture) expr.Expression, fn func(t *testing.T, f *fixture, e expr.Expression)) {
	for _, optimize := range []bool{false, true} {
		name := "checked"
		if optimize {
			name = "optimized"
		}
		t.Run(name, func(t *testing.T) {
			f := newFixture(t)
			fn(t, f, f.compile(build(f), optimize))
		})
	}
}

// countingSource yields items and records how often its iterators are
// opened and closed.
type countingSource struct {
	items  ir.Sequence
	opened int
	closed int
}

func (s *countingSource) Evaluate(*expr.Context) (ir.Sequence, error) { return s.items, nil }

func (s *countingSource) Iterate(*expr.Context) (expr.Iterator, error) {
	s.opened++
	return &countingIterator{src: s}, nil
}

func (s *countingSource) Process(_ *expr.Context, out expr.Receiver) error {
	for _, it := range s.items {
		if err := out.Append(it); err != nil {
			return err
		}
	}
	return nil
}

func (s *countingSource) EffectiveBooleanValue(*expr.Context) (bool, error) {
	return ir.EffectiveBooleanValue(s.items)
}

func (s *countingSource) StaticType() ir.SequenceType { return ir.AnySequence }

func (s *countingSource) Operands() []*expr.Operand { return nil }

func (s *countingSource) Copy(*expr.Rebinder) expr.Expression { return s }

func (s *countingSource) Explain(w *expr.ExplainWriter) { w.Line("source") }

func (s *countingSource) Location() expr.Location { return loc }

type countingIterator struct {
	src *countingSource
	pos int
}

func (it *countingIterator) Next() (ir.Item, error) {
	if it.pos >= len(it.src.items) {
		return nil, nil
	}
	it.pos++
	return it.src.items[it.pos-1], nil
}

func (it *countingIterator) Close() error {
	it.src.closed++
	return nil
}

// traceRecorder collects trace events.
type traceRecorder struct {
	enters []expr.TraceInfo
	leaves []expr.TraceInfo
}

func (r *traceRecorder) Enter(_ *expr.Context, info expr.TraceInfo) {
	r.enters = append(r.enters, info)
}

func (r *traceRecorder) Leave(info expr.TraceInfo) {
	r.leaves = append(r.leaves, info)
}
