package expr

import (
	"errors"
	"log/slog"

	"github.com/roach88/flwor/internal/ir"
)

// Expression is a node of the expression tree.
//
// The four evaluation entry points must agree: Evaluate returns exactly the
// items Iterate yields and Process pushes, and EffectiveBooleanValue is the
// effective boolean value of that sequence.
type Expression interface {
	// Evaluate returns the full result sequence.
	Evaluate(c *Context) (ir.Sequence, error)

	// Iterate returns a pull cursor over the result.
	Iterate(c *Context) (Iterator, error)

	// Process pushes the result into out.
	Process(c *Context, out Receiver) error

	// EffectiveBooleanValue evaluates the expression as a condition.
	EffectiveBooleanValue(c *Context) (bool, error)

	// StaticType is the inferred type of the result.
	StaticType() ir.SequenceType

	// Operands returns the child slots of this node. Callers may replace
	// Operand.Expr in place.
	Operands() []*Operand

	// Copy deep-copies the subtree. Variables declared inside the subtree
	// get fresh bindings registered with r; references are redirected
	// through r.
	Copy(r *Rebinder) Expression

	// Explain writes the node for plan output.
	Explain(w *ExplainWriter)

	// Location is the position of the node in the query text.
	Location() Location
}

// Operand is one child of an expression and how the parent evaluates it.
type Operand struct {
	Expr Expression

	// FocusChanging operands are evaluated with a focus set by the parent
	// from the nearest preceding operand that is not focus-changing.
	FocusChanging bool

	// Looping operands may be evaluated more than once per evaluation of
	// the parent.
	Looping bool
}

// NewOperand wraps a plain child expression.
func NewOperand(e Expression) Operand {
	return Operand{Expr: e}
}

// TypeCheckable is implemented by nodes that take over static checking of
// their whole subtree.
type TypeCheckable interface {
	TypeCheck(sc *StaticContext, contextItemType ir.ItemType) (Expression, error)
}

// Optimizable is implemented by nodes that take over optimization of their
// whole subtree.
type Optimizable interface {
	Optimize(sc *StaticContext, contextItemType ir.ItemType) (Expression, error)
}

// selfChecker runs after the operands of a node have been checked.
type selfChecker interface {
	checkSelf(sc *StaticContext) (Expression, error)
}

// selfOptimizer runs after the operands of a node have been optimized.
type selfOptimizer interface {
	optimizeSelf(sc *StaticContext) (Expression, error)
}

// StaticContext carries compile-time services.
type StaticContext struct {
	// Functions resolves function calls.
	Functions *Library

	// Slots allocates frame slots for synthetic variables.
	Slots *SlotAllocator

	// Logger receives optimizer diagnostics. Nil means slog.Default().
	Logger *slog.Logger
}

// NewStaticContext creates a static context over a function library and a
// slot allocator.
func NewStaticContext(lib *Library, slots *SlotAllocator) *StaticContext {
	if lib == nil {
		lib = DefaultLibrary()
	}
	if slots == nil {
		slots = &SlotAllocator{}
	}
	return &StaticContext{Functions: lib, Slots: slots}
}

// Log returns the optimizer logger.
func (sc *StaticContext) Log() *slog.Logger {
	if sc.Logger != nil {
		return sc.Logger
	}
	return slog.Default()
}

// TypeCheck statically checks e and its subtree. It may return a different
// expression, e.g. one wrapped in a run-time type check.
func TypeCheck(sc *StaticContext, e Expression, contextItemType ir.ItemType) (Expression, error) {
	if tc, ok := e.(TypeCheckable); ok {
		return tc.TypeCheck(sc, contextItemType)
	}
	if err := rewriteOperands(sc, e, contextItemType, TypeCheck); err != nil {
		return nil, err
	}
	if s, ok := e.(selfChecker); ok {
		return s.checkSelf(sc)
	}
	return e, nil
}

// Optimize rewrites e and its subtree into a cheaper equivalent.
func Optimize(sc *StaticContext, e Expression, contextItemType ir.ItemType) (Expression, error) {
	if o, ok := e.(Optimizable); ok {
		return o.Optimize(sc, contextItemType)
	}
	if err := rewriteOperands(sc, e, contextItemType, Optimize); err != nil {
		return nil, err
	}
	if s, ok := e.(selfOptimizer); ok {
		return s.optimizeSelf(sc)
	}
	return e, nil
}

type rewriteFunc func(sc *StaticContext, e Expression, contextItemType ir.ItemType) (Expression, error)

// rewriteOperands applies fn to every operand, giving focus-changing
// operands the item type of the focus-setting sibling.
func rewriteOperands(sc *StaticContext, e Expression, contextItemType ir.ItemType, fn rewriteFunc) error {
	focus := contextItemType
	for _, op := range e.Operands() {
		t := contextItemType
		if op.FocusChanging {
			t = focus
		}
		ne, err := fn(sc, op.Expr, t)
		if err != nil {
			return err
		}
		op.Expr = ne
		if !op.FocusChanging {
			focus = ne.StaticType().Item
		}
	}
	return nil
}

// node carries the location shared by all expression kinds.
type node struct {
	loc Location
}

func (n node) Location() Location {
	return n.loc
}

// iterateEvaluated implements Iterate via Evaluate.
func iterateEvaluated(e Expression, c *Context) (Iterator, error) {
	seq, err := e.Evaluate(c)
	if err != nil {
		return nil, err
	}
	return SequenceIterator(seq), nil
}

// processEvaluated implements Process via Evaluate.
func processEvaluated(e Expression, c *Context, out Receiver) error {
	seq, err := e.Evaluate(c)
	if err != nil {
		return err
	}
	return appendAll(out, seq)
}

// ebvEvaluated implements EffectiveBooleanValue via Evaluate.
func ebvEvaluated(e Expression, c *Context) (bool, error) {
	seq, err := e.Evaluate(c)
	if err != nil {
		return false, err
	}
	return effectiveBooleanValue(seq, e.Location())
}

func effectiveBooleanValue(seq ir.Sequence, loc Location) (bool, error) {
	b, err := ir.EffectiveBooleanValue(seq)
	if err != nil {
		return false, DynamicError(ErrInvalidArgument, loc, "%v", err)
	}
	return b, nil
}

// EvaluateAtomic evaluates e, atomizes the result and requires at most one
// item. Returns nil for the empty sequence.
func EvaluateAtomic(e Expression, c *Context) (ir.Item, error) {
	seq, err := e.Evaluate(c)
	if err != nil {
		return nil, err
	}
	atoms, err := Atomize(seq, e.Location())
	if err != nil {
		return nil, err
	}
	switch len(atoms) {
	case 0:
		return nil, nil
	case 1:
		return atoms[0], nil
	}
	return nil, DynamicError(ErrTypeMismatch, e.Location(),
		"expected at most one atomic value, got %d", len(atoms))
}

// Atomize atomizes a sequence, mapping failures to FOTY0013.
func Atomize(seq ir.Sequence, loc Location) (ir.Sequence, error) {
	atoms, err := ir.Atomize(seq)
	if err != nil {
		if errors.Is(err, ir.ErrNotAtomizable) {
			return nil, DynamicError(ErrNotAtomizable, loc, "%v", err)
		}
		return nil, err
	}
	return atoms, nil
}
