package expr

import "sort"

// Deps records which parts of the focus an expression reads.
type Deps uint8

const (
	DepContextItem Deps = 1 << iota
	DepPosition
	DepLast

	DepFocus = DepContextItem | DepPosition | DepLast
)

// Walk visits e and its descendants in pre-order. Returning false from fn
// skips the children of the node.
func Walk(e Expression, fn func(Expression) bool) {
	if !fn(e) {
		return
	}
	for _, op := range e.Operands() {
		Walk(op.Expr, fn)
	}
}

// FocusDependencies reports which parts of the focus e reads from its own
// evaluation context. Reads inside focus-changing operands see a focus set by
// their parent and do not count.
func FocusDependencies(e Expression) Deps {
	var d Deps
	switch n := e.(type) {
	case *ContextItem:
		d |= DepContextItem
	case *FunctionCall:
		d |= n.Fn.Focus
	}
	for _, op := range e.Operands() {
		if op.FocusChanging {
			continue
		}
		d |= FocusDependencies(op.Expr)
	}
	return d
}

// DependsOnFocus reports whether e reads the context item, position or size.
func DependsOnFocus(e Expression) bool {
	return FocusDependencies(e) != 0
}

// References returns every reference to b inside e.
func References(e Expression, b *Binding) []*VarRef {
	var refs []*VarRef
	Walk(e, func(n Expression) bool {
		if ref, ok := n.(*VarRef); ok && ref.Binding == b {
			refs = append(refs, ref)
		}
		return true
	})
	return refs
}

// CountReferences returns the number of references to b inside e.
func CountReferences(e Expression, b *Binding) int {
	return len(References(e, b))
}

// DependsOnVariable reports whether e references b.
func DependsOnVariable(e Expression, b *Binding) bool {
	found := false
	Walk(e, func(n Expression) bool {
		if found {
			return false
		}
		if ref, ok := n.(*VarRef); ok && ref.Binding == b {
			found = true
		}
		return !found
	})
	return found
}

// DependsOnAny reports whether e references any of bs.
func DependsOnAny(e Expression, bs []*Binding) bool {
	for _, b := range bs {
		if DependsOnVariable(e, b) {
			return true
		}
	}
	return false
}

// ReferencedSlots returns the distinct slots read by variable references in
// e, in ascending order.
func ReferencedSlots(e Expression) []int {
	seen := make(map[int]bool)
	Walk(e, func(n Expression) bool {
		if ref, ok := n.(*VarRef); ok {
			seen[ref.Binding.Slot] = true
		}
		return true
	})
	slots := make([]int, 0, len(seen))
	for s := range seen {
		slots = append(slots, s)
	}
	sort.Ints(slots)
	return slots
}

// ReplaceVariable replaces every reference to b in e with a fresh expression
// from repl and returns the new root.
func ReplaceVariable(e Expression, b *Binding, repl func(ref *VarRef) Expression) Expression {
	if ref, ok := e.(*VarRef); ok && ref.Binding == b {
		return repl(ref)
	}
	for _, op := range e.Operands() {
		op.Expr = ReplaceVariable(op.Expr, b, repl)
	}
	return e
}

// ReplaceContextItem replaces every "." that reads the focus of e itself
// (not a focus set inside e) and returns the new root.
func ReplaceContextItem(e Expression, repl func(ci *ContextItem) Expression) Expression {
	if ci, ok := e.(*ContextItem); ok {
		return repl(ci)
	}
	for _, op := range e.Operands() {
		if op.FocusChanging {
			continue
		}
		op.Expr = ReplaceContextItem(op.Expr, repl)
	}
	return e
}

// ReferencedUnderFocusChange reports whether some reference to b in e sits
// inside a focus-changing operand (a predicate or a path step).
func ReferencedUnderFocusChange(e Expression, b *Binding) bool {
	for _, op := range e.Operands() {
		if op.FocusChanging {
			if DependsOnVariable(op.Expr, b) {
				return true
			}
			continue
		}
		if ReferencedUnderFocusChange(op.Expr, b) {
			return true
		}
	}
	return false
}

// Looper is implemented by nodes whose own looping structure is not fully
// described by Operand.Looping, such as FLWOR expressions.
type Looper interface {
	HasLoopingVariableReference(b *Binding) bool
}

// IsLoopingReference reports whether references to b in e are evaluated
// repeatedly, consulting Looper nodes on the way down.
func IsLoopingReference(e Expression, b *Binding) bool {
	if l, ok := e.(Looper); ok {
		return l.HasLoopingVariableReference(b)
	}
	for _, op := range e.Operands() {
		if !DependsOnVariable(op.Expr, b) {
			continue
		}
		if op.Looping || IsLoopingReference(op.Expr, b) {
			return true
		}
	}
	return false
}

type updater interface {
	IsUpdating() bool
}

// IsUpdating reports whether e contains an updating expression.
func IsUpdating(e Expression) bool {
	found := false
	Walk(e, func(n Expression) bool {
		if u, ok := n.(updater); ok && u.IsUpdating() {
			found = true
		}
		return !found
	})
	return found
}

// IsNonDeterministic reports whether e calls a function that may have side
// effects or vary between calls.
func IsNonDeterministic(e Expression) bool {
	found := false
	Walk(e, func(n Expression) bool {
		if call, ok := n.(*FunctionCall); ok && call.Fn.NonDeterministic {
			found = true
		}
		return !found
	})
	return found
}
