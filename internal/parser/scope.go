package parser

import (
	"github.com/roach88/flwor/internal/expr"
	"github.com/roach88/flwor/internal/ir"
)

// SlotManager resolves variable names to bindings. It keeps a stack of
// scopes and gives every declared variable a fresh frame slot, so two
// variables never share a slot even when one shadows the other.
type SlotManager struct {
	slots *expr.SlotAllocator
	stack []map[string]*expr.Binding
}

// NewSlotManager creates a manager with one open scope.
func NewSlotManager(slots *expr.SlotAllocator) *SlotManager {
	if slots == nil {
		slots = &expr.SlotAllocator{}
	}
	return &SlotManager{slots: slots, stack: []map[string]*expr.Binding{{}}}
}

// Slots returns the allocator backing the manager.
func (m *SlotManager) Slots() *expr.SlotAllocator {
	return m.slots
}

// Enter opens a nested scope.
func (m *SlotManager) Enter() {
	m.stack = append(m.stack, map[string]*expr.Binding{})
}

// Exit closes the innermost scope.
func (m *SlotManager) Exit() {
	m.stack = m.stack[:len(m.stack)-1]
}

// Declare binds name in the innermost scope. A nil declared type makes an
// untyped binding.
func (m *SlotManager) Declare(name string, declared *ir.SequenceType) *expr.Binding {
	var b *expr.Binding
	if declared != nil {
		b = expr.NewTypedBinding(name, m.slots.Allocate(), *declared)
	} else {
		b = expr.NewBinding(name, m.slots.Allocate())
	}
	m.Bind(b)
	return b
}

// Bind makes an existing binding visible in the innermost scope.
func (m *SlotManager) Bind(b *expr.Binding) {
	m.stack[len(m.stack)-1][b.Name] = b
}

// Lookup finds the innermost binding of name.
func (m *SlotManager) Lookup(name string) (*expr.Binding, bool) {
	for i := len(m.stack) - 1; i >= 0; i-- {
		if b, ok := m.stack[i][name]; ok {
			return b, true
		}
	}
	return nil, false
}
