package expr

import (
	"github.com/roach88/flwor/internal/ir"
)

// Binding is one declared variable: a name, a frame slot and a type.
//
// Bindings have identity. Copying an expression tree creates new Bindings
// through a Rebinder so the copy never aliases the original.
type Binding struct {
	// Name is the variable name without the leading $.
	Name string

	// Slot is the frame slot holding the variable's value.
	Slot int

	// Declared is the type from an "as" annotation, AnySequence otherwise.
	Declared ir.SequenceType

	// Typed is true when Declared came from an annotation.
	Typed bool
}

// NewBinding creates an untyped binding.
func NewBinding(name string, slot int) *Binding {
	return &Binding{Name: name, Slot: slot, Declared: ir.AnySequence}
}

// NewTypedBinding creates a binding with a declared type.
func NewTypedBinding(name string, slot int, declared ir.SequenceType) *Binding {
	return &Binding{Name: name, Slot: slot, Declared: declared, Typed: true}
}

func (b *Binding) String() string {
	return "$" + b.Name
}

// Rebinder maps original bindings to their copies during Copy.
type Rebinder struct {
	m map[*Binding]*Binding
}

// NewRebinder creates an empty Rebinder.
func NewRebinder() *Rebinder {
	return &Rebinder{m: make(map[*Binding]*Binding)}
}

// Bind registers a fresh copy of old and returns it. A nil binding stays nil.
func (r *Rebinder) Bind(old *Binding) *Binding {
	if old == nil {
		return nil
	}
	nb := *old
	r.m[old] = &nb
	return &nb
}

// Lookup returns the copy registered for b, or b itself when b was declared
// outside the subtree being copied.
func (r *Rebinder) Lookup(b *Binding) *Binding {
	if nb, ok := r.m[b]; ok {
		return nb
	}
	return b
}

// VarRef is a reference to a variable.
type VarRef struct {
	node
	Binding *Binding

	refined    bool
	staticType ir.SequenceType
}

// NewVarRef creates a reference to b.
func NewVarRef(b *Binding, loc Location) *VarRef {
	return &VarRef{node: node{loc: loc}, Binding: b}
}

func (v *VarRef) Evaluate(c *Context) (ir.Sequence, error) {
	return c.Sequence(v.Binding.Slot)
}

func (v *VarRef) Iterate(c *Context) (Iterator, error) {
	return iterateEvaluated(v, c)
}

func (v *VarRef) Process(c *Context, out Receiver) error {
	return processEvaluated(v, c, out)
}

func (v *VarRef) EffectiveBooleanValue(c *Context) (bool, error) {
	return ebvEvaluated(v, c)
}

// StaticType is the refined type when known, else the declared type.
func (v *VarRef) StaticType() ir.SequenceType {
	if v.refined {
		return v.staticType
	}
	return v.Binding.Declared
}

// Refine records a sharper static type for this reference site.
func (v *VarRef) Refine(t ir.SequenceType) {
	if v.refined || v.Binding.Typed {
		// Keep the most specific of the declared and inferred types.
		cur := v.StaticType()
		if !cur.Subsumes(t) {
			return
		}
	}
	v.refined = true
	v.staticType = t
}

func (v *VarRef) Operands() []*Operand {
	return nil
}

func (v *VarRef) Copy(r *Rebinder) Expression {
	nv := *v
	nv.Binding = r.Lookup(v.Binding)
	return &nv
}

func (v *VarRef) Explain(w *ExplainWriter) {
	w.Line("var " + v.Binding.String())
}

// EvalMode is how a let-style binding materializes its value.
type EvalMode int

const (
	// EvalUnreferenced: nothing reads the variable, never evaluate.
	EvalUnreferenced EvalMode = iota

	// EvalEager: evaluate immediately; used for trivial expressions.
	EvalEager

	// EvalLazy: defer until the single, non-repeated read.
	EvalLazy

	// EvalMemo: defer and remember the first result.
	EvalMemo
)

func (m EvalMode) String() string {
	switch m {
	case EvalUnreferenced:
		return "unreferenced"
	case EvalEager:
		return "eager"
	case EvalLazy:
		return "lazy"
	case EvalMemo:
		return "memo"
	}
	return "unknown"
}

// ChooseEvalMode picks the evaluation mode for a variable bound to value that
// is referenced refs times, looping reporting whether any reference may be
// evaluated repeatedly per binding.
func ChooseEvalMode(value Expression, refs int, looping bool) EvalMode {
	if refs == 0 {
		return EvalUnreferenced
	}
	switch value.(type) {
	case *Literal, *VarRef:
		return EvalEager
	}
	if refs == 1 && !looping {
		return EvalLazy
	}
	return EvalMemo
}

// BindValue stores the value of a let-style binding in its slot according to
// mode. captured lists the slots value may read.
func BindValue(c *Context, b *Binding, value Expression, mode EvalMode, captured []int) error {
	switch mode {
	case EvalUnreferenced:
		return nil
	case EvalEager:
		if ref, ok := value.(*VarRef); ok {
			// Share the source slot's value without forcing it.
			c.SetValue(b.Slot, c.Value(ref.Binding.Slot))
			return nil
		}
		seq, err := value.Evaluate(c)
		if err != nil {
			return err
		}
		c.SetSequence(b.Slot, seq)
	case EvalLazy:
		c.SetValue(b.Slot, NewClosure(c, value, captured, false))
	default:
		c.SetValue(b.Slot, NewClosure(c, value, captured, true))
	}
	return nil
}
