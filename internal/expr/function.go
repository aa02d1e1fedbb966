package expr

import (
	"fmt"
	"sort"
	"strings"

	"github.com/agext/levenshtein"

	"github.com/roach88/flwor/internal/ir"
)

// FunctionImpl computes a function result from evaluated arguments.
type FunctionImpl func(c *Context, args []ir.Sequence, loc Location) (ir.Sequence, error)

// Function describes one function signature in a Library.
type Function struct {
	Name    string
	MinArgs int
	// MaxArgs is -1 for variadic functions.
	MaxArgs int
	Result  ir.SequenceType

	// Focus lists the parts of the focus the function reads.
	Focus Deps

	// Updating functions modify state and are rejected inside clauses.
	Updating bool

	// NonDeterministic functions may return different results or have side
	// effects on every call; the optimizer never inlines or duplicates them.
	NonDeterministic bool

	Impl FunctionImpl
}

func (f *Function) accepts(arity int) bool {
	return arity >= f.MinArgs && (f.MaxArgs < 0 || arity <= f.MaxArgs)
}

// Library is a set of functions addressed by name and arity.
// A Library is populated before compilation and read-only afterwards.
type Library struct {
	funcs map[string][]*Function
}

// NewLibrary creates an empty library.
func NewLibrary() *Library {
	return &Library{funcs: make(map[string][]*Function)}
}

// Register adds a function. Overlapping arities for the same name fail.
func (l *Library) Register(fn *Function) error {
	if fn.Impl == nil {
		return fmt.Errorf("function %s: missing implementation", fn.Name)
	}
	for _, existing := range l.funcs[fn.Name] {
		if overlaps(existing, fn) {
			return fmt.Errorf("function %s: arity %d..%d already registered", fn.Name, fn.MinArgs, fn.MaxArgs)
		}
	}
	l.funcs[fn.Name] = append(l.funcs[fn.Name], fn)
	return nil
}

func overlaps(a, b *Function) bool {
	aMax, bMax := a.MaxArgs, b.MaxArgs
	if aMax < 0 {
		aMax = int(^uint(0) >> 1)
	}
	if bMax < 0 {
		bMax = int(^uint(0) >> 1)
	}
	return a.MinArgs <= bMax && b.MinArgs <= aMax
}

// Lookup finds the function accepting arity arguments.
func (l *Library) Lookup(name string, arity int) (*Function, bool) {
	for _, fn := range l.funcs[name] {
		if fn.accepts(arity) {
			return fn, true
		}
	}
	return nil, false
}

// Names returns every registered name, sorted.
func (l *Library) Names() []string {
	names := make([]string, 0, len(l.funcs))
	for n := range l.funcs {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// Clone returns a library with the same functions that can be extended
// without affecting l.
func (l *Library) Clone() *Library {
	nl := NewLibrary()
	for name, fns := range l.funcs {
		nl.funcs[name] = append([]*Function(nil), fns...)
	}
	return nl
}

// Suggest returns the registered name closest to name, or "" when nothing is
// close. The allowed edit distance grows with the length of name: one edit
// up to three characters, two up to six, three beyond.
func (l *Library) Suggest(name string) string {
	threshold := 1
	switch {
	case len(name) >= 7:
		threshold = 3
	case len(name) >= 4:
		threshold = 2
	}

	lower := strings.ToLower(name)
	best, bestDist := "", -1
	for _, candidate := range l.Names() {
		d := levenshtein.Distance(lower, strings.ToLower(candidate), nil)
		if bestDist < 0 || d < bestDist {
			best, bestDist = candidate, d
		}
	}
	if bestDist <= 0 || bestDist > threshold {
		return ""
	}
	return best
}

// FunctionCall is a static call to a library function.
type FunctionCall struct {
	node
	Fn   *Function
	Args []Operand
}

// NewFunctionCall creates a call to fn.
func NewFunctionCall(fn *Function, args []Expression, loc Location) *FunctionCall {
	call := &FunctionCall{node: node{loc: loc}, Fn: fn}
	for _, a := range args {
		call.Args = append(call.Args, NewOperand(a))
	}
	return call
}

func (f *FunctionCall) Evaluate(c *Context) (ir.Sequence, error) {
	args := make([]ir.Sequence, len(f.Args))
	for i, op := range f.Args {
		seq, err := op.Expr.Evaluate(c)
		if err != nil {
			return nil, err
		}
		args[i] = seq
	}
	return f.Fn.Impl(c, args, f.loc)
}

func (f *FunctionCall) Iterate(c *Context) (Iterator, error) {
	return iterateEvaluated(f, c)
}

func (f *FunctionCall) Process(c *Context, out Receiver) error {
	return processEvaluated(f, c, out)
}

func (f *FunctionCall) EffectiveBooleanValue(c *Context) (bool, error) {
	return ebvEvaluated(f, c)
}

func (f *FunctionCall) StaticType() ir.SequenceType {
	return f.Fn.Result
}

func (f *FunctionCall) Operands() []*Operand {
	ops := make([]*Operand, len(f.Args))
	for i := range f.Args {
		ops[i] = &f.Args[i]
	}
	return ops
}

func (f *FunctionCall) Copy(r *Rebinder) Expression {
	nf := &FunctionCall{node: f.node, Fn: f.Fn, Args: make([]Operand, len(f.Args))}
	for i, op := range f.Args {
		nf.Args[i] = NewOperand(op.Expr.Copy(r))
	}
	return nf
}

func (f *FunctionCall) Explain(w *ExplainWriter) {
	if len(f.Args) == 0 {
		w.Line("call " + f.Fn.Name + "()")
		return
	}
	w.Begin("call " + f.Fn.Name)
	for _, op := range f.Args {
		op.Expr.Explain(w)
	}
	w.End()
}

// IsUpdating reports whether the call modifies state.
func (f *FunctionCall) IsUpdating() bool {
	return f.Fn.Updating
}
