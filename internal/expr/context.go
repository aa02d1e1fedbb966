package expr

import (
	"context"
	"log/slog"

	"github.com/roach88/flwor/internal/ir"
)

// Env is the per-evaluation environment shared by every Context derived from
// the same root. It is read-only during evaluation.
type Env struct {
	// Collections resolves collection("name") and pushed-down queries.
	// Nil means no collections are available.
	Collections CollectionResolver

	// Trace receives enter/leave events from trace clauses. Nil disables
	// tracing.
	Trace TraceListener

	// Logger receives diagnostic output. Nil means slog.Default().
	Logger *slog.Logger

	// PreferPush selects push-mode evaluation for FLWOR expressions whose
	// result is being collected (Evaluate). Iterate is always pull.
	PreferPush bool

	// ExecutionID identifies this evaluation in logs and spans.
	ExecutionID string
}

// Focus is the dynamic focus: context item, its 1-based position, and the
// size of the sequence being iterated.
type Focus struct {
	Item     ir.Item
	Position int
	Size     int
}

// Frame is the array of variable slots for one evaluation.
//
// CRITICAL: Clauses and variable references hold slot indexes, never
// pointers into the frame. A frame is owned by one goroutine.
type Frame struct {
	slots []Value
}

// NewFrame allocates a frame with size empty slots.
func NewFrame(size int) *Frame {
	return &Frame{slots: make([]Value, size)}
}

// Size returns the number of slots.
func (f *Frame) Size() int {
	return len(f.slots)
}

// Context is the dynamic evaluation context: frame, focus and environment.
// Contexts are cheap values; WithFocus returns a new Context sharing the
// same frame.
type Context struct {
	ctx   context.Context
	env   *Env
	frame *Frame
	focus *Focus
}

// NewContext creates a root context with a fresh frame of frameSize slots.
func NewContext(ctx context.Context, env *Env, frameSize int) *Context {
	if ctx == nil {
		ctx = context.Background()
	}
	if env == nil {
		env = &Env{}
	}
	return &Context{ctx: ctx, env: env, frame: NewFrame(frameSize)}
}

// Go returns the Go context used for blocking reads.
func (c *Context) Go() context.Context {
	return c.ctx
}

// Err reports cancellation of the underlying Go context.
func (c *Context) Err() error {
	return c.ctx.Err()
}

// Env returns the evaluation environment.
func (c *Context) Env() *Env {
	return c.env
}

// Logger returns the evaluation logger.
func (c *Context) Logger() *slog.Logger {
	if c.env.Logger != nil {
		return c.env.Logger
	}
	return slog.Default()
}

// Frame returns the variable frame.
func (c *Context) Frame() *Frame {
	return c.frame
}

// Focus returns the current focus, or nil when the context item is absent.
func (c *Context) Focus() *Focus {
	return c.focus
}

// WithFocus returns a context with the given focus and the same frame.
func (c *Context) WithFocus(item ir.Item, position, size int) *Context {
	nc := *c
	nc.focus = &Focus{Item: item, Position: position, Size: size}
	return &nc
}

// WithoutFocus returns a context with an absent focus.
func (c *Context) WithoutFocus() *Context {
	nc := *c
	nc.focus = nil
	return &nc
}

// Value returns the raw value held in a slot, which may be an unforced
// Closure. Tuple snapshots copy raw values.
func (c *Context) Value(slot int) Value {
	return c.frame.slots[slot]
}

// SetValue stores a value in a slot.
func (c *Context) SetValue(slot int, v Value) {
	c.frame.slots[slot] = v
}

// SetSequence stores a materialized sequence in a slot.
func (c *Context) SetSequence(slot int, seq ir.Sequence) {
	c.frame.slots[slot] = Materialized(seq)
}

// Sequence reads a slot, forcing a lazy value.
func (c *Context) Sequence(slot int) (ir.Sequence, error) {
	v := c.frame.slots[slot]
	if v == nil {
		Internalf("slot %d read before it was bound", slot)
	}
	return v.Force()
}

// snapshot returns a context over a new frame that holds copies of the given
// slots. Closures evaluate against snapshots so that later tuples
// overwriting the live frame do not change their result.
func (c *Context) snapshot(slots []int) *Context {
	nc := *c
	nc.frame = NewFrame(len(c.frame.slots))
	for _, s := range slots {
		nc.frame.slots[s] = c.frame.slots[s]
	}
	return &nc
}

// Value is the content of a frame slot.
type Value interface {
	Force() (ir.Sequence, error)
}

// Materialized is an already evaluated slot value.
type Materialized ir.Sequence

// Force returns the sequence.
func (m Materialized) Force() (ir.Sequence, error) {
	return ir.Sequence(m), nil
}

// Closure is a deferred slot value. It captures the slots its expression
// reads plus the focus at creation time. With memo set the first result (or
// error) is remembered; otherwise every Force re-evaluates.
type Closure struct {
	expr Expression
	ctx  *Context
	memo bool

	done bool
	seq  ir.Sequence
	err  error
}

// NewClosure defers evaluation of e. captured lists the slots e may read.
func NewClosure(c *Context, e Expression, captured []int, memo bool) *Closure {
	return &Closure{expr: e, ctx: c.snapshot(captured), memo: memo}
}

// Force evaluates the closure.
func (cl *Closure) Force() (ir.Sequence, error) {
	if cl.done {
		return cl.seq, cl.err
	}
	seq, err := cl.expr.Evaluate(cl.ctx)
	if cl.memo {
		cl.done = true
		cl.seq, cl.err = seq, err
		// Release the snapshot once the value is known.
		cl.ctx = nil
		cl.expr = nil
	}
	return seq, err
}

// SlotAllocator hands out frame slots. The parser allocates one slot per
// declared variable; the optimizer allocates more for synthetic bindings.
type SlotAllocator struct {
	next int
}

// Allocate returns a fresh slot index.
func (a *SlotAllocator) Allocate() int {
	s := a.next
	a.next++
	return s
}

// Size returns the number of slots allocated so far, which is the frame size
// needed to evaluate the expressions they were allocated for.
func (a *SlotAllocator) Size() int {
	return a.next
}
