package engine

import (
	"context"
	"errors"
	"maps"
	"slices"
	"time"

	"github.com/roach88/flwor/internal/expr"
	"github.com/roach88/flwor/internal/ir"
)

// Input is the dynamic input of one evaluation.
type Input struct {
	// ContextItem is the initial context item. Nil leaves it absent.
	ContextItem ir.Item

	// Variables supplies the values of external variables by name.
	Variables map[string]ir.Sequence
}

// Query is a compiled query. It is immutable and safe for concurrent
// evaluation.
type Query struct {
	// Text is the source the query was compiled from.
	Text string

	engine    *Engine
	body      expr.Expression
	externals map[string]*expr.Binding
	frameSize int
}

// Externals returns the names of the query's external variables, sorted.
func (q *Query) Externals() []string {
	return slices.Sorted(maps.Keys(q.externals))
}

// Explain renders the compiled plan, one node per line.
func (q *Query) Explain() string {
	return expr.Explain(q.body)
}

// Evaluate runs the query and returns the whole result.
//
// Query errors are *expr.Error values carrying XQuery codes; a missing
// external variable is XPDY0002 and a value not matching the declared type
// is XPTY0004. Engine failures are *RuntimeError values.
func (q *Query) Evaluate(ctx context.Context, in Input) (result ir.Sequence, err error) {
	id := q.engine.ids.Generate()
	defer recoverInternal(id, &err)

	start := time.Now()
	c, err := q.newContext(ctx, id, in)
	if err != nil {
		return nil, err
	}

	quota := newResultQuota(id, q.engine.maxItems)
	if q.engine.mode == ModePush {
		err = q.body.Process(c, expr.ReceiverFunc(quota.receiver(&result)))
	} else {
		result, err = q.pull(c, quota)
	}
	if err != nil {
		return nil, err
	}

	c.Logger().Debug("query evaluated",
		"mode", string(q.engine.mode),
		"items", len(result),
		"duration", time.Since(start),
	)
	return result, nil
}

func (q *Query) pull(c *expr.Context, quota *resultQuota) (ir.Sequence, error) {
	it, err := q.body.Iterate(c)
	if err != nil {
		return nil, err
	}
	var out ir.Sequence
	for {
		if err := c.Err(); err != nil {
			_ = it.Close()
			return nil, err
		}
		item, err := it.Next()
		if err != nil {
			_ = it.Close()
			return nil, err
		}
		if item == nil {
			break
		}
		if err := quota.check(); err != nil {
			_ = it.Close()
			return nil, err
		}
		out = append(out, item)
	}
	return out, it.Close()
}

// newContext builds the root evaluation context: environment, external
// variables and focus.
func (q *Query) newContext(ctx context.Context, id string, in Input) (*expr.Context, error) {
	e := q.engine
	q.engine.stats.evaluations.Add(1)

	env := &expr.Env{
		Collections: e.resolver(),
		Trace:       e.trace,
		Logger:      e.logger.With("execution_id", id),
		PreferPush:  e.mode == ModePush,
		ExecutionID: id,
	}
	c := expr.NewContext(ctx, env, q.frameSize)

	for _, name := range q.Externals() {
		b := q.externals[name]
		value, ok := in.Variables[name]
		if !ok {
			return nil, expr.DynamicError(expr.ErrContextAbsent, expr.Location{},
				"no value supplied for external variable $%s", name)
		}
		if b.Typed && !b.Declared.Matches(value) {
			return nil, expr.DynamicError(expr.ErrTypeMismatch, expr.Location{},
				"external variable $%s: value does not match %s", name, b.Declared)
		}
		c.SetSequence(b.Slot, value)
	}

	if in.ContextItem != nil {
		c = c.WithFocus(in.ContextItem, 1, 1)
	}
	return c, nil
}

// Stream starts a pull evaluation and returns a cursor over the result.
// Items are produced on demand; the caller must Close the stream.
// Streams always pull, whatever the engine mode.
func (q *Query) Stream(ctx context.Context, in Input) (s *Stream, err error) {
	id := q.engine.ids.Generate()
	defer recoverInternal(id, &err)

	c, err := q.newContext(ctx, id, in)
	if err != nil {
		return nil, err
	}
	it, err := q.body.Iterate(c)
	if err != nil {
		return nil, err
	}
	return &Stream{c: c, it: it, quota: newResultQuota(id, q.engine.maxItems)}, nil
}

// Stream is a pull cursor over a query result. It is owned by one
// goroutine.
type Stream struct {
	c      *expr.Context
	it     expr.Iterator
	quota  *resultQuota
	closed bool
}

// ErrStreamClosed is returned by Next after Close.
var ErrStreamClosed = errors.New("stream closed")

// ExecutionID identifies the evaluation behind the stream.
func (s *Stream) ExecutionID() string {
	return s.quota.executionID
}

// Next returns the next item, or nil at the end of the result.
func (s *Stream) Next() (item ir.Item, err error) {
	if s.closed {
		return nil, ErrStreamClosed
	}
	defer recoverInternal(s.quota.executionID, &err)

	if err := s.c.Err(); err != nil {
		return nil, err
	}
	item, err = s.it.Next()
	if err != nil || item == nil {
		return nil, err
	}
	if err := s.quota.check(); err != nil {
		return nil, err
	}
	return item, nil
}

// Close releases the stream. It is safe to call twice.
func (s *Stream) Close() error {
	if s.closed {
		return nil
	}
	s.closed = true
	return s.it.Close()
}
