package flwor

import (
	"github.com/roach88/flwor/internal/expr"
	"github.com/roach88/flwor/internal/ir"
)

// PullStream is a consumer-driven tuple stream. Next binds the variables of
// the next tuple into the frame and returns true, or returns false at the
// end. Close releases resources and closes the wrapped stream; it may be
// called before the stream is exhausted.
type PullStream interface {
	Next(c *expr.Context) (bool, error)
	Close(c *expr.Context) error
}

// PushStream is a producer-driven tuple stream. Process receives one tuple,
// already bound in the frame, and forwards tuples downstream. Close flushes
// buffered tuples and closes the downstream stream.
type PushStream interface {
	Process(c *expr.Context) error
	Close(c *expr.Context) error
}

// singularityPull yields one empty tuple. It seeds every pull pipeline.
type singularityPull struct {
	done bool
}

func (s *singularityPull) Next(*expr.Context) (bool, error) {
	if s.done {
		return false, nil
	}
	s.done = true
	return true, nil
}

func (s *singularityPull) Close(*expr.Context) error {
	s.done = true
	return nil
}

// returnPush evaluates the return expression for every tuple and pushes the
// result into a receiver. It terminates every push pipeline.
type returnPush struct {
	ret expr.Expression
	out expr.Receiver
}

func (s *returnPush) Process(c *expr.Context) error {
	return s.ret.Process(c, s.out)
}

func (s *returnPush) Close(*expr.Context) error {
	return nil
}

// returnIterator adapts a pull pipeline to expr.Iterator: it advances the
// pipeline and yields the items of the return expression for every tuple.
type returnIterator struct {
	c       *expr.Context
	stream  PullStream
	ret     expr.Expression
	current expr.Iterator
	closed  bool
}

func (it *returnIterator) Next() (ir.Item, error) {
	for {
		if it.closed {
			return nil, nil
		}
		if it.current != nil {
			item, err := it.current.Next()
			if err != nil {
				return nil, it.fail(err)
			}
			if item != nil {
				return item, nil
			}
			if err := it.current.Close(); err != nil {
				return nil, it.fail(err)
			}
			it.current = nil
		}
		ok, err := it.stream.Next(it.c)
		if err != nil {
			return nil, it.fail(err)
		}
		if !ok {
			return nil, it.Close()
		}
		it.current, err = it.ret.Iterate(it.c)
		if err != nil {
			return nil, it.fail(err)
		}
	}
}

// fail closes the pipeline after an error and returns the error.
func (it *returnIterator) fail(err error) error {
	_ = it.Close()
	return err
}

func (it *returnIterator) Close() error {
	if it.closed {
		return nil
	}
	it.closed = true
	var err error
	if it.current != nil {
		err = it.current.Close()
		it.current = nil
	}
	if cerr := it.stream.Close(it.c); err == nil {
		err = cerr
	}
	return err
}
