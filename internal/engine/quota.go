package engine

import (
	"github.com/roach88/flwor/internal/ir"
)

// resultQuota counts result items and fails once a limit is passed. It
// stops runaway queries (a cross product over large collections) without
// materializing the whole result first.
//
// A quota belongs to one evaluation and is not safe for concurrent use.
type resultQuota struct {
	executionID string
	limit       int // 0 means unlimited
	count       int
}

func newResultQuota(executionID string, limit int) *resultQuota {
	return &resultQuota{executionID: executionID, limit: limit}
}

// check records one more item.
func (q *resultQuota) check() error {
	q.count++
	if q.limit > 0 && q.count > q.limit {
		return NewQuotaError(q.executionID, q.limit)
	}
	return nil
}

// receiver wraps out so every pushed item is checked first.
func (q *resultQuota) receiver(out *ir.Sequence) func(ir.Item) error {
	return func(item ir.Item) error {
		if err := q.check(); err != nil {
			return err
		}
		*out = append(*out, item)
		return nil
	}
}
