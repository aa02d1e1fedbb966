package flwor

import "github.com/roach88/flwor/internal/expr"

// tupleLayout lists the slots that make up a tuple at some point of the
// pipeline: every variable bound by the clauses before it.
type tupleLayout struct {
	slots []int
}

func newTupleLayout(scope []*expr.Binding) tupleLayout {
	slots := make([]int, len(scope))
	for i, b := range scope {
		slots[i] = b.Slot
	}
	return tupleLayout{slots: slots}
}

// tuple is a snapshot of raw slot values. Lazy values are copied unforced.
type tuple []expr.Value

func (l tupleLayout) capture(c *expr.Context) tuple {
	t := make(tuple, len(l.slots))
	for i, s := range l.slots {
		t[i] = c.Value(s)
	}
	return t
}

func (l tupleLayout) restore(c *expr.Context, t tuple) {
	for i, s := range l.slots {
		c.SetValue(s, t[i])
	}
}
