package flwor

import (
	"sort"
	"strings"
	"sync"

	"github.com/roach88/flwor/internal/expr"
	"github.com/roach88/flwor/internal/ir"
)

// SortKey is one "E [ascending|descending] [empty greatest|least]
// [collation URI]" specification of an order by clause.
type SortKey struct {
	Key        expr.Operand
	Descending bool
	EmptyLeast bool
	Collation  string

	coll ir.Collation
}

// OrderByClause is "[stable] order by k1, k2, ...". It buffers every tuple
// of its input, then emits them sorted. Sorting is always stable.
type OrderByClause struct {
	loc    expr.Location
	Keys   []SortKey
	Stable bool

	// tuple is the set of variables restored for each emitted tuple,
	// maintained by the owning Expression.
	tuple tupleLayout

	compareOnce sync.Once
	compare     func(a, b []ir.Item) (int, error)
}

// NewOrderByClause creates an order by clause.
func NewOrderByClause(keys []SortKey, stable bool, loc expr.Location) *OrderByClause {
	return &OrderByClause{loc: loc, Keys: keys, Stable: stable}
}

func (o *OrderByClause) Kind() Kind { return KindOrderBy }

func (o *OrderByClause) Location() expr.Location { return o.loc }

func (o *OrderByClause) Copy(r *expr.Rebinder) Clause {
	keys := make([]SortKey, len(o.Keys))
	for i, k := range o.Keys {
		keys[i] = SortKey{
			Key:        expr.NewOperand(k.Key.Expr.Copy(r)),
			Descending: k.Descending,
			EmptyLeast: k.EmptyLeast,
			Collation:  k.Collation,
			coll:       k.coll,
		}
	}
	return NewOrderByClause(keys, o.Stable, o.loc)
}

func (o *OrderByClause) TypeCheck(sc *expr.StaticContext, contextItemType ir.ItemType) error {
	if err := typeCheckOperands(sc, o.Operands(), contextItemType); err != nil {
		return err
	}
	for i := range o.Keys {
		k := &o.Keys[i]
		coll, err := resolveCollation(k.Collation, k.Key.Expr.Location())
		if err != nil {
			return err
		}
		k.coll = coll
	}
	return nil
}

// resolveCollation maps a collation URI to a collation; "" is the default
// codepoint collation.
func resolveCollation(uri string, loc expr.Location) (ir.Collation, error) {
	if uri == "" {
		return ir.CodepointCollation, nil
	}
	coll, err := ir.LookupCollation(uri)
	if err != nil {
		return nil, expr.StaticError(expr.ErrUnsupportedCollation, loc, "%v", err)
	}
	return coll, nil
}

func (o *OrderByClause) Optimize(sc *expr.StaticContext, contextItemType ir.ItemType) error {
	return optimizeOperands(sc, o.Operands(), contextItemType)
}

func (o *OrderByClause) RangeVariables() []*expr.Binding {
	return nil
}

func (o *OrderByClause) GatherVariableReferences(b *expr.Binding, refs *[]*expr.VarRef) {
	gatherReferences(o.Operands(), b, refs)
}

func (o *OrderByClause) RefineVariableType(*expr.Binding, []*expr.VarRef) {}

// ContainsNonInlineableVariableReference is always true: the sort carries
// variables across by slot, and an inlined expression would be evaluated
// after the sort against whatever the slots then hold.
func (o *OrderByClause) ContainsNonInlineableVariableReference(*expr.Binding) bool {
	return true
}

func (o *OrderByClause) Operands() []*expr.Operand {
	ops := make([]*expr.Operand, len(o.Keys))
	for i := range o.Keys {
		ops[i] = &o.Keys[i].Key
	}
	return ops
}

func (o *OrderByClause) Explain(w *expr.ExplainWriter) {
	if o.Stable {
		w.Begin("stable order by")
	} else {
		w.Begin("order by")
	}
	for _, k := range o.Keys {
		var mods []string
		if k.Descending {
			mods = append(mods, "descending")
		} else {
			mods = append(mods, "ascending")
		}
		if k.EmptyLeast {
			mods = append(mods, "empty least")
		} else {
			mods = append(mods, "empty greatest")
		}
		if k.Collation != "" {
			mods = append(mods, "collation "+k.Collation)
		}
		w.Begin("key " + strings.Join(mods, " "))
		k.Key.Expr.Explain(w)
		w.End()
	}
	w.End()
}

// comparator returns the comparison of two key lists, built once.
func (o *OrderByClause) comparator() func(a, b []ir.Item) (int, error) {
	o.compareOnce.Do(func() {
		cmps := make([]func(a, b ir.Item) (int, error), len(o.Keys))
		for i, k := range o.Keys {
			cmps[i] = keyComparator(k, o.loc)
		}
		o.compare = func(a, b []ir.Item) (int, error) {
			for i, cmp := range cmps {
				r, err := cmp(a[i], b[i])
				if err != nil || r != 0 {
					return r, err
				}
			}
			return 0, nil
		}
	})
	return o.compare
}

// keyComparator orders the values of one sort key. The empty sequence
// (nil) sorts first or last according to EmptyLeast, NaN sorts before every
// other value, and Descending reverses the whole order.
func keyComparator(k SortKey, loc expr.Location) func(a, b ir.Item) (int, error) {
	coll := k.coll
	if coll == nil {
		coll = ir.CodepointCollation
	}
	emptyRank := 1
	if k.EmptyLeast {
		emptyRank = -1
	}
	sign := 1
	if k.Descending {
		sign = -1
	}
	return func(a, b ir.Item) (int, error) {
		var r int
		switch {
		case a == nil && b == nil:
			r = 0
		case a == nil:
			r = emptyRank
		case b == nil:
			r = -emptyRank
		case ir.IsNaN(a) && ir.IsNaN(b):
			r = 0
		case ir.IsNaN(a):
			r = -1
		case ir.IsNaN(b):
			r = 1
		default:
			var err error
			r, err = ir.Compare(a, b, coll)
			if err != nil {
				return 0, expr.DynamicError(expr.ErrTypeMismatch, loc, "order by: %v", err)
			}
		}
		return sign * r, nil
	}
}

// sortEntry is one buffered tuple with its key values.
type sortEntry struct {
	keys  []ir.Item
	tuple tuple
}

// evalKeys evaluates the sort keys for the current tuple.
func (o *OrderByClause) evalKeys(c *expr.Context) ([]ir.Item, error) {
	keys := make([]ir.Item, len(o.Keys))
	for i, k := range o.Keys {
		v, err := expr.EvaluateAtomic(k.Key.Expr, c)
		if err != nil {
			return nil, err
		}
		keys[i] = v
	}
	return keys, nil
}

func (o *OrderByClause) sortEntries(entries []sortEntry) error {
	cmp := o.comparator()
	var firstErr error
	sort.SliceStable(entries, func(i, j int) bool {
		r, err := cmp(entries[i].keys, entries[j].keys)
		if err != nil && firstErr == nil {
			firstErr = err
		}
		return r < 0
	})
	return firstErr
}

func (o *OrderByClause) PullStream(_ *expr.Context, base PullStream) PullStream {
	return &orderByPull{clause: o, base: base, layout: o.tuple}
}

func (o *OrderByClause) PushStream(_ *expr.Context, dest PushStream) PushStream {
	return &orderByPush{clause: o, dest: dest, layout: o.tuple}
}

// orderByPull drains its base on the first call, then replays the sorted
// buffer.
type orderByPull struct {
	clause  *OrderByClause
	base    PullStream
	layout  tupleLayout
	entries []sortEntry
	loaded  bool
	next    int
}

func (s *orderByPull) Next(c *expr.Context) (bool, error) {
	if !s.loaded {
		s.loaded = true
		for {
			ok, err := s.base.Next(c)
			if err != nil {
				return false, err
			}
			if !ok {
				break
			}
			keys, err := s.clause.evalKeys(c)
			if err != nil {
				return false, err
			}
			s.entries = append(s.entries, sortEntry{keys: keys, tuple: s.layout.capture(c)})
		}
		if err := s.clause.sortEntries(s.entries); err != nil {
			return false, err
		}
	}
	if s.next >= len(s.entries) {
		s.entries = nil
		return false, nil
	}
	s.layout.restore(c, s.entries[s.next].tuple)
	s.next++
	return true, nil
}

func (s *orderByPull) Close(c *expr.Context) error {
	s.entries = nil
	return s.base.Close(c)
}

// orderByPush buffers the tuples it receives and forwards them sorted when
// it is closed.
type orderByPush struct {
	clause  *OrderByClause
	dest    PushStream
	layout  tupleLayout
	entries []sortEntry
}

func (s *orderByPush) Process(c *expr.Context) error {
	keys, err := s.clause.evalKeys(c)
	if err != nil {
		return err
	}
	s.entries = append(s.entries, sortEntry{keys: keys, tuple: s.layout.capture(c)})
	return nil
}

func (s *orderByPush) Close(c *expr.Context) error {
	entries := s.entries
	s.entries = nil
	if err := s.clause.sortEntries(entries); err != nil {
		return err
	}
	for _, e := range entries {
		s.layout.restore(c, e.tuple)
		if err := s.dest.Process(c); err != nil {
			return err
		}
	}
	return s.dest.Close(c)
}
