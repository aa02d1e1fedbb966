package flwor

import (
	"github.com/roach88/flwor/internal/expr"
	"github.com/roach88/flwor/internal/ir"
)

// GroupingSpec is one "$k [:= E] [collation URI]" of a group by clause. Var
// is a new binding holding the atomized key of the group.
type GroupingSpec struct {
	Var       *expr.Binding
	Key       expr.Operand
	Collation string

	coll ir.Collation
}

// RetainedVar rebinds a variable bound before the group by. After grouping,
// To holds the concatenation of the values From had in the group's tuples.
type RetainedVar struct {
	To   *expr.Binding
	From expr.Operand
}

// GroupByClause is "group by $k1, $k2 := E, ...". Tuples with deep-equal
// keys form one group; groups are emitted in order of first appearance.
type GroupByClause struct {
	loc      expr.Location
	Specs    []GroupingSpec
	Retained []RetainedVar
}

// NewGroupByClause creates a group by clause.
func NewGroupByClause(specs []GroupingSpec, retained []RetainedVar, loc expr.Location) *GroupByClause {
	return &GroupByClause{loc: loc, Specs: specs, Retained: retained}
}

func (g *GroupByClause) Kind() Kind { return KindGroupBy }

func (g *GroupByClause) Location() expr.Location { return g.loc }

func (g *GroupByClause) Copy(r *expr.Rebinder) Clause {
	specs := make([]GroupingSpec, len(g.Specs))
	for i, s := range g.Specs {
		specs[i] = GroupingSpec{Key: expr.NewOperand(s.Key.Expr.Copy(r)), Collation: s.Collation, coll: s.coll}
	}
	retained := make([]RetainedVar, len(g.Retained))
	for i, rv := range g.Retained {
		retained[i] = RetainedVar{From: expr.NewOperand(rv.From.Expr.Copy(r))}
	}
	for i, s := range g.Specs {
		specs[i].Var = r.Bind(s.Var)
	}
	for i, rv := range g.Retained {
		retained[i].To = r.Bind(rv.To)
	}
	return NewGroupByClause(specs, retained, g.loc)
}

func (g *GroupByClause) TypeCheck(sc *expr.StaticContext, contextItemType ir.ItemType) error {
	if err := typeCheckOperands(sc, g.Operands(), contextItemType); err != nil {
		return err
	}
	for i := range g.Specs {
		s := &g.Specs[i]
		coll, err := resolveCollation(s.Collation, s.Key.Expr.Location())
		if err != nil {
			return err
		}
		s.coll = coll
		if s.Var.Typed {
			key, err := expr.StaticCheck(s.Key.Expr, s.Var.Declared, "grouping variable "+s.Var.String())
			if err != nil {
				return err
			}
			s.Key.Expr = key
		}
	}
	return nil
}

func (g *GroupByClause) Optimize(sc *expr.StaticContext, contextItemType ir.ItemType) error {
	return optimizeOperands(sc, g.Operands(), contextItemType)
}

func (g *GroupByClause) RangeVariables() []*expr.Binding {
	vars := make([]*expr.Binding, 0, len(g.Specs)+len(g.Retained))
	for _, s := range g.Specs {
		vars = append(vars, s.Var)
	}
	for _, rv := range g.Retained {
		vars = append(vars, rv.To)
	}
	return vars
}

func (g *GroupByClause) GatherVariableReferences(b *expr.Binding, refs *[]*expr.VarRef) {
	gatherReferences(g.Operands(), b, refs)
}

func (g *GroupByClause) RefineVariableType(b *expr.Binding, refs []*expr.VarRef) {
	for _, s := range g.Specs {
		if s.Var == b {
			item := s.Key.Expr.StaticType().Item
			if !ir.AnyAtomic.Subsumes(item) {
				item = ir.AnyAtomic
			}
			refineAll(refs, ir.NewSequenceType(item, ir.ZeroOrOne))
			return
		}
	}
	for _, rv := range g.Retained {
		if rv.To == b {
			refineAll(refs, ir.NewSequenceType(rv.From.Expr.StaticType().Item, ir.ZeroOrMore))
			return
		}
	}
}

// ContainsNonInlineableVariableReference is always true: every variable is
// rebound by the grouping.
func (g *GroupByClause) ContainsNonInlineableVariableReference(*expr.Binding) bool {
	return true
}

func (g *GroupByClause) Operands() []*expr.Operand {
	ops := make([]*expr.Operand, 0, len(g.Specs)+len(g.Retained))
	for i := range g.Specs {
		ops = append(ops, &g.Specs[i].Key)
	}
	for i := range g.Retained {
		ops = append(ops, &g.Retained[i].From)
	}
	return ops
}

func (g *GroupByClause) Explain(w *expr.ExplainWriter) {
	w.Begin("group by")
	for _, s := range g.Specs {
		label := "key " + s.Var.String()
		if s.Collation != "" {
			label += " collation " + s.Collation
		}
		w.Begin(label)
		s.Key.Expr.Explain(w)
		w.End()
	}
	for _, rv := range g.Retained {
		w.Begin("retain " + rv.To.String())
		rv.From.Expr.Explain(w)
		w.End()
	}
	w.End()
}

// retain drops the retained variables for which keep returns false.
func (g *GroupByClause) retain(keep func(rv RetainedVar) bool) {
	out := g.Retained[:0]
	for _, rv := range g.Retained {
		if keep(rv) {
			out = append(out, rv)
		}
	}
	g.Retained = out
}

// group is the state of one group while tuples are collected.
type group struct {
	keys   []ir.Item
	values []ir.Sequence
}

// grouper assigns tuples to groups.
type grouper struct {
	clause  *GroupByClause
	groups  []*group
	buckets map[uint64][]*group
}

func newGrouper(g *GroupByClause) *grouper {
	return &grouper{clause: g, buckets: make(map[uint64][]*group)}
}

// add evaluates the keys and retained values of the current tuple.
func (gr *grouper) add(c *expr.Context) error {
	g := gr.clause
	keys := make([]ir.Item, len(g.Specs))
	var h uint64
	for i, s := range g.Specs {
		v, err := expr.EvaluateAtomic(s.Key.Expr, c)
		if err != nil {
			return err
		}
		keys[i] = v
		h = h*31 + ir.KeyHash(keySequence(v), s.coll)
	}
	grp := gr.find(h, keys)
	if grp == nil {
		grp = &group{keys: keys, values: make([]ir.Sequence, len(g.Retained))}
		gr.groups = append(gr.groups, grp)
		gr.buckets[h] = append(gr.buckets[h], grp)
	}
	for i, rv := range g.Retained {
		seq, err := rv.From.Expr.Evaluate(c)
		if err != nil {
			return err
		}
		grp.values[i] = append(grp.values[i], seq...)
	}
	return nil
}

func (gr *grouper) find(h uint64, keys []ir.Item) *group {
	for _, grp := range gr.buckets[h] {
		if gr.sameKeys(grp.keys, keys) {
			return grp
		}
	}
	return nil
}

func (gr *grouper) sameKeys(a, b []ir.Item) bool {
	for i, s := range gr.clause.Specs {
		if !ir.DeepEqual(keySequence(a[i]), keySequence(b[i]), s.coll) {
			return false
		}
	}
	return true
}

// bind writes the variables of a finished group into the frame.
func (gr *grouper) bind(c *expr.Context, grp *group) {
	for i, s := range gr.clause.Specs {
		c.SetSequence(s.Var.Slot, keySequence(grp.keys[i]))
	}
	for i, rv := range gr.clause.Retained {
		c.SetSequence(rv.To.Slot, grp.values[i])
	}
}

func keySequence(v ir.Item) ir.Sequence {
	if v == nil {
		return nil
	}
	return ir.Sequence{v}
}

func (g *GroupByClause) PullStream(_ *expr.Context, base PullStream) PullStream {
	return &groupByPull{grouper: newGrouper(g), base: base}
}

func (g *GroupByClause) PushStream(_ *expr.Context, dest PushStream) PushStream {
	return &groupByPush{grouper: newGrouper(g), dest: dest}
}

type groupByPull struct {
	*grouper
	base   PullStream
	loaded bool
	next   int
}

func (s *groupByPull) Next(c *expr.Context) (bool, error) {
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
			if err := s.add(c); err != nil {
				return false, err
			}
		}
	}
	if s.next >= len(s.groups) {
		return false, nil
	}
	s.bind(c, s.groups[s.next])
	s.next++
	return true, nil
}

func (s *groupByPull) Close(c *expr.Context) error {
	s.groups = nil
	return s.base.Close(c)
}

type groupByPush struct {
	*grouper
	dest PushStream
}

func (s *groupByPush) Process(c *expr.Context) error {
	return s.add(c)
}

func (s *groupByPush) Close(c *expr.Context) error {
	groups := s.groups
	s.groups = nil
	for _, grp := range groups {
		s.bind(c, grp)
		if err := s.dest.Process(c); err != nil {
			return err
		}
	}
	return s.dest.Close(c)
}
