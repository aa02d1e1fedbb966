package expr

import (
	"context"
	"errors"
	"fmt"
	"math"

	"github.com/roach88/flwor/internal/ir"
	"github.com/roach88/flwor/internal/queryir"
)

// ErrQueryUnsupported is returned by a CollectionResolver that cannot run a
// pushed-down query; the caller falls back to filtering in memory.
var ErrQueryUnsupported = errors.New("collection query not supported")

// CollectionResolver supplies named collections of documents.
type CollectionResolver interface {
	// Collection returns every document of a collection in storage order.
	Collection(ctx context.Context, name string) (ir.Sequence, error)

	// Query returns the documents selected by sel, in storage order.
	// params supplies the values of BoundEquals predicates.
	Query(ctx context.Context, sel *queryir.Select, params map[string]ir.Item) (ir.Sequence, error)
}

// CollectionFunction is the name of the collection access function.
const CollectionFunction = "collection"

func collectionImpl(c *Context, args []ir.Sequence, loc Location) (ir.Sequence, error) {
	name, err := stringArg(args[0], loc)
	if err != nil {
		return nil, err
	}
	res := c.Env().Collections
	if res == nil {
		return nil, DynamicError(ErrNoCollection, loc, "no collections available for %q", name)
	}
	docs, err := res.Collection(c.Go(), name)
	if err != nil {
		return nil, DynamicError(ErrNoCollection, loc, "collection %q: %v", name, err)
	}
	return docs, nil
}

// CollectionQuery reads the documents of a collection that satisfy
// equality predicates evaluated by the collection store. It is produced by
// FoldCollectionFilter and keeps the in-memory filter it replaced as a
// fallback for stores without query support and for parameter values the
// store cannot compare.
type CollectionQuery struct {
	node
	Select *queryir.Select

	// Params hold the values of the BoundEquals predicates, in order of
	// their parameter names p0, p1, ...
	Params []Operand

	// Fallback is the equivalent in-memory expression.
	Fallback Operand
}

func paramName(i int) string {
	return fmt.Sprintf("p%d", i)
}

func (q *CollectionQuery) Evaluate(c *Context) (ir.Sequence, error) {
	res := c.Env().Collections
	if res == nil {
		return q.Fallback.Expr.Evaluate(c)
	}
	params := make(map[string]ir.Item, len(q.Params))
	for i, op := range q.Params {
		seq, err := op.Expr.Evaluate(c)
		if err != nil {
			return nil, err
		}
		if len(seq) != 1 || !pushableValue(seq[0]) {
			return q.Fallback.Expr.Evaluate(c)
		}
		params[paramName(i)] = seq[0]
	}
	docs, err := res.Query(c.Go(), q.Select, params)
	if errors.Is(err, ErrQueryUnsupported) {
		return q.Fallback.Expr.Evaluate(c)
	}
	if err != nil {
		return nil, DynamicError(ErrNoCollection, q.loc, "collection %q: %v", q.Select.From, err)
	}
	return docs, nil
}

// pushableValue reports whether the store compares v the way the general
// comparison "=" would.
func pushableValue(v ir.Item) bool {
	switch x := v.(type) {
	case ir.String, ir.Int, ir.Bool:
		return true
	case ir.Double:
		return !math.IsNaN(float64(x)) && !math.IsInf(float64(x), 0)
	}
	return false
}

func (q *CollectionQuery) Iterate(c *Context) (Iterator, error) {
	return iterateEvaluated(q, c)
}

func (q *CollectionQuery) Process(c *Context, out Receiver) error {
	return processEvaluated(q, c, out)
}

func (q *CollectionQuery) EffectiveBooleanValue(c *Context) (bool, error) {
	return ebvEvaluated(q, c)
}

func (q *CollectionQuery) StaticType() ir.SequenceType {
	return q.Fallback.Expr.StaticType()
}

func (q *CollectionQuery) Operands() []*Operand {
	ops := make([]*Operand, 0, len(q.Params)+1)
	for i := range q.Params {
		ops = append(ops, &q.Params[i])
	}
	return append(ops, &q.Fallback)
}

func (q *CollectionQuery) Copy(r *Rebinder) Expression {
	nq := &CollectionQuery{node: q.node, Select: q.Select, Params: make([]Operand, len(q.Params))}
	for i, op := range q.Params {
		nq.Params[i] = NewOperand(op.Expr.Copy(r))
	}
	nq.Fallback = NewOperand(q.Fallback.Expr.Copy(r))
	return nq
}

func (q *CollectionQuery) Explain(w *ExplainWriter) {
	w.Begin(fmt.Sprintf("collection-query %q where %s", q.Select.From, queryir.Describe(q.Select.Filter)))
	for i, op := range q.Params {
		w.Begin("param " + paramName(i))
		op.Expr.Explain(w)
		w.End()
	}
	w.End()
}

// FoldCollectionFilter turns collection("name")[.?f = v and ...] into a
// CollectionQuery when at least one conjunct is an equality between a field
// of the context item and a focus-independent value. Conjuncts that cannot
// be pushed down stay in a filter over the query. Returns f unchanged when
// nothing can be pushed.
func FoldCollectionFilter(f *Filter) Expression {
	call, ok := f.Base.Expr.(*FunctionCall)
	if !ok || call.Fn.Name != CollectionFunction || len(call.Args) != 1 {
		return f
	}
	lit, ok := call.Args[0].Expr.(*Literal)
	if !ok || len(lit.Value) != 1 {
		return f
	}
	name, ok := lit.Value[0].(ir.String)
	if !ok {
		return f
	}
	if !f.Boolean && f.Predicate.Expr.StaticType().Item != ir.BooleanType {
		return f
	}

	var (
		preds  []queryir.Predicate
		params []Operand
		rest   []Expression
	)
	for _, term := range SplitAnd(f.Predicate.Expr) {
		field, value, ok := fieldEquality(term)
		if !ok {
			rest = append(rest, term)
			continue
		}
		if v, ok := value.(*Literal); ok && len(v.Value) == 1 && pushableValue(v.Value[0]) {
			preds = append(preds, queryir.Equals{Field: field, Value: v.Value[0]})
			continue
		}
		preds = append(preds, queryir.BoundEquals{Field: field, Param: paramName(len(params))})
		params = append(params, NewOperand(value.Copy(NewRebinder())))
	}
	if len(preds) == 0 {
		return f
	}

	sel := &queryir.Select{From: string(name)}
	if len(preds) == 1 {
		sel.Filter = preds[0]
	} else {
		sel.Filter = queryir.And{Predicates: preds}
	}
	if !queryir.Validate(sel).IsPortable {
		return f
	}

	q := &CollectionQuery{node: f.node, Select: sel, Params: params, Fallback: NewOperand(f)}
	if len(rest) == 0 {
		return q
	}
	return NewBooleanFilter(q, JoinAnd(rest), f.loc)
}

// fieldEquality matches ".?field = value", "value = .?field" and the eq
// forms, where value does not depend on the focus.
func fieldEquality(term Expression) (string, Expression, bool) {
	cmp, ok := term.(Comparison)
	if !ok || cmp.Operator() != OpEq {
		return "", nil, false
	}
	lhs, rhs := cmp.Sides()
	if field, ok := contextField(lhs.Expr); ok && pushableOperand(rhs.Expr) {
		return field, rhs.Expr, true
	}
	if field, ok := contextField(rhs.Expr); ok && pushableOperand(lhs.Expr) {
		return field, lhs.Expr, true
	}
	return "", nil, false
}

// contextField matches ".?name" and "./name".
func contextField(e Expression) (string, bool) {
	if p, ok := e.(*Path); ok {
		if _, ok := p.Base.Expr.(*ContextItem); !ok {
			return "", false
		}
		e = p.Step.Expr
	}
	l, ok := e.(*Lookup)
	if !ok || !l.IsUnary() || l.Key.Name == "" || l.Key.Wildcard {
		return "", false
	}
	return l.Key.Name, true
}

func pushableOperand(e Expression) bool {
	if DependsOnFocus(e) || IsNonDeterministic(e) {
		return false
	}
	t := e.StaticType()
	return t.Item != ir.MapType && t.Item != ir.ArrayType
}
