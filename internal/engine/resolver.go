package engine

import (
	"context"
	"errors"
	"fmt"

	"github.com/roach88/flwor/internal/expr"
	"github.com/roach88/flwor/internal/ir"
	"github.com/roach88/flwor/internal/queryir"
	"github.com/roach88/flwor/internal/querysql"
	"github.com/roach88/flwor/internal/store"
)

// ErrUnknownCollection is returned when neither the in-memory collections
// nor the store hold a collection.
var ErrUnknownCollection = errors.New("unknown collection")

// resolver serves collection("name") and pushed-down collection queries.
// In-memory collections shadow stored ones of the same name.
type resolver struct {
	memory map[string]ir.Sequence
	store  *store.Store
}

var _ expr.CollectionResolver = (*resolver)(nil)

// Collection returns every document of a collection in storage order.
func (r *resolver) Collection(ctx context.Context, name string) (ir.Sequence, error) {
	if docs, ok := r.memory[name]; ok {
		return docs, nil
	}
	if r.store == nil {
		return nil, fmt.Errorf("%w %q", ErrUnknownCollection, name)
	}
	docs, err := r.store.ReadCollection(ctx, name)
	if errors.Is(err, store.ErrCollectionNotFound) {
		return nil, fmt.Errorf("%w %q", ErrUnknownCollection, name)
	}
	return docs, err
}

// Query compiles sel to SQL and runs it against the store.
//
// Returns expr.ErrQueryUnsupported for in-memory collections and for
// selections the SQL compiler rejects; the caller then filters in memory.
func (r *resolver) Query(ctx context.Context, sel *queryir.Select, params map[string]ir.Item) (ir.Sequence, error) {
	if _, ok := r.memory[sel.From]; ok || r.store == nil {
		return nil, expr.ErrQueryUnsupported
	}

	compiler := querysql.NewSQLCompiler(params)
	sqlStr, args, err := compiler.Compile(sel)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", expr.ErrQueryUnsupported, err)
	}

	ok, err := r.store.HasCollection(ctx, sel.From)
	if err != nil {
		return nil, fmt.Errorf("check collection: %w", err)
	}
	if !ok {
		return nil, fmt.Errorf("%w %q", ErrUnknownCollection, sel.From)
	}

	docs, err := r.store.Query(ctx, sqlStr, args...)
	if err != nil {
		return nil, fmt.Errorf("execute query: %w", err)
	}
	return docs, nil
}
