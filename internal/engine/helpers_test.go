package engine

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/roach88/flwor/internal/ir"
	"github.com/roach88/flwor/internal/store"
)

func orderDocs() ir.Sequence {
	return ir.Sequence{
		ir.NewObject(ir.O("id", ir.Int(1)), ir.O("status", ir.String("open")), ir.O("total", ir.Int(30))),
		ir.NewObject(ir.O("id", ir.Int(2)), ir.O("status", ir.String("closed")), ir.O("total", ir.Int(10))),
		ir.NewObject(ir.O("id", ir.Int(3)), ir.O("status", ir.String("open")), ir.O("total", ir.Int(20))),
	}
}

// setupTestStore opens a store in a temporary directory holding the
// "orders" collection.
func setupTestStore(t *testing.T) *store.Store {
	t.Helper()
	s, err := store.Open(filepath.Join(t.TempDir(), "flwor.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	require.NoError(t, s.CreateCollection(context.Background(), "orders", orderDocs()))
	return s
}

// newTestEngine creates an engine with deterministic execution IDs.
func newTestEngine(t *testing.T, opts ...EngineOption) *Engine {
	t.Helper()
	opts = append([]EngineOption{WithIDGenerator(NewFixedGenerator())}, opts...)
	e, err := New(opts...)
	require.NoError(t, err)
	return e
}

// run compiles and evaluates query in one step.
func run(t *testing.T, e *Engine, query string, in Input) (ir.Sequence, error) {
	t.Helper()
	names := make([]string, 0, len(in.Variables))
	for name := range in.Variables {
		names = append(names, name)
	}
	q, err := e.Compile(query, names...)
	if err != nil {
		return nil, err
	}
	return q.Evaluate(context.Background(), in)
}

var modes = []Mode{ModePull, ModePush}
