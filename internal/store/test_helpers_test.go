package store

import (
	"context"
	"math"
	"path/filepath"
	"testing"

	"github.com/roach88/flwor/internal/ir"
)

// createTestStore creates a new store in a temporary directory.
func createTestStore(t *testing.T) *Store {
	t.Helper()
	path := filepath.Join(t.TempDir(), "test.db")
	s, err := Open(path)
	if err != nil {
		t.Fatalf("Open() failed: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

// loadOrders stores a small orders collection used by several tests.
func loadOrders(t *testing.T, s *Store) ir.Sequence {
	t.Helper()
	docs := ir.Sequence{
		ir.NewObject(ir.O("id", ir.Int(1)), ir.O("status", ir.String("open")), ir.O("customer", ir.Int(10))),
		ir.NewObject(ir.O("id", ir.Int(2)), ir.O("status", ir.String("closed")), ir.O("customer", ir.Int(11))),
		ir.NewObject(ir.O("id", ir.Int(3)), ir.O("status", ir.String("open")), ir.O("customer", ir.Int(11))),
		ir.NewObject(ir.O("id", ir.Int(4)), ir.O("status", ir.Array{ir.String("open"), ir.String("flagged")}), ir.O("customer", ir.String("11"))),
		ir.NewObject(ir.O("id", ir.Int(5)), ir.O("paid", ir.Bool(true)), ir.O("customer", ir.Double(10.5))),
	}
	if err := s.CreateCollection(context.Background(), "orders", docs); err != nil {
		t.Fatalf("CreateCollection() failed: %v", err)
	}
	return docs
}

func nan() float64 {
	return math.NaN()
}
