package store

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/roach88/flwor/internal/ir"
)

// CreateCollection stores docs as the collection name, replacing any
// previous content. Documents are numbered 1..n in the given order.
func (s *Store) CreateCollection(ctx context.Context, name string, docs ir.Sequence) error {
	if name == "" {
		return fmt.Errorf("create collection: empty name")
	}
	bodies := make([]string, len(docs))
	for i, doc := range docs {
		body, err := marshalDocument(doc)
		if err != nil {
			return fmt.Errorf("create collection %q: document %d: %w", name, i+1, err)
		}
		bodies[i] = body
	}

	return s.inTx(ctx, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, `DELETE FROM collections WHERE name = ?`, name); err != nil {
			return fmt.Errorf("create collection %q: %w", name, err)
		}
		_, err := tx.ExecContext(ctx, `INSERT INTO collections (name, size) VALUES (?, ?)`, name, len(bodies))
		if err != nil {
			return fmt.Errorf("create collection %q: %w", name, err)
		}
		stmt, err := tx.PrepareContext(ctx, `INSERT INTO documents (collection, id, body) VALUES (?, ?, ?)`)
		if err != nil {
			return fmt.Errorf("create collection %q: %w", name, err)
		}
		defer stmt.Close()
		for i, body := range bodies {
			if _, err := stmt.ExecContext(ctx, name, i+1, body); err != nil {
				return fmt.Errorf("create collection %q: document %d: %w", name, i+1, err)
			}
		}
		return nil
	})
}

// DropCollection deletes a collection and its documents. Dropping an
// unknown collection is not an error.
func (s *Store) DropCollection(ctx context.Context, name string) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM collections WHERE name = ?`, name); err != nil {
		return fmt.Errorf("drop collection %q: %w", name, err)
	}
	return nil
}

// inTx runs fn in a transaction, committing when fn succeeds.
func (s *Store) inTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	if err := fn(tx); err != nil {
		_ = tx.Rollback()
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}
