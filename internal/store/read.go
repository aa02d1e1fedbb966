package store

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/roach88/flwor/internal/ir"
)

// CollectionInfo describes one stored collection.
type CollectionInfo struct {
	Name string
	Size int
}

// Collections lists the stored collections ordered by name.
//
// Returns an empty slice (not nil) when the store is empty.
func (s *Store) Collections(ctx context.Context) ([]CollectionInfo, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT name, size
		FROM collections
		ORDER BY name COLLATE BINARY ASC
	`)
	if err != nil {
		return nil, fmt.Errorf("query collections: %w", err)
	}
	defer rows.Close()

	infos := []CollectionInfo{}
	for rows.Next() {
		var info CollectionInfo
		if err := rows.Scan(&info.Name, &info.Size); err != nil {
			return nil, fmt.Errorf("scan collection: %w", err)
		}
		infos = append(infos, info)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate collections: %w", err)
	}
	return infos, nil
}

// HasCollection reports whether a collection exists.
func (s *Store) HasCollection(ctx context.Context, name string) (bool, error) {
	var n int
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM collections WHERE name = ?`, name).Scan(&n)
	if err != nil {
		return false, fmt.Errorf("query collection %q: %w", name, err)
	}
	return n > 0, nil
}

// ReadCollection returns every document of a collection in storage order.
// Returns ErrCollectionNotFound for unknown collections.
func (s *Store) ReadCollection(ctx context.Context, name string) (ir.Sequence, error) {
	ok, err := s.HasCollection(ctx, name)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrCollectionNotFound, name)
	}
	return s.Query(ctx, `
		SELECT body
		FROM documents
		WHERE collection = ?
		ORDER BY id ASC
	`, name)
}

// Query runs a statement selecting a single body column and decodes the
// rows as documents. The statement decides the order; statements built by
// querysql always order by id.
func (s *Store) Query(ctx context.Context, query string, args ...any) (ir.Sequence, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query documents: %w", err)
	}
	defer rows.Close()
	return scanDocuments(rows)
}

func scanDocuments(rows *sql.Rows) (ir.Sequence, error) {
	var docs ir.Sequence
	for rows.Next() {
		var body string
		if err := rows.Scan(&body); err != nil {
			return nil, fmt.Errorf("scan document: %w", err)
		}
		doc, err := unmarshalDocument(body)
		if err != nil {
			return nil, err
		}
		docs = append(docs, doc)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate documents: %w", err)
	}
	return docs, nil
}
