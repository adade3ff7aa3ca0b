package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

// Lookup returns the current path recorded for a handle id. It implements
// handle.Registry.
func (s *Store) Lookup(ctx context.Context, id string) (string, bool, error) {
	ctx = ensureContext(ctx)
	var path string
	err := s.db.QueryRowContext(ctx, `SELECT path FROM handle_registry WHERE id = ?`, id).Scan(&path)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("lookup handle %q: %w", id, err)
	}
	return path, true, nil
}

// Record inserts or repoints a handle registration. It implements
// handle.Registry.
func (s *Store) Record(ctx context.Context, id, path string) error {
	now := time.Now().UTC().Format(time.RFC3339Nano)
	if _, err := s.execWithRetry(
		ctx,
		`INSERT INTO handle_registry (id, path, updated_at) VALUES (?, ?, ?)
		 ON CONFLICT (id) DO UPDATE SET path = excluded.path, updated_at = excluded.updated_at`,
		id, path, now,
	); err != nil {
		return fmt.Errorf("record handle %q: %w", id, err)
	}
	return nil
}
