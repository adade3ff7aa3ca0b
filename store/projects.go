package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Project is a persisted content-project root with its capability token.
type Project struct {
	ID          string
	RootPath    string
	HandleToken string
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// EnsureProject returns the project registered for rootPath, creating it on
// first use.
func (s *Store) EnsureProject(ctx context.Context, rootPath string) (*Project, error) {
	existing, err := s.ProjectByRoot(ctx, rootPath)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return existing, nil
	}

	now := time.Now().UTC().Format(time.RFC3339Nano)
	id := uuid.NewString()
	if _, err := s.execWithRetry(
		ctx,
		`INSERT INTO projects (id, root_path, created_at, updated_at) VALUES (?, ?, ?, ?)`,
		id, rootPath, now, now,
	); err != nil {
		return nil, fmt.Errorf("insert project: %w", err)
	}
	return s.ProjectByID(ctx, id)
}

// ProjectByRoot fetches a project by its root path, returning nil when no
// such project exists.
func (s *Store) ProjectByRoot(ctx context.Context, rootPath string) (*Project, error) {
	return s.queryProject(ctx, `SELECT id, root_path, handle_token, created_at, updated_at
		FROM projects WHERE root_path = ?`, rootPath)
}

// ProjectByID fetches a project by identity, returning nil when absent.
func (s *Store) ProjectByID(ctx context.Context, id string) (*Project, error) {
	return s.queryProject(ctx, `SELECT id, root_path, handle_token, created_at, updated_at
		FROM projects WHERE id = ?`, id)
}

// UpdateProjectHandle persists a replacement capability token. Refreshed
// handles are replaced in place; the project owns exactly one.
func (s *Store) UpdateProjectHandle(ctx context.Context, id, token string) error {
	now := time.Now().UTC().Format(time.RFC3339Nano)
	if _, err := s.execWithRetry(
		ctx,
		`UPDATE projects SET handle_token = ?, updated_at = ? WHERE id = ?`,
		nullableString(token), now, id,
	); err != nil {
		return fmt.Errorf("update project handle: %w", err)
	}
	return nil
}

func (s *Store) queryProject(ctx context.Context, query string, arg any) (*Project, error) {
	ctx = ensureContext(ctx)
	row := s.db.QueryRowContext(ctx, query, arg)

	var (
		p         Project
		token     sql.NullString
		createdAt sql.NullString
		updatedAt sql.NullString
	)
	if err := row.Scan(&p.ID, &p.RootPath, &token, &createdAt, &updatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("query project: %w", err)
	}
	p.HandleToken = token.String
	p.CreatedAt = parseTime(createdAt)
	p.UpdatedAt = parseTime(updatedAt)
	return &p, nil
}
