package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/averlund/fablecast/ref"
)

const referenceColumns = `project_id, relative_path, filename, extension,
	last_known_mod_time, last_loaded_mod_time, load_state, error_message,
	handle_token, derived_content, created_at, updated_at`

// FetchAllByProject returns every persisted reference for a project.
func (s *Store) FetchAllByProject(ctx context.Context, projectID string) ([]*ref.FileReference, error) {
	ctx = ensureContext(ctx)
	rows, err := s.db.QueryContext(
		ctx,
		`SELECT `+referenceColumns+` FROM file_references WHERE project_id = ? ORDER BY relative_path`,
		projectID,
	)
	if err != nil {
		return nil, fmt.Errorf("fetch references: %w", err)
	}
	defer rows.Close()

	var refs []*ref.FileReference
	for rows.Next() {
		r, scanErr := scanReference(rows)
		if scanErr != nil {
			return nil, scanErr
		}
		refs = append(refs, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate references: %w", err)
	}
	return refs, nil
}

// GetReference fetches one reference by identity, returning nil when absent.
func (s *Store) GetReference(ctx context.Context, projectID, relativePath string) (*ref.FileReference, error) {
	ctx = ensureContext(ctx)
	rows, err := s.db.QueryContext(
		ctx,
		`SELECT `+referenceColumns+` FROM file_references WHERE project_id = ? AND relative_path = ?`,
		projectID, relativePath,
	)
	if err != nil {
		return nil, fmt.Errorf("get reference: %w", err)
	}
	defer rows.Close()

	if !rows.Next() {
		return nil, rows.Err()
	}
	return scanReference(rows)
}

// InsertReference persists a newly created reference.
func (s *Store) InsertReference(ctx context.Context, r *ref.FileReference) error {
	if _, err := s.execWithRetry(ctx, insertReferenceQuery, insertReferenceArgs(r)...); err != nil {
		return fmt.Errorf("insert reference: %w", err)
	}
	return nil
}

// UpdateReference commits one reference's current state as a single atomic
// write. The loader uses this for every lifecycle mutation.
func (s *Store) UpdateReference(ctx context.Context, r *ref.FileReference) error {
	if _, err := s.execWithRetry(
		ctx,
		`UPDATE file_references SET
			filename = ?, extension = ?, last_known_mod_time = ?,
			last_loaded_mod_time = ?, load_state = ?, error_message = ?,
			handle_token = ?, derived_content = ?, updated_at = ?
		 WHERE project_id = ? AND relative_path = ?`,
		r.Filename, r.Extension, formatTime(r.LastKnownModTime),
		formatTime(r.LastLoadedModTime), string(r.State), nullableString(r.ErrorMessage),
		nullableString(r.HandleToken), r.DerivedContent,
		time.Now().UTC().Format(time.RFC3339Nano),
		r.ProjectID, r.RelativePath,
	); err != nil {
		return fmt.Errorf("update reference: %w", err)
	}
	return nil
}

// SaveAll upserts the whole reference set in one transaction. Either every
// pending change lands or none does; a failed commit leaves the previous
// state intact and is safe to retry.
func (s *Store) SaveAll(ctx context.Context, refs []*ref.FileReference) error {
	ctx = ensureContext(ctx)
	return retryOnBusy(ctx, func() error {
		tx, err := s.db.BeginTx(ctx, nil)
		if err != nil {
			return fmt.Errorf("begin save: %w", err)
		}

		for _, r := range refs {
			if _, err := tx.ExecContext(ctx, upsertReferenceQuery, upsertReferenceArgs(r)...); err != nil {
				_ = tx.Rollback()
				return fmt.Errorf("save reference %q: %w", r.RelativePath, err)
			}
		}

		if err := tx.Commit(); err != nil {
			return fmt.Errorf("commit save: %w", err)
		}
		return nil
	})
}

// DeleteByIdentity removes a reference explicitly. Synchronization never
// deletes; this is the separate deletion operation.
func (s *Store) DeleteByIdentity(ctx context.Context, projectID, relativePath string) error {
	if _, err := s.execWithRetry(
		ctx,
		`DELETE FROM file_references WHERE project_id = ? AND relative_path = ?`,
		projectID, relativePath,
	); err != nil {
		return fmt.Errorf("delete reference: %w", err)
	}
	return nil
}

const insertReferenceQuery = `INSERT INTO file_references (` + referenceColumns + `)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`

func insertReferenceArgs(r *ref.FileReference) []any {
	return []any{
		r.ProjectID, r.RelativePath, r.Filename, r.Extension,
		formatTime(r.LastKnownModTime), formatTime(r.LastLoadedModTime),
		string(r.State), nullableString(r.ErrorMessage),
		nullableString(r.HandleToken), r.DerivedContent,
		formatTime(r.CreatedAt), formatTime(r.UpdatedAt),
	}
}

const upsertReferenceQuery = insertReferenceQuery + `
	ON CONFLICT (project_id, relative_path) DO UPDATE SET
		filename = excluded.filename,
		extension = excluded.extension,
		last_known_mod_time = excluded.last_known_mod_time,
		last_loaded_mod_time = excluded.last_loaded_mod_time,
		load_state = excluded.load_state,
		error_message = excluded.error_message,
		handle_token = excluded.handle_token,
		derived_content = excluded.derived_content,
		updated_at = excluded.updated_at`

func upsertReferenceArgs(r *ref.FileReference) []any {
	return insertReferenceArgs(r)
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanReference(row rowScanner) (*ref.FileReference, error) {
	var (
		r            ref.FileReference
		lastKnown    sql.NullString
		lastLoaded   sql.NullString
		state        string
		errorMessage sql.NullString
		handleToken  sql.NullString
		createdAt    sql.NullString
		updatedAt    sql.NullString
	)
	if err := row.Scan(
		&r.ProjectID, &r.RelativePath, &r.Filename, &r.Extension,
		&lastKnown, &lastLoaded, &state, &errorMessage,
		&handleToken, &r.DerivedContent, &createdAt, &updatedAt,
	); err != nil {
		return nil, fmt.Errorf("scan reference: %w", err)
	}

	parsed, ok := ref.ParseState(state)
	if !ok {
		return nil, fmt.Errorf("unknown load state %q for %q", state, r.RelativePath)
	}
	r.State = parsed
	r.LastKnownModTime = parseTime(lastKnown)
	r.LastLoadedModTime = parseTime(lastLoaded)
	r.ErrorMessage = errorMessage.String
	r.HandleToken = handleToken.String
	r.CreatedAt = parseTime(createdAt)
	r.UpdatedAt = parseTime(updatedAt)
	return &r, nil
}
