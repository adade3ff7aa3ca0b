// Package loader drives the per-reference load lifecycle: it reads a file
// under scoped resource access, hands the content to the injected document
// parser, and commits each lifecycle mutation to the store as one atomic
// unit.
package loader

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"

	"github.com/go-git/go-billy/v5"
	"github.com/go-git/go-billy/v5/util"

	"github.com/averlund/fablecast/handle"
	"github.com/averlund/fablecast/ref"
	"github.com/averlund/fablecast/store"
)

// ErrLoad marks a per-file read or parse failure. The reference holds the
// message in its error state and the load may be retried.
var ErrLoad = errors.New("load error")

// ErrNotFound marks an operation on a reference the store does not know.
var ErrNotFound = errors.New("reference not found")

// DocumentParser turns file content into opaque derived content. It is
// invoked once per load and its result is stored as-is.
type DocumentParser interface {
	Parse(relativePath string, content []byte) ([]byte, error)
}

// Engine coordinates loads, unloads, and recovery for one store.
type Engine struct {
	store   *store.Store
	locator handle.Locator
	fsys    billy.Filesystem
	parser  DocumentParser
	logger  *slog.Logger
}

// NewEngine wires a load engine. The filesystem is injected so the engine
// never touches ambient state.
func NewEngine(st *store.Store, locator handle.Locator, fsys billy.Filesystem, parser DocumentParser, logger *slog.Logger) *Engine {
	return &Engine{store: st, locator: locator, fsys: fsys, parser: parser, logger: logger}
}

// Load runs the full load cycle for one reference. Scoped resource access is
// held only for the duration of this file's read, never across files. A
// parse or read failure moves the reference to its error state and returns
// ErrLoad; the caller decides whether a batch continues.
func (e *Engine) Load(ctx context.Context, projectID, relativePath string) error {
	r, err := e.store.GetReference(ctx, projectID, relativePath)
	if err != nil {
		return err
	}
	if r == nil {
		return fmt.Errorf("%w: %q", ErrNotFound, relativePath)
	}

	if err := r.BeginLoad(); err != nil {
		return err
	}
	if err := e.store.UpdateReference(ctx, r); err != nil {
		return err
	}

	root, h, err := e.resolveRoot(ctx, projectID)
	if err != nil {
		return e.failLoad(ctx, r, err)
	}

	absolutePath := filepath.Join(root, filepath.FromSlash(relativePath))
	var content []byte
	var loadModTime = r.LastKnownModTime

	accessErr := e.locator.WithScopedAccess(ctx, h, root, func() error {
		info, statErr := e.fsys.Stat(absolutePath)
		if statErr != nil {
			return statErr
		}
		// The time observed at load, not scan, time: a write racing the
		// scan must not hide behind the older timestamp.
		loadModTime = info.ModTime()

		data, readErr := util.ReadFile(e.fsys, absolutePath)
		if readErr != nil {
			return readErr
		}
		content = data
		return nil
	})
	if accessErr != nil {
		return e.failLoad(ctx, r, accessErr)
	}

	if err := ctx.Err(); err != nil {
		// Cooperative cancellation: the reference stays in loading until
		// ForceReset or a retried load settles it.
		return err
	}

	if isBinaryContent(content) {
		return e.failLoad(ctx, r, fmt.Errorf("binary content"))
	}

	derived, parseErr := e.parser.Parse(relativePath, content)
	if parseErr != nil {
		return e.failLoad(ctx, r, parseErr)
	}

	if err := r.MarkLoaded(loadModTime, derived); err != nil {
		return err
	}
	if err := e.store.UpdateReference(ctx, r); err != nil {
		return err
	}
	e.logger.Debug("loaded reference", "project", projectID, "path", relativePath)
	return nil
}

// Unload discards a reference's cached derived content and returns it to
// not_loaded, as one atomic commit.
func (e *Engine) Unload(ctx context.Context, projectID, relativePath string) error {
	r, err := e.store.GetReference(ctx, projectID, relativePath)
	if err != nil {
		return err
	}
	if r == nil {
		return fmt.Errorf("%w: %q", ErrNotFound, relativePath)
	}
	if err := r.Unload(); err != nil {
		return err
	}
	return e.store.UpdateReference(ctx, r)
}

// ForceReset recovers a reference stuck in loading after an abandoned load.
func (e *Engine) ForceReset(ctx context.Context, projectID, relativePath string) error {
	r, err := e.store.GetReference(ctx, projectID, relativePath)
	if err != nil {
		return err
	}
	if r == nil {
		return fmt.Errorf("%w: %q", ErrNotFound, relativePath)
	}
	if err := r.ForceReset(); err != nil {
		return err
	}
	if err := e.store.UpdateReference(ctx, r); err != nil {
		return err
	}
	e.logger.Info("force-reset stuck reference", "project", projectID, "path", relativePath)
	return nil
}

// Delete removes a reference explicitly. Synchronization never deletes.
func (e *Engine) Delete(ctx context.Context, projectID, relativePath string) error {
	return e.store.DeleteByIdentity(ctx, projectID, relativePath)
}

// resolveRoot resolves the project's capability token, refreshing once on
// staleness and persisting the replacement.
func (e *Engine) resolveRoot(ctx context.Context, projectID string) (string, handle.Handle, error) {
	project, err := e.store.ProjectByID(ctx, projectID)
	if err != nil {
		return "", handle.Handle{}, err
	}
	if project == nil {
		return "", handle.Handle{}, fmt.Errorf("%w: project %q", ErrNotFound, projectID)
	}
	if project.HandleToken == "" {
		// Project registered without a minted handle; use its root directly.
		return project.RootPath, handle.Handle{}, nil
	}

	h := handle.Handle{Token: project.HandleToken}
	path, stale, err := e.locator.Resolve(ctx, h)
	if err != nil {
		return "", handle.Handle{}, err
	}
	if !stale {
		h.LastPath = path
		return path, h, nil
	}

	refreshed, err := e.locator.RefreshIfStale(ctx, h)
	if err != nil {
		return "", handle.Handle{}, err
	}
	if err := e.store.UpdateProjectHandle(ctx, projectID, refreshed.Token); err != nil {
		return "", handle.Handle{}, err
	}
	e.logger.Info("refreshed stale project handle", "project", projectID, "path", refreshed.LastPath)
	return refreshed.LastPath, refreshed, nil
}

// failLoad commits the error state and wraps the cause in ErrLoad.
func (e *Engine) failLoad(ctx context.Context, r *ref.FileReference, cause error) error {
	if markErr := r.MarkFailed(cause.Error()); markErr != nil {
		return markErr
	}
	if err := e.store.UpdateReference(ctx, r); err != nil {
		return err
	}
	e.logger.Debug("load failed", "path", r.RelativePath, "error", cause)
	return fmt.Errorf("%w: %s: %v", ErrLoad, r.RelativePath, cause)
}

// isBinaryContent checks the first 512 bytes for null bytes, which indicates
// content the document parser cannot handle.
func isBinaryContent(data []byte) bool {
	checkSize := 512
	if len(data) < checkSize {
		checkSize = len(data)
	}
	for i := 0; i < checkSize; i++ {
		if data[i] == 0 {
			return true
		}
	}
	return false
}
