package handle

import (
	"context"
	"fmt"
	"os"

	"github.com/google/uuid"
)

// Registry is the persistent mapping from handle identity to current target
// path. The store package provides the SQLite-backed implementation.
type Registry interface {
	// Lookup returns the current path for a handle id, with ok=false when
	// the id is unknown.
	Lookup(ctx context.Context, id string) (path string, ok bool, err error)

	// Record sets the current path for a handle id, inserting or
	// overwriting.
	Record(ctx context.Context, id, path string) error
}

// RegistryLocator implements Locator against a persistent registry. The
// registry tracks where each handle's target currently lives, so a token
// minted before a move still resolves, reporting staleness until refreshed.
type RegistryLocator struct {
	registry Registry
}

// NewRegistryLocator creates a locator backed by the given registry.
func NewRegistryLocator(registry Registry) *RegistryLocator {
	return &RegistryLocator{registry: registry}
}

// CreateHandle mints a token for a path that exists now.
func (l *RegistryLocator) CreateHandle(ctx context.Context, path string) (Handle, error) {
	if _, err := os.Stat(path); err != nil {
		return Handle{}, fmt.Errorf("create handle for %q: %w", path, err)
	}

	id := uuid.NewString()
	if err := l.registry.Record(ctx, id, path); err != nil {
		return Handle{}, fmt.Errorf("register handle: %w", err)
	}

	token, err := encodeToken(tokenPayload{ID: id, Path: path})
	if err != nil {
		return Handle{}, err
	}
	return Handle{Token: token, LastPath: path}, nil
}

// Resolve exchanges the token for the target's current path. When the
// registry knows a newer path than the one embedded in the token, the result
// is stale until the caller refreshes.
func (l *RegistryLocator) Resolve(ctx context.Context, h Handle) (string, bool, error) {
	payload, err := decodeToken(h.Token)
	if err != nil {
		return "", false, err
	}

	current, ok, err := l.registry.Lookup(ctx, payload.ID)
	if err != nil {
		return "", false, fmt.Errorf("registry lookup: %w", err)
	}
	if !ok {
		// Registry lost (fresh store, restored backup). The embedded path
		// is authoritative if it still exists; re-register it.
		if _, statErr := os.Stat(payload.Path); statErr != nil {
			return "", false, fmt.Errorf("%w: target %q is gone and unregistered", ErrResolution, payload.Path)
		}
		if err := l.registry.Record(ctx, payload.ID, payload.Path); err != nil {
			return "", false, fmt.Errorf("re-register handle: %w", err)
		}
		return payload.Path, false, nil
	}

	if _, statErr := os.Stat(current); statErr != nil {
		return "", false, fmt.Errorf("%w: target %q no longer exists", ErrResolution, current)
	}
	return current, current != payload.Path, nil
}

// RefreshIfStale mints a replacement token embedding the target's current
// path. Callers must persist the replacement; the old token keeps reporting
// staleness.
func (l *RegistryLocator) RefreshIfStale(ctx context.Context, h Handle) (Handle, error) {
	path, stale, err := l.Resolve(ctx, h)
	if err != nil {
		return Handle{}, err
	}
	if !stale {
		h.LastPath = path
		h.Stale = false
		return h, nil
	}

	payload, err := decodeToken(h.Token)
	if err != nil {
		return Handle{}, err
	}
	token, err := encodeToken(tokenPayload{ID: payload.ID, Path: path})
	if err != nil {
		return Handle{}, err
	}
	return Handle{Token: token, LastPath: path}, nil
}

// Relocate repoints a handle at a new path, used when the user re-selects a
// moved project root. Existing tokens report staleness on their next resolve.
func (l *RegistryLocator) Relocate(ctx context.Context, h Handle, newPath string) error {
	payload, err := decodeToken(h.Token)
	if err != nil {
		return err
	}
	if _, err := os.Stat(newPath); err != nil {
		return fmt.Errorf("relocate handle to %q: %w", newPath, err)
	}
	return l.registry.Record(ctx, payload.ID, newPath)
}

// WithScopedAccess acquires access to path for the duration of op.
func (l *RegistryLocator) WithScopedAccess(ctx context.Context, h Handle, path string, op func() error) error {
	return scopedAccess(ctx, path, op)
}
