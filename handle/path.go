package handle

import (
	"context"
	"fmt"
	"os"

	"github.com/google/uuid"
)

// PathLocator is the trivial Locator for environments without sandboxed
// capability tokens: the token stores the path directly and staleness is
// never reported.
type PathLocator struct{}

// NewPathLocator creates a direct-path locator.
func NewPathLocator() *PathLocator {
	return &PathLocator{}
}

// CreateHandle mints a token embedding the path as-is.
func (l *PathLocator) CreateHandle(ctx context.Context, path string) (Handle, error) {
	if _, err := os.Stat(path); err != nil {
		return Handle{}, fmt.Errorf("create handle for %q: %w", path, err)
	}
	token, err := encodeToken(tokenPayload{ID: uuid.NewString(), Path: path})
	if err != nil {
		return Handle{}, err
	}
	return Handle{Token: token, LastPath: path}, nil
}

// Resolve returns the embedded path. It never reports staleness; a missing
// target is a fatal resolution failure.
func (l *PathLocator) Resolve(ctx context.Context, h Handle) (string, bool, error) {
	payload, err := decodeToken(h.Token)
	if err != nil {
		return "", false, err
	}
	if _, err := os.Stat(payload.Path); err != nil {
		return "", false, fmt.Errorf("%w: target %q no longer exists", ErrResolution, payload.Path)
	}
	return payload.Path, false, nil
}

// RefreshIfStale is a no-op for direct-path handles.
func (l *PathLocator) RefreshIfStale(ctx context.Context, h Handle) (Handle, error) {
	path, _, err := l.Resolve(ctx, h)
	if err != nil {
		return Handle{}, err
	}
	h.LastPath = path
	h.Stale = false
	return h, nil
}

// WithScopedAccess acquires access to path for the duration of op.
func (l *PathLocator) WithScopedAccess(ctx context.Context, h Handle, path string, op func() error) error {
	return scopedAccess(ctx, path, op)
}
