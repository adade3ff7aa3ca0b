// Package handle mints and resolves persistent capability tokens for
// filesystem locations. A token survives process restarts, grants
// time-bounded access through WithScopedAccess, and carries an explicit
// staleness/refresh protocol for targets that have moved.
package handle

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
)

// ErrResolution marks a token that cannot be decoded or whose target is
// permanently gone. It is fatal: the user must re-select the location.
var ErrResolution = errors.New("handle resolution error")

// Handle pairs an opaque token with the path it last resolved to. It is
// replaced in place by RefreshIfStale; callers must persist the replacement.
type Handle struct {
	Token    string
	LastPath string
	Stale    bool
}

// Locator is the capability-token protocol. Two handles minted for the same
// path are independent; there is no shared refcount between them.
type Locator interface {
	// CreateHandle mints a token for a path that exists now.
	CreateHandle(ctx context.Context, path string) (Handle, error)

	// Resolve exchanges a token for its current path. A stale result still
	// resolves but should be refreshed; an undecodable token or a
	// permanently gone target fails with ErrResolution.
	Resolve(ctx context.Context, h Handle) (path string, stale bool, err error)

	// RefreshIfStale mints a replacement token when the handle is stale,
	// and returns the handle unchanged otherwise.
	RefreshIfStale(ctx context.Context, h Handle) (Handle, error)

	// WithScopedAccess acquires access to path, runs op, and releases on
	// every exit path, including early error returns from op.
	WithScopedAccess(ctx context.Context, h Handle, path string, op func() error) error
}

// tokenPayload is the decoded form of a token. The embedded path is the
// target at mint time; staleness is detected by comparing it against the
// registry's current path.
type tokenPayload struct {
	ID   string `json:"id"`
	Path string `json:"path"`
}

func encodeToken(payload tokenPayload) (string, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("encode token: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(raw), nil
}

func decodeToken(token string) (tokenPayload, error) {
	raw, err := base64.RawURLEncoding.DecodeString(token)
	if err != nil {
		return tokenPayload{}, fmt.Errorf("%w: undecodable token: %v", ErrResolution, err)
	}
	var payload tokenPayload
	if err := json.Unmarshal(raw, &payload); err != nil {
		return tokenPayload{}, fmt.Errorf("%w: malformed token payload: %v", ErrResolution, err)
	}
	if payload.ID == "" || payload.Path == "" {
		return tokenPayload{}, fmt.Errorf("%w: token missing id or path", ErrResolution)
	}
	return payload, nil
}
