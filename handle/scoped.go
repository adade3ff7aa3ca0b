package handle

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/gofrs/flock"
)

// lockFilename is the advisory-lock sidecar placed next to (or inside) the
// accessed location. It is dot-prefixed so scans never report it.
const lockFilename = ".fablecast.lock"

const lockRetryDelay = 50 * time.Millisecond

// scopedAccess acquires an advisory file lock for the duration of op and
// guarantees release on every exit path. Acquisition failures surface to the
// caller; op's error is returned as-is.
func scopedAccess(ctx context.Context, path string, op func() error) error {
	lock := flock.New(lockPath(path))
	locked, err := lock.TryLockContext(ctx, lockRetryDelay)
	if err != nil {
		return fmt.Errorf("acquire scoped access to %q: %w", path, err)
	}
	if !locked {
		return fmt.Errorf("acquire scoped access to %q: lock unavailable", path)
	}
	defer func() {
		_ = lock.Unlock()
	}()

	return op()
}

// lockPath places the lock file inside a directory target, or next to the
// directory containing a file target.
func lockPath(path string) string {
	info, err := os.Stat(path)
	if err == nil && info.IsDir() {
		return filepath.Join(path, lockFilename)
	}
	return filepath.Join(filepath.Dir(path), lockFilename)
}
