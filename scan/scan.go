// Package scan enumerates the content files of a project root, producing
// relative-path entries the synchronizer reconciles against the persisted
// reference set.
package scan

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"path/filepath"
	"strings"
	"time"

	"github.com/go-git/go-billy/v5"
	"github.com/go-git/go-billy/v5/util"
)

// ErrScan marks a failure to enumerate the project root. No partial results
// accompany it.
var ErrScan = errors.New("scan error")

// Entry describes one discovered file.
type Entry struct {
	RelativePath string    // relative to the scanned root, forward slashes
	Filename     string    // base name including extension
	Extension    string    // without leading dot, original case
	ModTime      time.Time // filesystem modification time at scan
	SizeBytes    int64
}

// Scanner walks a project root on an injected filesystem. Passing the
// filesystem explicitly keeps the engine free of ambient state and testable
// against an in-memory tree.
type Scanner struct {
	fsys   billy.Filesystem
	logger *slog.Logger
}

// NewScanner creates a scanner over the given filesystem.
func NewScanner(fsys billy.Filesystem, logger *slog.Logger) *Scanner {
	return &Scanner{fsys: fsys, logger: logger}
}

// Scan recursively enumerates files under root, applying the excluder and an
// optional case-insensitive extension filter. A nil or empty filter admits
// every extension. Results carry no ordering guarantee; callers sort when
// determinism matters. If the root itself cannot be enumerated, Scan fails
// with ErrScan and yields nothing.
func (s *Scanner) Scan(root string, excluder *Excluder, extensions []string) ([]Entry, error) {
	info, err := s.fsys.Stat(root)
	if err != nil {
		return nil, fmt.Errorf("%w: stat root %q: %v", ErrScan, root, err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("%w: root %q is not a directory", ErrScan, root)
	}

	filter := normalizeExtensions(extensions)

	var entries []Entry
	walkErr := util.Walk(s.fsys, root, func(path string, info fs.FileInfo, err error) error {
		if err != nil {
			if path == root {
				return err
			}
			// Unreadable subtrees are skipped, matching the no-guarantee
			// contract for individual entries.
			s.logger.Debug("scan: skipped unreadable entry", "path", path, "error", err)
			return nil
		}

		relPath, relErr := relativeComponents(root, path)
		if relErr != nil {
			return relErr
		}
		if relPath == "" {
			return nil // root itself
		}

		if info.IsDir() {
			if excluder != nil && excluder.ExcludeDir(relPath) {
				return filepath.SkipDir
			}
			return nil
		}

		if excluder != nil && excluder.ExcludeFile(relPath) {
			return nil
		}

		filename := filepath.Base(path)
		extension := extensionOf(filename)
		if len(filter) > 0 {
			if _, ok := filter[strings.ToLower(extension)]; !ok {
				return nil
			}
		}

		entries = append(entries, Entry{
			RelativePath: relPath,
			Filename:     filename,
			Extension:    extension,
			ModTime:      info.ModTime(),
			SizeBytes:    info.Size(),
		})
		return nil
	})
	if walkErr != nil {
		return nil, fmt.Errorf("%w: walking %q: %v", ErrScan, root, walkErr)
	}

	s.logger.Debug("scan complete", "root", root, "files", len(entries))
	return entries, nil
}

// relativeComponents computes path relative to root by subtracting root's
// path components, not by string-prefix stripping, so a sibling such as
// "rootX" never masquerades as being inside "root".
func relativeComponents(root, path string) (string, error) {
	rootParts := splitComponents(root)
	pathParts := splitComponents(path)

	if len(pathParts) < len(rootParts) {
		return "", fmt.Errorf("path %q is outside root %q", path, root)
	}
	for i, part := range rootParts {
		if pathParts[i] != part {
			return "", fmt.Errorf("path %q is outside root %q", path, root)
		}
	}
	return strings.Join(pathParts[len(rootParts):], "/"), nil
}

func splitComponents(path string) []string {
	normalized := filepath.ToSlash(filepath.Clean(path))
	normalized = strings.Trim(normalized, "/")
	if normalized == "" || normalized == "." {
		return nil
	}
	return strings.Split(normalized, "/")
}

func extensionOf(filename string) string {
	ext := filepath.Ext(filename)
	return strings.TrimPrefix(ext, ".")
}

func normalizeExtensions(extensions []string) map[string]struct{} {
	if len(extensions) == 0 {
		return nil
	}
	set := make(map[string]struct{}, len(extensions))
	for _, ext := range extensions {
		ext = strings.TrimPrefix(strings.TrimSpace(ext), ".")
		if ext == "" {
			continue
		}
		set[strings.ToLower(ext)] = struct{}{}
	}
	return set
}
