package scan

import (
	"path/filepath"
	"strings"

	gitignore "github.com/denormal/go-gitignore"
	"github.com/go-git/go-billy/v5"
)

// IgnoreFilename is the optional per-project ignore file honored by the
// scanner in addition to the fixed exclusion set.
const IgnoreFilename = ".fablecastignore"

// excludedDirNames are cache and build directories that never contain
// project source files.
var excludedDirNames = map[string]struct{}{
	".git":         {},
	".svn":         {},
	".hg":          {},
	"node_modules": {},
	".build":       {},
	"DerivedData":  {},
	".cache":       {},
	".Trash":       {},
	"__pycache__":  {},
}

// Excluder decides whether a scanned entry is part of the project content.
// It combines a fixed exclusion set (hidden entries, cache/build directories,
// the project manifest) with optional ignore-file rules at the project root.
type Excluder struct {
	manifestName string
	rules        gitignore.GitIgnore
}

// ExcluderOptions configures an Excluder.
type ExcluderOptions struct {
	// ManifestName is the project manifest filename to exclude from scans.
	ManifestName string
}

// NewExcluder builds an Excluder for the given root, loading IgnoreFilename
// from the root when present.
func NewExcluder(fsys billy.Filesystem, root string, options ExcluderOptions) *Excluder {
	e := &Excluder{manifestName: options.ManifestName}
	e.rules = loadIgnoreRules(fsys, root)
	return e
}

// ExcludeDir reports whether a directory subtree should be skipped entirely.
func (e *Excluder) ExcludeDir(relativePath string) bool {
	name := baseName(relativePath)
	if strings.HasPrefix(name, ".") {
		return true
	}
	if _, fixed := excludedDirNames[name]; fixed {
		return true
	}
	if e.rules != nil {
		if match := e.rules.Relative(relativePath, true); match != nil && match.Ignore() {
			return true
		}
	}
	return false
}

// ExcludeFile reports whether a single file should be left out of scan
// results.
func (e *Excluder) ExcludeFile(relativePath string) bool {
	name := baseName(relativePath)
	if strings.HasPrefix(name, ".") {
		return true
	}
	if e.manifestName != "" && name == e.manifestName {
		return true
	}
	if e.rules != nil {
		if match := e.rules.Relative(relativePath, false); match != nil && match.Ignore() {
			return true
		}
	}
	return false
}

// loadIgnoreRules reads the project ignore file, returning nil when absent.
func loadIgnoreRules(fsys billy.Filesystem, root string) gitignore.GitIgnore {
	f, err := fsys.Open(fsys.Join(root, IgnoreFilename))
	if err != nil {
		return nil
	}
	defer f.Close()
	return gitignore.New(f, root, nil)
}

func baseName(relativePath string) string {
	return filepath.Base(filepath.FromSlash(relativePath))
}
