// Package plan turns project configuration and filter flags into an ordered
// list of single-file generation commands. Planning touches the filesystem
// only for directory listing and existence checks, never file content.
package plan

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/averlund/fablecast/manifest"
)

// ErrValidation marks malformed batch configuration, rejected before any
// matching or I/O.
var ErrValidation = errors.New("validation error")

// Config is the resolved input to BuildPlan. EpisodesDir and OutputDir are
// taken relative to Root unless absolute.
type Config struct {
	Root         string
	EpisodesDir  string
	OutputDir    string
	Patterns     []string // glob or explicit literal, matched non-recursively
	ExportFormat string   // output extension, without leading dot
	CastList     string   // optional cast-list location
	WithCastList bool     // attach the cast list to emitted commands

	ResumeFromIndex int // 1-based; 0 means from the start
	SkipExisting    bool
	Regenerate      bool
	FailFast        bool

	PreHook  string
	PostHook string
}

// FromMetadata builds a Config from parsed manifest metadata.
func FromMetadata(root string, meta manifest.Metadata) Config {
	return Config{
		Root:         root,
		EpisodesDir:  meta.EpisodesDir,
		OutputDir:    meta.OutputDir,
		Patterns:     meta.Patterns,
		ExportFormat: meta.ExportFormat,
		CastList:     meta.CastList,
		PreHook:      meta.PreHook,
		PostHook:     meta.PostHook,
	}
}

// Command is one immutable generation work item.
type Command struct {
	InputPath    string
	OutputPath   string
	Format       string
	CastListPath string // empty unless configured and requested
	SkipExisting bool
	Regenerate   bool
	FailFast     bool
}

// Plan is the resolved batch: directories, the deduplicated sorted file
// list, and the derived command list.
type Plan struct {
	EpisodesDir string
	OutputDir   string
	Files       []string // absolute input paths, natural order
	Commands    []Command
}

func (c Config) episodesDir() string {
	return resolveDir(c.Root, c.EpisodesDir)
}

func (c Config) outputDir() string {
	return resolveDir(c.Root, c.OutputDir)
}

func resolveDir(root, dir string) string {
	if dir == "" || dir == "." {
		return filepath.Clean(root)
	}
	if filepath.IsAbs(dir) {
		return filepath.Clean(dir)
	}
	return filepath.Join(root, dir)
}

func (c Config) validate() error {
	if strings.TrimSpace(c.ExportFormat) == "" {
		return fmt.Errorf("%w: export format is required", ErrValidation)
	}
	if len(c.Patterns) == 0 {
		return fmt.Errorf("%w: at least one filename pattern is required", ErrValidation)
	}
	if c.ResumeFromIndex < 0 {
		return fmt.Errorf("%w: resume index must be positive", ErrValidation)
	}
	return nil
}

// outputPathFor derives `<outputDir>/<inputBaseNameWithoutExtension>.<format>`.
func outputPathFor(outputDir, inputPath, format string) string {
	base := filepath.Base(inputPath)
	stem := strings.TrimSuffix(base, filepath.Ext(base))
	format = strings.TrimPrefix(strings.TrimSpace(format), ".")
	return filepath.Join(outputDir, stem+"."+format)
}

func isWildcard(pattern string) bool {
	return strings.ContainsAny(pattern, "*?[{")
}
