package plan

import (
	"fmt"
	"log/slog"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/go-git/go-billy/v5"
	"golang.org/x/text/collate"
	"golang.org/x/text/language"
)

// Planner builds batch plans against an injected filesystem.
type Planner struct {
	fsys   billy.Filesystem
	logger *slog.Logger
}

// NewPlanner creates a planner over the given filesystem.
func NewPlanner(fsys billy.Filesystem, logger *slog.Logger) *Planner {
	return &Planner{fsys: fsys, logger: logger}
}

// BuildPlan validates config, resolves the episode file set, and derives one
// command per remaining file. Ordering is natural (numeric-aware) ascending
// on the file's base name, so episode_2 sorts before episode_10, and is
// stable run-to-run.
func (p *Planner) BuildPlan(cfg Config) (*Plan, error) {
	if err := cfg.validate(); err != nil {
		return nil, err
	}

	episodesDir := cfg.episodesDir()
	outputDir := cfg.outputDir()

	info, err := p.fsys.Stat(episodesDir)
	if err != nil {
		return nil, fmt.Errorf("%w: episode directory %q: %v", ErrValidation, episodesDir, err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("%w: episode directory %q is not a directory", ErrValidation, episodesDir)
	}

	files, err := p.resolveFiles(episodesDir, cfg.Patterns)
	if err != nil {
		return nil, err
	}

	// resumeFromIndex is 1-based: index 3 over 5 files keeps files 3-5.
	if cfg.ResumeFromIndex > 0 {
		start := cfg.ResumeFromIndex - 1
		if start >= len(files) {
			files = nil
		} else {
			files = files[start:]
		}
	}

	plan := &Plan{
		EpisodesDir: episodesDir,
		OutputDir:   outputDir,
		Files:       files,
	}

	for _, inputPath := range files {
		outputPath := outputPathFor(outputDir, inputPath, cfg.ExportFormat)

		if cfg.SkipExisting && !cfg.Regenerate {
			if _, err := p.fsys.Stat(outputPath); err == nil {
				p.logger.Debug("plan: skipping existing output", "input", inputPath, "output", outputPath)
				continue
			}
		}

		castList := ""
		if cfg.WithCastList && cfg.CastList != "" {
			castList = resolveDir(cfg.Root, cfg.CastList)
		}

		plan.Commands = append(plan.Commands, Command{
			InputPath:    inputPath,
			OutputPath:   outputPath,
			Format:       cfg.ExportFormat,
			CastListPath: castList,
			SkipExisting: cfg.SkipExisting,
			Regenerate:   cfg.Regenerate,
			FailFast:     cfg.FailFast,
		})
	}

	p.logger.Debug("plan built",
		"episodesDir", episodesDir,
		"matched", len(files),
		"commands", len(plan.Commands),
	)
	return plan, nil
}

// resolveFiles aggregates pattern matches across the episode directory
// listing, deduplicated by resolved path and naturally sorted. Matching is
// non-recursive: patterns see only the directory's immediate entries.
func (p *Planner) resolveFiles(episodesDir string, patterns []string) ([]string, error) {
	entries, err := p.fsys.ReadDir(episodesDir)
	if err != nil {
		return nil, fmt.Errorf("%w: listing episode directory %q: %v", ErrValidation, episodesDir, err)
	}

	matched := make(map[string]struct{})
	for _, pattern := range patterns {
		if !isWildcard(pattern) {
			// An explicit filename is included only if present on disk.
			candidate := p.fsys.Join(episodesDir, pattern)
			if info, statErr := p.fsys.Stat(candidate); statErr == nil && !info.IsDir() {
				matched[candidate] = struct{}{}
			}
			continue
		}

		if !doublestar.ValidatePattern(pattern) {
			return nil, fmt.Errorf("%w: invalid pattern %q", ErrValidation, pattern)
		}
		for _, entry := range entries {
			if entry.IsDir() {
				continue
			}
			ok, matchErr := doublestar.Match(pattern, entry.Name())
			if matchErr != nil {
				return nil, fmt.Errorf("%w: pattern %q: %v", ErrValidation, pattern, matchErr)
			}
			if ok {
				matched[p.fsys.Join(episodesDir, entry.Name())] = struct{}{}
			}
		}
	}

	files := make([]string, 0, len(matched))
	for path := range matched {
		files = append(files, path)
	}
	collate.New(language.Und, collate.Numeric).SortStrings(files)
	return files, nil
}
