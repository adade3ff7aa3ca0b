// Package syncer reconciles scan results against the persisted reference
// set in one atomic pass: discovered entries create or update references,
// and references absent from the scan are flagged missing, never deleted.
package syncer

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/averlund/fablecast/ref"
	"github.com/averlund/fablecast/scan"
	"github.com/averlund/fablecast/store"
)

// ErrSync marks a persistence failure during a synchronize pass. Nothing was
// committed and the pass is safe to retry.
var ErrSync = errors.New("synchronization error")

// ErrCollision marks two discovered entries normalizing to the same relative
// path. Silently overwriting would make the winner scan-order dependent, so
// the pass is rejected instead.
var ErrCollision = errors.New("relative path collision")

// Result summarizes one synchronize pass.
type Result struct {
	Created      int // first-time discoveries
	Updated      int // existing references seen again
	WentStale    int // loaded references with a newer on-disk modification
	WentMissing  int // references absent from this scan
	Rediscovered int // missing references that reappeared
	Duration     time.Duration
}

// Total returns the number of references touched by the pass.
func (r Result) Total() int {
	return r.Created + r.Updated + r.WentMissing
}

// Synchronizer reconciles discovered files with the store. Calls for a given
// project must be serialized by the caller; concurrent passes on one project
// are undefined.
type Synchronizer struct {
	store  *store.Store
	logger *slog.Logger
}

// New creates a synchronizer over the given store.
func New(st *store.Store, logger *slog.Logger) *Synchronizer {
	return &Synchronizer{store: st, logger: logger}
}

// Synchronize runs one reconcile pass for a project and commits the updated
// set in a single transaction. On commit failure the whole pass is rejected.
func (s *Synchronizer) Synchronize(ctx context.Context, projectID string, discovered []scan.Entry) (Result, error) {
	start := time.Now()
	var result Result

	seen := make(map[string]struct{}, len(discovered))
	for _, entry := range discovered {
		if _, dup := seen[entry.RelativePath]; dup {
			return Result{}, fmt.Errorf("%w: %q discovered twice", ErrCollision, entry.RelativePath)
		}
		seen[entry.RelativePath] = struct{}{}
	}

	existing, err := s.store.FetchAllByProject(ctx, projectID)
	if err != nil {
		return Result{}, fmt.Errorf("%w: %v", ErrSync, err)
	}
	byPath := make(map[string]*ref.FileReference, len(existing))
	for _, r := range existing {
		byPath[r.RelativePath] = r
	}

	updated := make([]*ref.FileReference, 0, len(discovered)+len(existing))

	for _, entry := range discovered {
		r, exists := byPath[entry.RelativePath]
		if !exists {
			updated = append(updated, ref.New(projectID, entry.RelativePath, entry.Filename, entry.Extension, entry.ModTime))
			result.Created++
			continue
		}

		if err := s.applyDiscovery(r, entry, &result); err != nil {
			return Result{}, fmt.Errorf("%w: %v", ErrSync, err)
		}
		updated = append(updated, r)
		result.Updated++
	}

	for _, r := range existing {
		if _, present := seen[r.RelativePath]; present {
			continue
		}
		if r.State == ref.StateMissing {
			updated = append(updated, r)
			continue
		}
		if r.State == ref.StateLoading {
			// An in-flight load settles on its own; the next pass flags it.
			updated = append(updated, r)
			continue
		}
		if err := r.MarkMissing(); err != nil {
			return Result{}, fmt.Errorf("%w: %v", ErrSync, err)
		}
		updated = append(updated, r)
		result.WentMissing++
	}

	if err := s.store.SaveAll(ctx, updated); err != nil {
		return Result{}, fmt.Errorf("%w: %v", ErrSync, err)
	}

	result.Duration = time.Since(start)
	if result.Created+result.WentStale+result.WentMissing+result.Rediscovered > 0 {
		s.logger.Info("synchronize complete",
			"project", projectID,
			"created", result.Created,
			"updated", result.Updated,
			"stale", result.WentStale,
			"missing", result.WentMissing,
			"rediscovered", result.Rediscovered,
			"duration", result.Duration,
		)
	} else {
		s.logger.Debug("synchronize complete, references are in sync",
			"project", projectID, "duration", result.Duration)
	}
	return result, nil
}

// applyDiscovery updates one existing reference from its matching scan
// entry.
func (s *Synchronizer) applyDiscovery(r *ref.FileReference, entry scan.Entry, result *Result) error {
	r.Filename = entry.Filename
	r.Extension = entry.Extension

	switch {
	case r.State == ref.StateMissing:
		if err := r.MarkRediscovered(entry.ModTime); err != nil {
			return err
		}
		result.Rediscovered++
	case r.State == ref.StateLoaded && entry.ModTime.After(r.LastLoadedModTime):
		if err := r.MarkStale(entry.ModTime); err != nil {
			return err
		}
		result.WentStale++
	default:
		r.LastKnownModTime = entry.ModTime
	}
	return nil
}
