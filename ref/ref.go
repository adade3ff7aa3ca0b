package ref

import (
	"fmt"
	"time"
)

// FileReference is the persisted record of a discovered file. The relative
// path within the project is its sole stable identity across syncs; the same
// filename may recur in different subfolders.
type FileReference struct {
	ProjectID         string
	RelativePath      string // forward slashes
	Filename          string
	Extension         string // without leading dot
	LastKnownModTime  time.Time // from the most recent scan
	LastLoadedModTime time.Time // from the most recent successful load; zero when unset
	State             LoadState
	ErrorMessage      string
	HandleToken       string // optional per-file handle
	DerivedContent    []byte // opaque parser output, cached until unload
	CreatedAt         time.Time
	UpdatedAt         time.Time
}

// New creates a reference for a freshly discovered file in StateNotLoaded.
func New(projectID, relativePath, filename, extension string, modTime time.Time) *FileReference {
	now := time.Now().UTC()
	return &FileReference{
		ProjectID:        projectID,
		RelativePath:     relativePath,
		Filename:         filename,
		Extension:        extension,
		LastKnownModTime: modTime,
		State:            StateNotLoaded,
		CreatedAt:        now,
		UpdatedAt:        now,
	}
}

// BeginLoad moves the reference into StateLoading.
func (r *FileReference) BeginLoad() error {
	return r.apply(EventLoad)
}

// MarkLoaded records a successful load. The modification time must be the
// one observed at load time, not scan time, so a write racing the scan does
// not hide behind an older timestamp.
func (r *FileReference) MarkLoaded(loadModTime time.Time, derived []byte) error {
	if err := r.apply(EventLoadSucceeded); err != nil {
		return err
	}
	r.LastLoadedModTime = loadModTime
	if loadModTime.After(r.LastKnownModTime) {
		r.LastKnownModTime = loadModTime
	}
	r.DerivedContent = derived
	r.ErrorMessage = ""
	return nil
}

// MarkFailed records a load failure with a non-empty message.
func (r *FileReference) MarkFailed(message string) error {
	if message == "" {
		return fmt.Errorf("load failure requires a message for %q", r.RelativePath)
	}
	if err := r.apply(EventLoadFailed); err != nil {
		return err
	}
	r.ErrorMessage = message
	return nil
}

// MarkStale records that the on-disk file changed after the last load.
func (r *FileReference) MarkStale(scanModTime time.Time) error {
	if err := r.apply(EventExternalChange); err != nil {
		return err
	}
	r.LastKnownModTime = scanModTime
	return nil
}

// MarkMissing records absence from the most recent scan. Cached derived
// content and the last-loaded timestamp are preserved; only the flag changes.
func (r *FileReference) MarkMissing() error {
	return r.apply(EventAbsent)
}

// MarkRediscovered returns a missing reference to StateNotLoaded. Content is
// not auto-restored; the caller must load again explicitly.
func (r *FileReference) MarkRediscovered(modTime time.Time) error {
	if err := r.apply(EventRediscovered); err != nil {
		return err
	}
	r.LastKnownModTime = modTime
	return nil
}

// Unload discards cached derived content and clears the load timestamp.
func (r *FileReference) Unload() error {
	if err := r.apply(EventUnload); err != nil {
		return err
	}
	r.LastLoadedModTime = time.Time{}
	r.DerivedContent = nil
	return nil
}

// ForceReset recovers a reference stuck in StateLoading after an abandoned
// load.
func (r *FileReference) ForceReset() error {
	return r.apply(EventForceReset)
}

// IsLoaded reports whether derived content is current.
func (r *FileReference) IsLoaded() bool {
	return r.State == StateLoaded
}

func (r *FileReference) apply(event Event) error {
	next, err := Transition(r.State, event)
	if err != nil {
		return err
	}
	r.State = next
	r.UpdatedAt = time.Now().UTC()
	return nil
}
