package loader

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/go-git/go-billy/v5/osfs"

	"github.com/averlund/fablecast/handle"
	"github.com/averlund/fablecast/ref"
	"github.com/averlund/fablecast/store"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// fakeParser parses successfully unless told to fail.
type fakeParser struct {
	fail  bool
	calls int
}

func (p *fakeParser) Parse(relativePath string, content []byte) ([]byte, error) {
	p.calls++
	if p.fail {
		return nil, fmt.Errorf("unbalanced dialogue block at line 3")
	}
	return []byte(fmt.Sprintf(`{"path":%q,"bytes":%d}`, relativePath, len(content))), nil
}

type fixture struct {
	engine    *Engine
	store     *store.Store
	parser    *fakeParser
	projectID string
	root      string
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	root := t.TempDir()

	st, err := store.Open(filepath.Join(t.TempDir(), "fablecast.db"))
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { st.Close() })

	project, err := st.EnsureProject(context.Background(), root)
	if err != nil {
		t.Fatal(err)
	}

	locator := handle.NewRegistryLocator(st)
	h, err := locator.CreateHandle(context.Background(), root)
	if err != nil {
		t.Fatal(err)
	}
	if err := st.UpdateProjectHandle(context.Background(), project.ID, h.Token); err != nil {
		t.Fatal(err)
	}

	parser := &fakeParser{}
	engine := NewEngine(st, locator, osfs.New("/"), parser, testLogger())
	return &fixture{engine: engine, store: st, parser: parser, projectID: project.ID, root: root}
}

func (f *fixture) addFile(t *testing.T, relPath, content string) {
	t.Helper()
	absolute := filepath.Join(f.root, filepath.FromSlash(relPath))
	if err := os.MkdirAll(filepath.Dir(absolute), 0755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(absolute, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}

	info, err := os.Stat(absolute)
	if err != nil {
		t.Fatal(err)
	}
	r := ref.New(f.projectID, relPath, filepath.Base(relPath), "fountain", info.ModTime())
	if err := f.store.InsertReference(context.Background(), r); err != nil {
		t.Fatal(err)
	}
}

func (f *fixture) get(t *testing.T, relPath string) *ref.FileReference {
	t.Helper()
	r, err := f.store.GetReference(context.Background(), f.projectID, relPath)
	if err != nil {
		t.Fatal(err)
	}
	if r == nil {
		t.Fatalf("expected reference %q", relPath)
	}
	return r
}

func Test_Load_Success_CommitsLoadedState(t *testing.T) {
	f := newFixture(t)
	f.addFile(t, "episode.fountain", "INT. STUDY - NIGHT\n")

	if err := f.engine.Load(context.Background(), f.projectID, "episode.fountain"); err != nil {
		t.Fatal(err)
	}

	r := f.get(t, "episode.fountain")
	if r.State != ref.StateLoaded {
		t.Errorf("expected loaded, got %s", r.State)
	}
	if r.LastLoadedModTime.IsZero() {
		t.Error("expected load-time mod time to be recorded")
	}
	if r.LastLoadedModTime.After(r.LastKnownModTime) {
		t.Error("load-time mod time must not exceed last-known time")
	}
	if len(r.DerivedContent) == 0 {
		t.Error("expected derived content persisted")
	}
	if f.parser.calls != 1 {
		t.Errorf("parser must be invoked once per load, got %d", f.parser.calls)
	}
}

func Test_Load_ParseFailure_CommitsErrorState(t *testing.T) {
	f := newFixture(t)
	f.addFile(t, "episode.fountain", "INT. STUDY - NIGHT\n")
	f.parser.fail = true

	err := f.engine.Load(context.Background(), f.projectID, "episode.fountain")
	if !errors.Is(err, ErrLoad) {
		t.Fatalf("expected ErrLoad, got %v", err)
	}

	r := f.get(t, "episode.fountain")
	if r.State != ref.StateError {
		t.Errorf("expected error state, got %s", r.State)
	}
	if r.ErrorMessage == "" {
		t.Error("expected a non-empty error message")
	}

	// A subsequent successful reload clears the error.
	f.parser.fail = false
	if err := f.engine.Load(context.Background(), f.projectID, "episode.fountain"); err != nil {
		t.Fatal(err)
	}
	r = f.get(t, "episode.fountain")
	if r.State != ref.StateLoaded || r.ErrorMessage != "" {
		t.Errorf("expected clean loaded state after reload, got %s %q", r.State, r.ErrorMessage)
	}
	if r.LastLoadedModTime.IsZero() {
		t.Error("reload must update the last-loaded time")
	}
}

func Test_Load_BinaryContent_Fails(t *testing.T) {
	f := newFixture(t)
	f.addFile(t, "blob.fountain", "INT\x00BINARY")

	if err := f.engine.Load(context.Background(), f.projectID, "blob.fountain"); !errors.Is(err, ErrLoad) {
		t.Fatalf("expected ErrLoad for binary content, got %v", err)
	}
	if r := f.get(t, "blob.fountain"); r.State != ref.StateError {
		t.Errorf("expected error state, got %s", r.State)
	}
}

func Test_Load_MissingFileOnDisk_Fails(t *testing.T) {
	f := newFixture(t)
	r := ref.New(f.projectID, "ghost.fountain", "ghost.fountain", "fountain", time.Now().UTC())
	if err := f.store.InsertReference(context.Background(), r); err != nil {
		t.Fatal(err)
	}

	if err := f.engine.Load(context.Background(), f.projectID, "ghost.fountain"); !errors.Is(err, ErrLoad) {
		t.Fatalf("expected ErrLoad, got %v", err)
	}
}

func Test_Load_UnknownReference_Fails(t *testing.T) {
	f := newFixture(t)
	if err := f.engine.Load(context.Background(), f.projectID, "nope.fountain"); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func Test_Load_ObservesLoadTimeModification(t *testing.T) {
	f := newFixture(t)
	f.addFile(t, "episode.fountain", "draft one\n")

	// The file changes between the scan and the load; the recorded load
	// time must be the newer one observed at load time.
	abs := filepath.Join(f.root, "episode.fountain")
	future := time.Now().Add(2 * time.Hour)
	if err := os.Chtimes(abs, future, future); err != nil {
		t.Fatal(err)
	}

	if err := f.engine.Load(context.Background(), f.projectID, "episode.fountain"); err != nil {
		t.Fatal(err)
	}
	r := f.get(t, "episode.fountain")
	scanTime := time.Now().Add(-time.Minute)
	if !r.LastLoadedModTime.After(scanTime) {
		t.Errorf("expected load-time stat to win over scan time, got %v", r.LastLoadedModTime)
	}
}

func Test_Unload_ReturnsToNotLoaded(t *testing.T) {
	f := newFixture(t)
	f.addFile(t, "episode.fountain", "INT. STUDY - NIGHT\n")
	if err := f.engine.Load(context.Background(), f.projectID, "episode.fountain"); err != nil {
		t.Fatal(err)
	}

	if err := f.engine.Unload(context.Background(), f.projectID, "episode.fountain"); err != nil {
		t.Fatal(err)
	}
	r := f.get(t, "episode.fountain")
	if r.State != ref.StateNotLoaded {
		t.Errorf("expected not_loaded, got %s", r.State)
	}
	if !r.LastLoadedModTime.IsZero() || r.DerivedContent != nil {
		t.Error("unload must clear the load timestamp and cached content")
	}
}

func Test_ForceReset_RecoversAbandonedLoad(t *testing.T) {
	f := newFixture(t)
	f.addFile(t, "episode.fountain", "INT. STUDY - NIGHT\n")

	r := f.get(t, "episode.fountain")
	r.BeginLoad()
	if err := f.store.UpdateReference(context.Background(), r); err != nil {
		t.Fatal(err)
	}

	if err := f.engine.ForceReset(context.Background(), f.projectID, "episode.fountain"); err != nil {
		t.Fatal(err)
	}
	if got := f.get(t, "episode.fountain"); got.State != ref.StateNotLoaded {
		t.Errorf("expected not_loaded after force reset, got %s", got.State)
	}
}

func Test_Delete_RemovesReferenceExplicitly(t *testing.T) {
	f := newFixture(t)
	f.addFile(t, "episode.fountain", "INT. STUDY - NIGHT\n")

	if err := f.engine.Delete(context.Background(), f.projectID, "episode.fountain"); err != nil {
		t.Fatal(err)
	}
	r, err := f.store.GetReference(context.Background(), f.projectID, "episode.fountain")
	if err != nil {
		t.Fatal(err)
	}
	if r != nil {
		t.Error("expected reference deleted")
	}
}
