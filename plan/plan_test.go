package plan

import (
	"errors"
	"io"
	"log/slog"
	"testing"

	"github.com/go-git/go-billy/v5"
	"github.com/go-git/go-billy/v5/memfs"
	"github.com/go-git/go-billy/v5/util"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func writeFile(t *testing.T, fsys billy.Filesystem, path string) {
	t.Helper()
	if err := util.WriteFile(fsys, path, []byte("INT. STUDY - NIGHT\n"), 0644); err != nil {
		t.Fatal(err)
	}
}

func fountainConfig(patterns ...string) Config {
	return Config{
		Root:         "/project",
		EpisodesDir:  ".",
		OutputDir:    "audio",
		Patterns:     patterns,
		ExportFormat: "m4a",
	}
}

func Test_BuildPlan_NonRecursiveWildcard(t *testing.T) {
	fsys := memfs.New()
	writeFile(t, fsys, "/project/a.fountain")
	writeFile(t, fsys, "/project/b.fountain")
	writeFile(t, fsys, "/project/sub/c.fountain")

	planner := NewPlanner(fsys, testLogger())
	p, err := planner.BuildPlan(fountainConfig("*.fountain"))
	if err != nil {
		t.Fatal(err)
	}

	if len(p.Files) != 2 {
		t.Fatalf("expected 2 files, got %v", p.Files)
	}
	for _, f := range p.Files {
		if f == "/project/sub/c.fountain" {
			t.Error("wildcard matching must not recurse into subdirectories")
		}
	}
}

func Test_BuildPlan_NaturalOrdering(t *testing.T) {
	fsys := memfs.New()
	for _, name := range []string{"episode_10.fountain", "episode_2.fountain", "episode_1.fountain"} {
		writeFile(t, fsys, "/project/"+name)
	}

	planner := NewPlanner(fsys, testLogger())
	p, err := planner.BuildPlan(fountainConfig("*.fountain"))
	if err != nil {
		t.Fatal(err)
	}

	want := []string{
		"/project/episode_1.fountain",
		"/project/episode_2.fountain",
		"/project/episode_10.fountain",
	}
	for i, path := range want {
		if i >= len(p.Files) || p.Files[i] != path {
			t.Fatalf("expected natural order %v, got %v", want, p.Files)
		}
	}
}

func Test_BuildPlan_LiteralPattern_OnlyIfPresent(t *testing.T) {
	fsys := memfs.New()
	writeFile(t, fsys, "/project/pilot.fountain")

	planner := NewPlanner(fsys, testLogger())
	p, err := planner.BuildPlan(fountainConfig("pilot.fountain", "finale.fountain"))
	if err != nil {
		t.Fatal(err)
	}
	if len(p.Files) != 1 || p.Files[0] != "/project/pilot.fountain" {
		t.Errorf("expected only the present literal, got %v", p.Files)
	}
}

func Test_BuildPlan_DeduplicatesAcrossPatterns(t *testing.T) {
	fsys := memfs.New()
	writeFile(t, fsys, "/project/pilot.fountain")

	planner := NewPlanner(fsys, testLogger())
	p, err := planner.BuildPlan(fountainConfig("*.fountain", "pilot.fountain"))
	if err != nil {
		t.Fatal(err)
	}
	if len(p.Files) != 1 {
		t.Errorf("expected deduplicated file set, got %v", p.Files)
	}
}

func Test_BuildPlan_ResumeFromIndex(t *testing.T) {
	fsys := memfs.New()
	for _, name := range []string{"e1.fountain", "e2.fountain", "e3.fountain", "e4.fountain", "e5.fountain"} {
		writeFile(t, fsys, "/project/"+name)
	}

	cfg := fountainConfig("*.fountain")
	cfg.ResumeFromIndex = 3

	planner := NewPlanner(fsys, testLogger())
	p, err := planner.BuildPlan(cfg)
	if err != nil {
		t.Fatal(err)
	}

	want := []string{"/project/e3.fountain", "/project/e4.fountain", "/project/e5.fountain"}
	if len(p.Commands) != 3 {
		t.Fatalf("expected commands for files 3-5, got %d", len(p.Commands))
	}
	for i, cmd := range p.Commands {
		if cmd.InputPath != want[i] {
			t.Errorf("command %d: expected %s, got %s", i, want[i], cmd.InputPath)
		}
	}
}

func Test_BuildPlan_ResumeBeyondEnd_YieldsEmptyPlan(t *testing.T) {
	fsys := memfs.New()
	writeFile(t, fsys, "/project/e1.fountain")

	cfg := fountainConfig("*.fountain")
	cfg.ResumeFromIndex = 9

	planner := NewPlanner(fsys, testLogger())
	p, err := planner.BuildPlan(cfg)
	if err != nil {
		t.Fatal(err)
	}
	if len(p.Commands) != 0 {
		t.Errorf("expected empty plan, got %d commands", len(p.Commands))
	}
}

func Test_BuildPlan_SkipExisting_AndRegenerateOverride(t *testing.T) {
	fsys := memfs.New()
	writeFile(t, fsys, "/project/e1.fountain")
	writeFile(t, fsys, "/project/e2.fountain")
	writeFile(t, fsys, "/project/audio/e2.m4a") // e2 already generated

	cfg := fountainConfig("*.fountain")
	cfg.SkipExisting = true

	planner := NewPlanner(fsys, testLogger())
	p, err := planner.BuildPlan(cfg)
	if err != nil {
		t.Fatal(err)
	}
	if len(p.Commands) != 1 || p.Commands[0].InputPath != "/project/e1.fountain" {
		t.Errorf("expected e2 skipped, got %+v", p.Commands)
	}

	cfg.Regenerate = true
	p, err = planner.BuildPlan(cfg)
	if err != nil {
		t.Fatal(err)
	}
	if len(p.Commands) != 2 {
		t.Errorf("regenerate must override skip-existing, got %d commands", len(p.Commands))
	}
}

func Test_BuildPlan_DerivesOutputPaths(t *testing.T) {
	fsys := memfs.New()
	writeFile(t, fsys, "/project/e1.fountain")

	planner := NewPlanner(fsys, testLogger())
	p, err := planner.BuildPlan(fountainConfig("*.fountain"))
	if err != nil {
		t.Fatal(err)
	}
	if len(p.Commands) != 1 {
		t.Fatalf("expected 1 command, got %d", len(p.Commands))
	}
	if p.Commands[0].OutputPath != "/project/audio/e1.m4a" {
		t.Errorf("unexpected output path %s", p.Commands[0].OutputPath)
	}
}

func Test_BuildPlan_CastList_OnlyWhenConfiguredAndRequested(t *testing.T) {
	fsys := memfs.New()
	writeFile(t, fsys, "/project/e1.fountain")

	cfg := fountainConfig("*.fountain")
	cfg.CastList = "cast.yaml"

	planner := NewPlanner(fsys, testLogger())
	p, err := planner.BuildPlan(cfg)
	if err != nil {
		t.Fatal(err)
	}
	if p.Commands[0].CastListPath != "" {
		t.Error("cast list must be omitted unless requested")
	}

	cfg.WithCastList = true
	p, err = planner.BuildPlan(cfg)
	if err != nil {
		t.Fatal(err)
	}
	if p.Commands[0].CastListPath != "/project/cast.yaml" {
		t.Errorf("expected resolved cast list, got %q", p.Commands[0].CastListPath)
	}
}

func Test_BuildPlan_ValidationFailures(t *testing.T) {
	fsys := memfs.New()
	writeFile(t, fsys, "/project/e1.fountain")
	planner := NewPlanner(fsys, testLogger())

	missing := fountainConfig("*.fountain")
	missing.EpisodesDir = "absent"
	if _, err := planner.BuildPlan(missing); !errors.Is(err, ErrValidation) {
		t.Errorf("expected ErrValidation for absent episode dir, got %v", err)
	}

	noFormat := fountainConfig("*.fountain")
	noFormat.ExportFormat = ""
	if _, err := planner.BuildPlan(noFormat); !errors.Is(err, ErrValidation) {
		t.Errorf("expected ErrValidation for empty export format, got %v", err)
	}

	noPatterns := fountainConfig()
	if _, err := planner.BuildPlan(noPatterns); !errors.Is(err, ErrValidation) {
		t.Errorf("expected ErrValidation for missing patterns, got %v", err)
	}
}
