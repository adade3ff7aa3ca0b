package main

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/averlund/fablecast/config"
	"github.com/averlund/fablecast/plan"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// recordingRunner captures commands instead of executing them, failing on
// request.
type recordingRunner struct {
	commands []string
	failOn   string
}

func (r *recordingRunner) Run(ctx context.Context, command string, dir string) error {
	r.commands = append(r.commands, command)
	if r.failOn != "" && strings.Contains(command, r.failOn) {
		return errors.New("synthesizer crashed")
	}
	return nil
}

func testExecutor(run *recordingRunner) *generationExecutor {
	return &generationExecutor{
		cfg: &config.Config{
			Generator: config.Generator{Command: "render {input} -o {output}"},
		},
		runner: run,
		logger: testLogger(),
	}
}

func testCommand(t *testing.T, name string) plan.Command {
	t.Helper()
	dir := t.TempDir()
	input := filepath.Join(dir, name)
	if err := os.WriteFile(input, []byte("INT. STUDY - NIGHT\n"), 0644); err != nil {
		t.Fatal(err)
	}
	return plan.Command{
		InputPath:  input,
		OutputPath: filepath.Join(dir, "audio", strings.TrimSuffix(name, ".fountain")+".m4a"),
		Format:     "m4a",
	}
}

func Test_executeOne_RunsGeneratorWithSubstitutedPaths(t *testing.T) {
	run := &recordingRunner{}
	executor := testExecutor(run)
	cmd := testCommand(t, "e01.fountain")

	result := executor.executeOne(context.Background(), cmd)
	if result.Err != nil {
		t.Fatal(result.Err)
	}
	if len(run.commands) != 1 {
		t.Fatalf("expected one command, got %v", run.commands)
	}
	if !strings.Contains(run.commands[0], cmd.InputPath) || !strings.Contains(run.commands[0], cmd.OutputPath) {
		t.Errorf("expected substituted paths in %q", run.commands[0])
	}
}

func Test_executeOne_HooksWrapGeneration(t *testing.T) {
	run := &recordingRunner{}
	executor := testExecutor(run)
	executor.preHook = "echo before"
	executor.postHook = "echo after"

	result := executor.executeOne(context.Background(), testCommand(t, "e01.fountain"))
	if result.Err != nil {
		t.Fatal(result.Err)
	}
	if len(run.commands) != 3 {
		t.Fatalf("expected pre, generate, post, got %v", run.commands)
	}
	if run.commands[0] != "echo before" || run.commands[2] != "echo after" {
		t.Errorf("hooks out of order: %v", run.commands)
	}
}

func Test_executeOne_SkipExisting(t *testing.T) {
	run := &recordingRunner{}
	executor := testExecutor(run)
	cmd := testCommand(t, "e01.fountain")
	cmd.SkipExisting = true

	if err := os.MkdirAll(filepath.Dir(cmd.OutputPath), 0755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(cmd.OutputPath, []byte("audio"), 0644); err != nil {
		t.Fatal(err)
	}

	result := executor.executeOne(context.Background(), cmd)
	if !result.Skipped {
		t.Error("expected existing output to be skipped")
	}
	if len(run.commands) != 0 {
		t.Errorf("skip must not invoke the generator, got %v", run.commands)
	}

	cmd.Regenerate = true
	result = executor.executeOne(context.Background(), cmd)
	if result.Skipped || result.Err != nil {
		t.Errorf("regenerate must override skip-existing, got %+v", result)
	}
}

func Test_executeOne_NoGeneratorConfigured_Fails(t *testing.T) {
	executor := testExecutor(&recordingRunner{})
	executor.cfg = &config.Config{}

	result := executor.executeOne(context.Background(), testCommand(t, "e01.fountain"))
	if result.Err == nil {
		t.Error("expected a configuration error without a generator command")
	}
}

func Test_executeBatch_ContinuesPastFailure(t *testing.T) {
	run := &recordingRunner{failOn: "e02"}
	executor := testExecutor(run)

	commands := []plan.Command{
		testCommand(t, "e01.fountain"),
		testCommand(t, "e02.fountain"),
		testCommand(t, "e03.fountain"),
	}

	outcome := executor.executeBatch(context.Background(), commands)
	if len(outcome.Results) != 3 {
		t.Fatalf("batch must continue past a failure, got %d results", len(outcome.Results))
	}
	succeeded, failed, _ := outcome.counts()
	if succeeded != 2 || failed != 1 {
		t.Errorf("expected 2 succeeded and 1 failed, got %d and %d", succeeded, failed)
	}
	if outcome.Results[1].Err == nil {
		t.Error("failure message must attach to its own command")
	}
}

func Test_executeBatch_FailFastStops(t *testing.T) {
	run := &recordingRunner{failOn: "e01"}
	executor := testExecutor(run)

	first := testCommand(t, "e01.fountain")
	first.FailFast = true
	second := testCommand(t, "e02.fountain")
	second.FailFast = true

	outcome := executor.executeBatch(context.Background(), []plan.Command{first, second})
	if len(outcome.Results) != 1 {
		t.Errorf("fail-fast must stop after the first failure, got %d results", len(outcome.Results))
	}
}

func Test_renderOutcome_ListsEveryCommand(t *testing.T) {
	outcome := batchOutcome{Results: []commandResult{
		{Command: plan.Command{InputPath: "/p/e01.fountain", OutputPath: "/p/audio/e01.m4a"}},
		{Command: plan.Command{InputPath: "/p/e02.fountain", OutputPath: "/p/audio/e02.m4a"}, Err: errors.New("boom")},
	}}

	rendered := renderOutcome(outcome)
	if !strings.Contains(rendered, "e01.fountain") || !strings.Contains(rendered, "boom") {
		t.Errorf("unexpected outcome table:\n%s", rendered)
	}
}
