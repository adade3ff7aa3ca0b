// Package runner defines the command-runner collaborator for pre/post
// generation hooks and external generators. The engine itself never spawns
// processes; only the exec implementation here does, and it is wired in by
// the CLI alone.
package runner

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"strings"
)

// CommandRunner executes a shell command in a working directory.
type CommandRunner interface {
	Run(ctx context.Context, command string, dir string) error
}

// ExecRunner runs commands through the system shell.
type ExecRunner struct {
	Logger *slog.Logger
}

// Run executes command via `sh -c`, streaming output to the process
// standard streams.
func (r *ExecRunner) Run(ctx context.Context, command string, dir string) error {
	command = strings.TrimSpace(command)
	if command == "" {
		return nil
	}

	r.Logger.Debug("running command", "command", command, "dir", dir)
	cmd := exec.CommandContext(ctx, "sh", "-c", command)
	cmd.Dir = dir
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr
	if err := cmd.Run(); err != nil {
		return fmt.Errorf("command %q: %w", command, err)
	}
	return nil
}

// NopRunner ignores every command. Useful when hooks are disabled and in
// tests.
type NopRunner struct{}

// Run does nothing.
func (NopRunner) Run(ctx context.Context, command string, dir string) error {
	return nil
}
