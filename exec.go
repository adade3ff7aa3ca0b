package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/averlund/fablecast/config"
	"github.com/averlund/fablecast/plan"
	"github.com/averlund/fablecast/runner"
)

// commandResult records the outcome of one generation command.
type commandResult struct {
	Command plan.Command
	Skipped bool
	Err     error
}

// batchOutcome aggregates per-command results. Failure messages attach to
// their command; they are never thrown out of the batch loop.
type batchOutcome struct {
	Results []commandResult
}

func (o batchOutcome) counts() (succeeded, failed, skipped int) {
	for _, r := range o.Results {
		switch {
		case r.Skipped:
			skipped++
		case r.Err != nil:
			failed++
		default:
			succeeded++
		}
	}
	return
}

// generationExecutor runs generation commands through the configured
// external generator, with optional pre/post hooks around each file.
type generationExecutor struct {
	cfg      *config.Config
	runner   runner.CommandRunner
	logger   *slog.Logger
	preHook  string
	postHook string
}

// executeOne runs a single generation command. The skip-existing check is
// repeated here so the standalone generate verb honors it without a planner
// pass.
func (e *generationExecutor) executeOne(ctx context.Context, cmd plan.Command) commandResult {
	if cmd.SkipExisting && !cmd.Regenerate {
		if _, err := os.Stat(cmd.OutputPath); err == nil {
			e.logger.Debug("skipping existing output", "output", cmd.OutputPath)
			return commandResult{Command: cmd, Skipped: true}
		}
	}

	if e.cfg.Generator.Command == "" {
		return commandResult{Command: cmd, Err: fmt.Errorf("no generator command configured; set [generator] command in the config file")}
	}

	if err := os.MkdirAll(filepath.Dir(cmd.OutputPath), 0755); err != nil {
		return commandResult{Command: cmd, Err: fmt.Errorf("create output directory: %w", err)}
	}

	workDir := filepath.Dir(cmd.InputPath)
	if e.preHook != "" {
		if err := e.runner.Run(ctx, e.preHook, workDir); err != nil {
			return commandResult{Command: cmd, Err: fmt.Errorf("pre-generate hook: %w", err)}
		}
	}

	generate := e.cfg.GeneratorCommand(cmd.InputPath, cmd.OutputPath, cmd.Format, cmd.CastListPath)
	if err := e.runner.Run(ctx, generate, workDir); err != nil {
		return commandResult{Command: cmd, Err: err}
	}

	if e.postHook != "" {
		if err := e.runner.Run(ctx, e.postHook, workDir); err != nil {
			return commandResult{Command: cmd, Err: fmt.Errorf("post-generate hook: %w", err)}
		}
	}

	e.logger.Info("generated", "input", cmd.InputPath, "output", cmd.OutputPath)
	return commandResult{Command: cmd}
}

// executeBatch runs every command, continuing past individual failures
// unless fail-fast is requested.
func (e *generationExecutor) executeBatch(ctx context.Context, commands []plan.Command) batchOutcome {
	var outcome batchOutcome
	for _, cmd := range commands {
		if err := ctx.Err(); err != nil {
			outcome.Results = append(outcome.Results, commandResult{Command: cmd, Err: err})
			break
		}

		result := e.executeOne(ctx, cmd)
		outcome.Results = append(outcome.Results, result)
		if result.Err != nil && cmd.FailFast {
			e.logger.Warn("stopping batch after failure", "input", cmd.InputPath, "error", result.Err)
			break
		}
	}
	return outcome
}

func renderOutcome(outcome batchOutcome) string {
	rows := make([][]string, 0, len(outcome.Results))
	for _, r := range outcome.Results {
		status := "ok"
		detail := ""
		switch {
		case r.Skipped:
			status = "skipped"
			detail = "output exists"
		case r.Err != nil:
			status = "failed"
			detail = r.Err.Error()
		}
		rows = append(rows, []string{filepath.Base(r.Command.InputPath), status, r.Command.OutputPath, detail})
	}
	return renderTable([]string{"Input", "Status", "Output", "Detail"}, rows)
}
