package main

import (
	"fmt"
	"log/slog"
	"path/filepath"

	"github.com/go-git/go-billy/v5"
	"github.com/go-git/go-billy/v5/osfs"

	"github.com/averlund/fablecast/config"
	"github.com/averlund/fablecast/handle"
	"github.com/averlund/fablecast/store"
)

// appContext lazily wires the shared dependencies of every command.
type appContext struct {
	configFlag   *string
	logLevelFlag *string

	cfg    *config.Config
	st     *store.Store
	logger *slog.Logger
}

func newAppContext(configFlag, logLevelFlag *string) *appContext {
	return &appContext{configFlag: configFlag, logLevelFlag: logLevelFlag}
}

func (a *appContext) ensureConfig() (*config.Config, error) {
	if a.cfg != nil {
		return a.cfg, nil
	}

	path := *a.configFlag
	if path == "" {
		defaultPath, err := config.DefaultPath()
		if err != nil {
			return nil, err
		}
		path = defaultPath
	}

	cfg, err := config.Load(path)
	if err != nil {
		return nil, err
	}
	a.cfg = cfg
	return cfg, nil
}

func (a *appContext) ensureLogger() (*slog.Logger, error) {
	if a.logger != nil {
		return a.logger, nil
	}
	cfg, err := a.ensureConfig()
	if err != nil {
		return nil, err
	}

	level := cfg.LogLevel
	if *a.logLevelFlag != "" {
		level = *a.logLevelFlag
	}
	a.logger = setupLogger(level, cfg.LogFile)
	return a.logger, nil
}

func (a *appContext) ensureStore() (*store.Store, error) {
	if a.st != nil {
		return a.st, nil
	}
	cfg, err := a.ensureConfig()
	if err != nil {
		return nil, err
	}
	st, err := store.Open(cfg.StorePath)
	if err != nil {
		return nil, fmt.Errorf("open store: %w", err)
	}
	a.st = st
	return st, nil
}

func (a *appContext) close() {
	if a.st != nil {
		_ = a.st.Close()
		a.st = nil
	}
}

func (a *appContext) locator() handle.Locator {
	// The store-backed registry keeps handle targets across restarts.
	if a.st == nil {
		return handle.NewPathLocator()
	}
	return handle.NewRegistryLocator(a.st)
}

func (a *appContext) filesystem() billy.Filesystem {
	return osfs.New("/")
}

func resolveRootArg(arg string) (string, error) {
	if arg == "" {
		arg = "."
	}
	abs, err := filepath.Abs(arg)
	if err != nil {
		return "", fmt.Errorf("resolve project root: %w", err)
	}
	return abs, nil
}
