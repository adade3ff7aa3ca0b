// Package config loads the application-level configuration file. Project
// generation settings live in the project manifest; this file covers the
// store location, logging, and the external generator command.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/pelletier/go-toml/v2"
)

// Config is the top-level application configuration.
type Config struct {
	StorePath string    `toml:"store_path"`
	LogLevel  string    `toml:"log_level"`
	LogFile   string    `toml:"log_file"`
	Generator Generator `toml:"generator"`
}

// Generator configures the external command the batch executor delegates
// audio generation to. The command is a shell template; the placeholders
// {input}, {output}, {format}, and {castlist} are substituted per file.
type Generator struct {
	Command string `toml:"command"`
}

// DefaultPath returns the default configuration file location.
func DefaultPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("resolve home directory: %w", err)
	}
	return filepath.Join(home, ".config", "fablecast", "config.toml"), nil
}

// Default returns the built-in configuration.
func Default() Config {
	cfg := Config{LogLevel: "info"}
	if home, err := os.UserHomeDir(); err == nil {
		cfg.StorePath = filepath.Join(home, ".local", "share", "fablecast", "fablecast.db")
	} else {
		cfg.StorePath = "fablecast.db"
	}
	return cfg
}

// Load reads the configuration at path, falling back to defaults when the
// file does not exist. An unreadable or malformed file is an error.
func Load(path string) (*Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return &cfg, nil
		}
		return nil, fmt.Errorf("read config %q: %w", path, err)
	}

	if err := toml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse config %q: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks the configuration for obvious misconfiguration.
func (c *Config) Validate() error {
	if strings.TrimSpace(c.StorePath) == "" {
		return fmt.Errorf("store_path must not be empty")
	}
	switch strings.ToLower(c.LogLevel) {
	case "", "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("unknown log_level %q", c.LogLevel)
	}
	return nil
}

// GeneratorCommand renders the generator template for one file.
func (c *Config) GeneratorCommand(input, output, format, castList string) string {
	command := c.Generator.Command
	replacer := strings.NewReplacer(
		"{input}", input,
		"{output}", output,
		"{format}", format,
		"{castlist}", castList,
	)
	return replacer.Replace(command)
}
