// Package config loads the optional project configuration from
// .arbor/config.yaml. Every field has a usable default so the file is never
// required.
package config

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// Redis configures the optional Redis-backed store and locker.
type Redis struct {
	Enabled  bool   `yaml:"enabled"`
	Addr     string `yaml:"addr"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
}

// Config is the project-level configuration.
type Config struct {
	// LogLevel is one of debug, info, warn, error.
	LogLevel string `yaml:"log_level"`

	// GitRepo is the working tree used for git dispatch mode. Defaults to
	// the project directory itself.
	GitRepo string `yaml:"git_repo"`

	// RedactPatterns are regular expressions masked in stored free text
	// (requirements, conclusions, notes).
	RedactPatterns []string `yaml:"redact_patterns"`

	Redis Redis `yaml:"redis"`
}

// Default returns the configuration used when no file exists.
func Default() Config {
	return Config{
		LogLevel: "info",
		Redis: Redis{
			Addr: "localhost:6379",
		},
	}
}

// Load reads <dir>/.arbor/config.yaml, falling back to defaults when the
// file is absent. A present but unparseable file is an error.
func Load(dir string) (Config, error) {
	cfg := Default()

	path := filepath.Join(dir, ".arbor", "config.yaml")
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return cfg, fmt.Errorf("failed to read config: %w", err)
	}

	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("failed to parse %s: %w", path, err)
	}
	return cfg, nil
}

// Level converts the configured log level to slog.Level.
func (c Config) Level() slog.Level {
	switch c.LogLevel {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
