package app

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
)

// Config holds all the necessary configuration for an App instance to run.
type Config struct {
	// ConfigPath is a phaserun.hcl / phaserun.yaml file or a directory of
	// .hcl files.
	ConfigPath string
	// BuildFolder defaults to the directory holding ConfigPath.
	BuildFolder string

	LogFormat string
	LogLevel  string

	To          []string
	Only        []string
	Watch       bool
	Clean       bool
	CleanCache  bool
	Verbose     bool
	Production  bool
	Locales     []string
	Parallelism int

	StatusPort int
	// MetricsDB is the SQLite metrics file. Empty disables metrics.
	MetricsDB string
	NotifyURL string

	// Parameters is the flag snapshot recorded with every attempt.
	Parameters map[string]string
}

// NewConfig validates cfg and fills in derived defaults.
func NewConfig(cfg Config) (*Config, error) {
	if cfg.ConfigPath == "" {
		return nil, errors.New("ConfigPath is a required configuration field and cannot be empty")
	}
	if cfg.Watch && (cfg.Clean || cfg.CleanCache) {
		return nil, errors.New("clean options cannot be used in watch mode")
	}
	if cfg.Parallelism < 0 {
		return nil, fmt.Errorf("parallelism must not be negative, got %d", cfg.Parallelism)
	}
	if cfg.StatusPort < 0 || cfg.StatusPort > 65535 {
		return nil, fmt.Errorf("status port %d is out of range", cfg.StatusPort)
	}

	if cfg.BuildFolder == "" {
		cfg.BuildFolder = cfg.ConfigPath
		if info, err := os.Stat(cfg.ConfigPath); err != nil || !info.IsDir() {
			cfg.BuildFolder = filepath.Dir(cfg.ConfigPath)
		}
	}
	abs, err := filepath.Abs(cfg.BuildFolder)
	if err != nil {
		return nil, fmt.Errorf("resolving build folder: %w", err)
	}
	cfg.BuildFolder = abs

	if cfg.MetricsDB != "" && !filepath.IsAbs(cfg.MetricsDB) {
		cfg.MetricsDB = filepath.Join(cfg.BuildFolder, cfg.MetricsDB)
	}
	if cfg.Parameters == nil {
		cfg.Parameters = map[string]string{}
	}
	return &cfg, nil
}
