package app

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/vk/phaserun/internal/config"
	"github.com/vk/phaserun/internal/ctxlog"
	"github.com/vk/phaserun/internal/hcl"
	"github.com/vk/phaserun/internal/logging"
	"github.com/vk/phaserun/internal/metrics"
	"github.com/vk/phaserun/internal/model"
	"github.com/vk/phaserun/internal/notify"
	"github.com/vk/phaserun/internal/operations"
	"github.com/vk/phaserun/internal/registry"
	"github.com/vk/phaserun/internal/yamlconfig"
)

// App encapsulates the application's dependencies, configuration, and lifecycle.
type App struct {
	outW      io.Writer
	logger    *slog.Logger
	config    *Config
	registry  *registry.Registry
	project   *model.Project
	selection *model.Selection
	loggers   *logging.Manager
	status    *buildStatus

	mu       sync.Mutex
	notifier notify.Notifier
	metrics  metrics.Collector
}

// NewApp is the constructor for the main application. It loads and resolves
// the project configuration, registers the given modules (the built-in ones
// when none are given) and validates that every task can run.
func NewApp(outW io.Writer, cfg *Config, modules ...registry.Module) (*App, error) {
	logger := logging.New(outW, logging.Options{Level: cfg.LogLevel, Format: cfg.LogFormat, Verbose: cfg.Verbose})
	ctx := ctxlog.WithLogger(context.Background(), logger)

	if _, err := os.Stat(cfg.ConfigPath); err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}
	cfgModel, err := loaderFor(cfg.ConfigPath).Load(ctx, cfg.ConfigPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}
	project, err := model.Resolve(cfgModel)
	if err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	selection, err := project.Select(cfg.To, cfg.Only)
	if err != nil {
		return nil, err
	}
	logger.Debug("Configuration resolved.", "phases", len(project.Phases), "selected", len(selection.Phases))

	a := &App{
		outW:      outW,
		logger:    logger,
		config:    cfg,
		registry:  registry.New(),
		project:   project,
		selection: selection,
		loggers:   logging.NewManager(logger),
		status:    &buildStatus{},
		notifier:  notify.Noop{},
		metrics:   metrics.Noop{},
	}

	if len(modules) == 0 {
		modules = coreModules
	}
	for _, mod := range modules {
		mod.Register(a.registry)
	}
	a.registry.RegisterLifecycleHook(operations.LifecycleStart, a.onStart)
	a.registry.RegisterLifecycleHook(operations.LifecycleFinish, a.onFinish)
	logger.Debug("All Go modules registered.", "count", len(modules))

	if err := a.registry.ValidateProject(ctx, project); err != nil {
		return nil, err
	}
	return a, nil
}

// Registry returns the application's registry. This is primarily for testing.
func (a *App) Registry() *registry.Registry {
	return a.registry
}

// loaderFor picks the configuration format from the file extension.
// Directories are searched for HCL files.
func loaderFor(path string) config.Loader {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return yamlconfig.NewLoader()
	default:
		return hcl.NewLoader()
	}
}

func (a *App) params() operations.Parameters {
	return operations.Parameters{
		BuildFolder: a.config.BuildFolder,
		Clean:       a.config.Clean,
		CleanCache:  a.config.CleanCache,
		Production:  a.config.Production,
		Verbose:     a.config.Verbose,
		Watch:       a.config.Watch,
		Locales:     a.config.Locales,
	}
}

func (a *App) currentNotifier() notify.Notifier {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.notifier
}

// onStart prepares the tool folder and announces the attempt.
func (a *App) onStart(ctx context.Context, rc *operations.RunContext) error {
	dir := filepath.Join(a.config.BuildFolder, model.ToolFolderName)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("creating %s: %w", dir, err)
	}
	a.currentNotifier().Emit(ctx, notify.EventBuildStart, map[string]any{
		"attempt": a.status.snapshot().Attempts + 1,
		"watch":   a.config.Watch,
	})
	return nil
}

func (a *App) onFinish(ctx context.Context, rc *operations.RunContext) error {
	a.currentNotifier().Emit(ctx, notify.EventBuildFinish, map[string]any{
		"attempt":  a.status.snapshot().Attempts + 1,
		"warnings": len(a.loggers.Warnings()),
		"errors":   len(a.loggers.Errors()),
	})
	return nil
}
