package app

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/vk/phaserun/internal/cancellation"
	"github.com/vk/phaserun/internal/changes"
	"github.com/vk/phaserun/internal/ctxlog"
	"github.com/vk/phaserun/internal/dag"
	"github.com/vk/phaserun/internal/metrics"
	"github.com/vk/phaserun/internal/notify"
	"github.com/vk/phaserun/internal/operations"
)

const (
	actionRun      = "run"
	actionRunWatch = "run-watch"
)

// Run executes the selected phases once, or keeps rebuilding on changes in
// watch mode. A failed build returns operations.ErrAlreadyReported.
func (a *App) Run(ctx context.Context) error {
	ctx = ctxlog.WithLogger(ctx, a.logger)
	a.logger.Debug("App.Run method started.", "watch", a.config.Watch)

	a.openCollaborators(ctx)
	defer a.closeCollaborators()

	if a.config.Watch {
		return a.runWatch(ctx)
	}

	// Interrupting a single run cancels operations that have not started.
	source := cancellation.NewSource()
	stop := context.AfterFunc(ctx, source.Cancel)
	defer stop()
	return a.executeOnce(ctx, actionRun, source.Token(), nil)
}

// Plan writes the operation graph of the selection without executing it.
func (a *App) Plan(ctx context.Context, w io.Writer) error {
	ctx = ctxlog.WithLogger(ctx, a.logger)
	ops, err := dag.Build(ctx, dag.Options{Selection: a.selection, Registry: a.registry, Params: a.params()})
	if err != nil {
		return fmt.Errorf("failed to build operation graph: %w", err)
	}
	return operations.Describe(w, ops)
}

// openCollaborators connects the metrics sink and the notifier. Neither is
// required for a build, so failures only produce warnings.
func (a *App) openCollaborators(ctx context.Context) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.config.MetricsDB != "" {
		store, err := metrics.OpenSQLite(a.config.MetricsDB)
		if err != nil {
			a.logger.Warn("Metrics disabled.", "path", a.config.MetricsDB, "error", err)
		} else {
			a.metrics = store
		}
	}
	if a.config.NotifyURL != "" {
		n, err := notify.DialSocketIO(ctx, notify.SocketIOOptions{URL: a.config.NotifyURL})
		if err != nil {
			a.logger.Warn("Notifier disabled.", "url", a.config.NotifyURL, "error", err)
		} else {
			a.notifier = n
		}
	}
}

func (a *App) closeCollaborators() {
	a.mu.Lock()
	defer a.mu.Unlock()
	if err := a.metrics.Close(); err != nil {
		a.logger.Warn("Closing metrics store failed.", "error", err)
	}
	if err := a.notifier.Close(); err != nil {
		a.logger.Warn("Closing notifier failed.", "error", err)
	}
	a.metrics = metrics.Noop{}
	a.notifier = notify.Noop{}
}

// executeOnce runs one build attempt, prints the report and records
// metrics.
func (a *App) executeOnce(ctx context.Context, action string, token *cancellation.Token, changed *changes.Map) error {
	logger := ctxlog.FromContext(ctx)
	rec := metrics.NewRecord(action, time.Now(), a.config.Parameters)

	result, err := a.attempt(ctx, token, changed)
	if err != nil {
		rec.Duration = time.Since(rec.StartedAt)
		rec.EncounteredError = true
		a.recordMetrics(ctx, rec)
		return err
	}

	failed := result.Status == operations.Failure || len(a.loggers.Errors()) > 0
	a.report(result, failed)
	a.status.record(result)
	rec.Duration = result.Duration
	rec.EncounteredError = failed
	a.recordMetrics(ctx, rec)

	if failed {
		return operations.ErrAlreadyReported
	}
	logger.Debug("Build attempt settled.", "status", result.Status, "duration", result.Duration)
	return nil
}

// attempt builds a fresh operation graph and executes it.
func (a *App) attempt(ctx context.Context, token *cancellation.Token, changed *changes.Map) (*operations.Result, error) {
	ops, err := dag.Build(ctx, dag.Options{Selection: a.selection, Registry: a.registry, Params: a.params()})
	if err != nil {
		return nil, fmt.Errorf("failed to build operation graph: %w", err)
	}
	mgr, err := operations.NewExecutionManager(ops, operations.ManagerOptions{
		Parallelism:  a.config.Parallelism,
		Token:        token,
		ChangedFiles: changed,
		Loggers:      a.loggers,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to build operation graph: %w", err)
	}
	a.loggers.Reset()
	return mgr.Execute(ctx), nil
}

func (a *App) recordMetrics(ctx context.Context, rec *metrics.Record) {
	a.mu.Lock()
	collector := a.metrics
	a.mu.Unlock()
	if err := collector.Record(ctx, rec); err != nil {
		ctxlog.FromContext(ctx).Warn("Recording metrics failed.", "error", err)
	}
}

// report prints the end-of-attempt banner followed by every warning and
// error emitted during the attempt.
func (a *App) report(result *operations.Result, failed bool) {
	label := "Finished"
	switch {
	case failed:
		label = "Failed"
	case result.Status == operations.Cancelled:
		label = "Cancelled"
	}
	fmt.Fprintf(a.outW, "-------------------- %s (%.2fs) --------------------\n", label, result.Duration.Seconds())

	if warnings := a.loggers.Warnings(); len(warnings) > 0 {
		fmt.Fprintf(a.outW, "Encountered %d warning(s)\n", len(warnings))
		for _, w := range warnings {
			fmt.Fprintf(a.outW, "  %s\n", w)
		}
	}
	if errs := a.loggers.Errors(); len(errs) > 0 {
		fmt.Fprintf(a.outW, "Encountered %d error(s)\n", len(errs))
		for _, e := range errs {
			fmt.Fprintf(a.outW, "  %s\n", e)
		}
	}
}
