package operations

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/vk/phaserun/internal/cancellation"
	"github.com/vk/phaserun/internal/changes"
	"github.com/vk/phaserun/internal/logging"
	"github.com/vk/phaserun/internal/model"
)

// TaskPlugin implements the behavior of a task kind.
type TaskPlugin interface {
	Run(ctx context.Context, session *TaskSession) error
}

// TaskSession is everything a plugin may use while running one task.
type TaskSession struct {
	Task   *model.Task
	Params Parameters
	Token  *cancellation.Token
	// ChangedFiles is nil outside watch mode.
	ChangedFiles *changes.Map
	Logger       *logging.ScopedLogger
}

// Option returns the task option key, or fallback when unset.
func (s *TaskSession) Option(key, fallback string) string {
	if v, ok := s.Task.Options[key]; ok && v != "" {
		return v
	}
	return fallback
}

// OptionList splits a comma-separated option into its trimmed, non-empty
// entries.
func (s *TaskSession) OptionList(key string) []string {
	var out []string
	for _, part := range strings.Split(s.Task.Options[key], ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

// Path resolves a build-folder relative path.
func (s *TaskSession) Path(rel string) string {
	if filepath.IsAbs(rel) {
		return filepath.Clean(rel)
	}
	return filepath.Join(s.Params.BuildFolder, rel)
}

// TaskRunner runs a task through its plugin.
type TaskRunner struct {
	Task   *model.Task
	Plugin TaskPlugin
	Params Parameters
}

// Name implements Runner.
func (r *TaskRunner) Name() string {
	return r.Task.Key()
}

// Execute implements Runner.
func (r *TaskRunner) Execute(ctx context.Context, rc *RunContext) Status {
	if rc.Token.IsCancelled() {
		return Cancelled
	}

	session := &TaskSession{
		Task:         r.Task,
		Params:       r.Params,
		Token:        rc.Token,
		ChangedFiles: rc.ChangedFiles,
		Logger:       rc.Sink,
	}

	if err := r.Plugin.Run(ctx, session); err != nil {
		if rc.Token.IsCancelled() && errors.Is(err, context.Canceled) {
			return Cancelled
		}
		rc.Sink.EmitError(fmt.Errorf("plugin '%s' failed: %w", r.Task.Plugin, err))
		return Failure
	}
	if rc.Sink.HasErrors() {
		return Failure
	}
	if rc.Token.IsCancelled() {
		return Cancelled
	}
	return Success
}

func (r *TaskRunner) sealed() {}
