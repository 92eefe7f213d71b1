package operations

import (
	"context"

	"github.com/vk/phaserun/internal/cancellation"
	"github.com/vk/phaserun/internal/changes"
	"github.com/vk/phaserun/internal/logging"
)

// RunContext is handed to a runner for a single execution.
type RunContext struct {
	// Token is shared by every operation of the attempt.
	Token *cancellation.Token
	// ChangedFiles is nil outside watch mode.
	ChangedFiles *changes.Map
	// Sink is the operation's own event sink.
	Sink *logging.ScopedLogger
}

// Runner is the executable behavior bound to an Operation. The set of
// implementations is closed: LifecycleRunner, PhaseRunner and TaskRunner.
type Runner interface {
	// Name returns a human-readable name for logs and reports.
	Name() string
	// Execute runs the work and returns one of Success, Failure or
	// Cancelled. Problems are written to rc.Sink.
	Execute(ctx context.Context, rc *RunContext) Status

	sealed()
}

// Parameters are the invocation-wide options visible to every runner.
type Parameters struct {
	BuildFolder string
	Clean       bool
	CleanCache  bool
	Production  bool
	Verbose     bool
	Watch       bool
	Locales     []string
}
