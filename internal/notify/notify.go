// Package notify publishes build lifecycle events to an external listener,
// such as an editor integration, over socket.io.
package notify

import "context"

// Event names emitted during a build.
const (
	EventBuildStart  = "build:start"
	EventBuildFinish = "build:finish"
	EventWatchIdle   = "watch:idle"
)

// Notifier publishes build events. Emit never fails a build; delivery
// problems are logged by the implementation.
type Notifier interface {
	Emit(ctx context.Context, event string, payload map[string]any)
	Close() error
}

// Noop discards every event.
type Noop struct{}

// Emit implements Notifier.
func (Noop) Emit(context.Context, string, map[string]any) {}

// Close implements Notifier.
func (Noop) Close() error { return nil }
