package operations

import (
	"context"
	"fmt"
)

// LifecycleStage identifies one of the two bracket operations.
type LifecycleStage string

const (
	LifecycleStart  LifecycleStage = "start"
	LifecycleFinish LifecycleStage = "finish"
)

// LifecycleHook is invoked by the start or finish bracket operation.
type LifecycleHook func(ctx context.Context, rc *RunContext) error

// LifecycleRunner runs the hooks registered for the start or the end of a
// build attempt.
type LifecycleRunner struct {
	Stage LifecycleStage
	Hooks []LifecycleHook
}

// Name implements Runner.
func (r *LifecycleRunner) Name() string {
	return "lifecycle." + string(r.Stage)
}

// Execute implements Runner.
func (r *LifecycleRunner) Execute(ctx context.Context, rc *RunContext) Status {
	for i, hook := range r.Hooks {
		if rc.Token.IsCancelled() {
			return Cancelled
		}
		if err := hook(ctx, rc); err != nil {
			rc.Sink.EmitError(fmt.Errorf("%s hook #%d failed: %w", r.Stage, i+1, err))
			return Failure
		}
	}
	return Success
}

func (r *LifecycleRunner) sealed() {}
