package operations

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/vk/phaserun/internal/model"
)

// PhaseRunner marks the start of a phase. On clean runs it deletes the
// phase's declared outputs, and its cache folder when the cache is cleaned
// too, before any task of the phase starts.
type PhaseRunner struct {
	Phase  *model.Phase
	Params Parameters
}

// Name implements Runner.
func (r *PhaseRunner) Name() string {
	return r.Phase.Name
}

// Execute implements Runner.
func (r *PhaseRunner) Execute(ctx context.Context, rc *RunContext) Status {
	if !r.Params.Clean {
		return Success
	}

	targets := make([]string, 0, len(r.Phase.CleanFiles)+1)
	for _, rel := range r.Phase.CleanFiles {
		targets = append(targets, r.resolve(rel))
	}
	if r.Params.CleanCache {
		targets = append(targets, model.CacheFolder(r.Params.BuildFolder, r.Phase.Name))
	}

	for _, target := range targets {
		if rc.Token.IsCancelled() {
			return Cancelled
		}
		rc.Sink.Debug("Deleting phase output.", "path", target)
		if err := os.RemoveAll(target); err != nil {
			rc.Sink.EmitError(fmt.Errorf("failed to clean %q: %w", target, err))
			return Failure
		}
	}
	rc.Sink.Info("Phase outputs cleaned.", "count", len(targets))
	return Success
}

func (r *PhaseRunner) resolve(rel string) string {
	if filepath.IsAbs(rel) {
		return rel
	}
	return filepath.Join(r.Params.BuildFolder, rel)
}

func (r *PhaseRunner) sealed() {}
