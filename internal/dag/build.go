package dag

import (
	"context"
	"errors"
	"fmt"

	"github.com/vk/phaserun/internal/ctxlog"
	"github.com/vk/phaserun/internal/model"
	"github.com/vk/phaserun/internal/operations"
	"github.com/vk/phaserun/internal/registry"
)

var (
	// ErrCleanCacheWithoutClean rejects --clean-cache without --clean.
	ErrCleanCacheWithoutClean = errors.New(`the "--clean-cache" option can only be used in conjunction with "--clean"`)
	// ErrDuplicateKey is returned when two different units map to the same
	// operation key.
	ErrDuplicateKey = errors.New("duplicate operation key")
)

// SkippedPhasesWarning is logged once when a selected phase depends on a
// phase that is not selected.
const SkippedPhasesWarning = "The provided list of phases does not contain all phase dependencies. You may need to run the excluded phases manually."

// Options configures a graph build.
type Options struct {
	Selection *model.Selection
	Registry  *registry.Registry
	Params    operations.Parameters
}

type builder struct {
	opts    Options
	ops     map[string]*operations.Operation
	origins map[string]any
	order   []*operations.Operation
}

// Build creates the deduplicated operation set for the selected phases.
// Operations are returned in creation order.
func Build(ctx context.Context, opts Options) ([]*operations.Operation, error) {
	logger := ctxlog.FromContext(ctx)

	if opts.Params.CleanCache && !opts.Params.Clean {
		return nil, ErrCleanCacheWithoutClean
	}

	b := &builder{
		opts:    opts,
		ops:     make(map[string]*operations.Operation),
		origins: make(map[string]any),
	}

	start, err := b.lifecycle(operations.LifecycleStart)
	if err != nil {
		return nil, err
	}
	finish, err := b.lifecycle(operations.LifecycleFinish)
	if err != nil {
		return nil, err
	}

	warned := false
	warnOnce := func() {
		if !warned {
			warned = true
			logger.Warn(SkippedPhasesWarning)
		}
	}

	for _, phase := range opts.Selection.Phases {
		for _, dep := range phase.DependencyPhases {
			if !opts.Selection.Has(dep) {
				warnOnce()
				break
			}
		}

		phaseOp, err := b.phase(phase)
		if err != nil {
			return nil, err
		}
		phaseOp.AddDependency(start)
		finish.AddDependency(phaseOp)

		for _, task := range phase.Tasks {
			taskOp, err := b.task(task)
			if err != nil {
				return nil, err
			}
			taskOp.AddDependency(phaseOp)
			taskOp.AddDependency(start)
			finish.AddDependency(taskOp)

			for _, depTask := range task.DependencyTasks {
				if !opts.Selection.Has(depTask.Phase) {
					logger.Debug("Dependency task belongs to an unselected phase, not scheduling it.", "task", task.Key(), "dependency", depTask.Key())
					warnOnce()
					continue
				}
				depOp, err := b.task(depTask)
				if err != nil {
					return nil, err
				}
				taskOp.AddDependency(depOp)
			}

			for _, consumer := range phase.ConsumingPhases {
				if !opts.Selection.Has(consumer) {
					continue
				}
				consumerOp, err := b.phase(consumer)
				if err != nil {
					return nil, err
				}
				consumerOp.AddDependency(taskOp)
			}
		}
	}

	logger.Debug("Operation graph built.", "operations", len(b.order), "phases", len(opts.Selection.Phases))
	return b.order, nil
}

// getOrCreate returns the operation for key, creating it with newRunner on
// first use. origin identifies the unit behind the key; a second, different
// origin for the same key is an error.
func (b *builder) getOrCreate(key, group string, origin any, newRunner func() (operations.Runner, error)) (*operations.Operation, error) {
	if op, ok := b.ops[key]; ok {
		if b.origins[key] != origin {
			return nil, fmt.Errorf("%w: '%s'", ErrDuplicateKey, key)
		}
		return op, nil
	}
	runner, err := newRunner()
	if err != nil {
		return nil, err
	}
	op := operations.New(key, group, runner)
	b.ops[key] = op
	b.origins[key] = origin
	b.order = append(b.order, op)
	return op, nil
}

func (b *builder) lifecycle(stage operations.LifecycleStage) (*operations.Operation, error) {
	key := "lifecycle." + string(stage)
	return b.getOrCreate(key, "lifecycle", stage, func() (operations.Runner, error) {
		return &operations.LifecycleRunner{Stage: stage, Hooks: b.opts.Registry.Hooks(stage)}, nil
	})
}

func (b *builder) phase(phase *model.Phase) (*operations.Operation, error) {
	return b.getOrCreate(phase.Name, phase.Name, phase, func() (operations.Runner, error) {
		return &operations.PhaseRunner{Phase: phase, Params: b.opts.Params}, nil
	})
}

func (b *builder) task(task *model.Task) (*operations.Operation, error) {
	return b.getOrCreate(task.Key(), task.Phase.Name, task, func() (operations.Runner, error) {
		plugin, err := b.opts.Registry.Plugin(task.Plugin)
		if err != nil {
			return nil, fmt.Errorf("task '%s': %w", task.Key(), err)
		}
		return &operations.TaskRunner{Task: task, Plugin: plugin, Params: b.opts.Params}, nil
	})
}
