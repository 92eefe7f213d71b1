package operations

import (
	"context"
	"fmt"
	"time"

	"github.com/vk/phaserun/internal/cancellation"
	"github.com/vk/phaserun/internal/changes"
	"github.com/vk/phaserun/internal/ctxlog"
	"github.com/vk/phaserun/internal/logging"
)

// ManagerOptions configures an ExecutionManager.
type ManagerOptions struct {
	// Parallelism bounds the number of concurrently executing operations.
	// Zero or less runs every runnable operation at once.
	Parallelism int
	// Token cancels not-yet-started operations. Defaults to a token that is
	// never cancelled.
	Token        *cancellation.Token
	ChangedFiles *changes.Map
	// Loggers provides the per-operation event sinks.
	Loggers *logging.Manager
}

// Result summarizes a finished execution.
type Result struct {
	Status   Status
	Duration time.Duration
	// Statuses maps operation names to their terminal status.
	Statuses map[string]Status
}

// Count returns how many operations ended with status s.
func (r *Result) Count(s Status) int {
	n := 0
	for _, status := range r.Statuses {
		if status == s {
			n++
		}
	}
	return n
}

// ExecutionManager drives a set of operations to a terminal status in
// dependency order with bounded parallelism.
type ExecutionManager struct {
	ops        []*Operation
	opts       ManagerOptions
	dependents map[*Operation][]*Operation
}

type completion struct {
	op     *Operation
	status Status
}

// NewExecutionManager validates the graph formed by ops and freezes it. A
// cycle or a dependency outside ops is returned as an error before anything
// runs.
func NewExecutionManager(ops []*Operation, opts ManagerOptions) (*ExecutionManager, error) {
	if err := validateGraph(ops); err != nil {
		return nil, err
	}
	if opts.Token == nil {
		opts.Token = cancellation.NewToken()
	}

	dependents := make(map[*Operation][]*Operation, len(ops))
	for _, op := range ops {
		op.freeze()
		for _, dep := range op.Dependencies() {
			dependents[dep] = append(dependents[dep], op)
		}
	}

	return &ExecutionManager{ops: ops, opts: opts, dependents: dependents}, nil
}

// Execute runs every operation to a terminal status and returns the
// aggregate result. Running operations are never interrupted; after the
// token is cancelled Execute waits for them to return on their own.
func (m *ExecutionManager) Execute(ctx context.Context) *Result {
	logger := ctxlog.FromContext(ctx)
	if m.opts.Loggers == nil {
		m.opts.Loggers = logging.NewManager(logger)
	}
	start := time.Now()

	remaining := make(map[*Operation]int, len(m.ops))
	var queue []*Operation
	for _, op := range m.ops {
		remaining[op] = len(op.dependencies)
		if remaining[op] == 0 {
			op.setStatus(Ready)
			queue = append(queue, op)
		} else {
			op.setStatus(Blocked)
		}
	}

	pending := len(m.ops)
	running := 0
	done := make(chan completion)
	cancelled := m.opts.Token.Done()

	settle := func(op *Operation, status Status) {
		op.setStatus(status)
		pending--
		if status == Failure {
			pending -= m.skipDependents(ctx, op)
		}
		for _, dependent := range m.dependents[op] {
			remaining[dependent]--
			if remaining[dependent] == 0 && dependent.Status() == Blocked {
				dependent.setStatus(Ready)
				queue = append(queue, dependent)
			}
		}
	}

	logger.Debug("Starting operation execution.", "operations", len(m.ops), "parallelism", m.opts.Parallelism)

	for pending > 0 {
		for len(queue) > 0 && (m.opts.Parallelism <= 0 || running < m.opts.Parallelism) {
			op := queue[0]
			queue = queue[1:]
			if m.opts.Token.IsCancelled() {
				logger.Debug("Operation cancelled before start.", "operation", op.Name)
				settle(op, Cancelled)
				continue
			}
			logger.Debug("Dispatching operation.", "operation", op.Name)
			op.setStatus(Executing)
			running++
			go func() {
				done <- completion{op: op, status: m.invoke(ctx, op)}
			}()
		}

		if running == 0 {
			if pending > 0 {
				// Only reachable if the graph changed after validation.
				logger.Error("Execution stalled with unsettled operations.", "pending", pending)
			}
			break
		}

		select {
		case c := <-done:
			running--
			logger.Debug("Operation settled.", "operation", c.op.Name, "status", c.status.String(), "duration", c.op.Duration())
			settle(c.op, c.status)
		case <-cancelled:
			// Re-enter the dispatch loop so queued operations are cancelled
			// without waiting for the next completion.
			cancelled = nil
			logger.Debug("Cancellation observed, no further operations will start.", "running", running)
		}
	}

	result := &Result{
		Duration: time.Since(start),
		Statuses: make(map[string]Status, len(m.ops)),
	}
	result.Status = Success
	for _, op := range m.ops {
		status := op.Status()
		result.Statuses[op.Name] = status
		switch {
		case status == Failure:
			result.Status = Failure
		case status == Cancelled && result.Status != Failure:
			result.Status = Cancelled
		}
	}

	logger.Debug("Operation execution finished.", "status", result.Status.String(), "duration", result.Duration)
	return result
}

// skipDependents marks every not yet terminal transitive dependent of op as
// Skipped and returns how many were marked.
func (m *ExecutionManager) skipDependents(ctx context.Context, op *Operation) int {
	logger := ctxlog.FromContext(ctx)
	skipped := 0
	for _, dependent := range m.dependents[op] {
		if dependent.Status().IsTerminal() {
			continue
		}
		logger.Warn("Skipping operation due to upstream failure.", "operation", dependent.Name, "dependency", op.Name)
		dependent.setStatus(Skipped)
		skipped++
		skipped += m.skipDependents(ctx, dependent)
	}
	return skipped
}

// invoke runs a single operation, converting panics and invalid statuses
// into Failure.
func (m *ExecutionManager) invoke(ctx context.Context, op *Operation) (status Status) {
	sink := m.opts.Loggers.Scoped(op.Name)
	rc := &RunContext{
		Token:        m.opts.Token,
		ChangedFiles: m.opts.ChangedFiles,
		Sink:         sink,
	}

	op.startedAt.Store(time.Now().UnixNano())
	defer func() {
		if r := recover(); r != nil {
			sink.EmitError(fmt.Errorf("runner panicked: %v", r))
			status = Failure
		}
		op.finishedAt.Store(time.Now().UnixNano())
	}()

	status = op.Runner.Execute(ctxlog.With(ctx, "operation", op.Name), rc)
	switch status {
	case Success, Failure, Cancelled:
	default:
		sink.EmitError(fmt.Errorf("runner returned invalid status %s", status))
		status = Failure
	}
	return status
}
