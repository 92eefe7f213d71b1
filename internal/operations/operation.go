// Package operations contains the execution graph of a build attempt: the
// Operation nodes, the three runner variants bound to them, and the
// ExecutionManager that drives them to completion.
package operations

import (
	"fmt"
	"sort"
	"sync/atomic"
	"time"
)

// Operation is a node of the execution graph: one runner plus the
// operations that must settle before it may start.
type Operation struct {
	// Name is the composite key the graph builder deduplicates on.
	Name string
	// GroupName is used for reporting only.
	GroupName string
	Runner    Runner

	dependencies map[*Operation]struct{}
	frozen       atomic.Bool
	status       atomic.Int32

	startedAt  atomic.Int64
	finishedAt atomic.Int64
}

// New creates an operation with no dependencies.
func New(name, groupName string, runner Runner) *Operation {
	return &Operation{
		Name:         name,
		GroupName:    groupName,
		Runner:       runner,
		dependencies: make(map[*Operation]struct{}),
	}
}

// AddDependency records that o may not start before dep is terminal. It
// panics once the operation has been handed to an ExecutionManager.
func (o *Operation) AddDependency(dep *Operation) {
	if o.frozen.Load() {
		panic(fmt.Sprintf("operation '%s' is frozen: dependencies cannot change during execution", o.Name))
	}
	o.dependencies[dep] = struct{}{}
}

// Dependencies returns the predecessors of o sorted by name.
func (o *Operation) Dependencies() []*Operation {
	deps := make([]*Operation, 0, len(o.dependencies))
	for dep := range o.dependencies {
		deps = append(deps, dep)
	}
	sort.Slice(deps, func(i, j int) bool { return deps[i].Name < deps[j].Name })
	return deps
}

// DependsOn reports whether dep is a direct predecessor of o.
func (o *Operation) DependsOn(dep *Operation) bool {
	_, ok := o.dependencies[dep]
	return ok
}

// Status returns the current status. It is safe to call while the
// operation executes.
func (o *Operation) Status() Status {
	return Status(o.status.Load())
}

// Duration returns how long the runner took, or zero if it never ran.
func (o *Operation) Duration() time.Duration {
	start, end := o.startedAt.Load(), o.finishedAt.Load()
	if start == 0 || end == 0 {
		return 0
	}
	return time.Duration(end - start)
}

func (o *Operation) setStatus(s Status) {
	o.status.Store(int32(s))
}

func (o *Operation) freeze() {
	o.frozen.Store(true)
}
