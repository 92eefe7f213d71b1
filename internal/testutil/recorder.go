package testutil

import (
	"context"
	"sync"
	"time"

	"github.com/vk/phaserun/internal/operations"
)

// ExecutionRecord holds the start and end times for a single task's execution.
type ExecutionRecord struct {
	Start time.Time
	End   time.Time
}

// RecorderPlugin is a task plugin that records when each task ran. It
// optionally sleeps, honoring cancellation, to widen execution windows.
type RecorderPlugin struct {
	Sleep time.Duration

	mu      sync.Mutex
	records map[string]*ExecutionRecord
	order   []string
}

// NewRecorderPlugin creates a recorder that sleeps for d in every task.
func NewRecorderPlugin(d time.Duration) *RecorderPlugin {
	return &RecorderPlugin{Sleep: d, records: make(map[string]*ExecutionRecord)}
}

// Run implements operations.TaskPlugin.
func (p *RecorderPlugin) Run(ctx context.Context, s *operations.TaskSession) error {
	start := time.Now()
	if p.Sleep > 0 {
		select {
		case <-time.After(p.Sleep):
		case <-s.Token.Done():
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	end := time.Now()

	p.mu.Lock()
	defer p.mu.Unlock()
	p.records[s.Task.Key()] = &ExecutionRecord{Start: start, End: end}
	p.order = append(p.order, s.Task.Key())
	return nil
}

// Record returns the execution record of the task key.
func (p *RecorderPlugin) Record(key string) (*ExecutionRecord, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	r, ok := p.records[key]
	return r, ok
}

// Order returns task keys in completion order.
func (p *RecorderPlugin) Order() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]string(nil), p.order...)
}

// Reset forgets all records.
func (p *RecorderPlugin) Reset() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.records = make(map[string]*ExecutionRecord)
	p.order = nil
}
