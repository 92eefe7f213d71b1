package metrics

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Record is the aggregate of a single build attempt.
type Record struct {
	ID               string
	Action           string
	EncounteredError bool
	Duration         time.Duration
	StartedAt        time.Time
	// Parameters maps every flag name to its string value.
	Parameters map[string]string
}

// NewRecord returns a record with a fresh time-ordered ID.
func NewRecord(action string, startedAt time.Time, params map[string]string) *Record {
	return &Record{
		ID:         uuid.Must(uuid.NewV7()).String(),
		Action:     action,
		StartedAt:  startedAt,
		Parameters: params,
	}
}

// Collector receives attempt records.
type Collector interface {
	Record(ctx context.Context, rec *Record) error
	Close() error
}

// Noop discards every record.
type Noop struct{}

// Record implements Collector.
func (Noop) Record(context.Context, *Record) error { return nil }

// Close implements Collector.
func (Noop) Close() error { return nil }
