package operations

// Status is the execution state of an Operation.
type Status int32

const (
	// Ready means the operation may be dispatched once its dependencies settle.
	Ready Status = iota
	// Blocked means at least one dependency has not reached a terminal status.
	Blocked
	// Executing means the runner is in flight.
	Executing
	// Success is terminal: the runner finished without errors.
	Success
	// Failure is terminal: the runner reported errors or panicked.
	Failure
	// Cancelled is terminal: the token was cancelled before or while running.
	Cancelled
	// Skipped is terminal: an upstream operation failed.
	Skipped
)

func (s Status) String() string {
	switch s {
	case Ready:
		return "Ready"
	case Blocked:
		return "Blocked"
	case Executing:
		return "Executing"
	case Success:
		return "Success"
	case Failure:
		return "Failure"
	case Cancelled:
		return "Cancelled"
	case Skipped:
		return "Skipped"
	default:
		return "Unknown"
	}
}

// IsTerminal reports whether s is a final status.
func (s Status) IsTerminal() bool {
	switch s {
	case Success, Failure, Cancelled, Skipped:
		return true
	}
	return false
}
