package operations

import (
	"errors"
	"fmt"
	"strings"
)

// ErrAlreadyReported signals an aggregate build failure whose details were
// already written by the failing runners. Callers must not print them again.
var ErrAlreadyReported = errors.New("build failed: errors were already reported")

// CycleError is returned when the dependency relation is not acyclic.
type CycleError struct {
	// Members lists the operations on the cycle, first member repeated last.
	Members []string
}

func (e *CycleError) Error() string {
	return fmt.Sprintf("cycle detected in operation graph: %s", strings.Join(e.Members, " -> "))
}
