package cli

import (
	"errors"
	"fmt"

	"github.com/vk/phaserun/internal/operations"
)

// Exit codes.
const (
	ExitSuccess = 0
	ExitFailure = 1 // build failed or runtime error
	ExitUsage   = 2 // invalid flags or arguments
)

// ExitError is a custom error type that includes a specific exit code.
type ExitError struct {
	Code    int
	Message string
	Err     error
}

// Error implements the error interface for ExitError.
func (e *ExitError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *ExitError) Unwrap() error {
	return e.Err
}

func usageError(message string, err error) *ExitError {
	return &ExitError{Code: ExitUsage, Message: message, Err: err}
}

// ExitCode maps an error returned by Execute to a process exit code.
func ExitCode(err error) int {
	if err == nil {
		return ExitSuccess
	}
	var exitErr *ExitError
	if errors.As(err, &exitErr) {
		return exitErr.Code
	}
	return ExitFailure
}

// IsReported reports whether err only signals a build failure whose details
// were already printed.
func IsReported(err error) bool {
	return errors.Is(err, operations.ErrAlreadyReported)
}
