package apperrors

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// Application exit codes define the standard exit statuses for the application.
// These codes are used to signal the outcome of the program execution to the OS.
const (
	ExitSuccess       = 0   // Indicates successful execution (including degraded runs).
	ExitErrorGeneric  = 1   // Indicates a generic error.
	ExitErrorTimeout  = 2   // Indicates the run exceeded its time limit.
	ExitErrorMismatch = 3   // Indicates workers of one run disagreed on the workload result.
	ExitErrorConfig   = 4   // Indicates a configuration or argument error.
	ExitErrorSpawn    = 5   // Indicates the OS refused to create a worker.
	ExitErrorCanceled = 130 // Indicates the operation was canceled (e.g., SIGINT).
)

// Sentinel error kinds. The typed errors below match them through errors.Is,
// so callers can branch on the kind without caring about the concrete type.
var (
	// ErrInvalidArgument marks a rejected worker count or option value.
	ErrInvalidArgument = errors.New("invalid argument")
	// ErrSpawnFailure marks a failure to create a worker process or thread.
	ErrSpawnFailure = errors.New("spawn failure")
	// ErrAbnormalTermination marks a child process that did not exit normally.
	ErrAbnormalTermination = errors.New("abnormal worker termination")
	// ErrInconsistentResults marks a run whose workers computed different workload values.
	ErrInconsistentResults = errors.New("inconsistent workload results")
)

// ConfigError represents a user configuration error, such as an unreadable
// config file or conflicting options.
type ConfigError struct {
	// Message explains the specific configuration error.
	Message string
}

// Error returns the error message for a ConfigError.
func (e ConfigError) Error() string { return e.Message }

// NewConfigError creates a new ConfigError with a formatted message.
func NewConfigError(format string, a ...any) error {
	return ConfigError{Message: fmt.Sprintf(format, a...)}
}

// ValidationError represents an input validation failure. It identifies which
// field failed validation and provides a human-readable explanation.
type ValidationError struct {
	// Field is the name of the field that failed validation.
	Field string
	// Message explains the validation failure.
	Message string
}

// Error returns a formatted message describing the validation failure.
// Without a Field the message stands alone.
func (e ValidationError) Error() string {
	if e.Field == "" {
		return e.Message
	}
	return fmt.Sprintf("validation error for %q: %s", e.Field, e.Message)
}

// Is reports whether target is ErrInvalidArgument.
func (e ValidationError) Is(target error) bool { return target == ErrInvalidArgument }

// SpawnError reports that the OS refused to create worker Index. The run that
// produced it was aborted and returned no partial result.
type SpawnError struct {
	// Model is the execution model ("process" or "thread").
	Model string
	// Index is the index of the worker that could not be created.
	Index int
	// Cause is the underlying OS error.
	Cause error
}

// Error returns a formatted message describing the spawn failure.
func (e SpawnError) Error() string {
	return fmt.Sprintf("failed to spawn %s worker %d: %v", e.Model, e.Index, e.Cause)
}

// Unwrap returns the underlying OS error.
func (e SpawnError) Unwrap() error { return e.Cause }

// Is reports whether target is ErrSpawnFailure.
func (e SpawnError) Is(target error) bool { return target == ErrSpawnFailure }

// AbnormalTerminationError describes a child process that ended through a
// signal rather than a normal exit. It never aborts a run; it is attached to
// the affected work item.
type AbnormalTerminationError struct {
	Pid    int
	Signal string
}

// Error returns a formatted message describing the termination.
func (e AbnormalTerminationError) Error() string {
	return fmt.Sprintf("worker pid %d terminated abnormally (%s)", e.Pid, e.Signal)
}

// Is reports whether target is ErrAbnormalTermination.
func (e AbnormalTerminationError) Is(target error) bool { return target == ErrAbnormalTermination }

// TimeoutError represents a run that exceeded its wait limit. It captures the
// operation name and the duration limit that was exceeded.
type TimeoutError struct {
	// Operation is the name of the operation that timed out.
	Operation string
	// Limit is the duration after which the operation was considered timed out.
	Limit time.Duration
}

// Error returns a formatted message describing the timeout.
func (e TimeoutError) Error() string {
	return fmt.Sprintf("operation %q timed out after %s", e.Operation, e.Limit)
}

// WrapError wraps an error with additional context using fmt.Errorf and %w.
// It returns nil if err is nil.
func WrapError(err error, format string, args ...any) error {
	if err == nil {
		return nil
	}
	message := fmt.Sprintf(format, args...)
	return fmt.Errorf("%s: %w", message, err)
}

// IsContextError checks if the error is a context cancellation or deadline exceeded error.
func IsContextError(err error) bool {
	return errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)
}

// ExitCodeFor maps an error returned by a run to the process exit code.
func ExitCodeFor(err error) int {
	var timeoutErr TimeoutError
	switch {
	case err == nil:
		return ExitSuccess
	case errors.As(err, &timeoutErr), errors.Is(err, context.DeadlineExceeded):
		return ExitErrorTimeout
	case errors.Is(err, context.Canceled):
		return ExitErrorCanceled
	case errors.Is(err, ErrInvalidArgument):
		return ExitErrorConfig
	case errors.As(err, new(ConfigError)):
		return ExitErrorConfig
	case errors.Is(err, ErrSpawnFailure):
		return ExitErrorSpawn
	case errors.Is(err, ErrInconsistentResults):
		return ExitErrorMismatch
	default:
		return ExitErrorGeneric
	}
}
