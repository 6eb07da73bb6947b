package workflow

import (
	"errors"
	"fmt"
)

// The engine reports failures as values. Each kind below corresponds to one
// row of the error taxonomy and supports errors.As across wrapping.

// ValidationError reports a malformed definition, unknown reference or cycle
type ValidationError struct {
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation error: %s", e.Reason)
}

// NewValidationError creates a ValidationError with a formatted reason
func NewValidationError(format string, args ...interface{}) *ValidationError {
	return &ValidationError{Reason: fmt.Sprintf(format, args...)}
}

// NotFoundError reports an unknown workflow, template, graph or job
type NotFoundError struct {
	Kind string
	ID   string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s not found: %s", e.Kind, e.ID)
}

// ExecutionError reports a task failure that exhausted its retries
type ExecutionError struct {
	TaskID string
	Err    error
}

func (e *ExecutionError) Error() string {
	if e.TaskID != "" {
		return fmt.Sprintf("task %s failed: %v", e.TaskID, e.Err)
	}
	return fmt.Sprintf("execution failed: %v", e.Err)
}

func (e *ExecutionError) Unwrap() error { return e.Err }

// TimeoutError reports a deadline exceeded at job or graph level
type TimeoutError struct {
	Detail string
}

func (e *TimeoutError) Error() string {
	return fmt.Sprintf("timeout: %s", e.Detail)
}

// CancelledError reports an explicit cancellation. Partial carries the
// results completed before the cancellation was observed, for debugging.
type CancelledError struct {
	Partial map[string]interface{}
}

func (e *CancelledError) Error() string {
	return "execution cancelled"
}

// QueueFullError reports a submission refused by the admission limit
type QueueFullError struct {
	Limit int
}

func (e *QueueFullError) Error() string {
	return fmt.Sprintf("queue full: limit %d", e.Limit)
}

// ResumeError reports a missing checkpoint or a job not in PAUSED state
type ResumeError struct {
	Reason string
}

func (e *ResumeError) Error() string {
	return fmt.Sprintf("resume error: %s", e.Reason)
}

// IsValidation reports whether err is a ValidationError
func IsValidation(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}

// IsNotFound reports whether err is a NotFoundError
func IsNotFound(err error) bool {
	var nf *NotFoundError
	return errors.As(err, &nf)
}

// IsTimeout reports whether err is a TimeoutError
func IsTimeout(err error) bool {
	var te *TimeoutError
	return errors.As(err, &te)
}

// IsCancelled reports whether err is a CancelledError
func IsCancelled(err error) bool {
	var ce *CancelledError
	return errors.As(err, &ce)
}
