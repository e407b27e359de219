package stage

import (
	"context"
	"errors"
	"fmt"
)

// ErrorClass partitions stage failures by how the scheduler must react
type ErrorClass string

const (
	// ClassTransient failures are expected to resolve on retry: timeouts,
	// rate limits, flaky network.
	ClassTransient ErrorClass = "transient"
	// ClassTerminal failures are stage-specific and unrecoverable; dependents
	// get skipped.
	ClassTerminal ErrorClass = "terminal"
	// ClassInvalidInput failures mean the input itself is bad; never retried.
	ClassInvalidInput ErrorClass = "invalid_input"
)

// Error is a classified stage failure
type Error struct {
	Class ErrorClass
	Stage string
	Err   error
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s stage [%s]: %v", e.Stage, e.Class, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// Transient wraps err as a retryable failure of the named stage
func Transient(stage string, err error) error {
	return &Error{Class: ClassTransient, Stage: stage, Err: err}
}

// Terminal wraps err as an unrecoverable failure of the named stage
func Terminal(stage string, err error) error {
	return &Error{Class: ClassTerminal, Stage: stage, Err: err}
}

// Invalid wraps err as an invalid-input failure of the named stage
func Invalid(stage string, err error) error {
	return &Error{Class: ClassInvalidInput, Stage: stage, Err: err}
}

// ClassOf reports the class of err. Bare context deadline errors count as
// transient (a per-task timeout is retryable); anything else unclassified is
// terminal.
func ClassOf(err error) ErrorClass {
	var se *Error
	if errors.As(err, &se) {
		return se.Class
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return ClassTransient
	}
	return ClassTerminal
}

// IsTransient reports whether err is worth retrying unchanged
func IsTransient(err error) bool {
	return ClassOf(err) == ClassTransient
}

// TimingInconsistencyError reports a malformed marker sequence. It fails the
// subtitle stage only.
type TimingInconsistencyError struct {
	Reason string
}

func (e *TimingInconsistencyError) Error() string {
	return "timing inconsistency: " + e.Reason
}

// ValidationError is a bad-input-shape failure raised before any run starts
type ValidationError struct {
	Reason string
}

func (e *ValidationError) Error() string {
	return "validation: " + e.Reason
}

// CacheCorruptionError marks an unreadable cache entry; always treated as a
// miss, never fatal.
type CacheCorruptionError struct {
	Fingerprint string
	Err         error
}

func (e *CacheCorruptionError) Error() string {
	return fmt.Sprintf("corrupt cache entry %s: %v", e.Fingerprint, e.Err)
}

func (e *CacheCorruptionError) Unwrap() error { return e.Err }
