package domain

import "fmt"

// InvalidInputError represents a malformed filter, pagination request or
// reference. The caller's fault; presenters map it to a 4xx.
type InvalidInputError struct {
	Reason string
}

func (e InvalidInputError) Error() string {
	if e.Reason == "" {
		return "invalid input"
	}
	return fmt.Sprintf("invalid input: %s", e.Reason)
}

// Is enables errors.Is matching on InvalidInputError.
func (e InvalidInputError) Is(target error) bool {
	_, ok := target.(InvalidInputError)
	if ok {
		return true
	}
	_, ok = target.(*InvalidInputError)
	return ok
}

// NotFoundError represents a missing resource.
type NotFoundError struct {
	Resource string
}

func (e NotFoundError) Error() string {
	if e.Resource == "" {
		return "not found"
	}
	return fmt.Sprintf("%s not found", e.Resource)
}

// Is enables errors.Is matching on NotFoundError.
func (e NotFoundError) Is(target error) bool {
	_, ok := target.(NotFoundError)
	if ok {
		return true
	}
	_, ok = target.(*NotFoundError)
	return ok
}

// ConflictError represents an exhausted retry on a constraint race.
type ConflictError struct {
	Detail string
}

func (e ConflictError) Error() string {
	if e.Detail == "" {
		return "conflict"
	}
	return fmt.Sprintf("conflict: %s", e.Detail)
}

func (e ConflictError) Is(target error) bool {
	_, ok := target.(ConflictError)
	if ok {
		return true
	}
	_, ok = target.(*ConflictError)
	return ok
}

// UnavailableError wraps a store I/O failure.
type UnavailableError struct {
	Err error
}

func (e UnavailableError) Error() string {
	if e.Err == nil {
		return "store unavailable"
	}
	return fmt.Sprintf("store unavailable: %v", e.Err)
}

func (e UnavailableError) Unwrap() error { return e.Err }

func (e UnavailableError) Is(target error) bool {
	_, ok := target.(UnavailableError)
	if ok {
		return true
	}
	_, ok = target.(*UnavailableError)
	return ok
}

// Sentinels for errors.Is checks.
var (
	ErrInvalidInput = InvalidInputError{}
	ErrNotFound     = NotFoundError{}
	ErrConflict     = ConflictError{}
	ErrUnavailable  = UnavailableError{}
)
