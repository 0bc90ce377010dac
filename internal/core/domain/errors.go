package domain

import (
	"errors"
	"fmt"
)

// TransportError means the engine could not be reached.
type TransportError struct {
	Op  string
	Err error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("failed to reach engine (%s): %v", e.Op, e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }

// EngineError means the engine answered with a non-success status or an unusable body.
type EngineError struct {
	Op         string
	StatusCode int
	Body       string
	Reason     string
}

func (e *EngineError) Error() string {
	if e.Reason != "" {
		return fmt.Sprintf("engine %s failed: %s", e.Op, e.Reason)
	}
	return fmt.Sprintf("engine %s failed: %d: %s", e.Op, e.StatusCode, e.Body)
}

// NotFoundError means the handle references a container the engine does not know.
type NotFoundError struct {
	ID string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("container %s not found", e.ID)
}

// ValidationError means the deploy input cannot be turned into a create payload.
type ValidationError struct {
	Field  string
	Value  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s %q: %s", e.Field, e.Value, e.Reason)
}

// ConflictError means the operation is not allowed in the instance's current state.
type ConflictError struct {
	State InstanceState
	Op    Operation
}

func (e *ConflictError) Error() string {
	return fmt.Sprintf("cannot %s an instance in state %s", e.Op, e.State)
}

func IsTransport(err error) bool {
	var target *TransportError
	return errors.As(err, &target)
}

func IsEngine(err error) bool {
	var target *EngineError
	return errors.As(err, &target)
}

func IsNotFound(err error) bool {
	var target *NotFoundError
	return errors.As(err, &target)
}

func IsValidation(err error) bool {
	var target *ValidationError
	return errors.As(err, &target)
}

func IsConflict(err error) bool {
	var target *ConflictError
	return errors.As(err, &target)
}
