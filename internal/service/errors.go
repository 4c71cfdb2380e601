package service

import (
	"errors"
	"fmt"
)

// ErrValidation is matched by every ValidationError
var ErrValidation = errors.New("validation failed")

// ValidationError reports a missing or malformed input. Nothing was read or written.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

func (e *ValidationError) Is(target error) bool {
	return target == ErrValidation
}

// DataAccessError reports a failed read of telemetry or accident data
type DataAccessError struct {
	Op  string
	Err error
}

func (e *DataAccessError) Error() string {
	return fmt.Sprintf("data access failed (%s): %v", e.Op, e.Err)
}

func (e *DataAccessError) Unwrap() error {
	return e.Err
}

// PersistenceError reports a failed prediction write after scoring succeeded
type PersistenceError struct {
	Err error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("failed to persist prediction: %v", e.Err)
}

func (e *PersistenceError) Unwrap() error {
	return e.Err
}

// errorKind returns the metrics label for an assessment error
func errorKind(err error) string {
	var (
		dataErr    *DataAccessError
		persistErr *PersistenceError
	)
	switch {
	case errors.Is(err, ErrValidation):
		return "validation"
	case errors.As(err, &dataErr):
		return "data_access"
	case errors.As(err, &persistErr):
		return "persistence"
	default:
		return "unknown"
	}
}
