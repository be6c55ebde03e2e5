// Package persistence provides standardized error types for storage
// operations.
package persistence

import (
	"errors"
	"fmt"
)

var (
	// ErrDefinitionNotFound indicates no workflow definition exists for the id.
	ErrDefinitionNotFound = errors.New("workflow definition not found")

	// ErrInstanceNotFound indicates no workflow instance exists for the id.
	ErrInstanceNotFound = errors.New("workflow instance not found")

	// ErrDefinitionAlreadyExists indicates an id collision on create.
	ErrDefinitionAlreadyExists = errors.New("workflow definition already exists")

	// ErrInstanceTerminal indicates the instance already completed, failed, or
	// was cancelled.
	ErrInstanceTerminal = errors.New("workflow instance is already in a terminal state")
)

// StorageError wraps storage failures with the operation and target id.
type StorageError struct {
	Op  string
	ID  string
	Err error
}

func (e *StorageError) Error() string {
	return fmt.Sprintf("%s operation failed for %s: %v", e.Op, e.ID, e.Err)
}

func (e *StorageError) Unwrap() error {
	return e.Err
}

func (e *StorageError) Is(target error) bool {
	return errors.Is(e.Err, target)
}

// NewStorageError creates a storage error with context.
func NewStorageError(op, id string, err error) *StorageError {
	return &StorageError{Op: op, ID: id, Err: err}
}

// IsDefinitionNotFound checks for a missing definition.
func IsDefinitionNotFound(err error) bool {
	return errors.Is(err, ErrDefinitionNotFound)
}

// IsInstanceNotFound checks for a missing instance.
func IsInstanceNotFound(err error) bool {
	return errors.Is(err, ErrInstanceNotFound)
}
