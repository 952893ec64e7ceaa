package catalog

import (
	"errors"
	"fmt"
	"strings"
)

var ErrNotFound = errors.New("product not found")

// ValidationError reports request fields that are missing or malformed.
type ValidationError struct {
	Fields []string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Reason, strings.Join(e.Fields, ", "))
}

// CorruptDataError means the persisted document exists but cannot be decoded.
type CorruptDataError struct {
	Source string
	Err    error
}

func (e *CorruptDataError) Error() string {
	return fmt.Sprintf("corrupt catalog document %s: %v", e.Source, e.Err)
}

func (e *CorruptDataError) Unwrap() error { return e.Err }

type StorageError struct {
	Op     string
	Source string
	Err    error
}

func (e *StorageError) Error() string {
	return fmt.Sprintf("catalog storage %s %s: %v", e.Op, e.Source, e.Err)
}

func (e *StorageError) Unwrap() error { return e.Err }
