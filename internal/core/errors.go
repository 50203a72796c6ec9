package core

import (
	"errors"
	"fmt"
	"strings"
)

// Error categories. Callers test with errors.Is.
var (
	ErrNotFound     = errors.New("not found")
	ErrInvalidState = errors.New("invalid state")
	ErrUnavailable  = errors.New("unavailable")
	ErrInternal     = errors.New("internal error")
)

// Specific causes, each wrapping one of the categories above.
var (
	ErrDatasetNotFound    = fmt.Errorf("dataset %w", ErrNotFound)
	ErrRobotTypeNotFound  = fmt.Errorf("robot type %w", ErrNotFound)
	ErrSkillNotFound      = fmt.Errorf("skill %w", ErrNotFound)
	ErrStorageUnavailable = fmt.Errorf("storage %w", ErrUnavailable)
	ErrBrokerUnavailable  = fmt.Errorf("broker %w", ErrUnavailable)
	ErrRepositoryRequired = errors.New("dataset repository is required")
	ErrReferencesRequired = errors.New("reference checker is required")
	errMissingManifest    = errors.New("missing required manifest")
)

// ValidationFailedError carries every collected problem, not just the first.
type ValidationFailedError struct {
	Errors []string
}

func (e *ValidationFailedError) Error() string {
	switch len(e.Errors) {
	case 0:
		return "validation failed"
	case 1:
		return "validation failed: " + e.Errors[0]
	}
	return fmt.Sprintf("validation failed with %d errors: %s", len(e.Errors), strings.Join(e.Errors, "; "))
}

// FieldError describes one missing or invalid manifest field.
type FieldError struct {
	Field   string
	Message string
}

func (e FieldError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// FieldErrors is the failing side of manifest decoding: every field problem
// found in one pass.
type FieldErrors []FieldError

func (fe FieldErrors) Error() string {
	return "invalid manifest fields: " + strings.Join(fe.Messages(), "; ")
}

// Messages returns one string per field error.
func (fe FieldErrors) Messages() []string {
	msgs := make([]string, len(fe))
	for i, e := range fe {
		msgs[i] = e.Error()
	}
	return msgs
}

func invalidState(id string, have DatasetStatus, op string) error {
	return fmt.Errorf("%s dataset %s in status %s: %w", op, id, have, ErrInvalidState)
}

func notFound(id string) error {
	return fmt.Errorf("%w: %s", ErrDatasetNotFound, id)
}
