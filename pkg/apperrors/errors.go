// Package apperrors defines sentinel errors shared across the engine.
package apperrors

import (
	"errors"
	"fmt"
	"strings"
)

var (
	ErrNotFound          = errors.New("not found")
	ErrForbidden         = errors.New("forbidden")
	ErrAuditInProgress   = errors.New("audit already in progress")
	ErrAuditComplete     = errors.New("audit already complete; reset required before re-running")
	ErrResetWhileRunning = errors.New("cannot reset audit while processing")
	ErrSourceUnavailable = errors.New("dataset file could not be opened")
	ErrStaleTask         = errors.New("dataset is no longer processing")
	ErrInvalidPayload    = errors.New("invalid task payload")
)

// PreconditionError reports audit preconditions that are not met, such as a
// missing dataset description or undescribed columns. Columns holds the names
// of schema columns without a description, if that is what failed.
type PreconditionError struct {
	Code    string
	Message string
	Columns []string
}

func (e *PreconditionError) Error() string {
	if len(e.Columns) > 0 {
		return fmt.Sprintf("%s: %s", e.Message, strings.Join(e.Columns, ", "))
	}
	return e.Message
}

// Precondition error codes surfaced to HTTP clients.
const (
	CodeMissingContext            = "MISSING_CONTEXT"
	CodeMissingColumnDescriptions = "MISSING_COLUMN_DESCRIPTIONS"
)

// NewMissingContextError reports an empty dataset description.
func NewMissingContextError() *PreconditionError {
	return &PreconditionError{
		Code:    CodeMissingContext,
		Message: "dataset description is required before running a quality audit",
	}
}

// NewMissingColumnDescriptionsError reports schema columns with no description.
func NewMissingColumnDescriptionsError(columns []string) *PreconditionError {
	return &PreconditionError{
		Code:    CodeMissingColumnDescriptions,
		Message: "all columns need descriptions before running a quality audit",
		Columns: columns,
	}
}
