package apperrors

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestPreconditionError_Message(t *testing.T) {
	err := NewMissingContextError()
	assert.Equal(t, CodeMissingContext, err.Code)
	assert.Equal(t, "dataset description is required before running a quality audit", err.Error())
}

func TestPreconditionError_ColumnsInMessage(t *testing.T) {
	err := NewMissingColumnDescriptionsError([]string{"amount", "region"})
	assert.Equal(t, CodeMissingColumnDescriptions, err.Code)
	assert.Contains(t, err.Error(), "amount, region")
}

func TestPreconditionError_As(t *testing.T) {
	wrapped := fmt.Errorf("initiate audit: %w", NewMissingColumnDescriptionsError([]string{"amount"}))

	var precondition *PreconditionError
	assert.True(t, errors.As(wrapped, &precondition))
	assert.Equal(t, []string{"amount"}, precondition.Columns)
}

func TestSentinelWrapping(t *testing.T) {
	err := fmt.Errorf("dataset %s: %w", "d1", ErrStaleTask)
	assert.ErrorIs(t, err, ErrStaleTask)
	assert.NotErrorIs(t, err, ErrInvalidPayload)
}
