package model

import (
	"errors"
	"fmt"
	"strings"
)

// ValidationError is a file-level ingestion failure: missing columns,
// size/row-count bounds, undecodable encoding, or the invalid-row rate
// threshold being exceeded. It is fatal to the current attempt and is
// surfaced verbatim to the user, never retried automatically.
type ValidationError struct {
	Reason         string
	MissingColumns []string
}

func (e *ValidationError) Error() string {
	if len(e.MissingColumns) > 0 {
		return fmt.Sprintf("%s: %s", e.Reason, strings.Join(e.MissingColumns, ", "))
	}
	return e.Reason
}

// NewValidationError creates a file-level validation failure.
func NewValidationError(format string, args ...any) *ValidationError {
	return &ValidationError{Reason: fmt.Sprintf(format, args...)}
}

// IsValidationError reports whether any error in the chain is a ValidationError.
func IsValidationError(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}

// ProcessingError is an unexpected failure during ingestion or assembly.
// It is retried via the report state machine up to the retry cap.
type ProcessingError struct {
	Stage string
	Err   error
}

func (e *ProcessingError) Error() string {
	return fmt.Sprintf("%s: %s", e.Stage, e.Err.Error())
}

func (e *ProcessingError) Unwrap() error { return e.Err }

// NewProcessingError wraps an error as a retryable processing failure.
func NewProcessingError(stage string, err error) *ProcessingError {
	return &ProcessingError{Stage: stage, Err: err}
}

// GenerationError is a renderer or PDF conversion failure. It carries the
// same retry semantics as ProcessingError.
type GenerationError struct {
	Stage string
	Err   error
}

func (e *GenerationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Stage, e.Err.Error())
}

func (e *GenerationError) Unwrap() error { return e.Err }

// NewGenerationError wraps a renderer failure.
func NewGenerationError(stage string, err error) *GenerationError {
	return &GenerationError{Stage: stage, Err: err}
}

// IsRetryable reports whether a pipeline failure should be re-enqueued.
// Validation failures are user errors and are never retried.
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}
	return !IsValidationError(err)
}
