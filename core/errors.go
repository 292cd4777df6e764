package core

import (
	"context"
	"errors"
	"fmt"
)

// ErrorKind is the closed set of failure categories that may leave the
// pipeline core. Every provider or stage error is mapped into exactly one
// kind before it reaches a caller.
type ErrorKind string

const (
	TranscriptionError  ErrorKind = "transcription_error"
	GenerationError     ErrorKind = "generation_error"
	SynthesisError      ErrorKind = "synthesis_error"
	UpstreamUnavailable ErrorKind = "upstream_unavailable"
	ValidationError     ErrorKind = "validation_error"
	ConfigurationError  ErrorKind = "configuration_error"
	InternalError       ErrorKind = "internal_error"
)

// PipelineError is the typed error every adapter wraps its provider failures
// into. No raw transport error crosses into the orchestrator without one.
type PipelineError struct {
	Kind    ErrorKind
	Message string
	Err     error
}

func (e *PipelineError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *PipelineError) Unwrap() error {
	return e.Err
}

// NewError creates a PipelineError without an underlying cause.
func NewError(kind ErrorKind, message string) *PipelineError {
	return &PipelineError{Kind: kind, Message: message}
}

// WrapError wraps an underlying provider error into a classified PipelineError.
// Context cancellation and deadline errors are reclassified as
// UpstreamUnavailable regardless of the kind the caller suggests, since a
// timed-out provider call and an unreachable provider feed the same fallback
// path.
func WrapError(kind ErrorKind, message string, err error) *PipelineError {
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		kind = UpstreamUnavailable
	}
	return &PipelineError{Kind: kind, Message: message, Err: err}
}

// KindOf extracts the ErrorKind from err, walking the wrap chain.
// Unclassified errors report InternalError; bare context errors report
// UpstreamUnavailable.
func KindOf(err error) ErrorKind {
	if err == nil {
		return ""
	}
	var perr *PipelineError
	if errors.As(err, &perr) {
		return perr.Kind
	}
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return UpstreamUnavailable
	}
	return InternalError
}
