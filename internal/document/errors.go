package document

import (
	"errors"
	"fmt"
)

// ErrorKind categorizes pipeline failures so callers can decide how to react
// without parsing error strings
type ErrorKind string

const (
	// KindUnsupportedInput marks a mime type the extractor does not handle.
	// Fatal for the request; retrying cannot help.
	KindUnsupportedInput ErrorKind = "unsupported_input"
	// KindProviderFailure marks a transient recognition or classification
	// provider error. The extractor falls back to its secondary provider;
	// the classifier fails the whole batch and leaves retries to the caller.
	KindProviderFailure ErrorKind = "provider_failure"
	// KindValidationFailure marks a malformed request, rejected before any
	// external call is made.
	KindValidationFailure ErrorKind = "validation_failure"
	// KindRenderFailure marks a per-field drawing problem. It is local and
	// non-fatal; the field is skipped and the document still produced.
	KindRenderFailure ErrorKind = "render_failure"
)

// Retryable reports whether the caller may reasonably retry after this kind
func (k ErrorKind) Retryable() bool {
	return k == KindProviderFailure
}

// PipelineError wraps a stage failure with its classification. Stage names
// the component that failed (extract, classify, resolve, render).
type PipelineError struct {
	Stage string
	Kind  ErrorKind
	Err   error
}

// Error implements the error interface
func (e *PipelineError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Stage, e.Kind, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Stage, e.Kind)
}

// Unwrap returns the underlying error
func (e *PipelineError) Unwrap() error {
	return e.Err
}

// NewError creates a PipelineError for the given stage and kind
func NewError(stage string, kind ErrorKind, err error) *PipelineError {
	return &PipelineError{Stage: stage, Kind: kind, Err: err}
}

// KindOf extracts the ErrorKind carried by err, or the empty kind when err
// was not produced by the pipeline
func KindOf(err error) ErrorKind {
	var pe *PipelineError
	if errors.As(err, &pe) {
		return pe.Kind
	}
	return ""
}

// Common sentinel errors shared across stages
var (
	ErrEmptyDocument       = errors.New("document bytes are empty")
	ErrUnsupportedMimeType = errors.New("unsupported mime type")
	ErrDocumentTooLarge    = errors.New("document exceeds maximum file size")
)
