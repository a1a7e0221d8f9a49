package camelshdf5

import (
	"errors"
	"fmt"
)

// Error kinds surfaced by the exporter. Empty columns are caught and
// skipped by the Serializer itself; the others fail the run's export.
var (
	// ErrEmptyData marks an event column with no values to write.
	ErrEmptyData = errors.New("empty data column")

	// ErrLengthMismatch marks a channel that grew past its declared length.
	ErrLengthMismatch = errors.New("declared dataset length exceeded")

	// ErrUnknownDocument marks a document name the exporter does not route.
	ErrUnknownDocument = errors.New("unknown document type")

	// ErrDocumentOrder marks a document arriving outside the
	// start/descriptor/event/stop lifecycle.
	ErrDocumentOrder = errors.New("document out of order")

	// ErrStreamExists marks a descriptor redeclaring an existing stream.
	ErrStreamExists = errors.New("stream already declared")

	// ErrTruncatedStream marks a document stream that ended while a run
	// was still open, before its stop document.
	ErrTruncatedStream = errors.New("stream ended before stop document")
)

// ExportError is a structured exporter error carrying the document or
// path context in which the underlying failure occurred.
type ExportError struct {
	Context string
	Cause   error
}

// Error implements the error interface.
func (e *ExportError) Error() string {
	return fmt.Sprintf("%s: %v", e.Context, e.Cause)
}

// Unwrap provides compatibility with errors.Is and errors.As.
func (e *ExportError) Unwrap() error {
	return e.Cause
}

// wrapErr creates a contextual error, passing nil through.
func wrapErr(context string, cause error) error {
	if cause == nil {
		return nil
	}
	return &ExportError{Context: context, Cause: cause}
}
