package extraction

import (
	"errors"
	"fmt"
)

// Common extraction errors
var (
	// ErrInvalidPDF is returned when the document does not start with a PDF header.
	ErrInvalidPDF = errors.New("invalid or corrupted PDF document")

	// ErrUnreadablePDF is returned when the PDF parser gives up on the document.
	ErrUnreadablePDF = errors.New("PDF text layer could not be read")

	// ErrNoTextLayer is returned when a PDF has pages but no embedded text,
	// which usually means a scanned document.
	ErrNoTextLayer = errors.New("PDF has no embedded text layer")

	// ErrUnknownAmountPolicy is returned for an unsupported amount policy name.
	ErrUnknownAmountPolicy = errors.New("unknown amount policy")

	// ErrCompletionFailed is returned when the model-assisted pass produced no
	// usable answer.
	ErrCompletionFailed = errors.New("model-assisted extraction failed")
)

// ExtractionError wraps errors with the operation and document involved.
type ExtractionError struct {
	// Op is the operation that failed (e.g., "TextOf", "Complete").
	Op string

	// Err is the underlying error.
	Err error

	// Details provides additional context about the failure.
	Details string
}

// Error implements the error interface.
func (e *ExtractionError) Error() string {
	if e.Details != "" {
		return fmt.Sprintf("extraction: %s failed: %s: %v", e.Op, e.Details, e.Err)
	}
	return fmt.Sprintf("extraction: %s failed: %v", e.Op, e.Err)
}

// Unwrap returns the underlying error for error unwrapping.
func (e *ExtractionError) Unwrap() error {
	return e.Err
}

// Is reports whether target matches the wrapped error.
func (e *ExtractionError) Is(target error) bool {
	return errors.Is(e.Err, target)
}

// WrapExtractionError creates a new ExtractionError.
func WrapExtractionError(op string, err error, details string) error {
	if err == nil {
		return nil
	}
	return &ExtractionError{
		Op:      op,
		Err:     err,
		Details: details,
	}
}
