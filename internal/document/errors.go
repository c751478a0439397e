package document

import (
	"context"
	"errors"
	"fmt"
)

// ErrorKind is the user-facing failure taxonomy.
type ErrorKind string

const (
	ErrNone                    ErrorKind = ""
	ErrEncryptedPdf            ErrorKind = "EncryptedPdf"
	ErrCorruptedPdf            ErrorKind = "CorruptedPdf"
	ErrIncompatiblePdf         ErrorKind = "IncompatiblePdf"
	ErrExternalToolUnavailable ErrorKind = "ExternalToolUnavailable"
	ErrMergeIntegrity          ErrorKind = "MergeIntegrityError"
)

const printToPDFAdvice = "Open the file in a PDF viewer, use Print > Save as PDF to produce a clean copy, and upload that copy again."

// Remediation returns the human instructions shown for a failure kind.
func (k ErrorKind) Remediation(name string) string {
	switch k {
	case ErrEncryptedPdf:
		return fmt.Sprintf("%q is password protected and could not be opened. %s", name, printToPDFAdvice)
	case ErrCorruptedPdf:
		return fmt.Sprintf("%q is damaged beyond automatic repair. %s", name, printToPDFAdvice)
	case ErrIncompatiblePdf:
		return fmt.Sprintf("%q uses PDF features that could not be processed. %s", name, printToPDFAdvice)
	case ErrExternalToolUnavailable:
		return fmt.Sprintf("%q could not be processed because a conversion service is unavailable. Please try again later.", name)
	case ErrMergeIntegrity:
		return fmt.Sprintf("a page of %q could not be added to the bundle", name)
	default:
		return ""
	}
}

// EnvironmentProblem reports whether the kind is caused by the service
// environment rather than by the document.
func (k ErrorKind) EnvironmentProblem() bool { return k == ErrExternalToolUnavailable }

// ToolUnavailableError means an external collaborator could not be invoked.
type ToolUnavailableError struct {
	Tool string
	Err  error
}

func (e *ToolUnavailableError) Error() string {
	return fmt.Sprintf("external tool %s unavailable: %v", e.Tool, e.Err)
}

func (e *ToolUnavailableError) Unwrap() error { return e.Err }

// BatchError aborts a whole merge because one document is unrecoverable.
type BatchError struct {
	Kind     ErrorKind
	Document string
	Ordinal  int
	Message  string
}

func (e *BatchError) Error() string {
	return fmt.Sprintf("batch aborted by %q (%s): %s", e.Document, e.Kind, e.Message)
}

// IntegrityError records a recovered page that could not be composed into
// the merged bundle.
type IntegrityError struct {
	Document string
	Page     int
	Err      error
}

func (e *IntegrityError) Error() string {
	return fmt.Sprintf("merge integrity: %s page %d: %v", e.Document, e.Page, e.Err)
}

func (e *IntegrityError) Unwrap() error { return e.Err }

// IsToolUnavailable reports whether err is an environment failure of an
// external collaborator.
func IsToolUnavailable(err error) bool {
	var tu *ToolUnavailableError
	return errors.As(err, &tu)
}

// IsCancelled reports whether err comes from caller cancellation.
func IsCancelled(err error) bool {
	return errors.Is(err, context.Canceled)
}

// AsBatchError unwraps a *BatchError from err.
func AsBatchError(err error) (*BatchError, bool) {
	var be *BatchError
	if errors.As(err, &be) {
		return be, true
	}
	return nil, false
}
