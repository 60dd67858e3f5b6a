package interfaces

import (
	"errors"
	"fmt"
)

var (
	// Fatal document errors. Returned as-is, never retried.
	ErrUnsupportedFormat  = errors.New("unsupported document format")
	ErrUnreadableDocument = errors.New("document cannot be opened or parsed")
	ErrNoPages            = errors.New("document has no pages")

	ErrUnknownBackend     = errors.New("unknown backend")
	ErrBackendUnavailable = errors.New("backend unavailable")

	ErrRelationshipNotFound = errors.New("relationship not found")
	ErrInvalidRelationship  = errors.New("invalid relationship config")
	ErrInvalidTransition    = errors.New("invalid relationship state transition")

	ErrCacheMiss = errors.New("extraction cache miss")
)

// DocumentError reports a document-level failure.
// It unwraps to one of the fatal sentinels and to the underlying cause.
type DocumentError struct {
	Path  string
	Kind  error
	Cause error
}

func (e *DocumentError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %v: %v", e.Path, e.Kind, e.Cause)
	}
	return fmt.Sprintf("%s: %v", e.Path, e.Kind)
}

func (e *DocumentError) Unwrap() []error {
	if e.Cause != nil {
		return []error{e.Kind, e.Cause}
	}
	return []error{e.Kind}
}

// NewDocumentError builds a DocumentError of the given kind
func NewDocumentError(path string, kind, cause error) *DocumentError {
	return &DocumentError{Path: path, Kind: kind, Cause: cause}
}

// IsFatalDocumentError reports whether err is a fatal document error
func IsFatalDocumentError(err error) bool {
	return errors.Is(err, ErrUnsupportedFormat) ||
		errors.Is(err, ErrUnreadableDocument) ||
		errors.Is(err, ErrNoPages)
}
