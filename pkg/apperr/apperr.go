// Package apperr defines the typed error wrapper surfaced across C1-C9
// (§7), extending the store package's typed-not-found idiom with a
// Kind taxonomy and an Unwrap chain.
package apperr

import (
	"errors"
	"fmt"

	"github.com/corewire/assistant-core/pkg/models"
)

// DomainError carries an ErrorKind alongside a human-readable message
// and an optional wrapped cause.
type DomainError struct {
	Kind    models.ErrorKind
	Message string
	Err     error
}

func New(kind models.ErrorKind, message string) *DomainError {
	return &DomainError{Kind: kind, Message: message}
}

func Wrap(kind models.ErrorKind, message string, err error) *DomainError {
	return &DomainError{Kind: kind, Message: message, Err: err}
}

func (e *DomainError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *DomainError) Unwrap() error { return e.Err }

// KindOf extracts the ErrorKind from err if it is (or wraps) a
// *DomainError, returning ok=false otherwise.
func KindOf(err error) (models.ErrorKind, bool) {
	var de *DomainError
	if errors.As(err, &de) {
		return de.Kind, true
	}
	return "", false
}
