package estate

import (
	"errors"
	"fmt"
)

// ErrNotFound is returned when a referenced record does not exist.
var ErrNotFound = errors.New("record not found")

// IsNotFound reports whether err is or wraps ErrNotFound.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}

// DomainError is a business-rule violation. It blocks the mutation and the
// surrounding transaction is rolled back.
type DomainError struct {
	Message string
}

func (e *DomainError) Error() string {
	return e.Message
}

func domainErrorf(format string, args ...any) error {
	return &DomainError{Message: fmt.Sprintf(format, args...)}
}

// IsDomainError reports whether err is or wraps a DomainError.
func IsDomainError(err error) bool {
	var de *DomainError
	return errors.As(err, &de)
}

// ValidationError reports malformed input: missing required fields,
// unknown enum values or references to missing records.
type ValidationError struct {
	Message string
}

func (e *ValidationError) Error() string {
	return e.Message
}

func validationErrorf(format string, args ...any) error {
	return &ValidationError{Message: fmt.Sprintf(format, args...)}
}

// Warning is a non-blocking message returned next to a successful save.
type Warning struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}
