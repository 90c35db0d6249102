// Package errs holds the error kinds services return and the HTTP layer maps
// to status codes.
package errs

import (
	"errors"
	"fmt"
	"strings"
)

var (
	ErrNotFound     = errors.New("not found")
	ErrUnauthorized = errors.New("unauthorized")
	ErrForbidden    = errors.New("forbidden")
	ErrConflict     = errors.New("conflict")
)

// ValidationError carries one or more field level messages.
type ValidationError struct {
	Messages []string
}

func (e *ValidationError) Error() string {
	return strings.Join(e.Messages, "; ")
}

// Validation builds a ValidationError from a formatted message.
func Validation(format string, args ...any) error {
	return &ValidationError{Messages: []string{fmt.Sprintf(format, args...)}}
}

// Validations collects messages into a ValidationError, returning nil when
// there are none.
func Validations(messages []string) error {
	if len(messages) == 0 {
		return nil
	}
	return &ValidationError{Messages: messages}
}

// NotFound wraps ErrNotFound with the entity and key that were looked up.
func NotFound(entity string, key any) error {
	return fmt.Errorf("%s with id '%v' does not exist: %w", entity, key, ErrNotFound)
}

// Conflict wraps ErrConflict with a message.
func Conflict(format string, args ...any) error {
	return fmt.Errorf("%s: %w", fmt.Sprintf(format, args...), ErrConflict)
}

// Forbidden wraps ErrForbidden with a message.
func Forbidden(format string, args ...any) error {
	return fmt.Errorf("%s: %w", fmt.Sprintf(format, args...), ErrForbidden)
}

func IsValidation(err error) bool {
	var v *ValidationError
	return errors.As(err, &v)
}

func IsNotFound(err error) bool { return errors.Is(err, ErrNotFound) }
