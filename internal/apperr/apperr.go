// Package apperr defines the error kinds shared by the relay and the client.
package apperr

import (
	"errors"
	"fmt"
)

// ValidationError reports a missing or malformed caller input, such as an
// empty owner, repository or comment body.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return e.Message
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// MissingAuthError reports that no authorization header or session token
// was available for a protected call.
type MissingAuthError struct {
	Message string
}

func (e *MissingAuthError) Error() string {
	if e.Message == "" {
		return "not logged in"
	}
	return e.Message
}

// UpstreamError wraps a failed call to GitHub. Status is zero when the
// request never produced a response.
type UpstreamError struct {
	Op      string
	Status  int
	Message string
	Body    []byte
	Err     error
}

func (e *UpstreamError) Error() string {
	msg := e.Message
	if msg == "" && e.Err != nil {
		msg = e.Err.Error()
	}
	if e.Status != 0 {
		return fmt.Sprintf("%s: upstream status %d: %s", e.Op, e.Status, msg)
	}
	return fmt.Sprintf("%s: %s", e.Op, msg)
}

func (e *UpstreamError) Unwrap() error {
	return e.Err
}

// Validation is shorthand for a *ValidationError.
func Validation(field, message string) error {
	return &ValidationError{Field: field, Message: message}
}

// IsValidation reports whether err is or wraps a *ValidationError.
func IsValidation(err error) bool {
	var target *ValidationError
	return errors.As(err, &target)
}

// IsMissingAuth reports whether err is or wraps a *MissingAuthError.
func IsMissingAuth(err error) bool {
	var target *MissingAuthError
	return errors.As(err, &target)
}

// AsUpstream returns the *UpstreamError in err's chain, if any.
func AsUpstream(err error) (*UpstreamError, bool) {
	var target *UpstreamError
	if errors.As(err, &target) {
		return target, true
	}
	return nil, false
}
