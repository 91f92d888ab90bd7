// Package common holds the error values, logging and retry helpers shared by
// the ledger's packages.
package common

import (
	"errors"
	"fmt"
)

var (
	// ErrNotFound is wrapped by storage lookups that match no row.
	ErrNotFound = errors.New("not found")

	// ErrProviderConnection marks network failures talking to Plaid or SimpleFIN.
	ErrProviderConnection = errors.New("provider connection failed")

	ErrMissingConfig = errors.New("missing configuration")
	ErrInvalidConfig = errors.New("invalid configuration")
)

// UserError carries a message meant for the terminal alongside the
// underlying cause, which is only logged.
type UserError struct {
	Err         error
	UserMessage string
}

func (e *UserError) Error() string {
	if e.Err == nil {
		return e.UserMessage
	}
	return fmt.Sprintf("%s: %v", e.UserMessage, e.Err)
}

func (e *UserError) Unwrap() error {
	return e.Err
}

// NewUserError wraps err with a message for the user.
func NewUserError(userMessage string, err error) error {
	return &UserError{UserMessage: userMessage, Err: err}
}

// Describe returns what the CLI prints for err: the user message when one
// was attached, a configuration hint for config errors, and err otherwise.
func Describe(err error) string {
	var userErr *UserError
	switch {
	case err == nil:
		return ""
	case errors.As(err, &userErr):
		return userErr.UserMessage
	case errors.Is(err, ErrMissingConfig), errors.Is(err, ErrInvalidConfig):
		return fmt.Sprintf("%v (check config.yaml or the LEDGER_* environment)", err)
	default:
		return err.Error()
	}
}
