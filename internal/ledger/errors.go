package ledger

import (
	"errors"
	"fmt"
)

var (
	ErrValidation    = errors.New("validation failed")
	ErrNotFound      = errors.New("not found")
	ErrConflict      = errors.New("concurrent update, please retry")
	ErrHasDependents = errors.New("record has later dependents")
	ErrInvalidState  = errors.New("invalid state")

	errVersionMismatch = errors.New("counterparty version mismatch")
)

type validationError struct {
	msg string
}

func (e *validationError) Error() string { return e.msg }
func (e *validationError) Unwrap() error { return ErrValidation }

// Validationf returns an error matching ErrValidation whose message is
// shown to the client as is.
func Validationf(format string, args ...any) error {
	return &validationError{msg: fmt.Sprintf(format, args...)}
}

// Message returns the client-facing text for a ledger error.
func Message(err error) string {
	var ve *validationError
	if errors.As(err, &ve) {
		return ve.msg
	}
	return err.Error()
}
