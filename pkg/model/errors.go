package model

import (
	"errors"
	"fmt"
)

// ErrInvalidInput marks structurally invalid node, edge, or parameter input.
// It is raised before any iteration begins, never mid-run.
var ErrInvalidInput = errors.New("invalid input")

// InputError wraps a validation failure with detail about the offending input.
type InputError struct {
	Msg string
}

func (e *InputError) Error() string {
	if e.Msg == "" {
		return ErrInvalidInput.Error()
	}
	return fmt.Sprintf("%s: %s", ErrInvalidInput.Error(), e.Msg)
}

func (e *InputError) Unwrap() error { return ErrInvalidInput }

// Invalidf builds an InputError with a formatted message.
func Invalidf(format string, args ...any) error {
	return &InputError{Msg: fmt.Sprintf(format, args...)}
}
