package webcrypto

import (
	"errors"
	"fmt"

	pkgerrors "github.com/pkg/errors"
)

// ErrorKind classifies every error produced by this package.
type ErrorKind string

const (
	// ErrArgumentCount marks a call with the wrong number of arguments.
	ErrArgumentCount ErrorKind = "argument-count"
	// ErrValidation marks a structural, type, or enum violation in an argument.
	ErrValidation ErrorKind = "validation"
	// ErrAlgorithmMismatch marks an algorithm that is not legal for the
	// requested operation. It is a subtype of ErrValidation.
	ErrAlgorithmMismatch ErrorKind = "algorithm-mismatch"
	// ErrProvider marks a failure reported by the Provider.
	ErrProvider ErrorKind = "provider"
)

// Error is the unified error structure returned by the facade.
type Error struct {
	Kind    ErrorKind
	Message string
	Cause   error
}

func (e *Error) Error() string {
	if e == nil {
		return ""
	}
	if e.Message != "" {
		return string(e.Kind) + ": " + e.Message
	}
	return string(e.Kind)
}

func (e *Error) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Cause
}

func newArgumentCountError(got, want int) *Error {
	return &Error{
		Kind:    ErrArgumentCount,
		Message: fmt.Sprintf("expected %d arguments, got %d", want, got),
	}
}

func newMinArgumentCountError(got, min int) *Error {
	return &Error{
		Kind:    ErrArgumentCount,
		Message: fmt.Sprintf("expected at least %d arguments, got %d", min, got),
	}
}

func newValidationError(format string, args ...any) *Error {
	return &Error{Kind: ErrValidation, Message: fmt.Sprintf(format, args...)}
}

func newAlgorithmMismatchError(format string, args ...any) *Error {
	return &Error{Kind: ErrAlgorithmMismatch, Message: fmt.Sprintf(format, args...)}
}

func newProviderError(format string, args ...any) *Error {
	return &Error{Kind: ErrProvider, Message: fmt.Sprintf(format, args...)}
}

func wrapProviderError(op string, err error) *Error {
	return &Error{
		Kind:    ErrProvider,
		Message: op + ": " + err.Error(),
		Cause:   pkgerrors.Wrap(err, op),
	}
}

func kindOf(err error) (ErrorKind, bool) {
	var e *Error
	if !errors.As(err, &e) || e == nil {
		return "", false
	}
	return e.Kind, true
}

// IsArgumentCountError reports whether err carries a wrong-arity failure.
func IsArgumentCountError(err error) bool {
	k, ok := kindOf(err)
	return ok && k == ErrArgumentCount
}

// IsValidationError reports whether err carries a validation failure,
// including algorithm mismatches.
func IsValidationError(err error) bool {
	k, ok := kindOf(err)
	return ok && (k == ErrValidation || k == ErrAlgorithmMismatch)
}

// IsAlgorithmMismatchError reports whether err carries an unsupported
// algorithm/operation combination.
func IsAlgorithmMismatchError(err error) bool {
	k, ok := kindOf(err)
	return ok && k == ErrAlgorithmMismatch
}

// IsProviderError reports whether err originated in the Provider.
func IsProviderError(err error) bool {
	k, ok := kindOf(err)
	return ok && k == ErrProvider
}
