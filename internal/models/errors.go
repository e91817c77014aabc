package models

import (
	"errors"
)

var (
	// ErrValidation covers empty or malformed caller input (empty text,
	// missing options) before any external call is made.
	ErrValidation = errors.New("validation error")

	// ErrUnresolvableInput means classification succeeded but the referenced
	// content could not be read.
	ErrUnresolvableInput = errors.New("unresolvable input")

	// ErrUnsupportedContentType means the content was read but its format is
	// not one the platform can feed to a model.
	ErrUnsupportedContentType = errors.New("unsupported content type")

	// ErrUnknownModel means the model identifier is absent from the price
	// table. Callers must not substitute a default price.
	ErrUnknownModel = errors.New("unknown model")

	// ErrInvocationFailure means the model-invocation collaborator failed.
	ErrInvocationFailure = errors.New("invocation failure")

	// ErrTimeout means the caller's deadline elapsed before completion.
	ErrTimeout = errors.New("timeout")

	// ErrPersistenceFailure means telemetry could not be written. It is
	// reported out-of-band and never overrides an operation's outcome.
	ErrPersistenceFailure = errors.New("persistence failure")
)

// ErrorKind maps an error chain to its stable taxonomy name, used as the
// error_kind field of an InvocationRecord.
func ErrorKind(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrValidation):
		return "Validation"
	case errors.Is(err, ErrUnresolvableInput):
		return "UnresolvableInput"
	case errors.Is(err, ErrUnsupportedContentType):
		return "UnsupportedContentType"
	case errors.Is(err, ErrUnknownModel):
		return "UnknownModel"
	case errors.Is(err, ErrTimeout):
		return "Timeout"
	case errors.Is(err, ErrPersistenceFailure):
		return "PersistenceFailure"
	default:
		return "InvocationFailure"
	}
}
