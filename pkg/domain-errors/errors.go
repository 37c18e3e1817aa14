// Package domainerrors defines the error contract shared by every layer of
// the wallet core.
//
// Services and aggregates return *Error values carrying a stable Code plus
// structured parameters instead of prose; human-readable titles and
// descriptions are resolved later against the error catalog. Stores return
// sentinel errors (pkg/platform/sentinel) which services translate into
// these codes, so callers see one failure contract regardless of cause.
package domainerrors

import (
	"errors"
	"fmt"
)

// Code is a stable machine-readable error classifier. Transport adapters map
// codes to status codes; the catalog maps them to display templates.
type Code string

const (
	// CodeValidation marks one or more field-level constraint violations.
	// The full violation list travels in Details, never just the first.
	CodeValidation Code = "validation_failed"

	// CodeNotFound marks a referenced aggregate that does not exist.
	CodeNotFound Code = "not_found"

	// CodeInvalidState marks an operation whose precondition on the current
	// stage or card state was not met. Params carry "actual" and "expected".
	CodeInvalidState Code = "invalid_state"

	// CodeConflict marks an optimistic-concurrency token mismatch. Callers
	// may re-read and retry; the core never retries on its own.
	CodeConflict Code = "conflict"

	// CodeDuplicate marks a uniqueness violation, e.g. a phone or e-mail
	// already registered to a different user.
	CodeDuplicate Code = "duplicate"

	// CodeExpired marks a time-boxed resource past its validity window.
	CodeExpired Code = "expired"

	// CodeInvalidInput marks malformed input rejected at a trust boundary
	// before it reaches aggregate validation.
	CodeInvalidInput Code = "invalid_input"

	// CodeInvariantViolation marks an aggregate invariant breach detected
	// inside domain logic. Services usually translate it before it escapes.
	CodeInvariantViolation Code = "invariant_violation"

	// CodeUnauthorized marks failed authentication.
	CodeUnauthorized Code = "unauthorized"

	// CodeLocked marks a resource under a temporary lockout window.
	CodeLocked Code = "locked"

	// CodeInternal wraps unexpected technical failures from collaborators.
	// The original cause chain is preserved; raw causes never leak.
	CodeInternal Code = "internal"
)

// Detail is one entry of an aggregated failure: a code plus the dynamic
// parameters needed to render its catalog template.
type Detail struct {
	Code   Code
	Params map[string]any
}

// Error is the concrete error value used across the core.
type Error struct {
	Code    Code
	Message string
	Params  map[string]any
	Details []Detail
	cause   error
}

func (e *Error) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unwrap exposes the cause chain for errors.Is / errors.As.
func (e *Error) Unwrap() error { return e.cause }

// WithParam attaches a dynamic parameter and returns the error for chaining.
func (e *Error) WithParam(key string, value any) *Error {
	if e.Params == nil {
		e.Params = make(map[string]any)
	}
	e.Params[key] = value
	return e
}

// WithDetails attaches aggregated failure entries.
func (e *Error) WithDetails(details ...Detail) *Error {
	e.Details = append(e.Details, details...)
	return e
}

// New constructs a domain error with the given code and message.
func New(code Code, message string) *Error {
	return &Error{Code: code, Message: message}
}

// Newf constructs a domain error with a formatted message.
func Newf(code Code, format string, args ...any) *Error {
	return &Error{Code: code, Message: fmt.Sprintf(format, args...)}
}

// Wrap attaches a code and message to an underlying cause. The cause is
// preserved for diagnostics but never surfaced verbatim to callers.
func Wrap(err error, code Code, message string) *Error {
	return &Error{Code: code, Message: message, cause: err}
}

// HasCode reports whether err (anywhere in its chain) carries the code.
func HasCode(err error, code Code) bool {
	var domainErr *Error
	for e := err; e != nil; {
		if errors.As(e, &domainErr) {
			if domainErr.Code == code {
				return true
			}
			e = domainErr.Unwrap()
			continue
		}
		return false
	}
	return false
}

// CodeOf returns the outermost domain code in err's chain, or CodeInternal
// when err is not a domain error.
func CodeOf(err error) Code {
	var domainErr *Error
	if errors.As(err, &domainErr) {
		return domainErr.Code
	}
	return CodeInternal
}

// Is delegates to errors.Is; kept here so call sites need one import.
func Is(err, target error) bool { return errors.Is(err, target) }
