package domainerrors

import "errors"

// Code is the closed set of failure categories a client can observe.
// Each code maps to exactly one HTTP status in httputil.StatusFor.
type Code string

const (
	CodeValidation       Code = "VALIDATION_ERROR"
	CodeForbidden        Code = "FORBIDDEN"
	CodeMethodNotAllowed Code = "METHOD_NOT_ALLOWED"
	CodeRateLimited      Code = "RATE_LIMIT_ERROR"
	CodeEmail            Code = "EMAIL_ERROR"
	CodeUpstream         Code = "API_ERROR"
	CodeUnavailable      Code = "SERVICE_UNAVAILABLE"
	CodeInternal         Code = "SYSTEM_ERROR"
)

var knownCodes = map[Code]struct{}{
	CodeValidation:       {},
	CodeForbidden:        {},
	CodeMethodNotAllowed: {},
	CodeRateLimited:      {},
	CodeEmail:            {},
	CodeUpstream:         {},
	CodeUnavailable:      {},
	CodeInternal:         {},
}

// IsValid reports whether c is one of the declared categories.
func (c Code) IsValid() bool {
	_, ok := knownCodes[c]
	return ok
}

// Retryable reports whether a caller may repeat the same request later
// and reasonably expect a different outcome.
func (c Code) Retryable() bool {
	switch c {
	case CodeRateLimited, CodeEmail, CodeUpstream, CodeUnavailable:
		return true
	default:
		return false
	}
}

// Upstream reports whether the category originates in a dependency the
// service calls rather than in the request itself.
func (c Code) Upstream() bool {
	return c == CodeEmail || c == CodeUpstream || c == CodeUnavailable
}

// Detail describes a single rejected input field.
type Detail struct {
	Field   string `json:"field"`
	Kind    string `json:"kind"`
	Message string `json:"message"`
}

// Error wraps domain or infrastructure failures with a stable code.
// It is transport-agnostic and can be used across service, store, and other layers.
type Error struct {
	Code    Code
	Message string
	Err     error

	// RetryAfter is the number of seconds a client should wait, when known.
	RetryAfter int
	// Details lists per-field problems for validation failures.
	Details []Detail
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Message != "" {
		return e.Message
	}
	return string(e.Code)
}

// Unwrap implements error unwrapping for error chains.
func (e *Error) Unwrap() error {
	return e.Err
}

// Is enables errors.Is() to match errors by code.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return e.Code == t.Code
}

// New creates a new domain error with the given code and message.
func New(code Code, msg string) error {
	return &Error{Code: code, Message: msg}
}

// Wrap creates a new domain error wrapping an existing error.
// If the wrapped error is already a domain error, the original code is preserved.
func Wrap(err error, code Code, msg string) error {
	var existing *Error
	if errors.As(err, &existing) {
		return &Error{
			Code:       existing.Code,
			Message:    msg,
			Err:        err,
			RetryAfter: existing.RetryAfter,
			Details:    existing.Details,
		}
	}
	return &Error{Code: code, Message: msg, Err: err}
}

// RateLimited builds a RATE_LIMIT_ERROR carrying the retry delay in seconds.
func RateLimited(msg string, retryAfter int) error {
	return &Error{Code: CodeRateLimited, Message: msg, RetryAfter: retryAfter}
}

// Invalid builds a VALIDATION_ERROR carrying per-field details.
func Invalid(msg string, details []Detail) error {
	return &Error{Code: CodeValidation, Message: msg, Details: details}
}

// HasCode checks if an error is a domain error with the given code.
func HasCode(err error, code Code) bool {
	var e *Error
	if errors.As(err, &e) {
		return e.Code == code
	}
	return false
}

// CodeOf returns the category of err, or CodeInternal when err carries none.
func CodeOf(err error) Code {
	var e *Error
	if errors.As(err, &e) && e.Code.IsValid() {
		return e.Code
	}
	return CodeInternal
}
