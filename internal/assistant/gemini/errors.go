package gemini

import (
	"errors"
	"fmt"
)

// Category is the normalized failure class of a generateContent call.
type Category string

const (
	CategoryTimeout     Category = "timeout"
	CategoryRateLimited Category = "rate_limited"
	CategoryAuth        Category = "authentication"
	CategoryBadRequest  Category = "bad_request"
	CategoryOutage      Category = "outage"
	CategoryBadResponse Category = "bad_response"
	CategoryBlocked     Category = "blocked"
	CategoryInternal    Category = "internal"
)

// Error is a classified upstream failure. Body holds at most a short prefix
// of the upstream error text and is never shown to clients.
type Error struct {
	Category Category
	Status   int
	Message  string
	Body     string
	Err      error
}

func (e *Error) Error() string {
	msg := fmt.Sprintf("gemini [%s]: %s", e.Category, e.Message)
	if e.Status != 0 {
		msg += fmt.Sprintf(" (status %d)", e.Status)
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Retryable reports whether the same call may succeed later.
func (e *Error) Retryable() bool {
	switch e.Category {
	case CategoryTimeout, CategoryRateLimited, CategoryOutage:
		return true
	default:
		return false
	}
}

// CategoryOf extracts the category of err, or CategoryInternal.
func CategoryOf(err error) Category {
	var ge *Error
	if errors.As(err, &ge) {
		return ge.Category
	}
	return CategoryInternal
}

func newError(category Category, status int, message string, err error) *Error {
	return &Error{Category: category, Status: status, Message: message, Err: err}
}
