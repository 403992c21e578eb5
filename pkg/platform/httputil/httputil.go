package httputil

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	dErrors "folio/pkg/domain-errors"
)

// SuccessEnvelope is the body of every 2xx JSON response.
type SuccessEnvelope struct {
	Success   bool   `json:"success"`
	Message   string `json:"message"`
	Data      any    `json:"data"`
	Timestamp string `json:"timestamp"`
}

// ErrorEnvelope is the body of every failed JSON response.
type ErrorEnvelope struct {
	Success bool      `json:"success"`
	Error   ErrorBody `json:"error"`
}

// ErrorBody describes a failure in client-safe terms.
type ErrorBody struct {
	Message           string           `json:"message"`
	Category          dErrors.Code     `json:"category"`
	Timestamp         string           `json:"timestamp"`
	Retryable         bool             `json:"retryable"`
	RetryAfterSeconds int              `json:"retryAfterSeconds,omitempty"`
	Details           []dErrors.Detail `json:"details,omitempty"`
	Technical         *Technical       `json:"technical,omitempty"`
}

// Technical carries raw error text. Only populated in development mode.
type Technical struct {
	OriginalMessage string `json:"originalMessage"`
}

var statusByCode = map[dErrors.Code]int{
	dErrors.CodeValidation:       http.StatusBadRequest,
	dErrors.CodeForbidden:        http.StatusForbidden,
	dErrors.CodeMethodNotAllowed: http.StatusMethodNotAllowed,
	dErrors.CodeRateLimited:      http.StatusTooManyRequests,
	dErrors.CodeEmail:            http.StatusBadGateway,
	dErrors.CodeUpstream:         http.StatusBadGateway,
	dErrors.CodeUnavailable:      http.StatusServiceUnavailable,
	dErrors.CodeInternal:         http.StatusInternalServerError,
}

var friendlyMessages = map[dErrors.Code]string{
	dErrors.CodeValidation:       "Please check your input and try again.",
	dErrors.CodeForbidden:        "Access denied.",
	dErrors.CodeMethodNotAllowed: "Method not allowed.",
	dErrors.CodeRateLimited:      "Too many requests. Please wait a moment and try again.",
	dErrors.CodeEmail:            "We could not send your message right now. Please try again later.",
	dErrors.CodeUpstream:         "The assistant is temporarily unavailable. Please try again in a moment.",
	dErrors.CodeUnavailable:      "The service is busy right now. Please try again shortly.",
	dErrors.CodeInternal:         "Something went wrong on our side. Please try again later.",
}

// StatusFor is the single category to HTTP status table.
func StatusFor(code dErrors.Code) int {
	if status, ok := statusByCode[code]; ok {
		return status
	}
	return http.StatusInternalServerError
}

// UserMessage returns the generic client-facing text for a category.
func UserMessage(code dErrors.Code) string {
	if msg, ok := friendlyMessages[code]; ok {
		return msg
	}
	return friendlyMessages[dErrors.CodeInternal]
}

// exposesMessage reports whether a domain error's own message was written
// for clients. Upstream and internal messages never are.
func exposesMessage(code dErrors.Code) bool {
	switch code {
	case dErrors.CodeValidation, dErrors.CodeForbidden, dErrors.CodeMethodNotAllowed, dErrors.CodeRateLimited:
		return true
	default:
		return false
	}
}

// Timestamp formats t the way every envelope does.
func Timestamp(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}

func WriteJSON(w http.ResponseWriter, status int, response any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	// Errors after WriteHeader cannot change the status code, so we ignore encoding errors.
	_ = json.NewEncoder(w).Encode(response)
}

// WriteSuccess writes a 200 success envelope.
func WriteSuccess(w http.ResponseWriter, now time.Time, message string, data any) {
	WriteJSON(w, http.StatusOK, SuccessEnvelope{
		Success:   true,
		Message:   message,
		Data:      data,
		Timestamp: Timestamp(now),
	})
}

// ErrorResponse translates err into a status and envelope without writing it.
// Raw error text is only attached when dev is true.
func ErrorResponse(err error, now time.Time, dev bool) (int, ErrorEnvelope) {
	code := dErrors.CodeInternal
	body := ErrorBody{Timestamp: Timestamp(now)}

	var domainErr *dErrors.Error
	if errors.As(err, &domainErr) && domainErr.Code.IsValid() {
		code = domainErr.Code
		body.RetryAfterSeconds = domainErr.RetryAfter
		body.Details = domainErr.Details
		if exposesMessage(code) && domainErr.Message != "" {
			body.Message = domainErr.Message
		}
	}
	if body.Message == "" {
		body.Message = UserMessage(code)
	}
	body.Category = code
	body.Retryable = code.Retryable()

	if dev && err != nil {
		body.Technical = &Technical{OriginalMessage: err.Error()}
	}
	return StatusFor(code), ErrorEnvelope{Success: false, Error: body}
}

// WriteError centralizes domain error translation to HTTP responses.
func WriteError(w http.ResponseWriter, err error, now time.Time, dev bool) int {
	status, envelope := ErrorResponse(err, now, dev)
	if envelope.Error.RetryAfterSeconds > 0 {
		w.Header().Set("Retry-After", strconv.Itoa(envelope.Error.RetryAfterSeconds))
	}
	WriteJSON(w, status, envelope)
	return status
}
