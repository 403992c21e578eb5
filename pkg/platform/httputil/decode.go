package httputil

import (
	"encoding/json"
	"errors"
	"io"
	"mime"
	"net/http"

	dErrors "folio/pkg/domain-errors"
)

// DefaultMaxBodyBytes bounds JSON request bodies when callers pass zero.
const DefaultMaxBodyBytes int64 = 64 << 10

// RequireJSON checks that the request declares an application/json body.
func RequireJSON(r *http.Request) error {
	ct := r.Header.Get("Content-Type")
	if ct == "" {
		return dErrors.New(dErrors.CodeValidation, "Content-Type must be application/json")
	}
	mediaType, _, err := mime.ParseMediaType(ct)
	if err != nil || mediaType != "application/json" {
		return dErrors.New(dErrors.CodeValidation, "Content-Type must be application/json")
	}
	return nil
}

// DecodeJSON decodes a single JSON object from the request body into T.
// Oversized, empty, malformed or trailing-garbage bodies all yield a
// VALIDATION_ERROR.
//
// Usage:
//
//	form, err := httputil.DecodeJSON[ContactForm](w, r, 0)
//	if err != nil {
//	    return nil, err
//	}
func DecodeJSON[T any](w http.ResponseWriter, r *http.Request, maxBytes int64) (*T, error) {
	if maxBytes <= 0 {
		maxBytes = DefaultMaxBodyBytes
	}
	body := http.MaxBytesReader(w, r.Body, maxBytes)
	defer body.Close() //nolint:errcheck // request body close error is not actionable

	var req T
	dec := json.NewDecoder(body)
	if err := dec.Decode(&req); err != nil {
		var tooLarge *http.MaxBytesError
		switch {
		case errors.As(err, &tooLarge):
			return nil, dErrors.Wrap(err, dErrors.CodeValidation, "request body is too large")
		case errors.Is(err, io.EOF):
			return nil, dErrors.Wrap(err, dErrors.CodeValidation, "request body is required")
		default:
			return nil, dErrors.Wrap(err, dErrors.CodeValidation, "invalid JSON in request body")
		}
	}
	if dec.More() {
		return nil, dErrors.New(dErrors.CodeValidation, "request body must contain a single JSON object")
	}
	return &req, nil
}
