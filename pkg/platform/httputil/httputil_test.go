package httputil

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"

	dErrors "folio/pkg/domain-errors"
)

type EnvelopeSuite struct {
	suite.Suite
	now time.Time
}

func TestEnvelopeSuite(t *testing.T) {
	suite.Run(t, new(EnvelopeSuite))
}

func (s *EnvelopeSuite) SetupTest() {
	s.now = time.Date(2026, 5, 4, 10, 0, 0, 0, time.UTC)
}

func (s *EnvelopeSuite) decodeError(rec *httptest.ResponseRecorder) ErrorEnvelope {
	var env ErrorEnvelope
	s.Require().NoError(json.Unmarshal(rec.Body.Bytes(), &env))
	return env
}

// =============================================================================
// Status table
// =============================================================================

func (s *EnvelopeSuite) TestStatusFor() {
	cases := map[dErrors.Code]int{
		dErrors.CodeValidation:       http.StatusBadRequest,
		dErrors.CodeForbidden:        http.StatusForbidden,
		dErrors.CodeMethodNotAllowed: http.StatusMethodNotAllowed,
		dErrors.CodeRateLimited:      http.StatusTooManyRequests,
		dErrors.CodeEmail:            http.StatusBadGateway,
		dErrors.CodeUpstream:         http.StatusBadGateway,
		dErrors.CodeUnavailable:      http.StatusServiceUnavailable,
		dErrors.CodeInternal:         http.StatusInternalServerError,
		dErrors.Code("unknown"):      http.StatusInternalServerError,
	}
	for code, status := range cases {
		s.Equal(status, StatusFor(code), string(code))
	}
}

// =============================================================================
// Error envelopes
// =============================================================================

func (s *EnvelopeSuite) TestWriteError() {
	s.Run("rate limit sets Retry-After and keeps its message", func() {
		rec := httptest.NewRecorder()
		status := WriteError(rec, dErrors.RateLimited("Too many chat requests.", 120), s.now, false)

		s.Equal(http.StatusTooManyRequests, status)
		s.Equal("120", rec.Header().Get("Retry-After"))
		env := s.decodeError(rec)
		s.False(env.Success)
		s.Equal(dErrors.CodeRateLimited, env.Error.Category)
		s.Equal("Too many chat requests.", env.Error.Message)
		s.Equal(120, env.Error.RetryAfterSeconds)
		s.True(env.Error.Retryable)
		s.Equal("2026-05-04T10:00:00Z", env.Error.Timestamp)
	})

	s.Run("upstream failures hide raw error text", func() {
		rec := httptest.NewRecorder()
		err := dErrors.Wrap(errors.New("smtp: 535 authentication failed"), dErrors.CodeEmail, "smtp: 535 authentication failed")
		WriteError(rec, err, s.now, false)

		env := s.decodeError(rec)
		s.Equal(http.StatusBadGateway, rec.Code)
		s.Equal(UserMessage(dErrors.CodeEmail), env.Error.Message)
		s.NotContains(rec.Body.String(), "535")
		s.Nil(env.Error.Technical)
	})

	s.Run("development mode attaches technical detail", func() {
		rec := httptest.NewRecorder()
		WriteError(rec, dErrors.Wrap(errors.New("gemini: status 500"), dErrors.CodeUpstream, "generate"), s.now, true)

		env := s.decodeError(rec)
		s.Require().NotNil(env.Error.Technical)
		s.Contains(env.Error.Technical.OriginalMessage, "generate")
	})

	s.Run("non-domain errors become SYSTEM_ERROR", func() {
		rec := httptest.NewRecorder()
		WriteError(rec, errors.New("nil pointer"), s.now, false)

		env := s.decodeError(rec)
		s.Equal(http.StatusInternalServerError, rec.Code)
		s.Equal(dErrors.CodeInternal, env.Error.Category)
		s.False(env.Error.Retryable)
	})

	s.Run("validation details are included", func() {
		rec := httptest.NewRecorder()
		WriteError(rec, dErrors.Invalid("Please check your input.", []dErrors.Detail{
			{Field: "email", Kind: "INVALID_EMAIL", Message: "email must be a valid email address"},
		}), s.now, false)

		env := s.decodeError(rec)
		s.Require().Len(env.Error.Details, 1)
		s.Equal("INVALID_EMAIL", env.Error.Details[0].Kind)
	})
}

func TestWriteSuccess(t *testing.T) {
	rec := httptest.NewRecorder()
	WriteSuccess(rec, time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC), "ok", map[string]string{"response": "hi"})

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))

	var env map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &env))
	assert.Equal(t, true, env["success"])
	assert.Equal(t, "ok", env["message"])
	assert.Equal(t, "2026-01-02T03:04:05Z", env["timestamp"])
	assert.Equal(t, "hi", env["data"].(map[string]any)["response"])
}
