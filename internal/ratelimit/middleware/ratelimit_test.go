package middleware

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"folio/internal/ratelimit/models"
	"folio/pkg/platform/httputil"
	"folio/pkg/requestcontext"
)

type stubLimiter struct {
	decision *models.Decision
	err      error

	gotClasses []models.LimitClass
	gotKey     string
}

func (s *stubLimiter) AdmitAll(_ context.Context, classes []models.LimitClass, key string) (*models.Decision, error) {
	s.gotClasses = classes
	s.gotKey = key
	return s.decision, s.err
}

type RateLimitMiddlewareSuite struct {
	suite.Suite
	limiter *stubLimiter
	mw      *Middleware
	called  bool
	resetAt time.Time
}

func TestRateLimitMiddlewareSuite(t *testing.T) {
	suite.Run(t, new(RateLimitMiddlewareSuite))
}

func (s *RateLimitMiddlewareSuite) SetupTest() {
	s.limiter = &stubLimiter{}
	s.mw = New(s.limiter, slog.New(slog.NewTextHandler(io.Discard, nil)), false)
	s.called = false
	s.resetAt = time.Date(2026, 1, 1, 0, 1, 0, 0, time.UTC)
}

func (s *RateLimitMiddlewareSuite) serve() *httptest.ResponseRecorder {
	handler := s.mw.RateLimit(models.ClassGlobal)(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		s.called = true
		w.WriteHeader(http.StatusOK)
	}))
	req := httptest.NewRequest(http.MethodGet, "/config", nil)
	req = req.WithContext(requestcontext.WithClientMetadata(req.Context(), "203.0.113.10", "test"))
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	return rec
}

func (s *RateLimitMiddlewareSuite) TestAdmittedSetsHeaders() {
	s.limiter.decision = &models.Decision{Admitted: true, Class: models.ClassGlobal, Limit: 30, Remaining: 29, ResetAt: s.resetAt}

	rec := s.serve()

	s.True(s.called)
	s.Equal(http.StatusOK, rec.Code)
	s.Equal("30", rec.Header().Get("X-RateLimit-Limit"))
	s.Equal("29", rec.Header().Get("X-RateLimit-Remaining"))
	s.Equal("1767225660", rec.Header().Get("X-RateLimit-Reset"))
	s.Equal([]models.LimitClass{models.ClassGlobal}, s.limiter.gotClasses)
	s.Equal("203.0.113.10", s.limiter.gotKey)
}

func (s *RateLimitMiddlewareSuite) TestRejectedWrites429() {
	s.limiter.decision = &models.Decision{
		Admitted: false, Class: models.ClassGlobal, Limit: 30, Remaining: 0,
		ResetAt: s.resetAt, RetryAfter: 42, Message: "Too many requests. Please slow down.",
	}

	rec := s.serve()

	s.False(s.called)
	s.Equal(http.StatusTooManyRequests, rec.Code)
	s.Equal("42", rec.Header().Get("Retry-After"))
	s.Equal("0", rec.Header().Get("X-RateLimit-Remaining"))

	var body httputil.ErrorEnvelope
	s.Require().NoError(json.Unmarshal(rec.Body.Bytes(), &body))
	s.Equal("RATE_LIMIT_ERROR", string(body.Error.Category))
	s.Equal("Too many requests. Please slow down.", body.Error.Message)
	s.Equal(42, body.Error.RetryAfterSeconds)
	s.True(body.Error.Retryable)
}

func (s *RateLimitMiddlewareSuite) TestStoreFailureFailsClosed() {
	s.limiter.err = errors.New("redis down")

	rec := s.serve()

	s.False(s.called)
	s.Equal(http.StatusInternalServerError, rec.Code)
	s.Contains(rec.Body.String(), "SYSTEM_ERROR")
	s.NotContains(rec.Body.String(), "redis down")
}
