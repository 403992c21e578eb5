package admission

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	promtest "github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/suite"

	"folio/internal/admission/origin"
	"folio/internal/admission/sanitize"
	"folio/internal/ratelimit/models"
	"folio/internal/ratelimit/service"
	"folio/internal/ratelimit/store/window"
	dErrors "folio/pkg/domain-errors"
	"folio/pkg/platform/httputil"
	"folio/pkg/requestcontext"
	"folio/pkg/testutil"
)

type echoForm struct {
	Message string `json:"message" validate:"required"`
}

func (f echoForm) Fields() []sanitize.Field {
	return []sanitize.Field{{Name: "message", Label: "Message", Value: f.Message, Min: 1, Max: 20}}
}

type failingLimiter struct{}

func (failingLimiter) AdmitAll(context.Context, []models.LimitClass, string) (*models.Decision, error) {
	return nil, dErrors.Wrap(errors.New("dial tcp: refused"), dErrors.CodeInternal, "failed to check rate limit")
}

type PipelineSuite struct {
	suite.Suite
	limiter    *service.Limiter
	metrics    *Metrics
	logs       *bytes.Buffer
	pipeline   *Pipeline
	dispatched int
	finalState State
	dispatch   Dispatcher
}

func TestPipelineSuite(t *testing.T) {
	suite.Run(t, new(PipelineSuite))
}

func (s *PipelineSuite) SetupTest() {
	var err error
	s.limiter, err = service.New(window.New())
	s.Require().NoError(err)
	s.logs = &bytes.Buffer{}
	s.metrics = NewMetrics(prometheus.NewRegistry())
	s.dispatched = 0
	s.dispatch = func(_ context.Context, x *Exchange) (*Reply, error) {
		s.dispatched++
		return &Reply{Message: "ok", Data: map[string]string{"echo": x.Fields["message"]}}, nil
	}
	s.pipeline = s.newPipeline(s.limiter, false)
}

func (s *PipelineSuite) newPipeline(limiter RateLimiter, dev bool) *Pipeline {
	return New(origin.New([]string{testutil.TestOrigin}, dev), limiter,
		WithLogger(slog.New(slog.NewJSONHandler(s.logs, nil))),
		WithMetrics(s.metrics),
		WithDevelopment(dev),
		WithObserver(func(x *Exchange, _ int) { s.finalState = x.State() }),
	)
}

func (s *PipelineSuite) handler() http.Handler {
	return s.pipeline.Handler(Route{
		Name:     "contact",
		Classes:  []models.LimitClass{models.ClassGlobal, models.ClassContact},
		Validate: ValidateForm[echoForm](),
		Dispatch: func(ctx context.Context, x *Exchange) (*Reply, error) { return s.dispatch(ctx, x) },
	})
}

func (s *PipelineSuite) request(method, body string, mutate ...func(*http.Request)) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, "/api/contact", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Origin", testutil.TestOrigin)
	req.Header.Set("User-Agent", "Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0 Safari/537.36")
	ctx := requestcontext.WithClientMetadata(req.Context(), testutil.TestIPs.Client1, req.UserAgent())
	ctx = requestcontext.WithTime(ctx, time.Date(2026, 2, 1, 12, 0, 0, 0, time.UTC))
	req = req.WithContext(ctx)
	for _, m := range mutate {
		m(req)
	}
	rec := httptest.NewRecorder()
	s.handler().ServeHTTP(rec, req)
	return rec
}

func (s *PipelineSuite) errorBody(rec *httptest.ResponseRecorder) httputil.ErrorEnvelope {
	var body httputil.ErrorEnvelope
	s.Require().NoError(json.Unmarshal(rec.Body.Bytes(), &body))
	return body
}

func (s *PipelineSuite) globalRemaining() int {
	n, err := s.limiter.Remaining(context.Background(), models.ClassGlobal, testutil.TestIPs.Client1)
	s.Require().NoError(err)
	return n
}

// =============================================================================
// Happy path
// =============================================================================

func (s *PipelineSuite) TestAdmittedRequestIsDispatched() {
	rec := s.request(http.MethodPost, `{"message":"  hi <b>there</b> "}`)

	s.Equal(http.StatusOK, rec.Code)
	s.Equal(1, s.dispatched)
	s.Equal(StateResponded, s.finalState)

	var body httputil.SuccessEnvelope
	s.Require().NoError(json.Unmarshal(rec.Body.Bytes(), &body))
	s.True(body.Success)
	s.Equal("ok", body.Message)
	s.Equal(map[string]any{"echo": "hi there"}, body.Data)
	s.Equal("2026-02-01T12:00:00Z", body.Timestamp)

	s.Equal("2", rec.Header().Get("X-RateLimit-Remaining"), "contact is the tighter class")
	s.Equal(testutil.TestOrigin, rec.Header().Get("Access-Control-Allow-Origin"))
	s.Equal("nosniff", rec.Header().Get("X-Content-Type-Options"))
	s.Equal("DENY", rec.Header().Get("X-Frame-Options"))
	s.NotEmpty(rec.Header().Get("Strict-Transport-Security"))
	s.Contains(s.logs.String(), `"msg":"security_request"`)
	s.Contains(s.logs.String(), `"browser":"Chrome"`)
	s.Equal(1.0, promtest.ToFloat64(s.metrics.OutcomesTotal.WithLabelValues("contact", "dispatched", "200")))
}

// =============================================================================
// Preflight and method checks
// =============================================================================

func (s *PipelineSuite) TestPreflightTouchesNoCounter() {
	for range 40 {
		rec := s.request(http.MethodOptions, "")
		s.Equal(http.StatusNoContent, rec.Code)
		s.Empty(rec.Body.String())
		s.Equal(allowMethods, rec.Header().Get("Access-Control-Allow-Methods"))
	}
	s.Equal(30, s.globalRemaining())
	s.Zero(s.dispatched)
	s.Equal(StateResponded, s.finalState)
}

func (s *PipelineSuite) TestOtherMethodsAreRejected() {
	rec := s.request(http.MethodGet, "")
	s.Equal(http.StatusMethodNotAllowed, rec.Code)
	s.Equal("POST, OPTIONS", rec.Header().Get("Allow"))
	s.Equal(dErrors.CodeMethodNotAllowed, s.errorBody(rec).Error.Category)
	s.Equal(30, s.globalRemaining())
}

// =============================================================================
// Rate limit
// =============================================================================

func (s *PipelineSuite) TestFourthContactIsRateLimited() {
	for range 3 {
		s.Equal(http.StatusOK, s.request(http.MethodPost, `{"message":"hello"}`).Code)
	}
	rec := s.request(http.MethodPost, `{"message":"hello"}`)

	s.Equal(http.StatusTooManyRequests, rec.Code)
	s.Equal("3600", rec.Header().Get("Retry-After"))
	body := s.errorBody(rec)
	s.Equal(dErrors.CodeRateLimited, body.Error.Category)
	s.Equal(3600, body.Error.RetryAfterSeconds)
	s.True(body.Error.Retryable)
	s.Contains(body.Error.Message, "contact form")
	s.Equal(3, s.dispatched)
	s.Contains(s.logs.String(), `"msg":"rate_limit_exceeded"`)
	s.Equal(1.0, promtest.ToFloat64(s.metrics.OutcomesTotal.WithLabelValues("contact", "received", "429")))
}

func (s *PipelineSuite) TestLimiterFailureFailsClosed() {
	s.pipeline = s.newPipeline(failingLimiter{}, false)

	rec := s.request(http.MethodPost, `{"message":"hello"}`)

	s.Equal(http.StatusInternalServerError, rec.Code)
	body := s.errorBody(rec)
	s.Equal(dErrors.CodeInternal, body.Error.Category)
	s.Nil(body.Error.Technical)
	s.NotContains(rec.Body.String(), "refused")
	s.Zero(s.dispatched)
	s.Equal(1, strings.Count(s.logs.String(), `"level":"ERROR"`))
}

// =============================================================================
// Origin
// =============================================================================

func (s *PipelineSuite) TestForeignOriginIsForbiddenAfterCounting() {
	rec := s.request(http.MethodPost, `{"message":"hello"}`, func(r *http.Request) {
		r.Header.Set("Origin", "https://evil.example.com")
	})

	s.Equal(http.StatusForbidden, rec.Code)
	s.Equal(dErrors.CodeForbidden, s.errorBody(rec).Error.Category)
	s.Equal(testutil.TestOrigin, rec.Header().Get("Access-Control-Allow-Origin"))
	s.Equal(29, s.globalRemaining())
	s.Equal(StateResponded, s.finalState)
	s.Contains(s.logs.String(), `"msg":"origin_rejected"`)
	s.Contains(s.logs.String(), `"state":"rate_checked"`)
}

func (s *PipelineSuite) TestRefererFallback() {
	rec := s.request(http.MethodPost, `{"message":"hello"}`, func(r *http.Request) {
		r.Header.Del("Origin")
		r.Header.Set("Referer", testutil.TestOrigin+"/contact.html")
	})
	s.Equal(http.StatusOK, rec.Code)
}

func (s *PipelineSuite) TestDevelopmentModeAllowsAnyOrigin() {
	s.pipeline = s.newPipeline(s.limiter, true)

	rec := s.request(http.MethodPost, `{"message":"hello"}`, func(r *http.Request) {
		r.Header.Set("Origin", "http://localhost:9999")
	})
	s.Equal(http.StatusOK, rec.Code)
	s.Equal("*", rec.Header().Get("Access-Control-Allow-Origin"))
	s.Empty(rec.Header().Get("Strict-Transport-Security"))
}

// =============================================================================
// Validation
// =============================================================================

func (s *PipelineSuite) TestValidationFailures() {
	cases := []struct {
		name   string
		body   string
		mutate func(*http.Request)
		field  string
		kind   string
	}{
		{name: "missing field", body: `{}`, field: "message", kind: "REQUIRED_FIELD"},
		{name: "blank after sanitize", body: `{"message":"<i></i>"}`, field: "message", kind: "REQUIRED_FIELD"},
		{name: "too long", body: `{"message":"` + strings.Repeat("x", 21) + `"}`, field: "message", kind: "TOO_LONG"},
		{name: "spam", body: `{"message":"free money!"}`, field: "message", kind: "SPAM_DETECTED"},
		{name: "malformed json", body: `{"message":`},
		{name: "wrong content type", body: `{"message":"hi"}`, mutate: func(r *http.Request) { r.Header.Set("Content-Type", "text/plain") }},
	}
	for _, tc := range cases {
		s.Run(tc.name, func() {
			s.SetupTest()
			var mutate []func(*http.Request)
			if tc.mutate != nil {
				mutate = append(mutate, tc.mutate)
			}
			rec := s.request(http.MethodPost, tc.body, mutate...)

			s.Equal(http.StatusBadRequest, rec.Code)
			body := s.errorBody(rec)
			s.Equal(dErrors.CodeValidation, body.Error.Category)
			s.False(body.Error.Retryable)
			if tc.field != "" {
				s.Require().NotEmpty(body.Error.Details)
				s.Equal(tc.field, body.Error.Details[0].Field)
				s.Equal(tc.kind, body.Error.Details[0].Kind)
			}
			s.Zero(s.dispatched)
		})
	}
}

// =============================================================================
// Dispatch failures
// =============================================================================

func (s *PipelineSuite) TestDispatchErrorIsLoggedOnce() {
	s.dispatch = func(context.Context, *Exchange) (*Reply, error) {
		return nil, dErrors.Wrap(errors.New("smtp: 535 auth failed"), dErrors.CodeEmail, "send notification")
	}

	rec := s.request(http.MethodPost, `{"message":"hello"}`)

	s.Equal(http.StatusBadGateway, rec.Code)
	body := s.errorBody(rec)
	s.Equal(dErrors.CodeEmail, body.Error.Category)
	s.True(body.Error.Retryable)
	s.NotContains(rec.Body.String(), "535")
	s.Equal(1, strings.Count(s.logs.String(), `"msg":"upstream_failed"`))
	s.Contains(s.logs.String(), `"state":"dispatched"`)
}

func (s *PipelineSuite) TestDevelopmentExposesTechnicalMessage() {
	s.pipeline = s.newPipeline(s.limiter, true)
	s.dispatch = func(context.Context, *Exchange) (*Reply, error) {
		return nil, dErrors.Wrap(errors.New("gemini: 500"), dErrors.CodeUpstream, "chat")
	}

	rec := s.request(http.MethodPost, `{"message":"hello"}`)

	body := s.errorBody(rec)
	s.Require().NotNil(body.Error.Technical)
	s.Contains(body.Error.Technical.OriginalMessage, "gemini: 500")
}

// =============================================================================
// State machine
// =============================================================================

func (s *PipelineSuite) TestStatesOnlyMoveForward() {
	x := &Exchange{}
	x.advance(StateValidated)
	x.advance(StateRateChecked)
	s.Equal(StateValidated, x.State())
	x.advance(StateResponded)
	s.Equal(StateResponded, x.State())
	s.Equal("responded", x.State().String())
	s.Equal("unknown", State(42).String())
}

func (s *PipelineSuite) TestStageOrderStopsAtFirstReply() {
	var ran []string
	stage := func(name string, reply *Reply) Stage {
		return NewStage(name, StateReceived, func(context.Context, *Exchange) (*Reply, error) {
			ran = append(ran, name)
			return reply, nil
		})
	}
	h := s.pipeline.Serve("custom", []Stage{
		stage("a", nil),
		stage("b", &Reply{Status: http.StatusAccepted, Message: "early"}),
		stage("c", nil),
	}, s.dispatch)

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/", nil))

	s.Equal([]string{"a", "b"}, ran)
	s.Equal(http.StatusAccepted, rec.Code)
	s.Zero(s.dispatched)
}
