package httptransport

//go:generate mockgen -source=handlers.go -destination=mocks/mocks.go -package=mocks ChatService,ContactService

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/suite"
	"go.uber.org/mock/gomock"
	"golang.org/x/time/rate"

	"folio/internal/admission"
	"folio/internal/admission/origin"
	"folio/internal/contact"
	"folio/internal/platform/health"
	ratelimitmw "folio/internal/ratelimit/middleware"
	"folio/internal/ratelimit/service"
	"folio/internal/ratelimit/store/window"
	"folio/internal/transport/http/mocks"
	dErrors "folio/pkg/domain-errors"
	"folio/pkg/platform/httputil"
	"folio/pkg/platform/middleware/request"
	"folio/pkg/testutil"
)

type RouterSuite struct {
	suite.Suite
	ctrl     *gomock.Controller
	chat     *mocks.MockChatService
	contact  *mocks.MockContactService
	registry *prometheus.Registry
	logs     *bytes.Buffer
	throttle *rate.Limiter
}

func TestRouterSuite(t *testing.T) {
	suite.Run(t, new(RouterSuite))
}

func (s *RouterSuite) SetupTest() {
	s.ctrl = gomock.NewController(s.T())
	s.chat = mocks.NewMockChatService(s.ctrl)
	s.contact = mocks.NewMockContactService(s.ctrl)
	s.registry = prometheus.NewRegistry()
	s.logs = &bytes.Buffer{}
	s.throttle = nil
}

func (s *RouterSuite) TearDownTest() {
	s.ctrl.Finish()
}

func (s *RouterSuite) router(chat ChatService, contactSvc ContactService) http.Handler {
	logger := slog.New(slog.NewJSONHandler(s.logs, nil))
	s.registry = prometheus.NewRegistry()
	limiter, err := service.New(window.New(), service.WithLogger(logger))
	s.Require().NoError(err)

	pipeline := admission.New(origin.New([]string{testutil.TestOrigin}, false), limiter,
		admission.WithLogger(logger),
		admission.WithMetrics(admission.NewMetrics(s.registry)),
	)
	return NewRouter(RouterDeps{
		Handler:   NewHandler(chat, contactSvc, logger),
		Pipeline:  pipeline,
		RateLimit: ratelimitmw.New(limiter, logger, false),
		Health:    health.New("test"),
		Gatherer:  s.registry,
		Metrics:   request.NewMetrics(s.registry),
		Throttle:  s.throttle,
		Logger:    logger,
	})
}

func (s *RouterSuite) post(h http.Handler, path string, body io.Reader) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, path, body)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Origin", testutil.TestOrigin)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func (s *RouterSuite) get(h http.Handler, path string) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
	return rec
}

func (s *RouterSuite) success(rec *httptest.ResponseRecorder) map[string]any {
	var body httputil.SuccessEnvelope
	s.Require().NoError(json.Unmarshal(rec.Body.Bytes(), &body))
	s.True(body.Success)
	data, ok := body.Data.(map[string]any)
	s.Require().True(ok, "data should be an object")
	return data
}

func (s *RouterSuite) failure(rec *httptest.ResponseRecorder) httputil.ErrorBody {
	var body httputil.ErrorEnvelope
	s.Require().NoError(json.Unmarshal(rec.Body.Bytes(), &body))
	s.False(body.Success)
	return body.Error
}

// =============================================================================
// Chatbot
// =============================================================================

func (s *RouterSuite) TestChatbot() {
	s.Run("returns the assistant reply", func() {
		s.chat.EXPECT().Chat(gomock.Any(), "What is your stack?").Return("Go and Postgres.", nil)

		rec := s.post(s.router(s.chat, s.contact), PathChat, testutil.ChatBody("  What is your stack?  "))

		s.Equal(http.StatusOK, rec.Code)
		s.Equal("Go and Postgres.", s.success(rec)["response"])
		s.NotEmpty(rec.Header().Get("X-Request-ID"))
		s.Equal("10", rec.Header().Get("X-RateLimit-Limit"))
	})

	s.Run("upstream failure is a generic API_ERROR", func() {
		s.chat.EXPECT().Chat(gomock.Any(), gomock.Any()).
			Return("", dErrors.Wrap(io.ErrUnexpectedEOF, dErrors.CodeUpstream, "assistant request failed"))

		rec := s.post(s.router(s.chat, s.contact), PathChat, testutil.ChatBody("hi"))

		s.Equal(http.StatusBadGateway, rec.Code)
		body := s.failure(rec)
		s.Equal(dErrors.CodeUpstream, body.Category)
		s.True(body.Retryable)
		s.NotContains(rec.Body.String(), "unexpected EOF")
	})

	s.Run("open circuit is SERVICE_UNAVAILABLE", func() {
		s.chat.EXPECT().Chat(gomock.Any(), gomock.Any()).
			Return("", dErrors.New(dErrors.CodeUnavailable, "assistant is temporarily unavailable"))

		rec := s.post(s.router(s.chat, s.contact), PathChat, testutil.ChatBody("hi"))

		s.Equal(http.StatusServiceUnavailable, rec.Code)
		s.Equal(dErrors.CodeUnavailable, s.failure(rec).Category)
	})

	s.Run("eleventh request in the window is rate limited", func() {
		h := s.router(s.chat, s.contact)
		s.chat.EXPECT().Chat(gomock.Any(), gomock.Any()).Return("ok", nil).Times(10)
		for range 10 {
			s.Require().Equal(http.StatusOK, s.post(h, PathChat, testutil.ChatBody("hi")).Code)
		}

		rec := s.post(h, PathChat, testutil.ChatBody("hi"))

		s.Equal(http.StatusTooManyRequests, rec.Code)
		body := s.failure(rec)
		s.Equal(dErrors.CodeRateLimited, body.Category)
		s.Equal(900, body.RetryAfterSeconds)
		s.Equal("900", rec.Header().Get("Retry-After"))
		s.Equal("0", rec.Header().Get("X-RateLimit-Remaining"))
	})

	s.Run("panic is recovered into SYSTEM_ERROR", func() {
		s.chat.EXPECT().Chat(gomock.Any(), gomock.Any()).DoAndReturn(func(context.Context, string) (string, error) {
			panic("boom")
		})

		rec := s.post(s.router(s.chat, s.contact), PathChat, testutil.ChatBody("hi"))

		s.Equal(http.StatusInternalServerError, rec.Code)
		s.Equal(dErrors.CodeInternal, s.failure(rec).Category)
		s.Contains(s.logs.String(), "panic_recovered")
	})
}

// =============================================================================
// Contact
// =============================================================================

func (s *RouterSuite) TestContact() {
	s.Run("both paths submit the sanitized form", func() {
		h := s.router(s.chat, s.contact)
		want := contact.Submission{
			Name:    "Ada Lovelace",
			Email:   "ada@example.com",
			Subject: "Project enquiry",
			Message: "I would like to talk about a small engine project.",
		}
		s.contact.EXPECT().Submit(gomock.Any(), want).
			Return(&contact.Result{Message: "thanks", Sent: true, NotificationSent: true, AutoReplySent: true}, nil).
			Times(2)

		for _, path := range []string{PathContact, PathContactAlias} {
			rec := s.post(h, path, testutil.NewContactFormBuilder().Reader())
			s.Equal(http.StatusOK, rec.Code, path)
			data := s.success(rec)
			s.Equal(true, data["sent"])
			s.Equal(true, data["autoReplySent"])
		}
	})

	s.Run("partial delivery is still a success", func() {
		s.contact.EXPECT().Submit(gomock.Any(), gomock.Any()).
			Return(&contact.Result{Message: "thanks", Sent: true, NotificationSent: true}, nil)

		rec := s.post(s.router(s.chat, s.contact), PathContact, testutil.NewContactFormBuilder().Reader())

		s.Equal(http.StatusOK, rec.Code)
		data := s.success(rec)
		s.Equal(true, data["notificationSent"])
		s.Equal(false, data["autoReplySent"])
	})

	s.Run("every invalid field is reported in order", func() {
		body := testutil.NewContactFormBuilder().WithEmail("not-an-email").Without("subject").WithPhone(strings.Repeat("1", 31)).Reader()

		rec := s.post(s.router(s.chat, s.contact), PathContact, body)

		s.Equal(http.StatusBadRequest, rec.Code)
		details := s.failure(rec).Details
		s.Require().Len(details, 3)
		s.Equal("email", details[0].Field)
		s.Equal("INVALID_EMAIL", details[0].Kind)
		s.Equal("subject", details[1].Field)
		s.Equal("REQUIRED_FIELD", details[1].Kind)
		s.Equal("phone", details[2].Field)
		s.Equal("TOO_LONG", details[2].Kind)
	})

	s.Run("phone length is measured after cleaning", func() {
		want := contact.Submission{
			Name:    "Ada Lovelace",
			Email:   "ada@example.com",
			Subject: "Project enquiry",
			Message: "I would like to talk about a small engine project.",
			Phone:   "555 123 4567 work cell",
		}
		s.contact.EXPECT().Submit(gomock.Any(), want).Return(&contact.Result{Sent: true}, nil)
		body := testutil.NewContactFormBuilder().WithPhone("(555) (123) (4567) [work] {cell}").Reader()

		rec := s.post(s.router(s.chat, s.contact), PathContact, body)

		s.Equal(http.StatusOK, rec.Code)
	})

	s.Run("both emails failing is EMAIL_ERROR", func() {
		s.contact.EXPECT().Submit(gomock.Any(), gomock.Any()).
			Return(nil, dErrors.New(dErrors.CodeEmail, "contact emails could not be sent"))

		rec := s.post(s.router(s.chat, s.contact), PathContact, testutil.NewContactFormBuilder().Reader())

		s.Equal(http.StatusBadGateway, rec.Code)
		s.Equal(dErrors.CodeEmail, s.failure(rec).Category)
	})

	s.Run("fourth submission in an hour is rate limited", func() {
		h := s.router(s.chat, s.contact)
		s.contact.EXPECT().Submit(gomock.Any(), gomock.Any()).Return(&contact.Result{Sent: true}, nil).Times(3)
		for range 3 {
			s.Require().Equal(http.StatusOK, s.post(h, PathContact, testutil.NewContactFormBuilder().Reader()).Code)
		}

		rec := s.post(h, PathContactAlias, testutil.NewContactFormBuilder().Reader())

		s.Equal(http.StatusTooManyRequests, rec.Code)
		s.Equal(3600, s.failure(rec).RetryAfterSeconds)
	})
}

// =============================================================================
// Feature toggles and /config
// =============================================================================

func (s *RouterSuite) TestConfigScript() {
	rec := s.get(s.router(s.chat, s.contact), PathConfig)

	s.Equal(http.StatusOK, rec.Code)
	s.Equal("*", rec.Header().Get("Access-Control-Allow-Origin"))
	s.Contains(rec.Header().Get("Content-Type"), "application/javascript")
	s.Equal("30", rec.Header().Get("X-RateLimit-Limit"))

	script := rec.Body.String()
	s.True(strings.HasPrefix(script, "window.portfolioConfig = "))
	raw := strings.TrimSuffix(strings.TrimSpace(strings.TrimPrefix(script, "window.portfolioConfig = ")), ";")
	var cfg ClientConfig
	s.Require().NoError(json.Unmarshal([]byte(raw), &cfg))
	s.True(cfg.ChatbotEnabled)
	s.True(cfg.MessagingEnabled)
	s.Equal(PathChat, cfg.APIEndpoints["chatbot"])
	s.Equal(PathContact, cfg.APIEndpoints["contact"])
}

func (s *RouterSuite) TestAPICallsDoNotSpendConfigBudget() {
	h := s.router(s.chat, s.contact)
	s.chat.EXPECT().Chat(gomock.Any(), gomock.Any()).Return("ok", nil).Times(10)
	for range 10 {
		s.Require().Equal(http.StatusOK, s.post(h, PathChat, testutil.ChatBody("hi")).Code)
	}

	for i := range 30 {
		rec := s.get(h, PathConfig)
		s.Require().Equal(http.StatusOK, rec.Code, "config request %d", i+1)
	}
	s.Equal(http.StatusTooManyRequests, s.get(h, PathConfig).Code)
}

func (s *RouterSuite) TestDisabledFeaturesAreNotRouted() {
	h := s.router(nil, s.contact)

	s.Equal(http.StatusNotFound, s.post(h, PathChat, testutil.ChatBody("hi")).Code)

	rec := s.get(h, PathConfig)
	s.Contains(rec.Body.String(), `"chatbotEnabled":false`)
	s.NotContains(rec.Body.String(), PathChat)

	h = s.router(s.chat, nil)
	s.Equal(http.StatusNotFound, s.post(h, PathContact, testutil.NewContactFormBuilder().Reader()).Code)
	s.Equal(http.StatusNotFound, s.post(h, PathContactAlias, testutil.NewContactFormBuilder().Reader()).Code)
}

// =============================================================================
// Platform routes
// =============================================================================

func (s *RouterSuite) TestProbesAndMetrics() {
	h := s.router(s.chat, s.contact)

	s.Equal(http.StatusOK, s.get(h, "/health/live").Code)
	s.Equal(http.StatusOK, s.get(h, "/health/ready").Code)

	s.Equal(http.StatusNoContent, func() int {
		req := httptest.NewRequest(http.MethodOptions, PathChat, nil)
		req.Header.Set("Origin", testutil.TestOrigin)
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		return rec.Code
	}())

	rec := s.get(h, "/metrics")
	s.Equal(http.StatusOK, rec.Code)
	s.Contains(rec.Body.String(), "folio_admission_outcomes_total")
	s.Contains(rec.Body.String(), "folio_endpoint_latency_seconds")
}

func (s *RouterSuite) TestInstanceThrottle() {
	s.throttle = rate.NewLimiter(rate.Limit(0.0001), 1)
	h := s.router(s.chat, s.contact)

	s.Equal(http.StatusOK, s.get(h, PathConfig).Code)
	rec := s.get(h, PathConfig)

	s.Equal(http.StatusServiceUnavailable, rec.Code)
	s.Equal("1", rec.Header().Get("Retry-After"))
	s.Equal(http.StatusOK, s.get(h, "/health/live").Code, "probes bypass the throttle")
}
