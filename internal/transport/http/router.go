package httptransport

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/time/rate"

	"folio/internal/admission"
	"folio/internal/platform/health"
	ratelimitmw "folio/internal/ratelimit/middleware"
	"folio/internal/ratelimit/models"
	"folio/pkg/platform/middleware/metadata"
	"folio/pkg/platform/middleware/request"
	"folio/pkg/platform/middleware/requesttime"
)

// RouterDeps are the collaborators NewRouter wires together.
type RouterDeps struct {
	Handler   *Handler
	Pipeline  *admission.Pipeline
	RateLimit *ratelimitmw.Middleware
	Metadata  *metadata.Middleware
	Health    *health.Handler
	Gatherer  prometheus.Gatherer
	Metrics   *request.Metrics
	// Throttle caps this instance's total request rate. Nil disables it.
	Throttle *rate.Limiter
	Logger   *slog.Logger
	Dev      bool
}

// NewRouter mounts probes, metrics, /config and the enabled API endpoints.
func NewRouter(d RouterDeps) http.Handler {
	logger := d.Logger
	if logger == nil {
		logger = slog.Default()
	}
	meta := d.Metadata
	if meta == nil {
		meta = metadata.NewMiddleware(metadata.Config{})
	}

	r := chi.NewRouter()
	r.Use(request.Recovery(logger, d.Dev))
	r.Use(request.RequestID)
	r.Use(requesttime.Middleware)
	r.Use(meta.Handler)
	r.Use(request.Logger(logger))
	r.Use(request.LatencyMiddleware(d.Metrics))

	if d.Health != nil {
		d.Health.Register(r)
	}
	if d.Gatherer != nil {
		r.Handle("/metrics", promhttp.HandlerFor(d.Gatherer, promhttp.HandlerOpts{}))
	}

	r.Group(func(r chi.Router) {
		r.Use(request.Throttle(d.Throttle, logger, d.Dev))

		if d.RateLimit != nil {
			r.With(d.RateLimit.RateLimit(models.ClassGlobal)).Get(PathConfig, d.Handler.handleConfig)
		} else {
			r.Get(PathConfig, d.Handler.handleConfig)
		}

		if d.Handler.chat != nil {
			r.Handle(PathChat, d.Pipeline.Handler(d.Handler.ChatRoute()))
		}
		if d.Handler.contact != nil {
			contactHandler := d.Pipeline.Handler(d.Handler.ContactRoute())
			r.Handle(PathContact, contactHandler)
			r.Handle(PathContactAlias, contactHandler)
		}
	})

	return r
}
