package middleware

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"

	"folio/internal/ratelimit/models"
	dErrors "folio/pkg/domain-errors"
	"folio/pkg/platform/httputil"
	"folio/pkg/platform/privacy"
	"folio/pkg/requestcontext"
)

type RateLimiter interface {
	AdmitAll(ctx context.Context, classes []models.LimitClass, clientKey string) (*models.Decision, error)
}

type Middleware struct {
	limiter RateLimiter
	logger  *slog.Logger
	dev     bool
}

func New(limiter RateLimiter, logger *slog.Logger, dev bool) *Middleware {
	return &Middleware{
		limiter: limiter,
		logger:  logger,
		dev:     dev,
	}
}

// RateLimit enforces classes per client IP on plain routes. Store failures
// fail closed with a SYSTEM_ERROR envelope.
func (m *Middleware) RateLimit(classes ...models.LimitClass) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()
			ip := requestcontext.ClientIP(ctx)

			decision, err := m.limiter.AdmitAll(ctx, classes, ip)
			if err != nil {
				m.logger.Error("rate_limit_check_failed", "error", err, "ip_prefix", privacy.AnonymizeIP(ip), "path", r.URL.Path)
				httputil.WriteError(w, err, requestcontext.Now(ctx), m.dev)
				return
			}

			SetHeaders(w, decision)

			if !decision.Admitted {
				m.logger.Warn("rate_limit_exceeded",
					"ip_prefix", privacy.AnonymizeIP(ip),
					"class", decision.Class,
					"retry_after", decision.RetryAfter,
					"path", r.URL.Path,
				)
				httputil.WriteError(w, RejectionError(decision), requestcontext.Now(ctx), m.dev)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

// SetHeaders writes rate limit headers for a decision.
//
// Headers:
// - X-RateLimit-Limit: {limit}
// - X-RateLimit-Remaining: {remaining}
// - X-RateLimit-Reset: {unix timestamp}
func SetHeaders(w http.ResponseWriter, d *models.Decision) {
	if d == nil {
		return
	}
	w.Header().Set("X-RateLimit-Limit", strconv.Itoa(d.Limit))
	w.Header().Set("X-RateLimit-Remaining", strconv.Itoa(d.Remaining))
	w.Header().Set("X-RateLimit-Reset", strconv.FormatInt(d.ResetAt.Unix(), 10))
}

// RejectionError converts a rejected decision into the RATE_LIMIT_ERROR
// that the envelope writer turns into a 429 with Retry-After.
func RejectionError(d *models.Decision) error {
	return dErrors.RateLimited(d.Message, d.RetryAfter)
}
