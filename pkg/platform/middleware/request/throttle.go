package request

import (
	"log/slog"
	"net/http"

	"golang.org/x/time/rate"

	dErrors "folio/pkg/domain-errors"
	"folio/pkg/platform/httputil"
	"folio/pkg/requestcontext"
)

// Throttle caps the total request rate this instance accepts, independent
// of any per-client limit. Excess requests get 503 with Retry-After: 1.
// A nil limiter disables the check.
func Throttle(limiter *rate.Limiter, logger *slog.Logger, dev bool) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		if limiter == nil {
			return next
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if limiter.Allow() {
				next.ServeHTTP(w, r)
				return
			}
			ctx := r.Context()
			logger.WarnContext(ctx, "instance_throttled",
				"path", r.URL.Path,
				"request_id", requestcontext.RequestID(ctx),
			)
			err := &dErrors.Error{
				Code:       dErrors.CodeUnavailable,
				Message:    "instance request budget exhausted",
				RetryAfter: 1,
			}
			httputil.WriteError(w, err, requestcontext.Now(ctx), dev)
		})
	}
}
