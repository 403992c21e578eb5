// Package requesttime pins a single "now" per HTTP request so rate-limit
// decisions, envelope timestamps and reset headers agree with each other.
package requesttime

import (
	"net/http"
	"time"

	"folio/pkg/requestcontext"
)

// Middleware stores the request start time via requestcontext.WithTime.
func Middleware(next http.Handler) http.Handler {
	return MiddlewareWithClock(time.Now)(next)
}

// MiddlewareWithClock is Middleware with an injectable clock, used by
// feature tests that need to move time forward.
func MiddlewareWithClock(now func() time.Time) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := requestcontext.WithTime(r.Context(), now())
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
