package admission

import (
	"context"
	"log/slog"
	"maps"
	"net/http"

	"github.com/mssola/useragent"

	"folio/internal/admission/origin"
	"folio/internal/admission/sanitize"
	"folio/internal/ratelimit/middleware"
	"folio/internal/ratelimit/models"
	dErrors "folio/pkg/domain-errors"
	"folio/pkg/platform/httputil"
	"folio/pkg/platform/privacy"
	"folio/pkg/requestcontext"
	"folio/pkg/validation"
)

const (
	productionCSP  = "default-src 'none'; script-src 'self'; style-src 'self' 'unsafe-inline'; img-src 'self' data: https:; connect-src 'self' https://*.googleapis.com; frame-ancestors 'none'"
	developmentCSP = "default-src 'self'; script-src 'self' 'unsafe-eval'; style-src 'self' 'unsafe-inline'; img-src 'self' data: https:; connect-src 'self' https: http: ws: wss:"
	hstsValue      = "max-age=31536000; includeSubDomains"

	allowMethods = "POST, OPTIONS"
	allowHeaders = "Content-Type, X-Requested-With"
	corsMaxAge   = "3600"
)

// LogStage writes one security line per request.
func LogStage(logger *slog.Logger) Stage {
	return NewStage("log", StateReceived, func(ctx context.Context, x *Exchange) (*Reply, error) {
		ua := useragent.New(x.R.UserAgent())
		browser, version := ua.Browser()
		logger.InfoContext(ctx, "security_request",
			"endpoint", x.Endpoint,
			"method", x.R.Method,
			"ip_prefix", privacy.AnonymizeIP(x.ClientIP),
			"origin", x.R.Header.Get("Origin"),
			"browser", browser,
			"browser_version", version,
			"os", ua.OS(),
			"bot", ua.Bot(),
			"mobile", ua.Mobile(),
			"request_id", requestcontext.RequestID(ctx),
		)
		return nil, nil
	})
}

// HeadersStage sets hardening and CORS headers before anything is written.
func HeadersStage(guard *origin.Guard, dev bool) Stage {
	return NewStage("security_headers", StateReceived, func(_ context.Context, x *Exchange) (*Reply, error) {
		h := x.W.Header()
		h.Set("X-Content-Type-Options", "nosniff")
		h.Set("X-Frame-Options", "DENY")
		h.Set("X-XSS-Protection", "1; mode=block")
		h.Set("Referrer-Policy", "strict-origin-when-cross-origin")
		if dev {
			h.Set("Content-Security-Policy", developmentCSP)
		} else {
			h.Set("Content-Security-Policy", productionCSP)
			h.Set("Strict-Transport-Security", hstsValue)
		}

		if allow := guard.AllowOrigin(x.R.Header.Get("Origin")); allow != "" {
			h.Set("Access-Control-Allow-Origin", allow)
		}
		h.Add("Vary", "Origin")
		h.Set("Access-Control-Allow-Methods", allowMethods)
		h.Set("Access-Control-Allow-Headers", allowHeaders)
		h.Set("Access-Control-Max-Age", corsMaxAge)
		return nil, nil
	})
}

// PreflightStage answers OPTIONS with 204 and rejects anything but POST.
func PreflightStage() Stage {
	return NewStage("preflight", StateReceived, func(_ context.Context, x *Exchange) (*Reply, error) {
		switch x.R.Method {
		case http.MethodOptions:
			return &Reply{Status: http.StatusNoContent, Empty: true}, nil
		case http.MethodPost:
			return nil, nil
		default:
			x.W.Header().Set("Allow", allowMethods)
			return nil, dErrors.New(dErrors.CodeMethodNotAllowed, "Method not allowed. Use POST.")
		}
	})
}

// RateLimitStage charges the client against every class in order.
func RateLimitStage(limiter RateLimiter, classes ...models.LimitClass) Stage {
	return NewStage("rate_limit", StateRateChecked, func(ctx context.Context, x *Exchange) (*Reply, error) {
		decision, err := limiter.AdmitAll(ctx, classes, x.ClientIP)
		if err != nil {
			return nil, err
		}
		x.Decision = decision
		middleware.SetHeaders(x.W, decision)
		if !decision.Admitted {
			return nil, middleware.RejectionError(decision)
		}
		return nil, nil
	})
}

// OriginStage rejects requests from sites outside the allow-list.
func OriginStage(guard *origin.Guard) Stage {
	return NewStage("origin_check", StateOriginChecked, func(_ context.Context, x *Exchange) (*Reply, error) {
		if !guard.IsAllowed(x.R.Header.Get("Origin"), x.R.Referer()) {
			return nil, dErrors.New(dErrors.CodeForbidden, "Access denied: request origin is not allowed.")
		}
		return nil, nil
	})
}

// Form is a decoded request body that knows its sanitization bounds.
type Form interface {
	Fields() []sanitize.Field
}

// ValidateForm decodes a JSON body into T, runs the sanitizer over every
// field and then the struct tag checks. Sanitizer errors win since they cover
// all fields in input order. Clean values land in Exchange.Fields.
func ValidateForm[T Form]() Stage {
	return NewStage("field_validate", StateValidated, func(_ context.Context, x *Exchange) (*Reply, error) {
		if err := httputil.RequireJSON(x.R); err != nil {
			return nil, err
		}
		form, err := httputil.DecodeJSON[T](x.W, x.R, httputil.DefaultMaxBodyBytes)
		if err != nil {
			return nil, err
		}
		res := sanitize.Validate((*form).Fields()...)
		if err := res.Err(); err != nil {
			return nil, err
		}
		if err := validation.Validate(form); err != nil {
			return nil, err
		}
		maps.Copy(x.Fields, res.Fields)
		return nil, nil
	})
}
