// Package admission runs every public API request through an ordered list of
// stages (log, security headers, preflight, rate limit, origin check, field
// validation) before handing it to a dispatcher. The first stage that replies
// or fails ends the run, and exactly one response is written.
package admission

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"folio/internal/admission/origin"
	"folio/internal/ratelimit/models"
	dErrors "folio/pkg/domain-errors"
	"folio/pkg/platform/httputil"
	"folio/pkg/platform/privacy"
	"folio/pkg/requestcontext"
)

// Exchange is one request as it moves through the pipeline.
type Exchange struct {
	W        http.ResponseWriter
	R        *http.Request
	Endpoint string
	ClientIP string
	Now      time.Time

	// Decision is the rate limit verdict, set by the rate-limit stage.
	Decision *models.Decision
	// Fields holds sanitized input, set by the validation stage.
	Fields map[string]string

	state State
}

// State reports how far the exchange has progressed.
func (x *Exchange) State() State {
	return x.state
}

// advance moves to s when s is ahead of the current state.
func (x *Exchange) advance(s State) {
	if s > x.state {
		x.state = s
	}
}

// Reply is a terminal success response. A stage returning a nil Reply and
// nil error lets the request continue.
type Reply struct {
	Status  int
	Message string
	Data    any
	// Empty writes Status with no body.
	Empty bool
}

// Stage is one admission step.
type Stage interface {
	Name() string
	// Reaches is the state entered once the stage passes.
	Reaches() State
	Run(ctx context.Context, x *Exchange) (*Reply, error)
}

// Dispatcher performs the endpoint's work once admission succeeds.
type Dispatcher func(ctx context.Context, x *Exchange) (*Reply, error)

// Observer sees every finished exchange. Used by metrics and tests.
type Observer func(x *Exchange, status int)

// RateLimiter is the subset of the limiter the pipeline needs.
type RateLimiter interface {
	AdmitAll(ctx context.Context, classes []models.LimitClass, clientKey string) (*models.Decision, error)
}

type stageFunc struct {
	name    string
	reaches State
	run     func(ctx context.Context, x *Exchange) (*Reply, error)
}

func (s stageFunc) Name() string   { return s.name }
func (s stageFunc) Reaches() State { return s.reaches }
func (s stageFunc) Run(ctx context.Context, x *Exchange) (*Reply, error) {
	return s.run(ctx, x)
}

// NewStage adapts a function into a Stage.
func NewStage(name string, reaches State, run func(ctx context.Context, x *Exchange) (*Reply, error)) Stage {
	return stageFunc{name: name, reaches: reaches, run: run}
}

// Route binds one endpoint to its limit classes, input validation and work.
type Route struct {
	Name     string
	Classes  []models.LimitClass
	Validate Stage
	Dispatch Dispatcher
}

type Pipeline struct {
	guard     *origin.Guard
	limiter   RateLimiter
	logger    *slog.Logger
	dev       bool
	metrics   *Metrics
	observers []Observer
}

type Option func(*Pipeline)

func WithLogger(logger *slog.Logger) Option {
	return func(p *Pipeline) {
		if logger != nil {
			p.logger = logger
		}
	}
}

// WithDevelopment relaxes origin checks and exposes technical error text.
func WithDevelopment(dev bool) Option {
	return func(p *Pipeline) {
		p.dev = dev
	}
}

func WithMetrics(m *Metrics) Option {
	return func(p *Pipeline) {
		p.metrics = m
	}
}

func WithObserver(o Observer) Option {
	return func(p *Pipeline) {
		if o != nil {
			p.observers = append(p.observers, o)
		}
	}
}

func New(guard *origin.Guard, limiter RateLimiter, opts ...Option) *Pipeline {
	p := &Pipeline{
		guard:   guard,
		limiter: limiter,
		logger:  slog.Default(),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Stages returns the standard stage list for a route, in order.
func (p *Pipeline) Stages(route Route) []Stage {
	stages := []Stage{
		LogStage(p.logger),
		HeadersStage(p.guard, p.dev),
		PreflightStage(),
		RateLimitStage(p.limiter, route.Classes...),
		OriginStage(p.guard),
	}
	if route.Validate != nil {
		stages = append(stages, route.Validate)
	}
	return stages
}

// Handler serves route behind the standard stages.
func (p *Pipeline) Handler(route Route) http.Handler {
	return p.Serve(route.Name, p.Stages(route), route.Dispatch)
}

// Serve runs stages in order, then dispatch.
func (p *Pipeline) Serve(endpoint string, stages []Stage, dispatch Dispatcher) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		x := &Exchange{
			W:        w,
			R:        r,
			Endpoint: endpoint,
			ClientIP: requestcontext.ClientIP(ctx),
			Now:      requestcontext.Now(ctx),
			Fields:   make(map[string]string),
			state:    StateReceived,
		}

		for _, stage := range stages {
			reply, err := stage.Run(ctx, x)
			if err != nil {
				p.fail(ctx, x, stage.Name(), err)
				return
			}
			if reply != nil {
				p.reply(x, reply)
				return
			}
			x.advance(stage.Reaches())
		}

		x.advance(StateDispatched)
		reply, err := dispatch(ctx, x)
		if err != nil {
			p.fail(ctx, x, "dispatch", err)
			return
		}
		if reply == nil {
			reply = &Reply{Status: http.StatusOK}
		}
		p.reply(x, reply)
	})
}

func (p *Pipeline) reply(x *Exchange, reply *Reply) {
	status := reply.Status
	if status == 0 {
		status = http.StatusOK
	}
	if reply.Empty {
		x.W.WriteHeader(status)
	} else {
		httputil.WriteJSON(x.W, status, httputil.SuccessEnvelope{
			Success:   true,
			Message:   reply.Message,
			Data:      reply.Data,
			Timestamp: httputil.Timestamp(x.Now),
		})
	}
	p.finish(x, status)
}

// fail writes the error envelope and logs the failure. This is the only
// place pipeline failures are logged.
func (p *Pipeline) fail(ctx context.Context, x *Exchange, stage string, err error) {
	status := httputil.WriteError(x.W, err, x.Now, p.dev)
	code := dErrors.CodeOf(err)

	attrs := []any{
		"endpoint", x.Endpoint,
		"stage", stage,
		"state", x.state.String(),
		"category", code,
		"status", status,
		"ip_prefix", privacy.AnonymizeIP(x.ClientIP),
		"request_id", requestcontext.RequestID(ctx),
	}
	if x.Decision != nil && code == dErrors.CodeRateLimited {
		attrs = append(attrs, "class", x.Decision.Class, "retry_after", x.Decision.RetryAfter)
	}
	attrs = append(attrs, "error", err)

	if code.Upstream() || code == dErrors.CodeInternal {
		p.logger.ErrorContext(ctx, eventFor(code), attrs...)
	} else {
		p.logger.WarnContext(ctx, eventFor(code), attrs...)
	}
	p.finish(x, status)
}

func (p *Pipeline) finish(x *Exchange, status int) {
	terminal := x.state
	x.advance(StateResponded)
	if p.metrics != nil {
		p.metrics.ObserveOutcome(x.Endpoint, terminal, status)
	}
	for _, o := range p.observers {
		o(x, status)
	}
}

func eventFor(code dErrors.Code) string {
	switch code {
	case dErrors.CodeRateLimited:
		return "rate_limit_exceeded"
	case dErrors.CodeForbidden:
		return "origin_rejected"
	case dErrors.CodeValidation:
		return "validation_failed"
	case dErrors.CodeMethodNotAllowed:
		return "method_not_allowed"
	case dErrors.CodeEmail, dErrors.CodeUpstream, dErrors.CodeUnavailable:
		return "upstream_failed"
	default:
		return "request_failed"
	}
}
