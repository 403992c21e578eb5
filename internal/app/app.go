// Package app assembles the HTTP service from configuration.
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"golang.org/x/time/rate"

	"folio/internal/admission"
	"folio/internal/admission/origin"
	"folio/internal/assistant"
	"folio/internal/assistant/gemini"
	"folio/internal/contact"
	"folio/internal/platform/config"
	"folio/internal/platform/health"
	"folio/internal/platform/redis"
	"folio/internal/platform/tracer"
	ratelimitconfig "folio/internal/ratelimit/config"
	"folio/internal/ratelimit/metrics"
	ratelimitmw "folio/internal/ratelimit/middleware"
	"folio/internal/ratelimit/service"
	ratelimitredis "folio/internal/ratelimit/store/redis"
	"folio/internal/ratelimit/store/window"
	"folio/internal/ratelimit/workers/cleanup"
	httptransport "folio/internal/transport/http"
	"folio/pkg/platform/middleware/metadata"
	"folio/pkg/platform/middleware/request"
)

const (
	redisKeyPrefix    = "folio:rl:"
	poolStatsInterval = 15 * time.Second
)

// App is the assembled service.
type App struct {
	Router   http.Handler
	Registry *prometheus.Registry

	sweeper *cleanup.SweepWorker
	redis   *redis.Client
	logger  *slog.Logger
}

type Option func(*options)

type options struct {
	sender     contact.Sender
	httpClient *http.Client
}

// WithSender replaces the SMTP mailer. The SMTP readiness check is skipped.
func WithSender(s contact.Sender) Option {
	return func(o *options) {
		o.sender = s
	}
}

// WithHTTPClient sets the client used for the generative API and persona.
func WithHTTPClient(c *http.Client) Option {
	return func(o *options) {
		o.httpClient = c
	}
}

// Build wires every collaborator from cfg. Disabled features get no service
// and their routes are not mounted.
func Build(ctx context.Context, cfg config.Server, log *slog.Logger, opts ...Option) (*App, error) {
	var o options
	for _, opt := range opts {
		opt(&o)
	}
	dev := cfg.IsDevelopment()

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	rdb, err := redis.New(ctx, cfg.Redis, redis.NewPoolMetrics(reg))
	if err != nil {
		return nil, fmt.Errorf("connect redis: %w", err)
	}

	var store service.Store
	if rdb != nil {
		store = ratelimitredis.New(rdb.Client, ratelimitredis.WithKeyPrefix(redisKeyPrefix))
		log.Info("rate limit store", "backend", "redis")
	} else {
		store = window.New()
		log.Info("rate limit store", "backend", "memory")
	}

	limitCfg := ratelimitconfig.DefaultConfig()
	if cfg.RateLimit.SuspiciousThreshold > 0 {
		limitCfg.SuspiciousThreshold = cfg.RateLimit.SuspiciousThreshold
	}
	limitMetrics := metrics.New(reg)
	limiter, err := service.New(store,
		service.WithConfig(limitCfg),
		service.WithLogger(log),
		service.WithMetrics(limitMetrics),
	)
	if err != nil {
		return nil, fmt.Errorf("build rate limiter: %w", err)
	}

	trc := tracer.NewOTel()
	healthHandler := health.New(cfg.Environment)
	healthHandler.SetFeature("chatbot", cfg.ChatbotEnabled)
	healthHandler.SetFeature("messaging", cfg.MessagingEnabled)
	if rdb != nil {
		healthHandler.RegisterCheck("redis", rdb.Health)
	}

	var chat httptransport.ChatService
	var replier contact.AutoReplier
	if cfg.ChatbotEnabled {
		svc, err := buildAssistant(cfg, reg, trc, log, o.httpClient)
		if err != nil {
			return nil, err
		}
		chat, replier = svc, svc
	}

	var contactSvc httptransport.ContactService
	if cfg.MessagingEnabled {
		sender := o.sender
		if sender == nil {
			mailer, err := contact.NewSMTPMailer(cfg.Email,
				contact.WithMailerTracer(trc),
				contact.WithMailerLogger(log),
			)
			if err != nil {
				return nil, fmt.Errorf("build mailer: %w", err)
			}
			healthHandler.RegisterCheck("smtp", mailer.Verify)
			sender = mailer
		}

		contactOpts := []contact.Option{
			contact.WithLogger(log),
			contact.WithTracer(trc),
			contact.WithMetrics(contact.NewMetrics(reg)),
			contact.WithTimeout(cfg.ContactTimeout),
		}
		if replier != nil {
			contactOpts = append(contactOpts, contact.WithAutoReplier(replier))
		}
		composer := contact.NewComposer(contact.Identity{
			OwnerName: cfg.Owner.Name,
			From:      cfg.Email.From,
			NotifyTo:  cfg.Email.To,
			SiteURL:   cfg.Owner.SiteURL,
		})
		svc, err := contact.New(sender, composer, contactOpts...)
		if err != nil {
			return nil, fmt.Errorf("build contact service: %w", err)
		}
		contactSvc = svc
	}

	guard := origin.New(cfg.AllowedOrigins, dev)
	pipeline := admission.New(guard, limiter,
		admission.WithLogger(log),
		admission.WithDevelopment(dev),
		admission.WithMetrics(admission.NewMetrics(reg)),
	)

	var throttle *rate.Limiter
	if cfg.Instance.RPS > 0 {
		throttle = rate.NewLimiter(rate.Limit(cfg.Instance.RPS), cfg.Instance.Burst)
	}

	router := httptransport.NewRouter(httptransport.RouterDeps{
		Handler:   httptransport.NewHandler(chat, contactSvc, log),
		Pipeline:  pipeline,
		RateLimit: ratelimitmw.New(limiter, log, dev),
		Metadata:  metadata.NewMiddleware(metadata.Config{TrustedProxies: cfg.TrustedProxies}),
		Health:    healthHandler,
		Gatherer:  reg,
		Metrics:   request.NewMetrics(reg),
		Throttle:  throttle,
		Logger:    log,
		Dev:       dev,
	})

	sweeper := cleanup.New(limiter,
		cleanup.WithLogger(log),
		cleanup.WithInterval(cfg.RateLimit.SweepInterval),
		cleanup.WithMetrics(limitMetrics),
	)

	return &App{
		Router:   router,
		Registry: reg,
		sweeper:  sweeper,
		redis:    rdb,
		logger:   log,
	}, nil
}

func buildAssistant(cfg config.Server, reg prometheus.Registerer, trc tracer.Tracer, log *slog.Logger, hc *http.Client) (*assistant.Service, error) {
	clientOpts := []gemini.Option{
		gemini.WithBaseURL(cfg.Gemini.BaseURL),
		gemini.WithModel(cfg.Gemini.Model),
	}
	personaOpts := []assistant.PersonaOption{
		assistant.WithPersonaLogger(log),
		assistant.WithPersonaTracer(trc),
	}
	if hc != nil {
		clientOpts = append(clientOpts, gemini.WithHTTPClient(hc))
		personaOpts = append(personaOpts, assistant.WithPersonaHTTPClient(hc))
	}

	client, err := gemini.New(cfg.Gemini.APIKey, clientOpts...)
	if err != nil {
		return nil, fmt.Errorf("build gemini client: %w", err)
	}
	svc, err := assistant.New(client,
		assistant.WithLogger(log),
		assistant.WithTracer(trc),
		assistant.WithMetrics(assistant.NewMetrics(reg)),
		assistant.WithPersona(assistant.NewPersonaSource(cfg.Gemini.PersonaURL, personaOpts...)),
		assistant.WithTimeout(cfg.ChatTimeout),
		assistant.WithOwnerName(cfg.Owner.Name),
		assistant.WithModelName(client.Model()),
	)
	if err != nil {
		return nil, fmt.Errorf("build assistant: %w", err)
	}
	return svc, nil
}

// StartWorkers runs background loops until ctx is done.
func (a *App) StartWorkers(ctx context.Context) {
	go func() {
		if err := a.sweeper.Start(ctx); err != nil && !errors.Is(err, context.Canceled) {
			a.logger.Error("rate limit sweep worker stopped", "error", err)
		}
	}()
	if a.redis != nil {
		go a.redis.RunPoolStats(ctx, poolStatsInterval, a.logger)
	}
}

// Close releases connections held by the app.
func (a *App) Close() {
	if a.redis == nil {
		return
	}
	if err := a.redis.Close(); err != nil {
		a.logger.Warn("redis close failed", "error", err)
	}
}
