package service

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"folio/internal/ratelimit/config"
	"folio/internal/ratelimit/metrics"
	"folio/internal/ratelimit/models"
	dErrors "folio/pkg/domain-errors"
	"folio/pkg/platform/privacy"
	"folio/pkg/requestcontext"
)

// Store holds one sliding window per key. Allow must prune, count and
// record atomically for a given key.
type Store interface {
	Allow(ctx context.Context, key string, limit int, window time.Duration, now time.Time) (*models.WindowResult, error)
	Count(ctx context.Context, key string, window time.Duration, now time.Time) (int, error)
	Reset(ctx context.Context, key string) error
	Sweep(ctx context.Context, now time.Time) (int, error)
}

// violation tracks rejections for one client.
type violation struct {
	count int
	last  time.Time
}

type Limiter struct {
	store   Store
	config  *config.Config
	logger  *slog.Logger
	metrics *metrics.Metrics

	mu         sync.Mutex
	violations map[string]*violation
}

type Option func(*Limiter)

func WithLogger(logger *slog.Logger) Option {
	return func(l *Limiter) {
		if logger != nil {
			l.logger = logger
		}
	}
}

func WithConfig(cfg *config.Config) Option {
	return func(l *Limiter) {
		if cfg != nil {
			l.config = cfg
		}
	}
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(l *Limiter) {
		l.metrics = m
	}
}

func New(store Store, opts ...Option) (*Limiter, error) {
	if store == nil {
		return nil, dErrors.New(dErrors.CodeInternal, "rate limit store is required")
	}
	l := &Limiter{
		store:      store,
		config:     config.DefaultConfig(),
		logger:     slog.Default(),
		violations: make(map[string]*violation),
	}
	for _, opt := range opts {
		opt(l)
	}
	return l, nil
}

// Admit records one request for clientKey against class when budget remains.
// A rejection is a decision, not an error; errors mean the limiter could not decide.
func (l *Limiter) Admit(ctx context.Context, class models.LimitClass, clientKey string) (*models.Decision, error) {
	limit, ok := l.config.Limit(class)
	if !ok {
		return nil, dErrors.New(dErrors.CodeInternal, "unknown rate limit class: "+string(class))
	}
	if clientKey == "" {
		clientKey = "unknown"
	}

	now := requestcontext.Now(ctx)
	res, err := l.store.Allow(ctx, models.Key(class, clientKey), limit.MaxRequests, limit.Window, now)
	if err != nil {
		l.recordDecision(class, "error")
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to check rate limit")
	}

	decision := &models.Decision{
		Admitted:  res.Allowed,
		Class:     class,
		Limit:     limit.MaxRequests,
		Remaining: max(0, limit.MaxRequests-res.Count),
		ResetAt:   now.Add(limit.Window),
	}
	if !res.Oldest.IsZero() {
		decision.ResetAt = res.Oldest.Add(limit.Window)
	}

	if res.Allowed {
		l.recordDecision(class, "admitted")
		return decision, nil
	}

	decision.RetryAfter = models.RetryAfterSeconds(res.Oldest, limit.Window, now)
	decision.Message = limit.Message
	l.recordDecision(class, "rejected")
	l.recordViolation(clientKey, class, now)
	return decision, nil
}

// AdmitAll checks classes in order and stops at the first rejection.
// When every class admits, the most restrictive decision is returned.
func (l *Limiter) AdmitAll(ctx context.Context, classes []models.LimitClass, clientKey string) (*models.Decision, error) {
	if len(classes) == 0 {
		return nil, dErrors.New(dErrors.CodeInternal, "no rate limit classes given")
	}
	var tightest *models.Decision
	for _, class := range classes {
		decision, err := l.Admit(ctx, class, clientKey)
		if err != nil {
			return nil, err
		}
		if !decision.Admitted {
			return decision, nil
		}
		if decision.MoreRestrictive(tightest) {
			tightest = decision
		}
	}
	return tightest, nil
}

// Remaining reports the unused budget of clientKey for class without consuming any.
func (l *Limiter) Remaining(ctx context.Context, class models.LimitClass, clientKey string) (int, error) {
	limit, ok := l.config.Limit(class)
	if !ok {
		return 0, dErrors.New(dErrors.CodeInternal, "unknown rate limit class: "+string(class))
	}
	count, err := l.store.Count(ctx, models.Key(class, clientKey), limit.Window, requestcontext.Now(ctx))
	if err != nil {
		return 0, dErrors.Wrap(err, dErrors.CodeInternal, "failed to read rate limit")
	}
	return max(0, limit.MaxRequests-count), nil
}

// Reset clears every class for clientKey and its violation history.
func (l *Limiter) Reset(ctx context.Context, clientKey string) error {
	for class := range l.config.Classes {
		if err := l.store.Reset(ctx, models.Key(class, clientKey)); err != nil {
			return dErrors.Wrap(err, dErrors.CodeInternal, "failed to reset rate limit")
		}
	}
	l.mu.Lock()
	delete(l.violations, clientKey)
	l.mu.Unlock()
	return nil
}

// Sweep evicts expired windows and stale violation counters.
func (l *Limiter) Sweep(ctx context.Context) (*models.SweepResult, error) {
	start := time.Now()
	now := requestcontext.Now(ctx)

	removed, err := l.store.Sweep(ctx, now)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to sweep rate limit store")
	}

	return &models.SweepResult{
		KeysRemoved:       removed,
		ViolationsRemoved: l.pruneViolations(now),
		Duration:          time.Since(start),
	}, nil
}

// Violations returns the live rejection count for clientKey.
func (l *Limiter) Violations(clientKey string) int {
	l.mu.Lock()
	defer l.mu.Unlock()
	if v, ok := l.violations[clientKey]; ok {
		return v.count
	}
	return 0
}

func (l *Limiter) recordViolation(clientKey string, class models.LimitClass, now time.Time) {
	l.mu.Lock()
	v, ok := l.violations[clientKey]
	if !ok {
		v = &violation{}
		l.violations[clientKey] = v
	}
	v.count++
	v.last = now
	count := v.count
	tracked := len(l.violations)
	l.mu.Unlock()

	if l.metrics != nil {
		l.metrics.SetTrackedViolators(tracked)
	}
	if threshold := l.config.SuspiciousThreshold; threshold > 0 && count == threshold {
		l.logger.Warn("suspicious_client",
			"ip_prefix", privacy.AnonymizeIP(clientKey),
			"violations", count,
			"last_class", class,
		)
		if l.metrics != nil {
			l.metrics.IncrementSuspiciousClients()
		}
	}
}

func (l *Limiter) pruneViolations(now time.Time) int {
	cutoff := now.Add(-l.config.ViolationTTL)

	l.mu.Lock()
	defer l.mu.Unlock()
	removed := 0
	for key, v := range l.violations {
		if !v.last.After(cutoff) {
			delete(l.violations, key)
			removed++
		}
	}
	if l.metrics != nil {
		l.metrics.SetTrackedViolators(len(l.violations))
	}
	return removed
}

func (l *Limiter) recordDecision(class models.LimitClass, outcome string) {
	if l.metrics != nil {
		l.metrics.IncrementDecision(string(class), outcome)
	}
}
