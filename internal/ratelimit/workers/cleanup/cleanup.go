package cleanup

import (
	"context"
	"log/slog"
	"time"

	"folio/internal/ratelimit/metrics"
	"folio/internal/ratelimit/models"
)

// Sweeper evicts expired rate limit state.
type Sweeper interface {
	Sweep(ctx context.Context) (*models.SweepResult, error)
}

type Option func(*SweepWorker)

func WithLogger(logger *slog.Logger) Option {
	return func(s *SweepWorker) {
		if logger != nil {
			s.logger = logger
		}
	}
}

func WithInterval(interval time.Duration) Option {
	return func(s *SweepWorker) {
		if interval > 0 {
			s.interval = interval
		}
	}
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(s *SweepWorker) {
		s.metrics = m
	}
}

// SweepWorker runs the limiter sweep on a fixed interval.
type SweepWorker struct {
	sweeper  Sweeper
	logger   *slog.Logger
	interval time.Duration
	metrics  *metrics.Metrics
}

func New(sweeper Sweeper, opts ...Option) *SweepWorker {
	worker := &SweepWorker{
		sweeper:  sweeper,
		logger:   slog.Default(),
		interval: time.Hour,
	}
	for _, opt := range opts {
		opt(worker)
	}
	return worker
}

// Start blocks until ctx is done, sweeping once per interval.
func (s *SweepWorker) Start(ctx context.Context) error {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			s.RunOnce(ctx) //nolint:errcheck // logged and counted inside RunOnce
		case <-ctx.Done():
			s.logger.Info("rate limit sweep worker stopping", "reason", ctx.Err())
			return ctx.Err()
		}
	}
}

// RunOnce executes a single sweep, logging and recording its outcome.
func (s *SweepWorker) RunOnce(ctx context.Context) (*models.SweepResult, error) {
	start := time.Now()
	res, err := s.sweeper.Sweep(ctx)
	duration := time.Since(start)

	if s.metrics != nil {
		s.metrics.ObserveSweepDuration(duration.Seconds())
	}

	if err != nil {
		s.logger.Error("rate_limit_sweep_failed",
			"error", err,
			"duration_ms", duration.Milliseconds(),
		)
		if s.metrics != nil {
			s.metrics.IncrementSweepRuns("error")
		}
		return nil, err
	}

	res.Duration = duration
	s.logger.Info("rate_limit_sweep_completed",
		"keys_removed", res.KeysRemoved,
		"violations_removed", res.ViolationsRemoved,
		"duration_ms", duration.Milliseconds(),
	)
	if s.metrics != nil {
		s.metrics.IncrementSweepRuns("success")
		s.metrics.AddSweepRemoved(res.KeysRemoved, res.ViolationsRemoved)
	}
	return res, nil
}
