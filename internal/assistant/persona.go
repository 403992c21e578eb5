package assistant

import (
	"context"
	_ "embed"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"folio/internal/platform/tracer"
)

//go:embed persona_fallback.txt
var fallbackPersona string

const (
	defaultPersonaTTL     = time.Hour
	defaultPersonaTimeout = 5 * time.Second
	defaultPersonaBackoff = time.Minute
	maxPersonaBytes       = 64 << 10
)

// PersonaSource serves the professional background the assistant speaks
// from. The remote document is cached for a TTL; concurrent refreshes share
// one fetch. On failure the last good copy is served, or the embedded
// fallback when there is none, and no refetch happens until the backoff
// has passed.
type PersonaSource struct {
	url      string
	client   *http.Client
	ttl      time.Duration
	backoff  time.Duration
	fallback string
	logger   *slog.Logger
	tracer   tracer.Tracer
	now      func() time.Time

	group     singleflight.Group
	mu        sync.RWMutex
	cached    string
	fetchedAt time.Time
	retryAt   time.Time
}

type PersonaOption func(*PersonaSource)

func WithPersonaTTL(ttl time.Duration) PersonaOption {
	return func(p *PersonaSource) {
		if ttl > 0 {
			p.ttl = ttl
		}
	}
}

// WithPersonaBackoff sets how long a failed fetch suppresses further fetches.
func WithPersonaBackoff(d time.Duration) PersonaOption {
	return func(p *PersonaSource) {
		if d > 0 {
			p.backoff = d
		}
	}
}

func WithPersonaHTTPClient(c *http.Client) PersonaOption {
	return func(p *PersonaSource) {
		if c != nil {
			p.client = c
		}
	}
}

func WithPersonaLogger(logger *slog.Logger) PersonaOption {
	return func(p *PersonaSource) {
		if logger != nil {
			p.logger = logger
		}
	}
}

func WithPersonaTracer(t tracer.Tracer) PersonaOption {
	return func(p *PersonaSource) {
		if t != nil {
			p.tracer = t
		}
	}
}

// WithPersonaClock overrides the time source, for tests.
func WithPersonaClock(now func() time.Time) PersonaOption {
	return func(p *PersonaSource) {
		if now != nil {
			p.now = now
		}
	}
}

// NewPersonaSource reads from url. An empty url always serves the fallback.
func NewPersonaSource(url string, opts ...PersonaOption) *PersonaSource {
	p := &PersonaSource{
		url:      strings.TrimSpace(url),
		client:   &http.Client{Timeout: defaultPersonaTimeout},
		ttl:      defaultPersonaTTL,
		backoff:  defaultPersonaBackoff,
		fallback: strings.TrimSpace(fallbackPersona),
		logger:   slog.Default(),
		tracer:   tracer.NewNoop(),
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Persona never fails.
func (p *PersonaSource) Persona(ctx context.Context) string {
	if p.url == "" {
		return p.fallback
	}

	now := p.now()
	p.mu.RLock()
	cached := p.cached
	fresh := cached != "" && now.Sub(p.fetchedAt) < p.ttl
	backingOff := now.Before(p.retryAt)
	p.mu.RUnlock()
	if fresh {
		return cached
	}
	if backingOff {
		if cached != "" {
			return cached
		}
		return p.fallback
	}

	v, err, _ := p.group.Do("persona", func() (any, error) {
		text, err := p.fetch(context.WithoutCancel(ctx))
		if err != nil {
			p.mu.Lock()
			p.retryAt = p.now().Add(p.backoff)
			p.mu.Unlock()
		}
		return text, err
	})
	if err != nil {
		p.logger.WarnContext(ctx, "persona_fetch_failed", "error", err, "stale", cached != "")
		if cached != "" {
			return cached
		}
		return p.fallback
	}
	return v.(string)
}

func (p *PersonaSource) fetch(ctx context.Context) (_ string, err error) {
	ctx, span := p.tracer.Start(ctx, tracer.SpanAssistantPersona)
	defer func() { span.End(err) }()

	ctx, cancel := context.WithTimeout(ctx, defaultPersonaTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.url, nil)
	if err != nil {
		return "", fmt.Errorf("build persona request: %w", err)
	}
	resp, err := p.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("fetch persona: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("fetch persona: unexpected status %d", resp.StatusCode)
	}
	body, err := io.ReadAll(io.LimitReader(resp.Body, maxPersonaBytes))
	if err != nil {
		return "", fmt.Errorf("read persona: %w", err)
	}
	text := strings.TrimSpace(string(body))
	if text == "" {
		return "", errors.New("persona document is empty")
	}

	p.mu.Lock()
	p.cached = text
	p.fetchedAt = p.now()
	p.retryAt = time.Time{}
	p.mu.Unlock()
	return text, nil
}
