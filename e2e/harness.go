package e2e

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http/httptest"
	"sync"
	"time"

	"folio/internal/app"
	"folio/internal/contact"
	"folio/internal/platform/config"
	"folio/internal/platform/logger"
	generativeai "folio/mocks/generative-ai"
)

const (
	// SiteOrigin is the only origin the in-process server allows.
	SiteOrigin = "https://portfolio.test"
	ownerName  = "Folio Owner"
	ownerInbox = "owner@portfolio.test"
	siteSender = "site@portfolio.test"
)

var errMailRejected = errors.New("smtp: 554 message rejected")

// Outbox records contact emails instead of sending them.
type Outbox struct {
	mu      sync.Mutex
	sent    []contact.Message
	failing map[contact.Kind]bool
}

func NewOutbox() *Outbox {
	return &Outbox{failing: make(map[contact.Kind]bool)}
}

func (o *Outbox) Send(_ context.Context, msg contact.Message) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.failing[msg.Kind] {
		return errMailRejected
	}
	o.sent = append(o.sent, msg)
	return nil
}

// Fail makes every later message of kind fail.
func (o *Outbox) Fail(kind contact.Kind) {
	o.mu.Lock()
	o.failing[kind] = true
	o.mu.Unlock()
}

func (o *Outbox) Sent() []contact.Message {
	o.mu.Lock()
	defer o.mu.Unlock()
	return append([]contact.Message(nil), o.sent...)
}

// Harness is a full server running in this process against fakes.
type Harness struct {
	URL       string
	Outbox    *Outbox
	Generator *generativeai.Server

	api    *httptest.Server
	genSrv *httptest.Server
	cancel context.CancelFunc
	svc    *app.App
}

// Features toggles the optional endpoints of a harness.
type Features struct {
	Chatbot   bool
	Messaging bool
}

// StartHarness builds the production wiring with a fake generator and an
// in-memory outbox. Every harness has its own rate limit state.
func StartHarness(f Features) (*Harness, error) {
	h := &Harness{
		Outbox:    NewOutbox(),
		Generator: generativeai.New(generativeai.DefaultAPIKey, 0, nil),
	}
	h.genSrv = httptest.NewServer(h.Generator.Handler())

	cfg := config.Server{
		Addr:             ":0",
		Environment:      config.EnvProduction,
		ShutdownTimeout:  time.Second,
		ChatbotEnabled:   f.Chatbot,
		MessagingEnabled: f.Messaging,
		AllowedOrigins:   []string{SiteOrigin},
		RateLimit:        config.RateLimitConfig{SweepInterval: time.Hour, SuspiciousThreshold: 5},
		Email:            config.EmailConfig{From: siteSender, To: ownerInbox},
		Owner:            config.OwnerConfig{Name: ownerName, SiteURL: SiteOrigin},
		Gemini: config.GeminiConfig{
			APIKey:  generativeai.DefaultAPIKey,
			Model:   "gemini-1.5-flash",
			BaseURL: h.genSrv.URL,
		},
		ChatTimeout:    5 * time.Second,
		ContactTimeout: 5 * time.Second,
	}

	ctx, cancel := context.WithCancel(context.Background())
	svc, err := app.Build(ctx, cfg, logger.NewWithWriter(io.Discard, slog.LevelInfo, false),
		app.WithSender(h.Outbox),
		app.WithHTTPClient(h.genSrv.Client()),
	)
	if err != nil {
		cancel()
		h.genSrv.Close()
		return nil, err
	}
	svc.StartWorkers(ctx)

	h.svc = svc
	h.cancel = cancel
	h.api = httptest.NewServer(svc.Router)
	h.URL = h.api.URL
	return h, nil
}

func (h *Harness) Close() {
	h.api.Close()
	h.cancel()
	h.svc.Close()
	h.genSrv.Close()
}
