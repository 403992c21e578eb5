// Package assistant answers chat messages and drafts contact auto-replies
// with a generative AI model speaking as the site owner's assistant.
package assistant

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"folio/internal/assistant/gemini"
	"folio/internal/platform/tracer"
	dErrors "folio/pkg/domain-errors"
	"folio/pkg/platform/circuit"
	"folio/pkg/requestcontext"
)

const defaultTimeout = 25 * time.Second

// Purpose labels why the model was called.
type Purpose string

const (
	PurposeChat      Purpose = "chat"
	PurposeAutoReply Purpose = "auto_reply"
)

const (
	outcomeSuccess  = "success"
	outcomeFailure  = "failure"
	outcomeRejected = "rejected"
)

// Generator produces text for a prompt.
type Generator interface {
	Generate(ctx context.Context, prompt gemini.Prompt) (string, error)
}

// Persona supplies the background document the assistant speaks from.
type Persona interface {
	Persona(ctx context.Context) string
}

type staticPersona string

func (p staticPersona) Persona(context.Context) string { return string(p) }

type Service struct {
	generator Generator
	persona   Persona
	breaker   *circuit.Breaker
	ownerName string
	model     string
	timeout   time.Duration
	logger    *slog.Logger
	tracer    tracer.Tracer
	metrics   *Metrics
}

type Option func(*Service)

func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) {
		if logger != nil {
			s.logger = logger
		}
	}
}

func WithTracer(t tracer.Tracer) Option {
	return func(s *Service) {
		if t != nil {
			s.tracer = t
		}
	}
}

func WithMetrics(m *Metrics) Option {
	return func(s *Service) {
		s.metrics = m
	}
}

func WithPersona(p Persona) Option {
	return func(s *Service) {
		if p != nil {
			s.persona = p
		}
	}
}

func WithBreaker(b *circuit.Breaker) Option {
	return func(s *Service) {
		if b != nil {
			s.breaker = b
		}
	}
}

// WithTimeout bounds each model call.
func WithTimeout(d time.Duration) Option {
	return func(s *Service) {
		if d > 0 {
			s.timeout = d
		}
	}
}

func WithOwnerName(name string) Option {
	return func(s *Service) {
		if name = strings.TrimSpace(name); name != "" {
			s.ownerName = name
		}
	}
}

// WithModelName labels spans with the upstream model.
func WithModelName(model string) Option {
	return func(s *Service) {
		s.model = model
	}
}

func New(generator Generator, opts ...Option) (*Service, error) {
	if generator == nil {
		return nil, errors.New("generator is required")
	}
	s := &Service{
		generator: generator,
		persona:   staticPersona(strings.TrimSpace(fallbackPersona)),
		breaker:   circuit.New("gemini", circuit.WithFailureThreshold(5), circuit.WithCooldown(30*time.Second)),
		ownerName: "the site owner",
		timeout:   defaultTimeout,
		logger:    slog.Default(),
		tracer:    tracer.NewNoop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Chat answers one chat message. Failures are API_ERROR, or
// SERVICE_UNAVAILABLE while the circuit is open.
func (s *Service) Chat(ctx context.Context, message string) (string, error) {
	return s.generate(ctx, PurposeChat, func() gemini.Prompt {
		return gemini.Prompt{
			System: s.systemPrompt(ctx, fmt.Sprintf("This is a chatbot conversation on %s's portfolio website.", s.ownerName)),
			User:   message,
		}
	})
}

// AutoReply drafts a short acknowledgement for a contact submission.
func (s *Service) AutoReply(ctx context.Context, name, subject, message string) (string, error) {
	return s.generate(ctx, PurposeAutoReply, func() gemini.Prompt {
		return gemini.Prompt{
			System: s.systemPrompt(ctx, fmt.Sprintf("Contact form submission - Name: %s, Subject: %s, Message: %s", name, subject, message)),
			User:   "Generate a professional auto-reply acknowledging this contact form submission. Keep it brief but personalized.",
		}
	})
}

// CircuitState reports the breaker state for health output.
func (s *Service) CircuitState() circuit.State {
	return s.breaker.State()
}

// generate builds the prompt only once the breaker admits the call, so an
// open circuit never touches the persona source.
func (s *Service) generate(ctx context.Context, purpose Purpose, build func() gemini.Prompt) (_ string, err error) {
	if !s.breaker.Allow() {
		if s.metrics != nil {
			s.metrics.observe(purpose, outcomeRejected, 0)
		}
		return "", dErrors.New(dErrors.CodeUnavailable, "assistant is temporarily unavailable")
	}

	start := time.Now()
	prompt := build()
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.timeout)
	defer cancel()

	ctx, span := s.tracer.Start(ctx, tracer.SpanAssistantGenerate,
		tracer.String(tracer.AttrModel, s.model),
		tracer.String(tracer.AttrPurpose, string(purpose)),
		tracer.Int(tracer.AttrPromptChars, len(prompt.System)+len(prompt.User)),
	)
	defer func() { span.End(err) }()

	text, err := s.generator.Generate(ctx, prompt)
	if err != nil {
		s.recordFailure(ctx, err)
		span.SetAttributes(tracer.String(tracer.AttrCircuitState, s.breaker.State().String()))
		if s.metrics != nil {
			s.metrics.observe(purpose, outcomeFailure, time.Since(start))
		}
		return "", dErrors.Wrap(err, dErrors.CodeUpstream, "assistant request failed")
	}

	if s.breaker.RecordSuccess().Closed {
		s.setCircuitGauge(false)
		s.logger.InfoContext(ctx, "assistant_circuit_closed", "breaker", s.breaker.Name())
	}
	span.SetAttributes(tracer.Int(tracer.AttrReplyChars, len(text)))
	if s.metrics != nil {
		s.metrics.observe(purpose, outcomeSuccess, time.Since(start))
	}
	return text, nil
}

// recordFailure trips the breaker on upstream trouble. Blocked or rejected
// prompts say nothing about upstream health and are not counted.
func (s *Service) recordFailure(ctx context.Context, err error) {
	switch gemini.CategoryOf(err) {
	case gemini.CategoryBlocked, gemini.CategoryBadRequest:
		return
	}
	if s.breaker.RecordFailure().Opened {
		s.setCircuitGauge(true)
		s.logger.WarnContext(ctx, "assistant_circuit_opened",
			"breaker", s.breaker.Name(),
			"category", gemini.CategoryOf(err),
			"request_id", requestcontext.RequestID(ctx),
		)
	}
}

func (s *Service) setCircuitGauge(open bool) {
	if s.metrics == nil {
		return
	}
	if open {
		s.metrics.CircuitOpen.Set(1)
	} else {
		s.metrics.CircuitOpen.Set(0)
	}
}

func (s *Service) systemPrompt(ctx context.Context, contextLine string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "You are %s's professional assistant. Your role is to provide helpful, accurate, and professional responses about %s's background, skills, and experience.\n\n", s.ownerName, s.ownerName)
	b.WriteString("PROFESSIONAL DATA:\n")
	b.WriteString(s.persona.Persona(ctx))
	b.WriteString("\n\nGUIDELINES:\n")
	b.WriteString("1. Be professional, friendly, and concise\n")
	fmt.Fprintf(&b, "2. Use first-person perspective when speaking as %s\n", s.ownerName)
	b.WriteString("3. Stay focused on professional topics\n")
	b.WriteString("4. If asked about personal details not provided, politely redirect to professional matters\n")
	b.WriteString("5. Always maintain a positive and engaging tone\n")
	b.WriteString("6. Keep responses to 2-3 sentences maximum for contact form replies\n\n")
	if contextLine != "" {
		b.WriteString("CONTEXT: ")
		b.WriteString(contextLine)
		b.WriteString("\n\n")
	}
	b.WriteString("Respond professionally and helpfully to the user's inquiry.")
	return b.String()
}
