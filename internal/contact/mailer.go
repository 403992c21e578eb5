package contact

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"gopkg.in/gomail.v2"

	"folio/internal/platform/config"
	"folio/internal/platform/tracer"
)

// ErrMailerNotConfigured is returned when SMTP credentials are missing.
var ErrMailerNotConfigured = errors.New("smtp mailer is not configured")

// dialer is the part of gomail.Dialer the mailer uses.
type dialer interface {
	Dial() (gomail.SendCloser, error)
	DialAndSend(m ...*gomail.Message) error
}

// SMTPMailer delivers messages over authenticated SMTP (STARTTLS on 587).
type SMTPMailer struct {
	dialer dialer
	tracer tracer.Tracer
	logger *slog.Logger
}

type MailerOption func(*SMTPMailer)

func WithMailerTracer(t tracer.Tracer) MailerOption {
	return func(m *SMTPMailer) {
		if t != nil {
			m.tracer = t
		}
	}
}

func WithMailerLogger(logger *slog.Logger) MailerOption {
	return func(m *SMTPMailer) {
		if logger != nil {
			m.logger = logger
		}
	}
}

func withDialer(d dialer) MailerOption {
	return func(m *SMTPMailer) {
		m.dialer = d
	}
}

// NewSMTPMailer builds a mailer from config. Credentials are required.
func NewSMTPMailer(cfg config.EmailConfig, opts ...MailerOption) (*SMTPMailer, error) {
	if cfg.User == "" || cfg.Password == "" {
		return nil, ErrMailerNotConfigured
	}
	m := &SMTPMailer{
		dialer: gomail.NewDialer(cfg.Host, cfg.Port, cfg.User, cfg.Password),
		tracer: tracer.NewNoop(),
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m, nil
}

// Send delivers msg. When ctx ends first Send returns its error and the
// SMTP exchange is left to finish in the background.
func (m *SMTPMailer) Send(ctx context.Context, msg Message) (err error) {
	ctx, span := m.tracer.Start(ctx, tracer.SpanMailSend,
		tracer.String(tracer.AttrMailKind, string(msg.Kind)),
		tracer.String(tracer.AttrRecipientHash, tracer.HashAddress(msg.To)),
	)
	defer func() { span.End(err) }()

	gm, err := buildMessage(msg)
	if err != nil {
		return err
	}

	done := make(chan error, 1)
	go func() {
		done <- m.dialer.DialAndSend(gm)
	}()

	select {
	case err := <-done:
		if err != nil {
			return fmt.Errorf("smtp send %s: %w", msg.Kind, err)
		}
		return nil
	case <-ctx.Done():
		span.AddEvent(tracer.EventSendDetached)
		go func() {
			if err := <-done; err != nil {
				m.logger.Warn("smtp_send_failed_after_deadline", "kind", msg.Kind, "error", err)
			}
		}()
		return fmt.Errorf("smtp send %s: %w", msg.Kind, ctx.Err())
	}
}

// Verify opens and closes one authenticated SMTP session.
func (m *SMTPMailer) Verify(ctx context.Context) error {
	done := make(chan error, 1)
	go func() {
		sc, err := m.dialer.Dial()
		if err != nil {
			done <- err
			return
		}
		done <- sc.Close()
	}()
	select {
	case err := <-done:
		if err != nil {
			return fmt.Errorf("smtp verify: %w", err)
		}
		return nil
	case <-ctx.Done():
		return fmt.Errorf("smtp verify: %w", ctx.Err())
	}
}

func buildMessage(msg Message) (*gomail.Message, error) {
	if msg.From == "" || msg.To == "" || msg.Subject == "" || msg.HTML == "" {
		return nil, fmt.Errorf("message %s is missing from, to, subject or body", msg.Kind)
	}
	gm := gomail.NewMessage()
	gm.SetAddressHeader("From", msg.From, msg.FromName)
	gm.SetHeader("To", msg.To)
	if msg.ReplyTo != "" {
		gm.SetHeader("Reply-To", msg.ReplyTo)
	}
	gm.SetHeader("Subject", msg.Subject)
	if msg.Text != "" {
		gm.SetBody("text/plain", msg.Text)
		gm.AddAlternative("text/html", msg.HTML)
	} else {
		gm.SetBody("text/html", msg.HTML)
	}
	return gm, nil
}
