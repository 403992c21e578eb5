// Package contact sends the two emails behind the contact form: a
// notification to the site owner and an acknowledgement to the submitter.
package contact

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"folio/internal/platform/tracer"
	dErrors "folio/pkg/domain-errors"
	"folio/pkg/requestcontext"
)

const defaultTimeout = 30 * time.Second

// Sender delivers one rendered email.
type Sender interface {
	Send(ctx context.Context, msg Message) error
}

// AutoReplier drafts a short personalised acknowledgement.
type AutoReplier interface {
	AutoReply(ctx context.Context, name, subject, message string) (string, error)
}

type Service struct {
	sender   Sender
	replier  AutoReplier
	composer *Composer
	timeout  time.Duration
	logger   *slog.Logger
	tracer   tracer.Tracer
	metrics  *Metrics
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

// WithAutoReplier enables generated acknowledgements. Without one every
// auto-reply uses FallbackAutoReply.
func WithAutoReplier(r AutoReplier) Option {
	return func(s *Service) {
		s.replier = r
	}
}

// WithTimeout bounds one Submit call, both emails included.
func WithTimeout(d time.Duration) Option {
	return func(s *Service) {
		if d > 0 {
			s.timeout = d
		}
	}
}

func New(sender Sender, composer *Composer, opts ...Option) (*Service, error) {
	if sender == nil {
		return nil, errors.New("sender is required")
	}
	if composer == nil {
		return nil, errors.New("composer is required")
	}
	s := &Service{
		sender:   sender,
		composer: composer,
		timeout:  defaultTimeout,
		logger:   slog.Default(),
		tracer:   tracer.NewNoop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Submit sends the notification and the auto-reply concurrently. The work is
// detached from client cancellation and bounded by the service timeout. One
// failed email is reported in the result; both failing is an EMAIL_ERROR.
func (s *Service) Submit(ctx context.Context, sub Submission) (_ *Result, err error) {
	start := time.Now()
	now := requestcontext.Now(ctx)

	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.timeout)
	defer cancel()

	ctx, span := s.tracer.Start(ctx, tracer.SpanContactSubmit,
		tracer.String(tracer.AttrRecipientHash, tracer.HashAddress(sub.Email)),
	)
	defer func() { span.End(err) }()

	var notifyErr, replyErr error
	var g errgroup.Group
	g.Go(func() error {
		notifyErr = s.sendNotification(ctx, sub, now)
		return notifyErr
	})
	g.Go(func() error {
		replyErr = s.sendAutoReply(ctx, sub, now)
		return replyErr
	})
	_ = g.Wait()

	if s.metrics != nil {
		s.metrics.SubmitDuration.Observe(time.Since(start).Seconds())
	}

	if notifyErr != nil && replyErr != nil {
		return nil, dErrors.Wrap(errors.Join(notifyErr, replyErr), dErrors.CodeEmail, "contact emails could not be sent")
	}

	result := &Result{
		Message:          thankYouMessage,
		Sent:             true,
		NotificationSent: notifyErr == nil,
		AutoReplySent:    replyErr == nil,
	}
	if notifyErr != nil || replyErr != nil {
		s.logger.WarnContext(ctx, "contact_partial_delivery",
			"notification_sent", result.NotificationSent,
			"auto_reply_sent", result.AutoReplySent,
			"error", errors.Join(notifyErr, replyErr),
			"request_id", requestcontext.RequestID(ctx),
		)
	}
	return result, nil
}

func (s *Service) sendNotification(ctx context.Context, sub Submission, now time.Time) error {
	msg, err := s.composer.Notification(sub, now)
	if err == nil {
		err = s.sender.Send(ctx, msg)
	}
	if s.metrics != nil {
		s.metrics.ObserveEmail(KindNotification, err)
	}
	return err
}

func (s *Service) sendAutoReply(ctx context.Context, sub Submission, now time.Time) error {
	msg, err := s.composer.AutoReply(sub, s.draftReply(ctx, sub), now)
	if err == nil {
		err = s.sender.Send(ctx, msg)
	}
	if s.metrics != nil {
		s.metrics.ObserveEmail(KindAutoReply, err)
	}
	return err
}

// draftReply asks the replier for a personalised text and falls back to the
// static acknowledgement on any failure.
func (s *Service) draftReply(ctx context.Context, sub Submission) string {
	fallback := true
	reply := FallbackAutoReply
	if s.replier != nil {
		text, err := s.replier.AutoReply(ctx, sub.Name, sub.Subject, sub.Message)
		switch {
		case err != nil:
			s.logger.WarnContext(ctx, "auto_reply_fallback", "error", err)
		case strings.TrimSpace(text) == "":
			s.logger.WarnContext(ctx, "auto_reply_fallback", "reason", "empty reply")
		default:
			reply, fallback = text, false
		}
	}
	if s.metrics != nil {
		s.metrics.ObserveAutoReplySource(fallback)
	}
	return reply
}
