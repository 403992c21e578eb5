package contact

import (
	"context"
	"fmt"
	"strings"

	"github.com/cucumber/godog"

	"folio/internal/contact"
)

// TestContext interface defines the methods needed from the main test context
type TestContext interface {
	POST(path string, body interface{}) error
	SentMail() ([]contact.Message, error)
	FailMail(kind contact.Kind) error
}

const contactPath = "/api/contact"

// RegisterSteps registers contact form step definitions
func RegisterSteps(ctx *godog.ScenarioContext, tc TestContext) {
	steps := &contactSteps{tc: tc}

	ctx.Step(`^I submit the contact form to "([^"]*)" with:$`, steps.submitTo)
	ctx.Step(`^I submit the contact form with:$`, steps.submit)
	ctx.Step(`^I submit a valid contact form$`, steps.submitValid)
	ctx.Step(`^I submit (\d+) valid contact forms$`, steps.submitNValid)
	ctx.Step(`^the mail server rejects (notification|auto_reply) emails$`, steps.rejectKind)
	ctx.Step(`^(\d+) emails? should have been sent$`, steps.emailsSent)
	ctx.Step(`^an? (notification|auto_reply) email should have been sent to "([^"]*)"$`, steps.emailSentTo)
	ctx.Step(`^the (notification|auto_reply) email subject should be "([^"]*)"$`, steps.emailSubject)
	ctx.Step(`^the (notification|auto_reply) email should reply to "([^"]*)"$`, steps.emailReplyTo)
	ctx.Step(`^the (notification|auto_reply) email body should contain "([^"]*)"$`, steps.emailBodyContains)
	ctx.Step(`^the (notification|auto_reply) email body should not contain "([^"]*)"$`, steps.emailBodyNotContains)
}

type contactSteps struct {
	tc TestContext
}

func validForm() map[string]string {
	return map[string]string{
		"name":    "Jordan Lee",
		"email":   "jordan@example.com",
		"subject": "Project inquiry",
		"message": "I would like to talk about a backend project.",
	}
}

func (s *contactSteps) submitTo(ctx context.Context, path string, table *godog.Table) error {
	form := map[string]string{}
	for _, row := range table.Rows {
		if len(row.Cells) != 2 {
			return fmt.Errorf("contact form rows need a field and a value")
		}
		form[row.Cells[0].Value] = row.Cells[1].Value
	}
	return s.tc.POST(path, form)
}

func (s *contactSteps) submit(ctx context.Context, table *godog.Table) error {
	return s.submitTo(ctx, contactPath, table)
}

func (s *contactSteps) submitValid(ctx context.Context) error {
	return s.tc.POST(contactPath, validForm())
}

func (s *contactSteps) submitNValid(ctx context.Context, n int) error {
	for range n {
		if err := s.submitValid(ctx); err != nil {
			return err
		}
	}
	return nil
}

func (s *contactSteps) rejectKind(ctx context.Context, kind string) error {
	return s.tc.FailMail(contact.Kind(kind))
}

func (s *contactSteps) emailsSent(ctx context.Context, n int) error {
	sent, err := s.tc.SentMail()
	if err != nil {
		return err
	}
	if len(sent) != n {
		return fmt.Errorf("expected %d emails but %d were sent", n, len(sent))
	}
	return nil
}

func (s *contactSteps) find(kind string) (contact.Message, error) {
	sent, err := s.tc.SentMail()
	if err != nil {
		return contact.Message{}, err
	}
	for _, msg := range sent {
		if msg.Kind == contact.Kind(kind) {
			return msg, nil
		}
	}
	return contact.Message{}, fmt.Errorf("no %s email was sent", kind)
}

func (s *contactSteps) emailSentTo(ctx context.Context, kind, to string) error {
	msg, err := s.find(kind)
	if err != nil {
		return err
	}
	if msg.To != to {
		return fmt.Errorf("%s email went to %q, expected %q", kind, msg.To, to)
	}
	return nil
}

func (s *contactSteps) emailSubject(ctx context.Context, kind, subject string) error {
	msg, err := s.find(kind)
	if err != nil {
		return err
	}
	if msg.Subject != subject {
		return fmt.Errorf("%s subject is %q, expected %q", kind, msg.Subject, subject)
	}
	return nil
}

func (s *contactSteps) emailReplyTo(ctx context.Context, kind, replyTo string) error {
	msg, err := s.find(kind)
	if err != nil {
		return err
	}
	if msg.ReplyTo != replyTo {
		return fmt.Errorf("%s reply-to is %q, expected %q", kind, msg.ReplyTo, replyTo)
	}
	return nil
}

func (s *contactSteps) emailBodyContains(ctx context.Context, kind, text string) error {
	msg, err := s.find(kind)
	if err != nil {
		return err
	}
	if !strings.Contains(msg.HTML, text) {
		return fmt.Errorf("%s body does not contain %q", kind, text)
	}
	return nil
}

func (s *contactSteps) emailBodyNotContains(ctx context.Context, kind, text string) error {
	msg, err := s.find(kind)
	if err != nil {
		return err
	}
	if strings.Contains(msg.HTML, text) {
		return fmt.Errorf("%s body unexpectedly contains %q", kind, text)
	}
	return nil
}
