package contact

import (
	"bytes"
	"embed"
	"fmt"
	"html/template"
	"strings"
	"time"
)

//go:embed templates/*.html
var templateFS embed.FS

var templates = template.Must(template.ParseFS(templateFS, "templates/*.html"))

const dateLayout = "Monday, January 2, 2006 at 15:04 MST"

// Composer renders the notification and auto-reply emails. User input is
// escaped by html/template.
type Composer struct {
	id Identity
}

func NewComposer(id Identity) *Composer {
	if id.OwnerName == "" {
		id.OwnerName = "the site owner"
	}
	if id.NotifyTo == "" {
		id.NotifyTo = id.From
	}
	return &Composer{id: id}
}

// Notification builds the message that tells the owner about a submission.
// It is sent from the owner's mailbox with Reply-To set to the submitter.
func (c *Composer) Notification(sub Submission, now time.Time) (Message, error) {
	html, err := render("notification.html", struct {
		Submission
		Received string
	}{sub, now.UTC().Format(dateLayout)})
	if err != nil {
		return Message{}, err
	}

	var text strings.Builder
	fmt.Fprintf(&text, "Name: %s\nEmail: %s\n", sub.Name, sub.Email)
	if sub.Phone != "" {
		fmt.Fprintf(&text, "Phone: %s\n", sub.Phone)
	}
	fmt.Fprintf(&text, "Subject: %s\n\n%s\n", sub.Subject, sub.Message)

	return Message{
		Kind:     KindNotification,
		FromName: sub.Name + " via portfolio",
		From:     c.id.From,
		To:       c.id.NotifyTo,
		ReplyTo:  sub.Email,
		Subject:  "Portfolio Contact: " + sub.Subject,
		HTML:     html,
		Text:     text.String(),
	}, nil
}

// AutoReply builds the acknowledgement sent back to the submitter.
func (c *Composer) AutoReply(sub Submission, reply string, now time.Time) (Message, error) {
	if strings.TrimSpace(reply) == "" {
		reply = FallbackAutoReply
	}
	html, err := render("auto_reply.html", struct {
		Name      string
		OwnerName string
		Reply     string
		SiteURL   string
		Sent      string
	}{sub.Name, c.id.OwnerName, reply, c.id.SiteURL, now.UTC().Format(dateLayout)})
	if err != nil {
		return Message{}, err
	}

	return Message{
		Kind:     KindAutoReply,
		FromName: c.id.OwnerName,
		From:     c.id.From,
		To:       sub.Email,
		ReplyTo:  c.id.From,
		Subject:  "Thank you for contacting me! - " + c.id.OwnerName,
		HTML:     html,
		Text:     fmt.Sprintf("Hi %s,\n\n%s\n\n%s\n", sub.Name, reply, c.id.OwnerName),
	}, nil
}

func render(name string, data any) (string, error) {
	var buf bytes.Buffer
	if err := templates.ExecuteTemplate(&buf, name, data); err != nil {
		return "", fmt.Errorf("render %s: %w", name, err)
	}
	return buf.String(), nil
}
