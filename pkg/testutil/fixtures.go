package testutil

import (
	"bytes"
	"encoding/json"
	"io"
	"sync"
	"time"
)

// TestIPs are documentation-range client addresses.
var TestIPs = struct {
	Client1 string
	Client2 string
	IPv6    string
}{
	Client1: "203.0.113.10",
	Client2: "198.51.100.20",
	IPv6:    "2001:db8::10",
}

// TestOrigin is the allow-listed site used across handler tests.
const TestOrigin = "https://portfolio.example.com"

// Clock is a manually advanced time source.
type Clock struct {
	mu  sync.Mutex
	now time.Time
}

// NewClock starts a clock at t.
func NewClock(t time.Time) *Clock {
	return &Clock{now: t}
}

// Now returns the current fake time.
func (c *Clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

// Advance moves the clock forward by d.
func (c *Clock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

// ContactFormBuilder provides a fluent interface for contact form bodies.
type ContactFormBuilder struct {
	fields map[string]any
}

// NewContactFormBuilder creates a valid contact form.
func NewContactFormBuilder() *ContactFormBuilder {
	return &ContactFormBuilder{fields: map[string]any{
		"name":    "Ada Lovelace",
		"email":   "Ada@Example.com",
		"subject": "Project enquiry",
		"message": "I would like to talk about a small engine project.",
	}}
}

func (b *ContactFormBuilder) WithName(v string) *ContactFormBuilder {
	b.fields["name"] = v
	return b
}

func (b *ContactFormBuilder) WithEmail(v string) *ContactFormBuilder {
	b.fields["email"] = v
	return b
}

func (b *ContactFormBuilder) WithSubject(v string) *ContactFormBuilder {
	b.fields["subject"] = v
	return b
}

func (b *ContactFormBuilder) WithMessage(v string) *ContactFormBuilder {
	b.fields["message"] = v
	return b
}

func (b *ContactFormBuilder) WithPhone(v string) *ContactFormBuilder {
	b.fields["phone"] = v
	return b
}

// Without drops a field entirely.
func (b *ContactFormBuilder) Without(field string) *ContactFormBuilder {
	delete(b.fields, field)
	return b
}

// Map returns a copy of the fields.
func (b *ContactFormBuilder) Map() map[string]any {
	out := make(map[string]any, len(b.fields))
	for k, v := range b.fields {
		out[k] = v
	}
	return out
}

// Reader returns the form as a JSON body.
func (b *ContactFormBuilder) Reader() io.Reader {
	return JSONBody(b.fields)
}

// JSONBody marshals v for use as a request body.
func JSONBody(v any) io.Reader {
	raw, err := json.Marshal(v)
	if err != nil {
		panic(err)
	}
	return bytes.NewReader(raw)
}

// ChatBody returns a chatbot request body.
func ChatBody(message string) io.Reader {
	return JSONBody(map[string]string{"message": message})
}
