// Package tracer is a small span abstraction over OpenTelemetry used around
// outbound calls (generative AI and SMTP). Services take a Tracer so tests can
// pass the no-op implementation.
package tracer

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"strings"
	"time"
)

// Span is an active trace span. End must be called exactly once.
type Span interface {
	// End completes the span, marking it failed when err is non-nil.
	End(err error)
	SetAttributes(attrs ...Attribute)
	AddEvent(name string, attrs ...Attribute)
}

// Tracer creates spans. Implementations must be safe for concurrent use.
//
// Example:
//
//	ctx, span := t.Start(ctx, tracer.SpanAssistantGenerate,
//	    tracer.String(tracer.AttrModel, model),
//	)
//	defer func() { span.End(err) }()
type Tracer interface {
	Start(ctx context.Context, name string, attrs ...Attribute) (context.Context, Span)
}

// Attribute is a key-value pair attached to spans.
type Attribute struct {
	Key   string
	Value any
}

func String(key, value string) Attribute {
	return Attribute{Key: key, Value: value}
}

func Bool(key string, value bool) Attribute {
	return Attribute{Key: key, Value: value}
}

func Int(key string, value int) Attribute {
	return Attribute{Key: key, Value: value}
}

// Duration creates a duration attribute in milliseconds.
func Duration(key string, value time.Duration) Attribute {
	return Attribute{Key: key, Value: value.Milliseconds()}
}

// HashAddress returns a short SHA-256 digest of an email address so spans can
// be correlated without carrying the address itself.
func HashAddress(addr string) string {
	addr = strings.ToLower(strings.TrimSpace(addr))
	if addr == "" {
		return ""
	}
	sum := sha256.Sum256([]byte(addr))
	return hex.EncodeToString(sum[:8])
}

// Span names.
const (
	SpanAssistantGenerate = "assistant.generate"
	SpanAssistantPersona  = "assistant.persona"
	SpanContactSubmit     = "contact.submit"
	SpanMailSend          = "mail.send"
)

// Attribute keys.
const (
	AttrModel         = "ai.model"
	AttrPurpose       = "ai.purpose"
	AttrPromptChars   = "ai.prompt_chars"
	AttrReplyChars    = "ai.reply_chars"
	AttrCircuitState  = "circuit.state"
	AttrFallback      = "fallback"
	AttrMailKind      = "mail.kind"
	AttrRecipientHash = "mail.recipient_hash"
	AttrCacheHit      = "cache.hit"
)

// Event names.
const (
	EventFallbackUsed = "fallback.used"
	EventSendDetached = "mail.send_detached"
)
