package tracer_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/trace/noop"

	"folio/internal/platform/tracer"
)

func TestNoopTracer_Start(t *testing.T) {
	tr := tracer.NewNoop()
	ctx := context.Background()

	newCtx, span := tr.Start(ctx, tracer.SpanMailSend,
		tracer.String(tracer.AttrMailKind, "notification"),
		tracer.Bool(tracer.AttrFallback, false),
	)

	assert.Equal(t, ctx, newCtx)
	require.NotNil(t, span)

	span.SetAttributes(tracer.Int(tracer.AttrReplyChars, 42))
	span.AddEvent(tracer.EventFallbackUsed, tracer.Duration("elapsed_ms", time.Second))
	span.End(errors.New("boom"))
}

func TestOTelTracer_WithInjectedTracer(t *testing.T) {
	tr := tracer.NewOTel(tracer.WithOTelTracer(noop.NewTracerProvider().Tracer("test")))

	ctx, span := tr.Start(context.Background(), tracer.SpanAssistantGenerate,
		tracer.String(tracer.AttrModel, "gemini-1.5-flash"),
		tracer.Int(tracer.AttrPromptChars, 120),
		tracer.Duration("timeout_ms", 25*time.Second),
	)
	require.NotNil(t, ctx)
	require.NotNil(t, span)

	span.AddEvent(tracer.EventFallbackUsed)
	span.End(nil)
}

func TestOTelTracer_DefaultsToGlobalProvider(t *testing.T) {
	tr := tracer.NewOTel()
	_, span := tr.Start(context.Background(), tracer.SpanContactSubmit)
	span.End(errors.New("send failed"))
}

func TestHashAddress(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		wantLen int
	}{
		{name: "empty returns empty", input: "", wantLen: 0},
		{name: "blank returns empty", input: "   ", wantLen: 0},
		{name: "address produces 16 char digest", input: "ada@example.com", wantLen: 16},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Len(t, tracer.HashAddress(tt.input), tt.wantLen)
		})
	}

	t.Run("case and padding do not change the digest", func(t *testing.T) {
		assert.Equal(t, tracer.HashAddress("ada@example.com"), tracer.HashAddress("  Ada@Example.COM "))
	})

	t.Run("different addresses differ", func(t *testing.T) {
		assert.NotEqual(t, tracer.HashAddress("ada@example.com"), tracer.HashAddress("grace@example.com"))
	})
}
