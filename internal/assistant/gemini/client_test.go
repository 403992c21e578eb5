package gemini

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const okResponse = `{"candidates":[{"content":{"parts":[{"text":"  Hello from the model.  "}]},"finishReason":"STOP"}]}`

func newTestClient(t *testing.T, handler http.HandlerFunc, opts ...Option) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	c, err := New("test-key", append([]Option{WithBaseURL(srv.URL + "/"), WithHTTPClient(srv.Client())}, opts...)...)
	require.NoError(t, err)
	return c
}

func TestNew_RequiresKey(t *testing.T) {
	_, err := New("  ")
	assert.Error(t, err)
}

func TestGenerate_Request(t *testing.T) {
	var (
		gotPath string
		gotKey  string
		gotURL  string
		got     generateRequest
	)
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotURL = r.URL.String()
		gotKey = r.Header.Get("x-goog-api-key")
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		_, _ = w.Write([]byte(okResponse))
	}, WithModel("gemini-test"))

	text, err := c.Generate(context.Background(), Prompt{System: "Be brief.", User: "hi"})
	require.NoError(t, err)

	assert.Equal(t, "Hello from the model.", text)
	assert.Equal(t, "/v1beta/models/gemini-test:generateContent", gotPath)
	assert.Equal(t, "test-key", gotKey)
	assert.NotContains(t, gotURL, "test-key")

	require.Len(t, got.Contents, 1)
	require.Len(t, got.Contents[0].Parts, 2)
	assert.Equal(t, "Be brief.", got.Contents[0].Parts[0].Text)
	assert.Equal(t, "USER MESSAGE: hi", got.Contents[0].Parts[1].Text)
	assert.Equal(t, DefaultGenerationConfig(), got.GenerationConfig)
	assert.Len(t, got.SafetySettings, 4)
	assert.Equal(t, "gemini-test", c.Model())
}

func TestGenerate_Failures(t *testing.T) {
	tests := []struct {
		name      string
		status    int
		body      string
		category  Category
		retryable bool
	}{
		{name: "rate limited", status: http.StatusTooManyRequests, body: `{}`, category: CategoryRateLimited, retryable: true},
		{name: "bad key", status: http.StatusForbidden, body: `{"error":{"message":"API key not valid"}}`, category: CategoryAuth},
		{name: "server error", status: http.StatusInternalServerError, body: `oops`, category: CategoryOutage, retryable: true},
		{name: "bad request", status: http.StatusBadRequest, body: `{}`, category: CategoryBadRequest},
		{name: "malformed json", status: http.StatusOK, body: `{"candidates":`, category: CategoryBadResponse},
		{name: "no candidates", status: http.StatusOK, body: `{"candidates":[]}`, category: CategoryBadResponse},
		{name: "prompt blocked", status: http.StatusOK, body: `{"promptFeedback":{"blockReason":"SAFETY"}}`, category: CategoryBlocked},
		{name: "empty safety candidate", status: http.StatusOK, body: `{"candidates":[{"content":{"parts":[{"text":""}]},"finishReason":"SAFETY"}]}`, category: CategoryBlocked},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(tt.body))
			})

			_, err := c.Generate(context.Background(), Prompt{System: "s", User: "u"})

			var ge *Error
			require.ErrorAs(t, err, &ge)
			assert.Equal(t, tt.category, ge.Category)
			assert.Equal(t, tt.retryable, ge.Retryable())
			assert.Equal(t, tt.category, CategoryOf(err))
			assert.NotContains(t, err.Error(), "test-key")
		})
	}
}

func TestGenerate_Timeout(t *testing.T) {
	release := make(chan struct{})
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	})
	defer close(release)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	_, err := c.Generate(ctx, Prompt{System: "s", User: "u"})
	assert.Equal(t, CategoryTimeout, CategoryOf(err))
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestError_Body(t *testing.T) {
	long := make([]byte, 2000)
	for i := range long {
		long[i] = 'x'
	}
	c := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
		_, _ = w.Write(long)
	})

	_, err := c.Generate(context.Background(), Prompt{})
	var ge *Error
	require.ErrorAs(t, err, &ge)
	assert.Len(t, ge.Body, maxErrorBody)
	assert.Equal(t, http.StatusBadGateway, ge.Status)
	assert.Contains(t, ge.Error(), "status 502")
}

func TestCategoryOf_NonGeminiError(t *testing.T) {
	assert.Equal(t, CategoryInternal, CategoryOf(context.Canceled))
}
