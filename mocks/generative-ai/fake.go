// Package generativeai is a stand-in for the generateContent API, used by
// local runs and end-to-end tests. Magic phrases in the user message select
// failure modes so tests can drive the client's error handling.
package generativeai

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"time"
)

const (
	DefaultAPIKey = "fake-generative-ai-key"

	TriggerRateLimit = "TRIGGER_RATE_LIMIT"
	TriggerOutage    = "TRIGGER_OUTAGE"
	TriggerBlock     = "TRIGGER_BLOCK"
	TriggerEmpty     = "TRIGGER_EMPTY"

	userMarker = "USER MESSAGE: "
	echoLimit  = 80
)

type part struct {
	Text string `json:"text"`
}

type content struct {
	Role  string `json:"role,omitempty"`
	Parts []part `json:"parts"`
}

type generateRequest struct {
	Contents []content `json:"contents"`
}

type candidate struct {
	Content      content `json:"content"`
	FinishReason string  `json:"finishReason"`
}

type promptFeedback struct {
	BlockReason string `json:"blockReason"`
}

type generateResponse struct {
	Candidates     []candidate     `json:"candidates"`
	PromptFeedback *promptFeedback `json:"promptFeedback,omitempty"`
}

type errorResponse struct {
	Error struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
		Status  string `json:"status"`
	} `json:"error"`
}

// Call is one accepted generateContent request.
type Call struct {
	Model  string
	System string
	User   string
}

// Server answers generateContent with a deterministic echo.
type Server struct {
	apiKey  string
	latency time.Duration
	logger  *slog.Logger

	mu    sync.Mutex
	calls []Call
}

// New returns a fake that requires apiKey on every request.
func New(apiKey string, latency time.Duration, logger *slog.Logger) *Server {
	if apiKey == "" {
		apiKey = DefaultAPIKey
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Server{apiKey: apiKey, latency: latency, logger: logger}
}

// Handler serves /health and POST /v1beta/models/{model}:generateContent.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /health", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "healthy", "service": "generative-ai"})
	})
	mux.HandleFunc("POST /v1beta/models/{call}", s.handleGenerate)
	return mux
}

// Calls returns the accepted requests in arrival order.
func (s *Server) Calls() []Call {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Call(nil), s.calls...)
}

// Reset forgets recorded calls.
func (s *Server) Reset() {
	s.mu.Lock()
	s.calls = nil
	s.mu.Unlock()
}

func (s *Server) handleGenerate(w http.ResponseWriter, r *http.Request) {
	if s.latency > 0 {
		select {
		case <-time.After(s.latency):
		case <-r.Context().Done():
			return
		}
	}

	model, ok := strings.CutSuffix(r.PathValue("call"), ":generateContent")
	if !ok || model == "" {
		writeError(w, http.StatusNotFound, "NOT_FOUND", "unknown method")
		return
	}
	if r.Header.Get("x-goog-api-key") != s.apiKey {
		writeError(w, http.StatusForbidden, "PERMISSION_DENIED", "API key not valid")
		return
	}

	var req generateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_ARGUMENT", "invalid JSON payload")
		return
	}
	call := parseCall(model, req)
	s.logger.Debug("generate request", "model", model, "user_chars", len(call.User))

	switch {
	case call.mentions(TriggerRateLimit):
		writeError(w, http.StatusTooManyRequests, "RESOURCE_EXHAUSTED", "quota exceeded")
		return
	case call.mentions(TriggerOutage):
		writeError(w, http.StatusServiceUnavailable, "UNAVAILABLE", "model overloaded")
		return
	case call.mentions(TriggerBlock):
		writeJSON(w, http.StatusOK, generateResponse{PromptFeedback: &promptFeedback{BlockReason: "SAFETY"}})
		return
	case call.mentions(TriggerEmpty):
		writeJSON(w, http.StatusOK, generateResponse{})
		return
	}

	s.mu.Lock()
	s.calls = append(s.calls, call)
	s.mu.Unlock()

	writeJSON(w, http.StatusOK, generateResponse{
		Candidates: []candidate{{
			Content:      content{Role: "model", Parts: []part{{Text: Reply(call.User)}}},
			FinishReason: "STOP",
		}},
	})
}

// Reply is the text returned for a user message.
func Reply(user string) string {
	user = strings.TrimSpace(user)
	if len(user) > echoLimit {
		user = user[:echoLimit]
	}
	return fmt.Sprintf("Thanks for asking! You said: %s", user)
}

// mentions reports whether either prompt part carries trigger.
func (c Call) mentions(trigger string) bool {
	return strings.Contains(c.User, trigger) || strings.Contains(c.System, trigger)
}

func parseCall(model string, req generateRequest) Call {
	call := Call{Model: model}
	for _, c := range req.Contents {
		for _, p := range c.Parts {
			if user, ok := strings.CutPrefix(p.Text, userMarker); ok {
				call.User = user
			} else if call.System == "" {
				call.System = p.Text
			}
		}
	}
	return call
}

func writeError(w http.ResponseWriter, code int, status, message string) {
	var body errorResponse
	body.Error.Code = code
	body.Error.Status = status
	body.Error.Message = message
	writeJSON(w, code, body)
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(v) //nolint:errcheck // client went away
}
