// Package gemini is a minimal client for the Generative Language API
// generateContent endpoint.
package gemini

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

const (
	DefaultBaseURL = "https://generativelanguage.googleapis.com"
	DefaultModel   = "gemini-1.5-flash"

	maxResponseBytes = 1 << 20
	maxErrorBody     = 512
)

// Prompt is one generation request: fixed instructions plus the user turn.
type Prompt struct {
	System string
	User   string
}

// GenerationConfig tunes sampling.
type GenerationConfig struct {
	Temperature     float64  `json:"temperature"`
	TopK            int      `json:"topK"`
	TopP            float64  `json:"topP"`
	MaxOutputTokens int      `json:"maxOutputTokens"`
	StopSequences   []string `json:"stopSequences"`
}

// DefaultGenerationConfig keeps replies short and moderately varied.
func DefaultGenerationConfig() GenerationConfig {
	return GenerationConfig{
		Temperature:     0.7,
		TopK:            40,
		TopP:            0.95,
		MaxOutputTokens: 200,
		StopSequences:   []string{},
	}
}

type SafetySetting struct {
	Category  string `json:"category"`
	Threshold string `json:"threshold"`
}

// DefaultSafetySettings block medium and higher harm in every category.
func DefaultSafetySettings() []SafetySetting {
	categories := []string{
		"HARM_CATEGORY_HARASSMENT",
		"HARM_CATEGORY_HATE_SPEECH",
		"HARM_CATEGORY_SEXUALLY_EXPLICIT",
		"HARM_CATEGORY_DANGEROUS_CONTENT",
	}
	out := make([]SafetySetting, len(categories))
	for i, c := range categories {
		out[i] = SafetySetting{Category: c, Threshold: "BLOCK_MEDIUM_AND_ABOVE"}
	}
	return out
}

type part struct {
	Text string `json:"text"`
}

type content struct {
	Role  string `json:"role,omitempty"`
	Parts []part `json:"parts"`
}

type generateRequest struct {
	Contents         []content        `json:"contents"`
	GenerationConfig GenerationConfig `json:"generationConfig"`
	SafetySettings   []SafetySetting  `json:"safetySettings"`
}

type generateResponse struct {
	Candidates []struct {
		Content      content `json:"content"`
		FinishReason string  `json:"finishReason"`
	} `json:"candidates"`
	PromptFeedback *struct {
		BlockReason string `json:"blockReason"`
	} `json:"promptFeedback"`
}

// Client calls generateContent for one model.
type Client struct {
	baseURL    string
	apiKey     string
	model      string
	generation GenerationConfig
	safety     []SafetySetting
	httpClient *http.Client
}

type Option func(*Client)

// WithHTTPClient sets a custom HTTP client (for testing).
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		if hc != nil {
			c.httpClient = hc
		}
	}
}

func WithBaseURL(u string) Option {
	return func(c *Client) {
		if u != "" {
			c.baseURL = strings.TrimRight(u, "/")
		}
	}
}

func WithModel(model string) Option {
	return func(c *Client) {
		if model != "" {
			c.model = model
		}
	}
}

func WithGenerationConfig(g GenerationConfig) Option {
	return func(c *Client) {
		c.generation = g
	}
}

// New builds a client. The key is sent in the x-goog-api-key header and
// never appears in URLs or logs.
func New(apiKey string, opts ...Option) (*Client, error) {
	if strings.TrimSpace(apiKey) == "" {
		return nil, errors.New("gemini api key is required")
	}
	c := &Client{
		baseURL:    DefaultBaseURL,
		apiKey:     apiKey,
		model:      DefaultModel,
		generation: DefaultGenerationConfig(),
		safety:     DefaultSafetySettings(),
		httpClient: &http.Client{Timeout: 30 * time.Second},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// Model returns the configured model name.
func (c *Client) Model() string {
	return c.model
}

// Generate returns the first candidate's text, trimmed.
func (c *Client) Generate(ctx context.Context, prompt Prompt) (string, error) {
	payload := generateRequest{
		Contents: []content{{
			Role: "user",
			Parts: []part{
				{Text: prompt.System},
				{Text: "USER MESSAGE: " + prompt.User},
			},
		}},
		GenerationConfig: c.generation,
		SafetySettings:   c.safety,
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return "", newError(CategoryInternal, 0, "failed to marshal request", err)
	}

	url := fmt.Sprintf("%s/v1beta/models/%s:generateContent", c.baseURL, c.model)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return "", newError(CategoryInternal, 0, "failed to create request", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("x-goog-api-key", c.apiKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		if ctx.Err() != nil || isTimeout(err) {
			return "", newError(CategoryTimeout, 0, "request timeout", err)
		}
		return "", newError(CategoryOutage, 0, "failed to execute request", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		if ctx.Err() != nil {
			return "", newError(CategoryTimeout, resp.StatusCode, "response read timeout", err)
		}
		return "", newError(CategoryOutage, resp.StatusCode, "failed to read response body", err)
	}

	if resp.StatusCode != http.StatusOK {
		e := newError(categoryForStatus(resp.StatusCode), resp.StatusCode, "unexpected status", nil)
		e.Body = truncate(string(raw), maxErrorBody)
		return "", e
	}

	var parsed generateResponse
	if err := json.Unmarshal(raw, &parsed); err != nil {
		return "", newError(CategoryBadResponse, resp.StatusCode, "failed to parse response", err)
	}
	if parsed.PromptFeedback != nil && parsed.PromptFeedback.BlockReason != "" {
		return "", newError(CategoryBlocked, resp.StatusCode, "prompt blocked: "+parsed.PromptFeedback.BlockReason, nil)
	}
	if len(parsed.Candidates) == 0 || len(parsed.Candidates[0].Content.Parts) == 0 {
		return "", newError(CategoryBadResponse, resp.StatusCode, "response has no candidates", nil)
	}
	text := strings.TrimSpace(parsed.Candidates[0].Content.Parts[0].Text)
	if text == "" {
		if reason := parsed.Candidates[0].FinishReason; reason == "SAFETY" {
			return "", newError(CategoryBlocked, resp.StatusCode, "candidate blocked by safety filter", nil)
		}
		return "", newError(CategoryBadResponse, resp.StatusCode, "candidate text is empty", nil)
	}
	return text, nil
}

func categoryForStatus(status int) Category {
	switch {
	case status == http.StatusTooManyRequests:
		return CategoryRateLimited
	case status == http.StatusUnauthorized || status == http.StatusForbidden:
		return CategoryAuth
	case status == http.StatusRequestTimeout || status == http.StatusGatewayTimeout:
		return CategoryTimeout
	case status >= 500:
		return CategoryOutage
	default:
		return CategoryBadRequest
	}
}

func isTimeout(err error) bool {
	var te interface{ Timeout() bool }
	return errors.As(err, &te) && te.Timeout()
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
