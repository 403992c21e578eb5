package e2e

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"

	"folio/internal/contact"
	generativeai "folio/mocks/generative-ai"
)

// TestContext holds state between test steps
type TestContext struct {
	BaseURL          string
	HTTPClient       *http.Client
	LastResponse     *http.Response
	LastResponseBody []byte
	Origin           string
	Statuses         []int

	harness *Harness
}

// NewTestContext targets BASE_URL when set, otherwise a fresh in-process harness.
func NewTestContext() (*TestContext, error) {
	tc := &TestContext{
		BaseURL: os.Getenv("BASE_URL"),
		HTTPClient: &http.Client{
			Timeout: 10 * time.Second,
			CheckRedirect: func(req *http.Request, via []*http.Request) error {
				return http.ErrUseLastResponse
			},
		},
	}
	if tc.BaseURL != "" {
		return tc, nil
	}

	h, err := StartHarness(Features{Chatbot: true, Messaging: true})
	if err != nil {
		return nil, fmt.Errorf("start harness: %w", err)
	}
	tc.harness = h
	tc.BaseURL = h.URL
	return tc, nil
}

// Restart replaces the in-process server with one built for f.
func (tc *TestContext) Restart(f Features) error {
	if tc.harness == nil {
		return fmt.Errorf("feature toggles need the in-process server")
	}
	tc.harness.Close()
	h, err := StartHarness(f)
	if err != nil {
		return fmt.Errorf("start harness: %w", err)
	}
	tc.harness = h
	tc.BaseURL = h.URL
	return nil
}

func (tc *TestContext) Close() {
	if tc.harness != nil {
		tc.harness.Close()
	}
}

// POST sends body as JSON and stores the response
func (tc *TestContext) POST(path string, body interface{}) error {
	return tc.POSTWithHeaders(path, body, nil)
}

// POSTWithHeaders sends body as JSON with optional extra headers
func (tc *TestContext) POSTWithHeaders(path string, body interface{}, headers map[string]string) error {
	data, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("failed to marshal request body: %w", err)
	}
	h := map[string]string{"Content-Type": "application/json"}
	for k, v := range headers {
		h[k] = v
	}
	return tc.Do(http.MethodPost, path, data, h)
}

// GET makes a GET request and stores the response
func (tc *TestContext) GET(path string, headers map[string]string) error {
	return tc.Do(http.MethodGet, path, nil, headers)
}

// Do sends any request. The browsing origin is attached unless headers set one.
func (tc *TestContext) Do(method, path string, body []byte, headers map[string]string) error {
	req, err := http.NewRequestWithContext(context.Background(), method, tc.BaseURL+path, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	if tc.Origin != "" {
		req.Header.Set("Origin", tc.Origin)
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	resp, err := tc.HTTPClient.Do(req)
	if err != nil {
		return fmt.Errorf("failed to make request: %w", err)
	}

	tc.LastResponse = resp
	tc.LastResponseBody, err = io.ReadAll(resp.Body)
	resp.Body.Close()
	if err != nil {
		return fmt.Errorf("failed to read response body: %w", err)
	}
	tc.Statuses = append(tc.Statuses, resp.StatusCode)
	return nil
}

// GetResponseField extracts a field from the JSON response. Nested fields
// use dots, as in "error.category".
func (tc *TestContext) GetResponseField(field string) (interface{}, error) {
	var data interface{}
	if err := json.Unmarshal(tc.LastResponseBody, &data); err != nil {
		return nil, fmt.Errorf("failed to unmarshal response: %w", err)
	}

	for _, key := range strings.Split(field, ".") {
		obj, ok := data.(map[string]interface{})
		if !ok {
			return nil, fmt.Errorf("field %s not found in response", field)
		}
		if data, ok = obj[key]; !ok {
			return nil, fmt.Errorf("field %s not found in response", field)
		}
	}
	return data, nil
}

// ResponseContains checks if the response body contains a field or text
func (tc *TestContext) ResponseContains(text string) bool {
	if strings.Contains(string(tc.LastResponseBody), text) {
		return true
	}
	_, err := tc.GetResponseField(text)
	return err == nil
}

// Getter methods for step package interfaces

func (tc *TestContext) SetOrigin(origin string) {
	tc.Origin = origin
}

func (tc *TestContext) ResetStatuses() {
	tc.Statuses = nil
}

func (tc *TestContext) GetStatuses() []int {
	return tc.Statuses
}

func (tc *TestContext) GetLastResponseStatus() int {
	if tc.LastResponse == nil {
		return 0
	}
	return tc.LastResponse.StatusCode
}

func (tc *TestContext) GetLastResponseBody() []byte {
	return tc.LastResponseBody
}

func (tc *TestContext) GetLastResponseHeader(name string) string {
	if tc.LastResponse == nil {
		return ""
	}
	return tc.LastResponse.Header.Get(name)
}

func (tc *TestContext) SentMail() ([]contact.Message, error) {
	if tc.harness == nil {
		return nil, fmt.Errorf("sent mail is only visible in-process")
	}
	return tc.harness.Outbox.Sent(), nil
}

func (tc *TestContext) FailMail(kind contact.Kind) error {
	if tc.harness == nil {
		return fmt.Errorf("mail failures can only be injected in-process")
	}
	tc.harness.Outbox.Fail(kind)
	return nil
}

func (tc *TestContext) GeneratorCalls() ([]generativeai.Call, error) {
	if tc.harness == nil {
		return nil, fmt.Errorf("generator calls are only visible in-process")
	}
	return tc.harness.Generator.Calls(), nil
}

func (tc *TestContext) SetFeatures(chatbot, messaging bool) error {
	return tc.Restart(Features{Chatbot: chatbot, Messaging: messaging})
}
