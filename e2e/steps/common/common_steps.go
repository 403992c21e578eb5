package common

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/cucumber/godog"
)

// TestContext interface defines the methods needed from the main test context
type TestContext interface {
	POST(path string, body interface{}) error
	GET(path string, headers map[string]string) error
	Do(method, path string, body []byte, headers map[string]string) error
	GetResponseField(field string) (interface{}, error)
	ResponseContains(field string) bool
	GetLastResponseStatus() int
	GetLastResponseBody() []byte
	GetLastResponseHeader(name string) string
	GetStatuses() []int
	ResetStatuses()
	SetOrigin(origin string)
	SetFeatures(chatbot, messaging bool) error
}

// RegisterSteps registers common step definitions used across features
func RegisterSteps(ctx *godog.ScenarioContext, tc TestContext) {
	steps := &commonSteps{tc: tc}

	// Background steps
	ctx.Step(`^the portfolio API is running$`, steps.apiIsRunning)
	ctx.Step(`^I am browsing from "([^"]*)"$`, steps.browsingFrom)
	ctx.Step(`^I am not sending an origin$`, steps.noOrigin)
	ctx.Step(`^the chatbot is (enabled|disabled) and messaging is (enabled|disabled)$`, steps.setFeatures)

	// Generic request steps
	ctx.Step(`^I GET "([^"]*)"$`, steps.get)
	ctx.Step(`^I send (GET|PUT|DELETE|OPTIONS|POST) to "([^"]*)"$`, steps.sendMethod)
	ctx.Step(`^I POST to "([^"]*)" with content type "([^"]*)" and body '([^']*)'$`, steps.postRaw)
	ctx.Step(`^I POST to "([^"]*)" with empty body$`, steps.postWithEmptyBody)

	// Response assertion steps
	ctx.Step(`^the response status should be (\d+)$`, steps.responseStatusShouldBe)
	ctx.Step(`^the response should contain "([^"]*)"$`, steps.responseShouldContain)
	ctx.Step(`^the response should not contain "([^"]*)"$`, steps.responseShouldNotContain)
	ctx.Step(`^the response field "([^"]*)" should equal "([^"]*)"$`, steps.responseFieldShouldEqual)
	ctx.Step(`^the response field "([^"]*)" should contain "([^"]*)"$`, steps.responseFieldShouldContain)
	ctx.Step(`^the response header "([^"]*)" should equal "([^"]*)"$`, steps.headerShouldEqual)
	ctx.Step(`^the response header "([^"]*)" should be absent$`, steps.headerShouldBeAbsent)
	ctx.Step(`^the error category should be "([^"]*)"$`, steps.errorCategoryShouldBe)
	ctx.Step(`^the error should (not )?be retryable$`, steps.errorRetryable)
	ctx.Step(`^the client config should have "([^"]*)" set to (true|false)$`, steps.clientConfigFlag)
	ctx.Step(`^all (\d+) requests should succeed with status (\d+)$`, steps.allNRequestsShouldSucceedWithStatus)
	ctx.Step(`^the (\d+)(?:st|nd|rd|th) request should have returned (\d+)$`, steps.nthRequestReturned)
	ctx.Step(`^log "([^"]*)"$`, steps.logMessage)
}

type commonSteps struct {
	tc TestContext
}

func (s *commonSteps) apiIsRunning(ctx context.Context) error {
	if err := s.tc.GET("/health/live", nil); err != nil {
		return err
	}
	s.tc.ResetStatuses()
	return nil
}

func (s *commonSteps) browsingFrom(ctx context.Context, origin string) error {
	s.tc.SetOrigin(origin)
	return nil
}

func (s *commonSteps) noOrigin(ctx context.Context) error {
	s.tc.SetOrigin("")
	return nil
}

func (s *commonSteps) setFeatures(ctx context.Context, chatbot, messaging string) error {
	return s.tc.SetFeatures(chatbot == "enabled", messaging == "enabled")
}

func (s *commonSteps) get(ctx context.Context, path string) error {
	return s.tc.GET(path, nil)
}

func (s *commonSteps) sendMethod(ctx context.Context, method, path string) error {
	return s.tc.Do(method, path, nil, nil)
}

func (s *commonSteps) postRaw(ctx context.Context, path, contentType, body string) error {
	return s.tc.Do("POST", path, []byte(body), map[string]string{"Content-Type": contentType})
}

func (s *commonSteps) postWithEmptyBody(ctx context.Context, path string) error {
	return s.tc.POST(path, map[string]interface{}{})
}

func (s *commonSteps) responseStatusShouldBe(ctx context.Context, expectedStatus int) error {
	actualStatus := s.tc.GetLastResponseStatus()
	if actualStatus != expectedStatus {
		return fmt.Errorf("expected status %d but got %d\nResponse: %s", expectedStatus, actualStatus, string(s.tc.GetLastResponseBody()))
	}
	return nil
}

func (s *commonSteps) responseShouldContain(ctx context.Context, field string) error {
	if !s.tc.ResponseContains(field) {
		return fmt.Errorf("response does not contain field: %s\nResponse: %s", field, string(s.tc.GetLastResponseBody()))
	}
	return nil
}

func (s *commonSteps) responseShouldNotContain(ctx context.Context, field string) error {
	if s.tc.ResponseContains(field) {
		return fmt.Errorf("response unexpectedly contains: %s\nResponse: %s", field, string(s.tc.GetLastResponseBody()))
	}
	return nil
}

func (s *commonSteps) responseFieldShouldEqual(ctx context.Context, field, expected string) error {
	value, err := s.tc.GetResponseField(field)
	if err != nil {
		return err
	}
	if actual := fmt.Sprint(value); actual != expected {
		return fmt.Errorf("expected %s to be %q but got %q", field, expected, actual)
	}
	return nil
}

func (s *commonSteps) responseFieldShouldContain(ctx context.Context, field, expected string) error {
	value, err := s.tc.GetResponseField(field)
	if err != nil {
		return err
	}
	if actual := fmt.Sprint(value); !strings.Contains(actual, expected) {
		return fmt.Errorf("expected %s to contain %q but got %q", field, expected, actual)
	}
	return nil
}

func (s *commonSteps) headerShouldEqual(ctx context.Context, name, expected string) error {
	if actual := s.tc.GetLastResponseHeader(name); actual != expected {
		return fmt.Errorf("expected header %s to be %q but got %q", name, expected, actual)
	}
	return nil
}

func (s *commonSteps) headerShouldBeAbsent(ctx context.Context, name string) error {
	if actual := s.tc.GetLastResponseHeader(name); actual != "" {
		return fmt.Errorf("expected no %s header but got %q", name, actual)
	}
	return nil
}

func (s *commonSteps) errorCategoryShouldBe(ctx context.Context, category string) error {
	return s.responseFieldShouldEqual(ctx, "error.category", category)
}

func (s *commonSteps) errorRetryable(ctx context.Context, not string) error {
	return s.responseFieldShouldEqual(ctx, "error.retryable", fmt.Sprint(not == ""))
}

func (s *commonSteps) clientConfigFlag(ctx context.Context, flag, expected string) error {
	body := strings.TrimSpace(string(s.tc.GetLastResponseBody()))
	body, ok := strings.CutPrefix(body, "window.portfolioConfig = ")
	if !ok {
		return fmt.Errorf("response is not the config script: %s", body)
	}
	var cfg map[string]interface{}
	if err := json.Unmarshal([]byte(strings.TrimSuffix(body, ";")), &cfg); err != nil {
		return fmt.Errorf("decode config: %w", err)
	}
	if got := fmt.Sprint(cfg[flag]); got != expected {
		return fmt.Errorf("expected %s to be %s but got %s", flag, expected, got)
	}
	return nil
}

func (s *commonSteps) allNRequestsShouldSucceedWithStatus(ctx context.Context, count, status int) error {
	statuses := s.tc.GetStatuses()
	if len(statuses) < count {
		return fmt.Errorf("expected %d requests but only %d were made", count, len(statuses))
	}
	for i, got := range statuses[:count] {
		if got != status {
			return fmt.Errorf("request %d returned %d, expected %d", i+1, got, status)
		}
	}
	return nil
}

func (s *commonSteps) nthRequestReturned(ctx context.Context, n, status int) error {
	statuses := s.tc.GetStatuses()
	if n < 1 || n > len(statuses) {
		return fmt.Errorf("request %d was not made (%d requests)", n, len(statuses))
	}
	if got := statuses[n-1]; got != status {
		return fmt.Errorf("request %d returned %d, expected %d", n, got, status)
	}
	return nil
}

func (s *commonSteps) logMessage(ctx context.Context, message string) error {
	fmt.Printf("  %s\n", message)
	return nil
}
