package ratelimit

import (
	"context"
	"fmt"
	"strconv"

	"github.com/cucumber/godog"
)

// TestContext interface defines the methods needed from the main test context
type TestContext interface {
	POST(path string, body interface{}) error
	GET(path string, headers map[string]string) error
	GetResponseField(field string) (interface{}, error)
	GetLastResponseHeader(name string) string
	ResetStatuses()
}

// RegisterSteps registers rate-limiting step definitions
func RegisterSteps(ctx *godog.ScenarioContext, tc TestContext) {
	steps := &ratelimitSteps{tc: tc}

	ctx.Step(`^I start counting requests$`, steps.startCounting)
	ctx.Step(`^I GET "([^"]*)" (\d+) times$`, steps.getNTimes)
	ctx.Step(`^the retry hint should be (\d+) seconds$`, steps.retryHintShouldBe)
	ctx.Step(`^(\d+) requests? should remain$`, steps.remainingShouldBe)
}

type ratelimitSteps struct {
	tc TestContext
}

func (s *ratelimitSteps) startCounting(ctx context.Context) error {
	s.tc.ResetStatuses()
	return nil
}

func (s *ratelimitSteps) getNTimes(ctx context.Context, path string, n int) error {
	for range n {
		if err := s.tc.GET(path, nil); err != nil {
			return err
		}
	}
	return nil
}

// retryHintShouldBe checks the header and the envelope agree.
func (s *ratelimitSteps) retryHintShouldBe(ctx context.Context, seconds int) error {
	want := strconv.Itoa(seconds)
	if got := s.tc.GetLastResponseHeader("Retry-After"); got != want {
		return fmt.Errorf("expected Retry-After %s but got %q", want, got)
	}
	value, err := s.tc.GetResponseField("error.retryAfterSeconds")
	if err != nil {
		return err
	}
	if got := fmt.Sprint(value); got != want {
		return fmt.Errorf("expected retryAfterSeconds %s but got %s", want, got)
	}
	return nil
}

func (s *ratelimitSteps) remainingShouldBe(ctx context.Context, n int) error {
	if got := s.tc.GetLastResponseHeader("X-RateLimit-Remaining"); got != strconv.Itoa(n) {
		return fmt.Errorf("expected %d remaining but got %q", n, got)
	}
	return nil
}
