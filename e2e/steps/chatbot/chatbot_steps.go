package chatbot

import (
	"context"
	"fmt"
	"strings"

	"github.com/cucumber/godog"

	generativeai "folio/mocks/generative-ai"
)

// TestContext interface defines the methods needed from the main test context
type TestContext interface {
	POST(path string, body interface{}) error
	GetResponseField(field string) (interface{}, error)
	GeneratorCalls() ([]generativeai.Call, error)
}

const chatPath = "/api/chatbot"

// RegisterSteps registers chatbot step definitions
func RegisterSteps(ctx *godog.ScenarioContext, tc TestContext) {
	steps := &chatbotSteps{tc: tc}

	ctx.Step(`^I send the chat message "([^"]*)"$`, steps.sendMessage)
	ctx.Step(`^I send a chat message of (\d+) characters$`, steps.sendLongMessage)
	ctx.Step(`^I send (\d+) chat messages$`, steps.sendNMessages)
	ctx.Step(`^the assistant reply should echo "([^"]*)"$`, steps.replyShouldEcho)
	ctx.Step(`^the generator should have received (\d+) requests?$`, steps.generatorReceived)
	ctx.Step(`^the generator prompt should mention "([^"]*)"$`, steps.promptShouldMention)
}

type chatbotSteps struct {
	tc TestContext
}

func (s *chatbotSteps) sendMessage(ctx context.Context, message string) error {
	return s.tc.POST(chatPath, map[string]string{"message": message})
}

func (s *chatbotSteps) sendLongMessage(ctx context.Context, n int) error {
	return s.sendMessage(ctx, strings.Repeat("a", n))
}

func (s *chatbotSteps) sendNMessages(ctx context.Context, n int) error {
	for i := range n {
		if err := s.sendMessage(ctx, fmt.Sprintf("question number %d", i+1)); err != nil {
			return err
		}
	}
	return nil
}

func (s *chatbotSteps) replyShouldEcho(ctx context.Context, message string) error {
	value, err := s.tc.GetResponseField("data.response")
	if err != nil {
		return err
	}
	if got, want := fmt.Sprint(value), generativeai.Reply(message); got != want {
		return fmt.Errorf("expected reply %q but got %q", want, got)
	}
	return nil
}

func (s *chatbotSteps) generatorReceived(ctx context.Context, n int) error {
	calls, err := s.tc.GeneratorCalls()
	if err != nil {
		return err
	}
	if len(calls) != n {
		return fmt.Errorf("expected %d generator requests but got %d", n, len(calls))
	}
	return nil
}

func (s *chatbotSteps) promptShouldMention(ctx context.Context, text string) error {
	calls, err := s.tc.GeneratorCalls()
	if err != nil {
		return err
	}
	if len(calls) == 0 {
		return fmt.Errorf("generator received no requests")
	}
	if last := calls[len(calls)-1]; !strings.Contains(last.System, text) {
		return fmt.Errorf("system prompt does not mention %q", text)
	}
	return nil
}
