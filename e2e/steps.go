package e2e

import (
	"github.com/cucumber/godog"

	"folio/e2e/steps/chatbot"
	"folio/e2e/steps/common"
	"folio/e2e/steps/contact"
	"folio/e2e/steps/ratelimit"
)

// RegisterSteps registers all step definitions
func RegisterSteps(ctx *godog.ScenarioContext, tc *TestContext) {
	common.RegisterSteps(ctx, tc)
	chatbot.RegisterSteps(ctx, tc)
	contact.RegisterSteps(ctx, tc)
	ratelimit.RegisterSteps(ctx, tc)
}
