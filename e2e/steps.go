package e2e

import (
	"github.com/cucumber/godog"

	"pharmatrace/e2e/steps/common"
	"pharmatrace/e2e/steps/consent"
)

// RegisterSteps registers all step definitions from modular packages
func RegisterSteps(ctx *godog.ScenarioContext, tc *TestContext) {
	// Background, generic requests, assertions
	common.RegisterSteps(ctx, tc)

	consent.RegisterSteps(ctx, tc)
}
