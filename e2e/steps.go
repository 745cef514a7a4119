package e2e

import (
	"github.com/cucumber/godog"

	"civictrust/e2e/steps/common"
	"civictrust/e2e/steps/governance"
	"civictrust/e2e/steps/standing"
)

// RegisterSteps registers all step definitions from modular packages
func RegisterSteps(ctx *godog.ScenarioContext, tc *TestContext) {
	common.RegisterSteps(ctx, tc)
	standing.RegisterSteps(ctx, tc)
	governance.RegisterSteps(ctx, tc)
}
