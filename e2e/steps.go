package e2e

import (
	"github.com/cucumber/godog"

	"creditflow/e2e/steps/common"
	"creditflow/e2e/steps/credit"
	"creditflow/e2e/steps/rules"
)

// RegisterSteps registers all step definitions from modular packages
func RegisterSteps(ctx *godog.ScenarioContext, tc *TestContext) {
	// Register common steps (service health, generic assertions)
	common.RegisterSteps(ctx, tc)

	// Register credit evaluation steps
	credit.RegisterSteps(ctx, tc)

	// Register rule administration steps
	rules.RegisterSteps(ctx, tc)
}
