package e2e

import (
	"github.com/cucumber/godog"

	"trellis/e2e/steps/auth"
	"trellis/e2e/steps/common"
	"trellis/e2e/steps/projects"
	"trellis/e2e/steps/ratelimit"
)

// RegisterSteps registers all step definitions from modular packages
func RegisterSteps(ctx *godog.ScenarioContext, tc *TestContext) {
	common.RegisterSteps(ctx, tc)
	auth.RegisterSteps(ctx, tc)
	projects.RegisterSteps(ctx, tc)
	ratelimit.RegisterSteps(ctx, tc)
}
