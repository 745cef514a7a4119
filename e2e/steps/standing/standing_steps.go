package standing

import (
	"context"
	"fmt"
	"net/url"

	"github.com/cucumber/godog"
)

// TestContext interface defines the methods needed from the main test context
type TestContext interface {
	POST(path string, body any) error
	GET(path string, headers map[string]string) error
}

// RegisterSteps registers the pure privilege and standing calculations.
func RegisterSteps(ctx *godog.ScenarioContext, tc TestContext) {
	steps := &standingSteps{tc: tc}

	ctx.Step(`^I apply impact "([^"]*)" with multiplier ([\d.]+) to score (-?\d+)$`, steps.applyImpact)
	ctx.Step(`^I resolve privileges for role "([^"]*)" with reputation (-?\d+) and assurance "([^"]*)"$`, steps.resolvePrivileges)
}

type standingSteps struct {
	tc TestContext
}

func (s *standingSteps) applyImpact(_ context.Context, impact string, multiplier float64, score int) error {
	return s.tc.POST("/v1/standing/impacts", map[string]any{
		"current_score":     score,
		"impact_type":       impact,
		"neural_multiplier": multiplier,
	})
}

func (s *standingSteps) resolvePrivileges(_ context.Context, role string, reputation int, assurance string) error {
	q := url.Values{}
	q.Set("role", role)
	q.Set("reputation", fmt.Sprint(reputation))
	q.Set("assurance", assurance)
	return s.tc.GET("/v1/privileges?"+q.Encode(), nil)
}
