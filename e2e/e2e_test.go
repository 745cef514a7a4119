//go:build e2e

package e2e

import (
	"context"
	"os"
	"testing"

	"github.com/cucumber/godog"
)

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

// TestFeatures runs the scenarios against a server started separately, e.g.
// with CIVIC_AUTH_ADMIN_TOKEN_HASH set to the hash of CIVIC_E2E_ADMIN_TOKEN.
func TestFeatures(t *testing.T) {
	tc := NewTestContext(
		envOr("CIVIC_E2E_BASE_URL", "http://localhost:8080"),
		envOr("CIVIC_E2E_ADMIN_TOKEN", "e2e-admin-token"),
	)

	suite := godog.TestSuite{
		Name: "civictrust",
		ScenarioInitializer: func(ctx *godog.ScenarioContext) {
			ctx.Before(func(ctx context.Context, _ *godog.Scenario) (context.Context, error) {
				tc.Reset()
				return ctx, nil
			})
			RegisterSteps(ctx, tc)
		},
		Options: &godog.Options{
			Format:   "pretty",
			Paths:    []string{"features"},
			Strict:   true,
			TestingT: t,
		},
	}
	if suite.Run() != 0 {
		t.Fatal("e2e scenarios failed")
	}
}
