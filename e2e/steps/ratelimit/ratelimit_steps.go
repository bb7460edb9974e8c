package ratelimit

import (
	"context"
	"fmt"
	"net/http"

	"github.com/cucumber/godog"
)

// TestContext interface defines the methods needed from the main test context
type TestContext interface {
	Request(method, path, token string, body any) error
	LastStatus() int
	LastHeader(name string) string
	Username(name string) string
}

// RegisterSteps registers rate-limiting step definitions
func RegisterSteps(ctx *godog.ScenarioContext, tc TestContext) {
	steps := &ratelimitSteps{tc: tc}

	ctx.Step(`^I attempt to log in as "([^"]*)" with a wrong password (\d+) times$`, steps.failLoginNTimes)
	ctx.Step(`^the first (\d+) attempts should return (\d+)$`, steps.firstAttemptsShouldReturn)
	ctx.Step(`^the last attempt should return (\d+)$`, steps.lastAttemptShouldReturn)
	ctx.Step(`^the response should carry a Retry-After header$`, steps.retryAfterPresent)
}

type ratelimitSteps struct {
	tc       TestContext
	statuses []int
}

func (s *ratelimitSteps) failLoginNTimes(_ context.Context, name string, times int) error {
	s.statuses = s.statuses[:0]
	email := s.tc.Username(name) + "@example.com"
	for i := 0; i < times; i++ {
		if err := s.tc.Request(http.MethodPost, "/auth/login", "", map[string]string{
			"email":    email,
			"password": "wrong-password",
		}); err != nil {
			return err
		}
		s.statuses = append(s.statuses, s.tc.LastStatus())
	}
	return nil
}

func (s *ratelimitSteps) firstAttemptsShouldReturn(_ context.Context, n, status int) error {
	if n > len(s.statuses) {
		return fmt.Errorf("only %d attempts were made", len(s.statuses))
	}
	for i, got := range s.statuses[:n] {
		if got != status {
			return fmt.Errorf("attempt %d returned %d, expected %d", i+1, got, status)
		}
	}
	return nil
}

func (s *ratelimitSteps) lastAttemptShouldReturn(_ context.Context, status int) error {
	if len(s.statuses) == 0 {
		return fmt.Errorf("no attempts were made")
	}
	if got := s.statuses[len(s.statuses)-1]; got != status {
		return fmt.Errorf("last attempt returned %d, expected %d", got, status)
	}
	return nil
}

func (s *ratelimitSteps) retryAfterPresent(context.Context) error {
	if s.tc.LastHeader("Retry-After") == "" {
		return fmt.Errorf("no Retry-After header on the last response")
	}
	return nil
}
