package auth

import (
	"context"
	"fmt"
	"net/http"

	"github.com/cucumber/godog"
)

// TestContext interface defines the methods needed from the main test context
type TestContext interface {
	Request(method, path, token string, body any) error
	ResponseField(field string) (any, error)
	Expect(status int) error
	Username(name string) string
	Remember(kind, name, value string)
	Lookup(kind, name string) (string, error)
}

const password = "correct-horse-battery"

// RegisterSteps registers authentication-related step definitions
func RegisterSteps(ctx *godog.ScenarioContext, tc TestContext) {
	steps := &authSteps{tc: tc}

	ctx.Step(`^user "([^"]*)" has signed up$`, steps.signUp)
	ctx.Step(`^"([^"]*)" requests their profile$`, steps.requestProfile)
	ctx.Step(`^I request my profile with token "([^"]*)"$`, steps.requestProfileWithToken)
	ctx.Step(`^I list projects without a token$`, steps.listWithoutToken)
	ctx.Step(`^I register "([^"]*)" again$`, steps.registerAgain)
}

type authSteps struct {
	tc TestContext
}

func (s *authSteps) register(name string) error {
	username := s.tc.Username(name)
	return s.tc.Request(http.MethodPost, "/auth/register", "", map[string]string{
		"username": username,
		"email":    username + "@example.com",
		"password": password,
	})
}

func (s *authSteps) signUp(_ context.Context, name string) error {
	if err := s.register(name); err != nil {
		return err
	}
	if err := s.tc.Expect(http.StatusCreated); err != nil {
		return err
	}
	userID, err := s.tc.ResponseField("id")
	if err != nil {
		return err
	}

	username := s.tc.Username(name)
	if err := s.tc.Request(http.MethodPost, "/auth/login", "", map[string]string{
		"email":    username + "@example.com",
		"password": password,
	}); err != nil {
		return err
	}
	if err := s.tc.Expect(http.StatusOK); err != nil {
		return err
	}
	token, err := s.tc.ResponseField("access_token")
	if err != nil {
		return err
	}

	s.tc.Remember("user", name, fmt.Sprint(userID))
	s.tc.Remember("token", name, fmt.Sprint(token))
	return nil
}

func (s *authSteps) requestProfile(_ context.Context, name string) error {
	token, err := s.tc.Lookup("token", name)
	if err != nil {
		return err
	}
	return s.tc.Request(http.MethodGet, "/auth/me", token, nil)
}

func (s *authSteps) requestProfileWithToken(_ context.Context, token string) error {
	return s.tc.Request(http.MethodGet, "/auth/me", token, nil)
}

func (s *authSteps) listWithoutToken(context.Context) error {
	return s.tc.Request(http.MethodGet, "/projects", "", nil)
}

func (s *authSteps) registerAgain(_ context.Context, name string) error {
	return s.register(name)
}
