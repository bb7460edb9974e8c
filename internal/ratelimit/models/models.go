package models

import (
	"time"
)

// EndpointClass groups routes that share a request budget.
type EndpointClass string

const (
	// ClassAuth covers register and login, keyed by client IP.
	ClassAuth EndpointClass = "auth"
	// ClassAPI covers authenticated project routes, keyed by caller.
	ClassAPI EndpointClass = "api"
)

func (c EndpointClass) IsValid() bool {
	return c == ClassAuth || c == ClassAPI
}

// Limit is a sliding-window budget: at most Requests per Window.
type Limit struct {
	Requests int
	Window   time.Duration
}

// Result is the outcome of one rate limit check.
type Result struct {
	Allowed    bool
	Limit      int
	Remaining  int
	ResetAt    time.Time
	RetryAfter int // seconds, set when not allowed
}

type ExceededResponse struct {
	Error      string `json:"error"`
	Message    string `json:"message"`
	RetryAfter int    `json:"retry_after"`
}
