// Package e2e drives a running trellis server through godog scenarios.
package e2e

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"sync/atomic"
	"time"
)

var scenarioSeq atomic.Int64

// TestContext carries one scenario's state: the last response and the ids
// of everything the scenario created, looked up by the names used in steps.
type TestContext struct {
	baseURL    string
	adminToken string
	client     *http.Client

	runID    string
	clientIP string
	refs     map[string]string

	lastStatus int
	lastHeader http.Header
	lastBody   []byte
}

// NewTestContext reads TRELLIS_E2E_URL and TRELLIS_E2E_ADMIN_TOKEN.
func NewTestContext() *TestContext {
	baseURL := os.Getenv("TRELLIS_E2E_URL")
	if baseURL == "" {
		baseURL = "http://localhost:8080"
	}
	return &TestContext{
		baseURL:    strings.TrimRight(baseURL, "/"),
		adminToken: os.Getenv("TRELLIS_E2E_ADMIN_TOKEN"),
		client:     &http.Client{Timeout: 10 * time.Second},
	}
}

// Reset starts a fresh scenario. Each scenario gets its own usernames and
// client IP so runs against a long-lived server do not collide.
func (tc *TestContext) Reset() {
	n := scenarioSeq.Add(1)
	tc.runID = fmt.Sprintf("%d%d", time.Now().UnixNano()%1_000_000, n)
	tc.clientIP = fmt.Sprintf("10.%d.%d.%d", (n>>16)&0xff, (n>>8)&0xff, n&0xff)
	tc.refs = map[string]string{}
	tc.lastStatus = 0
	tc.lastHeader = nil
	tc.lastBody = nil
}

// Username scopes a step's user name to this scenario.
func (tc *TestContext) Username(name string) string {
	return name + "-" + tc.runID
}

func (tc *TestContext) AdminToken() string {
	return tc.adminToken
}

func (tc *TestContext) Remember(kind, name, value string) {
	tc.refs[kind+"/"+name] = value
}

func (tc *TestContext) Lookup(kind, name string) (string, error) {
	v, ok := tc.refs[kind+"/"+name]
	if !ok {
		return "", fmt.Errorf("unknown %s %q", kind, name)
	}
	return v, nil
}

// Request sends a JSON request. An empty token sends no Authorization header.
func (tc *TestContext) Request(method, path, token string, body any) error {
	headers := map[string]string{}
	if token != "" {
		headers["Authorization"] = "Bearer " + token
	}
	return tc.RequestWithHeaders(method, path, headers, body)
}

func (tc *TestContext) RequestWithHeaders(method, path string, headers map[string]string, body any) error {
	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encode request body: %w", err)
		}
		reader = bytes.NewReader(raw)
	}
	req, err := http.NewRequest(method, tc.baseURL+path, reader)
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Forwarded-For", tc.clientIP)
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	resp, err := tc.client.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()
	tc.lastBody, err = io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}
	tc.lastStatus = resp.StatusCode
	tc.lastHeader = resp.Header
	return nil
}

func (tc *TestContext) LastStatus() int {
	return tc.lastStatus
}

func (tc *TestContext) LastHeader(name string) string {
	return tc.lastHeader.Get(name)
}

func (tc *TestContext) LastBody() []byte {
	return tc.lastBody
}

// Decode unmarshals the last response body into v.
func (tc *TestContext) Decode(v any) error {
	if err := json.Unmarshal(tc.lastBody, v); err != nil {
		return fmt.Errorf("decode response (%d %s): %w", tc.lastStatus, tc.lastBody, err)
	}
	return nil
}

// ResponseField returns a top-level field of the last JSON response.
func (tc *TestContext) ResponseField(field string) (any, error) {
	var body map[string]any
	if err := tc.Decode(&body); err != nil {
		return nil, err
	}
	v, ok := body[field]
	if !ok {
		return nil, fmt.Errorf("field %q not in response: %s", field, tc.lastBody)
	}
	return v, nil
}

// Expect fails unless the last response had the given status.
func (tc *TestContext) Expect(status int) error {
	if tc.lastStatus != status {
		return fmt.Errorf("expected status %d, got %d: %s", status, tc.lastStatus, tc.lastBody)
	}
	return nil
}
