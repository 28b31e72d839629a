package e2e

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"
)

// TestContext carries the HTTP state of one scenario.
type TestContext struct {
	BaseURL       string
	ReviewerToken string
	client        *http.Client

	lastStatus int
	lastBody   []byte
	remembered map[string]string
}

// NewTestContext reads CREDITFLOW_URL and E2E_REVIEWER_TOKEN from the environment.
func NewTestContext() *TestContext {
	base := os.Getenv("CREDITFLOW_URL")
	if base == "" {
		base = "http://localhost:8080"
	}
	return &TestContext{
		BaseURL:       strings.TrimSuffix(base, "/"),
		ReviewerToken: os.Getenv("E2E_REVIEWER_TOKEN"),
		client:        &http.Client{Timeout: 30 * time.Second},
		remembered:    map[string]string{},
	}
}

// Reset clears per-scenario state.
func (tc *TestContext) Reset() {
	tc.lastStatus = 0
	tc.lastBody = nil
	tc.remembered = map[string]string{}
}

func (tc *TestContext) GET(path string, headers map[string]string) error {
	return tc.do(http.MethodGet, path, nil, headers)
}

func (tc *TestContext) POST(path string, body any) error {
	return tc.do(http.MethodPost, path, body, nil)
}

func (tc *TestContext) Send(method, path string, body any, headers map[string]string) error {
	return tc.do(method, path, body, headers)
}

func (tc *TestContext) do(method, path string, body any, headers map[string]string) error {
	var reader io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
		reader = bytes.NewReader(b)
	}
	req, err := http.NewRequestWithContext(context.Background(), method, tc.BaseURL+path, reader)
	if err != nil {
		return err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	resp, err := tc.client.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()
	tc.lastStatus = resp.StatusCode
	tc.lastBody, err = io.ReadAll(resp.Body)
	return err
}

func (tc *TestContext) GetLastStatusCode() int { return tc.lastStatus }

// GetResponseField reads a top-level field of the last JSON response.
func (tc *TestContext) GetResponseField(field string) (any, error) {
	var m map[string]any
	if err := json.Unmarshal(tc.lastBody, &m); err != nil {
		return nil, fmt.Errorf("response is not a JSON object: %w", err)
	}
	v, ok := m[field]
	if !ok {
		return nil, fmt.Errorf("response has no field %q: %s", field, tc.lastBody)
	}
	return v, nil
}

// DecodeResponse unmarshals the last response into v.
func (tc *TestContext) DecodeResponse(v any) error {
	return json.Unmarshal(tc.lastBody, v)
}

func (tc *TestContext) GetReviewerToken() string { return tc.ReviewerToken }

func (tc *TestContext) Remember(key, value string) { tc.remembered[key] = value }

func (tc *TestContext) Recall(key string) (string, bool) {
	v, ok := tc.remembered[key]
	return v, ok
}
