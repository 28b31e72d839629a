package advisor

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"creditflow/internal/evaluation/models"
	rulesmodels "creditflow/internal/rules/models"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func ptr[T any](v T) *T { return &v }

func sampleView() models.View {
	return models.View{
		ApplicationID:   "5f0c7a8e-6f0e-4c4e-9d7a-1f2b3c4d5e6f",
		ApplicantID:     "cust-7",
		RequestedAmount: 15000,
		Parameters:      models.Parameters{"term": float64(24)},
		Profile:         &models.ApplicantProfile{IsAvailable: true, Name: "Bea", Age: ptr(34), MonthlyIncome: ptr(6000.0)},
		Bureau:          &models.CreditBureau{IsAvailable: true, Score: ptr(720), Status: models.BureauRegular},
		HardFailure:     true,
	}
}

func toolCallBody(t *testing.T, args string) []byte {
	t.Helper()
	body := map[string]any{
		"id":     "chatcmpl-1",
		"object": "chat.completion",
		"model":  "test-model",
		"choices": []any{map[string]any{
			"index": 0,
			"message": map[string]any{
				"role":    "assistant",
				"content": "",
				"tool_calls": []any{map[string]any{
					"id":   "call_1",
					"type": "function",
					"function": map[string]any{
						"name":      decisionTool,
						"arguments": args,
					},
				}},
			},
			"finish_reason": "tool_calls",
		}},
		"usage": map[string]any{"prompt_tokens": 10, "completion_tokens": 5, "total_tokens": 15},
	}
	b, err := json.Marshal(body)
	require.NoError(t, err)
	return b
}

func contentBody(t *testing.T, content string) []byte {
	t.Helper()
	b, err := json.Marshal(map[string]any{
		"id":     "chatcmpl-2",
		"object": "chat.completion",
		"choices": []any{map[string]any{
			"index":         0,
			"message":       map[string]any{"role": "assistant", "content": content},
			"finish_reason": "stop",
		}},
	})
	require.NoError(t, err)
	return b
}

func errorBody(message string) []byte {
	return []byte(`{"error":{"message":"` + message + `","type":"server_error"}}`)
}

type reply struct {
	status int
	body   []byte
}

// fakeEndpoint serves the replies in order and repeats the last one.
func fakeEndpoint(t *testing.T, replies ...reply) (*httptest.Server, *atomic.Int32, *[]map[string]any) {
	t.Helper()
	var calls atomic.Int32
	var requests []map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/chat/completions", r.URL.Path)
		var req map[string]any
		_ = json.NewDecoder(r.Body).Decode(&req)
		requests = append(requests, req)

		n := int(calls.Add(1)) - 1
		if n >= len(replies) {
			n = len(replies) - 1
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(replies[n].status)
		_, _ = w.Write(replies[n].body)
	}))
	t.Cleanup(srv.Close)
	return srv, &calls, &requests
}

func newTestClient(t *testing.T, endpoint string, retries int) *Client {
	t.Helper()
	c, err := NewClient(Config{
		Endpoint:     endpoint + "/",
		APIKey:       "test-key",
		Model:        "test-model",
		Timeout:      2 * time.Second,
		MaxRetries:   retries,
		RetryBackoff: time.Millisecond,
	}, discardLogger())
	require.NoError(t, err)
	return c
}

func TestClientConsult(t *testing.T) {
	t.Run("reads the forced tool call", func(t *testing.T) {
		args := `{"decision":"approve","confidence":0.91,"justification":" solid income ","proposed_rules":[
			{"name":"cap_new_customers","description":"cap first loans","type":"MAX_AMOUNT","parameters":{"max_amount":3000,"first_relationship_only":true}},
			{"name":"bogus","type":"MAX_AGE","parameters":{}},
			{"name":"bad_params","type":"MIN_TERM","parameters":{"minimum_term":"twelve"}}
		]}`
		srv, calls, requests := fakeEndpoint(t, reply{status: http.StatusOK, body: toolCallBody(t, args)})
		c := newTestClient(t, srv.URL, 2)

		resp, err := c.Consult(context.Background(), sampleView())
		require.NoError(t, err)
		assert.Equal(t, int32(1), calls.Load())

		assert.Equal(t, models.AdvisorApprove, resp.Outcome.Decision)
		assert.InDelta(t, 0.91, resp.Outcome.Confidence, 1e-9)
		assert.Equal(t, "solid income", resp.Outcome.Justification)
		assert.Equal(t, sourceModel, resp.Outcome.Source)

		require.Len(t, resp.ProposedRules, 1)
		proposal := resp.ProposedRules[0]
		assert.Equal(t, "cap_new_customers", proposal.Name)
		assert.Equal(t, rulesmodels.KindMaxAmount, proposal.Kind)
		assert.Equal(t, rulesmodels.OriginAdvisor, proposal.Origin)
		assert.False(t, proposal.Approved)
		assert.Equal(t, rulesmodels.MaxAmountParams{MaxAmount: 3000, FirstRelationshipOnly: true}, proposal.Params)

		require.Len(t, *requests, 1)
		req := (*requests)[0]
		assert.Equal(t, "test-model", req["model"])
		choice, ok := req["tool_choice"].(map[string]any)
		require.True(t, ok, "tool_choice must force the decision function")
		assert.Equal(t, decisionTool, choice["function"].(map[string]any)["name"])
	})

	t.Run("falls back to JSON in the message content", func(t *testing.T) {
		content := "<think>weighing</think>Here you go:\n```json\n{\"decision\":\"MANUAL_REVIEW\",\"confidence\":0.4,\"justification\":\"thin file\"}\n```"
		srv, _, _ := fakeEndpoint(t, reply{status: http.StatusOK, body: contentBody(t, content)})
		c := newTestClient(t, srv.URL, 0)

		resp, err := c.Consult(context.Background(), sampleView())
		require.NoError(t, err)
		assert.Equal(t, models.AdvisorManualReview, resp.Outcome.Decision)
		assert.Equal(t, "thin file", resp.Outcome.Justification)
	})

	t.Run("retries server errors", func(t *testing.T) {
		srv, calls, _ := fakeEndpoint(t,
			reply{status: http.StatusInternalServerError, body: errorBody("boom")},
			reply{status: http.StatusOK, body: toolCallBody(t, `{"decision":"REJECT","confidence":0.8,"justification":"debts"}`)},
		)
		c := newTestClient(t, srv.URL, 2)

		resp, err := c.Consult(context.Background(), sampleView())
		require.NoError(t, err)
		assert.Equal(t, int32(2), calls.Load())
		assert.Equal(t, models.AdvisorReject, resp.Outcome.Decision)
	})

	t.Run("gives up after max retries", func(t *testing.T) {
		srv, calls, _ := fakeEndpoint(t, reply{status: http.StatusServiceUnavailable, body: errorBody("down")})
		c := newTestClient(t, srv.URL, 2)

		_, err := c.Consult(context.Background(), sampleView())
		require.Error(t, err)
		assert.Equal(t, int32(3), calls.Load())
		assert.True(t, IsRetryable(err))
	})

	t.Run("does not retry auth failures", func(t *testing.T) {
		srv, calls, _ := fakeEndpoint(t, reply{status: http.StatusUnauthorized, body: errorBody("bad key")})
		c := newTestClient(t, srv.URL, 3)

		_, err := c.Consult(context.Background(), sampleView())
		require.Error(t, err)
		assert.Equal(t, int32(1), calls.Load())
		var advErr *Error
		require.ErrorAs(t, err, &advErr)
		assert.Equal(t, ErrorTypeAuth, advErr.Type)
		assert.Equal(t, http.StatusUnauthorized, advErr.StatusCode)
	})

	t.Run("rejects malformed verdicts", func(t *testing.T) {
		cases := map[string]string{
			"unknown decision":   `{"decision":"MAYBE","confidence":0.5,"justification":"x"}`,
			"missing confidence": `{"decision":"APPROVE","justification":"x"}`,
			"not json":           `decision: approve`,
		}
		for name, args := range cases {
			t.Run(name, func(t *testing.T) {
				srv, calls, _ := fakeEndpoint(t, reply{status: http.StatusOK, body: toolCallBody(t, args)})
				c := newTestClient(t, srv.URL, 2)

				_, err := c.Consult(context.Background(), sampleView())
				var advErr *Error
				require.ErrorAs(t, err, &advErr)
				assert.Equal(t, ErrorTypeResponse, advErr.Type)
				assert.Equal(t, int32(1), calls.Load())
			})
		}
	})

	t.Run("stops retrying when the context ends", func(t *testing.T) {
		srv, calls, _ := fakeEndpoint(t, reply{status: http.StatusBadGateway, body: errorBody("gateway")})
		c := newTestClient(t, srv.URL, 5)
		ctx, cancel := context.WithCancel(context.Background())
		c.sleep = func(context.Context, time.Duration) error {
			cancel()
			return context.Canceled
		}

		_, err := c.Consult(ctx, sampleView())
		require.Error(t, err)
		assert.Equal(t, int32(1), calls.Load())
	})
}

func TestNewClientValidatesConfig(t *testing.T) {
	_, err := NewClient(Config{Model: "m", Timeout: time.Second}, nil)
	require.Error(t, err)
	_, err = NewClient(Config{Endpoint: "http://x", Timeout: time.Second}, nil)
	require.Error(t, err)
	_, err = NewClient(Config{Endpoint: "http://x", Model: "m"}, nil)
	require.Error(t, err)
	_, err = NewClient(Config{Endpoint: "http://x", Model: "m", Timeout: time.Second, MaxRetries: -1}, nil)
	require.Error(t, err)
}
