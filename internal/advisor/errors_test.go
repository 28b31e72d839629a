package advisor

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/sashabaranov/go-openai"
	"github.com/stretchr/testify/assert"
)

func TestClassifyError(t *testing.T) {
	tests := []struct {
		name      string
		err       error
		wantType  ErrorType
		retryable bool
	}{
		{"deadline", fmt.Errorf("call: %w", context.DeadlineExceeded), ErrorTypeTimeout, true},
		{"cancelled", context.Canceled, ErrorTypeTimeout, false},
		{"unauthorized", &openai.APIError{HTTPStatusCode: 401, Message: "bad key"}, ErrorTypeAuth, false},
		{"model missing", &openai.APIError{HTTPStatusCode: 404, Message: "no model"}, ErrorTypeEndpoint, false},
		{"rate limited", &openai.APIError{HTTPStatusCode: 429, Message: "slow down"}, ErrorTypeRateLimit, true},
		{"server error", &openai.RequestError{HTTPStatusCode: 502, Err: errors.New("bad gateway")}, ErrorTypeEndpoint, true},
		{"bad request", &openai.APIError{HTTPStatusCode: 400, Message: "nope"}, ErrorTypeUnknown, false},
		{"refused", errors.New("dial tcp 127.0.0.1:1: connect: connection refused"), ErrorTypeEndpoint, true},
		{"other", errors.New("weird"), ErrorTypeUnknown, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ClassifyError(tt.err)
			assert.Equal(t, tt.wantType, got.Type)
			assert.Equal(t, tt.retryable, got.Retryable)
			assert.Equal(t, tt.retryable, IsRetryable(got))
			assert.ErrorIs(t, got, tt.err)
		})
	}

	assert.Nil(t, ClassifyError(nil))
	classified := ClassifyError(errors.New("x"))
	assert.Same(t, classified, ClassifyError(fmt.Errorf("wrapped: %w", classified)))
	assert.False(t, IsRetryable(errors.New("plain")))
}
