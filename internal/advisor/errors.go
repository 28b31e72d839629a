package advisor

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strings"

	"github.com/sashabaranov/go-openai"
)

// ErrorType classifies advisor failures.
type ErrorType string

const (
	ErrorTypeAuth      ErrorType = "auth"
	ErrorTypeEndpoint  ErrorType = "endpoint"
	ErrorTypeRateLimit ErrorType = "rate_limit"
	ErrorTypeTimeout   ErrorType = "timeout"
	ErrorTypeResponse  ErrorType = "response"
	ErrorTypeUnknown   ErrorType = "unknown"
)

// Error is a classified advisor failure.
type Error struct {
	Type       ErrorType
	Message    string
	Retryable  bool
	StatusCode int
	Cause      error
}

func (e *Error) Error() string {
	var parts []string
	parts = append(parts, string(e.Type))
	if e.StatusCode > 0 {
		parts = append(parts, fmt.Sprintf("HTTP %d", e.StatusCode))
	}
	parts = append(parts, e.Message)
	if e.Cause != nil {
		return fmt.Sprintf("%s: %v", strings.Join(parts, " "), e.Cause)
	}
	return strings.Join(parts, " ")
}

func (e *Error) Unwrap() error {
	return e.Cause
}

func newError(errType ErrorType, message string, retryable bool, cause error) *Error {
	return &Error{Type: errType, Message: message, Retryable: retryable, Cause: cause}
}

// ClassifyError turns transport and API errors into an *Error.
func ClassifyError(err error) *Error {
	if err == nil {
		return nil
	}
	var advErr *Error
	if errors.As(err, &advErr) {
		return advErr
	}

	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return newError(ErrorTypeTimeout, "request timeout", true, err)
	case errors.Is(err, context.Canceled):
		return newError(ErrorTypeTimeout, "request cancelled", false, err)
	}

	status := 0
	var apiErr *openai.APIError
	var reqErr *openai.RequestError
	switch {
	case errors.As(err, &apiErr):
		status = apiErr.HTTPStatusCode
	case errors.As(err, &reqErr):
		status = reqErr.HTTPStatusCode
	}
	if status > 0 {
		e := classifyStatus(status, err)
		e.StatusCode = status
		return e
	}

	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return newError(ErrorTypeTimeout, "request timeout", true, err)
	}
	lower := strings.ToLower(err.Error())
	if strings.Contains(lower, "connection refused") || strings.Contains(lower, "no such host") {
		return newError(ErrorTypeEndpoint, "connection failed", true, err)
	}
	return newError(ErrorTypeUnknown, "advisor error", false, err)
}

func classifyStatus(status int, err error) *Error {
	switch {
	case status == 401 || status == 403:
		return newError(ErrorTypeAuth, "authentication failed", false, err)
	case status == 404:
		return newError(ErrorTypeEndpoint, "endpoint or model not found", false, err)
	case status == 408:
		return newError(ErrorTypeTimeout, "request timeout", true, err)
	case status == 429:
		return newError(ErrorTypeRateLimit, "rate limited", true, err)
	case status >= 500:
		return newError(ErrorTypeEndpoint, "server error", true, err)
	default:
		return newError(ErrorTypeUnknown, "request rejected", false, err)
	}
}

// IsRetryable reports whether err is a retryable advisor error.
func IsRetryable(err error) bool {
	var advErr *Error
	if errors.As(err, &advErr) {
		return advErr.Retryable
	}
	return false
}
