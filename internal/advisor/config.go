// Package advisor consults an OpenAI-compatible model for a second opinion on
// credit applications that did not pass the rule pipeline cleanly.
package advisor

import (
	"fmt"
	"time"
)

// Config is handed to NewClient at construction. The client never reads
// configuration from the environment.
type Config struct {
	Endpoint     string        // Base URL, e.g. "https://api.openai.com/v1"
	APIKey       string        // Optional for local endpoints
	Model        string        // Model name, e.g. "gpt-4o-mini"
	Timeout      time.Duration // Per-attempt HTTP timeout
	MaxRetries   int           // Retries after the first attempt for retryable errors
	RetryBackoff time.Duration // Delay before the first retry, doubled per attempt
	Temperature  float32
	MaxTokens    int
}

func (c Config) Validate() error {
	if c.Endpoint == "" {
		return fmt.Errorf("advisor endpoint is required")
	}
	if c.Model == "" {
		return fmt.Errorf("advisor model is required")
	}
	if c.Timeout <= 0 {
		return fmt.Errorf("advisor timeout must be positive")
	}
	if c.MaxRetries < 0 {
		return fmt.Errorf("advisor max retries must not be negative")
	}
	return nil
}
