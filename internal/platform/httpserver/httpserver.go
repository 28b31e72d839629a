package httpserver

import (
	"net/http"
	"time"
)

const (
	minWriteTimeout = 15 * time.Second
	writeSlack      = 5 * time.Second
)

// New builds an HTTP server with sane defaults for this project.
// handlerBudget is the longest a handler may legitimately run (an evaluation
// that waits on every advisor retry); the write timeout is stretched to cover it.
func New(addr string, handler http.Handler, handlerBudget time.Duration) *http.Server {
	return &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      WriteTimeout(handlerBudget),
		IdleTimeout:       120 * time.Second,
	}
}

// WriteTimeout returns the handler budget plus slack, never below 15s.
func WriteTimeout(handlerBudget time.Duration) time.Duration {
	d := handlerBudget + writeSlack
	if d < minWriteTimeout {
		return minWriteTimeout
	}
	return d
}
