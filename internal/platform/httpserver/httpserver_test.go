package httpserver

import (
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestWriteTimeout(t *testing.T) {
	assert.Equal(t, 15*time.Second, WriteTimeout(0))
	assert.Equal(t, 15*time.Second, WriteTimeout(10*time.Second))
	assert.Equal(t, 50*time.Second, WriteTimeout(45*time.Second))
}

func TestNew(t *testing.T) {
	srv := New(":8080", http.NotFoundHandler(), 40*time.Second)
	assert.Equal(t, ":8080", srv.Addr)
	assert.Equal(t, 45*time.Second, srv.WriteTimeout)
	assert.Equal(t, 5*time.Second, srv.ReadHeaderTimeout)
}
