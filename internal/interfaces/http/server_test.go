package http

import (
	"context"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/turtacn/Protocol-Intelligence/internal/config"
	"github.com/turtacn/Protocol-Intelligence/internal/infrastructure/monitoring/logging"
)

func TestNewServer(t *testing.T) {
	mux := http.NewServeMux()
	s := NewServer(config.ServerConfig{Host: "127.0.0.1", Port: 8080}, mux, logging.NewNopLogger())
	assert.Equal(t, "127.0.0.1:8080", s.Addr())
	assert.Equal(t, http.Handler(mux), s.Handler())
}

func TestServer_StartStop(t *testing.T) {
	s := NewServer(config.ServerConfig{Host: "127.0.0.1", Port: 0, ShutdownTimeout: time.Second}, http.NewServeMux(), nil)
	done := make(chan error, 1)
	go func() { done <- s.Start() }()

	time.Sleep(50 * time.Millisecond)
	require.NoError(t, s.Stop(context.Background()))
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("server did not stop")
	}
}
