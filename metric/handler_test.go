package metric

import (
	"io"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// startServer fails the test if Start blocks instead of returning once
// the socket is bound.
func startServer(t *testing.T, s *Server) {
	t.Helper()

	errCh := make(chan error, 1)
	go func() { errCh <- s.Start() }()

	select {
	case err := <-errCh:
		require.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("Start did not return after binding")
	}
	t.Cleanup(func() { _ = s.Stop() })
}

func TestServerServesMetricsAndHealth(t *testing.T) {
	s := NewServer(0, "/metrics", NewMetricsRegistry())
	startServer(t, s)

	resp, err := http.Get(s.Address())
	require.NoError(t, err)
	defer func() { _ = resp.Body.Close() }()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	healthURL := strings.Replace(s.Address(), "/metrics", "/health", 1)
	resp, err = http.Get(healthURL)
	require.NoError(t, err)
	defer func() { _ = resp.Body.Close() }()
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Equal(t, "OK", string(body))
}

func TestServerStartTwice(t *testing.T) {
	s := NewServer(0, "/metrics", NewMetricsRegistry())
	startServer(t, s)

	assert.Error(t, s.Start())
}

func TestServerStartNilRegistry(t *testing.T) {
	s := NewServer(0, "/metrics", nil)
	assert.Error(t, s.Start())
}

func TestServerStopIdempotent(t *testing.T) {
	s := NewServer(0, "/metrics", NewMetricsRegistry())
	startServer(t, s)

	assert.NoError(t, s.Stop())
	assert.NoError(t, s.Stop())
}

func TestServerRestartAfterStop(t *testing.T) {
	s := NewServer(0, "/metrics", NewMetricsRegistry())
	startServer(t, s)
	require.NoError(t, s.Stop())

	startServer(t, s)
}
