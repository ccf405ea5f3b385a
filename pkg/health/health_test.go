package health

import (
	"context"
	"net"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHTTPChecker_Healthy(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	checker := NewHTTPChecker(server.URL)
	result := checker.Check(context.Background())

	assert.True(t, result.Healthy)
	assert.Contains(t, result.Message, "200")
	assert.Equal(t, CheckTypeHTTP, checker.Type())
}

func TestHTTPChecker_UnexpectedStatus(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer server.Close()

	result := NewHTTPChecker(server.URL).Check(context.Background())
	assert.False(t, result.Healthy)
	assert.Contains(t, result.Message, "503")
}

func TestHTTPChecker_Unreachable(t *testing.T) {
	checker := NewHTTPChecker("http://127.0.0.1:1/ready").WithTimeout(100 * time.Millisecond)
	result := checker.Check(context.Background())
	assert.False(t, result.Healthy)
}

func TestTCPChecker(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer ln.Close()
	go func() {
		for {
			conn, err := ln.Accept()
			if err != nil {
				return
			}
			conn.Close()
		}
	}()

	checker := NewTCPChecker(ln.Addr().String())
	result := checker.Check(context.Background())
	assert.True(t, result.Healthy)
	assert.Equal(t, CheckTypeTCP, checker.Type())
}

func TestTCPChecker_Refused(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	addr := ln.Addr().String()
	ln.Close()

	result := NewTCPChecker(addr).Check(context.Background())
	assert.False(t, result.Healthy)
}

func TestStatus_RetriesBeforeUnhealthy(t *testing.T) {
	status := NewStatus()
	cfg := Config{Retries: 3}
	assert.True(t, status.Healthy, "fresh workers start healthy")

	fail := Result{Healthy: false, CheckedAt: time.Now()}
	status.Update(fail, cfg)
	status.Update(fail, cfg)
	assert.True(t, status.Healthy, "below the retry budget")

	status.Update(fail, cfg)
	assert.False(t, status.Healthy)
	assert.Equal(t, 3, status.ConsecutiveFailures)

	status.Update(Result{Healthy: true, CheckedAt: time.Now()}, cfg)
	assert.True(t, status.Healthy, "one success recovers")
	assert.Zero(t, status.ConsecutiveFailures)
}
