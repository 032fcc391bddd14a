package http

import (
	"context"
	"io"
	nethttp "net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/internxt/drivectl/internal/config"
	"github.com/internxt/drivectl/internal/logging"
	"github.com/internxt/drivectl/internal/ratelimit"
)

func noSleep(context.Context, time.Duration) error { return nil }

// TestNewClient_RetriesRateLimited verifies the generic client retries a 429
// transparently and records quota headers.
func TestNewClient_RetriesRateLimited(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(nethttp.HandlerFunc(func(w nethttp.ResponseWriter, r *nethttp.Request) {
		w.Header().Set(ratelimit.HeaderLimit, "200")
		w.Header().Set(ratelimit.HeaderRemaining, "150")
		w.Header().Set(ratelimit.HeaderReset, "60")
		if calls.Add(1) == 1 {
			w.Header().Set("Retry-After", "1")
			w.WriteHeader(nethttp.StatusTooManyRequests)
			return
		}
		_, _ = io.WriteString(w, "ok")
	}))
	defer srv.Close()

	cfg := config.DefaultConfig()
	svc := ratelimit.NewService(nil, ratelimit.WithSleeper(noSleep))

	client, err := NewClient(context.Background(), cfg, svc, logging.Nop())
	require.NoError(t, err)

	resp, err := client.Get(srv.URL + "/users/usage")
	require.NoError(t, err)
	defer resp.Body.Close()

	body, _ := io.ReadAll(resp.Body)
	assert.Equal(t, nethttp.StatusOK, resp.StatusCode)
	assert.Equal(t, "ok", string(body))
	assert.Equal(t, int32(2), calls.Load())

	_, ok := svc.State(srv.URL + "/users/usage")
	assert.True(t, ok, "quota should be recorded")
}

// TestNewClient_RespectsRetryBudget verifies max_rate_limit_retries is applied.
func TestNewClient_RespectsRetryBudget(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(nethttp.HandlerFunc(func(w nethttp.ResponseWriter, r *nethttp.Request) {
		calls.Add(1)
		w.WriteHeader(nethttp.StatusTooManyRequests)
	}))
	defer srv.Close()

	cfg := config.DefaultConfig()
	cfg.MaxRateLimitRetries = 1
	svc := ratelimit.NewService(nil, ratelimit.WithSleeper(noSleep))

	client, err := NewClient(context.Background(), cfg, svc, nil)
	require.NoError(t, err)

	resp, err := client.Get(srv.URL + "/files/recents")
	require.NoError(t, err)
	resp.Body.Close()

	assert.Equal(t, nethttp.StatusTooManyRequests, resp.StatusCode)
	assert.Equal(t, int32(2), calls.Load())
}

// TestNewBaseTransport_UnsupportedProxyMode verifies config errors surface.
func TestNewBaseTransport_UnsupportedProxyMode(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.ProxyMode = "socks"

	_, err := NewBaseTransport(context.Background(), cfg, nil)
	assert.Error(t, err)
}

// TestNewBaseTransport_DisableHTTP2 verifies the config toggle clears TLSNextProto.
func TestNewBaseTransport_DisableHTTP2(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.DisableHTTP2 = true

	rt, err := NewBaseTransport(context.Background(), cfg, nil)
	require.NoError(t, err)

	tr, ok := rt.(*nethttp.Transport)
	require.True(t, ok)
	assert.False(t, tr.ForceAttemptHTTP2)
	assert.NotNil(t, tr.TLSNextProto)
	assert.Empty(t, tr.TLSNextProto)
}
