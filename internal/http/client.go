// Package http builds the HTTP clients drivectl talks to the gateway with:
// a proxy-aware, pooled base transport and the rate-limit decorator on top.
package http

import (
	"context"
	"crypto/tls"
	"fmt"
	nethttp "net/http"
	"os"

	"golang.org/x/net/http2"

	"github.com/internxt/drivectl/internal/config"
	"github.com/internxt/drivectl/internal/logging"
	"github.com/internxt/drivectl/internal/ratelimit"
)

// NewBaseTransport creates the concrete transport with no rate limiting:
//
//   - proxy support per cfg.ProxyMode (system, basic, ntlm) with a bypass list
//   - a connection pool sized for concurrent API calls
//   - HTTP/2, unless disabled by config, DISABLE_HTTP2=true, or an active proxy
//
// Proxies often break HTTP/2 multiplexing, so HTTP/2 is turned off whenever a
// proxy is in use. FORCE_HTTP2=true keeps it on anyway.
func NewBaseTransport(ctx context.Context, cfg *config.Config, logger *logging.Logger) (nethttp.RoundTripper, error) {
	if logger == nil {
		logger = logging.Nop()
	}

	tr := newTransport()
	proxied, ntlm, err := configureProxy(tr, cfg, logger)
	if err != nil {
		return nil, err
	}

	disable := cfg.DisableHTTP2 || os.Getenv("DISABLE_HTTP2") == "true"
	if proxied && os.Getenv("FORCE_HTTP2") != "true" {
		disable = true
	}
	if disable {
		tr.ForceAttemptHTTP2 = false
		tr.TLSNextProto = make(map[string]func(string, *tls.Conn) nethttp.RoundTripper)
	} else {
		tr.ForceAttemptHTTP2 = true
		if err := http2.ConfigureTransport(tr); err != nil {
			return nil, fmt.Errorf("failed to configure HTTP/2: %w", err)
		}
	}

	var rt nethttp.RoundTripper = tr
	if ntlm {
		rt = wrapNegotiator(tr)
	}

	// Only warm up when credentials are complete; otherwise the caller is
	// expected to prompt for the password first.
	if proxied && cfg.ProxyWarmup && cfg.ProxyUser != "" && cfg.ProxyPassword != "" {
		if err := warmupProxy(ctx, rt, cfg); err != nil {
			return nil, fmt.Errorf("proxy warmup failed: %w", err)
		}
	}

	logger.Debug().
		Str("proxy_mode", cfg.ProxyMode).
		Bool("proxied", proxied).
		Bool("http2", !disable).
		Msg("base transport ready")

	return rt, nil
}

// WrapTransport puts the rate-limit decorator around base using the retry
// budget from cfg.
func WrapTransport(base nethttp.RoundTripper, svc *ratelimit.Service, cfg *config.Config) *ratelimit.Transport {
	return ratelimit.NewTransport(base, svc, ratelimit.WithMaxRetries(cfg.MaxRateLimitRetries))
}

// NewClient creates the generic rate-limited *http.Client. Every request it
// sends is paced and retried on 429 through svc. There is no overall client
// timeout; callers bound each call with a context instead.
func NewClient(ctx context.Context, cfg *config.Config, svc *ratelimit.Service, logger *logging.Logger) (*nethttp.Client, error) {
	base, err := NewBaseTransport(ctx, cfg, logger)
	if err != nil {
		return nil, err
	}
	return &nethttp.Client{
		Transport: WrapTransport(base, svc, cfg),
		Timeout:   0,
	}, nil
}
