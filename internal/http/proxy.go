package http

import (
	"context"
	"crypto/tls"
	"fmt"
	"net"
	nethttp "net/http"
	"net/url"
	"strings"

	ntlmssp "github.com/Azure/go-ntlmssp"
	"golang.org/x/net/http/httpproxy"

	"github.com/internxt/drivectl/internal/config"
	"github.com/internxt/drivectl/internal/constants"
	"github.com/internxt/drivectl/internal/logging"
)

// newTransport returns the pooled *http.Transport every drivectl client starts from.
func newTransport() *nethttp.Transport {
	return &nethttp.Transport{
		DialContext: (&net.Dialer{
			Timeout:   constants.HTTPDialTimeout,
			KeepAlive: constants.HTTPDialKeepAlive,
		}).DialContext,
		TLSClientConfig: &tls.Config{
			MinVersion: tls.VersionTLS12,
		},
		MaxIdleConns:          constants.HTTPMaxIdleConns,
		MaxIdleConnsPerHost:   constants.HTTPMaxIdleConnsPerHost,
		MaxConnsPerHost:       constants.HTTPMaxConnsPerHost,
		IdleConnTimeout:       constants.HTTPIdleConnTimeout,
		TLSHandshakeTimeout:   constants.HTTPTLSHandshakeTimeout,
		ExpectContinueTimeout: constants.HTTPExpectContinueTimeout,
		ResponseHeaderTimeout: constants.HTTPResponseHeaderTimeout,
	}
}

// configureProxy sets tr.Proxy according to cfg.ProxyMode. It returns true
// when requests will go through a proxy and wrapNTLM when the transport must
// be wrapped in an NTLM negotiator.
func configureProxy(tr *nethttp.Transport, cfg *config.Config, logger *logging.Logger) (proxied, wrapNTLM bool, err error) {
	switch strings.ToLower(cfg.ProxyMode) {
	case config.ProxyModeNone, "":
		tr.Proxy = nil
		return false, false, nil

	case config.ProxyModeSystem:
		tr.Proxy = nethttp.ProxyFromEnvironment
		return hasProxyEnv(), false, nil

	case config.ProxyModeNTLM, config.ProxyModeBasic:
		// Incomplete saved config: fall back to a direct connection so the
		// user can still run "config" commands to fix it.
		if cfg.ProxyHost == "" {
			logger.Warn().Str("proxy_mode", cfg.ProxyMode).Msg("proxy host is missing, falling back to no-proxy mode")
			tr.Proxy = nil
			return false, false, nil
		}
		if cfg.ProxyUser != "" && cfg.ProxyPassword == "" {
			logger.Warn().Msg("proxy user configured but password missing, proxy auth disabled until password is set")
		}
		tr.Proxy = proxyFuncWithBypass(buildProxyURL(cfg), cfg.NoProxy, logger)
		return true, strings.EqualFold(cfg.ProxyMode, config.ProxyModeNTLM), nil

	default:
		return false, false, fmt.Errorf("unsupported proxy mode: %s", cfg.ProxyMode)
	}
}

func hasProxyEnv() bool {
	cfg := httpproxy.FromEnvironment()
	return cfg.HTTPProxy != "" || cfg.HTTPSProxy != ""
}

// wrapNegotiator adds NTLM authentication in front of rt.
func wrapNegotiator(rt nethttp.RoundTripper) nethttp.RoundTripper {
	return ntlmssp.Negotiator{RoundTripper: rt}
}

// buildProxyURL constructs a proxy URL from config
func buildProxyURL(cfg *config.Config) *url.URL {
	port := cfg.ProxyPort
	if port == 0 {
		port = 8080
	}

	proxyURL := &url.URL{
		Scheme: "http",
		Host:   net.JoinHostPort(cfg.ProxyHost, fmt.Sprint(port)),
	}

	// Only embed credentials if both user AND password are provided.
	// An empty password in the URL makes some proxies reject the request.
	if cfg.ProxyUser != "" && cfg.ProxyPassword != "" {
		proxyURL.User = url.UserPassword(cfg.ProxyUser, cfg.ProxyPassword)
	}

	return proxyURL
}

// proxyFuncWithBypass returns a proxy function that respects the NoProxy bypass list.
// If noProxy is empty, behaves identically to nethttp.ProxyURL.
// When noProxy is set, uses golang.org/x/net/http/httpproxy to match hosts/CIDRs.
func proxyFuncWithBypass(proxyURL *url.URL, noProxy string, logger *logging.Logger) func(*nethttp.Request) (*url.URL, error) {
	if noProxy == "" {
		return nethttp.ProxyURL(proxyURL)
	}
	cfg := httpproxy.Config{
		HTTPProxy:  proxyURL.String(),
		HTTPSProxy: proxyURL.String(),
		NoProxy:    noProxy,
	}
	proxyFunc := cfg.ProxyFunc()
	return func(req *nethttp.Request) (*url.URL, error) {
		result, err := proxyFunc(req.URL)
		if result == nil {
			logger.Debug().Str("host", req.URL.Host).Msg("proxy bypass, direct connection")
		} else {
			logger.Debug().Str("host", req.URL.Host).Str("proxy", result.Host).Msg("proxied")
		}
		return result, err
	}
}

// warmupProxy performs one request to establish (and authenticate) the proxy
// connection before real traffic starts. Server errors fail the warmup; any
// other status means the proxy let us through.
func warmupProxy(ctx context.Context, rt nethttp.RoundTripper, cfg *config.Config) error {
	ctx, cancel := context.WithTimeout(ctx, constants.ProxyWarmupTimeout)
	defer cancel()

	req, err := nethttp.NewRequestWithContext(ctx, nethttp.MethodHead, cfg.DriveURL, nil)
	if err != nil {
		return err
	}

	resp, err := (&nethttp.Client{Transport: rt}).Do(req)
	if err != nil {
		return fmt.Errorf("warmup request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 500 {
		return fmt.Errorf("warmup request returned server error: %d", resp.StatusCode)
	}
	return nil
}
