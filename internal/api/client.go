// Package api is the Drive and Network SDK client. Requests go through
// retryablehttp (network failures only) on top of the rate-limit transport,
// and responses are normalized into typed models or *Error.
package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	nethttp "net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/hashicorp/go-retryablehttp"
	"github.com/tidwall/gjson"

	"github.com/internxt/drivectl/internal/config"
	"github.com/internxt/drivectl/internal/constants"
	"github.com/internxt/drivectl/internal/http"
	"github.com/internxt/drivectl/internal/logging"
	"github.com/internxt/drivectl/internal/ratelimit"
	"github.com/internxt/drivectl/internal/version"
)

// retryLogger implements the retryablehttp.LeveledLogger interface
type retryLogger struct {
	logger *logging.Logger
}

func (l *retryLogger) Error(msg string, keysAndValues ...interface{}) {
	l.logger.Error().Fields(keysAndValues).Msg(msg)
}

func (l *retryLogger) Info(msg string, keysAndValues ...interface{}) {
	// Only log errors and warnings, not all info
}

func (l *retryLogger) Debug(msg string, keysAndValues ...interface{}) {
	l.logger.Debug().Fields(keysAndValues).Msg(msg)
}

func (l *retryLogger) Warn(msg string, keysAndValues ...interface{}) {
	l.logger.Warn().Fields(keysAndValues).Msg(msg)
}

// apiMetrics tracks API usage per endpoint key
type apiMetrics struct {
	sync.Mutex
	totalCalls  int64
	callsByPath map[string]int64
	windowStart time.Time
	windowCalls int64
}

// Stats is a point-in-time copy of the client's call counters.
type Stats struct {
	TotalCalls  int64
	CallsByPath map[string]int64
}

// Client is the Drive/Network API client.
type Client struct {
	httpClient *nethttp.Client // retryablehttp over the rate-limit transport
	rawClient  *nethttp.Client // base transport only, for presigned storage URLs
	limiter    *ratelimit.Service
	logger     *logging.Logger
	driveURL   string
	networkURL string
	apiKey     string
	metrics    *apiMetrics
}

// NewClient creates a new API client. All clients built against the same
// backend should share svc so they see the same quota estimates.
func NewClient(ctx context.Context, cfg *config.Config, svc *ratelimit.Service, logger *logging.Logger) (*Client, error) {
	if strings.TrimSpace(cfg.DriveURL) == "" {
		return nil, ErrEmptyBaseURL
	}
	if logger == nil {
		logger = logging.Nop()
	}
	if svc == nil {
		svc = ratelimit.NewService(nil, ratelimit.WithLogger(logger))
	}

	base, err := http.NewBaseTransport(ctx, cfg, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to configure HTTP client: %w", err)
	}

	// Network errors are retried here; 429s are retried one layer down by
	// the rate-limit transport, so CheckRetry ignores statuses entirely and
	// the final response is passed through untouched.
	retryClient := retryablehttp.NewClient()
	retryClient.HTTPClient = &nethttp.Client{Transport: http.WrapTransport(base, svc, cfg)}
	retryClient.RetryMax = cfg.NetworkRetries
	retryClient.RetryWaitMin = constants.NetworkRetryWaitMin
	retryClient.RetryWaitMax = constants.NetworkRetryWaitMax
	retryClient.CheckRetry = http.NetworkCheckRetry
	retryClient.Backoff = http.JitterBackoff
	retryClient.ErrorHandler = retryablehttp.PassthroughErrorHandler
	retryClient.Logger = &retryLogger{logger: logger}

	return &Client{
		httpClient: retryClient.StandardClient(),
		rawClient:  &nethttp.Client{Transport: base},
		limiter:    svc,
		logger:     logger,
		driveURL:   strings.TrimSuffix(cfg.DriveURL, "/"),
		networkURL: strings.TrimSuffix(cfg.NetworkURL, "/"),
		apiKey:     cfg.APIKey,
		metrics: &apiMetrics{
			callsByPath: make(map[string]int64),
			windowStart: time.Now(),
		},
	}, nil
}

// RateLimiter returns the rate limit service the client reports to.
func (c *Client) RateLimiter() *ratelimit.Service {
	return c.limiter
}

// Stats returns a copy of the call counters.
func (c *Client) Stats() Stats {
	c.metrics.Lock()
	defer c.metrics.Unlock()
	byPath := make(map[string]int64, len(c.metrics.callsByPath))
	for k, v := range c.metrics.callsByPath {
		byPath[k] = v
	}
	return Stats{TotalCalls: c.metrics.totalCalls, CallsByPath: byPath}
}

func (c *Client) track(key string) {
	c.metrics.Lock()
	defer c.metrics.Unlock()
	c.metrics.totalCalls++
	c.metrics.callsByPath[key]++
	c.metrics.windowCalls++

	if elapsed := time.Since(c.metrics.windowStart); elapsed >= 30*time.Second {
		c.logger.Debug().
			Float64("req_per_sec", float64(c.metrics.windowCalls)/elapsed.Seconds()).
			Int64("total_calls", c.metrics.totalCalls).
			Msg("API usage")
		c.metrics.windowCalls = 0
		c.metrics.windowStart = time.Now()
	}
}

// doRequest performs an authenticated JSON request against base+path.
func (c *Client) doRequest(ctx context.Context, method, base, path string, query url.Values, body interface{}) (*nethttp.Response, error) {
	var reqBody io.Reader
	if body != nil {
		jsonData, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal request body: %w", err)
		}
		reqBody = bytes.NewReader(jsonData)
	}

	target := base + path
	if len(query) > 0 {
		target += "?" + query.Encode()
	}
	req, err := nethttp.NewRequestWithContext(ctx, method, target, reqBody)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("X-Request-Id", uuid.NewString())
	req.Header.Set(constants.ClientHeaderName, constants.AppName)
	req.Header.Set("internxt-version", version.Version)
	req.Header.Set("User-Agent", constants.AppName+"/"+version.Version)

	c.track(ratelimit.EndpointKeyFromRequest(req))

	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.logger.Error().Err(err).Str("method", method).Str("path", path).Msg("API call failed")
		return nil, fmt.Errorf("request failed: %w", err)
	}
	return resp, nil
}

// call sends a request and decodes a 2xx JSON response into out (which may
// be nil). Non-2xx responses become *Error.
func (c *Client) call(ctx context.Context, method, base, path string, query url.Values, body, out interface{}) error {
	resp, err := c.doRequest(ctx, method, base, path, query, body)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return newError(resp, data)
	}

	if out == nil || len(bytes.TrimSpace(data)) == 0 {
		return nil
	}
	if err := json.Unmarshal(unwrapData(data), out); err != nil {
		return fmt.Errorf("failed to decode %s response: %w", path, err)
	}
	return nil
}

// unwrapData strips a {"data": ...} envelope some gateway routes add.
func unwrapData(body []byte) []byte {
	root := gjson.ParseBytes(body)
	if !root.IsObject() {
		return body
	}
	if d := root.Get("data"); d.Exists() && (d.IsObject() || d.IsArray()) && len(root.Map()) == 1 {
		return []byte(d.Raw)
	}
	return body
}
