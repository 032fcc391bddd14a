package ratelimit

import (
	"bytes"
	"fmt"
	"io"
	"net/http"

	"github.com/hashicorp/go-retryablehttp"
)

// maxDrainBytes bounds how much of a rejected response is read so the
// connection can be reused.
const maxDrainBytes = 64 << 10

// Transport is an http.RoundTripper decorator that applies the rate limit
// policy around any concrete transport:
//
//   - before sending, waits if the endpoint's quota is low
//   - after every response, records the advertised quota
//   - on 429, waits and reissues the request directly on the wrapped
//     transport, so nothing layered above it processes the same call twice
//
// When the retry budget is exhausted the final 429 response is returned
// unchanged. Transport errors are returned on first occurrence.
type Transport struct {
	base       http.RoundTripper
	svc        *Service
	maxRetries int
}

// TransportOption configures a Transport.
type TransportOption func(*Transport)

// WithMaxRetries overrides the number of 429 retries. Negative values are ignored.
func WithMaxRetries(n int) TransportOption {
	return func(t *Transport) {
		if n >= 0 {
			t.maxRetries = n
		}
	}
}

// NewTransport wraps base. A nil base uses http.DefaultTransport.
func NewTransport(base http.RoundTripper, svc *Service, opts ...TransportOption) *Transport {
	if base == nil {
		base = http.DefaultTransport
	}
	if svc == nil {
		svc = NewService(nil)
	}
	t := &Transport{
		base:       base,
		svc:        svc,
		maxRetries: MaxRateLimitRetries,
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// Service returns the rate limit service this transport reports to.
func (t *Transport) Service() *Service {
	return t.svc
}

// RoundTrip implements http.RoundTripper.
func (t *Transport) RoundTrip(req *http.Request) (*http.Response, error) {
	ctx := req.Context()
	key := EndpointKeyFromRequest(req)

	if err := t.svc.WaitIfNeeded(ctx, key); err != nil {
		closeRequestBody(req)
		return nil, err
	}

	getBody, snapshotted, err := rewindableBody(req)
	if err != nil {
		return nil, err
	}

	out := req
	if snapshotted {
		if out, err = requestWithBody(req, getBody); err != nil {
			return nil, err
		}
	}

	for attempt := 0; ; attempt++ {
		resp, err := t.base.RoundTrip(out)
		if err != nil {
			return nil, err
		}

		t.observe(req, resp, key)

		if resp.StatusCode != StatusTooManyRequests {
			return resp, nil
		}
		if attempt >= t.maxRetries {
			t.svc.logger.Error().
				Str("endpoint", key).
				Int("max_retries", t.maxRetries).
				Msg("429 max retries exhausted")
			return resp, nil
		}

		delay := t.svc.RetryDelay(resp.Header.Get(HeaderRetryAfter), key)
		t.svc.logger.Warn().
			Str("endpoint", key).
			Int("attempt", attempt+1).
			Int64("delay_ms", delay.Milliseconds()).
			Msgf("429 received, retry %d/%d after %dms", attempt+1, t.maxRetries, delay.Milliseconds())

		drainAndClose(resp.Body)

		if err := t.svc.sleep(ctx, delay); err != nil {
			return nil, err
		}

		if out, err = requestWithBody(req, getBody); err != nil {
			return nil, err
		}
	}
}

// observe feeds response headers into the store and logs them at debug level.
func (t *Transport) observe(req *http.Request, resp *http.Response, key string) {
	h := resp.Header
	limit, remaining, reset := h.Get(HeaderLimit), h.Get(HeaderRemaining), h.Get(HeaderReset)
	if limit != "" || remaining != "" || reset != "" {
		ev := t.svc.logger.Debug()
		if resp.StatusCode >= 400 {
			ev = t.svc.logger.Warn()
		}
		ev.Str("method", req.Method).
			Str("endpoint", key).
			Int("status", resp.StatusCode).
			Str("limit", limit).
			Str("remaining", remaining).
			Str("reset", reset).
			Msg("quota headers")
	}
	t.svc.UpdateFromHeaders(h, key)
}

// rewindableBody returns a function producing a fresh copy of the request
// body for each attempt. Bodies without GetBody are read fully up front; the
// second return value reports whether the original body was consumed.
func rewindableBody(req *http.Request) (func() (io.ReadCloser, error), bool, error) {
	if req.Body == nil || req.Body == http.NoBody {
		return nil, false, nil
	}
	if req.GetBody != nil {
		return req.GetBody, false, nil
	}

	rreq, err := retryablehttp.FromRequest(req)
	if err != nil {
		closeRequestBody(req)
		return nil, false, fmt.Errorf("buffer request body: %w", err)
	}
	buf, err := rreq.BodyBytes()
	closeRequestBody(req)
	if err != nil {
		return nil, false, fmt.Errorf("buffer request body: %w", err)
	}

	return func() (io.ReadCloser, error) {
		return io.NopCloser(bytes.NewReader(buf)), nil
	}, true, nil
}

// requestWithBody clones req for another attempt. The original request is
// never mutated.
func requestWithBody(req *http.Request, getBody func() (io.ReadCloser, error)) (*http.Request, error) {
	out := req.Clone(req.Context())
	if getBody == nil {
		return out, nil
	}
	body, err := getBody()
	if err != nil {
		return nil, fmt.Errorf("rewind request body: %w", err)
	}
	out.Body = body
	out.GetBody = getBody
	return out, nil
}

func closeRequestBody(req *http.Request) {
	if req.Body != nil {
		_ = req.Body.Close()
	}
}

func drainAndClose(body io.ReadCloser) {
	if body == nil {
		return
	}
	_, _ = io.Copy(io.Discard, io.LimitReader(body, maxDrainBytes))
	_ = body.Close()
}
