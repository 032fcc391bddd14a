package http

import (
	"context"
	"errors"
	"io"
	"math/rand"
	"net"
	nethttp "net/http"
	"net/url"
	"strings"
	"time"
)

// networkErrorPatterns catch transport failures that reach us as plain strings
// (e.g. from proxies or the NTLM negotiator) rather than typed errors.
var networkErrorPatterns = []string{
	"tls handshake timeout",
	"connection reset",
	"connection refused",
	"broken pipe",
	"i/o timeout",
	"unexpected eof",
	"server closed idle connection",
	"http2: client connection lost",
}

// IsNetworkError reports whether err is a transport-level failure that is
// safe to retry: the request either never reached the server or the
// connection broke mid-flight. Context cancellation and TLS verification
// failures are not network errors.
func IsNetworkError(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}

	// *url.Error implements net.Error for everything, so look inside it.
	var uerr *url.Error
	if errors.As(err, &uerr) {
		err = uerr.Err
	}

	if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
		return true
	}
	var opErr *net.OpError
	if errors.As(err, &opErr) {
		return true
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}

	msg := strings.ToLower(err.Error())
	for _, p := range networkErrorPatterns {
		if strings.Contains(msg, p) {
			return true
		}
	}
	return false
}

// NetworkCheckRetry is a retryablehttp.CheckRetry policy that retries only
// network errors. HTTP statuses, 429 included, are never retried here: 429s
// are handled by the rate-limit transport below, everything else is the
// caller's to handle.
func NetworkCheckRetry(ctx context.Context, resp *nethttp.Response, err error) (bool, error) {
	if ctx.Err() != nil {
		return false, ctx.Err()
	}
	if err != nil {
		return IsNetworkError(err), nil
	}
	return false, nil
}

// JitterBackoff is a retryablehttp.Backoff with full jitter:
// random(0, min(max, min*2^attempt)). Spreading retries out keeps concurrent
// callers from reconnecting in lockstep.
func JitterBackoff(min, max time.Duration, attemptNum int, _ *nethttp.Response) time.Duration {
	if min <= 0 {
		return 0
	}
	base := max
	if attemptNum < 32 {
		if exp := min << uint(attemptNum); exp > 0 && exp < max {
			base = exp
		}
	}
	if base <= 0 {
		return 0
	}
	return time.Duration(rand.Int63n(int64(base)))
}
