package ratelimit

import "errors"

// StatusCoder is implemented by errors that carry an HTTP status code.
type StatusCoder interface {
	StatusCode() int
}

// StatusOf returns the HTTP status carried by err or anything it wraps.
func StatusOf(err error) (int, bool) {
	var sc StatusCoder
	if errors.As(err, &sc) {
		return sc.StatusCode(), true
	}
	return 0, false
}

// IsRateLimited reports whether err carries status 429. Errors without a
// status are never rate limited.
func IsRateLimited(err error) bool {
	status, ok := StatusOf(err)
	return ok && status == StatusTooManyRequests
}
