package api

import (
	"errors"
	"fmt"
	nethttp "net/http"
	"strings"

	"github.com/tidwall/gjson"
)

// ErrEmptyBaseURL is returned by NewClient when the Drive URL is not configured.
var ErrEmptyBaseURL = errors.New("API base URL is empty")

// maxErrorBody caps how much of an error response is kept on Error.
const maxErrorBody = 4 << 10

// Error is the normalized error for any non-2xx API response. It implements
// StatusCode() so ratelimit.IsRateLimited recognizes rate-limited calls.
type Error struct {
	Status  int
	Message string
	Method  string
	URL     string
	Header  nethttp.Header
	Body    []byte
}

func (e *Error) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("%s %s failed: status %d: %s", e.Method, e.URL, e.Status, e.Message)
	}
	return fmt.Sprintf("%s %s failed: status %d", e.Method, e.URL, e.Status)
}

// StatusCode returns the HTTP status of the failed response.
func (e *Error) StatusCode() int {
	return e.Status
}

// newError builds an Error from a failed response and its (already read) body.
func newError(resp *nethttp.Response, body []byte) *Error {
	e := &Error{
		Status:  resp.StatusCode,
		Message: errorMessage(body),
		Header:  resp.Header.Clone(),
	}
	if resp.Request != nil {
		e.Method = resp.Request.Method
		if resp.Request.URL != nil {
			// Presigned URLs carry credentials in the query.
			u := *resp.Request.URL
			u.RawQuery = ""
			e.URL = u.Redacted()
		}
	}
	if len(body) > maxErrorBody {
		body = body[:maxErrorBody]
	}
	e.Body = body
	if e.Message == "" {
		e.Message = nethttp.StatusText(resp.StatusCode)
	}
	return e
}

// errorMessage pulls a human readable message out of a JSON error body.
// Non-JSON bodies are used verbatim when short.
func errorMessage(body []byte) string {
	if len(body) == 0 {
		return ""
	}
	if gjson.ValidBytes(body) {
		for _, path := range []string{"error.message", "message", "error"} {
			if r := gjson.GetBytes(body, path); r.Exists() && r.Type == gjson.String && r.String() != "" {
				return r.String()
			}
		}
		return ""
	}
	msg := strings.TrimSpace(string(body))
	if len(msg) > 200 {
		msg = msg[:200]
	}
	return msg
}

// IsNotFound reports whether err is an API 404.
func IsNotFound(err error) bool {
	var apiErr *Error
	return errors.As(err, &apiErr) && apiErr.Status == nethttp.StatusNotFound
}

// IsUnauthorized reports whether err is an API 401.
func IsUnauthorized(err error) bool {
	var apiErr *Error
	return errors.As(err, &apiErr) && apiErr.Status == nethttp.StatusUnauthorized
}
