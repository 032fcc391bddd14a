package ratelimit

import (
	"net/http"
	"net/url"
	"regexp"
	"strings"
)

// Endpoint describes where a request is going, split the way API clients
// usually hold it: a configured base URL plus a per-call path. Either part may
// be empty, and URL may be absolute on its own.
type Endpoint struct {
	BaseURL string
	URL     string
}

// Dynamic path segments that identify a resource rather than a route:
//   - UUIDs: xxxxxxxx-xxxx-xxxx-xxxx-xxxxxxxxxxxx
//   - hex ids of 12+ chars (bucket ids, object ids)
//   - purely numeric ids
//
// The hex pattern needs at least 12 characters so words like "dead", "beef"
// or "cafe" stay as route segments.
var (
	uuidSegment    = regexp.MustCompile(`(?i)^[0-9a-f]{8}-[0-9a-f]{4}-[0-9a-f]{4}-[0-9a-f]{4}-[0-9a-f]{12}$`)
	hexIDSegment   = regexp.MustCompile(`(?i)^[0-9a-f]{12,}$`)
	numericSegment = regexp.MustCompile(`^[0-9]+$`)
)

const idPlaceholder = ":id"

func isIDSegment(segment string) bool {
	if segment == "" {
		return false
	}
	return uuidSegment.MatchString(segment) ||
		hexIDSegment.MatchString(segment) ||
		numericSegment.MatchString(segment)
}

func normalizePathSegments(path string) string {
	segments := strings.Split(path, "/")
	for i, segment := range segments {
		if isIDSegment(segment) {
			segments[i] = idPlaceholder
		}
	}
	return strings.Join(segments, "/")
}

// joinEndpoint concatenates base and path with exactly one slash between them.
func joinEndpoint(base, path string) string {
	switch {
	case strings.HasSuffix(base, "/") && strings.HasPrefix(path, "/"):
		return base + path[1:]
	case base != "" && path != "" && !strings.HasSuffix(base, "/") && !strings.HasPrefix(path, "/"):
		return base + "/" + path
	default:
		return base + path
	}
}

// EndpointKey maps a request descriptor to a stable key shared by every call
// to the same logical route. Query strings are dropped and identifier segments
// are replaced with ":id", so "/files/12345/info" and "/files/67890/info"
// share one quota entry.
//
// Examples:
//
//	{BaseURL: "https://gateway.internxt.com/drive", URL: "/folders/<uuid>/content"}
//	  → "https://gateway.internxt.com/drive/folders/:id/content"
//	{URL: "https://gateway.internxt.com/payments/display-billing"}
//	  → "https://gateway.internxt.com/payments/display-billing"
func EndpointKey(e Endpoint) string {
	if e.BaseURL == "" && e.URL == "" {
		return UnknownEndpoint
	}

	full := joinEndpoint(e.BaseURL, e.URL)

	if u, err := url.Parse(full); err == nil && u.Scheme != "" && u.Host != "" {
		return u.Scheme + "://" + u.Host + normalizePathSegments(u.EscapedPath())
	}

	withoutQuery, _, _ := strings.Cut(full, "?")
	return normalizePathSegments(withoutQuery)
}

// EndpointKeyFromRequest derives the endpoint key of an outgoing request.
// By the time a request reaches a RoundTripper its URL is already absolute,
// so the whole URL is treated as the path with no base.
func EndpointKeyFromRequest(req *http.Request) string {
	if req == nil || req.URL == nil {
		return UnknownEndpoint
	}
	return EndpointKey(Endpoint{URL: req.URL.String()})
}
