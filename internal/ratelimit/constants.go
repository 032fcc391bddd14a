// Package ratelimit provides the adaptive client-side rate limiting layer for
// Drive API calls: per-endpoint quota tracking, proactive throttling, and
// transparent retry of HTTP 429 responses.
package ratelimit

import "time"

// Quota headers advertised by the Drive and Network gateways.
//
// Values are unitless integers. The reset header in particular is reported in
// different units depending on the backend, see Service.ParseResetValue.
const (
	HeaderLimit      = "x-internxt-ratelimit-limit"
	HeaderRemaining  = "x-internxt-ratelimit-remaining"
	HeaderReset      = "x-internxt-ratelimit-reset"
	HeaderRetryAfter = "retry-after"
)

// StatusTooManyRequests is the only status treated as rate limited.
const StatusTooManyRequests = 429

// MaxRateLimitRetries is the number of additional attempts after the first
// 429. A request is sent at most MaxRateLimitRetries+1 times.
const MaxRateLimitRetries = 3

// Throttling policy
//
// Proactive throttling kicks in once the remaining quota drops below
// ThrottleThreshold of the advertised limit. The remaining calls are then
// spread evenly across the time left in the window, capped per call.
const (
	// ThrottleThreshold is the fraction of the limit below which requests are paced.
	ThrottleThreshold = 0.4

	// MaxThrottleDelay caps a single proactive pacing step.
	MaxThrottleDelay = 2000 * time.Millisecond
)

// Backoff policy for rejected (429) requests and exhausted quotas.
const (
	// RetryBuffer is added to the time until reset so the retry lands after
	// the window has actually rolled over on the server.
	RetryBuffer = 2000 * time.Millisecond

	// BaseBackoff is used when neither retry-after nor a pending reset is known.
	BaseBackoff = 3000 * time.Millisecond

	// MaxBackoff caps any locally computed backoff step.
	MaxBackoff = 5000 * time.Millisecond
)

// UnknownEndpoint is the key used when a request carries no URL information.
const UnknownEndpoint = "unknown"

// Reset value thresholds used to disambiguate units.
const (
	resetEpochMillisThreshold  = 1e12
	resetEpochSecondsThreshold = 1e9
	resetMicrosecondsThreshold = 1e6
	resetMillisecondsThreshold = 1000
)
