// Package constants holds tuning values shared across drivectl packages.
package constants

import (
	"time"
)

// Application identity
const (
	// AppName is used in the User-Agent header and log messages.
	AppName = "drivectl"

	// ClientHeaderName identifies the calling client to the gateway.
	ClientHeaderName = "internxt-client"
)

// API and Context Timeouts
const (
	// APIContextTimeout - default timeout for a single API command (30 seconds)
	// Covers the whole call including rate-limit waits and retries.
	APIContextTimeout = 30 * time.Second

	// ProbeContextTimeout - timeout for a full probe run (10 minutes)
	ProbeContextTimeout = 10 * time.Minute

	// ProxyWarmupTimeout - timeout for the optional proxy warmup request (15 seconds)
	ProxyWarmupTimeout = 15 * time.Second
)

// HTTP Client Timeouts
const (
	// HTTPIdleConnTimeout - how long to keep idle connections open (90 seconds)
	HTTPIdleConnTimeout = 90 * time.Second

	// HTTPTLSHandshakeTimeout - timeout for TLS handshake (30 seconds)
	HTTPTLSHandshakeTimeout = 30 * time.Second

	// HTTPExpectContinueTimeout - timeout for 100-continue response (1 second)
	HTTPExpectContinueTimeout = 1 * time.Second

	// HTTPDialTimeout - timeout for establishing connection (30 seconds)
	HTTPDialTimeout = 30 * time.Second

	// HTTPDialKeepAlive - keep-alive period for dialer (30 seconds)
	HTTPDialKeepAlive = 30 * time.Second

	// HTTPResponseHeaderTimeout - time to wait for response headers (60 seconds)
	HTTPResponseHeaderTimeout = 60 * time.Second
)

// Connection pool sizing
const (
	// HTTPMaxIdleConns - idle connections kept across all hosts
	HTTPMaxIdleConns = 100

	// HTTPMaxConnsPerHost - active + idle connections per gateway host
	// Must be >= HTTPMaxIdleConnsPerHost.
	HTTPMaxConnsPerHost = 64

	// HTTPMaxIdleConnsPerHost - idle connections per gateway host
	HTTPMaxIdleConnsPerHost = 64
)

// Network retry backoff (transport errors only, never HTTP statuses)
const (
	// NetworkRetryWaitMin - first backoff step after a connection failure
	NetworkRetryWaitMin = 200 * time.Millisecond

	// NetworkRetryWaitMax - cap for connection failure backoff
	NetworkRetryWaitMax = 5 * time.Second
)

// Probe defaults
const (
	// DefaultProbeRequests - number of calls issued by "drivectl probe"
	DefaultProbeRequests = 20

	// DefaultProbeConcurrency - number of goroutines issuing probe calls
	DefaultProbeConcurrency = 4

	// MaxProbeConcurrency - upper bound accepted for -c
	MaxProbeConcurrency = 64
)
