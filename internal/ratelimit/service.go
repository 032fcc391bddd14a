package ratelimit

import (
	"context"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/internxt/drivectl/internal/logging"
)

// Service combines the endpoint store with the throttling and backoff policy.
// It is safe for concurrent use; one Service is shared by every request going
// to the same backend.
type Service struct {
	store  *Store
	logger *logging.Logger
	now    func() time.Time
	sleep  func(ctx context.Context, d time.Duration) error
}

// Option configures a Service.
type Option func(*Service)

// WithLogger sets the logger used for throttle and retry messages.
func WithLogger(l *logging.Logger) Option {
	return func(s *Service) {
		if l != nil {
			s.logger = l
		}
	}
}

// WithClock overrides the time source. Tests use it to pin "now".
func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		if now != nil {
			s.now = now
		}
	}
}

// WithSleeper overrides how the service waits.
func WithSleeper(sleep func(ctx context.Context, d time.Duration) error) Option {
	return func(s *Service) {
		if sleep != nil {
			s.sleep = sleep
		}
	}
}

// NewService creates a Service backed by store. A nil store gets a fresh one.
func NewService(store *Store, opts ...Option) *Service {
	if store == nil {
		store = NewStore()
	}
	s := &Service{
		store:  store,
		logger: logging.Nop(),
		now:    time.Now,
		sleep:  sleepContext,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Store returns the backing store.
func (s *Service) Store() *Store {
	return s.store
}

// State returns the recorded snapshot for key.
func (s *Service) State(key string) (State, bool) {
	return s.store.Get(key)
}

// Snapshot returns a copy of every tracked endpoint.
func (s *Service) Snapshot() map[string]State {
	return s.store.Snapshot()
}

// Now returns the service clock's current time.
func (s *Service) Now() time.Time {
	return s.now()
}

// UpdateFromHeaders records the quota advertised in h for key. When any of the
// limit, remaining or reset headers is missing or not an integer the call does
// nothing, so a partial header set never clobbers a good snapshot.
func (s *Service) UpdateFromHeaders(h http.Header, key string) {
	if h == nil {
		return
	}
	limit, ok := parseIntPrefix(h.Get(HeaderLimit))
	if !ok {
		return
	}
	remaining, ok := parseIntPrefix(h.Get(HeaderRemaining))
	if !ok {
		return
	}
	reset, ok := parseIntPrefix(h.Get(HeaderReset))
	if !ok {
		return
	}

	s.store.Set(key, State{
		Limit:     limit,
		Remaining: remaining,
		ResetAt:   s.ParseResetValue(reset),
	})
}

// ParseResetValue converts a reset header value into an absolute instant.
// The unit is inferred from magnitude, checked in this order:
//   - > 1e12: epoch milliseconds
//   - > 1e9:  epoch seconds
//   - > 1e6:  microseconds remaining (e.g. 33293277 ≈ 33s)
//   - > 1000: milliseconds remaining
//   - otherwise: seconds remaining
func (s *Service) ParseResetValue(v int64) time.Time {
	switch {
	case v > resetEpochMillisThreshold:
		return time.UnixMilli(v)
	case v > resetEpochSecondsThreshold:
		return time.UnixMilli(v * 1000)
	case v > resetMicrosecondsThreshold:
		return s.now().Add(time.Duration(v) * time.Microsecond)
	case v > resetMillisecondsThreshold:
		return s.now().Add(time.Duration(v) * time.Millisecond)
	default:
		return s.now().Add(time.Duration(v) * time.Second)
	}
}

// ShouldThrottle reports whether the remaining quota for key is below the
// throttle threshold. Keys with no snapshot are never throttled, and a limit
// of zero never throttles.
func (s *Service) ShouldThrottle(key string) bool {
	st, ok := s.store.Get(key)
	if !ok {
		return false
	}
	return belowThreshold(st)
}

// remaining < limit * 0.4, kept in integers.
func belowThreshold(st State) bool {
	return st.Remaining*10 < st.Limit*4
}

// WaitIfNeeded paces a request to key when quota is low. With quota exhausted
// it waits for the window to reset (capped at MaxBackoff); with some quota
// left it spreads the remaining calls over the rest of the window, at most
// MaxThrottleDelay per call. It returns early with ctx.Err() if ctx ends.
func (s *Service) WaitIfNeeded(ctx context.Context, key string) error {
	st, ok := s.store.Get(key)
	if !ok || !belowThreshold(st) {
		return nil
	}

	untilReset := st.ResetAt.Sub(s.now())
	if untilReset <= 0 {
		return nil
	}

	if st.Remaining <= 0 {
		delay := min(untilReset+RetryBuffer, MaxBackoff)
		s.logger.Info().
			Str("endpoint", key).
			Int64("delay_ms", delay.Milliseconds()).
			Msg("rate limit reached, waiting for reset")
		return s.sleep(ctx, delay)
	}

	delay := min(untilReset/time.Duration(st.Remaining), MaxThrottleDelay)
	s.logger.Info().
		Str("endpoint", key).
		Int64("remaining", st.Remaining).
		Int64("limit", st.Limit).
		Int64("delay_ms", delay.Milliseconds()).
		Msg("throttling request")
	return s.sleep(ctx, delay)
}

// RetryDelay computes how long to wait before retrying a 429 on key.
// A positive retry-after directive always wins. Otherwise a pending reset for
// key gives time-until-reset plus RetryBuffer, capped at MaxBackoff. With
// neither, BaseBackoff is used.
func (s *Service) RetryDelay(retryAfter string, key string) time.Duration {
	if d, ok := s.parseRetryAfter(retryAfter); ok {
		return d
	}

	if key != "" {
		if st, ok := s.store.Get(key); ok {
			if untilReset := st.ResetAt.Sub(s.now()); untilReset > 0 {
				return min(untilReset+RetryBuffer, MaxBackoff)
			}
		}
	}

	return BaseBackoff
}

// parseRetryAfter accepts delay-seconds and, as a fallback, an HTTP-date.
// Zero, negative and past values are not a usable directive.
func (s *Service) parseRetryAfter(v string) (time.Duration, bool) {
	v = strings.TrimSpace(v)
	if v == "" {
		return 0, false
	}
	if seconds, ok := parseIntPrefix(v); ok {
		if seconds > 0 {
			return time.Duration(seconds) * time.Second, true
		}
		return 0, false
	}
	if at, err := http.ParseTime(v); err == nil {
		if d := at.Sub(s.now()); d > 0 {
			return d, true
		}
	}
	return 0, false
}

// parseIntPrefix parses the leading base-10 integer of v: optional leading
// whitespace, an optional sign, then digits. Anything after the digits is
// ignored, so "200.5" is 200. Returns false when there are no digits.
func parseIntPrefix(v string) (int64, bool) {
	v = strings.TrimLeft(v, " \t\r\n")
	end := 0
	if end < len(v) && (v[end] == '+' || v[end] == '-') {
		end++
	}
	digitsStart := end
	for end < len(v) && v[end] >= '0' && v[end] <= '9' {
		end++
	}
	if end == digitsStart {
		return 0, false
	}
	n, err := strconv.ParseInt(v[:end], 10, 64)
	if err != nil {
		return 0, false
	}
	return n, true
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
