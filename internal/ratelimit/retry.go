package ratelimit

import "context"

// WithRetry runs op and retries it while it fails with a 429 status, for call
// sites whose response was already decoded by the time the error surfaces and
// so can't be retried at the transport.
//
// Non-429 errors, including errors with no status at all, are returned after
// the first call. A 429 is retried up to MaxRateLimitRetries times, waiting
// svc.RetryDelay("", endpointKey) between calls. Whatever op last returned is
// handed back unwrapped, so callers' error checks keep working. The label only
// appears in log messages.
func WithRetry[T any](ctx context.Context, svc *Service, label, endpointKey string, op func(context.Context) (T, error)) (T, error) {
	attempt := 0
	for {
		result, err := op(ctx)
		if err == nil {
			return result, nil
		}
		if !IsRateLimited(err) {
			return result, err
		}
		if attempt >= MaxRateLimitRetries {
			svc.logger.Error().
				Str("context", label).
				Int("max_retries", MaxRateLimitRetries).
				Msg("429 retries exhausted")
			return result, err
		}

		attempt++
		delay := svc.RetryDelay("", endpointKey)
		svc.logger.Warn().
			Str("context", label).
			Str("endpoint", endpointKey).
			Int("attempt", attempt).
			Int64("delay_ms", delay.Milliseconds()).
			Msgf("%s 429, retry %d/%d after %dms", label, attempt, MaxRateLimitRetries, delay.Milliseconds())

		if sleepErr := svc.sleep(ctx, delay); sleepErr != nil {
			return result, sleepErr
		}
	}
}

// Retry is WithRetry for operations that return only an error.
func Retry(ctx context.Context, svc *Service, label, endpointKey string, op func(context.Context) error) error {
	_, err := WithRetry(ctx, svc, label, endpointKey, func(ctx context.Context) (struct{}, error) {
		return struct{}{}, op(ctx)
	})
	return err
}
