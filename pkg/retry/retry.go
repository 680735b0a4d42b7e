package retry

import (
	"context"
	"time"

	"github.com/cenkalti/backoff/v4"
)

// Do runs op up to maxAttempts times, sleeping initial*2^(n-1) between
// attempts (no jitter, so retry timing stays predictable for the token
// endpoints this guards). Errors for which isTerminal returns true stop the
// loop immediately; the last error is returned once attempts are exhausted.
func Do(ctx context.Context, maxAttempts int, initial time.Duration, isTerminal func(error) bool, op func() error) error {
	exp := backoff.NewExponentialBackOff()
	exp.InitialInterval = initial
	exp.Multiplier = 2
	exp.RandomizationFactor = 0
	exp.MaxInterval = time.Minute
	exp.MaxElapsedTime = 0

	policy := backoff.WithContext(backoff.WithMaxRetries(exp, uint64(maxAttempts-1)), ctx)

	return backoff.Retry(func() error {
		err := op()
		if err == nil {
			return nil
		}
		if isTerminal != nil && isTerminal(err) {
			return backoff.Permanent(err)
		}
		return err
	}, policy)
}
