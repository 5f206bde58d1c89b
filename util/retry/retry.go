// Package retry provides a small fixed/linear backoff helper used for
// connection-establishment retries (not for the Indexer's scan loop, which
// has its own exact fixed-delay contract and sleeps directly).
package retry

import (
	"context"
	"time"
)

// Retry configures a bounded retry loop: one attempt plus up to MaxRetries
// retries, waiting MinWait seconds after the first failure, increasing by
// one second per retry up to MaxWait seconds.
type Retry struct {
	MinWait    int
	MaxWait    int
	MaxRetries int
}

func (r Retry) wait(attempt int) time.Duration {
	w := r.MinWait + attempt
	if w > r.MaxWait {
		w = r.MaxWait
	}
	return time.Duration(w) * time.Second
}

// RetryFunc calls f until it succeeds, shouldRetry(err) returns false, or
// MaxRetries is exhausted; it returns the last error in the latter cases.
func RetryFunc(ctx context.Context, f func(ctx context.Context) error, shouldRetry func(error) bool, r Retry) error {
	var err error
	for attempt := 0; attempt <= r.MaxRetries; attempt++ {
		err = f(ctx)
		if err == nil {
			return nil
		}
		if !shouldRetry(err) {
			return err
		}
		if attempt == r.MaxRetries {
			break
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(r.wait(attempt)):
		}
	}
	return err
}
