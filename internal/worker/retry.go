package worker

import (
	"context"
	"time"

	"github.com/avast/retry-go/v4"
)

// RetryPolicy is the synthesis retry schedule: a fixed number of attempts
// with a constant delay between them. Every failure type is retried
// uniformly; the provider adapters already classify errors for reporting.
type RetryPolicy struct {
	Attempts uint
	Delay    time.Duration
}

// DefaultRetryPolicy matches the production schedule.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{Attempts: 3, Delay: 2 * time.Second}
}

// Do runs op under the policy, returning the last attempt's error when all
// attempts fail.
func (p RetryPolicy) Do(ctx context.Context, op func() error) error {
	attempts := p.Attempts
	if attempts == 0 {
		attempts = 1
	}
	return retry.Do(op,
		retry.Attempts(attempts),
		retry.Delay(p.Delay),
		retry.DelayType(retry.FixedDelay),
		retry.Context(ctx),
		retry.LastErrorOnly(true),
	)
}
