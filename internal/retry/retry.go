// Package retry runs bounded attempt loops with a pluggable delay schedule.
package retry

import (
	"context"
	"time"

	"github.com/cenkalti/backoff/v4"
)

// DefaultDelay is the fixed pause between attempts.
const DefaultDelay = time.Second

// Schedule maps a failed attempt (1-based) and the attempt budget to the delay
// before the next attempt.
type Schedule func(attempt, maxAttempts int) time.Duration

// Fixed returns a schedule that always waits d.
func Fixed(d time.Duration) Schedule {
	return func(int, int) time.Duration { return d }
}

// Timer is the wait primitive used between attempts.
type Timer = backoff.Timer

// Policy bounds an attempt loop.
type Policy struct {
	// MaxAttempts is the total number of attempts; values below 1 mean 1.
	MaxAttempts int

	// Schedule computes the delay between attempts (defaults to Fixed(DefaultDelay)).
	Schedule Schedule

	// Timer overrides the wall-clock timer, mainly for tests.
	Timer Timer
}

// Attempts returns the effective attempt budget.
func (p Policy) Attempts() int {
	if p.MaxAttempts < 1 {
		return 1
	}
	return p.MaxAttempts
}

// Operation is one attempt. attempt starts at 1.
type Operation func(attempt int) error

// Notify is called after a failed attempt that will be retried.
type Notify func(err error, delay time.Duration)

// Permanent marks err as not retryable; Do returns it unwrapped.
func Permanent(err error) error {
	return backoff.Permanent(err)
}

// Do runs op until it succeeds, returns a Permanent error, the attempt budget is
// spent, or ctx is done between attempts. The last error is returned.
func Do(ctx context.Context, policy Policy, op Operation, notify Notify) error {
	if ctx == nil {
		ctx = context.Background()
	}
	schedule := policy.Schedule
	if schedule == nil {
		schedule = Fixed(DefaultDelay)
	}

	b := &scheduleBackOff{schedule: schedule, maxAttempts: policy.Attempts()}
	attempt := 0
	operation := func() error {
		attempt++
		return op(attempt)
	}

	var backoffNotify backoff.Notify
	if notify != nil {
		backoffNotify = backoff.Notify(notify)
	}

	return backoff.RetryNotifyWithTimer(operation, backoff.WithContext(b, ctx), backoffNotify, policy.Timer)
}

// scheduleBackOff adapts a Schedule to backoff.BackOff and stops once the
// attempt budget is used.
type scheduleBackOff struct {
	schedule    Schedule
	maxAttempts int
	failed      int
}

func (b *scheduleBackOff) NextBackOff() time.Duration {
	b.failed++
	if b.failed >= b.maxAttempts {
		return backoff.Stop
	}
	delay := b.schedule(b.failed, b.maxAttempts)
	if delay < 0 {
		return 0
	}
	return delay
}

func (b *scheduleBackOff) Reset() {
	b.failed = 0
}
