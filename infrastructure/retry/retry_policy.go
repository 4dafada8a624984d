// Package retry runs an operation under a bounded attempt budget with exponential backoff.
package retry

import (
	"context"
	"time"

	"yt-fetcher/domain/apperror"
	"yt-fetcher/infrastructure/logger"
)

// State describes one call while it is being retried. It is created per call.
type State struct {
	Attempt     int // attempts made so far, 1-based
	Class       Class
	LastErr     error
	NextBackoff time.Duration
	TotalWait   time.Duration
}

// Operation is one attempt. It receives the live state of the call.
type Operation func(ctx context.Context, st *State) error

// Hook runs between a retryable failure and the next attempt. A non-nil error ends the call
// with that error.
type Hook func(ctx context.Context, st *State) error

// Policy is the retry strategy: MaxAttempts tries, waiting min(BackoffCap, BackoffBase*2^n)
// after the n-th failure (0-based). Quota failures skip the wait since the next attempt uses
// another key.
type Policy struct {
	MaxAttempts int
	BackoffBase time.Duration
	BackoffCap  time.Duration

	sleep func(ctx context.Context, d time.Duration) error
}

// NewPolicy builds a policy. maxAttempts below 1 is treated as 1.
func NewPolicy(maxAttempts int, backoffBase, backoffCap time.Duration) *Policy {
	if maxAttempts < 1 {
		maxAttempts = 1
	}
	return &Policy{
		MaxAttempts: maxAttempts,
		BackoffBase: backoffBase,
		BackoffCap:  backoffCap,
		sleep:       sleepContext,
	}
}

// WithSleeper replaces the wait function, for tests.
func (p *Policy) WithSleeper(sleep func(ctx context.Context, d time.Duration) error) *Policy {
	p.sleep = sleep
	return p
}

// Backoff returns the wait after the failed attempt with 0-based index attempt.
func (p *Policy) Backoff(attempt int) time.Duration {
	if p.BackoffBase <= 0 {
		return 0
	}
	wait := p.BackoffBase
	for i := 0; i < attempt; i++ {
		if p.BackoffCap > 0 && wait >= p.BackoffCap {
			break
		}
		wait *= 2
	}
	if p.BackoffCap > 0 && wait > p.BackoffCap {
		wait = p.BackoffCap
	}
	return wait
}

// Execute invokes op until it succeeds, fails fatally, or the attempt budget is spent.
// On exhaustion the last error is returned wrapped in *apperror.RetryExhaustedError.
func (p *Policy) Execute(ctx context.Context, op Operation, onRetry Hook) (*State, error) {
	st := &State{}
	maxAttempts := p.MaxAttempts
	if maxAttempts < 1 {
		maxAttempts = 1
	}

	for attempt := 0; attempt < maxAttempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return st, err
		}
		st.Attempt = attempt + 1
		st.NextBackoff = 0

		err := op(ctx, st)
		if err == nil {
			st.Class = ClassNone
			st.LastErr = nil
			return st, nil
		}
		st.LastErr = err
		st.Class = Classify(err)
		if !st.Class.Retryable() {
			logger.GetLogger().WithFields(map[string]interface{}{
				"attempt": st.Attempt,
				"class":   st.Class.String(),
				"error":   err.Error(),
			}).Debug("call errored")
			return st, err
		}
		if attempt == maxAttempts-1 {
			break
		}

		if st.Class != ClassQuotaExceeded {
			st.NextBackoff = p.Backoff(attempt)
		}
		if onRetry != nil {
			if hookErr := onRetry(ctx, st); hookErr != nil {
				return st, hookErr
			}
		}
		logger.GetLogger().WithFields(map[string]interface{}{
			"attempt": st.Attempt,
			"class":   st.Class.String(),
			"backoff": st.NextBackoff.String(),
			"error":   err.Error(),
		}).Debug("retrying call")

		if st.NextBackoff > 0 {
			sleep := p.sleep
			if sleep == nil {
				sleep = sleepContext
			}
			if err := sleep(ctx, st.NextBackoff); err != nil {
				return st, err
			}
			st.TotalWait += st.NextBackoff
		}
	}

	return st, &apperror.RetryExhaustedError{
		Attempts:  st.Attempt,
		TotalWait: st.TotalWait,
		Last:      st.LastErr,
	}
}

func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
