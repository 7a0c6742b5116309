package retryutil

import (
	"context"
	"log/slog"
	"time"
)

const (
	defaultRetryDelay = 2 * time.Second
	defaultMaxDelay   = 30 * time.Second
)

type Policy struct {
	Attempts int
	// Delay is the wait before the second attempt; it doubles up to MaxDelay.
	Delay    time.Duration
	MaxDelay time.Duration
	// Timeout bounds each attempt. Zero means no per-attempt bound.
	Timeout time.Duration
}

// Do runs fn until it succeeds, the attempts run out, or ctx ends. It returns
// the last error.
func Do(ctx context.Context, logger *slog.Logger, name string, p Policy, fn func(ctx context.Context) error) error {
	if p.Attempts <= 0 {
		p.Attempts = 1
	}
	if p.Delay <= 0 {
		p.Delay = defaultRetryDelay
	}
	if p.MaxDelay <= 0 {
		p.MaxDelay = defaultMaxDelay
	}
	delay := p.Delay
	var err error
	for attempt := 1; attempt <= p.Attempts; attempt++ {
		err = runAttempt(ctx, p.Timeout, fn)
		if err == nil {
			if attempt > 1 && logger != nil {
				logger.Info(name+"_retry_ok", "attempt", attempt)
			}
			return nil
		}
		if ctx.Err() != nil {
			return err
		}
		if attempt == p.Attempts {
			break
		}
		if logger != nil {
			logger.Warn(name+"_attempt_failed", "attempt", attempt, "error", err.Error(), "retry_in", delay.String())
		}
		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return err
		case <-timer.C:
		}
		delay *= 2
		if delay > p.MaxDelay {
			delay = p.MaxDelay
		}
	}
	return err
}

func runAttempt(ctx context.Context, timeout time.Duration, fn func(ctx context.Context) error) error {
	if timeout <= 0 {
		return fn(ctx)
	}
	attemptCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	return fn(attemptCtx)
}
