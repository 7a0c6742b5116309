package retryutil

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestDoRetriesUntilSuccess(t *testing.T) {
	calls := 0
	err := Do(context.Background(), nil, "set_webhook", Policy{Attempts: 4, Delay: time.Millisecond}, func(context.Context) error {
		calls++
		if calls < 3 {
			return errors.New("not yet")
		}
		return nil
	})
	if err != nil || calls != 3 {
		t.Fatalf("Do() = %v after %d calls", err, calls)
	}
}

func TestDoReturnsLastError(t *testing.T) {
	calls := 0
	err := Do(context.Background(), nil, "x", Policy{Attempts: 2, Delay: time.Millisecond}, func(context.Context) error {
		calls++
		return errors.New("still failing")
	})
	if err == nil || err.Error() != "still failing" || calls != 2 {
		t.Fatalf("Do() = %v after %d calls", err, calls)
	}
}

func TestDoStopsOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	calls := 0
	err := Do(ctx, nil, "x", Policy{Attempts: 5, Delay: time.Hour}, func(context.Context) error {
		calls++
		cancel()
		return errors.New("boom")
	})
	if err == nil || calls != 1 {
		t.Fatalf("Do() = %v after %d calls", err, calls)
	}
}

func TestDoAttemptTimeout(t *testing.T) {
	err := Do(context.Background(), nil, "x", Policy{Attempts: 1, Timeout: 10 * time.Millisecond}, func(ctx context.Context) error {
		<-ctx.Done()
		return ctx.Err()
	})
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("expected deadline exceeded, got %v", err)
	}
}
