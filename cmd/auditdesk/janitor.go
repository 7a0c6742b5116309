package main

import (
	"context"
	"time"
)

// runJanitor sweeps idle intake records and expires stale approvals until ctx
// ends.
func runJanitor(ctx context.Context, rt *runtime, every time.Duration) {
	if every <= 0 {
		every = 10 * time.Minute
	}
	t := time.NewTicker(every)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case now := <-t.C:
			if n := rt.machine.Sweep(now); n > 0 {
				rt.logger.Info("conversation_swept", "count", n)
			}
			n, err := rt.approvals.Expire(ctx, now)
			if err != nil {
				rt.logger.Warn("approval_expire_failed", "error", err.Error())
				continue
			}
			if n > 0 {
				rt.logger.Info("approvals_expired", "count", n)
			}
		}
	}
}
