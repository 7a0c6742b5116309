package ingress

import (
	"context"
	"log/slog"
	"time"

	"github.com/quailyquaily/auditdesk/internal/telegramapi"
)

type UpdateSource interface {
	GetUpdates(ctx context.Context, offset int64, timeout time.Duration) ([]telegramapi.Update, int64, error)
}

// Poll long-polls src and dispatches every update until ctx ends. Errors back
// off and retry.
func Poll(ctx context.Context, src UpdateSource, sink UpdateSink, timeout time.Duration, logger *slog.Logger) error {
	if logger == nil {
		logger = slog.Default()
	}
	var offset int64
	backoff := time.Second
	for {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		updates, next, err := src.GetUpdates(ctx, offset, timeout)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			logger.Warn("telegram_get_updates_error", "error", err.Error(), "retry_in", backoff.String())
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(backoff):
			}
			if backoff < 30*time.Second {
				backoff *= 2
			}
			continue
		}
		backoff = time.Second
		for _, u := range updates {
			if err := sink.Dispatch(ctx, u); err != nil {
				logger.Warn("telegram_dispatch_error", "update_id", u.UpdateID, "error", err.Error())
			}
		}
		offset = next
	}
}
