package middleware

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"rentdesk/internal/app/commands"
	"rentdesk/internal/app/uow"
)

// ErrConflict is surfaced when a command keeps losing serialization conflicts
// after every attempt. The caller should retry the whole request later.
var ErrConflict = errors.New("middleware: transaction conflict after retries")

// Retry re-dispatches commands that failed with a retryable serialization
// conflict. It must wrap the Transaction middleware so every attempt runs in
// a fresh unit of work; backoff entries bound the attempt count
// (len(backoff)+1 attempts in total).
func Retry(backoff []time.Duration, logger *slog.Logger) CommandMiddleware {
	return func(next commands.Bus) commands.Bus {
		nextFn := wrapCommand(next)
		return commandFunc(func(ctx context.Context, cmd commands.Command) (any, error) {
			var lastErr error
			for attempt := 0; ; attempt++ {
				res, err := nextFn(ctx, cmd)
				if err == nil {
					return res, nil
				}
				if !uow.IsRetryable(err) {
					return nil, err
				}
				lastErr = err
				if attempt >= len(backoff) {
					break
				}
				if logger != nil {
					logger.Warn("command conflict, retrying",
						"command", cmd.Key(),
						"attempt", attempt+1,
						"backoff", backoff[attempt])
				}
				select {
				case <-ctx.Done():
					return nil, ctx.Err()
				case <-time.After(backoff[attempt]):
				}
			}
			return nil, errors.Join(ErrConflict, lastErr)
		})
	}
}
