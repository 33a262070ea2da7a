package jobs

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/menta2k/passport-photo/internal/logging"
)

type retrier struct {
	attempts       int
	initialBackoff time.Duration
	maxBackoff     time.Duration
	logger         *zap.Logger
}

func newRetrier(logger *zap.Logger) retrier {
	return retrier{
		attempts:       3,
		initialBackoff: 50 * time.Millisecond,
		maxBackoff:     time.Second,
		logger:         logger,
	}
}

// do runs fn until it succeeds, fails with a non-transient error or runs out of attempts
func (r retrier) do(ctx context.Context, operation, jobID string, fn func() error) error {
	if r.attempts <= 1 {
		return logging.NewOperationError(operation, jobID, fn())
	}

	backoff := r.initialBackoff
	opLogger := logging.WithOperation(r.logger, operation, jobID)
	var err error
	for attempt := 0; attempt < r.attempts; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return logging.NewOperationError(operation, jobID, ctx.Err())
			case <-time.After(backoff):
			}
			if next := backoff * 2; next <= r.maxBackoff {
				backoff = next
			}
		}

		err = fn()
		if err == nil {
			if attempt > 0 {
				opLogger.Info("store operation succeeded after retry", zap.Int("attempt", attempt+1))
			}
			return nil
		}

		if !isTransientError(err) || attempt == r.attempts-1 {
			if !errors.Is(err, ErrNotFound) {
				opLogger.Error("store operation failed", zap.Error(err), zap.Int("attempt", attempt+1))
			}
			return logging.NewOperationError(operation, jobID, err)
		}

		opLogger.Warn("transient store error", zap.Error(err), zap.Int("attempt", attempt+1))
	}
	return logging.NewOperationError(operation, jobID, err)
}

func isTransientError(err error) bool {
	if err == nil {
		return false
	}

	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}

	var netErr interface{ Timeout() bool }
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}

	var temporary interface{ Temporary() bool }
	if errors.As(err, &temporary) && temporary.Temporary() {
		return true
	}

	return false
}
