package cron

import (
	"context"
	"time"

	"go.uber.org/zap"
)

// StartHoldSweeper expires lapsed holds on a ticker. It stands in for the
// asynq scheduler when no Redis is configured.
func StartHoldSweeper(ctx context.Context, runner JobRunner, every time.Duration, logger *zap.Logger) {
	go func() {
		ticker := time.NewTicker(every)
		defer ticker.Stop()

		logger.Info("hold sweeper started", zap.Duration("every", every))
		for {
			select {
			case <-ctx.Done():
				logger.Info("hold sweeper stopped")
				return
			case <-ticker.C:
				n, err := runner.SweepExpiredHolds(ctx, sweepLimit)
				if n > 0 || err != nil {
					logger.Info("hold sweep finished", zap.Int("examined", n), zap.Error(err))
				}
			}
		}
	}()
}
