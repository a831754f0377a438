package cron

import (
	"context"
	"fmt"
	"time"

	"roomrental/config"
	"roomrental/services/tasks"

	"github.com/hibiken/asynq"
	"go.uber.org/zap"
)

const (
	sweepSchedule = "@every 15m"
	sweepLimit    = 200
)

// JobRunner carries out booking jobs.
type JobRunner interface {
	ExpireHold(ctx context.Context, bookingID string) error
	ReconcileCapture(ctx context.Context, bookingID string) error
	SweepExpiredHolds(ctx context.Context, limit int64) (int, error)
}

// Worker owns the asynq server processing booking jobs and the periodic
// hold sweep.
type Worker struct {
	srv       *asynq.Server
	scheduler *asynq.Scheduler
	logger    *zap.Logger
}

// RedisOpt returns the asynq connection for the job queue database.
func RedisOpt(cfg config.Config) asynq.RedisClientOpt {
	return asynq.RedisClientOpt{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisQueueDB,
	}
}

// InitBookingWorker starts processing booking jobs in the background.
func InitBookingWorker(cfg config.Config, runner JobRunner, logger *zap.Logger) *Worker {
	redisOpt := RedisOpt(cfg)
	w := &Worker{
		srv: asynq.NewServer(redisOpt, asynq.Config{
			Concurrency: 10,
			Queues: map[string]int{
				"default": 1,
			},
			Logger: logger.Sugar(),
		}),
		scheduler: asynq.NewScheduler(redisOpt, &asynq.SchedulerOpts{Location: time.UTC}),
		logger:    logger,
	}

	if _, err := w.scheduler.Register(sweepSchedule, tasks.NewHoldSweepTask()); err != nil {
		logger.Error("failed to register hold sweep", zap.Error(err))
	}

	mux := NewMux(runner, logger)
	go func() {
		logger.Info("starting booking job worker")
		const maxAttempts = 5

		for attempts := 1; attempts <= maxAttempts; attempts++ {
			err := w.srv.Start(mux)
			if err == nil {
				break
			}
			logger.Error("booking job worker failed to start",
				zap.Int("attempt", attempts),
				zap.Int("maxAttempts", maxAttempts),
				zap.Error(err))
			if attempts == maxAttempts {
				logger.Error("booking job worker gave up; expiry relies on the next restart")
				return
			}
			time.Sleep(time.Duration(attempts*2) * time.Second)
		}
		if err := w.scheduler.Start(); err != nil {
			logger.Error("hold sweep scheduler failed to start", zap.Error(err))
		}
	}()
	return w
}

// Shutdown stops the scheduler and waits for running jobs.
func (w *Worker) Shutdown() {
	w.scheduler.Shutdown()
	w.srv.Shutdown()
}

// NewMux routes booking job types to runner.
func NewMux(runner JobRunner, logger *zap.Logger) *asynq.ServeMux {
	mux := asynq.NewServeMux()
	mux.HandleFunc(tasks.TypeHoldExpire, handleBookingTask(logger, runner.ExpireHold))
	mux.HandleFunc(tasks.TypeCaptureReconcile, handleBookingTask(logger, runner.ReconcileCapture))
	mux.HandleFunc(tasks.TypeHoldSweep, handleHoldSweep(runner, logger))
	return mux
}

func handleBookingTask(logger *zap.Logger, run func(ctx context.Context, bookingID string) error) asynq.HandlerFunc {
	return func(ctx context.Context, task *asynq.Task) error {
		p, err := tasks.ParseBookingPayload(task)
		if err != nil {
			logger.Error("invalid job payload", zap.String("type", task.Type()), zap.Error(err))
			return fmt.Errorf("%v: %w", err, asynq.SkipRetry)
		}
		if err := run(ctx, p.BookingID); err != nil {
			logger.Warn("booking job failed", zap.String("type", task.Type()), zap.String("bookingID", p.BookingID), zap.Error(err))
			return err
		}
		return nil
	}
}

func handleHoldSweep(runner JobRunner, logger *zap.Logger) asynq.HandlerFunc {
	return func(ctx context.Context, _ *asynq.Task) error {
		n, err := runner.SweepExpiredHolds(ctx, sweepLimit)
		if n > 0 || err != nil {
			logger.Info("hold sweep finished", zap.Int("examined", n), zap.Error(err))
		}
		// Failed bookings are picked up by the next sweep.
		return nil
	}
}
