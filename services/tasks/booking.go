package tasks

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/hibiken/asynq"
	"go.uber.org/zap"
)

const (
	TypeHoldExpire       = "booking:hold_expire"
	TypeCaptureReconcile = "booking:capture_reconcile"
	TypeHoldSweep        = "booking:hold_sweep"
)

// BookingPayload identifies the booking a job acts on.
type BookingPayload struct {
	BookingID string `json:"bookingId"`
}

func newBookingTask(typename, bookingID string) (*asynq.Task, error) {
	if bookingID == "" {
		return nil, errors.New("booking id is required")
	}
	b, err := json.Marshal(BookingPayload{BookingID: bookingID})
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(typename, b), nil
}

// NewHoldExpiryTask fires once the hold window of a booking has passed.
func NewHoldExpiryTask(bookingID string, fireAt time.Time) (*asynq.Task, []asynq.Option, error) {
	task, err := newBookingTask(TypeHoldExpire, bookingID)
	if err != nil {
		return nil, nil, err
	}
	opts := []asynq.Option{
		asynq.ProcessAt(fireAt),
		asynq.TaskID("hold-expire-" + bookingID),
		asynq.MaxRetry(10),
	}
	return task, opts, nil
}

// NewCaptureReconcileTask settles an ambiguous capture after a delay.
func NewCaptureReconcileTask(bookingID string, after time.Duration) (*asynq.Task, []asynq.Option, error) {
	task, err := newBookingTask(TypeCaptureReconcile, bookingID)
	if err != nil {
		return nil, nil, err
	}
	opts := []asynq.Option{
		asynq.ProcessIn(after),
		asynq.TaskID("capture-reconcile-" + bookingID),
		asynq.MaxRetry(20),
	}
	return task, opts, nil
}

// NewHoldSweepTask is the periodic catch-all for expiry jobs that were never
// enqueued or were lost.
func NewHoldSweepTask() *asynq.Task {
	return asynq.NewTask(TypeHoldSweep, nil)
}

// ParseBookingPayload decodes a booking task payload.
func ParseBookingPayload(t *asynq.Task) (BookingPayload, error) {
	var p BookingPayload
	if err := json.Unmarshal(t.Payload(), &p); err != nil {
		return p, fmt.Errorf("invalid %s payload: %w", t.Type(), err)
	}
	if p.BookingID == "" {
		return p, fmt.Errorf("invalid %s payload: missing bookingId", t.Type())
	}
	return p, nil
}

type enqueuer interface {
	EnqueueContext(ctx context.Context, task *asynq.Task, opts ...asynq.Option) (*asynq.TaskInfo, error)
}

// Scheduler enqueues booking jobs on the asynq queue.
type Scheduler struct {
	client enqueuer
	logger *zap.Logger
}

func NewScheduler(client *asynq.Client, logger *zap.Logger) *Scheduler {
	return &Scheduler{client: client, logger: logger}
}

func (s *Scheduler) ScheduleHoldExpiry(ctx context.Context, bookingID string, at time.Time) error {
	task, opts, err := NewHoldExpiryTask(bookingID, at)
	if err != nil {
		return err
	}
	return s.enqueue(ctx, task, opts)
}

func (s *Scheduler) ScheduleCaptureReconcile(ctx context.Context, bookingID string, after time.Duration) error {
	task, opts, err := NewCaptureReconcileTask(bookingID, after)
	if err != nil {
		return err
	}
	return s.enqueue(ctx, task, opts)
}

func (s *Scheduler) enqueue(ctx context.Context, task *asynq.Task, opts []asynq.Option) error {
	info, err := s.client.EnqueueContext(ctx, task, opts...)
	if errors.Is(err, asynq.ErrTaskIDConflict) {
		// Already queued for this booking.
		return nil
	}
	if err != nil {
		return fmt.Errorf("enqueue %s: %w", task.Type(), err)
	}
	s.logger.Debug("job enqueued", zap.String("type", task.Type()), zap.String("taskID", info.ID), zap.Time("processAt", info.NextProcessAt))
	return nil
}
