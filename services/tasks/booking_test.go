package tasks

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/hibiken/asynq"
	"go.uber.org/zap"
)

type MockEnqueuer struct {
	EnqueueFunc func(ctx context.Context, task *asynq.Task, opts ...asynq.Option) (*asynq.TaskInfo, error)
	tasks       []*asynq.Task
	opts        [][]asynq.Option
}

func (m *MockEnqueuer) EnqueueContext(ctx context.Context, task *asynq.Task, opts ...asynq.Option) (*asynq.TaskInfo, error) {
	m.tasks = append(m.tasks, task)
	m.opts = append(m.opts, opts)
	if m.EnqueueFunc != nil {
		return m.EnqueueFunc(ctx, task, opts...)
	}
	return &asynq.TaskInfo{ID: "t1", Type: task.Type()}, nil
}

func optionValue(opts []asynq.Option, typ asynq.OptionType) (interface{}, bool) {
	for _, o := range opts {
		if o.Type() == typ {
			return o.Value(), true
		}
	}
	return nil, false
}

func TestNewHoldExpiryTask(t *testing.T) {
	at := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	task, opts, err := NewHoldExpiryTask("b1", at)
	if err != nil {
		t.Fatalf("NewHoldExpiryTask: %v", err)
	}
	if task.Type() != TypeHoldExpire {
		t.Errorf("type = %s", task.Type())
	}
	p, err := ParseBookingPayload(task)
	if err != nil || p.BookingID != "b1" {
		t.Errorf("payload = %+v, %v", p, err)
	}
	if v, ok := optionValue(opts, asynq.ProcessAtOpt); !ok || !v.(time.Time).Equal(at) {
		t.Errorf("processAt = %v", v)
	}
	if v, _ := optionValue(opts, asynq.TaskIDOpt); v != "hold-expire-b1" {
		t.Errorf("task id = %v", v)
	}
}

func TestNewTaskRequiresBookingID(t *testing.T) {
	if _, _, err := NewHoldExpiryTask("", time.Now()); err == nil {
		t.Error("expected error for empty booking id")
	}
	if _, _, err := NewCaptureReconcileTask("", time.Minute); err == nil {
		t.Error("expected error for empty booking id")
	}
}

func TestParseBookingPayloadRejectsGarbage(t *testing.T) {
	for _, raw := range []string{"", "{", `{"bookingId":""}`} {
		if _, err := ParseBookingPayload(asynq.NewTask(TypeHoldExpire, []byte(raw))); err == nil {
			t.Errorf("payload %q accepted", raw)
		}
	}
}

func TestSchedulerEnqueues(t *testing.T) {
	m := &MockEnqueuer{}
	s := &Scheduler{client: m, logger: zap.NewNop()}

	if err := s.ScheduleCaptureReconcile(context.Background(), "b2", 5*time.Minute); err != nil {
		t.Fatalf("ScheduleCaptureReconcile: %v", err)
	}
	if len(m.tasks) != 1 || m.tasks[0].Type() != TypeCaptureReconcile {
		t.Fatalf("enqueued = %v", m.tasks)
	}
	if v, _ := optionValue(m.opts[0], asynq.ProcessInOpt); v != 5*time.Minute {
		t.Errorf("processIn = %v", v)
	}
}

func TestSchedulerTreatsQueuedTaskAsDone(t *testing.T) {
	m := &MockEnqueuer{EnqueueFunc: func(context.Context, *asynq.Task, ...asynq.Option) (*asynq.TaskInfo, error) {
		return nil, asynq.ErrTaskIDConflict
	}}
	s := &Scheduler{client: m, logger: zap.NewNop()}
	if err := s.ScheduleHoldExpiry(context.Background(), "b1", time.Now()); err != nil {
		t.Errorf("conflict surfaced: %v", err)
	}
}

func TestSchedulerSurfacesQueueErrors(t *testing.T) {
	boom := errors.New("redis down")
	m := &MockEnqueuer{EnqueueFunc: func(context.Context, *asynq.Task, ...asynq.Option) (*asynq.TaskInfo, error) {
		return nil, boom
	}}
	s := &Scheduler{client: m, logger: zap.NewNop()}
	if err := s.ScheduleHoldExpiry(context.Background(), "b1", time.Now()); !errors.Is(err, boom) {
		t.Errorf("err = %v", err)
	}
}
