package booking

import (
	"context"
	"errors"
	"time"

	bookingRepo "roomrental/database/repository/booking"
	listingRepo "roomrental/database/repository/listing"
	"roomrental/models"
	"roomrental/services/authz"
	"roomrental/services/payment"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Notifier announces lifecycle transitions. Delivery is best effort.
type Notifier interface {
	BookingChanged(ctx context.Context, booking *models.Booking, actor models.Actor)
}

// TaskScheduler enqueues the background jobs that keep holds from being
// left open.
type TaskScheduler interface {
	ScheduleHoldExpiry(ctx context.Context, bookingID string, at time.Time) error
	ScheduleCaptureReconcile(ctx context.Context, bookingID string, after time.Duration) error
}

// Config bounds the engine's calls to the payment authority.
type Config struct {
	AuthorityTimeout    time.Duration // per authorize, cancel and status call
	CaptureTimeout      time.Duration // per capture attempt
	CaptureMaxAttempts  int
	CaptureRetryBackoff time.Duration // multiplied by the attempt number
	HoldWindow          time.Duration
	ReconcileDelay      time.Duration
}

func (c Config) withDefaults() Config {
	if c.AuthorityTimeout <= 0 {
		c.AuthorityTimeout = 10 * time.Second
	}
	if c.CaptureTimeout <= 0 {
		c.CaptureTimeout = 10 * time.Second
	}
	if c.CaptureMaxAttempts <= 0 {
		c.CaptureMaxAttempts = 1
	}
	if c.HoldWindow <= 0 {
		c.HoldWindow = 7 * 24 * time.Hour
	}
	if c.ReconcileDelay <= 0 {
		c.ReconcileDelay = 5 * time.Minute
	}
	return c
}

// Deps are the collaborators of an Engine. Notifier and Scheduler are optional.
type Deps struct {
	Store     bookingRepo.BookingRepository
	Listings  listingRepo.ListingDirectory
	Authority payment.Authority
	Policy    *authz.Policy
	Notifier  Notifier
	Scheduler TaskScheduler
	Logger    *zap.Logger
}

// Engine drives bookings through their lifecycle. It is the only writer of
// booking status; every change goes through the store's compare-and-swap.
type Engine struct {
	store     bookingRepo.BookingRepository
	listings  listingRepo.ListingDirectory
	authority payment.Authority
	policy    *authz.Policy
	notifier  Notifier
	scheduler TaskScheduler
	logger    *zap.Logger
	cfg       Config

	now   func() time.Time
	sleep func(ctx context.Context, d time.Duration) error
	newID func() string
}

func NewEngine(deps Deps, cfg Config) *Engine {
	e := &Engine{
		store:     deps.Store,
		listings:  deps.Listings,
		authority: deps.Authority,
		policy:    deps.Policy,
		notifier:  deps.Notifier,
		scheduler: deps.Scheduler,
		logger:    deps.Logger,
		cfg:       cfg.withDefaults(),
		now:       time.Now,
		sleep:     sleepContext,
		newID:     func() string { return uuid.New().String() },
	}
	if e.policy == nil {
		e.policy = authz.DefaultPolicy()
	}
	if e.notifier == nil {
		e.notifier = nopNotifier{}
	}
	if e.logger == nil {
		e.logger = zap.NewNop()
	}
	return e
}

type nopNotifier struct{}

func (nopNotifier) BookingChanged(context.Context, *models.Booking, models.Actor) {}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// detached keeps request values but survives the caller giving up, so a
// write that records an authority outcome is not lost to a client disconnect.
func detached(ctx context.Context) context.Context {
	return context.WithoutCancel(ctx)
}

func (e *Engine) load(ctx context.Context, id string) (*models.Booking, error) {
	if id == "" {
		return nil, ValidationError("booking id is required")
	}
	b, err := e.store.Get(ctx, id)
	if err != nil {
		return nil, e.storeError(err, "load booking")
	}
	return b, nil
}

// transition applies a CAS and announces the result when the status moved.
func (e *Engine) transition(ctx context.Context, b *models.Booking, next models.BookingStatus, patch bookingRepo.TransitionPatch, actor models.Actor) (*models.Booking, error) {
	patch.ActorID = actor.ID
	updated, err := e.store.Transition(ctx, b.ID, b.Status, next, patch)
	if err != nil {
		if errors.Is(err, bookingRepo.ErrConflict) {
			e.logger.Info("booking transition lost",
				zap.String("bookingID", b.ID),
				zap.String("expected", b.Status.String()),
				zap.String("next", next.String()))
		}
		return nil, e.storeError(err, "booking is no longer "+b.Status.String())
	}
	if updated.Status != b.Status {
		e.logger.Info("booking transitioned",
			zap.String("bookingID", b.ID),
			zap.String("from", b.Status.String()),
			zap.String("to", updated.Status.String()),
			zap.String("actor", actor.ID))
		e.notifier.BookingChanged(ctx, updated, actor)
	}
	return updated, nil
}

// settle is transition for writes that follow a successful authority call.
// The authority's webhook for that same call can land first. When the lost
// CAS left the booking in the requested status by a system transition, the
// stored booking is the result. A race lost to another caller stays a
// conflict.
func (e *Engine) settle(ctx context.Context, b *models.Booking, next models.BookingStatus, patch bookingRepo.TransitionPatch, actor models.Actor) (*models.Booking, error) {
	updated, err := e.transition(ctx, b, next, patch, actor)
	if err == nil || !errors.Is(err, bookingRepo.ErrConflict) {
		return updated, err
	}
	current, getErr := e.store.Get(ctx, b.ID)
	if getErr != nil || current.Status != next || current.UpdatedBy != models.SystemActor.ID {
		return nil, err
	}
	e.logger.Info("booking already settled by the payment authority",
		zap.String("bookingID", b.ID),
		zap.String("status", next.String()))
	return current, nil
}

func (e *Engine) storeError(err error, msg string) error {
	switch {
	case errors.Is(err, bookingRepo.ErrNotFound):
		return NotFoundError("booking not found")
	case errors.Is(err, bookingRepo.ErrConflict):
		return ConflictError(msg, err)
	}
	e.logger.Error("booking store failure", zap.String("op", msg), zap.Error(err))
	return internalError(msg, err)
}

// failureReason is the code recorded on a failed booking.
func failureReason(err error) string {
	switch {
	case errors.Is(err, payment.ErrAuthorityUnavailable):
		return "authority_unavailable"
	case errors.Is(err, payment.ErrAuthorizationExpired):
		return "authorization_expired"
	case errors.Is(err, payment.ErrInvalidAmount):
		return "invalid_amount"
	case errors.Is(err, payment.ErrInvalidRequest):
		return "authority_rejected"
	}
	return "internal_error"
}

func strPtr(s string) *string { return &s }

func boolPtr(b bool) *bool { return &b }
