package booking

import (
	"context"
	"errors"

	bookingRepo "roomrental/database/repository/booking"
	"roomrental/models"
	"roomrental/services/authz"
	"roomrental/services/payment"

	"go.uber.org/zap"
)

const (
	defaultListLimit int64 = 50
	maxListLimit     int64 = 200
)

// Cancel releases the hold, if one was placed, and cancels the booking.
func (e *Engine) Cancel(ctx context.Context, actor models.Actor, id string) (*models.Booking, error) {
	b, err := e.load(ctx, id)
	if err != nil {
		return nil, err
	}
	if !e.policy.Can(actor, authz.ActionCancel, b) {
		return nil, AuthorizationError("only a participant or an admin may cancel this booking")
	}
	if _, err := models.NextStatus(b, models.EventCancel); err != nil {
		return nil, ConflictError("booking is "+b.Status.String()+" and cannot be canceled", err)
	}

	if b.PaymentReference != "" {
		cctx, cancel := context.WithTimeout(ctx, e.cfg.AuthorityTimeout)
		err := e.authority.Cancel(cctx, b.PaymentReference)
		cancel()
		if err != nil {
			if errors.Is(err, payment.ErrAlreadyCaptured) {
				return nil, ConflictError("payment was already captured", err)
			}
			return nil, AuthorityUnavailableError("could not release the payment hold", err)
		}
	}

	return e.settle(detached(ctx), b, models.StatusCanceled, bookingRepo.TransitionPatch{
		CaptureRetryable: boolPtr(false),
	}, actor)
}

// Get returns a booking visible to actor.
func (e *Engine) Get(ctx context.Context, actor models.Actor, id string) (*models.Booking, error) {
	b, err := e.load(ctx, id)
	if err != nil {
		return nil, err
	}
	if !e.policy.Can(actor, authz.ActionView, b) {
		// Hide existence from non-participants.
		return nil, NotFoundError("booking not found")
	}
	return b, nil
}

// ListMine returns the bookings where actor is renter or customer.
func (e *Engine) ListMine(ctx context.Context, actor models.Actor) ([]models.Booking, error) {
	if actor.ID == "" {
		return nil, AuthorizationError("authentication required")
	}
	list, err := e.store.ListByParticipant(ctx, actor.ID)
	if err != nil {
		return nil, e.storeError(err, "list bookings")
	}
	return list, nil
}

// ListAll is the admin view over every booking.
func (e *Engine) ListAll(ctx context.Context, actor models.Actor, filter models.BookingFilter) ([]models.Booking, error) {
	if !e.policy.Can(actor, authz.ActionListAll, nil) {
		return nil, AuthorizationError("admin role required")
	}
	if filter.Status != "" && !filter.Status.IsValid() {
		return nil, ValidationError("unknown status " + filter.Status.String())
	}
	if filter.Offset < 0 {
		return nil, ValidationError("offset must not be negative")
	}
	switch {
	case filter.Limit <= 0:
		filter.Limit = defaultListLimit
	case filter.Limit > maxListLimit:
		filter.Limit = maxListLimit
	}

	list, err := e.store.List(ctx, filter)
	if err != nil {
		return nil, e.storeError(err, "list bookings")
	}
	e.logger.Debug("admin listed bookings", zap.String("actor", actor.ID), zap.Int("count", len(list)))
	return list, nil
}
