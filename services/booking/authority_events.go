package booking

import (
	"context"
	"errors"

	bookingRepo "roomrental/database/repository/booking"
	"roomrental/models"

	"go.uber.org/zap"
)

// Outcome describes what an authority event did to its booking.
type Outcome string

const (
	OutcomeApplied   Outcome = "applied"
	OutcomeDuplicate Outcome = "duplicate" // booking already in the target state
	OutcomeStale     Outcome = "stale"     // event no longer applies; nothing written
)

// targetStatus is where event leads when it applies.
var targetStatus = map[models.BookingEvent]models.BookingStatus{
	models.EventAuthorizationSucceeded: models.StatusAuthorized,
	models.EventAuthorizationFailed:    models.StatusFailed,
	models.EventCaptureSucceeded:       models.StatusConfirmed,
	models.EventCaptureFailed:          models.StatusFailed,
	models.EventCancel:                 models.StatusCanceled,
}

// ApplyAuthorityEvent applies an event reported by the payment authority to
// the booking holding paymentReference. Duplicates and events that arrive
// after a later state are absorbed and reported through the Outcome.
//
// The authority reports a refused hold and a refused capture the same way,
// so EventAuthorizationFailed on an authorized booking is treated as a
// failed capture.
func (e *Engine) ApplyAuthorityEvent(ctx context.Context, paymentReference string, event models.BookingEvent, reason string) (*models.Booking, Outcome, error) {
	if paymentReference == "" {
		return nil, "", ValidationError("event carries no payment reference")
	}
	if _, ok := targetStatus[event]; !ok {
		return nil, "", ValidationError("unsupported event " + string(event))
	}

	// One re-read covers a transition that raced this event.
	for attempt := 0; attempt < 2; attempt++ {
		b, err := e.store.FindByPaymentReference(ctx, paymentReference)
		if err != nil {
			return nil, "", e.storeError(err, "find booking by payment reference")
		}

		ev := event
		if ev == models.EventAuthorizationFailed && b.Status != models.StatusPendingAuthorization {
			ev = models.EventCaptureFailed
		}

		if b.Status == targetStatus[ev] {
			return b, OutcomeDuplicate, nil
		}
		next, err := models.NextStatus(b, ev)
		if err != nil {
			e.logger.Info("stale authority event ignored",
				zap.String("bookingID", b.ID),
				zap.String("event", string(ev)),
				zap.String("status", b.Status.String()))
			return b, OutcomeStale, nil
		}

		updated, err := e.transition(detached(ctx), b, next, e.authorityPatch(b, ev, reason), models.SystemActor)
		if err == nil {
			return updated, OutcomeApplied, nil
		}
		if !errors.Is(err, bookingRepo.ErrConflict) {
			return nil, "", err
		}
	}
	return nil, "", ConflictError("booking changed while applying authority event", bookingRepo.ErrConflict)
}

func (e *Engine) authorityPatch(b *models.Booking, ev models.BookingEvent, reason string) bookingRepo.TransitionPatch {
	switch ev {
	case models.EventAuthorizationFailed:
		return bookingRepo.TransitionPatch{
			FailureReason:    strPtr(nonEmpty(reason, "authorization_failed")),
			CaptureRetryable: boolPtr(false),
		}
	case models.EventCaptureFailed:
		return bookingRepo.TransitionPatch{
			FailureReason:    strPtr(nonEmpty(reason, "capture_failed")),
			CaptureRetryable: boolPtr(e.now().Before(b.HoldExpiresAt)),
		}
	case models.EventCaptureSucceeded:
		return bookingRepo.TransitionPatch{
			FailureReason:    strPtr(""),
			CaptureRetryable: boolPtr(false),
		}
	case models.EventCancel:
		return bookingRepo.TransitionPatch{CaptureRetryable: boolPtr(false)}
	}
	return bookingRepo.TransitionPatch{}
}

func nonEmpty(s, fallback string) string {
	if s == "" {
		return fallback
	}
	return s
}
