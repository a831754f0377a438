package booking

import (
	"context"
	"errors"

	bookingRepo "roomrental/database/repository/booking"
	"roomrental/models"

	"go.uber.org/zap"
)

// ExpireHold closes a booking whose hold window has passed. Pending and
// authorized bookings are canceled; a retryable failure becomes terminal.
// It is a no-op for bookings that are terminal or not yet expired.
func (e *Engine) ExpireHold(ctx context.Context, id string) error {
	b, err := e.load(ctx, id)
	if err != nil {
		if IsKind(err, KindNotFound) {
			return nil
		}
		return err
	}
	if b.IsTerminal() || e.now().Before(b.HoldExpiresAt) {
		return nil
	}

	if b.PaymentReference != "" {
		cctx, cancel := context.WithTimeout(ctx, e.cfg.AuthorityTimeout)
		err := e.authority.Cancel(cctx, b.PaymentReference)
		cancel()
		if err != nil {
			return AuthorityUnavailableError("release expired hold", err)
		}
	}

	next := models.StatusCanceled
	patch := bookingRepo.TransitionPatch{
		FailureReason:    strPtr("hold_expired"),
		CaptureRetryable: boolPtr(false),
	}
	if b.Status == models.StatusFailed {
		next = models.StatusFailed
		patch.FailureReason = strPtr("authorization_expired")
	}

	if _, err := e.transition(ctx, b, next, patch, models.SystemActor); err != nil {
		if errors.Is(err, bookingRepo.ErrConflict) {
			// Someone else moved it; the next sweep re-evaluates.
			return nil
		}
		return err
	}
	e.logger.Info("expired hold closed", zap.String("bookingID", b.ID), zap.String("status", next.String()))
	return nil
}

// ReconcileCapture settles a booking left retryable after an ambiguous
// capture by asking the authority what happened to the hold.
func (e *Engine) ReconcileCapture(ctx context.Context, id string) error {
	b, err := e.load(ctx, id)
	if err != nil {
		if IsKind(err, KindNotFound) {
			return nil
		}
		return err
	}
	if b.Status != models.StatusFailed || !b.CaptureRetryable || b.PaymentReference == "" {
		return nil
	}

	status, err := e.authorityStatus(ctx, b.PaymentReference)
	if err != nil {
		return AuthorityUnavailableError("reconcile capture", err)
	}

	switch status {
	case models.AuthorizationCaptured:
		_, err = e.confirm(ctx, b, 0, models.SystemActor)
	case models.AuthorizationCanceled:
		_, err = e.transition(ctx, b, models.StatusFailed, bookingRepo.TransitionPatch{
			FailureReason:    strPtr("authorization_expired"),
			CaptureRetryable: boolPtr(false),
		}, models.SystemActor)
	default:
		// Hold still open; the renter can retry the capture.
		return nil
	}
	if errors.Is(err, bookingRepo.ErrConflict) {
		return nil
	}
	return err
}

// SweepExpiredHolds closes up to limit bookings whose hold has expired and
// returns how many it looked at.
func (e *Engine) SweepExpiredHolds(ctx context.Context, limit int64) (int, error) {
	expired, err := e.store.ListExpiredHolds(ctx, e.now(), limit)
	if err != nil {
		return 0, e.storeError(err, "list expired holds")
	}
	var errs []error
	for i := range expired {
		if err := e.ExpireHold(ctx, expired[i].ID); err != nil {
			e.logger.Warn("hold expiry failed", zap.String("bookingID", expired[i].ID), zap.Error(err))
			errs = append(errs, err)
		}
	}
	return len(expired), errors.Join(errs...)
}
