package booking

import (
	"context"
	"errors"
	"fmt"
	"time"

	bookingRepo "roomrental/database/repository/booking"
	"roomrental/models"
	"roomrental/services/authz"
	"roomrental/services/payment"

	"go.uber.org/zap"
)

// Verify captures the hold on a booking and confirms it. Only the renter who
// owns the listing (or an admin) may call it, and the check happens before
// the payment authority is contacted.
//
// Verify on a confirmed booking returns it with Captured=false. A failed
// booking whose capture is still retryable is captured again.
func (e *Engine) Verify(ctx context.Context, actor models.Actor, id, paymentReference string) (*models.VerifyBookingResponse, error) {
	b, err := e.load(ctx, id)
	if err != nil {
		return nil, err
	}
	if !e.policy.Can(actor, authz.ActionCapture, b) {
		e.logger.Warn("capture refused",
			zap.String("bookingID", b.ID),
			zap.String("actor", actor.ID),
			zap.String("role", string(actor.Role)))
		return nil, AuthorizationError("only the listing owner or an admin may confirm this booking")
	}
	if paymentReference != "" && b.PaymentReference != "" && paymentReference != b.PaymentReference {
		return nil, ValidationError("paymentReference does not match the booking")
	}

	if b.Status == models.StatusConfirmed {
		return &models.VerifyBookingResponse{OK: true, Captured: false, Booking: b}, nil
	}
	if _, err := models.NextStatus(b, models.EventCaptureSucceeded); err != nil {
		return nil, ConflictError("booking cannot be confirmed from "+b.Status.String(), err)
	}
	if b.PaymentReference == "" {
		return nil, ConflictError("booking has no authorization to capture", nil)
	}

	amount, attempts, captureErr := e.captureWithBudget(ctx, b)
	if errors.Is(captureErr, payment.ErrAuthorityUnavailable) {
		// A timed-out call may still have captured; ask before failing the booking.
		switch status, _ := e.authorityStatus(detached(ctx), b.PaymentReference); status {
		case models.AuthorizationCaptured:
			e.logger.Info("capture outcome recovered from authority status", zap.String("bookingID", b.ID))
			captureErr = payment.ErrAlreadyCaptured
		case models.AuthorizationCanceled:
			captureErr = fmt.Errorf("%w: hold canceled at authority", payment.ErrAuthorizationExpired)
		}
	}

	if errors.Is(captureErr, payment.ErrNotYetAuthorized) {
		e.logger.Info("capture requested before the customer confirmed payment",
			zap.String("bookingID", b.ID),
			zap.String("actor", actor.ID))
		return nil, ConflictError("the customer has not confirmed the payment yet; try again later", captureErr)
	}
	if captureErr != nil && !errors.Is(captureErr, payment.ErrAlreadyCaptured) {
		return nil, e.resolveCaptureFailure(detached(ctx), b, attempts, captureErr)
	}
	if errors.Is(captureErr, payment.ErrAlreadyCaptured) {
		amount = b.Amount
	}
	confirmed, err := e.confirm(detached(ctx), b, attempts, actor)
	if err != nil {
		return nil, err
	}
	return &models.VerifyBookingResponse{OK: true, Captured: true, Amount: amount, Booking: confirmed}, nil
}

func (e *Engine) confirm(ctx context.Context, b *models.Booking, attempts int, actor models.Actor) (*models.Booking, error) {
	return e.settle(ctx, b, models.StatusConfirmed, bookingRepo.TransitionPatch{
		FailureReason:    strPtr(""),
		CaptureRetryable: boolPtr(false),
		CaptureAttempts:  attempts,
	}, actor)
}

// captureWithBudget calls Capture until it succeeds, fails for a reason other
// than availability, or the attempt budget runs out.
func (e *Engine) captureWithBudget(ctx context.Context, b *models.Booking) (int64, int, error) {
	var lastErr error
	for attempt := 1; attempt <= e.cfg.CaptureMaxAttempts; attempt++ {
		callCtx, cancel := context.WithTimeout(ctx, e.cfg.CaptureTimeout)
		amount, err := e.authority.Capture(callCtx, b.PaymentReference)
		cancel()
		if err == nil || !errors.Is(err, payment.ErrAuthorityUnavailable) {
			return amount, attempt, err
		}
		lastErr = err
		e.logger.Warn("capture attempt failed",
			zap.String("bookingID", b.ID),
			zap.Int("attempt", attempt),
			zap.Int("maxAttempts", e.cfg.CaptureMaxAttempts),
			zap.Error(err))

		if attempt == e.cfg.CaptureMaxAttempts {
			return 0, attempt, lastErr
		}
		if err := e.sleep(ctx, e.cfg.CaptureRetryBackoff*time.Duration(attempt)); err != nil {
			return 0, attempt, lastErr
		}
	}
	return 0, e.cfg.CaptureMaxAttempts, lastErr
}

// resolveCaptureFailure records a capture that did not succeed. A hold that
// is still valid leaves the booking retryable.
func (e *Engine) resolveCaptureFailure(ctx context.Context, b *models.Booking, attempts int, cause error) error {
	switch {
	case errors.Is(cause, payment.ErrAuthorizationExpired):
		e.markFailed(ctx, b, "authorization_expired", false, attempts)
		return ConflictError("the payment hold has expired; the customer must book again", cause)

	case errors.Is(cause, payment.ErrAuthorityUnavailable):
		e.markFailed(ctx, b, "authority_unavailable", true, attempts)
		if e.scheduler != nil {
			if err := e.scheduler.ScheduleCaptureReconcile(ctx, b.ID, e.cfg.ReconcileDelay); err != nil {
				e.logger.Warn("failed to schedule capture reconcile", zap.String("bookingID", b.ID), zap.Error(err))
			}
		}
		return AuthorityUnavailableError("capture failed; retry the verification", cause)
	}

	// A terminal booking must not keep the customer's funds held.
	e.releaseHold(ctx, b.ID, b.PaymentReference)
	e.markFailed(ctx, b, failureReason(cause), false, attempts)
	return ConflictError("payment authority rejected the capture", cause)
}

func (e *Engine) markFailed(ctx context.Context, b *models.Booking, reason string, retryable bool, attempts int) {
	if _, err := e.transition(ctx, b, models.StatusFailed, bookingRepo.TransitionPatch{
		FailureReason:    strPtr(reason),
		CaptureRetryable: boolPtr(retryable),
		CaptureAttempts:  attempts,
	}, models.SystemActor); err != nil {
		e.logger.Error("failed to record capture failure",
			zap.String("bookingID", b.ID),
			zap.String("reason", reason),
			zap.Error(err))
	}
}

func (e *Engine) authorityStatus(ctx context.Context, ref string) (models.AuthorizationStatus, error) {
	sctx, cancel := context.WithTimeout(ctx, e.cfg.AuthorityTimeout)
	defer cancel()
	status, err := e.authority.Status(sctx, ref)
	if err != nil {
		e.logger.Warn("authority status lookup failed", zap.String("paymentReference", ref), zap.Error(err))
	}
	return status, err
}
