package booking

import (
	"context"
	"errors"
	"strings"

	bookingRepo "roomrental/database/repository/booking"
	listingRepo "roomrental/database/repository/listing"
	"roomrental/models"
	"roomrental/services/payment"

	"go.uber.org/zap"
)

const defaultCurrency = "usd"

// Create persists a pending booking and places a hold for its amount. The
// returned client secret lets the customer confirm the payment out of band.
func (e *Engine) Create(ctx context.Context, actor models.Actor, req models.CreateBookingRequest) (*models.CreateBookingResponse, error) {
	if actor.ID == "" {
		return nil, AuthorizationError("authentication required")
	}
	if strings.TrimSpace(req.ListingID) == "" {
		return nil, ValidationError("listingId is required")
	}
	if req.Amount <= 0 {
		return nil, newError(KindValidation, "amount must be a positive number of minor units", payment.ErrInvalidAmount)
	}
	currency, err := normalizeCurrency(req.Currency)
	if err != nil {
		return nil, err
	}

	customerID := actor.ID
	if req.CustomerID != "" && req.CustomerID != actor.ID {
		if !actor.IsAdmin() {
			return nil, AuthorizationError("customerId does not match the authenticated user")
		}
		customerID = req.CustomerID
	}

	ownerID, err := e.listings.OwnerOf(ctx, req.ListingID)
	if err != nil {
		if errors.Is(err, listingRepo.ErrListingNotFound) {
			return nil, NotFoundError("listing not found")
		}
		e.logger.Error("listing lookup failed", zap.String("listingID", req.ListingID), zap.Error(err))
		return nil, internalError("listing lookup failed", err)
	}
	if ownerID == customerID {
		return nil, ValidationError("cannot book your own listing")
	}

	now := e.now().UTC()
	b := &models.Booking{
		ID:            e.newID(),
		ListingID:     req.ListingID,
		RenterID:      ownerID,
		CustomerID:    customerID,
		Amount:        req.Amount,
		Currency:      currency,
		Status:        models.StatusPendingAuthorization,
		HoldExpiresAt: now.Add(e.cfg.HoldWindow),
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	if err := e.store.Create(ctx, b); err != nil {
		return nil, e.storeError(err, "create booking")
	}
	e.notifier.BookingChanged(ctx, b, actor)

	authCtx, cancel := context.WithTimeout(ctx, e.cfg.AuthorityTimeout)
	auth, err := e.authority.Authorize(authCtx, b.Amount, b.Currency, map[string]string{
		"bookingId": b.ID,
		"listingId": b.ListingID,
		"renterId":  b.RenterID,
		"createdBy": customerID,
	})
	cancel()
	if err != nil {
		return nil, e.failAuthorization(ctx, b, err)
	}

	authorized, err := e.transition(detached(ctx), b, models.StatusAuthorized, bookingRepo.TransitionPatch{
		PaymentReference: strPtr(auth.PaymentReference),
	}, models.SystemActor)
	if err != nil {
		// The hold exists but cannot be recorded; release it so no funds stay locked.
		e.releaseHold(detached(ctx), b.ID, auth.PaymentReference)
		return nil, err
	}

	if e.scheduler != nil {
		if err := e.scheduler.ScheduleHoldExpiry(ctx, b.ID, b.HoldExpiresAt); err != nil {
			e.logger.Warn("failed to schedule hold expiry", zap.String("bookingID", b.ID), zap.Error(err))
		}
	}

	return &models.CreateBookingResponse{
		BookingID:        authorized.ID,
		ClientSecret:     auth.ClientSecret,
		PaymentReference: authorized.PaymentReference,
		Status:           authorized.Status,
	}, nil
}

// failAuthorization records a refused or unreachable hold and returns the
// error to surface to the customer.
func (e *Engine) failAuthorization(ctx context.Context, b *models.Booking, cause error) error {
	reason := failureReason(cause)
	e.logger.Warn("authorization failed",
		zap.String("bookingID", b.ID),
		zap.String("reason", reason),
		zap.Error(cause))

	if _, err := e.transition(detached(ctx), b, models.StatusFailed, bookingRepo.TransitionPatch{
		FailureReason:    strPtr(reason),
		CaptureRetryable: boolPtr(false),
	}, models.SystemActor); err != nil {
		e.logger.Error("failed to record authorization failure", zap.String("bookingID", b.ID), zap.Error(err))
	}

	switch {
	case errors.Is(cause, payment.ErrInvalidAmount), errors.Is(cause, payment.ErrInvalidRequest):
		return newError(KindValidation, "payment authority rejected the authorization", cause)
	}
	return AuthorityUnavailableError("payment authority unavailable; create a new booking to retry", cause)
}

func (e *Engine) releaseHold(ctx context.Context, bookingID, ref string) {
	cctx, cancel := context.WithTimeout(ctx, e.cfg.AuthorityTimeout)
	defer cancel()
	if err := e.authority.Cancel(cctx, ref); err != nil {
		e.logger.Error("failed to release orphaned hold",
			zap.String("bookingID", bookingID),
			zap.String("paymentReference", ref),
			zap.Error(err))
	}
}

func normalizeCurrency(raw string) (string, error) {
	c := strings.ToLower(strings.TrimSpace(raw))
	if c == "" {
		return defaultCurrency, nil
	}
	if len(c) != 3 {
		return "", ValidationError("currency must be a three-letter ISO code")
	}
	for _, r := range c {
		if r < 'a' || r > 'z' {
			return "", ValidationError("currency must be a three-letter ISO code")
		}
	}
	return c, nil
}
