package payment

import (
	"context"
	"errors"

	"roomrental/models"
)

var (
	// ErrAuthorityUnavailable covers network failures, timeouts and 5xx/429
	// responses. Idempotent calls may be retried.
	ErrAuthorityUnavailable = errors.New("payment authority unavailable")
	// ErrInvalidAmount is returned before any network call when amount <= 0.
	ErrInvalidAmount = errors.New("invalid amount")
	// ErrInvalidRequest is a non-retryable rejection of the request itself,
	// such as an unsupported currency.
	ErrInvalidRequest = errors.New("payment request rejected")
	// ErrAlreadyCaptured means the hold was captured earlier.
	ErrAlreadyCaptured = errors.New("authorization already captured")
	// ErrNotYetAuthorized means the customer has not confirmed the payment
	// yet, so there is no hold to capture. The hold may still be placed.
	ErrNotYetAuthorized = errors.New("authorization not yet confirmed by the customer")
	// ErrAuthorizationExpired means the hold was canceled or lapsed.
	ErrAuthorizationExpired = errors.New("authorization expired")
	// ErrInvalidSignature rejects a webhook that fails verification.
	ErrInvalidSignature = errors.New("invalid webhook signature")
)

// Authority places, captures and releases payment holds.
type Authority interface {
	// Authorize creates a hold without capturing funds.
	Authorize(ctx context.Context, amount int64, currency string, metadata map[string]string) (*models.Authorization, error)
	// Capture converts a previously authorized hold into a transfer and
	// returns the captured amount.
	Capture(ctx context.Context, paymentReference string) (int64, error)
	// Cancel releases a hold without capturing.
	Cancel(ctx context.Context, paymentReference string) error
	// Status reports the authority's current view of a hold.
	Status(ctx context.Context, paymentReference string) (models.AuthorizationStatus, error)
}

// WebhookVerifier authenticates raw webhook deliveries.
type WebhookVerifier interface {
	VerifyWebhookSignature(rawPayload []byte, signatureHeader, secret string) (*models.PaymentEvent, error)
}

// VerifierFunc adapts a plain function to WebhookVerifier.
type VerifierFunc func(rawPayload []byte, signatureHeader, secret string) (*models.PaymentEvent, error)

func (f VerifierFunc) VerifyWebhookSignature(rawPayload []byte, signatureHeader, secret string) (*models.PaymentEvent, error) {
	return f(rawPayload, signatureHeader, secret)
}
