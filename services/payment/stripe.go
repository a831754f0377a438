package payment

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"roomrental/models"

	"github.com/stripe/stripe-go/v76"
	"github.com/stripe/stripe-go/v76/client"
	"github.com/stripe/stripe-go/v76/webhook"
	"go.uber.org/zap"
)

// paymentIntents is the slice of the Stripe PaymentIntents client used here.
type paymentIntents interface {
	New(params *stripe.PaymentIntentParams) (*stripe.PaymentIntent, error)
	Get(id string, params *stripe.PaymentIntentParams) (*stripe.PaymentIntent, error)
	Capture(id string, params *stripe.PaymentIntentCaptureParams) (*stripe.PaymentIntent, error)
	Cancel(id string, params *stripe.PaymentIntentCancelParams) (*stripe.PaymentIntent, error)
}

// StripeAuthority implements Authority and WebhookVerifier with Stripe
// PaymentIntents using manual capture.
type StripeAuthority struct {
	intents paymentIntents
	logger  *zap.Logger
}

// NewStripeAuthority builds an authority bound to one secret key.
func NewStripeAuthority(secretKey string, logger *zap.Logger) *StripeAuthority {
	sc := &client.API{}
	sc.Init(secretKey, nil)
	return &StripeAuthority{intents: sc.PaymentIntents, logger: logger}
}

// Authorize creates a PaymentIntent with capture_method=manual. The client
// confirms it with the returned secret, which places the hold.
func (a *StripeAuthority) Authorize(ctx context.Context, amount int64, currency string, metadata map[string]string) (*models.Authorization, error) {
	if amount <= 0 {
		return nil, ErrInvalidAmount
	}

	params := &stripe.PaymentIntentParams{
		Amount:        stripe.Int64(amount),
		Currency:      stripe.String(strings.ToLower(currency)),
		CaptureMethod: stripe.String(string(stripe.PaymentIntentCaptureMethodManual)),
	}
	params.Context = ctx
	for k, v := range metadata {
		params.AddMetadata(k, v)
	}
	if bookingID := metadata["bookingId"]; bookingID != "" {
		params.SetIdempotencyKey("authorize-" + bookingID)
	}

	pi, err := a.intents.New(params)
	if err != nil {
		a.logger.Error("stripe authorize failed", zap.String("bookingID", metadata["bookingId"]), zap.Error(err))
		return nil, mapStripeError(err)
	}
	return &models.Authorization{PaymentReference: pi.ID, ClientSecret: pi.ClientSecret}, nil
}

// Capture captures the full authorized amount.
func (a *StripeAuthority) Capture(ctx context.Context, paymentReference string) (int64, error) {
	params := &stripe.PaymentIntentCaptureParams{}
	params.Context = ctx
	params.SetIdempotencyKey("capture-" + paymentReference)

	pi, err := a.intents.Capture(paymentReference, params)
	if err != nil {
		a.logger.Warn("stripe capture failed", zap.String("paymentReference", paymentReference), zap.Error(err))
		return 0, mapStripeError(err)
	}
	return pi.AmountReceived, nil
}

// Cancel releases the hold. An intent that is already canceled counts as released.
func (a *StripeAuthority) Cancel(ctx context.Context, paymentReference string) error {
	params := &stripe.PaymentIntentCancelParams{}
	params.Context = ctx
	params.SetIdempotencyKey("cancel-" + paymentReference)

	if _, err := a.intents.Cancel(paymentReference, params); err != nil {
		mapped := mapStripeError(err)
		if errors.Is(mapped, ErrAuthorizationExpired) {
			return nil
		}
		a.logger.Warn("stripe cancel failed", zap.String("paymentReference", paymentReference), zap.Error(err))
		return mapped
	}
	return nil
}

// Status reads the intent and reduces its state to an AuthorizationStatus.
func (a *StripeAuthority) Status(ctx context.Context, paymentReference string) (models.AuthorizationStatus, error) {
	params := &stripe.PaymentIntentParams{}
	params.Context = ctx

	pi, err := a.intents.Get(paymentReference, params)
	if err != nil {
		return "", mapStripeError(err)
	}
	return authorizationStatus(pi.Status), nil
}

// VerifyWebhookSignature checks the Stripe-Signature header against the
// endpoint secret and decodes the event.
func (a *StripeAuthority) VerifyWebhookSignature(rawPayload []byte, signatureHeader, secret string) (*models.PaymentEvent, error) {
	return VerifyStripeSignature(rawPayload, signatureHeader, secret)
}

// VerifyStripeSignature is the stateless form of VerifyWebhookSignature.
func VerifyStripeSignature(rawPayload []byte, signatureHeader, secret string) (*models.PaymentEvent, error) {
	if secret == "" || signatureHeader == "" {
		return nil, ErrInvalidSignature
	}
	event, err := webhook.ConstructEvent(rawPayload, signatureHeader, secret)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidSignature, err)
	}

	out := &models.PaymentEvent{ID: event.ID, Type: string(event.Type)}
	if event.Data == nil || len(event.Data.Raw) == 0 {
		return out, nil
	}

	var obj struct {
		ID               string `json:"id"`
		Object           string `json:"object"`
		LastPaymentError *struct {
			Code string `json:"code"`
		} `json:"last_payment_error"`
	}
	if err := json.Unmarshal(event.Data.Raw, &obj); err != nil {
		return nil, fmt.Errorf("%w: malformed event object: %v", ErrInvalidSignature, err)
	}
	if obj.Object == "payment_intent" {
		out.PaymentReference = obj.ID
		if obj.LastPaymentError != nil {
			out.FailureCode = obj.LastPaymentError.Code
		}
	}
	return out, nil
}

func authorizationStatus(s stripe.PaymentIntentStatus) models.AuthorizationStatus {
	switch s {
	case stripe.PaymentIntentStatusRequiresCapture:
		return models.AuthorizationAuthorized
	case stripe.PaymentIntentStatusSucceeded:
		return models.AuthorizationCaptured
	case stripe.PaymentIntentStatusCanceled:
		return models.AuthorizationCanceled
	}
	return models.AuthorizationPending
}

// mapStripeError folds Stripe API errors into the authority error set.
func mapStripeError(err error) error {
	var se *stripe.Error
	if !errors.As(err, &se) {
		return fmt.Errorf("%w: %v", ErrAuthorityUnavailable, err)
	}

	if se.Code == stripe.ErrorCodePaymentIntentUnexpectedState && se.PaymentIntent != nil {
		switch se.PaymentIntent.Status {
		case stripe.PaymentIntentStatusSucceeded:
			return fmt.Errorf("%w: %s", ErrAlreadyCaptured, se.Msg)
		case stripe.PaymentIntentStatusCanceled:
			return fmt.Errorf("%w: %s", ErrAuthorizationExpired, se.Msg)
		case stripe.PaymentIntentStatusRequiresPaymentMethod,
			stripe.PaymentIntentStatusRequiresConfirmation,
			stripe.PaymentIntentStatusRequiresAction:
			return fmt.Errorf("%w: %s", ErrNotYetAuthorized, se.Msg)
		}
	}

	switch {
	case se.HTTPStatusCode == http.StatusTooManyRequests,
		se.HTTPStatusCode >= http.StatusInternalServerError,
		se.Type == stripe.ErrorTypeAPI:
		return fmt.Errorf("%w: %s", ErrAuthorityUnavailable, se.Msg)
	case se.Type == stripe.ErrorTypeIdempotency:
		// A retry raced the original request; it is safe to retry later.
		return fmt.Errorf("%w: %s", ErrAuthorityUnavailable, se.Msg)
	}
	return fmt.Errorf("%w: %s", ErrInvalidRequest, se.Msg)
}
