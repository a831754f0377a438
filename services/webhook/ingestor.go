// Package webhook reconciles payment authority events with stored bookings.
package webhook

import (
	"context"
	"time"

	"roomrental/models"
	"roomrental/services/booking"
	"roomrental/services/payment"

	"github.com/go-redis/redis/v8"
	"go.uber.org/zap"
)

// Stripe event types mapped onto booking events.
const (
	EventAmountCapturableUpdated = "payment_intent.amount_capturable_updated"
	EventPaymentFailed           = "payment_intent.payment_failed"
	EventSucceeded               = "payment_intent.succeeded"
	EventCanceled                = "payment_intent.canceled"
)

var eventMap = map[string]models.BookingEvent{
	EventAmountCapturableUpdated: models.EventAuthorizationSucceeded,
	// Resolved to capture_failed by the engine when the hold was already placed.
	EventPaymentFailed: models.EventAuthorizationFailed,
	EventSucceeded:     models.EventCaptureSucceeded,
	EventCanceled:      models.EventCancel,
}

// EventApplier applies authority events to bookings.
type EventApplier interface {
	ApplyAuthorityEvent(ctx context.Context, paymentReference string, event models.BookingEvent, reason string) (*models.Booking, booking.Outcome, error)
}

// Deduper remembers processed event ids so replays short-circuit.
type Deduper interface {
	Seen(ctx context.Context, eventID string) (bool, error)
	Remember(ctx context.Context, eventID string) error
}

// Result summarizes one delivery.
type Result struct {
	EventID   string
	EventType string
	BookingID string
	Ignored   bool // event type not handled
	Replayed  bool // event id already processed
	Outcome   booking.Outcome
}

type Ingestor struct {
	verifier payment.WebhookVerifier
	secret   string
	applier  EventApplier
	dedupe   Deduper
	logger   *zap.Logger
}

// NewIngestor builds an ingestor. dedupe may be nil.
func NewIngestor(verifier payment.WebhookVerifier, secret string, applier EventApplier, dedupe Deduper, logger *zap.Logger) *Ingestor {
	return &Ingestor{verifier: verifier, secret: secret, applier: applier, dedupe: dedupe, logger: logger}
}

// Ingest verifies and applies one raw delivery. Nothing is read from the
// payload, and no booking is touched, before the signature checks out.
func (i *Ingestor) Ingest(ctx context.Context, rawPayload []byte, signatureHeader string) (*Result, error) {
	ev, err := i.verifier.VerifyWebhookSignature(rawPayload, signatureHeader, i.secret)
	if err != nil {
		i.logger.Warn("webhook signature rejected",
			zap.Bool("security", true),
			zap.Int("payloadBytes", len(rawPayload)),
			zap.Bool("signaturePresent", signatureHeader != ""),
			zap.Error(err))
		return nil, booking.InvalidSignatureError(err)
	}

	res := &Result{EventID: ev.ID, EventType: ev.Type}
	event, ok := eventMap[ev.Type]
	if !ok {
		i.logger.Debug("webhook event ignored", zap.String("eventID", ev.ID), zap.String("type", ev.Type))
		res.Ignored = true
		return res, nil
	}

	if i.dedupe != nil && ev.ID != "" {
		seen, err := i.dedupe.Seen(ctx, ev.ID)
		if err != nil {
			i.logger.Warn("webhook dedupe lookup failed", zap.String("eventID", ev.ID), zap.Error(err))
		} else if seen {
			i.logger.Info("webhook event replayed", zap.String("eventID", ev.ID))
			res.Replayed = true
			return res, nil
		}
	}

	b, outcome, err := i.applier.ApplyAuthorityEvent(ctx, ev.PaymentReference, event, ev.FailureCode)
	if err != nil {
		if booking.IsKind(err, booking.KindNotFound) {
			i.logger.Error("webhook for unknown booking",
				zap.String("eventID", ev.ID),
				zap.String("type", ev.Type),
				zap.String("paymentReference", ev.PaymentReference))
		} else {
			i.logger.Error("webhook event not applied",
				zap.String("eventID", ev.ID),
				zap.String("type", ev.Type),
				zap.Error(err))
		}
		return res, err
	}

	res.BookingID = b.ID
	res.Outcome = outcome
	fields := []zap.Field{
		zap.String("eventID", ev.ID),
		zap.String("type", ev.Type),
		zap.String("bookingID", b.ID),
		zap.String("status", b.Status.String()),
	}
	switch outcome {
	case booking.OutcomeStale:
		i.logger.Warn("out-of-order webhook event discarded", fields...)
	case booking.OutcomeDuplicate:
		i.logger.Info("webhook event already applied", fields...)
	default:
		i.logger.Info("webhook event applied", fields...)
	}

	if i.dedupe != nil && ev.ID != "" {
		if err := i.dedupe.Remember(ctx, ev.ID); err != nil {
			i.logger.Warn("webhook dedupe write failed", zap.String("eventID", ev.ID), zap.Error(err))
		}
	}
	return res, nil
}

const (
	dedupeKeyPrefix  = "roomrental:webhook:event:"
	DefaultDedupeTTL = 72 * time.Hour
)

// RedisDeduper keeps processed event ids in Redis with a TTL.
type RedisDeduper struct {
	client *redis.Client
	ttl    time.Duration
}

func NewRedisDeduper(client *redis.Client, ttl time.Duration) *RedisDeduper {
	if ttl <= 0 {
		ttl = DefaultDedupeTTL
	}
	return &RedisDeduper{client: client, ttl: ttl}
}

func (d *RedisDeduper) Seen(ctx context.Context, eventID string) (bool, error) {
	n, err := d.client.Exists(ctx, dedupeKeyPrefix+eventID).Result()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

func (d *RedisDeduper) Remember(ctx context.Context, eventID string) error {
	return d.client.SetNX(ctx, dedupeKeyPrefix+eventID, 1, d.ttl).Err()
}
