package notification

import (
	"context"
	"fmt"

	"roomrental/models"

	firebase "firebase.google.com/go/v4"
	"firebase.google.com/go/v4/messaging"
	"google.golang.org/api/option"
)

type messageSender interface {
	Send(ctx context.Context, message *messaging.Message) (string, error)
}

// FCMPusher publishes lifecycle events to the FCM topic of each user. Mobile
// clients subscribe to user_{id} after login.
type FCMPusher struct {
	client messageSender
}

// NewFCMPusher initializes Firebase from a service-account file.
func NewFCMPusher(ctx context.Context, credentialsFile string) (*FCMPusher, error) {
	app, err := firebase.NewApp(ctx, nil, option.WithCredentialsFile(credentialsFile))
	if err != nil {
		return nil, fmt.Errorf("error initializing firebase app: %w", err)
	}
	client, err := app.Messaging(ctx)
	if err != nil {
		return nil, fmt.Errorf("error getting messaging client: %w", err)
	}
	return &FCMPusher{client: client}, nil
}

func (p *FCMPusher) Push(ctx context.Context, userID string, ev models.LifecycleEvent) error {
	msg := &messaging.Message{
		Topic: models.UserRoom(userID),
		Notification: &messaging.Notification{
			Title: "Booking update",
			Body:  pushBody(ev.Status),
		},
		Data: map[string]string{
			"type":      ev.Type,
			"bookingId": ev.BookingID,
			"status":    string(ev.Status),
		},
		Android: &messaging.AndroidConfig{
			Priority: "high",
		},
		APNS: &messaging.APNSConfig{
			Headers: map[string]string{"apns-priority": "10"},
			Payload: &messaging.APNSPayload{Aps: &messaging.Aps{Sound: "default"}},
		},
	}
	if _, err := p.client.Send(ctx, msg); err != nil {
		return fmt.Errorf("send FCM message to %s: %w", msg.Topic, err)
	}
	return nil
}

func pushBody(status models.BookingStatus) string {
	switch status {
	case models.StatusPendingAuthorization:
		return "A new booking request is waiting for payment."
	case models.StatusAuthorized:
		return "Payment is on hold. The host can now confirm the booking."
	case models.StatusConfirmed:
		return "Your booking is confirmed."
	case models.StatusFailed:
		return "A payment step failed for your booking."
	case models.StatusCanceled:
		return "Your booking was canceled."
	}
	return "Your booking changed."
}
