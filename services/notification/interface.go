package notification

import (
	"context"

	"roomrental/models"
)

// Broker fans room frames out to every instance holding subscribers.
type Broker interface {
	Publish(ctx context.Context, room string, env models.Envelope) error
	// Subscribe registers the delivery function for frames from all rooms.
	// It returns once the subscription is active.
	Subscribe(ctx context.Context, deliver func(room string, env models.Envelope)) error
	Close() error
}

// Pusher sends lifecycle events to a user's mobile devices.
type Pusher interface {
	Push(ctx context.Context, userID string, ev models.LifecycleEvent) error
}

// BookingLookup resolves a booking for room authorization.
type BookingLookup interface {
	Get(ctx context.Context, id string) (*models.Booking, error)
}
