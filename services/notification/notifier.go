package notification

import (
	"context"
	"time"

	"roomrental/models"

	"go.uber.org/zap"
)

// LifecycleNotifier announces booking transitions on the booking room and
// on both participants' user rooms, and pushes them to mobile devices when
// a Pusher is configured.
type LifecycleNotifier struct {
	hub    *Hub
	pusher Pusher
	logger *zap.Logger
}

// NewLifecycleNotifier returns a notifier publishing through hub. pusher may be nil.
func NewLifecycleNotifier(hub *Hub, pusher Pusher, logger *zap.Logger) *LifecycleNotifier {
	return &LifecycleNotifier{hub: hub, pusher: pusher, logger: logger}
}

func (n *LifecycleNotifier) BookingChanged(ctx context.Context, b *models.Booking, actor models.Actor) {
	ev := models.LifecycleEvent{
		BookingID: b.ID,
		Type:      models.LifecycleEventType(b.Status),
		Status:    b.Status,
		Timestamp: b.UpdatedAt,
		Actor:     actor,
	}
	if ev.Timestamp.IsZero() {
		ev.Timestamp = time.Now().UTC()
	}

	rooms := []string{b.Room()}
	for _, uid := range []string{b.RenterID, b.CustomerID} {
		if uid != "" {
			rooms = append(rooms, models.UserRoom(uid))
		}
	}
	for _, room := range rooms {
		err := n.hub.Publish(ctx, room, models.Envelope{
			Type:      ev.Type,
			Event:     &ev,
			Timestamp: ev.Timestamp.UnixMilli(),
		})
		if err != nil {
			n.logger.Warn("lifecycle event not published",
				zap.String("bookingID", b.ID),
				zap.String("room", room),
				zap.Error(err))
		}
	}

	if n.pusher == nil {
		return
	}
	for _, uid := range []string{b.RenterID, b.CustomerID} {
		if uid == "" || uid == actor.ID {
			continue
		}
		if err := n.pusher.Push(ctx, uid, ev); err != nil {
			n.logger.Warn("lifecycle push failed", zap.String("bookingID", b.ID), zap.String("user", uid), zap.Error(err))
		}
	}
}
