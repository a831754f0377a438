package models

import "time"

// Lifecycle event types broadcast on the real-time channel.
const (
	EventTypeBookingCreated    = "booking:created"
	EventTypeBookingAuthorized = "booking:authorized"
	EventTypeBookingConfirmed  = "booking:confirmed"
	EventTypeBookingFailed     = "booking:failed"
	EventTypeBookingCanceled   = "booking:canceled"

	EventTypeChatMessage = "chat:message"
	EventTypeChatJoin    = "chat:join"
	EventTypeChatLeave   = "chat:leave"
	EventTypeError       = "error"
)

// LifecycleEvent is a transient notification that a booking changed state.
// It is not persisted; the booking store remains the source of truth.
type LifecycleEvent struct {
	BookingID string        `json:"bookingId"`
	Type      string        `json:"type"`
	Status    BookingStatus `json:"status"`
	Timestamp time.Time     `json:"timestamp"`
	Actor     Actor         `json:"actor"`
}

// LifecycleEventType maps a resulting status to the event type announced for it.
func LifecycleEventType(status BookingStatus) string {
	switch status {
	case StatusPendingAuthorization:
		return EventTypeBookingCreated
	case StatusAuthorized:
		return EventTypeBookingAuthorized
	case StatusConfirmed:
		return EventTypeBookingConfirmed
	case StatusFailed:
		return EventTypeBookingFailed
	case StatusCanceled:
		return EventTypeBookingCanceled
	}
	return ""
}

// Envelope is the frame exchanged on the real-time channel in both directions.
type Envelope struct {
	Type      string          `json:"type"`
	Room      string          `json:"room,omitempty"`
	Text      string          `json:"text,omitempty"`
	From      string          `json:"from,omitempty"`
	Timestamp int64           `json:"timestamp,omitempty"` // Unix milliseconds, set server-side
	Event     *LifecycleEvent `json:"event,omitempty"`
	Message   string          `json:"message,omitempty"`
}
