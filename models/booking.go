package models

import (
	"errors"
	"fmt"
	"time"
)

// BookingStatus is the lifecycle state of a booking.
type BookingStatus string

const (
	StatusPendingAuthorization BookingStatus = "pending_authorization"
	StatusAuthorized           BookingStatus = "authorized"
	StatusConfirmed            BookingStatus = "confirmed"
	StatusFailed               BookingStatus = "failed"
	StatusCanceled             BookingStatus = "canceled"
)

// IsValid reports whether s is one of the known statuses.
func (s BookingStatus) IsValid() bool {
	switch s {
	case StatusPendingAuthorization, StatusAuthorized, StatusConfirmed, StatusFailed, StatusCanceled:
		return true
	}
	return false
}

func (s BookingStatus) String() string {
	return string(s)
}

// BookingEvent is an input to the lifecycle state machine.
type BookingEvent string

const (
	EventAuthorizationSucceeded BookingEvent = "authorization_succeeded"
	EventAuthorizationFailed    BookingEvent = "authorization_failed"
	EventCaptureSucceeded       BookingEvent = "capture_succeeded"
	EventCaptureFailed          BookingEvent = "capture_failed"
	EventCancel                 BookingEvent = "cancel"
)

// ErrInvalidTransition is returned by NextStatus when the event is not allowed
// from the booking's current state.
var ErrInvalidTransition = errors.New("invalid booking transition")

// Booking is the durable record of a room booking and its payment hold.
type Booking struct {
	ID               string        `bson:"id" json:"id"`
	ListingID        string        `bson:"listingId" json:"listingId"`
	RenterID         string        `bson:"renterId" json:"renterId"`     // Owner of the listing
	CustomerID       string        `bson:"customerId" json:"customerId"` // User who requested the booking
	Amount           int64         `bson:"amount" json:"amount"`         // Minor currency units (cents)
	Currency         string        `bson:"currency" json:"currency"`
	Status           BookingStatus `bson:"status" json:"status"`
	PaymentReference string        `bson:"paymentReference,omitempty" json:"paymentReference,omitempty"`
	FailureReason    string        `bson:"failureReason,omitempty" json:"failureReason,omitempty"`
	CaptureRetryable bool          `bson:"captureRetryable" json:"captureRetryable"`
	CaptureAttempts  int           `bson:"captureAttempts" json:"captureAttempts"`
	HoldExpiresAt    time.Time     `bson:"holdExpiresAt" json:"holdExpiresAt"`
	CreatedAt        time.Time     `bson:"createdAt" json:"createdAt"`
	UpdatedAt        time.Time     `bson:"updatedAt" json:"updatedAt"`
	UpdatedBy        string        `bson:"updatedBy,omitempty" json:"updatedBy,omitempty"` // Actor of the last transition
}

// IsTerminal reports whether no further event may change the booking.
// A failed booking whose capture can still be retried is not terminal.
func (b *Booking) IsTerminal() bool {
	switch b.Status {
	case StatusConfirmed, StatusCanceled:
		return true
	case StatusFailed:
		return !b.CaptureRetryable
	}
	return false
}

// IsParticipant reports whether userID is the renter or the customer.
func (b *Booking) IsParticipant(userID string) bool {
	return userID != "" && (b.RenterID == userID || b.CustomerID == userID)
}

// Room is the real-time channel name scoped to this booking.
func (b *Booking) Room() string {
	return BookingRoom(b.ID)
}

// NextStatus is the single transition function of the booking state machine.
//
//	pending_authorization --authorization_succeeded--> authorized
//	pending_authorization --authorization_failed-----> failed
//	authorized            --capture_succeeded--------> confirmed
//	authorized            --capture_failed-----------> failed
//	failed (retryable)    --capture_succeeded--------> confirmed
//	any non-terminal      --cancel-------------------> canceled
func NextStatus(b *Booking, event BookingEvent) (BookingStatus, error) {
	if b.IsTerminal() {
		return "", fmt.Errorf("%w: booking %s is %s", ErrInvalidTransition, b.ID, b.Status)
	}

	switch event {
	case EventAuthorizationSucceeded:
		if b.Status == StatusPendingAuthorization {
			return StatusAuthorized, nil
		}
	case EventAuthorizationFailed:
		if b.Status == StatusPendingAuthorization {
			return StatusFailed, nil
		}
	case EventCaptureSucceeded:
		if b.Status == StatusAuthorized || b.Status == StatusFailed {
			return StatusConfirmed, nil
		}
	case EventCaptureFailed:
		if b.Status == StatusAuthorized {
			return StatusFailed, nil
		}
	case EventCancel:
		return StatusCanceled, nil
	}
	return "", fmt.Errorf("%w: %s not allowed from %s", ErrInvalidTransition, event, b.Status)
}

// BookingRoom returns the real-time room name for a booking id.
func BookingRoom(bookingID string) string {
	return "booking_" + bookingID
}

// UserRoom returns the real-time room name for a user id.
func UserRoom(userID string) string {
	return "user_" + userID
}
