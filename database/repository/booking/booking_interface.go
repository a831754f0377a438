package bookingRepo

import (
	"context"
	"errors"
	"time"

	"roomrental/models"
)

var (
	// ErrNotFound is returned when no booking matches the lookup.
	ErrNotFound = errors.New("booking not found")
	// ErrConflict is returned by Transition when the stored status differs
	// from the expected one, or when the payment reference is already taken.
	ErrConflict = errors.New("booking status conflict")
)

// TransitionPatch carries the optional field updates applied together with a
// status change. Nil fields are left untouched.
type TransitionPatch struct {
	PaymentReference *string
	FailureReason    *string
	CaptureRetryable *bool
	// CaptureAttempts is added to the stored counter.
	CaptureAttempts int
	// ActorID is recorded as the booking's UpdatedBy.
	ActorID string
}

// BookingRepository is the durable store of booking records.
type BookingRepository interface {
	// Create inserts a new booking. The caller sets Status to pending_authorization.
	Create(ctx context.Context, booking *models.Booking) error
	// Get retrieves a booking by id.
	Get(ctx context.Context, id string) (*models.Booking, error)
	// Transition atomically moves a booking from expected to next status and
	// applies patch. It fails with ErrConflict when the stored status is not
	// expected, leaving the record untouched.
	Transition(ctx context.Context, id string, expected, next models.BookingStatus, patch TransitionPatch) (*models.Booking, error)
	// FindByPaymentReference retrieves the booking holding the given authorization.
	FindByPaymentReference(ctx context.Context, paymentReference string) (*models.Booking, error)
	// ListByListing returns all bookings for a listing, newest first.
	ListByListing(ctx context.Context, listingID string) ([]models.Booking, error)
	// ListByParticipant returns bookings where the user is renter or customer.
	ListByParticipant(ctx context.Context, userID string) ([]models.Booking, error)
	// List returns bookings matching filter, newest first.
	List(ctx context.Context, filter models.BookingFilter) ([]models.Booking, error)
	// ListExpiredHolds returns non-terminal bookings whose hold expired before cutoff.
	ListExpiredHolds(ctx context.Context, cutoff time.Time, limit int64) ([]models.Booking, error)
}
