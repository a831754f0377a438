package models

// AuthorizationStatus is the payment authority's view of a hold.
type AuthorizationStatus string

const (
	AuthorizationPending    AuthorizationStatus = "pending"
	AuthorizationAuthorized AuthorizationStatus = "authorized"
	AuthorizationCaptured   AuthorizationStatus = "captured"
	AuthorizationCanceled   AuthorizationStatus = "canceled"
)

// Authorization is the result of placing a hold with the payment authority.
type Authorization struct {
	PaymentReference string `json:"paymentReference"`
	ClientSecret     string `json:"clientSecret"`
}

// PaymentEvent is a verified webhook event from the payment authority,
// reduced to what the booking core needs.
type PaymentEvent struct {
	ID               string `json:"id"`
	Type             string `json:"type"`
	PaymentReference string `json:"paymentReference"`
	FailureCode      string `json:"failureCode,omitempty"`
}

// CreateBookingRequest is the body of POST /api/bookings.
type CreateBookingRequest struct {
	ListingID  string `json:"listingId" binding:"required"`
	Amount     int64  `json:"amount"`
	Currency   string `json:"currency"`
	CustomerID string `json:"customerId"`
}

// CreateBookingResponse is returned once the hold has been requested.
type CreateBookingResponse struct {
	BookingID        string        `json:"bookingId"`
	ClientSecret     string        `json:"clientSecret"`
	PaymentReference string        `json:"paymentReference"`
	Status           BookingStatus `json:"status"`
}

// VerifyBookingRequest is the body of POST /api/bookings/:id/verify.
type VerifyBookingRequest struct {
	PaymentReference string `json:"paymentReference"`
}

// VerifyBookingResponse reports the outcome of a capture. Captured is false
// when the booking was already confirmed and nothing new was captured.
type VerifyBookingResponse struct {
	OK       bool     `json:"ok"`
	Captured bool     `json:"captured"`
	Amount   int64    `json:"amount,omitempty"`
	Booking  *Booking `json:"booking"`
}

// BookingFilter narrows admin listings.
type BookingFilter struct {
	Status    BookingStatus
	ListingID string
	Limit     int64
	Offset    int64
}
