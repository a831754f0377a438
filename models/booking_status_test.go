package models

import (
	"errors"
	"testing"
)

func TestNextStatus(t *testing.T) {
	tests := []struct {
		name      string
		status    BookingStatus
		retryable bool
		event     BookingEvent
		want      BookingStatus
		wantErr   bool
	}{
		{"hold placed", StatusPendingAuthorization, false, EventAuthorizationSucceeded, StatusAuthorized, false},
		{"hold refused", StatusPendingAuthorization, false, EventAuthorizationFailed, StatusFailed, false},
		{"capture", StatusAuthorized, false, EventCaptureSucceeded, StatusConfirmed, false},
		{"capture fails", StatusAuthorized, false, EventCaptureFailed, StatusFailed, false},
		{"retry capture", StatusFailed, true, EventCaptureSucceeded, StatusConfirmed, false},
		{"cancel pending", StatusPendingAuthorization, false, EventCancel, StatusCanceled, false},
		{"cancel authorized", StatusAuthorized, false, EventCancel, StatusCanceled, false},
		{"cancel retryable failure", StatusFailed, true, EventCancel, StatusCanceled, false},

		{"capture skips authorization", StatusPendingAuthorization, false, EventCaptureSucceeded, "", true},
		{"authorize twice", StatusAuthorized, false, EventAuthorizationSucceeded, "", true},
		{"late auth failure", StatusAuthorized, false, EventAuthorizationFailed, "", true},
		{"capture failure on pending", StatusPendingAuthorization, false, EventCaptureFailed, "", true},
		{"retryable fails again", StatusFailed, true, EventCaptureFailed, "", true},
		{"confirmed is terminal", StatusConfirmed, false, EventCaptureFailed, "", true},
		{"confirmed cannot cancel", StatusConfirmed, false, EventCancel, "", true},
		{"canceled is terminal", StatusCanceled, false, EventCaptureSucceeded, "", true},
		{"terminal failure", StatusFailed, false, EventCaptureSucceeded, "", true},
		{"terminal failure cannot cancel", StatusFailed, false, EventCancel, "", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b := &Booking{ID: "b1", Status: tt.status, CaptureRetryable: tt.retryable}
			got, err := NextStatus(b, tt.event)
			if tt.wantErr {
				if !errors.Is(err, ErrInvalidTransition) {
					t.Fatalf("expected ErrInvalidTransition, got %v (%s)", err, got)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got != tt.want {
				t.Errorf("NextStatus = %s, want %s", got, tt.want)
			}
		})
	}
}

func TestStatusOnlyMovesForward(t *testing.T) {
	rank := map[BookingStatus]int{
		StatusPendingAuthorization: 0,
		StatusAuthorized:           1,
		StatusFailed:               2,
		StatusConfirmed:            3,
		StatusCanceled:             3,
	}
	events := []BookingEvent{EventAuthorizationSucceeded, EventAuthorizationFailed, EventCaptureSucceeded, EventCaptureFailed, EventCancel}
	for from := range rank {
		for _, retryable := range []bool{false, true} {
			for _, ev := range events {
				b := &Booking{Status: from, CaptureRetryable: retryable}
				to, err := NextStatus(b, ev)
				if err != nil {
					continue
				}
				if rank[to] <= rank[from] {
					t.Errorf("%s --%s--> %s moves backward", from, ev, to)
				}
			}
		}
	}
}

func TestLifecycleEventType(t *testing.T) {
	if got := LifecycleEventType(StatusConfirmed); got != EventTypeBookingConfirmed {
		t.Errorf("got %q", got)
	}
	if got := LifecycleEventType(BookingStatus("bogus")); got != "" {
		t.Errorf("got %q for unknown status", got)
	}
}
