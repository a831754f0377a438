// Package bookingtest provides an in-memory booking repository for tests.
package bookingtest

import (
	"context"
	"sort"
	"sync"
	"time"

	bookingRepo "roomrental/database/repository/booking"
	"roomrental/models"
)

var _ bookingRepo.BookingRepository = (*Repo)(nil)

// Repo is an in-memory BookingRepository with the same compare-and-swap
// semantics as the Mongo implementation. It is meant for tests.
type Repo struct {
	mu       sync.Mutex
	bookings map[string]models.Booking
	writes   int
}

// NewRepo returns an empty repository.
func NewRepo() *Repo {
	return &Repo{bookings: map[string]models.Booking{}}
}

func (s *Repo) Create(_ context.Context, b *models.Booking) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.bookings[b.ID]; ok {
		return bookingRepo.ErrConflict
	}
	s.bookings[b.ID] = *b
	s.writes++
	return nil
}

func (s *Repo) Get(_ context.Context, id string) (*models.Booking, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	b, ok := s.bookings[id]
	if !ok {
		return nil, bookingRepo.ErrNotFound
	}
	return &b, nil
}

func (s *Repo) Transition(_ context.Context, id string, expected, next models.BookingStatus, patch bookingRepo.TransitionPatch) (*models.Booking, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	b, ok := s.bookings[id]
	if !ok {
		return nil, bookingRepo.ErrNotFound
	}
	if b.Status != expected {
		return nil, bookingRepo.ErrConflict
	}
	if patch.PaymentReference != nil {
		if b.PaymentReference != "" {
			return nil, bookingRepo.ErrConflict
		}
		for _, other := range s.bookings {
			if other.PaymentReference == *patch.PaymentReference {
				return nil, bookingRepo.ErrConflict
			}
		}
		b.PaymentReference = *patch.PaymentReference
	}
	if patch.FailureReason != nil {
		b.FailureReason = *patch.FailureReason
	}
	if patch.CaptureRetryable != nil {
		b.CaptureRetryable = *patch.CaptureRetryable
	}
	b.CaptureAttempts += patch.CaptureAttempts
	if patch.ActorID != "" {
		b.UpdatedBy = patch.ActorID
	}
	b.Status = next
	b.UpdatedAt = time.Now().UTC()
	s.bookings[id] = b
	s.writes++
	return &b, nil
}

func (s *Repo) FindByPaymentReference(_ context.Context, ref string) (*models.Booking, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, b := range s.bookings {
		if ref != "" && b.PaymentReference == ref {
			return &b, nil
		}
	}
	return nil, bookingRepo.ErrNotFound
}

func (s *Repo) filter(keep func(models.Booking) bool) []models.Booking {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := []models.Booking{}
	for _, b := range s.bookings {
		if keep(b) {
			out = append(out, b)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

func (s *Repo) ListByListing(_ context.Context, listingID string) ([]models.Booking, error) {
	return s.filter(func(b models.Booking) bool { return b.ListingID == listingID }), nil
}

func (s *Repo) ListByParticipant(_ context.Context, userID string) ([]models.Booking, error) {
	return s.filter(func(b models.Booking) bool { return b.IsParticipant(userID) }), nil
}

func (s *Repo) List(_ context.Context, f models.BookingFilter) ([]models.Booking, error) {
	out := s.filter(func(b models.Booking) bool {
		return (f.Status == "" || b.Status == f.Status) && (f.ListingID == "" || b.ListingID == f.ListingID)
	})
	if f.Offset >= int64(len(out)) {
		return []models.Booking{}, nil
	}
	out = out[f.Offset:]
	if f.Limit > 0 && int64(len(out)) > f.Limit {
		out = out[:f.Limit]
	}
	return out, nil
}

func (s *Repo) ListExpiredHolds(_ context.Context, cutoff time.Time, limit int64) ([]models.Booking, error) {
	out := s.filter(func(b models.Booking) bool {
		return !b.IsTerminal() && !b.HoldExpiresAt.After(cutoff)
	})
	if limit > 0 && int64(len(out)) > limit {
		out = out[:limit]
	}
	return out, nil
}

// Put stores b as is, bypassing the state machine.
func (s *Repo) Put(b models.Booking) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.bookings[b.ID] = b
}

// Writes counts successful Create and Transition calls.
func (s *Repo) Writes() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.writes
}
