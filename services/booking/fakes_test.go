package booking

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	listingRepo "roomrental/database/repository/listing"
	"roomrental/models"
	"roomrental/services/payment"
)

// MockListings implements listingRepo.ListingDirectory.
type MockListings struct {
	Owners map[string]string
}

func (m *MockListings) OwnerOf(_ context.Context, listingID string) (string, error) {
	owner, ok := m.Owners[listingID]
	if !ok {
		return "", listingRepo.ErrListingNotFound
	}
	return owner, nil
}

// MockAuthority implements payment.Authority for testing.
type MockAuthority struct {
	AuthorizeFunc func(ctx context.Context, amount int64, currency string, metadata map[string]string) (*models.Authorization, error)
	CaptureFunc   func(ctx context.Context, ref string) (int64, error)
	CancelFunc    func(ctx context.Context, ref string) error
	StatusFunc    func(ctx context.Context, ref string) (models.AuthorizationStatus, error)

	authorizeCalls atomic.Int32
	captureCalls   atomic.Int32
	cancelCalls    atomic.Int32
	statusCalls    atomic.Int32
	seq            atomic.Int32
}

func (m *MockAuthority) Authorize(ctx context.Context, amount int64, currency string, metadata map[string]string) (*models.Authorization, error) {
	m.authorizeCalls.Add(1)
	if m.AuthorizeFunc != nil {
		return m.AuthorizeFunc(ctx, amount, currency, metadata)
	}
	if amount <= 0 {
		return nil, payment.ErrInvalidAmount
	}
	n := m.seq.Add(1)
	ref := fmt.Sprintf("pi_%d", n)
	return &models.Authorization{PaymentReference: ref, ClientSecret: ref + "_secret"}, nil
}

func (m *MockAuthority) Capture(ctx context.Context, ref string) (int64, error) {
	m.captureCalls.Add(1)
	if m.CaptureFunc != nil {
		return m.CaptureFunc(ctx, ref)
	}
	return 5000, nil
}

func (m *MockAuthority) Cancel(ctx context.Context, ref string) error {
	m.cancelCalls.Add(1)
	if m.CancelFunc != nil {
		return m.CancelFunc(ctx, ref)
	}
	return nil
}

func (m *MockAuthority) Status(ctx context.Context, ref string) (models.AuthorizationStatus, error) {
	m.statusCalls.Add(1)
	if m.StatusFunc != nil {
		return m.StatusFunc(ctx, ref)
	}
	return models.AuthorizationAuthorized, nil
}

func (m *MockAuthority) calls() int32 {
	return m.authorizeCalls.Load() + m.captureCalls.Load() + m.cancelCalls.Load() + m.statusCalls.Load()
}

// recordingNotifier keeps every announced transition.
type recordingNotifier struct {
	mu     sync.Mutex
	events []models.LifecycleEvent
}

func (n *recordingNotifier) BookingChanged(_ context.Context, b *models.Booking, actor models.Actor) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.events = append(n.events, models.LifecycleEvent{
		BookingID: b.ID,
		Type:      models.LifecycleEventType(b.Status),
		Status:    b.Status,
		Actor:     actor,
	})
}

func (n *recordingNotifier) count(status models.BookingStatus) int {
	n.mu.Lock()
	defer n.mu.Unlock()
	c := 0
	for _, ev := range n.events {
		if ev.Status == status {
			c++
		}
	}
	return c
}

// recordingScheduler keeps scheduled jobs by booking id.
type recordingScheduler struct {
	mu         sync.Mutex
	expiries   map[string]time.Time
	reconciles []string
	err        error
}

func (s *recordingScheduler) ScheduleHoldExpiry(_ context.Context, id string, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.expiries == nil {
		s.expiries = map[string]time.Time{}
	}
	s.expiries[id] = at
	return s.err
}

func (s *recordingScheduler) ScheduleCaptureReconcile(_ context.Context, id string, _ time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.reconciles = append(s.reconciles, id)
	return s.err
}
