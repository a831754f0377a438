package notification

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"roomrental/models"

	"firebase.google.com/go/v4/messaging"
	"go.uber.org/zap"
)

type mockLookup struct {
	bookings map[string]*models.Booking
}

func (m *mockLookup) Get(_ context.Context, id string) (*models.Booking, error) {
	if b, ok := m.bookings[id]; ok {
		return b, nil
	}
	return nil, errors.New("not found")
}

var testBooking = &models.Booking{ID: "b1", RenterID: "renter-1", CustomerID: "customer-1", Status: models.StatusAuthorized}

func newTestHub(t *testing.T) *Hub {
	t.Helper()
	h := NewHub(NewLocalBroker(), &mockLookup{bookings: map[string]*models.Booking{"b1": testBooking}}, nil, zap.NewNop())
	h.now = func() time.Time { return time.UnixMilli(1700000000000) }
	if err := h.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	return h
}

func connect(h *Hub, id string, role models.Role) *Client {
	c := NewClient(models.Actor{ID: id, Role: role})
	h.Register(c)
	return c
}

func nextFrame(t *testing.T, c *Client) models.Envelope {
	t.Helper()
	select {
	case payload := <-c.Outbound():
		var env models.Envelope
		if err := json.Unmarshal(payload, &env); err != nil {
			t.Fatalf("decode frame: %v", err)
		}
		return env
	case <-time.After(time.Second):
		t.Fatal("no frame delivered")
	}
	return models.Envelope{}
}

func assertNoFrame(t *testing.T, c *Client) {
	t.Helper()
	select {
	case payload := <-c.Outbound():
		t.Fatalf("unexpected frame %s", payload)
	default:
	}
}

func TestRegisterJoinsUserRoom(t *testing.T) {
	h := newTestHub(t)
	connect(h, "u1", models.RoleCustomer)
	if h.Members(models.UserRoom("u1")) != 1 {
		t.Fatal("connection not in its user room")
	}
}

func TestJoinAuthorization(t *testing.T) {
	h := newTestHub(t)
	ctx := context.Background()
	tests := []struct {
		name string
		user string
		role models.Role
		room string
		want error
	}{
		{"customer joins booking", "customer-1", models.RoleCustomer, "booking_b1", nil},
		{"renter joins booking", "renter-1", models.RoleRenter, "booking_b1", nil},
		{"admin joins booking", "admin-1", models.RoleAdmin, "booking_b1", nil},
		{"stranger refused", "someone", models.RoleCustomer, "booking_b1", ErrRoomForbidden},
		{"unknown booking refused", "customer-1", models.RoleCustomer, "booking_nope", ErrRoomForbidden},
		{"own user room", "u1", models.RoleCustomer, "user_u1", nil},
		{"other user room refused", "u1", models.RoleCustomer, "user_u2", ErrRoomForbidden},
		{"chat room", "u1", models.RoleCustomer, "chat_lobby", nil},
		{"unknown prefix", "u1", models.RoleCustomer, "lobby", ErrUnknownRoom},
		{"bare booking prefix", "u1", models.RoleCustomer, "booking_", ErrUnknownRoom},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := connect(h, tt.user, tt.role)
			defer h.Unregister(c)
			if err := h.Join(ctx, c, tt.room); !errors.Is(err, tt.want) {
				t.Errorf("Join(%s) = %v, want %v", tt.room, err, tt.want)
			}
		})
	}
}

func TestChatMessageBroadcast(t *testing.T) {
	h := newTestHub(t)
	ctx := context.Background()
	renter := connect(h, "renter-1", models.RoleRenter)
	customer := connect(h, "customer-1", models.RoleCustomer)
	outsider := connect(h, "someone", models.RoleCustomer)

	for _, c := range []*Client{renter, customer} {
		h.HandleFrame(ctx, c, models.Envelope{Type: models.EventTypeChatJoin, Room: "booking_b1"})
		if ack := nextFrame(t, c); ack.Type != models.EventTypeChatJoin || ack.Room != "booking_b1" {
			t.Fatalf("join ack = %+v", ack)
		}
	}

	// Client-supplied sender and timestamp are ignored.
	h.HandleFrame(ctx, customer, models.Envelope{
		Type: models.EventTypeChatMessage, Room: "booking_b1", Text: "  hello  ", From: "spoofed", Timestamp: 1,
	})
	for _, c := range []*Client{renter, customer} {
		msg := nextFrame(t, c)
		if msg.Type != models.EventTypeChatMessage || msg.Text != "hello" || msg.Room != "booking_b1" {
			t.Errorf("message = %+v", msg)
		}
		if msg.From != "customer-1" || msg.Timestamp != 1700000000000 {
			t.Errorf("from/timestamp = %s/%d", msg.From, msg.Timestamp)
		}
	}
	assertNoFrame(t, outsider)
}

func TestChatMessageRequiresMembership(t *testing.T) {
	h := newTestHub(t)
	ctx := context.Background()
	c := connect(h, "customer-1", models.RoleCustomer)

	if err := h.SendMessage(ctx, c, "booking_b1", "hi"); !errors.Is(err, ErrNotJoined) {
		t.Errorf("send before join = %v", err)
	}
	h.HandleFrame(ctx, c, models.Envelope{Type: models.EventTypeChatMessage, Room: "booking_b1", Text: "hi"})
	if f := nextFrame(t, c); f.Type != models.EventTypeError {
		t.Errorf("expected error frame, got %+v", f)
	}

	if err := h.SendMessage(ctx, c, models.UserRoom("customer-1"), "   "); !errors.Is(err, ErrEmptyMessage) {
		t.Errorf("empty text = %v", err)
	}
}

func TestLeaveStopsDelivery(t *testing.T) {
	h := newTestHub(t)
	ctx := context.Background()
	c := connect(h, "customer-1", models.RoleCustomer)
	if err := h.Join(ctx, c, "chat_lobby"); err != nil {
		t.Fatal(err)
	}
	h.Leave(c, "chat_lobby")
	if err := h.Publish(ctx, "chat_lobby", models.Envelope{Type: models.EventTypeChatMessage, Text: "x"}); err != nil {
		t.Fatal(err)
	}
	assertNoFrame(t, c)
	if h.Members("chat_lobby") != 0 {
		t.Error("empty room not removed")
	}
}

func TestSlowConnectionDropsFrames(t *testing.T) {
	h := newTestHub(t)
	c := connect(h, "u1", models.RoleCustomer)
	room := models.UserRoom("u1")

	done := make(chan struct{})
	go func() {
		defer close(done)
		for i := 0; i < sendBufferSize*2; i++ {
			_ = h.Publish(context.Background(), room, models.Envelope{Type: models.EventTypeChatMessage, Text: "x"})
		}
	}()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("publish blocked on a full connection")
	}
	if n := len(c.send); n != sendBufferSize {
		t.Errorf("queued %d frames, want %d", n, sendBufferSize)
	}
}

func TestUnregisterIsIdempotent(t *testing.T) {
	h := newTestHub(t)
	c := connect(h, "u1", models.RoleCustomer)
	h.Unregister(c)
	h.Unregister(c)
	if h.Members(models.UserRoom("u1")) != 0 {
		t.Error("connection still registered")
	}
	_ = h.Publish(context.Background(), models.UserRoom("u1"), models.Envelope{Type: models.EventTypeChatMessage})
	h.reply(c, errorFrame("late"))
}

type recordingPusher struct {
	mu    sync.Mutex
	users []string
}

func (p *recordingPusher) Push(_ context.Context, userID string, _ models.LifecycleEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.users = append(p.users, userID)
	return nil
}

func TestLifecycleNotifierFansOut(t *testing.T) {
	h := newTestHub(t)
	ctx := context.Background()
	renter := connect(h, "renter-1", models.RoleRenter)
	customer := connect(h, "customer-1", models.RoleCustomer)
	watcher := connect(h, "admin-1", models.RoleAdmin)
	if err := h.Join(ctx, watcher, "booking_b1"); err != nil {
		t.Fatal(err)
	}

	pusher := &recordingPusher{}
	n := NewLifecycleNotifier(h, pusher, zap.NewNop())
	b := *testBooking
	b.Status = models.StatusConfirmed
	b.UpdatedAt = time.UnixMilli(1700000001000)
	n.BookingChanged(ctx, &b, models.Actor{ID: "renter-1", Role: models.RoleRenter})

	for _, c := range []*Client{renter, customer, watcher} {
		f := nextFrame(t, c)
		if f.Type != models.EventTypeBookingConfirmed || f.Event == nil || f.Event.BookingID != "b1" {
			t.Errorf("frame = %+v", f)
		}
		if f.Event.Status != models.StatusConfirmed || f.Event.Actor.ID != "renter-1" {
			t.Errorf("event = %+v", f.Event)
		}
	}
	if len(pusher.users) != 1 || pusher.users[0] != "customer-1" {
		t.Errorf("pushed to %v, want only the customer", pusher.users)
	}
}

type mockSender struct {
	msg *messaging.Message
}

func (m *mockSender) Send(_ context.Context, msg *messaging.Message) (string, error) {
	m.msg = msg
	return "projects/x/messages/1", nil
}

func TestFCMPusherTargetsUserTopic(t *testing.T) {
	sender := &mockSender{}
	p := &FCMPusher{client: sender}
	err := p.Push(context.Background(), "u1", models.LifecycleEvent{
		BookingID: "b1", Type: models.EventTypeBookingAuthorized, Status: models.StatusAuthorized,
	})
	if err != nil {
		t.Fatalf("Push: %v", err)
	}
	if sender.msg.Topic != "user_u1" {
		t.Errorf("topic = %q", sender.msg.Topic)
	}
	if sender.msg.Data["bookingId"] != "b1" || sender.msg.Data["status"] != "authorized" {
		t.Errorf("data = %v", sender.msg.Data)
	}
}

func TestDecodeFrame(t *testing.T) {
	room, env, err := decodeFrame(roomChannel("booking_b1"), `{"type":"chat:message","text":"hi"}`)
	if err != nil || room != "booking_b1" || env.Text != "hi" {
		t.Errorf("decode = %q %+v %v", room, env, err)
	}
	if _, _, err := decodeFrame("other:booking_b1", `{}`); err == nil {
		t.Error("foreign channel accepted")
	}
	if _, _, err := decodeFrame(roomChannel("r"), `not json`); err == nil {
		t.Error("malformed payload accepted")
	}
}
