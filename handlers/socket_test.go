package handlers

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"roomrental/middleware"
	"roomrental/models"
	"roomrental/services/notification"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

func testAuth() gin.HandlerFunc {
	return middleware.JWTAuthMiddleware(tokens)
}

type mockLookup struct{}

func (mockLookup) Get(_ context.Context, id string) (*models.Booking, error) {
	if id == "b1" {
		return &models.Booking{ID: "b1", RenterID: "r1", CustomerID: "c1", Status: models.StatusAuthorized}, nil
	}
	return nil, errors.New("not found")
}

func newSocketServer(t *testing.T) (*httptest.Server, *notification.Hub) {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)

	hub := notification.NewHub(notification.NewLocalBroker(), mockLookup{}, nil, zap.NewNop())
	if err := hub.Start(ctx); err != nil {
		t.Fatalf("Start: %v", err)
	}
	r := gin.New()
	r.GET("/ws", NewSocketHandler(ctx, hub, tokens, []string{"*"}, zap.NewNop()).Connect)
	srv := httptest.NewServer(r)
	t.Cleanup(srv.Close)
	return srv, hub
}

func wsURL(srv *httptest.Server, token string) string {
	u := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws"
	if token != "" {
		u += "?token=" + token
	}
	return u
}

func dial(t *testing.T, srv *httptest.Server, hub *notification.Hub, id string, role models.Role) *websocket.Conn {
	t.Helper()
	tok, _ := tokens.GenerateToken(id, role, time.Hour)
	conn, _, err := websocket.DefaultDialer.Dial(wsURL(srv, tok), nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	t.Cleanup(func() { conn.Close() })

	// Registration happens after the handshake completes.
	deadline := time.Now().Add(time.Second)
	for hub.Members(models.UserRoom(id)) == 0 {
		if time.Now().After(deadline) {
			t.Fatalf("%s never registered", id)
		}
		time.Sleep(5 * time.Millisecond)
	}
	return conn
}

func readFrame(t *testing.T, conn *websocket.Conn) models.Envelope {
	t.Helper()
	_ = conn.SetReadDeadline(time.Now().Add(time.Second))
	var env models.Envelope
	if err := conn.ReadJSON(&env); err != nil {
		t.Fatalf("read frame: %v", err)
	}
	return env
}

func TestSocketRejectsMissingOrBadToken(t *testing.T) {
	srv, _ := newSocketServer(t)
	for _, token := range []string{"", "not-a-jwt"} {
		_, resp, err := websocket.DefaultDialer.Dial(wsURL(srv, token), nil)
		if !errors.Is(err, websocket.ErrBadHandshake) {
			t.Fatalf("token %q: err = %v", token, err)
		}
		if resp.StatusCode != http.StatusUnauthorized {
			t.Errorf("token %q: status = %d", token, resp.StatusCode)
		}
	}
}

func TestSocketAcceptsBearerHeader(t *testing.T) {
	srv, _ := newSocketServer(t)
	tok, _ := tokens.GenerateToken("r1", models.RoleRenter, time.Hour)
	header := http.Header{"Authorization": []string{"Bearer " + tok}}
	conn, _, err := websocket.DefaultDialer.Dial(wsURL(srv, ""), header)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	conn.Close()
}

func TestSocketLifecycleAndChat(t *testing.T) {
	srv, hub := newSocketServer(t)
	renter := dial(t, srv, hub, "r1", models.RoleRenter)
	customer := dial(t, srv, hub, "c1", models.RoleCustomer)
	stranger := dial(t, srv, hub, "x1", models.RoleCustomer)

	// Lifecycle events reach the user room joined on connect.
	err := hub.Publish(context.Background(), models.UserRoom("r1"), models.Envelope{Type: models.EventTypeBookingConfirmed})
	if err != nil {
		t.Fatalf("Publish: %v", err)
	}
	if env := readFrame(t, renter); env.Type != models.EventTypeBookingConfirmed || env.Room != "user_r1" {
		t.Errorf("lifecycle frame = %+v", env)
	}

	for _, conn := range []*websocket.Conn{renter, customer} {
		if err := conn.WriteJSON(models.Envelope{Type: models.EventTypeChatJoin, Room: "booking_b1"}); err != nil {
			t.Fatalf("join: %v", err)
		}
		if env := readFrame(t, conn); env.Type != models.EventTypeChatJoin {
			t.Fatalf("join ack = %+v", env)
		}
	}

	if err := stranger.WriteJSON(models.Envelope{Type: models.EventTypeChatJoin, Room: "booking_b1"}); err != nil {
		t.Fatalf("join: %v", err)
	}
	if env := readFrame(t, stranger); env.Type != models.EventTypeError {
		t.Errorf("stranger join = %+v", env)
	}

	if err := customer.WriteJSON(models.Envelope{Type: models.EventTypeChatMessage, Room: "booking_b1", Text: "hi", From: "r1"}); err != nil {
		t.Fatalf("message: %v", err)
	}
	env := readFrame(t, renter)
	if env.Type != models.EventTypeChatMessage || env.Text != "hi" || env.From != "c1" || env.Timestamp == 0 {
		t.Errorf("chat frame = %+v", env)
	}
}

func TestOriginChecker(t *testing.T) {
	check := originChecker([]string{"https://app.example.com"})
	tests := []struct {
		origin string
		want   bool
	}{
		{"", true},
		{"https://app.example.com", true},
		{"https://evil.example.com", false},
		{"http://api.example.com", true}, // same host as the request
	}
	for _, tt := range tests {
		req := httptest.NewRequest(http.MethodGet, "http://api.example.com/ws", nil)
		if tt.origin != "" {
			req.Header.Set("Origin", tt.origin)
		}
		if got := check(req); got != tt.want {
			t.Errorf("origin %q = %v, want %v", tt.origin, got, tt.want)
		}
	}
}
