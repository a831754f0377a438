package notification

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"sync"
	"time"

	"roomrental/models"
	"roomrental/services/authz"

	"go.uber.org/zap"
)

const (
	bookingRoomPrefix = "booking_"
	userRoomPrefix    = "user_"
	chatRoomPrefix    = "chat_"

	maxMessageLength = 2000
)

var (
	ErrRoomForbidden = errors.New("not allowed to join this room")
	ErrUnknownRoom   = errors.New("unknown room")
	ErrNotJoined     = errors.New("join the room before sending to it")
	ErrEmptyMessage  = errors.New("message text is required")
	ErrMessageTooBig = errors.New("message text is too long")
)

// Hub tracks room membership of the connections on this instance and
// delivers frames arriving from the broker.
type Hub struct {
	mu    sync.RWMutex
	rooms map[string]map[*Client]struct{}

	broker   Broker
	bookings BookingLookup
	policy   *authz.Policy
	logger   *zap.Logger
	now      func() time.Time
}

func NewHub(broker Broker, bookings BookingLookup, policy *authz.Policy, logger *zap.Logger) *Hub {
	if policy == nil {
		policy = authz.DefaultPolicy()
	}
	return &Hub{
		rooms:    make(map[string]map[*Client]struct{}),
		broker:   broker,
		bookings: bookings,
		policy:   policy,
		logger:   logger,
		now:      time.Now,
	}
}

// Start subscribes the hub to the broker.
func (h *Hub) Start(ctx context.Context) error {
	return h.broker.Subscribe(ctx, h.deliver)
}

// Register adds a connection and joins it to its user room.
func (h *Hub) Register(c *Client) {
	h.join(c, models.UserRoom(c.Actor.ID))
	h.logger.Debug("socket registered", zap.String("conn", c.ID), zap.String("user", c.Actor.ID))
}

// Unregister removes a connection from every room and closes its queue.
func (h *Hub) Unregister(c *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if c.closed {
		return
	}
	for room := range c.rooms {
		h.removeLocked(c, room)
	}
	c.closed = true
	close(c.send)
	h.logger.Debug("socket unregistered", zap.String("conn", c.ID), zap.String("user", c.Actor.ID))
}

// Join authorizes and adds c to room.
func (h *Hub) Join(ctx context.Context, c *Client, room string) error {
	if err := h.authorizeRoom(ctx, c.Actor, room); err != nil {
		return err
	}
	h.join(c, room)
	return nil
}

func (h *Hub) Leave(c *Client, room string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.removeLocked(c, room)
}

// Publish sends env to every subscriber of room on every instance.
func (h *Hub) Publish(ctx context.Context, room string, env models.Envelope) error {
	env.Room = room
	if env.Timestamp == 0 {
		env.Timestamp = h.now().UnixMilli()
	}
	return h.broker.Publish(ctx, room, env)
}

// SendMessage broadcasts a chat message from c. Sender and timestamp are
// always set here, never taken from the client.
func (h *Hub) SendMessage(ctx context.Context, c *Client, room, text string) error {
	text = strings.TrimSpace(text)
	switch {
	case text == "":
		return ErrEmptyMessage
	case len(text) > maxMessageLength:
		return ErrMessageTooBig
	case !h.isMember(c, room):
		return ErrNotJoined
	}
	return h.Publish(ctx, room, models.Envelope{
		Type:      models.EventTypeChatMessage,
		Text:      text,
		From:      c.Actor.ID,
		Timestamp: h.now().UnixMilli(),
	})
}

// Members returns the number of local connections in room.
func (h *Hub) Members(room string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.rooms[room])
}

func (h *Hub) authorizeRoom(ctx context.Context, actor models.Actor, room string) error {
	switch {
	case strings.HasPrefix(room, userRoomPrefix):
		if room == models.UserRoom(actor.ID) || actor.IsAdmin() {
			return nil
		}
		return ErrRoomForbidden

	case strings.HasPrefix(room, bookingRoomPrefix):
		id := strings.TrimPrefix(room, bookingRoomPrefix)
		if id == "" || h.bookings == nil {
			return ErrUnknownRoom
		}
		b, err := h.bookings.Get(ctx, id)
		if err != nil {
			// Unknown and forbidden bookings look the same to the client.
			return ErrRoomForbidden
		}
		if !h.policy.Can(actor, authz.ActionJoin, b) {
			return ErrRoomForbidden
		}
		return nil

	case strings.HasPrefix(room, chatRoomPrefix) && len(room) > len(chatRoomPrefix):
		return nil
	}
	return ErrUnknownRoom
}

func (h *Hub) join(c *Client, room string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if c.closed {
		return
	}
	members, ok := h.rooms[room]
	if !ok {
		members = make(map[*Client]struct{})
		h.rooms[room] = members
	}
	members[c] = struct{}{}
	c.rooms[room] = struct{}{}
}

func (h *Hub) removeLocked(c *Client, room string) {
	delete(c.rooms, room)
	if members, ok := h.rooms[room]; ok {
		delete(members, c)
		if len(members) == 0 {
			delete(h.rooms, room)
		}
	}
}

func (h *Hub) isMember(c *Client, room string) bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	_, ok := c.rooms[room]
	return ok
}

// deliver hands a frame to every local member of room. A member whose
// queue is full misses the frame.
func (h *Hub) deliver(room string, env models.Envelope) {
	payload, err := json.Marshal(env)
	if err != nil {
		h.logger.Error("encode room frame", zap.String("room", room), zap.Error(err))
		return
	}

	h.mu.RLock()
	defer h.mu.RUnlock()
	for c := range h.rooms[room] {
		select {
		case c.send <- payload:
		default:
			h.logger.Debug("dropping frame for slow connection", zap.String("conn", c.ID), zap.String("room", room))
		}
	}
}
