package notification

import (
	"context"
	"encoding/json"
	"time"

	"roomrental/models"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxFrameSize   = 8 << 10
	sendBufferSize = 32
)

// Client is one authenticated socket connection. Room membership is guarded
// by the hub's lock.
type Client struct {
	ID    string
	Actor models.Actor

	send   chan []byte
	rooms  map[string]struct{}
	closed bool
}

// NewClient creates a connection record for an authenticated actor.
func NewClient(actor models.Actor) *Client {
	return &Client{
		ID:    uuid.New().String(),
		Actor: actor,
		send:  make(chan []byte, sendBufferSize),
		rooms: make(map[string]struct{}),
	}
}

// Outbound exposes the frames queued for this connection.
func (c *Client) Outbound() <-chan []byte {
	return c.send
}

// Serve runs the connection until the peer goes away or ctx ends. The
// caller has already authenticated actor.
func (h *Hub) Serve(ctx context.Context, conn *websocket.Conn, actor models.Actor) {
	c := NewClient(actor)
	h.Register(c)

	ctx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})
	go func() {
		defer close(done)
		h.writePump(ctx, conn, c)
	}()

	h.readPump(ctx, conn, c)
	cancel()
	h.Unregister(c)
	<-done
	conn.Close()
}

func (h *Hub) readPump(ctx context.Context, conn *websocket.Conn, c *Client) {
	conn.SetReadLimit(maxFrameSize)
	_ = conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				h.logger.Debug("socket closed unexpectedly", zap.String("conn", c.ID), zap.Error(err))
			}
			return
		}
		var frame models.Envelope
		if err := json.Unmarshal(data, &frame); err != nil {
			h.reply(c, errorFrame("malformed frame"))
			continue
		}
		h.HandleFrame(ctx, c, frame)
	}
}

// HandleFrame executes one client frame.
func (h *Hub) HandleFrame(ctx context.Context, c *Client, frame models.Envelope) {
	switch frame.Type {
	case models.EventTypeChatJoin:
		if err := h.Join(ctx, c, frame.Room); err != nil {
			h.reply(c, errorFrame(err.Error()))
			return
		}
		h.reply(c, models.Envelope{Type: models.EventTypeChatJoin, Room: frame.Room, Timestamp: h.now().UnixMilli()})

	case models.EventTypeChatLeave:
		h.Leave(c, frame.Room)
		h.reply(c, models.Envelope{Type: models.EventTypeChatLeave, Room: frame.Room, Timestamp: h.now().UnixMilli()})

	case models.EventTypeChatMessage:
		if err := h.SendMessage(ctx, c, frame.Room, frame.Text); err != nil {
			h.reply(c, errorFrame(err.Error()))
		}

	default:
		h.reply(c, errorFrame("unknown frame type "+frame.Type))
	}
}

// reply queues a frame for c alone.
func (h *Hub) reply(c *Client, env models.Envelope) {
	payload, err := json.Marshal(env)
	if err != nil {
		return
	}
	h.mu.RLock()
	defer h.mu.RUnlock()
	if c.closed {
		return
	}
	select {
	case c.send <- payload:
	default:
	}
}

func (h *Hub) writePump(ctx context.Context, conn *websocket.Conn, c *Client) {
	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			_ = conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
			return
		case payload, ok := <-c.send:
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := conn.WriteMessage(websocket.TextMessage, payload); err != nil {
				return
			}
		case <-ticker.C:
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

func errorFrame(msg string) models.Envelope {
	return models.Envelope{Type: models.EventTypeError, Message: msg}
}
