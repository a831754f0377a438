package handlers

import (
	"context"
	"net/http"
	"net/url"

	"roomrental/middleware"
	"roomrental/models"
	"roomrental/utils"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

// SocketHub runs an authenticated WebSocket connection.
type SocketHub interface {
	Serve(ctx context.Context, conn *websocket.Conn, actor models.Actor)
}

type SocketHandler struct {
	ctx      context.Context
	hub      SocketHub
	tokens   *utils.TokenService
	upgrader websocket.Upgrader
	logger   *zap.Logger
}

// NewSocketHandler builds the /ws handler. Connections live until ctx ends
// or the peer disconnects. origins of "*" accepts any origin.
func NewSocketHandler(ctx context.Context, hub SocketHub, tokens *utils.TokenService, origins []string, logger *zap.Logger) *SocketHandler {
	h := &SocketHandler{ctx: ctx, hub: hub, tokens: tokens, logger: logger}
	h.upgrader = websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin:     originChecker(origins),
	}
	return h
}

// Connect authenticates the caller and only then upgrades to a WebSocket.
func (h *SocketHandler) Connect(c *gin.Context) {
	token := c.Query("token")
	if token == "" {
		token = middleware.BearerToken(c)
	}
	actor, err := h.tokens.ActorFromToken(token)
	if err != nil {
		utils.JSONError(c, http.StatusUnauthorized, "Invalid token", "")
		return
	}

	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		// Upgrade has already written the HTTP error.
		h.logger.Warn("websocket upgrade failed", zap.String("actorID", actor.ID), zap.Error(err))
		return
	}
	h.logger.Debug("websocket connected", zap.String("actorID", actor.ID))
	h.hub.Serve(h.ctx, conn, actor)
	h.logger.Debug("websocket closed", zap.String("actorID", actor.ID))
}

func originChecker(origins []string) func(r *http.Request) bool {
	allowed := make(map[string]bool, len(origins))
	for _, o := range origins {
		if o == "*" {
			return func(*http.Request) bool { return true }
		}
		allowed[o] = true
	}
	return func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		if origin == "" {
			return true
		}
		u, err := url.Parse(origin)
		if err != nil {
			return false
		}
		return allowed[origin] || u.Host == r.Host
	}
}
