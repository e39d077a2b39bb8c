package server

import (
	"context"
	"net/http"
	"time"

	"StuffChat/core/room"
	"StuffChat/logger"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

// Presence 连接级在线状态
type Presence interface {
	Touch(ctx context.Context, userID, sessionID string) error
	Remove(ctx context.Context, userID, sessionID string) error
}

// WSHandler GET /ws?token=
type WSHandler struct {
	hub        *room.Hub
	dispatcher *room.Dispatcher
	tokens     TokenParser
	presence   Presence
	upgrader   websocket.Upgrader
}

// NewWSHandler presence 可以为 nil
func NewWSHandler(hub *room.Hub, dispatcher *room.Dispatcher, tokens TokenParser, presence Presence, allowedOrigins []string) *WSHandler {
	return &WSHandler{
		hub:        hub,
		dispatcher: dispatcher,
		tokens:     tokens,
		presence:   presence,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4096,
			WriteBufferSize: 4096,
			CheckOrigin: func(r *http.Request) bool {
				origin := r.Header.Get("Origin")
				return len(allowedOrigins) == 0 || origin == "" || originAllowed(allowedOrigins, origin)
			},
		},
	}
}

// ServeHTTP 浏览器的 WebSocket 无法设置 header，token 走查询参数
func (h *WSHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	token := r.URL.Query().Get("token")
	if token == "" {
		http.Error(w, "Missing token", http.StatusUnauthorized)
		return
	}
	claims, err := h.tokens.ParseToken(token)
	if err != nil {
		http.Error(w, "Invalid token", http.StatusUnauthorized)
		return
	}
	userID := claims.UserID()

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		logger.Error("websocket upgrade failed", logger.ErrorField(err))
		return
	}

	sessionID := uuid.NewString()
	client := room.NewClient(h.hub, conn, userID, sessionID)
	if err := h.hub.Submit(room.Connect{UserID: userID, SessionID: sessionID, Conn: client}); err != nil {
		logger.Warn("rejecting websocket, hub unavailable", logger.ErrorField(err))
		conn.Close()
		return
	}
	h.touch(userID, sessionID)

	go client.WritePump()
	go func() {
		client.ReadPump(context.Background(), h.dispatcher.Handle)
		h.remove(userID, sessionID)
	}()
}

func (h *WSHandler) touch(userID, sessionID string) {
	if h.presence == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := h.presence.Touch(ctx, userID, sessionID); err != nil {
		logger.Warn("failed to update user presence on connect",
			logger.String("user", userID),
			logger.ErrorField(err))
	}
}

func (h *WSHandler) remove(userID, sessionID string) {
	if h.presence == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := h.presence.Remove(ctx, userID, sessionID); err != nil {
		logger.Warn("failed to remove user presence on disconnect",
			logger.String("user", userID),
			logger.ErrorField(err))
	}
}
