package room

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"StuffChat/logger"

	"github.com/gorilla/websocket"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = 30 * time.Second
	maxMessageSize = 64 * 1024 // SDP 可能较大
	sendBufferSize = 256
)

// MessageHandler 处理一条客户端消息
type MessageHandler func(ctx context.Context, c *Client, msg *WSMessage)

// Client WebSocket 客户端，实现 Conn
type Client struct {
	hub       *Hub
	conn      *websocket.Conn
	send      chan []byte
	userID    string
	sessionID string

	mu     sync.Mutex
	closed bool
}

// NewClient 包装一个已升级的 websocket 连接
func NewClient(hub *Hub, conn *websocket.Conn, userID, sessionID string) *Client {
	return &Client{
		hub:       hub,
		conn:      conn,
		send:      make(chan []byte, sendBufferSize),
		userID:    userID,
		sessionID: sessionID,
	}
}

// UserID 连接所属用户
func (c *Client) UserID() string { return c.userID }

// SessionID 连接的会话 ID
func (c *Client) SessionID() string { return c.sessionID }

// Send 非阻塞投递，连接已关闭或缓冲区满时返回 false
func (c *Client) Send(data []byte) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return false
	}
	select {
	case c.send <- data:
		return true
	default:
		logger.Warn("client send buffer full, dropping message",
			logger.String("user", c.userID),
			logger.String("session", c.sessionID))
		return false
	}
}

// Close 关闭发送通道，WritePump 随后关闭底层连接
func (c *Client) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}
	c.closed = true
	close(c.send)
}

// ReadPump 读取消息循环，退出时注销会话
func (c *Client) ReadPump(ctx context.Context, handler MessageHandler) {
	defer func() {
		if err := c.hub.Submit(Disconnect{UserID: c.userID, SessionID: c.sessionID, Conn: c}); err != nil {
			c.Close()
		}
		c.conn.Close()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		_, message, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				logger.Warn("websocket read error",
					logger.ErrorField(err),
					logger.String("user", c.userID),
					logger.String("session", c.sessionID))
			}
			return
		}

		var msg WSMessage
		if err := json.Unmarshal(message, &msg); err != nil {
			logger.Warn("invalid message format",
				logger.ErrorField(err),
				logger.String("user", c.userID))
			continue
		}

		handler(ctx, c, &msg)
	}
}

// WritePump 写入消息循环，每条消息一帧
func (c *Client) WritePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				// Hub 关闭了通道
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
				return
			}

		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
