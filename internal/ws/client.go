package ws

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/go-demo/watchroom/internal/middleware"
	apperrors "github.com/go-demo/watchroom/internal/pkg/errors"
	"github.com/go-demo/watchroom/internal/session"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

const (
	// Time allowed to write a message to the peer
	writeWait = 10 * time.Second

	// Time allowed to read the next pong message from the peer
	pongWait = 60 * time.Second

	// Send pings to peer with this period. Must be less than pongWait
	pingPeriod = (pongWait * 9) / 10

	// Maximum message size allowed from peer
	maxMessageSize = 8192

	sendBufferSize = 64

	// Upper bound for one room operation triggered by a frame
	opTimeout = 5 * time.Second
)

// Client is one websocket connection bound to one room session
type Client struct {
	hub     *Hub
	conn    *websocket.Conn
	send    chan []byte
	done    chan struct{}
	session *session.Session
	roomID  string
	limiter middleware.RateLimiter
	logger  *zap.Logger

	closeOnce sync.Once
}

// NewClient creates a new client
func NewClient(hub *Hub, conn *websocket.Conn, sess *session.Session, roomID string, limiter middleware.RateLimiter, logger *zap.Logger) *Client {
	return &Client{
		hub:     hub,
		conn:    conn,
		send:    make(chan []byte, sendBufferSize),
		done:    make(chan struct{}),
		session: sess,
		roomID:  roomID,
		limiter: limiter,
		logger: logger.With(
			zap.String("user_id", sess.Identity().UserID),
			zap.String("room_id", roomID),
		),
	}
}

// UserID returns the signed-in user of the connection
func (c *Client) UserID() string {
	return c.session.Identity().UserID
}

// RoomID returns the room the connection watches
func (c *Client) RoomID() string {
	return c.roomID
}

// ReadPump reads frames until the peer goes away. A clean close (1000 or
// 1001) leaves the room; any other disconnect leaves presence to expire.
func (c *Client) ReadPump(ctx context.Context) {
	defer c.hub.Unregister(c)

	c.conn.SetReadLimit(maxMessageSize)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				c.leaveOnClose(ctx)
			} else if websocket.IsUnexpectedCloseError(err, websocket.CloseAbnormalClosure) {
				c.logger.Warn("WebSocket read error", zap.Error(err))
			}
			return
		}

		var msg Message
		if err := json.Unmarshal(data, &msg); err != nil {
			c.logger.Debug("Failed to parse message", zap.Error(err))
			c.sendError(apperrors.ErrBadRequest.WithMessage("Invalid message format"), "")
			continue
		}

		c.handleMessage(ctx, &msg)
	}
}

func (c *Client) leaveOnClose(ctx context.Context) {
	// the server already left and started the close handshake
	if c.closed() {
		return
	}

	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), opTimeout)
	defer cancel()

	if err := c.session.Leave(ctx); err != nil {
		c.logger.Warn("Leave on close failed", zap.Error(err))
	}
}

// WritePump pumps queued frames to the connection and keeps it alive with pings
func (c *Client) WritePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		_ = c.conn.Close()
	}()

	for {
		select {
		case message := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
				return
			}

		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}

		case <-c.done:
			c.flush()
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			_ = c.conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
			return
		}
	}
}

// flush writes frames still queued when the client closes, so a final
// room_left or error reaches the peer before the close frame.
func (c *Client) flush() {
	for {
		select {
		case message := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
				return
			}
		default:
			return
		}
	}
}

// ForwardViews pushes every session view as a room_state frame. Views are
// latest-value, so a slow connection only ever sees the newest state.
func (c *Client) ForwardViews() {
	for view := range c.session.Updates() {
		msg, err := NewMessage(MessageTypeRoomState, NewRoomStatePayload(view))
		if err != nil {
			c.logger.Error("Failed to encode room state", zap.Error(err))
			continue
		}
		data, err := json.Marshal(msg)
		if err != nil {
			continue
		}

		select {
		case c.send <- data:
		case <-c.done:
			return
		}
	}
}

func (c *Client) handleMessage(ctx context.Context, msg *Message) {
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	switch msg.Type {
	case MessageTypeSendMessage:
		var payload SendMessagePayload
		if err := msg.ParsePayload(&payload); err != nil {
			c.sendError(apperrors.ErrBadRequest, msg.RequestID)
			return
		}
		if !c.allowMessage(ctx, msg.RequestID) {
			return
		}
		sent, err := c.session.Send(ctx, payload.Text)
		if err != nil {
			c.sendError(err, msg.RequestID)
			return
		}
		c.ack(msg.RequestID, sent.ID)

	case MessageTypeSendReaction:
		var payload SendReactionPayload
		if err := msg.ParsePayload(&payload); err != nil {
			c.sendError(apperrors.ErrBadRequest, msg.RequestID)
			return
		}
		if !c.allowMessage(ctx, msg.RequestID) {
			return
		}
		sent, err := c.session.React(ctx, payload.Emoji)
		if err != nil {
			c.sendError(err, msg.RequestID)
			return
		}
		c.ack(msg.RequestID, sent.ID)

	case MessageTypeUpdatePlayback:
		var payload UpdatePlaybackPayload
		if err := msg.ParsePayload(&payload); err != nil {
			c.sendError(apperrors.ErrBadRequest, msg.RequestID)
			return
		}
		if err := c.session.UpdatePlayback(ctx, payload.IsPlaying, payload.CurrentTime); err != nil {
			c.sendError(err, msg.RequestID)
			return
		}
		c.ack(msg.RequestID, "")

	case MessageTypeLeave:
		if err := c.session.Leave(ctx); err != nil {
			c.sendError(err, msg.RequestID)
			return
		}
		left, _ := NewMessage(MessageTypeRoomLeft, &RoomLeftPayload{RoomID: c.roomID})
		left.RequestID = msg.RequestID
		c.SendMessage(left)
		c.Close()

	case MessageTypePing:
		if err := c.session.Heartbeat(ctx); err != nil {
			c.logger.Debug("Heartbeat rejected", zap.Error(err))
		}
		pong, _ := NewMessage(MessageTypePong, nil)
		pong.RequestID = msg.RequestID
		c.SendMessage(pong)

	default:
		c.sendError(apperrors.ErrBadRequest.WithMessage("Unknown message type"), msg.RequestID)
	}
}

// allowMessage applies the per-user chat limit shared with the HTTP API
func (c *Client) allowMessage(ctx context.Context, requestID string) bool {
	if c.limiter == nil {
		return true
	}
	allowed, err := c.limiter.Allow(ctx, middleware.MessageKey(c.UserID()))
	if err != nil {
		c.logger.Warn("Rate limiter unavailable", zap.Error(err))
		return true
	}
	if !allowed {
		c.sendError(apperrors.ErrTooManyRequests, requestID)
	}
	return allowed
}

func (c *Client) ack(requestID, messageID string) {
	ackMsg, _ := NewMessage(MessageTypeAck, &AckPayload{
		RequestID: requestID,
		Success:   true,
		MessageID: messageID,
	})
	ackMsg.RequestID = requestID
	c.SendMessage(ackMsg)
}

// SendMessage queues a frame. Frames are dropped when the buffer is full or
// the client is closed.
func (c *Client) SendMessage(msg *Message) {
	data, err := json.Marshal(msg)
	if err != nil {
		c.logger.Error("Failed to marshal message", zap.Error(err))
		return
	}

	select {
	case <-c.done:
	case c.send <- data:
	default:
		c.logger.Warn("Client send buffer full", zap.String("type", string(msg.Type)))
	}
}

func (c *Client) sendError(err error, requestID string) {
	errMsg, mErr := NewErrorMessage(err, requestID)
	if mErr != nil {
		return
	}
	c.SendMessage(errMsg)
}

func (c *Client) closed() bool {
	select {
	case <-c.done:
		return true
	default:
		return false
	}
}

// Close stops the write pump and closes the session. It is safe to call more than once.
func (c *Client) Close() {
	c.closeOnce.Do(func() {
		close(c.done)
		c.session.Close()
	})
}
