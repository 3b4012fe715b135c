package ws

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-demo/watchroom/internal/dto/response"
	"github.com/go-demo/watchroom/internal/middleware"
	apperrors "github.com/go-demo/watchroom/internal/pkg/errors"
	"github.com/go-demo/watchroom/internal/pkg/utils"
	"github.com/go-demo/watchroom/internal/session"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

// Options configures the sessions created for connections
type Options struct {
	MessageLimit      int
	HeartbeatInterval time.Duration
	// AllowedOrigins restricts the Origin header; empty allows any origin
	AllowedOrigins []string
}

// Handler handles WebSocket connections
type Handler struct {
	hub        *Hub
	backend    session.Backend
	jwtManager *utils.JWTManager
	limiter    middleware.RateLimiter
	opts       Options
	upgrader   websocket.Upgrader
	logger     *zap.Logger
}

// NewHandler creates a new WebSocket handler
func NewHandler(hub *Hub, backend session.Backend, jwtManager *utils.JWTManager, limiter middleware.RateLimiter, opts Options, logger *zap.Logger) *Handler {
	h := &Handler{
		hub:        hub,
		backend:    backend,
		jwtManager: jwtManager,
		limiter:    limiter,
		opts:       opts,
		logger:     logger,
	}
	h.upgrader = websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin:     h.checkOrigin,
	}
	return h
}

func (h *Handler) checkOrigin(r *http.Request) bool {
	origin := r.Header.Get("Origin")
	if origin == "" || len(h.opts.AllowedOrigins) == 0 {
		return true
	}
	for _, o := range h.opts.AllowedOrigins {
		if o == "*" || strings.EqualFold(o, origin) {
			return true
		}
	}
	return false
}

// ServeRoom opens a live room session over a WebSocket connection
// @Summary 房間即時連線
// @Description 建立 WebSocket 連線，加入房間並持續接收房間、參與者與訊息的最新狀態
// @Tags WebSocket
// @Param id path string true "房間 ID"
// @Param token query string true "JWT Token"
// @Success 101 {string} string "Switching Protocols"
// @Failure 401 {object} response.Response
// @Router /ws/rooms/{id} [get]
func (h *Handler) ServeRoom(c *gin.Context) {
	token := c.Query("token")
	if token == "" {
		var err error
		if token, err = middleware.BearerToken(c); err != nil {
			response.Error(c, err)
			return
		}
	}

	claims, err := middleware.ValidateToken(h.jwtManager, token)
	if err != nil {
		h.logger.Warn("Invalid token for WebSocket", zap.Error(err))
		response.Error(c, err)
		return
	}

	roomID := c.Param("id")
	if roomID == "" {
		response.Error(c, apperrors.ErrRoomNotFound)
		return
	}

	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.logger.Error("Failed to upgrade WebSocket", zap.Error(err))
		return
	}

	// the request context ends when this handler returns
	ctx, cancel := context.WithCancel(context.Background())

	sess := session.New(h.backend, claims.Identity(), session.Options{
		MessageLimit:      h.opts.MessageLimit,
		HeartbeatInterval: h.opts.HeartbeatInterval,
	}, h.logger)
	client := NewClient(h.hub, conn, sess, roomID, h.limiter, h.logger)

	if err := sess.Open(ctx, roomID); err != nil {
		h.logger.Warn("Failed to open room session", zap.String("room_id", roomID), zap.Error(err))
		errMsg, _ := NewErrorMessage(err, "")
		if data, mErr := errMsg.MarshalFrame(); mErr == nil {
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			_ = conn.WriteMessage(websocket.TextMessage, data)
		}
		_ = conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseInternalServerErr, ""))
		_ = conn.Close()
		sess.Close()
		cancel()
		return
	}

	if !h.hub.Register(client) {
		client.Close()
		_ = conn.Close()
		cancel()
		return
	}

	go client.WritePump()
	go client.ForwardViews()
	go func() {
		defer cancel()
		// a failed join is carried in the view; the connection stays to watch
		_ = sess.Join(ctx)
		client.ReadPump(ctx)
	}()
}

// GetStats returns WebSocket hub statistics
// @Summary 獲取 WebSocket 統計資訊
// @Description 獲取房間連線統計資訊
// @Tags WebSocket
// @Produce json
// @Security BearerAuth
// @Success 200 {object} response.Response
// @Router /api/v1/ws/stats [get]
func (h *Handler) GetStats(c *gin.Context) {
	response.Success(c, h.hub.GetStats())
}
