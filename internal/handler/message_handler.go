package handler

import (
	"github.com/gin-gonic/gin"
	"github.com/go-demo/watchroom/internal/dto/request"
	"github.com/go-demo/watchroom/internal/dto/response"
	"github.com/go-demo/watchroom/internal/middleware"
	apperrors "github.com/go-demo/watchroom/internal/pkg/errors"
	"github.com/go-demo/watchroom/internal/service"
)

type MessageHandler struct {
	roomService *service.RoomService
}

func NewMessageHandler(roomService *service.RoomService) *MessageHandler {
	return &MessageHandler{
		roomService: roomService,
	}
}

// SendMessage godoc
// @Summary 發送聊天訊息
// @Description 在房間中發送文字訊息
// @Tags 訊息
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path string true "房間 ID"
// @Param request body request.SendMessageRequest true "訊息內容"
// @Success 201 {object} response.Response{data=response.MessageResponse}
// @Failure 400 {object} response.Response
// @Failure 403 {object} response.Response
// @Failure 404 {object} response.Response
// @Failure 429 {object} response.Response
// @Router /api/v1/rooms/{id}/messages [post]
func (h *MessageHandler) SendMessage(c *gin.Context) {
	roomID, ok := uuidParam(c, "id", apperrors.ErrRoomNotFound)
	if !ok {
		return
	}

	var req request.SendMessageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		bindError(c, err)
		return
	}

	msg, err := h.roomService.SendMessage(c.Request.Context(), roomID, middleware.GetIdentity(c), req.Text)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Created(c, response.NewMessageResponse(msg))
}

// SendReaction godoc
// @Summary 發送表情反應
// @Description 在房間中發送單一表情符號
// @Tags 訊息
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path string true "房間 ID"
// @Param request body request.SendReactionRequest true "表情符號"
// @Success 201 {object} response.Response{data=response.MessageResponse}
// @Failure 400 {object} response.Response
// @Failure 403 {object} response.Response
// @Failure 404 {object} response.Response
// @Failure 429 {object} response.Response
// @Router /api/v1/rooms/{id}/reactions [post]
func (h *MessageHandler) SendReaction(c *gin.Context) {
	roomID, ok := uuidParam(c, "id", apperrors.ErrRoomNotFound)
	if !ok {
		return
	}

	var req request.SendReactionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		bindError(c, err)
		return
	}

	msg, err := h.roomService.SendReaction(c.Request.Context(), roomID, middleware.GetIdentity(c), req.Emoji)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Created(c, response.NewMessageResponse(msg))
}

// GetMessages godoc
// @Summary 取得最近訊息
// @Description 取得房間最新的訊息，依時間由舊到新排列
// @Tags 訊息
// @Produce json
// @Security BearerAuth
// @Param id path string true "房間 ID"
// @Param limit query int false "訊息數量，預設 50"
// @Success 200 {object} response.Response{data=response.MessageListResponse}
// @Failure 404 {object} response.Response
// @Router /api/v1/rooms/{id}/messages [get]
func (h *MessageHandler) GetMessages(c *gin.Context) {
	roomID, ok := uuidParam(c, "id", apperrors.ErrRoomNotFound)
	if !ok {
		return
	}

	var req request.MessageWindowRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		req.Limit = 0
	}

	messages, err := h.roomService.ListMessages(c.Request.Context(), roomID, req.Limit)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, response.NewMessageListResponse(messages))
}
