package handler

import (
	"github.com/gin-gonic/gin"
	"github.com/go-demo/watchroom/internal/dto/request"
	"github.com/go-demo/watchroom/internal/dto/response"
	"github.com/go-demo/watchroom/internal/middleware"
	"github.com/go-demo/watchroom/internal/model"
	apperrors "github.com/go-demo/watchroom/internal/pkg/errors"
	"github.com/go-demo/watchroom/internal/service"
)

type RoomHandler struct {
	roomService *service.RoomService
}

func NewRoomHandler(roomService *service.RoomService) *RoomHandler {
	return &RoomHandler{
		roomService: roomService,
	}
}

// Create godoc
// @Summary 建立觀影房間
// @Description 建立新的觀影房間並產生 6 碼加入代碼，建立者成為第一位參與者
// @Tags 房間
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param request body request.CreateRoomRequest true "房間資料"
// @Success 201 {object} response.Response{data=response.RoomResponse}
// @Failure 400 {object} response.Response
// @Failure 503 {object} response.Response
// @Failure 504 {object} response.Response
// @Router /api/v1/rooms [post]
func (h *RoomHandler) Create(c *gin.Context) {
	var req request.CreateRoomRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		bindError(c, err)
		return
	}

	input := &service.CreateRoomInput{
		Host:            middleware.GetIdentity(c),
		ItemID:          req.ItemID,
		ItemTitle:       req.ItemTitle,
		ItemPoster:      req.ItemPoster,
		MaxParticipants: req.MaxParticipants,
	}
	if req.Settings != nil {
		settings := model.DefaultRoomSettings()
		if req.Settings.AllowChat != nil {
			settings.AllowChat = *req.Settings.AllowChat
		}
		if req.Settings.AllowReactions != nil {
			settings.AllowReactions = *req.Settings.AllowReactions
		}
		if req.Settings.IsPublic != nil {
			settings.IsPublic = *req.Settings.IsPublic
		}
		input.Settings = &settings
	}

	room, err := h.roomService.CreateRoom(c.Request.Context(), input)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Created(c, response.NewRoomResponse(room))
}

// GetByID godoc
// @Summary 取得房間
// @Description 取得指定房間的資訊
// @Tags 房間
// @Produce json
// @Security BearerAuth
// @Param id path string true "房間 ID"
// @Success 200 {object} response.Response{data=response.RoomResponse}
// @Failure 404 {object} response.Response
// @Router /api/v1/rooms/{id} [get]
func (h *RoomHandler) GetByID(c *gin.Context) {
	roomID, ok := uuidParam(c, "id", apperrors.ErrRoomNotFound)
	if !ok {
		return
	}

	room, err := h.roomService.GetRoom(c.Request.Context(), roomID)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, response.NewRoomResponse(room))
}

// GetByCode godoc
// @Summary 以代碼查詢房間
// @Description 以 6 碼加入代碼查詢進行中的房間，不分大小寫
// @Tags 房間
// @Produce json
// @Security BearerAuth
// @Param code path string true "加入代碼"
// @Success 200 {object} response.Response{data=response.RoomResponse}
// @Failure 400 {object} response.Response
// @Failure 404 {object} response.Response
// @Router /api/v1/rooms/code/{code} [get]
func (h *RoomHandler) GetByCode(c *gin.Context) {
	room, err := h.roomService.ResolveRoomByCode(c.Request.Context(), c.Param("code"))
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, response.NewRoomResponse(room))
}

// JoinByCode godoc
// @Summary 以代碼加入房間
// @Description 以加入代碼查詢房間並加入
// @Tags 房間
// @Produce json
// @Security BearerAuth
// @Param code path string true "加入代碼"
// @Success 200 {object} response.Response{data=response.JoinResponse}
// @Failure 404 {object} response.Response
// @Failure 422 {object} response.Response
// @Router /api/v1/rooms/code/{code}/join [post]
func (h *RoomHandler) JoinByCode(c *gin.Context) {
	room, err := h.roomService.ResolveRoomByCode(c.Request.Context(), c.Param("code"))
	if err != nil {
		response.Error(c, err)
		return
	}

	h.join(c, room.ID)
}

// ListPublic godoc
// @Summary 取得公開房間列表
// @Description 取得進行中的公開房間，新建立的在前
// @Tags 房間
// @Produce json
// @Security BearerAuth
// @Param limit query int false "每頁數量" default(20)
// @Param offset query int false "起始位置" default(0)
// @Success 200 {object} response.Response{data=response.ListResponse}
// @Router /api/v1/rooms [get]
func (h *RoomHandler) ListPublic(c *gin.Context) {
	var req request.PaginationRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		req = request.PaginationRequest{Limit: 20}
	}

	rooms, err := h.roomService.ListPublicRooms(c.Request.Context(), req.Limit, req.Offset)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, response.NewRoomListResponse(rooms, req.Limit, req.Offset))
}

// Join godoc
// @Summary 加入房間
// @Description 加入房間；已在房間內時不會重複計算人數
// @Tags 房間
// @Produce json
// @Security BearerAuth
// @Param id path string true "房間 ID"
// @Success 200 {object} response.Response{data=response.JoinResponse}
// @Failure 404 {object} response.Response
// @Failure 409 {object} response.Response
// @Failure 422 {object} response.Response
// @Router /api/v1/rooms/{id}/join [post]
func (h *RoomHandler) Join(c *gin.Context) {
	roomID, ok := uuidParam(c, "id", apperrors.ErrRoomNotFound)
	if !ok {
		return
	}

	h.join(c, roomID)
}

func (h *RoomHandler) join(c *gin.Context, roomID string) {
	res, err := h.roomService.JoinRoom(c.Request.Context(), roomID, middleware.GetIdentity(c))
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, response.NewJoinResponse(roomID, res.Participant, res.Transitioned))
}

// Leave godoc
// @Summary 離開房間
// @Description 離開房間，保留參與紀錄
// @Tags 房間
// @Produce json
// @Security BearerAuth
// @Param id path string true "房間 ID"
// @Success 204
// @Failure 404 {object} response.Response
// @Router /api/v1/rooms/{id}/leave [post]
func (h *RoomHandler) Leave(c *gin.Context) {
	roomID, ok := uuidParam(c, "id", apperrors.ErrRoomNotFound)
	if !ok {
		return
	}

	if err := h.roomService.LeaveRoom(c.Request.Context(), roomID, middleware.GetUserID(c)); err != nil {
		response.Error(c, err)
		return
	}

	response.NoContent(c)
}

// Heartbeat godoc
// @Summary 更新在線狀態
// @Description 更新參與者最後上線時間，避免被判定為離線
// @Tags 房間
// @Produce json
// @Security BearerAuth
// @Param id path string true "房間 ID"
// @Success 204
// @Failure 404 {object} response.Response
// @Failure 409 {object} response.Response
// @Router /api/v1/rooms/{id}/heartbeat [post]
func (h *RoomHandler) Heartbeat(c *gin.Context) {
	roomID, ok := uuidParam(c, "id", apperrors.ErrRoomNotFound)
	if !ok {
		return
	}

	if err := h.roomService.Heartbeat(c.Request.Context(), roomID, middleware.GetUserID(c)); err != nil {
		response.Error(c, err)
		return
	}

	response.NoContent(c)
}

// ListParticipants godoc
// @Summary 取得在線參與者
// @Description 取得目前在房間內的參與者
// @Tags 房間
// @Produce json
// @Security BearerAuth
// @Param id path string true "房間 ID"
// @Success 200 {object} response.Response{data=[]response.ParticipantResponse}
// @Failure 404 {object} response.Response
// @Router /api/v1/rooms/{id}/participants [get]
func (h *RoomHandler) ListParticipants(c *gin.Context) {
	roomID, ok := uuidParam(c, "id", apperrors.ErrRoomNotFound)
	if !ok {
		return
	}

	participants, err := h.roomService.ListActiveParticipants(c.Request.Context(), roomID)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, response.NewParticipantListResponse(participants))
}

// GetParticipant godoc
// @Summary 取得參與紀錄
// @Description 取得使用者在房間的參與紀錄，包含已離開的紀錄
// @Tags 房間
// @Produce json
// @Security BearerAuth
// @Param id path string true "房間 ID"
// @Param user_id path string true "使用者 ID"
// @Success 200 {object} response.Response{data=response.ParticipantResponse}
// @Failure 404 {object} response.Response
// @Router /api/v1/rooms/{id}/participants/{user_id} [get]
func (h *RoomHandler) GetParticipant(c *gin.Context) {
	roomID, ok := uuidParam(c, "id", apperrors.ErrRoomNotFound)
	if !ok {
		return
	}

	p, err := h.roomService.GetParticipant(c.Request.Context(), roomID, c.Param("user_id"))
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, response.NewParticipantResponse(p))
}

// UpdatePlayback godoc
// @Summary 更新播放狀態
// @Description 記錄房間的播放狀態，僅供參考，不會同步控制播放器
// @Tags 房間
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path string true "房間 ID"
// @Param request body request.UpdatePlaybackRequest true "播放狀態"
// @Success 200 {object} response.Response{data=response.RoomResponse}
// @Failure 400 {object} response.Response
// @Failure 404 {object} response.Response
// @Router /api/v1/rooms/{id}/playback [put]
func (h *RoomHandler) UpdatePlayback(c *gin.Context) {
	roomID, ok := uuidParam(c, "id", apperrors.ErrRoomNotFound)
	if !ok {
		return
	}

	var req request.UpdatePlaybackRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		bindError(c, err)
		return
	}

	room, err := h.roomService.UpdatePlayback(c.Request.Context(), roomID, req.IsPlaying, *req.CurrentTime)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, response.NewRoomResponse(room))
}
