package handler

import (
	"io"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-demo/watchroom/internal/dto/request"
	"github.com/go-demo/watchroom/internal/dto/response"
	"github.com/go-demo/watchroom/internal/middleware"
	"github.com/go-demo/watchroom/internal/model"
	apperrors "github.com/go-demo/watchroom/internal/pkg/errors"
	"github.com/go-demo/watchroom/internal/pkg/utils"
	"github.com/go-demo/watchroom/internal/service"
)

const streamKeepAlive = 25 * time.Second

type EventHandler struct {
	eventService *service.EventService
}

func NewEventHandler(eventService *service.EventService) *EventHandler {
	return &EventHandler{
		eventService: eventService,
	}
}

// Create godoc
// @Summary 建立觀影活動
// @Description 排定未來的觀影活動，開始時會建立新的房間
// @Tags 觀影活動
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param request body request.CreateEventRequest true "活動資料"
// @Success 201 {object} response.Response{data=response.EventResponse}
// @Failure 400 {object} response.Response
// @Router /api/v1/events [post]
func (h *EventHandler) Create(c *gin.Context) {
	var req request.CreateEventRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		bindError(c, err)
		return
	}

	scheduledAt, err := time.Parse(time.RFC3339, req.ScheduledAt)
	if err != nil {
		v := utils.NewValidator()
		v.AddError("scheduled_at", "Must be an RFC 3339 timestamp")
		response.ValidationError(c, v.Errors())
		return
	}

	event, err := h.eventService.Create(c.Request.Context(), &service.CreateEventInput{
		Host:        middleware.GetIdentity(c),
		ItemID:      req.ItemID,
		ItemTitle:   req.ItemTitle,
		ItemPoster:  req.ItemPoster,
		ScheduledAt: scheduledAt,
	})
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Created(c, response.NewEventResponse(event))
}

// ListUpcoming godoc
// @Summary 取得即將開始的活動
// @Description 取得排定在未來的觀影活動，最近的在前
// @Tags 觀影活動
// @Produce json
// @Security BearerAuth
// @Param limit query int false "數量" default(20)
// @Success 200 {object} response.Response{data=[]response.EventResponse}
// @Router /api/v1/events [get]
func (h *EventHandler) ListUpcoming(c *gin.Context) {
	events, err := h.eventService.ListUpcoming(c.Request.Context(), queryLimit(c))
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, response.NewEventListResponse(events))
}

// Start godoc
// @Summary 開始觀影活動
// @Description 以活動內容建立新的房間，每次開始都會取得新的加入代碼
// @Tags 觀影活動
// @Produce json
// @Security BearerAuth
// @Param id path string true "活動 ID"
// @Success 201 {object} response.Response{data=response.RoomResponse}
// @Failure 404 {object} response.Response
// @Failure 503 {object} response.Response
// @Router /api/v1/events/{id}/start [post]
func (h *EventHandler) Start(c *gin.Context) {
	eventID, ok := uuidParam(c, "id", apperrors.ErrEventNotFound)
	if !ok {
		return
	}

	room, err := h.eventService.Start(c.Request.Context(), eventID, middleware.GetIdentity(c))
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Created(c, response.NewRoomResponse(room))
}

// Stream godoc
// @Summary 訂閱即將開始的活動
// @Description 以 Server-Sent Events 持續推送最新的活動列表
// @Tags 觀影活動
// @Produce text/event-stream
// @Security BearerAuth
// @Param limit query int false "數量" default(20)
// @Success 200 {array} response.EventResponse
// @Router /api/v1/events/stream [get]
func (h *EventHandler) Stream(c *gin.Context) {
	ctx := c.Request.Context()

	updates, err := h.eventService.SubscribeUpcoming(ctx, queryLimit(c))
	if err != nil {
		response.Error(c, err)
		return
	}

	c.Header("Cache-Control", "no-cache")
	c.Header("X-Accel-Buffering", "no")

	keepAlive := time.NewTicker(streamKeepAlive)
	defer keepAlive.Stop()

	// the list only changes on publish, so refetch when its first event starts
	expiry := time.NewTimer(0)
	if !expiry.Stop() {
		<-expiry.C
	}
	defer expiry.Stop()

	emit := func(events []*model.WatchEvent) {
		c.SSEvent("events", response.NewEventListResponse(events))
		expiry.Stop()
		if len(events) > 0 {
			expiry.Reset(time.Until(events[0].ScheduledAt))
		}
	}

	c.Stream(func(w io.Writer) bool {
		select {
		case events, ok := <-updates:
			if !ok {
				return false
			}
			emit(events)
			return true
		case <-expiry.C:
			events, err := h.eventService.ListUpcoming(ctx, queryLimit(c))
			if err != nil {
				expiry.Reset(streamKeepAlive)
				return ctx.Err() == nil
			}
			emit(events)
			return true
		case <-keepAlive.C:
			c.SSEvent("ping", time.Now().Unix())
			return true
		case <-ctx.Done():
			return false
		}
	})
}

func queryLimit(c *gin.Context) int {
	limit, err := strconv.Atoi(c.Query("limit"))
	if err != nil {
		return 0
	}
	return limit
}
