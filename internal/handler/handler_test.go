package handler

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-demo/watchroom/internal/dto/response"
	"github.com/go-demo/watchroom/internal/middleware"
	"github.com/go-demo/watchroom/internal/model"
	"github.com/go-demo/watchroom/internal/pkg/utils"
	"github.com/go-demo/watchroom/internal/realtime"
	"github.com/go-demo/watchroom/internal/repository"
	"github.com/go-demo/watchroom/internal/service"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

const testSecret = "test-secret"

var (
	alice = model.Identity{UserID: "user-alice", DisplayName: "Alice"}
	bob   = model.Identity{UserID: "user-bob", DisplayName: "Bob"}
)

type testEnv struct {
	router      *gin.Engine
	jwtManager  *utils.JWTManager
	roomService *service.RoomService
	store       *repository.MemoryStore
}

type apiResponse struct {
	Success bool                `json:"success"`
	Data    json.RawMessage     `json:"data"`
	Error   *response.ErrorInfo `json:"error"`
}

func setupTestEnv(t *testing.T) *testEnv {
	t.Helper()
	gin.SetMode(gin.TestMode)

	logger := zap.NewNop()
	store := repository.NewMemoryStore()
	feed := realtime.NewLocalFeed()
	roomService := service.NewRoomService(store, store, feed, service.RoomOptions{
		MaxParticipants: 2,
	}, service.PresencePolicy{TTL: time.Minute}, logger)
	eventService := service.NewEventService(store, roomService, feed, logger)
	jwtManager := utils.NewJWTManager(testSecret, "watchroom-test")

	rooms := NewRoomHandler(roomService)
	messages := NewMessageHandler(roomService)
	events := NewEventHandler(eventService)
	me := NewMeHandler()
	limiter := middleware.PerMinute(3)

	router := gin.New()
	router.Use(middleware.RequestID())
	v1 := router.Group("/api/v1")
	v1.Use(middleware.Auth(jwtManager))
	{
		v1.GET("/me", me.Get)

		v1.GET("/rooms", rooms.ListPublic)
		v1.POST("/rooms", rooms.Create)
		v1.GET("/rooms/code/:code", rooms.GetByCode)
		v1.POST("/rooms/code/:code/join", rooms.JoinByCode)
		v1.GET("/rooms/:id", rooms.GetByID)
		v1.POST("/rooms/:id/join", rooms.Join)
		v1.POST("/rooms/:id/leave", rooms.Leave)
		v1.POST("/rooms/:id/heartbeat", rooms.Heartbeat)
		v1.GET("/rooms/:id/participants", rooms.ListParticipants)
		v1.GET("/rooms/:id/participants/:user_id", rooms.GetParticipant)
		v1.PUT("/rooms/:id/playback", rooms.UpdatePlayback)

		v1.GET("/rooms/:id/messages", messages.GetMessages)
		v1.POST("/rooms/:id/messages", middleware.MessageRateLimit(limiter), messages.SendMessage)
		v1.POST("/rooms/:id/reactions", middleware.MessageRateLimit(limiter), messages.SendReaction)

		v1.GET("/events", events.ListUpcoming)
		v1.POST("/events", events.Create)
		v1.GET("/events/stream", events.Stream)
		v1.POST("/events/:id/start", events.Start)
	}

	return &testEnv{
		router:      router,
		jwtManager:  jwtManager,
		roomService: roomService,
		store:       store,
	}
}

func (e *testEnv) token(t *testing.T, identity model.Identity) string {
	t.Helper()
	token, _, err := e.jwtManager.Issue(identity, time.Hour)
	require.NoError(t, err)
	return token
}

// do performs the request as identity; a zero identity sends no token
func (e *testEnv) do(t *testing.T, identity model.Identity, method, path string, body interface{}) (*httptest.ResponseRecorder, apiResponse) {
	t.Helper()

	var reader *bytes.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	} else {
		reader = bytes.NewReader(nil)
	}

	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	if !identity.IsZero() {
		req.Header.Set("Authorization", "Bearer "+e.token(t, identity))
	}

	w := httptest.NewRecorder()
	e.router.ServeHTTP(w, req)

	var resp apiResponse
	if w.Body.Len() > 0 {
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp), w.Body.String())
	}
	return w, resp
}

func decodeData(t *testing.T, resp apiResponse, v interface{}) {
	t.Helper()
	require.NoError(t, json.Unmarshal(resp.Data, v))
}

func (e *testEnv) createRoom(t *testing.T, host model.Identity, body map[string]interface{}) response.RoomResponse {
	t.Helper()
	if body == nil {
		body = map[string]interface{}{}
	}
	w, resp := e.do(t, host, http.MethodPost, "/api/v1/rooms", body)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	var room response.RoomResponse
	decodeData(t, resp, &room)
	return room
}
