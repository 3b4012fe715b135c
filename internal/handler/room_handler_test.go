package handler

import (
	"net/http"
	"strings"
	"testing"

	"github.com/go-demo/watchroom/internal/dto/response"
	"github.com/go-demo/watchroom/internal/model"
	apperrors "github.com/go-demo/watchroom/internal/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRoomHandler_Create(t *testing.T) {
	env := setupTestEnv(t)

	room := env.createRoom(t, alice, map[string]interface{}{
		"item_title": "Arrival",
		"settings":   map[string]bool{"allow_chat": true, "allow_reactions": false, "is_public": true},
	})

	assert.Len(t, room.Code, 6)
	assert.Equal(t, alice.UserID, room.HostID)
	assert.Equal(t, "Arrival", room.ItemTitle)
	assert.True(t, room.IsActive)
	assert.Equal(t, 1, room.CurrentParticipants)
	assert.Equal(t, 2, room.MaxParticipants)
	assert.Equal(t, "advisory", room.Playback.Strategy)
	assert.False(t, room.Settings.AllowReactions)
	assert.True(t, room.Settings.IsPublic)
}

func TestRoomHandler_Create_DefaultTitle(t *testing.T) {
	env := setupTestEnv(t)

	room := env.createRoom(t, alice, nil)

	assert.Equal(t, model.DefaultRoomTitle, room.ItemTitle)
	assert.False(t, room.Settings.IsPublic)
}

func TestRoomHandler_Create_PartialSettings(t *testing.T) {
	env := setupTestEnv(t)

	room := env.createRoom(t, alice, map[string]interface{}{
		"settings": map[string]bool{"is_public": true},
	})

	assert.True(t, room.Settings.IsPublic)
	assert.True(t, room.Settings.AllowChat)
	assert.True(t, room.Settings.AllowReactions)

	w, _ := env.do(t, bob, http.MethodPost, "/api/v1/rooms/"+room.ID+"/messages", map[string]string{"text": "hi"})
	assert.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	w, _ = env.do(t, bob, http.MethodPost, "/api/v1/rooms/"+room.ID+"/reactions", map[string]string{"emoji": "👏"})
	assert.Equal(t, http.StatusCreated, w.Code, w.Body.String())
}

func TestRoomHandler_Create_Invalid(t *testing.T) {
	env := setupTestEnv(t)

	w, resp := env.do(t, alice, http.MethodPost, "/api/v1/rooms", map[string]interface{}{
		"max_participants": 1000,
	})

	assert.Equal(t, http.StatusBadRequest, w.Code)
	require.NotNil(t, resp.Error)
	assert.Equal(t, apperrors.KindValidation, resp.Error.Kind)
}

func TestRoomHandler_Unauthenticated(t *testing.T) {
	env := setupTestEnv(t)

	w, resp := env.do(t, model.Identity{}, http.MethodPost, "/api/v1/rooms", map[string]interface{}{})

	assert.Equal(t, http.StatusUnauthorized, w.Code)
	require.NotNil(t, resp.Error)
	assert.Equal(t, apperrors.KindPermissionDenied, resp.Error.Kind)
}

func TestRoomHandler_GetByID(t *testing.T) {
	env := setupTestEnv(t)
	room := env.createRoom(t, alice, nil)

	w, resp := env.do(t, bob, http.MethodGet, "/api/v1/rooms/"+room.ID, nil)
	require.Equal(t, http.StatusOK, w.Code)

	var got response.RoomResponse
	decodeData(t, resp, &got)
	assert.Equal(t, room.ID, got.ID)
	assert.Equal(t, room.Code, got.Code)
}

func TestRoomHandler_GetByID_NotFound(t *testing.T) {
	env := setupTestEnv(t)

	tests := []struct {
		name string
		id   string
	}{
		{"unknown id", "00000000-0000-0000-0000-000000000000"},
		{"malformed id", "not-a-uuid"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w, resp := env.do(t, alice, http.MethodGet, "/api/v1/rooms/"+tt.id, nil)

			assert.Equal(t, http.StatusNotFound, w.Code)
			require.NotNil(t, resp.Error)
			assert.Equal(t, apperrors.KindNotFound, resp.Error.Kind)
			assert.Equal(t, apperrors.ErrRoomNotFound.Message, resp.Error.Message)
		})
	}
}

func TestRoomHandler_GetByCode(t *testing.T) {
	env := setupTestEnv(t)
	room := env.createRoom(t, alice, nil)

	// codes resolve case-insensitively
	w, resp := env.do(t, bob, http.MethodGet, "/api/v1/rooms/code/"+strings.ToLower(room.Code), nil)
	require.Equal(t, http.StatusOK, w.Code)

	var got response.RoomResponse
	decodeData(t, resp, &got)
	assert.Equal(t, room.ID, got.ID)
}

func TestRoomHandler_GetByCode_Errors(t *testing.T) {
	env := setupTestEnv(t)

	tests := []struct {
		name       string
		code       string
		wantStatus int
		wantMsg    string
	}{
		{"malformed", "abc", http.StatusBadRequest, apperrors.ErrInvalidRoomCode.Message},
		{"unknown", "ZZZZZZ", http.StatusNotFound, apperrors.ErrRoomCodeNotFound.Message},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w, resp := env.do(t, alice, http.MethodGet, "/api/v1/rooms/code/"+tt.code, nil)

			assert.Equal(t, tt.wantStatus, w.Code)
			require.NotNil(t, resp.Error)
			assert.Equal(t, tt.wantMsg, resp.Error.Message)
		})
	}
}

func TestRoomHandler_JoinByCode(t *testing.T) {
	env := setupTestEnv(t)
	room := env.createRoom(t, alice, nil)

	w, resp := env.do(t, bob, http.MethodPost, "/api/v1/rooms/code/"+room.Code+"/join", nil)
	require.Equal(t, http.StatusOK, w.Code)

	var join response.JoinResponse
	decodeData(t, resp, &join)
	assert.Equal(t, room.ID, join.RoomID)
	assert.True(t, join.Joined)
	assert.Equal(t, bob.UserID, join.Participant.UserID)
	assert.Equal(t, "Bob", join.Participant.DisplayName)
}

func TestRoomHandler_Join_Idempotent(t *testing.T) {
	env := setupTestEnv(t)
	room := env.createRoom(t, alice, nil)

	// the host is already in the room
	w, resp := env.do(t, alice, http.MethodPost, "/api/v1/rooms/"+room.ID+"/join", nil)
	require.Equal(t, http.StatusOK, w.Code)

	var join response.JoinResponse
	decodeData(t, resp, &join)
	assert.False(t, join.Joined)

	w, resp = env.do(t, bob, http.MethodGet, "/api/v1/rooms/"+room.ID, nil)
	require.Equal(t, http.StatusOK, w.Code)
	var got response.RoomResponse
	decodeData(t, resp, &got)
	assert.Equal(t, 1, got.CurrentParticipants)
}

func TestRoomHandler_Join_Full(t *testing.T) {
	env := setupTestEnv(t)
	room := env.createRoom(t, alice, nil)

	w, _ := env.do(t, bob, http.MethodPost, "/api/v1/rooms/"+room.ID+"/join", nil)
	require.Equal(t, http.StatusOK, w.Code)

	carol := model.Identity{UserID: "user-carol", DisplayName: "Carol"}
	w, resp := env.do(t, carol, http.MethodPost, "/api/v1/rooms/"+room.ID+"/join", nil)

	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
	require.NotNil(t, resp.Error)
	assert.Equal(t, apperrors.ErrRoomFull.Message, resp.Error.Message)
}

func TestRoomHandler_LeaveKeepsRecord(t *testing.T) {
	env := setupTestEnv(t)
	room := env.createRoom(t, alice, nil)

	w, _ := env.do(t, bob, http.MethodPost, "/api/v1/rooms/"+room.ID+"/join", nil)
	require.Equal(t, http.StatusOK, w.Code)

	w, _ = env.do(t, bob, http.MethodPost, "/api/v1/rooms/"+room.ID+"/leave", nil)
	require.Equal(t, http.StatusNoContent, w.Code)

	w, resp := env.do(t, alice, http.MethodGet, "/api/v1/rooms/"+room.ID+"/participants", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var present []response.ParticipantResponse
	decodeData(t, resp, &present)
	require.Len(t, present, 1)
	assert.Equal(t, alice.UserID, present[0].UserID)

	w, resp = env.do(t, alice, http.MethodGet, "/api/v1/rooms/"+room.ID+"/participants/"+bob.UserID, nil)
	require.Equal(t, http.StatusOK, w.Code)
	var record response.ParticipantResponse
	decodeData(t, resp, &record)
	assert.False(t, record.IsActive)

	// heartbeats from a departed participant are refused
	w, resp = env.do(t, bob, http.MethodPost, "/api/v1/rooms/"+room.ID+"/heartbeat", nil)
	assert.Equal(t, http.StatusConflict, w.Code)
	require.NotNil(t, resp.Error)
	assert.Equal(t, apperrors.KindConflict, resp.Error.Kind)
}

func TestRoomHandler_Heartbeat(t *testing.T) {
	env := setupTestEnv(t)
	room := env.createRoom(t, alice, nil)

	w, _ := env.do(t, alice, http.MethodPost, "/api/v1/rooms/"+room.ID+"/heartbeat", nil)
	assert.Equal(t, http.StatusNoContent, w.Code)

	w, _ = env.do(t, bob, http.MethodPost, "/api/v1/rooms/"+room.ID+"/heartbeat", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestRoomHandler_ListPublic(t *testing.T) {
	env := setupTestEnv(t)
	public := env.createRoom(t, alice, map[string]interface{}{
		"settings": map[string]bool{"allow_chat": true, "allow_reactions": true, "is_public": true},
	})
	env.createRoom(t, bob, nil)

	w, resp := env.do(t, alice, http.MethodGet, "/api/v1/rooms?limit=10", nil)
	require.Equal(t, http.StatusOK, w.Code)

	var list struct {
		Items []response.RoomResponse `json:"items"`
		Count int                     `json:"count"`
		Limit int                     `json:"limit"`
	}
	decodeData(t, resp, &list)
	require.Equal(t, 1, list.Count)
	assert.Equal(t, public.ID, list.Items[0].ID)
	assert.Equal(t, 10, list.Limit)
}

func TestRoomHandler_UpdatePlayback(t *testing.T) {
	env := setupTestEnv(t)
	room := env.createRoom(t, alice, nil)

	w, resp := env.do(t, alice, http.MethodPut, "/api/v1/rooms/"+room.ID+"/playback", map[string]interface{}{
		"is_playing":   true,
		"current_time": 42.5,
	})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var got response.RoomResponse
	decodeData(t, resp, &got)
	assert.True(t, got.Playback.IsPlaying)
	assert.Equal(t, 42.5, got.Playback.CurrentTime)

	w, _ = env.do(t, alice, http.MethodPut, "/api/v1/rooms/"+room.ID+"/playback", map[string]interface{}{
		"is_playing": false,
	})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}
