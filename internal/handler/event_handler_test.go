package handler

import (
	"bufio"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-demo/watchroom/internal/dto/response"
	"github.com/go-demo/watchroom/internal/model"
	apperrors "github.com/go-demo/watchroom/internal/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func (e *testEnv) createEvent(t *testing.T, host model.Identity, title string, at time.Time) response.EventResponse {
	t.Helper()
	w, resp := e.do(t, host, http.MethodPost, "/api/v1/events", map[string]interface{}{
		"item_title":   title,
		"scheduled_at": at.Format(time.RFC3339),
	})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	var event response.EventResponse
	decodeData(t, resp, &event)
	return event
}

func TestEventHandler_CreateAndList(t *testing.T) {
	env := setupTestEnv(t)
	now := time.Now()

	later := env.createEvent(t, alice, "Dune", now.Add(2*time.Hour))
	sooner := env.createEvent(t, bob, "Alien", now.Add(time.Hour))

	assert.Equal(t, alice.UserID, later.HostID)
	assert.Equal(t, "Alice", later.HostName)

	w, resp := env.do(t, alice, http.MethodGet, "/api/v1/events", nil)
	require.Equal(t, http.StatusOK, w.Code)

	var events []response.EventResponse
	decodeData(t, resp, &events)
	require.Len(t, events, 2)
	assert.Equal(t, sooner.ID, events[0].ID)
	assert.Equal(t, later.ID, events[1].ID)
}

func TestEventHandler_Create_Invalid(t *testing.T) {
	env := setupTestEnv(t)

	tests := []struct {
		name        string
		scheduledAt string
		wantMsg     string
	}{
		{"not a timestamp", "tomorrow", apperrors.ErrValidation.Message},
		{"in the past", time.Now().Add(-time.Hour).Format(time.RFC3339), apperrors.ErrEventInPast.Message},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w, resp := env.do(t, alice, http.MethodPost, "/api/v1/events", map[string]interface{}{
				"scheduled_at": tt.scheduledAt,
			})

			assert.Equal(t, http.StatusBadRequest, w.Code)
			require.NotNil(t, resp.Error)
			assert.Equal(t, apperrors.KindValidation, resp.Error.Kind)
			assert.Equal(t, tt.wantMsg, resp.Error.Message)
		})
	}
}

func TestEventHandler_Start(t *testing.T) {
	env := setupTestEnv(t)
	event := env.createEvent(t, alice, "Heat", time.Now().Add(time.Hour))

	codes := make(map[string]bool)
	for i := 0; i < 2; i++ {
		w, resp := env.do(t, bob, http.MethodPost, "/api/v1/events/"+event.ID+"/start", nil)
		require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

		var room response.RoomResponse
		decodeData(t, resp, &room)
		assert.Equal(t, "Heat", room.ItemTitle)
		assert.Equal(t, bob.UserID, room.HostID)
		codes[room.Code] = true
	}

	// every start of an event gets its own code
	assert.Len(t, codes, 2)
}

func TestEventHandler_Start_NotFound(t *testing.T) {
	env := setupTestEnv(t)

	for _, id := range []string{"00000000-0000-0000-0000-000000000000", "nope"} {
		w, resp := env.do(t, alice, http.MethodPost, "/api/v1/events/"+id+"/start", nil)

		assert.Equal(t, http.StatusNotFound, w.Code)
		require.NotNil(t, resp.Error)
		assert.Equal(t, apperrors.ErrEventNotFound.Message, resp.Error.Message)
	}
}

// openEventStream subscribes to the SSE endpoint and decodes each "events" frame
func (e *testEnv) openEventStream(t *testing.T, ctx context.Context) <-chan []response.EventResponse {
	t.Helper()
	srv := httptest.NewServer(e.router)
	t.Cleanup(srv.Close)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, srv.URL+"/api/v1/events/stream", nil)
	require.NoError(t, err)
	req.Header.Set("Authorization", "Bearer "+e.token(t, alice))

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	t.Cleanup(func() { resp.Body.Close() })
	require.Equal(t, http.StatusOK, resp.StatusCode)

	events := make(chan []response.EventResponse, 4)
	go func() {
		scanner := bufio.NewScanner(resp.Body)
		current := ""
		for scanner.Scan() {
			line := scanner.Text()
			switch {
			case strings.HasPrefix(line, "event:"):
				current = strings.TrimPrefix(line, "event:")
			case strings.HasPrefix(line, "data:") && current == "events":
				var list []response.EventResponse
				if json.Unmarshal([]byte(strings.TrimPrefix(line, "data:")), &list) == nil {
					events <- list
				}
			}
		}
		close(events)
	}()
	return events
}

func TestEventHandler_Stream(t *testing.T) {
	env := setupTestEnv(t)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	events := env.openEventStream(t, ctx)

	first := <-events
	assert.Empty(t, first)

	env.createEvent(t, alice, "Ronin", time.Now().Add(time.Hour))

	for {
		select {
		case list, ok := <-events:
			require.True(t, ok, "stream closed before the new event arrived")
			if len(list) == 1 {
				assert.Equal(t, "Ronin", list[0].ItemTitle)
				return
			}
		case <-ctx.Done():
			t.Fatal("Timed out waiting for the stream update")
		}
	}
}

func TestEventHandler_Stream_DropsStartedEvents(t *testing.T) {
	env := setupTestEnv(t)
	env.createEvent(t, alice, "Thief", time.Now().Add(2*time.Second))

	ctx, cancel := context.WithTimeout(context.Background(), 6*time.Second)
	defer cancel()
	events := env.openEventStream(t, ctx)

	first := <-events
	require.Len(t, first, 1)

	// nothing is published when the event starts; the stream still refreshes
	for {
		select {
		case list, ok := <-events:
			require.True(t, ok, "stream closed before the event started")
			if len(list) == 0 {
				return
			}
		case <-ctx.Done():
			t.Fatal("Timed out waiting for the started event to leave the list")
		}
	}
}

func TestMeHandler_Get(t *testing.T) {
	env := setupTestEnv(t)

	w, resp := env.do(t, alice, http.MethodGet, "/api/v1/me", nil)
	require.Equal(t, http.StatusOK, w.Code)

	var me response.IdentityResponse
	decodeData(t, resp, &me)
	assert.Equal(t, alice.UserID, me.UserID)
	assert.Equal(t, "Alice", me.DisplayName)
}
