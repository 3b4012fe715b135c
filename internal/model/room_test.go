package model

import (
	"testing"
	"time"
)

func TestRoom_DisplayParticipants(t *testing.T) {
	tests := []struct {
		name     string
		current  int
		expected int
	}{
		{"positive", 3, 3},
		{"zero", 0, 0},
		{"negative is clamped", -2, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			room := &Room{CurrentParticipants: tt.current}
			if got := room.DisplayParticipants(); got != tt.expected {
				t.Errorf("Expected %d, got %d", tt.expected, got)
			}
		})
	}
}

func TestRoom_IsFull(t *testing.T) {
	room := &Room{CurrentParticipants: 8, MaxParticipants: 8}
	if !room.IsFull() {
		t.Error("Expected room at capacity to be full")
	}

	room.CurrentParticipants = 7
	if room.IsFull() {
		t.Error("Expected room below capacity not to be full")
	}
}

func TestDefaultRoomSettings(t *testing.T) {
	s := DefaultRoomSettings()
	if !s.AllowChat || !s.AllowReactions {
		t.Error("Expected chat and reactions to be allowed by default")
	}
	if s.IsPublic {
		t.Error("Expected rooms to be private by default")
	}
}

func TestRoom_OptionalItem(t *testing.T) {
	room := &Room{}
	if room.GetItemID() != nil {
		t.Error("Expected nil item id")
	}
	if room.GetItemPoster() != "" {
		t.Error("Expected empty poster")
	}

	id := int64(603)
	room.ItemID = NullInt64(&id)
	room.ItemPoster = NullString("poster.jpg")
	if got := room.GetItemID(); got == nil || *got != 603 {
		t.Errorf("Expected item id 603, got %v", got)
	}
	if room.GetItemPoster() != "poster.jpg" {
		t.Errorf("Expected poster.jpg, got %q", room.GetItemPoster())
	}
}

func TestIdentity_Name(t *testing.T) {
	if got := (Identity{UserID: "u1", DisplayName: " Alice "}).Name(); got != "Alice" {
		t.Errorf("Expected Alice, got %q", got)
	}
	if got := (Identity{UserID: "u1"}).Name(); got != "Guest" {
		t.Errorf("Expected Guest, got %q", got)
	}
}

func TestWatchEvent_IsUpcoming(t *testing.T) {
	now := time.Now()
	event := &WatchEvent{ScheduledAt: now.Add(time.Hour)}
	if !event.IsUpcoming(now) {
		t.Error("Expected future event to be upcoming")
	}
	event.ScheduledAt = now.Add(-time.Minute)
	if event.IsUpcoming(now) {
		t.Error("Expected past event not to be upcoming")
	}
}
