package response

import (
	"time"

	"github.com/go-demo/watchroom/internal/model"
)

// PlaybackResponse is the advisory playback state of a room
type PlaybackResponse struct {
	Strategy    string  `json:"strategy"`
	IsPlaying   bool    `json:"is_playing"`
	CurrentTime float64 `json:"current_time"`
	LastUpdated string  `json:"last_updated"`
}

// SettingsResponse represents room settings
type SettingsResponse struct {
	AllowChat      bool `json:"allow_chat"`
	AllowReactions bool `json:"allow_reactions"`
	IsPublic       bool `json:"is_public"`
}

// RoomResponse represents a room response
type RoomResponse struct {
	ID                  string            `json:"id"`
	Code                string            `json:"code"`
	HostID              string            `json:"host_id"`
	ItemID              *int64            `json:"item_id,omitempty"`
	ItemTitle           string            `json:"item_title"`
	ItemPoster          string            `json:"item_poster,omitempty"`
	IsActive            bool              `json:"is_active"`
	CurrentParticipants int               `json:"current_participants"`
	MaxParticipants     int               `json:"max_participants"`
	Playback            *PlaybackResponse `json:"playback"`
	Settings            *SettingsResponse `json:"settings"`
	CreatedAt           string            `json:"created_at"`
	UpdatedAt           string            `json:"updated_at"`
}

// NewRoomResponse creates a room response from model
func NewRoomResponse(room *model.Room) *RoomResponse {
	if room == nil {
		return nil
	}

	return &RoomResponse{
		ID:                  room.ID,
		Code:                room.Code,
		HostID:              room.HostID,
		ItemID:              room.GetItemID(),
		ItemTitle:           room.ItemTitle,
		ItemPoster:          room.GetItemPoster(),
		IsActive:            room.IsActive,
		CurrentParticipants: room.DisplayParticipants(),
		MaxParticipants:     room.MaxParticipants,
		Playback: &PlaybackResponse{
			Strategy:    string(room.Strategy),
			IsPlaying:   room.IsPlaying,
			CurrentTime: room.CurrentTime,
			LastUpdated: room.LastUpdated.Format(time.RFC3339),
		},
		Settings: &SettingsResponse{
			AllowChat:      room.AllowChat,
			AllowReactions: room.AllowReactions,
			IsPublic:       room.IsPublic,
		},
		CreatedAt: room.CreatedAt.Format(time.RFC3339),
		UpdatedAt: room.UpdatedAt.Format(time.RFC3339),
	}
}

// NewRoomListResponse converts a page of rooms
func NewRoomListResponse(rooms []*model.Room, limit, offset int) *ListResponse {
	items := make([]*RoomResponse, len(rooms))
	for i, room := range rooms {
		items[i] = NewRoomResponse(room)
	}

	return &ListResponse{
		Items:  items,
		Count:  len(items),
		Limit:  limit,
		Offset: offset,
	}
}

// ParticipantResponse represents a room participant
type ParticipantResponse struct {
	UserID      string `json:"user_id"`
	DisplayName string `json:"display_name"`
	PhotoURL    string `json:"photo_url,omitempty"`
	IsActive    bool   `json:"is_active"`
	JoinedAt    string `json:"joined_at"`
	LastSeenAt  string `json:"last_seen_at"`
}

// NewParticipantResponse creates a participant response from model
func NewParticipantResponse(p *model.Participant) *ParticipantResponse {
	return &ParticipantResponse{
		UserID:      p.UserID,
		DisplayName: p.DisplayName,
		PhotoURL:    p.GetPhotoURL(),
		IsActive:    p.IsActive,
		JoinedAt:    p.JoinedAt.Format(time.RFC3339),
		LastSeenAt:  p.LastSeenAt.Format(time.RFC3339),
	}
}

func NewParticipantListResponse(participants []*model.Participant) []*ParticipantResponse {
	items := make([]*ParticipantResponse, len(participants))
	for i, p := range participants {
		items[i] = NewParticipantResponse(p)
	}
	return items
}

// JoinResponse reports the participant record after a join. Joined is
// false when the user was already active and nothing changed.
type JoinResponse struct {
	RoomID      string               `json:"room_id"`
	Participant *ParticipantResponse `json:"participant"`
	Joined      bool                 `json:"joined"`
}

func NewJoinResponse(roomID string, p *model.Participant, transitioned bool) *JoinResponse {
	return &JoinResponse{
		RoomID:      roomID,
		Participant: NewParticipantResponse(p),
		Joined:      transitioned,
	}
}

// IdentityResponse is the signed-in user
type IdentityResponse struct {
	UserID      string `json:"user_id"`
	DisplayName string `json:"display_name"`
	PhotoURL    string `json:"photo_url,omitempty"`
}

func NewIdentityResponse(identity model.Identity) *IdentityResponse {
	return &IdentityResponse{
		UserID:      identity.UserID,
		DisplayName: identity.Name(),
		PhotoURL:    identity.PhotoURL,
	}
}
