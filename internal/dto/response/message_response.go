package response

import (
	"time"

	"github.com/go-demo/watchroom/internal/model"
)

// MessageResponse represents a chat message or reaction
type MessageResponse struct {
	ID          string `json:"id"`
	RoomID      string `json:"room_id"`
	UserID      string `json:"user_id"`
	DisplayName string `json:"display_name"`
	PhotoURL    string `json:"photo_url,omitempty"`
	Body        string `json:"body"`
	Type        string `json:"type"`
	CreatedAt   string `json:"created_at"`
}

// NewMessageResponse creates a message response from model
func NewMessageResponse(m *model.Message) *MessageResponse {
	return &MessageResponse{
		ID:          m.ID,
		RoomID:      m.RoomID,
		UserID:      m.UserID,
		DisplayName: m.DisplayName,
		PhotoURL:    m.GetPhotoURL(),
		Body:        m.Body,
		Type:        string(m.Type),
		CreatedAt:   m.CreatedAt.Format(time.RFC3339Nano),
	}
}

// MessageListResponse is a message window in ascending order
type MessageListResponse struct {
	Messages []*MessageResponse `json:"messages"`
	Count    int                `json:"count"`
}

// NewMessageListResponse creates a message list response
func NewMessageListResponse(messages []*model.Message) *MessageListResponse {
	items := make([]*MessageResponse, len(messages))
	for i, msg := range messages {
		items[i] = NewMessageResponse(msg)
	}

	return &MessageListResponse{
		Messages: items,
		Count:    len(items),
	}
}
