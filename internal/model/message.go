package model

import (
	"database/sql"
	"time"
)

type MessageType string

const (
	MessageTypeText     MessageType = "text"
	MessageTypeReaction MessageType = "reaction"
)

// IsValid checks the type discriminator
func (t MessageType) IsValid() bool {
	return t == MessageTypeText || t == MessageTypeReaction
}

// Message is an immutable chat line or reaction. Seq breaks ties between
// messages stamped with the same server time.
type Message struct {
	ID          string         `db:"id" json:"id"`
	Seq         int64          `db:"seq" json:"seq"`
	RoomID      string         `db:"room_id" json:"room_id"`
	UserID      string         `db:"user_id" json:"user_id"`
	DisplayName string         `db:"display_name" json:"display_name"`
	PhotoURL    sql.NullString `db:"photo_url" json:"photo_url,omitempty"`
	Body        string         `db:"body" json:"body"`
	Type        MessageType    `db:"type" json:"type"`
	CreatedAt   time.Time      `db:"created_at" json:"created_at"`
}

// GetPhotoURL returns photo_url or empty string
func (m *Message) GetPhotoURL() string {
	if m.PhotoURL.Valid {
		return m.PhotoURL.String
	}
	return ""
}

// IsReaction reports whether the message is an emoji reaction
func (m *Message) IsReaction() bool {
	return m.Type == MessageTypeReaction
}
