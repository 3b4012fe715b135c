package model

import (
	"database/sql"
	"time"
)

// DefaultRoomTitle is used when a room or event has no catalog title.
const DefaultRoomTitle = "Movie night"

// DefaultMaxParticipants caps a room unless configured otherwise.
const DefaultMaxParticipants = 8

// SyncStrategy tags how playback state is meant to be consumed.
type SyncStrategy string

const (
	// SyncStrategyAdvisory means the playback fields are informational only.
	// Nothing reads them to drive a player.
	SyncStrategyAdvisory SyncStrategy = "advisory"
)

// PlaybackState is the shared playback stub carried on a room.
type PlaybackState struct {
	Strategy    SyncStrategy `db:"playback_strategy" json:"strategy"`
	IsPlaying   bool         `db:"playback_is_playing" json:"is_playing"`
	CurrentTime float64      `db:"playback_current_time" json:"current_time"`
	LastUpdated time.Time    `db:"playback_updated_at" json:"last_updated"`
}

type RoomSettings struct {
	AllowChat      bool `db:"allow_chat" json:"allow_chat"`
	AllowReactions bool `db:"allow_reactions" json:"allow_reactions"`
	IsPublic       bool `db:"is_public" json:"is_public"`
}

// DefaultRoomSettings returns the settings a new room starts with
func DefaultRoomSettings() RoomSettings {
	return RoomSettings{
		AllowChat:      true,
		AllowReactions: true,
		IsPublic:       false,
	}
}

type Room struct {
	ID                  string         `db:"id" json:"id"`
	Code                string         `db:"code" json:"code"`
	HostID              string         `db:"host_id" json:"host_id"`
	ItemID              sql.NullInt64  `db:"item_id" json:"item_id,omitempty"`
	ItemTitle           string         `db:"item_title" json:"item_title"`
	ItemPoster          sql.NullString `db:"item_poster" json:"item_poster,omitempty"`
	IsActive            bool           `db:"is_active" json:"is_active"`
	CurrentParticipants int            `db:"current_participants" json:"current_participants"`
	MaxParticipants     int            `db:"max_participants" json:"max_participants"`
	PlaybackState
	RoomSettings
	CreatedAt time.Time `db:"created_at" json:"created_at"`
	UpdatedAt time.Time `db:"updated_at" json:"updated_at"`
}

// GetItemID returns the catalog item id, or nil
func (r *Room) GetItemID() *int64 {
	if r.ItemID.Valid {
		id := r.ItemID.Int64
		return &id
	}
	return nil
}

// GetItemPoster returns poster path or empty string
func (r *Room) GetItemPoster() string {
	if r.ItemPoster.Valid {
		return r.ItemPoster.String
	}
	return ""
}

// DisplayParticipants returns the participant counter clamped at zero.
func (r *Room) DisplayParticipants() int {
	if r.CurrentParticipants < 0 {
		return 0
	}
	return r.CurrentParticipants
}

// IsFull reports whether another participant would exceed the cap.
func (r *Room) IsFull() bool {
	return r.MaxParticipants > 0 && r.CurrentParticipants >= r.MaxParticipants
}

// Participant is one user's membership in a room, keyed by user id.
type Participant struct {
	RoomID      string         `db:"room_id" json:"room_id"`
	UserID      string         `db:"user_id" json:"user_id"`
	DisplayName string         `db:"display_name" json:"display_name"`
	PhotoURL    sql.NullString `db:"photo_url" json:"photo_url,omitempty"`
	IsActive    bool           `db:"is_active" json:"is_active"`
	JoinedAt    time.Time      `db:"joined_at" json:"joined_at"`
	LastSeenAt  time.Time      `db:"last_seen_at" json:"last_seen_at"`
}

// GetPhotoURL returns photo_url or empty string
func (p *Participant) GetPhotoURL() string {
	if p.PhotoURL.Valid {
		return p.PhotoURL.String
	}
	return ""
}

// NullString wraps s as a sql.NullString that is invalid when empty.
func NullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

// NullInt64 wraps an optional id.
func NullInt64(v *int64) sql.NullInt64 {
	if v == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: *v, Valid: true}
}
