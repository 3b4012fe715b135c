package model

import (
	"database/sql"
	"time"
)

// WatchEvent is a scheduled template for a future room.
type WatchEvent struct {
	ID          string         `db:"id" json:"id"`
	ItemID      sql.NullInt64  `db:"item_id" json:"item_id,omitempty"`
	ItemTitle   string         `db:"item_title" json:"item_title"`
	ItemPoster  sql.NullString `db:"item_poster" json:"item_poster,omitempty"`
	ScheduledAt time.Time      `db:"scheduled_at" json:"scheduled_at"`
	HostID      string         `db:"host_id" json:"host_id"`
	HostName    string         `db:"host_name" json:"host_name"`
	CreatedAt   time.Time      `db:"created_at" json:"created_at"`
}

// GetItemID returns the catalog item id, or nil
func (e *WatchEvent) GetItemID() *int64 {
	if e.ItemID.Valid {
		id := e.ItemID.Int64
		return &id
	}
	return nil
}

// GetItemPoster returns poster path or empty string
func (e *WatchEvent) GetItemPoster() string {
	if e.ItemPoster.Valid {
		return e.ItemPoster.String
	}
	return ""
}

// IsUpcoming reports whether the event is scheduled after now
func (e *WatchEvent) IsUpcoming(now time.Time) bool {
	return e.ScheduledAt.After(now)
}

// WatchEventStart records a room materialized from an event.
type WatchEventStart struct {
	EventID   string    `db:"event_id" json:"event_id"`
	RoomID    string    `db:"room_id" json:"room_id"`
	RoomCode  string    `db:"room_code" json:"room_code"`
	StartedBy string    `db:"started_by" json:"started_by"`
	StartedAt time.Time `db:"started_at" json:"started_at"`
}
