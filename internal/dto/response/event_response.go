package response

import (
	"time"

	"github.com/go-demo/watchroom/internal/model"
)

// EventResponse represents a scheduled watch event
type EventResponse struct {
	ID          string `json:"id"`
	ItemID      *int64 `json:"item_id,omitempty"`
	ItemTitle   string `json:"item_title"`
	ItemPoster  string `json:"item_poster,omitempty"`
	ScheduledAt string `json:"scheduled_at"`
	HostID      string `json:"host_id"`
	HostName    string `json:"host_name"`
	CreatedAt   string `json:"created_at"`
}

func NewEventResponse(e *model.WatchEvent) *EventResponse {
	return &EventResponse{
		ID:          e.ID,
		ItemID:      e.GetItemID(),
		ItemTitle:   e.ItemTitle,
		ItemPoster:  e.GetItemPoster(),
		ScheduledAt: e.ScheduledAt.Format(time.RFC3339),
		HostID:      e.HostID,
		HostName:    e.HostName,
		CreatedAt:   e.CreatedAt.Format(time.RFC3339),
	}
}

func NewEventListResponse(events []*model.WatchEvent) []*EventResponse {
	items := make([]*EventResponse, len(events))
	for i, e := range events {
		items[i] = NewEventResponse(e)
	}
	return items
}
