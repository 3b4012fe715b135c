package request

// CreateRoomRequest represents a room creation request
type CreateRoomRequest struct {
	ItemID          *int64           `json:"item_id,omitempty" binding:"omitempty,min=1"`
	ItemTitle       string           `json:"item_title,omitempty" binding:"omitempty,max=255"`
	ItemPoster      string           `json:"item_poster,omitempty" binding:"omitempty,max=2048"`
	MaxParticipants int              `json:"max_participants,omitempty" binding:"omitempty,min=1,max=100"`
	Settings        *SettingsRequest `json:"settings,omitempty"`
}

// SettingsRequest overrides the defaults of a new room; omitted fields keep them
type SettingsRequest struct {
	AllowChat      *bool `json:"allow_chat,omitempty"`
	AllowReactions *bool `json:"allow_reactions,omitempty"`
	IsPublic       *bool `json:"is_public,omitempty"`
}

// UpdatePlaybackRequest writes advisory playback state
type UpdatePlaybackRequest struct {
	IsPlaying   bool     `json:"is_playing"`
	CurrentTime *float64 `json:"current_time" binding:"required,min=0"`
}

// PaginationRequest represents offset paging parameters
type PaginationRequest struct {
	Limit  int `form:"limit,default=20" binding:"min=1,max=100"`
	Offset int `form:"offset,default=0" binding:"min=0"`
}

// CreateEventRequest schedules a watch event
type CreateEventRequest struct {
	ItemID      *int64 `json:"item_id,omitempty" binding:"omitempty,min=1"`
	ItemTitle   string `json:"item_title,omitempty" binding:"omitempty,max=255"`
	ItemPoster  string `json:"item_poster,omitempty" binding:"omitempty,max=2048"`
	ScheduledAt string `json:"scheduled_at" binding:"required"`
}
