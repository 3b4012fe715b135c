package service

import (
	"context"
	"time"

	"github.com/go-demo/watchroom/internal/model"
	"github.com/go-demo/watchroom/internal/repository"
)

// RoomStore persists rooms and their participants.
// Implemented by repository.RoomRepository and repository.MemoryStore.
type RoomStore interface {
	CreateRoomWithHost(ctx context.Context, room *model.Room, host *model.Participant) error
	CodeInUse(ctx context.Context, code string) (bool, error)
	GetRoom(ctx context.Context, id string) (*model.Room, error)
	GetActiveRoomByCode(ctx context.Context, code string) (*model.Room, error)
	ListPublicRooms(ctx context.Context, limit, offset int) ([]*model.Room, error)
	UpdatePlayback(ctx context.Context, roomID string, isPlaying bool, currentTime float64) (*model.Room, error)
	JoinParticipant(ctx context.Context, p *model.Participant) (*repository.JoinResult, error)
	LeaveParticipant(ctx context.Context, roomID, userID string) (*repository.LeaveResult, error)
	TouchParticipant(ctx context.Context, roomID, userID string) error
	GetParticipant(ctx context.Context, roomID, userID string) (*model.Participant, error)
	ListParticipants(ctx context.Context, roomID string) ([]*model.Participant, error)
	ExpireStaleParticipants(ctx context.Context, cutoff time.Time) ([]repository.ExpiredRoom, error)
}

// MessageStore is the append-only message log.
type MessageStore interface {
	CreateMessage(ctx context.Context, msg *model.Message) error
	ListRecentMessages(ctx context.Context, roomID string, limit int) ([]*model.Message, error)
}

// EventStore persists scheduled watch events and their starts.
type EventStore interface {
	CreateEvent(ctx context.Context, event *model.WatchEvent) error
	GetEvent(ctx context.Context, id string) (*model.WatchEvent, error)
	ListUpcomingEvents(ctx context.Context, after time.Time, limit int) ([]*model.WatchEvent, error)
	RecordEventStart(ctx context.Context, start *model.WatchEventStart) error
	ListEventStartCodes(ctx context.Context, eventID string) ([]string, error)
}

var (
	_ RoomStore    = (*repository.RoomRepository)(nil)
	_ MessageStore = (*repository.MessageRepository)(nil)
	_ EventStore   = (*repository.EventRepository)(nil)
	_ RoomStore    = (*repository.MemoryStore)(nil)
	_ MessageStore = (*repository.MemoryStore)(nil)
	_ EventStore   = (*repository.MemoryStore)(nil)
)
