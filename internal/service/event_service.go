package service

import (
	"context"
	"errors"
	"time"

	"github.com/go-demo/watchroom/internal/model"
	"github.com/go-demo/watchroom/internal/pkg/catalog"
	apperrors "github.com/go-demo/watchroom/internal/pkg/errors"
	"github.com/go-demo/watchroom/internal/pkg/utils"
	"github.com/go-demo/watchroom/internal/realtime"
	"github.com/go-demo/watchroom/internal/repository"
	"go.uber.org/zap"
)

type EventService struct {
	events  EventStore
	rooms   *RoomService
	feed    realtime.Feed
	catalog catalog.Lookup
	now     func() time.Time
	logger  *zap.Logger
}

func NewEventService(events EventStore, rooms *RoomService, feed realtime.Feed, logger *zap.Logger) *EventService {
	return &EventService{
		events: events,
		rooms:  rooms,
		feed:   feed,
		now:    time.Now,
		logger: logger,
	}
}

// WithCatalog enables best-effort title and poster lookups
func (s *EventService) WithCatalog(lookup catalog.Lookup) *EventService {
	s.catalog = lookup
	return s
}

// CreateEventInput represents watch event scheduling input
type CreateEventInput struct {
	Host        model.Identity
	ItemID      *int64
	ItemTitle   string
	ItemPoster  string
	ScheduledAt time.Time
}

// Create schedules a watch event in the future
func (s *EventService) Create(ctx context.Context, input *CreateEventInput) (*model.WatchEvent, error) {
	if input.Host.IsZero() {
		return nil, apperrors.ErrUnauthorized
	}
	if !input.ScheduledAt.After(s.now()) {
		return nil, apperrors.ErrEventInPast
	}

	v := utils.NewValidator()
	if !v.ValidateOptionalTitle("item_title", input.ItemTitle) {
		return nil, apperrors.ErrValidation.WithDetails(v.Errors())
	}

	title, poster := enrichItem(ctx, s.catalog, s.logger, input.ItemID, input.ItemTitle, input.ItemPoster)

	event := &model.WatchEvent{
		ItemID:      model.NullInt64(input.ItemID),
		ItemTitle:   title,
		ItemPoster:  model.NullString(poster),
		ScheduledAt: input.ScheduledAt.UTC(),
		HostID:      input.Host.UserID,
		HostName:    input.Host.Name(),
	}

	if err := s.events.CreateEvent(ctx, event); err != nil {
		s.logger.Error("Failed to create watch event", zap.Error(err))
		return nil, classifyStoreError(ctx, err)
	}

	publishTopics(context.WithoutCancel(ctx), s.feed, s.logger, realtime.EventsTopic())
	s.logger.Info("Watch event scheduled",
		zap.String("event_id", event.ID),
		zap.Time("scheduled_at", event.ScheduledAt),
	)
	return event, nil
}

// ListUpcoming lists events scheduled after now, soonest first
func (s *EventService) ListUpcoming(ctx context.Context, limit int) ([]*model.WatchEvent, error) {
	limit, _ = clampPage(limit, 0)

	events, err := s.events.ListUpcomingEvents(ctx, s.now(), limit)
	if err != nil {
		s.logger.Error("Failed to list watch events", zap.Error(err))
		return nil, classifyStoreError(ctx, err)
	}
	return events, nil
}

// Start materializes a room from the event. Each start gets a fresh code
// that no earlier start of the same event used.
func (s *EventService) Start(ctx context.Context, eventID string, identity model.Identity) (*model.Room, error) {
	event, err := s.events.GetEvent(ctx, eventID)
	if err != nil {
		if errors.Is(err, repository.ErrEventNotFound) {
			return nil, apperrors.ErrEventNotFound
		}
		return nil, classifyStoreError(ctx, err)
	}

	priorCodes, err := s.events.ListEventStartCodes(ctx, eventID)
	if err != nil {
		return nil, classifyStoreError(ctx, err)
	}

	room, err := s.rooms.CreateRoom(ctx, &CreateRoomInput{
		Host:         identity,
		ItemID:       event.GetItemID(),
		ItemTitle:    event.ItemTitle,
		ItemPoster:   event.GetItemPoster(),
		ExcludeCodes: priorCodes,
	})
	if err != nil {
		return nil, err
	}

	start := &model.WatchEventStart{
		EventID:   event.ID,
		RoomID:    room.ID,
		RoomCode:  room.Code,
		StartedBy: identity.UserID,
	}
	if err := s.events.RecordEventStart(context.WithoutCancel(ctx), start); err != nil {
		// the room exists and is usable; only the code history is incomplete
		s.logger.Error("Failed to record event start",
			zap.String("event_id", event.ID),
			zap.String("room_id", room.ID),
			zap.Error(err),
		)
	}

	s.logger.Info("Watch event started",
		zap.String("event_id", event.ID),
		zap.String("room_id", room.ID),
		zap.String("code", room.Code),
	)
	return room, nil
}

// SubscribeUpcoming streams the upcoming event list until ctx is done
func (s *EventService) SubscribeUpcoming(ctx context.Context, limit int) (<-chan []*model.WatchEvent, error) {
	limit, _ = clampPage(limit, 0)
	return watch(ctx, s.feed, s.logger, realtime.EventsTopic(), func(ctx context.Context) ([]*model.WatchEvent, error) {
		events, err := s.events.ListUpcomingEvents(ctx, s.now(), limit)
		if err != nil {
			return nil, classifyStoreError(ctx, err)
		}
		return events, nil
	})
}
