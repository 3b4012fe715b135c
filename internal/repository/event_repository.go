package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/go-demo/watchroom/internal/model"
	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
)

var ErrEventNotFound = errors.New("watch event not found")

type EventRepository struct {
	db *sqlx.DB
}

func NewEventRepository(db *sqlx.DB) *EventRepository {
	return &EventRepository{db: db}
}

// CreateEvent inserts a scheduled watch event
func (r *EventRepository) CreateEvent(ctx context.Context, event *model.WatchEvent) error {
	query := `
		INSERT INTO watch_events (item_id, item_title, item_poster, scheduled_at, host_id, host_name)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id, created_at`

	if err := r.db.QueryRowxContext(ctx, query,
		event.ItemID,
		event.ItemTitle,
		event.ItemPoster,
		event.ScheduledAt,
		event.HostID,
		event.HostName,
	).Scan(&event.ID, &event.CreatedAt); err != nil {
		return fmt.Errorf("failed to create watch event: %w", err)
	}
	return nil
}

// GetEvent retrieves an event by ID
func (r *EventRepository) GetEvent(ctx context.Context, id string) (*model.WatchEvent, error) {
	if _, err := uuid.Parse(id); err != nil {
		return nil, ErrEventNotFound
	}

	var event model.WatchEvent
	if err := r.db.GetContext(ctx, &event, `SELECT * FROM watch_events WHERE id = $1`, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrEventNotFound
		}
		return nil, fmt.Errorf("failed to get watch event: %w", err)
	}
	return &event, nil
}

// ListUpcomingEvents lists events scheduled after the given time, soonest first
func (r *EventRepository) ListUpcomingEvents(ctx context.Context, after time.Time, limit int) ([]*model.WatchEvent, error) {
	query := `
		SELECT * FROM watch_events
		WHERE scheduled_at > $1
		ORDER BY scheduled_at ASC, created_at ASC
		LIMIT $2`

	events := []*model.WatchEvent{}
	if err := r.db.SelectContext(ctx, &events, query, after, limit); err != nil {
		return nil, fmt.Errorf("failed to list upcoming events: %w", err)
	}
	return events, nil
}

// RecordEventStart stores the room materialized from an event
func (r *EventRepository) RecordEventStart(ctx context.Context, start *model.WatchEventStart) error {
	query := `
		INSERT INTO watch_event_starts (event_id, room_id, room_code, started_by)
		VALUES ($1, $2, $3, $4)
		RETURNING started_at`

	if err := r.db.QueryRowxContext(ctx, query,
		start.EventID,
		start.RoomID,
		start.RoomCode,
		start.StartedBy,
	).Scan(&start.StartedAt); err != nil {
		return fmt.Errorf("failed to record event start: %w", err)
	}
	return nil
}

// ListEventStartCodes returns every room code previously issued for the event
func (r *EventRepository) ListEventStartCodes(ctx context.Context, eventID string) ([]string, error) {
	codes := []string{}
	if _, err := uuid.Parse(eventID); err != nil {
		return codes, nil
	}

	query := `SELECT room_code FROM watch_event_starts WHERE event_id = $1 ORDER BY started_at`
	if err := r.db.SelectContext(ctx, &codes, query, eventID); err != nil {
		return nil, fmt.Errorf("failed to list event start codes: %w", err)
	}
	return codes, nil
}
