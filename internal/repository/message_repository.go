package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/go-demo/watchroom/internal/model"
	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
)

type MessageRepository struct {
	db *sqlx.DB
}

func NewMessageRepository(db *sqlx.DB) *MessageRepository {
	return &MessageRepository{db: db}
}

// CreateMessage appends a message; id, seq and created_at are assigned by the database
func (r *MessageRepository) CreateMessage(ctx context.Context, msg *model.Message) error {
	if _, err := uuid.Parse(msg.RoomID); err != nil {
		return ErrRoomNotFound
	}

	query := `
		INSERT INTO room_messages (room_id, user_id, display_name, photo_url, body, type)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id, seq, created_at`

	err := r.db.QueryRowxContext(ctx, query,
		msg.RoomID,
		msg.UserID,
		msg.DisplayName,
		msg.PhotoURL,
		msg.Body,
		msg.Type,
	).Scan(&msg.ID, &msg.Seq, &msg.CreatedAt)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == "23503" {
			return ErrRoomNotFound
		}
		return fmt.Errorf("failed to create message: %w", err)
	}
	return nil
}

// ListRecentMessages returns the newest limit messages in ascending order
func (r *MessageRepository) ListRecentMessages(ctx context.Context, roomID string, limit int) ([]*model.Message, error) {
	messages := []*model.Message{}
	if _, err := uuid.Parse(roomID); err != nil {
		return messages, nil
	}

	query := `
		SELECT * FROM room_messages
		WHERE room_id = $1
		ORDER BY created_at DESC, seq DESC
		LIMIT $2`

	if err := r.db.SelectContext(ctx, &messages, query, roomID, limit); err != nil {
		return nil, fmt.Errorf("failed to list messages: %w", err)
	}

	reverseMessages(messages)
	return messages, nil
}

func reverseMessages(messages []*model.Message) {
	for i, j := 0, len(messages)-1; i < j; i, j = i+1, j-1 {
		messages[i], messages[j] = messages[j], messages[i]
	}
}
