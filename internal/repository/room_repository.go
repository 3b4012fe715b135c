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
	"github.com/lib/pq"
)

var (
	ErrRoomNotFound        = errors.New("room not found")
	ErrRoomInactive        = errors.New("room is not active")
	ErrRoomFull            = errors.New("room is full")
	ErrRoomCodeTaken       = errors.New("room code already in use")
	ErrParticipantNotFound = errors.New("participant not found")
	ErrParticipantInactive = errors.New("participant is not active")
)

const activeCodeIndex = "rooms_active_code_key"

// JoinResult reports whether a join flipped the participant to active.
type JoinResult struct {
	Participant  *model.Participant
	Transitioned bool
}

// LeaveResult reports whether a leave flipped the participant to inactive.
type LeaveResult struct {
	Participant  *model.Participant
	Transitioned bool
}

type RoomRepository struct {
	db *sqlx.DB
}

func NewRoomRepository(db *sqlx.DB) *RoomRepository {
	return &RoomRepository{db: db}
}

// CreateRoomWithHost writes the room and its host participant in one transaction
func (r *RoomRepository) CreateRoomWithHost(ctx context.Context, room *model.Room, host *model.Participant) error {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	query := `
		INSERT INTO rooms (code, host_id, item_id, item_title, item_poster, is_active,
			current_participants, max_participants, playback_strategy, playback_is_playing,
			playback_current_time, allow_chat, allow_reactions, is_public)
		VALUES ($1, $2, $3, $4, $5, TRUE, 1, $6, $7, $8, $9, $10, $11, $12)
		RETURNING *`

	err = tx.QueryRowxContext(ctx, query,
		room.Code,
		room.HostID,
		room.ItemID,
		room.ItemTitle,
		room.ItemPoster,
		room.MaxParticipants,
		room.Strategy,
		room.IsPlaying,
		room.CurrentTime,
		room.AllowChat,
		room.AllowReactions,
		room.IsPublic,
	).StructScan(room)
	if err != nil {
		if isUniqueViolation(err, activeCodeIndex) {
			return ErrRoomCodeTaken
		}
		return fmt.Errorf("failed to create room: %w", err)
	}

	host.RoomID = room.ID
	participantQuery := `
		INSERT INTO room_participants (room_id, user_id, display_name, photo_url, is_active, joined_at, last_seen_at)
		VALUES ($1, $2, $3, $4, TRUE, $5, $5)
		RETURNING *`

	if err := tx.QueryRowxContext(ctx, participantQuery,
		host.RoomID,
		host.UserID,
		host.DisplayName,
		host.PhotoURL,
		room.CreatedAt,
	).StructScan(host); err != nil {
		return fmt.Errorf("failed to add host participant: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit room creation: %w", err)
	}
	return nil
}

// CodeInUse reports whether an active room already holds code
func (r *RoomRepository) CodeInUse(ctx context.Context, code string) (bool, error) {
	var exists bool
	query := `SELECT EXISTS(SELECT 1 FROM rooms WHERE code = $1 AND is_active)`

	if err := r.db.GetContext(ctx, &exists, query, code); err != nil {
		return false, fmt.Errorf("failed to check room code: %w", err)
	}
	return exists, nil
}

// GetRoom retrieves a room by ID
func (r *RoomRepository) GetRoom(ctx context.Context, id string) (*model.Room, error) {
	if _, err := uuid.Parse(id); err != nil {
		return nil, ErrRoomNotFound
	}

	var room model.Room
	if err := r.db.GetContext(ctx, &room, `SELECT * FROM rooms WHERE id = $1`, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrRoomNotFound
		}
		return nil, fmt.Errorf("failed to get room by id: %w", err)
	}
	return &room, nil
}

// GetActiveRoomByCode looks up the active room holding code
func (r *RoomRepository) GetActiveRoomByCode(ctx context.Context, code string) (*model.Room, error) {
	var room model.Room
	query := `SELECT * FROM rooms WHERE code = $1 AND is_active LIMIT 1`

	if err := r.db.GetContext(ctx, &room, query, code); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrRoomNotFound
		}
		return nil, fmt.Errorf("failed to get room by code: %w", err)
	}
	return &room, nil
}

// ListPublicRooms lists active public rooms, newest first
func (r *RoomRepository) ListPublicRooms(ctx context.Context, limit, offset int) ([]*model.Room, error) {
	query := `
		SELECT * FROM rooms
		WHERE is_active AND is_public
		ORDER BY created_at DESC
		LIMIT $1 OFFSET $2`

	rooms := []*model.Room{}
	if err := r.db.SelectContext(ctx, &rooms, query, limit, offset); err != nil {
		return nil, fmt.Errorf("failed to list public rooms: %w", err)
	}
	return rooms, nil
}

// UpdatePlayback writes the advisory playback fields
func (r *RoomRepository) UpdatePlayback(ctx context.Context, roomID string, isPlaying bool, currentTime float64) (*model.Room, error) {
	if _, err := uuid.Parse(roomID); err != nil {
		return nil, ErrRoomNotFound
	}

	query := `
		UPDATE rooms
		SET playback_is_playing = $2, playback_current_time = $3,
			playback_updated_at = NOW(), updated_at = NOW()
		WHERE id = $1
		RETURNING *`

	var room model.Room
	if err := r.db.QueryRowxContext(ctx, query, roomID, isPlaying, currentTime).StructScan(&room); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrRoomNotFound
		}
		return nil, fmt.Errorf("failed to update playback: %w", err)
	}
	return &room, nil
}

// JoinParticipant upserts the participant and bumps the counter only when
// the participant was absent or inactive.
func (r *RoomRepository) JoinParticipant(ctx context.Context, p *model.Participant) (*JoinResult, error) {
	if _, err := uuid.Parse(p.RoomID); err != nil {
		return nil, ErrRoomNotFound
	}

	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	var room struct {
		IsActive            bool `db:"is_active"`
		CurrentParticipants int  `db:"current_participants"`
		MaxParticipants     int  `db:"max_participants"`
	}
	roomQuery := `SELECT is_active, current_participants, max_participants FROM rooms WHERE id = $1 FOR UPDATE`
	if err := tx.GetContext(ctx, &room, roomQuery, p.RoomID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrRoomNotFound
		}
		return nil, fmt.Errorf("failed to lock room: %w", err)
	}
	if !room.IsActive {
		return nil, ErrRoomInactive
	}

	var wasActive bool
	err = tx.GetContext(ctx, &wasActive,
		`SELECT is_active FROM room_participants WHERE room_id = $1 AND user_id = $2 FOR UPDATE`,
		p.RoomID, p.UserID)
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("failed to lock participant: %w", err)
	}

	transitioned := !wasActive
	if transitioned && room.MaxParticipants > 0 && room.CurrentParticipants >= room.MaxParticipants {
		return nil, ErrRoomFull
	}

	upsert := `
		INSERT INTO room_participants (room_id, user_id, display_name, photo_url, is_active, joined_at, last_seen_at)
		VALUES ($1, $2, $3, $4, TRUE, NOW(), NOW())
		ON CONFLICT (room_id, user_id) DO UPDATE
		SET display_name = EXCLUDED.display_name,
			photo_url = EXCLUDED.photo_url,
			is_active = TRUE,
			joined_at = CASE WHEN room_participants.is_active THEN room_participants.joined_at ELSE EXCLUDED.joined_at END,
			last_seen_at = EXCLUDED.last_seen_at
		RETURNING *`

	var joined model.Participant
	if err := tx.QueryRowxContext(ctx, upsert, p.RoomID, p.UserID, p.DisplayName, p.PhotoURL).StructScan(&joined); err != nil {
		return nil, fmt.Errorf("failed to upsert participant: %w", err)
	}

	if transitioned {
		if _, err := tx.ExecContext(ctx,
			`UPDATE rooms SET current_participants = current_participants + 1, updated_at = NOW() WHERE id = $1`,
			p.RoomID); err != nil {
			return nil, fmt.Errorf("failed to increment participants: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit join: %w", err)
	}
	return &JoinResult{Participant: &joined, Transitioned: transitioned}, nil
}

// LeaveParticipant marks the participant inactive and decrements the
// counter, never below zero, only on an active to inactive transition.
func (r *RoomRepository) LeaveParticipant(ctx context.Context, roomID, userID string) (*LeaveResult, error) {
	if _, err := uuid.Parse(roomID); err != nil {
		return nil, ErrParticipantNotFound
	}

	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	// room row first, the same order as JoinParticipant and the sweep
	if err := lockRooms(ctx, tx, []string{roomID}); err != nil {
		return nil, err
	}

	var wasActive bool
	err = tx.GetContext(ctx, &wasActive,
		`SELECT is_active FROM room_participants WHERE room_id = $1 AND user_id = $2 FOR UPDATE`,
		roomID, userID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrParticipantNotFound
		}
		return nil, fmt.Errorf("failed to lock participant: %w", err)
	}

	var left model.Participant
	query := `
		UPDATE room_participants
		SET is_active = FALSE, last_seen_at = NOW()
		WHERE room_id = $1 AND user_id = $2
		RETURNING *`
	if err := tx.QueryRowxContext(ctx, query, roomID, userID).StructScan(&left); err != nil {
		return nil, fmt.Errorf("failed to mark participant inactive: %w", err)
	}

	if wasActive {
		if _, err := tx.ExecContext(ctx,
			`UPDATE rooms SET current_participants = GREATEST(current_participants - 1, 0), updated_at = NOW() WHERE id = $1`,
			roomID); err != nil {
			return nil, fmt.Errorf("failed to decrement participants: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit leave: %w", err)
	}
	return &LeaveResult{Participant: &left, Transitioned: wasActive}, nil
}

// TouchParticipant refreshes last_seen_at for an active participant
func (r *RoomRepository) TouchParticipant(ctx context.Context, roomID, userID string) error {
	if _, err := uuid.Parse(roomID); err != nil {
		return ErrParticipantNotFound
	}

	var isActive bool
	query := `
		UPDATE room_participants
		SET last_seen_at = CASE WHEN is_active THEN NOW() ELSE last_seen_at END
		WHERE room_id = $1 AND user_id = $2
		RETURNING is_active`

	if err := r.db.GetContext(ctx, &isActive, query, roomID, userID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return ErrParticipantNotFound
		}
		return fmt.Errorf("failed to touch participant: %w", err)
	}
	if !isActive {
		return ErrParticipantInactive
	}
	return nil
}

// GetParticipant returns the participant record, active or not
func (r *RoomRepository) GetParticipant(ctx context.Context, roomID, userID string) (*model.Participant, error) {
	if _, err := uuid.Parse(roomID); err != nil {
		return nil, ErrParticipantNotFound
	}

	var p model.Participant
	query := `SELECT * FROM room_participants WHERE room_id = $1 AND user_id = $2`
	if err := r.db.GetContext(ctx, &p, query, roomID, userID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrParticipantNotFound
		}
		return nil, fmt.Errorf("failed to get participant: %w", err)
	}
	return &p, nil
}

// ListParticipants returns every participant record of the room, oldest join first
func (r *RoomRepository) ListParticipants(ctx context.Context, roomID string) ([]*model.Participant, error) {
	participants := []*model.Participant{}
	if _, err := uuid.Parse(roomID); err != nil {
		return participants, nil
	}

	query := `SELECT * FROM room_participants WHERE room_id = $1 ORDER BY joined_at, user_id`
	if err := r.db.SelectContext(ctx, &participants, query, roomID); err != nil {
		return nil, fmt.Errorf("failed to list participants: %w", err)
	}
	return participants, nil
}

// ExpiredRoom is one room touched by a presence sweep.
type ExpiredRoom struct {
	RoomID  string `db:"id"`
	Expired int    `db:"expired"`
}

// ExpireStaleParticipants marks participants last seen before cutoff as
// inactive and lowers each affected room's counter. Affected rooms are
// locked in id order before any participant row is touched.
func (r *RoomRepository) ExpireStaleParticipants(ctx context.Context, cutoff time.Time) ([]ExpiredRoom, error) {
	expired := []ExpiredRoom{}

	var roomIDs []string
	candidates := `
		SELECT DISTINCT room_id::text FROM room_participants
		WHERE is_active AND last_seen_at < $1
		ORDER BY 1`
	if err := r.db.SelectContext(ctx, &roomIDs, candidates, cutoff); err != nil {
		return nil, fmt.Errorf("failed to find stale participants: %w", err)
	}
	if len(roomIDs) == 0 {
		return expired, nil
	}

	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if err := lockRooms(ctx, tx, roomIDs); err != nil {
		return nil, err
	}

	query := `
		WITH expired AS (
			UPDATE room_participants
			SET is_active = FALSE
			WHERE is_active AND last_seen_at < $1 AND room_id = ANY($2::uuid[])
			RETURNING room_id
		), counts AS (
			SELECT room_id, COUNT(*) AS n FROM expired GROUP BY room_id
		)
		UPDATE rooms
		SET current_participants = GREATEST(rooms.current_participants - counts.n, 0),
			updated_at = NOW()
		FROM counts
		WHERE rooms.id = counts.room_id
		RETURNING rooms.id, counts.n AS expired`

	if err := tx.SelectContext(ctx, &expired, query, cutoff, pq.Array(roomIDs)); err != nil {
		return nil, fmt.Errorf("failed to expire stale participants: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit sweep: %w", err)
	}
	return expired, nil
}

// lockRooms takes the row locks of the given rooms in id order. Every
// transaction that also locks participant rows calls this first.
func lockRooms(ctx context.Context, tx *sqlx.Tx, roomIDs []string) error {
	var locked []string
	query := `SELECT id::text FROM rooms WHERE id = ANY($1::uuid[]) ORDER BY id FOR UPDATE`
	if err := tx.SelectContext(ctx, &locked, query, pq.Array(roomIDs)); err != nil {
		return fmt.Errorf("failed to lock rooms: %w", err)
	}
	return nil
}

func isUniqueViolation(err error, constraint string) bool {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return pqErr.Code == "23505" && (constraint == "" || pqErr.Constraint == constraint)
	}
	return false
}
