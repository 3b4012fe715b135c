package repository

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/go-demo/watchroom/internal/model"
	"github.com/jmoiron/sqlx"
)

func setupRoomTestDBIsolated(t *testing.T) (*sqlx.DB, string) {
	t.Helper()
	return SetupIsolatedTestDB(t)
}

func cleanupRoomTestByPrefix(t *testing.T, db *sqlx.DB, prefix string) {
	t.Helper()
	CleanupTestDataByPrefix(t, db, prefix)
}

func TestRoomRepository_CreateRoomWithHost(t *testing.T) {
	db, prefix := setupRoomTestDBIsolated(t)
	defer db.Close()
	defer cleanupRoomTestByPrefix(t, db, prefix)

	room, host := CreateIsolatedTestRoom(t, db, prefix, 8)

	if room.ID == "" {
		t.Error("Expected room ID to be set")
	}
	if room.CurrentParticipants != 1 {
		t.Errorf("Expected 1 participant, got %d", room.CurrentParticipants)
	}
	if !host.IsActive || host.RoomID != room.ID {
		t.Errorf("Expected active host participant in room %s, got %+v", room.ID, host)
	}

	repo := NewRoomRepository(db)
	participants, err := repo.ListParticipants(context.Background(), room.ID)
	if err != nil {
		t.Fatalf("Failed to list participants: %v", err)
	}
	if len(participants) != 1 {
		t.Errorf("Expected 1 participant, got %d", len(participants))
	}
}

func TestRoomRepository_CreateRoomWithHost_CodeTaken(t *testing.T) {
	db, prefix := setupRoomTestDBIsolated(t)
	defer db.Close()
	defer cleanupRoomTestByPrefix(t, db, prefix)

	room, _ := CreateIsolatedTestRoom(t, db, prefix, 8)
	repo := NewRoomRepository(db)

	dup := &model.Room{
		Code:            room.Code,
		HostID:          prefix + "_other",
		ItemTitle:       model.DefaultRoomTitle,
		MaxParticipants: 8,
		PlaybackState:   model.PlaybackState{Strategy: model.SyncStrategyAdvisory},
		RoomSettings:    model.DefaultRoomSettings(),
	}
	err := repo.CreateRoomWithHost(context.Background(), dup, &model.Participant{UserID: dup.HostID, DisplayName: "Other"})
	if !errors.Is(err, ErrRoomCodeTaken) {
		t.Errorf("Expected ErrRoomCodeTaken, got %v", err)
	}

	inUse, err := repo.CodeInUse(context.Background(), room.Code)
	if err != nil || !inUse {
		t.Errorf("Expected code to be in use, got %v, %v", inUse, err)
	}
}

func TestRoomRepository_GetRoom_NotFound(t *testing.T) {
	db, _ := setupRoomTestDBIsolated(t)
	defer db.Close()

	repo := NewRoomRepository(db)
	for _, id := range []string{nonExistentUUID, "not-a-uuid"} {
		if _, err := repo.GetRoom(context.Background(), id); !errors.Is(err, ErrRoomNotFound) {
			t.Errorf("GetRoom(%q): expected ErrRoomNotFound, got %v", id, err)
		}
	}
}

func TestRoomRepository_GetActiveRoomByCode(t *testing.T) {
	db, prefix := setupRoomTestDBIsolated(t)
	defer db.Close()
	defer cleanupRoomTestByPrefix(t, db, prefix)

	room, _ := CreateIsolatedTestRoom(t, db, prefix, 8)
	repo := NewRoomRepository(db)

	found, err := repo.GetActiveRoomByCode(context.Background(), room.Code)
	if err != nil {
		t.Fatalf("Failed to resolve code: %v", err)
	}
	if found.ID != room.ID {
		t.Errorf("Expected room %s, got %s", room.ID, found.ID)
	}
}

func TestRoomRepository_JoinParticipant_Idempotent(t *testing.T) {
	db, prefix := setupRoomTestDBIsolated(t)
	defer db.Close()
	defer cleanupRoomTestByPrefix(t, db, prefix)

	room, _ := CreateIsolatedTestRoom(t, db, prefix, 8)
	repo := NewRoomRepository(db)
	ctx := context.Background()

	p := &model.Participant{RoomID: room.ID, UserID: prefix + "_bob", DisplayName: "Bob"}
	first, err := repo.JoinParticipant(ctx, p)
	if err != nil {
		t.Fatalf("Failed to join: %v", err)
	}
	if !first.Transitioned {
		t.Error("Expected first join to transition")
	}

	second, err := repo.JoinParticipant(ctx, p)
	if err != nil {
		t.Fatalf("Failed to rejoin: %v", err)
	}
	if second.Transitioned {
		t.Error("Expected rejoin not to transition")
	}

	got, _ := repo.GetRoom(ctx, room.ID)
	if got.CurrentParticipants != 2 {
		t.Errorf("Expected 2 participants, got %d", got.CurrentParticipants)
	}
	participants, _ := repo.ListParticipants(ctx, room.ID)
	if len(participants) != 2 {
		t.Errorf("Expected 2 participant records, got %d", len(participants))
	}
}

func TestRoomRepository_JoinParticipant_Full(t *testing.T) {
	db, prefix := setupRoomTestDBIsolated(t)
	defer db.Close()
	defer cleanupRoomTestByPrefix(t, db, prefix)

	room, _ := CreateIsolatedTestRoom(t, db, prefix, 1)
	repo := NewRoomRepository(db)

	_, err := repo.JoinParticipant(context.Background(), &model.Participant{RoomID: room.ID, UserID: prefix + "_bob", DisplayName: "Bob"})
	if !errors.Is(err, ErrRoomFull) {
		t.Errorf("Expected ErrRoomFull, got %v", err)
	}
}

func TestRoomRepository_LeaveParticipant(t *testing.T) {
	db, prefix := setupRoomTestDBIsolated(t)
	defer db.Close()
	defer cleanupRoomTestByPrefix(t, db, prefix)

	room, host := CreateIsolatedTestRoom(t, db, prefix, 8)
	repo := NewRoomRepository(db)
	ctx := context.Background()

	res, err := repo.LeaveParticipant(ctx, room.ID, host.UserID)
	if err != nil {
		t.Fatalf("Failed to leave: %v", err)
	}
	if !res.Transitioned || res.Participant.IsActive {
		t.Errorf("Expected inactive participant after transition, got %+v", res)
	}

	// a second leave must not push the counter below zero
	res, err = repo.LeaveParticipant(ctx, room.ID, host.UserID)
	if err != nil {
		t.Fatalf("Failed to leave twice: %v", err)
	}
	if res.Transitioned {
		t.Error("Expected second leave not to transition")
	}

	got, _ := repo.GetRoom(ctx, room.ID)
	if got.CurrentParticipants != 0 {
		t.Errorf("Expected 0 participants, got %d", got.CurrentParticipants)
	}

	record, err := repo.GetParticipant(ctx, room.ID, host.UserID)
	if err != nil {
		t.Fatalf("Expected historical record to remain: %v", err)
	}
	if record.IsActive {
		t.Error("Expected historical record to be inactive")
	}
}

func TestRoomRepository_TouchParticipant(t *testing.T) {
	db, prefix := setupRoomTestDBIsolated(t)
	defer db.Close()
	defer cleanupRoomTestByPrefix(t, db, prefix)

	room, host := CreateIsolatedTestRoom(t, db, prefix, 8)
	repo := NewRoomRepository(db)
	ctx := context.Background()

	if err := repo.TouchParticipant(ctx, room.ID, host.UserID); err != nil {
		t.Errorf("Failed to touch participant: %v", err)
	}
	if err := repo.TouchParticipant(ctx, room.ID, prefix+"_ghost"); !errors.Is(err, ErrParticipantNotFound) {
		t.Errorf("Expected ErrParticipantNotFound, got %v", err)
	}

	_, _ = repo.LeaveParticipant(ctx, room.ID, host.UserID)
	if err := repo.TouchParticipant(ctx, room.ID, host.UserID); !errors.Is(err, ErrParticipantInactive) {
		t.Errorf("Expected ErrParticipantInactive, got %v", err)
	}
}

func TestRoomRepository_ExpireStaleParticipants(t *testing.T) {
	db, prefix := setupRoomTestDBIsolated(t)
	defer db.Close()
	defer cleanupRoomTestByPrefix(t, db, prefix)

	room, host := CreateIsolatedTestRoom(t, db, prefix, 8)
	repo := NewRoomRepository(db)
	ctx := context.Background()

	_, err := db.ExecContext(ctx,
		`UPDATE room_participants SET last_seen_at = NOW() - INTERVAL '10 minutes' WHERE room_id = $1 AND user_id = $2`,
		room.ID, host.UserID)
	if err != nil {
		t.Fatalf("Failed to age participant: %v", err)
	}

	expired, err := repo.ExpireStaleParticipants(ctx, time.Now().Add(-time.Minute))
	if err != nil {
		t.Fatalf("Failed to expire: %v", err)
	}

	found := false
	for _, e := range expired {
		if e.RoomID == room.ID {
			found = true
			if e.Expired != 1 {
				t.Errorf("Expected 1 expired participant, got %d", e.Expired)
			}
		}
	}
	if !found {
		t.Fatalf("Expected room %s among expired rooms", room.ID)
	}

	got, _ := repo.GetRoom(ctx, room.ID)
	if got.CurrentParticipants != 0 {
		t.Errorf("Expected counter 0 after expiry, got %d", got.CurrentParticipants)
	}
}

func TestRoomRepository_ConcurrentJoinLeaveSweep(t *testing.T) {
	db, prefix := setupRoomTestDBIsolated(t)
	defer db.Close()
	defer cleanupRoomTestByPrefix(t, db, prefix)

	room, _ := CreateIsolatedTestRoom(t, db, prefix, 8)
	repo := NewRoomRepository(db)
	ctx := context.Background()
	userID := prefix + "_guest"

	const rounds = 20
	errs := make(chan error, 3*rounds)
	var wg sync.WaitGroup

	wg.Add(3)
	go func() {
		defer wg.Done()
		for i := 0; i < rounds; i++ {
			p := &model.Participant{RoomID: room.ID, UserID: userID, DisplayName: "Guest"}
			if _, err := repo.JoinParticipant(ctx, p); err != nil {
				errs <- err
			}
		}
	}()
	go func() {
		defer wg.Done()
		for i := 0; i < rounds; i++ {
			if _, err := repo.LeaveParticipant(ctx, room.ID, userID); err != nil && !errors.Is(err, ErrParticipantNotFound) {
				errs <- err
			}
		}
	}()
	go func() {
		defer wg.Done()
		for i := 0; i < rounds; i++ {
			if _, err := db.ExecContext(ctx,
				`UPDATE room_participants SET last_seen_at = NOW() - INTERVAL '10 minutes' WHERE room_id = $1`,
				room.ID); err != nil {
				errs <- err
				continue
			}
			if _, err := repo.ExpireStaleParticipants(ctx, time.Now().Add(-time.Minute)); err != nil {
				errs <- err
			}
		}
	}()
	wg.Wait()
	close(errs)

	for err := range errs {
		t.Errorf("Unexpected error under contention: %v", err)
	}

	var active int
	if err := db.GetContext(ctx, &active,
		`SELECT COUNT(*) FROM room_participants WHERE room_id = $1 AND is_active`, room.ID); err != nil {
		t.Fatalf("Failed to count participants: %v", err)
	}
	got, err := repo.GetRoom(ctx, room.ID)
	if err != nil {
		t.Fatalf("Failed to get room: %v", err)
	}
	if got.CurrentParticipants != active {
		t.Errorf("Expected counter %d to match active participants, got %d", active, got.CurrentParticipants)
	}
}

func TestRoomRepository_UpdatePlayback(t *testing.T) {
	db, prefix := setupRoomTestDBIsolated(t)
	defer db.Close()
	defer cleanupRoomTestByPrefix(t, db, prefix)

	room, _ := CreateIsolatedTestRoom(t, db, prefix, 8)
	repo := NewRoomRepository(db)

	updated, err := repo.UpdatePlayback(context.Background(), room.ID, true, 42.5)
	if err != nil {
		t.Fatalf("Failed to update playback: %v", err)
	}
	if !updated.IsPlaying || updated.CurrentTime != 42.5 {
		t.Errorf("Expected playing at 42.5, got %+v", updated.PlaybackState)
	}
}
