package repository

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/go-demo/watchroom/internal/model"
	"github.com/go-demo/watchroom/internal/pkg/database"
	"github.com/go-demo/watchroom/internal/pkg/utils"
	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
)

// 全域計數器確保唯一性
var testCounter int64

// 不存在的房間 ID（合法 UUID 格式）
const nonExistentUUID = "00000000-0000-0000-0000-000000000000"

// GenerateUniquePrefix 生成唯一的測試前綴
func GenerateUniquePrefix() string {
	count := atomic.AddInt64(&testCounter, 1)
	return uuid.New().String()[:8] + "_" + time.Now().Format("150405") + "_" + string(rune(count%26+'a'))
}

// SetupIsolatedTestDB 建立隔離的測試資料庫連線並套用 schema
func SetupIsolatedTestDB(t *testing.T) (*sqlx.DB, string) {
	t.Helper()

	dsn := "host=localhost port=5432 user=postgres password=postgres dbname=watchroom_test sslmode=disable"
	db, err := sqlx.Connect("postgres", dsn)
	if err != nil {
		t.Skipf("Skipping test, could not connect to test database: %v", err)
	}

	if _, err := database.Migrate(context.Background(), db); err != nil {
		db.Close()
		t.Fatalf("Failed to migrate test database: %v", err)
	}

	return db, GenerateUniquePrefix()
}

// CleanupTestDataByPrefix 清理特定前綴的測試資料
func CleanupTestDataByPrefix(t *testing.T, db *sqlx.DB, prefix string) {
	t.Helper()

	ctx := context.Background()

	// rooms 刪除時會連帶刪除 participants、messages、event starts
	_, _ = db.ExecContext(ctx, "DELETE FROM rooms WHERE host_id LIKE $1", prefix+"%")
	_, _ = db.ExecContext(ctx, "DELETE FROM watch_events WHERE host_id LIKE $1", prefix+"%")
}

// CreateIsolatedTestRoom 建立隔離的測試房間，host 為 {prefix}_host
func CreateIsolatedTestRoom(t *testing.T, db *sqlx.DB, prefix string, maxParticipants int) (*model.Room, *model.Participant) {
	t.Helper()

	repo := NewRoomRepository(db)
	room := &model.Room{
		Code:            utils.GenerateRoomCode(),
		HostID:          prefix + "_host",
		ItemTitle:       model.DefaultRoomTitle,
		MaxParticipants: maxParticipants,
		PlaybackState:   model.PlaybackState{Strategy: model.SyncStrategyAdvisory},
		RoomSettings:    model.DefaultRoomSettings(),
	}
	host := &model.Participant{
		UserID:      room.HostID,
		DisplayName: "Host",
	}

	if err := repo.CreateRoomWithHost(context.Background(), room, host); err != nil {
		t.Fatalf("Failed to create test room: %v", err)
	}

	return room, host
}
