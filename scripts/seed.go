package main

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/go-demo/watchroom/internal/config"
	"github.com/go-demo/watchroom/internal/model"
	"github.com/go-demo/watchroom/internal/pkg/database"
	"github.com/go-demo/watchroom/internal/pkg/utils"
	"github.com/go-demo/watchroom/internal/realtime"
	"github.com/go-demo/watchroom/internal/repository"
	"github.com/go-demo/watchroom/internal/service"
	"go.uber.org/zap"
)

func main() {
	log.Println("Starting database seed...")

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	ctx := context.Background()

	logger := zap.NewNop()
	db, err := database.NewPostgres(ctx, &cfg.Database, logger)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer db.Close()

	if _, err := database.Migrate(ctx, db); err != nil {
		log.Fatalf("Failed to run migrations: %v", err)
	}

	// Seed data goes through the services so codes and counters are real
	feed := realtime.NewLocalFeed()
	roomService := service.NewRoomService(
		repository.NewRoomRepository(db),
		repository.NewMessageRepository(db),
		feed,
		service.RoomOptions{MaxParticipants: cfg.Room.MaxParticipants},
		service.PresencePolicy{TTL: cfg.Presence.TTL},
		logger,
	)
	eventService := service.NewEventService(repository.NewEventRepository(db), roomService, feed, logger)

	identities := []model.Identity{
		{UserID: "seed-alice", DisplayName: "Alice Chen"},
		{UserID: "seed-bob", DisplayName: "Bob Wang"},
		{UserID: "seed-charlie", DisplayName: "Charlie Lin"},
	}

	log.Println("Creating rooms...")
	matrix := int64(603)
	rooms := []struct {
		hostIndex int
		input     service.CreateRoomInput
	}{
		{0, service.CreateRoomInput{
			ItemID:    &matrix,
			ItemTitle: "The Matrix",
			Settings:  &model.RoomSettings{AllowChat: true, AllowReactions: true, IsPublic: true},
		}},
		{1, service.CreateRoomInput{
			ItemTitle: "週五電影夜",
			Settings:  &model.RoomSettings{AllowChat: true, AllowReactions: false, IsPublic: false},
		}},
	}

	var created []*model.Room
	for _, r := range rooms {
		input := r.input
		input.Host = identities[r.hostIndex]
		room, err := roomService.CreateRoom(ctx, &input)
		if err != nil {
			log.Printf("Failed to create room %s: %v", input.ItemTitle, err)
			continue
		}
		created = append(created, room)
		log.Printf("Created room: %s (code %s)", room.ItemTitle, room.Code)
	}

	if len(created) == 0 {
		log.Println("No rooms created, skipping participants and messages")
		return
	}

	log.Println("Joining participants...")
	for _, identity := range identities[1:] {
		if _, err := roomService.JoinRoom(ctx, created[0].ID, identity); err != nil {
			log.Printf("Failed to join %s: %v", identity.DisplayName, err)
		}
	}

	log.Println("Creating messages...")
	messages := []struct {
		userIndex int
		text      string
	}{
		{0, "大家好！準備開始囉"},
		{1, "Hello everyone!"},
		{2, "爆米花準備好了 🍿"},
	}
	for _, m := range messages {
		if _, err := roomService.SendMessage(ctx, created[0].ID, identities[m.userIndex], m.text); err != nil {
			log.Printf("Failed to create message: %v", err)
		}
		// Small delay to ensure different timestamps
		time.Sleep(10 * time.Millisecond)
	}
	if _, err := roomService.SendReaction(ctx, created[0].ID, identities[2], "🔥"); err != nil {
		log.Printf("Failed to create reaction: %v", err)
	}

	log.Println("Scheduling event...")
	event, err := eventService.Create(ctx, &service.CreateEventInput{
		Host:        identities[0],
		ItemID:      &matrix,
		ItemTitle:   "The Matrix",
		ScheduledAt: time.Now().Add(24 * time.Hour),
	})
	if err != nil {
		log.Printf("Failed to schedule event: %v", err)
	} else {
		log.Printf("Scheduled event %s at %s", event.ID, event.ScheduledAt.Format(time.RFC3339))
	}

	log.Println("Seed completed successfully!")

	jwtManager := utils.NewJWTManager(cfg.JWT.Secret, cfg.JWT.Issuer)
	fmt.Println("\n--- Rooms ---")
	for _, room := range created {
		fmt.Printf("%s: code %s, id %s\n", room.ItemTitle, room.Code, room.ID)
	}
	fmt.Println("\n--- Dev Tokens ---")
	for _, identity := range identities {
		token, expiresAt, err := jwtManager.Issue(identity, cfg.JWT.DevTokenTTL)
		if err != nil {
			log.Printf("Failed to issue token for %s: %v", identity.DisplayName, err)
			continue
		}
		fmt.Printf("%s (expires %s):\n%s\n", identity.DisplayName, expiresAt.Format(time.RFC3339), token)
	}
}
