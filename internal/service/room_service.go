package service

import (
	"context"
	"errors"
	"math"
	"strings"
	"time"

	"github.com/go-demo/watchroom/internal/model"
	"github.com/go-demo/watchroom/internal/pkg/catalog"
	apperrors "github.com/go-demo/watchroom/internal/pkg/errors"
	"github.com/go-demo/watchroom/internal/pkg/metrics"
	"github.com/go-demo/watchroom/internal/pkg/utils"
	"github.com/go-demo/watchroom/internal/realtime"
	"github.com/go-demo/watchroom/internal/repository"
	"go.uber.org/zap"
)

const (
	defaultPageSize = 20
	maxPageSize     = 100
)

// RoomOptions tunes room creation and reads
type RoomOptions struct {
	CreateTimeout   time.Duration
	CodeAttempts    int
	MaxParticipants int
	MessageWindow   int
	MaxWindow       int
}

func (o RoomOptions) withDefaults() RoomOptions {
	if o.CodeAttempts < 1 {
		o.CodeAttempts = 5
	}
	if o.MaxParticipants < 1 {
		o.MaxParticipants = model.DefaultMaxParticipants
	}
	if o.MessageWindow < 1 {
		o.MessageWindow = 50
	}
	if o.MaxWindow < o.MessageWindow {
		o.MaxWindow = o.MessageWindow
	}
	return o
}

// RoomSnapshot is one push of the room document. Room is nil when the
// room does not exist.
type RoomSnapshot struct {
	Room *model.Room
}

type RoomService struct {
	rooms    RoomStore
	messages MessageStore
	feed     realtime.Feed
	catalog  catalog.Lookup
	opts     RoomOptions
	presence PresencePolicy
	newCode  func() string
	now      func() time.Time
	logger   *zap.Logger
}

func NewRoomService(
	rooms RoomStore,
	messages MessageStore,
	feed realtime.Feed,
	opts RoomOptions,
	presence PresencePolicy,
	logger *zap.Logger,
) *RoomService {
	return &RoomService{
		rooms:    rooms,
		messages: messages,
		feed:     feed,
		opts:     opts.withDefaults(),
		presence: presence,
		newCode:  utils.GenerateRoomCode,
		now:      time.Now,
		logger:   logger,
	}
}

// WithCatalog enables best-effort title and poster lookups
func (s *RoomService) WithCatalog(lookup catalog.Lookup) *RoomService {
	s.catalog = lookup
	return s
}

// CreateRoomInput represents room creation input
type CreateRoomInput struct {
	Host            model.Identity
	ItemID          *int64
	ItemTitle       string
	ItemPoster      string
	Settings        *model.RoomSettings
	MaxParticipants int
	// ExcludeCodes are never issued, even when no active room holds them
	ExcludeCodes []string
}

// CreateRoom allocates a join code and writes the room with its host as
// the first active participant.
func (s *RoomService) CreateRoom(ctx context.Context, input *CreateRoomInput) (*model.Room, error) {
	if input.Host.IsZero() {
		return nil, apperrors.ErrUnauthorized
	}

	v := utils.NewValidator()
	v.ValidateOptionalTitle("item_title", input.ItemTitle)
	if input.MaxParticipants < 0 {
		v.AddError("max_participants", "Must not be negative")
	}
	if v.HasErrors() {
		return nil, apperrors.ErrValidation.WithDetails(v.Errors())
	}

	if s.opts.CreateTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.opts.CreateTimeout)
		defer cancel()
	}

	title, poster := enrichItem(ctx, s.catalog, s.logger, input.ItemID, input.ItemTitle, input.ItemPoster)

	settings := model.DefaultRoomSettings()
	if input.Settings != nil {
		settings = *input.Settings
	}
	maxParticipants := input.MaxParticipants
	if maxParticipants == 0 {
		maxParticipants = s.opts.MaxParticipants
	}

	room := &model.Room{
		HostID:          input.Host.UserID,
		ItemID:          model.NullInt64(input.ItemID),
		ItemTitle:       title,
		ItemPoster:      model.NullString(poster),
		MaxParticipants: maxParticipants,
		PlaybackState:   model.PlaybackState{Strategy: model.SyncStrategyAdvisory},
		RoomSettings:    settings,
	}
	host := &model.Participant{
		UserID:      input.Host.UserID,
		DisplayName: input.Host.Name(),
		PhotoURL:    model.NullString(input.Host.PhotoURL),
	}

	excluded := make(map[string]bool, len(input.ExcludeCodes))
	for _, code := range input.ExcludeCodes {
		excluded[utils.NormalizeRoomCode(code)] = true
	}

	for attempt := 1; attempt <= s.opts.CodeAttempts; attempt++ {
		code := s.newCode()
		if excluded[code] {
			metrics.IncCodeCollision()
			continue
		}

		inUse, err := s.rooms.CodeInUse(ctx, code)
		if err != nil {
			return nil, s.createFailure(ctx, err)
		}
		if inUse {
			metrics.IncCodeCollision()
			s.logger.Debug("Room code collision", zap.String("code", code), zap.Int("attempt", attempt))
			continue
		}

		room.Code = code
		err = s.rooms.CreateRoomWithHost(ctx, room, host)
		if errors.Is(err, repository.ErrRoomCodeTaken) {
			metrics.IncCodeCollision()
			continue
		}
		if err != nil {
			return nil, s.createFailure(ctx, err)
		}

		s.publish(ctx, realtime.RoomTopic(room.ID), realtime.ParticipantsTopic(room.ID))
		metrics.IncRoomCreated("created")
		s.logger.Info("Room created",
			zap.String("room_id", room.ID),
			zap.String("code", room.Code),
			zap.String("host_id", room.HostID),
		)
		return room, nil
	}

	metrics.IncRoomCreated("code_exhausted")
	s.logger.Error("Could not allocate room code", zap.Int("attempts", s.opts.CodeAttempts))
	return nil, withRemediation(apperrors.ErrRoomCodeExhausted)
}

func (s *RoomService) createFailure(ctx context.Context, err error) error {
	appErr := classifyStoreError(ctx, err)
	metrics.IncRoomCreated(string(appErr.Kind))
	s.logger.Error("Failed to create room", zap.String("kind", string(appErr.Kind)), zap.Error(err))
	return withRemediation(appErr)
}

// ResolveRoomByCode finds the active room holding code. A well-formed code
// that matches nothing yields ErrRoomCodeNotFound; any other failure is
// reported as a generic join failure.
func (s *RoomService) ResolveRoomByCode(ctx context.Context, code string) (*model.Room, error) {
	code = utils.NormalizeRoomCode(code)
	if !utils.ValidRoomCode(code) {
		return nil, apperrors.ErrInvalidRoomCode
	}

	room, err := s.rooms.GetActiveRoomByCode(ctx, code)
	if err != nil {
		if errors.Is(err, repository.ErrRoomNotFound) {
			return nil, apperrors.ErrRoomCodeNotFound
		}
		s.logger.Error("Failed to resolve room code", zap.String("code", code), zap.Error(err))
		return nil, classifyStoreError(ctx, err).WithMessage("Could not join room.")
	}
	return room, nil
}

// GetRoom retrieves a room by ID
func (s *RoomService) GetRoom(ctx context.Context, id string) (*model.Room, error) {
	room, err := s.rooms.GetRoom(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrRoomNotFound) {
			return nil, apperrors.ErrRoomNotFound
		}
		s.logger.Error("Failed to get room", zap.String("room_id", id), zap.Error(err))
		return nil, classifyStoreError(ctx, err)
	}
	return room, nil
}

// ListPublicRooms lists active public rooms
func (s *RoomService) ListPublicRooms(ctx context.Context, limit, offset int) ([]*model.Room, error) {
	limit, offset = clampPage(limit, offset)

	rooms, err := s.rooms.ListPublicRooms(ctx, limit, offset)
	if err != nil {
		s.logger.Error("Failed to list public rooms", zap.Error(err))
		return nil, classifyStoreError(ctx, err)
	}
	return rooms, nil
}

func clampPage(limit, offset int) (int, int) {
	if limit <= 0 {
		limit = defaultPageSize
	}
	if limit > maxPageSize {
		limit = maxPageSize
	}
	if offset < 0 {
		offset = 0
	}
	return limit, offset
}

// JoinRoom marks the user present. Rejoining while active is idempotent
// and leaves the participant counter unchanged.
func (s *RoomService) JoinRoom(ctx context.Context, roomID string, identity model.Identity) (*repository.JoinResult, error) {
	if identity.IsZero() {
		return nil, apperrors.ErrUnauthorized
	}

	res, err := s.rooms.JoinParticipant(ctx, &model.Participant{
		RoomID:      roomID,
		UserID:      identity.UserID,
		DisplayName: identity.Name(),
		PhotoURL:    model.NullString(identity.PhotoURL),
	})
	if err != nil {
		switch {
		case errors.Is(err, repository.ErrRoomNotFound):
			return nil, apperrors.ErrRoomNotFound
		case errors.Is(err, repository.ErrRoomInactive):
			return nil, apperrors.ErrRoomClosed
		case errors.Is(err, repository.ErrRoomFull):
			return nil, apperrors.ErrRoomFull
		}
		s.logger.Error("Failed to join room", zap.String("room_id", roomID), zap.Error(err))
		return nil, classifyStoreError(ctx, err)
	}

	metrics.ObservePresence("join", res.Transitioned)
	if res.Transitioned {
		s.publish(ctx, realtime.ParticipantsTopic(roomID), realtime.RoomTopic(roomID))
		s.logger.Info("User joined room", zap.String("room_id", roomID), zap.String("user_id", identity.UserID))
	} else {
		s.publish(ctx, realtime.ParticipantsTopic(roomID))
	}
	return res, nil
}

// LeaveRoom marks the user inactive; the participant record is kept
func (s *RoomService) LeaveRoom(ctx context.Context, roomID, userID string) error {
	res, err := s.rooms.LeaveParticipant(ctx, roomID, userID)
	if err != nil {
		if errors.Is(err, repository.ErrParticipantNotFound) {
			return apperrors.ErrParticipantNotFound
		}
		s.logger.Error("Failed to leave room", zap.String("room_id", roomID), zap.Error(err))
		return classifyStoreError(ctx, err)
	}

	metrics.ObservePresence("leave", res.Transitioned)
	if res.Transitioned {
		s.publish(ctx, realtime.ParticipantsTopic(roomID), realtime.RoomTopic(roomID))
		s.logger.Info("User left room", zap.String("room_id", roomID), zap.String("user_id", userID))
	}
	return nil
}

// Heartbeat refreshes the participant's last-seen time
func (s *RoomService) Heartbeat(ctx context.Context, roomID, userID string) error {
	if err := s.rooms.TouchParticipant(ctx, roomID, userID); err != nil {
		switch {
		case errors.Is(err, repository.ErrParticipantNotFound):
			return apperrors.ErrParticipantNotFound
		case errors.Is(err, repository.ErrParticipantInactive):
			return apperrors.ErrParticipantInactive
		}
		return classifyStoreError(ctx, err)
	}
	return nil
}

// ListActiveParticipants returns the participants currently present
func (s *RoomService) ListActiveParticipants(ctx context.Context, roomID string) ([]*model.Participant, error) {
	if _, err := s.GetRoom(ctx, roomID); err != nil {
		return nil, err
	}
	return s.activeParticipants(ctx, roomID)
}

func (s *RoomService) activeParticipants(ctx context.Context, roomID string) ([]*model.Participant, error) {
	participants, err := s.rooms.ListParticipants(ctx, roomID)
	if err != nil {
		return nil, classifyStoreError(ctx, err)
	}
	return s.presence.FilterPresent(participants, s.now()), nil
}

// GetParticipant returns the historical record, including inactive participants
func (s *RoomService) GetParticipant(ctx context.Context, roomID, userID string) (*model.Participant, error) {
	p, err := s.rooms.GetParticipant(ctx, roomID, userID)
	if err != nil {
		if errors.Is(err, repository.ErrParticipantNotFound) {
			return nil, apperrors.ErrParticipantNotFound
		}
		return nil, classifyStoreError(ctx, err)
	}
	return p, nil
}

// SendMessage appends a text message to the room log
func (s *RoomService) SendMessage(ctx context.Context, roomID string, identity model.Identity, text string) (*model.Message, error) {
	body := utils.SanitizeString(text)

	v := utils.NewValidator()
	if !v.ValidateMessageBody("body", body) {
		return nil, apperrors.ErrValidation.WithDetails(v.Errors())
	}

	return s.appendMessage(ctx, roomID, identity, &model.Message{
		Body:     body,
		Type:     model.MessageTypeText,
		PhotoURL: model.NullString(identity.PhotoURL),
	})
}

// SendReaction appends an emoji reaction. Reactions carry no photo.
func (s *RoomService) SendReaction(ctx context.Context, roomID string, identity model.Identity, emoji string) (*model.Message, error) {
	body := strings.TrimSpace(emoji)

	v := utils.NewValidator()
	if !v.ValidateReaction("emoji", body) {
		return nil, apperrors.ErrValidation.WithDetails(v.Errors())
	}

	return s.appendMessage(ctx, roomID, identity, &model.Message{
		Body: body,
		Type: model.MessageTypeReaction,
	})
}

func (s *RoomService) appendMessage(ctx context.Context, roomID string, identity model.Identity, msg *model.Message) (*model.Message, error) {
	if identity.IsZero() {
		return nil, apperrors.ErrUnauthorized
	}

	room, err := s.GetRoom(ctx, roomID)
	if err != nil {
		return nil, err
	}
	if !room.IsActive {
		return nil, apperrors.ErrRoomClosed
	}
	if msg.IsReaction() && !room.AllowReactions {
		return nil, apperrors.ErrReactionsDisabled
	}
	if !msg.IsReaction() && !room.AllowChat {
		return nil, apperrors.ErrChatDisabled
	}

	msg.RoomID = roomID
	msg.UserID = identity.UserID
	msg.DisplayName = identity.Name()

	if err := s.messages.CreateMessage(ctx, msg); err != nil {
		if errors.Is(err, repository.ErrRoomNotFound) {
			return nil, apperrors.ErrRoomNotFound
		}
		s.logger.Error("Failed to append message", zap.String("room_id", roomID), zap.Error(err))
		return nil, classifyStoreError(ctx, err)
	}

	metrics.IncMessage(string(msg.Type))
	s.publish(ctx, realtime.MessagesTopic(roomID))
	return msg, nil
}

// ListMessages returns the newest messages of the room in ascending order
func (s *RoomService) ListMessages(ctx context.Context, roomID string, limit int) ([]*model.Message, error) {
	if _, err := s.GetRoom(ctx, roomID); err != nil {
		return nil, err
	}
	return s.recentMessages(ctx, roomID, s.window(limit))
}

func (s *RoomService) recentMessages(ctx context.Context, roomID string, limit int) ([]*model.Message, error) {
	messages, err := s.messages.ListRecentMessages(ctx, roomID, limit)
	if err != nil {
		return nil, classifyStoreError(ctx, err)
	}
	return messages, nil
}

func (s *RoomService) window(limit int) int {
	if limit <= 0 {
		return s.opts.MessageWindow
	}
	if limit > s.opts.MaxWindow {
		return s.opts.MaxWindow
	}
	return limit
}

// UpdatePlayback records advisory playback state. Nothing reads it back to
// drive a player.
func (s *RoomService) UpdatePlayback(ctx context.Context, roomID string, isPlaying bool, currentTime float64) (*model.Room, error) {
	if currentTime < 0 || math.IsNaN(currentTime) || math.IsInf(currentTime, 0) {
		v := utils.NewValidator()
		v.AddError("current_time", "Must be a non-negative number of seconds")
		return nil, apperrors.ErrValidation.WithDetails(v.Errors())
	}

	room, err := s.rooms.UpdatePlayback(ctx, roomID, isPlaying, currentTime)
	if err != nil {
		if errors.Is(err, repository.ErrRoomNotFound) {
			return nil, apperrors.ErrRoomNotFound
		}
		return nil, classifyStoreError(ctx, err)
	}

	s.publish(ctx, realtime.RoomTopic(roomID))
	return room, nil
}

// SubscribeRoom streams the room document until ctx is done
func (s *RoomService) SubscribeRoom(ctx context.Context, roomID string) (<-chan RoomSnapshot, error) {
	return watch(ctx, s.feed, s.logger, realtime.RoomTopic(roomID), func(ctx context.Context) (RoomSnapshot, error) {
		room, err := s.rooms.GetRoom(ctx, roomID)
		if errors.Is(err, repository.ErrRoomNotFound) {
			return RoomSnapshot{}, nil
		}
		if err != nil {
			return RoomSnapshot{}, classifyStoreError(ctx, err)
		}
		return RoomSnapshot{Room: room}, nil
	})
}

// SubscribeParticipants streams the present participants until ctx is done
func (s *RoomService) SubscribeParticipants(ctx context.Context, roomID string) (<-chan []*model.Participant, error) {
	return watch(ctx, s.feed, s.logger, realtime.ParticipantsTopic(roomID), func(ctx context.Context) ([]*model.Participant, error) {
		return s.activeParticipants(ctx, roomID)
	})
}

// SubscribeMessages streams the newest limit messages, ascending, until ctx is done
func (s *RoomService) SubscribeMessages(ctx context.Context, roomID string, limit int) (<-chan []*model.Message, error) {
	limit = s.window(limit)
	return watch(ctx, s.feed, s.logger, realtime.MessagesTopic(roomID), func(ctx context.Context) ([]*model.Message, error) {
		return s.recentMessages(ctx, roomID, limit)
	})
}

// publish notifies live readers. The write already happened, so a
// cancelled request context must not suppress the notification.
func (s *RoomService) publish(ctx context.Context, topics ...string) {
	publishTopics(context.WithoutCancel(ctx), s.feed, s.logger, topics...)
}

func publishTopics(ctx context.Context, feed realtime.Feed, logger *zap.Logger, topics ...string) {
	for _, topic := range topics {
		if err := feed.Publish(ctx, topic); err != nil {
			metrics.IncFeedPublishError()
			logger.Warn("Failed to publish change", zap.String("topic", topic), zap.Error(err))
		}
	}
}

// enrichItem fills a missing title or poster from the catalog and falls
// back to the default title.
func enrichItem(ctx context.Context, lookup catalog.Lookup, logger *zap.Logger, itemID *int64, title, poster string) (string, string) {
	title = strings.TrimSpace(title)
	poster = strings.TrimSpace(poster)

	if itemID != nil && lookup != nil && (title == "" || poster == "") {
		item, err := lookup.Lookup(ctx, *itemID)
		if err != nil {
			if !errors.Is(err, catalog.ErrDisabled) {
				logger.Warn("Catalog lookup failed", zap.Int64("item_id", *itemID), zap.Error(err))
			}
		} else {
			if title == "" {
				title = item.Title
			}
			if poster == "" {
				poster = item.PosterPath
			}
		}
	}

	if title == "" {
		title = model.DefaultRoomTitle
	}
	return title, poster
}
