// Package session composes the live room, participant and message
// subscriptions of one room into a single view for one user, and exposes
// the room operations that user may perform.
package session

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/go-demo/watchroom/internal/model"
	"github.com/go-demo/watchroom/internal/repository"
	"github.com/go-demo/watchroom/internal/service"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

var (
	ErrNotOpen = errors.New("session: no room is open")
	ErrClosed  = errors.New("session: closed")
)

// Backend is the room store adapter a session drives.
type Backend interface {
	JoinRoom(ctx context.Context, roomID string, identity model.Identity) (*repository.JoinResult, error)
	LeaveRoom(ctx context.Context, roomID, userID string) error
	Heartbeat(ctx context.Context, roomID, userID string) error
	SendMessage(ctx context.Context, roomID string, identity model.Identity, text string) (*model.Message, error)
	SendReaction(ctx context.Context, roomID string, identity model.Identity, emoji string) (*model.Message, error)
	UpdatePlayback(ctx context.Context, roomID string, isPlaying bool, currentTime float64) (*model.Room, error)
	SubscribeRoom(ctx context.Context, roomID string) (<-chan service.RoomSnapshot, error)
	SubscribeParticipants(ctx context.Context, roomID string) (<-chan []*model.Participant, error)
	SubscribeMessages(ctx context.Context, roomID string, limit int) (<-chan []*model.Message, error)
}

var _ Backend = (*service.RoomService)(nil)

type Options struct {
	// MessageLimit is the message window size; zero uses the backend default
	MessageLimit int
	// HeartbeatInterval refreshes presence while joined; zero disables it
	HeartbeatInterval time.Duration
}

// View is the unified state of the open room. Participants are already
// filtered to those present and Messages are in ascending order.
type View struct {
	RoomID       string               `json:"room_id"`
	Room         *model.Room          `json:"room"`
	RoomMissing  bool                 `json:"room_missing"`
	Participants []*model.Participant `json:"participants"`
	Messages     []*model.Message     `json:"messages"`
	Joined       bool                 `json:"joined"`
	JoinErr      error                `json:"-"`
	Version      uint64               `json:"version"`
}

type joinState struct {
	once sync.Once
	err  error
}

// Session is used by a single consumer; Open and Close serialize with each other.
type Session struct {
	backend  Backend
	identity model.Identity
	opts     Options
	logger   *zap.Logger

	opMu sync.Mutex

	mu      sync.Mutex
	view    View
	gen     uint64
	cancel  context.CancelFunc
	group   *errgroup.Group
	joins   map[string]*joinState
	updates chan View
	closed  bool
}

func New(backend Backend, identity model.Identity, opts Options, logger *zap.Logger) *Session {
	return &Session{
		backend:  backend,
		identity: identity,
		opts:     opts,
		logger:   logger.With(zap.String("user_id", identity.UserID)),
		joins:    make(map[string]*joinState),
		updates:  make(chan View, 1),
	}
}

// Open starts the three live subscriptions for roomID in one scope.
// Opening the room that is already open is a no-op; opening another room
// tears the current scope down first.
func (s *Session) Open(ctx context.Context, roomID string) error {
	s.opMu.Lock()
	defer s.opMu.Unlock()

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return ErrClosed
	}
	if s.cancel != nil && s.view.RoomID == roomID {
		s.mu.Unlock()
		return nil
	}
	s.mu.Unlock()

	s.teardown()

	scope, cancel := context.WithCancel(ctx)
	g, gctx := errgroup.WithContext(scope)

	roomCh, err := s.backend.SubscribeRoom(gctx, roomID)
	if err != nil {
		cancel()
		return err
	}
	participantCh, err := s.backend.SubscribeParticipants(gctx, roomID)
	if err != nil {
		cancel()
		return err
	}
	messageCh, err := s.backend.SubscribeMessages(gctx, roomID, s.opts.MessageLimit)
	if err != nil {
		cancel()
		return err
	}

	s.mu.Lock()
	s.gen++
	gen := s.gen
	s.cancel = cancel
	s.group = g
	s.view = View{RoomID: roomID, Version: s.view.Version + 1}
	s.publishLocked()
	s.mu.Unlock()

	g.Go(func() error {
		return pump(gctx, roomCh, func(snap service.RoomSnapshot) {
			s.apply(gen, func(v *View) {
				v.Room = snap.Room
				v.RoomMissing = snap.Room == nil
			})
		})
	})
	g.Go(func() error {
		return pump(gctx, participantCh, func(ps []*model.Participant) {
			s.apply(gen, func(v *View) { v.Participants = ps })
		})
	})
	g.Go(func() error {
		return pump(gctx, messageCh, func(ms []*model.Message) {
			s.apply(gen, func(v *View) { v.Messages = ms })
		})
	})
	if s.opts.HeartbeatInterval > 0 {
		g.Go(func() error {
			s.heartbeatLoop(gctx, gen, roomID)
			return nil
		})
	}

	s.logger.Debug("Session opened", zap.String("room_id", roomID))
	return nil
}

func pump[T any](ctx context.Context, ch <-chan T, apply func(T)) error {
	for {
		select {
		case <-ctx.Done():
			return nil
		case v, ok := <-ch:
			if !ok {
				return nil
			}
			apply(v)
		}
	}
}

func (s *Session) heartbeatLoop(ctx context.Context, gen uint64, roomID string) {
	ticker := time.NewTicker(s.opts.HeartbeatInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.mu.Lock()
			joined := s.gen == gen && s.view.Joined
			s.mu.Unlock()
			if !joined {
				continue
			}
			if err := s.backend.Heartbeat(ctx, roomID, s.identity.UserID); err != nil && ctx.Err() == nil {
				s.logger.Warn("Heartbeat failed", zap.String("room_id", roomID), zap.Error(err))
			}
		}
	}
}

// teardown cancels the current scope and waits for its goroutines
func (s *Session) teardown() {
	s.mu.Lock()
	cancel, g := s.cancel, s.group
	s.cancel, s.group = nil, nil
	s.gen++
	s.mu.Unlock()

	if cancel != nil {
		cancel()
		_ = g.Wait()
	}
}

// apply mutates the view unless it belongs to a scope that was torn down
func (s *Session) apply(gen uint64, fn func(v *View)) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if gen != s.gen || s.closed {
		return
	}
	fn(&s.view)
	s.view.Version++
	s.publishLocked()
}

// publishLocked replaces any unread view with the current one. Caller holds mu.
func (s *Session) publishLocked() {
	if s.closed {
		return
	}
	select {
	case <-s.updates:
	default:
	}
	s.updates <- s.view
}

func (s *Session) current() (string, uint64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return "", 0, ErrClosed
	}
	if s.view.RoomID == "" || s.cancel == nil {
		return "", 0, ErrNotOpen
	}
	return s.view.RoomID, s.gen, nil
}

// Join joins the open room at most once for the lifetime of the session.
// A failed join is recorded in the view and is not retried.
func (s *Session) Join(ctx context.Context) error {
	roomID, gen, err := s.current()
	if err != nil {
		return err
	}

	s.mu.Lock()
	js, ok := s.joins[roomID]
	if !ok {
		js = &joinState{}
		s.joins[roomID] = js
	}
	s.mu.Unlock()

	ran := false
	js.once.Do(func() {
		ran = true
		_, js.err = s.backend.JoinRoom(ctx, roomID, s.identity)
	})

	if ran {
		if js.err != nil {
			s.logger.Info("Join failed", zap.String("room_id", roomID), zap.Error(js.err))
		}
		s.apply(gen, func(v *View) {
			v.Joined = js.err == nil
			v.JoinErr = js.err
		})
	}
	return js.err
}

// Leave marks the user inactive in the open room
func (s *Session) Leave(ctx context.Context) error {
	roomID, gen, err := s.current()
	if err != nil {
		return err
	}

	s.mu.Lock()
	joined := s.view.Joined
	s.mu.Unlock()
	if !joined {
		return nil
	}

	if err := s.backend.LeaveRoom(ctx, roomID, s.identity.UserID); err != nil {
		return err
	}
	s.apply(gen, func(v *View) { v.Joined = false })
	return nil
}

// Heartbeat refreshes presence in the open room
func (s *Session) Heartbeat(ctx context.Context) error {
	roomID, _, err := s.current()
	if err != nil {
		return err
	}
	return s.backend.Heartbeat(ctx, roomID, s.identity.UserID)
}

// Send posts a text message; errors are returned to the caller
func (s *Session) Send(ctx context.Context, text string) (*model.Message, error) {
	roomID, _, err := s.current()
	if err != nil {
		return nil, err
	}
	return s.backend.SendMessage(ctx, roomID, s.identity, text)
}

// React posts an emoji reaction
func (s *Session) React(ctx context.Context, emoji string) (*model.Message, error) {
	roomID, _, err := s.current()
	if err != nil {
		return nil, err
	}
	return s.backend.SendReaction(ctx, roomID, s.identity, emoji)
}

// UpdatePlayback writes advisory playback state for the open room
func (s *Session) UpdatePlayback(ctx context.Context, isPlaying bool, currentTime float64) error {
	roomID, _, err := s.current()
	if err != nil {
		return err
	}
	_, err = s.backend.UpdatePlayback(ctx, roomID, isPlaying, currentTime)
	return err
}

// Updates delivers the latest view after every change. Intermediate views
// may be skipped. The channel is closed by Close.
func (s *Session) Updates() <-chan View {
	return s.updates
}

// Snapshot returns the current view
func (s *Session) Snapshot() View {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.view
}

// Identity returns the user the session acts for
func (s *Session) Identity() model.Identity {
	return s.identity
}

// Close tears down all subscriptions and closes Updates. It is safe to call more than once.
func (s *Session) Close() {
	s.opMu.Lock()
	defer s.opMu.Unlock()

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.mu.Unlock()

	s.teardown()

	s.mu.Lock()
	s.closed = true
	close(s.updates)
	s.mu.Unlock()
}
