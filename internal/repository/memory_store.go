package repository

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/go-demo/watchroom/internal/model"
	"github.com/google/uuid"
)

// MemoryStore keeps rooms, participants, messages and events in process.
// It follows the same semantics as the Postgres repositories and is used
// by the memory store driver and by tests.
type MemoryStore struct {
	mu           sync.Mutex
	now          func() time.Time
	lastStamp    time.Time
	seq          int64
	rooms        map[string]*model.Room
	participants map[string]map[string]*model.Participant
	messages     map[string][]*model.Message
	events       map[string]*model.WatchEvent
	starts       map[string][]model.WatchEventStart
}

func NewMemoryStore() *MemoryStore {
	return NewMemoryStoreWithClock(time.Now)
}

// NewMemoryStoreWithClock uses now as the store clock
func NewMemoryStoreWithClock(now func() time.Time) *MemoryStore {
	return &MemoryStore{
		now:          now,
		rooms:        make(map[string]*model.Room),
		participants: make(map[string]map[string]*model.Participant),
		messages:     make(map[string][]*model.Message),
		events:       make(map[string]*model.WatchEvent),
		starts:       make(map[string][]model.WatchEventStart),
	}
}

// stamp returns a strictly increasing server time. Caller holds mu.
func (s *MemoryStore) stamp() time.Time {
	t := s.now()
	if !t.After(s.lastStamp) {
		t = s.lastStamp.Add(time.Nanosecond)
	}
	s.lastStamp = t
	return t
}

func copyRoom(r *model.Room) *model.Room {
	c := *r
	return &c
}

func copyParticipant(p *model.Participant) *model.Participant {
	c := *p
	return &c
}

func (s *MemoryStore) CreateRoomWithHost(ctx context.Context, room *model.Room, host *model.Participant) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, existing := range s.rooms {
		if existing.IsActive && existing.Code == room.Code {
			return ErrRoomCodeTaken
		}
	}

	now := s.stamp()
	room.ID = uuid.New().String()
	room.IsActive = true
	room.CurrentParticipants = 1
	room.LastUpdated = now
	room.CreatedAt = now
	room.UpdatedAt = now
	s.rooms[room.ID] = copyRoom(room)

	host.RoomID = room.ID
	host.IsActive = true
	host.JoinedAt = now
	host.LastSeenAt = now
	s.participants[room.ID] = map[string]*model.Participant{host.UserID: copyParticipant(host)}
	return nil
}

func (s *MemoryStore) CodeInUse(ctx context.Context, code string) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, room := range s.rooms {
		if room.IsActive && room.Code == code {
			return true, nil
		}
	}
	return false, nil
}

func (s *MemoryStore) GetRoom(ctx context.Context, id string) (*model.Room, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	room, ok := s.rooms[id]
	if !ok {
		return nil, ErrRoomNotFound
	}
	return copyRoom(room), nil
}

func (s *MemoryStore) GetActiveRoomByCode(ctx context.Context, code string) (*model.Room, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, room := range s.rooms {
		if room.IsActive && room.Code == code {
			return copyRoom(room), nil
		}
	}
	return nil, ErrRoomNotFound
}

func (s *MemoryStore) ListPublicRooms(ctx context.Context, limit, offset int) ([]*model.Room, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	rooms := []*model.Room{}
	for _, room := range s.rooms {
		if room.IsActive && room.IsPublic {
			rooms = append(rooms, copyRoom(room))
		}
	}
	sort.Slice(rooms, func(i, j int) bool {
		return rooms[i].CreatedAt.After(rooms[j].CreatedAt)
	})
	return paginate(rooms, limit, offset), nil
}

func paginate[T any](items []T, limit, offset int) []T {
	if offset >= len(items) {
		return items[:0]
	}
	items = items[offset:]
	if limit >= 0 && limit < len(items) {
		items = items[:limit]
	}
	return items
}

func (s *MemoryStore) UpdatePlayback(ctx context.Context, roomID string, isPlaying bool, currentTime float64) (*model.Room, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	room, ok := s.rooms[roomID]
	if !ok {
		return nil, ErrRoomNotFound
	}
	now := s.stamp()
	room.IsPlaying = isPlaying
	room.CurrentTime = currentTime
	room.LastUpdated = now
	room.UpdatedAt = now
	return copyRoom(room), nil
}

func (s *MemoryStore) JoinParticipant(ctx context.Context, p *model.Participant) (*JoinResult, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	room, ok := s.rooms[p.RoomID]
	if !ok {
		return nil, ErrRoomNotFound
	}
	if !room.IsActive {
		return nil, ErrRoomInactive
	}

	members := s.participants[p.RoomID]
	if members == nil {
		members = make(map[string]*model.Participant)
		s.participants[p.RoomID] = members
	}
	existing := members[p.UserID]
	transitioned := existing == nil || !existing.IsActive
	if transitioned && room.IsFull() {
		return nil, ErrRoomFull
	}

	now := s.stamp()
	joined := &model.Participant{
		RoomID:      p.RoomID,
		UserID:      p.UserID,
		DisplayName: p.DisplayName,
		PhotoURL:    p.PhotoURL,
		IsActive:    true,
		JoinedAt:    now,
		LastSeenAt:  now,
	}
	if !transitioned {
		joined.JoinedAt = existing.JoinedAt
	}
	members[p.UserID] = joined

	if transitioned {
		room.CurrentParticipants++
		room.UpdatedAt = now
	}
	return &JoinResult{Participant: copyParticipant(joined), Transitioned: transitioned}, nil
}

func (s *MemoryStore) LeaveParticipant(ctx context.Context, roomID, userID string) (*LeaveResult, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	p, ok := s.participants[roomID][userID]
	if !ok {
		return nil, ErrParticipantNotFound
	}

	now := s.stamp()
	wasActive := p.IsActive
	p.IsActive = false
	p.LastSeenAt = now

	if wasActive {
		if room, ok := s.rooms[roomID]; ok {
			if room.CurrentParticipants > 0 {
				room.CurrentParticipants--
			}
			room.UpdatedAt = now
		}
	}
	return &LeaveResult{Participant: copyParticipant(p), Transitioned: wasActive}, nil
}

func (s *MemoryStore) TouchParticipant(ctx context.Context, roomID, userID string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	p, ok := s.participants[roomID][userID]
	if !ok {
		return ErrParticipantNotFound
	}
	if !p.IsActive {
		return ErrParticipantInactive
	}
	p.LastSeenAt = s.stamp()
	return nil
}

func (s *MemoryStore) GetParticipant(ctx context.Context, roomID, userID string) (*model.Participant, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	p, ok := s.participants[roomID][userID]
	if !ok {
		return nil, ErrParticipantNotFound
	}
	return copyParticipant(p), nil
}

func (s *MemoryStore) ListParticipants(ctx context.Context, roomID string) ([]*model.Participant, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	participants := []*model.Participant{}
	for _, p := range s.participants[roomID] {
		participants = append(participants, copyParticipant(p))
	}
	sort.Slice(participants, func(i, j int) bool {
		if participants[i].JoinedAt.Equal(participants[j].JoinedAt) {
			return participants[i].UserID < participants[j].UserID
		}
		return participants[i].JoinedAt.Before(participants[j].JoinedAt)
	})
	return participants, nil
}

func (s *MemoryStore) ExpireStaleParticipants(ctx context.Context, cutoff time.Time) ([]ExpiredRoom, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	expired := []ExpiredRoom{}
	for roomID, members := range s.participants {
		n := 0
		for _, p := range members {
			if p.IsActive && p.LastSeenAt.Before(cutoff) {
				p.IsActive = false
				n++
			}
		}
		if n == 0 {
			continue
		}
		if room, ok := s.rooms[roomID]; ok {
			room.CurrentParticipants -= n
			if room.CurrentParticipants < 0 {
				room.CurrentParticipants = 0
			}
			room.UpdatedAt = s.stamp()
		}
		expired = append(expired, ExpiredRoom{RoomID: roomID, Expired: n})
	}
	sort.Slice(expired, func(i, j int) bool { return expired[i].RoomID < expired[j].RoomID })
	return expired, nil
}

func (s *MemoryStore) CreateMessage(ctx context.Context, msg *model.Message) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.rooms[msg.RoomID]; !ok {
		return ErrRoomNotFound
	}

	s.seq++
	msg.ID = uuid.New().String()
	msg.Seq = s.seq
	msg.CreatedAt = s.stamp()

	stored := *msg
	s.messages[msg.RoomID] = append(s.messages[msg.RoomID], &stored)
	return nil
}

func (s *MemoryStore) ListRecentMessages(ctx context.Context, roomID string, limit int) ([]*model.Message, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	log := s.messages[roomID]
	if limit >= 0 && len(log) > limit {
		log = log[len(log)-limit:]
	}

	messages := make([]*model.Message, 0, len(log))
	for _, m := range log {
		c := *m
		messages = append(messages, &c)
	}
	return messages, nil
}

func (s *MemoryStore) CreateEvent(ctx context.Context, event *model.WatchEvent) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	event.ID = uuid.New().String()
	event.CreatedAt = s.stamp()
	stored := *event
	s.events[event.ID] = &stored
	return nil
}

func (s *MemoryStore) GetEvent(ctx context.Context, id string) (*model.WatchEvent, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	event, ok := s.events[id]
	if !ok {
		return nil, ErrEventNotFound
	}
	c := *event
	return &c, nil
}

func (s *MemoryStore) ListUpcomingEvents(ctx context.Context, after time.Time, limit int) ([]*model.WatchEvent, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	events := []*model.WatchEvent{}
	for _, event := range s.events {
		if event.ScheduledAt.After(after) {
			c := *event
			events = append(events, &c)
		}
	}
	sort.Slice(events, func(i, j int) bool {
		if events[i].ScheduledAt.Equal(events[j].ScheduledAt) {
			return events[i].CreatedAt.Before(events[j].CreatedAt)
		}
		return events[i].ScheduledAt.Before(events[j].ScheduledAt)
	})
	return paginate(events, limit, 0), nil
}

func (s *MemoryStore) RecordEventStart(ctx context.Context, start *model.WatchEventStart) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.events[start.EventID]; !ok {
		return ErrEventNotFound
	}
	start.StartedAt = s.stamp()
	s.starts[start.EventID] = append(s.starts[start.EventID], *start)
	return nil
}

func (s *MemoryStore) ListEventStartCodes(ctx context.Context, eventID string) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	codes := []string{}
	for _, start := range s.starts[eventID] {
		codes = append(codes, start.RoomCode)
	}
	return codes, nil
}
