package realtime

import (
	"context"
	"sync"
)

// Feed carries change notifications between writers and live readers.
// A notification only says "topic changed"; readers refetch the state.
type Feed interface {
	Publish(ctx context.Context, topic string) error
	// Subscribe returns a channel that receives at least one value after
	// every change to topic. Bursts coalesce into a single value. The
	// channel is closed when ctx is done.
	Subscribe(ctx context.Context, topic string) (<-chan struct{}, error)
}

const eventsTopic = "events"

func RoomTopic(roomID string) string {
	return "room:" + roomID
}

func ParticipantsTopic(roomID string) string {
	return "participants:" + roomID
}

func MessagesTopic(roomID string) string {
	return "messages:" + roomID
}

// EventsTopic is the single topic for the upcoming watch event list
func EventsTopic() string {
	return eventsTopic
}

// notify performs a coalescing send on a capacity-1 channel
func notify(ch chan struct{}) {
	select {
	case ch <- struct{}{}:
	default:
	}
}

// LocalFeed is an in-process Feed for a single instance.
type LocalFeed struct {
	mu     sync.RWMutex
	topics map[string]map[chan struct{}]struct{}
}

func NewLocalFeed() *LocalFeed {
	return &LocalFeed{
		topics: make(map[string]map[chan struct{}]struct{}),
	}
}

func (f *LocalFeed) Publish(ctx context.Context, topic string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	f.mu.RLock()
	defer f.mu.RUnlock()

	for ch := range f.topics[topic] {
		notify(ch)
	}
	return nil
}

func (f *LocalFeed) Subscribe(ctx context.Context, topic string) (<-chan struct{}, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	ch := make(chan struct{}, 1)

	f.mu.Lock()
	subs, ok := f.topics[topic]
	if !ok {
		subs = make(map[chan struct{}]struct{})
		f.topics[topic] = subs
	}
	subs[ch] = struct{}{}
	f.mu.Unlock()

	go func() {
		<-ctx.Done()

		f.mu.Lock()
		delete(subs, ch)
		if len(subs) == 0 {
			delete(f.topics, topic)
		}
		f.mu.Unlock()

		close(ch)
	}()

	return ch, nil
}

// Subscribers returns the number of live subscriptions on topic
func (f *LocalFeed) Subscribers(topic string) int {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return len(f.topics[topic])
}
