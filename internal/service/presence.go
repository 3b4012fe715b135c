package service

import (
	"context"
	"time"

	"github.com/go-demo/watchroom/internal/model"
	"github.com/go-demo/watchroom/internal/pkg/metrics"
	"github.com/go-demo/watchroom/internal/realtime"
	"go.uber.org/zap"
)

// PresencePolicy decides who counts as currently in a room.
// A zero TTL disables expiry and only the active flag is consulted.
type PresencePolicy struct {
	TTL time.Duration
}

// IsPresent reports whether p is active and was seen within the TTL
func (p PresencePolicy) IsPresent(pt *model.Participant, now time.Time) bool {
	if !pt.IsActive {
		return false
	}
	return p.TTL <= 0 || now.Sub(pt.LastSeenAt) <= p.TTL
}

// FilterPresent keeps only present participants, preserving order
func (p PresencePolicy) FilterPresent(participants []*model.Participant, now time.Time) []*model.Participant {
	present := make([]*model.Participant, 0, len(participants))
	for _, pt := range participants {
		if p.IsPresent(pt, now) {
			present = append(present, pt)
		}
	}
	return present
}

// PresenceSweeper periodically marks participants that stopped sending
// heartbeats as inactive.
type PresenceSweeper struct {
	rooms    RoomStore
	feed     realtime.Feed
	policy   PresencePolicy
	interval time.Duration
	now      func() time.Time
	logger   *zap.Logger
}

func NewPresenceSweeper(rooms RoomStore, feed realtime.Feed, policy PresencePolicy, interval time.Duration, logger *zap.Logger) *PresenceSweeper {
	return &PresenceSweeper{
		rooms:    rooms,
		feed:     feed,
		policy:   policy,
		interval: interval,
		now:      time.Now,
		logger:   logger,
	}
}

// Run sweeps every interval until ctx is done
func (s *PresenceSweeper) Run(ctx context.Context) {
	if s.policy.TTL <= 0 || s.interval <= 0 {
		s.logger.Info("Presence sweeper disabled")
		return
	}

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	s.logger.Info("Presence sweeper started",
		zap.Duration("ttl", s.policy.TTL),
		zap.Duration("interval", s.interval),
	)

	for {
		select {
		case <-ctx.Done():
			s.logger.Info("Presence sweeper stopped")
			return
		case <-ticker.C:
			if _, err := s.SweepOnce(ctx); err != nil && ctx.Err() == nil {
				s.logger.Error("Presence sweep failed", zap.Error(err))
			}
		}
	}
}

// SweepOnce expires stale participants and returns how many were expired
func (s *PresenceSweeper) SweepOnce(ctx context.Context) (int, error) {
	cutoff := s.now().Add(-s.policy.TTL)

	expired, err := s.rooms.ExpireStaleParticipants(ctx, cutoff)
	if err != nil {
		return 0, err
	}

	total := 0
	for _, room := range expired {
		total += room.Expired
		for _, topic := range []string{realtime.ParticipantsTopic(room.RoomID), realtime.RoomTopic(room.RoomID)} {
			if err := s.feed.Publish(ctx, topic); err != nil {
				metrics.IncFeedPublishError()
				s.logger.Warn("Failed to publish presence change", zap.String("topic", topic), zap.Error(err))
			}
		}
	}

	if total > 0 {
		metrics.AddExpired(total)
		s.logger.Info("Expired stale participants",
			zap.Int("participants", total),
			zap.Int("rooms", len(expired)),
		)
	}
	return total, nil
}
