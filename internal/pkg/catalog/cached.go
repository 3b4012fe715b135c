package catalog

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/go-demo/watchroom/internal/pkg/cache"
	"go.uber.org/zap"
)

// JSONCache is the part of cache.Cache used for catalog entries
type JSONCache interface {
	GetJSON(ctx context.Context, key string, v interface{}) error
	SetJSON(ctx context.Context, key string, v interface{}, expiration time.Duration) error
}

// CachedLookup serves repeated lookups from Redis.
type CachedLookup struct {
	next   Lookup
	cache  JSONCache
	ttl    time.Duration
	logger *zap.Logger
}

func NewCachedLookup(next Lookup, c JSONCache, ttl time.Duration, logger *zap.Logger) *CachedLookup {
	return &CachedLookup{next: next, cache: c, ttl: ttl, logger: logger}
}

func (l *CachedLookup) Lookup(ctx context.Context, id int64) (*Item, error) {
	key := fmt.Sprintf(cache.KeyCatalogItem, id)

	var item Item
	err := l.cache.GetJSON(ctx, key, &item)
	if err == nil {
		return &item, nil
	}
	if !errors.Is(err, cache.ErrMiss) {
		l.logger.Warn("Catalog cache read failed", zap.Int64("item_id", id), zap.Error(err))
	}

	found, err := l.next.Lookup(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := l.cache.SetJSON(ctx, key, found, l.ttl); err != nil {
		l.logger.Warn("Catalog cache write failed", zap.Int64("item_id", id), zap.Error(err))
	}
	return found, nil
}
