package cache

import (
	"context"
	"errors"
	"time"
)

var (
	ErrCacheMiss = errors.New("cache: key not found")
)

// Class names one of the TTL tiers responses are cached under.
type Class string

const (
	ClassMetadata Class = "metadata" // sports catalogue, slow-moving
	ClassGameList Class = "gamelist" // upcoming games per sport
	ClassLiveOdds Class = "liveodds" // prices, shortest-lived
)

// Classes maps each tier to its configured TTL.
type Classes struct {
	Metadata time.Duration
	GameList time.Duration
	LiveOdds time.Duration
}

// For returns the TTL for a class, defaulting to the live-odds tier.
func (c Classes) For(class Class) time.Duration {
	switch class {
	case ClassMetadata:
		return c.Metadata
	case ClassGameList:
		return c.GameList
	default:
		return c.LiveOdds
	}
}

// Stats is a point-in-time view of cache effectiveness.
type Stats struct {
	Hits    int64 `json:"hits"`
	Misses  int64 `json:"misses"`
	Entries int   `json:"entries"`
}

// HitRatio returns hits/(hits+misses), or 0 when nothing was asked yet.
func (s Stats) HitRatio() float64 {
	total := s.Hits + s.Misses
	if total == 0 {
		return 0
	}
	return float64(s.Hits) / float64(total)
}

// Service defines cache operations interface.
type Service interface {
	Set(ctx context.Context, key string, value interface{}, expiration time.Duration) error
	Get(ctx context.Context, key string, dest interface{}) error
	Delete(ctx context.Context, keys ...string) error
	Clear(ctx context.Context) error
	Exists(ctx context.Context, keys ...string) (bool, error)
	TryLock(ctx context.Context, key string, ttl time.Duration) (bool, error)
	Unlock(ctx context.Context, key string) error
	Stats() Stats
	Close() error
}
