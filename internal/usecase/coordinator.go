package usecase

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"ArbPull/internal/domain/models"
	"ArbPull/internal/domain/repository"
	"ArbPull/internal/service/normalize"
	"ArbPull/internal/service/quota"
	"ArbPull/pkg/cache"
	applogger "ArbPull/pkg/logger"
	"ArbPull/pkg/util"
)

// Coordinator is the single gate in front of the odds provider. Every
// fetch goes through the cache first, then the quota governor, then the
// provider. Concurrent requests for the same key are collapsed into one
// upstream call.
type Coordinator struct {
	provider   repository.OddsProvider
	cache      cache.Service
	classes    cache.Classes
	governor   *quota.Governor
	normalizer *normalize.Normalizer
	metrics    repository.Metrics
	logger     *applogger.Logger

	regions string
	markets string

	mu       sync.Mutex
	inflight map[string]*inflightCall
}

type inflightCall struct {
	done  chan struct{}
	games []models.Game
	stats models.DropStats
	err   error
}

// NewCoordinator creates a request coordinator.
func NewCoordinator(
	provider repository.OddsProvider,
	cacheSvc cache.Service,
	classes cache.Classes,
	governor *quota.Governor,
	normalizer *normalize.Normalizer,
	metrics repository.Metrics,
	logger *applogger.Logger,
	regions, markets string,
) *Coordinator {
	return &Coordinator{
		provider:   provider,
		cache:      cacheSvc,
		classes:    classes,
		governor:   governor,
		normalizer: normalizer,
		metrics:    metrics,
		logger:     logger.With("coordinator"),
		regions:    regions,
		markets:    markets,
		inflight:   make(map[string]*inflightCall),
	}
}

// FetchSports returns the sports catalogue, cached under the metadata TTL.
func (c *Coordinator) FetchSports(ctx context.Context) ([]models.SportPayload, error) {
	key := cache.SportsKey(false)

	var cached []models.SportPayload
	if err := c.cache.Get(ctx, key, &cached); err == nil {
		c.metrics.RecordCacheOp(string(cache.ClassMetadata), "hit")
		return cached, nil
	}
	c.metrics.RecordCacheOp(string(cache.ClassMetadata), "miss")

	if err := c.governor.Reserve(1); err != nil {
		return nil, err
	}

	sports, err := c.provider.FetchSports(ctx, false)
	if err != nil {
		c.metrics.RecordError("fetch_sports")
		c.releaseReservation()
		return nil, fmt.Errorf("fetch sports: %w", err)
	}
	c.reconcileQuota()

	if err := c.cache.Set(ctx, key, sports, c.classes.For(cache.ClassMetadata)); err != nil {
		c.logger.Warn("cache sports catalogue", applogger.Error(err))
	}

	return sports, nil
}

// FetchGames returns the upcoming game list for one sport, without prices,
// cached under the game-list TTL.
func (c *Coordinator) FetchGames(ctx context.Context, sportKey string) ([]models.Game, error) {
	key := cache.GamesKey(sportKey)

	var cached []models.Game
	if err := c.cache.Get(ctx, key, &cached); err == nil {
		c.metrics.RecordCacheOp(string(cache.ClassGameList), "hit")
		return cached, nil
	}
	c.metrics.RecordCacheOp(string(cache.ClassGameList), "miss")

	if err := c.governor.Reserve(1); err != nil {
		return nil, err
	}

	events, err := c.provider.FetchEvents(ctx, sportKey)
	if err != nil {
		c.metrics.RecordError("fetch_events")
		c.releaseReservation()
		return nil, fmt.Errorf("fetch events: %w", err)
	}
	c.reconcileQuota()

	games := make([]models.Game, 0, len(events))
	for _, ev := range events {
		if ev.HomeTeam == "" || ev.AwayTeam == "" {
			continue
		}
		games = append(games, models.Game{
			ID:           ev.ID,
			SportKey:     sportKey,
			CommenceTime: util.ParseTimeDefault(ev.CommenceTime, time.Time{}),
			HomeTeam:     ev.HomeTeam,
			AwayTeam:     ev.AwayTeam,
		})
	}

	if err := c.cache.Set(ctx, key, games, c.classes.For(cache.ClassGameList)); err != nil {
		c.logger.Warn("cache game list",
			applogger.String("sport", sportKey),
			applogger.Error(err),
		)
	}

	return games, nil
}

// FetchSportOdds returns normalized games for one sport. Cache hits spend
// no budget; misses reserve exactly one request regardless of how many
// callers are waiting.
func (c *Coordinator) FetchSportOdds(ctx context.Context, sportKey string, forceRefresh bool) ([]models.Game, models.DropStats, error) {
	key := cache.OddsKey(sportKey, c.regions, c.markets)

	if forceRefresh {
		if err := c.cache.Delete(ctx, key); err != nil {
			c.logger.Warn("evict odds snapshot", applogger.Error(err))
		}
	} else {
		var cached []models.Game
		if err := c.cache.Get(ctx, key, &cached); err == nil {
			c.metrics.RecordCacheOp(string(cache.ClassLiveOdds), "hit")
			return cached, models.DropStats{}, nil
		}
		c.metrics.RecordCacheOp(string(cache.ClassLiveOdds), "miss")
	}

	// Collapse duplicate in-flight fetches down to one upstream call.
	c.mu.Lock()
	if call, ok := c.inflight[key]; ok {
		c.mu.Unlock()
		select {
		case <-call.done:
			return call.games, call.stats, call.err
		case <-ctx.Done():
			return nil, models.DropStats{}, ctx.Err()
		}
	}
	call := &inflightCall{done: make(chan struct{})}
	c.inflight[key] = call
	c.mu.Unlock()

	call.games, call.stats, call.err = c.fetchAndNormalize(ctx, sportKey, key)
	close(call.done)

	c.mu.Lock()
	delete(c.inflight, key)
	c.mu.Unlock()

	return call.games, call.stats, call.err
}

func (c *Coordinator) fetchAndNormalize(ctx context.Context, sportKey, key string) ([]models.Game, models.DropStats, error) {
	if err := c.governor.Reserve(1); err != nil {
		return nil, models.DropStats{}, err
	}

	start := time.Now()
	events, err := c.provider.FetchOdds(ctx, sportKey)
	c.metrics.ObserveLatency("fetch_odds", time.Since(start))
	if err != nil {
		c.metrics.RecordFetch(sportKey, "error")
		c.metrics.RecordError("fetch_odds")
		c.releaseReservation()
		return nil, models.DropStats{}, fmt.Errorf("fetch odds: %w", err)
	}
	c.metrics.RecordFetch(sportKey, "ok")
	c.reconcileQuota()

	games, stats := c.normalizer.Normalize(sportKey, events)
	c.recordDrops(stats)

	if err := c.cache.Set(ctx, key, games, c.classes.For(cache.ClassLiveOdds)); err != nil {
		c.logger.Warn("cache odds snapshot",
			applogger.String("sport", sportKey),
			applogger.Error(err),
		)
	}

	return games, stats, nil
}

// QuotaState exposes the governor's current view for status reporting.
func (c *Coordinator) QuotaState() models.QuotaState {
	return c.governor.State()
}

// IsQuotaExhausted reports whether err means the budget is spent.
func IsQuotaExhausted(err error) bool {
	return errors.Is(err, quota.ErrQuotaExhausted)
}

func (c *Coordinator) reconcileQuota() {
	if q, ok := c.provider.LastQuota(); ok {
		c.governor.Reconcile(q)
	}
}

// releaseReservation hands a failed fetch's reservation back. When the
// provider returned an error body its headers still carry the true count,
// so reconcile first; the refund then only matters for requests that never
// reached the provider at all.
func (c *Coordinator) releaseReservation() {
	c.reconcileQuota()
	c.governor.Refund(1)
}

func (c *Coordinator) recordDrops(stats models.DropStats) {
	c.metrics.RecordDroppedGames("missing_teams", stats.MissingTeams)
	c.metrics.RecordDroppedGames("too_few_outcomes", stats.TooFewOutcomes)
	c.metrics.RecordDroppedGames("bad_price", stats.BadPrice)
	c.metrics.RecordDroppedGames("mismatched_lines", stats.MismatchedLines)
	c.metrics.RecordDroppedGames("unsupported_market", stats.UnsupportedMarket)
}
