package usecase

import (
	"context"
	"errors"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"ArbPull/internal/domain/models"
	"ArbPull/internal/domain/repository"
	"ArbPull/internal/service/priority"
	"ArbPull/pkg/cache"
	applogger "ArbPull/pkg/logger"
)

// ErrScanInProgress means a pass is already running.
var ErrScanInProgress = errors.New("scanner: scan already in progress")

// scanLockTTL bounds how long a crashed instance can hold the shared
// scan lock.
const scanLockTTL = 10 * time.Minute

// Broadcaster pushes opportunities to live subscribers.
type Broadcaster interface {
	Broadcast(opps []models.ArbitrageOpportunity)
}

// ScanConfig holds scan pass settings.
type ScanConfig struct {
	Sports             []string
	Interval           time.Duration
	MaxConcurrency     int
	EarlyExitThreshold int
	TotalStake         float64
	MinProfitMargin    float64
	FetchTimeout       time.Duration
	BatchTimeout       time.Duration
}

// Scanner drives full scan passes: rank sports, fetch odds in bounded
// batches, hand games to the dispatcher, collect opportunities, publish.
type Scanner struct {
	coordinator *Coordinator
	dispatcher  *Dispatcher
	ranker      *priority.Ranker
	publisher   repository.Publisher
	broadcaster Broadcaster
	cache       cache.Service
	metrics     repository.Metrics
	logger      *applogger.Logger
	cfg         ScanConfig

	running atomic.Bool
	mu      sync.RWMutex
	latest  *models.ScanReport
}

// NewScanner creates a scanner. Publisher and broadcaster may be nil.
// The cache backs a cross-instance scan lock when it is shared.
func NewScanner(
	coordinator *Coordinator,
	dispatcher *Dispatcher,
	ranker *priority.Ranker,
	publisher repository.Publisher,
	broadcaster Broadcaster,
	cacheSvc cache.Service,
	metrics repository.Metrics,
	logger *applogger.Logger,
	cfg ScanConfig,
) *Scanner {
	if cfg.MaxConcurrency <= 0 {
		cfg.MaxConcurrency = 4
	}
	if cfg.FetchTimeout <= 0 {
		cfg.FetchTimeout = 30 * time.Second
	}
	if cfg.BatchTimeout <= 0 {
		cfg.BatchTimeout = 120 * time.Second
	}
	return &Scanner{
		coordinator: coordinator,
		dispatcher:  dispatcher,
		ranker:      ranker,
		publisher:   publisher,
		broadcaster: broadcaster,
		cache:       cacheSvc,
		metrics:     metrics,
		logger:      logger.With("scanner"),
		cfg:         cfg,
	}
}

// RunPass executes one full scan. Only one pass runs at a time.
func (s *Scanner) RunPass(ctx context.Context, req models.ScanRequest) (*models.ScanReport, error) {
	if !s.running.CompareAndSwap(false, true) {
		return nil, ErrScanInProgress
	}
	defer s.running.Store(false)

	// With a shared cache the lock also excludes passes on other instances.
	if s.cache != nil {
		ok, err := s.cache.TryLock(ctx, cache.ScanLockKey(), scanLockTTL)
		if err != nil {
			s.logger.Warn("scan lock unavailable", applogger.Error(err))
		} else if !ok {
			return nil, ErrScanInProgress
		} else {
			defer func() {
				if err := s.cache.Unlock(context.Background(), cache.ScanLockKey()); err != nil {
					s.logger.Warn("release scan lock", applogger.Error(err))
				}
			}()
		}
	}

	sports := req.Sports
	if len(sports) == 0 {
		sports = s.cfg.Sports
	}
	totalStake := req.TotalStake
	if totalStake <= 0 {
		totalStake = s.cfg.TotalStake
	}
	minMargin := req.MinMargin
	if minMargin <= 0 {
		minMargin = s.cfg.MinProfitMargin
	}

	ordered := s.ranker.SelectTopN(sports, len(sports))

	report := &models.ScanReport{
		StartedAt:     time.Now(),
		SportsScanned: make([]string, 0, len(ordered)),
	}

	quotaBefore := s.coordinator.QuotaState()
	var cacheBefore cache.Stats
	if s.cache != nil {
		cacheBefore = s.cache.Stats()
	}

	for start := 0; start < len(ordered); start += s.cfg.MaxConcurrency {
		end := start + s.cfg.MaxConcurrency
		if end > len(ordered) {
			end = len(ordered)
		}
		batch := ordered[start:end]

		stop := s.scanBatch(ctx, batch, totalStake, minMargin, req.ForceRefresh, report)
		if stop {
			break
		}

		// Enough games found; stop spending quota on further sports.
		if s.cfg.EarlyExitThreshold > 0 && report.GamesEvaluated >= s.cfg.EarlyExitThreshold {
			s.logger.Info("early exit threshold reached",
				applogger.Int("games", report.GamesEvaluated),
			)
			break
		}

		if ctx.Err() != nil {
			report.Partial = true
			break
		}
	}

	// Highest-margin first so consumers can act on the best ones.
	sort.SliceStable(report.Opportunities, func(i, j int) bool {
		return report.Opportunities[i].ProfitMargin > report.Opportunities[j].ProfitMargin
	})

	quotaAfter := s.coordinator.QuotaState()
	report.RequestsSpent = quotaSpent(quotaBefore, quotaAfter)
	if s.cache != nil {
		report.CacheHits = int(s.cache.Stats().Hits - cacheBefore.Hits)
	}
	report.FinishedAt = time.Now()

	s.publish(ctx, report)

	s.mu.Lock()
	s.latest = report
	s.mu.Unlock()

	s.logger.Info("scan pass finished",
		applogger.Int("sports", len(report.SportsScanned)),
		applogger.Int("games", report.GamesEvaluated),
		applogger.Int("dropped", report.Dropped.Games()),
		applogger.Int("opportunities", len(report.Opportunities)),
		applogger.Bool("partial", report.Partial),
		applogger.Duration("took", report.FinishedAt.Sub(report.StartedAt)),
	)

	return report, nil
}

// scanBatch fetches and evaluates one batch of sports concurrently.
// Returns true when the pass must stop (quota exhausted or ctx done).
func (s *Scanner) scanBatch(ctx context.Context, sports []string, totalStake, minMargin float64, forceRefresh bool, report *models.ScanReport) bool {
	type sportResult struct {
		sport     string
		games     int
		opps      []models.ArbitrageOpportunity
		dropped   models.DropStats
		err       error
		exhausted bool
	}

	results := make(chan sportResult, len(sports))
	var wg sync.WaitGroup

	for _, sport := range sports {
		wg.Add(1)
		go func(sport string) {
			defer wg.Done()

			fetchCtx, cancel := context.WithTimeout(ctx, s.cfg.FetchTimeout)
			defer cancel()

			games, dropped, err := s.coordinator.FetchSportOdds(fetchCtx, sport, forceRefresh)
			if err != nil {
				results <- sportResult{
					sport:     sport,
					err:       err,
					exhausted: IsQuotaExhausted(err),
				}
				return
			}

			opps := s.evaluateGames(ctx, games, totalStake, minMargin)
			results <- sportResult{
				sport:   sport,
				games:   len(games),
				opps:    opps,
				dropped: dropped,
			}
		}(sport)
	}

	wg.Wait()
	close(results)

	stop := false
	for res := range results {
		report.SportsScanned = append(report.SportsScanned, res.sport)
		if res.err != nil {
			report.Errors = append(report.Errors, res.sport+": "+res.err.Error())
			if res.exhausted {
				report.Partial = true
				stop = true
			} else {
				// Exhaustion says nothing about the sport itself, so
				// only real fetch failures lower its priority.
				s.ranker.Record(res.sport, false)
			}
			continue
		}

		report.GamesEvaluated += res.games
		report.Dropped.Add(res.dropped)
		report.Opportunities = append(report.Opportunities, res.opps...)

		s.ranker.Record(res.sport, true)
		s.metrics.RecordOpportunities(res.sport, len(res.opps))
	}

	return stop
}

// evaluateGames feeds games to the dispatcher and gathers the results.
// The batch timeout bounds the whole fan-in even when the queue backs up
// behind units from other sports.
func (s *Scanner) evaluateGames(ctx context.Context, games []models.Game, totalStake, minMargin float64) []models.ArbitrageOpportunity {
	ctx, cancel := context.WithTimeout(ctx, s.cfg.BatchTimeout)
	defer cancel()

	handles := make([]*Handle, 0, len(games))
	var opps []models.ArbitrageOpportunity

	for _, game := range games {
		h, err := s.dispatcher.Submit(models.CalculationUnit{
			Game:       game,
			TotalStake: totalStake,
			MinMargin:  minMargin,
			EnqueuedAt: time.Now(),
		})
		if err != nil {
			s.logger.Warn("submit unit",
				applogger.String("game", game.ID),
				applogger.Error(err),
			)
			continue
		}
		handles = append(handles, h)
	}

	for _, h := range handles {
		select {
		case result := <-h.Done():
			if result.State == models.UnitCompleted {
				opps = append(opps, result.Opportunities...)
			} else if result.Err != nil {
				s.logger.Warn("unit did not complete",
					applogger.String("game", result.GameID),
					applogger.String("state", result.State.String()),
					applogger.Error(result.Err),
				)
			}
		case <-ctx.Done():
			h.Cancel()
			<-h.Done()
		}
	}

	return opps
}

func (s *Scanner) publish(ctx context.Context, report *models.ScanReport) {
	if len(report.Opportunities) == 0 {
		return
	}

	if s.publisher != nil {
		if err := s.publisher.PublishOpportunities(ctx, report.Opportunities); err != nil {
			s.metrics.RecordError("publish")
			s.logger.Error("publish opportunities", applogger.Error(err))
		}
	}

	if s.broadcaster != nil {
		s.broadcaster.Broadcast(report.Opportunities)
	}
}

// RunLoop runs scheduled passes until ctx is cancelled. The first pass
// starts immediately.
func (s *Scanner) RunLoop(ctx context.Context) {
	if s.cfg.Interval <= 0 {
		s.logger.Info("scheduled scanning disabled")
		return
	}

	ticker := time.NewTicker(s.cfg.Interval)
	defer ticker.Stop()

	for {
		if _, err := s.RunPass(ctx, models.ScanRequest{}); err != nil && !errors.Is(err, ErrScanInProgress) {
			s.logger.Error("scheduled scan failed", applogger.Error(err))
		}

		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

// Latest returns the most recent report, or nil before the first pass.
func (s *Scanner) Latest() *models.ScanReport {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.latest
}

// Running reports whether a pass is currently active.
func (s *Scanner) Running() bool {
	return s.running.Load()
}

// PoolStats exposes dispatcher counters for status reporting.
func (s *Scanner) PoolStats() models.PoolStats {
	return s.dispatcher.Stats()
}

func quotaSpent(before, after models.QuotaState) int {
	spent := after.Used - before.Used
	if spent < 0 {
		return 0
	}
	return spent
}
