package usecase

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"ArbPull/internal/domain/models"
	"ArbPull/internal/service/normalize"
	"ArbPull/internal/service/quota"
	"ArbPull/pkg/cache"
)

type fakeProvider struct {
	mu         sync.Mutex
	oddsCalls  atomic.Int64
	sportCalls atomic.Int64
	eventCalls atomic.Int64
	delay      time.Duration
	err        error
	quota      *models.ProviderQuota
	events     []models.EventPayload
}

func (p *fakeProvider) FetchSports(ctx context.Context, allSports bool) ([]models.SportPayload, error) {
	p.sportCalls.Add(1)
	if p.err != nil {
		return nil, p.err
	}
	return []models.SportPayload{{Key: "basketball_nba", Title: "NBA", Active: true}}, nil
}

func (p *fakeProvider) FetchOdds(ctx context.Context, sportKey string) ([]models.EventPayload, error) {
	p.oddsCalls.Add(1)
	if p.delay > 0 {
		select {
		case <-time.After(p.delay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if p.err != nil {
		return nil, p.err
	}
	return p.events, nil
}

func (p *fakeProvider) FetchEvents(ctx context.Context, sportKey string) ([]models.EventPayload, error) {
	p.eventCalls.Add(1)
	if p.err != nil {
		return nil, p.err
	}
	events := make([]models.EventPayload, len(p.events))
	copy(events, p.events)
	for i := range events {
		events[i].Bookmakers = nil
	}
	return events, nil
}

func (p *fakeProvider) LastQuota() (models.ProviderQuota, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.quota == nil {
		return models.ProviderQuota{}, false
	}
	return *p.quota, true
}

func (p *fakeProvider) setQuota(q models.ProviderQuota) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.quota = &q
}

func testEvents() []models.EventPayload {
	return []models.EventPayload{{
		ID:           "ev-1",
		CommenceTime: "2026-09-01T19:00:00Z",
		HomeTeam:     "Lakers",
		AwayTeam:     "Celtics",
		Bookmakers: []models.BookmakerPayload{{
			Key: "book_a",
			Markets: []models.MarketPayload{{
				Key: "h2h",
				Outcomes: []models.OutcomePayload{
					{Name: "Lakers", Price: -150},
					{Name: "Celtics", Price: 130},
				},
			}},
		}},
	}}
}

func newTestCoordinator(t *testing.T, p *fakeProvider, maxRequests int) (*Coordinator, cache.Service) {
	t.Helper()

	logger := testLogger(t)
	mem := cache.NewMemoryCache()
	t.Cleanup(func() { _ = mem.Close() })

	classes := cache.Classes{
		Metadata: time.Hour,
		GameList: 5 * time.Minute,
		LiveOdds: 90 * time.Second,
	}
	gov := quota.NewGovernor(maxRequests, time.Hour, logger, nil)
	norm := normalize.New(logger)

	return NewCoordinator(p, mem, classes, gov, norm, noopMetrics{}, logger, "us", "h2h"), mem
}

func TestFetchSportOddsCachesResult(t *testing.T) {
	p := &fakeProvider{events: testEvents()}
	c, _ := newTestCoordinator(t, p, 10)

	games, stats, err := c.FetchSportOdds(context.Background(), "basketball_nba", false)
	if err != nil {
		t.Fatalf("fetch: %v", err)
	}
	if len(games) != 1 {
		t.Fatalf("games = %d, want 1", len(games))
	}
	if stats != (models.DropStats{}) {
		t.Fatalf("unexpected drops: %+v", stats)
	}

	// Second fetch is a cache hit, no provider call and no quota spend.
	games, _, err = c.FetchSportOdds(context.Background(), "basketball_nba", false)
	if err != nil {
		t.Fatalf("cached fetch: %v", err)
	}
	if len(games) != 1 {
		t.Fatalf("cached games = %d, want 1", len(games))
	}
	if got := p.oddsCalls.Load(); got != 1 {
		t.Fatalf("provider calls = %d, want 1", got)
	}
	if st := c.QuotaState(); st.Used != 1 {
		t.Fatalf("quota used = %d, want 1", st.Used)
	}
}

func TestFetchSportOddsForceRefreshBypassesCache(t *testing.T) {
	p := &fakeProvider{events: testEvents()}
	c, _ := newTestCoordinator(t, p, 10)

	if _, _, err := c.FetchSportOdds(context.Background(), "basketball_nba", false); err != nil {
		t.Fatalf("fetch: %v", err)
	}
	if _, _, err := c.FetchSportOdds(context.Background(), "basketball_nba", true); err != nil {
		t.Fatalf("force refresh: %v", err)
	}
	if got := p.oddsCalls.Load(); got != 2 {
		t.Fatalf("provider calls = %d, want 2", got)
	}
}

func TestFetchSportOddsCollapsesConcurrentCalls(t *testing.T) {
	p := &fakeProvider{events: testEvents(), delay: 300 * time.Millisecond}
	c, _ := newTestCoordinator(t, p, 10)

	const callers = 8
	var wg sync.WaitGroup
	start := make(chan struct{})
	errs := make([]error, callers)

	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			<-start
			// force refresh so every caller skips the cache and
			// lands on the in-flight call
			_, _, errs[i] = c.FetchSportOdds(context.Background(), "basketball_nba", true)
		}(i)
	}
	close(start)
	wg.Wait()

	for i, err := range errs {
		if err != nil {
			t.Fatalf("caller %d: %v", i, err)
		}
	}
	if got := p.oddsCalls.Load(); got != 1 {
		t.Fatalf("provider calls = %d, want 1 collapsed call", got)
	}
	if st := c.QuotaState(); st.Used != 1 {
		t.Fatalf("quota used = %d, want 1", st.Used)
	}
}

func TestFetchSportOddsQuotaExhausted(t *testing.T) {
	p := &fakeProvider{events: testEvents()}
	c, _ := newTestCoordinator(t, p, 1)

	if _, _, err := c.FetchSportOdds(context.Background(), "basketball_nba", false); err != nil {
		t.Fatalf("first fetch: %v", err)
	}
	_, _, err := c.FetchSportOdds(context.Background(), "other_sport", false)
	if !IsQuotaExhausted(err) {
		t.Fatalf("expected quota exhausted, got %v", err)
	}
	if got := p.oddsCalls.Load(); got != 1 {
		t.Fatalf("provider calls = %d, exhausted fetch must not reach provider", got)
	}
}

func TestFetchSportOddsReconcilesProviderQuota(t *testing.T) {
	p := &fakeProvider{events: testEvents()}
	p.setQuota(models.ProviderQuota{RequestsRemaining: 42, RequestsUsed: 458, ReportedAt: time.Now()})
	c, _ := newTestCoordinator(t, p, 500)

	if _, _, err := c.FetchSportOdds(context.Background(), "basketball_nba", false); err != nil {
		t.Fatalf("fetch: %v", err)
	}

	st := c.QuotaState()
	if st.Mode != models.QuotaAuthoritative {
		t.Fatalf("mode = %s, want authoritative", st.Mode)
	}
	if st.Remaining != 42 {
		t.Fatalf("remaining = %d, want 42", st.Remaining)
	}
}

func TestFetchSportOddsProviderError(t *testing.T) {
	wantErr := errors.New("upstream down")
	p := &fakeProvider{err: wantErr}
	c, _ := newTestCoordinator(t, p, 10)

	_, _, err := c.FetchSportOdds(context.Background(), "basketball_nba", false)
	if !errors.Is(err, wantErr) {
		t.Fatalf("expected wrapped provider error, got %v", err)
	}

	// Errors are not cached; the next call goes upstream again.
	_, _, err = c.FetchSportOdds(context.Background(), "basketball_nba", false)
	if !errors.Is(err, wantErr) {
		t.Fatalf("expected error on retry, got %v", err)
	}
	if got := p.oddsCalls.Load(); got != 2 {
		t.Fatalf("provider calls = %d, want 2", got)
	}
}

func TestFetchErrorRefundsReservation(t *testing.T) {
	p := &fakeProvider{err: errors.New("upstream down")}
	c, _ := newTestCoordinator(t, p, 2)

	// With a 2-request budget, three straight failures must all reach the
	// provider: each failed fetch hands its reservation back.
	for i := 0; i < 3; i++ {
		_, _, err := c.FetchSportOdds(context.Background(), "basketball_nba", false)
		if err == nil {
			t.Fatalf("fetch %d: expected provider error", i)
		}
		if IsQuotaExhausted(err) {
			t.Fatalf("fetch %d exhausted the budget, refund missing", i)
		}
	}

	if got := c.QuotaState().Remaining; got != 2 {
		t.Errorf("remaining = %d, failed fetches should not spend quota", got)
	}
	if got := p.oddsCalls.Load(); got != 3 {
		t.Errorf("provider calls = %d, want 3", got)
	}
}

func TestFetchGamesCached(t *testing.T) {
	p := &fakeProvider{events: testEvents()}
	c, _ := newTestCoordinator(t, p, 10)

	games, err := c.FetchGames(context.Background(), "basketball_nba")
	if err != nil {
		t.Fatalf("fetch games: %v", err)
	}
	if len(games) != 1 {
		t.Fatalf("games = %d, want 1", len(games))
	}
	if games[0].HomeTeam != "Lakers" || len(games[0].Markets) != 0 {
		t.Fatalf("unexpected game: %+v", games[0])
	}

	if _, err := c.FetchGames(context.Background(), "basketball_nba"); err != nil {
		t.Fatalf("cached fetch games: %v", err)
	}
	if got := p.eventCalls.Load(); got != 1 {
		t.Fatalf("provider calls = %d, want 1", got)
	}
	if st := c.QuotaState(); st.Used != 1 {
		t.Fatalf("quota used = %d, want 1", st.Used)
	}
}

func TestFetchSportsCached(t *testing.T) {
	p := &fakeProvider{}
	c, _ := newTestCoordinator(t, p, 10)

	sports, err := c.FetchSports(context.Background())
	if err != nil {
		t.Fatalf("fetch sports: %v", err)
	}
	if len(sports) != 1 || sports[0].Key != "basketball_nba" {
		t.Fatalf("unexpected catalogue: %+v", sports)
	}

	if _, err := c.FetchSports(context.Background()); err != nil {
		t.Fatalf("cached fetch sports: %v", err)
	}
	if got := p.sportCalls.Load(); got != 1 {
		t.Fatalf("provider calls = %d, want 1", got)
	}
}
