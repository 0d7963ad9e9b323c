package normalize

import (
	"testing"
	"time"

	"ArbPull/internal/domain/models"
	applogger "ArbPull/pkg/logger"
)

func testLogger(t *testing.T) *applogger.Logger {
	t.Helper()
	l, err := applogger.New(&applogger.Config{Level: "error", Format: "json", Output: "stderr"})
	if err != nil {
		t.Fatalf("logger: %v", err)
	}
	return l
}

func ptr(f float64) *float64 { return &f }

func h2hEvent() models.EventPayload {
	return models.EventPayload{
		ID:           "ev-1",
		CommenceTime: "2026-09-01T19:00:00Z",
		HomeTeam:     "Lakers",
		AwayTeam:     "Celtics",
		Bookmakers: []models.BookmakerPayload{
			{
				Key: "book_a",
				Markets: []models.MarketPayload{{
					Key: "h2h",
					Outcomes: []models.OutcomePayload{
						{Name: "Lakers", Price: -150},
						{Name: "Celtics", Price: 130},
					},
				}},
			},
			{
				Key: "book_b",
				Markets: []models.MarketPayload{{
					Key: "h2h",
					Outcomes: []models.OutcomePayload{
						{Name: "Lakers", Price: -170},
						{Name: "Celtics", Price: 160},
					},
				}},
			},
		},
	}
}

func TestNormalizeCombinesBookmakers(t *testing.T) {
	n := New(testLogger(t))

	games, stats := n.Normalize("basketball_nba", []models.EventPayload{h2hEvent()})
	if stats != (models.DropStats{}) {
		t.Fatalf("unexpected drops: %+v", stats)
	}
	if len(games) != 1 {
		t.Fatalf("expected 1 game, got %d", len(games))
	}

	game := games[0]
	if game.SportKey != "basketball_nba" {
		t.Errorf("sport key = %s", game.SportKey)
	}
	if game.CommenceTime.IsZero() {
		t.Error("commence time not parsed")
	}
	if len(game.Markets) != 1 {
		t.Fatalf("expected 1 combined market, got %d", len(game.Markets))
	}

	market := game.Markets[0]
	if market.Type != models.MarketMoneyline {
		t.Errorf("market type = %s", market.Type)
	}
	if len(market.Outcomes) != 4 {
		t.Fatalf("expected 4 quotes across books, got %d", len(market.Outcomes))
	}

	books := map[string]bool{}
	for _, q := range market.Outcomes {
		books[q.BookKey] = true
	}
	if !books["book_a"] || !books["book_b"] {
		t.Errorf("quotes missing a bookmaker: %v", books)
	}
}

func TestNormalizeFlagsDrawRisk(t *testing.T) {
	ev := h2hEvent()
	ev.Bookmakers[0].Markets[0].Outcomes = append(ev.Bookmakers[0].Markets[0].Outcomes,
		models.OutcomePayload{Name: "Draw", Price: 300})

	n := New(testLogger(t))
	games, _ := n.Normalize("soccer_epl", []models.EventPayload{ev})
	if len(games) != 1 {
		t.Fatalf("expected 1 game, got %d", len(games))
	}
	if !games[0].HasDrawRisk {
		t.Error("game not flagged with draw risk")
	}
	if !games[0].Markets[0].HasDrawRisk {
		t.Error("market not flagged with draw risk")
	}
}

func TestNormalizeGroupsSpreadsByLine(t *testing.T) {
	ev := models.EventPayload{
		ID:       "ev-2",
		HomeTeam: "Lakers",
		AwayTeam: "Celtics",
		Bookmakers: []models.BookmakerPayload{
			{
				Key: "book_a",
				Markets: []models.MarketPayload{{
					Key: "spreads",
					Outcomes: []models.OutcomePayload{
						{Name: "Lakers", Price: -110, Point: ptr(-3.5)},
						{Name: "Celtics", Price: -110, Point: ptr(3.5)},
					},
				}},
			},
			{
				Key: "book_b",
				Markets: []models.MarketPayload{{
					Key: "spreads",
					Outcomes: []models.OutcomePayload{
						{Name: "Lakers", Price: -105, Point: ptr(-4.5)},
						{Name: "Celtics", Price: -115, Point: ptr(4.5)},
					},
				}},
			},
		},
	}

	n := New(testLogger(t))
	games, stats := n.Normalize("basketball_nba", []models.EventPayload{ev})
	if stats != (models.DropStats{}) {
		t.Fatalf("unexpected drops: %+v", stats)
	}
	if len(games) != 1 {
		t.Fatalf("expected 1 game, got %d", len(games))
	}

	// Different lines must not be mixed into one market.
	if len(games[0].Markets) != 2 {
		t.Fatalf("expected 2 spread markets, got %d", len(games[0].Markets))
	}
	for _, m := range games[0].Markets {
		if m.Line == nil {
			t.Fatal("spread market without line")
		}
		if *m.Line != 3.5 && *m.Line != 4.5 {
			t.Errorf("unexpected line %f", *m.Line)
		}
		if len(m.Outcomes) != 2 {
			t.Errorf("line %f has %d quotes, want 2", *m.Line, len(m.Outcomes))
		}
	}
}

func TestNormalizeDropsMissingTeams(t *testing.T) {
	ev := h2hEvent()
	ev.AwayTeam = ""

	n := New(testLogger(t))
	games, stats := n.Normalize("basketball_nba", []models.EventPayload{ev})
	if len(games) != 0 {
		t.Fatal("expected event to be dropped")
	}
	if stats.MissingTeams != 1 {
		t.Fatalf("missing teams = %d, want 1", stats.MissingTeams)
	}
}

func TestNormalizeDropsBadPrices(t *testing.T) {
	ev := h2hEvent()
	ev.Bookmakers[0].Markets[0].Outcomes[0].Price = 0

	n := New(testLogger(t))
	games, stats := n.Normalize("basketball_nba", []models.EventPayload{ev})
	if stats.BadPrice != 1 {
		t.Fatalf("bad price = %d, want 1", stats.BadPrice)
	}
	if len(games) != 1 {
		t.Fatal("remaining quotes should still produce a game")
	}
	if len(games[0].Markets[0].Outcomes) != 3 {
		t.Fatalf("expected 3 surviving quotes, got %d", len(games[0].Markets[0].Outcomes))
	}
}

func TestNormalizeDropsSpreadWithoutPoint(t *testing.T) {
	ev := models.EventPayload{
		ID:       "ev-3",
		HomeTeam: "Lakers",
		AwayTeam: "Celtics",
		Bookmakers: []models.BookmakerPayload{{
			Key: "book_a",
			Markets: []models.MarketPayload{{
				Key: "totals",
				Outcomes: []models.OutcomePayload{
					{Name: "Over", Price: -110},
					{Name: "Under", Price: -110, Point: ptr(215.5)},
				},
			}},
		}},
	}

	n := New(testLogger(t))
	games, stats := n.Normalize("basketball_nba", []models.EventPayload{ev})
	if stats.MismatchedLines != 1 {
		t.Fatalf("mismatched lines = %d, want 1", stats.MismatchedLines)
	}
	// The surviving single quote cannot form a two-sided market.
	if stats.TooFewOutcomes != 1 {
		t.Fatalf("too few outcomes = %d, want 1", stats.TooFewOutcomes)
	}
	if len(games) != 0 {
		t.Fatal("expected game with no usable markets to be dropped")
	}
}

func TestNormalizeDropsUnsupportedMarkets(t *testing.T) {
	ev := h2hEvent()
	ev.Bookmakers[0].Markets = append(ev.Bookmakers[0].Markets, models.MarketPayload{
		Key: "player_props",
		Outcomes: []models.OutcomePayload{
			{Name: "LeBron James", Price: 120},
		},
	})

	n := New(testLogger(t))
	games, stats := n.Normalize("basketball_nba", []models.EventPayload{ev})
	if stats.UnsupportedMarket != 1 {
		t.Fatalf("unsupported market = %d, want 1", stats.UnsupportedMarket)
	}
	if len(games) != 1 {
		t.Fatal("supported markets should survive")
	}
}

func TestNormalizeDropsSingleOutcomeMarkets(t *testing.T) {
	ev := models.EventPayload{
		ID:       "ev-4",
		HomeTeam: "Lakers",
		AwayTeam: "Celtics",
		Bookmakers: []models.BookmakerPayload{{
			Key: "book_a",
			Markets: []models.MarketPayload{{
				Key: "h2h",
				Outcomes: []models.OutcomePayload{
					{Name: "Lakers", Price: -150},
				},
			}},
		}},
	}

	n := New(testLogger(t))
	games, stats := n.Normalize("basketball_nba", []models.EventPayload{ev})
	if stats.TooFewOutcomes != 1 {
		t.Fatalf("too few outcomes = %d, want 1", stats.TooFewOutcomes)
	}
	if len(games) != 0 {
		t.Fatal("expected game to be dropped")
	}
}

func TestNormalizeParsesCommenceTime(t *testing.T) {
	ev := h2hEvent()
	n := New(testLogger(t))

	games, _ := n.Normalize("basketball_nba", []models.EventPayload{ev})
	want := time.Date(2026, 9, 1, 19, 0, 0, 0, time.UTC)
	if !games[0].CommenceTime.Equal(want) {
		t.Fatalf("commence time = %v, want %v", games[0].CommenceTime, want)
	}
}
