package arbitrage

import (
	"math"
	"testing"
	"time"

	"ArbPull/internal/domain/models"
)

func makeGame(markets ...models.Market) models.Game {
	return models.Game{
		ID:           "game-1",
		SportKey:     "basketball_nba",
		CommenceTime: time.Now().Add(2 * time.Hour),
		HomeTeam:     "Lakers",
		AwayTeam:     "Celtics",
		Markets:      markets,
	}
}

func h2hMarket(quotes ...models.Quote) models.Market {
	return models.Market{
		GameID:   "game-1",
		Type:     models.MarketMoneyline,
		Outcomes: quotes,
	}
}

func TestEvaluateCrossBookArbitrage(t *testing.T) {
	// Book A prices the Lakers at -150, book B prices the Celtics at +160.
	// Implied sum is 0.6 + 1/2.6 = 0.98462, a genuine arbitrage.
	game := makeGame(h2hMarket(
		models.Quote{BookKey: "book_a", OutcomeName: "Lakers", Price: -150},
		models.Quote{BookKey: "book_a", OutcomeName: "Celtics", Price: 130},
		models.Quote{BookKey: "book_b", OutcomeName: "Lakers", Price: -170},
		models.Quote{BookKey: "book_b", OutcomeName: "Celtics", Price: 160},
	))

	engine := NewEngine(1000, 0.1)
	opps := engine.Evaluate(game, 0, 0)
	if len(opps) != 1 {
		t.Fatalf("expected 1 opportunity, got %d", len(opps))
	}

	opp := opps[0]
	if math.Abs(opp.ImpliedSum-0.98462) > 0.0001 {
		t.Errorf("implied sum = %f, want 0.98462", opp.ImpliedSum)
	}
	if math.Abs(opp.ProfitMargin-1.53846) > 0.0001 {
		t.Errorf("profit margin = %f, want 1.53846", opp.ProfitMargin)
	}
	if len(opp.Legs) != 2 {
		t.Fatalf("expected 2 legs, got %d", len(opp.Legs))
	}

	byOutcome := map[string]models.ArbitrageLeg{}
	for _, leg := range opp.Legs {
		byOutcome[leg.OutcomeName] = leg
	}
	if byOutcome["Lakers"].BookKey != "book_a" {
		t.Errorf("Lakers leg from %s, want book_a", byOutcome["Lakers"].BookKey)
	}
	if byOutcome["Celtics"].BookKey != "book_b" {
		t.Errorf("Celtics leg from %s, want book_b", byOutcome["Celtics"].BookKey)
	}

	// Stakes sum to the total and every leg pays out within a cent of
	// the same amount.
	stakeSum := 0.0
	for _, leg := range opp.Legs {
		stakeSum += leg.Stake
	}
	if math.Abs(stakeSum-1000) > 0.02 {
		t.Errorf("stakes sum to %f, want 1000", stakeSum)
	}
	if math.Abs(opp.Legs[0].Payout-opp.Legs[1].Payout) > 0.02 {
		t.Errorf("payouts differ: %f vs %f", opp.Legs[0].Payout, opp.Legs[1].Payout)
	}
	if opp.GuaranteedProfit <= 0 {
		t.Errorf("guaranteed profit = %f, want > 0", opp.GuaranteedProfit)
	}
	if !opp.IsArbitrage {
		t.Error("emitted opportunity not marked as arbitrage")
	}
}

func TestEvaluateSkipsOutrightMarkets(t *testing.T) {
	// The quotes look like a clean 2-leg arbitrage, but an outright field
	// is open-ended and must never be evaluated.
	game := makeGame(models.Market{
		GameID: "game-1",
		Type:   models.MarketOutright,
		Outcomes: []models.Quote{
			{BookKey: "book_a", OutcomeName: "Lakers", Price: -150},
			{BookKey: "book_b", OutcomeName: "Celtics", Price: 160},
		},
	})

	engine := NewEngine(1000, 0)
	if opps := engine.Evaluate(game, 0, 0); len(opps) != 0 {
		t.Fatalf("expected outright market to be skipped, got %d opportunities", len(opps))
	}
}

func TestEvaluateViggedMarketNoArbitrage(t *testing.T) {
	// Every book applies vig, so the best combination still sums above 1.
	game := makeGame(h2hMarket(
		models.Quote{BookKey: "book_a", OutcomeName: "Lakers", Price: -140},
		models.Quote{BookKey: "book_a", OutcomeName: "Celtics", Price: 120},
		models.Quote{BookKey: "book_b", OutcomeName: "Lakers", Price: -135},
		models.Quote{BookKey: "book_b", OutcomeName: "Celtics", Price: 115},
	))

	engine := NewEngine(1000, 0)
	if opps := engine.Evaluate(game, 0, 0); len(opps) != 0 {
		t.Fatalf("expected no opportunities, got %d", len(opps))
	}
}

func TestEvaluateMinMarginFilter(t *testing.T) {
	// Margin is about 1.54%, below a 2% threshold.
	game := makeGame(h2hMarket(
		models.Quote{BookKey: "book_a", OutcomeName: "Lakers", Price: -150},
		models.Quote{BookKey: "book_b", OutcomeName: "Celtics", Price: 160},
	))

	engine := NewEngine(1000, 2.0)
	if opps := engine.Evaluate(game, 0, 0); len(opps) != 0 {
		t.Fatalf("expected margin filter to drop opportunity, got %d", len(opps))
	}
	if opps := engine.Evaluate(game, 0, 1.0); len(opps) != 1 {
		t.Fatal("expected opportunity with lowered threshold")
	}
}

func TestEvaluateStakeScaling(t *testing.T) {
	game := makeGame(h2hMarket(
		models.Quote{BookKey: "book_a", OutcomeName: "Lakers", Price: -150},
		models.Quote{BookKey: "book_b", OutcomeName: "Celtics", Price: 160},
	))

	engine := NewEngine(1000, 0.1)
	small := engine.Evaluate(game, 100, 0)[0]
	large := engine.Evaluate(game, 10000, 0)[0]

	if math.Abs(large.GuaranteedProfit-small.GuaranteedProfit*100) > 0.5 {
		t.Errorf("profit does not scale with stake: %f vs %f", small.GuaranteedProfit, large.GuaranteedProfit)
	}
	for i := range small.Legs {
		ratio := large.Legs[i].Stake / small.Legs[i].Stake
		if math.Abs(ratio-100) > 0.1 {
			t.Errorf("leg %d stake ratio = %f, want 100", i, ratio)
		}
	}
}

func TestEvaluateSkipsDrawRiskMarkets(t *testing.T) {
	market := h2hMarket(
		models.Quote{BookKey: "book_a", OutcomeName: "Lakers", Price: -150},
		models.Quote{BookKey: "book_b", OutcomeName: "Celtics", Price: 160},
	)
	market.HasDrawRisk = true

	engine := NewEngine(1000, 0.1)
	if opps := engine.Evaluate(makeGame(market), 0, 0); len(opps) != 0 {
		t.Fatal("expected draw-risk market to be skipped")
	}
}

func TestEvaluateSkipsThreeWayMarkets(t *testing.T) {
	game := makeGame(h2hMarket(
		models.Quote{BookKey: "book_a", OutcomeName: "Arsenal", Price: 200},
		models.Quote{BookKey: "book_b", OutcomeName: "Chelsea", Price: 250},
		models.Quote{BookKey: "book_c", OutcomeName: "Draw", Price: 300},
	))

	engine := NewEngine(1000, 0.1)
	if opps := engine.Evaluate(game, 0, 0); len(opps) != 0 {
		t.Fatal("expected three-outcome market to be skipped")
	}
}

func TestEvaluateMissingOutcomeCoverage(t *testing.T) {
	// Only one side of the market is quoted anywhere.
	game := makeGame(h2hMarket(
		models.Quote{BookKey: "book_a", OutcomeName: "Lakers", Price: -150},
	))

	engine := NewEngine(1000, 0.1)
	if opps := engine.Evaluate(game, 0, 0); len(opps) != 0 {
		t.Fatal("expected single-outcome market to be skipped")
	}
}

func TestBestLegTieGoesToFirstBookmaker(t *testing.T) {
	market := h2hMarket(
		models.Quote{BookKey: "book_a", OutcomeName: "Lakers", Price: 160},
		models.Quote{BookKey: "book_b", OutcomeName: "Lakers", Price: 160},
	)

	leg, ok := bestLeg(market, "Lakers")
	if !ok {
		t.Fatal("expected a leg")
	}
	if leg.BookKey != "book_a" {
		t.Errorf("tie resolved to %s, want book_a", leg.BookKey)
	}
}

func TestEvaluateBadPriceIgnored(t *testing.T) {
	// A zero price cannot be converted and must not poison the market.
	game := makeGame(h2hMarket(
		models.Quote{BookKey: "book_a", OutcomeName: "Lakers", Price: 0},
		models.Quote{BookKey: "book_b", OutcomeName: "Lakers", Price: -150},
		models.Quote{BookKey: "book_b", OutcomeName: "Celtics", Price: 160},
	))

	engine := NewEngine(1000, 0.1)
	opps := engine.Evaluate(game, 0, 0)
	if len(opps) != 1 {
		t.Fatalf("expected 1 opportunity, got %d", len(opps))
	}
	for _, leg := range opps[0].Legs {
		if leg.Price == 0 {
			t.Fatal("zero-price quote selected as best leg")
		}
	}
}
