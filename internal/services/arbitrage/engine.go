package arbitrage

import (
	"time"

	"ArbPull/internal/domain/models"
	"ArbPull/pkg/oddsmath"
)

// Engine detects arbitrage opportunities in normalized markets. It is pure
// computation with no I/O, safe for concurrent use.
type Engine struct {
	totalStake float64
	minMargin  float64
}

// NewEngine creates an engine with default stake and margin threshold.
// Both can be overridden per evaluation.
func NewEngine(totalStake, minMargin float64) *Engine {
	if totalStake <= 0 {
		totalStake = 1000
	}
	return &Engine{
		totalStake: totalStake,
		minMargin:  minMargin,
	}
}

// Evaluate scans every market of a game. Markets with draw risk or more
// than two distinct outcomes are skipped: a three-way book needs all three
// legs covered, and partial coverage is not an arbitrage. Outrights are
// skipped too, even with two listed outcomes the field is open-ended.
func (e *Engine) Evaluate(game models.Game, totalStake, minMargin float64) []models.ArbitrageOpportunity {
	if totalStake <= 0 {
		totalStake = e.totalStake
	}
	if minMargin <= 0 {
		minMargin = e.minMargin
	}

	var opps []models.ArbitrageOpportunity
	for _, market := range game.Markets {
		if market.HasDrawRisk || market.Type == models.MarketOutright {
			continue
		}
		names := market.OutcomeNames()
		if len(names) != 2 {
			continue
		}

		opp, ok := evaluateMarket(market, names, totalStake)
		if !ok || opp.ProfitMargin < minMargin {
			continue
		}

		opp.GameID = game.ID
		opp.SportKey = game.SportKey
		opp.HomeTeam = game.HomeTeam
		opp.AwayTeam = game.AwayTeam
		opp.CommenceTime = game.CommenceTime
		opp.DetectedAt = time.Now()
		opps = append(opps, opp)
	}
	return opps
}

// evaluateMarket picks the best-priced leg per outcome across bookmakers
// and checks whether the combination locks in a profit. It handles any
// number of outcomes; callers decide which markets qualify.
func evaluateMarket(market models.Market, names []string, totalStake float64) (models.ArbitrageOpportunity, bool) {
	legs := make([]models.ArbitrageLeg, 0, len(names))
	impliedSum := 0.0

	for _, name := range names {
		leg, ok := bestLeg(market, name)
		if !ok {
			return models.ArbitrageOpportunity{}, false
		}
		legs = append(legs, leg)
		impliedSum += leg.ImpliedProb
	}

	if impliedSum >= 1 {
		return models.ArbitrageOpportunity{}, false
	}

	for i := range legs {
		stake := oddsmath.RoundToCent(totalStake * legs[i].ImpliedProb / impliedSum)
		legs[i].Stake = stake
		legs[i].Payout = oddsmath.RoundToCent(stake * legs[i].Decimal)
	}

	return models.ArbitrageOpportunity{
		MarketType:       market.Type,
		Line:             market.Line,
		Legs:             legs,
		ImpliedSum:       impliedSum,
		IsArbitrage:      true,
		ProfitMargin:     (1 - impliedSum) * 100,
		TotalStake:       totalStake,
		GuaranteedProfit: oddsmath.RoundToCent(totalStake * (1/impliedSum - 1)),
	}, true
}

// bestLeg finds the quote with the lowest implied probability for one
// outcome. Ties go to the bookmaker encountered first.
func bestLeg(market models.Market, outcomeName string) (models.ArbitrageLeg, bool) {
	var best models.ArbitrageLeg
	found := false

	for _, q := range market.Outcomes {
		if q.OutcomeName != outcomeName {
			continue
		}
		decimal, err := oddsmath.AmericanToDecimal(q.Price)
		if err != nil {
			continue
		}
		implied, err := oddsmath.DecimalToImpliedProbability(decimal)
		if err != nil {
			continue
		}
		if !found || implied < best.ImpliedProb {
			best = models.ArbitrageLeg{
				BookKey:     q.BookKey,
				OutcomeName: q.OutcomeName,
				Price:       q.Price,
				Decimal:     decimal,
				ImpliedProb: implied,
			}
			found = true
		}
	}

	return best, found
}
