package normalize

import (
	"math"
	"strconv"
	"time"

	"ArbPull/internal/domain/models"
	applogger "ArbPull/pkg/logger"
	"ArbPull/pkg/util"
)

// rawMarketKeys maps provider market keys to normalized market types.
var rawMarketKeys = map[string]models.MarketType{
	"h2h":       models.MarketMoneyline,
	"spreads":   models.MarketSpread,
	"totals":    models.MarketTotal,
	"outrights": models.MarketOutright,
}

// Normalizer turns raw provider events into normalized games with
// cross-bookmaker combined markets. Bad records are dropped and counted,
// never fatal.
type Normalizer struct {
	logger *applogger.Logger
}

// New creates a Normalizer.
func New(logger *applogger.Logger) *Normalizer {
	return &Normalizer{logger: logger.With("normalize")}
}

// Normalize converts a batch of raw events for one sport.
func (n *Normalizer) Normalize(sportKey string, events []models.EventPayload) ([]models.Game, models.DropStats) {
	games := make([]models.Game, 0, len(events))
	var stats models.DropStats

	for _, ev := range events {
		game, st, ok := n.normalizeEvent(sportKey, ev)
		stats.Add(st)
		if ok {
			games = append(games, game)
		}
	}

	if stats != (models.DropStats{}) {
		n.logger.Debug("dropped records during normalization",
			applogger.String("sport", sportKey),
			applogger.Int("missing_teams", stats.MissingTeams),
			applogger.Int("too_few_outcomes", stats.TooFewOutcomes),
			applogger.Int("bad_price", stats.BadPrice),
			applogger.Int("mismatched_lines", stats.MismatchedLines),
			applogger.Int("unsupported_market", stats.UnsupportedMarket),
		)
	}

	return games, stats
}

func (n *Normalizer) normalizeEvent(sportKey string, ev models.EventPayload) (models.Game, models.DropStats, bool) {
	var stats models.DropStats

	if ev.HomeTeam == "" || ev.AwayTeam == "" {
		stats.MissingTeams++
		return models.Game{}, stats, false
	}

	// marketSlot groups quotes for one (type, line) across bookmakers.
	type marketSlot struct {
		mtype    models.MarketType
		line     *float64
		quotes   []models.Quote
		drawRisk bool
	}
	slots := make(map[string]*marketSlot)
	order := make([]string, 0, 4)

	for _, book := range ev.Bookmakers {
		for _, raw := range book.Markets {
			mtype, ok := rawMarketKeys[raw.Key]
			if !ok {
				stats.UnsupportedMarket++
				continue
			}

			for _, out := range raw.Outcomes {
				if out.Price == 0 {
					stats.BadPrice++
					continue
				}

				var line *float64
				if mtype == models.MarketSpread || mtype == models.MarketTotal {
					if out.Point == nil {
						stats.MismatchedLines++
						continue
					}
					l := math.Abs(*out.Point)
					line = &l
				}

				key := slotKey(mtype, line)
				slot, exists := slots[key]
				if !exists {
					slot = &marketSlot{mtype: mtype, line: line}
					slots[key] = slot
					order = append(order, key)
				}

				// The canonical moneyline keeps the two team legs only;
				// a third outcome marks the market as draw-prone.
				if mtype == models.MarketMoneyline && isDrawOutcome(out.Name, ev) {
					slot.drawRisk = true
					continue
				}

				slot.quotes = append(slot.quotes, models.Quote{
					BookKey:     book.Key,
					OutcomeName: out.Name,
					Price:       out.Price,
					Point:       out.Point,
				})
			}
		}
	}

	game := models.Game{
		ID:           ev.ID,
		SportKey:     sportKey,
		CommenceTime: util.ParseTimeDefault(ev.CommenceTime, time.Time{}),
		HomeTeam:     ev.HomeTeam,
		AwayTeam:     ev.AwayTeam,
	}

	for _, key := range order {
		slot := slots[key]
		market := models.Market{
			GameID:      ev.ID,
			Type:        slot.mtype,
			Line:        slot.line,
			Outcomes:    slot.quotes,
			HasDrawRisk: slot.drawRisk,
		}
		if len(market.OutcomeNames()) < 2 {
			stats.TooFewOutcomes++
			continue
		}
		if slot.drawRisk {
			game.HasDrawRisk = true
		}
		game.Markets = append(game.Markets, market)
	}

	if len(game.Markets) == 0 {
		return models.Game{}, stats, false
	}

	return game, stats, true
}

func slotKey(mtype models.MarketType, line *float64) string {
	if line == nil {
		return string(mtype)
	}
	// two decimal places is enough resolution for betting lines
	return string(mtype) + ":" + strconv.FormatInt(int64(math.Round(*line*100)), 10)
}

// isDrawOutcome flags an outcome that is neither team, which makes the
// market a three-way book.
func isDrawOutcome(name string, ev models.EventPayload) bool {
	return name != ev.HomeTeam && name != ev.AwayTeam
}
