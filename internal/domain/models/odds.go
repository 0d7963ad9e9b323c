package models

import "time"

// MarketType classifies a normalized market.
type MarketType string

const (
	MarketMoneyline MarketType = "moneyline"
	MarketSpread    MarketType = "spread"
	MarketTotal     MarketType = "total"
	MarketOutright  MarketType = "outright"
)

// Quote is a single bookmaker price for one outcome of a market.
type Quote struct {
	BookKey     string   `json:"book_key"`
	OutcomeName string   `json:"outcome_name"`
	Price       int      `json:"price"` // American odds, never 0
	Point       *float64 `json:"point,omitempty"`
}

// Market holds all quotes for one market of one game, combined across
// bookmakers. Spread/total markets carry one instance per line magnitude.
type Market struct {
	GameID      string     `json:"game_id"`
	Type        MarketType `json:"type"`
	Line        *float64   `json:"line,omitempty"` // |point| shared by both sides
	Outcomes    []Quote    `json:"outcomes"`
	HasDrawRisk bool       `json:"has_draw_risk"`
}

// OutcomeNames returns distinct outcome names in first-encountered order.
func (m *Market) OutcomeNames() []string {
	seen := make(map[string]bool, 4)
	names := make([]string, 0, 4)
	for _, q := range m.Outcomes {
		if !seen[q.OutcomeName] {
			seen[q.OutcomeName] = true
			names = append(names, q.OutcomeName)
		}
	}
	return names
}

// Game is the normalized, immutable unit of one scan pass.
type Game struct {
	ID           string    `json:"id"`
	SportKey     string    `json:"sport_key"`
	CommenceTime time.Time `json:"commence_time"`
	HomeTeam     string    `json:"home_team"`
	AwayTeam     string    `json:"away_team"`
	Markets      []Market  `json:"markets"`
	HasDrawRisk  bool      `json:"has_draw_risk"`
}

// DropStats counts records discarded during normalization, per reason.
// Surfaced as observability data, never as a fatal error.
type DropStats struct {
	MissingTeams      int `json:"missing_teams"`
	TooFewOutcomes    int `json:"too_few_outcomes"`
	BadPrice          int `json:"bad_price"`
	MismatchedLines   int `json:"mismatched_lines"`
	UnsupportedMarket int `json:"unsupported_market"`
}

// Games returns the number of whole games dropped.
func (d DropStats) Games() int {
	return d.MissingTeams + d.TooFewOutcomes
}

// Add merges another DropStats into this one.
func (d *DropStats) Add(o DropStats) {
	d.MissingTeams += o.MissingTeams
	d.TooFewOutcomes += o.TooFewOutcomes
	d.BadPrice += o.BadPrice
	d.MismatchedLines += o.MismatchedLines
	d.UnsupportedMarket += o.UnsupportedMarket
}

// --- Provider payload shapes (The Odds API v4 JSON) ---

// EventPayload is one game as delivered by the odds provider.
type EventPayload struct {
	ID           string             `json:"id"`
	SportKey     string             `json:"sport_key"`
	SportTitle   string             `json:"sport_title"`
	CommenceTime string             `json:"commence_time"`
	HomeTeam     string             `json:"home_team"`
	AwayTeam     string             `json:"away_team"`
	Bookmakers   []BookmakerPayload `json:"bookmakers"`
}

// BookmakerPayload is one bookmaker's markets within an event.
type BookmakerPayload struct {
	Key        string          `json:"key"`
	Title      string          `json:"title"`
	LastUpdate string          `json:"last_update"`
	Markets    []MarketPayload `json:"markets"`
}

// MarketPayload is one raw market ("h2h", "spreads", "totals", "outrights").
type MarketPayload struct {
	Key        string           `json:"key"`
	LastUpdate string           `json:"last_update"`
	Outcomes   []OutcomePayload `json:"outcomes"`
}

// OutcomePayload is one priced outcome.
type OutcomePayload struct {
	Name  string   `json:"name"`
	Price int      `json:"price"` // American odds
	Point *float64 `json:"point,omitempty"`
}

// SportPayload is one entry of the provider's sports catalogue.
type SportPayload struct {
	Key    string `json:"key"`
	Group  string `json:"group"`
	Title  string `json:"title"`
	Active bool   `json:"active"`
}

// ProviderQuota is the request budget as reported by the provider itself.
type ProviderQuota struct {
	RequestsRemaining int       `json:"requests_remaining"`
	RequestsUsed      int       `json:"requests_used"`
	ReportedAt        time.Time `json:"reported_at"`
}
