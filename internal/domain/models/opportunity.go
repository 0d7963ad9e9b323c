package models

import "time"

// ArbitrageLeg is one bet in an arbitrage opportunity.
type ArbitrageLeg struct {
	BookKey     string  `json:"book_key"`
	OutcomeName string  `json:"outcome_name"`
	Price       int     `json:"price"` // American odds
	Decimal     float64 `json:"decimal"`
	ImpliedProb float64 `json:"implied_prob"`
	Stake       float64 `json:"stake"` // rounded to cents
	Payout      float64 `json:"payout"`
}

// ArbitrageOpportunity is a detected guaranteed-profit combination of legs
// across bookmakers for one market.
type ArbitrageOpportunity struct {
	GameID           string         `json:"game_id"`
	SportKey         string         `json:"sport_key"`
	HomeTeam         string         `json:"home_team"`
	AwayTeam         string         `json:"away_team"`
	CommenceTime     time.Time      `json:"commence_time"`
	MarketType       MarketType     `json:"market_type"`
	Line             *float64       `json:"line,omitempty"`
	Legs             []ArbitrageLeg `json:"legs"`
	ImpliedSum       float64        `json:"implied_sum"`
	IsArbitrage      bool           `json:"is_arbitrage"`
	ProfitMargin     float64        `json:"profit_margin"` // percent
	TotalStake       float64        `json:"total_stake"`
	GuaranteedProfit float64        `json:"guaranteed_profit"`
	DetectedAt       time.Time      `json:"detected_at"`
}

// ScanReport summarizes one full scan pass.
type ScanReport struct {
	StartedAt      time.Time              `json:"started_at"`
	FinishedAt     time.Time              `json:"finished_at"`
	SportsScanned  []string               `json:"sports_scanned"`
	GamesEvaluated int                    `json:"games_evaluated"`
	Opportunities  []ArbitrageOpportunity `json:"opportunities"`
	Dropped        DropStats              `json:"dropped"`
	RequestsSpent  int                    `json:"requests_spent"`
	CacheHits      int                    `json:"cache_hits"`
	Partial        bool                   `json:"partial"` // quota ran out mid-pass
	Errors         []string               `json:"errors,omitempty"`
}

// QuotaMode says which source the current quota figure comes from.
type QuotaMode string

const (
	QuotaEstimated     QuotaMode = "estimated"
	QuotaAuthoritative QuotaMode = "authoritative"
)

// QuotaState is a point-in-time view of the request budget.
type QuotaState struct {
	Mode        QuotaMode `json:"mode"`
	Remaining   int       `json:"remaining"`
	Used        int       `json:"used"`
	WindowStart time.Time `json:"window_start"`
	WindowEnd   time.Time `json:"window_end"`
}

// PriorityScore ranks one sport for scan ordering.
type PriorityScore struct {
	SportKey     string  `json:"sport_key"`
	SuccessRate  float64 `json:"success_rate"`  // fetch successes/requests inside the window
	BasePriority float64 `json:"base_priority"` // static configured weight
	Score        float64 `json:"score"`
}

// UnitState is the lifecycle state of one calculation unit.
type UnitState int32

const (
	UnitQueued UnitState = iota
	UnitDispatched
	UnitCompleted
	UnitFailed
	UnitCancelled
	UnitTimedOut
)

func (s UnitState) String() string {
	switch s {
	case UnitQueued:
		return "queued"
	case UnitDispatched:
		return "dispatched"
	case UnitCompleted:
		return "completed"
	case UnitFailed:
		return "failed"
	case UnitCancelled:
		return "cancelled"
	case UnitTimedOut:
		return "timed_out"
	default:
		return "unknown"
	}
}

// Terminal reports whether the state admits no further transition.
func (s UnitState) Terminal() bool {
	return s >= UnitCompleted
}

// CalculationUnit is one game's worth of arbitrage evaluation handed to the
// dispatcher.
type CalculationUnit struct {
	Game       Game
	TotalStake float64
	MinMargin  float64
	EnqueuedAt time.Time
}

// UnitResult is what a finished calculation unit produced.
type UnitResult struct {
	GameID        string
	State         UnitState
	Opportunities []ArbitrageOpportunity
	Err           error
	Elapsed       time.Duration
}

// PoolStats is a snapshot of the dispatcher's internals.
type PoolStats struct {
	Workers    int   `json:"workers"`
	QueueDepth int   `json:"queue_depth"`
	Dispatched int64 `json:"dispatched"`
	Completed  int64 `json:"completed"`
	Failed     int64 `json:"failed"`
	Cancelled  int64 `json:"cancelled"`
	TimedOut   int64 `json:"timed_out"`
	Respawns   int64 `json:"respawns"`
}
