package repository

import (
	"context"
	"time"

	"ArbPull/internal/domain/models"
)

// OddsProvider is the upstream odds source. Implementations spend real
// request budget; callers go through the coordinator, never directly.
type OddsProvider interface {
	// FetchSports returns the provider's sports catalogue.
	FetchSports(ctx context.Context, allSports bool) ([]models.SportPayload, error)

	// FetchOdds returns raw events for one sport key.
	FetchOdds(ctx context.Context, sportKey string) ([]models.EventPayload, error)

	// FetchEvents returns upcoming events without prices, which is much
	// cheaper than a full odds snapshot.
	FetchEvents(ctx context.Context, sportKey string) ([]models.EventPayload, error)

	// LastQuota reports the most recent provider-authoritative quota
	// figures, or false when none were observed yet.
	LastQuota() (models.ProviderQuota, bool)
}

// Metrics abstracts the instrumentation backend.
type Metrics interface {
	RecordFetch(sport, result string)
	RecordCacheOp(class, result string)
	RecordDroppedGames(reason string, n int)
	RecordOpportunities(sport string, n int)
	SetQuotaRemaining(mode string, remaining int)
	SetPoolGauge(state string, n int)
	ObserveLatency(operation string, d time.Duration)
	RecordError(errType string)
}

// Publisher pushes detected opportunities to downstream consumers.
type Publisher interface {
	PublishOpportunities(ctx context.Context, opps []models.ArbitrageOpportunity) error
	Close() error
}
