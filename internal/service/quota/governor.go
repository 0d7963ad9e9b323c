package quota

import (
	"errors"
	"sync"
	"time"

	"ArbPull/internal/domain/models"
	"ArbPull/internal/domain/repository"
	applogger "ArbPull/pkg/logger"
)

// ErrQuotaExhausted means the request budget for the current window is spent.
var ErrQuotaExhausted = errors.New("quota: request budget exhausted")

// Governor guards the provider request budget. It starts in estimated mode,
// counting spends in a local sliding window, and flips to authoritative mode
// as soon as the provider reports its own figures. Authoritative numbers
// always win over the local estimate.
type Governor struct {
	maxRequests int
	window      time.Duration
	logger      *applogger.Logger
	metrics     repository.Metrics

	mu     sync.Mutex
	spends []time.Time // estimated-mode spend log, pruned by window

	authoritative bool
	authRemaining int
	authUsed      int
	authAt        time.Time
	spentSince    int // spends after the last provider report
}

// NewGovernor creates a quota governor in estimated mode.
func NewGovernor(maxRequests int, window time.Duration, logger *applogger.Logger, metrics repository.Metrics) *Governor {
	return &Governor{
		maxRequests: maxRequests,
		window:      window,
		logger:      logger.With("quota"),
		metrics:     metrics,
	}
}

// Reserve claims n requests from the budget before they are spent.
// Returns ErrQuotaExhausted when fewer than n remain.
func (g *Governor) Reserve(n int) error {
	if n <= 0 {
		return nil
	}

	g.mu.Lock()
	defer g.mu.Unlock()

	remaining := g.remainingLocked(time.Now())
	if remaining < n {
		g.logger.Warn("request budget exhausted",
			applogger.Int("requested", n),
			applogger.Int("remaining", remaining),
		)
		return ErrQuotaExhausted
	}

	now := time.Now()
	for i := 0; i < n; i++ {
		g.spends = append(g.spends, now)
	}
	g.spentSince += n

	g.publishLocked(now)
	return nil
}

// Refund returns n previously reserved requests that were never spent,
// typically because the fetch failed before reaching the provider.
func (g *Governor) Refund(n int) {
	if n <= 0 {
		return
	}

	g.mu.Lock()
	defer g.mu.Unlock()

	if len(g.spends) >= n {
		g.spends = g.spends[:len(g.spends)-n]
	}
	if g.spentSince >= n {
		g.spentSince -= n
	}
	g.publishLocked(time.Now())
}

// Reconcile folds in provider-reported figures, switching to authoritative
// mode. The provider's numbers replace the local estimate entirely.
func (g *Governor) Reconcile(q models.ProviderQuota) {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.authoritative && !q.ReportedAt.After(g.authAt) {
		return // stale report
	}

	g.authoritative = true
	g.authRemaining = q.RequestsRemaining
	g.authUsed = q.RequestsUsed
	g.authAt = q.ReportedAt
	g.spentSince = 0

	g.publishLocked(time.Now())
}

// Remaining returns the current best estimate of the unspent budget.
func (g *Governor) Remaining() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.remainingLocked(time.Now())
}

// State returns a point-in-time view of the budget.
func (g *Governor) State() models.QuotaState {
	g.mu.Lock()
	defer g.mu.Unlock()

	now := time.Now()
	st := models.QuotaState{
		Mode:        models.QuotaEstimated,
		Remaining:   g.remainingLocked(now),
		WindowStart: now.Add(-g.window),
		WindowEnd:   now,
	}
	if g.authoritative {
		st.Mode = models.QuotaAuthoritative
		st.Used = g.authUsed + g.spentSince
	} else {
		g.pruneLocked(now)
		st.Used = len(g.spends)
	}
	return st
}

func (g *Governor) remainingLocked(now time.Time) int {
	if g.authoritative {
		remaining := g.authRemaining - g.spentSince
		if remaining < 0 {
			return 0
		}
		return remaining
	}

	g.pruneLocked(now)
	remaining := g.maxRequests - len(g.spends)
	if remaining < 0 {
		return 0
	}
	return remaining
}

func (g *Governor) pruneLocked(now time.Time) {
	cutoff := now.Add(-g.window)
	i := 0
	for i < len(g.spends) && g.spends[i].Before(cutoff) {
		i++
	}
	if i > 0 {
		g.spends = g.spends[i:]
	}
}

func (g *Governor) publishLocked(now time.Time) {
	if g.metrics == nil {
		return
	}
	mode := string(models.QuotaEstimated)
	if g.authoritative {
		mode = string(models.QuotaAuthoritative)
	}
	g.metrics.SetQuotaRemaining(mode, g.remainingLocked(now))
}
