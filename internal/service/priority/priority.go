package priority

import (
	"sort"
	"sync"
	"time"

	"ArbPull/internal/domain/models"
)

const (
	rateWeight = 0.7
	baseWeight = 0.3

	// defaultRate scores sports with no fetch history yet, so new keys
	// still get scanned.
	defaultRate = 0.5
)

// attempt is one recorded fetch outcome.
type attempt struct {
	at      time.Time
	success bool
}

// Ranker orders sports by how worthwhile they are to fetch. The score
// blends the fetch success rate inside a rolling window with a configured
// static base priority, favoring recent evidence over config.
type Ranker struct {
	window time.Duration
	base   map[string]float64

	mu       sync.Mutex
	attempts map[string][]attempt
}

// NewRanker creates a ranker with per-sport base priorities in [0,1].
func NewRanker(window time.Duration, base map[string]float64) *Ranker {
	if window <= 0 {
		window = 24 * time.Hour
	}
	b := make(map[string]float64, len(base))
	for k, v := range base {
		if v < 0 {
			v = 0
		}
		if v > 1 {
			v = 1
		}
		b[k] = v
	}
	return &Ranker{
		window:   window,
		base:     b,
		attempts: make(map[string][]attempt),
	}
}

// Record notes the outcome of one fetch attempt for sportKey.
func (r *Ranker) Record(sportKey string, success bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.attempts[sportKey] = append(r.attempts[sportKey], attempt{at: time.Now(), success: success})
}

// Score returns the current blended score for one sport.
func (r *Ranker) Score(sportKey string) float64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.pruneLocked(time.Now())
	return r.scoreLocked(sportKey).Score
}

// Rank orders the given sports best-first. Ties keep the input order.
func (r *Ranker) Rank(sportKeys []string) []models.PriorityScore {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.pruneLocked(time.Now())

	scores := make([]models.PriorityScore, 0, len(sportKeys))
	for _, key := range sportKeys {
		scores = append(scores, r.scoreLocked(key))
	}

	sort.SliceStable(scores, func(i, j int) bool {
		return scores[i].Score > scores[j].Score
	})
	return scores
}

// SelectTopN returns the n best sport keys out of the candidates.
func (r *Ranker) SelectTopN(sportKeys []string, n int) []string {
	ranked := r.Rank(sportKeys)
	if n > len(ranked) {
		n = len(ranked)
	}
	out := make([]string, 0, n)
	for _, s := range ranked[:n] {
		out = append(out, s.SportKey)
	}
	return out
}

func (r *Ranker) scoreLocked(sportKey string) models.PriorityScore {
	base, ok := r.base[sportKey]
	if !ok {
		base = defaultRate
	}

	rate := defaultRate
	if atts := r.attempts[sportKey]; len(atts) > 0 {
		successes := 0
		for _, a := range atts {
			if a.success {
				successes++
			}
		}
		rate = float64(successes) / float64(len(atts))
	}

	return models.PriorityScore{
		SportKey:     sportKey,
		SuccessRate:  rate,
		BasePriority: base,
		Score:        rateWeight*rate + baseWeight*base,
	}
}

// pruneLocked drops attempts that fell out of the rolling window.
func (r *Ranker) pruneLocked(now time.Time) {
	cutoff := now.Add(-r.window)
	for key, atts := range r.attempts {
		i := 0
		for i < len(atts) && atts[i].at.Before(cutoff) {
			i++
		}
		if i == 0 {
			continue
		}
		if i == len(atts) {
			delete(r.attempts, key)
			continue
		}
		r.attempts[key] = atts[i:]
	}
}
