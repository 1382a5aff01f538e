// Package keypool implements the API-Key Pool (§4.4): a smooth
// weighted-round-robin over validated provider keys, tracked in memory only,
// so a priority-10 key is actually drawn roughly ten times as often as a
// priority-1 key rather than merely sorting ahead of it.
// Grounded on Mimic890-hyprbot's internal/queue/ratelimit.go for the
// increment-with-cooldown shape, translated from a Redis script into a
// mutex-guarded map since PoolKey state is explicitly in-memory-only.
package keypool

import (
	"sort"
	"sync"
	"time"

	"github.com/archivecast/podgen/internal/domain"
	"github.com/archivecast/podgen/internal/ports"
)

// DefaultRateLimitCooldown is applied when a 429 carries no Retry-After hint.
const DefaultRateLimitCooldown = 60 * time.Second

// Pool is a mutex-guarded, in-memory priority round robin over keys.
type Pool struct {
	mu      sync.Mutex
	keys    map[string]*domain.PoolKey
	nowFunc func() time.Time
}

var _ ports.KeyPool = (*Pool)(nil)

// New builds an empty pool.
func New() *Pool {
	return &Pool{keys: map[string]*domain.PoolKey{}, nowFunc: time.Now}
}

// Add registers a key at the given priority, or updates its priority if
// already present. Higher priority values are preferred by Next.
func (p *Pool) Add(key string, priority int) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if existing, ok := p.keys[key]; ok {
		existing.Priority = priority
		return
	}
	p.keys[key] = &domain.PoolKey{Key: key, Priority: priority}
}

// Next returns the next selectable key via smooth weighted round robin,
// skipping keys still under a rate-limit cooldown. A key's selection
// frequency is proportional to its priority (nginx's SWRR algorithm): each
// call advances every candidate's current weight by its priority, then hands
// out the candidate with the highest current weight and settles it back down
// by the round's total weight.
func (p *Pool) Next() (string, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()

	now := p.nowFunc()
	candidates := p.selectableLocked(now)
	if len(candidates) == 0 {
		return "", false
	}

	total := 0
	var chosen *domain.PoolKey
	for _, k := range candidates {
		k.CurrentWeight += k.Priority
		total += k.Priority
		if chosen == nil || k.CurrentWeight > chosen.CurrentWeight {
			chosen = k
		}
	}
	chosen.CurrentWeight -= total
	chosen.LastUsed = now
	return chosen.Key, true
}

// selectableLocked returns every currently-usable key, sorted by descending
// priority then by least-recently-used, giving Next a deterministic
// current-weight tiebreak order. Must hold p.mu.
func (p *Pool) selectableLocked(now time.Time) []*domain.PoolKey {
	out := make([]*domain.PoolKey, 0, len(p.keys))
	for _, k := range p.keys {
		if k.Selectable(now) {
			out = append(out, k)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Priority != out[j].Priority {
			return out[i].Priority > out[j].Priority
		}
		return out[i].LastUsed.Before(out[j].LastUsed)
	})
	return out
}

// MarkSuccess records a successful call against key.
func (p *Pool) MarkSuccess(key string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if k, ok := p.keys[key]; ok {
		k.SuccessCount++
		k.RateLimitedUntil = nil
	}
}

// MarkRateLimited puts key into cooldown for the given duration (or
// DefaultRateLimitCooldown if cooldown <= 0).
func (p *Pool) MarkRateLimited(key string, cooldown time.Duration) {
	if cooldown <= 0 {
		cooldown = DefaultRateLimitCooldown
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	if k, ok := p.keys[key]; ok {
		k.ErrorCount++
		until := p.nowFunc().Add(cooldown)
		k.RateLimitedUntil = &until
	}
}

// MarkError records a failed call; an INVALID_KEY verdict removes the key
// from the pool outright (§4.4: "invalid keys are pruned, not cooled down").
func (p *Pool) MarkError(key string, code domain.KeyErrorCode) {
	p.mu.Lock()
	defer p.mu.Unlock()

	k, ok := p.keys[key]
	if !ok {
		return
	}
	if code == domain.KeyErrInvalid {
		delete(p.keys, key)
		return
	}
	k.ErrorCount++
	if code == domain.KeyErrRateLimited {
		until := p.nowFunc().Add(DefaultRateLimitCooldown)
		k.RateLimitedUntil = &until
	}
}

// Stats returns an observability snapshot with raw keys replaced by prefixes.
func (p *Pool) Stats() []domain.PoolKeyStats {
	p.mu.Lock()
	defer p.mu.Unlock()

	out := make([]domain.PoolKeyStats, 0, len(p.keys))
	for _, k := range p.keys {
		out = append(out, domain.PoolKeyStats{
			Prefix:           k.Prefix(),
			Priority:         k.Priority,
			LastUsed:         k.LastUsed,
			RateLimitedUntil: k.RateLimitedUntil,
			SuccessCount:     k.SuccessCount,
			ErrorCount:       k.ErrorCount,
		})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Prefix < out[j].Prefix })
	return out
}

// Len returns the number of keys currently tracked (selectable or not).
func (p *Pool) Len() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.keys)
}
