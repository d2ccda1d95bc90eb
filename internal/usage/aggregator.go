// Package usage keeps per-provider request statistics.
package usage

import (
	"github.com/myrjola/dossier/internal/models"
	"maps"
	"sync"
	"time"
)

// Delta describes one finished provider request.
type Delta struct {
	Success bool
	Tokens  int
	Latency time.Duration
}

// Aggregator accumulates [models.APIUsageStats] per provider. It is safe for concurrent use.
//
// Every Update counts exactly one request, so TotalRequests == SuccessfulRequests + FailedRequests always holds.
type Aggregator struct {
	mu    sync.Mutex
	stats map[string]models.APIUsageStats
	now   func() time.Time
}

// NewAggregator seeds the aggregator with previously persisted stats, which may be nil.
func NewAggregator(initial map[string]models.APIUsageStats, now func() time.Time) *Aggregator {
	if now == nil {
		now = time.Now
	}
	stats := maps.Clone(initial)
	if stats == nil {
		stats = map[string]models.APIUsageStats{}
	}
	return &Aggregator{
		stats: stats,
		now:   now,
	}
}

// Update records one request for provider and returns the resulting stats.
func (a *Aggregator) Update(provider string, delta Delta) models.APIUsageStats {
	a.mu.Lock()
	defer a.mu.Unlock()

	s := a.stats[provider]
	s.TotalRequests++
	if delta.Success {
		s.SuccessfulRequests++
	} else {
		s.FailedRequests++
	}
	s.TotalTokensUsed += max(delta.Tokens, 0)
	// Running mean over every sample so far.
	sample := float64(delta.Latency) / float64(time.Millisecond)
	s.AverageResponseMs += (sample - s.AverageResponseMs) / float64(s.TotalRequests)
	s.LastUsed = a.now()

	a.stats[provider] = s
	return s
}

// Get returns the stats for provider. The zero value is returned for providers that were never used.
func (a *Aggregator) Get(provider string) models.APIUsageStats {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.stats[provider]
}

// Snapshot returns a copy of all stats.
func (a *Aggregator) Snapshot() map[string]models.APIUsageStats {
	a.mu.Lock()
	defer a.mu.Unlock()
	return maps.Clone(a.stats)
}
