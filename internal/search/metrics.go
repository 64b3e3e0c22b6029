package search

import (
	"sync"
	"time"
)

// MetricsSnapshot is a point-in-time view of engine metrics.
type MetricsSnapshot struct {
	TotalSearches    int64   `json:"total_searches"`
	AverageLatencyMS float64 `json:"average_latency_ms"`
	// Capabilities are static feature flags, not measurements.
	Capabilities map[string]bool `json:"capabilities"`
}

// Metrics tracks search counts and a running average latency. The average
// uses Welford-style incremental updates, so it stays numerically stable
// over long uptimes.
type Metrics struct {
	mu           sync.Mutex
	searches     int64
	avgLatencyMS float64
}

// Record adds one search observation.
func (m *Metrics) Record(latency time.Duration) {
	ms := float64(latency.Microseconds()) / 1000.0
	m.mu.Lock()
	m.searches++
	m.avgLatencyMS += (ms - m.avgLatencyMS) / float64(m.searches)
	m.mu.Unlock()
}

// Snapshot returns current counters plus the engine's static capability flags.
func (m *Metrics) Snapshot() MetricsSnapshot {
	m.mu.Lock()
	searches := m.searches
	avg := m.avgLatencyMS
	m.mu.Unlock()
	return MetricsSnapshot{
		TotalSearches:    searches,
		AverageLatencyMS: avg,
		Capabilities: map[string]bool{
			"semantic_search":   true,
			"context_reranking": true,
			"snippets":          true,
			"metrics":           true,
		},
	}
}
