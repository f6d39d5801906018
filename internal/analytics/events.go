// Package analytics tracks search behaviour: the serving side publishes
// query events to Kafka, and the aggregation side consumes them into
// counters, latency percentiles, and top-query tables with periodic
// PostgreSQL snapshots.
package analytics

import "time"

type EventType string

const (
	EventSearch     EventType = "search"
	EventZeroResult EventType = "zero_result"
)

// SearchEvent is one executed query as observed by the search service.
type SearchEvent struct {
	Type      EventType `json:"type"`
	Query     string    `json:"query"`
	TermCount int       `json:"term_count"`
	Returned  int       `json:"returned"`
	LatencyMs int64     `json:"latency_ms"`
	CacheHit  bool      `json:"cache_hit"`
	Timestamp time.Time `json:"timestamp"`
	RequestID string    `json:"request_id"`
}
