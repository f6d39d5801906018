package analytics

import (
	"context"
	"encoding/json"
	"testing"
	"time"
)

func searchEvent(query string, returned int, latencyMs int64, cacheHit bool) SearchEvent {
	eventType := EventSearch
	if returned == 0 {
		eventType = EventZeroResult
	}
	return SearchEvent{
		Type:      eventType,
		Query:     query,
		Returned:  returned,
		LatencyMs: latencyMs,
		CacheHit:  cacheHit,
		Timestamp: time.Now().UTC(),
	}
}

func TestAggregatorRecord(t *testing.T) {
	agg := NewAggregator()
	agg.Record(searchEvent("de molen", 3, 10, false))
	agg.Record(searchEvent("de molen", 3, 2, true))
	agg.Record(searchEvent("rivier", 1, 8, false))
	agg.Record(searchEvent("koolstofdatering", 0, 5, false))

	stats := agg.Stats()
	if stats.TotalSearches != 4 {
		t.Errorf("TotalSearches = %d, want 4", stats.TotalSearches)
	}
	if stats.CacheHits != 1 || stats.CacheMisses != 3 {
		t.Errorf("cache hits/misses = %d/%d, want 1/3", stats.CacheHits, stats.CacheMisses)
	}
	if stats.ZeroResultCount != 1 {
		t.Errorf("ZeroResultCount = %d, want 1", stats.ZeroResultCount)
	}
	if want := (10.0 + 2 + 8 + 5) / 4; stats.AvgLatencyMs != want {
		t.Errorf("AvgLatencyMs = %v, want %v", stats.AvgLatencyMs, want)
	}
	if len(stats.TopQueries) == 0 || stats.TopQueries[0].Query != "de molen" {
		t.Errorf("TopQueries = %v, want %q first", stats.TopQueries, "de molen")
	}
	if len(stats.ZeroResultQueries) != 1 || stats.ZeroResultQueries[0].Query != "koolstofdatering" {
		t.Errorf("ZeroResultQueries = %v, want only %q", stats.ZeroResultQueries, "koolstofdatering")
	}
}

func TestTopNTiesBreakAlphabetically(t *testing.T) {
	counts := map[string]int64{
		"zee":    2,
		"appel":  2,
		"molen":  5,
		"rivier": 1,
	}
	got := topN(counts, 3)
	want := []QueryCount{
		{Query: "molen", Count: 5},
		{Query: "appel", Count: 2},
		{Query: "zee", Count: 2},
	}
	if len(got) != len(want) {
		t.Fatalf("topN returned %d entries, want %d", len(got), len(want))
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("topN[%d] = %+v, want %+v", i, got[i], want[i])
		}
	}
}

func TestPercentile(t *testing.T) {
	sorted := []int64{1, 2, 3, 4, 5, 6, 7, 8, 9, 10}
	if got := percentile(sorted, 50); got != 6 {
		t.Errorf("percentile 50 = %d, want 6", got)
	}
	if got := percentile(sorted, 99); got != 10 {
		t.Errorf("percentile 99 = %d, want 10", got)
	}
	if got := percentile(nil, 50); got != 0 {
		t.Errorf("percentile of empty = %d, want 0", got)
	}
}

func TestHandleEvent(t *testing.T) {
	agg := NewAggregator()
	handle := HandleEvent(agg)

	payload, err := json.Marshal(searchEvent("de", 3, 7, false))
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	if err := handle(context.Background(), []byte("search"), payload); err != nil {
		t.Fatalf("HandleEvent: %v", err)
	}
	if got := agg.Stats().TotalSearches; got != 1 {
		t.Fatalf("TotalSearches = %d, want 1", got)
	}

	// Malformed events are logged and skipped, never retried.
	if err := handle(context.Background(), nil, []byte("{not json")); err != nil {
		t.Fatalf("HandleEvent on bad payload = %v, want nil", err)
	}
	if got := agg.Stats().TotalSearches; got != 1 {
		t.Fatalf("TotalSearches after bad payload = %d, want 1", got)
	}
}

func TestTrackNeverBlocks(t *testing.T) {
	c := NewCollector(nil, 1)
	c.Track(searchEvent("de", 1, 1, false))
	// Buffer is full now; the next event must drop instead of blocking.
	c.Track(searchEvent("molen", 1, 1, false))
	if got := len(c.eventCh); got != 1 {
		t.Fatalf("buffered events = %d, want 1", got)
	}
}
