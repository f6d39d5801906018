package analytics

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
)

type fakeSnapshots struct {
	stats *AggregatedStats
	err   error
	calls int
}

func (f *fakeSnapshots) LatestSnapshot(ctx context.Context) (*AggregatedStats, error) {
	f.calls++
	return f.stats, f.err
}

func getStats(t *testing.T, h *Handler) AggregatedStats {
	t.Helper()
	rec := httptest.NewRecorder()
	h.Stats(rec, httptest.NewRequest(http.MethodGet, "/api/v1/analytics", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusOK)
	}
	var stats AggregatedStats
	if err := json.NewDecoder(rec.Body).Decode(&stats); err != nil {
		t.Fatalf("decoding response: %v", err)
	}
	return stats
}

func TestStatsServesLiveRollup(t *testing.T) {
	agg := NewAggregator()
	agg.Record(searchEvent("de molen", 3, 10, false))
	loader := &fakeSnapshots{stats: &AggregatedStats{TotalSearches: 99}}
	h := NewHandler(agg, loader)

	stats := getStats(t, h)
	if stats.TotalSearches != 1 {
		t.Fatalf("TotalSearches = %d, want 1", stats.TotalSearches)
	}
	if loader.calls != 0 {
		t.Fatalf("snapshot loader consulted %d times with live data present", loader.calls)
	}
}

func TestStatsFallsBackToSnapshot(t *testing.T) {
	loader := &fakeSnapshots{stats: &AggregatedStats{TotalSearches: 42, CacheHits: 7}}
	h := NewHandler(NewAggregator(), loader)

	stats := getStats(t, h)
	if stats.TotalSearches != 42 || stats.CacheHits != 7 {
		t.Fatalf("stats = %+v, want persisted snapshot", stats)
	}
	if loader.calls != 1 {
		t.Fatalf("snapshot loader consulted %d times, want 1", loader.calls)
	}
}

func TestStatsEmptyWithoutSnapshot(t *testing.T) {
	h := NewHandler(NewAggregator(), nil)
	stats := getStats(t, h)
	if stats.TotalSearches != 0 {
		t.Fatalf("TotalSearches = %d, want 0", stats.TotalSearches)
	}
}

func TestStatsSnapshotErrorServesEmptyRollup(t *testing.T) {
	loader := &fakeSnapshots{err: errors.New("connection refused")}
	h := NewHandler(NewAggregator(), loader)

	stats := getStats(t, h)
	if stats.TotalSearches != 0 {
		t.Fatalf("TotalSearches = %d, want 0 when snapshot load fails", stats.TotalSearches)
	}
}
