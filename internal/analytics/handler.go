package analytics

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/rdejong/sitesearch/pkg/logger"
)

// SnapshotLoader restores previously persisted stats. *Store implements it;
// the handler consults it when the in-memory rollup is empty, which happens
// right after a restart.
type SnapshotLoader interface {
	LatestSnapshot(ctx context.Context) (*AggregatedStats, error)
}

// Handler serves the aggregated search analytics. snapshots may be nil; the
// handler then serves only the in-memory state.
type Handler struct {
	aggregator *Aggregator
	snapshots  SnapshotLoader
}

func NewHandler(aggregator *Aggregator, snapshots SnapshotLoader) *Handler {
	return &Handler{aggregator: aggregator, snapshots: snapshots}
}

func (h *Handler) Stats(w http.ResponseWriter, r *http.Request) {
	log := logger.FromContext(r.Context())

	stats := h.aggregator.Stats()
	if stats.TotalSearches == 0 && h.snapshots != nil {
		restored, err := h.snapshots.LatestSnapshot(r.Context())
		if err != nil {
			log.Error("failed to load analytics snapshot", "error", err)
		} else if restored != nil {
			log.Info("serving persisted analytics snapshot",
				"total_searches", restored.TotalSearches,
			)
			stats = *restored
		}
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	if err := json.NewEncoder(w).Encode(stats); err != nil {
		log.Error("failed to write analytics response", "error", err)
	}
}
