// Package handler exposes the search engine over HTTP.
package handler

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/rdejong/sitesearch/internal/analytics"
	"github.com/rdejong/sitesearch/internal/search/cache"
	apperrors "github.com/rdejong/sitesearch/pkg/errors"
	"github.com/rdejong/sitesearch/pkg/logger"
	"github.com/rdejong/sitesearch/pkg/metrics"
)

// Searcher resolves a query to a ranked URL list.
type Searcher interface {
	Search(ctx context.Context, query string) ([]string, error)
}

// SearchResponse is the JSON body of a search request.
type SearchResponse struct {
	Query     string   `json:"query"`
	URLs      []string `json:"urls"`
	Total     int      `json:"total"`
	LatencyMs int64    `json:"latency_ms"`
}

type Handler struct {
	engine       Searcher
	cache        *cache.QueryCache
	collector    *analytics.Collector
	metrics      *metrics.Metrics
	defaultLimit int
	maxResults   int
	logger       *slog.Logger
}

// New creates a search Handler. cache, collector, and m may each be nil; the
// handler then skips that concern.
func New(engine Searcher, queryCache *cache.QueryCache, collector *analytics.Collector, m *metrics.Metrics, defaultLimit, maxResults int) *Handler {
	return &Handler{
		engine:       engine,
		cache:        queryCache,
		collector:    collector,
		metrics:      m,
		defaultLimit: defaultLimit,
		maxResults:   maxResults,
		logger:       slog.Default().With("component", "search-handler"),
	}
}

func (h *Handler) Search(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	ctx := r.Context()
	log := logger.FromContext(ctx)

	query := r.URL.Query().Get("q")
	if query == "" {
		h.writeError(w, http.StatusBadRequest, "query parameter 'q' is required")
		return
	}

	limit := h.defaultLimit
	if limitStr := r.URL.Query().Get("limit"); limitStr != "" {
		parsed, err := strconv.Atoi(limitStr)
		if err != nil || parsed < 1 {
			h.writeError(w, http.StatusBadRequest, "limit must be a positive integer")
			return
		}
		if parsed > h.maxResults {
			parsed = h.maxResults
		}
		limit = parsed
	}

	compute := func() ([]string, error) {
		urls, err := h.engine.Search(ctx, query)
		if err != nil {
			return nil, err
		}
		if len(urls) > limit {
			urls = urls[:limit]
		}
		return urls, nil
	}

	var urls []string
	var err error
	cacheHit := false
	if h.cache != nil {
		urls, cacheHit, err = h.cache.GetOrCompute(ctx, query, limit, compute)
	} else {
		urls, err = compute()
	}
	latencyMs := time.Since(start).Milliseconds()

	if err != nil {
		log.Error("search execution failed", "query", query, "error", err)
		h.observe("error", cacheHit, start, 0)
		h.writeError(w, apperrors.HTTPStatusCode(err), "search failed")
		return
	}

	resultType := "hit"
	eventType := analytics.EventSearch
	if len(urls) == 0 {
		resultType = "zero_result"
		eventType = analytics.EventZeroResult
	}
	h.observe(resultType, cacheHit, start, len(urls))

	if h.collector != nil {
		h.collector.Track(analytics.SearchEvent{
			Type:      eventType,
			Query:     query,
			TermCount: len(strings.Fields(query)),
			Returned:  len(urls),
			LatencyMs: latencyMs,
			CacheHit:  cacheHit,
			Timestamp: time.Now().UTC(),
			RequestID: logger.RequestIDFromContext(ctx),
		})
	}

	log.Info("search completed",
		"query", query,
		"results", len(urls),
		"cache_hit", cacheHit,
		"latency_ms", latencyMs,
	)
	h.writeJSON(w, http.StatusOK, SearchResponse{
		Query:     query,
		URLs:      urls,
		Total:     len(urls),
		LatencyMs: latencyMs,
	})
}

func (h *Handler) CacheStats(w http.ResponseWriter, r *http.Request) {
	if h.cache == nil {
		h.writeError(w, http.StatusNotFound, "cache not configured")
		return
	}
	hits, misses := h.cache.Stats()
	h.writeJSON(w, http.StatusOK, map[string]int64{
		"hits":   hits,
		"misses": misses,
	})
}

func (h *Handler) CacheInvalidate(w http.ResponseWriter, r *http.Request) {
	if h.cache == nil {
		h.writeError(w, http.StatusNotFound, "cache not configured")
		return
	}
	if err := h.cache.Invalidate(r.Context()); err != nil {
		h.logger.Error("cache invalidation failed", "error", err)
		h.writeError(w, http.StatusInternalServerError, "cache invalidation failed")
		return
	}
	h.writeJSON(w, http.StatusOK, map[string]string{"status": "invalidated"})
}

func (h *Handler) observe(resultType string, cacheHit bool, start time.Time, results int) {
	if h.metrics == nil {
		return
	}
	h.metrics.SearchQueriesTotal.WithLabelValues(resultType).Inc()
	cacheStatus := "miss"
	if cacheHit {
		cacheStatus = "hit"
		h.metrics.CacheHitsTotal.Inc()
	} else if h.cache != nil {
		h.metrics.CacheMissesTotal.Inc()
	}
	h.metrics.SearchLatency.WithLabelValues(cacheStatus).Observe(time.Since(start).Seconds())
	h.metrics.SearchResultsCount.Observe(float64(results))
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		h.logger.Error("failed to write response", "error", err)
	}
}

func (h *Handler) writeError(w http.ResponseWriter, status int, message string) {
	h.writeJSON(w, status, map[string]string{"error": message})
}
