// Package search answers multi-word relevance queries directly from an
// on-disk index file. Each query opens its own read handle and walks the
// word tree once per distinct term, so concurrent searches share nothing
// and need no locking.
package search

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"sort"
	"strings"
	"time"

	"github.com/rdejong/sitesearch/internal/index/format"
	"github.com/rdejong/sitesearch/pkg/logger"
	"github.com/rdejong/sitesearch/pkg/metrics"
)

// Engine executes queries against one index file. The zero document set is
// fine: searches over an index with no matches return empty results, never
// errors.
type Engine struct {
	path    string
	timeout time.Duration
	metrics *metrics.Metrics
	logger  *slog.Logger
}

// NewEngine creates an Engine for the index file at path. Every query is
// bounded by the given timeout in addition to the caller's context;
// whichever fires first cancels the query. metrics may be nil.
func NewEngine(path string, timeout time.Duration, m *metrics.Metrics) *Engine {
	return &Engine{
		path:    path,
		timeout: timeout,
		metrics: m,
		logger:  logger.WithComponent("search-engine"),
	}
}

// Path returns the index file the engine reads.
func (e *Engine) Path() string {
	return e.path
}

// Search resolves a free-text query to a ranked list of page URLs. An empty
// or whitespace-only query returns an empty list without touching the index
// file. Query words absent from the index contribute nothing.
func (e *Engine) Search(ctx context.Context, query string) ([]string, error) {
	terms := splitQuery(query)
	if len(terms) == 0 {
		return []string{}, nil
	}
	ctx, cancel := context.WithTimeout(ctx, e.timeout)
	defer cancel()

	f, err := os.Open(e.path)
	if err != nil {
		return nil, fmt.Errorf("opening index: %w", err)
	}
	defer f.Close()

	// An index with no words places the URL table right after the header,
	// so there is no tree to walk.
	tableStart, err := format.NewReader(f, 0).ReadInt64()
	if err != nil {
		return nil, fmt.Errorf("reading index header: %w", err)
	}
	if tableStart <= format.RootOffset {
		return []string{}, nil
	}

	scores := make(map[int16]float64)
	for _, term := range terms {
		postings, reads, err := lookupTerm(ctx, f, term)
		if e.metrics != nil {
			e.metrics.TreeNodeReads.Observe(float64(reads))
		}
		if err != nil {
			return nil, fmt.Errorf("looking up %q: %w", term, err)
		}
		if len(postings) == 0 {
			continue
		}
		var total int64
		for _, occ := range postings {
			total += int64(occ)
		}
		for id, occ := range postings {
			scores[id] += float64(occ) / float64(total)
		}
	}
	if len(scores) == 0 {
		return []string{}, nil
	}

	ranked := rank(scores)
	urls, err := resolveURLs(f, ranked)
	if err != nil {
		return nil, err
	}
	e.logger.Debug("query resolved", "terms", len(terms), "results", len(urls))
	return urls, nil
}

// splitQuery splits on the space character and deduplicates tokens by exact
// string identity in first-occurrence order. Case folding happens during
// tree comparison, not here.
func splitQuery(query string) []string {
	if strings.TrimSpace(query) == "" {
		return nil
	}
	seen := make(map[string]struct{})
	terms := make([]string, 0, 4)
	for _, tok := range strings.Split(query, " ") {
		if tok == "" {
			continue
		}
		if _, dup := seen[tok]; dup {
			continue
		}
		seen[tok] = struct{}{}
		terms = append(terms, tok)
	}
	return terms
}

// lookupTerm binary-searches the on-disk word tree for term, starting at the
// fixed root offset. It returns the term's occurrence count per document id,
// or an empty map when the term is absent, plus the number of nodes read.
// Position lists are skipped, not decoded: scoring only needs counts.
func lookupTerm(ctx context.Context, f io.ReaderAt, term string) (map[int16]int16, int, error) {
	r := format.NewReader(f, format.RootOffset)
	offset := int64(format.RootOffset)
	reads := 0
	for offset > 0 {
		if err := ctx.Err(); err != nil {
			return nil, reads, err
		}
		r.Seek(offset)
		word, err := r.ReadString()
		if err != nil {
			return nil, reads, err
		}
		lower, err := r.ReadInt64()
		if err != nil {
			return nil, reads, err
		}
		upper, err := r.ReadInt64()
		if err != nil {
			return nil, reads, err
		}
		reads++

		cmp := format.CompareFold(term, word)
		switch {
		case cmp == 0:
			postings, err := readPostings(r)
			return postings, reads, err
		case cmp < 0:
			offset = lower
		default:
			offset = upper
		}
	}
	return nil, reads, nil
}

func readPostings(r *format.Reader) (map[int16]int16, error) {
	docCount, err := r.ReadInt16()
	if err != nil {
		return nil, err
	}
	postings := make(map[int16]int16, docCount)
	for i := int16(0); i < docCount; i++ {
		id, err := r.ReadInt16()
		if err != nil {
			return nil, err
		}
		occ, err := r.ReadInt16()
		if err != nil {
			return nil, err
		}
		r.Skip(int64(occ) * 2)
		postings[id] = occ
	}
	return postings, nil
}

type scoredDoc struct {
	id    int16
	score float64
}

// rank orders documents by descending score; ties break by ascending
// document id so equal scores rank deterministically.
func rank(scores map[int16]float64) []scoredDoc {
	ranked := make([]scoredDoc, 0, len(scores))
	for id, score := range scores {
		ranked = append(ranked, scoredDoc{id: id, score: score})
	}
	sort.Slice(ranked, func(i, j int) bool {
		if ranked[i].score != ranked[j].score {
			return ranked[i].score > ranked[j].score
		}
		return ranked[i].id < ranked[j].id
	})
	return ranked
}

// resolveURLs maps ranked document ids back to URL strings through the URL
// table referenced by the file header.
func resolveURLs(f io.ReaderAt, ranked []scoredDoc) ([]string, error) {
	r := format.NewReader(f, 0)
	tableStart, err := r.ReadInt64()
	if err != nil {
		return nil, err
	}
	urls := make([]string, 0, len(ranked))
	for _, doc := range ranked {
		r.Seek(tableStart + 2 + int64(doc.id)*8)
		entryOffset, err := r.ReadInt64()
		if err != nil {
			return nil, err
		}
		r.Seek(entryOffset)
		url, err := r.ReadString()
		if err != nil {
			return nil, err
		}
		urls = append(urls, url)
	}
	return urls, nil
}
