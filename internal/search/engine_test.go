package search

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/rdejong/sitesearch/internal/index/builder"
	"github.com/rdejong/sitesearch/internal/index/source"
)

type memDoc struct {
	url  string
	body string
}

func (d memDoc) URL() string { return d.url }

func (d memDoc) Content() (io.ReadCloser, error) {
	return io.NopCloser(strings.NewReader("<html><body>" + d.body + "</body></html>")), nil
}

func buildIndex(tb testing.TB, docs []source.Document) string {
	tb.Helper()
	path := filepath.Join(tb.TempDir(), "site.idx")
	if err := builder.DoIndex(context.Background(), docs, path); err != nil {
		tb.Fatalf("DoIndex: %v", err)
	}
	return path
}

// fixtureEngine indexes the testdata pages and returns an engine over them.
func fixtureEngine(tb testing.TB) *Engine {
	tb.Helper()
	docs, err := source.Dir("testdata/pages")
	if err != nil {
		tb.Fatalf("listing fixture pages: %v", err)
	}
	return NewEngine(buildIndex(tb, docs), 5*time.Second, nil)
}

func assertURLs(t *testing.T, got []string, want ...string) {
	t.Helper()
	if len(got) != len(want) {
		t.Fatalf("got %d results %v, want %d %v", len(got), got, len(want), want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("result %d = %q, want %q", i, got[i], want[i])
		}
	}
}

func TestSearchRanksByRelativeOccurrence(t *testing.T) {
	engine := fixtureEngine(t)

	// "de" appears three times in TestPage1, twice in TestPage4, once in
	// TestPage3, and not at all in TestPage2.
	urls, err := engine.Search(context.Background(), "de")
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	assertURLs(t, urls, "TestPage1.html", "TestPage4.html", "TestPage3.html")
}

func TestSearchIsCaseInsensitive(t *testing.T) {
	engine := fixtureEngine(t)

	for _, query := range []string{"de", "De", "DE"} {
		urls, err := engine.Search(context.Background(), query)
		if err != nil {
			t.Fatalf("Search(%q): %v", query, err)
		}
		assertURLs(t, urls, "TestPage1.html", "TestPage4.html", "TestPage3.html")
	}
}

func TestSearchUnknownWord(t *testing.T) {
	engine := fixtureEngine(t)

	urls, err := engine.Search(context.Background(), "koolstofdatering")
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(urls) != 0 {
		t.Fatalf("got %v for an unknown word, want no results", urls)
	}
}

func TestSearchEmptyQuery(t *testing.T) {
	engine := fixtureEngine(t)

	for _, query := range []string{"", "   "} {
		urls, err := engine.Search(context.Background(), query)
		if err != nil {
			t.Fatalf("Search(%q): %v", query, err)
		}
		if len(urls) != 0 {
			t.Fatalf("Search(%q) = %v, want no results", query, urls)
		}
	}
}

func TestSearchMultipleTerms(t *testing.T) {
	engine := fixtureEngine(t)

	// "molen" only appears in TestPage1, so it reinforces the "de" ranking.
	urls, err := engine.Search(context.Background(), "de molen")
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	assertURLs(t, urls, "TestPage1.html", "TestPage4.html", "TestPage3.html")

	urls, err = engine.Search(context.Background(), "molen")
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	assertURLs(t, urls, "TestPage1.html")
}

func TestSearchUnknownTermsContributeNothing(t *testing.T) {
	engine := fixtureEngine(t)

	urls, err := engine.Search(context.Background(), "koolstofdatering molen")
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	assertURLs(t, urls, "TestPage1.html")
}

func TestSearchDuplicateTermsCollapse(t *testing.T) {
	engine := fixtureEngine(t)

	single, err := engine.Search(context.Background(), "de")
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	repeated, err := engine.Search(context.Background(), "de de de")
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	assertURLs(t, repeated, single...)
}

func TestSearchEmptyIndex(t *testing.T) {
	engine := NewEngine(buildIndex(t, nil), time.Second, nil)

	urls, err := engine.Search(context.Background(), "iets")
	if err != nil {
		t.Fatalf("Search on empty index: %v", err)
	}
	if len(urls) != 0 {
		t.Fatalf("Search on empty index = %v, want no results", urls)
	}
}

func TestSearchCancelled(t *testing.T) {
	engine := fixtureEngine(t)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := engine.Search(ctx, "de"); !errors.Is(err, context.Canceled) {
		t.Fatalf("Search on cancelled context = %v, want context.Canceled", err)
	}
}

func TestSearchTimeout(t *testing.T) {
	docs, err := source.Dir("testdata/pages")
	if err != nil {
		t.Fatalf("listing fixture pages: %v", err)
	}
	engine := NewEngine(buildIndex(t, docs), time.Nanosecond, nil)

	if _, err := engine.Search(context.Background(), "de"); !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("Search with expired timeout = %v, want context.DeadlineExceeded", err)
	}
}

func TestSplitQuery(t *testing.T) {
	cases := []struct {
		query string
		want  []string
	}{
		{"", nil},
		{"   ", nil},
		{"de", []string{"de"}},
		{"de  molen", []string{"de", "molen"}},
		{" de molen ", []string{"de", "molen"}},
		{"de de molen de", []string{"de", "molen"}},
		{"De de", []string{"De", "de"}},
	}
	for _, tc := range cases {
		got := splitQuery(tc.query)
		if len(got) != len(tc.want) {
			t.Errorf("splitQuery(%q) = %v, want %v", tc.query, got, tc.want)
			continue
		}
		for i := range tc.want {
			if got[i] != tc.want[i] {
				t.Errorf("splitQuery(%q)[%d] = %q, want %q", tc.query, i, got[i], tc.want[i])
			}
		}
	}
}

func TestLookupDepthBound(t *testing.T) {
	const vocabSize = 127
	words := make([]string, vocabSize)
	for i := range words {
		words[i] = fmt.Sprintf("woord%03d", i)
	}
	doc := memDoc{url: "alles.html", body: "<p>" + strings.Join(words, " ") + "</p>"}
	path := buildIndex(t, []source.Document{doc})

	f, err := os.Open(path)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer f.Close()

	// A complete tree over n words is never deeper than ceil(log2(n+1)).
	bound := 0
	for n := vocabSize; n > 0; n >>= 1 {
		bound++
	}

	ctx := context.Background()
	for _, word := range words {
		postings, reads, err := lookupTerm(ctx, f, word)
		if err != nil {
			t.Fatalf("lookupTerm(%q): %v", word, err)
		}
		if len(postings) != 1 {
			t.Fatalf("lookupTerm(%q) found %d documents, want 1", word, len(postings))
		}
		if reads > bound {
			t.Errorf("lookupTerm(%q) read %d nodes, want at most %d", word, reads, bound)
		}
	}

	_, reads, err := lookupTerm(ctx, f, "zzzz")
	if err != nil {
		t.Fatalf("lookupTerm miss: %v", err)
	}
	if reads > bound {
		t.Errorf("missing-word lookup read %d nodes, want at most %d", reads, bound)
	}
}

func TestRankOrdersByScoreThenID(t *testing.T) {
	ranked := rank(map[int16]float64{
		3: 0.5,
		1: 0.5,
		2: 0.9,
		7: 0.1,
	})
	want := []int16{2, 1, 3, 7}
	if len(ranked) != len(want) {
		t.Fatalf("rank returned %d docs, want %d", len(ranked), len(want))
	}
	for i, id := range want {
		if ranked[i].id != id {
			t.Errorf("rank[%d].id = %d, want %d", i, ranked[i].id, id)
		}
	}
}

func BenchmarkSearch(b *testing.B) {
	docs, err := source.Dir("testdata/pages")
	if err != nil {
		b.Fatalf("listing fixture pages: %v", err)
	}
	engine := NewEngine(buildIndex(b, docs), 5*time.Second, nil)
	ctx := context.Background()

	b.ReportAllocs()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		urls, err := engine.Search(ctx, "de molen")
		if err != nil {
			b.Fatal(err)
		}
		_ = urls
	}
}
