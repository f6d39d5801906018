package builder_test

import (
	"bytes"
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/rdejong/sitesearch/internal/index/builder"
	"github.com/rdejong/sitesearch/internal/index/format"
	"github.com/rdejong/sitesearch/internal/index/source"
	apperrors "github.com/rdejong/sitesearch/pkg/errors"
)

// memDoc is an in-memory page, so builder tests need no fixture files.
type memDoc struct {
	url  string
	body string
}

func (d memDoc) URL() string { return d.url }

func (d memDoc) Content() (io.ReadCloser, error) {
	return io.NopCloser(strings.NewReader(d.body)), nil
}

func page(url, body string) source.Document {
	return memDoc{url: url, body: "<html><body>" + body + "</body></html>"}
}

func build(t *testing.T, docs []source.Document) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "site.idx")
	if err := builder.DoIndex(context.Background(), docs, path); err != nil {
		t.Fatalf("DoIndex: %v", err)
	}
	return path
}

func TestDeterministicBuild(t *testing.T) {
	docs := []source.Document{
		page("a.html", "<p>de molen staat in de polder</p>"),
		page("b.html", "<p>sterren en planeten</p>"),
		page("c.html", "<p>de rivier stroomt naar zee</p>"),
	}

	first, err := os.ReadFile(build(t, docs))
	if err != nil {
		t.Fatalf("reading first index: %v", err)
	}
	second, err := os.ReadFile(build(t, docs))
	if err != nil {
		t.Fatalf("reading second index: %v", err)
	}
	if !bytes.Equal(first, second) {
		t.Fatal("two builds over identical input produced different bytes")
	}
	if len(first) <= format.HeaderSize {
		t.Fatalf("index is only %d bytes", len(first))
	}
}

func TestEmptyIndexLayout(t *testing.T) {
	path := build(t, nil)

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("reading index: %v", err)
	}
	// Header pointing at the URL table, then a zero document count.
	if len(data) != format.HeaderSize+2 {
		t.Fatalf("empty index is %d bytes, want %d", len(data), format.HeaderSize+2)
	}
	r := format.NewReader(bytes.NewReader(data), 0)
	tableStart, err := r.ReadInt64()
	if err != nil {
		t.Fatalf("reading header: %v", err)
	}
	if tableStart != format.HeaderSize {
		t.Fatalf("URL table offset = %d, want %d", tableStart, format.HeaderSize)
	}
	count, err := r.ReadInt16()
	if err != nil {
		t.Fatalf("reading document count: %v", err)
	}
	if count != 0 {
		t.Fatalf("document count = %d, want 0", count)
	}
}

func TestRootIsMiddleOfSortedVocabulary(t *testing.T) {
	path := build(t, []source.Document{
		page("fruit.html", "<p>appel banaan citroen</p>"),
	})
	f, err := os.Open(path)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer f.Close()

	r := format.NewReader(f, format.RootOffset)
	word, err := r.ReadString()
	if err != nil {
		t.Fatalf("reading root word: %v", err)
	}
	if word != "banaan" {
		t.Fatalf("root word = %q, want %q", word, "banaan")
	}
	lower, err := r.ReadInt64()
	if err != nil {
		t.Fatalf("reading lower offset: %v", err)
	}
	upper, err := r.ReadInt64()
	if err != nil {
		t.Fatalf("reading upper offset: %v", err)
	}
	if lower <= 0 || upper <= 0 {
		t.Fatalf("root children = (%d, %d), want both present", lower, upper)
	}

	r.Seek(lower)
	if word, err = r.ReadString(); err != nil || word != "appel" {
		t.Fatalf("lower child = %q, %v, want %q", word, err, "appel")
	}
	r.Seek(upper)
	if word, err = r.ReadString(); err != nil || word != "citroen" {
		t.Fatalf("upper child = %q, %v, want %q", word, err, "citroen")
	}
}

func TestLeafChildrenAreSentinels(t *testing.T) {
	path := build(t, []source.Document{
		page("een.html", "<p>woord</p>"),
	})
	f, err := os.Open(path)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer f.Close()

	r := format.NewReader(f, format.RootOffset)
	if _, err := r.ReadString(); err != nil {
		t.Fatalf("reading root word: %v", err)
	}
	lower, err := r.ReadInt64()
	if err != nil {
		t.Fatalf("reading lower offset: %v", err)
	}
	upper, err := r.ReadInt64()
	if err != nil {
		t.Fatalf("reading upper offset: %v", err)
	}
	if lower > 0 || upper > 0 {
		t.Fatalf("leaf children = (%d, %d), want non-positive sentinels", lower, upper)
	}
}

func TestURLTableHoldsEveryDocument(t *testing.T) {
	path := build(t, []source.Document{
		page("a.html", "<p>molen</p>"),
		page("b.html", "<p>rivier</p>"),
	})
	f, err := os.Open(path)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer f.Close()

	r := format.NewReader(f, 0)
	tableStart, err := r.ReadInt64()
	if err != nil {
		t.Fatalf("reading header: %v", err)
	}
	r.Seek(tableStart)
	count, err := r.ReadInt16()
	if err != nil {
		t.Fatalf("reading document count: %v", err)
	}
	if count != 2 {
		t.Fatalf("document count = %d, want 2", count)
	}

	got := make(map[string]bool)
	for id := int16(0); id < count; id++ {
		r.Seek(tableStart + 2 + int64(id)*8)
		entryOffset, err := r.ReadInt64()
		if err != nil {
			t.Fatalf("reading slot %d: %v", id, err)
		}
		r.Seek(entryOffset)
		url, err := r.ReadString()
		if err != nil {
			t.Fatalf("reading URL %d: %v", id, err)
		}
		got[url] = true
	}
	for _, want := range []string{"a.html", "b.html"} {
		if !got[want] {
			t.Errorf("URL table is missing %q", want)
		}
	}
}

func TestCancelledBuild(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	path := filepath.Join(t.TempDir(), "site.idx")
	docs := []source.Document{page("a.html", "<p>molen</p>")}
	err := builder.DoIndex(ctx, docs, path)
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("DoIndex on cancelled context = %v, want context.Canceled", err)
	}
}

func TestPositionCapacity(t *testing.T) {
	body := "<p>" + strings.Repeat("woord ", format.MaxCount+10) + "</p>"
	path := filepath.Join(t.TempDir(), "site.idx")
	err := builder.DoIndex(context.Background(), []source.Document{page("groot.html", body)}, path)
	if !errors.Is(err, apperrors.ErrCapacityExceeded) {
		t.Fatalf("DoIndex over position capacity = %v, want ErrCapacityExceeded", err)
	}
}

func TestCaseVariantsMergeKeepingFirstCasing(t *testing.T) {
	path := build(t, []source.Document{
		page("a.html", "<p>Molen</p>"),
		page("b.html", "<p>molen MOLEN</p>"),
	})
	f, err := os.Open(path)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer f.Close()

	// One vocabulary entry, stored with its first-seen casing.
	r := format.NewReader(f, format.RootOffset)
	word, err := r.ReadString()
	if err != nil {
		t.Fatalf("reading root word: %v", err)
	}
	if word != "Molen" {
		t.Fatalf("root word = %q, want %q", word, "Molen")
	}
	lower, _ := r.ReadInt64()
	upper, _ := r.ReadInt64()
	if lower > 0 || upper > 0 {
		t.Fatalf("vocabulary has extra entries, children = (%d, %d)", lower, upper)
	}
	docCount, err := r.ReadInt16()
	if err != nil {
		t.Fatalf("reading posting count: %v", err)
	}
	if docCount != 2 {
		t.Fatalf("posting count = %d, want 2", docCount)
	}
}
