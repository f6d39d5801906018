package builder

import (
	"fmt"
	"sort"
	"strings"

	"github.com/rdejong/sitesearch/internal/index/format"
	apperrors "github.com/rdejong/sitesearch/pkg/errors"
)

// entry is one vocabulary word with its postings. The word keeps its
// first-seen casing; case variants merge into the same entry. Documents stay
// in first-seen order.
type entry struct {
	word  string
	docs  []*docPostings
	byURL map[string]*docPostings
}

// docPostings is the ordered position list of a word within one document.
type docPostings struct {
	url       string
	positions []int16
}

// vocabulary accumulates postings during aggregation, keyed by the
// case-folded word so comparison semantics match the on-disk tree order.
type vocabulary struct {
	entries map[string]*entry
}

func newVocabulary() *vocabulary {
	return &vocabulary{entries: make(map[string]*entry)}
}

// add records one occurrence of word at the given position within url.
func (v *vocabulary) add(word, url string, pos int) error {
	if pos > format.MaxCount {
		return fmt.Errorf("%w: word position %d in %s", apperrors.ErrCapacityExceeded, pos, url)
	}
	key := strings.ToLower(word)
	e, ok := v.entries[key]
	if !ok {
		e = &entry{word: word, byURL: make(map[string]*docPostings)}
		v.entries[key] = e
	}
	dp, ok := e.byURL[url]
	if !ok {
		dp = &docPostings{url: url}
		e.byURL[url] = dp
		e.docs = append(e.docs, dp)
	}
	dp.positions = append(dp.positions, int16(pos))
	return nil
}

// sorted returns the entries ordered under ordinal case-insensitive
// comparison, ready for bisection.
func (v *vocabulary) sorted() []*entry {
	entries := make([]*entry, 0, len(v.entries))
	for _, e := range v.entries {
		entries = append(entries, e)
	}
	sort.Slice(entries, func(i, j int) bool {
		return format.CompareFold(entries[i].word, entries[j].word) < 0
	})
	return entries
}
