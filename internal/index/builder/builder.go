// Package builder aggregates tokenized pages into a sorted vocabulary and
// serializes it as a balanced on-disk binary search tree with a satellite
// URL table. The whole index is produced by one DoIndex call; the output
// file is never updated in place afterwards.
package builder

import (
	"context"
	"fmt"

	"github.com/rdejong/sitesearch/internal/index/format"
	"github.com/rdejong/sitesearch/internal/index/htmldoc"
	"github.com/rdejong/sitesearch/internal/index/source"
	"github.com/rdejong/sitesearch/internal/index/tokenizer"
	apperrors "github.com/rdejong/sitesearch/pkg/errors"
	"github.com/rdejong/sitesearch/pkg/logger"
)

// DoIndex builds (or overwrites) the index file at path from the given
// documents, in order. It returns only on completion, cancellation, or
// error. Cancellation is honored between documents during aggregation and
// between node writes during serialization; an interrupted build leaves a
// truncated file the caller must discard.
func DoIndex(ctx context.Context, docs []source.Document, path string) error {
	log := logger.WithComponent("index-builder")

	vocab := newVocabulary()
	for _, doc := range docs {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := aggregate(vocab, doc); err != nil {
			return fmt.Errorf("aggregating %s: %w", doc.URL(), err)
		}
	}
	entries := vocab.sorted()

	w, err := format.Create(path)
	if err != nil {
		return err
	}
	s := &serializer{w: w, ids: make(map[string]int16)}

	// Header placeholder, patched once the URL table position is known.
	if err := w.WriteInt64(0); err != nil {
		w.Close()
		return err
	}
	if err := s.writeTree(ctx, entries); err != nil {
		w.Close()
		return err
	}
	if err := s.writeURLTable(); err != nil {
		w.Close()
		return err
	}
	if err := w.Close(); err != nil {
		return err
	}

	log.Info("index built",
		"path", path,
		"documents", len(s.urls),
		"words", len(entries),
		"size_bytes", w.Offset(),
	)
	return nil
}

// aggregate tokenizes one document and folds its words into the vocabulary.
func aggregate(vocab *vocabulary, doc source.Document) error {
	rc, err := doc.Content()
	if err != nil {
		return err
	}
	defer rc.Close()

	root, err := htmldoc.Parse(rc)
	if err != nil {
		return err
	}
	for _, tok := range tokenizer.Tokenize(root) {
		if err := vocab.add(tok.Term, doc.URL(), tok.Position); err != nil {
			return err
		}
	}
	return nil
}

// serializer writes the word tree and URL table, assigning dense document
// ids in the order documents are first referenced during the tree walk.
type serializer struct {
	w    *format.Writer
	ids  map[string]int16
	urls []string
}

// workItem is one pending subarray of the sorted vocabulary, plus the file
// offset of the parent's child slot to patch with this node's position.
// A non-positive patch offset means there is nothing to patch (the root).
type workItem struct {
	low, high int
	patchAt   int64
}

// writeTree serializes entries as a complete binary search tree by iterative
// bisection. Each step writes the middle element of its range, reserves two
// child slots, and queues the halves with the slot offsets to backpatch.
func (s *serializer) writeTree(ctx context.Context, entries []*entry) error {
	if len(entries) == 0 {
		return nil
	}
	queue := []workItem{{low: 0, high: len(entries) - 1, patchAt: format.NoChild}}
	for len(queue) > 0 {
		if err := ctx.Err(); err != nil {
			return err
		}
		item := queue[0]
		queue = queue[1:]

		if item.patchAt > 0 {
			if err := s.w.PatchInt64(item.patchAt, s.w.Offset()); err != nil {
				return err
			}
		}
		mid := item.low + (item.high-item.low)/2
		e := entries[mid]

		if err := s.w.WriteString(e.word); err != nil {
			return err
		}
		lowerSlot := s.w.Offset()
		if err := s.w.WriteInt64(format.NoChild); err != nil {
			return err
		}
		upperSlot := s.w.Offset()
		if err := s.w.WriteInt64(format.NoChild); err != nil {
			return err
		}
		if mid > item.low {
			queue = append(queue, workItem{low: item.low, high: mid - 1, patchAt: lowerSlot})
		}
		if mid < item.high {
			queue = append(queue, workItem{low: mid + 1, high: item.high, patchAt: upperSlot})
		}
		if err := s.writePostings(e); err != nil {
			return fmt.Errorf("writing postings for %q: %w", e.word, err)
		}
	}
	return nil
}

// writePostings writes one word's posting list: document count, then per
// document its id, occurrence count, and raw position list. Documents keep
// the order they entered aggregation, so id assignment is deterministic for
// a fixed input ordering.
func (s *serializer) writePostings(e *entry) error {
	if len(e.docs) > format.MaxCount {
		return fmt.Errorf("%w: word in %d documents", apperrors.ErrCapacityExceeded, len(e.docs))
	}
	if err := s.w.WriteInt16(int16(len(e.docs))); err != nil {
		return err
	}
	for _, dp := range e.docs {
		id, err := s.docID(dp.url)
		if err != nil {
			return err
		}
		if len(dp.positions) > format.MaxCount {
			return fmt.Errorf("%w: %d occurrences in %s", apperrors.ErrCapacityExceeded, len(dp.positions), dp.url)
		}
		if err := s.w.WriteInt16(id); err != nil {
			return err
		}
		if err := s.w.WriteInt16(int16(len(dp.positions))); err != nil {
			return err
		}
		for _, pos := range dp.positions {
			if err := s.w.WriteInt16(pos); err != nil {
				return err
			}
		}
	}
	return nil
}

// docID returns the document's dense id, assigning the next one on first
// reference.
func (s *serializer) docID(url string) (int16, error) {
	if id, ok := s.ids[url]; ok {
		return id, nil
	}
	if len(s.urls) >= format.MaxCount {
		return 0, fmt.Errorf("%w: more than %d documents", apperrors.ErrCapacityExceeded, format.MaxCount)
	}
	id := int16(len(s.urls))
	s.ids[url] = id
	s.urls = append(s.urls, url)
	return id, nil
}

// writeURLTable records the table position in the file header, then writes
// the document count, one offset slot per id, and the length-prefixed URL
// strings, patching each slot as its URL is written.
func (s *serializer) writeURLTable() error {
	tableOffset := s.w.Offset()
	if err := s.w.PatchInt64(0, tableOffset); err != nil {
		return err
	}
	if err := s.w.WriteInt16(int16(len(s.urls))); err != nil {
		return err
	}
	slotsBase := s.w.Offset()
	for range s.urls {
		if err := s.w.WriteInt64(0); err != nil {
			return err
		}
	}
	for i, url := range s.urls {
		if err := s.w.PatchInt64(slotsBase+int64(i)*8, s.w.Offset()); err != nil {
			return err
		}
		if err := s.w.WriteString(url); err != nil {
			return err
		}
	}
	return nil
}
