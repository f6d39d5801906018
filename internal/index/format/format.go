// Package format defines the on-disk layout of an index file and the
// low-level primitives both the builder and the search engine use to
// navigate it. All multi-byte integers are little-endian and fixed width:
// int64 for file offsets, int16 for counts, document ids, and positions.
// Strings are an int16 byte length followed by UTF-8 bytes, no terminator.
//
// File layout, top to bottom:
//
//	header:    urlTableOffset (int64), patched after the word tree is written
//	wordNode+: wordLen(int16) wordBytes
//	           lowerOffset(int64) upperOffset(int64)
//	           docCount(int16)
//	           ( docID(int16) occCount(int16) position(int16)*occCount )+
//	urlCount:  int16
//	urlOffset+: int64, one slot per document id
//	urlEntry+: urlLen(int16) urlBytes
//
// Tree nodes are addressed by absolute file offset; the root always sits at
// RootOffset. A child offset <= 0 means the child is absent.
package format

import (
	"encoding/binary"
	"fmt"
	"io"
	"os"
	"unicode"
	"unicode/utf8"

	apperrors "github.com/rdejong/sitesearch/pkg/errors"
)

const (
	// HeaderSize is the 8-byte file header holding the URL-table offset.
	HeaderSize = 8

	// RootOffset is the fixed offset of the word-tree root node.
	RootOffset = HeaderSize

	// NoChild is the sentinel written for an absent child reference.
	// Readers must treat any non-positive offset as absent.
	NoChild int64 = -1

	// MaxCount bounds every int16 quantity in the file: document ids,
	// occurrence counts, word positions, and string byte lengths.
	MaxCount = 32767
)

// Writer appends fixed-endianness values to a new index file and backpatches
// previously reserved slots. It tracks the current end-of-file offset itself
// so reserved-slot patches never disturb the append position.
type Writer struct {
	f   *os.File
	off int64
}

// Create opens path for writing, truncating any existing file.
func Create(path string) (*Writer, error) {
	f, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("creating index file: %w", err)
	}
	return &Writer{f: f}, nil
}

// Offset returns the offset at which the next value will be written.
func (w *Writer) Offset() int64 {
	return w.off
}

// WriteInt64 appends a little-endian int64.
func (w *Writer) WriteInt64(v int64) error {
	var buf [8]byte
	binary.LittleEndian.PutUint64(buf[:], uint64(v))
	return w.write(buf[:])
}

// WriteInt16 appends a little-endian int16.
func (w *Writer) WriteInt16(v int16) error {
	var buf [2]byte
	binary.LittleEndian.PutUint16(buf[:], uint16(v))
	return w.write(buf[:])
}

// WriteString appends a length-prefixed UTF-8 string. Strings longer than
// MaxCount bytes do not fit the int16 length prefix.
func (w *Writer) WriteString(s string) error {
	if len(s) > MaxCount {
		return fmt.Errorf("%w: string of %d bytes", apperrors.ErrCapacityExceeded, len(s))
	}
	if err := w.WriteInt16(int16(len(s))); err != nil {
		return err
	}
	return w.write([]byte(s))
}

// PatchInt64 overwrites a previously written int64 slot at the given offset
// without moving the append position.
func (w *Writer) PatchInt64(at int64, v int64) error {
	var buf [8]byte
	binary.LittleEndian.PutUint64(buf[:], uint64(v))
	if _, err := w.f.WriteAt(buf[:], at); err != nil {
		return fmt.Errorf("patching offset %d: %w", at, err)
	}
	return nil
}

// Close syncs and closes the underlying file.
func (w *Writer) Close() error {
	if err := w.f.Sync(); err != nil {
		w.f.Close()
		return fmt.Errorf("syncing index file: %w", err)
	}
	return w.f.Close()
}

func (w *Writer) write(b []byte) error {
	n, err := w.f.WriteAt(b, w.off)
	w.off += int64(n)
	if err != nil {
		return fmt.Errorf("writing index file: %w", err)
	}
	return nil
}

// Reader decodes values sequentially from an io.ReaderAt, starting at an
// arbitrary offset. It carries its own cursor, so concurrent searches can
// each hold an independent Reader over the same file handle.
type Reader struct {
	r   io.ReaderAt
	off int64
}

// NewReader returns a Reader positioned at off.
func NewReader(r io.ReaderAt, off int64) *Reader {
	return &Reader{r: r, off: off}
}

// Seek repositions the cursor to an absolute offset.
func (r *Reader) Seek(off int64) {
	r.off = off
}

// Offset returns the cursor position.
func (r *Reader) Offset() int64 {
	return r.off
}

// Skip advances the cursor by n bytes without reading them.
func (r *Reader) Skip(n int64) {
	r.off += n
}

// ReadInt64 decodes a little-endian int64 and advances the cursor.
func (r *Reader) ReadInt64() (int64, error) {
	var buf [8]byte
	if err := r.read(buf[:]); err != nil {
		return 0, err
	}
	return int64(binary.LittleEndian.Uint64(buf[:])), nil
}

// ReadInt16 decodes a little-endian int16 and advances the cursor.
func (r *Reader) ReadInt16() (int16, error) {
	var buf [2]byte
	if err := r.read(buf[:]); err != nil {
		return 0, err
	}
	return int16(binary.LittleEndian.Uint16(buf[:])), nil
}

// ReadString decodes a length-prefixed UTF-8 string and advances the cursor.
func (r *Reader) ReadString() (string, error) {
	n, err := r.ReadInt16()
	if err != nil {
		return "", err
	}
	if n < 0 {
		return "", fmt.Errorf("%w: negative string length %d at offset %d", apperrors.ErrIndexCorrupt, n, r.off-2)
	}
	buf := make([]byte, n)
	if err := r.read(buf); err != nil {
		return "", err
	}
	return string(buf), nil
}

func (r *Reader) read(b []byte) error {
	n, err := r.r.ReadAt(b, r.off)
	r.off += int64(n)
	if err != nil {
		return fmt.Errorf("reading index file at offset %d: %w", r.off-int64(n), err)
	}
	return nil
}

// CompareFold compares two strings ordinally and case-insensitively: rune by
// rune after unicode.ToLower, with no locale tailoring. The builder sorts the
// vocabulary with it and the search engine descends the tree with it, so both
// sides always agree on ordering.
func CompareFold(a, b string) int {
	for len(a) > 0 && len(b) > 0 {
		ra, sa := utf8.DecodeRuneInString(a)
		rb, sb := utf8.DecodeRuneInString(b)
		ra, rb = unicode.ToLower(ra), unicode.ToLower(rb)
		if ra != rb {
			if ra < rb {
				return -1
			}
			return 1
		}
		a, b = a[sa:], b[sb:]
	}
	switch {
	case len(a) == 0 && len(b) == 0:
		return 0
	case len(a) == 0:
		return -1
	default:
		return 1
	}
}
