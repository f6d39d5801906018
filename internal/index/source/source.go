// Package source supplies the documents an index build consumes: a URL
// identifier plus a byte stream per page, opened once and read fully during
// aggregation.
package source

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// Document identifies one page and provides its raw content.
type Document interface {
	URL() string
	Content() (io.ReadCloser, error)
}

// FileDocument is a Document backed by a file on disk.
type FileDocument struct {
	url  string
	path string
}

// NewFileDocument creates a FileDocument with an explicit URL.
func NewFileDocument(url, path string) FileDocument {
	return FileDocument{url: url, path: path}
}

func (d FileDocument) URL() string {
	return d.url
}

func (d FileDocument) Content() (io.ReadCloser, error) {
	f, err := os.Open(d.path)
	if err != nil {
		return nil, fmt.Errorf("opening document %s: %w", d.url, err)
	}
	return f, nil
}

// Dir returns the HTML pages directly inside dir, in sorted file-name order
// so repeated builds see the same document ordering. The file name is used
// as the document URL.
func Dir(dir string) ([]Document, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("reading pages directory: %w", err)
	}
	names := make([]string, 0, len(entries))
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		name := entry.Name()
		ext := strings.ToLower(filepath.Ext(name))
		if ext == ".html" || ext == ".htm" {
			names = append(names, name)
		}
	}
	sort.Strings(names)

	docs := make([]Document, 0, len(names))
	for _, name := range names {
		docs = append(docs, NewFileDocument(name, filepath.Join(dir, name)))
	}
	return docs, nil
}
