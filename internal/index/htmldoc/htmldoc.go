// Package htmldoc adapts parsed HTML into the content tree the tokenizer
// walks. Parsing is delegated to golang.org/x/net/html; this package only
// exposes the navigation the index core actually consumes.
package htmldoc

import (
	"fmt"
	"io"

	"golang.org/x/net/html"

	"github.com/rdejong/sitesearch/internal/index/tokenizer"
)

// Parse reads a full HTML page and returns the root of its content tree.
func Parse(r io.Reader) (tokenizer.Node, error) {
	doc, err := html.Parse(r)
	if err != nil {
		return nil, fmt.Errorf("parsing html: %w", err)
	}
	return node{doc}, nil
}

// node wraps an html.Node by value, so two wrappers of the same underlying
// node compare equal. The tokenizer relies on that to detect its root.
type node struct {
	n *html.Node
}

func (n node) Name() string {
	switch n.n.Type {
	case html.TextNode:
		return "#text"
	case html.CommentNode:
		return "#comment"
	case html.DocumentNode:
		return "#document"
	case html.DoctypeNode:
		return "#doctype"
	default:
		return n.n.Data
	}
}

func (n node) Attr(name string) (string, bool) {
	for _, a := range n.n.Attr {
		if a.Key == name {
			return a.Val, true
		}
	}
	return "", false
}

func (n node) Text() string {
	if n.n.Type == html.TextNode {
		return n.n.Data
	}
	return ""
}

func (n node) FirstChild() tokenizer.Node {
	if n.n.FirstChild == nil {
		return nil
	}
	return node{n.n.FirstChild}
}

func (n node) NextSibling() tokenizer.Node {
	if n.n.NextSibling == nil {
		return nil
	}
	return node{n.n.NextSibling}
}

func (n node) Parent() tokenizer.Node {
	if n.n.Parent == nil {
		return nil
	}
	return node{n.n.Parent}
}
