// Package tokenizer converts a page's content tree into an ordered stream of
// indexable words. It walks the tree without recursion using only the tree's
// own first-child/next-sibling/parent links, because the resulting word order
// feeds document positions that are part of the on-disk contract.
package tokenizer

import "unicode"

// Node is the navigable content tree the tokenizer consumes. Implementations
// must return a nil Node for absent links and must be comparable by identity,
// so that revisiting the same underlying node yields an equal value.
type Node interface {
	// Name is the lower-cased element name. Text nodes report "#text",
	// comment nodes "#comment".
	Name() string
	// Attr looks up an attribute value by name.
	Attr(name string) (string, bool)
	// Text is the node's rendered inner text.
	Text() string
	FirstChild() Node
	NextSibling() Node
	Parent() Node
}

// Token is a single extracted word and its sequential position within the
// document. Positions start at 0 and increase once per emitted word across
// the whole page, including attribute-derived words.
type Token struct {
	Term     string
	Position int
}

// Tokenize walks the tree rooted at root in document order and returns every
// indexable word with its position. Subtrees under head, script, and comment
// nodes are skipped entirely. Anchor title attributes are tokenized when the
// anchor is first visited, before its children. Image nodes contribute their
// title and alt attributes in place of inner text. Any other leaf contributes
// its inner text.
func Tokenize(root Node) []Token {
	if root == nil {
		return nil
	}
	w := walker{root: root}
	node := root
	for node != nil {
		if skip(node) {
			node = w.advance(node)
			continue
		}
		switch node.Name() {
		case "a":
			if title, ok := node.Attr("title"); ok {
				w.segment(title)
			}
		case "img":
			if title, ok := node.Attr("title"); ok {
				w.segment(title)
			}
			if alt, ok := node.Attr("alt"); ok {
				w.segment(alt)
			}
			node = w.advance(node)
			continue
		}
		if child := node.FirstChild(); child != nil {
			node = child
			continue
		}
		w.segment(node.Text())
		node = w.advance(node)
	}
	return w.tokens
}

type walker struct {
	root   Node
	tokens []Token
	pos    int
}

// advance moves to the next sibling, or ascends until an ancestor with a next
// sibling is found. Ascending back to the root terminates the walk.
func (w *walker) advance(node Node) Node {
	for node != nil {
		if node == w.root {
			return nil
		}
		if sib := node.NextSibling(); sib != nil {
			return sib
		}
		node = node.Parent()
	}
	return nil
}

// segment splits a text chunk into maximal runs of letters and digits. Every
// other character separates words and is discarded. The position counter is
// shared across all chunks of the document.
func (w *walker) segment(text string) {
	start := -1
	for i, r := range text {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			if start < 0 {
				start = i
			}
			continue
		}
		if start >= 0 {
			w.emit(text[start:i])
			start = -1
		}
	}
	if start >= 0 {
		w.emit(text[start:])
	}
}

func (w *walker) emit(word string) {
	w.tokens = append(w.tokens, Token{Term: word, Position: w.pos})
	w.pos++
}

func skip(node Node) bool {
	switch node.Name() {
	case "head", "script", "#comment":
		return true
	}
	return false
}
