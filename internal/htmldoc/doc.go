// Package htmldoc wraps golang.org/x/net/html with the operations the
// translation pipeline needs: parsing, rendering, inline/block tag
// classification, and in-place replacement of text leaves.
package htmldoc

import (
	"fmt"
	"io"

	"golang.org/x/net/html"
)

// Document is a mutable HTML tree. The pipeline only ever replaces text
// leaves; it never changes the node structure.
type Document struct {
	Root *html.Node
}

// Parse reads HTML from r into a mutable tree.
func Parse(r io.Reader) (*Document, error) {
	root, err := html.Parse(r)
	if err != nil {
		return nil, fmt.Errorf("parse html: %w", err)
	}
	return &Document{Root: root}, nil
}

// Render serializes the tree back to HTML.
func (d *Document) Render(w io.Writer) error {
	if err := html.Render(w, d.Root); err != nil {
		return fmt.Errorf("render html: %w", err)
	}
	return nil
}

// inlineTags is the closed set of tag names treated as inline content.
// Tags outside this set, including unknown ones, are block-level.
var inlineTags = map[string]bool{
	"a": true, "abbr": true, "acronym": true, "b": true,
	"bdo": true, "big": true, "br": true, "button": true,
	"cite": true, "code": true, "dfn": true, "em": true, "i": true,
	"img": true, "input": true, "kbd": true, "label": true,
	"map": true, "object": true, "output": true, "q": true,
	"samp": true, "select": true, "small": true,
	"span": true, "strong": true, "sub": true, "sup": true,
	"textarea": true, "time": true, "tt": true, "var": true,
}

// IsInline reports whether n is an element conventionally rendered without
// a line break. Adjacent inline content tends to continue a sentence, which
// is the inductive rule the grouping extractor is built on.
func IsInline(n *html.Node) bool {
	return n.Type == html.ElementNode && inlineTags[n.Data]
}

// childAt returns the i-th child of n, or nil if out of range.
func childAt(n *html.Node, i int) *html.Node {
	if i < 0 {
		return nil
	}
	c := n.FirstChild
	for ; c != nil && i > 0; c = c.NextSibling {
		i--
	}
	return c
}

// replaceTextChild sets the content of the i-th child of owner, which must
// be a text node.
func replaceTextChild(owner *html.Node, i int, text string) error {
	c := childAt(owner, i)
	if c == nil {
		return fmt.Errorf("no child at index %d", i)
	}
	if c.Type != html.TextNode {
		return fmt.Errorf("child at index %d is not a text node", i)
	}
	c.Data = text
	return nil
}
