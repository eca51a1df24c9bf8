package htmldoc

import (
	"fmt"
	"strings"

	"golang.org/x/net/html"
)

// InlineGroup is a maximal run of adjacent inline text leaves collected as
// one translatable unit. The three slices are parallel: Shreds[i] is the
// captured text of the ChildIdx[i]-th child of Owners[i].
type InlineGroup struct {
	Shreds   []string
	ChildIdx []int
	Owners   []*html.Node
}

// NewInlineGroup validates that the parallel slices have equal length.
func NewInlineGroup(shreds []string, childIdx []int, owners []*html.Node) (*InlineGroup, error) {
	if len(shreds) != len(childIdx) || len(childIdx) != len(owners) {
		return nil, fmt.Errorf("inline group slices must have equal length: %d/%d/%d",
			len(shreds), len(childIdx), len(owners))
	}
	return &InlineGroup{Shreds: shreds, ChildIdx: childIdx, Owners: owners}, nil
}

// String returns the group's full text, the concatenation of its shreds.
func (g *InlineGroup) String() string {
	return strings.Join(g.Shreds, "")
}

// Len returns the shred count.
func (g *InlineGroup) Len() int {
	return len(g.Shreds)
}

// ReplaceShred mutates the tree, substituting the i-th shred's text leaf
// with text.
func (g *InlineGroup) ReplaceShred(i int, text string) error {
	if i < 0 || i >= len(g.Shreds) {
		return fmt.Errorf("shred index %d out of range (0..%d)", i, len(g.Shreds)-1)
	}
	if err := replaceTextChild(g.Owners[i], g.ChildIdx[i], text); err != nil {
		return fmt.Errorf("replace shred %d: %w", i, err)
	}
	g.Shreds[i] = text
	return nil
}

// GroupEntry pairs a group with its stable key.
type GroupEntry struct {
	Key   string
	Group *InlineGroup
}

// GroupMap is an ordered mapping from key to InlineGroup. Keys are assigned
// in traversal-discovery order, which approximates document reading order.
type GroupMap []GroupEntry

// Get returns the group for key, if present.
func (m GroupMap) Get(key string) (*InlineGroup, bool) {
	for _, e := range m {
		if e.Key == key {
			return e.Group, true
		}
	}
	return nil, false
}
