package htmldoc

import (
	"sort"
	"strconv"
	"strings"
	"unicode"

	"golang.org/x/net/html"
)

// shredItem is one text leaf discovered during traversal. ord is a globally
// increasing discovery counter used to order groups afterwards.
type shredItem struct {
	shred string
	cid   int
	owner *html.Node
	ord   int
}

// ignorable reports whether a text node carries no translatable content:
// empty, or made entirely of whitespace (unicode.IsSpace also covers the
// non-breaking spaces indentation artifacts are made of).
func ignorable(s string) bool {
	for _, r := range s {
		if !unicode.IsSpace(r) {
			return false
		}
	}
	return true
}

// Extract walks the tree in document order and partitions its text leaves
// into ordered groups of adjacent inline content.
//
// The traversal keeps one running group per node. Text leaves join it,
// inline subtrees merge their own items into it, and block subtrees flush
// it as a completed group. An inline node bubbles its running group up to
// the parent instead of flushing, which is what lets a sentence span
// nested inline tags.
func Extract(root *html.Node) GroupMap {
	var all [][]shredItem
	cnt := 0

	// traverse returns the running group together with whether n itself is
	// inline. Only an inline node's items are merged by the parent.
	var traverse func(n *html.Node) ([]shredItem, bool)
	traverse = func(n *html.Node) ([]shredItem, bool) {
		var group []shredItem
		inline := IsInline(n)
		cid := -1
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			cid++
			switch {
			case c.Type == html.CommentNode || c.Type == html.DoctypeNode:
				continue
			case c.Type == html.ElementNode && c.Data == "script":
				continue
			case c.Type == html.TextNode:
				if ignorable(c.Data) {
					continue
				}
				group = append(group, shredItem{
					shred: strings.ReplaceAll(c.Data, "\n", ""),
					cid:   cid,
					owner: n,
					ord:   cnt,
				})
				cnt++
			case c.Type == html.ElementNode:
				sub, childInline := traverse(c)
				if childInline {
					group = append(group, sub...)
				} else if !inline && len(group) > 0 {
					all = append(all, group)
					group = nil
				}
			}
		}
		if !inline {
			if len(group) > 0 {
				all = append(all, group)
			}
			return nil, false
		}
		return group, true
	}

	traverse(root)

	// Discovery counters increase monotonically within a group, so the
	// first member carries the minimum. Sorting guards against any
	// out-of-order merging.
	sort.SliceStable(all, func(i, j int) bool {
		return all[i][0].ord < all[j][0].ord
	})

	groups := make(GroupMap, 0, len(all))
	for i, items := range all {
		g := &InlineGroup{
			Shreds:   make([]string, len(items)),
			ChildIdx: make([]int, len(items)),
			Owners:   make([]*html.Node, len(items)),
		}
		for j, it := range items {
			g.Shreds[j] = it.shred
			g.ChildIdx[j] = it.cid
			g.Owners[j] = it.owner
		}
		groups = append(groups, GroupEntry{Key: strconv.Itoa(i), Group: g})
	}
	return groups
}
