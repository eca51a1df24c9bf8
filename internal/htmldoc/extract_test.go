package htmldoc

import (
	"bytes"
	"strings"
	"testing"

	"golang.org/x/net/html"
)

func parseDoc(t *testing.T, src string) *Document {
	t.Helper()
	doc, err := Parse(strings.NewReader(src))
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	return doc
}

func groupTexts(groups GroupMap) []string {
	out := make([]string, 0, len(groups))
	for _, e := range groups {
		out = append(out, e.Group.String())
	}
	return out
}

func TestExtract_AdjacentInlineFormsOneGroup(t *testing.T) {
	doc := parseDoc(t, `<p>Hello <b>brave</b> new <i>world</i>!</p>`)
	groups := Extract(doc.Root)

	if len(groups) != 1 {
		t.Fatalf("expected 1 group, got %d: %v", len(groups), groupTexts(groups))
	}
	g := groups[0].Group
	if got := g.String(); got != "Hello brave new world!" {
		t.Errorf("group text = %q", got)
	}
	if g.Len() != 5 {
		t.Errorf("expected 5 shreds, got %d", g.Len())
	}
}

func TestExtract_BlockChildSplitsGroups(t *testing.T) {
	doc := parseDoc(t, `<div>before<div>middle</div>after</div>`)
	groups := Extract(doc.Root)

	want := []string{"before", "middle", "after"}
	got := groupTexts(groups)
	if len(got) != len(want) {
		t.Fatalf("expected %d groups, got %d: %v", len(want), len(got), got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("group %d = %q, want %q", i, got[i], want[i])
		}
	}
}

func TestExtract_DiscoveryOrderIsDocumentOrder(t *testing.T) {
	doc := parseDoc(t, `<body><h1>Title</h1><p>First <em>paragraph</em></p><p>Second</p></body>`)
	groups := Extract(doc.Root)

	want := []string{"Title", "First paragraph", "Second"}
	got := groupTexts(groups)
	if len(got) != len(want) {
		t.Fatalf("expected %d groups, got %d: %v", len(want), len(got), got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("group %d = %q, want %q", i, got[i], want[i])
		}
	}
	// Keys are sequential strings in discovery order.
	for i, e := range groups {
		if e.Key != []string{"0", "1", "2"}[i] {
			t.Errorf("key %d = %q", i, e.Key)
		}
	}
}

func TestExtract_WhitespaceOnlyLeavesAreFiltered(t *testing.T) {
	doc := parseDoc(t, "<div>\n  <p>Text</p>\n   \n</div>")
	groups := Extract(doc.Root)

	if len(groups) != 1 {
		t.Fatalf("expected 1 group, got %d: %v", len(groups), groupTexts(groups))
	}
	if groups[0].Group.String() != "Text" {
		t.Errorf("group text = %q", groups[0].Group.String())
	}
}

func TestExtract_ScriptAndCommentsSkipped(t *testing.T) {
	doc := parseDoc(t, `<body><!-- note --><script>var x = 1;</script><p>Visible</p></body>`)
	groups := Extract(doc.Root)

	if len(groups) != 1 || groups[0].Group.String() != "Visible" {
		t.Fatalf("expected only the visible group, got %v", groupTexts(groups))
	}
}

func TestExtract_NewlinesStrippedFromShreds(t *testing.T) {
	doc := parseDoc(t, "<p>line one\nline two</p>")
	groups := Extract(doc.Root)

	if len(groups) != 1 {
		t.Fatalf("expected 1 group, got %d", len(groups))
	}
	if got := groups[0].Group.String(); strings.Contains(got, "\n") {
		t.Errorf("shred retains newline: %q", got)
	}
}

func TestExtract_EmptyTreeProducesNoGroups(t *testing.T) {
	doc := parseDoc(t, `<div><span></span></div>`)
	if groups := Extract(doc.Root); len(groups) != 0 {
		t.Fatalf("expected no groups, got %v", groupTexts(groups))
	}
}

func TestReplaceShred_MutatesTreeInPlace(t *testing.T) {
	doc := parseDoc(t, `<p>Settings</p>`)
	groups := Extract(doc.Root)
	if len(groups) != 1 {
		t.Fatalf("expected 1 group, got %d", len(groups))
	}

	if err := groups[0].Group.ReplaceShred(0, "Einstellungen"); err != nil {
		t.Fatalf("replace: %v", err)
	}

	var buf bytes.Buffer
	if err := doc.Render(&buf); err != nil {
		t.Fatalf("render: %v", err)
	}
	if !strings.Contains(buf.String(), "<p>Einstellungen</p>") {
		t.Errorf("rendered html missing replacement: %s", buf.String())
	}
}

func TestReplaceShred_IndexOutOfRange(t *testing.T) {
	doc := parseDoc(t, `<p>one</p>`)
	groups := Extract(doc.Root)
	if err := groups[0].Group.ReplaceShred(3, "x"); err == nil {
		t.Error("expected error for out-of-range shred index")
	}
}

func TestNewInlineGroup_MismatchedLengthsFail(t *testing.T) {
	n := &html.Node{Type: html.ElementNode, Data: "p"}
	if _, err := NewInlineGroup([]string{"a", "b"}, []int{0}, []*html.Node{n}); err == nil {
		t.Error("expected validation error for mismatched slice lengths")
	}
}

func TestGroupMap_Get(t *testing.T) {
	doc := parseDoc(t, `<p>alpha</p><p>beta</p>`)
	groups := Extract(doc.Root)

	g, ok := groups.Get("1")
	if !ok || g.String() != "beta" {
		t.Errorf("Get(1) = %v, %v", g, ok)
	}
	if _, ok := groups.Get("9"); ok {
		t.Error("expected missing key to report !ok")
	}
}
