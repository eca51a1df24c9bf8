package source

import (
	"strings"
	"testing"

	"github.com/dgallion1/doctrans/internal/htmldoc"
)

func TestForFile_KnownExtensions(t *testing.T) {
	cases := []struct {
		filename string
		want     string
	}{
		{"page.html", "*source.HTMLLoader"},
		{"page.HTM", "*source.HTMLLoader"},
		{"readme.md", "*source.MarkdownLoader"},
		{"readme.markdown", "*source.MarkdownLoader"},
		{"report.docx", "*source.DOCXLoader"},
		{"paper.pdf", "*source.PDFLoader"},
	}
	for _, c := range cases {
		l, err := ForFile(c.filename)
		if err != nil {
			t.Errorf("ForFile(%q): %v", c.filename, err)
			continue
		}
		if got := typeName(l); got != c.want {
			t.Errorf("ForFile(%q) = %s, want %s", c.filename, got, c.want)
		}
	}
}

func typeName(l Loader) string {
	switch l.(type) {
	case *HTMLLoader:
		return "*source.HTMLLoader"
	case *MarkdownLoader:
		return "*source.MarkdownLoader"
	case *DOCXLoader:
		return "*source.DOCXLoader"
	case *PDFLoader:
		return "*source.PDFLoader"
	}
	return "unknown"
}

func TestForFile_UnsupportedExtension(t *testing.T) {
	if _, err := ForFile("archive.zip"); err == nil {
		t.Error("expected error for unsupported extension")
	}
}

func TestIsSupportedExtension(t *testing.T) {
	if !IsSupportedExtension("doc.html") || !IsSupportedExtension("DOC.MD") {
		t.Error("expected supported extensions to be recognized")
	}
	if IsSupportedExtension("doc.txt") || IsSupportedExtension("noext") {
		t.Error("expected unsupported extensions to be rejected")
	}
}

func TestHTMLLoader_ParsesTree(t *testing.T) {
	doc, err := (&HTMLLoader{}).Load(strings.NewReader(`<p>Hello <b>World</b></p>`), "page.html")
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	groups := htmldoc.Extract(doc.Root)
	if len(groups) != 1 {
		t.Fatalf("got %d groups, want 1", len(groups))
	}
	if got := groups[0].Group.String(); got != "Hello World" {
		t.Errorf("group text = %q", got)
	}
}

func TestMarkdownLoader_InlineMarkupSurvives(t *testing.T) {
	md := "# Title\n\nSome *emphasized* text with `code`.\n"
	doc, err := (&MarkdownLoader{}).Load(strings.NewReader(md), "readme.md")
	if err != nil {
		t.Fatalf("load: %v", err)
	}

	groups := htmldoc.Extract(doc.Root)
	var texts []string
	for _, e := range groups {
		texts = append(texts, e.Group.String())
	}
	joined := strings.Join(texts, "|")
	if !strings.Contains(joined, "Title") {
		t.Errorf("heading lost: %q", joined)
	}
	if !strings.Contains(joined, "Some emphasized text with code.") {
		t.Errorf("paragraph with inline markup not grouped as one: %q", joined)
	}

	// The emphasized word must sit in its own shred so the markup can be
	// reassembled after translation.
	for _, e := range groups {
		if strings.Contains(e.Group.String(), "emphasized") {
			if e.Group.Len() < 3 {
				t.Errorf("expected multiple shreds, got %d", e.Group.Len())
			}
		}
	}
}

func TestMarkdownLoader_RendersBackToHTML(t *testing.T) {
	doc, err := (&MarkdownLoader{}).Load(strings.NewReader("plain paragraph"), "note.md")
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	var buf strings.Builder
	if err := doc.Render(&buf); err != nil {
		t.Fatalf("render: %v", err)
	}
	if !strings.Contains(buf.String(), "<p>plain paragraph</p>") {
		t.Errorf("rendered = %s", buf.String())
	}
}
