package source

import (
	"fmt"
	"html"
	"io"
	"os"
	"strings"

	"github.com/fumiama/go-docx"

	"github.com/dgallion1/doctrans/internal/htmldoc"
)

// DOCXLoader handles .docx files. Paragraphs become <p> elements, heading
// styles become <h1>..<h6>, and each run becomes a <span> so run
// boundaries survive as inline structure.
type DOCXLoader struct{}

func (l *DOCXLoader) Load(r io.Reader, filename string) (*htmldoc.Document, error) {
	// go-docx needs a ReadSeeker+size, so write to temp file.
	tmp, err := os.CreateTemp("", "doctrans-docx-*.docx")
	if err != nil {
		return nil, fmt.Errorf("create temp file: %w", err)
	}
	tmpPath := tmp.Name()
	defer os.Remove(tmpPath)

	size, err := io.Copy(tmp, r)
	if err != nil {
		tmp.Close()
		return nil, fmt.Errorf("write temp file: %w", err)
	}
	if _, err := tmp.Seek(0, io.SeekStart); err != nil {
		tmp.Close()
		return nil, fmt.Errorf("seek temp file: %w", err)
	}

	doc, err := docx.Parse(tmp, int64(size))
	tmp.Close()
	if err != nil {
		return nil, fmt.Errorf("parse docx %s: %w", filename, err)
	}

	var buf strings.Builder
	buf.WriteString("<html><body>")
	for _, item := range doc.Document.Body.Items {
		para, ok := item.(*docx.Paragraph)
		if !ok {
			continue
		}
		writeParagraph(&buf, para)
	}
	buf.WriteString("</body></html>")

	out, err := htmldoc.Parse(strings.NewReader(buf.String()))
	if err != nil {
		return nil, fmt.Errorf("parse converted docx %s: %w", filename, err)
	}
	return out, nil
}

func writeParagraph(buf *strings.Builder, para *docx.Paragraph) {
	tag := "p"
	if level := docxHeadingLevel(para); level > 0 {
		tag = fmt.Sprintf("h%d", level)
	}

	var runs []string
	for _, child := range para.Children {
		run, ok := child.(*docx.Run)
		if !ok {
			continue
		}
		var text strings.Builder
		for _, rc := range run.Children {
			if t, ok := rc.(*docx.Text); ok {
				text.WriteString(t.Text)
			}
		}
		if text.Len() > 0 {
			runs = append(runs, text.String())
		}
	}
	if len(runs) == 0 {
		return
	}

	fmt.Fprintf(buf, "<%s>", tag)
	for _, run := range runs {
		buf.WriteString("<span>")
		buf.WriteString(html.EscapeString(run))
		buf.WriteString("</span>")
	}
	fmt.Fprintf(buf, "</%s>", tag)
}

func docxHeadingLevel(para *docx.Paragraph) int {
	if para.Properties == nil || para.Properties.Style == nil {
		return 0
	}
	style := strings.ToLower(para.Properties.Style.Val)
	style = strings.ReplaceAll(style, " ", "")
	if !strings.HasPrefix(style, "heading") {
		return 0
	}
	switch style[len("heading"):] {
	case "1":
		return 1
	case "2":
		return 2
	case "3":
		return 3
	case "4":
		return 4
	case "5":
		return 5
	case "6":
		return 6
	}
	return 0
}
