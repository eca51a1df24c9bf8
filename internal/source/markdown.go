package source

import (
	"bytes"
	"fmt"
	"io"

	"github.com/yuin/goldmark"

	"github.com/dgallion1/doctrans/internal/htmldoc"
)

// MarkdownLoader handles Markdown files by rendering them to HTML with
// goldmark before parsing. Inline emphasis, links and code spans survive
// the conversion as inline tags, so they group and translate naturally.
type MarkdownLoader struct{}

func (l *MarkdownLoader) Load(r io.Reader, filename string) (*htmldoc.Document, error) {
	src, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", filename, err)
	}

	var buf bytes.Buffer
	if err := goldmark.Convert(src, &buf); err != nil {
		return nil, fmt.Errorf("convert markdown %s: %w", filename, err)
	}

	doc, err := htmldoc.Parse(&buf)
	if err != nil {
		return nil, fmt.Errorf("parse converted markdown %s: %w", filename, err)
	}
	return doc, nil
}
