package source

import (
	"fmt"
	"io"

	"github.com/dgallion1/doctrans/internal/htmldoc"
)

// HTMLLoader handles .html and .htm files, which need no conversion.
type HTMLLoader struct{}

func (l *HTMLLoader) Load(r io.Reader, filename string) (*htmldoc.Document, error) {
	doc, err := htmldoc.Parse(r)
	if err != nil {
		return nil, fmt.Errorf("parse html %s: %w", filename, err)
	}
	return doc, nil
}
