package source

import (
	"fmt"
	"html"
	"io"
	"os"
	"strings"

	pdflib "github.com/ledongthuc/pdf"

	"github.com/dgallion1/doctrans/internal/htmldoc"
)

// PDFLoader handles PDF files. Extraction is text-only: each page becomes
// one <p> element, so layout beyond page boundaries is not preserved.
type PDFLoader struct{}

func (l *PDFLoader) Load(r io.Reader, filename string) (*htmldoc.Document, error) {
	// ledongthuc/pdf requires a ReadSeeker+size, so write to a temp file.
	tmp, err := os.CreateTemp("", "doctrans-pdf-*.pdf")
	if err != nil {
		return nil, fmt.Errorf("create temp file: %w", err)
	}
	tmpPath := tmp.Name()
	defer os.Remove(tmpPath)

	if _, err := io.Copy(tmp, r); err != nil {
		tmp.Close()
		return nil, fmt.Errorf("write temp file: %w", err)
	}
	tmp.Close()

	f, reader, err := pdflib.Open(tmpPath)
	if err != nil {
		return nil, fmt.Errorf("open pdf %s: %w", filename, err)
	}
	defer f.Close()

	var buf strings.Builder
	buf.WriteString("<html><body>")
	numPages := reader.NumPage()
	for i := 1; i <= numPages; i++ {
		page := reader.Page(i)
		if page.V.IsNull() {
			continue
		}
		text, err := page.GetPlainText(nil)
		if err != nil {
			continue
		}
		text = strings.TrimSpace(text)
		if text == "" {
			continue
		}
		buf.WriteString("<p>")
		buf.WriteString(html.EscapeString(text))
		buf.WriteString("</p>")
	}
	buf.WriteString("</body></html>")

	out, err := htmldoc.Parse(strings.NewReader(buf.String()))
	if err != nil {
		return nil, fmt.Errorf("parse converted pdf %s: %w", filename, err)
	}
	return out, nil
}
