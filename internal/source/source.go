// Package source loads input documents of several formats and normalizes
// each one into an HTML tree the translation pipeline can work on.
package source

import (
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"github.com/dgallion1/doctrans/internal/htmldoc"
)

// Loader converts raw document bytes into an HTML document.
type Loader interface {
	Load(r io.Reader, filename string) (*htmldoc.Document, error)
}

// SupportedExtensions lists file extensions this service can handle.
var SupportedExtensions = map[string]bool{
	".html":     true,
	".htm":      true,
	".md":       true,
	".markdown": true,
	".docx":     true,
	".pdf":      true,
}

// ForFile returns the appropriate loader for a filename.
func ForFile(filename string) (Loader, error) {
	ext := strings.ToLower(filepath.Ext(filename))
	switch ext {
	case ".html", ".htm":
		return &HTMLLoader{}, nil
	case ".md", ".markdown":
		return &MarkdownLoader{}, nil
	case ".docx":
		return &DOCXLoader{}, nil
	case ".pdf":
		return &PDFLoader{}, nil
	default:
		return nil, fmt.Errorf("unsupported file extension: %s", ext)
	}
}

// IsSupportedExtension checks if a file extension is supported.
func IsSupportedExtension(filename string) bool {
	ext := strings.ToLower(filepath.Ext(filename))
	return SupportedExtensions[ext]
}
