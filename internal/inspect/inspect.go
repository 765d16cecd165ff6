// Package inspect extracts display metadata and indexable text from
// reference documents before they are uploaded to the retrieval corpus.
package inspect

import (
	"fmt"
	"io"
	"path/filepath"
	"strings"
)

// Info is what an inspection yields: a display title, rough size figures,
// and the flattened text used for local corpus indexing.
type Info struct {
	Title string
	Pages int // 0 when the format has no page concept
	Words int
	Text  string
}

// Inspector reads a document of one format.
type Inspector interface {
	Inspect(r io.Reader, filename string) (*Info, error)
}

// SupportedExtensions lists the reference-document formats accepted for
// corpus upload.
var SupportedExtensions = map[string]bool{
	".pdf":  true,
	".md":   true,
	".txt":  true,
	".docx": true,
}

// ForFile returns the inspector for a filename.
func ForFile(filename string) (Inspector, error) {
	ext := strings.ToLower(filepath.Ext(filename))
	switch ext {
	case ".pdf":
		return &PDFInspector{}, nil
	case ".md", ".markdown":
		return &MarkdownInspector{}, nil
	case ".txt":
		return &TextInspector{}, nil
	case ".docx":
		return &DOCXInspector{}, nil
	default:
		return nil, fmt.Errorf("unsupported file extension: %s", ext)
	}
}

// IsSupported checks whether a filename's extension can be inspected.
func IsSupported(filename string) bool {
	ext := strings.ToLower(filepath.Ext(filename))
	if ext == ".markdown" {
		return true
	}
	return SupportedExtensions[ext]
}

func countWords(s string) int {
	return len(strings.Fields(s))
}

func titleFromFilename(filename string) string {
	base := filepath.Base(filename)
	return strings.TrimSuffix(base, filepath.Ext(base))
}
