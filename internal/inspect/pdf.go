package inspect

import (
	"fmt"
	"io"
	"os"
	"strings"

	pdflib "github.com/ledongthuc/pdf"
)

// PDFInspector reads PDF reference documents.
type PDFInspector struct{}

func (p *PDFInspector) Inspect(r io.Reader, filename string) (*Info, error) {
	// ledongthuc/pdf needs a ReadSeeker plus size, so spill to a temp file.
	tmp, err := os.CreateTemp("", "cptgest-pdf-*.pdf")
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
		return nil, fmt.Errorf("open pdf: %w", err)
	}
	defer f.Close()

	var buf strings.Builder
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
		if buf.Len() > 0 {
			buf.WriteString("\f")
		}
		buf.WriteString(text)
	}

	text := strings.TrimSpace(buf.String())
	return &Info{
		Title: titleFromFilename(filename),
		Pages: numPages,
		Words: countWords(text),
		Text:  text,
	}, nil
}
