package inspect

import (
	"bufio"
	"io"
	"strings"
)

// TextInspector reads plain text reference documents.
type TextInspector struct{}

func (p *TextInspector) Inspect(r io.Reader, filename string) (*Info, error) {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	var sb strings.Builder
	for scanner.Scan() {
		if sb.Len() > 0 {
			sb.WriteString("\n")
		}
		sb.WriteString(scanner.Text())
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}

	text := strings.TrimSpace(sb.String())
	return &Info{
		Title: titleFromFilename(filename),
		Words: countWords(text),
		Text:  text,
	}, nil
}
