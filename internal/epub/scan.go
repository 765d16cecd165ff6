package epub

import (
	"bytes"
	"regexp"
	"strings"

	"golang.org/x/net/html"
)

// PageMarker records where a logical page starts in the merged document.
type PageMarker struct {
	Page   int `json:"page"`
	Offset int `json:"offset"`
}

// HeadingEvent records a heading tag occurrence in the merged document.
type HeadingEvent struct {
	Offset int    `json:"offset"`
	Level  int    `json:"level"`
	Text   string `json:"text"`
}

var pageIDPattern = regexp.MustCompile(`^page_(\d+)$`)

// scanContent walks the merged reading-order markup once, collecting page
// markers (elements with id="page_N") and heading events (h1-h6) with
// their byte offsets. Both slices come back ordered by offset.
func scanContent(data []byte) ([]PageMarker, []HeadingEvent) {
	var (
		markers  []PageMarker
		headings []HeadingEvent
		seen     = make(map[int]bool)
	)

	z := html.NewTokenizer(bytes.NewReader(data))
	offset := 0

	// Heading being accumulated, if any.
	pendingLevel := 0
	pendingOffset := 0
	var pendingText strings.Builder

	for {
		tt := z.Next()
		tokStart := offset
		offset += len(z.Raw())

		switch tt {
		case html.ErrorToken:
			if pendingLevel > 0 {
				headings = append(headings, HeadingEvent{
					Offset: pendingOffset,
					Level:  pendingLevel,
					Text:   collapseSpace(pendingText.String()),
				})
			}
			return markers, headings

		case html.StartTagToken, html.SelfClosingTagToken:
			tok := z.Token()
			for _, attr := range tok.Attr {
				if attr.Key != "id" {
					continue
				}
				if m := pageIDPattern.FindStringSubmatch(attr.Val); m != nil {
					if n := atoiSafe(m[1]); n > 0 && !seen[n] {
						seen[n] = true
						markers = append(markers, PageMarker{Page: n, Offset: tokStart})
					}
				}
			}
			if lvl := headingLevel(tok.Data); lvl > 0 && tt == html.StartTagToken {
				if pendingLevel > 0 {
					// Unclosed heading; close it at the new one.
					headings = append(headings, HeadingEvent{
						Offset: pendingOffset,
						Level:  pendingLevel,
						Text:   collapseSpace(pendingText.String()),
					})
				}
				pendingLevel = lvl
				pendingOffset = tokStart
				pendingText.Reset()
			}

		case html.TextToken:
			if pendingLevel > 0 {
				pendingText.Write(z.Text())
			}

		case html.EndTagToken:
			tok := z.Token()
			if pendingLevel > 0 && headingLevel(tok.Data) == pendingLevel {
				headings = append(headings, HeadingEvent{
					Offset: pendingOffset,
					Level:  pendingLevel,
					Text:   collapseSpace(pendingText.String()),
				})
				pendingLevel = 0
				pendingText.Reset()
			}
		}
	}
}

func headingLevel(tag string) int {
	if len(tag) == 2 && tag[0] == 'h' && tag[1] >= '1' && tag[1] <= '6' {
		return int(tag[1] - '0')
	}
	return 0
}

func collapseSpace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

func atoiSafe(s string) int {
	n := 0
	for _, r := range s {
		if r < '0' || r > '9' {
			return 0
		}
		n = n*10 + int(r-'0')
		if n > 1<<30 {
			return 0
		}
	}
	return n
}
