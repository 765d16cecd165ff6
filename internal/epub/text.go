package epub

import (
	"strings"

	"golang.org/x/net/html"
)

// blockTags are elements that force a line break when flattening markup.
var blockTags = map[string]bool{
	"p": true, "div": true, "br": true, "li": true, "tr": true,
	"h1": true, "h2": true, "h3": true, "h4": true, "h5": true, "h6": true,
	"table": true, "blockquote": true, "section": true, "article": true,
}

// Text flattens captured markup to plain text for prompting: tags are
// dropped, script/style content is skipped, and block-level elements
// produce line breaks. Inline whitespace inside lines is preserved so that
// indentation-sensitive code listings survive.
func Text(markup string) string {
	z := html.NewTokenizer(strings.NewReader(markup))
	var sb strings.Builder
	skipDepth := 0

	for {
		switch z.Next() {
		case html.ErrorToken:
			return strings.TrimSpace(sb.String())

		case html.StartTagToken:
			name, _ := z.TagName()
			tag := string(name)
			if tag == "script" || tag == "style" {
				skipDepth++
			}
			if blockTags[tag] && sb.Len() > 0 {
				sb.WriteByte('\n')
			}

		case html.EndTagToken:
			name, _ := z.TagName()
			tag := string(name)
			if tag == "script" || tag == "style" {
				if skipDepth > 0 {
					skipDepth--
				}
			}
			if blockTags[tag] {
				sb.WriteByte('\n')
			}

		case html.SelfClosingTagToken:
			name, _ := z.TagName()
			if blockTags[string(name)] {
				sb.WriteByte('\n')
			}

		case html.TextToken:
			if skipDepth == 0 {
				sb.Write(z.Text())
			}
		}
	}
}
