package render

import (
	"strings"

	"github.com/starford/notionhugo/internal/models"
)

// RichText renders spans as inline Markdown, concatenated with no separator.
func RichText(spans []models.RichText) string {
	var b strings.Builder
	writeRichText(&b, spans)
	return b.String()
}

func writeRichText(b *strings.Builder, spans []models.RichText) {
	for _, s := range spans {
		b.WriteString(Span(s))
	}
}

// Span renders a single span. Code wraps first, then emphasis, then
// underline, then strikethrough; a link wraps the finished result.
func Span(s models.RichText) string {
	text := s.PlainText
	a := s.Annotations

	if a.Code {
		text = "`" + text + "`"
	}

	switch {
	case a.Bold && a.Italic:
		text = "***" + text + "***"
	case a.Bold:
		text = "**" + text + "**"
	case a.Italic:
		text = "*" + text + "*"
	}

	if a.Underline {
		text = "<u>" + text + "</u>"
	}
	if a.Strikethrough {
		text = "~" + text + "~"
	}

	if s.Href != "" {
		text = "[" + text + "](" + s.Href + ")"
	}
	return text
}
