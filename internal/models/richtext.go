package models

// Annotations is the formatting set attached to a rich text span.
type Annotations struct {
	Bold          bool
	Italic        bool
	Strikethrough bool
	Underline     bool
	Code          bool
}

// RichText is a run of text with its own formatting and optional link.
type RichText struct {
	PlainText   string
	Href        string
	Annotations Annotations
}

// PlainText concatenates the unformatted text of spans.
func PlainText(spans []RichText) string {
	if len(spans) == 1 {
		return spans[0].PlainText
	}
	n := 0
	for _, s := range spans {
		n += len(s.PlainText)
	}
	b := make([]byte, 0, n)
	for _, s := range spans {
		b = append(b, s.PlainText...)
	}
	return string(b)
}
