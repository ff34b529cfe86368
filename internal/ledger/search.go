package ledger

import (
	"strings"
	"unicode"
	"unicode/utf8"
)

const (
	defaultSearchLimit = 20
	snippetRunes       = 160
)

// terms splits a free-text query into lower-cased words. Punctuation and
// query operators are dropped so user input never reaches the engine as
// syntax.
func terms(query string) []string {
	fields := strings.FieldsFunc(strings.ToLower(query), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsNumber(r)
	})
	seen := make(map[string]struct{}, len(fields))
	out := fields[:0]
	for _, f := range fields {
		if _, ok := seen[f]; ok {
			continue
		}
		seen[f] = struct{}{}
		out = append(out, f)
	}
	return out
}

// snippet cuts a window of body around the first occurrence of any term and
// marks the hit with <b></b>.
func snippet(body string, words []string) string {
	lower := strings.ToLower(body)
	at, n := -1, 0
	for _, w := range words {
		if i := strings.Index(lower, w); i >= 0 && (at < 0 || i < at) {
			at, n = i, len(w)
		}
	}
	if at < 0 || len(lower) != len(body) {
		return truncate(body, snippetRunes)
	}

	start := at
	for back := 0; start > 0 && back < snippetRunes/2; back++ {
		_, size := utf8.DecodeLastRuneInString(body[:start])
		start -= size
	}
	end := at + n
	for fwd := 0; end < len(body) && fwd < snippetRunes/2; fwd++ {
		_, size := utf8.DecodeRuneInString(body[end:])
		end += size
	}

	var sb strings.Builder
	if start > 0 {
		sb.WriteString("...")
	}
	sb.WriteString(body[start:at])
	sb.WriteString("<b>")
	sb.WriteString(body[at : at+n])
	sb.WriteString("</b>")
	sb.WriteString(body[at+n : end])
	if end < len(body) {
		sb.WriteString("...")
	}
	return strings.Join(strings.Fields(sb.String()), " ")
}

func truncate(s string, runes int) string {
	if utf8.RuneCountInString(s) <= runes {
		return s
	}
	r := []rune(s)
	return string(r[:runes]) + "..."
}
