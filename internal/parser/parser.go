// Package parser reads exported Markdown documents back: front matter, the
// summary split, local asset references and shortcodes.
package parser

import (
	"bytes"
	"regexp"
	"strings"

	"gopkg.in/yaml.v3"
)

const summaryMarker = "<!--more-->"

var (
	assetRe     = regexp.MustCompile(`(?:src|href)="\./((?:images|files)/[^"]+)"`)
	seriesRe    = regexp.MustCompile(`\{\{<\s*series\s+"([^"]*)"\s*>\}\}`)
	shortcodeRe = regexp.MustCompile(`\{\{<\s*/?\s*([A-Za-z][\w-]*)`)
)

// Result holds the output of parsing an exported document.
type Result struct {
	Frontmatter map[string]interface{}
	Body        string
	Summary     string
	Title       string
	Tags        []string
	Series      []string
	Language    string
	Draft       bool
	Assets      []string
	Shortcodes  []string
}

// Parse splits front matter from body and extracts what the exporter wrote.
func Parse(data []byte) (*Result, error) {
	fm, body, err := splitFrontmatter(data)
	if err != nil {
		return nil, err
	}

	return &Result{
		Frontmatter: fm,
		Body:        body,
		Summary:     summary(body),
		Title:       deriveTitle(fm, body),
		Tags:        stringList(fm, "Tags", "tags"),
		Series:      stringList(fm, "series"),
		Language:    stringField(fm, "Language", "language"),
		Draft:       draft(fm),
		Assets:      extractAssets(body),
		Shortcodes:  extractShortcodes(body),
	}, nil
}

// splitFrontmatter separates YAML front matter (between leading --- delimiters)
// from the Markdown body. If no front matter is found the entire content is body.
func splitFrontmatter(data []byte) (map[string]interface{}, string, error) {
	const delim = "---"
	trimmed := bytes.TrimLeft(data, "\n\r")

	if !bytes.HasPrefix(trimmed, []byte(delim)) {
		return nil, string(data), nil
	}

	rest := trimmed[len(delim):]
	idx := bytes.Index(rest, []byte("\n"+delim))
	if idx < 0 {
		return nil, string(data), nil
	}

	yamlBlock := rest[:idx]
	afterDelim := rest[idx+1+len(delim):]
	body := strings.TrimLeft(string(afterDelim), "\n\r")

	var fm map[string]interface{}
	if err := yaml.Unmarshal(yamlBlock, &fm); err != nil {
		// Invalid YAML: keep the whole input as body.
		return nil, string(data), nil
	}

	return fm, body, nil
}

// summary returns the text after the summary marker up to the first blank
// line, or the first paragraph when there is no marker.
func summary(body string) string {
	text := body
	if _, after, ok := strings.Cut(body, summaryMarker); ok {
		text = after
	}
	text = strings.TrimLeft(text, "\n\r")
	para, _, _ := strings.Cut(text, "\n\n")
	return strings.TrimSpace(para)
}

func stringField(fm map[string]interface{}, keys ...string) string {
	for _, k := range keys {
		if s, ok := fm[k].(string); ok && strings.TrimSpace(s) != "" {
			return strings.TrimSpace(s)
		}
	}
	return ""
}

func stringList(fm map[string]interface{}, keys ...string) []string {
	seen := make(map[string]struct{})
	var out []string
	for _, k := range keys {
		items, ok := fm[k].([]interface{})
		if !ok {
			continue
		}
		for _, item := range items {
			s, ok := item.(string)
			if !ok {
				continue
			}
			s = strings.TrimSpace(s)
			if s == "" {
				continue
			}
			if _, dup := seen[s]; dup {
				continue
			}
			seen[s] = struct{}{}
			out = append(out, s)
		}
	}
	return out
}

func draft(fm map[string]interface{}) bool {
	b, _ := fm["draft"].(bool)
	return b
}

// extractAssets returns the deduplicated local asset paths referenced by the
// body, relative to the document directory.
func extractAssets(body string) []string {
	return uniqueSubmatches(assetRe, body)
}

func extractShortcodes(body string) []string {
	return uniqueSubmatches(shortcodeRe, body)
}

func uniqueSubmatches(re *regexp.Regexp, body string) []string {
	matches := re.FindAllStringSubmatch(body, -1)
	seen := make(map[string]struct{}, len(matches))
	var out []string
	for _, m := range matches {
		if _, ok := seen[m[1]]; ok {
			continue
		}
		seen[m[1]] = struct{}{}
		out = append(out, m[1])
	}
	return out
}

// SeriesShortcodes returns the series names linked from the body footer.
func SeriesShortcodes(body string) []string {
	return uniqueSubmatches(seriesRe, body)
}

// deriveTitle returns the front matter title if present, otherwise the first
// H1 heading, otherwise empty string.
func deriveTitle(fm map[string]interface{}, body string) string {
	if s := stringField(fm, "Title", "title"); s != "" {
		return s
	}
	for _, line := range strings.Split(body, "\n") {
		trimmed := strings.TrimSpace(line)
		if strings.HasPrefix(trimmed, "# ") {
			return strings.TrimSpace(trimmed[2:])
		}
	}
	return ""
}
