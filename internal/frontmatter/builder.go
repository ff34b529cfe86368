package frontmatter

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"path"

	"gopkg.in/yaml.v3"

	"github.com/starford/notionhugo/internal/assets"
	"github.com/starford/notionhugo/internal/models"
	"github.com/starford/notionhugo/internal/render"
)

const (
	// Delimiter frames the metadata block.
	Delimiter = "---"
	// SummaryMarker separates the summary from the rest of the body.
	SummaryMarker = "<!--more-->"

	coverBaseName = "featured-image-preview"
	dateLayout    = "2006-01-02 15:04:05Z"
)

// Header is the rendered metadata block of a document.
type Header struct {
	Text      string // framed block, blank line and optional summary marker
	CoverName string
	Warnings  []models.Warning
}

// Builder renders metadata blocks and downloads cover images.
type Builder struct {
	assets render.AssetFetcher
	logger *slog.Logger
}

// NewBuilder creates a Builder fetching covers through fetcher.
func NewBuilder(fetcher render.AssetFetcher, logger *slog.Logger) *Builder {
	if logger == nil {
		logger = slog.Default()
	}
	return &Builder{assets: fetcher, logger: logger}
}

// Build renders the metadata block of doc. The cover, when any, is stored in
// dir under a fixed name so re-exports overwrite it.
func (b *Builder) Build(ctx context.Context, doc models.Document, meta Metadata, dir string) (Header, error) {
	var h Header
	root := &yaml.Node{Kind: yaml.MappingNode}

	for _, f := range schema {
		v, ok := meta.Value(f.name)
		if !ok {
			continue
		}
		if f.name == Index {
			if series := meta.Series(); series != "" {
				appendPair(root, "series", flowSeq([]string{series}))
			}
		}
		appendPair(root, string(f.name), fieldNode(meta, f.name, v))
	}

	if doc.Cover != nil && doc.Cover.URL != "" {
		name, err := b.cover(ctx, doc, meta.LanguageCode(), dir)
		switch {
		case errors.Is(err, assets.ErrUnavailable):
			b.logger.Warn("cover unavailable",
				slog.String("document_id", doc.ID),
				slog.String("error", err.Error()))
			h.Warnings = append(h.Warnings, models.Warning{
				Type:       models.WarningAssetUnavailable,
				DocumentID: doc.ID,
				Message:    "cover: " + err.Error(),
			})
		case err != nil:
			return Header{}, err
		default:
			h.CoverName = name
			stem := name[:len(name)-len(path.Ext(name))]
			appendPair(root, "featuredImagePreview", singleQuoted(stem))
			resource := &yaml.Node{Kind: yaml.MappingNode}
			appendPair(resource, "name", singleQuoted(stem))
			appendPair(resource, "src", singleQuoted(name))
			appendPair(root, "resources", &yaml.Node{Kind: yaml.SequenceNode, Content: []*yaml.Node{resource}})
		}
	}

	appendPair(root, "draft", &yaml.Node{Kind: yaml.ScalarNode, Tag: "!!bool", Value: "false"})

	var buf bytes.Buffer
	buf.WriteString(Delimiter + "\n")
	enc := yaml.NewEncoder(&buf)
	enc.SetIndent(2)
	if err := enc.Encode(root); err != nil {
		return Header{}, fmt.Errorf("frontmatter: encode %s: %w", doc.ID, err)
	}
	if err := enc.Close(); err != nil {
		return Header{}, fmt.Errorf("frontmatter: encode %s: %w", doc.ID, err)
	}
	buf.WriteString(Delimiter + "\n\n")
	if meta.ShowSummary() {
		buf.WriteString(SummaryMarker + "\n\n")
	}
	h.Text = buf.String()
	return h, nil
}

func (b *Builder) cover(ctx context.Context, doc models.Document, lang, dir string) (string, error) {
	name := coverBaseName
	if lang != "" {
		name += "-" + lang
	}
	if u, err := url.Parse(doc.Cover.URL); err == nil {
		name += path.Ext(u.Path)
	}
	got, err := b.assets.Fetch(ctx, doc.Cover.URL, dir, name)
	if err != nil {
		if errors.Is(err, assets.ErrUnavailable) {
			return "", err
		}
		return "", fmt.Errorf("frontmatter: cover of %s: %w", doc.ID, err)
	}
	return got, nil
}

// Footer returns the series navigation appended after the body, or "" when
// the document is not part of a series.
func Footer(meta Metadata) string {
	series := meta.Series()
	if series == "" {
		return ""
	}
	label := "More articles in the series:"
	if meta.LanguageCode() == "fr" {
		label = "Plus d'articles dans la même série:"
	}
	return fmt.Sprintf("___\n%s\n{{< series %q >}}\n", label, series)
}

func fieldNode(meta Metadata, n Name, v Value) *yaml.Node {
	switch n {
	case PublishDate:
		t, _ := meta.PublishDate()
		return doubleQuoted(t.Format(dateLayout))
	}
	switch v.Shape {
	case ShapeDateTime:
		return doubleQuoted(v.Time.UTC().Format(dateLayout))
	case ShapeStringSet:
		return flowSeq(v.Set)
	case ShapeBoolean:
		val := "false"
		if v.Bool {
			val = "true"
		}
		return &yaml.Node{Kind: yaml.ScalarNode, Tag: "!!bool", Value: val}
	}
	return doubleQuoted(v.Text)
}

func appendPair(m *yaml.Node, key string, value *yaml.Node) {
	m.Content = append(m.Content, &yaml.Node{Kind: yaml.ScalarNode, Tag: "!!str", Value: key}, value)
}

func doubleQuoted(s string) *yaml.Node {
	return &yaml.Node{Kind: yaml.ScalarNode, Tag: "!!str", Style: yaml.DoubleQuotedStyle, Value: s}
}

func singleQuoted(s string) *yaml.Node {
	return &yaml.Node{Kind: yaml.ScalarNode, Tag: "!!str", Style: yaml.SingleQuotedStyle, Value: s}
}

func flowSeq(items []string) *yaml.Node {
	seq := &yaml.Node{Kind: yaml.SequenceNode, Tag: "!!seq", Style: yaml.FlowStyle}
	for _, it := range items {
		seq.Content = append(seq.Content, doubleQuoted(it))
	}
	return seq
}
