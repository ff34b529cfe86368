package exportservice

import (
	"bytes"
	"context"
	"fmt"
	"path"
	"strings"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"
	"github.com/yuin/goldmark/parser"
	"github.com/yuin/goldmark/renderer/html"

	mdparser "github.com/starford/notionhugo/internal/parser"
)

// Preview is an exported document rendered to HTML.
type Preview struct {
	Path  string `json:"path"`
	Title string `json:"title"`
	HTML  string `json:"html"`
}

// The exported body carries raw HTML (centered images, file links), so the
// renderer runs unsafe.
var previewEngine = goldmark.New(
	goldmark.WithExtensions(extension.GFM, extension.TaskList),
	goldmark.WithParserOptions(parser.WithAutoHeadingID()),
	goldmark.WithRendererOptions(html.WithUnsafe()),
)

// Preview renders the body of an exported document. Relative asset
// references are rewritten under assetBase so a browser can load them.
func (s *Service) Preview(_ context.Context, p, assetBase string) (*Preview, error) {
	data, err := s.readDocument(p)
	if err != nil {
		return nil, err
	}
	res, err := mdparser.Parse(data)
	if err != nil {
		return nil, fmt.Errorf("exportservice: parse %s: %w", p, err)
	}

	var buf bytes.Buffer
	if err := previewEngine.Convert([]byte(res.Body), &buf); err != nil {
		return nil, fmt.Errorf("exportservice: render %s: %w", p, err)
	}
	return &Preview{
		Path:  p,
		Title: res.Title,
		HTML:  rebaseAssets(buf.String(), strings.TrimSuffix(assetBase, "/")+"/"+path.Dir(p)+"/"),
	}, nil
}

func rebaseAssets(doc, base string) string {
	r := strings.NewReplacer(
		`src="./`, `src="`+base,
		`href="./`, `href="`+base,
	)
	return r.Replace(doc)
}
