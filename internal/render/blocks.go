package render

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"path/filepath"
	"strings"

	"github.com/starford/notionhugo/internal/assets"
	"github.com/starford/notionhugo/internal/models"
)

// Asset subdirectories below a document's directory.
const (
	ImagesDir = assets.ImagesDir
	FilesDir  = "files"
)

// AssetFetcher downloads a remote resource into dir and returns the local
// file name. An empty name asks for a content-addressed one.
type AssetFetcher interface {
	Fetch(ctx context.Context, rawURL, dir, name string) (string, error)
}

// Options configures a Renderer for one document.
type Options struct {
	DocumentID   string
	OutputDir    string // document directory
	Language     string // derived language code, e.g. "fr"
	CenterImages bool
}

// State is the rendering context threaded down the block tree.
type State struct {
	Depth       int
	TableHeader bool
}

// Indent returns the prefix for prefixed kinds at this depth.
func (s State) Indent() string {
	return strings.Repeat("    ", s.Depth)
}

// Renderer converts single blocks to Markdown. It is scoped to one document.
type Renderer struct {
	assets   AssetFetcher
	opts     Options
	logger   *slog.Logger
	warnings []models.Warning
}

// NewRenderer creates a Renderer for one document.
func NewRenderer(fetcher AssetFetcher, opts Options, logger *slog.Logger) *Renderer {
	if logger == nil {
		logger = slog.Default()
	}
	return &Renderer{assets: fetcher, opts: opts, logger: logger}
}

// Warnings returns the non-fatal issues collected so far.
func (r *Renderer) Warnings() []models.Warning {
	return r.warnings
}

// Block renders b without a trailing line terminator. Table blocks render
// nothing themselves; their rows do.
func (r *Renderer) Block(ctx context.Context, b models.Block, st State) (string, error) {
	indent := st.Indent()

	switch b.Kind {
	case models.KindParagraph:
		return RichText(b.RichText), nil
	case models.KindHeading1:
		return indent + "# " + RichText(b.RichText), nil
	case models.KindHeading2:
		return indent + "## " + RichText(b.RichText), nil
	case models.KindHeading3:
		return indent + "### " + RichText(b.RichText), nil
	case models.KindBulleted:
		return indent + "* " + RichText(b.RichText), nil
	case models.KindNumbered:
		return indent + "1. " + RichText(b.RichText), nil
	case models.KindTodo:
		box := "- [ ] "
		if b.Checked {
			box = "- [x] "
		}
		return indent + box + RichText(b.RichText), nil
	case models.KindCode:
		return r.code(b, indent), nil
	case models.KindCallout:
		return callout(b, indent), nil
	case models.KindImage:
		return r.image(ctx, b)
	case models.KindFile:
		return r.file(ctx, b)
	case models.KindDivider:
		return "___", nil
	case models.KindTable:
		return "", nil
	case models.KindTableRow:
		return tableRow(b, st.TableHeader), nil
	default:
		r.unsupported(b)
		return "", nil
	}
}

func (r *Renderer) unsupported(b models.Block) {
	r.logger.Warn("unsupported block",
		slog.String("document_id", r.opts.DocumentID),
		slog.String("parent_id", b.ParentID),
		slog.String("block_id", b.ID),
		slog.String("type", b.Type))
	r.warn(models.WarningUnsupportedBlock, b.ID, fmt.Sprintf("unsupported block type %q", b.Type))
}

func (r *Renderer) warn(typ models.WarningType, blockID, msg string) {
	r.warnings = append(r.warnings, models.Warning{
		Type:       typ,
		DocumentID: r.opts.DocumentID,
		BlockID:    blockID,
		Message:    msg,
	})
}

func (r *Renderer) image(ctx context.Context, b models.Block) (string, error) {
	if b.File == nil || b.File.URL == "" {
		return "", nil
	}
	name, ok, err := r.fetch(ctx, b, ImagesDir, "")
	if err != nil || !ok {
		return "", err
	}

	var sb strings.Builder
	if r.opts.CenterImages {
		sb.WriteString(`<p align="center">`)
	} else {
		sb.WriteString(`<p>`)
	}
	fmt.Fprintf(&sb, `<img max-width="100%%" max-height="100%%" src="./%s/%s" /></p>`, ImagesDir, name)

	if caption := RichText(b.Caption); strings.TrimSpace(caption) != "" {
		sb.WriteString("\n")
		fmt.Fprintf(&sb, `<figure><figcaption class="image-caption">%s</figcaption></figure>`, caption)
	}
	return sb.String(), nil
}

func (r *Renderer) file(ctx context.Context, b models.Block) (string, error) {
	if b.File == nil || b.File.URL == "" {
		return "", nil
	}
	name := FileName(b.File.URL)
	if name == "" {
		r.warn(models.WarningAssetUnavailable, b.ID, "file url has no usable file name")
		return "", nil
	}
	if _, ok, err := r.fetch(ctx, b, FilesDir, name); err != nil || !ok {
		return "", err
	}
	return fmt.Sprintf(`{{< link href="./%s/%s" content="%s" title="Download %s" download="%s" card=true >}}`,
		FilesDir, name, name, name, name), nil
}

// fetch downloads the block's resource. A non-success response is reported
// as ok=false; any other failure is returned.
func (r *Renderer) fetch(ctx context.Context, b models.Block, sub, name string) (string, bool, error) {
	dir := filepath.Join(r.opts.OutputDir, sub)
	got, err := r.assets.Fetch(ctx, b.File.URL, dir, name)
	if err != nil {
		if errors.Is(err, assets.ErrUnavailable) {
			r.logger.Warn("asset unavailable",
				slog.String("document_id", r.opts.DocumentID),
				slog.String("block_id", b.ID),
				slog.String("error", err.Error()))
			r.warn(models.WarningAssetUnavailable, b.ID, err.Error())
			return "", false, nil
		}
		return "", false, fmt.Errorf("render: %s block %s: %w", b.Kind, b.ID, err)
	}
	return got, true, nil
}

// FileName extracts the literal file name from a resource URL: the segment
// between the last "/" and the first "?", percent-decoded. It returns "" when
// the decoded name is not a single plain file name.
func FileName(rawURL string) string {
	before, _, _ := strings.Cut(rawURL, "?")
	name := before[strings.LastIndex(before, "/")+1:]
	if decoded, err := url.PathUnescape(name); err == nil {
		name = decoded
	}
	if strings.ContainsAny(name, `/\`) || !filepath.IsLocal(name) || filepath.Base(name) != name {
		return ""
	}
	return name
}

func tableRow(b models.Block, header bool) string {
	var sb strings.Builder
	sb.WriteString("|")
	for _, cell := range b.Cells {
		sb.WriteString(" ")
		sb.WriteString(RichText(cell))
		sb.WriteString(" |")
	}
	if header {
		sb.WriteString("\n")
		sb.WriteString(strings.Repeat("| --- ", len(b.Cells)))
		sb.WriteString("|")
	}
	return sb.String()
}
