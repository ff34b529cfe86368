// Package exporter drives a full export run: it enumerates documents, turns
// each into a Markdown file with its assets, and writes the section stubs.
package exporter

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"slices"
	"strings"
	"time"

	"github.com/starford/notionhugo/internal/apperr"
	"github.com/starford/notionhugo/internal/checksum"
	"github.com/starford/notionhugo/internal/frontmatter"
	"github.com/starford/notionhugo/internal/layout"
	"github.com/starford/notionhugo/internal/ledger"
	"github.com/starford/notionhugo/internal/models"
	"github.com/starford/notionhugo/internal/render"
	"github.com/starford/notionhugo/internal/storage"
)

// Source is the remote content store.
type Source interface {
	render.ChildLister
	QueryDatabase(ctx context.Context, databaseID, status string) ([]models.Document, error)
	GetPage(ctx context.Context, id string) (models.Document, error)
}

// Query selects the documents of a run. PageIDs, when set, take precedence
// over the database query.
type Query struct {
	DatabaseID string
	Status     string
	PageIDs    []string
}

// Result describes one exported document.
type Result struct {
	DocumentID string           `json:"document_id"`
	Title      string           `json:"title"`
	Path       string           `json:"path"` // relative to the output root
	Language   string           `json:"language,omitempty"`
	Assets     []string         `json:"assets,omitempty"`
	Warnings   []models.Warning `json:"warnings,omitempty"`
}

// Report summarizes a run.
type Report struct {
	Documents []Result `json:"documents"`
	Failed    int      `json:"failed"`
	Stubs     []string `json:"stubs,omitempty"`
}

// Progress event kinds.
const (
	EventRunStarted       = "run.started"
	EventDocumentExported = "document.exported"
	EventDocumentFailed   = "document.failed"
	EventRunFinished      = "run.finished"
)

// Event reports the progress of a run.
type Event struct {
	Kind       string `json:"-"`
	DocumentID string `json:"document_id,omitempty"`
	Path       string `json:"path,omitempty"`
	Warnings   int    `json:"warnings,omitempty"`
	Exported   int    `json:"exported,omitempty"`
	Failed     int    `json:"failed,omitempty"`
	Error      string `json:"error,omitempty"`
}

// Notifier receives progress events. Notify should return quickly.
type Notifier interface {
	Notify(ev Event)
}

// Exporter converts documents into the output tree.
type Exporter struct {
	source       Source
	assets       render.AssetFetcher
	store        storage.Provider
	resolver     *layout.Resolver
	ledger       ledger.Recorder
	notifier     Notifier
	logger       *slog.Logger
	centerImages bool
	strict       bool
}

// Option configures an Exporter.
type Option func(*Exporter)

// WithLedger records every written document.
func WithLedger(r ledger.Recorder) Option {
	return func(e *Exporter) { e.ledger = r }
}

// WithNotifier publishes progress events to n.
func WithNotifier(n Notifier) Option {
	return func(e *Exporter) { e.notifier = n }
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(e *Exporter) {
		if l != nil {
			e.logger = l
		}
	}
}

// WithCenterImages toggles centered image paragraphs.
func WithCenterImages(on bool) Option {
	return func(e *Exporter) { e.centerImages = on }
}

// WithStrict makes a run that matches no documents fail.
func WithStrict(on bool) Option {
	return func(e *Exporter) { e.strict = on }
}

// New creates an Exporter writing below store's root.
func New(source Source, fetcher render.AssetFetcher, store storage.Provider, opts ...Option) *Exporter {
	e := &Exporter{
		source:       source,
		assets:       fetcher,
		store:        store,
		resolver:     layout.NewResolver(store.Root()),
		logger:       slog.Default(),
		centerImages: true,
	}
	for _, o := range opts {
		o(e)
	}
	return e
}

// Run exports every document selected by q, one at a time. A failing
// document is logged and skipped; the joined failures are returned after the
// remaining documents and the section stubs have been written.
func (e *Exporter) Run(ctx context.Context, q Query) (Report, error) {
	start := time.Now()
	var (
		report Report
		errs   []error
	)

	docs, err := e.documents(ctx, q, &report, &errs)
	if err != nil {
		return report, err
	}
	if len(docs) == 0 && len(errs) == 0 {
		e.logger.Warn("no documents matched",
			slog.String("database_id", q.DatabaseID),
			slog.String("status", q.Status))
		if e.strict {
			return report, apperr.ErrNoDocuments
		}
		return report, nil
	}

	e.logger.Info("export started", slog.Int("documents", len(docs)))
	e.notify(Event{Kind: EventRunStarted})
	for _, doc := range docs {
		if err := ctx.Err(); err != nil {
			return report, errors.Join(append(errs, err)...)
		}
		res, err := e.ExportDocument(ctx, doc)
		if err != nil {
			e.logger.Error("document export failed",
				slog.String("document_id", doc.ID),
				slog.String("error", err.Error()))
			report.Failed++
			errs = append(errs, fmt.Errorf("document %s: %w", doc.ID, err))
			e.notify(Event{Kind: EventDocumentFailed, DocumentID: doc.ID, Error: err.Error()})
			continue
		}
		report.Documents = append(report.Documents, res)
		e.notify(Event{Kind: EventDocumentExported, DocumentID: res.DocumentID, Path: res.Path, Warnings: len(res.Warnings)})
	}

	stubs, err := e.resolver.WriteStubs()
	if err != nil {
		errs = append(errs, err)
	}
	report.Stubs = stubs

	warnings := 0
	for _, d := range report.Documents {
		warnings += len(d.Warnings)
	}
	e.logger.Info("export finished",
		slog.Int("exported", len(report.Documents)),
		slog.Int("failed", report.Failed),
		slog.Int("warnings", warnings),
		slog.Int("stubs", len(stubs)),
		slog.Duration("took", time.Since(start)))
	e.notify(Event{Kind: EventRunFinished, Exported: len(report.Documents), Failed: report.Failed})

	return report, errors.Join(errs...)
}

func (e *Exporter) notify(ev Event) {
	if e.notifier != nil {
		e.notifier.Notify(ev)
	}
}

// documents enumerates the documents of q. A page that cannot be fetched
// counts as a failed document; a failed database query fails the run.
func (e *Exporter) documents(ctx context.Context, q Query, report *Report, errs *[]error) ([]models.Document, error) {
	if len(q.PageIDs) == 0 {
		docs, err := e.source.QueryDatabase(ctx, q.DatabaseID, q.Status)
		if err != nil {
			return nil, fmt.Errorf("exporter: query documents: %w", err)
		}
		return docs, nil
	}

	var docs []models.Document
	for _, id := range q.PageIDs {
		doc, err := e.source.GetPage(ctx, id)
		if err != nil {
			e.logger.Error("page fetch failed", slog.String("document_id", id), slog.String("error", err.Error()))
			report.Failed++
			*errs = append(*errs, fmt.Errorf("document %s: %w", id, err))
			continue
		}
		docs = append(docs, doc)
	}
	return docs, nil
}

// ExportPage fetches one page and exports it.
func (e *Exporter) ExportPage(ctx context.Context, id string) (Result, error) {
	doc, err := e.source.GetPage(ctx, id)
	if err != nil {
		return Result{}, fmt.Errorf("exporter: fetch page: %w", err)
	}
	return e.ExportDocument(ctx, doc)
}

// ExportDocument converts one document. The Markdown file is written last
// and atomically, so a failure leaves no partial document behind.
func (e *Exporter) ExportDocument(ctx context.Context, doc models.Document) (Result, error) {
	meta, warnings := frontmatter.Parse(doc)
	for _, w := range warnings {
		e.logger.Warn("property unparsed", slog.String("document_id", doc.ID), slog.String("message", w.Message))
	}
	lang := meta.LanguageCode()

	dir := e.resolver.Dir(layout.Placement{
		DocumentID:  doc.ID,
		Category:    meta.Text(frontmatter.Category),
		Subcategory: meta.Text(frontmatter.Subcategory),
		Index:       meta.Text(frontmatter.Index),
		Slug:        meta.Text(frontmatter.Slug),
	})
	fetcher := &trackingFetcher{inner: e.assets, root: dir}

	header, err := frontmatter.NewBuilder(fetcher, e.logger).Build(ctx, doc, meta, dir)
	if err != nil {
		return Result{}, err
	}
	warnings = append(warnings, header.Warnings...)

	renderer := render.NewRenderer(fetcher, render.Options{
		DocumentID:   doc.ID,
		OutputDir:    dir,
		Language:     lang,
		CenterImages: e.centerImages,
	}, e.logger)
	body, err := render.NewWalker(e.source, renderer).Walk(ctx, doc.ID)
	if err != nil {
		return Result{}, err
	}
	warnings = append(warnings, renderer.Warnings()...)
	body += frontmatter.Footer(meta)

	content := []byte(header.Text + body)
	rel, err := filepath.Rel(e.store.Root(), filepath.Join(dir, layout.FileName(lang)))
	if err != nil {
		return Result{}, fmt.Errorf("exporter: output path: %w", err)
	}
	rel = filepath.ToSlash(rel)
	if err := e.store.Write(rel, content); err != nil {
		return Result{}, fmt.Errorf("exporter: write %s: %w", rel, err)
	}

	title := meta.Text(frontmatter.Title)
	if title == "" {
		title = meta.Text(frontmatter.Topic)
	}
	res := Result{
		DocumentID: doc.ID,
		Title:      title,
		Path:       rel,
		Language:   lang,
		Assets:     fetcher.names,
		Warnings:   warnings,
	}

	if e.ledger != nil {
		var tags []string
		if v, ok := meta.Value(frontmatter.Tags); ok {
			tags = v.Set
		}
		row := ledger.ExportRow{
			Path:           rel,
			DocumentID:     doc.ID,
			Title:          title,
			Category:       meta.Text(frontmatter.Category),
			Series:         meta.Series(),
			Language:       lang,
			Tags:           tags,
			Checksum:       checksum.Sum(content),
			Warnings:       len(warnings),
			SourceEditedAt: doc.LastEditedTime,
		}
		if err := e.ledger.Record(row, body, fetcher.names); err != nil {
			e.logger.Warn("ledger record failed", slog.String("path", rel), slog.String("error", err.Error()))
		}
	}

	e.logger.Info("document exported",
		slog.String("document_id", doc.ID),
		slog.String("path", rel),
		slog.Int("assets", len(fetcher.names)),
		slog.Int("warnings", len(warnings)))
	return res, nil
}

// trackingFetcher remembers the assets written for one document, relative to
// its directory.
type trackingFetcher struct {
	inner render.AssetFetcher
	root  string
	names []string
}

func (t *trackingFetcher) Fetch(ctx context.Context, rawURL, dir, name string) (string, error) {
	got, err := t.inner.Fetch(ctx, rawURL, dir, name)
	if err != nil {
		return "", err
	}
	rel, err := filepath.Rel(t.root, filepath.Join(dir, got))
	if err != nil {
		rel = got
	}
	rel = filepath.ToSlash(rel)
	if !slices.Contains(t.names, rel) {
		t.names = append(t.names, rel)
	}
	return got, nil
}

// ParsePageIDs splits page id lists on ';' and ',' and drops blanks and
// duplicates.
func ParsePageIDs(values ...string) []string {
	seen := make(map[string]struct{})
	var out []string
	for _, v := range values {
		for _, id := range strings.FieldsFunc(v, func(r rune) bool { return r == ';' || r == ',' }) {
			id = strings.TrimSpace(id)
			if id == "" {
				continue
			}
			if _, ok := seen[id]; ok {
				continue
			}
			seen[id] = struct{}{}
			out = append(out, id)
		}
	}
	return out
}
