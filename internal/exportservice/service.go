// Package exportservice reads the exported tree back for the preview API and
// the MCP server, and triggers single-page exports.
package exportservice

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	pathpkg "path"
	"strings"
	"time"

	"github.com/starford/notionhugo/internal/apperr"
	"github.com/starford/notionhugo/internal/checksum"
	"github.com/starford/notionhugo/internal/exporter"
	"github.com/starford/notionhugo/internal/ledger"
	"github.com/starford/notionhugo/internal/parser"
	"github.com/starford/notionhugo/internal/storage"
)

// ExportDetail is the full representation of an exported document.
type ExportDetail struct {
	Path        string         `json:"path"`
	DocumentID  string         `json:"document_id,omitempty"`
	Title       string         `json:"title"`
	Language    string         `json:"language,omitempty"`
	Summary     string         `json:"summary,omitempty"`
	Content     string         `json:"content"`
	Checksum    string         `json:"checksum"`
	Tags        []string       `json:"tags"`
	Series      []string       `json:"series"`
	Frontmatter map[string]any `json:"frontmatter,omitempty"`
	Assets      []string       `json:"assets"`
	Shortcodes  []string       `json:"shortcodes"`
	Warnings    int            `json:"warnings"`
	ExportedAt  time.Time      `json:"exported_at,omitempty"`
}

// ExportListItem is a lightweight item in a list response.
type ExportListItem struct {
	Path       string    `json:"path"`
	DocumentID string    `json:"document_id,omitempty"`
	Title      string    `json:"title"`
	Category   string    `json:"category,omitempty"`
	Series     string    `json:"series,omitempty"`
	Language   string    `json:"language,omitempty"`
	Tags       []string  `json:"tags"`
	Warnings   int       `json:"warnings"`
	ExportedAt time.Time `json:"exported_at"`
}

// PageExporter exports a single remote page.
type PageExporter interface {
	ExportPage(ctx context.Context, id string) (exporter.Result, error)
}

// Service coordinates the output tree and the ledger.
type Service struct {
	store  storage.Provider
	db     ledger.Ledger
	pages  PageExporter
	logger *slog.Logger
}

// Option configures a Service.
type Option func(*Service)

// WithPageExporter enables ExportPage.
func WithPageExporter(p PageExporter) Option {
	return func(s *Service) { s.pages = p }
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(s *Service) {
		if l != nil {
			s.logger = l
		}
	}
}

// NewService creates a new export service.
func NewService(store storage.Provider, db ledger.Ledger, opts ...Option) *Service {
	s := &Service{store: store, db: db, logger: slog.Default()}
	for _, o := range opts {
		o(s)
	}
	return s
}

// GetExport reads an exported document and enriches it with its ledger row.
func (s *Service) GetExport(_ context.Context, path string) (*ExportDetail, error) {
	data, err := s.readDocument(path)
	if err != nil {
		return nil, err
	}
	res, err := parser.Parse(data)
	if err != nil {
		return nil, fmt.Errorf("exportservice: parse %s: %w", path, err)
	}

	d := &ExportDetail{
		Path:        path,
		Title:       res.Title,
		Language:    res.Language,
		Summary:     res.Summary,
		Content:     string(data),
		Checksum:    checksum.Sum(data),
		Tags:        nonNilSlice(res.Tags),
		Series:      nonNilSlice(res.Series),
		Frontmatter: res.Frontmatter,
		Assets:      nonNilSlice(res.Assets),
		Shortcodes:  nonNilSlice(res.Shortcodes),
	}

	row, err := s.db.Get(path)
	switch {
	case err == nil:
		d.DocumentID = row.DocumentID
		d.Warnings = row.Warnings
		d.ExportedAt = row.ExportedAt
		if assets, err := s.db.Assets(path); err == nil && len(assets) > 0 {
			d.Assets = assets
		}
	case errors.Is(err, apperr.ErrNotFound):
	default:
		return nil, err
	}
	return d, nil
}

// ListExports returns one page of recorded exports.
func (s *Service) ListExports(_ context.Context, opts ledger.ListOptions) ([]ExportListItem, int, error) {
	rows, total, err := s.db.List(opts)
	if err != nil {
		return nil, 0, err
	}
	items := make([]ExportListItem, len(rows))
	for i, r := range rows {
		items[i] = ExportListItem{
			Path:       r.Path,
			DocumentID: r.DocumentID,
			Title:      r.Title,
			Category:   r.Category,
			Series:     r.Series,
			Language:   r.Language,
			Tags:       nonNilSlice(r.Tags),
			Warnings:   r.Warnings,
			ExportedAt: r.ExportedAt,
		}
	}
	return items, total, nil
}

// Search delegates full-text search to the ledger.
func (s *Service) Search(_ context.Context, query string, limit int) ([]ledger.SearchResult, error) {
	return s.db.Search(query, limit)
}

// FindDocument returns the export of a remote document id.
func (s *Service) FindDocument(_ context.Context, documentID string) (*ledger.ExportRow, error) {
	return s.db.FindDocument(documentID)
}

// ExportPage exports one remote page and returns the written document.
func (s *Service) ExportPage(ctx context.Context, id string) (*ExportDetail, []string, error) {
	if s.pages == nil {
		return nil, nil, fmt.Errorf("exportservice: page export: %w", apperr.ErrNotConfigured)
	}
	res, err := s.pages.ExportPage(ctx, id)
	if err != nil {
		return nil, nil, err
	}
	d, err := s.GetExport(ctx, res.Path)
	if err != nil {
		return nil, nil, err
	}
	warnings := make([]string, len(res.Warnings))
	for i, w := range res.Warnings {
		warnings[i] = string(w.Type) + ": " + w.Message
	}
	return d, warnings, nil
}

// Resync brings the ledger in line with the files on disk.
func (s *Service) Resync(_ context.Context) error {
	return ledger.Sync(s.db, s.store, s.logger)
}

func (s *Service) readDocument(path string) ([]byte, error) {
	if !ledger.IsDocument(path) || !clean(path) {
		return nil, fmt.Errorf("%w: not an exported document: %s", apperr.ErrInvalidInput, path)
	}
	data, err := s.store.Read(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("%s: %w", path, apperr.ErrNotFound)
		}
		return nil, err
	}
	return data, nil
}

// clean reports whether p is a plain relative slash path inside the tree.
func clean(p string) bool {
	c := pathpkg.Clean(p)
	return c == p && !pathpkg.IsAbs(c) && c != ".." && !strings.HasPrefix(c, "../")
}

func nonNilSlice[T any](s []T) []T {
	if s == nil {
		return []T{}
	}
	return s
}
