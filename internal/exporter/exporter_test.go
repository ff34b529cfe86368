package exporter

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/starford/notionhugo/internal/apperr"
	"github.com/starford/notionhugo/internal/ledger"
	"github.com/starford/notionhugo/internal/models"
	"github.com/starford/notionhugo/internal/storage"
)

type fakeSource struct {
	docs     []models.Document
	pages    map[string]models.Document
	children map[string][]models.Block
	fail     map[string]error
	queryErr error
}

func (s *fakeSource) ListChildren(_ context.Context, parentID, _ string) (models.BlockPage, error) {
	if err := s.fail[parentID]; err != nil {
		return models.BlockPage{}, err
	}
	return models.BlockPage{Results: s.children[parentID]}, nil
}

func (s *fakeSource) QueryDatabase(_ context.Context, _, _ string) ([]models.Document, error) {
	return s.docs, s.queryErr
}

func (s *fakeSource) GetPage(_ context.Context, id string) (models.Document, error) {
	doc, ok := s.pages[id]
	if !ok {
		return models.Document{}, fmt.Errorf("page %s: %w", id, apperr.ErrNotFound)
	}
	return doc, nil
}

// diskFetcher writes a small placeholder so asset files exist on disk.
type diskFetcher struct{}

func (diskFetcher) Fetch(_ context.Context, rawURL, dir, name string) (string, error) {
	if name == "" {
		name = filepath.Base(strings.SplitN(rawURL, "?", 2)[0])
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", err
	}
	return name, os.WriteFile(filepath.Join(dir, name), []byte("x"), 0o644)
}

type fakeRecorder struct {
	rows   []ledger.ExportRow
	assets [][]string
}

func (r *fakeRecorder) Record(e ledger.ExportRow, _ string, assets []string) error {
	r.rows = append(r.rows, e)
	r.assets = append(r.assets, assets)
	return nil
}

func ptr[T any](v T) *T { return &v }

func text(s string) []models.RichText { return []models.RichText{{PlainText: s}} }

func seriesDoc(id string) models.Document {
	return models.Document{
		ID: id,
		Properties: map[string]models.Property{
			"Title":       {Type: "title", RichText: text("Intro")},
			"Category":    {Type: "select", Select: ptr("Tutorials")},
			"Subcategory": {Type: "select", Select: ptr("3-series")},
			"Index":       {Type: "rich_text", RichText: text("02")},
			"Slug":        {Type: "rich_text", RichText: text("intro")},
			"Language":    {Type: "select", Select: ptr("English")},
			"Tags":        {Type: "multi_select", MultiSelect: []string{"go"}},
		},
		Cover: &models.FileRef{URL: "https://cdn/c/cover.png?sig=1"},
	}
}

func newTestExporter(t *testing.T, src *fakeSource, opts ...Option) (*Exporter, string) {
	t.Helper()
	root := t.TempDir()
	store, err := storage.NewFS(root)
	if err != nil {
		t.Fatal(err)
	}
	opts = append([]Option{WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil)))}, opts...)
	return New(src, diskFetcher{}, store, opts...), store.Root()
}

func TestRun_ExportsDocument(t *testing.T) {
	src := &fakeSource{
		docs: []models.Document{seriesDoc("doc-1")},
		children: map[string][]models.Block{
			"doc-1": {
				{ID: "h", Kind: models.KindHeading1, RichText: text("H")},
				{ID: "p", Kind: models.KindParagraph, RichText: []models.RichText{{PlainText: "b", Annotations: models.Annotations{Bold: true}}}},
				{ID: "i", Kind: models.KindImage, File: &models.FileRef{URL: "https://cdn/img/pic.png"}, Caption: text("cap")},
			},
		},
	}
	rec := &fakeRecorder{}
	e, root := newTestExporter(t, src, WithLedger(rec))

	report, err := e.Run(context.Background(), Query{DatabaseID: "db", Status: "Published"})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if len(report.Documents) != 1 || report.Failed != 0 {
		t.Fatalf("report = %+v", report)
	}
	res := report.Documents[0]
	if res.Path != "posts/Tutorials/3-series/02-intro/index.en.md" {
		t.Errorf("path = %q", res.Path)
	}

	data, err := os.ReadFile(filepath.Join(root, filepath.FromSlash(res.Path)))
	if err != nil {
		t.Fatalf("read output: %v", err)
	}
	content := string(data)
	if !strings.HasPrefix(content, "---\nTitle: \"Intro\"\n") {
		t.Errorf("content start = %q", content[:40])
	}
	wantBody := "---\n\n# H\n\n**b**\n\n" +
		`<p align="center"><img max-width="100%" max-height="100%" src="./images/pic.png" /></p>` + "\n" +
		`<figure><figcaption class="image-caption">cap</figcaption></figure>` + "\n\n" +
		"___\nMore articles in the series:\n{{< series \"3-series\" >}}\n"
	if !strings.HasSuffix(content, wantBody) {
		t.Errorf("content =\n%s\nwant suffix\n%s", content, wantBody)
	}
	if !strings.Contains(content, "featuredImagePreview: 'featured-image-preview-en'") {
		t.Errorf("cover missing:\n%s", content)
	}

	for _, p := range []string{
		"posts/Tutorials/3-series/02-intro/images/pic.png",
		"posts/Tutorials/3-series/02-intro/featured-image-preview-en.png",
		"posts/Tutorials/_index.md",
		"posts/Tutorials/3-series/_index.md",
	} {
		if _, err := os.Stat(filepath.Join(root, filepath.FromSlash(p))); err != nil {
			t.Errorf("missing %s: %v", p, err)
		}
	}
	if len(report.Stubs) != 2 {
		t.Errorf("stubs = %v", report.Stubs)
	}

	wantAssets := []string{"featured-image-preview-en.png", "images/pic.png"}
	if strings.Join(res.Assets, ",") != strings.Join(wantAssets, ",") {
		t.Errorf("assets = %v, want %v", res.Assets, wantAssets)
	}
	if len(rec.rows) != 1 {
		t.Fatalf("ledger rows = %d", len(rec.rows))
	}
	row := rec.rows[0]
	if row.DocumentID != "doc-1" || row.Path != res.Path || row.Language != "en" || row.Series != "3-series" || row.Checksum == "" {
		t.Errorf("ledger row = %+v", row)
	}
}

func TestRun_FailingDocumentDoesNotStopRun(t *testing.T) {
	boom := errors.New("connection reset")
	bad := seriesDoc("bad")
	good := seriesDoc("good")
	good.Properties["Slug"] = models.Property{Type: "rich_text", RichText: text("second")}
	src := &fakeSource{
		docs:     []models.Document{bad, good},
		children: map[string][]models.Block{"good": {{ID: "p", Kind: models.KindParagraph, RichText: text("ok")}}},
		fail:     map[string]error{"bad": boom},
	}
	e, root := newTestExporter(t, src)

	report, err := e.Run(context.Background(), Query{DatabaseID: "db"})
	if !errors.Is(err, boom) {
		t.Fatalf("err = %v, want boom", err)
	}
	if !strings.Contains(err.Error(), "document bad") {
		t.Errorf("err = %v", err)
	}
	if report.Failed != 1 || len(report.Documents) != 1 || report.Documents[0].DocumentID != "good" {
		t.Errorf("report = %+v", report)
	}
	if _, err := os.Stat(filepath.Join(root, "posts", "Tutorials", "3-series", "02-intro", "index.en.md")); err == nil {
		t.Error("partial document written for failed export")
	}
	if _, err := os.Stat(filepath.Join(root, "posts", "Tutorials", "3-series", "02-second", "index.en.md")); err != nil {
		t.Errorf("good document missing: %v", err)
	}
}

type recordingNotifier struct{ kinds []string }

func (n *recordingNotifier) Notify(ev Event) { n.kinds = append(n.kinds, ev.Kind+":"+ev.DocumentID) }

func TestRun_NotifiesProgress(t *testing.T) {
	bad := seriesDoc("bad")
	good := seriesDoc("good")
	good.Properties["Slug"] = models.Property{Type: "rich_text", RichText: text("second")}
	src := &fakeSource{
		docs: []models.Document{bad, good},
		fail: map[string]error{"bad": errors.New("boom")},
	}
	n := &recordingNotifier{}
	e, _ := newTestExporter(t, src, WithNotifier(n))

	_, _ = e.Run(context.Background(), Query{DatabaseID: "db"})

	got := strings.Join(n.kinds, ",")
	want := "run.started:,document.failed:bad,document.exported:good,run.finished:"
	if got != want {
		t.Errorf("events = %s, want %s", got, want)
	}
}

func TestRun_NoDocuments(t *testing.T) {
	e, _ := newTestExporter(t, &fakeSource{})
	if _, err := e.Run(context.Background(), Query{DatabaseID: "db"}); err != nil {
		t.Errorf("non-strict run: %v", err)
	}

	strict, _ := newTestExporter(t, &fakeSource{}, WithStrict(true))
	if _, err := strict.Run(context.Background(), Query{DatabaseID: "db"}); !errors.Is(err, apperr.ErrNoDocuments) {
		t.Errorf("strict run err = %v, want ErrNoDocuments", err)
	}
}

func TestRun_QueryFailure(t *testing.T) {
	boom := errors.New("unauthorized")
	e, _ := newTestExporter(t, &fakeSource{queryErr: boom})
	if _, err := e.Run(context.Background(), Query{DatabaseID: "db"}); !errors.Is(err, boom) {
		t.Errorf("err = %v", err)
	}
}

func TestRun_PageIDs(t *testing.T) {
	plain := models.Document{ID: "p1", Properties: map[string]models.Property{
		"Title": {Type: "title", RichText: text("Loose page")},
	}}
	src := &fakeSource{
		docs:     []models.Document{seriesDoc("ignored")},
		pages:    map[string]models.Document{"p1": plain},
		children: map[string][]models.Block{"p1": {{ID: "x", Kind: models.KindParagraph, RichText: text("hi")}}},
	}
	e, root := newTestExporter(t, src)

	report, err := e.Run(context.Background(), Query{PageIDs: []string{"p1", "missing"}})
	if !errors.Is(err, apperr.ErrNotFound) {
		t.Fatalf("err = %v, want ErrNotFound for missing page", err)
	}
	if report.Failed != 1 || len(report.Documents) != 1 {
		t.Fatalf("report = %+v", report)
	}
	// No index, category or slug: defaults apply.
	if got := report.Documents[0].Path; got != "posts/Misc/p1/index.md" {
		t.Errorf("path = %q", got)
	}
	data, err := os.ReadFile(filepath.Join(root, "posts", "Misc", "p1", "index.md"))
	if err != nil {
		t.Fatal(err)
	}
	want := "---\nTitle: \"Loose page\"\ndraft: false\n---\n\nhi\n\n"
	if string(data) != want {
		t.Errorf("content = %q, want %q", data, want)
	}
}

func TestExportDocument_UnsupportedBlockWarns(t *testing.T) {
	src := &fakeSource{children: map[string][]models.Block{
		"d": {{ID: "u", Kind: models.KindUnsupported, Type: "embed"}, {ID: "p", Kind: models.KindParagraph, RichText: text("after")}},
	}}
	e, _ := newTestExporter(t, src)
	res, err := e.ExportDocument(context.Background(), models.Document{ID: "d", Properties: map[string]models.Property{
		"Tags": {Type: "rich_text", RichText: text("oops")},
	}})
	if err != nil {
		t.Fatalf("ExportDocument: %v", err)
	}
	var kinds []string
	for _, w := range res.Warnings {
		kinds = append(kinds, string(w.Type))
	}
	if strings.Join(kinds, ",") != "property_unparsed,unsupported_block" {
		t.Errorf("warnings = %v", kinds)
	}
}

func TestExportPage(t *testing.T) {
	src := &fakeSource{pages: map[string]models.Document{"p": {ID: "p"}}}
	e, _ := newTestExporter(t, src)
	res, err := e.ExportPage(context.Background(), "p")
	if err != nil || res.Path != "posts/Misc/p/index.md" {
		t.Errorf("ExportPage = %+v, %v", res, err)
	}
	if _, err := e.ExportPage(context.Background(), "nope"); !errors.Is(err, apperr.ErrNotFound) {
		t.Errorf("err = %v", err)
	}
}

func TestParsePageIDs(t *testing.T) {
	got := ParsePageIDs("a; b;", " c ,a", "")
	if strings.Join(got, "|") != "a|b|c" {
		t.Errorf("ParsePageIDs = %v", got)
	}
}
