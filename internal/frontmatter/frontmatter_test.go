package frontmatter

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"testing"

	"gopkg.in/yaml.v3"

	"github.com/starford/notionhugo/internal/assets"
	"github.com/starford/notionhugo/internal/models"
)

type fakeFetcher struct {
	dir, name string
	calls     int
	fail      bool
}

func (f *fakeFetcher) Fetch(_ context.Context, _ string, dir, name string) (string, error) {
	f.calls++
	f.dir, f.name = dir, name
	if f.fail {
		return "", fmt.Errorf("%w: 404", assets.ErrUnavailable)
	}
	return name, nil
}

func ptr[T any](v T) *T { return &v }

func richText(s string) models.Property {
	return models.Property{Type: "rich_text", RichText: []models.RichText{{PlainText: s}}}
}

func selectProp(s string) models.Property {
	return models.Property{Type: "select", Select: ptr(s)}
}

func fullDocument() models.Document {
	return models.Document{
		ID: "doc-1",
		Properties: map[string]models.Property{
			"Title":       {Type: "title", RichText: []models.RichText{{PlainText: "Hello "}, {PlainText: "world"}}},
			"Category":    selectProp("Tutorials"),
			"Subcategory": selectProp("3-series"),
			"Index":       richText("02"),
			"Slug":        richText("intro"),
			"Language":    selectProp("French"),
			"PublishDate": {Type: "date", Date: ptr("2021-03-04")},
			"Tags":        {Type: "multi_select", MultiSelect: []string{"go", "hugo"}},
			"Description": richText("A short intro"),
			"Status":      {Type: "status", Select: ptr("Ready")},
		},
		Cover: &models.FileRef{URL: "https://s3.example/bucket/Cover.JPG?X-Amz=1"},
	}
}

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// decode extracts the YAML between the delimiters.
func decode(t *testing.T, text string) map[string]any {
	t.Helper()
	if !strings.HasPrefix(text, "---\n") {
		t.Fatalf("header does not start with delimiter: %q", text)
	}
	body, _, ok := strings.Cut(strings.TrimPrefix(text, "---\n"), "---\n")
	if !ok {
		t.Fatalf("header is not closed: %q", text)
	}
	var out map[string]any
	if err := yaml.Unmarshal([]byte(body), &out); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	return out
}

func TestBuild_FullDocument(t *testing.T) {
	doc := fullDocument()
	meta, warnings := Parse(doc)
	if len(warnings) != 0 {
		t.Fatalf("warnings = %+v", warnings)
	}
	f := &fakeFetcher{}
	h, err := NewBuilder(f, quietLogger()).Build(context.Background(), doc, meta, "/out/doc")
	if err != nil {
		t.Fatalf("Build: %v", err)
	}

	for _, line := range []string{
		`Title: "Hello world"`,
		`Category: "Tutorials"`,
		`Index: "02"`,
		`Language: "French"`,
		`PublishDate: "2021-03-04 00:00:02Z"`,
		`Description: "A short intro"`,
		`featuredImagePreview: 'featured-image-preview-fr'`,
		"draft: false",
	} {
		if !strings.Contains(h.Text, line+"\n") {
			t.Errorf("header lacks %q:\n%s", line, h.Text)
		}
	}
	if !strings.HasSuffix(h.Text, "---\n\n<!--more-->\n\n") {
		t.Errorf("header tail = %q", h.Text[len(h.Text)-30:])
	}

	keys := []string{"Title:", "Category:", "Subcategory:", "series:", "Index:", "Slug:", "Language:", "PublishDate:", "Tags:", "Description:", "featuredImagePreview:", "resources:", "draft:"}
	last := -1
	for _, k := range keys {
		i := strings.Index(h.Text, "\n"+k)
		if i <= last {
			t.Fatalf("key %s out of order in\n%s", k, h.Text)
		}
		last = i
	}
	if strings.Contains(h.Text, "Status") {
		t.Errorf("unrecognized property emitted:\n%s", h.Text)
	}

	got := decode(t, h.Text)
	if series, _ := got["series"].([]any); len(series) != 1 || series[0] != "3-series" {
		t.Errorf("series = %v", got["series"])
	}
	if tags, _ := got["Tags"].([]any); len(tags) != 2 || tags[0] != "go" || tags[1] != "hugo" {
		t.Errorf("Tags = %v", got["Tags"])
	}
	if got["draft"] != false {
		t.Errorf("draft = %v", got["draft"])
	}
	res, _ := got["resources"].([]any)
	if len(res) != 1 {
		t.Fatalf("resources = %v", got["resources"])
	}
	entry := res[0].(map[string]any)
	if entry["name"] != "featured-image-preview-fr" || entry["src"] != "featured-image-preview-fr.JPG" {
		t.Errorf("resource = %v", entry)
	}

	if f.calls != 1 || f.dir != "/out/doc" || f.name != "featured-image-preview-fr.JPG" {
		t.Errorf("cover fetch = %+v", f)
	}
	if h.CoverName != "featured-image-preview-fr.JPG" {
		t.Errorf("CoverName = %q", h.CoverName)
	}
}

func TestBuild_MinimalDocument(t *testing.T) {
	doc := models.Document{ID: "d", Properties: map[string]models.Property{
		"Title": {Type: "title", RichText: []models.RichText{{PlainText: "Only title"}}},
	}}
	meta, _ := Parse(doc)
	f := &fakeFetcher{}
	h, err := NewBuilder(f, quietLogger()).Build(context.Background(), doc, meta, "/out")
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	want := "---\nTitle: \"Only title\"\ndraft: false\n---\n\n"
	if h.Text != want {
		t.Errorf("header = %q, want %q", h.Text, want)
	}
	if f.calls != 0 {
		t.Errorf("cover fetched without cover")
	}
}

func TestBuild_CoverUnavailable(t *testing.T) {
	doc := fullDocument()
	meta, _ := Parse(doc)
	h, err := NewBuilder(&fakeFetcher{fail: true}, quietLogger()).Build(context.Background(), doc, meta, "/out")
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	if strings.Contains(h.Text, "featuredImagePreview") || strings.Contains(h.Text, "resources") {
		t.Errorf("cover emitted despite failure:\n%s", h.Text)
	}
	if len(h.Warnings) != 1 || h.Warnings[0].Type != models.WarningAssetUnavailable {
		t.Errorf("warnings = %+v", h.Warnings)
	}
}

func TestBuild_CoverWithoutLanguage(t *testing.T) {
	doc := fullDocument()
	delete(doc.Properties, "Language")
	meta, _ := Parse(doc)
	f := &fakeFetcher{}
	if _, err := NewBuilder(f, quietLogger()).Build(context.Background(), doc, meta, "/out"); err != nil {
		t.Fatalf("Build: %v", err)
	}
	if f.name != "featured-image-preview.JPG" {
		t.Errorf("cover name = %q", f.name)
	}
}

func TestParse_UnparsableAndUnset(t *testing.T) {
	doc := models.Document{ID: "d", Properties: map[string]models.Property{
		"Tags":        richText("not a set"),
		"Category":    {Type: "select"},
		"PublishDate": richText("someday"),
		"Topic":       {Type: "checkbox", Checkbox: ptr(true)},
	}}
	meta, warnings := Parse(doc)

	for _, n := range []Name{Tags, Category, PublishDate, Topic} {
		if _, ok := meta.Value(n); ok {
			t.Errorf("%s should be omitted", n)
		}
	}
	if len(warnings) != 3 {
		t.Fatalf("warnings = %+v, want 3", warnings)
	}
	for _, w := range warnings {
		if w.Type != models.WarningPropertyUnparsed || w.DocumentID != "d" {
			t.Errorf("warning = %+v", w)
		}
	}
}

func TestPublishDate(t *testing.T) {
	tests := []struct {
		name  string
		date  string
		index models.Property
		want  string
	}{
		{"no index", "2021-03-04T10:00:00.000+02:00", models.Property{}, "2021-03-04 08:00:00Z"},
		{"numeric index", "2021-03-04", richText("15"), "2021-03-04 00:00:15Z"},
		{"number property", "2021-03-04", models.Property{Type: "number", Number: ptr(3.0)}, "2021-03-04 00:00:03Z"},
		{"non-numeric index", "2021-03-04", richText("A1"), "2021-03-04 00:00:00Z"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			props := map[string]models.Property{"PublishDate": {Type: "date", Date: ptr(tt.date)}}
			if tt.index.Type != "" {
				props["Index"] = tt.index
			}
			meta, _ := Parse(models.Document{ID: "d", Properties: props})
			got, ok := meta.PublishDate()
			if !ok {
				t.Fatal("PublishDate missing")
			}
			if s := got.Format(dateLayout); s != tt.want {
				t.Errorf("PublishDate = %s, want %s", s, tt.want)
			}
		})
	}
}

func TestDateTime_Shapes(t *testing.T) {
	tests := []models.Property{
		{Type: "created_time", CreatedTime: "2022-01-02T03:04:05.000Z"},
		{Type: "last_edited_time", LastEditedTime: "2022-01-02T03:04:05Z"},
		richText("2022-01-02T03:04:05Z"),
		{Type: "formula", Formula: ptr("2022-01-02 03:04:05")},
	}
	for _, p := range tests {
		got, ok := DateTime(p)
		if !ok {
			t.Errorf("DateTime(%s) failed", p.Type)
			continue
		}
		if got.UTC().Format(dateLayout) != "2022-01-02 03:04:05Z" {
			t.Errorf("DateTime(%s) = %v", p.Type, got)
		}
	}
}

func TestSeries(t *testing.T) {
	tests := []struct {
		name  string
		props map[string]models.Property
		want  string
	}{
		{"both", map[string]models.Property{"Index": richText("1"), "Subcategory": selectProp("Go")}, "Go"},
		{"no index", map[string]models.Property{"Subcategory": selectProp("Go")}, ""},
		{"empty subcategory", map[string]models.Property{"Index": richText("1"), "Subcategory": selectProp(" ")}, ""},
		{"empty index", map[string]models.Property{"Index": richText(""), "Subcategory": selectProp("Go")}, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			meta, _ := Parse(models.Document{ID: "d", Properties: tt.props})
			if got := meta.Series(); got != tt.want {
				t.Errorf("Series = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestLanguageCode(t *testing.T) {
	tests := map[string]string{
		"French":  "fr",
		"English": "en",
		"fr-CA":   "fr",
		"de":      "de",
		"":        "",
		"Klingon": "",
	}
	for in, want := range tests {
		if got := languageCode(in); got != want {
			t.Errorf("languageCode(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestFooter(t *testing.T) {
	doc := fullDocument()
	meta, _ := Parse(doc)
	want := "___\nPlus d'articles dans la même série:\n{{< series \"3-series\" >}}\n"
	if got := Footer(meta); got != want {
		t.Errorf("Footer = %q, want %q", got, want)
	}

	doc.Properties["Language"] = selectProp("English")
	meta, _ = Parse(doc)
	if got := Footer(meta); !strings.Contains(got, "More articles in the series:") {
		t.Errorf("Footer = %q", got)
	}

	delete(doc.Properties, "Index")
	meta, _ = Parse(doc)
	if got := Footer(meta); got != "" {
		t.Errorf("Footer without index = %q", got)
	}
}
