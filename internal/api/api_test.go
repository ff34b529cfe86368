package api

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/starford/notionhugo/internal/apperr"
	"github.com/starford/notionhugo/internal/exporter"
	"github.com/starford/notionhugo/internal/exportservice"
	"github.com/starford/notionhugo/internal/models"
	"github.com/starford/notionhugo/internal/notion"
	"github.com/starford/notionhugo/internal/testutil"
)

const docPath = "posts/Misc/hello/index.md"

const docContent = `---
Title: "Hello"
Category: "Misc"
Tags: ["go"]
draft: false
---

First paragraph about gophers.

<p align="center"><img max-width="100%" max-height="100%" src="./images/pic.png" /></p>
`

type testEnvOptions struct {
	authEnabled bool
	token       string
	sse         http.Handler
	pages       exportservice.PageExporter
}

// testEnv sets up a temp export root with one document, a ledger, the
// service and the router.
func testEnv(t *testing.T, o testEnvOptions) (http.Handler, string) {
	t.Helper()
	root, store := testutil.TestOutput(t)
	db := testutil.TestLedger(t)
	testutil.WriteFile(t, root, docPath, docContent)
	testutil.WriteFile(t, root, "posts/Misc/hello/images/pic.png", "PNG")
	testutil.WriteFile(t, root, "posts/Misc/_index.md", "---\ntitle: \"Misc\"\n---\n")

	opts := []exportservice.Option{exportservice.WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil)))}
	if o.pages != nil {
		opts = append(opts, exportservice.WithPageExporter(o.pages))
	}
	svc := exportservice.NewService(store, db, opts...)
	if err := svc.Resync(context.Background()); err != nil {
		t.Fatalf("Resync: %v", err)
	}
	return NewRouter(svc, o.authEnabled, o.token, o.sse, store), root
}

func do(t *testing.T, h http.Handler, method, target string, body []byte, token string) *httptest.ResponseRecorder {
	t.Helper()
	var r io.Reader
	if body != nil {
		r = bytes.NewReader(body)
	}
	req := httptest.NewRequest(method, target, r)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	return w
}

func TestListExports(t *testing.T) {
	router, _ := testEnv(t, testEnvOptions{})

	w := do(t, router, http.MethodGet, "/exports?sort=title&category=Misc", nil, "")
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", w.Code, w.Body.String())
	}
	var resp ExportListResponse
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatal(err)
	}
	if resp.Total != 1 || len(resp.Exports) != 1 {
		t.Fatalf("resp = %+v", resp)
	}
	if resp.Exports[0].Path != docPath || resp.Exports[0].Title != "Hello" {
		t.Errorf("item = %+v", resp.Exports[0])
	}
}

func TestGetExport(t *testing.T) {
	router, _ := testEnv(t, testEnvOptions{})

	w := do(t, router, http.MethodGet, "/exports/"+docPath, nil, "")
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", w.Code, w.Body.String())
	}
	var d ExportDetail
	_ = json.Unmarshal(w.Body.Bytes(), &d)
	if d.Title != "Hello" || d.Frontmatter["Category"] != "Misc" {
		t.Errorf("detail = %+v", d)
	}
	if len(d.Assets) != 1 || d.Assets[0] != "images/pic.png" {
		t.Errorf("assets = %v", d.Assets)
	}
}

func TestGetExport_EncodedPath(t *testing.T) {
	router, _ := testEnv(t, testEnvOptions{})

	w := do(t, router, http.MethodGet, "/exports/posts%2FMisc%2Fhello%2Findex.md", nil, "")
	if w.Code != http.StatusOK {
		t.Errorf("encoded path = %d, want 200", w.Code)
	}
}

func TestGetExport_Errors(t *testing.T) {
	router, _ := testEnv(t, testEnvOptions{})

	tests := []struct {
		target string
		want   int
	}{
		{"/exports/posts/Misc/nope/index.md", http.StatusNotFound},
		{"/exports/posts/Misc/_index.md", http.StatusBadRequest},
		{"/preview/posts/Misc/nope/index.md", http.StatusNotFound},
	}
	for _, tt := range tests {
		w := do(t, router, http.MethodGet, tt.target, nil, "")
		if w.Code != tt.want {
			t.Errorf("%s = %d, want %d", tt.target, w.Code, tt.want)
		}
	}
}

func TestPreview(t *testing.T) {
	router, _ := testEnv(t, testEnvOptions{})

	w := do(t, router, http.MethodGet, "/preview/"+docPath, nil, "")
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	var p Preview
	_ = json.Unmarshal(w.Body.Bytes(), &p)
	if !strings.Contains(p.HTML, "<p>First paragraph about gophers.</p>") {
		t.Errorf("html = %s", p.HTML)
	}
	if !strings.Contains(p.HTML, `src="/api/assets/posts/Misc/hello/images/pic.png"`) {
		t.Errorf("asset not rebased: %s", p.HTML)
	}

	w = do(t, router, http.MethodGet, "/preview/"+docPath+"?format=html", nil, "")
	if ct := w.Header().Get("Content-Type"); !strings.HasPrefix(ct, "text/html") {
		t.Errorf("content type = %q", ct)
	}
}

func TestServeAsset(t *testing.T) {
	router, _ := testEnv(t, testEnvOptions{})

	w := do(t, router, http.MethodGet, "/assets/posts/Misc/hello/images/pic.png", nil, "")
	if w.Code != http.StatusOK || w.Body.String() != "PNG" {
		t.Errorf("asset = %d %q", w.Code, w.Body.String())
	}

	tests := []struct {
		target string
		want   int
	}{
		{"/assets/posts/Misc/hello/images/none.png", http.StatusNotFound},
		{"/assets/" + docPath, http.StatusBadRequest},
		{"/assets/posts/Misc/hello/secret.txt", http.StatusBadRequest},
		{"/assets/..%2F..%2Fetc%2Fimages%2Fpasswd", http.StatusBadRequest},
	}
	for _, tt := range tests {
		w := do(t, router, http.MethodGet, tt.target, nil, "")
		if w.Code != tt.want {
			t.Errorf("%s = %d, want %d", tt.target, w.Code, tt.want)
		}
	}
}

func TestServable(t *testing.T) {
	tests := []struct {
		path string
		want bool
	}{
		{"posts/a/images/x.png", true},
		{"posts/a/files/report.pdf", true},
		{"posts/a/featured-image-preview-fr.jpg", true},
		{"posts/a/index.md", false},
		{"posts/a/images/notes.md", false},
		{"posts/a/other.png", false},
		{"../images/x.png", false},
		{"/etc/images/x.png", false},
		{"", false},
	}
	for _, tt := range tests {
		if got := servable(tt.path); got != tt.want {
			t.Errorf("servable(%q) = %v, want %v", tt.path, got, tt.want)
		}
	}
}

func TestSearchEndpoint(t *testing.T) {
	router, _ := testEnv(t, testEnvOptions{})

	w := do(t, router, http.MethodGet, "/search?q=gophers", nil, "")
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	var resp SearchResponse
	_ = json.Unmarshal(w.Body.Bytes(), &resp)
	if len(resp.Results) != 1 || resp.Results[0].Path != docPath {
		t.Errorf("results = %+v", resp.Results)
	}

	w = do(t, router, http.MethodGet, "/search?q=nomatchatall", nil, "")
	if !strings.Contains(w.Body.String(), `"results":[]`) {
		t.Errorf("empty search body = %s", w.Body.String())
	}
}

func TestSearchMissingQuery(t *testing.T) {
	router, _ := testEnv(t, testEnvOptions{})

	w := do(t, router, http.MethodGet, "/search", nil, "")
	if w.Code != http.StatusBadRequest {
		t.Errorf("search no query = %d, want 400", w.Code)
	}
}

func TestFindDocument_NotFound(t *testing.T) {
	router, _ := testEnv(t, testEnvOptions{})

	w := do(t, router, http.MethodGet, "/documents/unknown", nil, "")
	if w.Code != http.StatusNotFound {
		t.Errorf("status = %d, want 404", w.Code)
	}
}

type fakePages struct {
	root string
	t    *testing.T
}

func (f fakePages) ExportPage(_ context.Context, id string) (exporter.Result, error) {
	switch id {
	case "gone":
		return exporter.Result{}, &notion.APIError{Status: http.StatusNotFound, Code: "object_not_found"}
	case "limited":
		return exporter.Result{}, &notion.APIError{Status: http.StatusTooManyRequests, Code: "rate_limited"}
	}
	p := "posts/Misc/" + id + "/index.md"
	testutil.WriteFile(f.t, f.root, p, "---\nTitle: \"Fresh\"\n---\n\nbody\n")
	return exporter.Result{
		DocumentID: id,
		Path:       p,
		Warnings:   []models.Warning{{Type: models.WarningAssetUnavailable, Message: "cover"}},
	}, nil
}

func TestExportPage(t *testing.T) {
	pages := &fakePages{t: t}
	router, root := testEnv(t, testEnvOptions{pages: pages})
	pages.root = root

	body, _ := json.Marshal(ExportPageRequest{PageID: "fresh"})
	w := do(t, router, http.MethodPost, "/exports", body, "")
	if w.Code != http.StatusCreated {
		t.Fatalf("status = %d, body = %s", w.Code, w.Body.String())
	}
	var resp ExportPageResponse
	_ = json.Unmarshal(w.Body.Bytes(), &resp)
	if resp.Export == nil || resp.Export.Title != "Fresh" {
		t.Errorf("export = %+v", resp.Export)
	}
	if len(resp.Warnings) != 1 || resp.Warnings[0] != "asset_unavailable: cover" {
		t.Errorf("warnings = %v", resp.Warnings)
	}

	tests := []struct {
		body string
		want int
	}{
		{`{"page_id":"gone"}`, http.StatusNotFound},
		{`{"page_id":"limited"}`, http.StatusBadGateway},
		{`{"page_id":"  "}`, http.StatusBadRequest},
		{`not json`, http.StatusBadRequest},
	}
	for _, tt := range tests {
		w := do(t, router, http.MethodPost, "/exports", []byte(tt.body), "")
		if w.Code != tt.want {
			t.Errorf("%s = %d, want %d", tt.body, w.Code, tt.want)
		}
	}
}

func TestExportPage_NotConfigured(t *testing.T) {
	router, _ := testEnv(t, testEnvOptions{})

	w := do(t, router, http.MethodPost, "/exports", []byte(`{"page_id":"p"}`), "")
	if w.Code != http.StatusServiceUnavailable {
		t.Errorf("status = %d, want 503", w.Code)
	}
}

func TestWriteError_Unknown(t *testing.T) {
	w := httptest.NewRecorder()
	writeError(w, "test", apperr.ErrNoDocuments)
	if w.Code != http.StatusInternalServerError {
		t.Errorf("status = %d", w.Code)
	}
}

func TestAuthMiddleware_ValidToken(t *testing.T) {
	router, _ := testEnv(t, testEnvOptions{authEnabled: true, token: "secret123"})

	w := do(t, router, http.MethodGet, "/exports", nil, "secret123")
	if w.Code != http.StatusOK {
		t.Errorf("authed list = %d, want 200", w.Code)
	}
}

func TestAuthMiddleware_MissingToken(t *testing.T) {
	router, _ := testEnv(t, testEnvOptions{authEnabled: true, token: "secret123"})

	w := do(t, router, http.MethodGet, "/exports", nil, "")
	if w.Code != http.StatusUnauthorized {
		t.Errorf("unauthed = %d, want 401", w.Code)
	}
	if got := w.Header().Get("WWW-Authenticate"); !strings.HasPrefix(got, "Bearer") {
		t.Errorf("WWW-Authenticate = %q", got)
	}
}

func TestAuthMiddleware_WrongToken(t *testing.T) {
	router, _ := testEnv(t, testEnvOptions{authEnabled: true, token: "secret123"})

	w := do(t, router, http.MethodGet, "/exports", nil, "wrong")
	if w.Code != http.StatusUnauthorized {
		t.Errorf("wrong token = %d, want 401", w.Code)
	}
}

func TestAuthMiddleware_Disabled(t *testing.T) {
	router, _ := testEnv(t, testEnvOptions{})

	w := do(t, router, http.MethodGet, "/exports", nil, "")
	if w.Code != http.StatusOK {
		t.Errorf("no auth = %d, want 200", w.Code)
	}
}

// Minimal SSE handler stub: writes headers and blocks until context done.
var sseStub = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/event-stream")
	w.WriteHeader(http.StatusOK)
	if f, ok := w.(http.Flusher); ok {
		f.Flush()
	}
	<-r.Context().Done()
})

func TestSSEEvents_AuthProtected(t *testing.T) {
	router, _ := testEnv(t, testEnvOptions{authEnabled: true, token: "secret", sse: sseStub})

	w := do(t, router, http.MethodGet, "/events", nil, "")
	if w.Code != http.StatusUnauthorized {
		t.Errorf("SSE no auth = %d, want 401", w.Code)
	}
}

func TestSSEEvents_ValidToken(t *testing.T) {
	router, _ := testEnv(t, testEnvOptions{authEnabled: true, token: "tok", sse: sseStub})

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	req := httptest.NewRequest(http.MethodGet, "/events", nil).WithContext(ctx)
	req.Header.Set("Authorization", "Bearer tok")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	if w.Code == http.StatusUnauthorized {
		t.Error("SSE with valid token should not 401")
	}
}
