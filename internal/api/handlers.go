package api

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/starford/notionhugo/internal/exportservice"
	"github.com/starford/notionhugo/internal/ledger"
)

// AssetsPrefix is where the router serves document assets.
const AssetsPrefix = "/api/assets/"

// Handler holds API route handlers.
type Handler struct {
	svc *exportservice.Service
}

// NewHandler creates a new Handler.
func NewHandler(svc *exportservice.Service) *Handler {
	return &Handler{svc: svc}
}

// exportPath extracts the document path from the wildcard part of the URL.
// Supports encoded slashes from OpenAPI clients (e.g. posts%2FMisc%2Fa%2Findex.md).
func exportPath(r *http.Request) string {
	raw := strings.TrimPrefix(chi.URLParam(r, "*"), "/")
	if raw == "" {
		return ""
	}
	decoded, err := url.PathUnescape(raw)
	if err != nil {
		return raw
	}
	return decoded
}

// ListExports handles GET /api/exports.
//
//	@Summary		List recorded exports with optional pagination and filtering
//	@Tags			exports
//	@Produce		json
//	@Param			limit		query		int		false	"Page size"
//	@Param			offset		query		int		false	"Page offset"
//	@Param			category	query		string	false	"Filter by category"
//	@Param			sort		query		string	false	"Sort field"	Enums(exported, title, path)
//	@Success		200			{object}	ExportListResponse
//	@Security		BearerAuth
//	@Router			/exports [get]
func (h *Handler) ListExports(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	limit, _ := strconv.Atoi(q.Get("limit"))
	offset, _ := strconv.Atoi(q.Get("offset"))

	items, total, err := h.svc.ListExports(r.Context(), ledger.ListOptions{
		Limit:    limit,
		Offset:   offset,
		Category: q.Get("category"),
		Sort:     q.Get("sort"),
	})
	if err != nil {
		writeError(w, "list exports", err)
		return
	}
	writeJSON(w, http.StatusOK, ExportListResponse{Exports: items, Total: total})
}

// GetExport handles GET /api/exports/*.
//
//	@Summary		Get a single exported document by path
//	@Tags			exports
//	@Produce		json
//	@Param			path	path		string	true	"Document path"
//	@Success		200		{object}	ExportDetail
//	@Failure		400		{object}	errResponse
//	@Failure		404		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/exports/{path} [get]
func (h *Handler) GetExport(w http.ResponseWriter, r *http.Request) {
	path := exportPath(r)
	if path == "" {
		writeJSON(w, http.StatusBadRequest, errorBody("path is required"))
		return
	}
	d, err := h.svc.GetExport(r.Context(), path)
	if err != nil {
		writeError(w, "get export", err, slog.String("path", path))
		return
	}
	writeJSON(w, http.StatusOK, d)
}

// Preview handles GET /api/preview/*.
//
//	@Summary		Render an exported document body to HTML
//	@Tags			exports
//	@Produce		json,html
//	@Param			path	path		string	true	"Document path"
//	@Param			format	query		string	false	"Response format"	Enums(json, html)
//	@Success		200		{object}	Preview
//	@Failure		404		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/preview/{path} [get]
func (h *Handler) Preview(w http.ResponseWriter, r *http.Request) {
	path := exportPath(r)
	if path == "" {
		writeJSON(w, http.StatusBadRequest, errorBody("path is required"))
		return
	}
	p, err := h.svc.Preview(r.Context(), path, AssetsPrefix)
	if err != nil {
		writeError(w, "preview", err, slog.String("path", path))
		return
	}
	if r.URL.Query().Get("format") == "html" {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(p.HTML))
		return
	}
	writeJSON(w, http.StatusOK, p)
}

// FindDocument handles GET /api/documents/{id}.
//
//	@Summary		Find the export of a remote document id
//	@Tags			exports
//	@Produce		json
//	@Param			id	path		string	true	"Remote document id"
//	@Success		200	{object}	ledger.ExportRow
//	@Failure		404	{object}	errResponse
//	@Security		BearerAuth
//	@Router			/documents/{id} [get]
func (h *Handler) FindDocument(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	row, err := h.svc.FindDocument(r.Context(), id)
	if err != nil {
		writeError(w, "find document", err, slog.String("document_id", id))
		return
	}
	writeJSON(w, http.StatusOK, row)
}

// ExportPage handles POST /api/exports.
//
//	@Summary		Export one remote page now
//	@Tags			exports
//	@Accept			json
//	@Produce		json
//	@Param			body	body		ExportPageRequest	true	"Page to export"
//	@Success		201		{object}	ExportPageResponse
//	@Failure		400		{object}	errResponse
//	@Failure		404		{object}	errResponse
//	@Failure		503		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/exports [post]
func (h *Handler) ExportPage(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, 1<<20)
	var req ExportPageRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody("invalid JSON body"))
		return
	}
	req.PageID = strings.TrimSpace(req.PageID)
	if req.PageID == "" {
		writeJSON(w, http.StatusBadRequest, errorBody("page_id is required"))
		return
	}
	d, warnings, err := h.svc.ExportPage(r.Context(), req.PageID)
	if err != nil {
		writeError(w, "export page", err, slog.String("page_id", req.PageID))
		return
	}
	writeJSON(w, http.StatusCreated, ExportPageResponse{Export: d, Warnings: warnings})
}

// Search handles GET /api/search.
//
//	@Summary		Full-text search across exported documents
//	@Tags			search
//	@Produce		json
//	@Param			q		query		string	true	"Search query"
//	@Param			limit	query		int		false	"Max results"
//	@Success		200		{object}	SearchResponse
//	@Failure		400		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/search [get]
func (h *Handler) Search(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query().Get("q")
	if q == "" {
		writeJSON(w, http.StatusBadRequest, errorBody("query parameter 'q' is required"))
		return
	}
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	results, err := h.svc.Search(r.Context(), q, limit)
	if err != nil {
		writeError(w, "search", err, slog.String("query", q))
		return
	}
	if results == nil {
		results = []ledger.SearchResult{}
	}
	writeJSON(w, http.StatusOK, SearchResponse{Results: results})
}
