package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/starford/notionhugo/internal/exportservice"
	"github.com/starford/notionhugo/internal/storage"
)

// NewRouter creates a chi router with all API routes mounted.
// authEnabled controls whether Bearer token auth is enforced.
// sseHandler, if non-nil, is mounted at GET /events inside the auth group.
func NewRouter(svc *exportservice.Service, authEnabled bool, token string, sseHandler http.Handler, root *storage.FS) chi.Router {
	h := NewHandler(svc)
	ah := NewAssetHandler(root)

	r := chi.NewRouter()
	r.Use(AuthMiddleware(authEnabled, token))

	r.Get("/exports", h.ListExports)
	r.Post("/exports", h.ExportPage)
	r.Get("/exports/*", h.GetExport)
	r.Get("/preview/*", h.Preview)
	r.Get("/documents/{id}", h.FindDocument)
	r.Get("/search", h.Search)
	r.Get("/assets/*", ah.ServeFile)

	if sseHandler != nil {
		r.Get("/events", sseHandler.ServeHTTP)
	}

	return r
}
