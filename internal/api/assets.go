package api

import (
	"net/http"
	"os"
	"path"
	"strings"

	"github.com/starford/notionhugo/internal/render"
	"github.com/starford/notionhugo/internal/storage"
)

const coverPrefix = "featured-image-preview"

// AssetHandler serves the files a document references: its images and
// files folders and its cover image.
type AssetHandler struct {
	root *storage.FS
}

// NewAssetHandler creates a handler over the export root.
func NewAssetHandler(root *storage.FS) *AssetHandler {
	return &AssetHandler{root: root}
}

// servable reports whether a slash path names an asset.
func servable(p string) bool {
	if p == "" || path.Clean(p) != p || strings.HasPrefix(p, "../") || path.IsAbs(p) {
		return false
	}
	base := path.Base(p)
	if strings.HasSuffix(base, ".md") {
		return false
	}
	switch path.Base(path.Dir(p)) {
	case render.ImagesDir, render.FilesDir:
		return true
	}
	return strings.HasPrefix(base, coverPrefix)
}

// ServeFile handles GET /api/assets/*.
func (h *AssetHandler) ServeFile(w http.ResponseWriter, r *http.Request) {
	p := exportPath(r)
	if !servable(p) {
		writeJSON(w, http.StatusBadRequest, errorBody("invalid asset path"))
		return
	}
	abs, err := h.root.Abs(p)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody("invalid asset path"))
		return
	}
	info, err := os.Stat(abs)
	if err != nil || info.IsDir() {
		http.NotFound(w, r)
		return
	}
	http.ServeFile(w, r, abs)
}
