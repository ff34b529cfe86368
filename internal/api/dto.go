package api

import (
	"github.com/starford/notionhugo/internal/exportservice"
	"github.com/starford/notionhugo/internal/ledger"
)

// ExportPageRequest is the request body for exporting one remote page.
type ExportPageRequest struct {
	PageID string `json:"page_id" example:"0f5c1e0a-2b7d-4f0e-9c1a-6d2f8e9b3a11" validate:"required"`
}

// ExportDetail is the full export response type (aliased from the domain layer).
type ExportDetail = exportservice.ExportDetail

// ExportListItem is a lightweight item in a list response (aliased from the domain layer).
type ExportListItem = exportservice.ExportListItem

// Preview is a rendered export (aliased from the domain layer).
type Preview = exportservice.Preview

// ExportListResponse wraps paginated export listings.
type ExportListResponse struct {
	Exports []ExportListItem `json:"exports" validate:"required"`
	Total   int              `json:"total" example:"42" validate:"required"`
}

// ExportPageResponse is returned after a page export.
type ExportPageResponse struct {
	Export   *ExportDetail `json:"export" validate:"required"`
	Warnings []string      `json:"warnings"`
}

// SearchResult is a single search hit in the API response.
type SearchResult = ledger.SearchResult

// SearchResponse wraps search results.
type SearchResponse struct {
	Results []SearchResult `json:"results" validate:"required"`
}
