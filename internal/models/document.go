package models

import "time"

// Property is a loosely typed entry of a document's property bag. Type names
// the remote representation; only the matching field is set.
type Property struct {
	Type string

	RichText       []RichText // title, rich_text
	Select         *string    // select, status
	Number         *float64
	Date           *string // date.start
	CreatedTime    string
	LastEditedTime string
	MultiSelect    []string
	Checkbox       *bool
	Formula        *string // string-valued formula results
}

// Document is a page of the remote source together with its property bag.
type Document struct {
	ID             string
	Properties     map[string]Property
	Cover          *FileRef
	LastEditedTime time.Time
}

// WarningType categorizes non-fatal conversion issues.
type WarningType string

const (
	WarningUnsupportedBlock WarningType = "unsupported_block"
	WarningAssetUnavailable WarningType = "asset_unavailable"
	WarningPropertyUnparsed WarningType = "property_unparsed"
)

// Warning is a non-fatal issue encountered while converting a document.
type Warning struct {
	Type       WarningType `json:"type"`
	DocumentID string      `json:"document_id,omitempty"`
	BlockID    string      `json:"block_id,omitempty"`
	Message    string      `json:"message"`
}
