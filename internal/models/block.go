// Package models defines the domain types shared by the exporter: blocks,
// rich text spans, document properties and conversion warnings.
package models

// Kind identifies the block variant. The set is closed; anything the exporter
// does not understand decodes to KindUnsupported.
type Kind string

const (
	KindParagraph   Kind = "paragraph"
	KindHeading1    Kind = "heading_1"
	KindHeading2    Kind = "heading_2"
	KindHeading3    Kind = "heading_3"
	KindBulleted    Kind = "bulleted_list_item"
	KindNumbered    Kind = "numbered_list_item"
	KindTodo        Kind = "to_do"
	KindCallout     Kind = "callout"
	KindCode        Kind = "code"
	KindImage       Kind = "image"
	KindFile        Kind = "file"
	KindDivider     Kind = "divider"
	KindTable       Kind = "table"
	KindTableRow    Kind = "table_row"
	KindUnsupported Kind = "unsupported"
)

var knownKinds = map[Kind]struct{}{
	KindParagraph: {}, KindHeading1: {}, KindHeading2: {}, KindHeading3: {},
	KindBulleted: {}, KindNumbered: {}, KindTodo: {}, KindCallout: {},
	KindCode: {}, KindImage: {}, KindFile: {}, KindDivider: {},
	KindTable: {}, KindTableRow: {},
}

// ParseKind maps a remote block type name onto Kind.
func ParseKind(typ string) Kind {
	k := Kind(typ)
	if _, ok := knownKinds[k]; ok {
		return k
	}
	return KindUnsupported
}

// Block is one node of a document's content tree. Only the fields relevant to
// the block's Kind are populated.
type Block struct {
	ID          string
	Kind        Kind
	Type        string // remote type name, kept for diagnostics
	ParentID    string
	HasChildren bool

	RichText []RichText
	Caption  []RichText
	Language string
	Icon     string
	Checked  bool
	File     *FileRef
	Table    *TableInfo
	Cells    [][]RichText
}

// FileRef points at a hosted or external binary resource.
type FileRef struct {
	URL string
}

// TableInfo carries the table block's own attributes.
type TableInfo struct {
	Width           int
	HasColumnHeader bool
}

// BlockPage is one page of a paginated children listing.
type BlockPage struct {
	Results    []Block
	HasMore    bool
	NextCursor string
}
