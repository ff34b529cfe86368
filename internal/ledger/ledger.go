package ledger

// Ledger defines the export bookkeeping operations.
// Consumers should depend on this interface rather than the concrete *DB type
// to facilitate testing with fakes.
type Ledger interface {
	Record(e ExportRow, body string, assets []string) error
	Delete(path string) error
	Get(path string) (*ExportRow, error)
	FindDocument(documentID string) (*ExportRow, error)
	List(opts ListOptions) ([]ExportRow, int, error)
	Assets(path string) ([]string, error)
	Search(query string, limit int) ([]SearchResult, error)
	AllChecksums() (map[string]string, error)
	Close() error
}

// Recorder is the write side used by exporters.
type Recorder interface {
	Record(e ExportRow, body string, assets []string) error
}

// Verify *DB satisfies Ledger at compile time.
var _ Ledger = (*DB)(nil)
