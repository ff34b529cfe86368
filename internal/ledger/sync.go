package ledger

import (
	"log/slog"
	"path"
	"strings"

	"github.com/starford/notionhugo/internal/checksum"
	"github.com/starford/notionhugo/internal/parser"
	"github.com/starford/notionhugo/internal/storage"
)

// Dir is the output subtree holding exported documents.
const Dir = "posts"

// Sync walks the exported tree and brings the ledger up to date:
//   - new/changed documents are parsed and recorded
//   - documents removed from disk are deleted from the ledger
//
// Section stubs are not documents and are skipped.
func Sync(db Ledger, store storage.Provider, logger *slog.Logger) error {
	var metas []storage.FileInfo
	if store.Exists(Dir) {
		var err error
		if metas, err = store.List(Dir); err != nil {
			return err
		}
	}

	checksums, err := db.AllChecksums()
	if err != nil {
		return err
	}

	disk := make(map[string]struct{}, len(metas))
	for _, m := range metas {
		if !IsDocument(m.Path) {
			continue
		}
		disk[m.Path] = struct{}{}

		if checksums[m.Path] == m.Checksum {
			continue
		}

		data, err := store.Read(m.Path)
		if err != nil {
			logger.Warn("sync: read failed", slog.String("path", m.Path), slog.String("error", err.Error()))
			continue
		}
		if err := RecordFile(db, ExportRow{Path: m.Path, ExportedAt: m.UpdatedAt}, data); err != nil {
			logger.Warn("sync: record failed", slog.String("path", m.Path), slog.String("error", err.Error()))
		} else {
			logger.Debug("sync: recorded", slog.String("path", m.Path))
		}
	}

	for p := range checksums {
		if _, ok := disk[p]; !ok {
			if err := db.Delete(p); err != nil {
				logger.Warn("sync: delete failed", slog.String("path", p), slog.String("error", err.Error()))
			} else {
				logger.Debug("sync: removed stale", slog.String("path", p))
			}
		}
	}

	return nil
}

// IsDocument reports whether a slash path names an exported document file.
func IsDocument(p string) bool {
	name := path.Base(p)
	return strings.HasPrefix(name, "index.") && strings.HasSuffix(name, ".md")
}

// RecordFile parses an exported document and records it. Fields already set
// on base win over parsed ones.
func RecordFile(db Recorder, base ExportRow, data []byte) error {
	res, err := parser.Parse(data)
	if err != nil {
		return err
	}
	e := base
	e.Checksum = checksum.Sum(data)
	if e.Title == "" {
		e.Title = res.Title
	}
	if e.Tags == nil {
		e.Tags = res.Tags
	}
	if e.Series == "" && len(res.Series) > 0 {
		e.Series = res.Series[0]
	}
	if e.Category == "" {
		e.Category, _ = res.Frontmatter["Category"].(string)
	}
	if e.Language == "" {
		e.Language = res.Language
	}
	return db.Record(e, res.Body, res.Assets)
}
