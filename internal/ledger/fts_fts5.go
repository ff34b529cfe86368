//go:build sqlite_fts5

package ledger

import (
	"database/sql"
	"fmt"
	"strings"
)

func initFTS(conn *sql.DB) error {
	_, err := conn.Exec(`
		CREATE VIRTUAL TABLE IF NOT EXISTS exports_fts USING fts5(
			path UNINDEXED,
			title,
			body,
			tags,
			series,
			tokenize = 'unicode61 remove_diacritics 2'
		);
	`)
	return err
}

func ftsUpsert(tx *sql.Tx, e ExportRow, body string) error {
	if _, err := tx.Exec(`DELETE FROM exports_fts WHERE path = ?`, e.Path); err != nil {
		return fmt.Errorf("ledger: clear fts: %w", err)
	}
	_, err := tx.Exec(`INSERT INTO exports_fts (path, title, body, tags, series) VALUES (?, ?, ?, ?, ?)`,
		e.Path, e.Title, body, strings.Join(e.Tags, " "), e.Series)
	if err != nil {
		return fmt.Errorf("ledger: upsert fts: %w", err)
	}
	return nil
}

func ftsDelete(tx *sql.Tx, path string) {
	_, _ = tx.Exec(`DELETE FROM exports_fts WHERE path = ?`, path)
}

// matchExpr turns free text into an FTS5 query where every word must match
// as a prefix.
func matchExpr(query string) string {
	words := terms(query)
	for i, w := range words {
		words[i] = `"` + w + `"*`
	}
	return strings.Join(words, " ")
}

// Search ranks exports with bm25, weighting title over tags, series and body.
func (db *DB) Search(query string, limit int) ([]SearchResult, error) {
	if limit <= 0 {
		limit = defaultSearchLimit
	}
	expr := matchExpr(query)
	if expr == "" {
		return nil, nil
	}
	rows, err := db.conn.Query(`
		SELECT f.path,
		       f.title,
		       e.category,
		       e.language,
		       snippet(exports_fts, 2, '<b>', '</b>', '...', 32)
		FROM exports_fts f
		JOIN exports e ON e.path = f.path
		WHERE exports_fts MATCH ?
		ORDER BY bm25(exports_fts, 0.0, 10.0, 1.0, 5.0, 3.0)
		LIMIT ?
	`, expr, limit)
	if err != nil {
		return nil, fmt.Errorf("ledger: search: %w", err)
	}
	defer rows.Close()

	var out []SearchResult
	for rows.Next() {
		var r SearchResult
		if err := rows.Scan(&r.Path, &r.Title, &r.Category, &r.Language, &r.Snippet); err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}
