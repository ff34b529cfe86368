//go:build !sqlite_fts5

package ledger

import (
	"database/sql"
	"fmt"
	"strings"
)

// Without FTS5 search scans the exports table.
func initFTS(_ *sql.DB) error { return nil }

func ftsUpsert(_ *sql.Tx, _ ExportRow, _ string) error { return nil }

func ftsDelete(_ *sql.Tx, _ string) {}

// Search matches exports containing every query word in the title, body,
// tags or series, newest first.
func (db *DB) Search(query string, limit int) ([]SearchResult, error) {
	if limit <= 0 {
		limit = defaultSearchLimit
	}
	words := terms(query)
	if len(words) == 0 {
		return nil, nil
	}

	clauses := make([]string, len(words))
	args := make([]any, 0, len(words)*4+1)
	for i, w := range words {
		clauses[i] = `(title LIKE ? OR body LIKE ? OR tags LIKE ? OR series LIKE ?)`
		like := "%" + w + "%"
		args = append(args, like, like, like, like)
	}
	args = append(args, limit)

	rows, err := db.conn.Query(`
		SELECT path, title, category, language, body
		FROM exports
		WHERE `+strings.Join(clauses, " AND ")+`
		ORDER BY exported_at DESC, path
		LIMIT ?
	`, args...)
	if err != nil {
		return nil, fmt.Errorf("ledger: search: %w", err)
	}
	defer rows.Close()

	var out []SearchResult
	for rows.Next() {
		var (
			r    SearchResult
			body string
		)
		if err := rows.Scan(&r.Path, &r.Title, &r.Category, &r.Language, &body); err != nil {
			return nil, err
		}
		r.Snippet = snippet(body, words)
		out = append(out, r)
	}
	return out, rows.Err()
}
