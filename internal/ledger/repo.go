package ledger

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/starford/notionhugo/internal/apperr"
)

// ExportRow represents a row in the exports table.
type ExportRow struct {
	Path           string    `json:"path"`
	DocumentID     string    `json:"document_id,omitempty"`
	Title          string    `json:"title"`
	Category       string    `json:"category,omitempty"`
	Series         string    `json:"series,omitempty"`
	Language       string    `json:"language,omitempty"`
	Tags           []string  `json:"tags"`
	Checksum       string    `json:"checksum"`
	Warnings       int       `json:"warnings"`
	SourceEditedAt time.Time `json:"source_edited_at,omitempty"`
	ExportedAt     time.Time `json:"exported_at"`
}

// SearchResult represents one search hit.
type SearchResult struct {
	Path     string `json:"path"`
	Title    string `json:"title"`
	Category string `json:"category,omitempty"`
	Language string `json:"language,omitempty"`
	Snippet  string `json:"snippet"`
}

// ListOptions filters and pages List.
type ListOptions struct {
	Limit    int
	Offset   int
	Category string
	Sort     string // "exported" (default, newest first), "title" or "path"
}

const rowColumns = `path, document_id, title, category, series, language, tags, checksum, warnings, source_edited_at, exported_at`

// Record inserts or replaces an export, its FTS entry and its assets within a
// transaction. An empty DocumentID keeps the one already stored.
func (db *DB) Record(e ExportRow, body string, assets []string) error {
	tx, err := db.conn.Begin()
	if err != nil {
		return fmt.Errorf("ledger: begin tx: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck // best-effort on failure path

	if e.Tags == nil {
		e.Tags = []string{}
	}
	tagsJSON, _ := json.Marshal(e.Tags)
	if e.ExportedAt.IsZero() {
		e.ExportedAt = time.Now().UTC()
	}
	var edited any
	if !e.SourceEditedAt.IsZero() {
		edited = e.SourceEditedAt.UTC()
	}

	_, err = tx.Exec(`
		INSERT INTO exports (path, document_id, title, category, series, language, tags, checksum, warnings, body, source_edited_at, exported_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(path) DO UPDATE SET
			document_id      = CASE WHEN excluded.document_id = '' THEN exports.document_id ELSE excluded.document_id END,
			title            = excluded.title,
			category         = excluded.category,
			series           = excluded.series,
			language         = excluded.language,
			tags             = excluded.tags,
			checksum         = excluded.checksum,
			warnings         = excluded.warnings,
			body             = excluded.body,
			source_edited_at = COALESCE(excluded.source_edited_at, exports.source_edited_at),
			exported_at      = excluded.exported_at
	`, e.Path, e.DocumentID, e.Title, e.Category, e.Series, e.Language, string(tagsJSON),
		e.Checksum, e.Warnings, body, edited, e.ExportedAt.UTC())
	if err != nil {
		return fmt.Errorf("ledger: upsert export: %w", err)
	}

	// FTS upsert (no-op when FTS5 tag is absent).
	if err := ftsUpsert(tx, e, body); err != nil {
		return err
	}

	// Replace assets: delete old then bulk insert.
	if _, err := tx.Exec(`DELETE FROM assets WHERE export_path = ?`, e.Path); err != nil {
		return fmt.Errorf("ledger: clear assets: %w", err)
	}
	if len(assets) > 0 {
		stmt, err := tx.Prepare(`INSERT OR IGNORE INTO assets (export_path, asset) VALUES (?, ?)`)
		if err != nil {
			return fmt.Errorf("ledger: prepare asset insert: %w", err)
		}
		defer stmt.Close()
		for _, a := range assets {
			if _, err := stmt.Exec(e.Path, a); err != nil {
				return fmt.Errorf("ledger: insert asset: %w", err)
			}
		}
	}

	return tx.Commit()
}

// Delete removes an export, its FTS entry and its assets.
func (db *DB) Delete(path string) error {
	tx, err := db.conn.Begin()
	if err != nil {
		return fmt.Errorf("ledger: begin tx: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	ftsDelete(tx, path)
	_, _ = tx.Exec(`DELETE FROM assets WHERE export_path = ?`, path)
	_, _ = tx.Exec(`DELETE FROM exports WHERE path = ?`, path)

	return tx.Commit()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanRow(s scanner) (ExportRow, error) {
	var (
		e      ExportRow
		tags   string
		edited sql.NullTime
	)
	if err := s.Scan(&e.Path, &e.DocumentID, &e.Title, &e.Category, &e.Series, &e.Language,
		&tags, &e.Checksum, &e.Warnings, &edited, &e.ExportedAt); err != nil {
		return ExportRow{}, err
	}
	if edited.Valid {
		e.SourceEditedAt = edited.Time
	}
	_ = json.Unmarshal([]byte(tags), &e.Tags)
	return e, nil
}

// Get returns the export stored at path.
func (db *DB) Get(path string) (*ExportRow, error) {
	row := db.conn.QueryRow(`SELECT `+rowColumns+` FROM exports WHERE path = ?`, path)
	e, err := scanRow(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("ledger: %s: %w", path, apperr.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("ledger: get: %w", err)
	}
	return &e, nil
}

// FindDocument returns the most recent export of a source document.
func (db *DB) FindDocument(documentID string) (*ExportRow, error) {
	row := db.conn.QueryRow(`SELECT `+rowColumns+` FROM exports WHERE document_id = ?
		ORDER BY exported_at DESC LIMIT 1`, documentID)
	e, err := scanRow(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("ledger: document %s: %w", documentID, apperr.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("ledger: find document: %w", err)
	}
	return &e, nil
}

// List returns one page of exports and the total matching count.
func (db *DB) List(opts ListOptions) ([]ExportRow, int, error) {
	if opts.Limit <= 0 {
		opts.Limit = 50
	}
	where := ""
	var args []any
	if opts.Category != "" {
		where = " WHERE category = ?"
		args = append(args, opts.Category)
	}

	var total int
	if err := db.conn.QueryRow(`SELECT count(*) FROM exports`+where, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("ledger: count: %w", err)
	}

	order := "exported_at DESC, path"
	switch strings.ToLower(opts.Sort) {
	case "title":
		order = "title COLLATE NOCASE, path"
	case "path":
		order = "path"
	}
	rows, err := db.conn.Query(`SELECT `+rowColumns+` FROM exports`+where+
		` ORDER BY `+order+` LIMIT ? OFFSET ?`, append(args, opts.Limit, opts.Offset)...)
	if err != nil {
		return nil, 0, fmt.Errorf("ledger: list: %w", err)
	}
	defer rows.Close()

	var out []ExportRow
	for rows.Next() {
		e, err := scanRow(rows)
		if err != nil {
			return nil, 0, err
		}
		out = append(out, e)
	}
	return out, total, rows.Err()
}

// Assets returns the asset paths recorded for an export.
func (db *DB) Assets(path string) ([]string, error) {
	rows, err := db.conn.Query(`SELECT asset FROM assets WHERE export_path = ? ORDER BY asset`, path)
	if err != nil {
		return nil, fmt.Errorf("ledger: assets: %w", err)
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var s string
		if err := rows.Scan(&s); err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

// AllChecksums returns the stored checksum of every export by path.
func (db *DB) AllChecksums() (map[string]string, error) {
	rows, err := db.conn.Query(`SELECT path, checksum FROM exports`)
	if err != nil {
		return nil, fmt.Errorf("ledger: all checksums: %w", err)
	}
	defer rows.Close()
	out := make(map[string]string)
	for rows.Next() {
		var p, cs string
		if err := rows.Scan(&p, &cs); err != nil {
			return nil, err
		}
		out[p] = cs
	}
	return out, rows.Err()
}
