// Package storage defines the output-tree file-system abstraction.
package storage

import "time"

// FileInfo describes one Markdown file of the output tree.
type FileInfo struct {
	Path      string    `json:"path"`
	Checksum  string    `json:"checksum"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Provider is the interface for output tree file operations. Paths are
// relative to the export root.
type Provider interface {
	// Root returns the absolute export root.
	Root() string
	// List returns metadata for every .md file under dir.
	List(dir string) ([]FileInfo, error)
	// Read returns the raw bytes of the file at path.
	Read(path string) ([]byte, error)
	// Write atomically writes content to path, creating parent directories.
	Write(path string, content []byte) error
	// Exists reports whether path exists.
	Exists(path string) bool
}
