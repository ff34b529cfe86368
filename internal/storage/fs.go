package storage

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/starford/notionhugo/internal/checksum"
)

const tempPattern = ".notionhugo-tmp-*"

// FS implements Provider on the local disk.
type FS struct {
	root string
}

var _ Provider = (*FS)(nil)

// NewFS opens the export root, creating it when missing.
func NewFS(root string) (*FS, error) {
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("storage: resolve root: %w", err)
	}
	if err := os.MkdirAll(abs, 0o755); err != nil {
		return nil, fmt.Errorf("storage: create root: %w", err)
	}
	if info, err := os.Stat(abs); err != nil {
		return nil, fmt.Errorf("storage: stat root: %w", err)
	} else if !info.IsDir() {
		return nil, fmt.Errorf("storage: %s is not a directory", abs)
	}
	return &FS{root: abs}, nil
}

func (f *FS) Root() string { return f.root }

// Abs maps a root-relative path to an absolute one. Absolute input is
// accepted when it already lies inside the root. Anything that would leave
// the root is an error.
func (f *FS) Abs(p string) (string, error) {
	rel := p
	if filepath.IsAbs(p) {
		r, err := filepath.Rel(f.root, filepath.Clean(p))
		if err != nil {
			return "", fmt.Errorf("storage: %s: %w", p, err)
		}
		rel = r
	}
	rel = filepath.Clean(filepath.FromSlash(rel))
	if rel == "." {
		return f.root, nil
	}
	if !filepath.IsLocal(rel) {
		return "", fmt.Errorf("storage: %s is outside the export root", p)
	}
	return filepath.Join(f.root, rel), nil
}

// List returns every Markdown file under dir, sorted by path. Leftover
// temporary files are ignored.
func (f *FS) List(dir string) ([]FileInfo, error) {
	base, err := f.Abs(dir)
	if err != nil {
		return nil, err
	}
	var out []FileInfo
	walk := func(p string, d fs.DirEntry, err error) error {
		switch {
		case err != nil:
			return err
		case d.IsDir(), filepath.Ext(p) != ".md", strings.HasPrefix(d.Name(), ".notionhugo-tmp-"):
			return nil
		}
		fi, err := f.describe(p, d)
		if err != nil {
			return err
		}
		out = append(out, fi)
		return nil
	}
	if err := filepath.WalkDir(base, walk); err != nil {
		return nil, fmt.Errorf("storage: list %s: %w", dir, err)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Path < out[j].Path })
	return out, nil
}

func (f *FS) describe(abs string, d fs.DirEntry) (FileInfo, error) {
	info, err := d.Info()
	if err != nil {
		return FileInfo{}, err
	}
	data, err := os.ReadFile(abs)
	if err != nil {
		return FileInfo{}, err
	}
	rel, err := filepath.Rel(f.root, abs)
	if err != nil {
		return FileInfo{}, err
	}
	return FileInfo{
		Path:      filepath.ToSlash(rel),
		Checksum:  checksum.Sum(data),
		UpdatedAt: info.ModTime(),
	}, nil
}

func (f *FS) Read(path string) ([]byte, error) {
	abs, err := f.Abs(path)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(abs)
	if err != nil {
		return nil, fmt.Errorf("storage: read %s: %w", path, err)
	}
	return data, nil
}

func (f *FS) Write(path string, content []byte) error {
	abs, err := f.Abs(path)
	if err != nil {
		return err
	}
	return WriteFile(abs, content)
}

func (f *FS) Exists(path string) bool {
	abs, err := f.Abs(path)
	if err != nil {
		return false
	}
	_, err = os.Stat(abs)
	return err == nil
}

// WriteFile replaces abs with content through a synced temporary file in the
// same directory, so readers never observe a partial write.
func WriteFile(abs string, content []byte) (err error) {
	dir := filepath.Dir(abs)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("storage: mkdir %s: %w", dir, err)
	}
	tmp, err := os.CreateTemp(dir, tempPattern)
	if err != nil {
		return fmt.Errorf("storage: create temp: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tmp.Close()
			_ = os.Remove(tmp.Name())
		}
	}()

	if _, err = tmp.Write(content); err != nil {
		return fmt.Errorf("storage: write %s: %w", abs, err)
	}
	if err = tmp.Sync(); err != nil {
		return fmt.Errorf("storage: sync %s: %w", abs, err)
	}
	if err = tmp.Chmod(0o644); err != nil {
		return fmt.Errorf("storage: chmod %s: %w", abs, err)
	}
	if err = tmp.Close(); err != nil {
		return fmt.Errorf("storage: close %s: %w", abs, err)
	}
	if err = os.Rename(tmp.Name(), abs); err != nil {
		return fmt.Errorf("storage: rename into %s: %w", abs, err)
	}
	return nil
}
