// Package layout decides where exported documents live below the output root
// and writes the section stubs Hugo needs to list them.
package layout

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"unicode"

	"github.com/goliatone/go-slug"
	"github.com/google/uuid"

	"github.com/starford/notionhugo/internal/checksum"
	"github.com/starford/notionhugo/internal/storage"
)

const (
	PostsDir        = "posts"
	DefaultCategory = "Misc"
	StubName        = "_index.md"
)

// Placement carries the properties that decide a document's directory.
type Placement struct {
	DocumentID  string
	Category    string
	Subcategory string
	Index       string
	Slug        string
}

// Resolver maps placements to directories below root.
type Resolver struct {
	root string
}

// NewResolver creates a Resolver for the output root.
func NewResolver(root string) *Resolver {
	return &Resolver{root: root}
}

// Root returns the output root.
func (r *Resolver) Root() string { return r.root }

// Dir returns root/posts/<category>/<subcategory>/<index->-<slug|id>.
// Every property contributes at most one directory level; values that are
// not a plain name are replaced by their fallback.
func (r *Resolver) Dir(p Placement) string {
	category := segment(p.Category)
	if category == "" {
		category = DefaultCategory
	}
	return filepath.Join(r.root, PostsDir, category, segment(p.Subcategory), BaseName(p))
}

// BaseName returns the document directory name.
func BaseName(p Placement) string {
	name := normalizeSlug(p.Slug)
	if name == "" {
		name = segment(normalizeID(p.DocumentID))
	}
	if name == "" {
		name = checksum.Key(p.DocumentID)
	}
	if idx := segment(p.Index); idx != "" {
		name = idx + "-" + name
	}
	return name
}

// segment returns s trimmed when it names exactly one directory below its
// parent, and "" otherwise.
func segment(s string) string {
	s = strings.TrimSpace(s)
	if s == "" || s == "." || strings.ContainsAny(s, `/\`) {
		return ""
	}
	if !filepath.IsLocal(s) || filepath.Base(s) != s {
		return ""
	}
	return s
}

// FileName returns the Markdown file name for a language code.
func FileName(lang string) string {
	if lang == "" {
		return "index.md"
	}
	return "index." + lang + ".md"
}

func normalizeSlug(s string) string {
	s = strings.TrimSpace(s)
	if s == "" {
		return ""
	}
	normalized, err := slug.Normalize(s)
	if err != nil {
		return ""
	}
	return segment(normalized)
}

// normalizeID renders UUID ids in their compact form; anything else is kept.
func normalizeID(id string) string {
	u, err := uuid.Parse(strings.TrimSpace(id))
	if err != nil {
		return strings.TrimSpace(id)
	}
	return strings.ReplaceAll(u.String(), "-", "")
}

// WriteStubs writes a section stub into every category directory and every
// subcategory directory whose name starts with a digit. Existing stubs are
// left alone. It returns the paths written.
func (r *Resolver) WriteStubs() ([]string, error) {
	posts := filepath.Join(r.root, PostsDir)
	categories, err := os.ReadDir(posts)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("layout: read %s: %w", posts, err)
	}

	var written []string
	for _, c := range categories {
		if !c.IsDir() {
			continue
		}
		catDir := filepath.Join(posts, c.Name())
		ok, err := writeStub(catDir)
		if err != nil {
			return written, err
		}
		if ok {
			written = append(written, filepath.Join(catDir, StubName))
		}

		subs, err := os.ReadDir(catDir)
		if err != nil {
			return written, fmt.Errorf("layout: read %s: %w", catDir, err)
		}
		for _, s := range subs {
			if !s.IsDir() || !startsWithDigit(s.Name()) {
				continue
			}
			subDir := filepath.Join(catDir, s.Name())
			ok, err := writeStub(subDir)
			if err != nil {
				return written, err
			}
			if ok {
				written = append(written, filepath.Join(subDir, StubName))
			}
		}
	}
	return written, nil
}

func startsWithDigit(name string) bool {
	for _, r := range name {
		return unicode.IsDigit(r)
	}
	return false
}

func writeStub(dir string) (bool, error) {
	path := filepath.Join(dir, StubName)
	if _, err := os.Stat(path); err == nil {
		return false, nil
	}
	content := fmt.Sprintf("---\ntitle: %q\n---\n", filepath.Base(dir))
	if err := storage.WriteFile(path, []byte(content)); err != nil {
		return false, fmt.Errorf("layout: stub %s: %w", path, err)
	}
	return true, nil
}
