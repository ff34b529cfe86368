// Package assets downloads binary resources referenced by documents and
// stores them under deterministic names.
package assets

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"strings"
	"time"

	"github.com/starford/notionhugo/internal/checksum"
	"github.com/starford/notionhugo/internal/storage"
)

// ErrUnavailable reports a non-success response for a resource. Callers treat
// it as non-fatal.
var ErrUnavailable = errors.New("assets: resource unavailable")

const defaultMaxBytes = 100 << 20 // ~100 MB

// ImagesDir is the directory name whose downloads are subject to resizing.
// Everything else, attachments included, is stored byte for byte.
const ImagesDir = "images"

// Doer performs HTTP requests. *http.Client satisfies it.
type Doer interface {
	Do(req *http.Request) (*http.Response, error)
}

// Pipeline fetches remote resources into local directories.
type Pipeline struct {
	client        Doer
	maxBytes      int64
	maxImageWidth int
	logger        *slog.Logger
}

// Option configures a Pipeline.
type Option func(*Pipeline)

// WithClient sets the HTTP client.
func WithClient(c Doer) Option {
	return func(p *Pipeline) { p.client = c }
}

// WithMaxBytes caps the accepted payload size.
func WithMaxBytes(n int64) Option {
	return func(p *Pipeline) {
		if n > 0 {
			p.maxBytes = n
		}
	}
}

// WithMaxImageWidth downscales PNG, JPEG and GIF images wider than px when
// they are fetched into an ImagesDir directory. Zero disables resizing.
func WithMaxImageWidth(px int) Option {
	return func(p *Pipeline) { p.maxImageWidth = px }
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(p *Pipeline) { p.logger = l }
}

// New creates a Pipeline.
func New(opts ...Option) *Pipeline {
	p := &Pipeline{
		client:   &http.Client{Timeout: 5 * time.Minute},
		maxBytes: defaultMaxBytes,
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Name returns the content-addressed file name for rawURL: the hex digest of
// the URL path followed by the path's extension. Query strings (signatures,
// expiry) do not take part, so one resource always maps to one name.
func Name(rawURL string) (string, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return "", fmt.Errorf("assets: parse url: %w", err)
	}
	return checksum.Key(u.Path) + path.Ext(u.Path), nil
}

// Fetch downloads rawURL into dir and returns the local file name. When name
// is empty a content-addressed name is used. Existing files are overwritten.
// A name that is not a single file name inside dir is reported as
// ErrUnavailable and nothing is written.
func (p *Pipeline) Fetch(ctx context.Context, rawURL, dir, name string) (string, error) {
	if name == "" {
		var err error
		if name, err = Name(rawURL); err != nil {
			return "", err
		}
	}
	if !plainName(name) {
		return "", fmt.Errorf("%w: unsafe file name %q for %s", ErrUnavailable, name, redact(rawURL))
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("assets: mkdir %s: %w", dir, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return "", fmt.Errorf("assets: build request: %w", err)
	}
	resp, err := p.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("assets: get %s: %w", redact(rawURL), err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4<<10))
		return "", fmt.Errorf("%w: %s returned %d", ErrUnavailable, redact(rawURL), resp.StatusCode)
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, p.maxBytes+1))
	if err != nil {
		return "", fmt.Errorf("assets: read %s: %w", redact(rawURL), err)
	}
	if int64(len(data)) > p.maxBytes {
		return "", fmt.Errorf("%w: %s exceeds %d bytes", ErrUnavailable, redact(rawURL), p.maxBytes)
	}

	if p.maxImageWidth > 0 && filepath.Base(dir) == ImagesDir {
		if resized, ok := downscale(data, p.maxImageWidth); ok {
			p.logger.Debug("assets: downscaled image",
				slog.String("name", name),
				slog.Int("before", len(data)),
				slog.Int("after", len(resized)))
			data = resized
		}
	}

	if err := storage.WriteFile(filepath.Join(dir, name), data); err != nil {
		return "", fmt.Errorf("assets: store %s: %w", name, err)
	}
	return name, nil
}

func plainName(name string) bool {
	return name != "" && !strings.ContainsAny(name, `/\`) &&
		filepath.IsLocal(name) && filepath.Base(name) == name
}

// redact drops the query string, which usually carries signatures.
func redact(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return "<invalid url>"
	}
	u.RawQuery = ""
	u.Fragment = ""
	return u.String()
}
