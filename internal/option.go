package internal

import (
	"io"

	"github.com/starford/notionhugo/internal/exporter"
	"github.com/starford/notionhugo/internal/render"
)

// Option is a functional option for configuring the application.
type Option func(*application)

type application struct {
	config  *Config
	source  exporter.Source
	fetcher render.AssetFetcher
	stdout  io.Writer
	version string
}

// WithConfig sets the application configuration.
func WithConfig(cfg *Config) Option {
	return func(a *application) {
		a.config = cfg
	}
}

// WithSource replaces the remote client built from the configuration.
func WithSource(src exporter.Source) Option {
	return func(a *application) {
		a.source = src
	}
}

// WithFetcher replaces the asset pipeline built from the configuration.
func WithFetcher(f render.AssetFetcher) Option {
	return func(a *application) {
		a.fetcher = f
	}
}

// WithStdout sets where command output is written.
func WithStdout(w io.Writer) Option {
	return func(a *application) {
		a.stdout = w
	}
}

// WithVersion sets the version reported by the MCP server.
func WithVersion(v string) Option {
	return func(a *application) {
		a.version = v
	}
}
