// Package internal provides the main application initialization and runtime logic.
package internal

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"text/tabwriter"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"golang.org/x/sync/errgroup"

	"github.com/starford/notionhugo/internal/api"
	"github.com/starford/notionhugo/internal/assets"
	"github.com/starford/notionhugo/internal/exporter"
	"github.com/starford/notionhugo/internal/exportservice"
	"github.com/starford/notionhugo/internal/ledger"
	"github.com/starford/notionhugo/internal/mcpserver"
	"github.com/starford/notionhugo/internal/notion"
	"github.com/starford/notionhugo/internal/sse"
	"github.com/starford/notionhugo/internal/storage"
)

// runtime holds the components shared by every command.
type runtime struct {
	cfg    *Config
	logger *slog.Logger
	store  *storage.FS
	db     *ledger.DB
}

func (r *runtime) Close() {
	if r.db != nil {
		if err := r.db.Close(); err != nil {
			r.logger.Warn("ledger close failed", slog.String("error", err.Error()))
		}
	}
}

func newApplication(opts []Option) (*application, error) {
	app := &application{stdout: os.Stdout, version: "dev"}
	for _, opt := range opts {
		opt(app)
	}
	if app.config == nil {
		return nil, fmt.Errorf("config is required")
	}
	return app, nil
}

// start initializes logging, the output tree and the ledger. Logs go to
// logOut so the MCP command can keep stdout for the protocol.
func (a *application) start(logOut io.Writer, needLedger bool) (*runtime, error) {
	cfg := a.config

	logger := slog.New(slog.NewJSONHandler(logOut, &slog.HandlerOptions{
		Level: cfg.App.LogLevel,
	}))
	slog.SetDefault(logger)

	logger.Info("Configuration loaded",
		slog.String("output_root", cfg.Output.Root),
		slog.Bool("ledger_enabled", cfg.Ledger.Enabled),
		slog.String("ledger_path", cfg.Ledger.Path),
		slog.String("log_level", cfg.App.LogLevel.String()))

	store, err := storage.NewFS(cfg.Output.Root)
	if err != nil {
		return nil, fmt.Errorf("init storage: %w", err)
	}

	rt := &runtime{cfg: cfg, logger: logger, store: store}
	if !cfg.Ledger.Enabled {
		if needLedger {
			return nil, errors.New("ledger must be enabled for this command")
		}
		return rt, nil
	}
	db, err := ledger.Open(cfg.Ledger.Path)
	if err != nil {
		return nil, fmt.Errorf("init ledger: %w", err)
	}
	rt.db = db
	return rt, nil
}

// newExporter builds the exporter, or returns nil when no remote source is
// available.
func (a *application) newExporter(rt *runtime, opts ...exporter.Option) *exporter.Exporter {
	cfg := rt.cfg
	source := a.source
	if source == nil {
		if cfg.Notion.Token == "" {
			return nil
		}
		source = notion.New(cfg.Notion.Token,
			notion.WithBaseURL(cfg.Notion.BaseURL),
			notion.WithVersion(cfg.Notion.Version),
			notion.WithRate(cfg.Notion.RequestsPerSecond),
			notion.WithRetries(cfg.Notion.Retries),
			notion.WithHTTPClient(&http.Client{Timeout: cfg.Notion.Timeout}),
			notion.WithLogger(rt.logger))
	}

	fetcher := a.fetcher
	if fetcher == nil {
		fetcher = assets.New(
			assets.WithMaxImageWidth(cfg.Output.MaxImageWidth),
			assets.WithMaxBytes(cfg.Output.MaxAssetBytes),
			assets.WithLogger(rt.logger))
	}

	opts = append([]exporter.Option{
		exporter.WithLogger(rt.logger),
		exporter.WithCenterImages(cfg.Output.CenterImages),
		exporter.WithStrict(cfg.App.Strict),
	}, opts...)
	if rt.db != nil {
		opts = append(opts, exporter.WithLedger(rt.db))
	}
	return exporter.New(source, fetcher, rt.store, opts...)
}

// Run exports every selected document once.
func Run(ctx context.Context, opts ...Option) error {
	app, err := newApplication(opts)
	if err != nil {
		return err
	}
	if app.source == nil {
		if err := app.config.Notion.ValidateSource(); err != nil {
			return err
		}
	} else if app.config.Notion.DatabaseID == "" && len(app.config.Notion.PageIDs) == 0 {
		return errors.New("notion: either database_id or page_ids is required")
	}

	rt, err := app.start(os.Stdout, false)
	if err != nil {
		return err
	}
	defer rt.Close()

	exp := app.newExporter(rt)
	report, err := exp.Run(ctx, exporter.Query{
		DatabaseID: app.config.Notion.DatabaseID,
		Status:     app.config.Notion.Status,
		PageIDs:    exporter.ParsePageIDs(app.config.Notion.PageIDs...),
	})
	if err != nil {
		rt.logger.Error("Export failed",
			slog.Int("exported", len(report.Documents)),
			slog.Int("failed", report.Failed),
			slog.String("error", err.Error()))
		return err
	}
	return nil
}

// Serve starts the preview API until ctx is cancelled or a shutdown signal
// arrives.
func Serve(ctx context.Context, opts ...Option) error {
	app, err := newApplication(opts)
	if err != nil {
		return err
	}
	rt, err := app.start(os.Stdout, true)
	if err != nil {
		return err
	}
	defer rt.Close()
	cfg := rt.cfg
	logger := rt.logger

	broker := sse.NewBroker(2 * time.Second)
	defer broker.Close()

	svcOpts := []exportservice.Option{exportservice.WithLogger(logger)}
	if exp := app.newExporter(rt, exporter.WithNotifier(broker)); exp != nil {
		svcOpts = append(svcOpts, exportservice.WithPageExporter(exp))
	} else {
		logger.Warn("No notion token configured, page export disabled")
	}
	svc := exportservice.NewService(rt.store, rt.db, svcOpts...)

	if err := svc.Resync(ctx); err != nil {
		logger.Warn("initial sync failed", slog.String("error", err.Error()))
	}

	apiRouter := api.NewRouter(svc, cfg.Auth.AuthEnabled(), cfg.Auth.Token, broker, rt.store)

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)

	// Health check endpoints (unauthenticated).
	r.Get("/health/live", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})
	r.Get("/health/ready", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})

	r.Mount("/api", apiRouter)

	httpServer := &http.Server{
		Addr:              cfg.App.HTTP.Address(),
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, gCtx := errgroup.WithContext(ctx)

	g.Go(func() error {
		logger.Info("Starting HTTP server", slog.String("address", cfg.App.HTTP.Address()))
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("HTTP server error: %w", err)
		}
		return nil
	})

	// Handle shutdown signals.
	g.Go(func() error {
		quit := make(chan os.Signal, 1)
		signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
		defer signal.Stop(quit)

		select {
		case sig := <-quit:
			logger.Info("Received shutdown signal", slog.String("signal", sig.String()))
		case <-gCtx.Done():
			logger.Info("Context cancelled, initiating shutdown")
		}

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			logger.Error("HTTP server shutdown error", slog.String("error", err.Error()))
		}
		return nil
	})

	if err := g.Wait(); err != nil {
		logger.Error("Application error", slog.String("error", err.Error()))
		return err
	}

	logger.Info("Server stopped successfully")
	return nil
}

// ServeMCP serves the MCP tools on stdin/stdout. Logs go to stderr.
func ServeMCP(ctx context.Context, opts ...Option) error {
	app, err := newApplication(opts)
	if err != nil {
		return err
	}
	rt, err := app.start(os.Stderr, true)
	if err != nil {
		return err
	}
	defer rt.Close()

	svcOpts := []exportservice.Option{exportservice.WithLogger(rt.logger)}
	if exp := app.newExporter(rt); exp != nil {
		svcOpts = append(svcOpts, exportservice.WithPageExporter(exp))
	}
	svc := exportservice.NewService(rt.store, rt.db, svcOpts...)
	if err := svc.Resync(ctx); err != nil {
		rt.logger.Warn("initial sync failed", slog.String("error", err.Error()))
	}

	rt.logger.Info("Starting MCP server on stdio")
	return mcpserver.New(svc, app.version).ServeStdio()
}

// Status prints the recorded exports after syncing the ledger with disk.
func Status(ctx context.Context, opts ...Option) error {
	app, err := newApplication(opts)
	if err != nil {
		return err
	}
	rt, err := app.start(io.Discard, true)
	if err != nil {
		return err
	}
	defer rt.Close()

	svc := exportservice.NewService(rt.store, rt.db, exportservice.WithLogger(rt.logger))
	if err := svc.Resync(ctx); err != nil {
		return fmt.Errorf("sync ledger: %w", err)
	}
	items, total, err := svc.ListExports(ctx, ledger.ListOptions{Limit: 1000, Sort: "path"})
	if err != nil {
		return err
	}
	return writeStatus(app.stdout, items, total)
}

func writeStatus(w io.Writer, items []exportservice.ExportListItem, total int) error {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "PATH\tTITLE\tLANG\tWARNINGS\tEXPORTED")
	for _, it := range items {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%d\t%s\n",
			it.Path, it.Title, it.Language, it.Warnings, it.ExportedAt.Format(time.RFC3339))
	}
	if err := tw.Flush(); err != nil {
		return err
	}
	_, err := fmt.Fprintf(w, "%d exports\n", total)
	return err
}
