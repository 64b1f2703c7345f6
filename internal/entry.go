// Package internal provides the main application initialization and runtime logic.
package internal

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"golang.org/x/sync/errgroup"

	"github.com/grayside/grayside/internal/api"
	"github.com/grayside/grayside/internal/index"
	"github.com/grayside/grayside/internal/mcpserver"
	"github.com/grayside/grayside/internal/nodeservice"
	"github.com/grayside/grayside/internal/site"
	"github.com/grayside/grayside/internal/sse"
	"github.com/grayside/grayside/internal/storage"
)

const rebuildDebounce = 150 * time.Millisecond

// pipeline holds the components shared by every command.
type pipeline struct {
	cfg     *Config
	logger  *slog.Logger
	content storage.Provider
	db      *index.DB
	svc     *nodeservice.Service
	builder *site.Builder
}

func newApplication(opts []Option) (*application, error) {
	app := &application{version: "dev", logOutput: os.Stdout}
	for _, opt := range opts {
		opt(app)
	}
	if app.config == nil {
		return nil, fmt.Errorf("config is required")
	}
	return app, nil
}

func (a *application) newLogger() *slog.Logger {
	logger := slog.New(slog.NewJSONHandler(a.logOutput, &slog.HandlerOptions{
		Level: a.config.App.LogLevel,
	}))
	slog.SetDefault(logger)
	return logger
}

// open wires storage, the index and the site builder, then brings the index
// up to date with the content tree.
func (a *application) open(logger *slog.Logger) (*pipeline, index.SyncReport, error) {
	cfg := a.config

	content, err := storage.NewFS(cfg.Content.Dir, storage.WithExclude(cfg.Content.Exclude...))
	if err != nil {
		return nil, index.SyncReport{}, fmt.Errorf("init content storage: %w", err)
	}

	if err := os.MkdirAll(cfg.Output.Dir, 0o755); err != nil {
		return nil, index.SyncReport{}, fmt.Errorf("create output dir: %w", err)
	}
	out, err := storage.NewFS(cfg.Output.Dir, storage.WithExtensions())
	if err != nil {
		return nil, index.SyncReport{}, fmt.Errorf("init output storage: %w", err)
	}

	builderOpts := []site.BuilderOption{site.WithLogger(logger)}
	if cfg.Content.StaticDir != "" {
		static, err := storage.NewFS(cfg.Content.StaticDir, storage.WithExtensions())
		switch {
		case err == nil:
			builderOpts = append(builderOpts, site.WithStatic(static))
		case errors.Is(err, os.ErrNotExist):
			logger.Info("static dir not found, skipping assets", slog.String("static_dir", cfg.Content.StaticDir))
		default:
			return nil, index.SyncReport{}, fmt.Errorf("init static storage: %w", err)
		}
	}

	palette := cfg.Palette.Colors()
	renderer, err := site.NewRenderer(site.Info{
		Title:       cfg.Site.Title,
		Author:      cfg.Site.Author,
		Description: cfg.Site.Description,
	}, palette)
	if err != nil {
		return nil, index.SyncReport{}, err
	}

	db, err := index.Open(cfg.SQLite.Path)
	if err != nil {
		return nil, index.SyncReport{}, fmt.Errorf("init index: %w", err)
	}

	report, err := index.Sync(db, content, logger)
	if err != nil {
		db.Close()
		return nil, report, fmt.Errorf("initial sync: %w", err)
	}
	logger.Info("sync: done",
		slog.Int("indexed", report.Indexed),
		slog.Int("removed", report.Removed),
		slog.Int("rejected", len(report.Failed)))

	return &pipeline{
		cfg:     cfg,
		logger:  logger,
		content: content,
		db:      db,
		svc:     nodeservice.NewService(db, content, palette),
		builder: site.NewBuilder(db, out, renderer, builderOpts...),
	}, report, nil
}

// Build indexes the content tree and writes the static site once. Content
// files that cannot be published (for example a directory name without a
// slug delimiter) fail the build.
func Build(ctx context.Context, opts ...Option) error {
	app, err := newApplication(opts)
	if err != nil {
		return err
	}
	logger := app.newLogger()

	p, report, err := app.open(logger)
	if err != nil {
		return err
	}
	defer p.db.Close()

	if err := report.Err(); err != nil {
		return err
	}
	res, err := p.builder.Build(ctx)
	if err != nil {
		return fmt.Errorf("build: %w", err)
	}
	logger.Info("Build finished",
		slog.String("build_id", res.ID),
		slog.String("output_dir", p.cfg.Output.Dir),
		slog.Int("pages", res.Pages))
	return nil
}

// ServeMCP runs the MCP server on stdio. Logs go to the configured log
// output, which must not be stdout.
func ServeMCP(ctx context.Context, opts ...Option) error {
	app, err := newApplication(append([]Option{WithLogOutput(os.Stderr)}, opts...))
	if err != nil {
		return err
	}
	logger := app.newLogger()

	p, _, err := app.open(logger)
	if err != nil {
		return err
	}
	defer p.db.Close()

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	g, gCtx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return index.Watch(gCtx, p.db, p.content, logger, nil)
	})
	g.Go(func() error {
		// Stop the watcher once stdin closes.
		defer cancel()
		return mcpserver.New(p.svc, app.version).ServeStdio()
	})
	return g.Wait()
}

// Run starts the preview server with the given options.
func Run(ctx context.Context, opts ...Option) error {
	app, err := newApplication(opts)
	if err != nil {
		return err
	}
	cfg := app.config
	logger := app.newLogger()

	logger.Info("Configuration loaded",
		slog.String("http_address", cfg.App.HTTP.Address()),
		slog.String("content_dir", cfg.Content.Dir),
		slog.String("output_dir", cfg.Output.Dir),
		slog.String("sqlite_path", cfg.SQLite.Path),
		slog.String("log_level", cfg.App.LogLevel.String()))

	p, report, err := app.open(logger)
	if err != nil {
		return err
	}
	defer p.db.Close()

	if err := report.Err(); err != nil {
		logger.Warn("some content was rejected", slog.String("error", err.Error()))
	}
	if _, err := p.builder.Build(ctx); err != nil {
		logger.Error("initial build failed", slog.String("error", err.Error()))
	}

	// SSE broker.
	broker := sse.NewBroker(2 * time.Second)
	defer broker.Close()

	apiRouter := api.NewRouter(p.svc, cfg.Auth.AuthEnabled(), cfg.Auth.Token, broker)

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

	// Mount API routes under /api.
	r.Mount("/api", apiRouter)

	// Everything else is the built site.
	r.Handle("/*", http.FileServer(http.Dir(cfg.Output.Dir)))

	httpServer := &http.Server{
		Addr:              cfg.App.HTTP.Address(),
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	logger.Info("Server starting...", slog.String("http_address", cfg.App.HTTP.Address()))

	g, gCtx := errgroup.WithContext(ctx)

	rebuild := make(chan struct{}, 1)

	// Start file watcher: forward index changes to SSE and request a rebuild.
	g.Go(func() error {
		return index.Watch(gCtx, p.db, p.content, logger, func(kind, path string) {
			broker.PublishNodeEvent(kind, path)
			select {
			case rebuild <- struct{}{}:
			default:
			}
		})
	})

	// Rebuild loop: coalesces bursts of changes into one build.
	g.Go(func() error {
		return rebuildLoop(gCtx, p.builder, broker, rebuild, logger)
	})

	// Start HTTP server.
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

		logger.Info("Shutting down server...")

		// Ends open SSE streams so Shutdown does not wait on them.
		broker.Close()

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			logger.Error("HTTP server shutdown error", slog.String("error", err.Error()))
		}

		return errShutdown
	})

	if err := g.Wait(); err != nil && !errors.Is(err, errShutdown) {
		logger.Error("Application error", slog.String("error", err.Error()))
		return err
	}

	logger.Info("Server stopped successfully")
	return nil
}

// errShutdown cancels the errgroup once the HTTP server has stopped so the
// watcher and rebuild loop exit too.
var errShutdown = errors.New("shutdown")

func rebuildLoop(ctx context.Context, b *site.Builder, broker *sse.Broker, trigger <-chan struct{}, logger *slog.Logger) error {
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-trigger:
		}

		// Let a burst of file events settle.
		timer := time.NewTimer(rebuildDebounce)
		select {
		case <-ctx.Done():
			timer.Stop()
			return nil
		case <-timer.C:
		}
		select {
		case <-trigger:
		default:
		}

		res, err := b.Build(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			logger.Error("rebuild failed", slog.String("error", err.Error()))
			broker.Publish(sse.Event{Type: sse.TypeBuildFailed, Data: map[string]string{"error": err.Error()}})
			continue
		}
		broker.PublishRebuilt(res)
	}
}
