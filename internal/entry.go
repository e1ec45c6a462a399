// Package internal provides the main application initialization and runtime logic.
package internal

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"golang.org/x/sync/errgroup"

	"github.com/starford/anubis/internal/api"
	"github.com/starford/anubis/internal/build"
	"github.com/starford/anubis/internal/docservice"
	"github.com/starford/anubis/internal/index"
	"github.com/starford/anubis/internal/mcpserver"
	"github.com/starford/anubis/internal/metrics"
	"github.com/starford/anubis/internal/render"
	"github.com/starford/anubis/internal/sse"
	"github.com/starford/anubis/internal/storage"
	"github.com/starford/anubis/internal/store"
)

// runtime bundles the collaborators shared by every command.
type runtime struct {
	cfg     *Config
	logger  *slog.Logger
	db      *index.DB
	tpl     *render.HTMLTemplates
	metrics *metrics.Metrics
}

// Run starts the application with the given options.
func Run(ctx context.Context, opts ...Option) error {
	app := &application{command: CommandAll}

	for _, opt := range opts {
		opt(app)
	}

	if app.config == nil {
		return fmt.Errorf("config is required")
	}

	cfg := app.config

	// Initialize structured JSON logger. The MCP transport owns stdout.
	var out io.Writer = os.Stdout
	if app.command == CommandMCP {
		out = os.Stderr
	}
	logger := slog.New(slog.NewJSONHandler(out, &slog.HandlerOptions{
		Level: cfg.App.LogLevel,
	}))
	slog.SetDefault(logger)

	logger.Info("Configuration loaded",
		slog.String("command", string(app.command)),
		slog.String("http_address", cfg.App.HTTP.Address()),
		slog.String("source_root", cfg.Source.Root),
		slog.String("sqlite_path", cfg.SQLite.Path),
		slog.String("log_level", cfg.App.LogLevel.String()))

	// Initialize SQLite persistence.
	db, err := index.Open(cfg.SQLite.Path)
	if err != nil {
		return fmt.Errorf("init index: %w", err)
	}
	defer db.Close()

	tpl, err := render.LoadTemplates(cfg.Templates.Dir)
	if err != nil {
		return fmt.Errorf("init templates: %w", err)
	}

	rt := &runtime{cfg: cfg, logger: logger, db: db, tpl: tpl, metrics: metrics.New()}

	switch app.command {
	case CommandParse:
		return rt.parse()
	case CommandRender:
		return rt.render()
	case CommandRun:
		st, err := rt.load()
		if err != nil {
			return err
		}
		rt.warnIfStale()
		return rt.serve(ctx, st)
	case CommandAll:
		st, err := rt.buildAll()
		if err != nil {
			return err
		}
		return rt.serve(ctx, st)
	case CommandExport:
		return rt.export()
	case CommandMCP:
		st, err := rt.load()
		if err != nil {
			return err
		}
		return mcpserver.New(rt.service(st, nil), cfg.Languages).ServeStdio()
	default:
		return fmt.Errorf("unknown command %q", app.command)
	}
}

func (rt *runtime) source() (*storage.FS, error) {
	src, err := storage.NewFS(rt.cfg.Source.Root, rt.cfg.Source.Ignore)
	if err != nil {
		return nil, fmt.Errorf("init storage: %w", err)
	}
	return src, nil
}

// builder and service form hrefs under the configured base URL unless
// links is given.
func (rt *runtime) builder(src storage.Provider, links render.Links) *build.Builder {
	return build.New(build.Options{
		Source:    src,
		Languages: rt.cfg.Languages,
		Markdown:  render.NewGoMarkdown(),
		Templates: rt.tpl,
		BaseURL:   rt.cfg.App.BaseURL,
		Links:     links,
		Metrics:   rt.metrics,
		Logger:    rt.logger,
	})
}

func (rt *runtime) service(st *store.Store, links render.Links) *docservice.Service {
	return docservice.New(st, docservice.Options{
		Templates: rt.tpl,
		Search:    rt.db,
		BaseURL:   rt.cfg.App.BaseURL,
		Links:     links,
		Title:     rt.cfg.App.Title,
	})
}

// load reads the persisted store.
func (rt *runtime) load() (*store.Store, error) {
	snap, err := rt.db.LoadSnapshot()
	if err != nil {
		return nil, fmt.Errorf("load store: %w", err)
	}
	st := store.FromSnapshot(snap)
	rt.metrics.Blocks.Set(float64(st.Len()))
	rt.logger.Info("store loaded", slog.Int("blocks", st.Len()))
	return st, nil
}

// parse scans the source tree into a fresh store and persists it without
// rendered pages.
func (rt *runtime) parse() error {
	src, err := rt.source()
	if err != nil {
		return err
	}
	st := store.New()
	rep, err := rt.builder(src, nil).Parse(st)
	if err != nil {
		return fmt.Errorf("parse: %w", err)
	}
	return build.Persist(rt.db, st, rep.Files)
}

// warnIfStale logs a warning when the source tree has changed since the
// persisted store was parsed.
func (rt *runtime) warnIfStale() bool {
	src, err := rt.source()
	if err != nil {
		rt.logger.Warn("stale check skipped", slog.String("error", err.Error()))
		return false
	}
	stale, err := build.Stale(rt.db, src)
	if err != nil {
		rt.logger.Warn("stale check skipped", slog.String("error", err.Error()))
		return false
	}
	if stale {
		rt.logger.Warn("source changed since last parse; run parse to refresh",
			slog.String("source_root", rt.cfg.Source.Root))
	}
	return stale
}

// render re-renders the persisted store.
func (rt *runtime) render() error {
	st, err := rt.load()
	if err != nil {
		return err
	}
	rt.builder(nil, nil).RenderAll(st)
	return build.Persist(rt.db, st, nil)
}

func (rt *runtime) buildAll() (*store.Store, error) {
	src, err := rt.source()
	if err != nil {
		return nil, err
	}
	st, rep, err := rt.builder(src, nil).Build()
	if err != nil {
		return nil, fmt.Errorf("build: %w", err)
	}
	if err := build.Persist(rt.db, st, rep.Parse.Files); err != nil {
		return nil, fmt.Errorf("persist: %w", err)
	}
	return st, nil
}

// exportPages is the export subdirectory holding one file per block.
const exportPages = "blocks"

// export writes a static copy of the site to the export directory:
// index.html and graph.json at the top and every page that renders under
// blocks/. Pages are rendered again with file-relative links so the copy
// works from any static file server.
func (rt *runtime) export() error {
	st, err := rt.load()
	if err != nil {
		return err
	}
	if err := os.MkdirAll(rt.cfg.Export.Dir, 0o755); err != nil {
		return fmt.Errorf("create export dir: %w", err)
	}
	out, err := storage.NewFS(rt.cfg.Export.Dir, nil)
	if err != nil {
		return err
	}

	pageLinks := render.ExportLinks{}
	rep := rt.builder(nil, pageLinks).RenderAll(st)

	ctx := context.Background()
	pages := rt.service(st, pageLinks)
	home := rt.service(st, render.ExportLinks{Prefix: exportPages + "/"})

	landing, err := home.Index(ctx)
	if err != nil {
		return fmt.Errorf("export index: %w", err)
	}
	if err := out.Write("index.html", []byte(landing)); err != nil {
		return err
	}
	graph, err := json.Marshal(home.Graph(ctx))
	if err != nil {
		return err
	}
	if err := out.Write("graph.json", graph); err != nil {
		return err
	}

	written := 0
	for _, item := range pages.ListBlocks(ctx) {
		if !item.Rendered {
			continue
		}
		page, err := pages.Page(ctx, item.Name)
		if err != nil {
			rt.logger.Warn("export: page failed", slog.String("block", item.Name), slog.String("error", err.Error()))
			continue
		}
		if err := out.Write(path.Join(exportPages, render.ExportFile(item.Name)), []byte(page)); err != nil {
			rt.logger.Warn("export: write failed", slog.String("block", item.Name), slog.String("error", err.Error()))
			continue
		}
		written++
	}
	rt.logger.Info("export: done",
		slog.String("dir", rt.cfg.Export.Dir),
		slog.Int("pages", written),
		slog.Int("failed", rep.Failed))
	return nil
}

// serve publishes st over HTTP until a signal arrives or ctx ends. With
// watch mode on, source changes rebuild and republish the store.
func (rt *runtime) serve(ctx context.Context, st *store.Store) error {
	cfg, logger := rt.cfg, rt.logger

	svc := rt.service(st, nil)

	// SSE broker.
	broker := sse.NewBroker(2 * time.Second)
	defer broker.Close()

	apiRouter := api.NewRouter(svc, cfg.Auth.AuthEnabled(), cfg.Auth.Token, broker)

	// Build chi router.
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
		if !svc.Ready() {
			w.WriteHeader(http.StatusServiceUnavailable)
			_, _ = w.Write([]byte(`{"status":"unavailable"}`))
			return
		}
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})
	r.Handle("/metrics", rt.metrics.Handler())

	// Mount API routes under /api and the site at the root.
	r.Mount("/api", apiRouter)
	r.Mount("/", api.NewSiteRouter(svc, rt.metrics))

	httpServer := &http.Server{
		Addr:              cfg.App.HTTP.Address(),
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	logger.Info("Server starting...", slog.String("http_address", cfg.App.HTTP.Address()))

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	g, gCtx := errgroup.WithContext(ctx)

	if cfg.Watch.Enabled {
		src, err := rt.source()
		if err != nil {
			return err
		}
		b := rt.builder(src, nil)
		g.Go(func() error {
			return build.Watch(gCtx, src, src.Root(), cfg.Watch.Debounce, logger, func(ctx context.Context) {
				rt.rebuild(ctx, b, svc, broker)
			})
		})
	}

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
		cancel()

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

// rebuild runs a full build, persists it and swaps it into svc. Clients are
// told about the outcome either way; on failure svc keeps serving the
// previous store.
func (rt *runtime) rebuild(ctx context.Context, b *build.Builder, svc *docservice.Service, broker *sse.Broker) {
	next, rep, err := b.Build()
	if err != nil {
		rt.logger.Error("rebuild failed", slog.String("error", err.Error()))
		broker.Publish(sse.Event{Type: sse.EventRebuildFailed, Data: sse.Failure{Error: err.Error()}})
		return
	}
	if err := build.Persist(rt.db, next, rep.Parse.Files); err != nil {
		rt.logger.Error("persist failed", slog.String("error", err.Error()))
	}

	var prev []string
	for _, item := range svc.ListBlocks(ctx) {
		prev = append(prev, item.Name)
	}
	added, removed := diffNames(prev, next.Names())
	shape := next.Graph()

	svc.Swap(next)
	rt.metrics.Rebuilds.Inc()
	broker.PublishRebuild(sse.Rebuild{
		Blocks:   next.Len(),
		Rendered: rep.Render.Rendered,
		Failed:   rep.Render.Failed,
		Added:    added,
		Removed:  removed,
		Nodes:    len(shape.Nodes),
		Edges:    len(shape.Edges),
	})
}

// diffNames returns the names only in next and the names only in prev. Both
// inputs are sorted, and so are the results.
func diffNames(prev, next []string) (added, removed []string) {
	i, j := 0, 0
	for i < len(prev) && j < len(next) {
		switch {
		case prev[i] == next[j]:
			i++
			j++
		case prev[i] < next[j]:
			removed = append(removed, prev[i])
			i++
		default:
			added = append(added, next[j])
			j++
		}
	}
	removed = append(removed, prev[i:]...)
	added = append(added, next[j:]...)
	return added, removed
}
