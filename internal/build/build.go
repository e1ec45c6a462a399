// Package build runs the parse and render phases that turn a source tree
// into a populated document store, and keeps it current in watch mode.
package build

import (
	"errors"
	"log/slog"
	"time"

	"github.com/starford/anubis/internal/apperr"
	"github.com/starford/anubis/internal/checksum"
	"github.com/starford/anubis/internal/index"
	"github.com/starford/anubis/internal/lang"
	"github.com/starford/anubis/internal/metrics"
	"github.com/starford/anubis/internal/models"
	"github.com/starford/anubis/internal/parser"
	"github.com/starford/anubis/internal/render"
	"github.com/starford/anubis/internal/storage"
	"github.com/starford/anubis/internal/store"
)

// Options configures a Builder. Links, Metrics and Logger are optional;
// without Links, hrefs are formed from BaseURL.
type Options struct {
	Source    storage.Provider
	Languages lang.Lookup
	Markdown  render.Markdown
	Templates render.Templates
	BaseURL   string
	Links     render.Links
	Metrics   *metrics.Metrics
	Logger    *slog.Logger
}

// Builder executes parse and render passes.
type Builder struct {
	src     storage.Provider
	langs   lang.Lookup
	md      render.Markdown
	tpl     render.Templates
	links   render.Links
	metrics *metrics.Metrics
	logger  *slog.Logger
}

// New creates a Builder.
func New(opts Options) *Builder {
	b := &Builder{
		src:     opts.Source,
		langs:   opts.Languages,
		md:      opts.Markdown,
		tpl:     opts.Templates,
		links:   opts.Links,
		metrics: opts.Metrics,
		logger:  opts.Logger,
	}
	if b.links == nil {
		b.links = render.ServeLinks(opts.BaseURL)
	}
	if b.metrics == nil {
		b.metrics = metrics.New()
	}
	if b.logger == nil {
		b.logger = slog.Default()
	}
	return b
}

// ParseReport summarises a parse pass.
type ParseReport struct {
	Files   []models.SourceFile // every listed file, scanned or not
	Scanned int
	Skipped int
	Blocks  int
}

// RenderReport summarises a render pass.
type RenderReport struct {
	Rendered int
	Failed   int
}

// Parse lists the source tree and inserts every block found into st.
// Files without a language binding, unreadable files and files with
// malformed blocks are logged and skipped; the pass itself only fails when
// the tree cannot be listed.
func (b *Builder) Parse(st *store.Store) (ParseReport, error) {
	start := time.Now()
	defer func() { b.metrics.BuildDuration.WithLabelValues(metrics.PhaseParse).Observe(time.Since(start).Seconds()) }()

	files, err := b.src.List("")
	if err != nil {
		return ParseReport{}, err
	}
	rep := ParseReport{Files: files}

	for _, f := range files {
		cfg, err := b.langs.ForFile(f.Path)
		if err != nil {
			b.logger.Debug("parse: no language binding", slog.String("path", f.Path))
			b.skip(&rep, metrics.ReasonLanguage)
			continue
		}
		data, err := b.src.Read(f.Path)
		if err != nil {
			b.logger.Warn("parse: read failed", slog.String("path", f.Path), slog.String("error", err.Error()))
			b.skip(&rep, metrics.ReasonRead)
			continue
		}
		blocks, err := parser.Scan(string(data), cfg)
		if err != nil {
			reason := metrics.ReasonParsing
			if errors.Is(err, apperr.ErrConfig) {
				reason = metrics.ReasonLanguage
			}
			b.logger.Warn("parse: scan failed", slog.String("path", f.Path), slog.String("error", err.Error()))
			b.skip(&rep, reason)
			continue
		}

		rep.Scanned++
		b.metrics.FilesScanned.Inc()
		for _, block := range blocks {
			block.Origin = f.Path
			st.Insert(block, cfg)
			rep.Blocks++
		}
		b.metrics.BlocksParsed.Add(float64(len(blocks)))
		b.logger.Debug("parse: scanned", slog.String("path", f.Path), slog.Int("blocks", len(blocks)))
	}

	b.metrics.Blocks.Set(float64(st.Len()))
	b.logger.Info("parse: done",
		slog.Int("files", len(files)),
		slog.Int("scanned", rep.Scanned),
		slog.Int("skipped", rep.Skipped),
		slog.Int("blocks", rep.Blocks))
	return rep, nil
}

func (b *Builder) skip(rep *ParseReport, reason string) {
	rep.Skipped++
	b.metrics.FilesSkipped.WithLabelValues(reason).Inc()
}

// RenderAll clears the HTML cache of st and renders every block in name
// order. A failing block is logged and counted; the pass continues.
func (b *Builder) RenderAll(st *store.Store) RenderReport {
	start := time.Now()
	defer func() { b.metrics.BuildDuration.WithLabelValues(metrics.PhaseRender).Observe(time.Since(start).Seconds()) }()

	st.ClearHTML()
	r := render.NewResolver(st, b.md, b.tpl, b.links)

	var rep RenderReport
	for _, name := range st.Names() {
		if _, err := r.Render(name); err != nil {
			rep.Failed++
			b.metrics.Renders.WithLabelValues("failed").Inc()
			b.logger.Warn("render: failed", slog.String("block", name), slog.String("error", err.Error()))
			continue
		}
		rep.Rendered++
		b.metrics.Renders.WithLabelValues("ok").Inc()
	}
	b.logger.Info("render: done", slog.Int("rendered", rep.Rendered), slog.Int("failed", rep.Failed))
	return rep
}

// Report combines the results of a parse and a render pass.
type Report struct {
	Parse  ParseReport
	Render RenderReport
}

// Build runs a parse and a render pass on a fresh store.
func (b *Builder) Build() (*store.Store, Report, error) {
	st := store.New()
	var rep Report
	var err error
	if rep.Parse, err = b.Parse(st); err != nil {
		return nil, rep, err
	}
	rep.Render = b.RenderAll(st)
	return st, rep, nil
}

// Persist writes the store snapshot and, when files is non-nil, the scanned
// file checksums.
func Persist(db index.Persister, st *store.Store, files []models.SourceFile) error {
	if err := db.SaveSnapshot(st.Snapshot()); err != nil {
		return err
	}
	if files == nil {
		return nil
	}
	return db.ReplaceFiles(files)
}

// Fingerprint maps each file path to its checksum.
func Fingerprint(files []models.SourceFile) map[string]string {
	out := make(map[string]string, len(files))
	for _, f := range files {
		out[f.Path] = f.Checksum
	}
	return out
}

// Changed reports whether two fingerprints differ.
func Changed(prev, next map[string]string) bool {
	return checksum.Tree(prev) != checksum.Tree(next)
}

// Stale reports whether the files under src no longer match the checksums
// recorded by the last persisted parse pass.
func Stale(db index.Persister, src storage.Provider) (bool, error) {
	prev, err := db.AllChecksums()
	if err != nil {
		return false, err
	}
	files, err := src.List("")
	if err != nil {
		return false, err
	}
	return Changed(prev, Fingerprint(files)), nil
}
