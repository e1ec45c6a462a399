// Package metrics exposes build and serving counters for Prometheus.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Skip reasons for FilesSkipped.
const (
	ReasonLanguage = "language"
	ReasonParsing  = "parsing"
	ReasonRead     = "read"
)

// Build phases for BuildDuration.
const (
	PhaseParse  = "parse"
	PhaseRender = "render"
)

// Metrics holds all Anubis Prometheus metrics
type Metrics struct {
	FilesScanned  prometheus.Counter
	FilesSkipped  *prometheus.CounterVec
	BlocksParsed  prometheus.Counter
	Blocks        prometheus.Gauge
	Renders       *prometheus.CounterVec
	Rebuilds      prometheus.Counter
	PageRequests  *prometheus.CounterVec
	BuildDuration *prometheus.HistogramVec

	registry *prometheus.Registry
}

// New creates the metrics and registers them on a private registry.
func New() *Metrics {
	m := &Metrics{
		FilesScanned: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "anubis_files_scanned_total",
			Help: "Total number of source files scanned for blocks",
		}),
		FilesSkipped: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "anubis_files_skipped_total",
			Help: "Total number of source files skipped during a parse pass",
		}, []string{"reason"}),
		BlocksParsed: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "anubis_blocks_parsed_total",
			Help: "Total number of blocks extracted from source files",
		}),
		Blocks: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "anubis_blocks",
			Help: "Number of blocks in the current store",
		}),
		Renders: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "anubis_renders_total",
			Help: "Total number of block renders by result",
		}, []string{"result"}),
		Rebuilds: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "anubis_rebuilds_total",
			Help: "Total number of watch-triggered rebuilds",
		}),
		PageRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "anubis_page_requests_total",
			Help: "Total number of page requests by HTTP status",
		}, []string{"status"}),
		BuildDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "anubis_build_duration_seconds",
			Help:    "Duration of parse and render passes by phase",
			Buckets: prometheus.DefBuckets,
		}, []string{"phase"}),
		registry: prometheus.NewRegistry(),
	}
	m.registry.MustRegister(
		m.FilesScanned,
		m.FilesSkipped,
		m.BlocksParsed,
		m.Blocks,
		m.Renders,
		m.Rebuilds,
		m.PageRequests,
		m.BuildDuration,
	)
	return m
}

// Handler serves the registry in the Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// Registry returns the underlying registry.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}
