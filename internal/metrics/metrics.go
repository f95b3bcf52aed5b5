// Package metrics exposes the Prometheus collectors. Producing packages
// increment their own counters; the web server mounts Handler under
// /metrics.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	PathsIngested = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "ronald",
		Subsystem: "ingest",
		Name:      "paths_total",
		Help:      "Total paths accepted from the feeder link",
	}, []string{"source"})

	IngestFailures = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "ronald",
		Subsystem: "ingest",
		Name:      "failures_total",
		Help:      "Total rejected or broken path transfers by reason",
	}, []string{"reason"})

	LastPathPoints = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "ronald",
		Subsystem: "ingest",
		Name:      "last_path_points",
		Help:      "Points in the most recently accepted path",
	})

	LastPathDistanceMeters = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "ronald",
		Subsystem: "ingest",
		Name:      "last_path_distance_meters",
		Help:      "Great-circle length of the most recently accepted path",
	})

	FramesDrawn = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "ronald",
		Subsystem: "render",
		Name:      "frames_total",
		Help:      "Total full-screen redraws",
	})

	SegmentsDrawn = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "ronald",
		Subsystem: "render",
		Name:      "segments_total",
		Help:      "Total path segments drawn",
	})

	TilesBlitted = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "ronald",
		Subsystem: "render",
		Name:      "tiles_drawn_total",
		Help:      "Total map tiles blitted",
	})

	TilesMissing = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "ronald",
		Subsystem: "render",
		Name:      "tiles_missing_total",
		Help:      "Total tiles skipped because they are not on disk",
	})

	RedrawDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace: "ronald",
		Subsystem: "render",
		Name:      "redraw_duration_seconds",
		Help:      "Time to push one full redraw to the display link",
		Buckets:   []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1},
	})

	DatagramsSent = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "ronald",
		Subsystem: "display",
		Name:      "datagrams_total",
		Help:      "Total framed draw messages sent over the link",
	})

	SendErrors = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "ronald",
		Subsystem: "display",
		Name:      "send_errors_total",
		Help:      "Total failed datagram sends",
	})

	TileCacheHits = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "ronald",
		Subsystem: "tiles",
		Name:      "cache_hits_total",
		Help:      "Total tile reads served from memory",
	})

	TileCacheMisses = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "ronald",
		Subsystem: "tiles",
		Name:      "cache_misses_total",
		Help:      "Total tile reads that went to disk",
	})

	TileCacheEvictions = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "ronald",
		Subsystem: "tiles",
		Name:      "cache_evictions_total",
		Help:      "Total tiles dropped by LRU or TTL",
	})
)

// Handler serves the metrics endpoint.
func Handler() http.Handler { return promhttp.Handler() }
