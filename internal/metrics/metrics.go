// Package metrics exposes Prometheus counters/histograms for a pipeline
// run behind a sync.Once-guarded registration singleton.
package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

type Pipeline struct {
	once sync.Once

	FilesProcessed prometheus.Counter
	FilesCached    prometheus.Counter
	FilesSkipped   prometheus.Counter
	ParseErrors    prometheus.Counter

	ParseDuration    prometheus.Histogram
	PipelineDuration prometheus.Histogram
}

var P Pipeline

func (m *Pipeline) Init() {
	m.once.Do(func() {
		m.FilesProcessed = prometheus.NewCounter(prometheus.CounterOpts{
			Name: "crateindex_files_processed_total", Help: "Files processed in the most recent run.",
		})
		m.FilesCached = prometheus.NewCounter(prometheus.CounterOpts{
			Name: "crateindex_files_cache_hit_total", Help: "Files served from cache without re-parsing.",
		})
		m.FilesSkipped = prometheus.NewCounter(prometheus.CounterOpts{
			Name: "crateindex_files_skipped_total", Help: "Files skipped (too large, binary, or unreadable).",
		})
		m.ParseErrors = prometheus.NewCounter(prometheus.CounterOpts{
			Name: "crateindex_parse_errors_total", Help: "Files that failed or timed out during parsing.",
		})

		buckets := []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5}
		m.ParseDuration = prometheus.NewHistogram(prometheus.HistogramOpts{
			Name: "crateindex_parse_seconds", Help: "Per-file parse duration.", Buckets: buckets,
		})
		m.PipelineDuration = prometheus.NewHistogram(prometheus.HistogramOpts{
			Name: "crateindex_pipeline_seconds", Help: "Full pipeline run duration.", Buckets: []float64{0.05, 0.1, 0.5, 1, 5, 10, 30, 60, 300},
		})

		prometheus.MustRegister(
			m.FilesProcessed, m.FilesCached, m.FilesSkipped, m.ParseErrors,
			m.ParseDuration, m.PipelineDuration,
		)
	})
}
