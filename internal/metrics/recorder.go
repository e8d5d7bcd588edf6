// Package metrics records pipeline counters and durations through Prometheus.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

// Recorder exposes the pipeline's metric recording operations.
type Recorder interface {
	// RecordChunk records one finished ingestion chunk per source.
	RecordChunk(source, status string, duration time.Duration)
	// RecordUpsert records records written and replaced for one table.
	RecordUpsert(table string, written, replaced int64)
	// RecordGaps records missing hours detected for one table and entity.
	RecordGaps(table, entity string, missing int)
	// RecordExport records one panel export with its row count and duration.
	RecordExport(status string, rows int, duration time.Duration)
	// Registry returns the underlying registry for exposition or test scraping.
	Registry() *prometheus.Registry
}

// PrometheusRecorder is the Prometheus implementation of Recorder.
type PrometheusRecorder struct {
	registry *prometheus.Registry

	chunkDurationSeconds *prometheus.HistogramVec
	chunkStatusCounter   *prometheus.CounterVec

	recordsWritten     *prometheus.CounterVec
	duplicatesReplaced *prometheus.CounterVec
	gapsDetected       *prometheus.CounterVec

	exportDurationSeconds *prometheus.HistogramVec
	exportRows            *prometheus.CounterVec
}

// NewPrometheusRecorder creates a new instance of PrometheusRecorder.
func NewPrometheusRecorder() Recorder {
	registry := prometheus.NewRegistry()

	// Register Go standard metrics and process/OS metrics.
	registry.MustRegister(collectors.NewGoCollector())
	registry.MustRegister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	r := &PrometheusRecorder{
		registry: registry,
		chunkDurationSeconds: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "mibel_chunk_duration_seconds",
			Help:    "Duration of ingestion chunk executions.",
			Buckets: prometheus.DefBuckets,
		}, []string{"source", "status"}),
		chunkStatusCounter: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "mibel_chunk_status_total",
			Help: "Total number of ingestion chunks by source and status.",
		}, []string{"source", "status"}),
		recordsWritten: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "mibel_records_written_total",
			Help: "Total records upserted into the canonical store by table.",
		}, []string{"table"}),
		duplicatesReplaced: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "mibel_duplicates_replaced_total",
			Help: "Total records that replaced an existing key on upsert by table.",
		}, []string{"table"}),
		gapsDetected: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "mibel_gaps_detected_total",
			Help: "Total missing hours detected against the reference hour index.",
		}, []string{"table", "entity"}),
		exportDurationSeconds: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "mibel_export_duration_seconds",
			Help:    "Duration of panel artifact exports.",
			Buckets: prometheus.DefBuckets,
		}, []string{"status"}),
		exportRows: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "mibel_export_rows_total",
			Help: "Total panel rows exported.",
		}, []string{"status"}),
	}

	registry.MustRegister(
		r.chunkDurationSeconds,
		r.chunkStatusCounter,
		r.recordsWritten,
		r.duplicatesReplaced,
		r.gapsDetected,
		r.exportDurationSeconds,
		r.exportRows,
	)
	return r
}

// RecordChunk implements Recorder.
func (r *PrometheusRecorder) RecordChunk(source, status string, duration time.Duration) {
	r.chunkStatusCounter.WithLabelValues(source, status).Inc()
	r.chunkDurationSeconds.WithLabelValues(source, status).Observe(duration.Seconds())
}

// RecordUpsert implements Recorder.
func (r *PrometheusRecorder) RecordUpsert(table string, written, replaced int64) {
	r.recordsWritten.WithLabelValues(table).Add(float64(written))
	if replaced > 0 {
		r.duplicatesReplaced.WithLabelValues(table).Add(float64(replaced))
	}
}

// RecordGaps implements Recorder.
func (r *PrometheusRecorder) RecordGaps(table, entity string, missing int) {
	if missing > 0 {
		r.gapsDetected.WithLabelValues(table, entity).Add(float64(missing))
	}
}

// RecordExport implements Recorder.
func (r *PrometheusRecorder) RecordExport(status string, rows int, duration time.Duration) {
	r.exportRows.WithLabelValues(status).Add(float64(rows))
	r.exportDurationSeconds.WithLabelValues(status).Observe(duration.Seconds())
}

// Registry implements Recorder.
func (r *PrometheusRecorder) Registry() *prometheus.Registry {
	return r.registry
}
