// Package metrics provides Prometheus metrics for observability.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "call_transcription"

// Metrics holds all Prometheus metrics for the service.
type Metrics struct {
	// Call / stream metrics
	CallsTotal   prometheus.Counter
	CallsActive  prometheus.Gauge
	CallDuration prometheus.Histogram

	// Audio metrics
	FramesReceived     *prometheus.CounterVec
	AudioBytesReceived *prometheus.CounterVec
	PaddingBytes       *prometheus.CounterVec
	PaddingOverflows   *prometheus.CounterVec

	// Track metrics
	TrackFailures *prometheus.CounterVec

	// Transcript metrics
	ResultsFinal   prometheus.Counter
	ResultsInterim prometheus.Counter
	AnchorDrops    *prometheus.CounterVec
	ParseErrors    *prometheus.CounterVec

	// Persistence metrics
	RecordsPersisted  prometheus.Counter
	PersistenceErrors prometheus.Counter

	// Kafka publish metrics
	KafkaPublishTotal   *prometheus.CounterVec
	KafkaPublishErrors  *prometheus.CounterVec
	KafkaPublishLatency *prometheus.HistogramVec

	// Merge metrics
	MergeRuns    prometheus.Counter
	MergeEntries prometheus.Histogram
}

// Default is the global metrics instance.
var Default = NewMetrics()

// NewMetrics creates and registers all Prometheus metrics.
func NewMetrics() *Metrics {
	return &Metrics{
		CallsTotal: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "calls_total",
			Help:      "Total number of media-stream calls started",
		}),
		CallsActive: promauto.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "calls_active",
			Help:      "Number of currently active call sessions",
		}),
		CallDuration: promauto.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "call_duration_seconds",
			Help:      "Duration of completed calls in seconds",
			Buckets:   []float64{5, 15, 30, 60, 120, 300, 600, 1800, 3600},
		}),

		FramesReceived: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "frames_received_total",
			Help:      "Total audio frames received from the media source",
		}, []string{"track"}),
		AudioBytesReceived: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "audio_bytes_received_total",
			Help:      "Total audio payload bytes received",
		}, []string{"track"}),
		PaddingBytes: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "padding_bytes_total",
			Help:      "Total synthetic silence bytes injected for gaps",
		}, []string{"track"}),
		PaddingOverflows: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "padding_overflows_total",
			Help:      "Gaps whose silence fill exceeded the byte cap",
		}, []string{"track"}),

		TrackFailures: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "track_failures_total",
			Help:      "Tracks that entered the failed state",
		}, []string{"track"}),

		ResultsFinal: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "results_final_total",
			Help:      "Finalized recognizer results accumulated",
		}),
		ResultsInterim: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "results_interim_total",
			Help:      "Interim recognizer results received",
		}),
		AnchorDrops: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "anchor_drops_total",
			Help:      "Transcript events dropped before the track anchor was ready",
		}, []string{"track"}),
		ParseErrors: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "parse_errors_total",
			Help:      "Malformed inbound messages dropped",
		}, []string{"source"}),

		RecordsPersisted: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "records_persisted_total",
			Help:      "Call records written successfully",
		}),
		PersistenceErrors: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "persistence_errors_total",
			Help:      "Call record write failures (best-effort, not retried)",
		}),

		KafkaPublishTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "kafka_publish_total",
			Help:      "Total number of Kafka messages published",
		}, []string{"topic", "event_type"}),
		KafkaPublishErrors: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "kafka_publish_errors_total",
			Help:      "Total number of Kafka publish errors",
		}, []string{"topic", "event_type"}),
		KafkaPublishLatency: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "kafka_publish_latency_seconds",
			Help:      "Kafka publish latency in seconds",
			Buckets:   []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1},
		}, []string{"topic"}),

		MergeRuns: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "merge_runs_total",
			Help:      "Offline merge invocations",
		}),
		MergeEntries: promauto.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "merge_entries",
			Help:      "Segments emitted per merged transcript",
			Buckets:   []float64{1, 5, 10, 25, 50, 100, 250, 500, 1000},
		}),
	}
}

// RecordCallStart records a new call session starting.
func (m *Metrics) RecordCallStart() {
	m.CallsTotal.Inc()
	m.CallsActive.Inc()
}

// RecordCallEnd records a call session ending.
func (m *Metrics) RecordCallEnd(durationSeconds float64) {
	m.CallsActive.Dec()
	m.CallDuration.Observe(durationSeconds)
}

// RecordFrame records one received audio frame.
func (m *Metrics) RecordFrame(track string, bytes int) {
	m.FramesReceived.WithLabelValues(track).Inc()
	m.AudioBytesReceived.WithLabelValues(track).Add(float64(bytes))
}

// RecordPaddingBytes records injected silence bytes.
func (m *Metrics) RecordPaddingBytes(track string, bytes int) {
	m.PaddingBytes.WithLabelValues(track).Add(float64(bytes))
}

// RecordPaddingOverflow records a skipped over-cap silence fill.
func (m *Metrics) RecordPaddingOverflow(track string) {
	m.PaddingOverflows.WithLabelValues(track).Inc()
}

// RecordTrackFailure records a track entering the failed state.
func (m *Metrics) RecordTrackFailure(track string) {
	m.TrackFailures.WithLabelValues(track).Inc()
}

// RecordResult records a decoded recognizer result.
func (m *Metrics) RecordResult(isFinal bool) {
	if isFinal {
		m.ResultsFinal.Inc()
	} else {
		m.ResultsInterim.Inc()
	}
}

// RecordAnchorDrop records a transcript event dropped before anchor
// establishment.
func (m *Metrics) RecordAnchorDrop(track string) {
	m.AnchorDrops.WithLabelValues(track).Inc()
}

// RecordParseError records a dropped malformed message.
func (m *Metrics) RecordParseError(source string) {
	m.ParseErrors.WithLabelValues(source).Inc()
}

// RecordPersist records a call record write attempt.
func (m *Metrics) RecordPersist(err error) {
	if err != nil {
		m.PersistenceErrors.Inc()
		return
	}
	m.RecordsPersisted.Inc()
}

// RecordKafkaPublish records a Kafka publish attempt.
func (m *Metrics) RecordKafkaPublish(topic, eventType string, err error, latencySeconds float64) {
	m.KafkaPublishTotal.WithLabelValues(topic, eventType).Inc()
	m.KafkaPublishLatency.WithLabelValues(topic).Observe(latencySeconds)
	if err != nil {
		m.KafkaPublishErrors.WithLabelValues(topic, eventType).Inc()
	}
}

// RecordMerge records one offline merge run.
func (m *Metrics) RecordMerge(entries int) {
	m.MergeRuns.Inc()
	m.MergeEntries.Observe(float64(entries))
}
