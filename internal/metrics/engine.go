package metrics

import "github.com/prometheus/client_golang/prometheus"

// Engine Prometheus metrics: extraction, retrieval, and speech synthesis.
var (
	ExtractionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "docengine",
			Name:      "extractions_total",
			Help:      "Document extractions by method and outcome",
		},
		[]string{"method", "status"}, // method: primary/fallback, status: success/failed
	)

	DocumentsIndexedTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "docengine",
			Name:      "documents_indexed_total",
			Help:      "Multi-page documents indexed into the user collection",
		},
	)

	ChunksIndexedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "docengine",
			Name:      "chunks_indexed_total",
			Help:      "Chunks embedded and stored, by collection",
		},
		[]string{"collection"},
	)

	QueriesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "docengine",
			Name:      "queries_total",
			Help:      "Retrieval-augmented queries by evidence path",
		},
		[]string{"path"}, // "local" / "web" / "failed"
	)

	QueryDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "docengine",
			Name:      "query_duration_seconds",
			Help:      "End-to-end query duration in seconds",
			Buckets:   []float64{0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
		},
	)

	SynthesisCacheTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "docengine",
			Name:      "synthesis_cache_total",
			Help:      "Audio cache hits and misses",
		},
		[]string{"result"}, // "hit" / "miss" / "shared"
	)

	SynthesisDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "docengine",
			Name:      "synthesis_duration_seconds",
			Help:      "Upstream speech synthesis duration in seconds",
			Buckets:   []float64{0.25, 0.5, 1, 2.5, 5, 10, 30},
		},
	)
)

var engineMetricsRegistered bool

// RegisterEngineMetrics registers engine metrics. Must be called once from main.
func RegisterEngineMetrics() {
	if engineMetricsRegistered {
		return
	}
	prometheus.MustRegister(ExtractionsTotal)
	prometheus.MustRegister(DocumentsIndexedTotal)
	prometheus.MustRegister(ChunksIndexedTotal)
	prometheus.MustRegister(QueriesTotal)
	prometheus.MustRegister(QueryDuration)
	prometheus.MustRegister(SynthesisCacheTotal)
	prometheus.MustRegister(SynthesisDuration)
	engineMetricsRegistered = true
}
