package metrics

import "github.com/prometheus/client_golang/prometheus"

// Ingestion and query Prometheus metrics.
var (
	IngestChunksTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "docembed",
			Name:      "ingest_chunks_total",
			Help:      "Chunks produced by the splitter",
		},
		[]string{"index"},
	)

	IngestBatchesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "docembed",
			Name:      "ingest_batches_total",
			Help:      "Upsert batches by outcome",
		},
		[]string{"index", "status"}, // ok / error / skipped
	)

	IngestBatchDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "docembed",
			Name:      "ingest_batch_duration_seconds",
			Help:      "Time to embed and upsert one batch",
			Buckets:   []float64{0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60},
		},
		[]string{"index"},
	)

	QueryRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "docembed",
			Name:      "query_requests_total",
			Help:      "Similarity queries by outcome",
		},
		[]string{"index", "result"}, // match / fallback / error
	)
)

var pipelineMetricsRegistered bool

// RegisterPipelineMetrics registers ingestion and query metrics. Must be called once from main.
func RegisterPipelineMetrics() {
	if pipelineMetricsRegistered {
		return
	}
	prometheus.MustRegister(IngestChunksTotal)
	prometheus.MustRegister(IngestBatchesTotal)
	prometheus.MustRegister(IngestBatchDuration)
	prometheus.MustRegister(QueryRequestsTotal)
	pipelineMetricsRegistered = true
}
