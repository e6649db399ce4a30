// Package metrics provides Prometheus metrics for the RAG core.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all Prometheus metrics for ingestion and retrieval.
type Metrics struct {
	DocumentsProcessed *prometheus.CounterVec
	IngestDuration     prometheus.Histogram
	ChunksStored       prometheus.Counter
	EmbeddingBatches   prometheus.Counter

	SearchesTotal  prometheus.Counter
	SearchDuration prometheus.Histogram
}

// New creates and registers all metrics with the given registerer.
func New(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)

	return &Metrics{
		DocumentsProcessed: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "rag_documents_processed_total",
				Help: "Total number of documents processed by ingestion, by final status",
			},
			[]string{"status"},
		),
		IngestDuration: factory.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "rag_ingest_duration_seconds",
				Help:    "Duration of document ingestion in seconds",
				Buckets: prometheus.DefBuckets,
			},
		),
		ChunksStored: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "rag_chunks_stored_total",
				Help: "Total number of chunks stored in the vector store",
			},
		),
		EmbeddingBatches: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "rag_embedding_batches_total",
				Help: "Total number of embedding batches sent to the provider",
			},
		),
		SearchesTotal: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "rag_searches_total",
				Help: "Total number of similarity searches",
			},
		),
		SearchDuration: factory.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "rag_search_duration_seconds",
				Help:    "Duration of similarity searches in seconds",
				Buckets: prometheus.DefBuckets,
			},
		),
	}
}

// NewUnregistered creates metrics backed by a private registry.
// Useful for tests and for components constructed without a server.
func NewUnregistered() *Metrics {
	return New(prometheus.NewRegistry())
}
