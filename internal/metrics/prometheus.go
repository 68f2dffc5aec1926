package metrics

import (
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	QueryTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "askdata_query_total",
			Help: "Questions answered, labeled by which pipeline stage produced the result",
		},
		[]string{"outcome"},
	)

	QueryDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "askdata_query_duration_seconds",
			Help:    "End-to-end question answering duration in seconds",
			Buckets: []float64{0.05, 0.1, 0.5, 1, 2, 5, 10, 30},
		},
		[]string{"endpoint"},
	)

	RepairAttempts = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "askdata_repair_attempts",
			Help:    "Repair attempts consumed before a generative candidate executed",
			Buckets: []float64{0, 1, 2, 3},
		},
	)

	LLMTokensUsed = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "askdata_llm_tokens_used",
			Help: "Total LLM tokens used",
		},
		[]string{"model", "type"},
	)

	CacheHits = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "askdata_cache_hits_total",
			Help: "Total cache hits",
		},
		[]string{"cache_type"},
	)

	CacheMisses = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "askdata_cache_misses_total",
			Help: "Total cache misses",
		},
		[]string{"cache_type"},
	)

	DatasetsProcessed = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "askdata_datasets_processed_total",
			Help: "Total dataset uploads processed",
		},
	)

	DatasetRows = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "askdata_dataset_rows",
			Help: "Row count of the currently loaded dataset",
		},
	)
)

func Init() {
	prometheus.MustRegister(QueryTotal)
	prometheus.MustRegister(QueryDuration)
	prometheus.MustRegister(RepairAttempts)
	prometheus.MustRegister(LLMTokensUsed)
	prometheus.MustRegister(CacheHits)
	prometheus.MustRegister(CacheMisses)
	prometheus.MustRegister(DatasetsProcessed)
	prometheus.MustRegister(DatasetRows)
}

func MetricsHandler() fiber.Handler {
	return adaptor.HTTPHandler(promhttp.Handler())
}
