package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

const (
	namespace          = "simproj"
	embeddingSubsystem = "embedding"
)

func embeddingOpts(name, help string) prometheus.Opts {
	return prometheus.Opts{Namespace: namespace, Subsystem: embeddingSubsystem, Name: name, Help: help}
}

// Embedding provider metrics. The openai transport owns calls, latency,
// tokens and errors. The budget tracker owns the remaining-tokens gauge and
// the cache decorator owns hit/miss counts.
var (
	// EmbeddingRequestsTotal counts upstream calls by "success" / "error".
	EmbeddingRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts(embeddingOpts("requests_total", "Upstream embedding calls by outcome")),
		[]string{"provider", "model", "status"},
	)

	// EmbeddingRequestDuration observes successful upstream calls only.
	EmbeddingRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: embeddingSubsystem,
			Name:      "request_duration_seconds",
			Help:      "Latency of successful upstream embedding calls",
			Buckets:   prometheus.ExponentialBuckets(0.025, 2, 10),
		},
		[]string{"provider", "model"},
	)

	// EmbeddingTokensTotal splits usage into "prompt" and "total".
	EmbeddingTokensTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts(embeddingOpts("tokens_total", "Tokens billed by the provider")),
		[]string{"provider", "model", "type"},
	)

	EmbeddingErrorsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts(embeddingOpts("errors_total", "Failed or malformed upstream replies by kind")),
		[]string{"provider", "model", "error_type"},
	)

	// EmbeddingBudgetTokensRemaining is set per "daily" / "monthly" window.
	EmbeddingBudgetTokensRemaining = prometheus.NewGaugeVec(
		prometheus.GaugeOpts(embeddingOpts("budget_tokens_remaining", "Tokens left in the current budget window")),
		[]string{"provider", "period"},
	)

	// EmbeddingCacheTotal counts cache lookups by "hit" / "miss".
	EmbeddingCacheTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts(embeddingOpts("cache_total", "Embedding cache lookups by result")),
		[]string{"result"},
	)
)

var registerEmbedding sync.Once

// RegisterEmbeddingMetrics registers the embedding collectors once on the
// default registry.
func RegisterEmbeddingMetrics() {
	registerEmbedding.Do(func() {
		prometheus.MustRegister(
			EmbeddingRequestsTotal,
			EmbeddingRequestDuration,
			EmbeddingTokensTotal,
			EmbeddingErrorsTotal,
			EmbeddingBudgetTokensRemaining,
			EmbeddingCacheTotal,
		)
	})
}
