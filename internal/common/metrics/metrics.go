// internal/common/metrics/metrics.go
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	SearchTierUsed = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "retrieval_search_tier_total",
			Help: "Total number of retrievals resolved per search tier",
		},
		[]string{"method"},
	)

	SearchTierFailures = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "retrieval_tier_failures_total",
			Help: "Total number of swallowed search tier failures",
		},
		[]string{"tier"},
	)

	SuggestionsCreated = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "suggestions_created_total",
			Help: "Total number of agent suggestions created",
		},
		[]string{"category", "auto_closed"},
	)

	EscalationsFired = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "escalations_fired_total",
			Help: "Total number of escalation rules fired",
		},
		[]string{"rule"},
	)

	SweepDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name: "escalation_sweep_duration_seconds",
			Help: "Duration of the periodic escalation sweep",
		},
	)

	EmbeddingUpserts = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "embedding_upserts_total",
			Help: "Total number of article embedding upserts",
		},
		[]string{"result"},
	)
)
