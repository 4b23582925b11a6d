package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// MessagesEnriched counts messages merged into the graph.
	MessagesEnriched = promauto.NewCounter(prometheus.CounterOpts{
		Name: "copilot_messages_enriched_total",
		Help: "Messages merged into the communication graph.",
	})

	// EnrichmentFailures counts enrichment attempts that reported at least
	// one failed substep.
	EnrichmentFailures = promauto.NewCounter(prometheus.CounterOpts{
		Name: "copilot_enrichment_failures_total",
		Help: "Enrichment runs with at least one failed substep.",
	})

	// ContextScores observes the distribution of computed context scores.
	ContextScores = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "copilot_context_score",
		Help:    "Context scores computed for candidate messages.",
		Buckets: prometheus.LinearBuckets(0, 0.1, 11),
	})

	// Questions counts analyst questions by answer mode.
	Questions = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "copilot_questions_total",
		Help: "Analyst questions answered, by mode.",
	}, []string{"mode"})

	// AgentHops observes how many hops streamed investigations used.
	AgentHops = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "copilot_agent_hops",
		Help:    "Hops consumed per streamed investigation.",
		Buckets: prometheus.LinearBuckets(1, 1, 8),
	})

	// CommunityRebuilds counts analytical-layer rebuild cycles.
	CommunityRebuilds = promauto.NewCounter(prometheus.CounterOpts{
		Name: "copilot_community_rebuilds_total",
		Help: "Analytical layer rebuild cycles.",
	})

	// CommunitiesDetected reports the community count of the latest rebuild.
	CommunitiesDetected = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "copilot_communities_detected",
		Help: "Communities detected in the latest rebuild.",
	})
)
