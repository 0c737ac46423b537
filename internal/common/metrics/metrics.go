// internal/common/metrics/metrics.go
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	CampaignCacheHits = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "campaign_cache_hits_total",
			Help: "Campaign cache reads served without a fetch",
		},
		[]string{"state"}, // fresh | stale
	)

	CampaignCacheMisses = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "campaign_cache_misses_total",
			Help: "Campaign cache reads that required a fetch",
		},
	)

	CampaignCacheInvalidations = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "campaign_cache_invalidations_total",
			Help: "Explicit campaign cache invalidations from admin mutations",
		},
	)

	CampaignFetchDeduplicated = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "campaign_fetch_deduplicated_total",
			Help: "Concurrent cache-miss fetches collapsed into one in-flight request",
		},
	)

	AssessmentResets = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "assessment_resets_total",
			Help: "Assessment sessions reset after a decision-tree dead end",
		},
		[]string{"reason"}, // dead_end | revalidation
	)

	AssessmentSubmissions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "assessment_submissions_total",
			Help: "Assessment scoring submissions",
		},
		[]string{"status"}, // ok | error
	)

	PipelineStageDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name: "refinement_stage_duration_seconds",
			Help: "Duration of each refinement pipeline stage",
		},
		[]string{"stage"},
	)

	PipelineRuns = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "refinement_runs_total",
			Help: "Refinement pipeline runs",
		},
		[]string{"status"}, // ok | error
	)
)
