package metrics

import "github.com/prometheus/client_golang/prometheus"

func init() {
	register(videosClaimedTotal, claimErrorsTotal, videosRequeuedTotal, jobsExpandedTotal, videosCreatedTotal)
}

var (
	videosClaimedTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "vidscribe_videos_claimed_total",
			Help: "Videos claimed by worker loops.",
		},
	)

	claimErrorsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "vidscribe_claim_errors_total",
			Help: "Claim attempts that failed with a store error.",
		},
	)

	videosRequeuedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "vidscribe_videos_requeued_total",
			Help: "Videos reset to pending, labeled by reason.",
		},
		[]string{"reason"}, // 'rescue', 'reprocess', 'retry'
	)

	jobsExpandedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "vidscribe_jobs_expanded_total",
			Help: "Job expansions by result.",
		},
		[]string{"result"}, // 'expanded', 'failed', 'noop'
	)

	videosCreatedTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "vidscribe_videos_created_total",
			Help: "Video rows created by job expansion.",
		},
	)
)

func IncClaimed()    { videosClaimedTotal.Inc() }
func IncClaimError() { claimErrorsTotal.Inc() }

func AddRequeued(reason string, n int) {
	if n > 0 {
		videosRequeuedTotal.WithLabelValues(norm(reason)).Add(float64(n))
	}
}

func IncJobExpansion(result string) {
	jobsExpandedTotal.WithLabelValues(norm(result)).Inc()
}

func AddVideosCreated(n int) {
	if n > 0 {
		videosCreatedTotal.Add(float64(n))
	}
}
