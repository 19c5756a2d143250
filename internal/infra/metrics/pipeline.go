package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

func init() {
	register(stageOutcomesTotal, stageDurationSeconds, videosFinishedTotal, engineFallbacksTotal)
}

var (
	stageOutcomesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "vidscribe_stage_outcomes_total",
			Help: "Pipeline stage outcomes by stage and result.",
		},
		[]string{"stage", "result"}, // result: 'ok', 'failed', 'skipped'
	)

	stageDurationSeconds = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "vidscribe_stage_duration_seconds",
			Help:    "Wall time spent per pipeline stage.",
			Buckets: []float64{0.5, 1, 5, 15, 30, 60, 120, 300, 600, 1200, 2400, 3600},
		},
		[]string{"stage"},
	)

	videosFinishedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "vidscribe_videos_finished_total",
			Help: "Videos that left the pipeline, labeled by final status.",
		},
		[]string{"status"}, // 'completed', 'failed'
	)

	engineFallbacksTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "vidscribe_engine_fallbacks_total",
			Help: "Transcription retries on the fallback engine after a hardware fault.",
		},
		[]string{"from", "to"},
	)
)

func ObserveStage(stage, result string, d time.Duration) {
	stageOutcomesTotal.WithLabelValues(norm(stage), norm(result)).Inc()
	if result != "skipped" {
		stageDurationSeconds.WithLabelValues(norm(stage)).Observe(d.Seconds())
	}
}

func IncVideoFinished(status string) {
	videosFinishedTotal.WithLabelValues(norm(status)).Inc()
}

func IncEngineFallback(from, to string) {
	engineFallbacksTotal.WithLabelValues(norm(from), norm(to)).Inc()
}
