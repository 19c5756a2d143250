package usecase

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"vidscribe/internal/domain/ports/repository"
	"vidscribe/internal/infra/logging"
	"vidscribe/internal/infra/metrics"
)

// Compile-time check
var _ RescueUseCase = (*rescueUC)(nil)

type RescueUseCase interface {
	// Sweep resets videos held in an in-flight state for longer than the
	// stall threshold back to pending.
	Sweep(ctx context.Context) ([]repository.Requeued, error)
}

type rescueUC struct {
	videos         repository.VideoRepository
	stallThreshold time.Duration
	batchSize      int
	now            func() time.Time

	log *zerolog.Logger
}

func NewRescueUseCase(videos repository.VideoRepository, stallThreshold time.Duration, batchSize int, logger *zerolog.Logger) *rescueUC {
	if batchSize <= 0 {
		batchSize = 100
	}
	l := logger.With().Str("component", "RescueMonitor").Logger()
	return &rescueUC{videos: videos, stallThreshold: stallThreshold, batchSize: batchSize, now: time.Now, log: &l}
}

// maxSweepBatches bounds one sweep; what is left waits for the next tick.
const maxSweepBatches = 20

func (u *rescueUC) Sweep(ctx context.Context) ([]repository.Requeued, error) {
	defer logging.TraceDuration(u.log, "RescueMonitor.Sweep")()
	cutoff := u.now().Add(-u.stallThreshold)

	var all []repository.Requeued
	for i := 0; i < maxSweepBatches; i++ {
		batch, err := u.videos.RequeueStalled(ctx, cutoff, u.batchSize)
		if err != nil {
			return all, err
		}
		for _, r := range batch {
			u.log.Warn().Str("video_id", r.VideoID).Str("job_id", r.JobID).
				Str("stuck_in", string(r.PreviousStatus)).Msg("stalled video reset to pending")
		}
		all = append(all, batch...)
		if len(batch) < u.batchSize {
			break
		}
	}
	metrics.AddRequeued("rescue", len(all))
	if len(all) > 0 {
		u.log.Info().Int("count", len(all)).Dur("stall_threshold", u.stallThreshold).Msg("rescue sweep requeued videos")
	}
	return all, nil
}
