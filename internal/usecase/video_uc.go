package usecase

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"

	"vidscribe/internal/domain"
	"vidscribe/internal/domain/ports/repository"
	"vidscribe/internal/infra/metrics"
)

// Compile-time check
var _ VideoUseCase = (*videoUC)(nil)

type VideoUseCase interface {
	// RetryFailed moves the given failed videos back to pending. Videos that
	// are not failed are left alone.
	RetryFailed(ctx context.Context, ids ...string) ([]repository.Requeued, error)
	// RetryJob retries up to limit failed videos of one job.
	RetryJob(ctx context.Context, jobID string, limit int) ([]repository.Requeued, error)
}

type videoUC struct {
	videos repository.VideoRepository
	log    *zerolog.Logger
}

func NewVideoUseCase(videos repository.VideoRepository, logger *zerolog.Logger) *videoUC {
	l := logger.With().Str("component", "VideoUseCase").Logger()
	return &videoUC{videos: videos, log: &l}
}

func (u *videoUC) RetryFailed(ctx context.Context, ids ...string) ([]repository.Requeued, error) {
	if len(ids) == 0 {
		return nil, fmt.Errorf("%w: no video ids", domain.ErrInvalidArgument)
	}
	out, err := u.videos.RetryFailed(ctx, ids)
	if err != nil {
		return nil, err
	}
	metrics.AddRequeued("retry", len(out))
	if skipped := len(ids) - len(out); skipped > 0 {
		u.log.Info().Int("requeued", len(out)).Int("skipped", skipped).Msg("some videos were not failed or are locked")
	}
	return out, nil
}

func (u *videoUC) RetryJob(ctx context.Context, jobID string, limit int) ([]repository.Requeued, error) {
	failed, err := u.videos.ListFailed(ctx, repository.NoTX, jobID, limit)
	if err != nil {
		return nil, err
	}
	if len(failed) == 0 {
		return nil, nil
	}
	ids := make([]string, 0, len(failed))
	for _, v := range failed {
		ids = append(ids, v.ID)
	}
	return u.RetryFailed(ctx, ids...)
}
