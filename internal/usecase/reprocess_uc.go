package usecase

import (
	"context"

	"github.com/rs/zerolog"

	"vidscribe/internal/domain/model"
	"vidscribe/internal/domain/ports/repository"
	"vidscribe/internal/infra/logging"
	"vidscribe/internal/infra/metrics"
)

// Compile-time check
var _ ReprocessUseCase = (*reprocessUC)(nil)

type ReprocessUseCase interface {
	// Candidates lists completed videos whose transcript the configured
	// model outranks, without changing them.
	Candidates(ctx context.Context) ([]repository.Requeued, error)
	// Requeue resets those videos to pending so the pipeline replaces their
	// transcript.
	Requeue(ctx context.Context) ([]repository.Requeued, error)
}

type reprocessUC struct {
	videos    repository.VideoRepository
	ranking   model.ModelRanking
	current   string
	batchSize int

	log *zerolog.Logger
}

func NewReprocessUseCase(videos repository.VideoRepository, ranking model.ModelRanking, current string, batchSize int, logger *zerolog.Logger) *reprocessUC {
	if batchSize <= 0 {
		batchSize = 50
	}
	l := logger.With().Str("component", "ReprocessPolicy").Logger()
	return &reprocessUC{videos: videos, ranking: ranking, current: current, batchSize: batchSize, log: &l}
}

// keep returns the models the current one does not outrank. A nil result
// means the current model is unranked and nothing qualifies.
func (u *reprocessUC) keep() []string {
	return u.ranking.AtLeast(u.current)
}

func (u *reprocessUC) Candidates(ctx context.Context) ([]repository.Requeued, error) {
	keep := u.keep()
	if keep == nil {
		u.log.Warn().Str("model", u.current).Msg("configured model is not ranked, nothing to reprocess")
		return nil, nil
	}
	return u.videos.ListReprocessCandidates(ctx, keep, u.batchSize)
}

func (u *reprocessUC) Requeue(ctx context.Context) ([]repository.Requeued, error) {
	defer logging.TraceDuration(u.log, "ReprocessPolicy.Requeue")()
	keep := u.keep()
	if keep == nil {
		u.log.Warn().Str("model", u.current).Msg("configured model is not ranked, nothing to reprocess")
		return nil, nil
	}
	out, err := u.videos.RequeueForReprocess(ctx, keep, u.batchSize)
	if err != nil {
		return nil, err
	}
	for _, r := range out {
		u.log.Info().Str("video_id", r.VideoID).Str("from_model", r.Model).Str("to_model", u.current).
			Msg("video requeued for reprocessing")
	}
	metrics.AddRequeued("reprocess", len(out))
	return out, nil
}
