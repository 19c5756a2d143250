package usecase

import (
	"context"

	"github.com/rs/zerolog"

	"vidscribe/internal/domain/model"
	"vidscribe/internal/domain/ports/repository"
	"vidscribe/internal/infra/logging"
)

// Compile-time check
var _ JobUseCase = (*jobUC)(nil)

type JobUseCase interface {
	// Submit records a pending job. Expansion happens asynchronously.
	Submit(ctx context.Context, kind model.JobKind, sourceURL string) (*model.Job, error)
}

type jobUC struct {
	jobs repository.JobRepository
	log  *zerolog.Logger
}

func NewJobUseCase(jobs repository.JobRepository, logger *zerolog.Logger) *jobUC {
	l := logger.With().Str("component", "JobUseCase").Logger()
	return &jobUC{jobs: jobs, log: &l}
}

func (u *jobUC) Submit(ctx context.Context, kind model.JobKind, sourceURL string) (*model.Job, error) {
	defer logging.TraceDuration(u.log, "JobUseCase.Submit")()
	job, err := model.NewJob("", kind, sourceURL)
	if err != nil {
		return nil, err
	}
	if err := u.jobs.Save(ctx, repository.NoTX, job); err != nil {
		return nil, err
	}
	u.log.Info().Str("job_id", job.ID).Str("kind", string(job.Kind)).Str("url", job.SourceURL).Msg("job submitted")
	return job, nil
}
