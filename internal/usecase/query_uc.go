package usecase

import (
	"context"

	"github.com/rs/zerolog"

	"vidscribe/internal/domain/model"
	"vidscribe/internal/domain/ports/repository"
)

// Compile-time check
var _ QueryUseCase = (*queryUC)(nil)

// QueryUseCase is the read model. Job progress is derived from video rows.
type QueryUseCase interface {
	GetJob(ctx context.Context, id string) (*JobView, error)
	ListJobs(ctx context.Context, limit int) ([]*JobView, error)
	GetVideo(ctx context.Context, id string) (*model.Video, error)
	ListVideos(ctx context.Context, jobID string) ([]*model.Video, error)
	GetTranscript(ctx context.Context, videoID string) (*model.Transcript, error)
	QueueStats(ctx context.Context) (map[model.VideoStatus]int, error)
}

type JobView struct {
	Job    *model.Job
	Counts map[model.VideoStatus]int
}

func (v *JobView) Total() int {
	n := 0
	for _, c := range v.Counts {
		n += c
	}
	return n
}

// Done reports whether the job was expanded and every video reached a
// terminal state.
func (v *JobView) Done() bool {
	if v.Job.Status != model.JobStatusExpanded {
		return v.Job.Status == model.JobStatusFailed || v.Job.Status == model.JobStatusCompleted
	}
	total := v.Total()
	return total > 0 && v.Counts[model.VideoStatusCompleted]+v.Counts[model.VideoStatusFailed] == total
}

type queryUC struct {
	jobs        repository.JobRepository
	videos      repository.VideoRepository
	transcripts repository.TranscriptRepository

	log *zerolog.Logger
}

func NewQueryUseCase(jobs repository.JobRepository, videos repository.VideoRepository, transcripts repository.TranscriptRepository, logger *zerolog.Logger) *queryUC {
	return &queryUC{jobs: jobs, videos: videos, transcripts: transcripts, log: logger}
}

func (u *queryUC) view(ctx context.Context, j *model.Job) (*JobView, error) {
	counts, err := u.videos.CountByStatus(ctx, repository.NoTX, j.ID)
	if err != nil {
		return nil, err
	}
	return &JobView{Job: j, Counts: counts}, nil
}

func (u *queryUC) GetJob(ctx context.Context, id string) (*JobView, error) {
	j, err := u.jobs.FindByID(ctx, repository.NoTX, id)
	if err != nil {
		return nil, err
	}
	return u.view(ctx, j)
}

func (u *queryUC) ListJobs(ctx context.Context, limit int) ([]*JobView, error) {
	jobs, err := u.jobs.ListRecent(ctx, repository.NoTX, limit)
	if err != nil {
		return nil, err
	}
	out := make([]*JobView, 0, len(jobs))
	for _, j := range jobs {
		v, err := u.view(ctx, j)
		if err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return out, nil
}

func (u *queryUC) GetVideo(ctx context.Context, id string) (*model.Video, error) {
	return u.videos.FindByID(ctx, repository.NoTX, id)
}

func (u *queryUC) ListVideos(ctx context.Context, jobID string) ([]*model.Video, error) {
	return u.videos.ListByJob(ctx, repository.NoTX, jobID)
}

func (u *queryUC) GetTranscript(ctx context.Context, videoID string) (*model.Transcript, error) {
	return u.transcripts.FindByVideoID(ctx, repository.NoTX, videoID)
}

func (u *queryUC) QueueStats(ctx context.Context) (map[model.VideoStatus]int, error) {
	return u.videos.CountByStatus(ctx, repository.NoTX, "")
}
