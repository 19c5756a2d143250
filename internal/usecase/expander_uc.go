package usecase

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v4"
	"github.com/rs/zerolog"

	"vidscribe/internal/domain"
	"vidscribe/internal/domain/model"
	"vidscribe/internal/domain/ports/adapter"
	"vidscribe/internal/domain/ports/repository"
	"vidscribe/internal/infra/logging"
	"vidscribe/internal/infra/metrics"
)

// Compile-time check
var _ ExpanderUseCase = (*expanderUC)(nil)

type ExpanderUseCase interface {
	// Expand turns a pending job into its video rows. Running it again for a
	// job that is no longer pending is a no-op.
	Expand(ctx context.Context, jobID string) (*ExpandResult, error)
	// ExpandPending expands up to limit pending jobs, oldest first, and
	// returns how many were expanded.
	ExpandPending(ctx context.Context, limit int) (int, error)
}

type ExpandResult struct {
	Job      *model.Job
	Created  int
	Existing int
	// Skipped is set when the job was not pending.
	Skipped bool
}

type expanderUC struct {
	jobs      repository.JobRepository
	videos    repository.VideoRepository
	events    repository.OutboxRepository
	tm        repository.TransactionManager
	extractor adapter.Extractor
	notifier  adapter.Notifier

	log *zerolog.Logger
}

func NewExpanderUseCase(
	jobs repository.JobRepository,
	videos repository.VideoRepository,
	events repository.OutboxRepository,
	tm repository.TransactionManager,
	extractor adapter.Extractor,
	notifier adapter.Notifier,
	logger *zerolog.Logger,
) *expanderUC {
	l := logger.With().Str("component", "JobExpander").Logger()
	return &expanderUC{jobs: jobs, videos: videos, events: events, tm: tm, extractor: extractor, notifier: notifier, log: &l}
}

func (u *expanderUC) Expand(ctx context.Context, jobID string) (*ExpandResult, error) {
	ctx = logging.WithJobID(ctx, jobID)
	log := logging.With(ctx, u.log)
	defer logging.TraceDuration(log, "JobExpander.Expand")()

	job, err := u.jobs.FindByID(ctx, repository.NoTX, jobID)
	if err != nil {
		return nil, err
	}
	if job.Status != model.JobStatusPending {
		metrics.IncJobExpansion("skipped")
		return &ExpandResult{Job: job, Skipped: true}, nil
	}

	// Metadata is resolved outside the transaction; the row lock is only
	// held while rows are written.
	items, err := u.resolve(ctx, job)
	if err != nil {
		metrics.IncJobExpansion("failed")
		if ferr := u.failJob(ctx, log, job, err); ferr != nil {
			return nil, errors.Join(err, ferr)
		}
		return &ExpandResult{Job: job}, err
	}

	res := &ExpandResult{Job: job}
	err = u.tm.WithTx(ctx, pgx.TxOptions{}, func(ctx context.Context, tx repository.Tx) error {
		locked, err := u.jobs.LockByID(ctx, tx, job.ID)
		if err != nil {
			return err
		}
		if locked.Status != model.JobStatusPending {
			res.Job, res.Skipped = locked, true
			return nil
		}

		existing, err := u.videos.ListByJob(ctx, tx, job.ID)
		if err != nil {
			return err
		}
		seen := make(map[string]bool, len(existing))
		for _, v := range existing {
			seen[v.SourceID] = true
		}

		now := time.Now().UTC()
		for i, item := range items {
			if seen[item.ID] {
				res.Existing++
				continue
			}
			v := &model.Video{
				ID:              uuid.NewString(),
				JobID:           job.ID,
				SourceID:        item.ID,
				Index:           i,
				Title:           item.Title,
				DurationSeconds: item.DurationSeconds,
				Status:          model.VideoStatusPending,
				CreatedAt:       now,
				UpdatedAt:       now,
			}
			created, err := u.videos.Insert(ctx, tx, v)
			if err != nil {
				return fmt.Errorf("insert video %s: %w", item.ID, err)
			}
			if created {
				res.Created++
			} else {
				res.Existing++
			}
		}

		if err := u.jobs.UpdateStatus(ctx, tx, job.ID, model.JobStatusPending, model.JobStatusExpanded, ""); err != nil {
			return err
		}
		ev := model.NewJobExpandedEvent(job, len(items))
		return u.events.Add(ctx, tx, &ev)
	})
	if err != nil {
		metrics.IncJobExpansion("error")
		return nil, err
	}
	if res.Skipped {
		metrics.IncJobExpansion("skipped")
		log.Debug().Str("status", string(res.Job.Status)).Msg("job already handled by another expander")
		return res, nil
	}

	job.Status = model.JobStatusExpanded
	metrics.IncJobExpansion("expanded")
	metrics.AddVideosCreated(res.Created)
	log.Info().Int("created", res.Created).Int("existing", res.Existing).Msg("job expanded")
	return res, nil
}

// resolve returns the ordered, de-duplicated items a job expands into.
func (u *expanderUC) resolve(ctx context.Context, job *model.Job) ([]model.SourceItem, error) {
	info, err := u.extractor.Resolve(ctx, job.SourceURL)
	if err != nil {
		if errors.Is(err, domain.ErrExtraction) {
			return nil, err
		}
		return nil, domain.NewStageError(domain.ErrExtraction, "expand", "resolve", job.SourceURL, err)
	}
	if info == nil {
		return nil, domain.NewStageError(domain.ErrExtraction, "expand", "resolve", "no metadata for "+job.SourceURL, nil)
	}

	switch job.Kind {
	case model.JobKindSingle:
		if len(info.Children) > 0 {
			return nil, domain.NewStageError(domain.ErrExtraction, "expand", "resolve",
				fmt.Sprintf("source lists %d videos, submit it as a channel job", len(info.Children)), nil)
		}
		if strings.TrimSpace(info.ID) == "" {
			return nil, domain.NewStageError(domain.ErrExtraction, "expand", "resolve", "source has no video id", nil)
		}
		return []model.SourceItem{info.SourceItem}, nil
	default:
		items := make([]model.SourceItem, 0, len(info.Children))
		seen := make(map[string]bool, len(info.Children))
		for _, c := range info.Children {
			if c.ID == "" || seen[c.ID] {
				continue
			}
			seen[c.ID] = true
			items = append(items, c)
		}
		if len(items) == 0 {
			return nil, domain.NewStageError(domain.ErrExtraction, "expand", "resolve", "source lists no videos", nil)
		}
		return items, nil
	}
}

// failJob marks the job failed and records the event. No video rows are created.
func (u *expanderUC) failJob(ctx context.Context, log *zerolog.Logger, job *model.Job, cause error) error {
	msg := cause.Error()
	failed := false
	err := u.tm.WithTx(ctx, pgx.TxOptions{}, func(ctx context.Context, tx repository.Tx) error {
		locked, err := u.jobs.LockByID(ctx, tx, job.ID)
		if err != nil {
			return err
		}
		if locked.Status != model.JobStatusPending {
			return nil
		}
		if err := u.jobs.UpdateStatus(ctx, tx, job.ID, model.JobStatusPending, model.JobStatusFailed, msg); err != nil {
			return err
		}
		ev := model.NewJobFailedEvent(job, msg)
		failed = true
		return u.events.Add(ctx, tx, &ev)
	})
	if err != nil {
		log.Error().Err(err).AnErr("cause", cause).Msg("could not record job failure")
		return err
	}
	if !failed {
		return nil
	}
	job.Status = model.JobStatusFailed
	job.ErrorMessage = msg
	log.Error().Err(cause).Msg("job expansion failed")
	if u.notifier != nil {
		text := fmt.Sprintf("Job %s (%s) failed to expand: %s", job.ID, job.SourceURL, msg)
		if nErr := u.notifier.Notify(ctx, text); nErr != nil {
			log.Warn().Err(nErr).Msg("failure notification not sent")
		}
	}
	return nil
}

func (u *expanderUC) ExpandPending(ctx context.Context, limit int) (int, error) {
	jobs, err := u.jobs.ListPending(ctx, repository.NoTX, limit)
	if err != nil {
		return 0, err
	}
	expanded := 0
	for _, j := range jobs {
		if err := ctx.Err(); err != nil {
			return expanded, err
		}
		res, err := u.Expand(ctx, j.ID)
		if err != nil {
			if !errors.Is(err, domain.ErrExtraction) {
				u.log.Error().Err(err).Str("job_id", j.ID).Msg("expansion error")
			}
			continue
		}
		if !res.Skipped {
			expanded++
		}
	}
	return expanded, nil
}
