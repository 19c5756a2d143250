package repository

import (
	"context"

	"vidscribe/internal/domain/model"
)

type JobRepository interface {
	Save(ctx context.Context, tx Tx, job *model.Job) error
	FindByID(ctx context.Context, tx Tx, id string) (*model.Job, error)

	// LockByID reads the job with a row lock held until tx ends. It must run inside a tx.
	LockByID(ctx context.Context, tx Tx, id string) (*model.Job, error)

	// ListPending returns up to limit pending jobs, oldest first.
	ListPending(ctx context.Context, tx Tx, limit int) ([]*model.Job, error)
	ListRecent(ctx context.Context, tx Tx, limit int) ([]*model.Job, error)

	// UpdateStatus moves a job from one status to another and returns
	// domain.ErrInvalidTransition when the job is no longer in from.
	UpdateStatus(ctx context.Context, tx Tx, id string, from, to model.JobStatus, errMsg string) error
}
