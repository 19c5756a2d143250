package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/pgxpool"

	"vidscribe/internal/domain"
	"vidscribe/internal/domain/model"
	"vidscribe/internal/domain/ports/repository"
)

var _ repository.JobRepository = (*jobRepo)(nil)

type jobRepo struct {
	pool *pgxpool.Pool
}

func NewJobRepo(pool *pgxpool.Pool) *jobRepo {
	return &jobRepo{pool: pool}
}

const jobColumns = `id, kind, source_url, status, error_message, created_at, updated_at, expanded_at`

func scanJob(row pgx.Row) (*model.Job, error) {
	var j model.Job
	var kind, status string
	if err := row.Scan(&j.ID, &kind, &j.SourceURL, &status, &j.ErrorMessage, &j.CreatedAt, &j.UpdatedAt, &j.ExpandedAt); err != nil {
		return nil, scanErr(err)
	}
	j.Kind = model.JobKind(kind)
	j.Status = model.JobStatus(status)
	return &j, nil
}

func (r *jobRepo) Save(ctx context.Context, tx repository.Tx, job *model.Job) error {
	job.UpdatedAt = time.Now().UTC()
	if job.CreatedAt.IsZero() {
		job.CreatedAt = job.UpdatedAt
	}
	const q = `
INSERT INTO jobs (id, kind, source_url, status, error_message, created_at, updated_at, expanded_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
ON CONFLICT (id) DO UPDATE SET
  status = EXCLUDED.status,
  error_message = EXCLUDED.error_message,
  updated_at = EXCLUDED.updated_at,
  expanded_at = EXCLUDED.expanded_at;`
	_, err := execSQL(ctx, r.pool, tx, q,
		job.ID, string(job.Kind), job.SourceURL, string(job.Status), job.ErrorMessage, job.CreatedAt, job.UpdatedAt, job.ExpandedAt)
	if err != nil {
		return fmt.Errorf("save job: %w", err)
	}
	return nil
}

func (r *jobRepo) FindByID(ctx context.Context, tx repository.Tx, id string) (*model.Job, error) {
	row, err := pickRow(ctx, r.pool, tx, `SELECT `+jobColumns+` FROM jobs WHERE id = $1;`, id)
	if err != nil {
		return nil, err
	}
	return scanJob(row)
}

func (r *jobRepo) LockByID(ctx context.Context, tx repository.Tx, id string) (*model.Job, error) {
	ptx, err := requireTx(tx)
	if err != nil {
		return nil, err
	}
	return scanJob(ptx.QueryRow(ctx, `SELECT `+jobColumns+` FROM jobs WHERE id = $1 FOR UPDATE;`, id))
}

func (r *jobRepo) ListPending(ctx context.Context, tx repository.Tx, limit int) ([]*model.Job, error) {
	const q = `SELECT ` + jobColumns + ` FROM jobs WHERE status = 'pending' ORDER BY created_at, id LIMIT $1;`
	return r.list(ctx, tx, q, limit)
}

func (r *jobRepo) ListRecent(ctx context.Context, tx repository.Tx, limit int) ([]*model.Job, error) {
	const q = `SELECT ` + jobColumns + ` FROM jobs ORDER BY created_at DESC, id LIMIT $1;`
	return r.list(ctx, tx, q, limit)
}

func (r *jobRepo) list(ctx context.Context, tx repository.Tx, q string, args ...interface{}) ([]*model.Job, error) {
	rows, err := queryRows(ctx, r.pool, tx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("list jobs: %w", err)
	}
	defer rows.Close()
	var out []*model.Job
	for rows.Next() {
		j, err := scanJob(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, j)
	}
	return out, rows.Err()
}

func (r *jobRepo) UpdateStatus(ctx context.Context, tx repository.Tx, id string, from, to model.JobStatus, errMsg string) error {
	const q = `
UPDATE jobs
   SET status = $3,
       error_message = $4,
       updated_at = NOW(),
       expanded_at = CASE WHEN $3 = 'expanded' THEN NOW() ELSE expanded_at END
 WHERE id = $1 AND status = $2;`
	tag, err := execSQL(ctx, r.pool, tx, q, id, string(from), string(to), errMsg)
	if err != nil {
		return fmt.Errorf("update job status: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%w: job %s is not %s", domain.ErrInvalidTransition, id, from)
	}
	return nil
}
