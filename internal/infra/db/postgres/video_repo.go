package postgres

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/pgxpool"

	"vidscribe/internal/domain"
	"vidscribe/internal/domain/model"
	"vidscribe/internal/domain/ports/repository"
)

var _ repository.VideoRepository = (*videoRepo)(nil)

type videoRepo struct {
	pool *pgxpool.Pool
	tm   repository.TransactionManager
}

func NewVideoRepo(pool *pgxpool.Pool, tm repository.TransactionManager) *videoRepo {
	return &videoRepo{pool: pool, tm: tm}
}

// videoColumns lists the scanned columns, optionally qualified by a table alias.
func videoColumns(alias string) string {
	p := ""
	if alias != "" {
		p = alias + "."
	}
	cols := []string{
		p + "id", p + "job_id", p + "source_id", p + "idx", p + "title", p + "duration_seconds",
		p + "status", "COALESCE(" + p + "claim_token, '')", p + "attempts", p + "error_message",
		p + "failed_at", p + "created_at", p + "updated_at",
	}
	return strings.Join(cols, ", ")
}

func scanVideo(row pgx.Row) (*model.Video, error) {
	var v model.Video
	var status string
	err := row.Scan(&v.ID, &v.JobID, &v.SourceID, &v.Index, &v.Title, &v.DurationSeconds,
		&status, &v.ClaimToken, &v.Attempts, &v.ErrorMessage, &v.FailedAt, &v.CreatedAt, &v.UpdatedAt)
	if err != nil {
		return nil, scanErr(err)
	}
	v.Status = model.VideoStatus(status)
	return &v, nil
}

func inFlightArray() []string {
	out := make([]string, 0, len(model.InFlightStatuses))
	for _, s := range model.InFlightStatuses {
		out = append(out, string(s))
	}
	return out
}

func (r *videoRepo) Insert(ctx context.Context, tx repository.Tx, v *model.Video) (bool, error) {
	if v.ID == "" {
		v.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if v.CreatedAt.IsZero() {
		v.CreatedAt = now
	}
	v.UpdatedAt = now
	if v.Status == "" {
		v.Status = model.VideoStatusPending
	}
	const q = `
INSERT INTO videos (id, job_id, source_id, idx, title, duration_seconds, status, created_at, updated_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
ON CONFLICT (job_id, source_id) DO NOTHING;`
	tag, err := execSQL(ctx, r.pool, tx, q,
		v.ID, v.JobID, v.SourceID, v.Index, v.Title, v.DurationSeconds, string(v.Status), v.CreatedAt, v.UpdatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return false, nil
		}
		return false, fmt.Errorf("insert video: %w", err)
	}
	return tag.RowsAffected() == 1, nil
}

func (r *videoRepo) FindByID(ctx context.Context, tx repository.Tx, id string) (*model.Video, error) {
	row, err := pickRow(ctx, r.pool, tx, `SELECT `+videoColumns("")+` FROM videos WHERE id = $1;`, id)
	if err != nil {
		return nil, err
	}
	return scanVideo(row)
}

func (r *videoRepo) ListByJob(ctx context.Context, tx repository.Tx, jobID string) ([]*model.Video, error) {
	return r.list(ctx, tx, `SELECT `+videoColumns("")+` FROM videos WHERE job_id = $1 ORDER BY idx;`, jobID)
}

func (r *videoRepo) ListFailed(ctx context.Context, tx repository.Tx, jobID string, limit int) ([]*model.Video, error) {
	const q = `
SELECT %s FROM videos
 WHERE status = 'failed' AND ($1 = '' OR job_id = $1)
 ORDER BY failed_at NULLS LAST, created_at
 LIMIT $2;`
	return r.list(ctx, tx, fmt.Sprintf(q, videoColumns("")), jobID, limit)
}

func (r *videoRepo) list(ctx context.Context, tx repository.Tx, q string, args ...interface{}) ([]*model.Video, error) {
	rows, err := queryRows(ctx, r.pool, tx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("list videos: %w", err)
	}
	defer rows.Close()
	var out []*model.Video
	for rows.Next() {
		v, err := scanVideo(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return out, rows.Err()
}

func (r *videoRepo) CountByStatus(ctx context.Context, tx repository.Tx, jobID string) (map[model.VideoStatus]int, error) {
	const q = `SELECT status, COUNT(*) FROM videos WHERE ($1 = '' OR job_id = $1) GROUP BY status;`
	rows, err := queryRows(ctx, r.pool, tx, q, jobID)
	if err != nil {
		return nil, fmt.Errorf("count videos: %w", err)
	}
	defer rows.Close()
	out := make(map[model.VideoStatus]int)
	for rows.Next() {
		var status string
		var n int
		if err := rows.Scan(&status, &n); err != nil {
			return nil, scanErr(err)
		}
		out[model.VideoStatus(status)] = n
	}
	return out, rows.Err()
}

// ClaimNext locks the oldest pending video, skipping rows held by other
// transactions, and moves it to downloading under a fresh claim token.
func (r *videoRepo) ClaimNext(ctx context.Context) (*model.Video, error) {
	var claimed *model.Video
	err := r.tm.WithTx(ctx, pgx.TxOptions{}, func(ctx context.Context, tx repository.Tx) error {
		q := `
WITH next AS (
  SELECT id FROM videos
   WHERE status = 'pending'
   ORDER BY created_at, job_id, idx
   LIMIT 1
   FOR UPDATE SKIP LOCKED
)
UPDATE videos v
   SET status = 'downloading',
       claim_token = $1,
       attempts = v.attempts + 1,
       error_message = '',
       failed_at = NULL,
       updated_at = NOW()
  FROM next
 WHERE v.id = next.id
RETURNING ` + videoColumns("v") + `;`
		row, err := pickRow(ctx, r.pool, tx, q, uuid.NewString())
		if err != nil {
			return err
		}
		v, err := scanVideo(row)
		if err != nil {
			return err
		}
		claimed = v
		return nil
	})
	if err != nil {
		return nil, err
	}
	return claimed, nil
}

func claimLost(tag interface{ RowsAffected() int64 }, id string) error {
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%w: video %s", domain.ErrClaimLost, id)
	}
	return nil
}

func (r *videoRepo) Advance(ctx context.Context, tx repository.Tx, id, claimToken string, from, to model.VideoStatus) error {
	if !model.CanAdvance(from, to) || to == model.VideoStatusFailed || to == model.VideoStatusCompleted {
		return fmt.Errorf("%w: %s -> %s", domain.ErrInvalidTransition, from, to)
	}
	const q = `
UPDATE videos SET status = $4, updated_at = NOW()
 WHERE id = $1 AND claim_token = $2 AND status = $3;`
	tag, err := execSQL(ctx, r.pool, tx, q, id, claimToken, string(from), string(to))
	if err != nil {
		return fmt.Errorf("advance video: %w", err)
	}
	return claimLost(tag, id)
}

func (r *videoRepo) Touch(ctx context.Context, tx repository.Tx, id, claimToken string) error {
	const q = `
UPDATE videos SET updated_at = NOW()
 WHERE id = $1 AND claim_token = $2 AND status = ANY($3);`
	tag, err := execSQL(ctx, r.pool, tx, q, id, claimToken, inFlightArray())
	if err != nil {
		return fmt.Errorf("touch video: %w", err)
	}
	return claimLost(tag, id)
}

func (r *videoRepo) MarkFailed(ctx context.Context, tx repository.Tx, id, claimToken, errMsg string, at time.Time) error {
	const q = `
UPDATE videos
   SET status = 'failed', error_message = $3, failed_at = $4, claim_token = NULL, updated_at = NOW()
 WHERE id = $1 AND claim_token = $2 AND status = ANY($5);`
	tag, err := execSQL(ctx, r.pool, tx, q, id, claimToken, errMsg, at, inFlightArray())
	if err != nil {
		return fmt.Errorf("mark video failed: %w", err)
	}
	return claimLost(tag, id)
}

func (r *videoRepo) Complete(ctx context.Context, tx repository.Tx, id, claimToken string) error {
	const q = `
UPDATE videos
   SET status = 'completed', error_message = '', failed_at = NULL, claim_token = NULL, updated_at = NOW()
 WHERE id = $1 AND claim_token = $2 AND status = 'transcribing';`
	tag, err := execSQL(ctx, r.pool, tx, q, id, claimToken)
	if err != nil {
		return fmt.Errorf("complete video: %w", err)
	}
	return claimLost(tag, id)
}

func (r *videoRepo) requeue(ctx context.Context, q string, args ...interface{}) ([]repository.Requeued, error) {
	rows, err := queryRows(ctx, r.pool, nil, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []repository.Requeued
	for rows.Next() {
		var rq repository.Requeued
		var prev string
		if err := rows.Scan(&rq.VideoID, &rq.JobID, &prev, &rq.Model); err != nil {
			return nil, scanErr(err)
		}
		rq.PreviousStatus = model.VideoStatus(prev)
		out = append(out, rq)
	}
	return out, rows.Err()
}

func (r *videoRepo) RequeueStalled(ctx context.Context, cutoff time.Time, limit int) ([]repository.Requeued, error) {
	const q = `
WITH stalled AS (
  SELECT id, status FROM videos
   WHERE status = ANY($1) AND updated_at < $2
   ORDER BY updated_at
   LIMIT $3
   FOR UPDATE SKIP LOCKED
)
UPDATE videos v
   SET status = 'pending', claim_token = NULL, updated_at = NOW()
  FROM stalled s
 WHERE v.id = s.id
RETURNING v.id, v.job_id, s.status, '';`
	out, err := r.requeue(ctx, q, inFlightArray(), cutoff, limit)
	if err != nil {
		return nil, fmt.Errorf("requeue stalled: %w", err)
	}
	return out, nil
}

func normalizeModels(keep []string) []string {
	out := make([]string, 0, len(keep))
	for _, m := range keep {
		out = append(out, strings.ToLower(strings.TrimSpace(m)))
	}
	return out
}

func (r *videoRepo) ListReprocessCandidates(ctx context.Context, keep []string, limit int) ([]repository.Requeued, error) {
	const q = `
SELECT v.id, v.job_id, v.status, t.model
  FROM videos v
  JOIN transcripts t ON t.video_id = v.id
 WHERE v.status = 'completed' AND NOT (lower(t.model) = ANY($1))
 ORDER BY v.updated_at
 LIMIT $2;`
	out, err := r.requeue(ctx, q, normalizeModels(keep), limit)
	if err != nil {
		return nil, fmt.Errorf("list reprocess candidates: %w", err)
	}
	return out, nil
}

func (r *videoRepo) RequeueForReprocess(ctx context.Context, keep []string, limit int) ([]repository.Requeued, error) {
	const q = `
WITH outdated AS (
  SELECT v.id, v.status, t.model
    FROM videos v
    JOIN transcripts t ON t.video_id = v.id
   WHERE v.status = 'completed' AND NOT (lower(t.model) = ANY($1))
   ORDER BY v.updated_at
   LIMIT $2
   FOR UPDATE OF v SKIP LOCKED
)
UPDATE videos v
   SET status = 'pending', claim_token = NULL, updated_at = NOW()
  FROM outdated o
 WHERE v.id = o.id
RETURNING v.id, v.job_id, o.status, o.model;`
	out, err := r.requeue(ctx, q, normalizeModels(keep), limit)
	if err != nil {
		return nil, fmt.Errorf("requeue for reprocess: %w", err)
	}
	return out, nil
}

func (r *videoRepo) RetryFailed(ctx context.Context, ids []string) ([]repository.Requeued, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	const q = `
WITH failed AS (
  SELECT id, status FROM videos
   WHERE id = ANY($1) AND status = 'failed'
   FOR UPDATE SKIP LOCKED
)
UPDATE videos v
   SET status = 'pending', claim_token = NULL, error_message = '', failed_at = NULL, updated_at = NOW()
  FROM failed f
 WHERE v.id = f.id
RETURNING v.id, v.job_id, f.status, '';`
	out, err := r.requeue(ctx, q, ids)
	if err != nil {
		return nil, fmt.Errorf("retry failed: %w", err)
	}
	return out, nil
}
