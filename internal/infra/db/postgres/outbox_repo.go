package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v4/pgxpool"

	"vidscribe/internal/domain/model"
	"vidscribe/internal/domain/ports/repository"
)

var _ repository.OutboxRepository = (*outboxRepo)(nil)

type outboxRepo struct {
	pool *pgxpool.Pool
}

func NewOutboxRepo(pool *pgxpool.Pool) *outboxRepo {
	return &outboxRepo{pool: pool}
}

func (r *outboxRepo) Add(ctx context.Context, tx repository.Tx, e *model.Event) error {
	const q = `
INSERT INTO outbox (event_id, event_type, aggregate_id, payload, occurred_at)
VALUES ($1, $2, $3, $4, $5);`
	if _, err := execSQL(ctx, r.pool, tx, q, e.ID, e.Type, e.AggregateID, []byte(e.Payload), e.OccurredAt); err != nil {
		return fmt.Errorf("insert outbox: %w", err)
	}
	return nil
}

func (r *outboxRepo) GetPending(ctx context.Context, limit int) ([]repository.OutboxRecord, error) {
	const q = `
SELECT id, event_id, event_type, aggregate_id, payload, occurred_at
  FROM outbox
 WHERE processed_at IS NULL
 ORDER BY id ASC
 LIMIT $1;`
	rows, err := queryRows(ctx, r.pool, nil, q, limit)
	if err != nil {
		return nil, fmt.Errorf("get pending: %w", err)
	}
	defer rows.Close()
	var out []repository.OutboxRecord
	for rows.Next() {
		var rec repository.OutboxRecord
		var payload []byte
		if err := rows.Scan(&rec.ID, &rec.EventID, &rec.EventType, &rec.AggregateID, &payload, &rec.OccurredAt); err != nil {
			return nil, scanErr(err)
		}
		rec.Payload = payload
		out = append(out, rec)
	}
	return out, rows.Err()
}

func (r *outboxRepo) MarkProcessed(ctx context.Context, id int64) error {
	if _, err := execSQL(ctx, r.pool, nil, `UPDATE outbox SET processed_at = NOW() WHERE id = $1;`, id); err != nil {
		return fmt.Errorf("mark processed: %w", err)
	}
	return nil
}
