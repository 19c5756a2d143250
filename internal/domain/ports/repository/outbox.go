package repository

import (
	"context"
	"encoding/json"
	"time"

	"vidscribe/internal/domain/model"
)

type OutboxRecord struct {
	ID          int64
	EventID     string
	EventType   string
	AggregateID string
	Payload     json.RawMessage
	OccurredAt  time.Time
}

type OutboxRepository interface {
	Add(ctx context.Context, tx Tx, e *model.Event) error
	GetPending(ctx context.Context, limit int) ([]OutboxRecord, error)
	MarkProcessed(ctx context.Context, id int64) error
}
