// Package outbox relays committed domain events from the outbox table to
// the event bus.
package outbox

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"vidscribe/internal/domain/ports/repository"
	"vidscribe/internal/infra/kafka"
	"vidscribe/internal/infra/metrics"
)

type Store interface {
	GetPending(ctx context.Context, limit int) ([]repository.OutboxRecord, error)
	MarkProcessed(ctx context.Context, id int64) error
}

type Publisher interface {
	Publish(ctx context.Context, msgs ...kafka.Message) error
}

// Relay polls unprocessed outbox rows and publishes them. Delivery is at
// least once: a crash between publish and mark republishes the batch.
type Relay struct {
	store     Store
	pub       Publisher
	interval  time.Duration
	batchSize int
	log       *zerolog.Logger
}

func NewRelay(store Store, pub Publisher, interval time.Duration, batchSize int, logger *zerolog.Logger) *Relay {
	if batchSize <= 0 {
		batchSize = 100
	}
	l := logger.With().Str("component", "OutboxRelay").Logger()
	return &Relay{store: store, pub: pub, interval: interval, batchSize: batchSize, log: &l}
}

// Run drains the outbox on every tick until ctx is done.
func (r *Relay) Run(ctx context.Context) error {
	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()
	for {
		for {
			n, err := r.Flush(ctx)
			if err != nil {
				r.log.Error().Err(err).Msg("outbox flush failed")
			}
			if err != nil || n < r.batchSize {
				break
			}
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

// Flush publishes one batch and returns how many rows were relayed.
func (r *Relay) Flush(ctx context.Context) (int, error) {
	recs, err := r.store.GetPending(ctx, r.batchSize)
	if err != nil {
		return 0, err
	}
	if len(recs) == 0 {
		return 0, nil
	}
	msgs := make([]kafka.Message, 0, len(recs))
	for _, rec := range recs {
		msgs = append(msgs, kafka.Message{
			Key:   rec.AggregateID,
			Value: rec.Payload,
			Headers: map[string]string{
				"event_id":    rec.EventID,
				"event_type":  rec.EventType,
				"occurred_at": rec.OccurredAt.UTC().Format(time.RFC3339Nano),
			},
		})
	}
	if err := r.pub.Publish(ctx, msgs...); err != nil {
		for range recs {
			metrics.IncOutboxEvent("failed")
		}
		return 0, err
	}
	for i, rec := range recs {
		if err := r.store.MarkProcessed(ctx, rec.ID); err != nil {
			return i, err
		}
		metrics.IncOutboxEvent("published")
	}
	r.log.Debug().Int("events", len(recs)).Msg("outbox relayed")
	return len(recs), nil
}
