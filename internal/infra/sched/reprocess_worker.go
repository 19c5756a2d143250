package sched

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"vidscribe/internal/usecase"
)

// ReprocessWorker periodically requeues completed videos whose transcript was
// produced by a model the configured one outranks.
type ReprocessWorker struct {
	uc       usecase.ReprocessUseCase
	interval time.Duration
	log      *zerolog.Logger
}

func NewReprocessWorker(interval time.Duration, uc usecase.ReprocessUseCase, logger *zerolog.Logger) *ReprocessWorker {
	if interval <= 0 {
		interval = 15 * time.Minute
	}
	compLog := logger.With().Str("component", "ReprocessWorker").Logger()
	return &ReprocessWorker{uc: uc, interval: interval, log: &compLog}
}

func (w *ReprocessWorker) Run(ctx context.Context) error {
	w.log.Info().Dur("interval", w.interval).Msg("Starting reprocess worker")
	t := time.NewTicker(w.interval)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			w.log.Info().Msg("Stopping reprocess worker")
			return ctx.Err()
		case <-t.C:
			w.tick(ctx)
		}
	}
}

func (w *ReprocessWorker) tick(ctx context.Context) {
	out, err := w.uc.Requeue(ctx)
	if err != nil {
		if ctx.Err() == nil {
			w.log.Error().Err(err).Msg("reprocess pass failed")
		}
		return
	}
	if len(out) > 0 {
		w.log.Info().Int("count", len(out)).Msg("videos requeued for a better model")
	}
}
