package sched

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"vidscribe/internal/usecase"
)

// ExpanderWorker turns pending jobs into video rows.
type ExpanderWorker struct {
	interval  time.Duration
	batchSize int
	uc        usecase.ExpanderUseCase
	log       *zerolog.Logger
}

func NewExpanderWorker(interval time.Duration, batchSize int, uc usecase.ExpanderUseCase, logger *zerolog.Logger) *ExpanderWorker {
	if interval <= 0 {
		interval = 5 * time.Second
	}
	if batchSize <= 0 {
		batchSize = 10
	}
	compLog := logger.With().Str("component", "ExpanderWorker").Logger()
	return &ExpanderWorker{interval: interval, batchSize: batchSize, uc: uc, log: &compLog}
}

func (w *ExpanderWorker) Run(ctx context.Context) error {
	w.log.Info().Dur("interval", w.interval).Msg("Starting expander worker")
	// Run once on startup, then on every tick
	w.runOnce(ctx)

	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			w.log.Info().Msg("Stopping expander worker")
			return ctx.Err()
		case <-ticker.C:
			w.runOnce(ctx)
		}
	}
}

func (w *ExpanderWorker) runOnce(ctx context.Context) {
	n, err := w.uc.ExpandPending(ctx, w.batchSize)
	if err != nil && ctx.Err() == nil {
		w.log.Error().Err(err).Msg("expansion pass failed")
	}
	if n > 0 {
		w.log.Info().Int("count", n).Msg("jobs expanded")
	}
}
