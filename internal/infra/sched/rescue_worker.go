package sched

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"vidscribe/internal/usecase"
)

// RescueWorker periodically returns stalled videos to the queue.
type RescueWorker struct {
	interval time.Duration
	uc       usecase.RescueUseCase
	log      *zerolog.Logger
}

func NewRescueWorker(interval time.Duration, uc usecase.RescueUseCase, logger *zerolog.Logger) *RescueWorker {
	if interval <= 0 {
		interval = time.Minute
	}
	compLog := logger.With().Str("component", "RescueWorker").Logger()
	return &RescueWorker{interval: interval, uc: uc, log: &compLog}
}

func (w *RescueWorker) Run(ctx context.Context) error {
	w.log.Info().Dur("interval", w.interval).Msg("Starting rescue worker")
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			w.log.Info().Msg("Stopping rescue worker")
			return ctx.Err()
		case <-ticker.C:
			if _, err := w.uc.Sweep(ctx); err != nil && ctx.Err() == nil {
				w.log.Error().Err(err).Msg("rescue sweep failed")
			}
		}
	}
}
