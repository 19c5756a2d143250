package worker

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"time"

	"github.com/rs/zerolog"

	"vidscribe/internal/domain"
	"vidscribe/internal/domain/model"
	"vidscribe/internal/domain/ports/repository"
	"vidscribe/internal/infra/logging"
	"vidscribe/internal/infra/metrics"
	"vidscribe/internal/pipeline"
)

// Runner processes one claimed video to completion or failure.
type Runner interface {
	Run(ctx context.Context, v *model.Video) (*pipeline.Result, error)
}

type Options struct {
	PollInterval time.Duration
	PollJitter   time.Duration
	ErrorBackoff time.Duration
}

// VideoProcessor is the claim loop: claim one video, run the pipeline on it,
// repeat. Idle loops sleep PollInterval plus a random jitter.
type VideoProcessor struct {
	claimer repository.VideoClaimer
	runner  Runner
	opts    Options
	log     *zerolog.Logger
}

func NewVideoProcessor(claimer repository.VideoClaimer, runner Runner, opts Options, log *zerolog.Logger) *VideoProcessor {
	if opts.PollInterval <= 0 {
		opts.PollInterval = 2 * time.Second
	}
	if opts.ErrorBackoff <= 0 {
		opts.ErrorBackoff = 10 * time.Second
	}
	l := log.With().Str("component", "VideoProcessor").Logger()
	return &VideoProcessor{claimer: claimer, runner: runner, opts: opts, log: &l}
}

// Start runs pool.Size() claim loops and blocks until they all stop.
// Cancelling ctx stops claiming; a video already claimed is processed to
// the end first.
func (p *VideoProcessor) Start(ctx context.Context, pool *Pool) {
	p.log.Info().Int("loops", pool.Size()).Msg("Video processor started")
	pool.Start(ctx, p.loop)
	pool.Wait()
	p.log.Info().Msg("Video processor stopped")
}

func (p *VideoProcessor) loop(ctx context.Context, id int) {
	log := p.log.With().Int("loop", id).Logger()
	for ctx.Err() == nil {
		processed, err := p.ProcessOne(ctx)
		switch {
		case err != nil:
			log.Error().Err(err).Dur("backoff", p.opts.ErrorBackoff).Msg("claim failed")
			sleep(ctx, p.opts.ErrorBackoff)
		case !processed:
			sleep(ctx, p.idleDelay())
		}
	}
}

func (p *VideoProcessor) idleDelay() time.Duration {
	d := p.opts.PollInterval
	if p.opts.PollJitter > 0 {
		d += rand.N(p.opts.PollJitter)
	}
	return d
}

// ProcessOne claims and processes at most one video. It reports whether a
// video was claimed. Pipeline failures are recorded on the video and are not
// returned; only claim errors are.
func (p *VideoProcessor) ProcessOne(ctx context.Context) (bool, error) {
	v, err := p.claimer.ClaimNext(ctx)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return false, nil
		}
		if ctx.Err() != nil {
			return false, nil
		}
		metrics.IncClaimError()
		return false, err
	}
	metrics.IncClaimed()

	// Shutdown does not interrupt a claimed video; a killed process leaves it
	// to the rescue sweep.
	runCtx := logging.WithTraceID(context.WithoutCancel(ctx), logging.NewTraceID())
	log := logging.With(logging.WithJobID(logging.WithVideoID(runCtx, v.ID), v.JobID), p.log)
	log.Info().Str("source_id", v.SourceID).Int("attempt", v.Attempts).Msg("video claimed")

	start := time.Now()
	res, err := p.run(runCtx, v)
	switch {
	case errors.Is(err, domain.ErrClaimLost):
		log.Warn().Dur("took", time.Since(start)).Msg("video taken back while processing")
	case err != nil:
		log.Error().Err(err).Dur("took", time.Since(start)).Msg("video failed")
	default:
		log.Info().Str("status", string(res.Status)).Dur("took", time.Since(start)).Msg("video finished")
	}
	return true, nil
}

func (p *VideoProcessor) run(ctx context.Context, v *model.Video) (res *pipeline.Result, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("pipeline panic: %v", r)
		}
	}()
	return p.runner.Run(ctx, v)
}

func sleep(ctx context.Context, d time.Duration) {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
	case <-t.C:
	}
}
