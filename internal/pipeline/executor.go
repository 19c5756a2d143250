package pipeline

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v4"
	"github.com/rs/zerolog"

	"vidscribe/internal/domain"
	"vidscribe/internal/domain/model"
	"vidscribe/internal/domain/ports/adapter"
	"vidscribe/internal/domain/ports/repository"
	"vidscribe/internal/infra/logging"
	"vidscribe/internal/infra/metrics"
)

const (
	StageDownload   = "download"
	StageTranscode  = "transcode"
	StageChunk      = "chunk"
	StageTranscribe = "transcribe"
	StageDiarize    = "diarize"
	StagePersist    = "persist"
)

var stageKinds = map[string]error{
	StageDownload:   domain.ErrDownload,
	StageTranscode:  domain.ErrTranscode,
	StageChunk:      domain.ErrTranscode,
	StageTranscribe: domain.ErrTranscription,
	StageDiarize:    domain.ErrDiarization,
	StagePersist:    domain.ErrPersistence,
}

// VideoStore is the subset of video writes the executor performs. All of them
// are conditioned on the claim token.
type VideoStore interface {
	Advance(ctx context.Context, tx repository.Tx, id, claimToken string, from, to model.VideoStatus) error
	Touch(ctx context.Context, tx repository.Tx, id, claimToken string) error
	MarkFailed(ctx context.Context, tx repository.Tx, id, claimToken, errMsg string, at time.Time) error
	Complete(ctx context.Context, tx repository.Tx, id, claimToken string) error
}

type TranscriptStore interface {
	Replace(ctx context.Context, tx repository.Tx, t *model.Transcript) error
}

type EventRecorder interface {
	Add(ctx context.Context, tx repository.Tx, e *model.Event) error
}

type Config struct {
	WorkDir      string
	KeepMedia    bool
	ChunkLength  time.Duration
	ChunkOverlap time.Duration
	Language     string
}

// Deps are the collaborators one pipeline run needs. Fallback, Diarizer and
// Notifier are optional.
type Deps struct {
	Tx          repository.TransactionManager
	Videos      VideoStore
	Transcripts TranscriptStore
	Events      EventRecorder
	Downloader  adapter.Downloader
	Normalizer  adapter.Normalizer
	Slicer      adapter.AudioSlicer
	Engine      adapter.SpeechToText
	Fallback    adapter.SpeechToText
	Diarizer    adapter.Diarizer
	Notifier    adapter.Notifier
}

type Result struct {
	Status       model.VideoStatus
	Transcript   *model.Transcript
	UsedFallback bool
	Diarized     bool
}

// Executor drives one claimed video through download, transcode, chunk,
// transcribe, diarize and persist. It holds no per-video state between runs.
type Executor struct {
	cfg    Config
	d      Deps
	logger *zerolog.Logger
	now    func() time.Time
}

func NewExecutor(cfg Config, d Deps, logger *zerolog.Logger) *Executor {
	if cfg.ChunkLength <= 0 {
		cfg.ChunkLength = 900 * time.Second
	}
	if d.Notifier == nil {
		d.Notifier = noopNotifier{}
	}
	l := logger.With().Str("component", "Pipeline").Logger()
	return &Executor{cfg: cfg, d: d, logger: &l, now: time.Now}
}

type noopNotifier struct{}

func (noopNotifier) Notify(context.Context, string) error { return nil }

type chunkFile struct {
	Chunk
	path string
}

// Run processes v, which must be freshly claimed (downloading, with a claim
// token). Stage failures are recorded on the video and returned as
// *domain.StageError. A domain.ErrClaimLost error means another actor took the
// video back and nothing was recorded.
func (e *Executor) Run(ctx context.Context, v *model.Video) (res *Result, err error) {
	ctx = logging.WithVideoID(ctx, v.ID)
	ctx = logging.WithJobID(ctx, v.JobID)
	log := logging.With(ctx, e.logger)

	if v.Status != model.VideoStatusDownloading || v.ClaimToken == "" {
		return nil, fmt.Errorf("%w: video %s is %s without a claim", domain.ErrInvalidTransition, v.ID, v.Status)
	}

	current := StageDownload
	defer func() {
		if r := recover(); r != nil {
			log.Error().Interface("panic", r).Str("stage", current).Msg("pipeline panicked")
			res, err = nil, e.fail(ctx, v, domain.NewStageError(stageKinds[current], current, "panic", fmt.Sprint(r), nil))
		}
	}()

	wd, err := acquireWorkdir(e.cfg.WorkDir, v.ID, log)
	if err != nil {
		return nil, e.fail(ctx, v, domain.NewStageError(domain.ErrDownload, StageDownload, "workdir", "cannot prepare working directory", err))
	}
	if e.cfg.KeepMedia {
		wd.Retain()
	}
	defer wd.Release()

	// Download
	var audioPath string
	if err := e.stage(log, StageDownload, func() error {
		p, err := e.d.Downloader.Fetch(ctx, v.SourceID, wd.path)
		audioPath = p
		return err
	}); err != nil {
		return nil, e.fail(ctx, v, domain.NewStageError(domain.ErrDownload, StageDownload, "fetch", "could not download audio for "+v.SourceID, err))
	}
	if err := e.advance(ctx, v, model.VideoStatusTranscoding); err != nil {
		return nil, err
	}

	// Transcode
	current = StageTranscode
	var wavPath string
	if err := e.stage(log, StageTranscode, func() error {
		p, err := e.d.Normalizer.Normalize(ctx, audioPath)
		wavPath = p
		return err
	}); err != nil {
		return nil, e.fail(ctx, v, domain.NewStageError(domain.ErrTranscode, StageTranscode, "normalize", "could not normalize audio", err))
	}

	// Chunk
	current = StageChunk
	var chunks []chunkFile
	if err := e.stage(log, StageChunk, func() error {
		c, err := e.cutChunks(ctx, wd, wavPath)
		chunks = c
		return err
	}); err != nil {
		return nil, e.fail(ctx, v, domain.NewStageError(domain.ErrTranscode, StageChunk, "slice", "could not split audio", err))
	}
	log.Debug().Int("chunks", len(chunks)).Msg("audio split")
	if err := e.advance(ctx, v, model.VideoStatusTranscribing); err != nil {
		return nil, err
	}

	// Transcribe
	current = StageTranscribe
	var (
		segments []model.Segment
		engine   = e.d.Engine
		language = e.cfg.Language
		fellBack bool
	)
	if err := e.stage(log, StageTranscribe, func() error {
		for _, c := range chunks {
			tr, err := engine.Transcribe(ctx, c.path)
			if err != nil && !fellBack && e.d.Fallback != nil && ClassifyTranscriptionFailure(err) == VerdictRetryFallback {
				log.Warn().Err(err).Int("chunk", c.Index).Str("from", engine.Name()).Str("to", e.d.Fallback.Name()).
					Msg("hardware fault, retrying on fallback engine")
				metrics.IncEngineFallback(engine.Name(), e.d.Fallback.Name())
				engine, fellBack = e.d.Fallback, true
				tr, err = engine.Transcribe(ctx, c.path)
			}
			if err != nil {
				return fmt.Errorf("chunk %d: %w", c.Index, err)
			}
			if language == "" && tr.Language != "" {
				language = tr.Language
			}
			segments = append(segments, placeSegments(c.Chunk, tr.Segments)...)
			if err := e.d.Videos.Touch(ctx, nil, v.ID, v.ClaimToken); err != nil {
				if errors.Is(err, domain.ErrClaimLost) {
					return err
				}
				log.Warn().Err(err).Msg("heartbeat failed")
			}
		}
		return nil
	}); err != nil {
		if errors.Is(err, domain.ErrClaimLost) {
			return nil, e.abandon(log, err)
		}
		return nil, e.fail(ctx, v, domain.NewStageError(domain.ErrTranscription, StageTranscribe, engine.Name(), "transcription failed", err))
	}
	sort.SliceStable(segments, func(i, j int) bool { return segments[i].StartMS < segments[j].StartMS })

	// Diarize
	current = StageDiarize
	segments, diarized := e.diarize(ctx, log, wavPath, segments)

	// Persist
	current = StagePersist
	t := &model.Transcript{
		ID:        uuid.NewString(),
		VideoID:   v.ID,
		Model:     engine.Model(),
		Language:  language,
		CreatedAt: e.now().UTC(),
		Segments:  segments,
	}
	if err := e.stage(log, StagePersist, func() error {
		return e.d.Tx.WithTx(ctx, pgx.TxOptions{}, func(ctx context.Context, tx repository.Tx) error {
			if err := e.d.Transcripts.Replace(ctx, tx, t); err != nil {
				return err
			}
			if err := e.d.Videos.Complete(ctx, tx, v.ID, v.ClaimToken); err != nil {
				return err
			}
			ev := model.NewVideoCompletedEvent(v, t)
			return e.d.Events.Add(ctx, tx, &ev)
		})
	}); err != nil {
		if errors.Is(err, domain.ErrClaimLost) {
			return nil, e.abandon(log, err)
		}
		wd.Retain()
		return nil, e.fail(ctx, v, domain.NewStageError(domain.ErrPersistence, StagePersist, "replace transcript", "could not store transcript", err))
	}

	v.Status = model.VideoStatusCompleted
	v.ClaimToken = ""
	metrics.IncVideoFinished(string(model.VideoStatusCompleted))
	log.Info().Int("segments", len(segments)).Str("model", t.Model).Bool("fallback", fellBack).
		Bool("diarized", diarized).Msg("video completed")
	return &Result{Status: model.VideoStatusCompleted, Transcript: t, UsedFallback: fellBack, Diarized: diarized}, nil
}

func (e *Executor) stage(log *zerolog.Logger, name string, fn func() error) error {
	done := logging.TraceDuration(log, "pipeline."+name)
	start := time.Now()
	err := fn()
	done()
	result := "ok"
	if err != nil {
		result = "failed"
	}
	metrics.ObserveStage(name, result, time.Since(start))
	return err
}

func (e *Executor) advance(ctx context.Context, v *model.Video, to model.VideoStatus) error {
	if err := e.d.Videos.Advance(ctx, nil, v.ID, v.ClaimToken, v.Status, to); err != nil {
		if errors.Is(err, domain.ErrClaimLost) {
			return e.abandon(logging.With(ctx, e.logger), err)
		}
		return fmt.Errorf("advance %s -> %s: %w", v.Status, to, err)
	}
	v.Status = to
	return nil
}

func (e *Executor) abandon(log *zerolog.Logger, err error) error {
	log.Warn().Err(err).Msg("claim lost, abandoning run")
	return err
}

// cutChunks plans the windows for the normalized file and writes one file per
// window. A single window reuses the normalized file.
func (e *Executor) cutChunks(ctx context.Context, wd *workdir, wavPath string) ([]chunkFile, error) {
	total, err := e.d.Slicer.Duration(ctx, wavPath)
	if err != nil {
		return nil, fmt.Errorf("probe duration: %w", err)
	}
	plan := PlanChunks(total, e.cfg.ChunkLength, e.cfg.ChunkOverlap)
	if len(plan) == 0 {
		return nil, fmt.Errorf("audio has no duration (%s)", total)
	}
	if len(plan) == 1 {
		return []chunkFile{{Chunk: plan[0], path: wavPath}}, nil
	}
	out := make([]chunkFile, 0, len(plan))
	for _, c := range plan {
		path := wd.Join(fmt.Sprintf("chunk-%03d.wav", c.Index))
		if err := e.d.Slicer.Slice(ctx, wavPath, path, c.ReadStart, c.ReadLength()); err != nil {
			return nil, fmt.Errorf("chunk %d: %w", c.Index, err)
		}
		out = append(out, chunkFile{Chunk: c, path: path})
	}
	return out, nil
}

// diarize labels segments with speakers when a diarizer is available. Any
// failure leaves the segments untouched.
func (e *Executor) diarize(ctx context.Context, log *zerolog.Logger, wavPath string, segments []model.Segment) (out []model.Segment, ok bool) {
	if e.d.Diarizer == nil || !e.d.Diarizer.Available() {
		log.Debug().Err(domain.ErrDiarizationUnavailable).Msg("skipping diarization")
		metrics.ObserveStage(StageDiarize, "skipped", 0)
		return segments, false
	}
	defer func() {
		if r := recover(); r != nil {
			log.Warn().Interface("panic", r).Msg("diarization panicked, continuing without speakers")
			out, ok = segments, false
		}
	}()
	var turns []adapter.Turn
	err := e.stage(log, StageDiarize, func() error {
		t, err := e.d.Diarizer.Diarize(ctx, wavPath)
		turns = t
		return err
	})
	if err != nil {
		log.Warn().Err(domain.NewStageError(domain.ErrDiarization, StageDiarize, "diarize", "continuing without speakers", err)).
			Msg("diarization failed")
		return segments, false
	}
	return AlignSpeakers(segments, turns), true
}

// fail records a terminal stage failure on the video and in the outbox, then
// notifies operators. It always returns serr.
func (e *Executor) fail(ctx context.Context, v *model.Video, serr *domain.StageError) error {
	log := logging.With(ctx, e.logger)
	msg := serr.Error()
	at := e.now().UTC()
	err := e.d.Tx.WithTx(ctx, pgx.TxOptions{}, func(ctx context.Context, tx repository.Tx) error {
		if err := e.d.Videos.MarkFailed(ctx, tx, v.ID, v.ClaimToken, msg, at); err != nil {
			return err
		}
		ev := model.NewVideoFailedEvent(v, serr.Stage, msg)
		return e.d.Events.Add(ctx, tx, &ev)
	})
	switch {
	case errors.Is(err, domain.ErrClaimLost):
		log.Warn().Err(serr).Msg("claim lost before failure could be recorded")
		return serr
	case err != nil:
		log.Error().Err(err).AnErr("cause", serr).Msg("could not record video failure")
		return serr
	}

	v.Status = model.VideoStatusFailed
	v.ErrorMessage = msg
	v.FailedAt = &at
	v.ClaimToken = ""
	metrics.IncVideoFinished(string(model.VideoStatusFailed))
	log.Error().Err(serr).Str("stage", serr.Stage).Msg("video failed")

	text := fmt.Sprintf("Video %s (%s) failed at %s: %s", v.SourceID, v.ID, serr.Stage, msg)
	if nErr := e.d.Notifier.Notify(ctx, text); nErr != nil {
		log.Warn().Err(nErr).Msg("failure notification not sent")
	}
	return serr
}
