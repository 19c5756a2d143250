package main

import (
	"context"
	"fmt"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/jackc/pgx/v4/pgxpool"
	"github.com/rs/zerolog"

	"vidscribe/internal/config"
	"vidscribe/internal/domain/model"
	"vidscribe/internal/domain/ports/adapter"
	"vidscribe/internal/domain/ports/repository"
	"vidscribe/internal/infra/adapters/cmdrun"
	"vidscribe/internal/infra/adapters/diarize"
	"vidscribe/internal/infra/adapters/media"
	"vidscribe/internal/infra/adapters/stt"
	pg "vidscribe/internal/infra/db/postgres"
	"vidscribe/internal/infra/logging"
	"vidscribe/internal/infra/metrics"
	red "vidscribe/internal/infra/redis"
	"vidscribe/internal/infra/telegram"
	"vidscribe/internal/pipeline"
	"vidscribe/internal/usecase"
)

type commandContext struct {
	configFlag *string
	devFlag    *bool

	configOnce sync.Once
	config     *config.Config
	configErr  error
}

func newCommandContext(configFlag *string, devFlag *bool) *commandContext {
	return &commandContext{configFlag: configFlag, devFlag: devFlag}
}

func (c *commandContext) ensureConfig() (*config.Config, error) {
	c.configOnce.Do(func() {
		path := strings.TrimSpace(*c.configFlag)
		c.config, c.configErr = config.LoadConfig(path, *c.devFlag)
	})
	return c.config, c.configErr
}

// app holds the collaborators every command shares. Adapters that reach
// external services are built on demand.
type app struct {
	cfg  *config.Config
	log  *zerolog.Logger
	pool *pgxpool.Pool

	tm          *pg.TxManager
	jobs        repository.JobRepository
	videos      repository.VideoRepository
	transcripts repository.TranscriptRepository
	outbox      repository.OutboxRepository

	jobUC       usecase.JobUseCase
	queryUC     usecase.QueryUseCase
	videoUC     usecase.VideoUseCase
	rescueUC    usecase.RescueUseCase
	reprocessUC usecase.ReprocessUseCase

	runner   cmdrun.Runner
	closers  []func()
	notifier adapter.Notifier
}

// openApp connects to the database and builds repositories and use cases.
// Long-running commands log to stdout; one-shot commands log to stderr so
// their output stays clean.
func (c *commandContext) openApp(ctx context.Context, longRunning bool) (*app, error) {
	cfg, err := c.ensureConfig()
	if err != nil {
		return nil, err
	}
	var logger *zerolog.Logger
	if longRunning {
		logger = logging.New(cfg.Log, cfg.Runtime.Dev)
	} else {
		logger = logging.NewWithWriter(cfg.Log, cfg.Runtime.Dev, os.Stderr)
	}
	metrics.MustRegister()
	metrics.SetBuildInfo(version, commit)

	pool, err := pg.Connect(ctx, cfg.Database)
	if err != nil {
		return nil, fmt.Errorf("postgres: %w", err)
	}
	logger.Debug().Str("database", logging.Redact(cfg.Database.URL, cfg.Runtime.Dev)).Msg("database connected")

	tm := pg.NewTxManager(pool)
	jobs := pg.NewJobRepo(pool)
	videos := pg.NewVideoRepo(pool, tm)
	transcripts := pg.NewTranscriptRepo(pool)
	outbox := pg.NewOutboxRepo(pool)

	ranking := model.ModelRanking(cfg.Transcription.ModelRanking)
	a := &app{
		cfg:         cfg,
		log:         logger,
		pool:        pool,
		tm:          tm,
		jobs:        jobs,
		videos:      videos,
		transcripts: transcripts,
		outbox:      outbox,
		jobUC:       usecase.NewJobUseCase(jobs, logger),
		queryUC:     usecase.NewQueryUseCase(jobs, videos, transcripts, logger),
		videoUC:     usecase.NewVideoUseCase(videos, logger),
		rescueUC:    usecase.NewRescueUseCase(videos, cfg.Rescue.StallThreshold, cfg.Rescue.BatchSize, logger),
		reprocessUC: usecase.NewReprocessUseCase(videos, ranking, cfg.Transcription.Model, cfg.Reprocess.BatchSize, logger),
		runner:      cmdrun.Exec{},
	}
	a.closers = append(a.closers, pool.Close)
	return a, nil
}

func (a *app) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
}

func (a *app) getNotifier() (adapter.Notifier, error) {
	if a.notifier != nil {
		return a.notifier, nil
	}
	n, err := telegram.NewNotifier(a.cfg.Telegram, a.log)
	if err != nil {
		return nil, fmt.Errorf("telegram: %w", err)
	}
	a.notifier = n
	return n, nil
}

// extractor is yt-dlp behind the redis metadata cache when redis is
// configured and reachable.
func (a *app) extractor(ctx context.Context) adapter.Extractor {
	yt := media.NewYtDlp(a.cfg.Media.YtDlp, a.cfg.Media.ExtractorRPS, a.runner, a.log)
	if a.cfg.Redis.URL == "" {
		return yt
	}
	pingCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	client, err := red.NewClient(pingCtx, &a.cfg.Redis)
	if err != nil {
		a.log.Warn().Err(err).Msg("redis unavailable; metadata cache disabled")
		return yt
	}
	a.closers = append(a.closers, func() { _ = client.Close() })
	return red.NewMetadataCache(yt, client, a.cfg.Redis.TTL, a.log)
}

func (a *app) expanderUC(ctx context.Context) (usecase.ExpanderUseCase, error) {
	n, err := a.getNotifier()
	if err != nil {
		return nil, err
	}
	return usecase.NewExpanderUseCase(a.jobs, a.videos, a.outbox, a.tm, a.extractor(ctx), n, a.log), nil
}

func (a *app) executor(ctx context.Context) (*pipeline.Executor, error) {
	cfg := a.cfg
	n, err := a.getNotifier()
	if err != nil {
		return nil, err
	}
	primary, fallback, err := stt.NewEngines(ctx, cfg.Transcription, a.runner)
	if err != nil {
		return nil, err
	}
	yt := media.NewYtDlp(cfg.Media.YtDlp, cfg.Media.ExtractorRPS, a.runner, a.log)
	ff := media.NewFFmpeg(cfg.Media.FFmpeg, cfg.Media.FFprobe, cfg.Media.SampleRate, a.runner)
	diar := diarize.NewPyannote(cfg.Diarization.Enabled, cfg.Diarization.Binary, cfg.Diarization.Model,
		cfg.Diarization.Device, cfg.Diarization.HFToken)

	ev := a.log.Info().
		Str("engine", primary.Name()).
		Str("model", primary.Model()).
		Bool("diarization", diar.Available())
	if fallback != nil {
		ev = ev.Str("fallback", fallback.Name())
	}
	ev.Msg("pipeline configured")

	return pipeline.NewExecutor(pipeline.Config{
		WorkDir:      cfg.Worker.WorkDir,
		KeepMedia:    cfg.Worker.KeepMedia,
		ChunkLength:  time.Duration(cfg.Media.ChunkSeconds) * time.Second,
		ChunkOverlap: time.Duration(cfg.Media.ChunkOverlapSeconds) * time.Second,
		Language:     cfg.Transcription.Language,
	}, pipeline.Deps{
		Tx:          a.tm,
		Videos:      a.videos,
		Transcripts: a.transcripts,
		Events:      a.outbox,
		Downloader:  yt,
		Normalizer:  ff,
		Slicer:      ff,
		Engine:      primary,
		Fallback:    fallback,
		Diarizer:    diar,
		Notifier:    n,
	}, a.log), nil
}
