// File: internal/config/config.go
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

type RuntimeConfig struct {
	Dev bool
}

type LogConfig struct {
	Level    string `yaml:"level"`    // trace|debug|info|warn|error
	Format   string `yaml:"format"`   // json|console
	Sampling bool   `yaml:"sampling"` // enable sampling in prod
}

type AdminConfig struct {
	Port int `yaml:"port"`
}

type DatabaseConfig struct {
	URL      string `yaml:"url"`
	MaxConns int32  `yaml:"max_conns"`
}

type WorkerConfig struct {
	PollInterval time.Duration `yaml:"poll_interval"`
	PollJitter   time.Duration `yaml:"poll_jitter"`
	ErrorBackoff time.Duration `yaml:"error_backoff"`
	Loops        int           `yaml:"loops"`
	WorkDir      string        `yaml:"work_dir"`
	KeepMedia    bool          `yaml:"keep_media"`
}

type RescueConfig struct {
	Interval       time.Duration `yaml:"interval"`
	StallThreshold time.Duration `yaml:"stall_threshold"`
	BatchSize      int           `yaml:"batch_size"`
}

type ReprocessConfig struct {
	Enabled   bool          `yaml:"enabled"`
	Interval  time.Duration `yaml:"interval"`
	BatchSize int           `yaml:"batch_size"`
}

type ExpanderConfig struct {
	Interval  time.Duration `yaml:"interval"`
	BatchSize int           `yaml:"batch_size"`
}

type MediaConfig struct {
	YtDlp               string  `yaml:"yt_dlp"`
	FFmpeg              string  `yaml:"ffmpeg"`
	FFprobe             string  `yaml:"ffprobe"`
	SampleRate          int     `yaml:"sample_rate"`
	ChunkSeconds        int     `yaml:"chunk_seconds"`
	ChunkOverlapSeconds int     `yaml:"chunk_overlap_seconds"`
	ExtractorRPS        float64 `yaml:"extractor_rps"`
}

type TranscriptionConfig struct {
	Engine         string   `yaml:"engine"`          // whisper|openai|gemini
	FallbackEngine string   `yaml:"fallback_engine"` // used once on hardware faults
	Model          string   `yaml:"model"`
	FallbackModel  string   `yaml:"fallback_model"`
	ModelRanking   []string `yaml:"model_ranking"` // best first
	Language       string   `yaml:"language"`
	Device         string   `yaml:"device"` // cuda|cpu
	FallbackDevice string   `yaml:"fallback_device"`
	ComputeType    string   `yaml:"compute_type"`
	Binary         string   `yaml:"binary"`
	OpenAIKey      string   `yaml:"openai_key"`
	OpenAIBaseURL  string   `yaml:"openai_base_url"`
	GeminiKey      string   `yaml:"gemini_key"`
}

type DiarizationConfig struct {
	Enabled bool   `yaml:"enabled"`
	Binary  string `yaml:"binary"`
	HFToken string `yaml:"hf_token"`
	Model   string `yaml:"model"`
	Device  string `yaml:"device"`
}

type RedisConfig struct {
	URL      string        `yaml:"url"`
	Password string        `yaml:"password"`
	DB       int           `yaml:"db"`
	TTL      time.Duration `yaml:"ttl"`
}

type OutboxConfig struct {
	Brokers   []string      `yaml:"brokers"`
	Topic     string        `yaml:"topic"`
	Interval  time.Duration `yaml:"interval"`
	BatchSize int           `yaml:"batch_size"`
}

type TelegramConfig struct {
	Token  string `yaml:"token"`
	ChatID int64  `yaml:"chat_id"`
}

type Config struct {
	Log           LogConfig           `yaml:"log"`
	Admin         AdminConfig         `yaml:"admin"`
	Database      DatabaseConfig      `yaml:"database"`
	Worker        WorkerConfig        `yaml:"worker"`
	Rescue        RescueConfig        `yaml:"rescue"`
	Reprocess     ReprocessConfig     `yaml:"reprocess"`
	Expander      ExpanderConfig      `yaml:"expander"`
	Media         MediaConfig         `yaml:"media"`
	Transcription TranscriptionConfig `yaml:"transcription"`
	Diarization   DiarizationConfig   `yaml:"diarization"`
	Redis         RedisConfig         `yaml:"redis"`
	Outbox        OutboxConfig        `yaml:"outbox"`
	Telegram      TelegramConfig      `yaml:"telegram"`

	Runtime RuntimeConfig `yaml:"-"`
}

// LoadConfig reads the yaml file at path, loads .env if present and lets
// environment variables override secrets and endpoints.
func LoadConfig(path string, dev bool) (*Config, error) {
	_ = godotenv.Load()

	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	cfg, err := Parse(b)
	if err != nil {
		return nil, err
	}
	cfg.Runtime.Dev = dev
	return cfg, nil
}

// Parse decodes raw yaml, applies env overrides and defaults, and validates.
func Parse(b []byte) (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(b, &cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	applyEnv(&cfg)
	applyDefaults(&cfg)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func applyEnv(cfg *Config) {
	override := func(dst *string, key string) {
		if v := strings.TrimSpace(os.Getenv(key)); v != "" {
			*dst = v
		}
	}
	override(&cfg.Database.URL, "DATABASE_URL")
	override(&cfg.Redis.URL, "REDIS_URL")
	override(&cfg.Transcription.OpenAIKey, "OPENAI_API_KEY")
	override(&cfg.Transcription.GeminiKey, "GEMINI_API_KEY")
	override(&cfg.Diarization.HFToken, "HF_TOKEN")
	override(&cfg.Telegram.Token, "TELEGRAM_BOT_TOKEN")
	if v := strings.TrimSpace(os.Getenv("KAFKA_BROKERS")); v != "" {
		cfg.Outbox.Brokers = strings.Split(v, ",")
	}
}

func applyDefaults(cfg *Config) {
	if cfg.Log.Level == "" {
		cfg.Log.Level = "info"
	}
	if cfg.Log.Format == "" {
		cfg.Log.Format = "json"
	}
	if cfg.Admin.Port == 0 {
		cfg.Admin.Port = 9090
	}
	if cfg.Database.MaxConns <= 0 {
		cfg.Database.MaxConns = 10
	}

	if cfg.Worker.PollInterval <= 0 {
		cfg.Worker.PollInterval = 2 * time.Second
	}
	if cfg.Worker.PollJitter < 0 {
		cfg.Worker.PollJitter = 0
	}
	if cfg.Worker.ErrorBackoff <= 0 {
		cfg.Worker.ErrorBackoff = 10 * time.Second
	}
	if cfg.Worker.Loops <= 0 {
		cfg.Worker.Loops = 1
	}
	if cfg.Worker.WorkDir == "" {
		cfg.Worker.WorkDir = os.TempDir() + "/vidscribe"
	}

	if cfg.Rescue.Interval <= 0 {
		cfg.Rescue.Interval = time.Minute
	}
	if cfg.Rescue.StallThreshold <= 0 {
		cfg.Rescue.StallThreshold = 2 * time.Hour
	}
	if cfg.Rescue.BatchSize <= 0 {
		cfg.Rescue.BatchSize = 100
	}
	if cfg.Reprocess.Interval <= 0 {
		cfg.Reprocess.Interval = 15 * time.Minute
	}
	if cfg.Reprocess.BatchSize <= 0 {
		cfg.Reprocess.BatchSize = 50
	}
	if cfg.Expander.Interval <= 0 {
		cfg.Expander.Interval = 5 * time.Second
	}
	if cfg.Expander.BatchSize <= 0 {
		cfg.Expander.BatchSize = 10
	}

	if cfg.Media.YtDlp == "" {
		cfg.Media.YtDlp = "yt-dlp"
	}
	if cfg.Media.FFmpeg == "" {
		cfg.Media.FFmpeg = "ffmpeg"
	}
	if cfg.Media.FFprobe == "" {
		cfg.Media.FFprobe = "ffprobe"
	}
	if cfg.Media.SampleRate <= 0 {
		cfg.Media.SampleRate = 16000
	}
	if cfg.Media.ChunkSeconds <= 0 {
		cfg.Media.ChunkSeconds = 900
	}
	if cfg.Media.ExtractorRPS <= 0 {
		cfg.Media.ExtractorRPS = 1
	}

	if cfg.Transcription.Engine == "" {
		cfg.Transcription.Engine = "whisper"
	}
	if cfg.Transcription.Model == "" {
		cfg.Transcription.Model = "large-v3"
	}
	if cfg.Transcription.Device == "" {
		cfg.Transcription.Device = "cuda"
	}
	if cfg.Transcription.FallbackEngine == "" && cfg.Transcription.Engine == "whisper" {
		cfg.Transcription.FallbackEngine = "whisper"
	}
	if cfg.Transcription.FallbackDevice == "" {
		cfg.Transcription.FallbackDevice = "cpu"
	}
	if cfg.Transcription.FallbackModel == "" {
		cfg.Transcription.FallbackModel = cfg.Transcription.Model
	}
	if cfg.Transcription.Binary == "" {
		cfg.Transcription.Binary = "whisper-ctranslate2"
	}
	if len(cfg.Transcription.ModelRanking) == 0 {
		cfg.Transcription.ModelRanking = []string{cfg.Transcription.Model}
	}

	if cfg.Diarization.Binary == "" {
		cfg.Diarization.Binary = "pyannote-diarize"
	}
	if cfg.Diarization.Model == "" {
		cfg.Diarization.Model = "pyannote/speaker-diarization-3.1"
	}

	cfg.Redis.TTL = normalizeTTL(cfg.Redis.TTL)

	if cfg.Outbox.Topic == "" {
		cfg.Outbox.Topic = "vidscribe.events"
	}
	if cfg.Outbox.Interval <= 0 {
		cfg.Outbox.Interval = 2 * time.Second
	}
	if cfg.Outbox.BatchSize <= 0 {
		cfg.Outbox.BatchSize = 100
	}
}

// Validate performs minimal sanity checks after defaults were applied.
func (c *Config) Validate() error {
	if c.Database.URL == "" {
		return errors.New("database.url is required")
	}
	if c.Rescue.StallThreshold <= 0 {
		return errors.New("rescue.stall_threshold must be positive")
	}
	if c.Media.ChunkOverlapSeconds < 0 || c.Media.ChunkOverlapSeconds >= c.Media.ChunkSeconds {
		return fmt.Errorf("media.chunk_overlap_seconds must be in [0, %d)", c.Media.ChunkSeconds)
	}
	primary := rankOf(c.Transcription.ModelRanking, c.Transcription.Model)
	if primary < 0 {
		return fmt.Errorf("transcription.model %q must appear in transcription.model_ranking", c.Transcription.Model)
	}
	// A transcript produced by the fallback must never qualify for reprocessing.
	if c.Transcription.FallbackEngine != "" {
		if fb := rankOf(c.Transcription.ModelRanking, c.Transcription.FallbackModel); fb < 0 || fb > primary {
			return fmt.Errorf("transcription.fallback_model %q must be ranked at least as high as %q",
				c.Transcription.FallbackModel, c.Transcription.Model)
		}
	}
	switch c.Transcription.Engine {
	case "whisper", "openai", "gemini":
	default:
		return fmt.Errorf("transcription.engine %q is not supported", c.Transcription.Engine)
	}
	return nil
}

// rankOf returns the position of m in ranking, or -1 when unranked.
func rankOf(ranking []string, m string) int {
	for i, r := range ranking {
		if strings.EqualFold(strings.TrimSpace(r), strings.TrimSpace(m)) {
			return i
		}
	}
	return -1
}

func normalizeTTL(d time.Duration) time.Duration {
	if d <= 0 {
		return time.Hour
	}
	return d
}
