package stt

import (
	"context"
	"fmt"

	"vidscribe/internal/config"
	"vidscribe/internal/domain/ports/adapter"
	"vidscribe/internal/infra/adapters/cmdrun"
)

type engineSpec struct {
	kind   string
	model  string
	device string
}

// NewEngines builds the primary engine and the optional fallback engine used
// once per chunk after a hardware fault. A nil fallback disables the retry.
func NewEngines(ctx context.Context, cfg config.TranscriptionConfig, runner cmdrun.Runner) (adapter.SpeechToText, adapter.SpeechToText, error) {
	primary, err := newEngine(ctx, cfg, engineSpec{kind: cfg.Engine, model: cfg.Model, device: cfg.Device}, runner)
	if err != nil {
		return nil, nil, fmt.Errorf("primary engine: %w", err)
	}
	if cfg.FallbackEngine == "" {
		return primary, nil, nil
	}
	fb := engineSpec{kind: cfg.FallbackEngine, model: cfg.FallbackModel, device: cfg.FallbackDevice}
	if fb.kind == cfg.Engine && fb.device == cfg.Device && fb.model == cfg.Model {
		// Same engine on the same device would hit the same fault.
		return primary, nil, nil
	}
	fallback, err := newEngine(ctx, cfg, fb, runner)
	if err != nil {
		return nil, nil, fmt.Errorf("fallback engine: %w", err)
	}
	return primary, fallback, nil
}

func newEngine(ctx context.Context, cfg config.TranscriptionConfig, s engineSpec, runner cmdrun.Runner) (adapter.SpeechToText, error) {
	switch s.kind {
	case "whisper":
		compute := cfg.ComputeType
		if s.device == "cpu" && compute == "" {
			compute = "int8"
		}
		return NewWhisperCLI(cfg.Binary, s.model, s.device, compute, cfg.Language, runner), nil
	case "openai":
		return NewOpenAI(cfg.OpenAIKey, cfg.OpenAIBaseURL, s.model, cfg.Language)
	case "gemini":
		return NewGemini(ctx, cfg.GeminiKey, s.model, cfg.Language)
	default:
		return nil, fmt.Errorf("unknown engine %q", s.kind)
	}
}
