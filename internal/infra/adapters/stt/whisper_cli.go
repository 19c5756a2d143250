// Package stt holds the speech-to-text engines the pipeline can run.
package stt

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strings"

	"vidscribe/internal/domain/ports/adapter"
	"vidscribe/internal/infra/adapters/cmdrun"
)

var _ adapter.SpeechToText = (*WhisperCLI)(nil)

// WhisperCLI runs a local faster-whisper build (whisper-ctranslate2 by
// default) and reads back its JSON output.
type WhisperCLI struct {
	Binary      string
	ModelName   string
	Device      string // cuda|cpu
	ComputeType string
	Language    string
	Runner      cmdrun.Runner
}

func NewWhisperCLI(binary, model, device, computeType, language string, runner cmdrun.Runner) *WhisperCLI {
	if binary == "" {
		binary = "whisper-ctranslate2"
	}
	if device == "" {
		device = "cuda"
	}
	if runner == nil {
		runner = cmdrun.Exec{}
	}
	return &WhisperCLI{
		Binary:      binary,
		ModelName:   model,
		Device:      device,
		ComputeType: computeType,
		Language:    language,
		Runner:      runner,
	}
}

// Name is "whisper-<device>", so primary and fallback engines are told apart
// in logs and metrics.
func (w *WhisperCLI) Name() string { return "whisper-" + w.Device }

func (w *WhisperCLI) Model() string { return w.ModelName }

func (w *WhisperCLI) buildArgs(chunkPath, outputDir string) []string {
	args := []string{
		chunkPath,
		"--model", w.ModelName,
		"--device", w.Device,
		"--output_format", "json",
		"--output_dir", outputDir,
		"--verbose", "False",
	}
	if w.ComputeType != "" {
		args = append(args, "--compute_type", w.ComputeType)
	}
	if w.Language != "" {
		args = append(args, "--language", w.Language)
	}
	return args
}

// Transcribe writes <chunk>.json into a sibling directory named after the
// device and parses its segments.
func (w *WhisperCLI) Transcribe(ctx context.Context, chunkPath string) (*adapter.Transcription, error) {
	outputDir := filepath.Join(filepath.Dir(chunkPath), "whisper-"+w.Device)
	if err := os.MkdirAll(outputDir, 0o755); err != nil {
		return nil, fmt.Errorf("whisper: ensure output dir: %w", err)
	}
	if _, err := w.Runner.Run(ctx, w.Binary, w.buildArgs(chunkPath, outputDir)...); err != nil {
		return nil, err
	}
	base := strings.TrimSuffix(filepath.Base(chunkPath), filepath.Ext(chunkPath))
	return loadWhisperJSON(filepath.Join(outputDir, base+".json"))
}

type whisperOutput struct {
	Language string               `json:"language"`
	Segments []adapter.RawSegment `json:"segments"`
}

func loadWhisperJSON(path string) (*adapter.Transcription, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("whisper: read output: %w", err)
	}
	return parseWhisperJSON(data)
}

func parseWhisperJSON(data []byte) (*adapter.Transcription, error) {
	var out whisperOutput
	if err := json.Unmarshal(data, &out); err != nil {
		return nil, fmt.Errorf("whisper: parse output: %w", err)
	}
	for i := range out.Segments {
		s := &out.Segments[i]
		s.Text = strings.TrimSpace(s.Text)
		if s.Confidence == 0 {
			s.Confidence = confidenceFromLogprob(s.AvgLogprob)
		}
	}
	return &adapter.Transcription{Language: out.Language, Segments: out.Segments}, nil
}

// confidenceFromLogprob maps an average token log-probability into [0, 1].
func confidenceFromLogprob(lp float64) float64 {
	if lp == 0 {
		return 0
	}
	c := math.Exp(lp)
	switch {
	case c < 0:
		return 0
	case c > 1:
		return 1
	}
	return c
}
