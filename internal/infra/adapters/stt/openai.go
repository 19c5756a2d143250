package stt

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/openai/openai-go/v2"
	"github.com/openai/openai-go/v2/option"

	"vidscribe/internal/domain/ports/adapter"
)

var _ adapter.SpeechToText = (*OpenAI)(nil)

// OpenAI transcribes chunks through the hosted audio transcription API.
type OpenAI struct {
	client    openai.Client
	modelName string
	language  string

	// request performs the API call and returns the raw verbose_json body.
	request func(ctx context.Context, chunkPath string) (string, error)
}

func NewOpenAI(apiKey, baseURL, model, language string) (*OpenAI, error) {
	if apiKey == "" {
		return nil, errors.New("openai: empty api key")
	}
	if model == "" {
		model = "whisper-1"
	}
	opts := []option.RequestOption{option.WithAPIKey(apiKey)}
	if baseURL != "" {
		opts = append(opts, option.WithBaseURL(baseURL))
	}
	o := &OpenAI{client: openai.NewClient(opts...), modelName: model, language: language}
	o.request = o.callAPI
	return o, nil
}

func (o *OpenAI) Name() string  { return "openai" }
func (o *OpenAI) Model() string { return o.modelName }

func (o *OpenAI) callAPI(ctx context.Context, chunkPath string) (string, error) {
	f, err := os.Open(chunkPath)
	if err != nil {
		return "", err
	}
	defer f.Close()

	params := openai.AudioTranscriptionNewParams{
		File:                   f,
		Model:                  openai.AudioModel(o.modelName),
		ResponseFormat:         openai.AudioResponseFormatVerboseJSON,
		TimestampGranularities: []string{"segment"},
	}
	if o.language != "" {
		params.Language = openai.String(o.language)
	}
	resp, err := o.client.Audio.Transcriptions.New(ctx, params)
	if err != nil {
		return "", fmt.Errorf("openai transcription: %w", err)
	}
	return resp.RawJSON(), nil
}

func (o *OpenAI) Transcribe(ctx context.Context, chunkPath string) (*adapter.Transcription, error) {
	raw, err := o.request(ctx, chunkPath)
	if err != nil {
		return nil, err
	}
	return parseVerboseJSON(raw)
}

type verboseJSON struct {
	Language string  `json:"language"`
	Text     string  `json:"text"`
	Duration float64 `json:"duration"`
	Segments []struct {
		Start      float64 `json:"start"`
		End        float64 `json:"end"`
		Text       string  `json:"text"`
		AvgLogprob float64 `json:"avg_logprob"`
	} `json:"segments"`
}

// parseVerboseJSON reads segments from a verbose_json body. A body with text
// but no segments becomes one segment spanning the reported duration.
func parseVerboseJSON(raw string) (*adapter.Transcription, error) {
	var v verboseJSON
	if err := json.Unmarshal([]byte(raw), &v); err != nil {
		return nil, fmt.Errorf("openai: parse transcription: %w", err)
	}
	out := &adapter.Transcription{Language: v.Language}
	for _, s := range v.Segments {
		out.Segments = append(out.Segments, adapter.RawSegment{
			Start:      s.Start,
			End:        s.End,
			Text:       strings.TrimSpace(s.Text),
			AvgLogprob: s.AvgLogprob,
			Confidence: confidenceFromLogprob(s.AvgLogprob),
		})
	}
	if len(out.Segments) == 0 && strings.TrimSpace(v.Text) != "" {
		out.Segments = []adapter.RawSegment{{Start: 0, End: v.Duration, Text: strings.TrimSpace(v.Text)}}
	}
	return out, nil
}
