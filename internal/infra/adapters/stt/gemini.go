package stt

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strings"

	"google.golang.org/genai"

	"vidscribe/internal/domain/ports/adapter"
)

var _ adapter.SpeechToText = (*Gemini)(nil)

// Inline request parts are capped by the API; larger chunks go through the
// Files API.
const geminiInlineLimit = 18 << 20

const geminiPrompt = `Transcribe this audio verbatim. Split the transcript into segments of at most
thirty seconds at natural sentence boundaries. Report start and end in seconds
from the beginning of the audio and the detected ISO-639-1 language code.`

// Gemini transcribes chunks with a multimodal Gemini model constrained to a
// JSON response schema.
type Gemini struct {
	client    *genai.Client
	modelName string
	language  string

	generate func(ctx context.Context, chunkPath string) (string, error)
}

func NewGemini(ctx context.Context, apiKey, model, language string) (*Gemini, error) {
	if apiKey == "" {
		return nil, errors.New("gemini: empty api key")
	}
	if model == "" {
		model = "gemini-2.5-flash"
	}
	c, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, err
	}
	g := &Gemini{client: c, modelName: model, language: language}
	g.generate = g.callAPI
	return g, nil
}

func (g *Gemini) Name() string  { return "gemini" }
func (g *Gemini) Model() string { return g.modelName }

func transcriptSchema() *genai.Schema {
	return &genai.Schema{
		Type: genai.TypeObject,
		Properties: map[string]*genai.Schema{
			"language": {Type: genai.TypeString},
			"segments": {
				Type: genai.TypeArray,
				Items: &genai.Schema{
					Type: genai.TypeObject,
					Properties: map[string]*genai.Schema{
						"start": {Type: genai.TypeNumber},
						"end":   {Type: genai.TypeNumber},
						"text":  {Type: genai.TypeString},
					},
					Required: []string{"start", "end", "text"},
				},
			},
		},
		Required: []string{"segments"},
	}
}

func (g *Gemini) audioPart(ctx context.Context, chunkPath string) (*genai.Part, func(), error) {
	st, err := os.Stat(chunkPath)
	if err != nil {
		return nil, nil, err
	}
	if st.Size() <= geminiInlineLimit {
		data, err := os.ReadFile(chunkPath)
		if err != nil {
			return nil, nil, err
		}
		return genai.NewPartFromBytes(data, "audio/wav"), func() {}, nil
	}
	f, err := g.client.Files.UploadFromPath(ctx, chunkPath, &genai.UploadFileConfig{MIMEType: "audio/wav"})
	if err != nil {
		return nil, nil, fmt.Errorf("gemini upload: %w", err)
	}
	cleanup := func() {
		_, _ = g.client.Files.Delete(context.WithoutCancel(ctx), f.Name, nil)
	}
	return genai.NewPartFromURI(f.URI, f.MIMEType), cleanup, nil
}

func (g *Gemini) callAPI(ctx context.Context, chunkPath string) (string, error) {
	part, cleanup, err := g.audioPart(ctx, chunkPath)
	if err != nil {
		return "", err
	}
	defer cleanup()

	prompt := geminiPrompt
	if g.language != "" {
		prompt += "\nThe spoken language is " + g.language + "."
	}
	contents := []*genai.Content{{
		Role:  genai.RoleUser,
		Parts: []*genai.Part{part, genai.NewPartFromText(prompt)},
	}}
	resp, err := g.client.Models.GenerateContent(ctx, g.modelName, contents, &genai.GenerateContentConfig{
		ResponseMIMEType: "application/json",
		ResponseSchema:   transcriptSchema(),
	})
	if err != nil {
		return "", fmt.Errorf("gemini generate: %w", err)
	}
	return resp.Text(), nil
}

func (g *Gemini) Transcribe(ctx context.Context, chunkPath string) (*adapter.Transcription, error) {
	raw, err := g.generate(ctx, chunkPath)
	if err != nil {
		return nil, err
	}
	return parseGeminiJSON(raw)
}

func parseGeminiJSON(raw string) (*adapter.Transcription, error) {
	raw = strings.TrimSpace(raw)
	raw = strings.TrimPrefix(raw, "```json")
	raw = strings.TrimSuffix(strings.TrimPrefix(raw, "```"), "```")
	var body struct {
		Language string               `json:"language"`
		Segments []adapter.RawSegment `json:"segments"`
	}
	if err := json.Unmarshal([]byte(strings.TrimSpace(raw)), &body); err != nil {
		return nil, fmt.Errorf("gemini: parse transcription: %w", err)
	}
	segs := body.Segments[:0]
	for _, s := range body.Segments {
		s.Text = strings.TrimSpace(s.Text)
		if s.Text == "" || s.End < s.Start {
			continue
		}
		segs = append(segs, s)
	}
	return &adapter.Transcription{Language: body.Language, Segments: segs}, nil
}
