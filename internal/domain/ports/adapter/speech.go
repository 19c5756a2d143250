package adapter

import "context"

// RawSegment is one engine output record. Times are seconds relative to the
// start of the transcribed file.
type RawSegment struct {
	Start      float64 `json:"start"`
	End        float64 `json:"end"`
	Text       string  `json:"text"`
	AvgLogprob float64 `json:"avg_logprob"`
	Confidence float64 `json:"confidence"`
}

type Transcription struct {
	Language string
	Segments []RawSegment
}

// SpeechToText is implemented by every transcription engine.
type SpeechToText interface {
	Name() string
	Model() string
	Transcribe(ctx context.Context, chunkPath string) (*Transcription, error)
}

// Turn is one diarized speaker turn, in seconds over the full audio.
type Turn struct {
	Start   float64 `json:"start"`
	End     float64 `json:"end"`
	Speaker string  `json:"speaker"`
}

// Diarizer attributes audio to speakers. Available reports whether
// credentials and model are configured.
type Diarizer interface {
	Available() bool
	Diarize(ctx context.Context, audioPath string) ([]Turn, error)
}
