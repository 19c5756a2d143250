package model

import "time"

// Transcript is the current transcription of a Video. It is replaced as a whole.
type Transcript struct {
	ID        string
	VideoID   string
	Model     string
	Language  string
	CreatedAt time.Time
	Segments  []Segment
}

// Segment is one time-bounded span of text. Offsets are milliseconds from the
// start of the full audio.
type Segment struct {
	ID           int64
	TranscriptID string
	Seq          int
	StartMS      int64
	EndMS        int64
	Text         string
	SpeakerID    string
	SpeakerLabel string
	AvgLogprob   float64
	Confidence   float64
}

// DurationMS returns the span covered by the segment.
func (s Segment) DurationMS() int64 {
	if s.EndMS < s.StartMS {
		return 0
	}
	return s.EndMS - s.StartMS
}
