package pipeline

import (
	"math"
	"strings"
	"time"

	"vidscribe/internal/domain/model"
	"vidscribe/internal/domain/ports/adapter"
)

// Chunk is one transcription window over the normalized audio. [Start, End)
// is the range the chunk is responsible for; audio is read from ReadStart,
// which precedes Start by the configured overlap (never below zero).
type Chunk struct {
	Index     int
	Start     time.Duration
	End       time.Duration
	ReadStart time.Duration
}

func (c Chunk) ReadLength() time.Duration { return c.End - c.ReadStart }

// PlanChunks splits total into ceil(total/size) windows that tile [0, total)
// without gaps. It returns nil for a non-positive total or size.
func PlanChunks(total, size, overlap time.Duration) []Chunk {
	if total <= 0 || size <= 0 {
		return nil
	}
	if overlap < 0 || overlap >= size {
		overlap = 0
	}
	totalMS, sizeMS := total.Milliseconds(), size.Milliseconds()
	if totalMS == 0 || sizeMS == 0 {
		return nil
	}
	n := int((totalMS + sizeMS - 1) / sizeMS)
	chunks := make([]Chunk, 0, n)
	for i := 0; i < n; i++ {
		start := time.Duration(int64(i)*sizeMS) * time.Millisecond
		end := time.Duration(min(int64(i+1)*sizeMS, totalMS)) * time.Millisecond
		read := start - overlap
		if read < 0 {
			read = 0
		}
		chunks = append(chunks, Chunk{Index: i, Start: start, End: end, ReadStart: read})
	}
	return chunks
}

func secondsToMS(s float64) int64 {
	return int64(math.Round(s * 1000))
}

// placeSegments shifts raw chunk-relative output onto the global timeline.
// Segments whose midpoint falls before the chunk's nominal start were already
// produced by the previous chunk and are dropped; kept ones are clamped to
// [Start, End) so neighbouring chunks never cover the same range.
func placeSegments(c Chunk, raw []adapter.RawSegment) []model.Segment {
	base := c.ReadStart.Milliseconds()
	lo, hi := base, c.End.Milliseconds()
	out := make([]model.Segment, 0, len(raw))
	for _, r := range raw {
		start := base + secondsToMS(r.Start)
		end := base + secondsToMS(r.End)
		if end < start {
			end = start
		}
		start = max(lo, min(start, hi))
		end = max(lo, min(end, hi))
		if c.ReadStart < c.Start {
			if (start+end)/2 < c.Start.Milliseconds() {
				continue
			}
			start = max(start, c.Start.Milliseconds())
		}
		out = append(out, model.Segment{
			StartMS:    start,
			EndMS:      end,
			Text:       strings.TrimSpace(r.Text),
			AvgLogprob: r.AvgLogprob,
			Confidence: r.Confidence,
		})
	}
	return out
}
