package adapter

import (
	"context"
	"time"

	"vidscribe/internal/domain/model"
)

// Extractor resolves a source reference into video metadata. Failures are
// wrapped with domain.ErrExtraction when the reference is bad or has no
// retrievable metadata.
type Extractor interface {
	Resolve(ctx context.Context, url string) (*model.SourceInfo, error)
}

// Downloader fetches the best audio stream of one video into destDir and
// returns the file path. It does not retry.
type Downloader interface {
	Fetch(ctx context.Context, sourceID, destDir string) (string, error)
}

// Normalizer converts input media into a canonical mono waveform at a fixed
// sample rate and returns the new file's path.
type Normalizer interface {
	Normalize(ctx context.Context, inputPath string) (string, error)
}

// AudioSlicer probes and cuts normalized audio.
type AudioSlicer interface {
	Duration(ctx context.Context, path string) (time.Duration, error)
	Slice(ctx context.Context, path, destPath string, start, length time.Duration) error
}
