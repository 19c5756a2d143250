package repository

import (
	"context"

	"vidscribe/internal/domain/model"
)

type TranscriptRepository interface {
	// Replace deletes the video's current transcript (segments cascade) and
	// inserts t with its segments. It must run inside a tx.
	Replace(ctx context.Context, tx Tx, t *model.Transcript) error

	// FindByVideoID returns the current transcript with segments ordered by start.
	FindByVideoID(ctx context.Context, tx Tx, videoID string) (*model.Transcript, error)
}
