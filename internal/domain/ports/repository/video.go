package repository

import (
	"context"
	"time"

	"vidscribe/internal/domain/model"
)

// Requeued describes one video a sweep moved back to pending.
type Requeued struct {
	VideoID        string
	JobID          string
	PreviousStatus model.VideoStatus
	Model          string
}

// VideoClaimer hands out pending videos to workers.
//
// Concurrent ClaimNext calls partition the pending set: no two callers ever
// receive the same video while it is held, and candidates are handed out in
// creation order (oldest job first, then by index). Any store with row-level
// locking that can skip locked rows satisfies this contract.
//
// ClaimNext atomically moves the chosen video from pending to downloading and
// stamps it with a fresh claim token. It returns domain.ErrNotFound when
// nothing is pending.
type VideoClaimer interface {
	ClaimNext(ctx context.Context) (*model.Video, error)
}

type VideoRepository interface {
	VideoClaimer

	// Insert adds v unless a video with the same (job, source id) exists.
	// It reports whether a row was created.
	Insert(ctx context.Context, tx Tx, v *model.Video) (bool, error)
	FindByID(ctx context.Context, tx Tx, id string) (*model.Video, error)
	ListByJob(ctx context.Context, tx Tx, jobID string) ([]*model.Video, error)
	ListFailed(ctx context.Context, tx Tx, jobID string, limit int) ([]*model.Video, error)

	// CountByStatus counts videos per status. An empty jobID counts all videos.
	CountByStatus(ctx context.Context, tx Tx, jobID string) (map[model.VideoStatus]int, error)

	// The writes below belong to the worker holding claimToken. They return
	// domain.ErrClaimLost when the row is no longer held by that claim in the
	// expected state.
	Advance(ctx context.Context, tx Tx, id, claimToken string, from, to model.VideoStatus) error
	Touch(ctx context.Context, tx Tx, id, claimToken string) error
	MarkFailed(ctx context.Context, tx Tx, id, claimToken, errMsg string, at time.Time) error
	Complete(ctx context.Context, tx Tx, id, claimToken string) error

	// RequeueStalled resets in-flight videos untouched since cutoff to pending,
	// skipping rows locked by a concurrent transaction.
	RequeueStalled(ctx context.Context, cutoff time.Time, limit int) ([]Requeued, error)

	// ListReprocessCandidates returns completed videos whose current transcript
	// was produced by a model outside keep.
	ListReprocessCandidates(ctx context.Context, keep []string, limit int) ([]Requeued, error)

	// RequeueForReprocess resets completed videos whose current transcript model
	// is outside keep back to pending.
	RequeueForReprocess(ctx context.Context, keep []string, limit int) ([]Requeued, error)

	// RetryFailed resets the given failed videos to pending. Ids that are not
	// failed or are locked are skipped.
	RetryFailed(ctx context.Context, ids []string) ([]Requeued, error)
}
