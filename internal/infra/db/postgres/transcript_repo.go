package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/pgxpool"

	"vidscribe/internal/domain/model"
	"vidscribe/internal/domain/ports/repository"
)

var _ repository.TranscriptRepository = (*transcriptRepo)(nil)

type transcriptRepo struct {
	pool *pgxpool.Pool
}

func NewTranscriptRepo(pool *pgxpool.Pool) *transcriptRepo {
	return &transcriptRepo{pool: pool}
}

// Replace removes the current transcript of t.VideoID and inserts t with all
// its segments in one batch. Callers own the surrounding transaction.
func (r *transcriptRepo) Replace(ctx context.Context, tx repository.Tx, t *model.Transcript) error {
	ptx, err := requireTx(tx)
	if err != nil {
		return err
	}
	if t.ID == "" {
		t.ID = uuid.NewString()
	}
	if t.CreatedAt.IsZero() {
		t.CreatedAt = time.Now().UTC()
	}

	if _, err := ptx.Exec(ctx, `DELETE FROM transcripts WHERE video_id = $1;`, t.VideoID); err != nil {
		return fmt.Errorf("delete transcript: %w", err)
	}
	const insertTranscript = `
INSERT INTO transcripts (id, video_id, model, language, created_at)
VALUES ($1, $2, $3, $4, $5);`
	if _, err := ptx.Exec(ctx, insertTranscript, t.ID, t.VideoID, t.Model, t.Language, t.CreatedAt); err != nil {
		return fmt.Errorf("insert transcript: %w", err)
	}
	if len(t.Segments) == 0 {
		return nil
	}

	const insertSegment = `
INSERT INTO segments (transcript_id, seq, start_ms, end_ms, text, speaker_id, speaker_label, avg_logprob, confidence)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
RETURNING id;`
	batch := &pgx.Batch{}
	for i := range t.Segments {
		s := &t.Segments[i]
		s.TranscriptID = t.ID
		s.Seq = i
		batch.Queue(insertSegment, t.ID, s.Seq, s.StartMS, s.EndMS, s.Text, s.SpeakerID, s.SpeakerLabel, s.AvgLogprob, s.Confidence)
	}
	br := ptx.SendBatch(ctx, batch)
	for i := range t.Segments {
		if err := br.QueryRow().Scan(&t.Segments[i].ID); err != nil {
			_ = br.Close()
			return fmt.Errorf("insert segment %d: %w", i, err)
		}
	}
	if err := br.Close(); err != nil {
		return fmt.Errorf("close segment batch: %w", err)
	}
	return nil
}

func (r *transcriptRepo) FindByVideoID(ctx context.Context, tx repository.Tx, videoID string) (*model.Transcript, error) {
	row, err := pickRow(ctx, r.pool, tx,
		`SELECT id, video_id, model, language, created_at FROM transcripts WHERE video_id = $1;`, videoID)
	if err != nil {
		return nil, err
	}
	var t model.Transcript
	if err := row.Scan(&t.ID, &t.VideoID, &t.Model, &t.Language, &t.CreatedAt); err != nil {
		return nil, scanErr(err)
	}

	const q = `
SELECT id, transcript_id, seq, start_ms, end_ms, text, speaker_id, speaker_label, avg_logprob, confidence
  FROM segments
 WHERE transcript_id = $1
 ORDER BY start_ms, seq;`
	rows, err := queryRows(ctx, r.pool, tx, q, t.ID)
	if err != nil {
		return nil, fmt.Errorf("list segments: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var s model.Segment
		if err := rows.Scan(&s.ID, &s.TranscriptID, &s.Seq, &s.StartMS, &s.EndMS, &s.Text,
			&s.SpeakerID, &s.SpeakerLabel, &s.AvgLogprob, &s.Confidence); err != nil {
			return nil, scanErr(err)
		}
		t.Segments = append(t.Segments, s)
	}
	return &t, rows.Err()
}
