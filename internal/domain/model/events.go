package model

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

const (
	EventVideoCompleted = "video.completed"
	EventVideoFailed    = "video.failed"
	EventJobExpanded    = "job.expanded"
	EventJobFailed      = "job.failed"
)

// Event is a state change recorded in the outbox in the same transaction as
// the change itself and relayed to downstream consumers at least once.
type Event struct {
	ID          string
	Type        string
	AggregateID string
	Payload     json.RawMessage
	OccurredAt  time.Time
}

func newEvent(eventType, aggregateID string, payload any) Event {
	b, _ := json.Marshal(payload)
	return Event{
		ID:          uuid.NewString(),
		Type:        eventType,
		AggregateID: aggregateID,
		Payload:     b,
		OccurredAt:  time.Now().UTC(),
	}
}

func NewVideoCompletedEvent(v *Video, t *Transcript) Event {
	return newEvent(EventVideoCompleted, v.ID, struct {
		VideoID      string `json:"video_id"`
		JobID        string `json:"job_id"`
		SourceID     string `json:"source_id"`
		TranscriptID string `json:"transcript_id"`
		Model        string `json:"model"`
		Segments     int    `json:"segments"`
	}{v.ID, v.JobID, v.SourceID, t.ID, t.Model, len(t.Segments)})
}

func NewVideoFailedEvent(v *Video, stage, message string) Event {
	return newEvent(EventVideoFailed, v.ID, struct {
		VideoID  string `json:"video_id"`
		JobID    string `json:"job_id"`
		SourceID string `json:"source_id"`
		Stage    string `json:"stage"`
		Error    string `json:"error"`
	}{v.ID, v.JobID, v.SourceID, stage, message})
}

func NewJobExpandedEvent(j *Job, videos int) Event {
	return newEvent(EventJobExpanded, j.ID, struct {
		JobID  string `json:"job_id"`
		Kind   string `json:"kind"`
		Videos int    `json:"videos"`
	}{j.ID, string(j.Kind), videos})
}

func NewJobFailedEvent(j *Job, message string) Event {
	return newEvent(EventJobFailed, j.ID, struct {
		JobID string `json:"job_id"`
		Error string `json:"error"`
	}{j.ID, message})
}
