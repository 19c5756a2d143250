package model

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"

	"vidscribe/internal/domain"
)

type JobKind string

const (
	JobKindSingle  JobKind = "single"
	JobKindChannel JobKind = "channel"
)

type JobStatus string

const (
	JobStatusPending   JobStatus = "pending"
	JobStatusExpanded  JobStatus = "expanded"
	JobStatusCompleted JobStatus = "completed"
	JobStatusFailed    JobStatus = "failed"
)

// Job is a user request referencing one video (single) or an ordered list of
// videos (channel/playlist). After expansion, progress lives on its Videos.
type Job struct {
	ID           string
	Kind         JobKind
	SourceURL    string
	Status       JobStatus
	ErrorMessage string
	CreatedAt    time.Time
	UpdatedAt    time.Time
	ExpandedAt   *time.Time
}

func NewJob(id string, kind JobKind, sourceURL string) (*Job, error) {
	switch kind {
	case JobKindSingle, JobKindChannel:
	default:
		return nil, fmt.Errorf("%w: unknown job kind %q", domain.ErrInvalidArgument, kind)
	}
	sourceURL = strings.TrimSpace(sourceURL)
	u, err := url.Parse(sourceURL)
	if sourceURL == "" || err != nil || u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("%w: source url %q", domain.ErrInvalidArgument, sourceURL)
	}
	if id == "" {
		id = uuid.NewString()
	}
	now := time.Now().UTC()
	return &Job{
		ID:        id,
		Kind:      kind,
		SourceURL: sourceURL,
		Status:    JobStatusPending,
		CreatedAt: now,
		UpdatedAt: now,
	}, nil
}
