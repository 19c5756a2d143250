package model

import "time"

type VideoStatus string

const (
	VideoStatusPending      VideoStatus = "pending"
	VideoStatusDownloading  VideoStatus = "downloading"
	VideoStatusTranscoding  VideoStatus = "transcoding"
	VideoStatusTranscribing VideoStatus = "transcribing"
	VideoStatusCompleted    VideoStatus = "completed"
	VideoStatusFailed       VideoStatus = "failed"
)

// stageOrder is the only direction a claimed video may advance in.
var stageOrder = map[VideoStatus]int{
	VideoStatusPending:      0,
	VideoStatusDownloading:  1,
	VideoStatusTranscoding:  2,
	VideoStatusTranscribing: 3,
	VideoStatusCompleted:    4,
}

// InFlightStatuses are the states a worker holds a video in between claim and finish.
var InFlightStatuses = []VideoStatus{
	VideoStatusDownloading,
	VideoStatusTranscoding,
	VideoStatusTranscribing,
}

func (s VideoStatus) IsTerminal() bool {
	return s == VideoStatusCompleted || s == VideoStatusFailed
}

func (s VideoStatus) IsInFlight() bool {
	for _, st := range InFlightStatuses {
		if s == st {
			return true
		}
	}
	return false
}

// CanAdvance reports whether a worker may move a video from one state to another.
// Moves go forward by exactly one stage, or to failed from any in-flight state.
func CanAdvance(from, to VideoStatus) bool {
	if to == VideoStatusFailed {
		return from.IsInFlight()
	}
	fi, ok := stageOrder[from]
	if !ok {
		return false
	}
	ti, ok := stageOrder[to]
	if !ok {
		return false
	}
	return ti == fi+1
}

// CanRequeue reports whether a video in the given state may be reset to pending
// by rescue (in-flight), reprocessing (completed) or manual retry (failed).
func CanRequeue(from VideoStatus) bool {
	return from.IsInFlight() || from.IsTerminal()
}

// Video is one unit of work. ClaimToken identifies the claim a worker holds;
// every state write by that worker is conditioned on it.
type Video struct {
	ID              string
	JobID           string
	SourceID        string
	Index           int
	Title           string
	DurationSeconds float64
	Status          VideoStatus
	ClaimToken      string
	Attempts        int
	ErrorMessage    string
	FailedAt        *time.Time
	CreatedAt       time.Time
	UpdatedAt       time.Time
}
