//go:build !integration

package model

import (
	"errors"
	"testing"

	"vidscribe/internal/domain"
)

// --- Job Model Tests ---

func TestNewJob(t *testing.T) {
	t.Run("should create a pending job", func(t *testing.T) {
		job, err := NewJob("", JobKindChannel, " https://www.youtube.com/@example/videos ")
		if err != nil {
			t.Fatalf("expected no error, but got: %v", err)
		}
		if job.ID == "" {
			t.Error("expected job ID to be generated")
		}
		if job.Status != JobStatusPending {
			t.Errorf("expected status pending, got %s", job.Status)
		}
		if job.SourceURL != "https://www.youtube.com/@example/videos" {
			t.Errorf("expected trimmed url, got %q", job.SourceURL)
		}
	})

	t.Run("should reject unknown kind", func(t *testing.T) {
		_, err := NewJob("", JobKind("playlist-ish"), "https://example.com/x")
		if !errors.Is(err, domain.ErrInvalidArgument) {
			t.Fatalf("expected ErrInvalidArgument, got %v", err)
		}
	})

	t.Run("should reject relative or empty url", func(t *testing.T) {
		for _, raw := range []string{"", "watch?v=abc", "://nope"} {
			if _, err := NewJob("", JobKindSingle, raw); !errors.Is(err, domain.ErrInvalidArgument) {
				t.Errorf("url %q: expected ErrInvalidArgument, got %v", raw, err)
			}
		}
	})
}

// --- Video state machine ---

func TestCanAdvance(t *testing.T) {
	cases := []struct {
		from, to VideoStatus
		want     bool
	}{
		{VideoStatusPending, VideoStatusDownloading, true},
		{VideoStatusDownloading, VideoStatusTranscoding, true},
		{VideoStatusTranscoding, VideoStatusTranscribing, true},
		{VideoStatusTranscribing, VideoStatusCompleted, true},
		{VideoStatusDownloading, VideoStatusTranscribing, false},
		{VideoStatusTranscribing, VideoStatusDownloading, false},
		{VideoStatusCompleted, VideoStatusPending, false},
		{VideoStatusDownloading, VideoStatusFailed, true},
		{VideoStatusTranscribing, VideoStatusFailed, true},
		{VideoStatusPending, VideoStatusFailed, false},
		{VideoStatusCompleted, VideoStatusFailed, false},
		{VideoStatusFailed, VideoStatusPending, false},
	}
	for _, c := range cases {
		if got := CanAdvance(c.from, c.to); got != c.want {
			t.Errorf("CanAdvance(%s, %s) = %v, want %v", c.from, c.to, got, c.want)
		}
	}
}

func TestCanRequeue(t *testing.T) {
	if CanRequeue(VideoStatusPending) {
		t.Error("pending videos are already queued")
	}
	for _, s := range []VideoStatus{VideoStatusDownloading, VideoStatusTranscoding, VideoStatusTranscribing, VideoStatusCompleted, VideoStatusFailed} {
		if !CanRequeue(s) {
			t.Errorf("expected %s to be requeueable", s)
		}
	}
}

// --- Model ranking ---

func TestModelRanking(t *testing.T) {
	r := ModelRanking{"large-v3", "large-v2", "medium", "small"}

	t.Run("should outrank strictly lower models only", func(t *testing.T) {
		if !r.Outranks("large-v3", "medium") {
			t.Error("large-v3 should outrank medium")
		}
		if r.Outranks("medium", "medium") {
			t.Error("a model must not outrank itself")
		}
		if r.Outranks("small", "large-v2") {
			t.Error("small should not outrank large-v2")
		}
	})

	t.Run("should treat unranked recorded models as lowest", func(t *testing.T) {
		if !r.Outranks("small", "tiny.en") {
			t.Error("any ranked model should outrank an unranked one")
		}
		if r.Outranks("tiny.en", "small") {
			t.Error("unranked candidate must never outrank")
		}
	})

	t.Run("should be case insensitive", func(t *testing.T) {
		if r.Rank(" Large-V2 ") != 1 {
			t.Errorf("expected rank 1, got %d", r.Rank(" Large-V2 "))
		}
	})

	t.Run("should list models at least as good as the candidate", func(t *testing.T) {
		got := r.AtLeast("large-v2")
		if len(got) != 2 || got[0] != "large-v3" || got[1] != "large-v2" {
			t.Errorf("unexpected AtLeast result: %v", got)
		}
		if r.AtLeast("whisper-1") != nil {
			t.Error("unranked candidate should yield nil")
		}
	})
}
