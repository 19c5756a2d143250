//go:build !integration

package main

import (
	"bytes"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"vidscribe/internal/domain/model"
	"vidscribe/internal/domain/ports/repository"
	"vidscribe/internal/usecase"
)

func TestRootCommand_Subcommands(t *testing.T) {
	root := newRootCommand()
	want := []string{"worker", "serve", "submit", "expand", "status", "show", "rescue", "reprocess", "retry"}
	for _, name := range want {
		cmd, _, err := root.Find([]string{name})
		require.NoError(t, err, name)
		assert.Equal(t, name, cmd.Name())
	}
	reprocess, _, _ := root.Find([]string{"reprocess"})
	assert.NotNil(t, reprocess.Flags().Lookup("dry-run"))
}

func TestRetryCommand_RequiresTarget(t *testing.T) {
	root := newRootCommand()
	retry, _, err := root.Find([]string{"retry"})
	require.NoError(t, err)
	assert.Error(t, retry.Args(retry, nil))
	assert.NoError(t, retry.Args(retry, []string{"vid-1"}))
}

func TestFormatMS(t *testing.T) {
	assert.Equal(t, "00:00:00.000", formatMS(0))
	assert.Equal(t, "00:15:30.250", formatMS(930_250))
	assert.Equal(t, "02:00:01.001", formatMS(7_201_001))
}

func TestTruncate(t *testing.T) {
	assert.Equal(t, "short", truncate("  short ", 10))
	assert.Equal(t, "abcd…", truncate("abcdefgh", 5))
}

func TestRenderTranscript(t *testing.T) {
	var buf bytes.Buffer
	renderTranscript(&buf, &model.Transcript{
		VideoID: "vid-1",
		Model:   "large-v3",
		Segments: []model.Segment{
			{StartMS: 0, EndMS: 1000, Text: "hello", SpeakerLabel: "Speaker 1"},
			{StartMS: 61_500, EndMS: 62_000, Text: "again"},
		},
	})
	out := buf.String()
	assert.Contains(t, out, "model large-v3")
	assert.Contains(t, out, "[00:00:00.000] Speaker 1: hello")
	assert.Contains(t, out, "[00:01:01.500] again")
}

func TestRenderQueue(t *testing.T) {
	var buf bytes.Buffer
	jobs := []*usecase.JobView{{
		Job: &model.Job{ID: "job-1", Kind: model.JobKindChannel, Status: model.JobStatusExpanded,
			SourceURL: "https://www.youtube.com/@chan", CreatedAt: time.Now().Add(-time.Hour)},
		Counts: map[model.VideoStatus]int{model.VideoStatusCompleted: 3, model.VideoStatusFailed: 1, model.VideoStatusPending: 2},
	}}
	renderQueue(&buf, map[model.VideoStatus]int{model.VideoStatusPending: 1200}, jobs, false)
	out := buf.String()
	assert.Contains(t, out, "1,200")
	assert.Contains(t, out, "4/6")
	assert.Contains(t, out, "1 hour ago")
}

func TestRenderRequeued(t *testing.T) {
	var buf bytes.Buffer
	renderRequeued(&buf, "Would requeue", []repository.Requeued{
		{VideoID: "v1", JobID: "j1", PreviousStatus: model.VideoStatusCompleted, Model: "base"},
	})
	out := buf.String()
	assert.True(t, strings.HasPrefix(out, "Would requeue 1 videos"))
	assert.Contains(t, out, "base")
}
