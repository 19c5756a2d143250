//go:build !integration

package usecase_test

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"vidscribe/internal/domain"
	"vidscribe/internal/domain/model"
	"vidscribe/internal/domain/ports/repository"
	"vidscribe/internal/usecase"
)

func pendingJob(id string, kind model.JobKind, created time.Time) *model.Job {
	return &model.Job{
		ID:        id,
		Kind:      kind,
		SourceURL: "https://www.youtube.com/@" + id,
		Status:    model.JobStatusPending,
		CreatedAt: created,
	}
}

func channelInfo(ids ...string) *model.SourceInfo {
	info := &model.SourceInfo{SourceItem: model.SourceItem{ID: "UC123", Title: "channel"}}
	for _, id := range ids {
		info.Children = append(info.Children, model.SourceItem{ID: id, Title: "title " + id, DurationSeconds: 60})
	}
	return info
}

type expanderFixture struct {
	jobs      *MockJobRepo
	videos    *MockVideoRepo
	events    *MockOutboxRepo
	tm        *MockTxManager
	extractor *MockExtractor
	notifier  *MockNotifier
	uc        usecase.ExpanderUseCase
}

func newExpanderFixture(jobs ...*model.Job) *expanderFixture {
	f := &expanderFixture{
		jobs:      NewMockJobRepo(jobs...),
		videos:    NewMockVideoRepo(),
		events:    &MockOutboxRepo{},
		tm:        NewMockTxManager(),
		extractor: &MockExtractor{},
		notifier:  &MockNotifier{},
	}
	f.uc = usecase.NewExpanderUseCase(f.jobs, f.videos, f.events, f.tm, f.extractor, f.notifier, newTestLogger())
	return f
}

func TestExpanderUseCase_Expand(t *testing.T) {
	ctx := context.Background()

	t.Run("should insert one video per channel item in source order", func(t *testing.T) {
		f := newExpanderFixture(pendingJob("job-1", model.JobKindChannel, now()))
		f.extractor.ResolveFn = func(context.Context, string) (*model.SourceInfo, error) {
			return channelInfo("a", "b", "c"), nil
		}

		res, err := f.uc.Expand(ctx, "job-1")
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if res.Created != 3 || res.Skipped {
			t.Fatalf("expected 3 created, got %+v", res)
		}
		vs, _ := f.videos.ListByJob(ctx, nil, "job-1")
		for i, want := range []string{"a", "b", "c"} {
			if vs[i].SourceID != want || vs[i].Index != i || vs[i].Status != model.VideoStatusPending {
				t.Errorf("video %d: got %+v", i, vs[i])
			}
		}
		if got := f.jobs.get("job-1").Status; got != model.JobStatusExpanded {
			t.Errorf("expected job expanded, got %s", got)
		}
		if got := f.events.types(); len(got) != 1 || got[0] != model.EventJobExpanded {
			t.Errorf("expected one job.expanded event, got %v", got)
		}
	})

	t.Run("should insert exactly one video for a single job", func(t *testing.T) {
		f := newExpanderFixture(pendingJob("job-1", model.JobKindSingle, now()))
		f.extractor.ResolveFn = func(context.Context, string) (*model.SourceInfo, error) {
			return &model.SourceInfo{SourceItem: model.SourceItem{ID: "dQw4w9WgXcQ", Title: "t", DurationSeconds: 212}}, nil
		}
		res, err := f.uc.Expand(ctx, "job-1")
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		vs, _ := f.videos.ListByJob(ctx, nil, "job-1")
		if res.Created != 1 || len(vs) != 1 || vs[0].Index != 0 || vs[0].DurationSeconds != 212 {
			t.Fatalf("unexpected videos %+v", vs)
		}
	})

	t.Run("should not duplicate videos that already exist", func(t *testing.T) {
		f := newExpanderFixture(pendingJob("job-1", model.JobKindChannel, now()))
		f.videos = NewMockVideoRepo(&model.Video{ID: "v-a", JobID: "job-1", SourceID: "a", Index: 0, Status: model.VideoStatusCompleted})
		f.uc = usecase.NewExpanderUseCase(f.jobs, f.videos, f.events, f.tm, f.extractor, f.notifier, newTestLogger())
		f.extractor.ResolveFn = func(context.Context, string) (*model.SourceInfo, error) {
			return channelInfo("a", "b", "b"), nil
		}

		res, err := f.uc.Expand(ctx, "job-1")
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if res.Created != 1 || res.Existing != 1 {
			t.Fatalf("expected 1 created and 1 existing, got %+v", res)
		}
		vs, _ := f.videos.ListByJob(ctx, nil, "job-1")
		if len(vs) != 2 {
			t.Fatalf("expected 2 videos, got %d", len(vs))
		}
		if vs[0].Status != model.VideoStatusCompleted {
			t.Errorf("existing video must be untouched, got %s", vs[0].Status)
		}
	})

	t.Run("should be a no-op for a job that is no longer pending", func(t *testing.T) {
		j := pendingJob("job-1", model.JobKindChannel, now())
		j.Status = model.JobStatusExpanded
		f := newExpanderFixture(j)
		f.extractor.ResolveFn = func(context.Context, string) (*model.SourceInfo, error) {
			t.Fatal("extractor must not be called")
			return nil, nil
		}
		res, err := f.uc.Expand(ctx, "job-1")
		if err != nil || !res.Skipped {
			t.Fatalf("expected skipped result, got %+v, %v", res, err)
		}
		if f.tm.Calls != 0 {
			t.Errorf("expected no transaction, got %d", f.tm.Calls)
		}
	})

	t.Run("should fail the job without videos when metadata cannot be fetched", func(t *testing.T) {
		f := newExpanderFixture(pendingJob("job-1", model.JobKindChannel, now()))
		f.extractor.ResolveFn = func(context.Context, string) (*model.SourceInfo, error) {
			return nil, errors.New("ERROR: Unsupported URL")
		}

		_, err := f.uc.Expand(ctx, "job-1")
		if !errors.Is(err, domain.ErrExtraction) {
			t.Fatalf("expected extraction error, got %v", err)
		}
		j := f.jobs.get("job-1")
		if j.Status != model.JobStatusFailed || !strings.Contains(j.ErrorMessage, "Unsupported URL") {
			t.Errorf("expected failed job with message, got %+v", j)
		}
		if vs, _ := f.videos.ListByJob(ctx, nil, "job-1"); len(vs) != 0 {
			t.Errorf("expected no videos, got %d", len(vs))
		}
		if got := f.events.types(); len(got) != 1 || got[0] != model.EventJobFailed {
			t.Errorf("expected job.failed event, got %v", got)
		}
		if len(f.notifier.Sent) != 1 {
			t.Errorf("expected one notification, got %d", len(f.notifier.Sent))
		}
	})

	t.Run("should fail a channel job that lists no videos", func(t *testing.T) {
		f := newExpanderFixture(pendingJob("job-1", model.JobKindChannel, now()))
		f.extractor.ResolveFn = func(context.Context, string) (*model.SourceInfo, error) { return channelInfo(), nil }
		_, err := f.uc.Expand(ctx, "job-1")
		if !errors.Is(err, domain.ErrExtraction) {
			t.Fatalf("expected extraction error, got %v", err)
		}
		if f.jobs.get("job-1").Status != model.JobStatusFailed {
			t.Error("expected job failed")
		}
	})

	t.Run("should fail a single job that resolves to a playlist", func(t *testing.T) {
		f := newExpanderFixture(pendingJob("job-1", model.JobKindSingle, now()))
		f.extractor.ResolveFn = func(context.Context, string) (*model.SourceInfo, error) { return channelInfo("a", "b"), nil }
		_, err := f.uc.Expand(ctx, "job-1")
		if !errors.Is(err, domain.ErrExtraction) {
			t.Fatalf("expected extraction error, got %v", err)
		}
	})

	t.Run("should roll back when an insert fails", func(t *testing.T) {
		f := newExpanderFixture(pendingJob("job-1", model.JobKindChannel, now()))
		f.extractor.ResolveFn = func(context.Context, string) (*model.SourceInfo, error) { return channelInfo("a"), nil }
		f.videos.InsertFunc = func(context.Context, repository.Tx, *model.Video) (bool, error) {
			return false, errors.New("connection reset")
		}
		if _, err := f.uc.Expand(ctx, "job-1"); err == nil {
			t.Fatal("expected error")
		}
		if f.jobs.get("job-1").Status != model.JobStatusPending {
			t.Error("job must stay pending for the next attempt")
		}
	})
}

func TestExpanderUseCase_ExpandPending(t *testing.T) {
	ctx := context.Background()
	t0 := now()
	f := newExpanderFixture(
		pendingJob("job-ok", model.JobKindChannel, t0),
		pendingJob("job-bad", model.JobKindChannel, t0.Add(time.Second)),
		pendingJob("job-later", model.JobKindChannel, t0.Add(2*time.Second)),
	)
	f.extractor.ResolveFn = func(_ context.Context, url string) (*model.SourceInfo, error) {
		if strings.HasSuffix(url, "job-bad") {
			return nil, errors.New("HTTP Error 404")
		}
		return channelInfo("x", "y"), nil
	}

	n, err := f.uc.ExpandPending(ctx, 2)
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if n != 1 {
		t.Errorf("expected 1 expanded, got %d", n)
	}
	if f.jobs.get("job-bad").Status != model.JobStatusFailed {
		t.Error("failing job should be marked failed")
	}
	if f.jobs.get("job-later").Status != model.JobStatusPending {
		t.Error("job beyond the limit should stay pending")
	}
}
