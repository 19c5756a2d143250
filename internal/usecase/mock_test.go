//go:build !integration

package usecase_test

import (
	"context"
	"io"
	"sort"
	"sync"
	"time"

	"github.com/jackc/pgx/v4"
	"github.com/rs/zerolog"

	"vidscribe/internal/domain"
	"vidscribe/internal/domain/model"
	"vidscribe/internal/domain/ports/adapter"
	"vidscribe/internal/domain/ports/repository"
)

func now() time.Time { return time.Now().Truncate(time.Millisecond) }

func newTestLogger() *zerolog.Logger {
	logger := zerolog.New(io.Discard)
	return &logger
}

// =============================
// Adapters
// =============================

// ---- Mock Extractor ----

type MockExtractor struct {
	mu        sync.Mutex
	Calls     []string
	ResolveFn func(ctx context.Context, url string) (*model.SourceInfo, error)
}

var _ adapter.Extractor = (*MockExtractor)(nil)

func (m *MockExtractor) Resolve(ctx context.Context, url string) (*model.SourceInfo, error) {
	m.mu.Lock()
	m.Calls = append(m.Calls, url)
	m.mu.Unlock()
	return m.ResolveFn(ctx, url)
}

// ---- Mock Notifier ----

type MockNotifier struct {
	mu   sync.Mutex
	Sent []string
}

var _ adapter.Notifier = (*MockNotifier)(nil)

func (m *MockNotifier) Notify(_ context.Context, text string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Sent = append(m.Sent, text)
	return nil
}

// =============================
// Repositories
// =============================

// ---- Mock JobRepository ----

type MockJobRepo struct {
	mu   sync.Mutex
	byID map[string]*model.Job

	SaveFunc        func(ctx context.Context, tx repository.Tx, job *model.Job) error
	ListPendingFunc func(ctx context.Context, tx repository.Tx, limit int) ([]*model.Job, error)
}

var _ repository.JobRepository = (*MockJobRepo)(nil)

func NewMockJobRepo(jobs ...*model.Job) *MockJobRepo {
	r := &MockJobRepo{byID: map[string]*model.Job{}}
	for _, j := range jobs {
		cp := *j
		r.byID[j.ID] = &cp
	}
	return r
}

func (r *MockJobRepo) Save(ctx context.Context, tx repository.Tx, job *model.Job) error {
	if r.SaveFunc != nil {
		return r.SaveFunc(ctx, tx, job)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	cp := *job
	r.byID[job.ID] = &cp
	return nil
}

func (r *MockJobRepo) FindByID(_ context.Context, _ repository.Tx, id string) (*model.Job, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	j, ok := r.byID[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	cp := *j
	return &cp, nil
}

func (r *MockJobRepo) LockByID(ctx context.Context, tx repository.Tx, id string) (*model.Job, error) {
	return r.FindByID(ctx, tx, id)
}

func (r *MockJobRepo) ListPending(ctx context.Context, tx repository.Tx, limit int) ([]*model.Job, error) {
	if r.ListPendingFunc != nil {
		return r.ListPendingFunc(ctx, tx, limit)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*model.Job
	for _, j := range r.byID {
		if j.Status == model.JobStatusPending {
			cp := *j
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, k int) bool { return out[i].CreatedAt.Before(out[k].CreatedAt) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (r *MockJobRepo) ListRecent(_ context.Context, _ repository.Tx, limit int) ([]*model.Job, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*model.Job
	for _, j := range r.byID {
		cp := *j
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, k int) bool { return out[i].CreatedAt.After(out[k].CreatedAt) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (r *MockJobRepo) UpdateStatus(_ context.Context, _ repository.Tx, id string, from, to model.JobStatus, errMsg string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	j, ok := r.byID[id]
	if !ok {
		return domain.ErrNotFound
	}
	if j.Status != from {
		return domain.ErrInvalidTransition
	}
	j.Status = to
	j.ErrorMessage = errMsg
	return nil
}

func (r *MockJobRepo) get(id string) model.Job {
	r.mu.Lock()
	defer r.mu.Unlock()
	return *r.byID[id]
}

// ---- Mock VideoRepository ----

type MockVideoRepo struct {
	mu     sync.Mutex
	videos []*model.Video

	InsertFunc                  func(ctx context.Context, tx repository.Tx, v *model.Video) (bool, error)
	RequeueStalledFunc          func(ctx context.Context, cutoff time.Time, limit int) ([]repository.Requeued, error)
	ListReprocessCandidatesFunc func(ctx context.Context, keep []string, limit int) ([]repository.Requeued, error)
	RequeueForReprocessFunc     func(ctx context.Context, keep []string, limit int) ([]repository.Requeued, error)
	RetryFailedFunc             func(ctx context.Context, ids []string) ([]repository.Requeued, error)
}

var _ repository.VideoRepository = (*MockVideoRepo)(nil)

func NewMockVideoRepo(vs ...*model.Video) *MockVideoRepo {
	r := &MockVideoRepo{}
	for _, v := range vs {
		cp := *v
		r.videos = append(r.videos, &cp)
	}
	return r
}

func (r *MockVideoRepo) ClaimNext(context.Context) (*model.Video, error) {
	return nil, domain.ErrNotFound
}

func (r *MockVideoRepo) Insert(ctx context.Context, tx repository.Tx, v *model.Video) (bool, error) {
	if r.InsertFunc != nil {
		return r.InsertFunc(ctx, tx, v)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, e := range r.videos {
		if e.JobID == v.JobID && e.SourceID == v.SourceID {
			return false, nil
		}
	}
	cp := *v
	r.videos = append(r.videos, &cp)
	return true, nil
}

func (r *MockVideoRepo) FindByID(_ context.Context, _ repository.Tx, id string) (*model.Video, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, v := range r.videos {
		if v.ID == id {
			cp := *v
			return &cp, nil
		}
	}
	return nil, domain.ErrNotFound
}

func (r *MockVideoRepo) ListByJob(_ context.Context, _ repository.Tx, jobID string) ([]*model.Video, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*model.Video
	for _, v := range r.videos {
		if v.JobID == jobID {
			cp := *v
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, k int) bool { return out[i].Index < out[k].Index })
	return out, nil
}

func (r *MockVideoRepo) ListFailed(_ context.Context, _ repository.Tx, jobID string, limit int) ([]*model.Video, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*model.Video
	for _, v := range r.videos {
		if v.Status == model.VideoStatusFailed && (jobID == "" || v.JobID == jobID) {
			cp := *v
			out = append(out, &cp)
		}
	}
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (r *MockVideoRepo) CountByStatus(_ context.Context, _ repository.Tx, jobID string) (map[model.VideoStatus]int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := map[model.VideoStatus]int{}
	for _, v := range r.videos {
		if jobID == "" || v.JobID == jobID {
			out[v.Status]++
		}
	}
	return out, nil
}

func (r *MockVideoRepo) Advance(context.Context, repository.Tx, string, string, model.VideoStatus, model.VideoStatus) error {
	return nil
}

func (r *MockVideoRepo) Touch(context.Context, repository.Tx, string, string) error { return nil }

func (r *MockVideoRepo) MarkFailed(context.Context, repository.Tx, string, string, string, time.Time) error {
	return nil
}

func (r *MockVideoRepo) Complete(context.Context, repository.Tx, string, string) error { return nil }

func (r *MockVideoRepo) RequeueStalled(ctx context.Context, cutoff time.Time, limit int) ([]repository.Requeued, error) {
	if r.RequeueStalledFunc != nil {
		return r.RequeueStalledFunc(ctx, cutoff, limit)
	}
	return nil, nil
}

func (r *MockVideoRepo) ListReprocessCandidates(ctx context.Context, keep []string, limit int) ([]repository.Requeued, error) {
	if r.ListReprocessCandidatesFunc != nil {
		return r.ListReprocessCandidatesFunc(ctx, keep, limit)
	}
	return nil, nil
}

func (r *MockVideoRepo) RequeueForReprocess(ctx context.Context, keep []string, limit int) ([]repository.Requeued, error) {
	if r.RequeueForReprocessFunc != nil {
		return r.RequeueForReprocessFunc(ctx, keep, limit)
	}
	return nil, nil
}

func (r *MockVideoRepo) RetryFailed(ctx context.Context, ids []string) ([]repository.Requeued, error) {
	if r.RetryFailedFunc != nil {
		return r.RetryFailedFunc(ctx, ids)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	want := map[string]bool{}
	for _, id := range ids {
		want[id] = true
	}
	var out []repository.Requeued
	for _, v := range r.videos {
		if want[v.ID] && v.Status == model.VideoStatusFailed {
			out = append(out, repository.Requeued{VideoID: v.ID, JobID: v.JobID, PreviousStatus: v.Status})
			v.Status = model.VideoStatusPending
			v.ErrorMessage = ""
			v.FailedAt = nil
		}
	}
	return out, nil
}

// ---- Mock TranscriptRepository ----

type MockTranscriptRepo struct {
	byVideo map[string]*model.Transcript
}

var _ repository.TranscriptRepository = (*MockTranscriptRepo)(nil)

func (r *MockTranscriptRepo) Replace(_ context.Context, _ repository.Tx, t *model.Transcript) error {
	if r.byVideo == nil {
		r.byVideo = map[string]*model.Transcript{}
	}
	r.byVideo[t.VideoID] = t
	return nil
}

func (r *MockTranscriptRepo) FindByVideoID(_ context.Context, _ repository.Tx, videoID string) (*model.Transcript, error) {
	t, ok := r.byVideo[videoID]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return t, nil
}

// ---- Mock OutboxRepository ----

type MockOutboxRepo struct {
	mu     sync.Mutex
	Events []model.Event
}

var _ repository.OutboxRepository = (*MockOutboxRepo)(nil)

func (r *MockOutboxRepo) Add(_ context.Context, _ repository.Tx, e *model.Event) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.Events = append(r.Events, *e)
	return nil
}

func (r *MockOutboxRepo) GetPending(context.Context, int) ([]repository.OutboxRecord, error) {
	return nil, nil
}

func (r *MockOutboxRepo) MarkProcessed(context.Context, int64) error { return nil }

func (r *MockOutboxRepo) types() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, 0, len(r.Events))
	for _, e := range r.Events {
		out = append(out, e.Type)
	}
	return out
}

// =============================
// Infra helpers for tests
// =============================

// ---- Mock TransactionManager ----

type MockTxManager struct {
	WithTxFunc func(ctx context.Context, txOpt pgx.TxOptions, fn func(ctx context.Context, tx repository.Tx) error) error
	Calls      int
}

func NewMockTxManager() *MockTxManager {
	return &MockTxManager{}
}

var _ repository.TransactionManager = (*MockTxManager)(nil)

// WithTx runs fn immediately with NoTX unless WithTxFunc is set.
func (m *MockTxManager) WithTx(ctx context.Context, txOpt pgx.TxOptions, fn func(ctx context.Context, tx repository.Tx) error) error {
	m.Calls++
	if m.WithTxFunc != nil {
		return m.WithTxFunc(ctx, txOpt, fn)
	}
	return fn(ctx, repository.NoTX)
}
