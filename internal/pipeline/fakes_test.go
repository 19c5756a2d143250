//go:build !integration

package pipeline

import (
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/jackc/pgx/v4"
	"github.com/rs/zerolog"

	"vidscribe/internal/domain"
	"vidscribe/internal/domain/model"
	"vidscribe/internal/domain/ports/adapter"
	"vidscribe/internal/domain/ports/repository"
)

func newTestLogger() *zerolog.Logger {
	l := zerolog.New(io.Discard)
	return &l
}

// memStore is an in-memory state store. WithTx snapshots and restores on error.
type memStore struct {
	mu          sync.Mutex
	videos      map[string]*model.Video
	transcripts map[string]*model.Transcript
	events      []model.Event

	ReplaceErr error
}

func newMemStore(vs ...*model.Video) *memStore {
	s := &memStore{videos: map[string]*model.Video{}, transcripts: map[string]*model.Transcript{}}
	for _, v := range vs {
		cp := *v
		s.videos[v.ID] = &cp
	}
	return s
}

func (s *memStore) WithTx(ctx context.Context, _ pgx.TxOptions, fn func(ctx context.Context, tx repository.Tx) error) error {
	s.mu.Lock()
	videos := make(map[string]model.Video, len(s.videos))
	for k, v := range s.videos {
		videos[k] = *v
	}
	transcripts := make(map[string]*model.Transcript, len(s.transcripts))
	for k, v := range s.transcripts {
		transcripts[k] = v
	}
	events := len(s.events)
	s.mu.Unlock()

	if err := fn(ctx, "memtx"); err != nil {
		s.mu.Lock()
		for k, v := range videos {
			cp := v
			s.videos[k] = &cp
		}
		s.transcripts = transcripts
		s.events = s.events[:events]
		s.mu.Unlock()
		return err
	}
	return nil
}

func (s *memStore) held(id, token string) (*model.Video, error) {
	v, ok := s.videos[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	if v.ClaimToken == "" || v.ClaimToken != token {
		return nil, domain.ErrClaimLost
	}
	return v, nil
}

func (s *memStore) Advance(_ context.Context, _ repository.Tx, id, token string, from, to model.VideoStatus) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !model.CanAdvance(from, to) {
		return domain.ErrInvalidTransition
	}
	v, err := s.held(id, token)
	if err != nil {
		return err
	}
	if v.Status != from {
		return domain.ErrClaimLost
	}
	v.Status = to
	v.UpdatedAt = time.Now()
	return nil
}

func (s *memStore) Touch(_ context.Context, _ repository.Tx, id, token string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	v, err := s.held(id, token)
	if err != nil {
		return err
	}
	v.UpdatedAt = time.Now()
	return nil
}

func (s *memStore) MarkFailed(_ context.Context, _ repository.Tx, id, token, msg string, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	v, err := s.held(id, token)
	if err != nil {
		return err
	}
	if !v.Status.IsInFlight() {
		return domain.ErrClaimLost
	}
	v.Status = model.VideoStatusFailed
	v.ErrorMessage = msg
	v.FailedAt = &at
	v.ClaimToken = ""
	return nil
}

func (s *memStore) Complete(_ context.Context, _ repository.Tx, id, token string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	v, err := s.held(id, token)
	if err != nil {
		return err
	}
	if v.Status != model.VideoStatusTranscribing {
		return domain.ErrClaimLost
	}
	v.Status = model.VideoStatusCompleted
	v.ClaimToken = ""
	return nil
}

func (s *memStore) Replace(_ context.Context, tx repository.Tx, t *model.Transcript) error {
	if tx == nil {
		return domain.ErrInvalidExecContext
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.ReplaceErr != nil {
		return s.ReplaceErr
	}
	cp := *t
	cp.Segments = append([]model.Segment(nil), t.Segments...)
	s.transcripts[t.VideoID] = &cp
	return nil
}

func (s *memStore) Add(_ context.Context, _ repository.Tx, e *model.Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, *e)
	return nil
}

// claim mimics ClaimNext for a known video.
func (s *memStore) claim(id, token string) *model.Video {
	s.mu.Lock()
	defer s.mu.Unlock()
	v := s.videos[id]
	v.Status = model.VideoStatusDownloading
	v.ClaimToken = token
	v.Attempts++
	cp := *v
	return &cp
}

func (s *memStore) video(id string) model.Video {
	s.mu.Lock()
	defer s.mu.Unlock()
	return *s.videos[id]
}

func (s *memStore) eventTypes() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]string, 0, len(s.events))
	for _, e := range s.events {
		out = append(out, e.Type)
	}
	return out
}

type fakeDownloader struct {
	FetchFunc func(ctx context.Context, sourceID, destDir string) (string, error)
	dirs      []string
}

func (f *fakeDownloader) Fetch(ctx context.Context, sourceID, destDir string) (string, error) {
	f.dirs = append(f.dirs, destDir)
	if f.FetchFunc != nil {
		return f.FetchFunc(ctx, sourceID, destDir)
	}
	p := filepath.Join(destDir, sourceID+".m4a")
	return p, os.WriteFile(p, []byte("audio"), 0o644)
}

type fakeNormalizer struct {
	Err error
}

func (f *fakeNormalizer) Normalize(_ context.Context, in string) (string, error) {
	if f.Err != nil {
		return "", f.Err
	}
	return in + ".wav", nil
}

type sliceCall struct {
	dest          string
	start, length time.Duration
}

type fakeSlicer struct {
	Total time.Duration
	calls []sliceCall
}

func (f *fakeSlicer) Duration(context.Context, string) (time.Duration, error) { return f.Total, nil }

func (f *fakeSlicer) Slice(_ context.Context, _, dest string, start, length time.Duration) error {
	f.calls = append(f.calls, sliceCall{dest: dest, start: start, length: length})
	return nil
}

type fakeEngine struct {
	name, model    string
	TranscribeFunc func(ctx context.Context, path string) (*adapter.Transcription, error)
	paths          []string
}

func (f *fakeEngine) Name() string  { return f.name }
func (f *fakeEngine) Model() string { return f.model }
func (f *fakeEngine) Transcribe(ctx context.Context, path string) (*adapter.Transcription, error) {
	f.paths = append(f.paths, path)
	return f.TranscribeFunc(ctx, path)
}

type fakeDiarizer struct {
	available bool
	turns     []adapter.Turn
	err       error
	panicMsg  string
}

func (f *fakeDiarizer) Available() bool { return f.available }
func (f *fakeDiarizer) Diarize(context.Context, string) ([]adapter.Turn, error) {
	if f.panicMsg != "" {
		panic(f.panicMsg)
	}
	return f.turns, f.err
}

type fakeNotifier struct {
	messages []string
}

func (f *fakeNotifier) Notify(_ context.Context, text string) error {
	f.messages = append(f.messages, text)
	return nil
}

var errBoom = errors.New("boom")
