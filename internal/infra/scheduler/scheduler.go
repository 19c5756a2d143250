package scheduler

import (
	"context"
	"errors"
	"sync"

	"github.com/rs/zerolog"
)

// Runner is a long-running background loop that returns when ctx is done.
type Runner interface {
	Run(ctx context.Context) error
}

// Scheduler starts a set of background runners and stops them together.
type Scheduler struct {
	log     *zerolog.Logger
	names   []string
	runners []Runner

	mu     sync.Mutex
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

func NewScheduler(logger *zerolog.Logger) *Scheduler {
	l := logger.With().Str("component", "Scheduler").Logger()
	return &Scheduler{log: &l}
}

// Add registers r under name. It has no effect once started.
func (s *Scheduler) Add(name string, r Runner) *Scheduler {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cancel == nil {
		s.names = append(s.names, name)
		s.runners = append(s.runners, r)
	}
	return s
}

// Start runs every registered runner in its own goroutine. Calling Start
// again before Stop has no effect.
func (s *Scheduler) Start(parentCtx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cancel != nil {
		return
	}
	ctx, cancel := context.WithCancel(parentCtx)
	s.cancel = cancel

	for i, r := range s.runners {
		name := s.names[i]
		s.wg.Add(1)
		go func() {
			defer s.wg.Done()
			defer func() {
				if rec := recover(); rec != nil {
					s.log.Error().Str("runner", name).Interface("panic", rec).Msg("runner panicked")
				}
			}()
			if err := r.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
				s.log.Error().Err(err).Str("runner", name).Msg("runner exited")
			}
		}()
	}
	s.log.Info().Strs("runners", s.names).Msg("scheduler started")
}

// Stop cancels all runners and waits for them to return. It is idempotent.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	cancel := s.cancel
	s.cancel = nil
	s.mu.Unlock()
	if cancel == nil {
		return
	}
	cancel()
	s.wg.Wait()
	s.log.Info().Msg("scheduler stopped")
}
