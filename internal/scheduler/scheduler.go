// Package scheduler runs periodic tasks in-process. Each task runs once
// on start and then on its interval; a tick that arrives while the
// previous run is still going is skipped.
package scheduler

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"
)

// Task is one periodic unit of work.
type Task struct {
	Name     string
	Interval time.Duration
	Run      func(ctx context.Context) error
}

// TaskState is a snapshot of a task's bookkeeping.
type TaskState struct {
	Name    string
	Running bool
	Runs    int
	Skipped int
	LastRun time.Time
	LastErr error
}

// Scheduler owns a fixed set of tasks.
type Scheduler struct {
	tasks  []Task
	logger zerolog.Logger

	mu    sync.Mutex
	state map[string]*TaskState
}

// New creates a Scheduler. Tasks with a non-positive interval or no Run are ignored.
func New(logger zerolog.Logger, tasks ...Task) *Scheduler {
	s := &Scheduler{
		logger: logger.With().Str("component", "scheduler").Logger(),
		state:  make(map[string]*TaskState),
	}
	for _, t := range tasks {
		if t.Interval <= 0 || t.Run == nil {
			continue
		}
		s.tasks = append(s.tasks, t)
		s.state[t.Name] = &TaskState{Name: t.Name}
	}
	return s
}

// Run blocks until ctx is cancelled.
func (s *Scheduler) Run(ctx context.Context) error {
	g, ctx := errgroup.WithContext(ctx)
	for _, t := range s.tasks {
		g.Go(func() error {
			return s.loop(ctx, t)
		})
	}
	err := g.Wait()
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

// Trigger runs a task now unless it is already running.
// Returns false when the run was skipped or the task is unknown.
func (s *Scheduler) Trigger(ctx context.Context, name string) bool {
	for _, t := range s.tasks {
		if t.Name == name {
			return s.runOnce(ctx, t)
		}
	}
	return false
}

// State returns the bookkeeping of every task in registration order.
func (s *Scheduler) State() []TaskState {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]TaskState, 0, len(s.tasks))
	for _, t := range s.tasks {
		out = append(out, *s.state[t.Name])
	}
	return out
}

func (s *Scheduler) loop(ctx context.Context, t Task) error {
	s.logger.Info().Str("task", t.Name).Dur("interval", t.Interval).Msg("task scheduled")

	// Run immediately on start
	s.runOnce(ctx, t)

	ticker := time.NewTicker(t.Interval)
	defer ticker.Stop()

	// In-flight runs finish before loop returns.
	var wg sync.WaitGroup
	defer wg.Wait()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			wg.Add(1)
			go func() {
				defer wg.Done()
				s.runOnce(ctx, t)
			}()
		}
	}
}

func (s *Scheduler) runOnce(ctx context.Context, t Task) bool {
	s.mu.Lock()
	st := s.state[t.Name]
	if st.Running {
		st.Skipped++
		s.mu.Unlock()
		s.logger.Warn().Str("task", t.Name).Msg("task already running, skipping")
		return false
	}
	st.Running = true
	s.mu.Unlock()

	start := time.Now()
	err := t.Run(ctx)

	s.mu.Lock()
	st.Running = false
	st.Runs++
	st.LastRun = start
	st.LastErr = err
	s.mu.Unlock()

	if err != nil && !errors.Is(err, context.Canceled) {
		s.logger.Error().Err(err).Str("task", t.Name).Dur("took", time.Since(start)).Msg("task failed")
	} else {
		s.logger.Debug().Str("task", t.Name).Dur("took", time.Since(start)).Msg("task finished")
	}
	return true
}
