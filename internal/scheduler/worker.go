// Package scheduler runs one worker per camera source. Workers are fully
// independent: a slow or failing source never delays another one, and within
// a source captures are strictly sequential.
package scheduler

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Source is what a worker drives on every tick: one full capture-and-commit
// cycle, returning the final output paths. Implementations block until the
// cycle is done.
type Source interface {
	Name() string
	Prefix() string
	Cycle(ctx context.Context) ([]string, error)
}

// Worker ticks one source. The timer is armed only after the previous cycle
// fully completes, so an overrunning capture pushes its own schedule back
// instead of stacking.
type Worker struct {
	source   Source
	interval time.Duration
	events   chan<- Event
	log      *zap.Logger
}

// New creates a worker; events may be nil when nobody listens (one-shot use).
func New(source Source, interval time.Duration, events chan<- Event, log *zap.Logger) *Worker {
	return &Worker{
		source:   source,
		interval: interval,
		events:   events,
		log:      log.With(zap.String("source", source.Name())),
	}
}

// Run loops Idle -> Capturing -> Idle until ctx is cancelled; cancellation
// also aborts the in-flight cycle. A Set separates the two so shutdown can
// let a running capture finish first.
func (w *Worker) Run(ctx context.Context) { w.run(ctx, ctx) }

// run schedules on loop and captures on cycles. The first capture fires one
// full interval after start, which keeps a daemon restart or rebuild from
// stampeding every camera at once.
func (w *Worker) run(loop, cycles context.Context) {
	w.log.Info("worker started", zap.Duration("interval", w.interval))
	timer := time.NewTimer(w.interval)
	defer timer.Stop()

	for {
		select {
		case <-loop.Done():
			w.log.Info("worker stopped")
			return
		case <-timer.C:
		}

		ev := w.cycle(cycles)
		w.publish(cycles, ev)

		timer.Reset(w.interval)
	}
}

func (w *Worker) cycle(ctx context.Context) Event {
	ev := Event{
		ID:     uuid.New(),
		Source: w.source.Name(),
		Prefix: w.source.Prefix(),
		Start:  time.Now(),
	}
	ev.Files, ev.Err = w.source.Cycle(ctx)
	ev.End = time.Now()

	switch {
	case ev.Err == nil:
		w.log.Info("capture complete",
			zap.String("event_id", ev.ID.String()),
			zap.Int("files", len(ev.Files)),
			zap.Duration("took", ev.Duration()))
	case errors.Is(ev.Err, context.Canceled) || errors.Is(ev.Err, context.DeadlineExceeded):
		w.log.Debug("capture aborted", zap.String("event_id", ev.ID.String()))
	default:
		w.log.Error("capture failed",
			zap.String("event_id", ev.ID.String()),
			zap.Duration("took", ev.Duration()),
			zap.Error(ev.Err))
	}
	return ev
}

func (w *Worker) publish(ctx context.Context, ev Event) {
	if w.events == nil {
		return
	}
	select {
	case w.events <- ev:
	case <-ctx.Done():
	}
}

// Set is one running generation of workers. The daemon starts a fresh Set on
// every (re)build and stops the old one first. A Set's lifetime belongs to
// Stop alone, not to any caller context: in-flight captures must get their
// grace even when the surrounding process context is already cancelled.
type Set struct {
	stop context.CancelFunc // ends scheduling after the in-flight cycle
	kill context.CancelFunc // aborts in-flight cycles through their exec ctx
	wg   sync.WaitGroup
}

// StartSet launches one goroutine per worker.
func StartSet(workers []*Worker) *Set {
	cycles, kill := context.WithCancel(context.Background())
	loop, stop := context.WithCancel(cycles)
	s := &Set{stop: stop, kill: kill}
	for _, w := range workers {
		s.wg.Add(1)
		go func() {
			defer s.wg.Done()
			w.run(loop, cycles)
		}()
	}
	return s
}

// Stop ends scheduling, lets in-flight captures finish for up to grace, then
// aborts whatever still runs. False means a capture had to be killed (or a
// tool ignored the kill; either way the caller just logs and moves on).
func (s *Set) Stop(grace time.Duration) bool {
	s.stop()
	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(grace):
	}
	s.kill()

	select {
	case <-done:
		return true
	default:
		return false
	}
}
