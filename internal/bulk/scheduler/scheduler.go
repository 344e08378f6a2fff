// Package scheduler admits work under a concurrency cap and a minimum spacing
// between dispatches.
//
// Items are dispatched in submission order. An item is handed to the handler
// only when fewer than MaxConcurrent items are in flight and at least MinDelay
// has passed since the previous dispatch. Readmitted items wait out their delay
// and then join the back of the same queue.
package scheduler

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/juju/clock"
	"golang.org/x/sync/semaphore"

	"github.com/jatinvaidya/auth0-bulk-delete/internal/bulk/metrics"
)

// Config holds the admission limits. It is fixed for the life of a Scheduler.
type Config struct {
	MaxConcurrent int
	MinDelay      time.Duration

	// Clock defaults to clock.WallClock.
	Clock clock.Clock
}

// Handler processes one dispatched item. It runs on its own goroutine and the
// item counts as in flight until it returns.
type Handler[T any] func(ctx context.Context, item T)

// Scheduler is a throttle in front of a FIFO queue.
type Scheduler[T any] struct {
	cfg    Config
	clock  clock.Clock
	handle Handler[T]
	slots  *semaphore.Weighted
	log    *slog.Logger

	mu     sync.Mutex
	queue  []T
	notify chan struct{}

	// owned by the dispatch loop
	lastDispatch time.Time

	inFlight atomic.Int64
	running  sync.WaitGroup
	started  atomic.Bool
	done     chan struct{}
}

// New creates a scheduler. Call Start to begin dispatching.
func New[T any](cfg Config, handle Handler[T]) *Scheduler[T] {
	if cfg.MaxConcurrent < 1 {
		cfg.MaxConcurrent = 1
	}
	if cfg.MinDelay < 0 {
		cfg.MinDelay = 0
	}
	clk := cfg.Clock
	if clk == nil {
		clk = clock.WallClock
	}
	return &Scheduler[T]{
		cfg:    cfg,
		clock:  clk,
		handle: handle,
		slots:  semaphore.NewWeighted(int64(cfg.MaxConcurrent)),
		log:    slog.Default().With("component", "scheduler"),
		notify: make(chan struct{}, 1),
		done:   make(chan struct{}),
	}
}

// Start runs the dispatch loop until ctx is cancelled. Handlers that are
// already running are not cancelled with it.
func (s *Scheduler[T]) Start(ctx context.Context) {
	if !s.started.CompareAndSwap(false, true) {
		return
	}
	s.log.Debug("Starting scheduler",
		"max_concurrent", s.cfg.MaxConcurrent,
		"min_delay", s.cfg.MinDelay,
	)
	go s.loop(ctx)
}

// Submit appends item to the queue.
func (s *Scheduler[T]) Submit(item T) {
	s.mu.Lock()
	s.queue = append(s.queue, item)
	depth := len(s.queue)
	s.mu.Unlock()

	metrics.QueueDepth.Set(float64(depth))

	select {
	case s.notify <- struct{}{}:
	default:
	}
}

// Readmit submits item again once delay has elapsed. Delays shorter than
// MinDelay are raised to MinDelay.
func (s *Scheduler[T]) Readmit(item T, delay time.Duration) {
	if delay < s.cfg.MinDelay {
		delay = s.cfg.MinDelay
	}
	s.clock.AfterFunc(delay, func() {
		s.Submit(item)
	})
}

// Wait blocks until the dispatch loop has stopped and every in-flight handler
// has returned. The loop stops when the context given to Start is cancelled.
func (s *Scheduler[T]) Wait() {
	if s.started.Load() {
		<-s.done
	}
	s.running.Wait()
}

// InFlight returns the number of handlers currently running.
func (s *Scheduler[T]) InFlight() int {
	return int(s.inFlight.Load())
}

// Queued returns the number of items waiting for admission.
func (s *Scheduler[T]) Queued() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.queue)
}

func (s *Scheduler[T]) loop(ctx context.Context) {
	defer close(s.done)

	for {
		item, ok := s.next(ctx)
		if !ok {
			return
		}

		start := s.clock.Now()
		if err := s.slots.Acquire(ctx, 1); err != nil {
			return
		}
		if !s.waitSpacing(ctx) {
			s.slots.Release(1)
			return
		}
		metrics.AdmissionWait.Observe(s.clock.Now().Sub(start).Seconds())

		s.dispatch(ctx, item)
	}
}

// next pops the head of the queue, blocking until one is available.
func (s *Scheduler[T]) next(ctx context.Context) (T, bool) {
	var zero T
	for {
		if ctx.Err() != nil {
			return zero, false
		}

		s.mu.Lock()
		if len(s.queue) > 0 {
			item := s.queue[0]
			s.queue[0] = zero
			s.queue = s.queue[1:]
			depth := len(s.queue)
			s.mu.Unlock()
			metrics.QueueDepth.Set(float64(depth))
			return item, true
		}
		s.mu.Unlock()

		select {
		case <-ctx.Done():
			return zero, false
		case <-s.notify:
		}
	}
}

// waitSpacing sleeps until MinDelay has passed since the previous dispatch.
func (s *Scheduler[T]) waitSpacing(ctx context.Context) bool {
	if s.lastDispatch.IsZero() {
		return ctx.Err() == nil
	}
	wait := s.cfg.MinDelay - s.clock.Now().Sub(s.lastDispatch)
	if wait <= 0 {
		return ctx.Err() == nil
	}
	select {
	case <-ctx.Done():
		return false
	case <-s.clock.After(wait):
		return true
	}
}

func (s *Scheduler[T]) dispatch(ctx context.Context, item T) {
	s.lastDispatch = s.clock.Now()

	s.inFlight.Add(1)
	s.running.Add(1)
	metrics.InFlight.Inc()
	metrics.Dispatches.Inc()

	go func() {
		defer func() {
			s.inFlight.Add(-1)
			metrics.InFlight.Dec()
			s.slots.Release(1)
			s.running.Done()
		}()
		s.handle(context.WithoutCancel(ctx), item)
	}()
}
