// Package recompute coalesces bursts of edits into single recompute runs.
//
// A Scheduler is a last-write-wins debounce: every Schedule call cancels the
// pending timer and starts a new one with the new delay. When a timer
// elapses the callback runs exactly once and the scheduler returns to Idle.
//
//	Idle --Schedule--> Pending(timer) --elapse--> fire --> Idle
//	Pending(timer) --Schedule--> Pending(new timer)   (old timer never fires)
//
// There is deliberately no cancel operation: a caller that wants no
// recompute simply does not call Schedule.
package recompute

import (
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/teranos/lathe/logger"
)

// Clock abstracts timer creation so the state machine can be driven
// without wall-clock waits.
type Clock interface {
	Now() time.Time
	AfterFunc(d time.Duration, f func()) Timer
}

// Timer is a cancellable pending callback.
type Timer interface {
	Stop() bool
}

type systemClock struct{}

func (systemClock) Now() time.Time { return time.Now() }

func (systemClock) AfterFunc(d time.Duration, f func()) Timer {
	return time.AfterFunc(d, f)
}

// SystemClock is the Clock backed by package time.
var SystemClock Clock = systemClock{}

// State is the scheduler state.
type State int

const (
	Idle State = iota
	Pending
)

func (s State) String() string {
	if s == Pending {
		return "pending"
	}
	return "idle"
}

// Observer receives scheduler transitions, e.g. for metrics.
type Observer interface {
	Scheduled(delay time.Duration)
	Superseded()
	Fired()
}

// FireFunc is invoked when a pending timer elapses. generation identifies
// the Schedule call whose timer fired.
type FireFunc func(generation uint64)

// Scheduler is a cancel-on-reschedule debounce timer.
// It is safe for concurrent use; the callback runs on the clock's goroutine
// without the scheduler lock held.
type Scheduler struct {
	mu         sync.Mutex
	clock      Clock
	fire       FireFunc
	timer      Timer
	generation uint64
	pending    bool
	observer   Observer
	log        *zap.SugaredLogger
}

// SchedulerOption configures a Scheduler.
type SchedulerOption func(*Scheduler)

// WithObserver registers an Observer.
func WithObserver(o Observer) SchedulerOption {
	return func(s *Scheduler) {
		s.observer = o
	}
}

// NewScheduler creates an idle scheduler. A nil clock uses SystemClock.
func NewScheduler(clock Clock, fire FireFunc, log *zap.SugaredLogger, opts ...SchedulerOption) *Scheduler {
	if clock == nil {
		clock = SystemClock
	}
	s := &Scheduler{
		clock: clock,
		fire:  fire,
		log:   logger.AddRecomputeSymbol(log),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(s)
		}
	}
	return s
}

// Schedule (re)starts the timer. A pending timer is discarded and never fires.
// Negative delays are treated as zero.
func (s *Scheduler) Schedule(delay time.Duration) {
	if delay < 0 {
		delay = 0
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.pending && s.timer != nil {
		s.timer.Stop()
		if s.observer != nil {
			s.observer.Superseded()
		}
	}
	s.generation++
	gen := s.generation
	s.pending = true
	s.timer = s.clock.AfterFunc(delay, func() { s.elapse(gen) })

	s.log.Debugw("Recompute scheduled",
		logger.FieldDelayMS, delay.Milliseconds(),
		logger.FieldGeneration, gen)
	if s.observer != nil {
		s.observer.Scheduled(delay)
	}
}

// State reports whether a timer is pending.
func (s *Scheduler) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.pending {
		return Pending
	}
	return Idle
}

// Generation returns the number of Schedule calls so far.
func (s *Scheduler) Generation() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.generation
}

// elapse runs the callback if gen is still the current timer. A timer that
// was stopped too late to prevent its goroutine from starting is dropped
// here.
func (s *Scheduler) elapse(gen uint64) {
	s.mu.Lock()
	if !s.pending || gen != s.generation {
		s.mu.Unlock()
		s.log.Debugw("Dropped stale recompute timer", logger.FieldGeneration, gen)
		return
	}
	s.pending = false
	s.timer = nil
	s.mu.Unlock()

	s.log.Debugw("Recompute timer elapsed", logger.FieldGeneration, gen)
	if s.observer != nil {
		s.observer.Fired()
	}
	if s.fire != nil {
		s.fire(gen)
	}
}
