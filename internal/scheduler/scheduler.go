package scheduler

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

const DefaultPeriod = 20 * time.Millisecond

type TickFunc func()

type Stats struct {
	Ticks       uint64
	Overruns    uint64
	LastElapsed time.Duration
	MaxElapsed  time.Duration
}

// Scheduler runs registered callbacks in registration order once per period.
// Registrations and Tick belong to the loop goroutine; use Do from anywhere else.
type Scheduler struct {
	period time.Duration
	log    *zap.SugaredLogger

	callbacks []TickFunc

	pendingLock sync.Mutex
	pending     []func()

	ticks       atomic.Uint64
	overruns    atomic.Uint64
	lastElapsed atomic.Int64
	maxElapsed  atomic.Int64

	overrunLog rate.Sometimes
}

func NewScheduler(period time.Duration, log *zap.SugaredLogger) *Scheduler {
	if period <= 0 {
		period = DefaultPeriod
	}
	if log == nil {
		log = zap.NewNop().Sugar()
	}
	return &Scheduler{
		period:     period,
		log:        log,
		overrunLog: rate.Sometimes{Interval: time.Second},
	}
}

func (s *Scheduler) Period() time.Duration {
	return s.period
}

func (s *Scheduler) RegisterTick(fn TickFunc) {
	if fn == nil {
		return
	}
	s.callbacks = append(s.callbacks, fn)
}

// Reset drops every registered callback.
func (s *Scheduler) Reset() {
	s.callbacks = nil
}

// Do queues fn to run on the loop goroutine before the next tick.
func (s *Scheduler) Do(fn func()) {
	s.pendingLock.Lock()
	defer s.pendingLock.Unlock()
	s.pending = append(s.pending, fn)
}

func (s *Scheduler) runPending() {
	s.pendingLock.Lock()
	work := s.pending
	s.pending = nil
	s.pendingLock.Unlock()

	for _, fn := range work {
		fn()
	}
}

// Tick runs pending work then every callback once, in order.
func (s *Scheduler) Tick() {
	start := time.Now()
	s.runPending()
	for _, fn := range s.callbacks {
		fn()
	}
	elapsed := time.Since(start)

	s.ticks.Add(1)
	s.lastElapsed.Store(int64(elapsed))
	for {
		prev := s.maxElapsed.Load()
		if int64(elapsed) <= prev || s.maxElapsed.CompareAndSwap(prev, int64(elapsed)) {
			break
		}
	}
	if elapsed > s.period {
		count := s.overruns.Add(1)
		s.overrunLog.Do(func() {
			s.log.Warnw("tick overrun", "elapsed", elapsed, "period", s.period, "overruns", count)
		})
	}
}

// Run ticks every period until ctx is done.
func (s *Scheduler) Run(ctx context.Context) error {
	s.log.Infow("scheduler started", "period", s.period)
	ticker := time.NewTicker(s.period)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			s.runPending()
			s.log.Infow("scheduler stopped", "ticks", s.ticks.Load())
			return ctx.Err()
		case <-ticker.C:
			s.Tick()
		}
	}
}

func (s *Scheduler) Stats() Stats {
	return Stats{
		Ticks:       s.ticks.Load(),
		Overruns:    s.overruns.Load(),
		LastElapsed: time.Duration(s.lastElapsed.Load()),
		MaxElapsed:  time.Duration(s.maxElapsed.Load()),
	}
}
