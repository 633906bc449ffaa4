// Package scheduler implements the single-purpose daily wall-clock
// scheduler of spec §4.8: a sync check, optionally followed by a
// revalidation sweep, run at most once per calendar day unless an external
// trigger forces an extra run.
package scheduler

import (
	"context"
	"sync"
	"time"

	"github.com/jmhodges/clock"

	"github.com/icao-pkd/pkd-core/core"
	"github.com/icao-pkd/pkd-core/internal/blog"
)

// Tick is the unit of work the scheduler runs once a day: a sync check
// (stats collection + SyncStatus write) followed, when enabled, by
// reconciliation and by a revalidation sweep.
type Tick func(ctx context.Context, forced bool, source core.TriggerSource)

// Scheduler drives Tick at HH:MM local time daily, plus on demand via
// external triggers pulled from a TriggerQueue. Exactly one worker
// goroutine runs ticks; ticks never overlap.
type Scheduler struct {
	hour, minute int
	tick         Tick
	queue        *TriggerQueue
	clk          clock.Clock
	log          blog.Logger

	mu      sync.Mutex
	stopCh  chan struct{}
	doneCh  chan struct{}
	running bool
}

// New constructs a Scheduler that fires tick at hour:minute local time, plus
// whenever queue yields a pending trigger.
func New(hour, minute int, tick Tick, queue *TriggerQueue, clk clock.Clock, log blog.Logger) *Scheduler {
	if clk == nil {
		clk = clock.New()
	}
	if log == nil {
		log = blog.Get()
	}
	return &Scheduler{hour: hour, minute: minute, tick: tick, queue: queue, clk: clk, log: log}
}

// nextOccurrence computes the next HH:MM in local time, per spec §8
// property 7: if the target time already passed today, the next occurrence
// is tomorrow.
func (s *Scheduler) nextOccurrence(now time.Time) time.Time {
	target := time.Date(now.Year(), now.Month(), now.Day(), s.hour, s.minute, 0, 0, now.Location())
	if !target.After(now) {
		target = target.AddDate(0, 0, 1)
	}
	return target
}

// Start launches the scheduler's single worker goroutine. Calling Start on
// an already-running Scheduler is a no-op.
func (s *Scheduler) Start() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.running {
		return
	}
	s.stopCh = make(chan struct{})
	s.doneCh = make(chan struct{})
	s.running = true
	go s.run(s.stopCh, s.doneCh)
}

// Stop signals the worker to exit. The active tick, if any, runs to
// completion first; Stop blocks until the worker has fully exited.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return
	}
	stopCh, doneCh := s.stopCh, s.doneCh
	s.running = false
	s.mu.Unlock()

	close(stopCh)
	<-doneCh
}

// Restart stops the scheduler and starts it again at a new hour:minute.
// No configuration-update path in this module calls it.
func (s *Scheduler) Restart(hour, minute int) {
	s.Stop()
	s.mu.Lock()
	s.hour, s.minute = hour, minute
	s.mu.Unlock()
	s.Start()
}

func (s *Scheduler) run(stopCh, doneCh chan struct{}) {
	defer close(doneCh)

	var lastRunDate string
	next := s.nextOccurrence(s.clk.Now())
	pollInterval := 30 * time.Second

	for {
		select {
		case <-stopCh:
			return
		case <-s.clk.After(pollInterval):
			s.drainTriggers(stopCh)

			now := s.clk.Now()
			today := now.Format("2006-01-02")
			if !now.Before(next) && lastRunDate != today {
				s.tick(context.Background(), false, core.TriggerDailySync)
				lastRunDate = today
				next = s.nextOccurrence(now)
			}
		}
	}
}

// drainTriggers runs every pending external trigger, bypassing the daily
// guard (spec §4.8: "external triggers bypass the daily guard").
func (s *Scheduler) drainTriggers(stopCh chan struct{}) {
	if s.queue == nil {
		return
	}
	for {
		select {
		case <-stopCh:
			return
		default:
		}
		trig, ok, err := s.queue.Pop()
		if err != nil {
			s.log.Warning("scheduler: trigger queue pop failed: " + err.Error())
			return
		}
		if !ok {
			return
		}
		s.tick(context.Background(), true, trig.Source)
	}
}
