// Package ttl implements the time-to-live scheduler: a priority queue of
// (expiry-timestamp, pointer) entries, ticked by a single background
// worker that emits an "expired" event on a process-wide event emitter for
// every entry whose timestamp has elapsed.
package ttl

import (
	"fmt"
	"sync"
	"time"

	"github.com/kataras/go-events"
)

// TickPeriod is the fixed cadence at which the scheduler scans for expired
// entries.
const TickPeriod = 500 * time.Millisecond

// neverDuration is the sentinel horizon used by Never: 30 years, matching
// the original engine's "no real expiry, but still TTL-tracked" entries.
const neverDuration = 30 * 365 * 24 * time.Hour

// ExpiredEvent is the event name a default, unowned scheduler emits on.
const ExpiredEvent events.EventName = "expired"

// eventName scopes the emitted event to a single owning scheduler so
// multiple collections sharing the process-wide emitter never observe
// each other's expiries (pointer strings are only unique within a
// collection, not across the process).
func eventName(owner string) events.EventName {
	if owner == "" {
		return ExpiredEvent
	}
	return events.EventName(fmt.Sprintf("expired:%s", owner))
}

// Entry is a single scheduled expiry.
type Entry struct {
	Pointer string
	RegAt   int64
}

// Emitter is the process-wide event bus TTL scheduler publish to and
// collections subscribe against. It is a single lock shared by every
// scheduler in the process, matching the resource model's "process-wide
// event emitter is a single lock".
var Emitter = events.New()

// Scheduler is a priority queue of (timestamp, pointer) entries with a
// background worker draining expired entries on a fixed cadence.
type Scheduler struct {
	mu      sync.Mutex
	byTime  map[int64]Entry
	stop    chan struct{}
	started bool
	owner   string
}

// New creates an empty, not-yet-started scheduler emitting on the
// unscoped, process-wide "expired" event.
func New() *Scheduler {
	return &Scheduler{
		byTime: make(map[int64]Entry),
		stop:   make(chan struct{}),
	}
}

// NewOwned creates an empty, not-yet-started scheduler whose expiries are
// emitted on an event scoped to owner (typically the owning collection's
// instance ID), so a subscriber only observes its own collection's
// expiries despite the emitter being process-wide.
func NewOwned(owner string) *Scheduler {
	s := New()
	s.owner = owner
	return s
}

// EventName returns the event name this scheduler's expiries are emitted
// on; subscribe to this, not ExpiredEvent, when using NewOwned.
func (s *Scheduler) EventName() events.EventName {
	return eventName(s.owner)
}

// Push adds an entry expiring at the given unix-epoch-seconds timestamp.
func (s *Scheduler) Push(timestamp int64, pointer string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.byTime[timestamp] = Entry{Pointer: pointer, RegAt: time.Now().Unix()}
}

// Never schedules pointer 30 years out and returns the timestamp used, the
// scheduler's "never really expire, but keep it TTL-tracked" helper.
func (s *Scheduler) Never(pointer string) int64 {
	ts := time.Now().Add(neverDuration).Unix()
	s.Push(ts, pointer)
	return ts
}

// Remove linearly scans for pointer and removes its entry; used when a
// document is deleted explicitly so a late expiry does not fire.
func (s *Scheduler) Remove(pointer string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for ts, e := range s.byTime {
		if e.Pointer == pointer {
			delete(s.byTime, ts)
			return
		}
	}
}

// Len reports the number of scheduled entries.
func (s *Scheduler) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.byTime)
}

// Start spawns the single background worker. It is safe to call once; a
// second call is a no-op.
func (s *Scheduler) Start() {
	s.mu.Lock()
	if s.started {
		s.mu.Unlock()
		return
	}
	s.started = true
	s.mu.Unlock()

	go s.run()
}

// Stop ends the background worker. The collection's lifetime governs when
// this is called; the worker cannot be cancelled mid-tick.
func (s *Scheduler) Stop() {
	close(s.stop)
}

func (s *Scheduler) run() {
	ticker := time.NewTicker(TickPeriod)
	defer ticker.Stop()
	for {
		select {
		case <-s.stop:
			return
		case <-ticker.C:
			s.purge()
		}
	}
}

// purge finds every entry whose timestamp has elapsed, emits "expired" for
// each, and removes it from the queue.
func (s *Scheduler) purge() {
	now := time.Now().Unix()

	s.mu.Lock()
	var due []Entry
	for ts, e := range s.byTime {
		if ts <= now {
			due = append(due, e)
			delete(s.byTime, ts)
		}
	}
	s.mu.Unlock()

	for _, e := range due {
		Emitter.Emit(s.EventName(), e)
	}
}
