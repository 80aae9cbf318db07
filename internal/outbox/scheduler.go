// Package outbox schedules the delayed status changes of outgoing messages.
package outbox

import (
	"sync"
	"time"
)

// Scheduler runs one-shot callbacks keyed by message id. A callback that
// has been cancelled, replaced or stopped never runs, even if its timer had
// already fired.
type Scheduler struct {
	mu      sync.Mutex
	timers  map[string]*entry
	seq     uint64
	stopped bool
	wg      sync.WaitGroup
}

type entry struct {
	id    uint64
	timer *time.Timer
}

// NewScheduler creates an empty scheduler.
func NewScheduler() *Scheduler {
	return &Scheduler{timers: make(map[string]*entry)}
}

// After schedules fn to run once after d. Scheduling an existing key
// replaces the previous callback. Returns false after Stop.
func (s *Scheduler) After(key string, d time.Duration, fn func()) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.stopped {
		return false
	}
	if old, ok := s.timers[key]; ok {
		old.timer.Stop()
		s.wg.Done()
	}
	s.seq++
	e := &entry{id: s.seq}
	s.wg.Add(1)
	e.timer = time.AfterFunc(d, func() { s.fire(key, e.id, fn) })
	s.timers[key] = e
	return true
}

func (s *Scheduler) fire(key string, id uint64, fn func()) {
	s.mu.Lock()
	e, ok := s.timers[key]
	if !ok || e.id != id || s.stopped {
		s.mu.Unlock()
		return
	}
	delete(s.timers, key)
	s.mu.Unlock()

	defer s.wg.Done()
	fn()
}

// Cancel drops the callback scheduled under key. Reports whether one was
// pending.
func (s *Scheduler) Cancel(key string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.timers[key]
	if !ok {
		return false
	}
	e.timer.Stop()
	delete(s.timers, key)
	s.wg.Done()
	return true
}

// Pending returns the number of callbacks still waiting to run.
func (s *Scheduler) Pending() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.timers)
}

// Stop cancels every pending callback, waits for running ones to return
// and rejects further scheduling.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	s.stopped = true
	for key, e := range s.timers {
		e.timer.Stop()
		delete(s.timers, key)
		s.wg.Done()
	}
	s.mu.Unlock()
	s.wg.Wait()
}
