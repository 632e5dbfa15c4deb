// Package timer runs delayed and periodic callbacks on a shared scheduler
// and hands out handles that cancel them.
package timer

import (
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/go-co-op/gocron"
	"github.com/sirupsen/logrus"
)

// ErrStopped is returned when scheduling on a stopped service.
var ErrStopped = errors.New("timer service stopped")

// Service owns a gocron scheduler. It is safe for concurrent use.
type Service struct {
	mu      sync.Mutex
	sched   *gocron.Scheduler
	log     logrus.FieldLogger
	stopped bool
	handles map[*Handle]struct{}
}

// New starts a scheduler in loc (UTC when nil).
func New(loc *time.Location, log logrus.FieldLogger) *Service {
	if loc == nil {
		loc = time.UTC
	}
	s := gocron.NewScheduler(loc)
	s.StartAsync()
	return &Service{sched: s, log: log, handles: make(map[*Handle]struct{})}
}

// Handle cancels one scheduled callback. Cancel is idempotent.
type Handle struct {
	svc       *Service
	job       *gocron.Job
	once      sync.Once
	cancelled atomic.Bool
}

// Cancel stops future runs. A run already in progress finishes.
func (h *Handle) Cancel() {
	h.once.Do(func() {
		h.cancelled.Store(true)
		h.svc.remove(h)
	})
}

// Cancelled reports whether Cancel has been called.
func (h *Handle) Cancelled() bool {
	return h.cancelled.Load()
}

// Every runs fn every d, first after d. Overlapping runs are skipped.
func (s *Service) Every(d time.Duration, fn func()) (*Handle, error) {
	return s.schedule(d, 0, fn)
}

// After runs fn once after d. The handle is released once fn returns.
func (s *Service) After(d time.Duration, fn func()) (*Handle, error) {
	return s.schedule(d, 1, fn)
}

func (s *Service) schedule(d time.Duration, runs int, fn func()) (*Handle, error) {
	if d <= 0 {
		return nil, fmt.Errorf("timer interval must be positive, got %s", d)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.stopped {
		return nil, ErrStopped
	}

	h := &Handle{svc: s}
	run := func() {
		if h.cancelled.Load() {
			return
		}
		if runs == 1 {
			defer h.Cancel()
		}
		defer func() {
			if r := recover(); r != nil {
				s.log.WithField("panic", r).Error("timer callback panicked")
			}
		}()
		fn()
	}

	builder := s.sched.Every(d).WaitForSchedule().SingletonMode()
	if runs > 0 {
		builder = builder.LimitRunsTo(runs)
	}
	job, err := builder.Do(run)
	if err != nil {
		return nil, fmt.Errorf("schedule timer: %w", err)
	}
	h.job = job
	s.handles[h] = struct{}{}
	return h, nil
}

func (s *Service) remove(h *Handle) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.handles, h)
	if h.job != nil && !s.stopped {
		s.sched.RemoveByReference(h.job)
	}
}

// Pending returns the number of handles not yet cancelled.
func (s *Service) Pending() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.handles)
}

// Stop cancels every handle and shuts the scheduler down.
func (s *Service) Stop() {
	s.mu.Lock()
	if s.stopped {
		s.mu.Unlock()
		return
	}
	s.stopped = true
	handles := s.handles
	s.handles = make(map[*Handle]struct{})
	s.mu.Unlock()

	for h := range handles {
		h.once.Do(func() { h.cancelled.Store(true) })
	}
	s.sched.Stop()
}
