// Package reactor runs periodic control work on a single goroutine. Tasks run
// to completion one at a time, so a tick never preempts another tick.
package reactor

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"
)

// Task is a unit of periodic work.
type Task func(now time.Time)

type entry struct {
	name     string
	interval time.Duration
	next     time.Time
	run      Task
	overruns int
}

// Reactor schedules registered tasks by interval.
type Reactor struct {
	mu      sync.Mutex
	tasks   []*entry
	running bool
	wake    chan struct{}
	now     func() time.Time
	logger  *zap.Logger
}

// New creates an empty reactor.
func New(logger *zap.Logger) *Reactor {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Reactor{
		wake:   make(chan struct{}, 1),
		now:    time.Now,
		logger: logger.Named("reactor"),
	}
}

// Every registers a task that runs each interval, first one interval from now.
// Tasks that become due together run in registration order.
func (r *Reactor) Every(name string, interval time.Duration, task Task) error {
	if interval <= 0 {
		return fmt.Errorf("reactor: task %q: interval must be positive", name)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, t := range r.tasks {
		if t.name == name {
			return fmt.Errorf("reactor: task %q already registered", name)
		}
	}
	r.tasks = append(r.tasks, &entry{
		name:     name,
		interval: interval,
		next:     r.now().Add(interval),
		run:      task,
	})
	select {
	case r.wake <- struct{}{}:
	default:
	}
	return nil
}

// Tasks returns the registered task names in registration order.
func (r *Reactor) Tasks() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	names := make([]string, len(r.tasks))
	for i, t := range r.tasks {
		names[i] = t.name
	}
	return names
}

// Run executes tasks until ctx is cancelled.
func (r *Reactor) Run(ctx context.Context) error {
	r.mu.Lock()
	if r.running {
		r.mu.Unlock()
		return fmt.Errorf("reactor: already running")
	}
	r.running = true
	r.mu.Unlock()
	defer func() {
		r.mu.Lock()
		r.running = false
		r.mu.Unlock()
	}()

	timer := time.NewTimer(time.Hour)
	defer timer.Stop()

	for {
		wait := r.runDue()
		if !timer.Stop() {
			select {
			case <-timer.C:
			default:
			}
		}
		timer.Reset(wait)

		select {
		case <-ctx.Done():
			return nil
		case <-r.wake:
		case <-timer.C:
		}
	}
}

// runDue runs every due task and returns the time until the next one.
func (r *Reactor) runDue() time.Duration {
	r.mu.Lock()
	now := r.now()
	var due []*entry
	for _, t := range r.tasks {
		if !now.Before(t.next) {
			due = append(due, t)
		}
	}
	r.mu.Unlock()

	for _, t := range due {
		t.run(now)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	after := r.now()
	for _, t := range due {
		t.next = t.next.Add(t.interval)
		// Skip missed periods instead of bursting to catch up.
		if !after.Before(t.next) {
			t.overruns++
			r.logger.Warn("task overran its period",
				zap.String("task", t.name),
				zap.Duration("interval", t.interval),
				zap.Int("overruns", t.overruns))
			t.next = after.Add(t.interval)
		}
	}

	wait := time.Hour
	for _, t := range r.tasks {
		if d := t.next.Sub(after); d < wait {
			wait = d
		}
	}
	if wait < 0 {
		wait = 0
	}
	return wait
}
