package events

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
)

// Listener is called for each delivered event.
type Listener func(e Event)

// DefaultQueueSize bounds the number of undelivered events.
const DefaultQueueSize = 1024

// sinkTimeout bounds a single sink write.
const sinkTimeout = 2 * time.Second

// Bus queues events and delivers them from a single goroutine, so listeners
// observe events in publish order. A full queue drops the event.
type Bus struct {
	mu        sync.RWMutex
	listeners map[Kind][]Listener
	all       []Listener
	sinks     []Sink

	queue   chan Event
	dropped atomic.Uint64
	logger  *zap.Logger
}

// NewBus creates a bus with the given queue capacity.
func NewBus(size int, logger *zap.Logger) *Bus {
	if size <= 0 {
		size = DefaultQueueSize
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Bus{
		listeners: make(map[Kind][]Listener),
		queue:     make(chan Event, size),
		logger:    logger.Named("events"),
	}
}

// On registers a listener for one event kind.
func (b *Bus) On(kind Kind, listener Listener) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.listeners[kind] = append(b.listeners[kind], listener)
}

// OnAll registers a listener for every event.
func (b *Bus) OnAll(listener Listener) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.all = append(b.all, listener)
}

// AddSink registers a sink that receives every event.
func (b *Bus) AddSink(s Sink) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.sinks = append(b.sinks, s)
}

// Publish enqueues an event without blocking.
func (b *Bus) Publish(e Event) {
	if e.Time.IsZero() {
		e.Time = time.Now()
	}
	select {
	case b.queue <- e:
	default:
		b.dropped.Add(1)
		b.logger.Warn("event queue full, dropping event",
			zap.String("kind", string(e.Kind)),
			zap.String("job_id", e.JobID))
	}
}

// Dropped returns the number of events dropped because the queue was full.
func (b *Bus) Dropped() uint64 {
	return b.dropped.Load()
}

// Run delivers queued events until ctx is cancelled, then drains what is
// already queued.
func (b *Bus) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			for {
				select {
				case e := <-b.queue:
					b.deliver(context.Background(), e)
				default:
					return nil
				}
			}
		case e := <-b.queue:
			b.deliver(ctx, e)
		}
	}
}

func (b *Bus) deliver(ctx context.Context, e Event) {
	b.mu.RLock()
	listeners := append([]Listener(nil), b.listeners[e.Kind]...)
	all := append([]Listener(nil), b.all...)
	sinks := append([]Sink(nil), b.sinks...)
	b.mu.RUnlock()

	for _, l := range listeners {
		l(e)
	}
	for _, l := range all {
		l(e)
	}
	for _, s := range sinks {
		wctx, cancel := context.WithTimeout(ctx, sinkTimeout)
		if err := s.Write(wctx, e); err != nil {
			b.logger.Debug("sink write failed", zap.String("kind", string(e.Kind)), zap.Error(err))
		}
		cancel()
	}
}

// Recorder is a synchronous Publisher that keeps every event in memory.
type Recorder struct {
	mu     sync.Mutex
	events []Event
}

// Publish records the event.
func (r *Recorder) Publish(e Event) {
	if e.Time.IsZero() {
		e.Time = time.Now()
	}
	r.mu.Lock()
	r.events = append(r.events, e)
	r.mu.Unlock()
}

// Events returns a copy of everything recorded so far.
func (r *Recorder) Events() []Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Event(nil), r.events...)
}

// Kinds returns the kinds of the recorded events in order.
func (r *Recorder) Kinds() []Kind {
	r.mu.Lock()
	defer r.mu.Unlock()
	kinds := make([]Kind, len(r.events))
	for i, e := range r.events {
		kinds[i] = e.Kind
	}
	return kinds
}

// Has reports whether an event of the given kind was recorded.
func (r *Recorder) Has(kind Kind) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, e := range r.events {
		if e.Kind == kind {
			return true
		}
	}
	return false
}
