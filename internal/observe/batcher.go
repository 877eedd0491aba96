package observe

import (
	"sync"
	"time"
)

const (
	defaultBatchSize     = 25
	defaultFlushInterval = 5 * time.Second
)

// EventBatcher accumulates events and flushes them in batches, either when
// the queue reaches its size limit or on a timer, whichever comes first.
// Close drains the remaining queue so no events are lost on shutdown.
type EventBatcher struct {
	logger   *Logger
	maxSize  int
	interval time.Duration

	mu    sync.Mutex
	queue []Event

	done    chan struct{}
	stopped sync.Once
	wg      sync.WaitGroup
}

// BatcherOption configures an EventBatcher.
type BatcherOption func(*EventBatcher)

// WithBatchSize sets the flush threshold.
func WithBatchSize(n int) BatcherOption {
	return func(b *EventBatcher) {
		if n > 0 {
			b.maxSize = n
		}
	}
}

// WithFlushInterval sets the timer-based flush period.
func WithFlushInterval(d time.Duration) BatcherOption {
	return func(b *EventBatcher) {
		if d > 0 {
			b.interval = d
		}
	}
}

// NewEventBatcher starts a batcher delivering through the given logger.
func NewEventBatcher(logger *Logger, opts ...BatcherOption) *EventBatcher {
	b := &EventBatcher{
		logger:   logger,
		maxSize:  defaultBatchSize,
		interval: defaultFlushInterval,
		done:     make(chan struct{}),
	}
	for _, opt := range opts {
		opt(b)
	}

	b.wg.Add(1)
	go b.loop()
	return b
}

// Add queues one event, flushing immediately when the size limit is reached.
func (b *EventBatcher) Add(e Event) {
	b.mu.Lock()
	b.queue = append(b.queue, e)
	full := len(b.queue) >= b.maxSize
	b.mu.Unlock()

	if full {
		b.Flush()
	}
}

// Flush drains the current queue and delivers it as one batch. The drain is
// atomic under the mutex; delivery happens outside it.
func (b *EventBatcher) Flush() {
	b.mu.Lock()
	if len(b.queue) == 0 {
		b.mu.Unlock()
		return
	}
	batch := b.queue
	b.queue = nil
	b.mu.Unlock()

	b.logger.LogEvents(batch)
}

// Close stops the timer loop and drains any queued events. Safe to call more
// than once.
func (b *EventBatcher) Close() {
	b.stopped.Do(func() {
		close(b.done)
	})
	b.wg.Wait()
	b.Flush()
}

func (b *EventBatcher) loop() {
	defer b.wg.Done()
	ticker := time.NewTicker(b.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			b.Flush()
		case <-b.done:
			return
		}
	}
}
