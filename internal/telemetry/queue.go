// Package telemetry buffers fire-and-forget analytics events and flushes
// them in small FIFO batches.
package telemetry

import (
	"context"
	"sync"
	"time"

	"github.com/AbuSalehBinshaq/Kasrah-SDK-CDN/internal/metrics"
	"github.com/AbuSalehBinshaq/Kasrah-SDK-CDN/internal/models"
	"go.uber.org/zap"
)

const (
	DefaultBatchSize     = 10
	DefaultMaxQueue      = 1000
	DefaultFlushInterval = 5 * time.Second
)

// Sink receives flushed batches. Events within a batch are in enqueue order.
type Sink interface {
	Submit(ctx context.Context, events []models.TelemetryEvent) error
}

// SinkFunc adapts a function to Sink.
type SinkFunc func(ctx context.Context, events []models.TelemetryEvent) error

func (f SinkFunc) Submit(ctx context.Context, events []models.TelemetryEvent) error {
	return f(ctx, events)
}

// Config configures a Queue.
type Config struct {
	BatchSize     int
	MaxQueue      int
	FlushInterval time.Duration
}

// Queue is a bounded FIFO of telemetry events. When full, the oldest event is
// dropped. Delivery is at most once: a failed batch is logged, not retried.
type Queue struct {
	sink    Sink
	cfg     Config
	logger  *zap.Logger
	metrics *metrics.Metrics
	now     func() time.Time

	mu     sync.Mutex
	events []models.TelemetryEvent
}

// NewQueue creates a queue that flushes into sink.
func NewQueue(sink Sink, cfg Config, logger *zap.Logger, m *metrics.Metrics) *Queue {
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = DefaultBatchSize
	}
	if cfg.MaxQueue <= 0 {
		cfg.MaxQueue = DefaultMaxQueue
	}
	if cfg.FlushInterval <= 0 {
		cfg.FlushInterval = DefaultFlushInterval
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	return &Queue{
		sink:    sink,
		cfg:     cfg,
		logger:  logger,
		metrics: m,
		now:     time.Now,
	}
}

// SetClock replaces the clock used to stamp events without a timestamp.
func (q *Queue) SetClock(now func() time.Time) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.now = now
}

// Enqueue appends an event. It never blocks on the network.
func (q *Queue) Enqueue(e models.TelemetryEvent) {
	q.mu.Lock()
	if e.Timestamp == 0 {
		e.Timestamp = q.now().UnixMilli()
	}
	dropped := false
	if len(q.events) >= q.cfg.MaxQueue {
		q.events[0] = models.TelemetryEvent{}
		q.events = q.events[1:]
		dropped = true
	}
	q.events = append(q.events, e)
	depth := len(q.events)
	q.mu.Unlock()

	if dropped {
		q.logger.Debug("telemetry queue full, dropped oldest event", zap.Int("max_queue", q.cfg.MaxQueue))
	}
	if q.metrics != nil {
		q.metrics.RecordEnqueue(depth, dropped)
	}
}

// Len returns the number of queued events.
func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.events)
}

// Snapshot returns a copy of the queued events, oldest first.
func (q *Queue) Snapshot() []models.TelemetryEvent {
	q.mu.Lock()
	defer q.mu.Unlock()
	out := make([]models.TelemetryEvent, len(q.events))
	copy(out, q.events)
	return out
}

// take removes up to BatchSize of the oldest events.
func (q *Queue) take() ([]models.TelemetryEvent, int) {
	q.mu.Lock()
	defer q.mu.Unlock()

	n := len(q.events)
	if n > q.cfg.BatchSize {
		n = q.cfg.BatchSize
	}
	if n == 0 {
		return nil, 0
	}
	batch := make([]models.TelemetryEvent, n)
	copy(batch, q.events[:n])
	q.events = q.events[n:]
	if len(q.events) == 0 {
		q.events = nil
	}
	return batch, len(q.events)
}

// Flush submits one batch of at most BatchSize events. It returns the number
// of events taken off the queue, which is also the count lost on error.
func (q *Queue) Flush(ctx context.Context) (int, error) {
	batch, depth := q.take()
	if len(batch) == 0 {
		return 0, nil
	}

	err := q.sink.Submit(ctx, batch)
	if q.metrics != nil {
		q.metrics.RecordFlush(len(batch), depth, err)
	}
	if err != nil {
		q.logger.Warn("telemetry flush failed, batch dropped",
			zap.Int("events", len(batch)),
			zap.Error(err),
		)
		return len(batch), err
	}
	q.logger.Debug("telemetry flushed", zap.Int("events", len(batch)), zap.Int("remaining", depth))
	return len(batch), nil
}

// Run flushes on every FlushInterval tick until ctx is cancelled.
func (q *Queue) Run(ctx context.Context) {
	ticker := time.NewTicker(q.cfg.FlushInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			q.Flush(ctx)
		}
	}
}

// Drain flushes until the queue is empty or ctx is done.
func (q *Queue) Drain(ctx context.Context) error {
	for q.Len() > 0 {
		if err := ctx.Err(); err != nil {
			return err
		}
		q.Flush(ctx)
	}
	return nil
}
