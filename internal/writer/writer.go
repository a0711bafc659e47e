package writer

import (
	"context"
	"sync"
	"time"

	"github.com/influxdata/influxdb-client-go/v2/api/write"

	"github.com/millworks/millstream-core/internal/infrastructure/logging"
	"github.com/millworks/millstream-core/internal/metrics"
)

// Item is anything the writer can persist: normalized records, anomaly
// events, and health samples all yield an InfluxDB point.
type Item interface {
	Point() *write.Point
}

// Store is the persistence backend. A flush is a single bulk call: the
// whole batch succeeds or fails together, never partially.
type Store interface {
	WritePoints(ctx context.Context, points []*write.Point) error
}

// defaultFlushTimeout bounds a single flush including all retries.
const defaultFlushTimeout = 30 * time.Second

// BatchWriter accumulates points and flushes them in bulk.
//
// A flush is triggered when the batch reaches maxSize, when the oldest
// item has waited maxAge, or on Close. Failed flushes are retried per
// the injected Policy; once the budget is exhausted the batch is
// dropped and counted. Dropping beats unbounded memory growth during a
// store outage.
//
// Submit is safe for concurrent use from all producers. Flushes are
// serialized: at most one store call is in flight, and submissions
// during a flush land in the next batch.
type BatchWriter struct {
	store    Store
	policy   Policy
	maxSize  int
	maxAge   time.Duration
	counters *metrics.Counters
	logger   *logging.Logger

	// batchMu guards batch, ageTimer, and closed.
	batchMu  sync.Mutex
	batch    []*write.Point
	ageTimer *time.Timer
	closed   bool

	// flushMu serializes store calls.
	flushMu sync.Mutex

	// window records the outcome of the last N flushes for readiness.
	windowMu   sync.Mutex
	window     []bool
	windowSize int
}

// New creates a BatchWriter.
//
// Parameters:
//   - store: Persistence backend
//   - policy: Retry schedule for failed flushes
//   - maxSize: Flush when the batch reaches this many points
//   - maxAge: Flush when the oldest point has waited this long
//   - windowSize: Number of recent flush outcomes kept for readiness
func New(store Store, policy Policy, maxSize int, maxAge time.Duration, windowSize int, counters *metrics.Counters, logger *logging.Logger) *BatchWriter {
	if maxSize < 1 {
		maxSize = 1
	}
	return &BatchWriter{
		store:      store,
		policy:     policy,
		maxSize:    maxSize,
		maxAge:     maxAge,
		counters:   counters,
		logger:     logger,
		batch:      make([]*write.Point, 0, maxSize),
		windowSize: windowSize,
	}
}

// Submit appends an item to the in-flight batch. If the batch reaches
// maxSize the flush runs on the caller's goroutine; otherwise the age
// timer is armed when this is the first item.
func (w *BatchWriter) Submit(item Item) {
	w.batchMu.Lock()
	if w.closed {
		w.batchMu.Unlock()
		return
	}

	w.batch = append(w.batch, item.Point())
	full := len(w.batch) >= w.maxSize
	if len(w.batch) == 1 && !full && w.maxAge > 0 {
		w.ageTimer = time.AfterFunc(w.maxAge, w.Flush)
	}
	w.batchMu.Unlock()

	if full {
		w.Flush()
	}
}

// Flush writes out the current batch, if any. Called by the size
// trigger, the age timer, and Close; safe to call at any time.
func (w *BatchWriter) Flush() {
	// Serialize with any in-flight flush before swapping the batch, so
	// a concurrent size trigger cannot reorder batches.
	w.flushMu.Lock()
	defer w.flushMu.Unlock()

	w.batchMu.Lock()
	if len(w.batch) == 0 {
		w.batchMu.Unlock()
		return
	}
	points := w.batch
	w.batch = make([]*write.Point, 0, w.maxSize)
	if w.ageTimer != nil {
		w.ageTimer.Stop()
		w.ageTimer = nil
	}
	w.batchMu.Unlock()

	w.flush(points)
}

// flush performs the store call with retries. Caller holds flushMu.
func (w *BatchWriter) flush(points []*write.Point) {
	ctx, cancel := context.WithTimeout(context.Background(), defaultFlushTimeout)
	defer cancel()

	err := w.policy.Do(ctx, func(ctx context.Context) error {
		return w.store.WritePoints(ctx, points)
	})
	if err != nil {
		w.counters.BatchesDropped.Add(1)
		w.recordFlush(false)
		w.logger.Error("batch dropped after retry exhaustion",
			"points", len(points),
			"attempts", w.policy.MaxAttempts,
			"error", err,
		)
		return
	}

	w.counters.BatchesFlushed.Add(1)
	w.counters.PointsWritten.Add(int64(len(points)))
	w.recordFlush(true)
	w.logger.Debug("batch flushed", "points", len(points))
}

// recordFlush appends a flush outcome to the readiness window.
func (w *BatchWriter) recordFlush(ok bool) {
	if w.windowSize <= 0 {
		return
	}
	w.windowMu.Lock()
	defer w.windowMu.Unlock()

	w.window = append(w.window, ok)
	if len(w.window) > w.windowSize {
		w.window = w.window[len(w.window)-w.windowSize:]
	}
}

// Healthy reports the readiness contribution of the writer: false only
// when the window is full and every flush in it failed. An idle or
// warming-up writer is healthy.
func (w *BatchWriter) Healthy() bool {
	if w.windowSize <= 0 {
		return true
	}
	w.windowMu.Lock()
	defer w.windowMu.Unlock()

	if len(w.window) < w.windowSize {
		return true
	}
	for _, ok := range w.window {
		if ok {
			return true
		}
	}
	return false
}

// Close stops accepting submissions and flushes the remaining batch.
// Unflushed data is only lost under the retry-exhaustion policy.
func (w *BatchWriter) Close() {
	w.batchMu.Lock()
	if w.closed {
		w.batchMu.Unlock()
		return
	}
	w.closed = true
	if w.ageTimer != nil {
		w.ageTimer.Stop()
		w.ageTimer = nil
	}
	w.batchMu.Unlock()

	w.Flush()
}

// Len returns the current batch size. Intended for tests and logging.
func (w *BatchWriter) Len() int {
	w.batchMu.Lock()
	defer w.batchMu.Unlock()
	return len(w.batch)
}
