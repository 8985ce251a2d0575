// Package debounce collapses bursts of writes per key into one remote write and
// serializes the writes issued for the same key.
//
// Every key moves through clean -> dirty -> writing -> clean. Scheduling while a
// write is in flight moves the key back to dirty; the next write for that key
// starts only after the in-flight one returns, so an older value can never land
// after a newer one.
package debounce

import (
	"context"
	"log/slog"
	"sort"
	"sync"
	"time"
)

// State is the sync state of one key.
type State int

const (
	Clean State = iota
	Dirty
	Writing
)

func (s State) String() string {
	switch s {
	case Dirty:
		return "dirty"
	case Writing:
		return "writing"
	default:
		return "clean"
	}
}

// WriteFunc performs one remote write.
type WriteFunc func(ctx context.Context) error

// ErrorHandler receives failures of discrete writes (see Queue.Do).
type ErrorHandler func(key string, err error)

type op struct {
	fn     WriteFunc
	report bool
}

type entry struct {
	timer   *time.Timer
	seq     uint64
	pending WriteFunc
	ready   []op
	writing bool
	done    chan struct{}
}

// idle reports whether nothing is waiting or running for the entry.
func (e *entry) idle() bool {
	return e.pending == nil && len(e.ready) == 0 && !e.writing
}

// promote moves the debounced write into the run list. A debounced write that
// is still waiting there is replaced instead of queued behind.
func (e *entry) promote() {
	if e.pending == nil {
		return
	}
	if e.timer != nil {
		e.timer.Stop()
		e.timer = nil
	}
	e.seq++
	if n := len(e.ready); n > 0 && !e.ready[n-1].report {
		e.ready[n-1].fn = e.pending
	} else {
		e.ready = append(e.ready, op{fn: e.pending})
	}
	e.pending = nil
}

// Queue holds the pending writes of one container.
type Queue struct {
	delay   time.Duration
	timeout time.Duration
	logger  *slog.Logger
	onError ErrorHandler

	mu      sync.Mutex
	entries map[string]*entry
	closed  bool
}

// Option configures a Queue.
type Option func(*Queue)

// WithLogger sets the logger used for write failures.
func WithLogger(l *slog.Logger) Option {
	return func(q *Queue) { q.logger = l }
}

// WithErrorHandler sets the handler for failed discrete writes.
func WithErrorHandler(h ErrorHandler) Option {
	return func(q *Queue) { q.onError = h }
}

// WithWriteTimeout bounds each write.
func WithWriteTimeout(d time.Duration) Option {
	return func(q *Queue) { q.timeout = d }
}

// New returns a queue whose debounced writes fire after delay of quiet.
func New(delay time.Duration, opts ...Option) *Queue {
	q := &Queue{
		delay:   delay,
		logger:  slog.Default(),
		entries: make(map[string]*entry),
	}
	for _, opt := range opts {
		opt(q)
	}
	return q
}

// entryLocked returns the entry for key, creating it. Callers hold q.mu.
func (q *Queue) entryLocked(key string) (*entry, bool) {
	if q.closed {
		q.logger.Warn("debounce: write dropped after close", slog.String("key", key))
		return nil, false
	}
	e := q.entries[key]
	if e == nil {
		e = &entry{done: make(chan struct{})}
		q.entries[key] = e
	}
	return e, true
}

// Schedule (re)starts the quiet period for key. Only the last fn scheduled
// before the period elapses runs. Failures are logged and otherwise dropped.
func (q *Queue) Schedule(key string, fn WriteFunc) {
	q.mu.Lock()
	defer q.mu.Unlock()

	e, ok := q.entryLocked(key)
	if !ok {
		return
	}
	if e.timer != nil {
		e.timer.Stop()
	}
	e.seq++
	e.pending = fn
	seq := e.seq
	e.timer = time.AfterFunc(q.delay, func() { q.fire(key, seq) })
}

// Do runs fn for key right away without waiting for the caller. Discrete
// writes for one key run one at a time in call order and are never merged; a
// debounced write still waiting for the key goes first. Failures are logged
// and passed to the error handler.
func (q *Queue) Do(key string, fn WriteFunc) {
	q.mu.Lock()
	defer q.mu.Unlock()

	e, ok := q.entryLocked(key)
	if !ok {
		return
	}
	e.promote()
	e.ready = append(e.ready, op{fn: fn, report: true})
	q.startLocked(key, e)
}

func (q *Queue) fire(key string, seq uint64) {
	q.mu.Lock()
	defer q.mu.Unlock()

	e, ok := q.entries[key]
	if !ok || e.seq != seq || e.pending == nil {
		return
	}
	e.timer = nil
	e.promote()
	q.startLocked(key, e)
}

// startLocked starts the run loop for e unless one is already draining it.
// Callers hold q.mu.
func (q *Queue) startLocked(key string, e *entry) {
	if e.writing || len(e.ready) == 0 {
		return
	}
	e.writing = true
	go q.run(key, e)
}

func (q *Queue) run(key string, e *entry) {
	q.mu.Lock()
	for len(e.ready) > 0 {
		next := e.ready[0]
		e.ready = e.ready[1:]
		q.mu.Unlock()

		if next.fn != nil {
			if err := q.call(next.fn); err != nil {
				q.fail(key, err, next.report)
			}
		}

		q.mu.Lock()
	}
	e.writing = false
	if e.idle() {
		delete(q.entries, key)
		close(e.done)
	}
	q.mu.Unlock()
}

func (q *Queue) call(fn WriteFunc) error {
	ctx := context.Background()
	if q.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, q.timeout)
		defer cancel()
	}
	return fn(ctx)
}

func (q *Queue) fail(key string, err error, report bool) {
	if !report {
		q.logger.Warn("debounce: background write failed",
			slog.String("key", key), slog.String("error", err.Error()))
		return
	}
	q.logger.Error("debounce: write failed",
		slog.String("key", key), slog.String("error", err.Error()))
	if q.onError != nil {
		q.onError(key, err)
	}
}

// Cancel drops the writes for key that have not started yet. A write already
// in flight finishes.
func (q *Queue) Cancel(key string) {
	q.mu.Lock()
	defer q.mu.Unlock()
	e, ok := q.entries[key]
	if !ok {
		return
	}
	if e.timer != nil {
		e.timer.Stop()
		e.timer = nil
	}
	e.seq++
	e.pending = nil
	e.ready = nil
	if e.idle() {
		delete(q.entries, key)
		close(e.done)
	}
}

// State reports the current state of key.
func (q *Queue) State(key string) State {
	q.mu.Lock()
	defer q.mu.Unlock()
	e, ok := q.entries[key]
	switch {
	case !ok:
		return Clean
	case e.pending != nil || len(e.ready) > 0:
		return Dirty
	case e.writing:
		return Writing
	default:
		return Clean
	}
}

// Pending returns the keys that are dirty or writing, sorted.
func (q *Queue) Pending() []string {
	q.mu.Lock()
	defer q.mu.Unlock()
	keys := make([]string, 0, len(q.entries))
	for k := range q.entries {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Flush starts every pending write now and waits until all keys are clean or
// ctx is done.
func (q *Queue) Flush(ctx context.Context) error {
	q.mu.Lock()
	waits := make([]chan struct{}, 0, len(q.entries))
	for key, e := range q.entries {
		waits = append(waits, e.done)
		e.promote()
		q.startLocked(key, e)
	}
	q.mu.Unlock()

	for _, done := range waits {
		select {
		case <-done:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return nil
}

// Close flushes pending writes and rejects new ones.
func (q *Queue) Close(ctx context.Context) error {
	err := q.Flush(ctx)
	q.mu.Lock()
	q.closed = true
	q.mu.Unlock()
	return err
}
