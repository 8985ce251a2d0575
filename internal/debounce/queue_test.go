package debounce

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

type recorder struct {
	mu     sync.Mutex
	writes map[string][]int
}

func newRecorder() *recorder {
	return &recorder{writes: make(map[string][]int)}
}

func (r *recorder) write(key string, v int) WriteFunc {
	return func(context.Context) error {
		r.mu.Lock()
		defer r.mu.Unlock()
		r.writes[key] = append(r.writes[key], v)
		return nil
	}
}

func (r *recorder) get(key string) []int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]int(nil), r.writes[key]...)
}

func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("timeout waiting for %s", what)
}

func TestBurstCollapsesToOneWriteWithFinalValue(t *testing.T) {
	q := New(40 * time.Millisecond)
	rec := newRecorder()

	for i := 1; i <= 10; i++ {
		q.Schedule("idea:1:text", rec.write("idea:1:text", i))
		time.Sleep(2 * time.Millisecond)
	}
	if got := q.State("idea:1:text"); got != Dirty {
		t.Fatalf("state = %v, want dirty", got)
	}

	waitFor(t, "write", func() bool { return q.State("idea:1:text") == Clean })
	time.Sleep(60 * time.Millisecond)

	got := rec.get("idea:1:text")
	if len(got) != 1 || got[0] != 10 {
		t.Errorf("writes = %v, want [10]", got)
	}
}

func TestKeysDebounceIndependently(t *testing.T) {
	q := New(50 * time.Millisecond)
	rec := newRecorder()

	q.Schedule("a", rec.write("a", 1))
	// Keep b busy well past a's quiet period.
	for i := 0; i < 20; i++ {
		q.Schedule("b", rec.write("b", i))
		time.Sleep(5 * time.Millisecond)
	}

	if got := rec.get("a"); len(got) != 1 {
		t.Fatalf("a writes = %v, want one write while b was still being edited", got)
	}
	if got := rec.get("b"); len(got) != 0 {
		t.Fatalf("b writes = %v, want none yet", got)
	}

	waitFor(t, "b write", func() bool { return len(rec.get("b")) == 1 })
	if got := rec.get("b"); got[0] != 19 {
		t.Errorf("b final value = %d, want 19", got[0])
	}
}

func TestEditDuringWriteWaitsForInFlightWrite(t *testing.T) {
	q := New(10 * time.Millisecond)

	release := make(chan struct{})
	var (
		active   atomic.Int32
		overlaps atomic.Int32
		mu       sync.Mutex
		order    []int
	)
	write := func(v int, block bool) WriteFunc {
		return func(context.Context) error {
			if active.Add(1) > 1 {
				overlaps.Add(1)
			}
			defer active.Add(-1)
			if block {
				<-release
			}
			mu.Lock()
			order = append(order, v)
			mu.Unlock()
			return nil
		}
	}

	q.Schedule("k", write(1, true))
	waitFor(t, "writing state", func() bool { return q.State("k") == Writing })

	q.Schedule("k", write(2, false))
	if got := q.State("k"); got != Dirty {
		t.Fatalf("state after edit during write = %v, want dirty", got)
	}

	// Let the second timer expire while the first write is still blocked.
	time.Sleep(40 * time.Millisecond)
	close(release)

	waitFor(t, "clean", func() bool { return q.State("k") == Clean })
	mu.Lock()
	defer mu.Unlock()
	if len(order) != 2 || order[0] != 1 || order[1] != 2 {
		t.Errorf("write order = %v, want [1 2]", order)
	}
	if overlaps.Load() != 0 {
		t.Error("writes for one key overlapped")
	}
}

func TestFlushRunsPendingWritesNow(t *testing.T) {
	q := New(time.Hour)
	rec := newRecorder()
	q.Schedule("x", rec.write("x", 7))
	q.Schedule("y", rec.write("y", 8))

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	if err := q.Flush(ctx); err != nil {
		t.Fatalf("Flush: %v", err)
	}
	if got := rec.get("x"); len(got) != 1 || got[0] != 7 {
		t.Errorf("x writes = %v", got)
	}
	if got := rec.get("y"); len(got) != 1 || got[0] != 8 {
		t.Errorf("y writes = %v", got)
	}
	if keys := q.Pending(); len(keys) != 0 {
		t.Errorf("pending after flush = %v", keys)
	}
}

func TestOnlyDiscreteFailuresAreReported(t *testing.T) {
	var (
		mu       sync.Mutex
		reported []string
	)
	q := New(5*time.Millisecond, WithErrorHandler(func(key string, err error) {
		mu.Lock()
		reported = append(reported, key)
		mu.Unlock()
	}))
	boom := func(context.Context) error { return errors.New("boom") }

	q.Schedule("text", boom)
	q.Do("delete", boom)

	if err := q.Flush(context.Background()); err != nil {
		t.Fatal(err)
	}
	mu.Lock()
	defer mu.Unlock()
	if len(reported) != 1 || reported[0] != "delete" {
		t.Errorf("reported = %v, want [delete]", reported)
	}
}

func TestDoRunsWithoutDelay(t *testing.T) {
	q := New(time.Hour)
	rec := newRecorder()
	q.Do("toggle", rec.write("toggle", 1))
	waitFor(t, "discrete write", func() bool { return len(rec.get("toggle")) == 1 })
}

func TestCloseRejectsNewWrites(t *testing.T) {
	q := New(time.Hour)
	rec := newRecorder()
	q.Schedule("a", rec.write("a", 1))
	if err := q.Close(context.Background()); err != nil {
		t.Fatal(err)
	}
	q.Schedule("a", rec.write("a", 2))
	time.Sleep(20 * time.Millisecond)
	if got := rec.get("a"); len(got) != 1 || got[0] != 1 {
		t.Errorf("writes = %v, want [1]", got)
	}
}

func TestFlushHonoursContext(t *testing.T) {
	q := New(time.Millisecond)
	block := make(chan struct{})
	defer close(block)
	q.Schedule("slow", func(context.Context) error { <-block; return nil })
	waitFor(t, "writing", func() bool { return q.State("slow") == Writing })

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	if err := q.Flush(ctx); !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("Flush err = %v, want deadline exceeded", err)
	}
}

func TestCancelDropsPendingWrite(t *testing.T) {
	q := New(20 * time.Millisecond)
	rec := newRecorder()
	q.Schedule("a", rec.write("a", 1))
	q.Cancel("a")
	if got := q.State("a"); got != Clean {
		t.Fatalf("state after cancel = %v", got)
	}
	time.Sleep(60 * time.Millisecond)
	if got := rec.get("a"); len(got) != 0 {
		t.Errorf("writes = %v, want none", got)
	}
	if err := q.Flush(context.Background()); err != nil {
		t.Fatal(err)
	}
}

func TestDiscreteWritesRunInOrderWithoutMerging(t *testing.T) {
	q := New(time.Hour)
	rec := newRecorder()
	release := make(chan struct{})

	q.Do("idea:1:schedule", func(context.Context) error {
		<-release
		return rec.write("idea:1:schedule", 1)(context.Background())
	})
	for i := 2; i <= 5; i++ {
		q.Do("idea:1:schedule", rec.write("idea:1:schedule", i))
	}
	if got := q.State("idea:1:schedule"); got != Dirty {
		t.Fatalf("state with queued writes = %v, want dirty", got)
	}
	close(release)

	if err := q.Flush(context.Background()); err != nil {
		t.Fatal(err)
	}
	got := rec.get("idea:1:schedule")
	if len(got) != 5 {
		t.Fatalf("writes = %v, want all five", got)
	}
	for i, v := range got {
		if v != i+1 {
			t.Fatalf("writes = %v, want call order", got)
		}
	}
}

func TestDoRunsWaitingDebouncedWriteFirst(t *testing.T) {
	q := New(time.Hour)
	rec := newRecorder()
	q.Schedule("k", rec.write("k", 1))
	q.Do("k", rec.write("k", 2))

	waitFor(t, "clean", func() bool { return q.State("k") == Clean })
	if got := rec.get("k"); len(got) != 2 || got[0] != 1 || got[1] != 2 {
		t.Errorf("writes = %v, want [1 2]", got)
	}
}

func TestFlushRacingTimersNeverOverlaps(t *testing.T) {
	q := New(time.Millisecond)
	var (
		active   atomic.Int32
		overlaps atomic.Int32
		calls    atomic.Int32
	)
	write := func(context.Context) error {
		if active.Add(1) > 1 {
			overlaps.Add(1)
		}
		calls.Add(1)
		active.Add(-1)
		return nil
	}

	var wg sync.WaitGroup
	for g := 0; g < 4; g++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < 200; i++ {
				q.Do("k", write)
				q.Schedule("k", write)
				if err := q.Flush(context.Background()); err != nil {
					t.Error(err)
					return
				}
			}
		}()
	}
	wg.Wait()
	if err := q.Flush(context.Background()); err != nil {
		t.Fatal(err)
	}
	if overlaps.Load() != 0 {
		t.Errorf("%d overlapping writes for one key", overlaps.Load())
	}
	if calls.Load() < 800 {
		t.Errorf("calls = %d, want every discrete write to run", calls.Load())
	}
	if keys := q.Pending(); len(keys) != 0 {
		t.Errorf("pending = %v", keys)
	}
}
