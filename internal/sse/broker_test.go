package sse

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/starford/postjournal/internal/auth"
)

func drain(ch chan []byte) []string {
	var out []string
	for {
		select {
		case msg := <-ch:
			out = append(out, string(msg))
		default:
			return out
		}
	}
}

func TestSubscribeUnsubscribe(t *testing.T) {
	b := NewBroker(100 * time.Millisecond)
	defer b.Close()
	if b.ClientCount("") != 0 {
		t.Fatalf("expected 0 clients")
	}
	ch := b.Subscribe("alice")
	b.Subscribe("bob")
	if n := b.ClientCount("alice"); n != 1 {
		t.Fatalf("alice clients = %d", n)
	}
	if n := b.ClientCount(""); n != 2 {
		t.Fatalf("total clients = %d", n)
	}
	b.Unsubscribe("alice", ch)
	if b.ClientCount("alice") != 0 {
		t.Fatalf("expected 0 alice clients after unsub")
	}
}

func TestPublishStaysWithOwner(t *testing.T) {
	b := NewBroker(100 * time.Millisecond)
	defer b.Close()
	alice := b.Subscribe("alice")
	bob := b.Subscribe("bob")

	b.Publish("alice", Event{Type: JournalUpdated, Data: map[string]string{"date": "2026-10-16"}})

	select {
	case msg := <-alice:
		s := string(msg)
		if !strings.Contains(s, "event: journal.updated") || !strings.Contains(s, `"date":"2026-10-16"`) {
			t.Errorf("message = %q", s)
		}
	case <-time.After(time.Second):
		t.Fatal("timeout waiting for message")
	}
	time.Sleep(20 * time.Millisecond)
	if got := drain(bob); len(got) != 0 {
		t.Errorf("bob received %v", got)
	}
}

func TestPublishChangeThrottlesCalendarChanged(t *testing.T) {
	b := NewBroker(500 * time.Millisecond)
	defer b.Close()
	ch := b.Subscribe("alice")

	b.PublishChange("alice", IdeaCreated, "a")
	b.PublishChange("alice", CalendarUpdated, "a_2026-10-16")
	b.PublishChange("alice", ProfileUpdated, "alice")

	time.Sleep(50 * time.Millisecond)
	calendar, other := 0, 0
	for _, s := range drain(ch) {
		if strings.Contains(s, "event: calendar.changed") {
			calendar++
		} else {
			other++
		}
	}
	if other != 3 {
		t.Errorf("change events = %d, want 3", other)
	}
	if calendar != 1 {
		t.Errorf("calendar.changed events = %d, want 1 (throttled)", calendar)
	}
}

func TestThrottleIsPerOwner(t *testing.T) {
	b := NewBroker(time.Hour)
	defer b.Close()
	alice := b.Subscribe("alice")
	bob := b.Subscribe("bob")

	b.PublishChange("alice", IdeaDeleted, "x")
	b.PublishChange("bob", IdeaDeleted, "y")
	time.Sleep(50 * time.Millisecond)

	for name, ch := range map[string]chan []byte{"alice": alice, "bob": bob} {
		msgs := drain(ch)
		if len(msgs) != 2 || !strings.Contains(msgs[1], CalendarChanged) {
			t.Errorf("%s messages = %v", name, msgs)
		}
	}
}

type flushRecorder struct {
	*httptest.ResponseRecorder
	mu sync.Mutex
}

func (f *flushRecorder) Write(p []byte) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.ResponseRecorder.Write(p)
}

func (f *flushRecorder) body() string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.Body.String()
}

func TestSSEHandler(t *testing.T) {
	b := NewBroker(100 * time.Millisecond)
	defer b.Close()

	ctx, cancel := context.WithCancel(auth.WithOwner(context.Background(), "alice"))
	defer cancel()

	req := httptest.NewRequest(http.MethodGet, "/api/events", nil).WithContext(ctx)
	w := &flushRecorder{ResponseRecorder: httptest.NewRecorder()}

	done := make(chan struct{})
	go func() {
		b.ServeHTTP(w, req)
		close(done)
	}()

	deadline := time.Now().Add(time.Second)
	for b.ClientCount("alice") != 1 {
		if time.Now().After(deadline) {
			t.Fatal("handler never subscribed")
		}
		time.Sleep(5 * time.Millisecond)
	}

	b.PublishChange("alice", IdeaUpdated, "i1")
	time.Sleep(50 * time.Millisecond)

	cancel()
	<-done

	body := w.body()
	if !strings.Contains(body, "event: idea.updated") || !strings.Contains(body, `"id":"i1"`) {
		t.Errorf("handler output missing event: %q", body)
	}

	time.Sleep(50 * time.Millisecond)
	if b.ClientCount("") != 0 {
		t.Errorf("client not cleaned up after disconnect")
	}
}

func TestSSEHandlerRequiresOwner(t *testing.T) {
	b := NewBroker(time.Second)
	defer b.Close()
	w := httptest.NewRecorder()
	b.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/events", nil))
	if w.Code != http.StatusUnauthorized {
		t.Errorf("status = %d", w.Code)
	}
}

func TestPublishDropsOnFullBuffer(t *testing.T) {
	b := NewBroker(time.Second)
	defer b.Close()
	ch := b.Subscribe("alice")
	defer b.Unsubscribe("alice", ch)

	// Past the 64 message buffer; must not block.
	for i := 0; i < 70; i++ {
		b.Publish("alice", Event{Type: "test", Data: map[string]int{"i": i}})
	}
}

func TestCloseClosesSubscribersAndStopsOperations(t *testing.T) {
	b := NewBroker(100 * time.Millisecond)
	ch := b.Subscribe("alice")
	if b.ClientCount("alice") != 1 {
		t.Fatalf("expected 1 client")
	}

	b.Close()

	select {
	case _, ok := <-ch:
		if ok {
			t.Fatal("expected subscriber channel to be closed")
		}
	case <-time.After(time.Second):
		t.Fatal("timeout waiting for channel close")
	}

	if b.ClientCount("") != 0 {
		t.Fatalf("expected 0 clients after close")
	}
	b.Publish("alice", Event{Type: IdeaUpdated})
	b.PublishChange("alice", IdeaUpdated, "x")
}
