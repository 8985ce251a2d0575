// Package sse pushes store changes to connected clients as Server-Sent Events,
// scoped to the owner the request authenticated as.
package sse

import (
	"encoding/json"
	"fmt"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/starford/postjournal/internal/auth"
)

// Event types.
const (
	JournalUpdated  = "journal.updated"
	IdeaCreated     = "idea.created"
	IdeaUpdated     = "idea.updated"
	IdeaDeleted     = "idea.deleted"
	CalendarUpdated = "calendar.updated"
	ProfileUpdated  = "profile.updated"
	// CalendarChanged is sent at most once per throttle interval per owner
	// after any change that can alter the month view.
	CalendarChanged = "calendar.changed"
)

// Event is one message to an owner's clients.
type Event struct {
	Type string `json:"type"`
	Data any    `json:"data"`
}

type subscription struct {
	owner string
	ch    chan []byte
}

type publishReq struct {
	owner string
	event Event
}

type changeReq struct {
	owner string
	kind  string
	id    string
}

type countReq struct {
	owner string
	resp  chan int
}

// Broker fans events out to subscribers.
//
// A single event loop owns the subscriber sets and the per-owner throttle
// timestamps; public methods talk to it over channels.
type Broker struct {
	calendarMin time.Duration

	subscribeCh   chan subscription
	unsubscribeCh chan subscription
	publishCh     chan publishReq
	changeCh      chan changeReq
	countReqCh    chan countReq

	stopCh  chan struct{}
	stopped chan struct{}
	closed  atomic.Bool
}

// NewBroker creates a broker with the given calendar.changed throttle.
func NewBroker(calendarThrottle time.Duration) *Broker {
	if calendarThrottle <= 0 {
		calendarThrottle = 2 * time.Second
	}

	b := &Broker{
		calendarMin:   calendarThrottle,
		subscribeCh:   make(chan subscription),
		unsubscribeCh: make(chan subscription),
		publishCh:     make(chan publishReq, 256),
		changeCh:      make(chan changeReq, 256),
		countReqCh:    make(chan countReq),
		stopCh:        make(chan struct{}),
		stopped:       make(chan struct{}),
	}

	go b.run()
	return b
}

func touchesCalendar(kind string) bool {
	switch kind {
	case IdeaCreated, IdeaUpdated, IdeaDeleted, CalendarUpdated:
		return true
	}
	return false
}

func (b *Broker) run() {
	defer close(b.stopped)

	clients := make(map[string]map[chan []byte]struct{})
	lastCalendar := make(map[string]time.Time)

	broadcast := func(owner string, event Event) {
		set := clients[owner]
		if len(set) == 0 {
			return
		}
		payload, err := json.Marshal(event.Data)
		if err != nil {
			return
		}
		raw := []byte(fmt.Sprintf("event: %s\ndata: %s\n\n", event.Type, payload))
		for ch := range set {
			select {
			case ch <- raw:
			default:
				// Slow client; drop rather than block the loop.
			}
		}
	}

	for {
		select {
		case <-b.stopCh:
			for _, set := range clients {
				for ch := range set {
					close(ch)
				}
			}
			return

		case s := <-b.subscribeCh:
			if clients[s.owner] == nil {
				clients[s.owner] = make(map[chan []byte]struct{})
			}
			clients[s.owner][s.ch] = struct{}{}

		case s := <-b.unsubscribeCh:
			if set, ok := clients[s.owner]; ok {
				if _, ok := set[s.ch]; ok {
					delete(set, s.ch)
					close(s.ch)
				}
				if len(set) == 0 {
					delete(clients, s.owner)
				}
			}

		case req := <-b.publishCh:
			broadcast(req.owner, req.event)

		case req := <-b.changeCh:
			broadcast(req.owner, Event{Type: req.kind, Data: map[string]string{"id": req.id}})
			if !touchesCalendar(req.kind) {
				continue
			}
			now := time.Now()
			if now.Sub(lastCalendar[req.owner]) >= b.calendarMin {
				lastCalendar[req.owner] = now
				broadcast(req.owner, Event{Type: CalendarChanged, Data: map[string]string{}})
			}

		case req := <-b.countReqCh:
			if req.owner == "" {
				n := 0
				for _, set := range clients {
					n += len(set)
				}
				req.resp <- n
			} else {
				req.resp <- len(clients[req.owner])
			}
		}
	}
}

// Close stops the loop and closes every subscriber channel.
func (b *Broker) Close() {
	if b.closed.CompareAndSwap(false, true) {
		close(b.stopCh)
	}
	<-b.stopped
}

// Subscribe registers a client of owner and returns its channel.
func (b *Broker) Subscribe(owner string) chan []byte {
	ch := make(chan []byte, 64)
	if b.closed.Load() {
		close(ch)
		return ch
	}

	select {
	case b.subscribeCh <- subscription{owner: owner, ch: ch}:
	case <-b.stopped:
		close(ch)
	}
	return ch
}

// Unsubscribe removes a client and closes its channel.
func (b *Broker) Unsubscribe(owner string, ch chan []byte) {
	if b.closed.Load() {
		return
	}
	select {
	case b.unsubscribeCh <- subscription{owner: owner, ch: ch}:
	case <-b.stopped:
	}
}

// ClientCount returns the number of clients of owner, or of everyone when
// owner is "".
func (b *Broker) ClientCount(owner string) int {
	if b.closed.Load() {
		return 0
	}

	resp := make(chan int, 1)
	select {
	case b.countReqCh <- countReq{owner: owner, resp: resp}:
	case <-b.stopped:
		return 0
	}

	select {
	case n := <-resp:
		return n
	case <-b.stopped:
		return 0
	}
}

// Publish sends event to the clients of owner.
func (b *Broker) Publish(owner string, event Event) {
	if b.closed.Load() {
		return
	}
	select {
	case b.publishCh <- publishReq{owner: owner, event: event}:
	case <-b.stopped:
	}
}

// PublishChange announces that the record id changed. Changes to ideas or
// calendar posts are followed by a throttled calendar.changed.
func (b *Broker) PublishChange(owner, kind, id string) {
	if b.closed.Load() {
		return
	}
	select {
	case b.changeCh <- changeReq{owner: owner, kind: kind, id: id}:
	case <-b.stopped:
	}
}

// ServeHTTP streams the authenticated owner's events (GET /api/events).
func (b *Broker) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	owner := auth.OwnerFrom(r.Context())
	if owner == "" {
		http.Error(w, "not authenticated", http.StatusUnauthorized)
		return
	}
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming unsupported", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	ch := b.Subscribe(owner)
	defer b.Unsubscribe(owner, ch)

	ctx := r.Context()
	for {
		select {
		case <-ctx.Done():
			return
		case msg, ok := <-ch:
			if !ok {
				return
			}
			_, _ = w.Write(msg)
			flusher.Flush()
		}
	}
}
