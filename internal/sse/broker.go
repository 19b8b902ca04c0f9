// Package sse implements a Server-Sent Events broker for content change
// notifications.
package sse

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"sync/atomic"
	"time"
)

// Content event kinds.
const (
	Created = "created"
	Updated = "updated"
	Deleted = "deleted"
)

// FeedUpdated is sent at most once per throttle window after any content
// change, for clients that only refresh a combined feed.
const FeedUpdated = "feed.updated"

// DefaultHeartbeat is how often idle streams receive a comment line.
const DefaultHeartbeat = 25 * time.Second

// Event represents an SSE event to broadcast. An empty Collection reaches
// every subscriber.
type Event struct {
	Type       string
	Collection string
	Data       any
}

// ContentChange is the payload of content.* events.
type ContentChange struct {
	Collection string `json:"collection"`
	ID         string `json:"id"`
}

type subscriber struct {
	ch     chan []byte
	filter map[string]bool // empty means all collections
}

func (s *subscriber) wants(collection string) bool {
	return len(s.filter) == 0 || collection == "" || s.filter[collection]
}

// Broker fans content changes out to connected event streams.
//
// A single loop goroutine owns the subscriber set, the event sequence and
// the feed throttle. Public methods talk to it over channels.
type Broker struct {
	feedMin   time.Duration
	heartbeat time.Duration // fixed at construction

	join  chan *subscriber
	leave chan chan []byte
	in    chan Event
	count chan chan int

	stopCh  chan struct{}
	stopped chan struct{}
	closed  atomic.Bool
}

// Option configures a Broker.
type Option func(*Broker)

// WithHeartbeat sets the idle keep-alive interval of every stream.
func WithHeartbeat(d time.Duration) Option {
	return func(b *Broker) {
		if d > 0 {
			b.heartbeat = d
		}
	}
}

// NewBroker creates a broker. feed.updated is emitted at most once per
// feedThrottle.
func NewBroker(feedThrottle time.Duration, opts ...Option) *Broker {
	if feedThrottle <= 0 {
		feedThrottle = 2 * time.Second
	}
	b := &Broker{
		feedMin:   feedThrottle,
		heartbeat: DefaultHeartbeat,
		join:      make(chan *subscriber),
		leave:     make(chan chan []byte),
		in:        make(chan Event, 256),
		count:     make(chan chan int),
		stopCh:    make(chan struct{}),
		stopped:   make(chan struct{}),
	}
	for _, opt := range opts {
		opt(b)
	}
	go b.run()
	return b
}

func (b *Broker) run() {
	defer close(b.stopped)

	subs := make(map[chan []byte]*subscriber)
	var seq uint64
	var lastFeed time.Time

	send := func(ev Event) {
		payload, err := json.Marshal(ev.Data)
		if err != nil {
			return
		}
		seq++
		msg := []byte(fmt.Sprintf("id: %d\nevent: %s\ndata: %s\n\n", seq, ev.Type, payload))
		for _, s := range subs {
			if !s.wants(ev.Collection) {
				continue
			}
			select {
			case s.ch <- msg:
			default:
				// Slow client: drop rather than stall every other stream.
			}
		}
	}

	for {
		select {
		case <-b.stopCh:
			for ch := range subs {
				close(ch)
			}
			return

		case s := <-b.join:
			subs[s.ch] = s

		case ch := <-b.leave:
			if _, ok := subs[ch]; ok {
				delete(subs, ch)
				close(ch)
			}

		case ev := <-b.in:
			send(ev)
			if ev.Collection == "" || !strings.HasPrefix(ev.Type, "content.") {
				continue
			}
			if now := time.Now(); now.Sub(lastFeed) >= b.feedMin {
				lastFeed = now
				send(Event{Type: FeedUpdated, Data: map[string]string{}})
			}

		case resp := <-b.count:
			resp <- len(subs)
		}
	}
}

// Close stops the loop and closes every subscriber channel. It is safe to
// call more than once.
func (b *Broker) Close() {
	if b.closed.CompareAndSwap(false, true) {
		close(b.stopCh)
	}
	<-b.stopped
}

// Subscribe registers a client interested in the given collections, or in
// all of them when none are named.
func (b *Broker) Subscribe(collections ...string) chan []byte {
	s := &subscriber{ch: make(chan []byte, 64)}
	if len(collections) > 0 {
		s.filter = make(map[string]bool, len(collections))
		for _, c := range collections {
			s.filter[c] = true
		}
	}
	if b.closed.Load() {
		close(s.ch)
		return s.ch
	}
	select {
	case b.join <- s:
	case <-b.stopped:
		close(s.ch)
	}
	return s.ch
}

// Unsubscribe removes a client and closes its channel.
func (b *Broker) Unsubscribe(ch chan []byte) {
	if b.closed.Load() {
		return
	}
	select {
	case b.leave <- ch:
	case <-b.stopped:
	}
}

// ClientCount returns the number of connected clients.
func (b *Broker) ClientCount() int {
	if b.closed.Load() {
		return 0
	}
	resp := make(chan int, 1)
	select {
	case b.count <- resp:
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

// Publish queues an event for delivery.
func (b *Broker) Publish(ev Event) {
	if b.closed.Load() {
		return
	}
	select {
	case b.in <- ev:
	case <-b.stopped:
	}
}

// PublishContentEvent announces that a document was created, updated or
// deleted. Unknown kinds are ignored.
func (b *Broker) PublishContentEvent(kind, collection, id string) {
	switch kind {
	case Created, Updated, Deleted:
	default:
		return
	}
	b.Publish(Event{
		Type:       "content." + kind,
		Collection: collection,
		Data:       ContentChange{Collection: collection, ID: id},
	})
}

// ServeHTTP streams events to one client. The optional "collection" query
// parameter is a comma-separated list restricting content events.
func (b *Broker) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming unsupported", http.StatusInternalServerError)
		return
	}

	var collections []string
	for _, c := range strings.Split(r.URL.Query().Get("collection"), ",") {
		if c = strings.TrimSpace(c); c != "" {
			collections = append(collections, c)
		}
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	ch := b.Subscribe(collections...)
	defer b.Unsubscribe(ch)

	ticker := time.NewTicker(b.heartbeat)
	defer ticker.Stop()

	ctx := r.Context()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			_, _ = w.Write([]byte(": ping\n\n"))
			flusher.Flush()
		case msg, ok := <-ch:
			if !ok {
				return
			}
			_, _ = w.Write(msg)
			flusher.Flush()
		}
	}
}
