// Package sse streams site rebuild notifications to browsers over
// Server-Sent Events.
package sse

import (
	"encoding/json"
	"fmt"
	"net/http"
	"sync/atomic"
	"time"
)

// Event types.
const (
	EventSiteRebuilt   = "site.rebuilt"
	EventGraphUpdated  = "graph.updated"
	EventRebuildFailed = "site.rebuild_failed"
)

// Defaults for NewBroker.
const (
	DefaultGraphThrottle = 2 * time.Second
	DefaultHeartbeat     = 15 * time.Second
	// retryMillis is the reconnect delay suggested to clients.
	retryMillis = 3000
)

// Event is one message on the stream.
type Event struct {
	Type string `json:"type"`
	Data any    `json:"data"`
}

// Rebuild describes a completed rebuild of the site.
type Rebuild struct {
	Blocks   int      `json:"blocks"`
	Rendered int      `json:"rendered"`
	Failed   int      `json:"failed"`
	Added    []string `json:"added,omitempty"`
	Removed  []string `json:"removed,omitempty"`
	Nodes    int      `json:"nodes"`
	Edges    int      `json:"edges"`
}

// Failure is the payload of site.rebuild_failed. The site keeps serving the
// last good build.
type Failure struct {
	Error string `json:"error"`
}

// GraphShape is the payload of graph.updated.
type GraphShape struct {
	Nodes int `json:"nodes"`
	Edges int `json:"edges"`
}

// Option configures a Broker.
type Option func(*Broker)

// WithHeartbeat sets the interval of keepalive comments sent to idle
// clients. Zero or less disables them.
func WithHeartbeat(d time.Duration) Option {
	return func(b *Broker) { b.heartbeat = d }
}

// Broker fans rebuild notifications out to connected clients.
//
// One goroutine owns the client set, the event sequence and the graph
// throttle state; public methods talk to it over channels.
type Broker struct {
	graphMin  time.Duration
	heartbeat time.Duration

	subscribeCh   chan chan []byte
	unsubscribeCh chan chan []byte
	publishCh     chan Event
	rebuildCh     chan Rebuild
	countReqCh    chan chan int

	stopCh  chan struct{}
	stopped chan struct{}
	closed  atomic.Bool
}

// NewBroker starts a broker. graph.updated events are sent at most once per
// graphThrottle; a change that arrives inside the window is delivered when
// it closes.
func NewBroker(graphThrottle time.Duration, opts ...Option) *Broker {
	if graphThrottle <= 0 {
		graphThrottle = DefaultGraphThrottle
	}

	b := &Broker{
		graphMin:      graphThrottle,
		heartbeat:     DefaultHeartbeat,
		subscribeCh:   make(chan chan []byte),
		unsubscribeCh: make(chan chan []byte),
		publishCh:     make(chan Event, 256),
		rebuildCh:     make(chan Rebuild, 256),
		countReqCh:    make(chan chan int),
		stopCh:        make(chan struct{}),
		stopped:       make(chan struct{}),
	}
	for _, opt := range opts {
		opt(b)
	}

	go b.run()
	return b
}

// graphState tracks the last graph shape announced and a pending one held
// back by the throttle.
type graphState struct {
	sent     GraphShape
	known    bool
	lastSent time.Time
	pending  *GraphShape
	timer    *time.Timer
}

func (g *graphState) timerC() <-chan time.Time {
	if g.timer == nil {
		return nil
	}
	return g.timer.C
}

func (b *Broker) run() {
	defer close(b.stopped)

	clients := make(map[chan []byte]struct{})
	var seq uint64
	var graph graphState

	broadcast := func(event Event) {
		payload, err := json.Marshal(event.Data)
		if err != nil {
			return
		}
		seq++
		raw := []byte(fmt.Sprintf("id: %d\nevent: %s\ndata: %s\n\n", seq, event.Type, payload))

		for ch := range clients {
			select {
			case ch <- raw:
			default:
				// Slow client; drop rather than stall the loop.
			}
		}
	}

	sendGraph := func(shape GraphShape, now time.Time) {
		graph.sent, graph.known, graph.lastSent, graph.pending = shape, true, now, nil
		broadcast(Event{Type: EventGraphUpdated, Data: shape})
	}

	for {
		select {
		case <-b.stopCh:
			if graph.timer != nil {
				graph.timer.Stop()
			}
			for ch := range clients {
				close(ch)
			}
			return

		case ch := <-b.subscribeCh:
			clients[ch] = struct{}{}

		case ch := <-b.unsubscribeCh:
			if _, ok := clients[ch]; ok {
				delete(clients, ch)
				close(ch)
			}

		case event := <-b.publishCh:
			broadcast(event)

		case r := <-b.rebuildCh:
			broadcast(Event{Type: EventSiteRebuilt, Data: r})

			shape := GraphShape{Nodes: r.Nodes, Edges: r.Edges}
			if graph.known && shape == graph.sent && len(r.Added) == 0 && len(r.Removed) == 0 {
				continue
			}
			now := time.Now()
			if wait := b.graphMin - now.Sub(graph.lastSent); wait > 0 {
				graph.pending = &shape
				if graph.timer == nil {
					graph.timer = time.NewTimer(wait)
				}
				continue
			}
			sendGraph(shape, now)

		case <-graph.timerC():
			graph.timer = nil
			if graph.pending != nil {
				sendGraph(*graph.pending, time.Now())
			}

		case resp := <-b.countReqCh:
			resp <- len(clients)
		}
	}
}

// Close stops the loop and closes every client channel.
func (b *Broker) Close() {
	if b.closed.CompareAndSwap(false, true) {
		close(b.stopCh)
	}
	<-b.stopped
}

// Subscribe adds a client and returns its message channel.
func (b *Broker) Subscribe() chan []byte {
	ch := make(chan []byte, 64)
	if b.closed.Load() {
		close(ch)
		return ch
	}

	select {
	case b.subscribeCh <- ch:
	case <-b.stopped:
		close(ch)
	}

	return ch
}

// Unsubscribe removes a client and closes its channel.
func (b *Broker) Unsubscribe(ch chan []byte) {
	if b.closed.Load() {
		return
	}
	select {
	case b.unsubscribeCh <- ch:
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
	case b.countReqCh <- resp:
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

// Publish sends an arbitrary event to all clients.
func (b *Broker) Publish(event Event) {
	if b.closed.Load() {
		return
	}
	select {
	case b.publishCh <- event:
	case <-b.stopped:
	}
}

// PublishRebuild announces a rebuild. graph.updated follows when the graph
// shape or the block set changed.
func (b *Broker) PublishRebuild(r Rebuild) {
	if b.closed.Load() {
		return
	}
	select {
	case b.rebuildCh <- r:
	case <-b.stopped:
	}
}

// ServeHTTP is the SSE endpoint handler (GET /api/events).
func (b *Broker) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming unsupported", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")
	w.WriteHeader(http.StatusOK)
	_, _ = fmt.Fprintf(w, "retry: %d\n\n", retryMillis)
	flusher.Flush()

	ch := b.Subscribe()
	defer b.Unsubscribe(ch)

	var beat <-chan time.Time
	if b.heartbeat > 0 {
		t := time.NewTicker(b.heartbeat)
		defer t.Stop()
		beat = t.C
	}

	ctx := r.Context()
	for {
		select {
		case <-ctx.Done():
			return
		case <-beat:
			_, _ = w.Write([]byte(": keepalive\n\n"))
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
