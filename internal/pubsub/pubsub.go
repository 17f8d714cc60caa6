package pubsub

import (
	"sync"
	"time"

	"github.com/Billy-Davies-2/knockout-pool/internal/logger"
)

const (
	// DefaultSubject carries every pool event
	DefaultSubject = "pool.events"
	// DefaultStream is the JetStream stream bound to DefaultSubject
	DefaultStream = "POOL_EVENTS"
)

// Event represents a pubsub event
type Event struct {
	Type    string                 `json:"type"`
	At      time.Time              `json:"at"`
	Payload map[string]interface{} `json:"payload,omitempty"`
}

// Upstream is an interface for upstream publishers (e.g., NATS)
type Upstream interface {
	Publish(Event)
	Subscribe() chan Event
	Unsubscribe(chan Event)
}

// fanout hands each event to a set of buffered local channels. Full
// channels are skipped so a stalled reader never blocks a publisher.
type fanout struct {
	mu          sync.RWMutex
	subscribers []chan Event
	buffer      int
}

func (f *fanout) add() chan Event {
	f.mu.Lock()
	defer f.mu.Unlock()

	ch := make(chan Event, f.buffer)
	f.subscribers = append(f.subscribers, ch)
	logger.Debug("PubSub: New subscriber added", "totalSubscribers", len(f.subscribers))
	return ch
}

func (f *fanout) remove(ch chan Event) {
	f.mu.Lock()
	defer f.mu.Unlock()

	for i, sub := range f.subscribers {
		if sub == ch {
			close(ch)
			f.subscribers = append(f.subscribers[:i], f.subscribers[i+1:]...)
			break
		}
	}
}

func (f *fanout) broadcast(event Event) {
	f.mu.RLock()
	subs := make([]chan Event, len(f.subscribers))
	copy(subs, f.subscribers)
	f.mu.RUnlock()

	for _, ch := range subs {
		select {
		case ch <- event:
		default:
			logger.Warn("PubSub: Skipping slow subscriber", "type", event.Type)
		}
	}
}

func (f *fanout) closeAll() {
	f.mu.Lock()
	defer f.mu.Unlock()

	for _, ch := range f.subscribers {
		close(ch)
	}
	f.subscribers = nil
}

func (f *fanout) count() int {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return len(f.subscribers)
}

// PubSub implements a simple publish-subscribe system
type PubSub struct {
	fanout
	upstream Upstream
}

// New creates a new PubSub instance
func New() *PubSub {
	return &PubSub{fanout: fanout{subscribers: []chan Event{}, buffer: 10}}
}

// NewWithUpstream creates a PubSub that bridges to an upstream publisher.
// Published events go to the upstream, which broadcasts them to every
// instance, this one included. Events from the upstream reach local
// subscribers.
func NewWithUpstream(upstream Upstream) *PubSub {
	ps := New()
	ps.upstream = upstream

	ch := upstream.Subscribe()
	go func() {
		for event := range ch {
			logger.Debug("PubSub: Received event from upstream", "type", event.Type)
			ps.broadcast(event)
		}
		logger.Debug("PubSub: Upstream channel closed")
	}()

	return ps
}

// Subscribe adds a new subscriber and returns a channel for receiving events
func (ps *PubSub) Subscribe() chan Event {
	return ps.add()
}

// Unsubscribe removes a subscriber and closes its channel
func (ps *PubSub) Unsubscribe(ch chan Event) {
	ps.remove(ch)
}

// SubscriberCount returns the number of local subscribers
func (ps *PubSub) SubscriberCount() int {
	return ps.count()
}

// Publish stamps the event and sends it to the upstream when one is set,
// otherwise straight to local subscribers
func (ps *PubSub) Publish(event Event) {
	if event.At.IsZero() {
		event.At = time.Now().UTC()
	}
	if ps.upstream != nil {
		ps.upstream.Publish(event)
		return
	}
	ps.broadcast(event)
}
