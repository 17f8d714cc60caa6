package pubsub

import (
	"sync"
	"testing"
	"time"
)

func receive(t *testing.T, ch chan Event, within time.Duration) Event {
	t.Helper()
	select {
	case e := <-ch:
		return e
	case <-time.After(within):
		t.Fatal("timeout waiting for event")
		return Event{}
	}
}

func TestNew(t *testing.T) {
	ps := New()
	if ps.subscribers == nil {
		t.Error("subscribers slice should be initialized")
	}
	if ps.upstream != nil {
		t.Error("upstream should be nil for basic PubSub")
	}
}

func TestSubscribeAndUnsubscribe(t *testing.T) {
	ps := New()

	ch1 := ps.Subscribe()
	ch2 := ps.Subscribe()
	ch3 := ps.Subscribe()
	if ps.SubscriberCount() != 3 {
		t.Fatalf("expected 3 subscribers, got %d", ps.SubscriberCount())
	}

	ps.Unsubscribe(ch2)
	if ps.SubscriberCount() != 2 {
		t.Errorf("expected 2 subscribers, got %d", ps.SubscriberCount())
	}
	if _, ok := <-ch2; ok {
		t.Error("channel should be closed after unsubscribe")
	}

	ps.Publish(Event{Type: "scores:updated"})
	for i, ch := range []chan Event{ch1, ch3} {
		if got := receive(t, ch, 100*time.Millisecond); got.Type != "scores:updated" {
			t.Errorf("subscriber %d: expected scores:updated, got %s", i, got.Type)
		}
	}
}

func TestUnsubscribeNonexistent(t *testing.T) {
	ps := New()
	ch := make(chan Event, 1)

	ps.Unsubscribe(ch)

	// Channels the bus never handed out stay open
	ch <- Event{Type: "probe"}
}

func TestPublishNoSubscribers(t *testing.T) {
	New().Publish(Event{Type: "results:submitted"})
}

func TestPublishStampsTime(t *testing.T) {
	ps := New()
	ch := ps.Subscribe()

	before := time.Now().UTC()
	ps.Publish(Event{Type: "slots:replaced", Payload: map[string]interface{}{"resolved": 3}})

	got := receive(t, ch, 100*time.Millisecond)
	if got.At.Before(before) {
		t.Errorf("event time %v not stamped", got.At)
	}
	if got.Payload["resolved"] != 3 {
		t.Errorf("payload mismatch: %+v", got.Payload)
	}

	fixed := time.Date(2022, 12, 18, 18, 0, 0, 0, time.UTC)
	ps.Publish(Event{Type: "scores:updated", At: fixed})
	if got := receive(t, ch, 100*time.Millisecond); !got.At.Equal(fixed) {
		t.Errorf("preset time overwritten: %v", got.At)
	}
}

func TestPublishDropsWhenChannelFull(t *testing.T) {
	ps := New()
	ch := ps.Subscribe()

	for i := 0; i < 15; i++ {
		ps.Publish(Event{Type: "scores:updated"})
	}

	if len(ch) != 10 {
		t.Errorf("expected 10 buffered events, got %d", len(ch))
	}
}

func TestConcurrentSubscribeUnsubscribe(t *testing.T) {
	ps := New()

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			ch := ps.Subscribe()
			time.Sleep(time.Millisecond)
			ps.Unsubscribe(ch)
		}()
		go func() {
			defer wg.Done()
			ps.Publish(Event{Type: "scores:updated"})
		}()
	}
	wg.Wait()

	if n := ps.SubscriberCount(); n != 0 {
		t.Errorf("expected 0 subscribers after all unsubscribe, got %d", n)
	}
}

// mockUpstream records what it is given and echoes it to its subscribers
type mockUpstream struct {
	fanout
	pubMu     sync.Mutex
	published []Event
}

func newMockUpstream() *mockUpstream {
	return &mockUpstream{fanout: fanout{buffer: 100}}
}

func (m *mockUpstream) Publish(event Event) {
	m.pubMu.Lock()
	m.published = append(m.published, event)
	m.pubMu.Unlock()
	m.broadcast(event)
}

func (m *mockUpstream) Subscribe() chan Event     { return m.add() }
func (m *mockUpstream) Unsubscribe(ch chan Event) { m.remove(ch) }

func (m *mockUpstream) publishedEvents() []Event {
	m.pubMu.Lock()
	defer m.pubMu.Unlock()
	return append([]Event(nil), m.published...)
}

func TestPublishWithUpstream(t *testing.T) {
	upstream := newMockUpstream()
	ps := NewWithUpstream(upstream)
	ch := ps.Subscribe()

	ps.Publish(Event{Type: "results:submitted", Payload: map[string]interface{}{"origin": "a"}})

	// Local delivery only happens via the upstream echo
	got := receive(t, ch, 100*time.Millisecond)
	if got.Type != "results:submitted" {
		t.Errorf("expected results:submitted, got %s", got.Type)
	}
	if published := upstream.publishedEvents(); len(published) != 1 {
		t.Errorf("expected 1 event upstream, got %d", len(published))
	}
}

func TestUpstreamBroadcastToLocalSubscribers(t *testing.T) {
	upstream := newMockUpstream()
	ps := NewWithUpstream(upstream)

	ch1 := ps.Subscribe()
	ch2 := ps.Subscribe()

	// Another instance publishing
	upstream.Publish(Event{Type: "slots:replaced"})

	for i, ch := range []chan Event{ch1, ch2} {
		if got := receive(t, ch, 100*time.Millisecond); got.Type != "slots:replaced" {
			t.Errorf("subscriber %d: expected slots:replaced, got %s", i, got.Type)
		}
	}

	upstream.closeAll()
}
