package mocks

import (
	"sync"

	"github.com/Billy-Davies-2/knockout-pool/internal/logger"
	"github.com/Billy-Davies-2/knockout-pool/internal/pubsub"
)

// MockNATSPubSub is an in-memory bus that remembers what was published
type MockNATSPubSub struct {
	*pubsub.PubSub

	mu        sync.Mutex
	published []pubsub.Event
}

// NewMockNATSPubSub creates a mock NATS pub/sub using the in-memory implementation
func NewMockNATSPubSub() *MockNATSPubSub {
	logger.Info("Using MOCK NATS/JetStream (in-memory pub/sub) for local development")

	return &MockNATSPubSub{PubSub: pubsub.New()}
}

// Publish records the event and delivers it to local subscribers
func (m *MockNATSPubSub) Publish(event pubsub.Event) {
	m.mu.Lock()
	m.published = append(m.published, event)
	m.mu.Unlock()

	m.PubSub.Publish(event)
}

// Published returns the events seen so far, optionally only those of the given types
func (m *MockNATSPubSub) Published(types ...string) []pubsub.Event {
	m.mu.Lock()
	defer m.mu.Unlock()

	var out []pubsub.Event
	for _, e := range m.published {
		if len(types) == 0 {
			out = append(out, e)
			continue
		}
		for _, t := range types {
			if e.Type == t {
				out = append(out, e)
				break
			}
		}
	}
	return out
}

// Ping always succeeds
func (m *MockNATSPubSub) Ping() error {
	return nil
}

// Close is a no-op for mock
func (m *MockNATSPubSub) Close() {}
