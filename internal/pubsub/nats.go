package pubsub

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/nats-io/nats.go"

	"github.com/Billy-Davies-2/knockout-pool/internal/logger"
)

// NATSPubSub implements pub/sub using NATS JetStream. Every instance
// attached to the stream sees every event, its own included.
type NATSPubSub struct {
	fanout
	nc      *nats.Conn
	js      nats.JetStreamContext
	sub     *nats.Subscription
	subject string
	stream  string
}

// NewNATSPubSub connects to an external NATS server and binds the pool
// stream, creating it with file storage when missing
func NewNATSPubSub(natsURL, subject string) (*NATSPubSub, error) {
	nc, err := nats.Connect(natsURL,
		nats.Name("knockout-pool"),
		nats.MaxReconnects(-1),
		nats.ReconnectWait(2*time.Second),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to NATS: %w", err)
	}

	ps, err := attachStream(nc, subject, DefaultStream, nats.FileStorage, 7*24*time.Hour)
	if err != nil {
		nc.Close()
		return nil, err
	}
	return ps, nil
}

func attachStream(nc *nats.Conn, subject, stream string, storage nats.StorageType, maxAge time.Duration) (*NATSPubSub, error) {
	if subject == "" {
		subject = DefaultSubject
	}
	if stream == "" {
		stream = DefaultStream
	}

	js, err := nc.JetStream()
	if err != nil {
		return nil, fmt.Errorf("failed to create JetStream context: %w", err)
	}

	if _, err := js.StreamInfo(stream); err != nil {
		_, err = js.AddStream(&nats.StreamConfig{
			Name:     stream,
			Subjects: []string{subject},
			Storage:  storage,
			MaxAge:   maxAge,
		})
		if err != nil {
			return nil, fmt.Errorf("failed to create stream %s: %w", stream, err)
		}
		logger.Info("JetStream stream created", "stream", stream, "subject", subject)
	}

	ps := &NATSPubSub{
		fanout:  fanout{subscribers: []chan Event{}, buffer: 100},
		nc:      nc,
		js:      js,
		subject: subject,
		stream:  stream,
	}

	ps.sub, err = js.Subscribe(subject, ps.receive, nats.ManualAck(), nats.DeliverNew())
	if err != nil {
		return nil, fmt.Errorf("failed to subscribe to %s: %w", subject, err)
	}
	logger.Debug("Subscribed to JetStream", "subject", subject, "stream", stream)

	return ps, nil
}

func (p *NATSPubSub) receive(msg *nats.Msg) {
	var event Event
	if err := json.Unmarshal(msg.Data, &event); err != nil {
		logger.Error("Failed to unmarshal event from JetStream", "error", err)
		msg.Term()
		return
	}
	p.broadcast(event)
	msg.Ack()
}

// Publish publishes an event to NATS JetStream
func (p *NATSPubSub) Publish(event Event) {
	if event.At.IsZero() {
		event.At = time.Now().UTC()
	}
	data, err := json.Marshal(event)
	if err != nil {
		logger.Error("Failed to marshal event", "error", err, "event_type", event.Type)
		return
	}

	if _, err := p.js.Publish(p.subject, data); err != nil {
		logger.Error("Failed to publish to NATS", "error", err, "subject", p.subject, "event_type", event.Type)
		return
	}
	logger.Debug("Published event to NATS", "event_type", event.Type, "subject", p.subject)
}

// Subscribe creates a subscription channel for events
func (p *NATSPubSub) Subscribe() chan Event {
	return p.add()
}

// Unsubscribe removes a subscription channel
func (p *NATSPubSub) Unsubscribe(ch chan Event) {
	p.remove(ch)
}

// SubscriberCount returns the number of active local subscribers
func (p *NATSPubSub) SubscriberCount() int {
	return p.count()
}

// Subject returns the subject events are published on
func (p *NATSPubSub) Subject() string {
	return p.subject
}

// Ping reports whether the connection to the server is usable
func (p *NATSPubSub) Ping() error {
	if p.nc == nil || !p.nc.IsConnected() {
		return fmt.Errorf("nats: not connected")
	}
	return p.nc.FlushTimeout(2 * time.Second)
}

// Close drains the subscription and closes the NATS connection
func (p *NATSPubSub) Close() {
	if p.sub != nil {
		if err := p.sub.Unsubscribe(); err != nil {
			logger.Debug("Failed to unsubscribe from JetStream", "error", err)
		}
	}
	p.closeAll()
	if p.nc != nil {
		p.nc.Close()
	}
}
