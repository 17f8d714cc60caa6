package engine

import (
	"context"
	"sync/atomic"
	"time"

	"golang.org/x/time/rate"

	"github.com/Billy-Davies-2/knockout-pool/internal/logger"
	"github.com/Billy-Davies-2/knockout-pool/internal/pubsub"
)

// Subscriber is the event bus the worker listens on
type Subscriber interface {
	Subscribe() chan pubsub.Event
	Unsubscribe(chan pubsub.Event)
}

// Worker recomputes when another instance stores results or slot mappings.
// Bursts of events collapse into one cycle per limiter tick.
type Worker struct {
	svc     *Service
	bus     Subscriber
	limiter *rate.Limiter
	runs    atomic.Int64
}

// NewWorker creates a worker running at most one cycle per interval
func NewWorker(svc *Service, bus Subscriber, interval time.Duration) *Worker {
	if interval <= 0 {
		interval = time.Second
	}
	return &Worker{
		svc:     svc,
		bus:     bus,
		limiter: rate.NewLimiter(rate.Every(interval), 1),
	}
}

// Runs returns the number of cycles the worker has started
func (w *Worker) Runs() int64 { return w.runs.Load() }

// Run consumes events until ctx is done
func (w *Worker) Run(ctx context.Context) error {
	ch := w.bus.Subscribe()
	defer w.bus.Unsubscribe(ch)

	logger.Info("Recompute worker started", "instance", w.svc.Instance())

	for {
		select {
		case <-ctx.Done():
			logger.Info("Recompute worker stopped")
			return ctx.Err()
		case event, ok := <-ch:
			if !ok {
				return nil
			}
			if !w.triggers(event) {
				continue
			}
			if err := w.limiter.Wait(ctx); err != nil {
				return ctx.Err()
			}
			w.drain(ch)

			w.runs.Add(1)
			if _, err := w.svc.Recompute(ctx); err != nil {
				logger.Error("Worker recompute failed", "trigger", event.Type, "error", err)
			}
		}
	}
}

func (w *Worker) triggers(event pubsub.Event) bool {
	if event.Type != EventResultsSubmitted && event.Type != EventSlotsReplaced {
		return false
	}
	origin, _ := event.Payload["origin"].(string)
	return origin != w.svc.Instance()
}

// drain discards events already queued; the next cycle covers them
func (w *Worker) drain(ch chan pubsub.Event) {
	for {
		select {
		case _, ok := <-ch:
			if !ok {
				return
			}
		default:
			return
		}
	}
}
