package notify

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/Skrewild/shop/internal/logging"
)

// Sink delivers an event to one external channel.
type Sink interface {
	Send(ctx context.Context, evt Event) error
}

// Dispatcher hands events to a bounded queue drained by a single
// background worker. A slow or unreachable channel never blocks or
// fails the workflow that produced the event: a full queue drops the
// event, delivery failures are logged and swallowed. No retries; a
// dropped notification is simply lost.
type Dispatcher struct {
	queue       chan Event
	sinks       []Sink
	sendTimeout time.Duration

	mu        sync.Mutex
	closed    bool
	closeOnce sync.Once
	done      chan struct{}
}

func NewDispatcher(queueSize int, sinks ...Sink) *Dispatcher {
	if queueSize <= 0 {
		queueSize = 64
	}

	d := &Dispatcher{
		queue:       make(chan Event, queueSize),
		sinks:       sinks,
		sendTimeout: 10 * time.Second,
		done:        make(chan struct{}),
	}

	go d.run()

	return d
}

// Dispatch enqueues the event without blocking. Events arriving after
// Close are dropped.
func (d *Dispatcher) Dispatch(evt Event) {
	if evt.EventID == "" {
		evt.EventID = uuid.NewString()
	}
	if evt.CreatedAt.IsZero() {
		evt.CreatedAt = time.Now().UTC()
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	if d.closed {
		logging.Log(logging.Fields{
			Service: "dispatcher",
			EventID: evt.EventID,
			OrderID: evt.OrderRef,
			Status:  "dropped",
			Message: "dispatcher closed",
		})
		return
	}

	select {
	case d.queue <- evt:
	default:
		logging.Log(logging.Fields{
			Service: "dispatcher",
			EventID: evt.EventID,
			OrderID: evt.OrderRef,
			Status:  "dropped",
			Message: "notification queue full",
		})
	}
}

// Close stops accepting events and waits for the queue to drain.
func (d *Dispatcher) Close() {
	d.closeOnce.Do(func() {
		d.mu.Lock()
		d.closed = true
		close(d.queue)
		d.mu.Unlock()
		<-d.done
	})
}

func (d *Dispatcher) run() {
	defer close(d.done)

	for evt := range d.queue {
		for _, sink := range d.sinks {
			start := time.Now()

			ctx, cancel := context.WithTimeout(context.Background(), d.sendTimeout)
			err := sink.Send(ctx, evt)
			cancel()

			fields := logging.Fields{
				Service:    "dispatcher",
				EventID:    evt.EventID,
				OrderID:    evt.OrderRef,
				Status:     "emitted",
				DurationMS: time.Since(start).Milliseconds(),
			}
			if err != nil {
				fields.Status = "failed"
				fields.Message = err.Error()
			}
			logging.Log(fields)
		}
	}
}
