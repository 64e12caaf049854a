// Package notify delivers user-facing events. Callers fire and forget: events
// go onto a buffered outbox and a background dispatcher pushes them through
// the configured sinks, so a slow email provider never blocks triage.
package notify

import (
	"context"
	"sync"
	"time"

	stderrors "helpdesk-workers/internal/common/errors"
	"helpdesk-workers/internal/common/logger"
)

const deliverTimeout = 10 * time.Second

// Event is one notification to one user.
type Event struct {
	UserID  string
	Name    string
	Payload map[string]interface{}
}

// Sink is a delivery channel (email, SMS, log).
type Sink interface {
	Deliver(ctx context.Context, event Event) error
}

// Outbox queues events and dispatches them in the background.
type Outbox struct {
	ch     chan Event
	sinks  []Sink
	logger logger.Logger

	mu     sync.Mutex
	closed bool
	wg     sync.WaitGroup
}

func NewOutbox(size int, log logger.Logger, sinks ...Sink) *Outbox {
	if size < 1 {
		size = 1
	}
	return &Outbox{
		ch:     make(chan Event, size),
		sinks:  sinks,
		logger: log.WithFields(map[string]interface{}{"component": "notify-outbox"}),
	}
}

// Start launches the dispatcher goroutine.
func (o *Outbox) Start() {
	o.wg.Add(1)
	go func() {
		defer o.wg.Done()
		for event := range o.ch {
			o.dispatch(event)
		}
	}()
}

// NotifyUser enqueues an event without blocking. When the outbox is full or
// closed the event is dropped and logged; notifications are best-effort.
func (o *Outbox) NotifyUser(userID, event string, payload map[string]interface{}) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.closed {
		o.logger.Warn("notification dropped, outbox closed", map[string]interface{}{
			"userId": userID,
			"event":  event,
		})
		return
	}

	select {
	case o.ch <- Event{UserID: userID, Name: event, Payload: payload}:
	default:
		o.logger.Warn("notification dropped, outbox full", map[string]interface{}{
			"userId": userID,
			"event":  event,
		})
	}
}

// Close stops accepting events and waits for the queue to drain or the
// context to expire.
func (o *Outbox) Close(ctx context.Context) error {
	o.mu.Lock()
	if o.closed {
		o.mu.Unlock()
		return nil
	}
	o.closed = true
	close(o.ch)
	o.mu.Unlock()

	done := make(chan struct{})
	go func() {
		o.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (o *Outbox) dispatch(event Event) {
	ctx, cancel := context.WithTimeout(context.Background(), deliverTimeout)
	defer cancel()

	for _, sink := range o.sinks {
		if err := sink.Deliver(ctx, event); err != nil {
			failure := stderrors.NewNotificationFailedError(event.Name, err)
			o.logger.Error("notification delivery failed", map[string]interface{}{
				"userId": event.UserID,
				"event":  event.Name,
				"error":  failure.Error(),
			})
		}
	}
}
