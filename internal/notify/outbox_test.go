// internal/notify/outbox_test.go
package notify

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"helpdesk-workers/internal/common/logger"
)

type recordingSink struct {
	mu     sync.Mutex
	events []Event
	err    error
}

func (s *recordingSink) Deliver(ctx context.Context, event Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, event)
	return s.err
}

func (s *recordingSink) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.events)
}

func TestOutbox_DeliversInBackground(t *testing.T) {
	sink := &recordingSink{}
	outbox := NewOutbox(16, logger.Nop(), sink)
	outbox.Start()

	outbox.NotifyUser("user-1", "ticket.resolved", map[string]interface{}{"ticketId": "t-1"})
	outbox.NotifyUser("user-2", "ticket.assigned", nil)

	require.NoError(t, outbox.Close(context.Background()))
	require.Equal(t, 2, sink.count())
	assert.Equal(t, "user-1", sink.events[0].UserID)
	assert.Equal(t, "ticket.resolved", sink.events[0].Name)
}

func TestOutbox_DropsWhenFull(t *testing.T) {
	sink := &recordingSink{}
	outbox := NewOutbox(1, logger.Nop(), sink)
	// Dispatcher not started: the single buffer slot fills, the rest drop.

	for i := 0; i < 5; i++ {
		outbox.NotifyUser("user-1", "ticket.resolved", nil)
	}

	outbox.Start()
	require.NoError(t, outbox.Close(context.Background()))
	assert.Equal(t, 1, sink.count())
}

func TestOutbox_SinkFailureDoesNotStopDispatch(t *testing.T) {
	failing := &recordingSink{err: assert.AnError}
	healthy := &recordingSink{}
	outbox := NewOutbox(16, logger.Nop(), failing, healthy)
	outbox.Start()

	outbox.NotifyUser("user-1", "ticket.escalated", nil)
	outbox.NotifyUser("user-2", "ticket.escalated", nil)

	require.NoError(t, outbox.Close(context.Background()))
	assert.Equal(t, 2, failing.count())
	assert.Equal(t, 2, healthy.count())
}

func TestOutbox_NotifyAfterCloseIsSafe(t *testing.T) {
	outbox := NewOutbox(4, logger.Nop(), &recordingSink{})
	outbox.Start()
	require.NoError(t, outbox.Close(context.Background()))

	assert.NotPanics(t, func() {
		outbox.NotifyUser("user-1", "ticket.resolved", nil)
	})
}

type blockingSink struct {
	release chan struct{}
}

func (s *blockingSink) Deliver(ctx context.Context, event Event) error {
	<-s.release
	return nil
}

func TestOutbox_CloseHonorsContext(t *testing.T) {
	slow := &blockingSink{release: make(chan struct{})}
	outbox := NewOutbox(4, logger.Nop(), slow)
	outbox.Start()
	outbox.NotifyUser("user-1", "ticket.resolved", nil)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	assert.Error(t, outbox.Close(ctx))
	close(slow.release)
}
