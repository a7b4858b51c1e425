package worker

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/carelink/healthcare-identity/internal/events"
	"github.com/carelink/healthcare-identity/internal/notify"
	"github.com/carelink/healthcare-identity/internal/service"
)

type blockingEmail struct {
	mu      sync.Mutex
	release chan struct{}
	sent    []string
}

func (b *blockingEmail) SendEmail(_ context.Context, to, _, _ string) error {
	<-b.release
	b.mu.Lock()
	defer b.mu.Unlock()
	b.sent = append(b.sent, to)
	return nil
}

func (b *blockingEmail) count() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.sent)
}

func resetEvent(email string) events.Event {
	return events.Event{
		ID:        email,
		Type:      events.EventPasswordReset,
		Recipient: events.Recipient{IdentityID: email, Email: email},
	}
}

func TestWorkerDeliversAsynchronously(t *testing.T) {
	email := &blockingEmail{release: make(chan struct{})}
	svc := service.NewNotificationService(notify.Transports{Email: email}, zap.NewNop())
	dispatcher := events.NewInMemoryDispatcher()
	w := StartNotificationWorker(dispatcher, svc, zap.NewNop(), 1, 4)

	// Publish returns while the transport is still blocked.
	require.NoError(t, dispatcher.Publish(context.Background(), resetEvent("a@example.com")))
	assert.Equal(t, 0, email.count())

	close(email.release)
	w.Stop()
	assert.Equal(t, 1, email.count())
}

func TestWorkerRejectsWhenQueueIsFull(t *testing.T) {
	email := &blockingEmail{release: make(chan struct{})}
	svc := service.NewNotificationService(notify.Transports{Email: email}, zap.NewNop())
	dispatcher := events.NewInMemoryDispatcher()
	w := StartNotificationWorker(dispatcher, svc, zap.NewNop(), 1, 1)

	var errs []error
	for _, addr := range []string{"a@x.test", "b@x.test", "c@x.test", "d@x.test"} {
		errs = append(errs, dispatcher.Publish(context.Background(), resetEvent(addr)))
	}
	// One event is in flight, one is queued; the rest overflow.
	full := 0
	for _, err := range errs {
		if err != nil {
			assert.ErrorIs(t, err, ErrQueueFull)
			full++
		}
	}
	assert.GreaterOrEqual(t, full, 2)

	close(email.release)
	w.Stop()
	assert.Equal(t, len(errs)-full, email.count())
}

func TestWorkerStopIsIdempotent(t *testing.T) {
	svc := service.NewNotificationService(notify.Transports{}, zap.NewNop())
	dispatcher := events.NewInMemoryDispatcher()
	w := StartNotificationWorker(dispatcher, svc, zap.NewNop(), 2, 2)

	w.Stop()
	w.Stop()
	assert.ErrorIs(t, dispatcher.Publish(context.Background(), resetEvent("late@x.test")), ErrQueueFull)
}
