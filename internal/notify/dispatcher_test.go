package notify_test

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Skrewild/shop/internal/notify"
)

type captureSink struct {
	mu     sync.Mutex
	events []notify.Event
	err    error
}

func (s *captureSink) Send(ctx context.Context, evt notify.Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, evt)
	return s.err
}

func (s *captureSink) all() []notify.Event {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]notify.Event(nil), s.events...)
}

func TestDispatcherDeliversInOrder(t *testing.T) {
	sink := &captureSink{}
	d := notify.NewDispatcher(8, sink)

	d.Dispatch(notify.Event{OrderRef: "1"})
	d.Dispatch(notify.Event{OrderRef: "2"})
	d.Close()

	events := sink.all()
	require.Len(t, events, 2)
	assert.Equal(t, "1", events[0].OrderRef)
	assert.Equal(t, "2", events[1].OrderRef)
	assert.NotEmpty(t, events[0].EventID)
	assert.False(t, events[0].CreatedAt.IsZero())
}

func TestDispatcherSwallowsSinkFailure(t *testing.T) {
	failing := &captureSink{err: errors.New("channel down")}
	healthy := &captureSink{}
	d := notify.NewDispatcher(8, failing, healthy)

	d.Dispatch(notify.Event{OrderRef: "1"})
	d.Close()

	// The failing sink never blocks delivery to the next one.
	assert.Len(t, failing.all(), 1)
	assert.Len(t, healthy.all(), 1)
}

func TestDispatcherNeverBlocksCaller(t *testing.T) {
	block := make(chan struct{})
	slow := blockingSink{release: block}
	d := notify.NewDispatcher(1, slow)

	// One event in flight, one queued, the rest dropped; Dispatch must
	// return either way.
	for i := 0; i < 10; i++ {
		d.Dispatch(notify.Event{OrderRef: "x"})
	}

	close(block)
	d.Close()
}

func TestDispatcherDropsAfterClose(t *testing.T) {
	sink := &captureSink{}
	d := notify.NewDispatcher(8, sink)

	d.Dispatch(notify.Event{OrderRef: "1"})
	d.Close()

	// A late event is dropped, not delivered, and must not panic.
	assert.NotPanics(t, func() {
		d.Dispatch(notify.Event{OrderRef: "late"})
	})

	events := sink.all()
	require.Len(t, events, 1)
	assert.Equal(t, "1", events[0].OrderRef)
}

type blockingSink struct {
	release chan struct{}
}

func (s blockingSink) Send(ctx context.Context, evt notify.Event) error {
	<-s.release
	return nil
}
