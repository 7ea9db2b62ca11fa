package publisher

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type captureSink struct {
	mu     sync.Mutex
	events []Event
	fail   bool
}

func (s *captureSink) Publish(_ context.Context, event Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.fail {
		return errors.New("broker unavailable")
	}
	s.events = append(s.events, event)
	return nil
}

func (s *captureSink) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.events)
}

func TestPublisher_DeliversEmittedEvents(t *testing.T) {
	p := New(8, nil, nil)
	sink := &captureSink{}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		_ = p.Run(ctx, sink)
		close(done)
	}()

	p.Emit(Event{ID: "e1", Kind: "audit"})
	p.Emit(Event{ID: "e2", Kind: "photo"})

	require.Eventually(t, func() bool { return sink.count() == 2 }, time.Second, 5*time.Millisecond)

	cancel()
	<-done
}

func TestPublisher_RunStopsOnCancel(t *testing.T) {
	p := New(1, nil, nil)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := p.Run(ctx, &captureSink{})
	assert.ErrorIs(t, err, context.Canceled)
}

func TestPublisher_EmitNeverBlocksWhenInboxFull(t *testing.T) {
	p := New(1, nil, nil)

	// No worker running: second emit must drop, not block.
	done := make(chan struct{})
	go func() {
		p.Emit(Event{ID: "e1"})
		p.Emit(Event{ID: "e2"})
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Emit blocked on a full inbox")
	}
}

func TestPublisher_SinkFailureDoesNotStopWorker(t *testing.T) {
	p := New(8, nil, nil)
	sink := &captureSink{fail: true}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		_ = p.Run(ctx, sink)
		close(done)
	}()

	p.Emit(Event{ID: "e1"})

	// Recover the sink and verify the loop is still consuming.
	time.Sleep(20 * time.Millisecond)
	sink.mu.Lock()
	sink.fail = false
	sink.mu.Unlock()

	p.Emit(Event{ID: "e2"})
	require.Eventually(t, func() bool { return sink.count() == 1 }, time.Second, 5*time.Millisecond)

	cancel()
	<-done
}
