package bus

import (
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/supportstack/tickets/internal/events"
)

func TestQueue_PreservesOrder(t *testing.T) {
	q := NewQueue()
	defer q.Close()

	appID := uuid.New()
	const n = 100
	for i := 0; i < n; i++ {
		q.Push(events.Envelope{AppID: appID, Event: events.NewTicketSubmitted(string(rune('a' + i%26)))})
	}

	for i := 0; i < n; i++ {
		select {
		case envelope := <-q.Out():
			want := string(rune('a' + i%26))
			if envelope.Event.TicketSubmitted.Message != want {
				t.Fatalf("message %d = %q, want %q", i, envelope.Event.TicketSubmitted.Message, want)
			}
		case <-time.After(time.Second):
			t.Fatalf("timed out waiting for message %d", i)
		}
	}
}

func TestQueue_PushNeverBlocksOnSlowConsumer(t *testing.T) {
	q := NewQueue()
	defer q.Close()

	done := make(chan struct{})
	go func() {
		defer close(done)
		// Nothing reads Out until every push has completed.
		for i := 0; i < 1000; i++ {
			q.Push(events.Envelope{AppID: uuid.New()})
		}
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatalf("producer blocked on unbounded queue")
	}

	for i := 0; i < 1000; i++ {
		select {
		case <-q.Out():
		case <-time.After(time.Second):
			t.Fatalf("timed out draining message %d", i)
		}
	}
}

func TestQueue_CloseDrainsThenCloses(t *testing.T) {
	q := NewQueue()

	q.Push(events.Envelope{AppID: uuid.New()})
	q.Push(events.Envelope{AppID: uuid.New()})
	q.Close()

	count := 0
	for range q.Out() {
		count++
	}
	if count != 2 {
		t.Fatalf("expected 2 buffered envelopes after close, got %d", count)
	}
}
