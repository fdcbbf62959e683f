package events

import (
	"context"
	"sync"
	"testing"
	"time"
)

func TestPublishAssignsSequenceAndTimestamp(t *testing.T) {
	hub := NewHub(10)
	first := hub.Publish(Event{Name: Chunk, Payload: "a"})
	second := hub.Publish(Event{Name: Chunk, Payload: "b"})

	if first.Sequence != 1 || second.Sequence != 2 {
		t.Fatalf("unexpected sequences %d %d", first.Sequence, second.Sequence)
	}
	if first.Timestamp.IsZero() {
		t.Fatal("expected timestamp to be set")
	}
	if hub.LastSequence() != 2 {
		t.Fatalf("LastSequence = %d", hub.LastSequence())
	}
}

func TestPublishWithoutSubscribers(t *testing.T) {
	var hub *Hub
	hub.Publish(Event{Name: Error})

	hub = NewHub(2)
	for i := 0; i < 5; i++ {
		hub.Publish(Event{Name: Chunk})
	}
	events, next := hub.Tail(0)
	if len(events) != 2 || events[0].Sequence != 4 || next != 5 {
		t.Fatalf("expected last two events, got %+v next=%d", events, next)
	}
}

func TestFetchSince(t *testing.T) {
	hub := NewHub(10)
	for _, p := range []string{"a", "b", "c"} {
		hub.Publish(Event{Name: Chunk, Payload: p})
	}

	events, next, err := hub.Fetch(context.Background(), 1, 0, false)
	if err != nil {
		t.Fatalf("Fetch returned error: %v", err)
	}
	if len(events) != 2 || events[0].Payload != "b" || events[1].Payload != "c" || next != 3 {
		t.Fatalf("unexpected fetch result %+v next=%d", events, next)
	}

	events, _, _ = hub.Fetch(context.Background(), 3, 0, false)
	if len(events) != 0 {
		t.Fatalf("expected nothing after latest sequence, got %+v", events)
	}

	events, _, _ = hub.Fetch(context.Background(), 0, 1, false)
	if len(events) != 1 || events[0].Payload != "a" {
		t.Fatalf("expected limit to apply, got %+v", events)
	}
}

func TestFetchWaitsForPublish(t *testing.T) {
	hub := NewHub(10)
	done := make(chan []Event, 1)
	go func() {
		events, _, err := hub.Fetch(context.Background(), 0, 0, true)
		if err != nil {
			t.Errorf("Fetch returned error: %v", err)
		}
		done <- events
	}()

	time.Sleep(20 * time.Millisecond)
	hub.Publish(Event{Name: Complete, Payload: "full"})

	select {
	case events := <-done:
		if len(events) != 1 || events[0].Name != Complete {
			t.Fatalf("unexpected events %+v", events)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Fetch did not wake on publish")
	}
}

func TestFetchWaitHonoursContext(t *testing.T) {
	hub := NewHub(10)
	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	_, _, err := hub.Fetch(ctx, 0, 0, true)
	if err != context.DeadlineExceeded {
		t.Fatalf("expected deadline exceeded, got %v", err)
	}
}

func TestSinksReceiveEventsInOrder(t *testing.T) {
	hub := NewHub(10)
	var (
		mu  sync.Mutex
		got []uint64
	)
	hub.AddSink(SinkFunc(func(evt Event) {
		mu.Lock()
		got = append(got, evt.Sequence)
		mu.Unlock()
	}))
	for i := 0; i < 3; i++ {
		hub.Publish(Event{Name: Chunk})
	}
	mu.Lock()
	defer mu.Unlock()
	if len(got) != 3 || got[0] != 1 || got[2] != 3 {
		t.Fatalf("unexpected sink sequences %v", got)
	}
}

func TestTailLimit(t *testing.T) {
	hub := NewHub(8)
	if events, next := hub.Tail(3); len(events) != 0 || next != 0 {
		t.Fatalf("empty hub tail = %+v next=%d", events, next)
	}
	for _, p := range []string{"a", "b", "c", "d"} {
		hub.Publish(Event{Name: Chunk, Payload: p})
	}
	events, next := hub.Tail(3)
	if len(events) != 3 || events[0].Payload != "b" || events[2].Payload != "d" || next != 4 {
		t.Fatalf("tail = %+v next=%d", events, next)
	}
	if events, _ := hub.Tail(100); len(events) != 4 {
		t.Fatalf("oversized limit returned %d events", len(events))
	}
}
