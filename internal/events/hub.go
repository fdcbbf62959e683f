package events

import (
	"context"
	"sync"
	"time"
)

// Name identifies the kind of a generation event.
type Name string

const (
	// Chunk carries one streamed delta (the delta only, not the accumulated text).
	Chunk Name = "chunk"
	// Complete carries the full generated content.
	Complete Name = "complete"
	// Error carries the failure message of a job.
	Error Name = "error"
)

// Event is one notification published by the generation coordinator.
type Event struct {
	Sequence   uint64    `json:"seq"`
	Name       Name      `json:"name"`
	JobID      string    `json:"job_id,omitempty"`
	SubjectKey string    `json:"subject_key,omitempty"`
	Payload    string    `json:"payload"`
	Timestamp  time.Time `json:"ts"`
}

// Sink receives every published event after it has been buffered.
type Sink interface {
	Append(Event)
}

// SinkFunc adapts a function to Sink.
type SinkFunc func(Event)

func (f SinkFunc) Append(evt Event) { f(evt) }

// Hub stores recent events in a bounded buffer and wakes waiters when new
// events arrive. Publishing with nobody listening is fine; the oldest events
// are dropped once the buffer is full.
type Hub struct {
	mu       sync.Mutex
	cond     *sync.Cond
	capacity int
	buffer   []Event
	nextSeq  uint64
	sinks    []Sink
}

// NewHub constructs a hub holding at most capacity events.
func NewHub(capacity int) *Hub {
	if capacity <= 0 {
		capacity = 512
	}
	h := &Hub{capacity: capacity}
	h.cond = sync.NewCond(&h.mu)
	return h
}

// AddSink wires an additional sink that receives every published event.
func (h *Hub) AddSink(sink Sink) {
	if h == nil || sink == nil {
		return
	}
	h.mu.Lock()
	h.sinks = append(h.sinks, sink)
	h.mu.Unlock()
}

// Publish assigns the next sequence number and buffers evt. It returns the
// stored event.
func (h *Hub) Publish(evt Event) Event {
	if h == nil {
		return evt
	}
	h.mu.Lock()
	h.nextSeq++
	evt.Sequence = h.nextSeq
	if evt.Timestamp.IsZero() {
		evt.Timestamp = time.Now().UTC()
	}
	if len(h.buffer) == h.capacity {
		copy(h.buffer, h.buffer[1:])
		h.buffer = h.buffer[:h.capacity-1]
	}
	h.buffer = append(h.buffer, evt)
	sinks := append([]Sink(nil), h.sinks...)
	h.cond.Broadcast()
	h.mu.Unlock()

	for _, sink := range sinks {
		sink.Append(evt)
	}
	return evt
}

// Fetch returns buffered events with sequence greater than since, plus the
// latest assigned sequence. When wait is true, Fetch blocks until at least one
// event is available or ctx ends.
func (h *Hub) Fetch(ctx context.Context, since uint64, limit int, wait bool) ([]Event, uint64, error) {
	if h == nil {
		return nil, since, nil
	}
	if limit <= 0 || limit > h.capacity {
		limit = h.capacity
	}

	stopWaking := make(chan struct{})
	defer close(stopWaking)
	if wait && ctx.Done() != nil {
		go func() {
			select {
			case <-ctx.Done():
				h.mu.Lock()
				h.cond.Broadcast()
				h.mu.Unlock()
			case <-stopWaking:
			}
		}()
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	for {
		out, next := h.snapshotLocked(since, limit)
		if len(out) > 0 || !wait {
			return out, next, nil
		}
		if err := ctx.Err(); err != nil {
			return nil, next, err
		}
		h.cond.Wait()
	}
}

// Tail returns the most recent limit events without blocking.
func (h *Hub) Tail(limit int) ([]Event, uint64) {
	if h == nil {
		return nil, 0
	}
	if limit <= 0 || limit > h.capacity {
		limit = h.capacity
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	start := len(h.buffer) - limit
	if start < 0 {
		start = 0
	}
	out := make([]Event, len(h.buffer)-start)
	copy(out, h.buffer[start:])
	return out, h.nextSeq
}

// LastSequence reports the most recently assigned sequence number.
func (h *Hub) LastSequence() uint64 {
	if h == nil {
		return 0
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.nextSeq
}

func (h *Hub) snapshotLocked(since uint64, limit int) ([]Event, uint64) {
	start := len(h.buffer)
	for i, evt := range h.buffer {
		if evt.Sequence > since {
			start = i
			break
		}
	}
	if start == len(h.buffer) {
		return nil, h.nextSeq
	}
	end := start + limit
	if end > len(h.buffer) {
		end = len(h.buffer)
	}
	out := make([]Event, end-start)
	copy(out, h.buffer[start:end])
	return out, h.nextSeq
}
