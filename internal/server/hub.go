package server

import (
	"sync"

	"github.com/nao1215/onionwatch/internal/model"
)

// stream is the recorded event log of one batch. Every subscriber replays it
// from the start, so late clients still see the whole batch.
type stream struct {
	mu     sync.Mutex
	events []model.BatchEvent
	closed bool
	notify chan struct{}
}

func newStream() *stream {
	return &stream{notify: make(chan struct{})}
}

func (s *stream) push(ev model.BatchEvent) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, ev)
	close(s.notify)
	s.notify = make(chan struct{})
}

func (s *stream) close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	close(s.notify)
}

// since returns the events after the first n, whether the stream has ended,
// and a channel closed on the next change.
func (s *stream) since(n int) ([]model.BatchEvent, bool, <-chan struct{}) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if n > len(s.events) {
		n = len(s.events)
	}
	out := make([]model.BatchEvent, len(s.events)-n)
	copy(out, s.events[n:])
	return out, s.closed, s.notify
}

// hub drains batch channels so the batch goroutine never blocks on a slow
// or absent SSE client.
type hub struct {
	mu      sync.Mutex
	current *stream
}

// attach starts draining events into a fresh stream that becomes current.
func (h *hub) attach(events <-chan model.BatchEvent) *stream {
	st := newStream()
	h.mu.Lock()
	h.current = st
	h.mu.Unlock()

	go func() {
		for ev := range events {
			st.push(ev)
		}
		st.close()
	}()
	return st
}

// latest returns the stream of the most recent batch, or nil.
func (h *hub) latest() *stream {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.current
}
