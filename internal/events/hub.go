// Package events fans output events out to subscribed viewers.
package events

import (
	"context"
	"strings"
	"sync"

	"nbcache/internal/output"
)

const defaultBuffer = 32

type subscriber struct {
	docID string
	ch    chan output.Event
}

// Hub is an output.Sink that broadcasts to subscribers. Publishing never blocks: a
// subscriber whose buffer is full loses its oldest pending event.
type Hub struct {
	mu     sync.Mutex
	subs   map[*subscriber]struct{}
	buffer int
}

func NewHub(buffer int) *Hub {
	if buffer <= 0 {
		buffer = defaultBuffer
	}
	return &Hub{subs: make(map[*subscriber]struct{}), buffer: buffer}
}

var _ output.Sink = (*Hub)(nil)

// Subscribe returns a channel of events for docID ("" receives every document). The
// channel is closed once ctx is done.
func (h *Hub) Subscribe(ctx context.Context, docID string) <-chan output.Event {
	sub := &subscriber{docID: strings.TrimSpace(docID), ch: make(chan output.Event, h.buffer)}
	h.mu.Lock()
	h.subs[sub] = struct{}{}
	h.mu.Unlock()

	go func() {
		<-ctx.Done()
		h.mu.Lock()
		delete(h.subs, sub)
		close(sub.ch)
		h.mu.Unlock()
	}()
	return sub.ch
}

func (h *Hub) Publish(_ context.Context, ev output.Event) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	for sub := range h.subs {
		if sub.docID != "" && sub.docID != ev.DocumentID {
			continue
		}
		pushEvent(sub.ch, ev)
	}
	return nil
}

// Subscribers reports the number of live subscriptions.
func (h *Hub) Subscribers() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.subs)
}

func pushEvent(ch chan output.Event, ev output.Event) {
	select {
	case ch <- ev:
		return
	default:
	}
	select {
	case <-ch:
	default:
	}
	select {
	case ch <- ev:
	default:
	}
}
