package hub

import (
	"context"
	"log"
	"sync"

	"github.com/D0liphin/Testnice/internal/model"
)

const subscriberBuffer = 1024

// Hub fans observed completions out to all subscribers.
type Hub struct {
	input       <-chan model.Completion
	mu          sync.RWMutex
	subscribers []chan model.Completion
	dropped     int64
}

// New creates a Hub reading from the given completion stream.
func New(input <-chan model.Completion) *Hub {
	return &Hub{input: input}
}

// Subscribe returns a buffered channel that will receive every
// completion. Multiple consumers may subscribe; each gets its own copy.
func (h *Hub) Subscribe() <-chan model.Completion {
	ch := make(chan model.Completion, subscriberBuffer)
	h.mu.Lock()
	h.subscribers = append(h.subscribers, ch)
	h.mu.Unlock()
	return ch
}

// Dropped returns how many completions were discarded for slow consumers.
func (h *Hub) Dropped() int64 {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.dropped
}

// Start reads and broadcasts until the context is cancelled or the
// input closes. All subscriber channels are closed on the way out.
func (h *Hub) Start(ctx context.Context) {
	defer h.closeAll()

	for {
		select {
		case <-ctx.Done():
			return
		case c, ok := <-h.input:
			if !ok {
				return
			}
			h.broadcast(c)
		}
	}
}

// broadcast sends a completion to every subscriber, dropping it for any
// whose buffer is full.
func (h *Hub) broadcast(c model.Completion) {
	h.mu.Lock()
	defer h.mu.Unlock()

	for _, ch := range h.subscribers {
		select {
		case ch <- c:
		default:
			h.dropped++
			log.Printf("hub: dropped completion for slow consumer (total dropped: %d)", h.dropped)
		}
	}
}

func (h *Hub) closeAll() {
	h.mu.Lock()
	defer h.mu.Unlock()
	for _, ch := range h.subscribers {
		close(ch)
	}
	h.subscribers = nil
}
