package store

import (
	"context"
	"sync"
)

// hub fans transcript snapshots out to per-user subscribers. A slow
// subscriber only ever sees the newest snapshot.
type hub struct {
	mu     sync.Mutex
	subs   map[string]map[chan []Message]struct{}
	closed bool
	done   chan struct{}
	wg     sync.WaitGroup
}

func newHub() *hub {
	return &hub{
		subs: make(map[string]map[chan []Message]struct{}),
		done: make(chan struct{}),
	}
}

func (h *hub) subscribe(ctx context.Context, userID string, initial []Message) (<-chan []Message, error) {
	ch := make(chan []Message, 1)
	ch <- initial

	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		return nil, ErrClosed
	}
	if h.subs[userID] == nil {
		h.subs[userID] = make(map[chan []Message]struct{})
	}
	h.subs[userID][ch] = struct{}{}
	h.wg.Add(1)
	h.mu.Unlock()

	go func() {
		defer h.wg.Done()
		select {
		case <-ctx.Done():
		case <-h.done:
		}
		h.mu.Lock()
		defer h.mu.Unlock()
		if _, ok := h.subs[userID][ch]; ok {
			delete(h.subs[userID], ch)
			close(ch)
		}
	}()
	return ch, nil
}

func (h *hub) publish(userID string, msgs []Message) {
	h.mu.Lock()
	defer h.mu.Unlock()

	for ch := range h.subs[userID] {
		snapshot := append([]Message(nil), msgs...)
		select {
		case <-ch:
		default:
		}
		ch <- snapshot
	}
}

// close ends every subscription and waits for their watchers to exit.
func (h *hub) close() {
	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		return
	}
	h.closed = true
	close(h.done)
	for userID, chans := range h.subs {
		for ch := range chans {
			close(ch)
		}
		delete(h.subs, userID)
	}
	h.mu.Unlock()

	h.wg.Wait()
}
