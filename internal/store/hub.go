package store

import (
	"context"
	"sync"
)

const subscriberBuffer = 16

// hub fans changes out to in-process subscribers. A subscriber that falls
// behind loses its oldest pending change, never the newest.
type hub struct {
	mu     sync.Mutex
	subs   map[string]map[chan Change]struct{}
	closed chan struct{}
}

func newHub() *hub {
	return &hub{
		subs:   make(map[string]map[chan Change]struct{}),
		closed: make(chan struct{}),
	}
}

// subscribe returns a channel closed when ctx ends or the hub is closed.
func (h *hub) subscribe(ctx context.Context, key string) <-chan Change {
	ch := make(chan Change, subscriberBuffer)

	h.mu.Lock()
	select {
	case <-h.closed:
		h.mu.Unlock()
		close(ch)
		return ch
	default:
	}
	if h.subs[key] == nil {
		h.subs[key] = make(map[chan Change]struct{})
	}
	h.subs[key][ch] = struct{}{}
	h.mu.Unlock()

	go func() {
		select {
		case <-ctx.Done():
		case <-h.closed:
			return
		}
		h.mu.Lock()
		defer h.mu.Unlock()
		// closeAll may have won the race and already closed ch.
		if _, ok := h.subs[key][ch]; !ok {
			return
		}
		delete(h.subs[key], ch)
		if len(h.subs[key]) == 0 {
			delete(h.subs, key)
		}
		close(ch)
	}()

	return ch
}

func (h *hub) publish(c Change) {
	h.mu.Lock()
	defer h.mu.Unlock()

	for ch := range h.subs[c.Key] {
		for {
			select {
			case ch <- c:
			default:
				select {
				case <-ch:
				default:
				}
				continue
			}
			break
		}
	}
}

func (h *hub) closeAll() {
	h.mu.Lock()
	defer h.mu.Unlock()

	select {
	case <-h.closed:
		return
	default:
		close(h.closed)
	}
	for _, chans := range h.subs {
		for ch := range chans {
			close(ch)
		}
	}
	h.subs = make(map[string]map[chan Change]struct{})
}
