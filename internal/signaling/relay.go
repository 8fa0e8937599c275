// Package signaling is the participant side of the relay protocol. The core
// only sees the Relay interface; the websocket Client and the in-process
// Loopback are its two transports.
package signaling

import (
	"sync"

	"github.com/BioHazard786/liveclass/internal/wire"
)

// Handler receives one decoded relay event. Handlers run on the transport's
// read goroutine and must not block.
type Handler func(msg wire.Message)

// Relay sends events to the relay and routes incoming ones by event name.
type Relay interface {
	// ID is the peer id the relay assigned to this connection.
	ID() string
	Send(msg wire.Message) error
	On(ev wire.Event, h Handler)
	Close() error
}

// Handle registers a typed handler. Messages of a different type under the
// same event name are ignored.
func Handle[T wire.Message](r Relay, ev wire.Event, fn func(T)) {
	r.On(ev, func(msg wire.Message) {
		if typed, ok := msg.(T); ok {
			fn(typed)
		}
	})
}

// dispatcher is the handler table shared by both transports.
type dispatcher struct {
	mu       sync.RWMutex
	handlers map[wire.Event][]Handler
}

func (d *dispatcher) On(ev wire.Event, h Handler) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.handlers == nil {
		d.handlers = make(map[wire.Event][]Handler)
	}
	d.handlers[ev] = append(d.handlers[ev], h)
}

// dispatch reports whether any handler took the message.
func (d *dispatcher) dispatch(msg wire.Message) bool {
	d.mu.RLock()
	handlers := d.handlers[msg.Event()]
	d.mu.RUnlock()

	for _, h := range handlers {
		h(msg)
	}
	return len(handlers) > 0
}
