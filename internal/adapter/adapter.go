package adapter

import (
	"errors"
	"sync"

	"main/internal/message"
)

var (
	ErrUnsupportedType = errors.New("unsupported message type")
	ErrNotConnected    = errors.New("adapter not connected")
)

// Adapter is one unit of connectivity: a venue translation layer or a
// cross-cutting wrapper. SendIn hands a request over synchronously and must
// return quickly, queuing real work asynchronously. Messages produced by the
// adapter are pushed one at a time through the registered out handler.
type Adapter interface {
	// SendIn accepts an inbound request. Unrecognized message kinds are
	// rejected with ErrUnsupportedType, never silently dropped.
	SendIn(m message.Message) error

	// SetOutHandler registers the receiver of outbound messages. The adapter
	// invokes it serially per adapter.
	SetOutHandler(fn func(message.Message))

	// Reset clears all internal state as if newly constructed.
	Reset()

	// Clone produces an independent adapter with identical configuration and
	// no shared runtime state.
	Clone() Adapter
}

// Base stores the out handler for concrete adapters and wrappers.
type Base struct {
	mu  sync.RWMutex
	out func(message.Message)
}

// SetOutHandler registers the outbound message receiver.
func (b *Base) SetOutHandler(fn func(message.Message)) {
	b.mu.Lock()
	b.out = fn
	b.mu.Unlock()
}

// Emit pushes a message to the registered handler, if any.
func (b *Base) Emit(m message.Message) {
	b.mu.RLock()
	fn := b.out
	b.mu.RUnlock()
	if fn != nil {
		fn(m)
	}
}
