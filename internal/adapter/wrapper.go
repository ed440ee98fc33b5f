package adapter

import "main/internal/message"

// Wrapper is a pass-through decorator around an inner adapter. It forwards
// inbound messages unchanged and re-emits the inner adapter's outbound
// messages on its own handler. Concern-specific wrappers follow the same
// shape and transform messages in between.
type Wrapper struct {
	Base
	inner Adapter
}

// NewWrapper wraps inner and wires its outbound stream through the wrapper.
func NewWrapper(inner Adapter) *Wrapper {
	w := &Wrapper{inner: inner}
	inner.SetOutHandler(w.Emit)
	return w
}

// Inner returns the wrapped adapter.
func (w *Wrapper) Inner() Adapter { return w.inner }

// SendIn forwards the message to the inner adapter.
func (w *Wrapper) SendIn(m message.Message) error {
	return w.inner.SendIn(m)
}

// Reset resets the inner adapter.
func (w *Wrapper) Reset() {
	w.inner.Reset()
}

// Clone deep-clones the chain below this wrapper.
func (w *Wrapper) Clone() Adapter {
	return NewWrapper(w.inner.Clone())
}
