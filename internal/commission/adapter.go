package commission

import (
	"fmt"

	"github.com/shopspring/decimal"

	"main/internal/adapter"
	"main/internal/message"
)

// Adapter is a chain wrapper that attaches commissions to outbound execution
// messages using the configured rules. Rule faults are attached to the
// message and never interrupt the chain.
type Adapter struct {
	adapter.Base
	inner adapter.Adapter
	rules []Rule
}

// NewAdapter wraps inner with commission computation.
func NewAdapter(inner adapter.Adapter, rules ...Rule) *Adapter {
	a := &Adapter{inner: inner, rules: rules}
	inner.SetOutHandler(a.onInnerMessage)
	return a
}

// Rules returns the configured rules.
func (a *Adapter) Rules() []Rule { return a.rules }

// SendIn forwards the request to the inner adapter. A reset clears every
// rule's running state first.
func (a *Adapter) SendIn(m message.Message) error {
	if m.MessageType() == message.TypeReset {
		a.resetRules()
	}
	return a.inner.SendIn(m)
}

// Reset clears the rules and resets the inner adapter.
func (a *Adapter) Reset() {
	a.resetRules()
	a.inner.Reset()
}

// Clone deep-clones the chain. Every rule is cloned with clear state; the
// source adapter is left untouched.
func (a *Adapter) Clone() adapter.Adapter {
	rules := make([]Rule, len(a.rules))
	for i, r := range a.rules {
		rules[i] = r.Clone()
	}
	return NewAdapter(a.inner.Clone(), rules...)
}

func (a *Adapter) resetRules() {
	for _, r := range a.rules {
		r.Reset()
	}
}

func (a *Adapter) onInnerMessage(m message.Message) {
	if e, ok := m.(*message.ExecutionMessage); ok {
		a.apply(e)
	}
	a.Emit(m)
}

func (a *Adapter) apply(e *message.ExecutionMessage) {
	defer func() {
		if r := recover(); r != nil {
			e.Err = fmt.Errorf("commission: %v", r)
		}
	}()

	total := decimal.Zero
	applied := false
	for _, r := range a.rules {
		v, ok := r.Process(e)
		if !ok {
			continue
		}
		applied = true
		total = total.Add(v)
	}
	if !applied {
		return
	}
	if e.Commission != nil {
		total = total.Add(*e.Commission)
	}
	e.Commission = &total
}
