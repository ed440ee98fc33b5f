package pnl

import (
	"fmt"

	"github.com/shopspring/decimal"

	"main/internal/adapter"
	"main/internal/message"
	"main/internal/security"
)

// Adapter is a chain wrapper that attributes profit-loss to outbound
// execution messages. It mutates the PnL field in place and emits a
// supplementary position change per affected portfolio before forwarding the
// original message. Correlation fields are never altered.
type Adapter struct {
	adapter.Base
	inner adapter.Adapter
	mgr   *Manager
}

// NewAdapter wraps inner with P&L attribution.
func NewAdapter(inner adapter.Adapter) *Adapter {
	a := &Adapter{inner: inner, mgr: NewManager()}
	inner.SetOutHandler(a.onInnerMessage)
	return a
}

// Manager returns the profit-loss manager.
func (a *Adapter) Manager() *Manager { return a.mgr }

// SendIn forwards the request to the inner adapter. A reset clears the
// accumulated P&L state first.
func (a *Adapter) SendIn(m message.Message) error {
	if m.MessageType() == message.TypeReset {
		a.mgr.Reset()
	}
	return a.inner.SendIn(m)
}

// Reset clears the manager and resets the inner adapter.
func (a *Adapter) Reset() {
	a.mgr.Reset()
	a.inner.Reset()
}

// Clone deep-clones the chain with a fresh manager.
func (a *Adapter) Clone() adapter.Adapter {
	return NewAdapter(a.inner.Clone())
}

func (a *Adapter) onInnerMessage(m message.Message) {
	switch v := m.(type) {
	case *message.Level1ChangeMessage:
		a.mgr.ProcessLevel1(v)
	case *message.ExecutionMessage:
		a.attribute(v)
	}
	a.Emit(m)
}

func (a *Adapter) attribute(e *message.ExecutionMessage) {
	defer func() {
		if r := recover(); r != nil {
			e.Err = fmt.Errorf("pnl attribution: %v", r)
		}
	}()

	delta, view := a.mgr.ProcessExecution(e)
	if view == nil {
		return
	}
	if !delta.IsZero() {
		pnl := delta
		e.PnL = &pnl
	}

	changes := map[message.PositionField]decimal.Decimal{
		message.PositionFieldRealizedPnL: view.Realized,
	}
	if view.HasUnrealized {
		changes[message.PositionFieldUnrealizedPnL] = view.Unrealized
	}
	pos := &message.PositionChangeMessage{
		Header:     message.Header{Time: e.LocalTime()},
		Security:   security.Money,
		Portfolio:  view.Portfolio,
		ServerTime: e.LocalTime(),
		Changes:    changes,
	}
	a.Emit(pos)
}
