package reconnect

import (
	"errors"
	"sync"
	"time"

	"github.com/yanun0323/logs"

	"main/internal/adapter"
	"main/internal/message"
)

var ErrRetriesExhausted = errors.New("reconnect retries exhausted")

// Options controls the retry policy.
type Options struct {
	// Attempts is the maximum number of reconnect attempts per outage.
	Attempts int
	// Delay is the pause before each attempt.
	Delay time.Duration
}

func (o Options) withDefaults() Options {
	if o.Attempts <= 0 {
		o.Attempts = 3
	}
	if o.Delay <= 0 {
		o.Delay = time.Second
	}
	return o
}

// Adapter is a chain wrapper that re-issues a connect after an unexpected
// transport loss. Caller-initiated disconnects are not retried, and no
// subscription is re-established: callers decide what to resubscribe.
type Adapter struct {
	adapter.Base
	inner adapter.Adapter
	opts  Options

	mu        sync.Mutex
	requested bool // caller asked for disconnect
	attempts  int
	timer     *time.Timer
}

// NewAdapter wraps inner with the retry policy.
func NewAdapter(inner adapter.Adapter, opts Options) *Adapter {
	a := &Adapter{inner: inner, opts: opts.withDefaults()}
	inner.SetOutHandler(a.onInnerMessage)
	return a
}

// SendIn tracks connect/disconnect intent and forwards to the inner adapter.
func (a *Adapter) SendIn(m message.Message) error {
	switch m.MessageType() {
	case message.TypeConnect:
		a.mu.Lock()
		a.requested = false
		a.attempts = 0
		a.mu.Unlock()
	case message.TypeDisconnect:
		a.mu.Lock()
		a.requested = true
		a.stopTimer()
		a.mu.Unlock()
	}
	return a.inner.SendIn(m)
}

// Reset cancels any pending retry and resets the inner adapter.
func (a *Adapter) Reset() {
	a.mu.Lock()
	a.requested = false
	a.attempts = 0
	a.stopTimer()
	a.mu.Unlock()
	a.inner.Reset()
}

// Clone deep-clones the chain with the same policy.
func (a *Adapter) Clone() adapter.Adapter {
	return NewAdapter(a.inner.Clone(), a.opts)
}

func (a *Adapter) stopTimer() {
	if a.timer != nil {
		a.timer.Stop()
		a.timer = nil
	}
}

func (a *Adapter) onInnerMessage(m message.Message) {
	switch v := m.(type) {
	case *message.ConnectedMessage:
		if v.Err == nil {
			a.mu.Lock()
			a.attempts = 0
			a.mu.Unlock()
		}
	case *message.DisconnectedMessage:
		a.mu.Lock()
		if !a.requested {
			a.scheduleLocked()
		}
		a.mu.Unlock()
	}
	a.Emit(m)
}

func (a *Adapter) scheduleLocked() {
	if a.attempts >= a.opts.Attempts {
		logs.Warnf("reconnect: giving up after %d attempts", a.attempts)
		a.Emit(&message.ErrorMessage{
			Header: message.Header{Time: time.Now()},
			Err:    ErrRetriesExhausted,
		})
		return
	}
	a.attempts++
	attempt := a.attempts
	a.stopTimer()
	a.timer = time.AfterFunc(a.opts.Delay, func() {
		logs.Infof("reconnect: attempt %d", attempt)
		if err := a.inner.SendIn(&message.ConnectMessage{Header: message.Header{Time: time.Now()}}); err != nil {
			logs.Errorf("reconnect: connect failed: %v", err)
		}
	})
}
