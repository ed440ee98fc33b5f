// Package remote connects the message chain to a gateway process that speaks
// codec envelopes over a websocket. Requests are written as envelopes; every
// envelope the gateway pushes back is decoded and emitted upstream.
package remote

import (
	"context"
	"sync"
	"time"

	"github.com/yanun0323/errors"
	"github.com/yanun0323/logs"
	"github.com/yanun0323/pkg/sys"
	"github.com/yanun0323/pkg/ws"

	"main/internal/adapter"
	"main/internal/codec"
	"main/internal/message"
)

var ErrConnectionLost = errors.New("gateway connection lost")

type Config struct {
	URL string
}

// Adapter is the websocket leg of the chain. The construction context bounds
// the socket's lifetime.
type Adapter struct {
	adapter.Base
	ctx context.Context
	cfg Config

	mu        sync.Mutex
	wss       *ws.WebSocket
	cancel    func()
	connected bool
	stopping  bool
}

func New(ctx context.Context, cfg Config) *Adapter {
	return &Adapter{ctx: ctx, cfg: cfg}
}

func (a *Adapter) SendIn(m message.Message) error {
	switch m.MessageType() {
	case message.TypeConnect:
		return a.connect(m)
	case message.TypeDisconnect:
		return a.forwardAndClose(m)
	case message.TypeReset:
		a.teardown()
		return nil
	default:
		return a.write(m)
	}
}

func (a *Adapter) connect(m message.Message) error {
	ctx := a.ctx
	a.mu.Lock()
	if a.connected {
		a.mu.Unlock()
		return a.write(m)
	}

	wss := ws.New(ctx, a.cfg.URL)
	if err := wss.Start(ctx); err != nil {
		a.mu.Unlock()
		a.Emit(&message.ConnectedMessage{
			Header: message.Header{Time: time.Now()},
			Err:    errors.Wrap(err, "start wss").With("url", a.cfg.URL),
		})
		return nil
	}

	ch, cancel := wss.Subscribe()
	a.wss = wss
	a.cancel = cancel
	a.connected = true
	a.stopping = false
	a.mu.Unlock()

	go a.receive(ctx, ch)
	return a.write(m)
}

// receive pumps gateway envelopes upstream until the socket drops.
func (a *Adapter) receive(ctx context.Context, ch <-chan ws.Message) {
	for {
		select {
		case <-sys.Shutdown():
			return
		case <-ctx.Done():
			return
		case raw, ok := <-ch:
			if !ok {
				a.onSocketDown()
				return
			}

			env, ok := ws.ReadMessage[codec.Envelope](raw)
			if !ok {
				logs.Warnf("drop unparsable gateway frame")
				continue
			}
			m, err := codec.DecodeEnvelope(env)
			if err != nil {
				logs.Warnf("drop undecodable gateway frame: kind=%s err=%v", env.Kind, err)
				continue
			}
			a.Emit(m)
		}
	}
}

func (a *Adapter) onSocketDown() {
	a.mu.Lock()
	requested := a.stopping
	a.connected = false
	a.wss = nil
	a.cancel = nil
	a.mu.Unlock()

	if requested {
		return
	}
	a.Emit(&message.DisconnectedMessage{
		Header: message.Header{Time: time.Now()},
		Err:    ErrConnectionLost,
	})
}

func (a *Adapter) write(m message.Message) error {
	a.mu.Lock()
	wss := a.wss
	a.mu.Unlock()
	if wss == nil {
		return errors.Wrap(adapter.ErrNotConnected, "gateway write")
	}

	env, err := codec.EncodeEnvelope(m)
	if err != nil {
		return errors.Wrap(err, "encode envelope").With("type", m.MessageType().String())
	}
	if err := wss.WriteJSON(env); err != nil {
		return errors.Wrap(err, "write envelope").With("kind", env.Kind)
	}
	return nil
}

func (a *Adapter) forwardAndClose(m message.Message) error {
	if err := a.write(m); err != nil {
		logs.Warnf("disconnect not delivered to gateway: %v", err)
	}
	a.teardown()
	// The socket is gone either way, so the session close is reported
	// locally rather than waiting on a gateway reply.
	a.Emit(&message.DisconnectedMessage{Header: message.Header{Time: time.Now()}})
	return nil
}

func (a *Adapter) teardown() {
	a.mu.Lock()
	wss, cancel := a.wss, a.cancel
	a.stopping = true
	a.connected = false
	a.wss = nil
	a.cancel = nil
	a.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	if wss != nil {
		wss.Close()
	}
}

func (a *Adapter) Reset() {
	a.teardown()
}

// Clone returns a disconnected adapter with the same gateway target.
func (a *Adapter) Clone() adapter.Adapter {
	return New(a.ctx, a.cfg)
}
