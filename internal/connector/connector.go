package connector

import (
	"errors"
	"sync"
	"time"

	"github.com/yanun0323/logs"

	"main/internal/adapter"
	"main/internal/bus"
	"main/internal/message"
	"main/internal/obs"
	"main/internal/security"
	"main/internal/subscription"
)

var (
	ErrAlreadyConnected = errors.New("connector already connected")
	ErrNotConnected     = errors.New("connector not connected")
	ErrNoAdapter        = errors.New("no adapter accepted the message")
)

// ConnectionState tracks the session-level connection lifecycle.
type ConnectionState uint16

const (
	StateDisconnected ConnectionState = iota
	StateConnecting
	StateConnected
	StateDisconnecting
	StateFailed
)

func (s ConnectionState) String() string {
	switch s {
	case StateDisconnected:
		return "disconnected"
	case StateConnecting:
		return "connecting"
	case StateConnected:
		return "connected"
	case StateDisconnecting:
		return "disconnecting"
	case StateFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// Options controls queue sizing and cleanup behavior.
type Options struct {
	// QueueCapacity bounds each subscription's consumer queue.
	QueueCapacity int
	// EventCapacity bounds the session-level event queue.
	EventCapacity int
	// UnsubscribeTimeout bounds the wait for an unsubscribe acknowledgment
	// before the subscription is force-removed.
	UnsubscribeTimeout time.Duration
}

func (o Options) withDefaults() Options {
	if o.QueueCapacity <= 0 {
		o.QueueCapacity = 256
	}
	if o.EventCapacity <= 0 {
		o.EventCapacity = 64
	}
	if o.UnsubscribeTimeout <= 0 {
		o.UnsubscribeTimeout = 5 * time.Second
	}
	return o
}

type entry struct {
	sub   *subscription.Subscription
	q     *bus.Queue
	owner adapter.Adapter
	done  chan struct{}

	cancelRequested bool
	unsubSent       bool
}

// Connector is the top-level session. It owns the adapter chains, the
// transaction id generator and the correlation table, routes requests to the
// adapter that recognizes them, and fans outbound events out to the
// interested subscription streams. All table access is serialized under one
// mutex; adapters push their events through it one at a time.
type Connector struct {
	opts     Options
	idgen    *message.IDGenerator
	adapters []adapter.Adapter
	metrics  *obs.Metrics
	events   *bus.Queue

	mu           sync.Mutex
	connState    ConnectionState
	connected    map[adapter.Adapter]bool
	subs         map[int64]*entry
	unsubPending map[int64]int64
	txns         map[int64]struct{}
}

// New creates a session over the given adapter chains. The outermost adapter
// of every chain must be passed; the connector registers itself as their out
// handler.
func New(opts Options, adapters ...adapter.Adapter) *Connector {
	c := &Connector{
		opts:         opts.withDefaults(),
		idgen:        message.NewIDGenerator(),
		adapters:     adapters,
		metrics:      obs.NewMetrics(),
		connected:    make(map[adapter.Adapter]bool),
		subs:         make(map[int64]*entry),
		unsubPending: make(map[int64]int64),
		txns:         make(map[int64]struct{}),
	}
	c.events = bus.NewQueue(c.opts.EventCapacity)
	for _, a := range adapters {
		src := a
		src.SetOutHandler(func(m message.Message) {
			c.onAdapterMessage(src, m)
		})
	}
	return c
}

// Metrics returns the session metrics.
func (c *Connector) Metrics() *obs.Metrics { return c.metrics }

// Events returns the session-level event queue: connection lifecycle,
// adapter-wide errors, order flow and anything answering a non-subscription
// transaction. Uncorrelated pushes (origin zero) land here as well.
func (c *Connector) Events() *bus.Queue { return c.events }

// State returns the current connection state.
func (c *Connector) State() ConnectionState {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.connState
}

// Connect asks every adapter to establish its session. Completion is
// observed on the event queue, not through the return value.
func (c *Connector) Connect() error {
	c.mu.Lock()
	if c.connState == StateConnecting || c.connState == StateConnected {
		c.mu.Unlock()
		return ErrAlreadyConnected
	}
	c.connState = StateConnecting
	c.connected = make(map[adapter.Adapter]bool)
	c.mu.Unlock()

	id := c.idgen.Next()
	for _, a := range c.adapters {
		m := &message.ConnectMessage{Header: message.Header{Time: time.Now()}, TransactionID: id}
		if err := a.SendIn(m); err != nil {
			logs.Errorf("connect rejected by adapter: %v", err)
			c.mu.Lock()
			c.connState = StateFailed
			c.mu.Unlock()
			return err
		}
	}
	return nil
}

// Disconnect asks every adapter to close its session.
func (c *Connector) Disconnect() error {
	c.mu.Lock()
	if c.connState != StateConnected && c.connState != StateConnecting {
		c.mu.Unlock()
		return ErrNotConnected
	}
	c.connState = StateDisconnecting
	c.mu.Unlock()

	id := c.idgen.Next()
	for _, a := range c.adapters {
		m := &message.DisconnectMessage{Header: message.Header{Time: time.Now()}, TransactionID: id}
		if err := a.SendIn(m); err != nil {
			logs.Errorf("disconnect rejected by adapter: %v", err)
		}
	}
	return nil
}

// Reset returns every adapter and the correlation table to their initial
// empty state. Transaction ids keep counting: ids are never reused within
// the session's lifetime.
func (c *Connector) Reset() {
	c.mu.Lock()
	for _, e := range c.subs {
		e.q.Close()
		close(e.done)
	}
	c.subs = make(map[int64]*entry)
	c.unsubPending = make(map[int64]int64)
	c.txns = make(map[int64]struct{})
	c.connected = make(map[adapter.Adapter]bool)
	c.connState = StateDisconnected
	c.mu.Unlock()

	for _, a := range c.adapters {
		if err := a.SendIn(&message.ResetMessage{Header: message.Header{Time: time.Now()}}); err != nil {
			logs.Errorf("reset rejected by adapter: %v", err)
		}
	}
}

// Subscribe creates a subscription, sends the subscribe request down the
// chain and returns the stream the caller consumes. A nil to makes the
// subscription open-ended; a non-nil to makes it historical and finite.
func (c *Connector) Subscribe(sec security.ID, dt security.DataType, from, to *time.Time) (*Stream, error) {
	id := c.idgen.Next()
	sub := subscription.New(id, sec, dt, from, to)
	_ = sub.ChangeState(subscription.StateRequestSent)
	e := &entry{
		sub:  sub,
		q:    bus.NewQueue(c.opts.QueueCapacity),
		done: make(chan struct{}),
	}
	c.mu.Lock()
	c.subs[id] = e
	c.mu.Unlock()

	m := &message.MarketDataMessage{
		Header:        message.Header{Time: time.Now()},
		TransactionID: id,
		Subscribe:     true,
		Security:      sec,
		DataType:      dt,
		From:          from,
		To:            to,
	}
	owner, err := c.route(m)
	if err != nil {
		c.mu.Lock()
		delete(c.subs, id)
		c.mu.Unlock()
		e.q.Close()
		close(e.done)
		return nil, err
	}
	c.mu.Lock()
	e.owner = owner
	c.mu.Unlock()
	return newStream(c, e), nil
}

// Unsubscribe sends an unsubscribe request for the given subscription id.
// Unknown and already-terminal ids are no-ops. Cancelling before the
// subscribe acknowledgment arrived defers the request until it resolves.
func (c *Connector) Unsubscribe(id int64) error {
	c.mu.Lock()
	e := c.subs[id]
	if e == nil || e.sub.State().IsTerminal() || e.unsubSent {
		c.mu.Unlock()
		return nil
	}
	if e.sub.State() == subscription.StateRequestSent {
		e.cancelRequested = true
		c.mu.Unlock()
		return nil
	}
	m := c.buildUnsubscribeLocked(e)
	owner := e.owner
	c.mu.Unlock()
	return c.sendTo(owner, m)
}

func (c *Connector) buildUnsubscribeLocked(e *entry) *message.MarketDataMessage {
	e.unsubSent = true
	unsubID := c.idgen.Next()
	c.unsubPending[unsubID] = e.sub.TransactionID
	return &message.MarketDataMessage{
		Header:                message.Header{Time: time.Now()},
		TransactionID:         unsubID,
		OriginalTransactionID: e.sub.TransactionID,
		Subscribe:             false,
		Security:              e.sub.Security,
		DataType:              e.sub.DataType,
	}
}

// RegisterOrder assigns a transaction id and dispatches the order. The id
// correlates subsequent execution reports on the event queue.
func (c *Connector) RegisterOrder(m *message.OrderRegisterMessage) (int64, error) {
	m.Time = time.Now()
	return c.sendTransactional(m, func(id int64) { m.TransactionID = id })
}

// CancelOrder dispatches a cancel for a previously registered order.
func (c *Connector) CancelOrder(m *message.OrderCancelMessage) (int64, error) {
	m.Time = time.Now()
	return c.sendTransactional(m, func(id int64) { m.TransactionID = id })
}

// ReplaceOrder dispatches an atomic price/volume replacement.
func (c *Connector) ReplaceOrder(m *message.OrderReplaceMessage) (int64, error) {
	m.Time = time.Now()
	return c.sendTransactional(m, func(id int64) { m.TransactionID = id })
}

// CancelOrderGroup dispatches a cancel for every order matching the filter.
func (c *Connector) CancelOrderGroup(m *message.OrderGroupCancelMessage) (int64, error) {
	m.Time = time.Now()
	return c.sendTransactional(m, func(id int64) { m.TransactionID = id })
}

// LookupPortfolio requests current positions for a portfolio.
func (c *Connector) LookupPortfolio(portfolio string) (int64, error) {
	m := &message.PortfolioLookupMessage{Header: message.Header{Time: time.Now()}, Portfolio: portfolio}
	return c.sendTransactional(m, func(id int64) { m.TransactionID = id })
}

// RequestOrderStatus requests the state of previously sent orders. A zero
// origin requests all of them.
func (c *Connector) RequestOrderStatus(origin int64) (int64, error) {
	m := &message.OrderStatusMessage{Header: message.Header{Time: time.Now()}, OriginalTransactionID: origin}
	return c.sendTransactional(m, func(id int64) { m.TransactionID = id })
}

func (c *Connector) sendTransactional(m message.Message, assign func(id int64)) (int64, error) {
	id := c.idgen.Next()
	assign(id)
	c.mu.Lock()
	c.txns[id] = struct{}{}
	c.mu.Unlock()
	if _, err := c.route(m); err != nil {
		c.mu.Lock()
		delete(c.txns, id)
		c.mu.Unlock()
		return 0, err
	}
	return id, nil
}

// route offers the message to each adapter in order until one accepts it.
func (c *Connector) route(m message.Message) (adapter.Adapter, error) {
	for _, a := range c.adapters {
		err := a.SendIn(m)
		if err == nil {
			return a, nil
		}
		if errors.Is(err, adapter.ErrUnsupportedType) {
			continue
		}
		return nil, err
	}
	return nil, ErrNoAdapter
}

func (c *Connector) sendTo(owner adapter.Adapter, m message.Message) error {
	if owner == nil {
		_, err := c.route(m)
		return err
	}
	return owner.SendIn(m)
}

// onAdapterMessage is the single demultiplex point: every adapter delivers
// here, one message at a time, and the table is only touched under the lock.
func (c *Connector) onAdapterMessage(src adapter.Adapter, m message.Message) {
	c.metrics.ObserveMessage(m.MessageType())
	c.mu.Lock()
	defer c.mu.Unlock()

	switch v := m.(type) {
	case *message.ConnectedMessage:
		if v.Err != nil {
			c.connState = StateFailed
		} else {
			c.connected[src] = true
			if c.connState == StateConnecting && len(c.connected) == len(c.adapters) {
				c.connState = StateConnected
			}
		}
		c.publishEventLocked(m)
	case *message.DisconnectedMessage:
		delete(c.connected, src)
		if v.Err != nil {
			if c.connState != StateDisconnected {
				c.connState = StateFailed
			}
			c.failAdapterSubsLocked(src, v.Err)
		} else {
			if c.connState == StateDisconnecting && len(c.connected) == 0 {
				c.connState = StateDisconnected
			}
			c.failAdapterSubsLocked(src, ErrNotConnected)
		}
		c.publishEventLocked(m)
	case *message.SubscriptionResponseMessage:
		c.handleResponseLocked(v)
	case *message.SubscriptionFinishedMessage:
		e := c.subs[v.OriginalTransactionID]
		if e == nil {
			if _, ok := c.txns[v.OriginalTransactionID]; ok {
				c.publishEventLocked(m)
				return
			}
			c.missLocked(v.OriginalTransactionID, m)
			return
		}
		_ = e.sub.ChangeState(subscription.StateFinished)
		c.removeLocked(e)
	case *message.SubscriptionOnlineMessage:
		e := c.subs[v.OriginalTransactionID]
		if e != nil && e.sub.State() == subscription.StateRequestSent {
			_ = e.sub.ChangeState(subscription.StateActive)
		}
	case *message.ErrorMessage:
		if v.OriginalTransactionID == 0 {
			c.failAdapterSubsLocked(src, v.Err)
			c.publishEventLocked(m)
			return
		}
		e := c.subs[v.OriginalTransactionID]
		if e == nil {
			if _, ok := c.txns[v.OriginalTransactionID]; ok {
				c.publishEventLocked(m)
				return
			}
			c.missLocked(v.OriginalTransactionID, m)
			return
		}
		_ = e.sub.ChangeState(subscription.StateError)
		c.deliverLocked(e, m)
		c.removeLocked(e)
	default:
		c.dispatchDataLocked(m)
	}
}

func (c *Connector) handleResponseLocked(v *message.SubscriptionResponseMessage) {
	if subID, ok := c.unsubPending[v.OriginalTransactionID]; ok {
		delete(c.unsubPending, v.OriginalTransactionID)
		e := c.subs[subID]
		if e == nil {
			return
		}
		if v.Err != nil {
			logs.Warnf("unsubscribe refused: id=%d err=%v", subID, v.Err)
		}
		_ = e.sub.ChangeState(subscription.StateStopped)
		c.removeLocked(e)
		return
	}

	e := c.subs[v.OriginalTransactionID]
	if e == nil {
		if _, ok := c.txns[v.OriginalTransactionID]; ok {
			c.publishEventLocked(v)
			return
		}
		c.missLocked(v.OriginalTransactionID, v)
		return
	}
	if v.Err != nil {
		_ = e.sub.ChangeState(subscription.StateError)
		c.deliverLocked(e, v)
		c.removeLocked(e)
		return
	}
	_ = e.sub.ChangeState(subscription.StateActive)
	if e.cancelRequested && !e.unsubSent {
		m := c.buildUnsubscribeLocked(e)
		owner := e.owner
		go func() {
			if err := c.sendTo(owner, m); err != nil {
				logs.Errorf("deferred unsubscribe failed: id=%d err=%v", e.sub.TransactionID, err)
			}
		}()
	}
}

// dispatchDataLocked fans a data-bearing message out to every still-active
// subscription it lists. Removed subscriptions are skipped silently; events
// answering a non-subscription transaction, and unsolicited pushes with a
// zero origin, attach to the session event queue.
func (c *Connector) dispatchDataLocked(m message.Message) {
	if sm, ok := m.(message.Subscribable); ok {
		if ids := sm.Subscriptions(); len(ids) > 0 {
			toEvents := false
			for _, id := range ids {
				e := c.subs[id]
				if e == nil {
					if _, ok := c.txns[id]; ok {
						toEvents = true
					}
					continue
				}
				if e.sub.State().IsTerminal() {
					continue
				}
				c.deliverLocked(e, m.Clone())
			}
			if toEvents {
				c.publishEventLocked(m)
			}
			return
		}
	}

	if om, ok := m.(message.Originated); ok {
		if origin := om.Origin(); origin != 0 {
			if e := c.subs[origin]; e != nil {
				if !e.sub.State().IsTerminal() {
					c.deliverLocked(e, m)
				}
				return
			}
			if _, ok := c.txns[origin]; ok {
				c.publishEventLocked(m)
				return
			}
			c.missLocked(origin, m)
			return
		}
	}

	// no correlation at all: implicit default context
	c.publishEventLocked(m)
}

func (c *Connector) deliverLocked(e *entry, m message.Message) {
	switch err := e.q.TryPublish(m); err {
	case nil:
	case bus.ErrQueueFull:
		c.metrics.IncQueueDrop()
		logs.Warnf("subscription queue full, dropping %s: id=%d", m.MessageType(), e.sub.TransactionID)
	case bus.ErrQueueClosed:
		c.metrics.IncQueueClosed()
	}
}

func (c *Connector) publishEventLocked(m message.Message) {
	if err := c.events.TryPublish(m); err != nil {
		c.metrics.IncQueueDrop()
		logs.Warnf("event queue full, dropping %s", m.MessageType())
	}
}

func (c *Connector) missLocked(origin int64, m message.Message) {
	c.metrics.IncCorrelationMiss()
	logs.Warnf("dropping %s for unknown transaction id %d", m.MessageType(), origin)
}

func (c *Connector) failAdapterSubsLocked(src adapter.Adapter, cause error) {
	for _, e := range c.subs {
		if e.owner != src || e.sub.State().IsTerminal() {
			continue
		}
		_ = e.sub.ChangeState(subscription.StateError)
		c.deliverLocked(e, &message.ErrorMessage{
			Header:                message.Header{Time: time.Now()},
			OriginalTransactionID: e.sub.TransactionID,
			Err:                   cause,
		})
		c.removeLocked(e)
	}
}

func (c *Connector) removeLocked(e *entry) {
	e.q.Close()
	close(e.done)
	delete(c.subs, e.sub.TransactionID)
}

func (c *Connector) forceRemove(id int64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	e := c.subs[id]
	if e == nil {
		return
	}
	_ = e.sub.ChangeState(subscription.StateError)
	c.removeLocked(e)
}

// SubscriptionState reports the lifecycle state of a tracked subscription.
func (c *Connector) SubscriptionState(id int64) (subscription.State, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	e, ok := c.subs[id]
	if !ok {
		return 0, false
	}
	return e.sub.State(), true
}
