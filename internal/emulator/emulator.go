// Package emulator provides a fully in-process venue adapter. It answers the
// normalized protocol the way a real venue connection would: it acks
// connects and subscriptions, replays scripted quotes, completes historical
// ranges and echoes order flow as execution reports. Tests and the sample
// binary use it in place of a live venue.
package emulator

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"main/internal/adapter"
	"main/internal/bus"
	"main/internal/message"
	"main/internal/security"
)

var ErrConnectionLost = errors.New("emulated connection lost")

// Tick is one scripted level-1 change.
type Tick struct {
	Time   time.Time
	Fields map[message.Level1Field]decimal.Decimal
}

// Config scripts the emulated venue.
type Config struct {
	// Scripts replays level-1 ticks per instrument key for historical
	// subscriptions.
	Scripts map[string][]Tick
	// FillOrders makes every registered order fill completely at its own
	// price.
	FillOrders bool
	// QueueCapacity bounds the internal emission queue.
	QueueCapacity int
}

func (c Config) clone() Config {
	out := c
	if c.Scripts != nil {
		out.Scripts = make(map[string][]Tick, len(c.Scripts))
		for k, v := range c.Scripts {
			out.Scripts[k] = append([]Tick(nil), v...)
		}
	}
	return out
}

type liveSub struct {
	sec security.ID
	dt  security.DataType
}

// Adapter is the emulated venue connection.
type Adapter struct {
	adapter.Base
	cfg    Config
	q      *bus.Queue
	cancel context.CancelFunc

	mu        sync.Mutex
	connected bool
	subs      map[int64]liveSub
	orders    map[int64]*message.OrderRegisterMessage
	subErr    error
}

// New creates a started emulator.
func New(cfg Config) *Adapter {
	capacity := cfg.QueueCapacity
	if capacity <= 0 {
		capacity = 1024
	}
	ctx, cancel := context.WithCancel(context.Background())
	a := &Adapter{
		cfg:    cfg.clone(),
		q:      bus.NewQueue(capacity),
		cancel: cancel,
		subs:   make(map[int64]liveSub),
		orders: make(map[int64]*message.OrderRegisterMessage),
	}
	go a.q.Run(ctx, a.Emit)
	return a
}

// Close stops the emission pump.
func (a *Adapter) Close() {
	a.q.Close()
	a.cancel()
}

// Reset clears all venue-side state as if newly constructed.
func (a *Adapter) Reset() {
	a.mu.Lock()
	a.connected = false
	a.subs = make(map[int64]liveSub)
	a.orders = make(map[int64]*message.OrderRegisterMessage)
	a.subErr = nil
	a.mu.Unlock()
}

// Clone produces an independent emulator with the same script.
func (a *Adapter) Clone() adapter.Adapter {
	return New(a.cfg)
}

// FailSubscriptions makes every following subscribe request ack with err.
// A nil err restores normal behavior.
func (a *Adapter) FailSubscriptions(err error) {
	a.mu.Lock()
	a.subErr = err
	a.mu.Unlock()
}

// DropConnection simulates a transport loss.
func (a *Adapter) DropConnection() {
	a.mu.Lock()
	a.connected = false
	a.mu.Unlock()
	a.publish(&message.DisconnectedMessage{Header: stamp(), Err: ErrConnectionLost})
}

// EmitLevel1 pushes a live tick to every open subscription matching the
// instrument. One physical message carries every satisfied subscription id.
func (a *Adapter) EmitLevel1(sec security.ID, fields map[message.Level1Field]decimal.Decimal) {
	a.mu.Lock()
	var ids []int64
	for id, s := range a.subs {
		if s.sec == sec && s.dt == security.DataTypeLevel1 {
			ids = append(ids, id)
		}
	}
	a.mu.Unlock()
	if len(ids) == 0 {
		return
	}
	a.publish(&message.Level1ChangeMessage{
		Header:          stamp(),
		SubscriptionIDs: ids,
		Security:        sec,
		ServerTime:      time.Now(),
		Changes:         fields,
	})
}

// SendIn accepts a request and queues the venue's asynchronous answers.
func (a *Adapter) SendIn(m message.Message) error {
	switch v := m.(type) {
	case *message.ConnectMessage:
		a.mu.Lock()
		a.connected = true
		a.mu.Unlock()
		a.publish(&message.ConnectedMessage{Header: stamp()})
	case *message.DisconnectMessage:
		a.mu.Lock()
		a.connected = false
		a.mu.Unlock()
		a.publish(&message.DisconnectedMessage{Header: stamp()})
	case *message.ResetMessage:
		a.Reset()
	case *message.MarketDataMessage:
		return a.handleMarketData(v)
	case *message.OrderRegisterMessage:
		return a.handleOrderRegister(v)
	case *message.OrderCancelMessage:
		a.handleOrderCancel(v)
	case *message.OrderReplaceMessage:
		a.handleOrderReplace(v)
	case *message.OrderGroupCancelMessage:
		a.handleGroupCancel(v)
	case *message.PortfolioLookupMessage:
		a.handlePortfolioLookup(v)
	case *message.OrderStatusMessage:
		a.handleOrderStatus(v)
	default:
		return adapter.ErrUnsupportedType
	}
	return nil
}

func (a *Adapter) handleMarketData(v *message.MarketDataMessage) error {
	if !v.Subscribe {
		a.mu.Lock()
		delete(a.subs, v.OriginalTransactionID)
		a.mu.Unlock()
		a.publish(&message.SubscriptionResponseMessage{Header: stamp(), OriginalTransactionID: v.TransactionID})
		return nil
	}

	a.mu.Lock()
	failure := a.subErr
	a.mu.Unlock()
	if failure != nil {
		a.publish(&message.SubscriptionResponseMessage{
			Header:                stamp(),
			OriginalTransactionID: v.TransactionID,
			Err:                   failure,
		})
		return nil
	}

	a.publish(&message.SubscriptionResponseMessage{Header: stamp(), OriginalTransactionID: v.TransactionID})

	if v.To != nil {
		a.replayHistory(v)
		a.publish(&message.SubscriptionFinishedMessage{Header: stamp(), OriginalTransactionID: v.TransactionID})
		return nil
	}

	a.mu.Lock()
	a.subs[v.TransactionID] = liveSub{sec: v.Security, dt: v.DataType}
	a.mu.Unlock()
	a.publish(&message.SubscriptionOnlineMessage{Header: stamp(), OriginalTransactionID: v.TransactionID})
	return nil
}

func (a *Adapter) replayHistory(v *message.MarketDataMessage) {
	script := a.cfg.Scripts[v.Security.String()]
	for _, tick := range script {
		if v.From != nil && tick.Time.Before(*v.From) {
			continue
		}
		if tick.Time.After(*v.To) {
			continue
		}
		a.publish(&message.Level1ChangeMessage{
			Header:          stamp(),
			SubscriptionIDs: []int64{v.TransactionID},
			Security:        v.Security,
			ServerTime:      tick.Time,
			Changes:         tick.Fields,
		})
	}
}

func (a *Adapter) handleOrderRegister(v *message.OrderRegisterMessage) error {
	if v.Volume.Sign() <= 0 {
		return errors.New("order volume must be positive")
	}
	a.mu.Lock()
	a.orders[v.TransactionID] = v
	fill := a.cfg.FillOrders
	a.mu.Unlock()

	a.publish(&message.ExecutionMessage{
		Header:                stamp(),
		OriginalTransactionID: v.TransactionID,
		Security:              v.Security,
		Portfolio:             v.Portfolio,
		Side:                  v.Side,
		OrderState:            message.OrderStateActive,
		OrderPrice:            v.Price,
		OrderVolume:           v.Volume,
		Balance:               v.Volume,
	})
	if fill {
		a.publish(&message.ExecutionMessage{
			Header:                stamp(),
			OriginalTransactionID: v.TransactionID,
			Security:              v.Security,
			Portfolio:             v.Portfolio,
			Side:                  v.Side,
			OrderState:            message.OrderStateDone,
			OrderPrice:            v.Price,
			OrderVolume:           v.Volume,
			Balance:               decimal.Zero,
			TradeID:               v.TransactionID,
			TradePrice:            v.Price,
			TradeVolume:           v.Volume,
			HasTrade:              true,
		})
	}
	return nil
}

func (a *Adapter) handleOrderCancel(v *message.OrderCancelMessage) {
	a.mu.Lock()
	reg := a.orders[v.OriginalTransactionID]
	delete(a.orders, v.OriginalTransactionID)
	a.mu.Unlock()
	if reg == nil {
		a.publish(&message.ErrorMessage{
			Header:                stamp(),
			OriginalTransactionID: v.TransactionID,
			Err:                   errors.New("order not found"),
		})
		return
	}
	a.publish(&message.ExecutionMessage{
		Header:                stamp(),
		OriginalTransactionID: v.OriginalTransactionID,
		Security:              reg.Security,
		Portfolio:             reg.Portfolio,
		Side:                  reg.Side,
		OrderState:            message.OrderStateDone,
		OrderPrice:            reg.Price,
		OrderVolume:           reg.Volume,
		Balance:               reg.Volume,
	})
}

func (a *Adapter) handleOrderReplace(v *message.OrderReplaceMessage) {
	a.mu.Lock()
	reg := a.orders[v.OriginalTransactionID]
	if reg != nil {
		delete(a.orders, v.OriginalTransactionID)
		replaced := *reg
		replaced.TransactionID = v.TransactionID
		replaced.Price = v.Price
		replaced.Volume = v.Volume
		a.orders[v.TransactionID] = &replaced
	}
	a.mu.Unlock()
	if reg == nil {
		a.publish(&message.ErrorMessage{
			Header:                stamp(),
			OriginalTransactionID: v.TransactionID,
			Err:                   errors.New("order not found"),
		})
		return
	}
	a.publish(&message.ExecutionMessage{
		Header:                stamp(),
		OriginalTransactionID: v.TransactionID,
		Security:              reg.Security,
		Portfolio:             reg.Portfolio,
		Side:                  reg.Side,
		OrderState:            message.OrderStateActive,
		OrderPrice:            v.Price,
		OrderVolume:           v.Volume,
		Balance:               v.Volume,
	})
}

func (a *Adapter) handleGroupCancel(v *message.OrderGroupCancelMessage) {
	a.mu.Lock()
	for id, reg := range a.orders {
		if v.Portfolio != "" && reg.Portfolio != v.Portfolio {
			continue
		}
		if !v.Security.IsZero() && reg.Security != v.Security {
			continue
		}
		if v.Side != message.SideUnknown && reg.Side != v.Side {
			continue
		}
		delete(a.orders, id)
	}
	a.mu.Unlock()
	a.publish(&message.SubscriptionResponseMessage{Header: stamp(), OriginalTransactionID: v.TransactionID})
}

func (a *Adapter) handlePortfolioLookup(v *message.PortfolioLookupMessage) {
	a.publish(&message.PositionChangeMessage{
		Header:          stamp(),
		SubscriptionIDs: []int64{v.TransactionID},
		Security:        security.Money,
		Portfolio:       v.Portfolio,
		ServerTime:      time.Now(),
		Changes:         map[message.PositionField]decimal.Decimal{},
	})
	a.publish(&message.SubscriptionFinishedMessage{Header: stamp(), OriginalTransactionID: v.TransactionID})
}

// handleOrderStatus echoes live orders. A request without an origin is
// answered with untagged executions, matching venues that report statuses
// outside any transaction context.
func (a *Adapter) handleOrderStatus(v *message.OrderStatusMessage) {
	a.mu.Lock()
	regs := make([]*message.OrderRegisterMessage, 0, len(a.orders))
	for id, reg := range a.orders {
		if v.OriginalTransactionID != 0 && id != v.OriginalTransactionID {
			continue
		}
		regs = append(regs, reg)
	}
	a.mu.Unlock()
	for _, reg := range regs {
		origin := int64(0)
		if v.OriginalTransactionID != 0 {
			origin = v.TransactionID
		}
		a.publish(&message.ExecutionMessage{
			Header:                stamp(),
			OriginalTransactionID: origin,
			Security:              reg.Security,
			Portfolio:             reg.Portfolio,
			Side:                  reg.Side,
			OrderState:            message.OrderStateActive,
			OrderPrice:            reg.Price,
			OrderVolume:           reg.Volume,
			Balance:               reg.Volume,
		})
	}
}

func (a *Adapter) publish(m message.Message) {
	_ = a.q.TryPublish(m)
}

func stamp() message.Header {
	return message.Header{Time: time.Now()}
}
