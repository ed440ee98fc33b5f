package message

import (
	"time"

	"github.com/shopspring/decimal"

	"main/internal/security"
)

// OrderState tracks the venue-side lifecycle of an order.
type OrderState uint16

const (
	OrderStateUnknown OrderState = iota
	OrderStatePending
	OrderStateActive
	OrderStateDone
	OrderStateFailed
)

func (s OrderState) String() string {
	switch s {
	case OrderStatePending:
		return "pending"
	case OrderStateActive:
		return "active"
	case OrderStateDone:
		return "done"
	case OrderStateFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// Level1Field names a single level-1 quote attribute.
type Level1Field uint16

const (
	Level1FieldUnknown Level1Field = iota
	Level1FieldLastTradePrice
	Level1FieldLastTradeVolume
	Level1FieldBestBidPrice
	Level1FieldBestBidVolume
	Level1FieldBestAskPrice
	Level1FieldBestAskVolume
)

// PositionField names a single position attribute.
type PositionField uint16

const (
	PositionFieldUnknown PositionField = iota
	PositionFieldCurrentValue
	PositionFieldAveragePrice
	PositionFieldRealizedPnL
	PositionFieldUnrealizedPnL
)

// ConnectedMessage reports a completed connect. A non-nil Err means the
// connect attempt failed.
type ConnectedMessage struct {
	Header
	Err error
}

func (m *ConnectedMessage) MessageType() Type { return TypeConnected }
func (m *ConnectedMessage) Clone() Message {
	c := *m
	return &c
}

// DisconnectedMessage reports a completed or forced disconnect. A non-nil Err
// means the transport was lost rather than closed on request.
type DisconnectedMessage struct {
	Header
	Err error
}

func (m *DisconnectedMessage) MessageType() Type { return TypeDisconnected }
func (m *DisconnectedMessage) Clone() Message {
	c := *m
	return &c
}

// ErrorMessage surfaces an adapter fault. A non-zero origin scopes the fault
// to one transaction; zero means the whole adapter is affected.
type ErrorMessage struct {
	Header
	OriginalTransactionID int64
	Err                   error
}

func (m *ErrorMessage) MessageType() Type { return TypeError }
func (m *ErrorMessage) Origin() int64     { return m.OriginalTransactionID }
func (m *ErrorMessage) Clone() Message {
	c := *m
	return &c
}

// SubscriptionResponseMessage acknowledges a subscribe or unsubscribe request.
// A non-nil Err indicates the request was refused.
type SubscriptionResponseMessage struct {
	Header
	OriginalTransactionID int64
	Err                   error
}

func (m *SubscriptionResponseMessage) MessageType() Type { return TypeSubscriptionResponse }
func (m *SubscriptionResponseMessage) Origin() int64     { return m.OriginalTransactionID }
func (m *SubscriptionResponseMessage) Clone() Message {
	c := *m
	return &c
}

// SubscriptionFinishedMessage marks the natural end of a finite subscription.
type SubscriptionFinishedMessage struct {
	Header
	OriginalTransactionID int64
}

func (m *SubscriptionFinishedMessage) MessageType() Type { return TypeSubscriptionFinished }
func (m *SubscriptionFinishedMessage) Origin() int64     { return m.OriginalTransactionID }
func (m *SubscriptionFinishedMessage) Clone() Message {
	c := *m
	return &c
}

// SubscriptionOnlineMessage marks the switch of a subscription from replayed
// to live data.
type SubscriptionOnlineMessage struct {
	Header
	OriginalTransactionID int64
}

func (m *SubscriptionOnlineMessage) MessageType() Type { return TypeSubscriptionOnline }
func (m *SubscriptionOnlineMessage) Origin() int64     { return m.OriginalTransactionID }
func (m *SubscriptionOnlineMessage) Clone() Message {
	c := *m
	return &c
}

// Level1ChangeMessage carries changed level-1 fields for one instrument.
type Level1ChangeMessage struct {
	Header
	SubscriptionIDs []int64
	Security        security.ID
	ServerTime      time.Time
	Changes         map[Level1Field]decimal.Decimal
}

func (m *Level1ChangeMessage) MessageType() Type            { return TypeLevel1Change }
func (m *Level1ChangeMessage) Subscriptions() []int64       { return m.SubscriptionIDs }
func (m *Level1ChangeMessage) SetSubscriptions(ids []int64) { m.SubscriptionIDs = ids }
func (m *Level1ChangeMessage) Clone() Message {
	c := *m
	c.SubscriptionIDs = cloneIDs(m.SubscriptionIDs)
	if m.Changes != nil {
		c.Changes = make(map[Level1Field]decimal.Decimal, len(m.Changes))
		for k, v := range m.Changes {
			c.Changes[k] = v
		}
	}
	return &c
}

// Quote is one price level of an order book.
type Quote struct {
	Price  decimal.Decimal
	Volume decimal.Decimal
}

// QuoteChangeMessage carries an order book snapshot or increment.
type QuoteChangeMessage struct {
	Header
	SubscriptionIDs []int64
	Security        security.ID
	ServerTime      time.Time
	Bids            []Quote
	Asks            []Quote
}

func (m *QuoteChangeMessage) MessageType() Type            { return TypeQuoteChange }
func (m *QuoteChangeMessage) Subscriptions() []int64       { return m.SubscriptionIDs }
func (m *QuoteChangeMessage) SetSubscriptions(ids []int64) { m.SubscriptionIDs = ids }
func (m *QuoteChangeMessage) Clone() Message {
	c := *m
	c.SubscriptionIDs = cloneIDs(m.SubscriptionIDs)
	c.Bids = append([]Quote(nil), m.Bids...)
	c.Asks = append([]Quote(nil), m.Asks...)
	return &c
}

// ExecutionMessage reports order state changes and own trades. PnL and
// Commission stay nil until an attribution wrapper fills them in. Err carries
// a wrapper-computation fault attached on the way out of the chain.
type ExecutionMessage struct {
	Header
	SubscriptionIDs       []int64
	TransactionID         int64
	OriginalTransactionID int64
	Security              security.ID
	Portfolio             string
	Side                  Side
	OrderState            OrderState
	OrderPrice            decimal.Decimal
	OrderVolume           decimal.Decimal
	Balance               decimal.Decimal
	TradeID               int64
	TradePrice            decimal.Decimal
	TradeVolume           decimal.Decimal
	HasTrade              bool
	PnL                   *decimal.Decimal
	Commission            *decimal.Decimal
	Err                   error
}

func (m *ExecutionMessage) MessageType() Type            { return TypeExecution }
func (m *ExecutionMessage) Transaction() int64           { return m.TransactionID }
func (m *ExecutionMessage) Origin() int64                { return m.OriginalTransactionID }
func (m *ExecutionMessage) Subscriptions() []int64       { return m.SubscriptionIDs }
func (m *ExecutionMessage) SetSubscriptions(ids []int64) { m.SubscriptionIDs = ids }
func (m *ExecutionMessage) Clone() Message {
	c := *m
	c.SubscriptionIDs = cloneIDs(m.SubscriptionIDs)
	if m.PnL != nil {
		v := *m.PnL
		c.PnL = &v
	}
	if m.Commission != nil {
		v := *m.Commission
		c.Commission = &v
	}
	return &c
}

// PositionChangeMessage carries changed position attributes for one
// portfolio and instrument.
type PositionChangeMessage struct {
	Header
	SubscriptionIDs []int64
	Security        security.ID
	Portfolio       string
	ServerTime      time.Time
	Changes         map[PositionField]decimal.Decimal
}

func (m *PositionChangeMessage) MessageType() Type            { return TypePositionChange }
func (m *PositionChangeMessage) Subscriptions() []int64       { return m.SubscriptionIDs }
func (m *PositionChangeMessage) SetSubscriptions(ids []int64) { m.SubscriptionIDs = ids }
func (m *PositionChangeMessage) Clone() Message {
	c := *m
	c.SubscriptionIDs = cloneIDs(m.SubscriptionIDs)
	if m.Changes != nil {
		c.Changes = make(map[PositionField]decimal.Decimal, len(m.Changes))
		for k, v := range m.Changes {
			c.Changes[k] = v
		}
	}
	return &c
}
