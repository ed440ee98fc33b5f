package message

import (
	"time"

	"github.com/shopspring/decimal"

	"main/internal/security"
)

// Side describes order direction.
type Side uint16

const (
	SideUnknown Side = iota
	SideBuy
	SideSell
)

func (s Side) String() string {
	switch s {
	case SideBuy:
		return "buy"
	case SideSell:
		return "sell"
	default:
		return "unknown"
	}
}

// ConnectMessage requests a session connect from every owned adapter.
type ConnectMessage struct {
	Header
	TransactionID int64
}

func (m *ConnectMessage) MessageType() Type  { return TypeConnect }
func (m *ConnectMessage) Transaction() int64 { return m.TransactionID }
func (m *ConnectMessage) Clone() Message {
	c := *m
	return &c
}

// DisconnectMessage requests a graceful session disconnect.
type DisconnectMessage struct {
	Header
	TransactionID int64
}

func (m *DisconnectMessage) MessageType() Type  { return TypeDisconnect }
func (m *DisconnectMessage) Transaction() int64 { return m.TransactionID }
func (m *DisconnectMessage) Clone() Message {
	c := *m
	return &c
}

// ResetMessage returns every adapter in the chain to its initial state. It is
// processed by each link before any subsequent inbound message is accepted.
type ResetMessage struct {
	Header
}

func (m *ResetMessage) MessageType() Type { return TypeReset }
func (m *ResetMessage) Clone() Message {
	c := *m
	return &c
}

// MarketDataMessage subscribes to or unsubscribes from a data stream.
// Subscribe requests carry a fresh TransactionID; unsubscribe requests
// additionally reference the original subscription id. A To bound makes the
// request historical and finite, its absence makes it open-ended.
type MarketDataMessage struct {
	Header
	TransactionID         int64
	OriginalTransactionID int64
	Subscribe             bool
	Security              security.ID
	DataType              security.DataType
	From                  *time.Time
	To                    *time.Time
}

func (m *MarketDataMessage) MessageType() Type  { return TypeMarketData }
func (m *MarketDataMessage) Transaction() int64 { return m.TransactionID }
func (m *MarketDataMessage) Origin() int64      { return m.OriginalTransactionID }
func (m *MarketDataMessage) Clone() Message {
	c := *m
	if m.From != nil {
		from := *m.From
		c.From = &from
	}
	if m.To != nil {
		to := *m.To
		c.To = &to
	}
	return &c
}

// OrderRegisterMessage places a new order.
type OrderRegisterMessage struct {
	Header
	TransactionID int64
	Security      security.ID
	Portfolio     string
	Side          Side
	Price         decimal.Decimal
	Volume        decimal.Decimal
}

func (m *OrderRegisterMessage) MessageType() Type  { return TypeOrderRegister }
func (m *OrderRegisterMessage) Transaction() int64 { return m.TransactionID }
func (m *OrderRegisterMessage) Clone() Message {
	c := *m
	return &c
}

// OrderCancelMessage cancels the order registered under the referenced
// transaction id.
type OrderCancelMessage struct {
	Header
	TransactionID         int64
	OriginalTransactionID int64
	Security              security.ID
	Portfolio             string
}

func (m *OrderCancelMessage) MessageType() Type  { return TypeOrderCancel }
func (m *OrderCancelMessage) Transaction() int64 { return m.TransactionID }
func (m *OrderCancelMessage) Origin() int64      { return m.OriginalTransactionID }
func (m *OrderCancelMessage) Clone() Message {
	c := *m
	return &c
}

// OrderReplaceMessage atomically replaces price and volume of a live order.
type OrderReplaceMessage struct {
	Header
	TransactionID         int64
	OriginalTransactionID int64
	Security              security.ID
	Portfolio             string
	Price                 decimal.Decimal
	Volume                decimal.Decimal
}

func (m *OrderReplaceMessage) MessageType() Type  { return TypeOrderReplace }
func (m *OrderReplaceMessage) Transaction() int64 { return m.TransactionID }
func (m *OrderReplaceMessage) Origin() int64      { return m.OriginalTransactionID }
func (m *OrderReplaceMessage) Clone() Message {
	c := *m
	return &c
}

// OrderGroupCancelMessage cancels every live order matching the filter.
type OrderGroupCancelMessage struct {
	Header
	TransactionID int64
	Portfolio     string
	Security      security.ID
	Side          Side
}

func (m *OrderGroupCancelMessage) MessageType() Type  { return TypeOrderGroupCancel }
func (m *OrderGroupCancelMessage) Transaction() int64 { return m.TransactionID }
func (m *OrderGroupCancelMessage) Clone() Message {
	c := *m
	return &c
}

// PortfolioLookupMessage requests current positions for a portfolio.
type PortfolioLookupMessage struct {
	Header
	TransactionID int64
	Portfolio     string
}

func (m *PortfolioLookupMessage) MessageType() Type  { return TypePortfolioLookup }
func (m *PortfolioLookupMessage) Transaction() int64 { return m.TransactionID }
func (m *PortfolioLookupMessage) Clone() Message {
	c := *m
	return &c
}

// OrderStatusMessage requests the current state of previously sent orders.
type OrderStatusMessage struct {
	Header
	TransactionID         int64
	OriginalTransactionID int64
}

func (m *OrderStatusMessage) MessageType() Type  { return TypeOrderStatus }
func (m *OrderStatusMessage) Transaction() int64 { return m.TransactionID }
func (m *OrderStatusMessage) Origin() int64      { return m.OriginalTransactionID }
func (m *OrderStatusMessage) Clone() Message {
	c := *m
	return &c
}
