package message

import "time"

// Type defines the category of a message passed through the adapter chain.
type Type uint16

const (
	TypeUnknown Type = iota

	// requests, session -> venue
	TypeConnect
	TypeDisconnect
	TypeReset
	TypeMarketData
	TypeOrderRegister
	TypeOrderCancel
	TypeOrderReplace
	TypeOrderGroupCancel
	TypePortfolioLookup
	TypeOrderStatus

	// events, venue -> session
	TypeConnected
	TypeDisconnected
	TypeError
	TypeSubscriptionResponse
	TypeSubscriptionFinished
	TypeSubscriptionOnline
	TypeLevel1Change
	TypeQuoteChange
	TypeExecution
	TypePositionChange
)

func (t Type) String() string {
	switch t {
	case TypeConnect:
		return "Connect"
	case TypeDisconnect:
		return "Disconnect"
	case TypeReset:
		return "Reset"
	case TypeMarketData:
		return "MarketData"
	case TypeOrderRegister:
		return "OrderRegister"
	case TypeOrderCancel:
		return "OrderCancel"
	case TypeOrderReplace:
		return "OrderReplace"
	case TypeOrderGroupCancel:
		return "OrderGroupCancel"
	case TypePortfolioLookup:
		return "PortfolioLookup"
	case TypeOrderStatus:
		return "OrderStatus"
	case TypeConnected:
		return "Connected"
	case TypeDisconnected:
		return "Disconnected"
	case TypeError:
		return "Error"
	case TypeSubscriptionResponse:
		return "SubscriptionResponse"
	case TypeSubscriptionFinished:
		return "SubscriptionFinished"
	case TypeSubscriptionOnline:
		return "SubscriptionOnline"
	case TypeLevel1Change:
		return "Level1Change"
	case TypeQuoteChange:
		return "QuoteChange"
	case TypeExecution:
		return "Execution"
	case TypePositionChange:
		return "PositionChange"
	default:
		return "Unknown"
	}
}

// Message is the immutable unit of communication between the session and its
// adapters. Concrete messages embed Header and implement MessageType and Clone.
type Message interface {
	MessageType() Type
	LocalTime() time.Time
	Clone() Message
}

// Transactional is implemented by requests carrying their own transaction id.
type Transactional interface {
	Message
	Transaction() int64
}

// Originated is implemented by responses answering a previously issued
// transaction id. A zero origin means the message is an unsolicited push.
type Originated interface {
	Message
	Origin() int64
}

// Subscribable is implemented by data events that satisfy one or more active
// subscriptions. One physical event may serve several logical subscriptions.
type Subscribable interface {
	Message
	Subscriptions() []int64
	SetSubscriptions(ids []int64)
}

// Header carries the fields shared by every message.
type Header struct {
	Time time.Time
}

// LocalTime returns the local timestamp assigned when the message entered the
// chain. Zero means the message was never stamped.
func (h Header) LocalTime() time.Time { return h.Time }

func cloneIDs(ids []int64) []int64 {
	if ids == nil {
		return nil
	}
	out := make([]int64, len(ids))
	copy(out, ids)
	return out
}
