package commission

import (
	"sync"

	"github.com/shopspring/decimal"

	"main/internal/message"
)

// Rule computes a commission for own trades and orders. Rules may keep
// running state across calls; Reset returns them to their initial state.
type Rule interface {
	// Title names the rule for logs and configuration.
	Title() string

	// Reset clears the rule's running state.
	Reset()

	// Process returns the commission for the message and whether the rule
	// applies to it at all.
	Process(e *message.ExecutionMessage) (decimal.Decimal, bool)

	// Clone returns an independent rule with the same configuration and no
	// accumulated state.
	Clone() Rule
}

// PerTradeRule charges a flat fee for every own trade.
type PerTradeRule struct {
	Fee decimal.Decimal
}

func (r *PerTradeRule) Title() string { return "per trade" }
func (r *PerTradeRule) Reset()        {}
func (r *PerTradeRule) Clone() Rule   { return &PerTradeRule{Fee: r.Fee} }

func (r *PerTradeRule) Process(e *message.ExecutionMessage) (decimal.Decimal, bool) {
	if !e.HasTrade {
		return decimal.Zero, false
	}
	return r.Fee, true
}

// TurnoverRule charges a percentage of the traded notional.
type TurnoverRule struct {
	Percent decimal.Decimal
}

func (r *TurnoverRule) Title() string { return "turnover percent" }
func (r *TurnoverRule) Reset()        {}
func (r *TurnoverRule) Clone() Rule   { return &TurnoverRule{Percent: r.Percent} }

func (r *TurnoverRule) Process(e *message.ExecutionMessage) (decimal.Decimal, bool) {
	if !e.HasTrade {
		return decimal.Zero, false
	}
	turnover := e.TradePrice.Mul(e.TradeVolume)
	return turnover.Mul(r.Percent).Div(decimal.NewFromInt(100)), true
}

// PerOrderRule charges a flat fee once per order, on the first execution
// observed for its transaction id.
type PerOrderRule struct {
	Fee decimal.Decimal

	mu   sync.Mutex
	seen map[int64]struct{}
}

func (r *PerOrderRule) Title() string { return "per order" }
func (r *PerOrderRule) Clone() Rule   { return &PerOrderRule{Fee: r.Fee} }

func (r *PerOrderRule) Reset() {
	r.mu.Lock()
	r.seen = nil
	r.mu.Unlock()
}

func (r *PerOrderRule) Process(e *message.ExecutionMessage) (decimal.Decimal, bool) {
	id := e.OriginalTransactionID
	if id == 0 {
		id = e.TransactionID
	}
	if id == 0 {
		return decimal.Zero, false
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.seen == nil {
		r.seen = make(map[int64]struct{})
	}
	if _, ok := r.seen[id]; ok {
		return decimal.Zero, false
	}
	r.seen[id] = struct{}{}
	return r.Fee, true
}
