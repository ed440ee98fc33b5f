package pnl

import (
	"sync"

	"github.com/shopspring/decimal"

	"main/internal/message"
	"main/internal/security"
)

// PortfolioPnL is a point-in-time view of one portfolio's profit and loss.
type PortfolioPnL struct {
	Portfolio     string
	Realized      decimal.Decimal
	Unrealized    decimal.Decimal
	HasUnrealized bool
}

type position struct {
	volume   decimal.Decimal // signed, long > 0, short < 0
	avgPrice decimal.Decimal
}

type portfolio struct {
	name      string
	realized  decimal.Decimal
	positions map[security.ID]*position
}

// Manager computes realized and unrealized profit-loss per portfolio using an
// average-cost model. Trades come from execution messages, mark prices from
// level-1 changes.
type Manager struct {
	mu         sync.Mutex
	portfolios map[string]*portfolio
	lastPrice  map[security.ID]decimal.Decimal
}

// NewManager creates an empty manager.
func NewManager() *Manager {
	m := &Manager{}
	m.reset()
	return m
}

func (m *Manager) reset() {
	m.portfolios = make(map[string]*portfolio)
	m.lastPrice = make(map[security.ID]decimal.Decimal)
}

// Reset clears all accumulated state.
func (m *Manager) Reset() {
	m.mu.Lock()
	m.reset()
	m.mu.Unlock()
}

// ProcessLevel1 updates the mark price for unrealized P&L computation.
func (m *Manager) ProcessLevel1(l *message.Level1ChangeMessage) {
	price, ok := l.Changes[message.Level1FieldLastTradePrice]
	if !ok {
		return
	}
	m.mu.Lock()
	m.lastPrice[l.Security] = price
	m.mu.Unlock()
}

// ProcessExecution applies an own trade and returns the realized P&L delta of
// that trade plus the owning portfolio's updated totals. Messages without a
// trade or portfolio return a nil view and are ignored.
func (m *Manager) ProcessExecution(e *message.ExecutionMessage) (decimal.Decimal, *PortfolioPnL) {
	if !e.HasTrade || e.Portfolio == "" || e.TradeVolume.Sign() <= 0 {
		return decimal.Zero, nil
	}
	if e.Side != message.SideBuy && e.Side != message.SideSell {
		return decimal.Zero, nil
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	pf := m.portfolios[e.Portfolio]
	if pf == nil {
		pf = &portfolio{name: e.Portfolio, positions: make(map[security.ID]*position)}
		m.portfolios[e.Portfolio] = pf
	}
	pos := pf.positions[e.Security]
	if pos == nil {
		pos = &position{}
		pf.positions[e.Security] = pos
	}

	delta := applyTrade(pos, e.Side, e.TradePrice, e.TradeVolume)
	pf.realized = pf.realized.Add(delta)
	m.lastPrice[e.Security] = e.TradePrice

	view := m.portfolioView(pf)
	return delta, &view
}

// Portfolio returns the current totals for one portfolio.
func (m *Manager) Portfolio(name string) (PortfolioPnL, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	pf, ok := m.portfolios[name]
	if !ok {
		return PortfolioPnL{}, false
	}
	return m.portfolioView(pf), true
}

func (m *Manager) portfolioView(pf *portfolio) PortfolioPnL {
	view := PortfolioPnL{Portfolio: pf.name, Realized: pf.realized}
	unrealized := decimal.Zero
	known := false
	for id, pos := range pf.positions {
		if pos.volume.IsZero() {
			continue
		}
		last, ok := m.lastPrice[id]
		if !ok {
			continue
		}
		known = true
		unrealized = unrealized.Add(last.Sub(pos.avgPrice).Mul(pos.volume))
	}
	view.Unrealized = unrealized
	view.HasUnrealized = known
	return view
}

// applyTrade mutates the position and returns the realized P&L delta.
func applyTrade(pos *position, side message.Side, price, volume decimal.Decimal) decimal.Decimal {
	signed := volume
	if side == message.SideSell {
		signed = volume.Neg()
	}

	// extending or opening in the same direction
	if pos.volume.IsZero() || pos.volume.Sign() == signed.Sign() {
		total := pos.volume.Abs().Add(volume)
		pos.avgPrice = pos.avgPrice.Mul(pos.volume.Abs()).Add(price.Mul(volume)).Div(total)
		pos.volume = pos.volume.Add(signed)
		return decimal.Zero
	}

	// reducing, closing or flipping
	closing := decimal.Min(volume, pos.volume.Abs())
	var delta decimal.Decimal
	if pos.volume.Sign() > 0 {
		delta = price.Sub(pos.avgPrice).Mul(closing)
	} else {
		delta = pos.avgPrice.Sub(price).Mul(closing)
	}

	remaining := volume.Sub(closing)
	if pos.volume.Sign() > 0 {
		pos.volume = pos.volume.Sub(closing)
	} else {
		pos.volume = pos.volume.Add(closing)
	}
	if remaining.Sign() > 0 {
		if signed.Sign() > 0 {
			pos.volume = remaining
		} else {
			pos.volume = remaining.Neg()
		}
		pos.avgPrice = price
	} else if pos.volume.IsZero() {
		pos.avgPrice = decimal.Zero
	}
	return delta
}
