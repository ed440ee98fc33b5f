package pnl

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"main/internal/message"
	"main/internal/security"
)

var testSec = security.ID{Symbol: "BTC-USD", Board: "SIM"}

func trade(portfolio string, side message.Side, price, volume int64) *message.ExecutionMessage {
	return &message.ExecutionMessage{
		Security:    testSec,
		Portfolio:   portfolio,
		Side:        side,
		HasTrade:    true,
		TradePrice:  decimal.NewFromInt(price),
		TradeVolume: decimal.NewFromInt(volume),
	}
}

func TestRealizedRoundTrip(t *testing.T) {
	m := NewManager()

	delta, view := m.ProcessExecution(trade("p1", message.SideBuy, 100, 10))
	require.NotNil(t, view)
	assert.True(t, delta.IsZero(), "opening trade realizes nothing")

	delta, view = m.ProcessExecution(trade("p1", message.SideSell, 110, 10))
	require.NotNil(t, view)
	assert.True(t, delta.Equal(decimal.NewFromInt(100)), "got %s", delta)
	assert.True(t, view.Realized.Equal(decimal.NewFromInt(100)))
}

func TestAverageCostExtend(t *testing.T) {
	m := NewManager()
	m.ProcessExecution(trade("p1", message.SideBuy, 100, 10))
	m.ProcessExecution(trade("p1", message.SideBuy, 120, 10))

	// avg price is now 110; selling 20 at 110 realizes zero
	delta, _ := m.ProcessExecution(trade("p1", message.SideSell, 110, 20))
	assert.True(t, delta.IsZero(), "got %s", delta)
}

func TestFlipPosition(t *testing.T) {
	m := NewManager()
	m.ProcessExecution(trade("p1", message.SideBuy, 100, 10))

	// sell 15: close 10 at +50, open short 5 at 105
	delta, _ := m.ProcessExecution(trade("p1", message.SideSell, 105, 15))
	assert.True(t, delta.Equal(decimal.NewFromInt(50)), "got %s", delta)

	// cover the short at 100: 5 * (105-100) = 25
	delta, view := m.ProcessExecution(trade("p1", message.SideBuy, 100, 5))
	assert.True(t, delta.Equal(decimal.NewFromInt(25)), "got %s", delta)
	assert.True(t, view.Realized.Equal(decimal.NewFromInt(75)))
}

func TestShortRealized(t *testing.T) {
	m := NewManager()
	m.ProcessExecution(trade("p1", message.SideSell, 100, 10))
	delta, _ := m.ProcessExecution(trade("p1", message.SideBuy, 90, 10))
	assert.True(t, delta.Equal(decimal.NewFromInt(100)), "got %s", delta)
}

func TestUnrealizedFromMarkPrice(t *testing.T) {
	m := NewManager()
	m.ProcessExecution(trade("p1", message.SideBuy, 100, 10))

	m.ProcessLevel1(&message.Level1ChangeMessage{
		Security: testSec,
		Changes: map[message.Level1Field]decimal.Decimal{
			message.Level1FieldLastTradePrice: decimal.NewFromInt(105),
		},
	})

	view, ok := m.Portfolio("p1")
	require.True(t, ok)
	require.True(t, view.HasUnrealized)
	assert.True(t, view.Unrealized.Equal(decimal.NewFromInt(50)), "got %s", view.Unrealized)
}

func TestPortfoliosAreIsolated(t *testing.T) {
	m := NewManager()
	m.ProcessExecution(trade("p1", message.SideBuy, 100, 10))
	m.ProcessExecution(trade("p1", message.SideSell, 110, 10))
	m.ProcessExecution(trade("p2", message.SideBuy, 100, 5))

	p1, ok := m.Portfolio("p1")
	require.True(t, ok)
	assert.True(t, p1.Realized.Equal(decimal.NewFromInt(100)))

	p2, ok := m.Portfolio("p2")
	require.True(t, ok)
	assert.True(t, p2.Realized.IsZero())
}

func TestIgnoresNonTrades(t *testing.T) {
	m := NewManager()

	_, view := m.ProcessExecution(&message.ExecutionMessage{Security: testSec, Portfolio: "p1"})
	assert.Nil(t, view)

	e := trade("", message.SideBuy, 100, 10)
	_, view = m.ProcessExecution(e)
	assert.Nil(t, view)

	e = trade("p1", message.SideUnknown, 100, 10)
	_, view = m.ProcessExecution(e)
	assert.Nil(t, view)
}

func TestResetClears(t *testing.T) {
	m := NewManager()
	m.ProcessExecution(trade("p1", message.SideBuy, 100, 10))
	m.Reset()

	_, ok := m.Portfolio("p1")
	assert.False(t, ok)
}
