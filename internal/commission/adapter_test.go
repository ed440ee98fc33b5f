package commission

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"main/internal/adapter"
	"main/internal/message"
	"main/internal/security"
)

type sinkAdapter struct {
	adapter.Base
	received []message.Message
}

func (a *sinkAdapter) SendIn(m message.Message) error {
	a.received = append(a.received, m)
	return nil
}

func (a *sinkAdapter) Reset()                 {}
func (a *sinkAdapter) Clone() adapter.Adapter { return &sinkAdapter{} }

func ownTrade(price, volume int64) *message.ExecutionMessage {
	return &message.ExecutionMessage{
		Security:    security.ID{Symbol: "BTC-USD", Board: "SIM"},
		Portfolio:   "p1",
		Side:        message.SideBuy,
		HasTrade:    true,
		TradePrice:  decimal.NewFromInt(price),
		TradeVolume: decimal.NewFromInt(volume),
	}
}

func TestPerTradeRule(t *testing.T) {
	r := &PerTradeRule{Fee: decimal.NewFromFloat(0.5)}

	v, ok := r.Process(ownTrade(100, 10))
	require.True(t, ok)
	assert.True(t, v.Equal(decimal.NewFromFloat(0.5)))

	_, ok = r.Process(&message.ExecutionMessage{})
	assert.False(t, ok, "non-trades are not charged")
}

func TestTurnoverRule(t *testing.T) {
	r := &TurnoverRule{Percent: decimal.NewFromFloat(0.1)}

	v, ok := r.Process(ownTrade(100, 10))
	require.True(t, ok)
	// 0.1% of 1000
	assert.True(t, v.Equal(decimal.NewFromInt(1)), "got %s", v)
}

func TestPerOrderRuleChargesOnce(t *testing.T) {
	r := &PerOrderRule{Fee: decimal.NewFromInt(2)}

	first := ownTrade(100, 5)
	first.OriginalTransactionID = 42
	second := ownTrade(100, 5)
	second.OriginalTransactionID = 42

	v, ok := r.Process(first)
	require.True(t, ok)
	assert.True(t, v.Equal(decimal.NewFromInt(2)))

	_, ok = r.Process(second)
	assert.False(t, ok, "same order charged twice")

	third := ownTrade(100, 5)
	third.OriginalTransactionID = 43
	_, ok = r.Process(third)
	assert.True(t, ok)

	r.Reset()
	_, ok = r.Process(first)
	assert.True(t, ok, "reset must forget charged orders")
}

func TestAdapterSumsRules(t *testing.T) {
	inner := &sinkAdapter{}
	a := NewAdapter(inner,
		&PerTradeRule{Fee: decimal.NewFromInt(1)},
		&TurnoverRule{Percent: decimal.NewFromInt(1)},
	)
	var got []message.Message
	a.SetOutHandler(func(m message.Message) { got = append(got, m) })

	inner.Emit(ownTrade(100, 10))

	require.Len(t, got, 1)
	e := got[0].(*message.ExecutionMessage)
	require.NotNil(t, e.Commission)
	// 1 flat + 1% of 1000
	assert.True(t, e.Commission.Equal(decimal.NewFromInt(11)), "got %s", e.Commission)
}

func TestAdapterAddsToExistingCommission(t *testing.T) {
	inner := &sinkAdapter{}
	a := NewAdapter(inner, &PerTradeRule{Fee: decimal.NewFromInt(1)})
	var got []message.Message
	a.SetOutHandler(func(m message.Message) { got = append(got, m) })

	e := ownTrade(100, 10)
	prior := decimal.NewFromInt(3)
	e.Commission = &prior
	inner.Emit(e)

	out := got[0].(*message.ExecutionMessage)
	assert.True(t, out.Commission.Equal(decimal.NewFromInt(4)), "got %s", out.Commission)
}

func TestAdapterLeavesNonApplicableUntouched(t *testing.T) {
	inner := &sinkAdapter{}
	a := NewAdapter(inner, &PerTradeRule{Fee: decimal.NewFromInt(1)})
	var got []message.Message
	a.SetOutHandler(func(m message.Message) { got = append(got, m) })

	inner.Emit(&message.ExecutionMessage{OrderState: message.OrderStateActive})

	out := got[0].(*message.ExecutionMessage)
	assert.Nil(t, out.Commission)
}

type faultyRule struct{}

func (faultyRule) Title() string { return "faulty" }
func (faultyRule) Reset()        {}
func (faultyRule) Clone() Rule   { return faultyRule{} }
func (faultyRule) Process(*message.ExecutionMessage) (decimal.Decimal, bool) {
	panic("fee schedule missing")
}

func TestAdapterAttachesRuleFaultAndStillForwards(t *testing.T) {
	inner := &sinkAdapter{}
	a := NewAdapter(inner, faultyRule{})
	var got []message.Message
	a.SetOutHandler(func(m message.Message) { got = append(got, m) })

	e := ownTrade(100, 10)
	e.OriginalTransactionID = 42
	e.SubscriptionIDs = []int64{42}
	inner.Emit(e)

	require.Len(t, got, 1)
	out := got[0].(*message.ExecutionMessage)
	assert.Same(t, e, out)
	require.Error(t, out.Err)
	assert.Contains(t, out.Err.Error(), "commission")
	assert.Equal(t, int64(42), out.OriginalTransactionID)
	assert.Equal(t, []int64{42}, out.SubscriptionIDs)
	assert.Nil(t, out.Commission)
}

func TestAdapterCloneDoesNotShareRuleState(t *testing.T) {
	inner := &sinkAdapter{}
	rule := &PerOrderRule{Fee: decimal.NewFromInt(2)}
	a := NewAdapter(inner, rule)
	a.SetOutHandler(func(message.Message) {})

	first := ownTrade(100, 5)
	first.OriginalTransactionID = 42
	inner.Emit(first)

	clone := a.Clone().(*Adapter)
	require.Len(t, clone.Rules(), 1)
	cloned := clone.Rules()[0].(*PerOrderRule)
	assert.NotSame(t, rule, cloned)
	assert.True(t, cloned.Fee.Equal(rule.Fee))

	// the source adapter still remembers the charged order
	again := ownTrade(100, 5)
	again.OriginalTransactionID = 42
	_, ok := rule.Process(again)
	assert.False(t, ok, "cloning must not reset the source rules")

	// the clone starts clean
	_, ok = cloned.Process(again)
	assert.True(t, ok)
}

func TestAdapterResetOnResetMessage(t *testing.T) {
	inner := &sinkAdapter{}
	rule := &PerOrderRule{Fee: decimal.NewFromInt(2)}
	a := NewAdapter(inner, rule)
	a.SetOutHandler(func(message.Message) {})

	e := ownTrade(100, 5)
	e.OriginalTransactionID = 42
	inner.Emit(e)

	require.NoError(t, a.SendIn(&message.ResetMessage{}))

	again := ownTrade(100, 5)
	again.OriginalTransactionID = 42
	_, ok := rule.Process(again)
	assert.True(t, ok, "reset must clear per-order state")
}
