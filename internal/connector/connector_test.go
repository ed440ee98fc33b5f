package connector

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"main/internal/adapter"
	"main/internal/emulator"
	"main/internal/message"
	"main/internal/security"
	"main/internal/subscription"
)

var testSec = security.ID{Symbol: "BTC-USD", Board: "SIM"}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(2 * time.Millisecond)
	}
	t.Fatal("condition not met in time")
}

func nextMsg(t *testing.T, s *Stream) message.Message {
	t.Helper()
	ctx, cancel := context.WithTimeout(t.Context(), time.Second)
	defer cancel()
	m, err := s.Next(ctx)
	require.NoError(t, err)
	return m
}

func nextEvent(t *testing.T, c *Connector) message.Message {
	t.Helper()
	ctx, cancel := context.WithTimeout(t.Context(), time.Second)
	defer cancel()
	m, err := c.Events().Next(ctx)
	require.NoError(t, err)
	return m
}

func newSession(t *testing.T, cfg emulator.Config) (*Connector, *emulator.Adapter) {
	t.Helper()
	emu := emulator.New(cfg)
	t.Cleanup(emu.Close)
	return New(Options{}, emu), emu
}

func TestConnectLifecycle(t *testing.T) {
	c, _ := newSession(t, emulator.Config{})
	require.Equal(t, StateDisconnected, c.State())

	require.NoError(t, c.Connect())
	waitFor(t, func() bool { return c.State() == StateConnected })
	assert.Equal(t, message.TypeConnected, nextEvent(t, c).MessageType())

	assert.ErrorIs(t, c.Connect(), ErrAlreadyConnected)

	require.NoError(t, c.Disconnect())
	waitFor(t, func() bool { return c.State() == StateDisconnected })
	assert.Equal(t, message.TypeDisconnected, nextEvent(t, c).MessageType())
	assert.ErrorIs(t, c.Disconnect(), ErrNotConnected)
}

func TestLiveSubscriptionDeliversTicks(t *testing.T) {
	c, emu := newSession(t, emulator.Config{})

	s, err := c.Subscribe(testSec, security.DataTypeLevel1, nil, nil)
	require.NoError(t, err)
	waitFor(t, func() bool {
		st, ok := c.SubscriptionState(s.TransactionID())
		return ok && st == subscription.StateActive
	})

	emu.EmitLevel1(testSec, map[message.Level1Field]decimal.Decimal{
		message.Level1FieldLastTradePrice: decimal.NewFromInt(100),
	})

	l1 := nextMsg(t, s).(*message.Level1ChangeMessage)
	assert.Equal(t, []int64{s.TransactionID()}, l1.SubscriptionIDs)
	assert.True(t, l1.Changes[message.Level1FieldLastTradePrice].Equal(decimal.NewFromInt(100)))
}

func TestHistoricalSubscriptionCompletes(t *testing.T) {
	base := time.Date(2026, 3, 2, 10, 0, 0, 0, time.UTC)
	c, _ := newSession(t, emulator.Config{Scripts: map[string][]emulator.Tick{
		testSec.String(): {
			{Time: base, Fields: map[message.Level1Field]decimal.Decimal{message.Level1FieldLastTradePrice: decimal.NewFromInt(100)}},
			{Time: base.Add(time.Minute), Fields: map[message.Level1Field]decimal.Decimal{message.Level1FieldLastTradePrice: decimal.NewFromInt(101)}},
		},
	}})

	to := base.Add(time.Hour)
	s, err := c.Subscribe(testSec, security.DataTypeLevel1, &base, &to)
	require.NoError(t, err)

	assert.Equal(t, message.TypeLevel1Change, nextMsg(t, s).MessageType())
	assert.Equal(t, message.TypeLevel1Change, nextMsg(t, s).MessageType())

	ctx, cancel := context.WithTimeout(t.Context(), time.Second)
	defer cancel()
	_, err = s.Next(ctx)
	assert.ErrorIs(t, err, ErrCompleted)
}

func TestFanOutClonesPerStream(t *testing.T) {
	c, emu := newSession(t, emulator.Config{})

	s1, err := c.Subscribe(testSec, security.DataTypeLevel1, nil, nil)
	require.NoError(t, err)
	s2, err := c.Subscribe(testSec, security.DataTypeLevel1, nil, nil)
	require.NoError(t, err)
	for _, s := range []*Stream{s1, s2} {
		id := s.TransactionID()
		waitFor(t, func() bool {
			st, ok := c.SubscriptionState(id)
			return ok && st == subscription.StateActive
		})
	}

	emu.EmitLevel1(testSec, map[message.Level1Field]decimal.Decimal{
		message.Level1FieldLastTradePrice: decimal.NewFromInt(100),
	})

	m1 := nextMsg(t, s1).(*message.Level1ChangeMessage)
	m2 := nextMsg(t, s2).(*message.Level1ChangeMessage)
	assert.NotSame(t, m1, m2, "each stream must receive its own copy")
	assert.ElementsMatch(t, []int64{s1.TransactionID(), s2.TransactionID()}, m1.SubscriptionIDs)
	assert.ElementsMatch(t, m1.SubscriptionIDs, m2.SubscriptionIDs)
}

func TestFailedSubscriptionSurfacesError(t *testing.T) {
	c, emu := newSession(t, emulator.Config{})
	emu.FailSubscriptions(assert.AnError)

	s, err := c.Subscribe(testSec, security.DataTypeLevel1, nil, nil)
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(t.Context(), time.Second)
	defer cancel()
	_, err = s.Next(ctx)
	assert.ErrorIs(t, err, assert.AnError)

	_, tracked := c.SubscriptionState(s.TransactionID())
	assert.False(t, tracked, "failed subscription must be removed")
}

func TestCloseStopsLiveSubscription(t *testing.T) {
	c, _ := newSession(t, emulator.Config{})

	s, err := c.Subscribe(testSec, security.DataTypeLevel1, nil, nil)
	require.NoError(t, err)
	id := s.TransactionID()
	waitFor(t, func() bool {
		st, ok := c.SubscriptionState(id)
		return ok && st == subscription.StateActive
	})

	s.Close()

	ctx, cancel := context.WithTimeout(t.Context(), time.Second)
	defer cancel()
	_, err = s.Next(ctx)
	assert.ErrorIs(t, err, ErrCompleted)
	_, tracked := c.SubscriptionState(id)
	assert.False(t, tracked)
}

func TestOrderFlowOnEventQueue(t *testing.T) {
	c, _ := newSession(t, emulator.Config{FillOrders: true})

	id, err := c.RegisterOrder(&message.OrderRegisterMessage{
		Security:  testSec,
		Portfolio: "p1",
		Side:      message.SideBuy,
		Price:     decimal.NewFromInt(100),
		Volume:    decimal.NewFromInt(2),
	})
	require.NoError(t, err)
	require.NotZero(t, id)

	active := nextEvent(t, c).(*message.ExecutionMessage)
	assert.Equal(t, id, active.OriginalTransactionID)
	assert.Equal(t, message.OrderStateActive, active.OrderState)

	fill := nextEvent(t, c).(*message.ExecutionMessage)
	assert.True(t, fill.HasTrade)
	assert.Equal(t, message.OrderStateDone, fill.OrderState)
}

func TestPortfolioLookupOnEventQueue(t *testing.T) {
	c, _ := newSession(t, emulator.Config{})

	id, err := c.LookupPortfolio("p1")
	require.NoError(t, err)

	pos := nextEvent(t, c).(*message.PositionChangeMessage)
	assert.Equal(t, []int64{id}, pos.SubscriptionIDs)
	assert.Equal(t, "p1", pos.Portfolio)

	fin := nextEvent(t, c).(*message.SubscriptionFinishedMessage)
	assert.Equal(t, id, fin.OriginalTransactionID)
}

func TestUntaggedStatusLandsOnEventQueue(t *testing.T) {
	c, _ := newSession(t, emulator.Config{})

	_, err := c.RegisterOrder(&message.OrderRegisterMessage{
		Security: testSec,
		Side:     message.SideBuy,
		Price:    decimal.NewFromInt(100),
		Volume:   decimal.NewFromInt(1),
	})
	require.NoError(t, err)
	nextEvent(t, c)

	_, err = c.RequestOrderStatus(0)
	require.NoError(t, err)

	status := nextEvent(t, c).(*message.ExecutionMessage)
	assert.Zero(t, status.OriginalTransactionID)
}

func TestResetClosesStreamsAndKeepsCounting(t *testing.T) {
	c, _ := newSession(t, emulator.Config{})

	s1, err := c.Subscribe(testSec, security.DataTypeLevel1, nil, nil)
	require.NoError(t, err)
	first := s1.TransactionID()

	c.Reset()

	ctx, cancel := context.WithTimeout(t.Context(), time.Second)
	defer cancel()
	_, err = s1.Next(ctx)
	assert.ErrorIs(t, err, ErrCompleted)
	assert.Equal(t, StateDisconnected, c.State())

	s2, err := c.Subscribe(testSec, security.DataTypeLevel1, nil, nil)
	require.NoError(t, err)
	assert.Greater(t, s2.TransactionID(), first, "ids are never reused within a session")
}

// manualAdapter records requests and emits nothing by itself, so the test
// controls exactly when acknowledgments arrive.
type manualAdapter struct {
	adapter.Base
	mu   sync.Mutex
	sent []message.Message
}

func (a *manualAdapter) SendIn(m message.Message) error {
	a.mu.Lock()
	a.sent = append(a.sent, m)
	a.mu.Unlock()
	return nil
}

func (a *manualAdapter) Reset()                 {}
func (a *manualAdapter) Clone() adapter.Adapter { return &manualAdapter{} }

func (a *manualAdapter) unsubscribes() []*message.MarketDataMessage {
	a.mu.Lock()
	defer a.mu.Unlock()
	var out []*message.MarketDataMessage
	for _, m := range a.sent {
		if md, ok := m.(*message.MarketDataMessage); ok && !md.Subscribe {
			out = append(out, md)
		}
	}
	return out
}

func TestCancelBeforeAckDefersUnsubscribe(t *testing.T) {
	venue := &manualAdapter{}
	c := New(Options{}, venue)

	s, err := c.Subscribe(testSec, security.DataTypeLevel1, nil, nil)
	require.NoError(t, err)
	id := s.TransactionID()

	// cancel while the subscribe request is still unacknowledged
	s.Close()
	require.Empty(t, venue.unsubscribes(), "unsubscribe must wait for the ack")

	venue.Emit(&message.SubscriptionResponseMessage{OriginalTransactionID: id})
	waitFor(t, func() bool { return len(venue.unsubscribes()) == 1 })

	// a second close changes nothing
	s.Close()
	time.Sleep(10 * time.Millisecond)
	unsubs := venue.unsubscribes()
	require.Len(t, unsubs, 1, "exactly one protocol-level unsubscribe")
	assert.Equal(t, id, unsubs[0].OriginalTransactionID)

	venue.Emit(&message.SubscriptionResponseMessage{OriginalTransactionID: unsubs[0].TransactionID})
	ctx, cancel := context.WithTimeout(t.Context(), time.Second)
	defer cancel()
	_, err = s.Next(ctx)
	assert.ErrorIs(t, err, ErrCompleted)
}

func TestUnacknowledgedUnsubscribeForcedOut(t *testing.T) {
	venue := &manualAdapter{}
	c := New(Options{UnsubscribeTimeout: 30 * time.Millisecond}, venue)

	s, err := c.Subscribe(testSec, security.DataTypeLevel1, nil, nil)
	require.NoError(t, err)
	venue.Emit(&message.SubscriptionResponseMessage{OriginalTransactionID: s.TransactionID()})
	waitFor(t, func() bool {
		st, ok := c.SubscriptionState(s.TransactionID())
		return ok && st == subscription.StateActive
	})

	// the venue never answers the unsubscribe
	s.Close()

	ctx, cancel := context.WithTimeout(t.Context(), time.Second)
	defer cancel()
	_, err = s.Next(ctx)
	assert.ErrorIs(t, err, ErrCompleted)
	_, tracked := c.SubscriptionState(s.TransactionID())
	assert.False(t, tracked, "grace timeout must remove the subscription")
}

func TestAdapterErrorFailsItsSubscriptions(t *testing.T) {
	venue := &manualAdapter{}
	c := New(Options{}, venue)

	s, err := c.Subscribe(testSec, security.DataTypeLevel1, nil, nil)
	require.NoError(t, err)
	venue.Emit(&message.SubscriptionResponseMessage{OriginalTransactionID: s.TransactionID()})

	venue.Emit(&message.DisconnectedMessage{Err: assert.AnError})

	ctx, cancel := context.WithTimeout(t.Context(), time.Second)
	defer cancel()
	_, err = s.Next(ctx)
	assert.ErrorIs(t, err, assert.AnError)
}

func TestNoAdapterAcceptsSubscription(t *testing.T) {
	c := New(Options{})
	_, err := c.Subscribe(testSec, security.DataTypeLevel1, nil, nil)
	assert.ErrorIs(t, err, ErrNoAdapter)
}
