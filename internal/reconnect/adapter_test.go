package reconnect

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"main/internal/adapter"
	"main/internal/message"
)

type countingAdapter struct {
	adapter.Base
	mu       sync.Mutex
	connects int
}

func (a *countingAdapter) SendIn(m message.Message) error {
	if m.MessageType() == message.TypeConnect {
		a.mu.Lock()
		a.connects++
		a.mu.Unlock()
	}
	return nil
}

func (a *countingAdapter) Reset()                 {}
func (a *countingAdapter) Clone() adapter.Adapter { return &countingAdapter{} }

func (a *countingAdapter) connectCount() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.connects
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("condition not met in time")
}

func TestRetriesUnexpectedDisconnect(t *testing.T) {
	inner := &countingAdapter{}
	a := NewAdapter(inner, Options{Attempts: 2, Delay: 10 * time.Millisecond})
	a.SetOutHandler(func(message.Message) {})

	require.NoError(t, a.SendIn(&message.ConnectMessage{}))
	require.Equal(t, 1, inner.connectCount())

	inner.Emit(&message.DisconnectedMessage{Err: assert.AnError})
	waitFor(t, func() bool { return inner.connectCount() == 2 })
}

func TestRequestedDisconnectNotRetried(t *testing.T) {
	inner := &countingAdapter{}
	a := NewAdapter(inner, Options{Attempts: 2, Delay: 5 * time.Millisecond})
	a.SetOutHandler(func(message.Message) {})

	require.NoError(t, a.SendIn(&message.ConnectMessage{}))
	require.NoError(t, a.SendIn(&message.DisconnectMessage{}))
	inner.Emit(&message.DisconnectedMessage{})

	time.Sleep(30 * time.Millisecond)
	assert.Equal(t, 1, inner.connectCount())
}

func TestGivesUpAfterAttempts(t *testing.T) {
	inner := &countingAdapter{}
	a := NewAdapter(inner, Options{Attempts: 2, Delay: 5 * time.Millisecond})

	var mu sync.Mutex
	var errs []*message.ErrorMessage
	a.SetOutHandler(func(m message.Message) {
		if e, ok := m.(*message.ErrorMessage); ok {
			mu.Lock()
			errs = append(errs, e)
			mu.Unlock()
		}
	})

	require.NoError(t, a.SendIn(&message.ConnectMessage{}))
	for i := 0; i < 3; i++ {
		inner.Emit(&message.DisconnectedMessage{Err: assert.AnError})
		time.Sleep(15 * time.Millisecond)
	}

	mu.Lock()
	defer mu.Unlock()
	require.NotEmpty(t, errs)
	assert.ErrorIs(t, errs[0].Err, ErrRetriesExhausted)
}

func TestSuccessfulConnectResetsBudget(t *testing.T) {
	inner := &countingAdapter{}
	a := NewAdapter(inner, Options{Attempts: 1, Delay: 5 * time.Millisecond})
	a.SetOutHandler(func(message.Message) {})

	require.NoError(t, a.SendIn(&message.ConnectMessage{}))

	inner.Emit(&message.DisconnectedMessage{Err: assert.AnError})
	waitFor(t, func() bool { return inner.connectCount() == 2 })
	inner.Emit(&message.ConnectedMessage{})

	// the budget is restored, so another outage retries again
	inner.Emit(&message.DisconnectedMessage{Err: assert.AnError})
	waitFor(t, func() bool { return inner.connectCount() == 3 })
}

func TestForwardsEverything(t *testing.T) {
	inner := &countingAdapter{}
	a := NewAdapter(inner, Options{Attempts: 1, Delay: time.Minute})

	var got []message.Message
	a.SetOutHandler(func(m message.Message) { got = append(got, m) })

	inner.Emit(&message.ConnectedMessage{})
	inner.Emit(&message.DisconnectedMessage{Err: assert.AnError})

	require.Len(t, got, 2)
	assert.Equal(t, message.TypeConnected, got[0].MessageType())
	assert.Equal(t, message.TypeDisconnected, got[1].MessageType())
}
