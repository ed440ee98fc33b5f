package adapter

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"main/internal/message"
)

// echoAdapter records inbound messages and answers each with a connected
// event.
type echoAdapter struct {
	Base
	received []message.Message
	resets   int
}

func (a *echoAdapter) SendIn(m message.Message) error {
	a.received = append(a.received, m)
	a.Emit(&message.ConnectedMessage{Header: message.Header{Time: time.Now()}})
	return nil
}

func (a *echoAdapter) Reset() { a.resets++ }

func (a *echoAdapter) Clone() Adapter { return &echoAdapter{} }

func TestWrapperForwardsInbound(t *testing.T) {
	inner := &echoAdapter{}
	w := NewWrapper(inner)

	m := &message.ConnectMessage{Header: message.Header{Time: time.Now()}, TransactionID: 1}
	require.NoError(t, w.SendIn(m))
	require.Len(t, inner.received, 1)
	assert.Same(t, m, inner.received[0].(*message.ConnectMessage))
}

func TestWrapperReEmitsOutbound(t *testing.T) {
	inner := &echoAdapter{}
	w := NewWrapper(inner)

	var got []message.Message
	w.SetOutHandler(func(m message.Message) { got = append(got, m) })

	require.NoError(t, w.SendIn(&message.ConnectMessage{}))
	require.Len(t, got, 1)
	assert.Equal(t, message.TypeConnected, got[0].MessageType())
}

func TestWrapperResetPropagates(t *testing.T) {
	inner := &echoAdapter{}
	w := NewWrapper(inner)
	w.Reset()
	assert.Equal(t, 1, inner.resets)
}

func TestWrapperCloneIsIndependent(t *testing.T) {
	inner := &echoAdapter{}
	w := NewWrapper(inner)

	clone := w.Clone().(*Wrapper)
	require.NotSame(t, w.Inner(), clone.Inner())

	var cloneGot int
	clone.SetOutHandler(func(message.Message) { cloneGot++ })
	var origGot int
	w.SetOutHandler(func(message.Message) { origGot++ })

	require.NoError(t, clone.SendIn(&message.ConnectMessage{}))
	assert.Equal(t, 1, cloneGot)
	assert.Equal(t, 0, origGot)
	assert.Empty(t, inner.received)
}

func TestEmitWithoutHandlerIsSafe(t *testing.T) {
	inner := &echoAdapter{}
	require.NotPanics(t, func() {
		require.NoError(t, inner.SendIn(&message.ConnectMessage{}))
	})
}
