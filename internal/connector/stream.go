package connector

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/yanun0323/logs"

	"main/internal/bus"
	"main/internal/message"
	"main/internal/subscription"
)

// ErrCompleted reports the normal end of a subscription stream: the
// historical range finished, the unsubscribe was acknowledged, or the grace
// timeout forced cleanup.
var ErrCompleted = errors.New("subscription completed")

// Stream is the single-consumer pull side of one subscription. It converts
// the connector's push delivery into an ordered, cancellable sequence of
// messages; Next is the only blocking point exposed to callers.
type Stream struct {
	c *Connector
	e *entry

	closeOnce sync.Once
}

func newStream(c *Connector, e *entry) *Stream {
	return &Stream{c: c, e: e}
}

// TransactionID returns the subscription's correlation id.
func (s *Stream) TransactionID() int64 {
	return s.e.sub.TransactionID
}

// State returns the subscription's current lifecycle state.
func (s *Stream) State() subscription.State {
	s.c.mu.Lock()
	defer s.c.mu.Unlock()
	return s.e.sub.State()
}

// Next blocks until the next message arrives in emission order. It returns
// ErrCompleted when the stream ends normally, the subscription's error when
// it fails, and the context error on cancellation. Cancelling translates
// into exactly one protocol-level unsubscribe.
func (s *Stream) Next(ctx context.Context) (message.Message, error) {
	for {
		m, err := s.e.q.Next(ctx)
		if err != nil {
			if errors.Is(err, bus.ErrQueueClosed) {
				return nil, ErrCompleted
			}
			s.Close()
			return nil, err
		}
		switch v := m.(type) {
		case *message.SubscriptionResponseMessage:
			if v.Err != nil {
				return nil, v.Err
			}
		case *message.ErrorMessage:
			return nil, v.Err
		default:
			return m, nil
		}
	}
}

// Close cancels the subscription. The unsubscribe request is sent at most
// once, even under concurrent cancellation and timeout; an unacknowledged
// unsubscribe is force-cleaned after the configured grace period and the
// stream still completes normally. Closing a finished or already-terminal
// subscription is a no-op.
func (s *Stream) Close() {
	s.closeOnce.Do(func() {
		s.c.mu.Lock()
		terminal := s.e.sub.State().IsTerminal()
		s.c.mu.Unlock()
		if terminal {
			return
		}
		if err := s.c.Unsubscribe(s.e.sub.TransactionID); err != nil {
			logs.Errorf("unsubscribe failed: id=%d err=%v", s.e.sub.TransactionID, err)
		}
		go s.awaitStop()
	})
}

func (s *Stream) awaitStop() {
	t := time.NewTimer(s.c.opts.UnsubscribeTimeout)
	defer t.Stop()
	select {
	case <-s.e.done:
	case <-t.C:
		logs.Warnf("unsubscribe not acknowledged within %s, forcing removal: id=%d",
			s.c.opts.UnsubscribeTimeout, s.e.sub.TransactionID)
		s.c.forceRemove(s.e.sub.TransactionID)
	}
}
