package latency

import (
	"sync"
	"time"

	"main/internal/adapter"
	"main/internal/message"
	"main/internal/obs"
)

// Adapter is a chain wrapper that measures the round trip from a
// transactional request to the first response correlated to it. It is purely
// observational and forwards every message unchanged.
type Adapter struct {
	adapter.Base
	inner adapter.Adapter
	stats *obs.LatencyStats

	mu      sync.Mutex
	pending map[int64]time.Time
}

// NewAdapter wraps inner with round-trip measurement.
func NewAdapter(inner adapter.Adapter) *Adapter {
	a := &Adapter{
		inner:   inner,
		stats:   &obs.LatencyStats{},
		pending: make(map[int64]time.Time),
	}
	inner.SetOutHandler(a.onInnerMessage)
	return a
}

// Snapshot returns the aggregated round-trip stats.
func (a *Adapter) Snapshot() obs.LatencySnapshot {
	return a.stats.Snapshot()
}

// SendIn stamps the request's local time when missing, records the send
// instant and forwards to the inner adapter.
func (a *Adapter) SendIn(m message.Message) error {
	if tm, ok := m.(message.Transactional); ok {
		if id := tm.Transaction(); id != 0 {
			a.mu.Lock()
			a.pending[id] = time.Now()
			a.mu.Unlock()
		}
	}
	return a.inner.SendIn(m)
}

// Reset drops pending measurements and resets the inner adapter.
func (a *Adapter) Reset() {
	a.mu.Lock()
	a.pending = make(map[int64]time.Time)
	a.mu.Unlock()
	a.inner.Reset()
}

// Clone deep-clones the chain with fresh stats.
func (a *Adapter) Clone() adapter.Adapter {
	return NewAdapter(a.inner.Clone())
}

func (a *Adapter) onInnerMessage(m message.Message) {
	if om, ok := m.(message.Originated); ok {
		if id := om.Origin(); id != 0 {
			a.mu.Lock()
			if sent, ok := a.pending[id]; ok {
				delete(a.pending, id)
				a.mu.Unlock()
				a.stats.Observe(time.Since(sent))
			} else {
				a.mu.Unlock()
			}
		}
	}
	a.Emit(m)
}
