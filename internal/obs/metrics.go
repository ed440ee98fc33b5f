package obs

import (
	"sync/atomic"
	"time"

	"main/internal/message"
)

const maxMessageType = int(message.TypePositionChange)

// Metrics collects lightweight counters for one session.
type Metrics struct {
	messageCounts   [maxMessageType + 1]uint64
	queueDrops      uint64
	queueClosed     uint64
	correlationMiss uint64
}

// LatencyStats aggregates duration samples in nanoseconds.
type LatencyStats struct {
	count uint64
	sum   uint64
	min   uint64
	max   uint64
}

// LatencySnapshot is a point-in-time view of latency stats.
type LatencySnapshot struct {
	Count uint64
	Min   time.Duration
	Max   time.Duration
	Avg   time.Duration
}

// Snapshot captures the current metrics values.
type Snapshot struct {
	MessageCounts   map[message.Type]uint64
	QueueDrops      uint64
	QueueClosed     uint64
	CorrelationMiss uint64
}

// NewMetrics allocates a metrics container.
func NewMetrics() *Metrics {
	return &Metrics{}
}

// ObserveMessage increments the counter for the message kind.
func (m *Metrics) ObserveMessage(t message.Type) {
	if m == nil {
		return
	}
	idx := int(t)
	if idx >= 0 && idx < len(m.messageCounts) {
		atomic.AddUint64(&m.messageCounts[idx], 1)
	}
}

// IncQueueDrop records a dropped delivery due to a full consumer queue.
func (m *Metrics) IncQueueDrop() {
	if m == nil {
		return
	}
	atomic.AddUint64(&m.queueDrops, 1)
}

// IncQueueClosed records a publish attempt on a closed consumer queue.
func (m *Metrics) IncQueueClosed() {
	if m == nil {
		return
	}
	atomic.AddUint64(&m.queueClosed, 1)
}

// IncCorrelationMiss records an event referencing an unknown transaction id.
func (m *Metrics) IncCorrelationMiss() {
	if m == nil {
		return
	}
	atomic.AddUint64(&m.correlationMiss, 1)
}

// Snapshot returns a copy of the current metrics values.
func (m *Metrics) Snapshot() Snapshot {
	if m == nil {
		return Snapshot{}
	}
	counts := make(map[message.Type]uint64)
	for i := range m.messageCounts {
		if v := atomic.LoadUint64(&m.messageCounts[i]); v > 0 {
			counts[message.Type(i)] = v
		}
	}
	return Snapshot{
		MessageCounts:   counts,
		QueueDrops:      atomic.LoadUint64(&m.queueDrops),
		QueueClosed:     atomic.LoadUint64(&m.queueClosed),
		CorrelationMiss: atomic.LoadUint64(&m.correlationMiss),
	}
}

// Observe records a duration sample.
func (l *LatencyStats) Observe(d time.Duration) {
	if d < 0 {
		return
	}
	nanos := uint64(d)
	atomic.AddUint64(&l.count, 1)
	atomic.AddUint64(&l.sum, nanos)

	for {
		min := atomic.LoadUint64(&l.min)
		if min != 0 && nanos >= min {
			break
		}
		if atomic.CompareAndSwapUint64(&l.min, min, nanos) {
			break
		}
	}

	for {
		max := atomic.LoadUint64(&l.max)
		if nanos <= max {
			break
		}
		if atomic.CompareAndSwapUint64(&l.max, max, nanos) {
			break
		}
	}
}

// Snapshot returns the aggregated latency stats.
func (l *LatencyStats) Snapshot() LatencySnapshot {
	count := atomic.LoadUint64(&l.count)
	if count == 0 {
		return LatencySnapshot{}
	}
	sum := atomic.LoadUint64(&l.sum)
	min := atomic.LoadUint64(&l.min)
	max := atomic.LoadUint64(&l.max)
	return LatencySnapshot{
		Count: count,
		Min:   time.Duration(min),
		Max:   time.Duration(max),
		Avg:   time.Duration(sum / count),
	}
}
