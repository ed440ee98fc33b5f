package obs

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"main/internal/message"
)

func TestMetricsCounters(t *testing.T) {
	m := NewMetrics()
	m.ObserveMessage(message.TypeExecution)
	m.ObserveMessage(message.TypeExecution)
	m.ObserveMessage(message.TypeLevel1Change)
	m.IncQueueDrop()
	m.IncQueueClosed()
	m.IncCorrelationMiss()
	m.IncCorrelationMiss()

	s := m.Snapshot()
	assert.Equal(t, uint64(2), s.MessageCounts[message.TypeExecution])
	assert.Equal(t, uint64(1), s.MessageCounts[message.TypeLevel1Change])
	assert.Equal(t, uint64(1), s.QueueDrops)
	assert.Equal(t, uint64(1), s.QueueClosed)
	assert.Equal(t, uint64(2), s.CorrelationMiss)
}

func TestNilMetricsIsSafe(t *testing.T) {
	var m *Metrics
	m.ObserveMessage(message.TypeExecution)
	m.IncQueueDrop()
	m.IncQueueClosed()
	m.IncCorrelationMiss()

	s := m.Snapshot()
	assert.Empty(t, s.MessageCounts)
}

func TestLatencyStatsAggregates(t *testing.T) {
	var l LatencyStats
	l.Observe(10 * time.Millisecond)
	l.Observe(30 * time.Millisecond)

	s := l.Snapshot()
	require.Equal(t, uint64(2), s.Count)
	assert.Equal(t, 10*time.Millisecond, s.Min)
	assert.Equal(t, 30*time.Millisecond, s.Max)
	assert.Equal(t, 20*time.Millisecond, s.Avg)
}

func TestLatencyStatsEmpty(t *testing.T) {
	var l LatencyStats
	assert.Equal(t, LatencySnapshot{}, l.Snapshot())
}
