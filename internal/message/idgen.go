package message

import "sync/atomic"

// IDGenerator issues strictly increasing transaction ids for one session.
// Zero is reserved to mean "no correlation" and is never returned. Each
// Connector owns its own generator so independent sessions in one process
// never collide.
type IDGenerator struct {
	last atomic.Int64
}

// NewIDGenerator creates a generator starting from 1.
func NewIDGenerator() *IDGenerator {
	return &IDGenerator{}
}

// Next returns the next transaction id.
func (g *IDGenerator) Next() int64 {
	return g.last.Add(1)
}
