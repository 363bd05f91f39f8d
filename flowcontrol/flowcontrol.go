// Package flowcontrol bounds the number of message bytes a Conn is
// writing to its transport at once, so a slow or stalled transport
// applies backpressure to the sender instead of letting an unbounded
// amount of queued data accumulate in memory.
package flowcontrol

import "context"

// FlowLimiter tracks outstanding message bytes. Before writing a
// message, a Conn calls StartMessage with the message's size;
// StartMessage blocks until sending that many more bytes would not
// exceed the limiter's budget, then returns a function that releases
// the budget back. The Conn calls it as soon as the transport write
// returns; no acknowledgement from the peer is awaited.
type FlowLimiter interface {
	StartMessage(ctx context.Context, size uint64) (gotResponse func(), err error)
	// Release is called when the Conn owning this limiter shuts down,
	// so the limiter can release any resources it holds (a
	// NopLimiter's Release is a no-op).
	Release()
}

// nopLimiter never blocks: every message is immediately "started".
type nopLimiter struct{}

func (nopLimiter) StartMessage(ctx context.Context, size uint64) (func(), error) {
	return func() {}, nil
}

func (nopLimiter) Release() {}

// NopLimiter returns a FlowLimiter with no limit, for callers that
// trust their transport to apply its own backpressure.
func NopLimiter() FlowLimiter { return nopLimiter{} }
