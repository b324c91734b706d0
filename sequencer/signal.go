package sequencer

import "sync"

// ConsumerSignal is a one-shot-coalescing wake-up primitive registered
// once by the single reader. Signal must be safe to call from any
// goroutine (it is invoked from inside the sequencer's critical section),
// idempotent under coalescing, and non-blocking.
type ConsumerSignal interface {
	Signal()
}

// ChannelSignal is a ConsumerSignal backed by a buffered channel. Multiple
// signals between drains collapse into at most one pending wake-up; the
// consumer compensates by draining with TryRead until it returns nothing,
// the same pattern as the long-poll notifier it is modeled on.
type ChannelSignal struct {
	ch chan struct{}
}

// NewChannelSignal creates a ChannelSignal ready to register with a
// Sequencer.
func NewChannelSignal() *ChannelSignal {
	return &ChannelSignal{ch: make(chan struct{}, 1)}
}

// Signal performs a non-blocking, coalescing send.
func (s *ChannelSignal) Signal() {
	select {
	case s.ch <- struct{}{}:
	default:
	}
}

// C returns the channel a consumer goroutine should select on.
func (s *ChannelSignal) C() <-chan struct{} { return s.ch }

// CondSignal is a ConsumerSignal backed by a sync.Cond, for consumers
// already parked on a condition variable rather than selecting on a
// channel.
type CondSignal struct {
	cond *sync.Cond
}

// NewCondSignal wraps an existing sync.Cond as a ConsumerSignal.
func NewCondSignal(cond *sync.Cond) *CondSignal {
	return &CondSignal{cond: cond}
}

// Signal wakes one waiter on the wrapped condition variable.
func (s *CondSignal) Signal() {
	s.cond.Signal()
}
