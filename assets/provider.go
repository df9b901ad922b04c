package assets

import (
	"sync"
	"sync/atomic"
	"time"
)

// Provider is the capability-based contract shared by the three egress
// variants: StdoutProvider, FileProvider, and FifoProvider.
type Provider interface {
	// Start begins the background delivery activity. It returns
	// immediately; failures surface through Wait/Stop.
	Start() error

	// Wait polls for completion, blocking at most d. It returns true once
	// the delivery activity has finished, successfully or not.
	Wait(d time.Duration) bool

	// Stop performs cooperative shutdown: it signals termination, waits
	// for every background activity it owns to join, and returns the
	// first failure observed, if any.
	Stop() error
}

// base holds the machinery every provider variant shares: a single
// background delivery activity, a terminate flag activities check at each
// poll boundary, and a WaitGroup so Stop can guarantee the activity has
// been joined before returning, per the "every background activity is
// joined by its owning component's terminator" invariant.
type base struct {
	source Source

	done      chan struct{}
	err       error
	terminate atomic.Bool
	wg        sync.WaitGroup
	state     atomic.Int32
	stopOnce  sync.Once
}

func newBase(source Source) base {
	b := base{source: source, done: make(chan struct{})}
	b.state.Store(int32(Pending))
	return b
}

// State reports the asset's current DeliveryState, for diagnostics.
func (b *base) State() DeliveryState {
	return DeliveryState(b.state.Load())
}

func (b *base) setState(s DeliveryState) {
	b.state.Store(int32(s))
}

func (b *base) Wait(d time.Duration) bool {
	select {
	case <-b.done:
		return true
	case <-time.After(d):
		return false
	}
}

func (b *base) finish(err error) {
	b.err = err
	if err != nil {
		b.setState(Failed)
	} else {
		b.setState(Completed)
	}
	close(b.done)
}
