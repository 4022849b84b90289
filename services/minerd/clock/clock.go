// Package clock derives block heights from wall-clock time for minerd.
package clock

import (
	"time"

	"github.com/jonboulle/clockwork"
)

// BlockClock maps wall-clock time onto a fixed block cadence anchored at
// genesis. It satisfies mining.Clock.
type BlockClock struct {
	clock    clockwork.Clock
	genesis  time.Time
	interval time.Duration
}

// New returns a block clock. A nil clock uses the real wall clock and a
// non-positive interval defaults to one second.
func New(clock clockwork.Clock, genesis time.Time, interval time.Duration) *BlockClock {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	if interval <= 0 {
		interval = time.Second
	}
	return &BlockClock{clock: clock, genesis: genesis, interval: interval}
}

// BlockNumber returns the height of the block being produced now. Times before
// genesis report height zero.
func (c *BlockClock) BlockNumber() uint64 {
	elapsed := c.clock.Since(c.genesis)
	if elapsed <= 0 {
		return 0
	}
	return uint64(elapsed / c.interval)
}

// TimeOf returns the wall-clock time at which block height starts.
func (c *BlockClock) TimeOf(height uint64) time.Time {
	return c.genesis.Add(time.Duration(height) * c.interval)
}

// Interval reports the configured block cadence.
func (c *BlockClock) Interval() time.Duration { return c.interval }
