package simulated

import (
	"sync/atomic"
	"time"
)

// timeNewTicker is overridable for tests, following the donor catrate
// package's own seam for faking time (catrate/limiter.go:
// `timeNow = time.Now; timeNewTicker = time.NewTicker`).
var timeNewTicker = time.NewTicker

// IntervalScale converts a spec.md §4.E microsecond interval into a host
// time.Duration. The reference configuration's 10,000 µs (100 Hz) is far
// too slow for a test suite that wants to observe many rounds of
// round-robin rotation in milliseconds, so tests may shrink this; it
// defaults to a literal microsecond, matching real hardware timing when
// left alone.
var IntervalScale = time.Microsecond

// Ticker drives one core's simulated SysTick: a periodic callback, gateable
// by DisableLocalPreemption/EnableLocalPreemption (spec.md §4.E) without
// stopping and restarting the underlying timer.
type Ticker struct {
	t     *time.Ticker
	gated atomic.Bool
	done  chan struct{}
}

// NewTicker starts a ticker at intervalUS (scaled by IntervalScale) that
// invokes fire on every tick unless gated.
func NewTicker(intervalUS uint32, fire func()) *Ticker {
	d := time.Duration(intervalUS) * IntervalScale
	if d <= 0 {
		d = time.Microsecond
	}
	tk := &Ticker{t: timeNewTicker(d), done: make(chan struct{})}
	go func() {
		for {
			select {
			case <-tk.t.C:
				if !tk.gated.Load() {
					fire()
				}
			case <-tk.done:
				return
			}
		}
	}()
	return tk
}

// Disable implements the local half of enter_critical (spec.md §4.H): the
// ticker keeps running (it is a host timer, not a register), but its fire
// callback becomes a no-op until Enable.
func (tk *Ticker) Disable() { tk.gated.Store(true) }

// Enable implements the local half of leave_critical (spec.md §4.H). A
// tick that arrives while gated is simply missed — consistent with
// spec.md's note that a tick occurring between enter_critical and
// leave_critical need not be retroactively delivered.
func (tk *Ticker) Enable() { tk.gated.Store(false) }

// Stop releases the underlying timer. Unused on the reference target
// (SysTick runs for the program's lifetime) but kept for test teardown.
func (tk *Ticker) Stop() {
	tk.t.Stop()
	close(tk.done)
}
