package kernel

import (
	"sync/atomic"

	"github.com/picos-project/picos/hal"
)

// Metrics tracks low-overhead scheduler counters, the way
// eventloop.Metrics tracks run-loop counters in the donor package — plain
// atomics, no locks, safe to read concurrently with Dispatched/Faulted.
// Nothing here affects scheduling; it exists purely for diagnostics
// (internal/diag) and the scenario tests in SPEC_FULL.md §2.D.
type Metrics struct {
	dispatches     [hal.NumCores]atomic.Uint64
	idleDispatches [hal.NumCores]atomic.Uint64
	faults         atomic.Uint64
	pins           atomic.Uint64
}

// Dispatched records one context switch landing on core, additionally
// counting it as an idle dispatch when toIdle is set (spec.md §8 property 2
// wants idle-fallback frequency observable, not just total dispatch count).
func (m *Metrics) Dispatched(core hal.Core, toIdle bool) {
	m.dispatches[core].Add(1)
	if toIdle {
		m.idleDispatches[core].Add(1)
	}
}

// Pinned records a first-dispatch pinning decision (spec.md §8 property 4).
func (m *Metrics) Pinned() {
	m.pins.Add(1)
}

// Faulted records a descriptor transitioning to StateFaulted.
func (m *Metrics) Faulted() {
	m.faults.Add(1)
}

// Snapshot is a point-in-time copy of the counters.
type Snapshot struct {
	Dispatches     [hal.NumCores]uint64
	IdleDispatches [hal.NumCores]uint64
	Faults         uint64
	Pins           uint64
}

// Load returns a Snapshot of the current counter values.
func (m *Metrics) Load() Snapshot {
	var s Snapshot
	for c := 0; c < hal.NumCores; c++ {
		s.Dispatches[c] = m.dispatches[c].Load()
		s.IdleDispatches[c] = m.idleDispatches[c].Load()
	}
	s.Faults = m.faults.Load()
	s.Pins = m.pins.Load()
	return s
}
