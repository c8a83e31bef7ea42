package kernel

import "github.com/picos-project/picos/hal"

// Fault implements the hard-fault quarantine path (spec.md §4.G): it reads
// the current-core id, marks the current descriptor faulted (preserving
// its saved stack pointer and identifying fields for post-mortem), then
// pends the context-switch exception so the core immediately selects
// another thread. It never returns to faulting code — a faulted descriptor
// is permanently ineligible for dispatch (State.eligible).
func (t *ThreadTable) Fault(core hal.Core) {
	lock := t.platform.Spinlock()
	lock.Lock()
	cur := t.current[core].Load()
	cur.State = StateFaulted
	lock.Unlock()

	t.Metrics.Faulted()
	t.platform.PendContextSwitch(core)
}
